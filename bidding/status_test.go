package bidding_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/csi/bid-engine/bidding"
)

func TestNormalizeStatus_FoldsSpellingVariants(t *testing.T) {
	cases := map[string]bidding.Status{
		"draft":             bidding.StatusDraft,
		"Draft":             bidding.StatusDraft,
		"infield":           bidding.StatusInField,
		"In Field":          bidding.StatusInField,
		"IN-FIELD":          bidding.StatusInField,
		"in_field":          bidding.StatusInField,
		"closure":           bidding.StatusClosure,
		" Closure ":         bidding.StatusClosure,
		"ready_for_invoice": bidding.StatusReadyForInvoice,
		"Ready to Invoice":  bidding.StatusReadyForInvoice,
		"ready-for-invoice": bidding.StatusReadyForInvoice,
		"invoiced":          bidding.StatusInvoiced,
		"Completed":         bidding.StatusInvoiced, // legacy synonym
	}
	for raw, want := range cases {
		got, ok := bidding.NormalizeStatus(raw)
		assert.True(t, ok, "expected %q to normalize", raw)
		assert.Equal(t, want, got, "input %q", raw)
	}
}

func TestNormalizeStatus_UnmappedPassesThrough(t *testing.T) {
	got, ok := bidding.NormalizeStatus(" On Hold ")
	assert.False(t, ok)
	assert.Equal(t, bidding.Status("On Hold"), got)
}

func TestStatus_Classification(t *testing.T) {
	assert.True(t, bidding.StatusDraft.IsActive())
	assert.True(t, bidding.StatusInField.IsActive())
	assert.False(t, bidding.StatusClosure.IsActive())

	assert.True(t, bidding.StatusReadyForInvoice.IsTerminal())
	assert.True(t, bidding.StatusInvoiced.IsTerminal())
	assert.False(t, bidding.StatusInField.IsTerminal())
}

func TestStatus_DisplayNames(t *testing.T) {
	assert.Equal(t, "Draft", bidding.StatusDraft.DisplayName())
	assert.Equal(t, "In Field", bidding.StatusInField.DisplayName())
	assert.Equal(t, "Closure", bidding.StatusClosure.DisplayName())
	assert.Equal(t, "Ready to Invoice", bidding.StatusReadyForInvoice.DisplayName())
	assert.Equal(t, "Completed", bidding.StatusInvoiced.DisplayName())
	assert.Equal(t, "On hold", bidding.Status("on hold").DisplayName())
	// Legacy strings may start with a multi-byte rune.
	assert.Equal(t, "Éteint", bidding.Status("éteint").DisplayName())
}
