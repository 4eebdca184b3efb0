/*
status.go - Bid lifecycle states and normalization

PURPOSE:
  One canonical status vocabulary plus one normalization function, used
  everywhere a status is read or written. The source data carries years of
  ad hoc spellings ("In-Field", " Completed", "in_field"); they all fold
  onto the canonical enum here and nowhere else.

LIFECYCLE:
  draft -> infield -> closure -> ready_for_invoice -> invoiced

  "completed" is a legacy synonym of invoiced and is normalized on
  ingestion. Unknown strings are passed through unchanged; downstream
  queries treat only the canonical set as meaningful.

SEE ALSO:
  - lifecycle.go: transition rules and side effects
*/
package bidding

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// Status is the canonical bid lifecycle state.
type Status string

const (
	StatusDraft           Status = "draft"
	StatusInField         Status = "infield"
	StatusClosure         Status = "closure"
	StatusReadyForInvoice Status = "ready_for_invoice"
	StatusInvoiced        Status = "invoiced"
)

// statusAliases folds every spelling observed in the source data onto the
// canonical enum. Keys are pre-folded (lowercase, no separators).
var statusAliases = map[string]Status{
	"draft":           StatusDraft,
	"infield":         StatusInField,
	"closure":         StatusClosure,
	"readyforinvoice": StatusReadyForInvoice,
	"readytoinvoice":  StatusReadyForInvoice,
	"invoiced":        StatusInvoiced,
	"completed":       StatusInvoiced, // legacy synonym
}

// NormalizeStatus maps an incoming status string onto the canonical enum.
// Case, surrounding whitespace, and -/_/space separators are ignored.
// Unmapped strings are returned unchanged with ok=false so callers can
// log the degraded pass-through instead of silently dropping it.
func NormalizeStatus(raw string) (Status, bool) {
	folded := strings.ToLower(strings.TrimSpace(raw))
	folded = strings.NewReplacer("-", "", "_", "", " ", "").Replace(folded)
	if s, ok := statusAliases[folded]; ok {
		return s, true
	}
	return Status(strings.TrimSpace(raw)), false
}

// IsCanonical reports whether s is one of the canonical lifecycle states.
func (s Status) IsCanonical() bool {
	switch s {
	case StatusDraft, StatusInField, StatusClosure, StatusReadyForInvoice, StatusInvoiced:
		return true
	}
	return false
}

// IsActive reports whether a bid in this status counts as active for
// dashboard purposes.
func (s Status) IsActive() bool {
	return s == StatusDraft || s == StatusInField
}

// IsTerminal reports whether the bid has finished its lifecycle. Used for
// turnaround-time aggregation.
func (s Status) IsTerminal() bool {
	return s == StatusReadyForInvoice || s == StatusInvoiced
}

// DisplayName returns the label used in dashboard histograms.
func (s Status) DisplayName() string {
	switch s {
	case StatusDraft:
		return "Draft"
	case StatusInField:
		return "In Field"
	case StatusClosure:
		return "Closure"
	case StatusReadyForInvoice:
		return "Ready to Invoice"
	case StatusInvoiced:
		return "Completed"
	}
	// Degraded pass-through for legacy strings.
	if s == "" {
		return ""
	}
	first, size := utf8.DecodeRuneInString(string(s))
	return string(unicode.ToUpper(first)) + string(s)[size:]
}
