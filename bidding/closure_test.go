package bidding_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/csi/bid-engine/bidding"
	"github.com/csi/bid-engine/store/sqlite"
)

// seedFieldedBid builds a bid with one response (FieldCo, LOI 10) and two
// offer lines: (Gen Pop, US) cpi 4.00 and (Gen Pop, UK) cpi 2.00.
func seedFieldedBid(t *testing.T, store *sqlite.Store) (bidding.BidID, bidding.PartnerID, []bidding.TargetAudience) {
	bidID, audiences := seedBid(t, store)
	partners := seedPartners(t, store, "FieldCo")
	rec := bidding.NewReconciler(store)
	ctx := context.Background()

	require.NoError(t, rec.ReconcilePartners(ctx, bidID, partners, []int{10}))
	require.NoError(t, rec.SaveResponses(ctx, bidID, []bidding.ResponseEntry{{
		Partner: partners[0],
		LOI:     10,
		PMF:     dec("1"),
		Cells: []bidding.CellEntry{
			{AudienceID: audiences[0].ID, Country: "US", Commitment: 120, CPI: dec("4.00"), TimelineDays: 14},
			{AudienceID: audiences[0].ID, Country: "UK", Commitment: 60, CPI: dec("2.00"), TimelineDays: 14},
		},
	}}))
	return bidID, partners[0], audiences
}

func TestSaveAllocations_SetsCells(t *testing.T) {
	store := newTestStore(t)
	bidID, partner, audiences := seedFieldedBid(t, store)
	cl := bidding.NewClosure(store)
	ctx := context.Background()

	err := cl.SaveAllocations(ctx, bidID, partner, 10, []bidding.AllocationEntry{
		{AudienceID: audiences[0].ID, Country: "US", Allocation: 100},
		{AudienceID: audiences[0].ID, Country: "UK", Allocation: 50},
	})
	require.NoError(t, err)

	cells, err := store.ListCells(ctx, bidID)
	require.NoError(t, err)
	resp, err := store.GetResponse(ctx, bidID, partner, 10)
	require.NoError(t, err)
	assert.Equal(t, 100, cellFor(t, cells, resp.ID, audiences[0].ID, "US").Allocation)
	assert.Equal(t, 50, cellFor(t, cells, resp.ID, audiences[0].ID, "UK").Allocation)
}

func TestSaveAllocations_MissingResponseNotFound(t *testing.T) {
	store := newTestStore(t)
	bidID, _, audiences := seedFieldedBid(t, store)
	cl := bidding.NewClosure(store)

	err := cl.SaveAllocations(context.Background(), bidID, 777, 10, []bidding.AllocationEntry{
		{AudienceID: audiences[0].ID, Country: "US", Allocation: 10},
	})
	assert.True(t, bidding.IsNotFound(err))
}

func TestRecordClosureMetrics_SkipsUnallocatedCells(t *testing.T) {
	// GIVEN: US is allocated 100, UK is allocated nothing
	// WHEN: Closure metrics arrive for both cells
	// THEN: US is recorded, UK is skipped and counted, not an error

	store := newTestStore(t)
	bidID, partner, audiences := seedFieldedBid(t, store)
	cl := bidding.NewClosure(store)
	ctx := context.Background()

	require.NoError(t, cl.SaveAllocations(ctx, bidID, partner, 10, []bidding.AllocationEntry{
		{AudienceID: audiences[0].ID, Country: "US", Allocation: 100},
	}))

	skipped, err := cl.RecordClosureMetrics(ctx, bidID, partner, 10, []bidding.ClosureEntry{
		{AudienceID: audiences[0].ID, Country: "US", Delivered: intp(95), QualityRejects: intp(3)},
		{AudienceID: audiences[0].ID, Country: "UK", Delivered: intp(40)},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, skipped)

	cells, err := store.ListCells(ctx, bidID)
	require.NoError(t, err)
	resp, err := store.GetResponse(ctx, bidID, partner, 10)
	require.NoError(t, err)

	us := cellFor(t, cells, resp.ID, audiences[0].ID, "US")
	require.NotNil(t, us.Delivered)
	assert.Equal(t, 95, *us.Delivered)
	require.NotNil(t, us.QualityRejects)
	assert.Equal(t, 3, *us.QualityRejects)

	uk := cellFor(t, cells, resp.ID, audiences[0].ID, "UK")
	assert.Nil(t, uk.Delivered, "unallocated cell must not be written")
}

func TestRecordClosureMetrics_AbsentStaysAbsent(t *testing.T) {
	// GIVEN: A closure entry with only delivered filled in
	// THEN: The unrecorded metrics are NULL, never zero

	store := newTestStore(t)
	bidID, partner, audiences := seedFieldedBid(t, store)
	cl := bidding.NewClosure(store)
	ctx := context.Background()

	require.NoError(t, cl.SaveAllocations(ctx, bidID, partner, 10, []bidding.AllocationEntry{
		{AudienceID: audiences[0].ID, Country: "US", Allocation: 100},
	}))

	_, err := cl.RecordClosureMetrics(ctx, bidID, partner, 10, []bidding.ClosureEntry{
		{AudienceID: audiences[0].ID, Country: "US", Delivered: intp(100)},
	})
	require.NoError(t, err)

	cells, err := store.ListCells(ctx, bidID)
	require.NoError(t, err)
	resp, err := store.GetResponse(ctx, bidID, partner, 10)
	require.NoError(t, err)
	us := cellFor(t, cells, resp.ID, audiences[0].ID, "US")

	assert.Nil(t, us.FinalIR)
	assert.Nil(t, us.FinalLOI)
	assert.Nil(t, us.QualityRejects)
	assert.Nil(t, us.Communication)
}

func TestSaveInvoiceData_DerivesCosts(t *testing.T) {
	// GIVEN: 100 delivered at agreed CPI 4.00
	// WHEN: The invoice records a final CPI of 3.50
	// THEN: initial=400.00, final=350.00, savings=50.00, header stored

	store := newTestStore(t)
	bidID, partner, audiences := seedFieldedBid(t, store)
	cl := bidding.NewClosure(store)
	ctx := context.Background()

	require.NoError(t, cl.SaveAllocations(ctx, bidID, partner, 10, []bidding.AllocationEntry{
		{AudienceID: audiences[0].ID, Country: "US", Allocation: 100},
	}))
	_, err := cl.RecordClosureMetrics(ctx, bidID, partner, 10, []bidding.ClosureEntry{
		{AudienceID: audiences[0].ID, Country: "US", Delivered: intp(100)},
	})
	require.NoError(t, err)

	err = cl.SaveInvoiceData(ctx, bidID, bidding.InvoiceInput{
		Partner:       partner,
		LOI:           10,
		InvoiceSerial: "INV-7",
		InvoiceNumber: "2024-0042",
		InvoiceAmount: decp("350"),
		Lines: []bidding.InvoiceLine{
			{AudienceID: audiences[0].ID, Country: "US", FinalCPI: decp("3.50")},
		},
	})
	require.NoError(t, err)

	resp, err := store.GetResponse(ctx, bidID, partner, 10)
	require.NoError(t, err)
	assert.Equal(t, "INV-7", resp.InvoiceSerial)
	assert.Equal(t, "2024-0042", resp.InvoiceNumber)
	require.NotNil(t, resp.InvoiceAmount)
	requireDecEq(t, "350", *resp.InvoiceAmount)

	cells, err := store.ListCells(ctx, bidID)
	require.NoError(t, err)
	us := cellFor(t, cells, resp.ID, audiences[0].ID, "US")
	require.NotNil(t, us.InitialCost)
	requireDecEq(t, "400", *us.InitialCost)
	require.NotNil(t, us.FinalCost)
	requireDecEq(t, "350", *us.FinalCost)
	require.NotNil(t, us.Savings)
	requireDecEq(t, "50", *us.Savings)
}

func TestSaveInvoiceData_FinalCPIDefaultsToAgreed(t *testing.T) {
	store := newTestStore(t)
	bidID, partner, audiences := seedFieldedBid(t, store)
	cl := bidding.NewClosure(store)
	ctx := context.Background()

	require.NoError(t, cl.SaveAllocations(ctx, bidID, partner, 10, []bidding.AllocationEntry{
		{AudienceID: audiences[0].ID, Country: "UK", Allocation: 50},
	}))
	_, err := cl.RecordClosureMetrics(ctx, bidID, partner, 10, []bidding.ClosureEntry{
		{AudienceID: audiences[0].ID, Country: "UK", Delivered: intp(50)},
	})
	require.NoError(t, err)

	err = cl.SaveInvoiceData(ctx, bidID, bidding.InvoiceInput{
		Partner: partner,
		LOI:     10,
		Lines: []bidding.InvoiceLine{
			{AudienceID: audiences[0].ID, Country: "UK"}, // no override
		},
	})
	require.NoError(t, err)

	resp, err := store.GetResponse(ctx, bidID, partner, 10)
	require.NoError(t, err)
	cells, err := store.ListCells(ctx, bidID)
	require.NoError(t, err)
	uk := cellFor(t, cells, resp.ID, audiences[0].ID, "UK")
	require.NotNil(t, uk.FinalCPI)
	requireDecEq(t, "2.00", *uk.FinalCPI)
	require.NotNil(t, uk.Savings)
	requireDecEq(t, "0", *uk.Savings)
}
