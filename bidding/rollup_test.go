package bidding_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/csi/bid-engine/bidding"
)

func TestBidRollup_DeliveredCellsOnly(t *testing.T) {
	// GIVEN: Two cells, one with 100 delivered (400 initial, 350 final)
	//        and one never delivered
	// THEN: total_delivered=100, savings=50, the empty cell is excluded

	store := newTestStore(t)
	bidID, partner, audiences := seedFieldedBid(t, store)
	cl := bidding.NewClosure(store)
	ru := bidding.NewRollup(store)
	ctx := context.Background()

	require.NoError(t, cl.SaveAllocations(ctx, bidID, partner, 10, []bidding.AllocationEntry{
		{AudienceID: audiences[0].ID, Country: "US", Allocation: 100},
		{AudienceID: audiences[0].ID, Country: "UK", Allocation: 50},
	}))
	_, err := cl.RecordClosureMetrics(ctx, bidID, partner, 10, []bidding.ClosureEntry{
		{AudienceID: audiences[0].ID, Country: "US", Delivered: intp(100), QualityRejects: intp(2)},
	})
	require.NoError(t, err)
	require.NoError(t, cl.SaveInvoiceData(ctx, bidID, bidding.InvoiceInput{
		Partner: partner,
		LOI:     10,
		Lines: []bidding.InvoiceLine{
			{AudienceID: audiences[0].ID, Country: "US", FinalCPI: decp("3.50")},
		},
	}))

	rollup, err := ru.BidRollup(ctx, bidID)
	require.NoError(t, err)

	assert.Equal(t, 100, rollup.TotalDelivered)
	assert.Equal(t, 150, rollup.TotalAllocation)
	assert.Equal(t, 2, rollup.QualityRejects)
	requireDecEq(t, "50", rollup.Savings)
	requireDecEq(t, "350", rollup.InvoiceAmount)
	requireDecEq(t, "4", rollup.AvgInitialCPI)
	requireDecEq(t, "3.5", rollup.AvgFinalCPI)
	// Final LOI was never recorded; the contracted timeline stands in.
	requireDecEq(t, "14", rollup.AvgFinalLOI)
	// Final IR falls back to the audience incidence rate.
	requireDecEq(t, "80", rollup.AvgFinalIR)
}

func TestBidRollup_NoDeliveries(t *testing.T) {
	store := newTestStore(t)
	bidID, _, _ := seedFieldedBid(t, store)
	ru := bidding.NewRollup(store)

	rollup, err := ru.BidRollup(context.Background(), bidID)
	require.NoError(t, err)
	assert.Equal(t, 0, rollup.TotalDelivered)
	requireDecEq(t, "0", rollup.Savings)
	requireDecEq(t, "0", rollup.InvoiceAmount)
}

func TestDashboardRollup_CountsAndSavings(t *testing.T) {
	// GIVEN: One draft bid with invoiced costs and one legacy "Completed" bid
	// THEN: totals, the active count, savings, and the histogram fold
	//       every spelling through normalization

	store := newTestStore(t)
	bidID, partner, audiences := seedFieldedBid(t, store)
	cl := bidding.NewClosure(store)
	ru := bidding.NewRollup(store)
	ctx := context.Background()

	require.NoError(t, cl.SaveAllocations(ctx, bidID, partner, 10, []bidding.AllocationEntry{
		{AudienceID: audiences[0].ID, Country: "US", Allocation: 100},
	}))
	_, err := cl.RecordClosureMetrics(ctx, bidID, partner, 10, []bidding.ClosureEntry{
		{AudienceID: audiences[0].ID, Country: "US", Delivered: intp(100)},
	})
	require.NoError(t, err)
	require.NoError(t, cl.SaveInvoiceData(ctx, bidID, bidding.InvoiceInput{
		Partner: partner,
		LOI:     10,
		Lines: []bidding.InvoiceLine{
			{AudienceID: audiences[0].ID, Country: "US", FinalCPI: decp("3.50")},
		},
	}))

	// A second bid carrying a legacy status string.
	otherID, _ := seedBid(t, store)
	require.NoError(t, store.SetBidStatus(ctx, otherID, bidding.Status("Completed")))

	metrics, err := ru.DashboardRollup(ctx)
	require.NoError(t, err)

	assert.Equal(t, 2, metrics.TotalBids)
	assert.Equal(t, 1, metrics.ActiveBids, "only the draft bid is active")
	requireDecEq(t, "50", metrics.TotalSavings)
	assert.Equal(t, 1, metrics.BidsByStatus["Draft"])
	assert.Equal(t, 1, metrics.BidsByStatus["Completed"], "legacy spelling folds into the bucket")
}

func TestInvoiceRollup_GroupsAndDefaults(t *testing.T) {
	// GIVEN: One fielded (partner, LOI) slot and one untouched slot
	// THEN: Only the fielded slot appears; line costs default from
	//       allocation, delivery and agreed CPI

	store := newTestStore(t)
	bidID, partner, audiences := seedFieldedBid(t, store)
	others := seedPartners(t, store, "SampleHouse")
	rec := bidding.NewReconciler(store)
	cl := bidding.NewClosure(store)
	ru := bidding.NewRollup(store)
	ctx := context.Background()

	// Second slot on the roster, never allocated or delivered.
	require.NoError(t, rec.ReconcilePartners(ctx, bidID, []bidding.PartnerID{partner, others[0]}, []int{10}))

	require.NoError(t, cl.SaveAllocations(ctx, bidID, partner, 10, []bidding.AllocationEntry{
		{AudienceID: audiences[0].ID, Country: "US", Allocation: 100},
	}))
	_, err := cl.RecordClosureMetrics(ctx, bidID, partner, 10, []bidding.ClosureEntry{
		{AudienceID: audiences[0].ID, Country: "US", Delivered: intp(90)},
	})
	require.NoError(t, err)

	view, err := ru.InvoiceRollup(ctx, bidID)
	require.NoError(t, err)

	require.Len(t, view.Groups, 1, "a slot nobody fielded is invisible to invoicing")
	group := view.Groups[0]
	assert.Equal(t, partner, group.Partner)
	assert.Equal(t, "FieldCo", group.PartnerName)
	assert.Equal(t, 10, group.LOI)

	require.Len(t, group.Deliverables, 1)
	line := group.Deliverables[0]
	assert.Equal(t, "US", line.Country)
	assert.Equal(t, 100, line.Allocation)
	assert.Equal(t, 90, line.Delivered)
	// No invoice recorded yet: final CPI defaults to agreed CPI,
	// initial cost to allocation x CPI, final cost to delivered x CPI.
	requireDecEq(t, "4", line.FinalCPI)
	requireDecEq(t, "400", line.InitialCost)
	requireDecEq(t, "360", line.FinalCost)
	requireDecEq(t, "40", line.Savings)
}

func TestInvoiceRollup_RecordedCostsWin(t *testing.T) {
	store := newTestStore(t)
	bidID, partner, audiences := seedFieldedBid(t, store)
	cl := bidding.NewClosure(store)
	ru := bidding.NewRollup(store)
	ctx := context.Background()

	require.NoError(t, cl.SaveAllocations(ctx, bidID, partner, 10, []bidding.AllocationEntry{
		{AudienceID: audiences[0].ID, Country: "US", Allocation: 100},
	}))
	_, err := cl.RecordClosureMetrics(ctx, bidID, partner, 10, []bidding.ClosureEntry{
		{AudienceID: audiences[0].ID, Country: "US", Delivered: intp(100)},
	})
	require.NoError(t, err)
	require.NoError(t, cl.SaveInvoiceData(ctx, bidID, bidding.InvoiceInput{
		Partner: partner,
		LOI:     10,
		Lines: []bidding.InvoiceLine{
			{AudienceID: audiences[0].ID, Country: "US", FinalCPI: decp("3.50")},
		},
	}))

	view, err := ru.InvoiceRollup(ctx, bidID)
	require.NoError(t, err)
	require.Len(t, view.Groups, 1)
	line := view.Groups[0].Deliverables[0]
	requireDecEq(t, "3.5", line.FinalCPI)
	requireDecEq(t, "400", line.InitialCost)
	requireDecEq(t, "350", line.FinalCost)
	requireDecEq(t, "50", line.Savings)
}
