package sqlite_test

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/csi/bid-engine/bidding"
	"github.com/csi/bid-engine/store/sqlite"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func newStore(t *testing.T) *sqlite.Store {
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

// newHierarchy inserts a minimal bid -> audience -> country -> response
// chain directly through the store.
func newHierarchy(t *testing.T, store *sqlite.Store) (*bidding.Bid, *bidding.TargetAudience, *bidding.PartnerResponse) {
	ctx := context.Background()

	bid := &bidding.Bid{BidNumber: "40001", StudyName: "Usage Study", Status: bidding.StatusDraft}
	require.NoError(t, store.CreateBid(ctx, bid))

	aud := &bidding.TargetAudience{BidID: bid.ID, Name: "Gen Pop", IR: decimal.NewFromInt(50)}
	require.NoError(t, store.InsertAudience(ctx, aud))
	require.NoError(t, store.UpsertCountryTarget(ctx, &bidding.CountryTarget{
		BidID: bid.ID, AudienceID: aud.ID, Country: "US", SampleSize: 100,
	}))

	partner := &bidding.Partner{PartnerCode: "CSi_Partner_1", Name: "FieldCo"}
	require.NoError(t, store.CreatePartner(ctx, partner))

	resp := &bidding.PartnerResponse{
		BidID: bid.ID, Partner: partner.ID, LOI: 10,
		Currency: "USD", Status: bidding.ResponseDraft,
	}
	require.NoError(t, store.UpsertResponse(ctx, resp))
	require.NotZero(t, resp.ID)

	return bid, aud, resp
}

// =============================================================================
// UPSERT SEMANTICS
// =============================================================================

func TestUpsertCell_ConflictKeepsFieldData(t *testing.T) {
	// GIVEN: A cell with closure data recorded
	// WHEN: A roster edit re-upserts the same key with new bid-stage values
	// THEN: Bid-stage fields change, closure fields survive, ID is stable

	store := newStore(t)
	bid, aud, resp := newHierarchy(t, store)
	ctx := context.Background()

	cell := &bidding.AllocationCell{
		BidID: bid.ID, ResponseID: resp.ID, AudienceID: aud.ID, Country: "US",
		Commitment: 50, CPI: decimal.RequireFromString("3.25"), TimelineDays: 12,
	}
	require.NoError(t, store.UpsertCell(ctx, cell))
	firstID := cell.ID

	require.NoError(t, store.SetCellAllocation(ctx, cell.ID, 40))
	delivered := 38
	cell.Delivered = &delivered
	require.NoError(t, store.UpdateCellClosure(ctx, cell))

	again := &bidding.AllocationCell{
		BidID: bid.ID, ResponseID: resp.ID, AudienceID: aud.ID, Country: "US",
		Commitment: 60, CPI: decimal.RequireFromString("3.10"),
	}
	require.NoError(t, store.UpsertCell(ctx, again))
	assert.Equal(t, firstID, again.ID)

	cells, err := store.ListCells(ctx, bid.ID)
	require.NoError(t, err)
	require.Len(t, cells, 1)
	assert.Equal(t, 60, cells[0].Commitment)
	assert.True(t, cells[0].CPI.Equal(decimal.RequireFromString("3.10")))
	assert.Equal(t, 40, cells[0].Allocation, "allocation survives the upsert")
	require.NotNil(t, cells[0].Delivered)
	assert.Equal(t, 38, *cells[0].Delivered, "closure data survives the upsert")
}

func TestInsertCellIfAbsent_NeverOverwrites(t *testing.T) {
	store := newStore(t)
	bid, aud, resp := newHierarchy(t, store)
	ctx := context.Background()

	cell := &bidding.AllocationCell{
		BidID: bid.ID, ResponseID: resp.ID, AudienceID: aud.ID, Country: "US",
		Commitment: 50, CPI: decimal.RequireFromString("3.25"),
	}
	require.NoError(t, store.UpsertCell(ctx, cell))

	placeholder := &bidding.AllocationCell{
		BidID: bid.ID, ResponseID: resp.ID, AudienceID: aud.ID, Country: "US",
		CPI: decimal.Zero,
	}
	require.NoError(t, store.InsertCellIfAbsent(ctx, placeholder))
	assert.Equal(t, cell.ID, placeholder.ID)

	cells, err := store.ListCells(ctx, bid.ID)
	require.NoError(t, err)
	require.Len(t, cells, 1)
	assert.Equal(t, 50, cells[0].Commitment)
}

func TestUpsertResponse_ConflictKeepsInvoiceData(t *testing.T) {
	store := newStore(t)
	bid, _, resp := newHierarchy(t, store)
	ctx := context.Background()

	resp.InvoiceSerial = "INV-1"
	amount := decimal.RequireFromString("1234.56")
	resp.InvoiceAmount = &amount
	require.NoError(t, store.UpdateResponseInvoice(ctx, resp))

	again := &bidding.PartnerResponse{
		BidID: bid.ID, Partner: resp.Partner, LOI: resp.LOI,
		Currency: "EUR", Status: bidding.ResponseSubmitted,
	}
	require.NoError(t, store.UpsertResponse(ctx, again))
	assert.Equal(t, resp.ID, again.ID)

	stored, err := store.GetResponse(ctx, bid.ID, resp.Partner, resp.LOI)
	require.NoError(t, err)
	assert.Equal(t, "EUR", stored.Currency)
	assert.Equal(t, "INV-1", stored.InvoiceSerial, "invoice fields survive roster upserts")
	require.NotNil(t, stored.InvoiceAmount)
	assert.True(t, stored.InvoiceAmount.Equal(amount))
}

// =============================================================================
// CONSTRAINTS AND ERRORS
// =============================================================================

func TestCreateBid_DuplicateNumberConflict(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	first := &bidding.Bid{BidNumber: "40001", StudyName: "A", Status: bidding.StatusDraft}
	require.NoError(t, store.CreateBid(ctx, first))

	dup := &bidding.Bid{BidNumber: "40001", StudyName: "B", Status: bidding.StatusDraft}
	err := store.CreateBid(ctx, dup)
	assert.ErrorIs(t, err, bidding.ErrConflict)
}

func TestGetBid_NotFound(t *testing.T) {
	store := newStore(t)

	_, err := store.GetBid(context.Background(), 42)
	assert.True(t, bidding.IsNotFound(err))

	_, err = store.GetBidByNumber(context.Background(), "40042")
	assert.True(t, bidding.IsNotFound(err))
}

func TestNextBidNumber_FloorAndIncrement(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	next, err := store.NextBidNumber(ctx)
	require.NoError(t, err)
	assert.Equal(t, "40000", next)

	bid := &bidding.Bid{BidNumber: "40700", StudyName: "A", Status: bidding.StatusDraft}
	require.NoError(t, store.CreateBid(ctx, bid))

	next, err = store.NextBidNumber(ctx)
	require.NoError(t, err)
	assert.Equal(t, "40701", next)
}

func TestDeleteCountry_RemovesCellsExplicitly(t *testing.T) {
	store := newStore(t)
	bid, aud, resp := newHierarchy(t, store)
	ctx := context.Background()

	require.NoError(t, store.UpsertCell(ctx, &bidding.AllocationCell{
		BidID: bid.ID, ResponseID: resp.ID, AudienceID: aud.ID, Country: "US",
		CPI: decimal.Zero,
	}))
	require.NoError(t, store.DeleteCountry(ctx, bid.ID, "US"))

	cells, err := store.ListCells(ctx, bid.ID)
	require.NoError(t, err)
	assert.Empty(t, cells)

	targets, err := store.ListCountryTargets(ctx, bid.ID)
	require.NoError(t, err)
	assert.Empty(t, targets)
}

func TestDeleteAudience_CascadesThroughForeignKeys(t *testing.T) {
	store := newStore(t)
	bid, aud, resp := newHierarchy(t, store)
	ctx := context.Background()

	require.NoError(t, store.UpsertCell(ctx, &bidding.AllocationCell{
		BidID: bid.ID, ResponseID: resp.ID, AudienceID: aud.ID, Country: "US",
		CPI: decimal.Zero,
	}))
	require.NoError(t, store.DeleteAudience(ctx, aud.ID))

	cells, err := store.ListCells(ctx, bid.ID)
	require.NoError(t, err)
	assert.Empty(t, cells)

	targets, err := store.ListCountryTargets(ctx, bid.ID)
	require.NoError(t, err)
	assert.Empty(t, targets)
}

// =============================================================================
// TRANSACTIONS
// =============================================================================

func TestWithTx_RollbackOnError(t *testing.T) {
	// GIVEN: A transaction that inserts a bid and then fails
	// THEN: Nothing is visible after the rollback

	store := newStore(t)
	ctx := context.Background()
	boom := errors.New("boom")

	err := store.WithTx(ctx, func(s bidding.Store) error {
		bid := &bidding.Bid{BidNumber: "40001", StudyName: "Doomed", Status: bidding.StatusDraft}
		if err := s.CreateBid(ctx, bid); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	bids, err := store.ListBids(ctx)
	require.NoError(t, err)
	assert.Empty(t, bids)
}

func TestWithTx_CommitOnSuccess(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	err := store.WithTx(ctx, func(s bidding.Store) error {
		bid := &bidding.Bid{BidNumber: "40001", StudyName: "Kept", Status: bidding.StatusDraft}
		if err := s.CreateBid(ctx, bid); err != nil {
			return err
		}
		return s.UpsertPONumber(ctx, bid.ID, "PO-1")
	})
	require.NoError(t, err)

	bid, err := store.GetBidByNumber(ctx, "40001")
	require.NoError(t, err)
	po, err := store.GetPONumber(ctx, bid.ID)
	require.NoError(t, err)
	assert.Equal(t, "PO-1", po)
}
