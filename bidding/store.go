/*
store.go - Persistence interfaces for the bid hierarchy

PURPOSE:
  Defines the interface between the domain engines and the database.
  Implementations must guarantee the uniqueness invariants:
    - one CountryTarget per (audience, country)
    - one PartnerResponse per (bid, partner, loi)
    - one AllocationCell per (bid, response, audience, country)
  and surface violations as ErrConflict so the reconciler can retry.

TRANSACTION CONTRACT:
  Multi-step mutations (reconciliation, nested bid creation, closure
  writes spanning cells) run inside WithTx: begin -> mutate -> commit on
  success, rollback on any failure, with the handle released on every
  exit path. No partial commits across hierarchy levels are ever visible
  to readers. Concurrent edits to different bids are independent.

IMPLEMENTATIONS:
  - store/sqlite: production SQLite store (WAL, cascading foreign keys)
*/
package bidding

import "context"

// Store is the transactional read/write surface for the bid hierarchy.
// It owns no business logic.
type Store interface {
	// --- Bids ---

	// CreateBid inserts a bid and fills in its ID.
	CreateBid(ctx context.Context, b *Bid) error
	GetBid(ctx context.Context, id BidID) (*Bid, error)
	// GetBidByNumber looks a bid up by its human-readable number.
	GetBidByNumber(ctx context.Context, number string) (*Bid, error)
	ListBids(ctx context.Context) ([]Bid, error)
	UpdateBid(ctx context.Context, b *Bid) error
	SetBidStatus(ctx context.Context, id BidID, status Status) error
	// NextBidNumber suggests the next free bid number (max existing + 1).
	NextBidNumber(ctx context.Context) (string, error)

	// --- PO numbers (at most one per bid) ---

	UpsertPONumber(ctx context.Context, id BidID, poNumber string) error
	GetPONumber(ctx context.Context, id BidID) (string, error)

	// --- Target audiences ---

	// ListAudiences returns the bid's audiences with CountrySamples
	// hydrated from the stored country targets.
	ListAudiences(ctx context.Context, id BidID) ([]TargetAudience, error)
	InsertAudience(ctx context.Context, a *TargetAudience) error
	UpdateAudience(ctx context.Context, a *TargetAudience) error
	// DeleteAudience removes an audience; its country targets and
	// allocation cells cascade.
	DeleteAudience(ctx context.Context, id AudienceID) error

	// --- Country targets ---

	ListCountryTargets(ctx context.Context, id BidID) ([]CountryTarget, error)
	UpsertCountryTarget(ctx context.Context, t *CountryTarget) error
	// DeleteCountry removes every country target for the given country
	// under the bid; dependent allocation cells cascade.
	DeleteCountry(ctx context.Context, id BidID, country string) error
	// DeleteCountryTarget removes one (audience, country) pair; dependent
	// allocation cells cascade.
	DeleteCountryTarget(ctx context.Context, audience AudienceID, country string) error

	// --- Partner responses ---

	ListResponses(ctx context.Context, id BidID) ([]PartnerResponse, error)
	GetResponse(ctx context.Context, id BidID, partner PartnerID, loi int) (*PartnerResponse, error)
	// UpsertResponse inserts or updates the commercial fields for one
	// (bid, partner, loi) slot and fills in the response ID.
	UpsertResponse(ctx context.Context, r *PartnerResponse) error
	// UpdateResponseInvoice writes only the invoice fields of r.
	UpdateResponseInvoice(ctx context.Context, r *PartnerResponse) error
	CountResponses(ctx context.Context, id BidID) (int, error)

	// --- Allocation cells ---

	ListCells(ctx context.Context, id BidID) ([]AllocationCell, error)
	ListCellsByResponse(ctx context.Context, id ResponseID) ([]AllocationCell, error)
	ListAllCells(ctx context.Context) ([]AllocationCell, error)
	// UpsertCell inserts a cell or, on conflict with the cell uniqueness
	// key, overwrites its bid-stage fields (commitment, cpi, timeline,
	// comments) while leaving field/closure/invoice data untouched.
	UpsertCell(ctx context.Context, c *AllocationCell) error
	// InsertCellIfAbsent creates a placeholder cell only when no cell
	// exists for the key; an existing cell is never modified.
	InsertCellIfAbsent(ctx context.Context, c *AllocationCell) error
	SetCellAllocation(ctx context.Context, id CellID, allocation int) error
	// UpdateCellClosure writes the closure-stage metric fields of c.
	UpdateCellClosure(ctx context.Context, c *AllocationCell) error
	// UpdateCellInvoice writes the invoice-stage cost fields of c.
	UpdateCellInvoice(ctx context.Context, c *AllocationCell) error

	// --- Partner directory ---

	CreatePartner(ctx context.Context, p *Partner) error
	GetPartner(ctx context.Context, id PartnerID) (*Partner, error)
	ListPartners(ctx context.Context) ([]Partner, error)
}

// TxStore wraps Store with transaction support. Every multi-step engine
// operation runs through WithTx.
type TxStore interface {
	Store

	// WithTx executes fn within a transaction. If fn returns an error the
	// transaction is rolled back and the error is returned unchanged.
	WithTx(ctx context.Context, fn func(Store) error) error
}
