/*
Package bidding provides the core bid allocation and fulfillment engine.

PURPOSE:
  This package contains the domain types and algorithms for tracking
  market-research bids: procurement engagements where fieldwork capacity
  is solicited from multiple partners, across audiences and countries,
  at multiple lengths-of-interview (LOI). The hard part is keeping the
  four-level hierarchy (bid -> audience -> country -> partner/LOI cell)
  consistent as any level is edited independently.

KEY CONCEPTS IN THIS FILE (types.go):
  - Bid: one procurement engagement with a lifecycle status
  - TargetAudience: a named segment within a bid
  - CountryTarget: (audience x country) with a required sample size
  - PartnerResponse: (bid x partner x LOI) commercial offer
  - AllocationCell: the atomic leaf, (response x audience x country)

DESIGN PRINCIPLES:
  1. Precision: decimal.Decimal for every monetary and rate field
  2. Absence over zero: optional metrics are pointers; an empty input is
     stored as NULL so rollups can exclude it instead of averaging a fake 0
  3. Composite keys as structs, never concatenated strings

SEE ALSO:
  - status.go: lifecycle states and normalization
  - reconcile.go: roster reconciliation
  - rollup.go: derived financial views
  - store.go: persistence interfaces
*/
package bidding

import (
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// IDENTIFIERS
// =============================================================================

type BidID int64
type AudienceID int64
type ResponseID int64
type CellID int64
type PartnerID int64

// =============================================================================
// BID - One procurement engagement
// =============================================================================

type Bid struct {
	ID                 BidID
	BidNumber          string // human-readable, unique, monotonically suggested
	BidDate            time.Time
	StudyName          string
	Methodology        string
	ClientID           int64
	SalesContactID     int64
	VMContactID        int64
	ProjectRequirement string
	Status             Status
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// =============================================================================
// TARGET AUDIENCE - Named segment within a bid
// =============================================================================

type TargetAudience struct {
	ID              AudienceID
	BidID           BidID
	Name            string
	TACategory      string
	BroaderCategory string
	ExactDefinition string
	Mode            string // interview mode (online, CATI, ...)
	SampleRequired  int
	IR              decimal.Decimal // incidence rate
	Comments        string

	// CountrySamples is the desired required-sample per country for this
	// audience. It is the input shape for reconciliation; stored rows live
	// in CountryTarget.
	CountrySamples map[string]int
}

// CountryTarget is one (audience, country) pair with its required sample.
// Exactly one exists per (audience, country).
type CountryTarget struct {
	ID         int64
	BidID      BidID
	AudienceID AudienceID
	Country    string
	SampleSize int
}

// =============================================================================
// PARTNER RESPONSE - (bid, partner, LOI) commercial offer
// =============================================================================

// ResponseStatus tracks the partner's side of the negotiation, separate
// from the bid lifecycle.
type ResponseStatus string

const (
	ResponseDraft     ResponseStatus = "draft"
	ResponseSubmitted ResponseStatus = "submitted"
)

type PartnerResponse struct {
	ID       ResponseID
	BidID    BidID
	Partner  PartnerID
	LOI      int // length of interview, minutes
	Currency string
	PMF      decimal.Decimal // price multiplier factor
	Status   ResponseStatus

	// Invoice fields. These are why orphaned responses are never deleted:
	// an invoice may reference a (partner, LOI) no longer in the roster.
	InvoiceDate   *time.Time
	InvoiceSent   *time.Time
	InvoiceSerial string
	InvoiceNumber string
	InvoiceAmount *decimal.Decimal

	CreatedAt time.Time
	UpdatedAt time.Time
}

// ResponseKey identifies one (partner, LOI) slot in a bid's roster.
type ResponseKey struct {
	Partner PartnerID
	LOI     int
}

func (r PartnerResponse) Key() ResponseKey {
	return ResponseKey{Partner: r.Partner, LOI: r.LOI}
}

// =============================================================================
// ALLOCATION CELL - The atomic leaf of the hierarchy
// =============================================================================

// AllocationCell is both the reconciliation target and the aggregation
// leaf: one partner's committed work for one audience in one country at
// one LOI. Exactly one exists per (bid, response, audience, country).
//
// Pointer fields are operator metrics recorded after fieldwork; nil means
// "never entered", which is distinct from zero.
type AllocationCell struct {
	ID         CellID
	BidID      BidID
	ResponseID ResponseID
	AudienceID AudienceID
	Country    string

	// Bid-stage fields (partner's offer)
	Commitment   int
	CPI          decimal.Decimal // agreed cost per interview
	TimelineDays int
	Comments     string

	// Field-stage
	Allocation int // interviews assigned to this partner for this slice

	// Closure-stage metrics (absent until recorded)
	Delivered      *int
	FinalLOI       *int
	FinalIR        *decimal.Decimal
	FinalTimeline  *int
	QualityRejects *int
	Communication  *int // 1-5
	Engagement     *int // 1-5
	ProblemSolving *int // 1-5
	Feedback       string
	FieldCloseDate *time.Time

	// Invoice-stage
	FinalCPI    *decimal.Decimal
	InitialCost *decimal.Decimal
	FinalCost   *decimal.Decimal
	Savings     *decimal.Decimal // initial - final
}

// CellKey identifies one cell within a bid.
type CellKey struct {
	Response ResponseKey
	Audience AudienceID
	Country  string
}

// =============================================================================
// PARTNER - Fulfillment partner directory entry
// =============================================================================

type Partner struct {
	ID            PartnerID
	PartnerCode   string // generated, e.g. "CSi_Partner_12"
	Name          string
	ContactPerson string
	ContactEmail  string
	ContactPhone  string
	CreatedAt     time.Time
}

// =============================================================================
// HELPERS
// =============================================================================

// Round2 rounds a monetary value to two decimal places. Internal
// accumulation stays unrounded; call this only at the boundary.
func Round2(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}

func decPtr(d decimal.Decimal) *decimal.Decimal { return &d }
