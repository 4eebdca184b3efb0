/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the internal domain model from the external API contract.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

CONVENTIONS:
  - Monetary values and rates travel as decimal strings ("3.25"), never
    floats. shopspring/decimal handles both quoted and bare numbers on
    the way in.
  - Dates travel as "2006-01-02"; timestamps as RFC3339.
  - Optional numeric metrics are pointers: a missing key means "not
    recorded" and is stored as NULL, never as zero.

VALIDATION:
  Validation is done in handlers and the domain layer, not in DTOs.
  DTOs are pure data carriers.

SEE ALSO:
  - handlers.go: Uses these types
*/
package api

import (
	"github.com/shopspring/decimal"

	"github.com/csi/bid-engine/bidding"
)

// =============================================================================
// BIDS
// =============================================================================

// BidDTO represents a bid header in API responses.
type BidDTO struct {
	ID                 int64  `json:"id"`
	BidNumber          string `json:"bid_number"`
	BidDate            string `json:"bid_date,omitempty"`
	StudyName          string `json:"study_name"`
	Methodology        string `json:"methodology,omitempty"`
	ClientID           int64  `json:"client_id,omitempty"`
	SalesContactID     int64  `json:"sales_contact_id,omitempty"`
	VMContactID        int64  `json:"vm_contact_id,omitempty"`
	ProjectRequirement string `json:"project_requirement,omitempty"`
	Status             string `json:"status"`
	StatusDisplay      string `json:"status_display"`
	PONumber           string `json:"po_number,omitempty"`
	CreatedAt          string `json:"created_at,omitempty"`
	UpdatedAt          string `json:"updated_at,omitempty"`
}

// AudienceDTO carries a target audience both ways. On requests, a zero
// ID means "insert"; a present ID means "update in place".
type AudienceDTO struct {
	ID              int64           `json:"id,omitempty"`
	Name            string          `json:"name"`
	TACategory      string          `json:"ta_category,omitempty"`
	BroaderCategory string          `json:"broader_category,omitempty"`
	ExactDefinition string          `json:"exact_definition,omitempty"`
	Mode            string          `json:"mode,omitempty"`
	SampleRequired  int             `json:"sample_required,omitempty"`
	IR              decimal.Decimal `json:"ir"`
	Comments        string          `json:"comments,omitempty"`
	CountrySamples  map[string]int  `json:"country_samples"`
}

// CountryTargetDTO is one (audience, country) row.
type CountryTargetDTO struct {
	ID         int64  `json:"id"`
	AudienceID int64  `json:"audience_id"`
	Country    string `json:"country"`
	SampleSize int    `json:"sample_size"`
}

// CreateBidRequest creates a bid with its audiences in one call.
type CreateBidRequest struct {
	BidNumber          string        `json:"bid_number,omitempty"`
	BidDate            string        `json:"bid_date,omitempty"`
	StudyName          string        `json:"study_name"`
	Methodology        string        `json:"methodology,omitempty"`
	ClientID           int64         `json:"client_id,omitempty"`
	SalesContactID     int64         `json:"sales_contact_id,omitempty"`
	VMContactID        int64         `json:"vm_contact_id,omitempty"`
	ProjectRequirement string        `json:"project_requirement,omitempty"`
	Audiences          []AudienceDTO `json:"audiences"`
}

// UpdateBidRequest rewrites the header and converges the audience set.
type UpdateBidRequest = CreateBidRequest

// BidDetailDTO is the fully hydrated view of one bid.
type BidDetailDTO struct {
	Bid            BidDTO             `json:"bid"`
	Audiences      []AudienceDTO      `json:"audiences"`
	CountryTargets []CountryTargetDTO `json:"country_targets"`
	Responses      []ResponseDTO      `json:"responses"`
	Cells          []CellDTO          `json:"cells"`
}

// =============================================================================
// ROSTER / RESPONSES
// =============================================================================

// UpdatePartnersRequest converges the (partner x LOI) roster.
type UpdatePartnersRequest struct {
	Partners []int64 `json:"partners"`
	LOIs     []int   `json:"lois"`
}

// UpdateCountriesRequest converges the bid-level country roster.
type UpdateCountriesRequest struct {
	Countries []string `json:"countries"`
}

// UpdateAudiencesRequest converges only the audience set.
type UpdateAudiencesRequest struct {
	Audiences []AudienceDTO `json:"audiences"`
}

// ResponseDTO represents one (partner, LOI) commercial offer.
type ResponseDTO struct {
	ID            int64            `json:"id"`
	PartnerID     int64            `json:"partner_id"`
	LOI           int              `json:"loi"`
	Currency      string           `json:"currency"`
	PMF           decimal.Decimal  `json:"pmf"`
	Status        string           `json:"status"`
	InvoiceDate   string           `json:"invoice_date,omitempty"`
	InvoiceSent   string           `json:"invoice_sent,omitempty"`
	InvoiceSerial string           `json:"invoice_serial,omitempty"`
	InvoiceNumber string           `json:"invoice_number,omitempty"`
	InvoiceAmount *decimal.Decimal `json:"invoice_amount,omitempty"`
}

// CellDTO is the full allocation cell as stored.
type CellDTO struct {
	ID           int64           `json:"id"`
	ResponseID   int64           `json:"response_id"`
	AudienceID   int64           `json:"audience_id"`
	Country      string          `json:"country"`
	Commitment   int             `json:"commitment"`
	CPI          decimal.Decimal `json:"cpi"`
	TimelineDays int             `json:"timeline_days"`
	Comments     string          `json:"comments,omitempty"`
	Allocation   int             `json:"allocation"`

	Delivered      *int             `json:"n_delivered,omitempty"`
	FinalLOI       *int             `json:"final_loi,omitempty"`
	FinalIR        *decimal.Decimal `json:"final_ir,omitempty"`
	FinalTimeline  *int             `json:"final_timeline,omitempty"`
	QualityRejects *int             `json:"quality_rejects,omitempty"`
	Communication  *int             `json:"communication,omitempty"`
	Engagement     *int             `json:"engagement,omitempty"`
	ProblemSolving *int             `json:"problem_solving,omitempty"`
	Feedback       string           `json:"feedback,omitempty"`
	FieldCloseDate string           `json:"field_close_date,omitempty"`

	FinalCPI    *decimal.Decimal `json:"final_cpi,omitempty"`
	InitialCost *decimal.Decimal `json:"initial_cost,omitempty"`
	FinalCost   *decimal.Decimal `json:"final_cost,omitempty"`
	Savings     *decimal.Decimal `json:"savings,omitempty"`
}

// CellEntryDTO is one offer line in a response save.
type CellEntryDTO struct {
	AudienceID   int64           `json:"audience_id"`
	Country      string          `json:"country"`
	Commitment   int             `json:"commitment"`
	CPI          decimal.Decimal `json:"cpi"`
	TimelineDays int             `json:"timeline_days"`
	Comments     string          `json:"comments,omitempty"`
}

// ResponseEntryDTO is one (partner, LOI) slot of operator-entered terms.
type ResponseEntryDTO struct {
	PartnerID int64           `json:"partner_id"`
	LOI       int             `json:"loi"`
	Currency  string          `json:"currency,omitempty"`
	PMF       decimal.Decimal `json:"pmf"`
	Status    string          `json:"status,omitempty"`
	Cells     []CellEntryDTO  `json:"cells"`
}

// SaveResponsesRequest records partner terms and offer lines.
type SaveResponsesRequest struct {
	Responses []ResponseEntryDTO `json:"responses"`
}

// =============================================================================
// LIFECYCLE
// =============================================================================

// StatusRequest moves a bid through the lifecycle. PONumber is only
// meaningful when entering infield.
type StatusRequest struct {
	Status   string `json:"status"`
	PONumber string `json:"po_number,omitempty"`
}

// MoveToClosureRequest flips an infield bid to closure by its number.
type MoveToClosureRequest struct {
	BidNumber string `json:"bid_number"`
}

// =============================================================================
// CLOSURE / ALLOCATION / INVOICE
// =============================================================================

// ClosureEntryDTO carries closure metrics for one cell. Missing keys
// stay absent in storage.
type ClosureEntryDTO struct {
	AudienceID     int64            `json:"audience_id"`
	Country        string           `json:"country"`
	Delivered      *int             `json:"n_delivered,omitempty"`
	FinalLOI       *int             `json:"final_loi,omitempty"`
	FinalIR        *decimal.Decimal `json:"final_ir,omitempty"`
	FinalTimeline  *int             `json:"final_timeline,omitempty"`
	QualityRejects *int             `json:"quality_rejects,omitempty"`
	Communication  *int             `json:"communication,omitempty"`
	Engagement     *int             `json:"engagement,omitempty"`
	ProblemSolving *int             `json:"problem_solving,omitempty"`
	Feedback       string           `json:"feedback,omitempty"`
	FieldCloseDate string           `json:"field_close_date,omitempty"`
}

// SaveClosureRequest records closure metrics for one (partner, LOI) slot.
type SaveClosureRequest struct {
	PartnerID int64             `json:"partner_id"`
	LOI       int               `json:"loi"`
	Entries   []ClosureEntryDTO `json:"entries"`
}

// SaveClosureResponse reports how many unallocated cells were skipped.
type SaveClosureResponse struct {
	Skipped int `json:"skipped"`
}

// AllocationEntryDTO assigns work to one cell.
type AllocationEntryDTO struct {
	AudienceID int64  `json:"audience_id"`
	Country    string `json:"country"`
	Allocation int    `json:"allocation"`
}

// SaveAllocationsRequest sets allocations for one (partner, LOI) slot.
type SaveAllocationsRequest struct {
	PartnerID int64                `json:"partner_id"`
	LOI       int                  `json:"loi"`
	Entries   []AllocationEntryDTO `json:"entries"`
}

// InvoiceLineDTO overrides the final CPI for one cell.
type InvoiceLineDTO struct {
	AudienceID int64            `json:"audience_id"`
	Country    string           `json:"country"`
	FinalCPI   *decimal.Decimal `json:"final_cpi,omitempty"`
}

// SaveInvoiceRequest records the invoice header and per-cell costs for
// one (partner, LOI) slot.
type SaveInvoiceRequest struct {
	PartnerID     int64            `json:"partner_id"`
	LOI           int              `json:"loi"`
	InvoiceDate   string           `json:"invoice_date,omitempty"`
	InvoiceSent   string           `json:"invoice_sent,omitempty"`
	InvoiceSerial string           `json:"invoice_serial,omitempty"`
	InvoiceNumber string           `json:"invoice_number,omitempty"`
	InvoiceAmount *decimal.Decimal `json:"invoice_amount,omitempty"`
	Lines         []InvoiceLineDTO `json:"lines"`
}

// =============================================================================
// ROLLUPS
// =============================================================================

// RollupDTO is the per-bid financial summary.
type RollupDTO struct {
	BidID           int64           `json:"bid_id"`
	BidNumber       string          `json:"bid_number"`
	StudyName       string          `json:"study_name"`
	PONumber        string          `json:"po_number,omitempty"`
	Status          string          `json:"status"`
	TotalAllocation int             `json:"total_allocation"`
	TotalDelivered  int             `json:"total_delivered"`
	QualityRejects  int             `json:"quality_rejects"`
	AvgFinalLOI     decimal.Decimal `json:"avg_final_loi"`
	AvgFinalIR      decimal.Decimal `json:"avg_final_ir"`
	AvgInitialCPI   decimal.Decimal `json:"avg_initial_cpi"`
	AvgFinalCPI     decimal.Decimal `json:"avg_final_cpi"`
	InvoiceAmount   decimal.Decimal `json:"invoice_amount"`
	Savings         decimal.Decimal `json:"savings"`
}

// DashboardDTO is the cross-bid summary.
type DashboardDTO struct {
	TotalBids         int             `json:"total_bids"`
	ActiveBids        int             `json:"active_bids"`
	TotalSavings      decimal.Decimal `json:"total_savings"`
	AvgTurnaroundDays decimal.Decimal `json:"avg_turnaround_days"`
	BidsByStatus      map[string]int  `json:"bids_by_status"`
}

// InvoiceViewDTO groups invoiceable work by (partner, LOI).
type InvoiceViewDTO struct {
	BidID     int64             `json:"bid_id"`
	BidNumber string            `json:"bid_number"`
	StudyName string            `json:"study_name"`
	Status    string            `json:"status"`
	PONumber  string            `json:"po_number,omitempty"`
	Groups    []InvoiceGroupDTO `json:"groups"`
}

type InvoiceGroupDTO struct {
	PartnerID     int64            `json:"partner_id"`
	PartnerName   string           `json:"partner_name,omitempty"`
	LOI           int              `json:"loi"`
	InvoiceDate   string           `json:"invoice_date,omitempty"`
	InvoiceSent   string           `json:"invoice_sent,omitempty"`
	InvoiceSerial string           `json:"invoice_serial,omitempty"`
	InvoiceNumber string           `json:"invoice_number,omitempty"`
	InvoiceAmount *decimal.Decimal `json:"invoice_amount,omitempty"`
	Deliverables  []DeliverableDTO `json:"deliverables"`
}

type DeliverableDTO struct {
	AudienceID   int64           `json:"audience_id"`
	AudienceName string          `json:"audience_name,omitempty"`
	Country      string          `json:"country"`
	Allocation   int             `json:"allocation"`
	Delivered    int             `json:"n_delivered"`
	InitialCPI   decimal.Decimal `json:"initial_cpi"`
	FinalCPI     decimal.Decimal `json:"final_cpi"`
	InitialCost  decimal.Decimal `json:"initial_cost"`
	FinalCost    decimal.Decimal `json:"final_cost"`
	Savings      decimal.Decimal `json:"savings"`
}

// =============================================================================
// PARTNERS
// =============================================================================

// PartnerDTO represents a fulfillment partner.
type PartnerDTO struct {
	ID            int64  `json:"id"`
	PartnerCode   string `json:"partner_code"`
	Name          string `json:"name"`
	ContactPerson string `json:"contact_person,omitempty"`
	ContactEmail  string `json:"contact_email,omitempty"`
	ContactPhone  string `json:"contact_phone,omitempty"`
	CreatedAt     string `json:"created_at,omitempty"`
}

// CreatePartnerRequest registers a partner. An empty code is generated.
type CreatePartnerRequest struct {
	PartnerCode   string `json:"partner_code,omitempty"`
	Name          string `json:"name"`
	ContactPerson string `json:"contact_person,omitempty"`
	ContactEmail  string `json:"contact_email,omitempty"`
	ContactPhone  string `json:"contact_phone,omitempty"`
}

// =============================================================================
// MISC
// =============================================================================

// NextBidNumberDTO suggests the next free bid number.
type NextBidNumberDTO struct {
	BidNumber string `json:"bid_number"`
}

// ErrorResponse is the standard error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// toBidDTO converts a domain bid, attaching its PO number when known.
func toBidDTO(b bidding.Bid, po string) BidDTO {
	dto := BidDTO{
		ID:                 int64(b.ID),
		BidNumber:          b.BidNumber,
		StudyName:          b.StudyName,
		Methodology:        b.Methodology,
		ClientID:           b.ClientID,
		SalesContactID:     b.SalesContactID,
		VMContactID:        b.VMContactID,
		ProjectRequirement: b.ProjectRequirement,
		Status:             string(b.Status),
		StatusDisplay:      b.Status.DisplayName(),
		PONumber:           po,
		CreatedAt:          formatTimestamp(b.CreatedAt),
		UpdatedAt:          formatTimestamp(b.UpdatedAt),
	}
	if !b.BidDate.IsZero() {
		dto.BidDate = b.BidDate.Format("2006-01-02")
	}
	return dto
}

func toAudienceDTO(a bidding.TargetAudience) AudienceDTO {
	return AudienceDTO{
		ID:              int64(a.ID),
		Name:            a.Name,
		TACategory:      a.TACategory,
		BroaderCategory: a.BroaderCategory,
		ExactDefinition: a.ExactDefinition,
		Mode:            a.Mode,
		SampleRequired:  a.SampleRequired,
		IR:              a.IR,
		Comments:        a.Comments,
		CountrySamples:  a.CountrySamples,
	}
}

func toResponseDTO(r bidding.PartnerResponse) ResponseDTO {
	return ResponseDTO{
		ID:            int64(r.ID),
		PartnerID:     int64(r.Partner),
		LOI:           r.LOI,
		Currency:      r.Currency,
		PMF:           r.PMF,
		Status:        string(r.Status),
		InvoiceDate:   formatDatePtr(r.InvoiceDate),
		InvoiceSent:   formatDatePtr(r.InvoiceSent),
		InvoiceSerial: r.InvoiceSerial,
		InvoiceNumber: r.InvoiceNumber,
		InvoiceAmount: r.InvoiceAmount,
	}
}

func toCellDTO(c bidding.AllocationCell) CellDTO {
	return CellDTO{
		ID:             int64(c.ID),
		ResponseID:     int64(c.ResponseID),
		AudienceID:     int64(c.AudienceID),
		Country:        c.Country,
		Commitment:     c.Commitment,
		CPI:            c.CPI,
		TimelineDays:   c.TimelineDays,
		Comments:       c.Comments,
		Allocation:     c.Allocation,
		Delivered:      c.Delivered,
		FinalLOI:       c.FinalLOI,
		FinalIR:        c.FinalIR,
		FinalTimeline:  c.FinalTimeline,
		QualityRejects: c.QualityRejects,
		Communication:  c.Communication,
		Engagement:     c.Engagement,
		ProblemSolving: c.ProblemSolving,
		Feedback:       c.Feedback,
		FieldCloseDate: formatDatePtr(c.FieldCloseDate),
		FinalCPI:       c.FinalCPI,
		InitialCost:    c.InitialCost,
		FinalCost:      c.FinalCost,
		Savings:        c.Savings,
	}
}

func toPartnerDTO(p bidding.Partner) PartnerDTO {
	return PartnerDTO{
		ID:            int64(p.ID),
		PartnerCode:   p.PartnerCode,
		Name:          p.Name,
		ContactPerson: p.ContactPerson,
		ContactEmail:  p.ContactEmail,
		ContactPhone:  p.ContactPhone,
		CreatedAt:     formatTimestamp(p.CreatedAt),
	}
}
