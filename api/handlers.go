/*
handlers.go - HTTP API handlers for the bid engine

PURPOSE:
  Exposes the bidding engine via REST API. Handles HTTP request/response,
  JSON serialization, and delegates to domain logic.

ENDPOINTS:
  Bids:
    GET    /api/bids                     List all bids
    POST   /api/bids                     Create bid with audiences
    GET    /api/bids/{id}                Full bid detail
    PUT    /api/bids/{id}                Update header + audiences
    GET    /api/next-bid-number          Suggest next bid number

  Roster:
    PUT    /api/bids/{id}/partners       Converge (partner x LOI) roster
    PUT    /api/bids/{id}/countries      Converge country roster
    PUT    /api/bids/{id}/audiences      Converge audience set
    PUT    /api/bids/{id}/responses      Save partner terms + offer lines

  Lifecycle:
    POST   /api/bids/{id}/status         Apply a status transition
    POST   /api/bids/move-to-closure     infield -> closure by bid number
    POST   /api/bids/{id}/submit-invoice Mark invoiced (idempotent)

  Field / closure / invoice:
    PUT    /api/bids/{id}/allocations    Set cell allocations
    POST   /api/bids/{id}/closure        Record closure metrics
    GET    /api/bids/{id}/rollup         Financial rollup
    GET    /api/bids/{id}/invoice        Invoice view
    PUT    /api/bids/{id}/invoice        Save invoice header + costs

  Other:
    GET    /api/dashboard                Cross-bid summary
    GET    /api/partners                 Partner directory
    POST   /api/partners                 Register partner
    GET    /api/partners/{id}            One partner

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Validation errors, invalid input
  - 404: Resource not found
  - 409: Conflict (uniqueness, rejected transition)
  - 500: Internal errors

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
*/
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/csi/bid-engine/bidding"
	"github.com/csi/bid-engine/store/sqlite"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store *sqlite.Store

	service    *bidding.Service
	reconciler *bidding.Reconciler
	lifecycle  *bidding.Lifecycle
	closure    *bidding.Closure
	rollup     *bidding.Rollup
}

// NewHandler creates a new handler with the given store.
func NewHandler(store *sqlite.Store) *Handler {
	return &Handler{
		Store:      store,
		service:    bidding.NewService(store),
		reconciler: bidding.NewReconciler(store),
		lifecycle:  bidding.NewLifecycle(store),
		closure:    bidding.NewClosure(store),
		rollup:     bidding.NewRollup(store),
	}
}

// =============================================================================
// BID HANDLERS
// =============================================================================

// ListBids returns all bid headers.
func (h *Handler) ListBids(w http.ResponseWriter, r *http.Request) {
	bids, err := h.service.ListBids(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list bids", err)
		return
	}
	dtos := make([]BidDTO, len(bids))
	for i, b := range bids {
		dtos[i] = toBidDTO(b, "")
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreateBid creates a bid with its audiences.
func (h *Handler) CreateBid(w http.ResponseWriter, r *http.Request) {
	var req CreateBidRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.StudyName == "" {
		writeError(w, http.StatusBadRequest, "study_name is required", nil)
		return
	}

	bid := bidding.Bid{
		BidNumber:          req.BidNumber,
		BidDate:            parseDate(req.BidDate),
		StudyName:          req.StudyName,
		Methodology:        req.Methodology,
		ClientID:           req.ClientID,
		SalesContactID:     req.SalesContactID,
		VMContactID:        req.VMContactID,
		ProjectRequirement: req.ProjectRequirement,
	}
	if err := h.service.CreateBid(r.Context(), &bid, toAudiences(req.Audiences)); err != nil {
		writeDomainError(w, "Failed to create bid", err)
		return
	}
	writeJSON(w, http.StatusCreated, toBidDTO(bid, ""))
}

// GetBid returns the fully hydrated bid.
func (h *Handler) GetBid(w http.ResponseWriter, r *http.Request) {
	id, ok := bidIDParam(w, r)
	if !ok {
		return
	}
	detail, err := h.service.GetBidDetail(r.Context(), id)
	if err != nil {
		writeDomainError(w, "Failed to get bid", err)
		return
	}

	dto := BidDetailDTO{
		Bid:            toBidDTO(detail.Bid, detail.PONumber),
		Audiences:      make([]AudienceDTO, len(detail.Audiences)),
		CountryTargets: make([]CountryTargetDTO, len(detail.Targets)),
		Responses:      make([]ResponseDTO, len(detail.Responses)),
		Cells:          make([]CellDTO, len(detail.Cells)),
	}
	for i, a := range detail.Audiences {
		dto.Audiences[i] = toAudienceDTO(a)
	}
	for i, t := range detail.Targets {
		dto.CountryTargets[i] = CountryTargetDTO{
			ID:         t.ID,
			AudienceID: int64(t.AudienceID),
			Country:    t.Country,
			SampleSize: t.SampleSize,
		}
	}
	for i, resp := range detail.Responses {
		dto.Responses[i] = toResponseDTO(resp)
	}
	for i, c := range detail.Cells {
		dto.Cells[i] = toCellDTO(c)
	}
	writeJSON(w, http.StatusOK, dto)
}

// UpdateBid rewrites the header and converges the audiences.
func (h *Handler) UpdateBid(w http.ResponseWriter, r *http.Request) {
	id, ok := bidIDParam(w, r)
	if !ok {
		return
	}
	var req UpdateBidRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	bid := bidding.Bid{
		ID:                 id,
		BidDate:            parseDate(req.BidDate),
		StudyName:          req.StudyName,
		Methodology:        req.Methodology,
		ClientID:           req.ClientID,
		SalesContactID:     req.SalesContactID,
		VMContactID:        req.VMContactID,
		ProjectRequirement: req.ProjectRequirement,
	}
	if err := h.service.UpdateBid(r.Context(), &bid, toAudiences(req.Audiences)); err != nil {
		writeDomainError(w, "Failed to update bid", err)
		return
	}
	writeJSON(w, http.StatusOK, toBidDTO(bid, ""))
}

// NextBidNumber suggests the next free bid number.
func (h *Handler) NextBidNumber(w http.ResponseWriter, r *http.Request) {
	number, err := h.service.NextBidNumber(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to compute next bid number", err)
		return
	}
	writeJSON(w, http.StatusOK, NextBidNumberDTO{BidNumber: number})
}

// =============================================================================
// ROSTER HANDLERS
// =============================================================================

// UpdatePartners converges the (partner x LOI) roster.
func (h *Handler) UpdatePartners(w http.ResponseWriter, r *http.Request) {
	id, ok := bidIDParam(w, r)
	if !ok {
		return
	}
	var req UpdatePartnersRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	partners := make([]bidding.PartnerID, len(req.Partners))
	for i, p := range req.Partners {
		partners[i] = bidding.PartnerID(p)
	}
	if err := h.reconciler.ReconcilePartners(r.Context(), id, partners, req.LOIs); err != nil {
		writeDomainError(w, "Failed to update partner roster", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// UpdateCountries converges the bid-level country roster.
func (h *Handler) UpdateCountries(w http.ResponseWriter, r *http.Request) {
	id, ok := bidIDParam(w, r)
	if !ok {
		return
	}
	var req UpdateCountriesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if err := h.reconciler.ReconcileCountries(r.Context(), id, req.Countries); err != nil {
		writeDomainError(w, "Failed to update countries", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// UpdateAudiences converges only the audience set.
func (h *Handler) UpdateAudiences(w http.ResponseWriter, r *http.Request) {
	id, ok := bidIDParam(w, r)
	if !ok {
		return
	}
	var req UpdateAudiencesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if err := h.reconciler.ReconcileAudiences(r.Context(), id, toAudiences(req.Audiences)); err != nil {
		writeDomainError(w, "Failed to update audiences", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// SaveResponses records partner commercial terms and offer lines.
func (h *Handler) SaveResponses(w http.ResponseWriter, r *http.Request) {
	id, ok := bidIDParam(w, r)
	if !ok {
		return
	}
	var req SaveResponsesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	entries := make([]bidding.ResponseEntry, len(req.Responses))
	for i, e := range req.Responses {
		entry := bidding.ResponseEntry{
			Partner:  bidding.PartnerID(e.PartnerID),
			LOI:      e.LOI,
			Currency: e.Currency,
			PMF:      e.PMF,
			Status:   bidding.ResponseStatus(e.Status),
			Cells:    make([]bidding.CellEntry, len(e.Cells)),
		}
		for j, line := range e.Cells {
			entry.Cells[j] = bidding.CellEntry{
				AudienceID:   bidding.AudienceID(line.AudienceID),
				Country:      line.Country,
				Commitment:   line.Commitment,
				CPI:          line.CPI,
				TimelineDays: line.TimelineDays,
				Comments:     line.Comments,
			}
		}
		entries[i] = entry
	}
	if err := h.reconciler.SaveResponses(r.Context(), id, entries); err != nil {
		writeDomainError(w, "Failed to save responses", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// =============================================================================
// LIFECYCLE HANDLERS
// =============================================================================

// SetStatus applies a lifecycle transition.
func (h *Handler) SetStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := bidIDParam(w, r)
	if !ok {
		return
	}
	var req StatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if err := h.lifecycle.Transition(r.Context(), id, req.Status, req.PONumber); err != nil {
		writeDomainError(w, "Failed to change status", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// MoveToClosure flips an infield bid to closure, addressed by number.
func (h *Handler) MoveToClosure(w http.ResponseWriter, r *http.Request) {
	var req MoveToClosureRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.BidNumber == "" {
		writeError(w, http.StatusBadRequest, "bid_number is required", nil)
		return
	}
	err := h.lifecycle.TransitionByNumber(r.Context(), req.BidNumber, string(bidding.StatusClosure), "")
	if err != nil {
		writeDomainError(w, "Failed to move bid to closure", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// SubmitInvoice marks the bid invoiced. Re-submitting is a no-op success.
func (h *Handler) SubmitInvoice(w http.ResponseWriter, r *http.Request) {
	id, ok := bidIDParam(w, r)
	if !ok {
		return
	}
	if err := h.lifecycle.Transition(r.Context(), id, string(bidding.StatusInvoiced), ""); err != nil {
		writeDomainError(w, "Failed to submit invoice", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// =============================================================================
// CLOSURE / ALLOCATION / INVOICE HANDLERS
// =============================================================================

// SaveAllocations sets cell allocations for one (partner, LOI) slot.
func (h *Handler) SaveAllocations(w http.ResponseWriter, r *http.Request) {
	id, ok := bidIDParam(w, r)
	if !ok {
		return
	}
	var req SaveAllocationsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	entries := make([]bidding.AllocationEntry, len(req.Entries))
	for i, e := range req.Entries {
		entries[i] = bidding.AllocationEntry{
			AudienceID: bidding.AudienceID(e.AudienceID),
			Country:    e.Country,
			Allocation: e.Allocation,
		}
	}
	err := h.closure.SaveAllocations(r.Context(), id, bidding.PartnerID(req.PartnerID), req.LOI, entries)
	if err != nil {
		writeDomainError(w, "Failed to save allocations", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// SaveClosure records closure metrics for one (partner, LOI) slot.
func (h *Handler) SaveClosure(w http.ResponseWriter, r *http.Request) {
	id, ok := bidIDParam(w, r)
	if !ok {
		return
	}
	var req SaveClosureRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	entries := make([]bidding.ClosureEntry, len(req.Entries))
	for i, e := range req.Entries {
		entries[i] = bidding.ClosureEntry{
			AudienceID:     bidding.AudienceID(e.AudienceID),
			Country:        e.Country,
			Delivered:      e.Delivered,
			FinalLOI:       e.FinalLOI,
			FinalIR:        e.FinalIR,
			FinalTimeline:  e.FinalTimeline,
			QualityRejects: e.QualityRejects,
			Communication:  e.Communication,
			Engagement:     e.Engagement,
			ProblemSolving: e.ProblemSolving,
			Feedback:       e.Feedback,
			FieldCloseDate: parseDatePtr(e.FieldCloseDate),
		}
	}
	skipped, err := h.closure.RecordClosureMetrics(r.Context(), id, bidding.PartnerID(req.PartnerID), req.LOI, entries)
	if err != nil {
		writeDomainError(w, "Failed to save closure data", err)
		return
	}
	writeJSON(w, http.StatusOK, SaveClosureResponse{Skipped: skipped})
}

// GetRollup returns the bid's financial rollup.
func (h *Handler) GetRollup(w http.ResponseWriter, r *http.Request) {
	id, ok := bidIDParam(w, r)
	if !ok {
		return
	}
	rollup, err := h.rollup.BidRollup(r.Context(), id)
	if err != nil {
		writeDomainError(w, "Failed to compute rollup", err)
		return
	}
	writeJSON(w, http.StatusOK, RollupDTO{
		BidID:           int64(rollup.BidID),
		BidNumber:       rollup.BidNumber,
		StudyName:       rollup.StudyName,
		PONumber:        rollup.PONumber,
		Status:          string(rollup.Status),
		TotalAllocation: rollup.TotalAllocation,
		TotalDelivered:  rollup.TotalDelivered,
		QualityRejects:  rollup.QualityRejects,
		AvgFinalLOI:     rollup.AvgFinalLOI,
		AvgFinalIR:      rollup.AvgFinalIR,
		AvgInitialCPI:   rollup.AvgInitialCPI,
		AvgFinalCPI:     rollup.AvgFinalCPI,
		InvoiceAmount:   rollup.InvoiceAmount,
		Savings:         rollup.Savings,
	})
}

// GetInvoice returns the invoice view for one bid.
func (h *Handler) GetInvoice(w http.ResponseWriter, r *http.Request) {
	id, ok := bidIDParam(w, r)
	if !ok {
		return
	}
	view, err := h.rollup.InvoiceRollup(r.Context(), id)
	if err != nil {
		writeDomainError(w, "Failed to compute invoice view", err)
		return
	}

	dto := InvoiceViewDTO{
		BidID:     int64(view.BidID),
		BidNumber: view.BidNumber,
		StudyName: view.StudyName,
		Status:    string(view.Status),
		PONumber:  view.PONumber,
		Groups:    make([]InvoiceGroupDTO, len(view.Groups)),
	}
	for i, g := range view.Groups {
		group := InvoiceGroupDTO{
			PartnerID:     int64(g.Partner),
			PartnerName:   g.PartnerName,
			LOI:           g.LOI,
			InvoiceDate:   formatDatePtr(g.InvoiceDate),
			InvoiceSent:   formatDatePtr(g.InvoiceSent),
			InvoiceSerial: g.InvoiceSerial,
			InvoiceNumber: g.InvoiceNumber,
			InvoiceAmount: g.InvoiceAmount,
			Deliverables:  make([]DeliverableDTO, len(g.Deliverables)),
		}
		for j, d := range g.Deliverables {
			group.Deliverables[j] = DeliverableDTO{
				AudienceID:   int64(d.AudienceID),
				AudienceName: d.AudienceName,
				Country:      d.Country,
				Allocation:   d.Allocation,
				Delivered:    d.Delivered,
				InitialCPI:   d.InitialCPI,
				FinalCPI:     d.FinalCPI,
				InitialCost:  d.InitialCost,
				FinalCost:    d.FinalCost,
				Savings:      d.Savings,
			}
		}
		dto.Groups[i] = group
	}
	writeJSON(w, http.StatusOK, dto)
}

// SaveInvoice records the invoice header and per-cell final costs.
func (h *Handler) SaveInvoice(w http.ResponseWriter, r *http.Request) {
	id, ok := bidIDParam(w, r)
	if !ok {
		return
	}
	var req SaveInvoiceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	in := bidding.InvoiceInput{
		Partner:       bidding.PartnerID(req.PartnerID),
		LOI:           req.LOI,
		InvoiceDate:   parseDatePtr(req.InvoiceDate),
		InvoiceSent:   parseDatePtr(req.InvoiceSent),
		InvoiceSerial: req.InvoiceSerial,
		InvoiceNumber: req.InvoiceNumber,
		InvoiceAmount: req.InvoiceAmount,
		Lines:         make([]bidding.InvoiceLine, len(req.Lines)),
	}
	for i, line := range req.Lines {
		in.Lines[i] = bidding.InvoiceLine{
			AudienceID: bidding.AudienceID(line.AudienceID),
			Country:    line.Country,
			FinalCPI:   line.FinalCPI,
		}
	}
	if err := h.closure.SaveInvoiceData(r.Context(), id, in); err != nil {
		writeDomainError(w, "Failed to save invoice data", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// =============================================================================
// DASHBOARD HANDLER
// =============================================================================

// GetDashboard returns the cross-bid summary.
func (h *Handler) GetDashboard(w http.ResponseWriter, r *http.Request) {
	metrics, err := h.rollup.DashboardRollup(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to compute dashboard", err)
		return
	}
	writeJSON(w, http.StatusOK, DashboardDTO{
		TotalBids:         metrics.TotalBids,
		ActiveBids:        metrics.ActiveBids,
		TotalSavings:      metrics.TotalSavings,
		AvgTurnaroundDays: metrics.AvgTurnaroundDays,
		BidsByStatus:      metrics.BidsByStatus,
	})
}

// =============================================================================
// PARTNER HANDLERS
// =============================================================================

// ListPartners returns the partner directory.
func (h *Handler) ListPartners(w http.ResponseWriter, r *http.Request) {
	partners, err := h.service.ListPartners(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list partners", err)
		return
	}
	dtos := make([]PartnerDTO, len(partners))
	for i, p := range partners {
		dtos[i] = toPartnerDTO(p)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreatePartner registers a partner.
func (h *Handler) CreatePartner(w http.ResponseWriter, r *http.Request) {
	var req CreatePartnerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	p := bidding.Partner{
		PartnerCode:   req.PartnerCode,
		Name:          req.Name,
		ContactPerson: req.ContactPerson,
		ContactEmail:  req.ContactEmail,
		ContactPhone:  req.ContactPhone,
	}
	if err := h.service.CreatePartner(r.Context(), &p); err != nil {
		writeDomainError(w, "Failed to create partner", err)
		return
	}
	writeJSON(w, http.StatusCreated, toPartnerDTO(p))
}

// GetPartner returns one partner.
func (h *Handler) GetPartner(w http.ResponseWriter, r *http.Request) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid partner id", err)
		return
	}
	p, err := h.service.GetPartner(r.Context(), bidding.PartnerID(id))
	if err != nil {
		writeDomainError(w, "Failed to get partner", err)
		return
	}
	writeJSON(w, http.StatusOK, toPartnerDTO(*p))
}

// =============================================================================
// HELPERS
// =============================================================================

func bidIDParam(w http.ResponseWriter, r *http.Request) (bidding.BidID, bool) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid bid id", err)
		return 0, false
	}
	return bidding.BidID(id), true
}

func toAudiences(dtos []AudienceDTO) []bidding.TargetAudience {
	audiences := make([]bidding.TargetAudience, len(dtos))
	for i, a := range dtos {
		audiences[i] = bidding.TargetAudience{
			ID:              bidding.AudienceID(a.ID),
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
	return audiences
}

func parseDate(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		t, _ = time.Parse(time.RFC3339, s)
	}
	return t
}

func parseDatePtr(s string) *time.Time {
	t := parseDate(s)
	if t.IsZero() {
		return nil
	}
	return &t
}

func formatDatePtr(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format("2006-01-02")
}

func formatTimestamp(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(time.RFC3339)
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// writeDomainError maps domain errors onto HTTP status codes.
func writeDomainError(w http.ResponseWriter, message string, err error) {
	switch {
	case bidding.IsNotFound(err):
		writeError(w, http.StatusNotFound, message, err)
	case errors.Is(err, bidding.ErrValidation):
		writeError(w, http.StatusBadRequest, message, err)
	case errors.Is(err, bidding.ErrInvalidTransition),
		errors.Is(err, bidding.ErrConflict):
		writeError(w, http.StatusConflict, message, err)
	default:
		writeError(w, http.StatusInternalServerError, message, err)
	}
}
