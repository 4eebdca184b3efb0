package api_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/csi/bid-engine/api"
	"github.com/csi/bid-engine/store/sqlite"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func newTestServer(t *testing.T) *httptest.Server {
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	srv := httptest.NewServer(api.NewRouter(api.NewHandler(store)))
	t.Cleanup(srv.Close)
	return srv
}

// doJSON issues a request with a JSON body and decodes the response into
// out when out is non-nil.
func doJSON(t *testing.T, srv *httptest.Server, method, path string, body, out any) *http.Response {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, srv.URL+path, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")

	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp
}

func createPartner(t *testing.T, srv *httptest.Server, name string) api.PartnerDTO {
	t.Helper()
	var p api.PartnerDTO
	resp := doJSON(t, srv, http.MethodPost, "/api/partners", api.CreatePartnerRequest{Name: name}, &p)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	return p
}

func createBid(t *testing.T, srv *httptest.Server, study string) api.BidDTO {
	t.Helper()
	var b api.BidDTO
	resp := doJSON(t, srv, http.MethodPost, "/api/bids", api.CreateBidRequest{
		StudyName: study,
		Audiences: []api.AudienceDTO{
			{
				Name:           "Gen Pop",
				IR:             decimal.NewFromInt(80),
				CountrySamples: map[string]int{"US": 200},
			},
		},
	}, &b)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	return b
}

func bidDetail(t *testing.T, srv *httptest.Server, bidID int64) api.BidDetailDTO {
	t.Helper()
	var detail api.BidDetailDTO
	resp := doJSON(t, srv, http.MethodGet, fmt.Sprintf("/api/bids/%d", bidID), nil, &detail)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	return detail
}

// =============================================================================
// END-TO-END WORKFLOW
// =============================================================================

func TestBidWorkflow_DraftToInvoice(t *testing.T) {
	// GIVEN: A partner and a draft bid
	// WHEN: The full workflow runs: roster, response, infield, allocation,
	//       closure, invoice, submit
	// THEN: Every step returns the expected status and the rollup and
	//       dashboard reflect the recorded numbers

	srv := newTestServer(t)
	partner := createPartner(t, srv, "FieldCo")
	bid := createBid(t, srv, "Brand Tracker Wave 3")
	require.Equal(t, "40000", bid.BidNumber)
	require.Equal(t, "draft", bid.Status)

	// Put the partner on the roster at LOI 10.
	resp := doJSON(t, srv, http.MethodPut, fmt.Sprintf("/api/bids/%d/partners", bid.ID), api.UpdatePartnersRequest{
		Partners: []int64{partner.ID},
		LOIs:     []int{10},
	}, nil)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	detail := bidDetail(t, srv, bid.ID)
	require.Len(t, detail.Responses, 1)
	audienceID := detail.Audiences[0].ID

	// Record the partner's offer.
	resp = doJSON(t, srv, http.MethodPut, fmt.Sprintf("/api/bids/%d/responses", bid.ID), api.SaveResponsesRequest{
		Responses: []api.ResponseEntryDTO{{
			PartnerID: partner.ID,
			LOI:       10,
			PMF:       decimal.NewFromInt(1),
			Cells: []api.CellEntryDTO{{
				AudienceID:   audienceID,
				Country:      "US",
				Commitment:   120,
				CPI:          decimal.RequireFromString("4.00"),
				TimelineDays: 14,
			}},
		}},
	}, nil)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	// Move to infield with a PO number.
	resp = doJSON(t, srv, http.MethodPost, fmt.Sprintf("/api/bids/%d/status", bid.ID), api.StatusRequest{
		Status:   "In Field",
		PONumber: "PO-2026-001",
	}, nil)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	detail = bidDetail(t, srv, bid.ID)
	assert.Equal(t, "infield", detail.Bid.Status)
	assert.Equal(t, "PO-2026-001", detail.Bid.PONumber)

	// Allocate, then close the field by bid number.
	resp = doJSON(t, srv, http.MethodPut, fmt.Sprintf("/api/bids/%d/allocations", bid.ID), api.SaveAllocationsRequest{
		PartnerID: partner.ID,
		LOI:       10,
		Entries:   []api.AllocationEntryDTO{{AudienceID: audienceID, Country: "US", Allocation: 100}},
	}, nil)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = doJSON(t, srv, http.MethodPost, "/api/bids/move-to-closure", api.MoveToClosureRequest{
		BidNumber: bid.BidNumber,
	}, nil)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	// Record closure metrics.
	delivered := 100
	var closureOut api.SaveClosureResponse
	resp = doJSON(t, srv, http.MethodPost, fmt.Sprintf("/api/bids/%d/closure", bid.ID), api.SaveClosureRequest{
		PartnerID: partner.ID,
		LOI:       10,
		Entries:   []api.ClosureEntryDTO{{AudienceID: audienceID, Country: "US", Delivered: &delivered}},
	}, &closureOut)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 0, closureOut.Skipped)

	// Record the invoice with a reduced final CPI.
	finalCPI := decimal.RequireFromString("3.50")
	amount := decimal.RequireFromString("350")
	resp = doJSON(t, srv, http.MethodPut, fmt.Sprintf("/api/bids/%d/invoice", bid.ID), api.SaveInvoiceRequest{
		PartnerID:     partner.ID,
		LOI:           10,
		InvoiceSerial: "INV-1",
		InvoiceAmount: &amount,
		Lines:         []api.InvoiceLineDTO{{AudienceID: audienceID, Country: "US", FinalCPI: &finalCPI}},
	}, nil)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	// The rollup reflects the recorded numbers.
	var rollup api.RollupDTO
	resp = doJSON(t, srv, http.MethodGet, fmt.Sprintf("/api/bids/%d/rollup", bid.ID), nil, &rollup)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 100, rollup.TotalDelivered)
	assert.True(t, rollup.Savings.Equal(decimal.NewFromInt(50)), "savings = %s", rollup.Savings)
	assert.True(t, rollup.InvoiceAmount.Equal(decimal.NewFromInt(350)))

	// Submitting the invoice lands the bid in the terminal state.
	resp = doJSON(t, srv, http.MethodPost, fmt.Sprintf("/api/bids/%d/submit-invoice", bid.ID), struct{}{}, nil)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	var dash api.DashboardDTO
	resp = doJSON(t, srv, http.MethodGet, "/api/dashboard", nil, &dash)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 1, dash.TotalBids)
	assert.Equal(t, 0, dash.ActiveBids)
	assert.Equal(t, 1, dash.BidsByStatus["Completed"])
	assert.True(t, dash.TotalSavings.Equal(decimal.NewFromInt(50)))
}

func TestGetInvoice_GroupsByPartnerAndLOI(t *testing.T) {
	srv := newTestServer(t)
	partner := createPartner(t, srv, "FieldCo")
	bid := createBid(t, srv, "Usage Study")

	resp := doJSON(t, srv, http.MethodPut, fmt.Sprintf("/api/bids/%d/partners", bid.ID), api.UpdatePartnersRequest{
		Partners: []int64{partner.ID},
		LOIs:     []int{10},
	}, nil)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	detail := bidDetail(t, srv, bid.ID)
	audienceID := detail.Audiences[0].ID

	resp = doJSON(t, srv, http.MethodPut, fmt.Sprintf("/api/bids/%d/responses", bid.ID), api.SaveResponsesRequest{
		Responses: []api.ResponseEntryDTO{{
			PartnerID: partner.ID,
			LOI:       10,
			PMF:       decimal.NewFromInt(1),
			Cells: []api.CellEntryDTO{{
				AudienceID: audienceID, Country: "US", Commitment: 100,
				CPI: decimal.RequireFromString("4.00"), TimelineDays: 14,
			}},
		}},
	}, nil)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = doJSON(t, srv, http.MethodPut, fmt.Sprintf("/api/bids/%d/allocations", bid.ID), api.SaveAllocationsRequest{
		PartnerID: partner.ID,
		LOI:       10,
		Entries:   []api.AllocationEntryDTO{{AudienceID: audienceID, Country: "US", Allocation: 90}},
	}, nil)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	var view api.InvoiceViewDTO
	resp = doJSON(t, srv, http.MethodGet, fmt.Sprintf("/api/bids/%d/invoice", bid.ID), nil, &view)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	require.Len(t, view.Groups, 1)
	assert.Equal(t, partner.ID, view.Groups[0].PartnerID)
	assert.Equal(t, "FieldCo", view.Groups[0].PartnerName)
	require.Len(t, view.Groups[0].Deliverables, 1)
	line := view.Groups[0].Deliverables[0]
	assert.Equal(t, 90, line.Allocation)
	assert.True(t, line.InitialCost.Equal(decimal.NewFromInt(360)), "initial cost = %s", line.InitialCost)
}

// =============================================================================
// ERROR MAPPING
// =============================================================================

func TestCreateBid_ValidationErrors(t *testing.T) {
	srv := newTestServer(t)

	// Missing study name.
	resp := doJSON(t, srv, http.MethodPost, "/api/bids", api.CreateBidRequest{}, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	// Audience without country samples.
	var body api.ErrorResponse
	resp = doJSON(t, srv, http.MethodPost, "/api/bids", api.CreateBidRequest{
		StudyName: "Broken",
		Audiences: []api.AudienceDTO{{Name: "No Countries"}},
	}, &body)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.NotEmpty(t, body.Details)
}

func TestGetBid_UnknownIs404(t *testing.T) {
	srv := newTestServer(t)

	resp := doJSON(t, srv, http.MethodGet, "/api/bids/999", nil, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = doJSON(t, srv, http.MethodGet, "/api/bids/not-a-number", nil, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestSetStatus_RejectedTransitionIs409(t *testing.T) {
	// A draft bid with no responses cannot enter the field.
	srv := newTestServer(t)
	bid := createBid(t, srv, "Stuck Study")

	resp := doJSON(t, srv, http.MethodPost, fmt.Sprintf("/api/bids/%d/status", bid.ID), api.StatusRequest{
		Status: "infield",
	}, nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	// Skipping straight to closure is rejected too.
	resp = doJSON(t, srv, http.MethodPost, fmt.Sprintf("/api/bids/%d/status", bid.ID), api.StatusRequest{
		Status: "closure",
	}, nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestCreateBid_DuplicateNumberIs409(t *testing.T) {
	srv := newTestServer(t)

	req := api.CreateBidRequest{
		BidNumber: "40123",
		StudyName: "First",
		Audiences: []api.AudienceDTO{{Name: "Gen Pop", CountrySamples: map[string]int{"US": 10}}},
	}
	resp := doJSON(t, srv, http.MethodPost, "/api/bids", req, nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	req.StudyName = "Second"
	resp = doJSON(t, srv, http.MethodPost, "/api/bids", req, nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestMoveToClosure_RequiresBidNumber(t *testing.T) {
	srv := newTestServer(t)

	resp := doJSON(t, srv, http.MethodPost, "/api/bids/move-to-closure", api.MoveToClosureRequest{}, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = doJSON(t, srv, http.MethodPost, "/api/bids/move-to-closure", api.MoveToClosureRequest{
		BidNumber: "49999",
	}, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestNextBidNumber_Endpoint(t *testing.T) {
	srv := newTestServer(t)

	var out api.NextBidNumberDTO
	resp := doJSON(t, srv, http.MethodGet, "/api/next-bid-number", nil, &out)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "40000", out.BidNumber)
}
