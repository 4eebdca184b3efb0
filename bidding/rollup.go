/*
rollup.go - Derived financial and operational views

PURPOSE:
  Computes read-only rollups from the AllocationCell leaves upward. The
  leaves are the only source of truth; nothing here is stored back.

ROUNDING:
  Monetary aggregates round to two decimal places at the boundary.
  Internal accumulation is unrounded decimal arithmetic.

DEFAULTING:
  Recorded overrides win; otherwise
    final CPI  -> agreed CPI
    final cost -> delivered x final CPI
    initial cost -> delivered x agreed CPI (bid rollup)
                    allocation x agreed CPI (invoice view)
    final LOI  -> contracted timeline
    final IR   -> audience incidence rate
  Cells whose metric was never recorded are excluded from averages
  rather than dragged in as zero.
*/
package bidding

import (
	"context"
	"log"
	"time"

	"github.com/shopspring/decimal"
)

// Rollup computes derived views over the stored hierarchy.
type Rollup struct {
	store Store
}

func NewRollup(store Store) *Rollup {
	return &Rollup{store: store}
}

// =============================================================================
// PER-BID FINANCIAL ROLLUP
// =============================================================================

// FinancialRollup is the per-bid delivery and cost summary. Only cells
// with delivered > 0 contribute.
type FinancialRollup struct {
	BidID           BidID
	BidNumber       string
	StudyName       string
	PONumber        string
	Status          Status
	TotalAllocation int
	TotalDelivered  int
	QualityRejects  int
	AvgFinalLOI     decimal.Decimal
	AvgFinalIR      decimal.Decimal
	AvgInitialCPI   decimal.Decimal
	AvgFinalCPI     decimal.Decimal
	InvoiceAmount   decimal.Decimal // sum of final costs
	Savings         decimal.Decimal // sum of (initial - final)
}

// BidRollup aggregates one bid's cells into its financial summary.
func (r *Rollup) BidRollup(ctx context.Context, bidID BidID) (*FinancialRollup, error) {
	bid, err := r.store.GetBid(ctx, bidID)
	if err != nil {
		return nil, err
	}
	cells, err := r.store.ListCells(ctx, bidID)
	if err != nil {
		return nil, err
	}
	audiences, err := r.store.ListAudiences(ctx, bidID)
	if err != nil {
		return nil, err
	}
	po, err := r.store.GetPONumber(ctx, bidID)
	if err != nil && !IsNotFound(err) {
		return nil, err
	}

	irByAudience := make(map[AudienceID]decimal.Decimal, len(audiences))
	for _, a := range audiences {
		irByAudience[a.ID] = a.IR
	}

	out := &FinancialRollup{
		BidID:     bid.ID,
		BidNumber: bid.BidNumber,
		StudyName: bid.StudyName,
		PONumber:  po,
		Status:    bid.Status,
	}

	var (
		loiSum, irSum, cpiSum, finalCPISum decimal.Decimal
		costSum, savingsSum                decimal.Decimal
		n                                  int64
	)

	for _, c := range cells {
		out.TotalAllocation += c.Allocation
		if c.Delivered == nil || *c.Delivered <= 0 {
			continue
		}
		delivered := *c.Delivered
		if c.Commitment > 0 && delivered > c.Commitment {
			// Soft invariant: flagged at the reporting layer, not enforced.
			log.Printf("rollup: bid %d cell %d delivered %d exceeds commitment %d",
				bid.ID, c.ID, delivered, c.Commitment)
		}

		n++
		out.TotalDelivered += delivered
		if c.QualityRejects != nil {
			out.QualityRejects += *c.QualityRejects
		}

		loiSum = loiSum.Add(decimal.NewFromInt(int64(cellFinalLOI(c))))
		irSum = irSum.Add(cellFinalIR(c, irByAudience[c.AudienceID]))
		cpiSum = cpiSum.Add(c.CPI)
		finalCPISum = finalCPISum.Add(cellFinalCPI(c))

		deliveredDec := decimal.NewFromInt(int64(delivered))
		initial := deliveredDec.Mul(c.CPI)
		if c.InitialCost != nil {
			initial = *c.InitialCost
		}
		final := deliveredDec.Mul(cellFinalCPI(c))
		if c.FinalCost != nil {
			final = *c.FinalCost
		}
		costSum = costSum.Add(final)
		savingsSum = savingsSum.Add(initial.Sub(final))
	}

	if n > 0 {
		count := decimal.NewFromInt(n)
		out.AvgFinalLOI = Round2(loiSum.Div(count))
		out.AvgFinalIR = Round2(irSum.Div(count))
		out.AvgInitialCPI = Round2(cpiSum.Div(count))
		out.AvgFinalCPI = Round2(finalCPISum.Div(count))
	}
	out.InvoiceAmount = Round2(costSum)
	out.Savings = Round2(savingsSum)
	return out, nil
}

func cellFinalLOI(c AllocationCell) int {
	if c.FinalLOI != nil {
		return *c.FinalLOI
	}
	return c.TimelineDays
}

func cellFinalIR(c AllocationCell, audienceIR decimal.Decimal) decimal.Decimal {
	if c.FinalIR != nil {
		return *c.FinalIR
	}
	return audienceIR
}

func cellFinalCPI(c AllocationCell) decimal.Decimal {
	if c.FinalCPI != nil {
		return *c.FinalCPI
	}
	return c.CPI
}

// =============================================================================
// DASHBOARD ROLLUP
// =============================================================================

// DashboardMetrics is the cross-bid summary for the landing page.
type DashboardMetrics struct {
	TotalBids         int
	ActiveBids        int
	TotalSavings      decimal.Decimal
	AvgTurnaroundDays decimal.Decimal
	BidsByStatus      map[string]int
}

// DashboardRollup counts bids, sums savings over cells with both cost
// fields recorded, and averages calendar-day turnaround for bids that
// reached a terminal status. Statuses fold through the same table as the
// lifecycle; unmapped legacy strings are logged and kept under their own
// bucket.
func (r *Rollup) DashboardRollup(ctx context.Context) (*DashboardMetrics, error) {
	bids, err := r.store.ListBids(ctx)
	if err != nil {
		return nil, err
	}
	cells, err := r.store.ListAllCells(ctx)
	if err != nil {
		return nil, err
	}

	out := &DashboardMetrics{
		BidsByStatus: map[string]int{
			"Draft":            0,
			"In Field":         0,
			"Closure":          0,
			"Ready to Invoice": 0,
			"Completed":        0,
		},
	}
	out.TotalBids = len(bids)

	var turnaroundSum decimal.Decimal
	var terminal int64
	for _, b := range bids {
		status, ok := NormalizeStatus(string(b.Status))
		if !ok {
			log.Printf("dashboard: unmapped status %q on bid %s", b.Status, b.BidNumber)
		}
		if status.IsActive() {
			out.ActiveBids++
		}
		if status.IsTerminal() {
			terminal++
			days := b.UpdatedAt.Sub(b.CreatedAt) / (24 * time.Hour)
			turnaroundSum = turnaroundSum.Add(decimal.NewFromInt(int64(days)))
		}
		out.BidsByStatus[status.DisplayName()]++
	}
	if terminal > 0 {
		out.AvgTurnaroundDays = turnaroundSum.Div(decimal.NewFromInt(terminal)).Round(1)
	}

	var savings decimal.Decimal
	for _, c := range cells {
		if c.InitialCost != nil && c.FinalCost != nil {
			savings = savings.Add(c.InitialCost.Sub(*c.FinalCost))
		}
	}
	out.TotalSavings = Round2(savings)
	return out, nil
}

// =============================================================================
// INVOICE ROLLUP
// =============================================================================

// InvoiceView groups a bid's invoiceable work by (partner, LOI). Only
// combinations with at least one cell holding an allocation or a delivery
// appear; a roster slot nobody fielded is invisible to invoicing.
type InvoiceView struct {
	BidID     BidID
	BidNumber string
	StudyName string
	Status    Status
	PONumber  string
	Groups    []InvoiceGroup
}

type InvoiceGroup struct {
	Partner       PartnerID
	PartnerName   string
	LOI           int
	InvoiceDate   *time.Time
	InvoiceSent   *time.Time
	InvoiceSerial string
	InvoiceNumber string
	InvoiceAmount *decimal.Decimal
	Deliverables  []Deliverable
}

// Deliverable is one invoice line: an (audience, country) slice of a
// partner's fielded work with its costs.
type Deliverable struct {
	AudienceID   AudienceID
	AudienceName string
	Country      string
	Allocation   int
	Delivered    int
	InitialCPI   decimal.Decimal
	FinalCPI     decimal.Decimal
	InitialCost  decimal.Decimal
	FinalCost    decimal.Decimal
	Savings      decimal.Decimal
}

// InvoiceRollup assembles the invoice view for one bid.
func (r *Rollup) InvoiceRollup(ctx context.Context, bidID BidID) (*InvoiceView, error) {
	bid, err := r.store.GetBid(ctx, bidID)
	if err != nil {
		return nil, err
	}
	responses, err := r.store.ListResponses(ctx, bidID)
	if err != nil {
		return nil, err
	}
	cells, err := r.store.ListCells(ctx, bidID)
	if err != nil {
		return nil, err
	}
	audiences, err := r.store.ListAudiences(ctx, bidID)
	if err != nil {
		return nil, err
	}
	partners, err := r.store.ListPartners(ctx)
	if err != nil {
		return nil, err
	}
	po, err := r.store.GetPONumber(ctx, bidID)
	if err != nil && !IsNotFound(err) {
		return nil, err
	}

	nameByAudience := make(map[AudienceID]string, len(audiences))
	for _, a := range audiences {
		nameByAudience[a.ID] = a.Name
	}
	nameByPartner := make(map[PartnerID]string, len(partners))
	for _, p := range partners {
		nameByPartner[p.ID] = p.Name
	}
	cellsByResponse := make(map[ResponseID][]AllocationCell)
	for _, c := range cells {
		cellsByResponse[c.ResponseID] = append(cellsByResponse[c.ResponseID], c)
	}

	view := &InvoiceView{
		BidID:     bid.ID,
		BidNumber: bid.BidNumber,
		StudyName: bid.StudyName,
		Status:    bid.Status,
		PONumber:  po,
	}

	for _, resp := range responses {
		var lines []Deliverable
		for _, c := range cellsByResponse[resp.ID] {
			if c.Allocation <= 0 && (c.Delivered == nil || *c.Delivered <= 0) {
				continue
			}
			delivered := 0
			if c.Delivered != nil {
				delivered = *c.Delivered
			}
			finalCPI := cellFinalCPI(c)

			initialCost := decimal.NewFromInt(int64(c.Allocation)).Mul(c.CPI)
			if c.InitialCost != nil {
				initialCost = *c.InitialCost
			}
			finalCost := decimal.NewFromInt(int64(delivered)).Mul(finalCPI)
			if c.FinalCost != nil {
				finalCost = *c.FinalCost
			}

			lines = append(lines, Deliverable{
				AudienceID:   c.AudienceID,
				AudienceName: nameByAudience[c.AudienceID],
				Country:      c.Country,
				Allocation:   c.Allocation,
				Delivered:    delivered,
				InitialCPI:   Round2(c.CPI),
				FinalCPI:     Round2(finalCPI),
				InitialCost:  Round2(initialCost),
				FinalCost:    Round2(finalCost),
				Savings:      Round2(initialCost.Sub(finalCost)),
			})
		}
		if len(lines) == 0 {
			continue
		}
		view.Groups = append(view.Groups, InvoiceGroup{
			Partner:       resp.Partner,
			PartnerName:   nameByPartner[resp.Partner],
			LOI:           resp.LOI,
			InvoiceDate:   resp.InvoiceDate,
			InvoiceSent:   resp.InvoiceSent,
			InvoiceSerial: resp.InvoiceSerial,
			InvoiceNumber: resp.InvoiceNumber,
			InvoiceAmount: resp.InvoiceAmount,
			Deliverables:  lines,
		})
	}
	return view, nil
}
