/*
closure.go - Field-closure and invoice data recording

PURPOSE:
  Records what actually happened in field against the allocation cells:
  delivered counts, final LOI/IR, quality rejects, partner scores, and
  later the invoice-stage costs. Writes target individual cells; the
  structural hierarchy is never changed here.

RULES:
  - Closure metrics are accepted only for cells that were allocated work
    (allocation > 0). Writes to unallocated cells are skipped and the
    skip count reported, never treated as an error.
  - A metric that was not recorded stays absent (NULL). It is never
    coerced to zero, so averages upstream are not dragged down.
  - Invoice recording derives initial cost as delivered x agreed CPI and
    final cost as delivered x final CPI at write time; savings is their
    difference. These land on the cell as recorded values.
*/
package bidding

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// Closure records field-closure and invoice data onto allocation cells.
type Closure struct {
	store TxStore
}

func NewClosure(store TxStore) *Closure {
	return &Closure{store: store}
}

// ClosureEntry carries the field-closure metrics for one (audience,
// country) cell of a partner response. Nil means the metric was not
// recorded.
type ClosureEntry struct {
	AudienceID     AudienceID
	Country        string
	Delivered      *int
	FinalLOI       *int
	FinalIR        *decimal.Decimal
	FinalTimeline  *int
	QualityRejects *int
	Communication  *int
	Engagement     *int
	ProblemSolving *int
	Feedback       string
	FieldCloseDate *time.Time
}

// RecordClosureMetrics writes closure metrics for one (partner, loi)
// slot of a bid. Entries addressing cells with no allocation are
// skipped; the skip count is returned alongside any error.
func (c *Closure) RecordClosureMetrics(ctx context.Context, bidID BidID, partner PartnerID, loi int, entries []ClosureEntry) (int, error) {
	skipped := 0
	err := c.store.WithTx(ctx, func(s Store) error {
		resp, err := s.GetResponse(ctx, bidID, partner, loi)
		if err != nil {
			return err
		}
		cells, err := s.ListCellsByResponse(ctx, resp.ID)
		if err != nil {
			return err
		}
		byKey := make(map[audienceCountry]AllocationCell, len(cells))
		for _, cell := range cells {
			byKey[audienceCountry{cell.AudienceID, cell.Country}] = cell
		}

		for _, e := range entries {
			cell, ok := byKey[audienceCountry{e.AudienceID, e.Country}]
			if !ok {
				return ErrNotFound
			}
			if cell.Allocation <= 0 {
				skipped++
				continue
			}
			cell.Delivered = e.Delivered
			cell.FinalLOI = e.FinalLOI
			cell.FinalIR = e.FinalIR
			cell.FinalTimeline = e.FinalTimeline
			cell.QualityRejects = e.QualityRejects
			cell.Communication = e.Communication
			cell.Engagement = e.Engagement
			cell.ProblemSolving = e.ProblemSolving
			cell.Feedback = e.Feedback
			cell.FieldCloseDate = e.FieldCloseDate
			if err := s.UpdateCellClosure(ctx, &cell); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return skipped, nil
}

// AllocationEntry assigns work to one (audience, country) cell.
type AllocationEntry struct {
	AudienceID AudienceID
	Country    string
	Allocation int
}

// SaveAllocations sets the allocated sample counts for one (partner,
// loi) slot. The response and every addressed cell must exist; nothing
// is created here.
func (c *Closure) SaveAllocations(ctx context.Context, bidID BidID, partner PartnerID, loi int, entries []AllocationEntry) error {
	return c.store.WithTx(ctx, func(s Store) error {
		resp, err := s.GetResponse(ctx, bidID, partner, loi)
		if err != nil {
			return err
		}
		cells, err := s.ListCellsByResponse(ctx, resp.ID)
		if err != nil {
			return err
		}
		byKey := make(map[audienceCountry]AllocationCell, len(cells))
		for _, cell := range cells {
			byKey[audienceCountry{cell.AudienceID, cell.Country}] = cell
		}

		for _, e := range entries {
			cell, ok := byKey[audienceCountry{e.AudienceID, e.Country}]
			if !ok {
				return ErrNotFound
			}
			if err := s.SetCellAllocation(ctx, cell.ID, e.Allocation); err != nil {
				return err
			}
		}
		return nil
	})
}

// InvoiceLine carries the invoice-stage override for one cell. A nil
// FinalCPI falls back to the agreed CPI.
type InvoiceLine struct {
	AudienceID AudienceID
	Country    string
	FinalCPI   *decimal.Decimal
}

// InvoiceInput carries the invoice header for one (partner, loi) slot
// plus its per-cell cost overrides.
type InvoiceInput struct {
	Partner       PartnerID
	LOI           int
	InvoiceDate   *time.Time
	InvoiceSent   *time.Time
	InvoiceSerial string
	InvoiceNumber string
	InvoiceAmount *decimal.Decimal
	Lines         []InvoiceLine
}

// SaveInvoiceData records the invoice header on the response and the
// final costs on its cells. For each line:
//
//	final CPI    = override, else agreed CPI
//	initial cost = delivered x agreed CPI
//	final cost   = delivered x final CPI
//	savings      = initial cost - final cost
func (c *Closure) SaveInvoiceData(ctx context.Context, bidID BidID, in InvoiceInput) error {
	return c.store.WithTx(ctx, func(s Store) error {
		resp, err := s.GetResponse(ctx, bidID, in.Partner, in.LOI)
		if err != nil {
			return err
		}

		resp.InvoiceDate = in.InvoiceDate
		resp.InvoiceSent = in.InvoiceSent
		resp.InvoiceSerial = in.InvoiceSerial
		resp.InvoiceNumber = in.InvoiceNumber
		resp.InvoiceAmount = in.InvoiceAmount
		if err := s.UpdateResponseInvoice(ctx, resp); err != nil {
			return err
		}

		cells, err := s.ListCellsByResponse(ctx, resp.ID)
		if err != nil {
			return err
		}
		byKey := make(map[audienceCountry]AllocationCell, len(cells))
		for _, cell := range cells {
			byKey[audienceCountry{cell.AudienceID, cell.Country}] = cell
		}

		for _, line := range in.Lines {
			cell, ok := byKey[audienceCountry{line.AudienceID, line.Country}]
			if !ok {
				return ErrNotFound
			}
			delivered := 0
			if cell.Delivered != nil {
				delivered = *cell.Delivered
			}
			finalCPI := cell.CPI
			if line.FinalCPI != nil {
				finalCPI = *line.FinalCPI
			}
			deliveredDec := decimal.NewFromInt(int64(delivered))
			initialCost := deliveredDec.Mul(cell.CPI)
			finalCost := deliveredDec.Mul(finalCPI)
			savings := initialCost.Sub(finalCost)

			cell.FinalCPI = decPtr(finalCPI)
			cell.InitialCost = decPtr(initialCost)
			cell.FinalCost = decPtr(finalCost)
			cell.Savings = decPtr(savings)
			if err := s.UpdateCellInvoice(ctx, &cell); err != nil {
				return err
			}
		}
		return nil
	})
}
