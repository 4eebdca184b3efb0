/*
service.go - Bid CRUD and the partner directory

PURPOSE:
  Creation and maintenance of the bid header and its nested audience
  definitions, plus the partner directory with its generated codes.
  Creation of a bid with its audiences and country targets is one
  transaction; a failed audience insert leaves no half-created bid.

SEE ALSO:
  - reconcile.go: structural edits after creation
  - lifecycle.go: status transitions
*/
package bidding

import (
	"context"
	"fmt"
	"strconv"
	"strings"
)

const partnerCodePrefix = "CSi_Partner_"

// Service owns bid and partner directory CRUD.
type Service struct {
	store TxStore
	rec   *Reconciler
}

func NewService(store TxStore) *Service {
	return &Service{store: store, rec: NewReconciler(store)}
}

// =============================================================================
// BIDS
// =============================================================================

// CreateBid inserts a bid together with its audiences and their country
// targets. An empty bid number is assigned from the number sequence; an
// empty status starts the lifecycle at draft. b.ID is filled on success.
func (sv *Service) CreateBid(ctx context.Context, b *Bid, audiences []TargetAudience) error {
	for _, a := range audiences {
		if len(a.CountrySamples) == 0 {
			return &ValidationError{Field: "country_samples", Reason: fmt.Sprintf("audience %q has no country samples", a.Name)}
		}
	}

	return sv.store.WithTx(ctx, func(s Store) error {
		if b.BidNumber == "" {
			number, err := s.NextBidNumber(ctx)
			if err != nil {
				return err
			}
			b.BidNumber = number
		}
		if b.Status == "" {
			b.Status = StatusDraft
		}
		if err := s.CreateBid(ctx, b); err != nil {
			return err
		}

		for i := range audiences {
			a := audiences[i]
			a.ID = 0
			a.BidID = b.ID
			if err := s.InsertAudience(ctx, &a); err != nil {
				return err
			}
			for country, sample := range a.CountrySamples {
				t := CountryTarget{
					BidID:      b.ID,
					AudienceID: a.ID,
					Country:    country,
					SampleSize: sample,
				}
				if err := s.UpsertCountryTarget(ctx, &t); err != nil {
					return err
				}
			}
		}
		return nil
	})
}

// UpdateBid rewrites the bid header and converges the audience set to the
// supplied definitions, in one transaction. Audiences carrying their
// stored ID are updated in place; leaf data under surviving audiences is
// preserved by the merge.
func (sv *Service) UpdateBid(ctx context.Context, b *Bid, audiences []TargetAudience) error {
	return sv.store.WithTx(ctx, func(s Store) error {
		stored, err := s.GetBid(ctx, b.ID)
		if err != nil {
			return err
		}
		b.BidNumber = stored.BidNumber
		b.Status = stored.Status
		b.CreatedAt = stored.CreatedAt
		if err := s.UpdateBid(ctx, b); err != nil {
			return err
		}
		return sv.rec.mergeAudiences(ctx, s, b.ID, audiences)
	})
}

// BidDetail is the fully hydrated view of one bid.
type BidDetail struct {
	Bid       Bid
	PONumber  string
	Audiences []TargetAudience
	Targets   []CountryTarget
	Responses []PartnerResponse
	Cells     []AllocationCell
}

// GetBidDetail loads a bid with every level of its hierarchy.
func (sv *Service) GetBidDetail(ctx context.Context, bidID BidID) (*BidDetail, error) {
	bid, err := sv.store.GetBid(ctx, bidID)
	if err != nil {
		return nil, err
	}
	audiences, err := sv.store.ListAudiences(ctx, bidID)
	if err != nil {
		return nil, err
	}
	targets, err := sv.store.ListCountryTargets(ctx, bidID)
	if err != nil {
		return nil, err
	}
	responses, err := sv.store.ListResponses(ctx, bidID)
	if err != nil {
		return nil, err
	}
	cells, err := sv.store.ListCells(ctx, bidID)
	if err != nil {
		return nil, err
	}
	po, err := sv.store.GetPONumber(ctx, bidID)
	if err != nil && !IsNotFound(err) {
		return nil, err
	}

	return &BidDetail{
		Bid:       *bid,
		PONumber:  po,
		Audiences: audiences,
		Targets:   targets,
		Responses: responses,
		Cells:     cells,
	}, nil
}

func (sv *Service) ListBids(ctx context.Context) ([]Bid, error) {
	return sv.store.ListBids(ctx)
}

func (sv *Service) NextBidNumber(ctx context.Context) (string, error) {
	return sv.store.NextBidNumber(ctx)
}

// =============================================================================
// PARTNER DIRECTORY
// =============================================================================

// CreatePartner registers a partner. An empty code is generated as
// CSi_Partner_N, one past the highest existing suffix.
func (sv *Service) CreatePartner(ctx context.Context, p *Partner) error {
	if p.Name == "" {
		return &ValidationError{Field: "name", Reason: "partner name is required"}
	}
	return sv.store.WithTx(ctx, func(s Store) error {
		if p.PartnerCode == "" {
			partners, err := s.ListPartners(ctx)
			if err != nil {
				return err
			}
			p.PartnerCode = nextPartnerCode(partners)
		}
		return s.CreatePartner(ctx, p)
	})
}

func (sv *Service) GetPartner(ctx context.Context, id PartnerID) (*Partner, error) {
	return sv.store.GetPartner(ctx, id)
}

func (sv *Service) ListPartners(ctx context.Context) ([]Partner, error) {
	return sv.store.ListPartners(ctx)
}

func nextPartnerCode(partners []Partner) string {
	max := 0
	for _, p := range partners {
		suffix, ok := strings.CutPrefix(p.PartnerCode, partnerCodePrefix)
		if !ok {
			continue
		}
		if n, err := strconv.Atoi(suffix); err == nil && n > max {
			max = n
		}
	}
	return fmt.Sprintf("%s%d", partnerCodePrefix, max+1)
}
