/*
reconcile.go - Structural reconciliation of the bid hierarchy

PURPOSE:
  Converges the stored PartnerResponse and AllocationCell sets to a
  desired roster of {partners} x {LOIs} and {audiences} x {countries}
  without discarding operator-entered leaf data for combinations that
  survive the edit. This is the central algorithm of the system.

THE CENTRAL INVARIANT:
  Never regress a value the operator already set because of an unrelated
  structural edit. A partner's currency/PMF, and a cell's commitment/CPI/
  timeline/comments, are carried forward verbatim whenever their key
  still exists after the edit. New keys start from neutral defaults.

MERGE SHAPE:
  Each hierarchy level is an explicit three-way merge over composite-key
  maps: (existing set, desired set, preserve-fields contract). No string
  key concatenation anywhere.

IDEMPOTENCE:
  Running any reconcile twice with the same desired state produces the
  same stored graph: upserts target the uniqueness keys, placeholder
  creation is existence-guarded, and deletes are computed as set
  differences.

CONFLICTS:
  A unique-constraint violation on an upsert path is treated as a
  transient condition and retried exactly once before surfacing
  ErrConflict (a concurrent writer may have landed the row between
  snapshot and write).

SEE ALSO:
  - store.go: transaction and uniqueness contract
  - types.go: composite key types
*/
package bidding

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// DefaultCurrency is applied to a partner response slot the first time it
// is created by a structural edit, before the operator enters terms.
const DefaultCurrency = "USD"

// audienceCountry keys one (audience, country) pair during merges.
type audienceCountry struct {
	Audience AudienceID
	Country  string
}

// Reconciler converges stored rosters to desired rosters.
type Reconciler struct {
	store TxStore
}

func NewReconciler(store TxStore) *Reconciler {
	return &Reconciler{store: store}
}

// RosterInput is the full desired shape of a bid used by ReconcileRoster.
type RosterInput struct {
	Partners  []PartnerID
	LOIs      []int
	Audiences []TargetAudience
	Countries []string
}

// ReconcileRoster converges every structural level of one bid in a single
// transaction: audiences first (identity-based merge), then the country
// roster (targets plus placeholder cells), then the partner/LOI roster
// (responses plus carried-forward cells).
func (r *Reconciler) ReconcileRoster(ctx context.Context, bidID BidID, in RosterInput) error {
	return r.store.WithTx(ctx, func(s Store) error {
		if _, err := s.GetBid(ctx, bidID); err != nil {
			return err
		}
		if err := r.mergeAudiences(ctx, s, bidID, in.Audiences); err != nil {
			return err
		}
		if err := r.mergeCountries(ctx, s, bidID, in.Countries); err != nil {
			return err
		}
		return r.mergeResponses(ctx, s, bidID, in.Partners, in.LOIs)
	})
}

// ReconcilePartners converges only the {partners} x {LOIs} roster.
func (r *Reconciler) ReconcilePartners(ctx context.Context, bidID BidID, partners []PartnerID, lois []int) error {
	return r.store.WithTx(ctx, func(s Store) error {
		if _, err := s.GetBid(ctx, bidID); err != nil {
			return err
		}
		return r.mergeResponses(ctx, s, bidID, partners, lois)
	})
}

// ReconcileCountries converges only the country roster.
func (r *Reconciler) ReconcileCountries(ctx context.Context, bidID BidID, countries []string) error {
	return r.store.WithTx(ctx, func(s Store) error {
		if _, err := s.GetBid(ctx, bidID); err != nil {
			return err
		}
		return r.mergeCountries(ctx, s, bidID, countries)
	})
}

// ReconcileAudiences converges only the audience set.
func (r *Reconciler) ReconcileAudiences(ctx context.Context, bidID BidID, audiences []TargetAudience) error {
	return r.store.WithTx(ctx, func(s Store) error {
		if _, err := s.GetBid(ctx, bidID); err != nil {
			return err
		}
		return r.mergeAudiences(ctx, s, bidID, audiences)
	})
}

// =============================================================================
// AUDIENCE MERGE - identity-based three-way merge
// =============================================================================

// mergeAudiences updates audiences present with an identifier, inserts
// audiences without one, and deletes audiences absent from the desired
// set (cascading to country targets and cells). Country samples under an
// updated audience are merged the same way, keyed by country.
func (r *Reconciler) mergeAudiences(ctx context.Context, s Store, bidID BidID, desired []TargetAudience) error {
	existing, err := s.ListAudiences(ctx, bidID)
	if err != nil {
		return err
	}
	existingByID := make(map[AudienceID]TargetAudience, len(existing))
	for _, a := range existing {
		existingByID[a.ID] = a
	}

	seen := make(map[AudienceID]bool, len(desired))
	for i := range desired {
		a := desired[i]
		a.BidID = bidID
		if len(a.CountrySamples) == 0 {
			return &ValidationError{Field: "country_samples", Reason: fmt.Sprintf("audience %q has no country samples", a.Name)}
		}

		if _, ok := existingByID[a.ID]; a.ID != 0 && ok {
			if err := s.UpdateAudience(ctx, &a); err != nil {
				return err
			}
			seen[a.ID] = true
		} else {
			a.ID = 0
			if err := s.InsertAudience(ctx, &a); err != nil {
				return err
			}
		}

		if err := r.mergeCountrySamples(ctx, s, bidID, &a); err != nil {
			return err
		}
	}

	// An audience not named in the update cycle is deleted, along with its
	// country targets and cells.
	for _, a := range existing {
		if !seen[a.ID] {
			if err := s.DeleteAudience(ctx, a.ID); err != nil {
				return err
			}
		}
	}
	return nil
}

// mergeCountrySamples converges one audience's country targets to its
// CountrySamples map.
func (r *Reconciler) mergeCountrySamples(ctx context.Context, s Store, bidID BidID, a *TargetAudience) error {
	targets, err := s.ListCountryTargets(ctx, bidID)
	if err != nil {
		return err
	}
	current := make(map[string]bool)
	for _, t := range targets {
		if t.AudienceID == a.ID {
			current[t.Country] = true
		}
	}

	for country, sample := range a.CountrySamples {
		err := upsertOnce(func() error {
			return s.UpsertCountryTarget(ctx, &CountryTarget{
				BidID:      bidID,
				AudienceID: a.ID,
				Country:    country,
				SampleSize: sample,
			})
		})
		if err != nil {
			return err
		}
		delete(current, country)
	}
	for country := range current {
		if err := s.DeleteCountryTarget(ctx, a.ID, country); err != nil {
			return err
		}
	}
	return nil
}

// =============================================================================
// COUNTRY MERGE - bid-level roster changes
// =============================================================================

// mergeCountries handles a change to the bid-level country roster,
// independent of the partner/LOI roster. Countries dropped from the list
// lose their targets and cells; new countries gain a target per audience
// and a placeholder cell per existing partner response, with a neutral
// zero CPI. The existence guard makes a re-run a no-op.
func (r *Reconciler) mergeCountries(ctx context.Context, s Store, bidID BidID, countries []string) error {
	desired := make(map[string]bool, len(countries))
	for _, c := range countries {
		desired[c] = true
	}

	targets, err := s.ListCountryTargets(ctx, bidID)
	if err != nil {
		return err
	}
	current := make(map[string]bool)
	for _, t := range targets {
		current[t.Country] = true
	}

	for country := range current {
		if !desired[country] {
			if err := s.DeleteCountry(ctx, bidID, country); err != nil {
				return err
			}
		}
	}

	audiences, err := s.ListAudiences(ctx, bidID)
	if err != nil {
		return err
	}
	haveTarget := make(map[audienceCountry]bool, len(targets))
	for _, t := range targets {
		haveTarget[audienceCountry{t.AudienceID, t.Country}] = true
	}

	var added []CountryTarget
	for _, country := range countries {
		for _, a := range audiences {
			if haveTarget[audienceCountry{a.ID, country}] {
				continue
			}
			t := CountryTarget{
				BidID:      bidID,
				AudienceID: a.ID,
				Country:    country,
				SampleSize: a.CountrySamples[country],
			}
			if err := upsertOnce(func() error { return s.UpsertCountryTarget(ctx, &t) }); err != nil {
				return err
			}
			added = append(added, t)
		}
	}

	if len(added) == 0 {
		return nil
	}

	// Cross product of existing responses x new (audience, country) pairs:
	// thin placeholder cells so field allocation has a row to write into.
	responses, err := s.ListResponses(ctx, bidID)
	if err != nil {
		return err
	}
	for _, resp := range responses {
		for _, t := range added {
			cell := AllocationCell{
				BidID:      bidID,
				ResponseID: resp.ID,
				AudienceID: t.AudienceID,
				Country:    t.Country,
				CPI:        decimal.Zero,
			}
			if err := s.InsertCellIfAbsent(ctx, &cell); err != nil {
				return err
			}
		}
	}
	return nil
}

// =============================================================================
// PARTNER/LOI MERGE - responses and carried-forward cells
// =============================================================================

// mergeResponses converges the PartnerResponse set to {partners} x {LOIs}
// and re-inserts surviving cells with their previous field values.
//
// Slots that existed before keep their commercial and invoice fields.
// Slots removed from the roster are left in place (orphaned responses may
// carry invoice data and are never silently deleted) but accumulate no
// new cells. Brand-new slots get no cells at all; those wait for explicit
// partner data entry or country-addition placeholders.
func (r *Reconciler) mergeResponses(ctx context.Context, s Store, bidID BidID, partners []PartnerID, lois []int) error {
	existing, err := s.ListResponses(ctx, bidID)
	if err != nil {
		return err
	}
	existingByKey := make(map[ResponseKey]PartnerResponse, len(existing))
	for _, resp := range existing {
		existingByKey[resp.Key()] = resp
	}

	cells, err := s.ListCells(ctx, bidID)
	if err != nil {
		return err
	}
	cellsByResponse := make(map[ResponseID][]AllocationCell)
	for _, c := range cells {
		cellsByResponse[c.ResponseID] = append(cellsByResponse[c.ResponseID], c)
	}

	// Valid (audience, country) pairs after the structural edit.
	targets, err := s.ListCountryTargets(ctx, bidID)
	if err != nil {
		return err
	}
	validPair := make(map[audienceCountry]bool, len(targets))
	for _, t := range targets {
		validPair[audienceCountry{t.AudienceID, t.Country}] = true
	}

	for _, partner := range partners {
		for _, loi := range lois {
			key := ResponseKey{Partner: partner, LOI: loi}
			prev, existed := existingByKey[key]

			resp := PartnerResponse{
				BidID:    bidID,
				Partner:  partner,
				LOI:      loi,
				Currency: DefaultCurrency,
				Status:   ResponseDraft,
			}
			if existed {
				// Preserve operator-entered commercial and invoice fields.
				resp = prev
			}
			if err := upsertOnce(func() error { return s.UpsertResponse(ctx, &resp) }); err != nil {
				return err
			}

			if !existed {
				continue
			}
			for _, cell := range cellsByResponse[prev.ID] {
				if !validPair[audienceCountry{cell.AudienceID, cell.Country}] {
					continue
				}
				// Re-insert with previous field values carried forward
				// verbatim; the upsert contract leaves closure and invoice
				// data on the stored row untouched.
				carry := cell
				carry.ResponseID = resp.ID
				if err := upsertOnce(func() error { return s.UpsertCell(ctx, &carry) }); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

// =============================================================================
// OPERATOR DATA ENTRY
// =============================================================================

// ResponseEntry is one partner/LOI slot of operator-entered commercial
// terms with its per-audience, per-country offer lines.
type ResponseEntry struct {
	Partner  PartnerID
	LOI      int
	Currency string
	PMF      decimal.Decimal
	Status   ResponseStatus
	Cells    []CellEntry
}

// CellEntry is one offer line for a (audience, country) pair.
type CellEntry struct {
	AudienceID   AudienceID
	Country      string
	Commitment   int
	CPI          decimal.Decimal
	TimelineDays int
	Comments     string
}

// SaveResponses records operator-entered partner terms and offer lines,
// upserting against the uniqueness keys so repeated saves converge. Every
// offer line must address a (audience, country) pair that has a country
// target under this bid; a line pointing at another bid's audience or at
// an untargeted country is rejected before anything is written.
func (r *Reconciler) SaveResponses(ctx context.Context, bidID BidID, entries []ResponseEntry) error {
	return r.store.WithTx(ctx, func(s Store) error {
		if _, err := s.GetBid(ctx, bidID); err != nil {
			return err
		}
		targets, err := s.ListCountryTargets(ctx, bidID)
		if err != nil {
			return err
		}
		validPair := make(map[audienceCountry]bool, len(targets))
		for _, t := range targets {
			validPair[audienceCountry{t.AudienceID, t.Country}] = true
		}
		for _, e := range entries {
			for _, line := range e.Cells {
				if !validPair[audienceCountry{line.AudienceID, line.Country}] {
					return &ValidationError{
						Field:  "cells",
						Reason: fmt.Sprintf("audience %d has no country target for %q in this bid", line.AudienceID, line.Country),
					}
				}
			}
			resp := PartnerResponse{
				BidID:    bidID,
				Partner:  e.Partner,
				LOI:      e.LOI,
				Currency: e.Currency,
				PMF:      e.PMF,
				Status:   e.Status,
			}
			if resp.Currency == "" {
				resp.Currency = DefaultCurrency
			}
			if resp.Status == "" {
				resp.Status = ResponseDraft
			}
			if prev, err := s.GetResponse(ctx, bidID, e.Partner, e.LOI); err == nil {
				// Keep invoice fields the operator may have recorded.
				resp.InvoiceDate = prev.InvoiceDate
				resp.InvoiceSent = prev.InvoiceSent
				resp.InvoiceSerial = prev.InvoiceSerial
				resp.InvoiceNumber = prev.InvoiceNumber
				resp.InvoiceAmount = prev.InvoiceAmount
			} else if !IsNotFound(err) {
				return err
			}
			if err := upsertOnce(func() error { return s.UpsertResponse(ctx, &resp) }); err != nil {
				return err
			}

			for _, line := range e.Cells {
				cell := AllocationCell{
					BidID:        bidID,
					ResponseID:   resp.ID,
					AudienceID:   line.AudienceID,
					Country:      line.Country,
					Commitment:   line.Commitment,
					CPI:          line.CPI,
					TimelineDays: line.TimelineDays,
					Comments:     line.Comments,
				}
				if err := upsertOnce(func() error { return s.UpsertCell(ctx, &cell) }); err != nil {
					return err
				}
			}
		}
		return nil
	})
}

// upsertOnce retries a conflicting upsert exactly once. A conflict on the
// first attempt usually means a concurrent writer created the row between
// snapshot and write; the retry then takes the update path.
func upsertOnce(fn func() error) error {
	err := fn()
	if errors.Is(err, ErrConflict) {
		err = fn()
	}
	return err
}
