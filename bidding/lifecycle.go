/*
lifecycle.go - Bid status transitions and their side effects

PURPOSE:
  Governs the lifecycle state machine:

    draft -> infield -> closure -> ready_for_invoice -> invoiced

  Each transition may carry a side effect (PO number attachment on
  draft -> infield). Transitions run inside one transaction so a failed
  side effect rolls back the status flip.

RULES:
  - draft -> infield requires at least one partner response; a supplied
    PO number is upserted (at most one PO record per bid)
  - infield -> closure is a pure flip, addressed by bid_number
  - closure -> ready_for_invoice may be set directly by the caller
  - ready_for_invoice -> invoiced is idempotent: invoicing an already
    invoiced bid is a no-op success
  - anything else is an InvalidTransitionError

SEE ALSO:
  - status.go: the canonical vocabulary and normalization
*/
package bidding

import (
	"context"
	"log"
)

// Lifecycle applies status transitions to bids.
type Lifecycle struct {
	store TxStore
}

func NewLifecycle(store TxStore) *Lifecycle {
	return &Lifecycle{store: store}
}

// allowed enumerates the permitted forward edges of the state machine.
var allowed = map[Status][]Status{
	StatusDraft:           {StatusInField},
	StatusInField:         {StatusClosure},
	StatusClosure:         {StatusReadyForInvoice, StatusInvoiced},
	StatusReadyForInvoice: {StatusInvoiced},
}

func canTransition(from, to Status) bool {
	for _, next := range allowed[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Transition moves a bid to target, applying transition side effects.
// The incoming status string is normalized first; poNumber is optional
// and only meaningful when entering infield.
func (l *Lifecycle) Transition(ctx context.Context, bidID BidID, target string, poNumber string) error {
	status, ok := NormalizeStatus(target)
	if !ok {
		log.Printf("lifecycle: unmapped status %q passed through for bid %d", target, bidID)
	}

	return l.store.WithTx(ctx, func(s Store) error {
		bid, err := s.GetBid(ctx, bidID)
		if err != nil {
			return err
		}
		return l.apply(ctx, s, bid, status, poNumber)
	})
}

// TransitionByNumber is Transition addressed by bid_number instead of ID.
// The infield -> closure flip is triggered this way by the field team.
func (l *Lifecycle) TransitionByNumber(ctx context.Context, bidNumber string, target string, poNumber string) error {
	status, ok := NormalizeStatus(target)
	if !ok {
		log.Printf("lifecycle: unmapped status %q passed through for bid number %s", target, bidNumber)
	}

	return l.store.WithTx(ctx, func(s Store) error {
		bid, err := s.GetBidByNumber(ctx, bidNumber)
		if err != nil {
			return err
		}
		return l.apply(ctx, s, bid, status, poNumber)
	})
}

func (l *Lifecycle) apply(ctx context.Context, s Store, bid *Bid, target Status, poNumber string) error {
	current, _ := NormalizeStatus(string(bid.Status))

	if current == target {
		// Re-invoking a transition the bid has already made is a no-op
		// success; invoiced -> invoiced is the documented case.
		return nil
	}

	if !canTransition(current, target) {
		return &InvalidTransitionError{BidID: bid.ID, From: current, To: target}
	}

	if current == StatusDraft && target == StatusInField {
		n, err := s.CountResponses(ctx, bid.ID)
		if err != nil {
			return err
		}
		if n == 0 {
			return &InvalidTransitionError{
				BidID:  bid.ID,
				From:   current,
				To:     target,
				Reason: "bid has no partner responses",
			}
		}
		if poNumber != "" {
			if err := s.UpsertPONumber(ctx, bid.ID, poNumber); err != nil {
				return err
			}
		}
	}

	return s.SetBidStatus(ctx, bid.ID, target)
}
