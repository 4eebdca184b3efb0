/*
errors.go - Centralized error types for the bidding engine

PURPOSE:
  All error types in one place. Callers match with errors.Is/errors.As;
  the HTTP layer maps them to response codes.

ERROR CATEGORIES:
  1. Not-found errors  - referenced bid/response/audience does not exist
  2. Conflict errors   - a uniqueness invariant would be violated and the
                         upsert path (plus its single retry) did not apply
  3. Transition errors - status change not permitted from current state
  4. Validation errors - missing required structural field
*/
package bidding

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrNotFound is returned when a referenced bid, partner response, or
	// audience does not exist.
	ErrNotFound = errors.New("not found")

	// ErrConflict is returned when a uniqueness invariant would be violated
	// and the intended upsert path did not apply. Reconciliation retries a
	// conflicting upsert exactly once before surfacing this.
	ErrConflict = errors.New("uniqueness conflict")

	// ErrInvalidTransition is returned when a status transition is not
	// permitted from the bid's current state.
	ErrInvalidTransition = errors.New("invalid status transition")

	// ErrValidation is returned when a structural field required by the
	// hierarchy is missing (e.g. an audience without country samples).
	ErrValidation = errors.New("validation failed")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// InvalidTransitionError reports a rejected lifecycle move.
type InvalidTransitionError struct {
	BidID  BidID
	From   Status
	To     Status
	Reason string
}

func (e *InvalidTransitionError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("cannot move bid %d from %q to %q: %s", e.BidID, e.From, e.To, e.Reason)
	}
	return fmt.Sprintf("cannot move bid %d from %q to %q", e.BidID, e.From, e.To)
}

func (e *InvalidTransitionError) Unwrap() error { return ErrInvalidTransition }

// ValidationError reports a missing or malformed structural field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsNotFound reports whether the error indicates a missing entity.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsClientError reports whether the error is due to invalid caller input
// rather than a system failure.
func IsClientError(err error) bool {
	return errors.Is(err, ErrInvalidTransition) ||
		errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrConflict)
}
