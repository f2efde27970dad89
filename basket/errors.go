/*
errors.go - Centralized error types for the basket engine

PURPOSE:
  All error types in one place for consistency and discoverability.
  Callers classify errors with the predicates at the bottom instead of
  matching concrete types.

ERROR CATEGORIES:
  1. Not-found errors - referenced item/discount no longer present;
     mutating operations treat these as safe no-ops, not hard failures
  2. Validation errors - the backend rejected a discount/addon
     combination, with field-level messages attached
  3. Network errors - transient backend failures; no partial state
     change has occurred and the action may be re-issued by the user
     (the engine itself never retries)

USAGE:
  st, err := svc.UpdateAddons(ctx, basketID, itemID, addons)
  if basket.IsTransient(err) {
      // surface a transient message, state is unchanged
  }

SEE ALSO:
  - service.go: Converts backend failures into unchanged-state results
  - backend/httpclient: Maps HTTP failures onto these types
*/
package basket

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrItemNotFound is returned when a referenced basket item is absent
	// from the current state. Mutations treat this as a no-op.
	ErrItemNotFound = errors.New("basket item not found")

	// ErrItemNotPresent is returned when an operation requires a fully
	// added item but the target is still pending.
	ErrItemNotPresent = errors.New("basket item not present yet")

	// ErrDiscountNotFound is returned when a referenced discount id is not
	// in the session discount list.
	ErrDiscountNotFound = errors.New("discount not found")

	// ErrDiscountNotUsable is returned when a discount's state is not VALID.
	ErrDiscountNotUsable = errors.New("discount not in usable state")

	// ErrDiscountAlreadyApplied is returned when a percentual discount is
	// verified against an item while still assigned to another one.
	ErrDiscountAlreadyApplied = errors.New("discount already applied to another item")

	// ErrNoCodeDiscount is returned when removing a code discount from an
	// item that has none.
	ErrNoCodeDiscount = errors.New("no code discount on item")

	// ErrBackendUnavailable is the root of all transient backend failures.
	ErrBackendUnavailable = errors.New("booking backend unavailable")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// ValidationError is a backend rejection of a discount/addon/passenger
// combination, with optional field-level messages.
type ValidationError struct {
	Message string
	Fields  map[string]string
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return e.Message
	}
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = k + ": " + e.Fields[k]
	}
	return fmt.Sprintf("%s (%s)", e.Message, strings.Join(parts, ", "))
}

// NetworkError wraps a transport-level failure of a backend call.
// No partial state change has occurred when one is returned.
type NetworkError struct {
	Op  string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *NetworkError) Unwrap() error { return ErrBackendUnavailable }

// NotFoundError reports a missing item or discount with its id.
type NotFoundError struct {
	Kind string // "item" or "discount"
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Kind, e.ID)
}

func (e *NotFoundError) Unwrap() error {
	if e.Kind == "discount" {
		return ErrDiscountNotFound
	}
	return ErrItemNotFound
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsNotFound returns true if the error indicates a missing item or discount.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrItemNotFound) ||
		errors.Is(err, ErrDiscountNotFound)
}

// IsTransient returns true if the error is a transient backend failure
// and the same user action may be issued again.
func IsTransient(err error) bool {
	return errors.Is(err, ErrBackendUnavailable)
}

// IsClientError returns true if the error is due to invalid client input
// or a server-side rejection of the requested combination.
func IsClientError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve) ||
		errors.Is(err, ErrDiscountNotUsable) ||
		errors.Is(err, ErrDiscountAlreadyApplied) ||
		errors.Is(err, ErrNoCodeDiscount) ||
		errors.Is(err, ErrItemNotPresent)
}
