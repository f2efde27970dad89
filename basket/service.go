/*
service.go - Basket lifecycle orchestration

PURPOSE:
  Drives the basket through its lifecycle against a remote booking
  backend: adding items (three concurrent fetches joined all-or-nothing),
  removing them, re-verifying addon selections, applying and removing
  code and percentual discounts, refreshing the session discount list,
  seat edits and passenger prefill.

STATE CONTAINER:
  The service is the state-container boundary. Every mutation is a
  load -> reduce -> save cycle under a per-basket lock, so each
  transition is applied atomically and observers only ever see complete
  snapshots.

BACKEND FAILURES:
  Backend verification can fail (network or validation). On failure the
  reducer is never invoked: the snapshot is left exactly as it was and
  the error is surfaced to the caller. The service never retries; each
  user action runs at most once.

LATE RESPONSES:
  In-flight backend calls are not cancelled when the user removes an
  item or the basket expires. A response arriving for a missing item
  reduces to a no-op instead of throwing.

SEE ALSO:
  - state.go: The reducer the service dispatches into
  - discount.go: Reconciliation triggered on every baseline change
  - backend/httpclient: Production Backend implementation
*/
package basket

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// =============================================================================
// COLLABORATOR INTERFACES
// =============================================================================

// Verification is the backend's answer to a discount verification call.
type Verification struct {
	Amount                float64
	Currency              Currency
	DiscountedTicketPrice float64
}

// Backend is the narrow slice of the remote booking API the engine
// needs. Transport, headers and auth are entirely the implementation's
// concern.
type Backend interface {
	// FetchAddons returns the addons available for a route and fare tier.
	FetchAddons(ctx context.Context, route Route, pc PriceClass) ([]Addon, error)

	// FetchPassengerDataRequirements returns which passenger fields the
	// carrier requires for this trip.
	FetchPassengerDataRequirements(ctx context.Context, route Route, pc PriceClass) (PassengerDataRequirements, error)

	// FetchFreeSeats returns the free seats per trip section.
	FetchFreeSeats(ctx context.Context, route Route) ([]SectionSeats, error)

	// VerifyAddonSelection must succeed before an addon change is
	// accepted locally.
	VerifyAddonSelection(ctx context.Context, route Route, addons []Addon) error

	// VerifyPercentualDiscount verifies a discount against an item at the
	// given baseline ticket price.
	VerifyPercentualDiscount(ctx context.Context, discountID DiscountID, item BasketItem, ticketPrice float64) (Verification, error)

	// VerifyCodeDiscount verifies a promo code against an item at the
	// given ticket price.
	VerifyCodeDiscount(ctx context.Context, code string, item BasketItem, ticketPrice float64) (Verification, error)

	// FetchUserPercentualDiscounts returns the user's discounts for this
	// session.
	FetchUserPercentualDiscounts(ctx context.Context) ([]Discount, error)
}

// StateStore persists basket snapshots. Implementations must return
// snapshots that the caller may mutate freely.
type StateStore interface {
	Load(ctx context.Context, id BasketID) (State, error)
	Save(ctx context.Context, id BasketID, state State) error
	List(ctx context.Context) ([]BasketID, error)
}

// =============================================================================
// SERVICE
// =============================================================================

// Service orchestrates basket lifecycle operations.
type Service struct {
	Store   StateStore
	Backend Backend

	mu    sync.Mutex
	locks map[BasketID]*sync.Mutex
}

// NewService creates a basket service over a store and a backend.
func NewService(store StateStore, backend Backend) *Service {
	return &Service{
		Store:   store,
		Backend: backend,
		locks:   make(map[BasketID]*sync.Mutex),
	}
}

// lockFor returns the per-basket mutex, creating it on first use.
func (s *Service) lockFor(id BasketID) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[id]
	if !ok {
		l = &sync.Mutex{}
		s.locks[id] = l
	}
	return l
}

// apply runs one atomic load -> fn -> reduce -> save cycle. fn inspects
// the current snapshot and returns the actions to dispatch; returning an
// error leaves the stored snapshot untouched.
func (s *Service) apply(ctx context.Context, id BasketID, fn func(State) ([]Action, error)) (State, error) {
	l := s.lockFor(id)
	l.Lock()
	defer l.Unlock()

	st, err := s.Store.Load(ctx, id)
	if err != nil {
		return State{}, fmt.Errorf("load basket %s: %w", id, err)
	}

	actions, err := fn(st)
	if err != nil {
		return st, err
	}
	if len(actions) == 0 {
		return st, nil
	}

	next := ReduceAll(st, actions...)
	if err := s.Store.Save(ctx, id, next); err != nil {
		return st, fmt.Errorf("save basket %s: %w", id, err)
	}
	return next, nil
}

// State returns the current snapshot of a basket.
func (s *Service) State(ctx context.Context, id BasketID) (State, error) {
	return s.Store.Load(ctx, id)
}

// =============================================================================
// ADD / REMOVE
// =============================================================================

// AddItem adds a route+fare selection to the basket. The item is pending
// while addons, passenger-data requirements and free seats are fetched
// concurrently; all three must succeed or the item never materializes.
// Deduplicating rapid double-adds for the same route is the caller's
// responsibility.
func (s *Service) AddItem(ctx context.Context, basketID BasketID, route Route, pc PriceClass) (BasketItem, error) {
	itemID := ItemID(uuid.NewString())

	if _, err := s.apply(ctx, basketID, func(State) ([]Action, error) {
		return []Action{ItemAdding{ItemID: itemID, Route: route, PriceClass: pc}}, nil
	}); err != nil {
		return BasketItem{}, err
	}

	var (
		wg       sync.WaitGroup
		addons   []Addon
		reqs     PassengerDataRequirements
		seats    []SectionSeats
		fetchErr [3]error
	)
	wg.Add(3)
	go func() {
		defer wg.Done()
		addons, fetchErr[0] = s.Backend.FetchAddons(ctx, route, pc)
	}()
	go func() {
		defer wg.Done()
		reqs, fetchErr[1] = s.Backend.FetchPassengerDataRequirements(ctx, route, pc)
	}()
	go func() {
		defer wg.Done()
		seats, fetchErr[2] = s.Backend.FetchFreeSeats(ctx, route)
	}()
	wg.Wait()

	for _, err := range fetchErr {
		if err != nil {
			// All-or-nothing: roll the pending item back to absent.
			s.apply(ctx, basketID, func(State) ([]Action, error) {
				return []Action{ItemAddFailed{ItemID: itemID}}, nil
			})
			return BasketItem{}, err
		}
	}

	st, err := s.apply(ctx, basketID, func(State) ([]Action, error) {
		return []Action{ItemAdded{
			ItemID:        itemID,
			Addons:        addons,
			PassengerData: reqs,
			FreeSeats:     seats,
			At:            time.Now(),
		}}, nil
	})
	if err != nil {
		return BasketItem{}, err
	}

	item, ok := st.Item(itemID)
	if !ok {
		// Basket was cleared while the fetches were in flight.
		return BasketItem{}, &NotFoundError{Kind: "item", ID: string(itemID)}
	}
	return item, nil
}

// RemoveItem removes an item synchronously; no backend round-trip is
// involved. Percentual discounts assigned to the item return to the
// unassigned pool. Removing a missing id is a no-op.
func (s *Service) RemoveItem(ctx context.Context, basketID BasketID, itemID ItemID) (State, error) {
	return s.apply(ctx, basketID, func(State) ([]Action, error) {
		return []Action{ItemRemoved{ItemID: itemID}}, nil
	})
}

// Clear removes all items en masse.
func (s *Service) Clear(ctx context.Context, basketID BasketID) (State, error) {
	return s.apply(ctx, basketID, func(State) ([]Action, error) {
		return []Action{BasketCleared{}}, nil
	})
}

// =============================================================================
// ADDONS
// =============================================================================

// UpdateAddons re-verifies the complete addon selection against the
// backend and, on success, replaces the item's full addon list. On
// failure the list is left as it was and the error is surfaced as a
// transient condition.
func (s *Service) UpdateAddons(ctx context.Context, basketID BasketID, itemID ItemID, addons []Addon) (State, error) {
	return s.apply(ctx, basketID, func(st State) ([]Action, error) {
		item, err := presentItem(st, itemID)
		if err != nil {
			return nil, err
		}
		if err := s.Backend.VerifyAddonSelection(ctx, item.Route, addons); err != nil {
			return nil, err
		}
		return []Action{AddonsReplaced{ItemID: itemID, Addons: addons}}, nil
	})
}

// =============================================================================
// CODE DISCOUNTS
// =============================================================================

// ApplyCodeDiscount verifies a promo code against the item and applies
// it, replacing any previous code unconditionally. Percentual discounts
// on the item are reconciled against the new post-code baseline.
func (s *Service) ApplyCodeDiscount(ctx context.Context, basketID BasketID, itemID ItemID, code string, isCredit bool) (State, error) {
	return s.apply(ctx, basketID, func(st State) ([]Action, error) {
		item, err := presentItem(st, itemID)
		if err != nil {
			return nil, err
		}

		ticket := TicketPrice(item, isCredit)
		v, err := s.Backend.VerifyCodeDiscount(ctx, code, item, ticket)
		if err != nil {
			return nil, err
		}

		cd := &CodeDiscount{
			Code:                  code,
			Amount:                v.Amount,
			Currency:              v.Currency,
			DiscountedTicketPrice: v.DiscountedTicketPrice,
		}
		applied := RecalculatePercentualDiscounts(
			v.DiscountedTicketPrice, st.Discounts, st.Applied, itemID, item.ItemCurrency())
		return []Action{
			CodeDiscountSet{ItemID: itemID, Discount: cd},
			DiscountsReconciled{Applied: applied},
		}, nil
	})
}

// RemoveCodeDiscount drops the item's code discount. The percentual
// baseline is the discounted ticket price with the code amount added
// back (the price in effect before the code was applied).
func (s *Service) RemoveCodeDiscount(ctx context.Context, basketID BasketID, itemID ItemID) (State, error) {
	return s.apply(ctx, basketID, func(st State) ([]Action, error) {
		item, err := presentItem(st, itemID)
		if err != nil {
			return nil, err
		}
		if item.CodeDiscount == nil {
			return nil, ErrNoCodeDiscount
		}

		baseline := item.CodeDiscount.DiscountedTicketPrice + item.CodeDiscount.Amount
		applied := RecalculatePercentualDiscounts(
			baseline, st.Discounts, st.Applied, itemID, item.ItemCurrency())
		return []Action{
			CodeDiscountSet{ItemID: itemID, Discount: nil},
			DiscountsReconciled{Applied: applied},
		}, nil
	})
}

// =============================================================================
// PERCENTUAL DISCOUNTS
// =============================================================================

// ApplyPercentualDiscount verifies a user discount against an item and
// assigns it. The verification baseline is the item's code-discounted
// ticket price; the reconciliation engine then recomputes every discount
// assigned to the item sequentially from that baseline.
func (s *Service) ApplyPercentualDiscount(ctx context.Context, basketID BasketID, itemID ItemID, discountID DiscountID, isCredit bool) (State, error) {
	return s.apply(ctx, basketID, func(st State) ([]Action, error) {
		item, err := presentItem(st, itemID)
		if err != nil {
			return nil, err
		}
		discount, ok := findDiscount(st.Discounts, discountID)
		if !ok {
			return nil, &NotFoundError{Kind: "discount", ID: string(discountID)}
		}
		if discount.State != DiscountValid {
			return nil, ErrDiscountNotUsable
		}
		if ap, ok := st.Applied[discountID]; ok && ap.ItemID != itemID {
			return nil, ErrDiscountAlreadyApplied
		}

		baseline := DiscountedTicketPrice(item, isCredit)
		v, err := s.Backend.VerifyPercentualDiscount(ctx, discountID, item, baseline)
		if err != nil {
			return nil, err
		}

		applied := st.Applied.Clone()
		applied[discountID] = Applied{
			ItemID:                itemID,
			Amount:                v.Amount,
			Currency:              v.Currency,
			DiscountedTicketPrice: v.DiscountedTicketPrice,
		}
		applied = RecalculatePercentualDiscounts(
			baseline, st.Discounts, applied, itemID, item.ItemCurrency())
		return []Action{DiscountsReconciled{Applied: applied}}, nil
	})
}

// RemovePercentualDiscount unassigns a discount from its item and
// reconciles the remaining discounts on that item against the price in
// effect before any percentual discount was applied.
func (s *Service) RemovePercentualDiscount(ctx context.Context, basketID BasketID, discountID DiscountID, isCredit bool) (State, error) {
	return s.apply(ctx, basketID, func(st State) ([]Action, error) {
		ap, ok := st.Applied[discountID]
		if !ok {
			return nil, &NotFoundError{Kind: "discount", ID: string(discountID)}
		}
		item, err := presentItem(st, ap.ItemID)
		if err != nil {
			return nil, err
		}

		applied := st.Applied.Clone()
		delete(applied, discountID)

		baseline := DiscountedTicketPrice(item, isCredit)
		applied = RecalculatePercentualDiscounts(
			baseline, st.Discounts, applied, ap.ItemID, item.ItemCurrency())
		return []Action{DiscountsReconciled{Applied: applied}}, nil
	})
}

// RefreshDiscounts fetches the user's discount list from the backend.
// If the refreshed list differs from the current one (ignoring applied
// state) it replaces it wholesale and all assignments are lost; if it is
// identical the current state, applied annotations included, is kept.
func (s *Service) RefreshDiscounts(ctx context.Context, basketID BasketID) (State, error) {
	return s.apply(ctx, basketID, func(st State) ([]Action, error) {
		fresh, err := s.Backend.FetchUserPercentualDiscounts(ctx)
		if err != nil {
			return nil, err
		}
		if SameDiscountList(st.Discounts, fresh) {
			return nil, nil
		}
		return []Action{DiscountsReplaced{Discounts: fresh}}, nil
	})
}

// =============================================================================
// SEATS / PASSENGERS
// =============================================================================

// SelectSeats replaces the per-section seat selection on a present item.
func (s *Service) SelectSeats(ctx context.Context, basketID BasketID, itemID ItemID, seats []SectionSeats) (State, error) {
	return s.apply(ctx, basketID, func(st State) ([]Action, error) {
		if _, err := presentItem(st, itemID); err != nil {
			return nil, err
		}
		return []Action{SeatsSelected{ItemID: itemID, Seats: seats}}, nil
	})
}

// MarkSpecialSeat flags one selected seat as special-needs.
func (s *Service) MarkSpecialSeat(ctx context.Context, basketID BasketID, itemID ItemID, sectionID, seatIndex string, special bool) (State, error) {
	return s.apply(ctx, basketID, func(st State) ([]Action, error) {
		if _, err := presentItem(st, itemID); err != nil {
			return nil, err
		}
		return []Action{SpecialSeatMarked{ItemID: itemID, SectionID: sectionID, SeatIndex: seatIndex, Special: special}}, nil
	})
}

// PrefillPassengers stores passenger records on a present item.
func (s *Service) PrefillPassengers(ctx context.Context, basketID BasketID, itemID ItemID, passengers []Passenger) (State, error) {
	return s.apply(ctx, basketID, func(st State) ([]Action, error) {
		if _, err := presentItem(st, itemID); err != nil {
			return nil, err
		}
		return []Action{PassengersSet{ItemID: itemID, Passengers: passengers}}, nil
	})
}

// =============================================================================
// EXPIRY
// =============================================================================

// ClearExpired clears every non-empty basket whose LastChange is older
// than the expiry window. Returns the ids that were cleared. Empty
// baskets are never inspected.
func (s *Service) ClearExpired(ctx context.Context, now time.Time, window time.Duration) ([]BasketID, error) {
	ids, err := s.Store.List(ctx)
	if err != nil {
		return nil, err
	}

	var cleared []BasketID
	for _, id := range ids {
		st, err := s.Store.Load(ctx, id)
		if err != nil {
			return cleared, err
		}
		if st.IsEmpty() || !st.LastChange.Before(now.Add(-window)) {
			continue
		}
		if _, err := s.Clear(ctx, id); err != nil {
			return cleared, err
		}
		cleared = append(cleared, id)
	}
	return cleared, nil
}

// =============================================================================
// HELPERS
// =============================================================================

func presentItem(st State, id ItemID) (BasketItem, error) {
	item, ok := st.Item(id)
	if !ok {
		return BasketItem{}, &NotFoundError{Kind: "item", ID: string(id)}
	}
	if item.Status != StatusPresent {
		return BasketItem{}, ErrItemNotPresent
	}
	return item, nil
}

func findDiscount(discounts []Discount, id DiscountID) (Discount, bool) {
	for _, d := range discounts {
		if d.ID == id {
			return d, true
		}
	}
	return Discount{}, false
}
