/*
state.go - Basket state snapshot and reducer

PURPOSE:
  Models the basket as a single immutable state tree mutated only by
  pure transitions: Reduce(state, action) returns a new snapshot and
  never touches the old one. Applying each transition atomically at the
  state-container boundary makes the engine trivially safe to host in a
  multi-threaded process.

ITEM LIFECYCLE:

  ┌─────────────────────────────────────────────────────────────┐
  │                                                             │
  │   absent ──ItemAdding──▶ pendingAdd ──ItemAdded──▶ present  │
  │     ▲                        │                        │     │
  │     │                        │ ItemAddFailed          │     │
  │     ├────────────────────────┘                        │     │
  │     │                                                 │     │
  │     └──────────────ItemRemoved / BasketCleared────────┘     │
  │                                                             │
  └─────────────────────────────────────────────────────────────┘

  Absent and removed items are simply not in the snapshot; StatusOf
  answers StatusAbsent for them. While present, an item is mutated in
  place by addon replacement, discount changes, seat edits and
  passenger prefill.

DEFENSIVE NO-OPS:
  A response arriving for an item that no longer exists (user removed
  it mid-flight, basket expired) must not corrupt state. Every action
  targeting a missing item returns the snapshot unchanged.

SEE ALSO:
  - service.go: Dispatches actions and owns the container boundary
  - discount.go: AppliedState updated via DiscountsReconciled
*/
package basket

import (
	"time"
)

// =============================================================================
// STATE - The whole basket as one snapshot
// =============================================================================

// State is an immutable snapshot of one basket: its items in display
// order, the session discount list in verification order, the applied
// relation, and the expiry clock.
type State struct {
	Items     []BasketItem
	Discounts []Discount
	Applied   AppliedState

	// LastChange is refreshed each time an item lands in the basket.
	// The expiry sweeper clears the basket once now-window passes it.
	LastChange time.Time
}

// NewState returns an empty basket snapshot.
func NewState() State {
	return State{Applied: AppliedState{}}
}

// Item returns a copy of the item with the given id.
func (s State) Item(id ItemID) (BasketItem, bool) {
	for _, it := range s.Items {
		if it.ID == id {
			return it.clone(), true
		}
	}
	return BasketItem{}, false
}

// StatusOf reports the lifecycle state of an item id, StatusAbsent when
// the basket does not contain it.
func (s State) StatusOf(id ItemID) ItemStatus {
	for _, it := range s.Items {
		if it.ID == id {
			return it.Status
		}
	}
	return StatusAbsent
}

// IsEmpty reports whether the basket holds no items at all.
func (s State) IsEmpty() bool { return len(s.Items) == 0 }

// PresentItems returns copies of all fully added items.
func (s State) PresentItems() []BasketItem {
	var out []BasketItem
	for _, it := range s.Items {
		if it.Status == StatusPresent {
			out = append(out, it.clone())
		}
	}
	return out
}

// Clone returns a deep copy of the snapshot. Stores use it so persisted
// snapshots never alias snapshots handed to callers.
func (s State) Clone() State { return s.clone() }

// clone deep-copies the snapshot so reductions are copy-on-write.
func (s State) clone() State {
	out := State{
		Discounts:  append([]Discount(nil), s.Discounts...),
		Applied:    s.Applied.Clone(),
		LastChange: s.LastChange,
	}
	out.Items = make([]BasketItem, len(s.Items))
	for i, it := range s.Items {
		out.Items[i] = it.clone()
	}
	return out
}

// =============================================================================
// ACTIONS - Descriptors of state transitions
// =============================================================================

// Action describes one state transition. Reduce is the only consumer.
type Action interface {
	actionName() string
}

// ItemAdding registers the add-intent: the item enters pendingAdd while
// the backend fetches resolve.
type ItemAdding struct {
	ItemID     ItemID
	Route      Route
	PriceClass PriceClass
}

// ItemAdded completes the add: the three backend fetches all succeeded
// and the item becomes present with its data populated.
type ItemAdded struct {
	ItemID        ItemID
	Addons        []Addon
	PassengerData PassengerDataRequirements
	FreeSeats     []SectionSeats
	At            time.Time
}

// ItemAddFailed rolls a pending add back to absent. No partial item
// survives a failed fetch.
type ItemAddFailed struct {
	ItemID ItemID
}

// ItemRemoved drops an item. Percentual discounts assigned to it return
// to the unassigned pool; the discounts themselves are retained.
type ItemRemoved struct {
	ItemID ItemID
}

// BasketCleared removes all items en masse (expiry or manual clear).
type BasketCleared struct{}

// AddonsReplaced swaps the item's full addon list after verification.
type AddonsReplaced struct {
	ItemID ItemID
	Addons []Addon
}

// CodeDiscountSet sets or clears (nil) the item's code discount.
type CodeDiscountSet struct {
	ItemID   ItemID
	Discount *CodeDiscount
}

// DiscountsReconciled replaces the applied relation with the output of
// the reconciliation engine.
type DiscountsReconciled struct {
	Applied AppliedState
}

// DiscountsReplaced replaces the session discount list wholesale.
// All applied state is lost and must be re-verified.
type DiscountsReplaced struct {
	Discounts []Discount
}

// PassengersSet stores prefilled passenger records on the item.
type PassengersSet struct {
	ItemID     ItemID
	Passengers []Passenger
}

// SeatsSelected replaces the per-section seat selection on the item.
type SeatsSelected struct {
	ItemID ItemID
	Seats  []SectionSeats
}

// SpecialSeatMarked flags one selected seat as a special-needs seat.
type SpecialSeatMarked struct {
	ItemID    ItemID
	SectionID string
	SeatIndex string
	Special   bool
}

func (ItemAdding) actionName() string          { return "item_adding" }
func (ItemAdded) actionName() string           { return "item_added" }
func (ItemAddFailed) actionName() string       { return "item_add_failed" }
func (ItemRemoved) actionName() string         { return "item_removed" }
func (BasketCleared) actionName() string       { return "basket_cleared" }
func (AddonsReplaced) actionName() string      { return "addons_replaced" }
func (CodeDiscountSet) actionName() string     { return "code_discount_set" }
func (DiscountsReconciled) actionName() string { return "discounts_reconciled" }
func (DiscountsReplaced) actionName() string   { return "discounts_replaced" }
func (PassengersSet) actionName() string       { return "passengers_set" }
func (SeatsSelected) actionName() string       { return "seats_selected" }
func (SpecialSeatMarked) actionName() string   { return "special_seat_marked" }

// =============================================================================
// REDUCER
// =============================================================================

// Reduce applies one action to a snapshot and returns the next snapshot.
// Pure: the input state is never mutated. Actions targeting missing or
// not-yet-present items reduce to the unchanged snapshot.
func Reduce(s State, action Action) State {
	switch a := action.(type) {
	case ItemAdding:
		if s.StatusOf(a.ItemID) != StatusAbsent {
			return s
		}
		next := s.clone()
		next.Items = append(next.Items, BasketItem{
			ID:                 a.ItemID,
			Status:             StatusPendingAdd,
			Route:              a.Route,
			SelectedPriceClass: a.PriceClass,
			Passengers:         []Passenger{},
		})
		return next

	case ItemAdded:
		next, item := s.findClone(a.ItemID)
		if item == nil || item.Status != StatusPendingAdd {
			return s
		}
		item.Status = StatusPresent
		item.Addons = append([]Addon(nil), a.Addons...)
		item.PassengerData = a.PassengerData
		item.Seats = append([]SectionSeats(nil), a.FreeSeats...)
		item.AddedAt = a.At
		next.LastChange = a.At
		return next

	case ItemAddFailed:
		if s.StatusOf(a.ItemID) != StatusPendingAdd {
			return s
		}
		return s.withoutItem(a.ItemID)

	case ItemRemoved:
		if s.StatusOf(a.ItemID) == StatusAbsent {
			return s
		}
		return s.withoutItem(a.ItemID)

	case BasketCleared:
		if s.IsEmpty() {
			return s
		}
		next := s.clone()
		next.Items = nil
		next.Applied = AppliedState{}
		next.LastChange = time.Time{}
		return next

	case AddonsReplaced:
		next, item := s.findClone(a.ItemID)
		if item == nil || item.Status != StatusPresent {
			return s
		}
		item.Addons = append([]Addon(nil), a.Addons...)
		return next

	case CodeDiscountSet:
		next, item := s.findClone(a.ItemID)
		if item == nil || item.Status != StatusPresent {
			return s
		}
		if a.Discount == nil {
			item.CodeDiscount = nil
		} else {
			cd := *a.Discount
			item.CodeDiscount = &cd
		}
		return next

	case DiscountsReconciled:
		next := s.clone()
		next.Applied = a.Applied.Clone()
		// Defensive: drop any assignment whose item disappeared without
		// an explicit remove.
		for id, ap := range next.Applied {
			if next.StatusOf(ap.ItemID) != StatusPresent {
				delete(next.Applied, id)
			}
		}
		return next

	case DiscountsReplaced:
		next := s.clone()
		next.Discounts = append([]Discount(nil), a.Discounts...)
		next.Applied = AppliedState{}
		return next

	case PassengersSet:
		next, item := s.findClone(a.ItemID)
		if item == nil || item.Status != StatusPresent {
			return s
		}
		item.Passengers = append([]Passenger(nil), a.Passengers...)
		return next

	case SeatsSelected:
		next, item := s.findClone(a.ItemID)
		if item == nil || item.Status != StatusPresent {
			return s
		}
		item.Seats = make([]SectionSeats, len(a.Seats))
		for i, ss := range a.Seats {
			item.Seats[i] = SectionSeats{SectionID: ss.SectionID, Seats: append([]Seat(nil), ss.Seats...)}
		}
		return next

	case SpecialSeatMarked:
		next, item := s.findClone(a.ItemID)
		if item == nil || item.Status != StatusPresent {
			return s
		}
		changed := false
		for si := range item.Seats {
			if item.Seats[si].SectionID != a.SectionID {
				continue
			}
			for ki := range item.Seats[si].Seats {
				if item.Seats[si].Seats[ki].Index == a.SeatIndex {
					item.Seats[si].Seats[ki].SpecialNeeds = a.Special
					changed = true
				}
			}
		}
		if !changed {
			return s
		}
		return next

	default:
		return s
	}
}

// ReduceAll folds a sequence of actions over a snapshot.
func ReduceAll(s State, actions ...Action) State {
	for _, a := range actions {
		s = Reduce(s, a)
	}
	return s
}

// findClone clones the snapshot and returns a pointer into the clone's
// item slice, or nil when the id is absent.
func (s State) findClone(id ItemID) (State, *BasketItem) {
	for i, it := range s.Items {
		if it.ID == id {
			next := s.clone()
			return next, &next.Items[i]
		}
	}
	return s, nil
}

// withoutItem drops the item and clears applied relations pointing at it.
func (s State) withoutItem(id ItemID) State {
	next := s.clone()
	items := next.Items[:0]
	for _, it := range next.Items {
		if it.ID != id {
			items = append(items, it)
		}
	}
	next.Items = items
	for did, ap := range next.Applied {
		if ap.ItemID == id {
			delete(next.Applied, did)
		}
	}
	return next
}
