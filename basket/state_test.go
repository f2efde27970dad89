package basket_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/transitkit/basket-engine/basket"
)

// =============================================================================
// LIFECYCLE TESTS
// =============================================================================

func addedItem(st basket.State, id string, at time.Time) basket.State {
	item := czkItem(id, 500)
	return basket.ReduceAll(st,
		basket.ItemAdding{ItemID: item.ID, Route: item.Route, PriceClass: item.SelectedPriceClass},
		basket.ItemAdded{ItemID: item.ID, At: at},
	)
}

func TestReduce_AddLifecycle(t *testing.T) {
	st := basket.NewState()

	// absent -> pendingAdd
	st = basket.Reduce(st, basket.ItemAdding{ItemID: "i1"})
	assert.Equal(t, basket.StatusPendingAdd, st.StatusOf("i1"))
	assert.True(t, st.LastChange.IsZero(), "pending adds must not touch the expiry clock")

	// pendingAdd -> present
	at := time.Date(2026, time.March, 1, 10, 0, 0, 0, time.UTC)
	st = basket.Reduce(st, basket.ItemAdded{
		ItemID:   "i1",
		Addons:   []basket.Addon{{ID: "a1", Price: 45}},
		FreeSeats: []basket.SectionSeats{{SectionID: "s1"}},
		At:       at,
	})
	assert.Equal(t, basket.StatusPresent, st.StatusOf("i1"))
	assert.Equal(t, at, st.LastChange)

	item, ok := st.Item("i1")
	assert.True(t, ok)
	assert.Len(t, item.Addons, 1)
	assert.Len(t, item.Seats, 1)
}

func TestReduce_AddFailedRollsBackToAbsent(t *testing.T) {
	st := basket.Reduce(basket.NewState(), basket.ItemAdding{ItemID: "i1"})
	st = basket.Reduce(st, basket.ItemAddFailed{ItemID: "i1"})

	assert.Equal(t, basket.StatusAbsent, st.StatusOf("i1"))
	assert.True(t, st.IsEmpty())
}

func TestReduce_AddFailedOnPresentItemIsNoOp(t *testing.T) {
	st := addedItem(basket.NewState(), "i1", time.Now())
	next := basket.Reduce(st, basket.ItemAddFailed{ItemID: "i1"})

	assert.Equal(t, basket.StatusPresent, next.StatusOf("i1"))
}

func TestReduce_RemoveIdempotent(t *testing.T) {
	st := addedItem(basket.NewState(), "i1", time.Now())

	st = basket.Reduce(st, basket.ItemRemoved{ItemID: "i1"})
	assert.Equal(t, basket.StatusAbsent, st.StatusOf("i1"))

	// Removing again is a no-op, not an error
	again := basket.Reduce(st, basket.ItemRemoved{ItemID: "i1"})
	assert.Equal(t, st.StatusOf("i1"), again.StatusOf("i1"))
	assert.True(t, again.IsEmpty())
}

func TestReduce_RemoveClearsAppliedRelations(t *testing.T) {
	// GIVEN: Two items, each with a discount applied
	st := addedItem(addedItem(basket.NewState(), "i1", time.Now()), "i2", time.Now())
	st = basket.Reduce(st, basket.DiscountsReconciled{Applied: basket.AppliedState{
		"d1": {ItemID: "i1", Amount: 90},
		"d2": {ItemID: "i2", Amount: 50},
	}})

	// WHEN: Removing one item
	st = basket.Reduce(st, basket.ItemRemoved{ItemID: "i1"})

	// THEN: Only its discount returns to the pool
	_, d1 := st.Applied["d1"]
	_, d2 := st.Applied["d2"]
	assert.False(t, d1, "removed item's discount must be unassigned")
	assert.True(t, d2, "other item's discount must survive")
}

func TestReduce_ClearEmptiesEverything(t *testing.T) {
	st := addedItem(basket.NewState(), "i1", time.Now())
	st = basket.Reduce(st, basket.DiscountsReconciled{Applied: basket.AppliedState{
		"d1": {ItemID: "i1", Amount: 90},
	}})

	st = basket.Reduce(st, basket.BasketCleared{})

	assert.True(t, st.IsEmpty())
	assert.Empty(t, st.Applied)
	assert.True(t, st.LastChange.IsZero())
}

// =============================================================================
// DEFENSIVE NO-OP TESTS
// =============================================================================

func TestReduce_MutationsOnMissingItemAreNoOps(t *testing.T) {
	st := addedItem(basket.NewState(), "i1", time.Now())

	actions := []basket.Action{
		basket.AddonsReplaced{ItemID: "ghost", Addons: []basket.Addon{{ID: "a1"}}},
		basket.CodeDiscountSet{ItemID: "ghost", Discount: &basket.CodeDiscount{Code: "X"}},
		basket.PassengersSet{ItemID: "ghost", Passengers: []basket.Passenger{{FirstName: "A"}}},
		basket.SeatsSelected{ItemID: "ghost", Seats: []basket.SectionSeats{{SectionID: "s1"}}},
		basket.SpecialSeatMarked{ItemID: "ghost", SectionID: "s1", SeatIndex: "1"},
	}
	for _, a := range actions {
		next := basket.Reduce(st, a)
		assert.Equal(t, st.Items, next.Items, "%T on a missing item must not change state", a)
	}
}

func TestReduce_MutationsOnPendingItemAreNoOps(t *testing.T) {
	st := basket.Reduce(basket.NewState(), basket.ItemAdding{ItemID: "i1"})

	next := basket.Reduce(st, basket.AddonsReplaced{ItemID: "i1", Addons: []basket.Addon{{ID: "a1"}}})
	item, _ := next.Item("i1")
	assert.Empty(t, item.Addons, "pending items must not accept mutations")
}

func TestReduce_ReconcileDropsAssignmentsToMissingItems(t *testing.T) {
	st := addedItem(basket.NewState(), "i1", time.Now())

	st = basket.Reduce(st, basket.DiscountsReconciled{Applied: basket.AppliedState{
		"d1": {ItemID: "i1", Amount: 90},
		"d2": {ItemID: "ghost", Amount: 10},
	}})

	_, hasGhost := st.Applied["d2"]
	assert.False(t, hasGhost, "assignments to missing items must be dropped")
	_, hasReal := st.Applied["d1"]
	assert.True(t, hasReal)
}

func TestReduce_InputStateNeverMutated(t *testing.T) {
	st := addedItem(basket.NewState(), "i1", time.Now())
	before, _ := st.Item("i1")

	basket.Reduce(st, basket.AddonsReplaced{ItemID: "i1", Addons: []basket.Addon{{ID: "a1", Checked: true, Count: 1}}})
	basket.Reduce(st, basket.ItemRemoved{ItemID: "i1"})

	after, ok := st.Item("i1")
	assert.True(t, ok)
	assert.Equal(t, before, after, "reductions must be copy-on-write")
}

// =============================================================================
// DISCOUNT LIST TESTS
// =============================================================================

func TestReduce_DiscountsReplacedDropsAppliedState(t *testing.T) {
	st := addedItem(basket.NewState(), "i1", time.Now())
	st = basket.Reduce(st, basket.DiscountsReplaced{Discounts: []basket.Discount{valid("d1", 20)}})
	st = basket.Reduce(st, basket.DiscountsReconciled{Applied: basket.AppliedState{
		"d1": {ItemID: "i1", Amount: 90},
	}})

	st = basket.Reduce(st, basket.DiscountsReplaced{Discounts: []basket.Discount{valid("d1", 20), valid("d2", 10)}})

	assert.Len(t, st.Discounts, 2)
	assert.Empty(t, st.Applied, "replacing the discount list loses all assignments")
}

// =============================================================================
// SEAT TESTS
// =============================================================================

func TestReduce_SpecialSeatMarked(t *testing.T) {
	st := addedItem(basket.NewState(), "i1", time.Now())
	st = basket.Reduce(st, basket.SeatsSelected{ItemID: "i1", Seats: []basket.SectionSeats{
		{SectionID: "s1", Seats: []basket.Seat{{VehicleNumber: 1, Index: "12"}}},
	}})

	st = basket.Reduce(st, basket.SpecialSeatMarked{ItemID: "i1", SectionID: "s1", SeatIndex: "12", Special: true})

	item, _ := st.Item("i1")
	assert.True(t, item.Seats[0].Seats[0].SpecialNeeds)

	// Unknown seat index is a no-op
	next := basket.Reduce(st, basket.SpecialSeatMarked{ItemID: "i1", SectionID: "s1", SeatIndex: "99", Special: true})
	assert.Equal(t, st.Items, next.Items)
}
