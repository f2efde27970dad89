/*
discount.go - Percentual discounts and the reconciliation engine

PURPOSE:
  A percentual discount is a user-level percentage reduction, shared
  across the whole basket but assignable to at most one basket item at
  a time. Discounts stack sequentially: each one is computed against the
  price already reduced by the discounts before it in the list, never
  against the original price.

APPLIED RELATION:
  The assignment of a discount to an item is kept in an explicit
  AppliedState map (discount id -> Applied), joined with the discount
  list at read time. The list itself never carries back-pointers, so a
  removed item cannot leave a dangling reference behind.

RECONCILIATION:
  Whenever the baseline ticket price of an item changes (code discount
  applied or removed, percentual discount verified or removed), every
  percentual discount assigned to that item is recomputed from the new
  baseline, in list order:

    1. raw      = running * percentage / 100   (multiply BEFORE dividing)
    2. newPrice = RoundByCurrency(running - raw)
    3. amount   = running - newPrice           (the rounded delta)
    4. running  = newPrice

  The applied amount is the rounded delta, not the raw product, so the
  running price is always expressed in exact currency units. A discount
  whose rounded amount comes out 0 is unset and returns to the
  unassigned pool.

  CAREFUL: in IEEE754, x*y/100 is not guaranteed to equal x/100*y. The
  multiply-then-divide order is load-bearing and must not be changed.

SEE ALSO:
  - pricing.go: DiscountedTicketPrice produces the baseline
  - service.go: The trigger points that invoke reconciliation
*/
package basket

// DiscountState is the backend-reported validity of a discount.
type DiscountState string

const (
	DiscountValid   DiscountState = "VALID"
	DiscountUsed    DiscountState = "USED"
	DiscountExpired DiscountState = "EXPIRED"
)

// Discount is a user-level percentage discount. The Applied relation
// lives in AppliedState, not on this struct.
type Discount struct {
	ID         DiscountID
	Percentage float64
	State      DiscountState
}

// Applied records the assignment of one discount to one basket item,
// with the amount it currently reduces that item's price by.
type Applied struct {
	ItemID                ItemID
	Amount                float64
	Currency              Currency
	DiscountedTicketPrice float64
}

// AppliedState maps discount id to its current assignment. A discount
// absent from the map is unassigned.
type AppliedState map[DiscountID]Applied

// Clone returns a copy safe to mutate.
func (as AppliedState) Clone() AppliedState {
	out := make(AppliedState, len(as))
	for id, ap := range as {
		out[id] = ap
	}
	return out
}

// DiscountView joins a discount with its applied state for read-time use.
type DiscountView struct {
	Discount
	Applied *Applied
}

// JoinApplied produces the joined, order-preserved view of the discount
// list with its applied relations.
func JoinApplied(discounts []Discount, applied AppliedState) []DiscountView {
	views := make([]DiscountView, len(discounts))
	for i, d := range discounts {
		views[i] = DiscountView{Discount: d}
		if ap, ok := applied[d.ID]; ok {
			apCopy := ap
			views[i].Applied = &apCopy
		}
	}
	return views
}

// RecalculatePercentualDiscounts recomputes the applied amount of every
// discount assigned to itemID, sequentially against baseline, in the
// list order of discounts. Discounts assigned to other items (or
// unassigned) pass through untouched. Returns a new AppliedState; the
// input is not mutated.
func RecalculatePercentualDiscounts(
	baseline float64,
	discounts []Discount,
	applied AppliedState,
	itemID ItemID,
	currency Currency,
) AppliedState {
	next := applied.Clone()
	running := baseline

	for _, d := range discounts {
		ap, ok := next[d.ID]
		if !ok || ap.ItemID != itemID {
			continue
		}

		// Multiply before dividing. See package comment: the order is
		// significant under IEEE754 and must match reference behavior.
		raw := running * d.Percentage / 100
		newPrice := RoundByCurrency(running-raw, currency)
		amount := running - newPrice

		if amount > 0 {
			next[d.ID] = Applied{
				ItemID:                itemID,
				Amount:                amount,
				Currency:              currency,
				DiscountedTicketPrice: newPrice,
			}
			running = newPrice
		} else {
			// Rounds to nothing at this price: the discount becomes
			// inapplicable and is freed for reassignment.
			delete(next, d.ID)
		}
	}
	return next
}

// SameDiscountList reports whether two discount lists are identical,
// ignoring applied state. Used by the refresh trigger: an incidental
// background refresh with an unchanged list must not clobber the user's
// in-progress assignments.
func SameDiscountList(a, b []Discount) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].ID != b[i].ID || a[i].Percentage != b[i].Percentage || a[i].State != b[i].State {
			return false
		}
	}
	return true
}
