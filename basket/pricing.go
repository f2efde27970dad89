/*
pricing.go - Pure price composition for basket items

PURPOSE:
  Computes every component of a basket item's price and composes them
  into per-item and whole-basket totals:

    total = ticket + surcharge + addons - codeDiscount - percentualDiscounts

  All functions here are total: they never fail on well-formed input,
  and missing optional fields (no surcharge, no code discount, no
  addons) contribute zero.

CREDIT PRICES:
  Credit-account users pay the fare tier's CreditPrice instead of Price.
  Every function that touches the ticket price takes an isCredit flag.

ROUNDING:
  Results are plain, unrounded float64. Currency rounding happens only
  inside the reconciliation engine (discount.go), which is the single
  place amounts are forced into exact currency units.

SEE ALSO:
  - discount.go: Percentual discount recalculation feeding Applied amounts
  - types.go: BasketItem and its parts
*/
package basket

// TicketPrice returns the base ticket price of the selected fare tier.
func TicketPrice(item BasketItem, isCredit bool) float64 {
	if isCredit {
		return item.SelectedPriceClass.CreditPrice
	}
	return item.SelectedPriceClass.Price
}

// TicketSurchargePrice returns the route's flat surcharge, or 0 when the
// route carries none.
func TicketSurchargePrice(item BasketItem) float64 {
	if item.Route.Surcharge == nil {
		return 0
	}
	return item.Route.Surcharge.Price
}

// AddonsPrice sums the price of all checked addons, Count units each.
func AddonsPrice(addons []Addon) float64 {
	var sum float64
	for _, a := range addons {
		if a.Checked {
			sum += float64(a.Count) * a.Price
		}
	}
	return sum
}

// TicketCodeDiscount returns the effective code-discount amount for the
// item. A code discount can never exceed the ticket price it discounts,
// so the reduction is capped at the ticket price and is never negative.
func TicketCodeDiscount(item BasketItem, isCredit bool) float64 {
	if item.CodeDiscount == nil {
		return 0
	}
	ticket := TicketPrice(item, isCredit)
	if item.CodeDiscount.Amount > ticket {
		return ticket
	}
	if item.CodeDiscount.Amount < 0 {
		return 0
	}
	return item.CodeDiscount.Amount
}

// DiscountedTicketPrice is the ticket price after the code discount.
// This is the baseline fed into percentual-discount verification and
// reconciliation.
func DiscountedTicketPrice(item BasketItem, isCredit bool) float64 {
	return TicketPrice(item, isCredit) - TicketCodeDiscount(item, isCredit)
}

// TicketPercentualDiscount sums the applied percentual-discount amounts
// currently assigned to the item.
func TicketPercentualDiscount(item BasketItem, applied AppliedState) float64 {
	var sum float64
	for _, ap := range applied {
		if ap.ItemID == item.ID {
			sum += ap.Amount
		}
	}
	return sum
}

// TicketTotalPrice composes the full price of one basket item.
func TicketTotalPrice(item BasketItem, applied AppliedState, isCredit bool) float64 {
	return TicketPrice(item, isCredit) +
		TicketSurchargePrice(item) +
		AddonsPrice(item.Addons) -
		TicketCodeDiscount(item, isCredit) -
		TicketPercentualDiscount(item, applied)
}

// TotalPrice sums TicketTotalPrice over all items.
func TotalPrice(items []BasketItem, applied AppliedState, isCredit bool) float64 {
	var sum float64
	for _, item := range items {
		sum += TicketTotalPrice(item, applied, isCredit)
	}
	return sum
}
