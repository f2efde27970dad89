package basket_test

import (
	"math"
	"testing"

	"github.com/transitkit/basket-engine/basket"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

func czkItem(id string, price float64) basket.BasketItem {
	return basket.BasketItem{
		ID:     basket.ItemID(id),
		Status: basket.StatusPresent,
		SelectedPriceClass: basket.PriceClass{
			SeatClassKey: "standard",
			Price:        price,
			CreditPrice:  price,
			Currency:     basket.CurrencyCZK,
			Tariffs:      []basket.Tariff{basket.TariffRegular},
		},
	}
}

func withCode(item basket.BasketItem, amount float64) basket.BasketItem {
	item.CodeDiscount = &basket.CodeDiscount{
		Code:                  "TESTCODE",
		Amount:                amount,
		Currency:              item.ItemCurrency(),
		DiscountedTicketPrice: item.SelectedPriceClass.Price - amount,
	}
	return item
}

func approx(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

// =============================================================================
// COMPONENT TESTS
// =============================================================================

func TestTicketPrice_CreditFlagSelectsCreditPrice(t *testing.T) {
	item := czkItem("i1", 500)
	item.SelectedPriceClass.CreditPrice = 480

	if got := basket.TicketPrice(item, false); got != 500 {
		t.Errorf("expected cash price 500, got %v", got)
	}
	if got := basket.TicketPrice(item, true); got != 480 {
		t.Errorf("expected credit price 480, got %v", got)
	}
}

func TestTicketSurchargePrice_MissingSurchargeIsZero(t *testing.T) {
	item := czkItem("i1", 500)

	if got := basket.TicketSurchargePrice(item); got != 0 {
		t.Errorf("expected 0 for route without surcharge, got %v", got)
	}

	item.Route.Surcharge = &basket.Surcharge{Name: "night line", Price: 30}
	if got := basket.TicketSurchargePrice(item); got != 30 {
		t.Errorf("expected surcharge 30, got %v", got)
	}
}

func TestAddonsPrice_OnlyCheckedAddonsCount(t *testing.T) {
	addons := []basket.Addon{
		{ID: "a1", Price: 45, Checked: true, Count: 2},
		{ID: "a2", Price: 120, Checked: false, Count: 5},
		{ID: "a3", Price: 25, Checked: true, Count: 0},
	}

	// 2*45 + 0 (unchecked) + 0*25
	if got := basket.AddonsPrice(addons); got != 90 {
		t.Errorf("expected addons price 90, got %v", got)
	}
}

func TestAddonsPrice_EmptyListIsZero(t *testing.T) {
	if got := basket.AddonsPrice(nil); got != 0 {
		t.Errorf("expected 0 for no addons, got %v", got)
	}
}

func TestTicketCodeDiscount_CappedAtTicketPrice(t *testing.T) {
	// GIVEN: A 200 CZK ticket with a 500 CZK promo code
	item := withCode(czkItem("i1", 200), 500)

	// THEN: The effective reduction is the full ticket price, not more
	if got := basket.TicketCodeDiscount(item, false); got != 200 {
		t.Errorf("expected discount capped at 200, got %v", got)
	}
	if got := basket.DiscountedTicketPrice(item, false); got != 0 {
		t.Errorf("expected discounted price 0, got %v", got)
	}
}

func TestTicketCodeDiscount_NoCodeIsZero(t *testing.T) {
	item := czkItem("i1", 500)

	if got := basket.TicketCodeDiscount(item, false); got != 0 {
		t.Errorf("expected 0 without a code, got %v", got)
	}
	if got := basket.DiscountedTicketPrice(item, false); got != 500 {
		t.Errorf("expected discounted price to equal ticket price, got %v", got)
	}
}

func TestTicketPercentualDiscount_OnlyOwnItemsApply(t *testing.T) {
	item := czkItem("i1", 500)
	applied := basket.AppliedState{
		"d1": {ItemID: "i1", Amount: 90, Currency: basket.CurrencyCZK, DiscountedTicketPrice: 360},
		"d2": {ItemID: "other", Amount: 50, Currency: basket.CurrencyCZK, DiscountedTicketPrice: 400},
	}

	if got := basket.TicketPercentualDiscount(item, applied); got != 90 {
		t.Errorf("expected only own discount 90, got %v", got)
	}
}

// =============================================================================
// COMPOSITION TESTS
// =============================================================================

func TestTicketTotalPrice_ComposesAllComponents(t *testing.T) {
	// GIVEN: 500 ticket + 30 surcharge + 90 addons - 50 code - 20% discount
	item := withCode(czkItem("i1", 500), 50)
	item.Route.Surcharge = &basket.Surcharge{Name: "express", Price: 30}
	item.Addons = []basket.Addon{{ID: "a1", Price: 45, Checked: true, Count: 2}}
	applied := basket.AppliedState{
		"d1": {ItemID: "i1", Amount: 90, Currency: basket.CurrencyCZK, DiscountedTicketPrice: 360},
	}

	// 500 + 30 + 90 - 50 - 90 = 480
	if got := basket.TicketTotalPrice(item, applied, false); !approx(got, 480) {
		t.Errorf("expected total 480, got %v", got)
	}
}

func TestTicketTotalPrice_ScenarioCodeThenPercentual(t *testing.T) {
	// GIVEN: 500 CZK ticket, 50 CZK promo code, then a 20% discount
	// verified against the 450 baseline
	item := withCode(czkItem("i1", 500), 50)
	applied := basket.RecalculatePercentualDiscounts(
		basket.DiscountedTicketPrice(item, false),
		[]basket.Discount{{ID: "d1", Percentage: 20, State: basket.DiscountValid}},
		basket.AppliedState{"d1": {ItemID: "i1"}},
		"i1",
		basket.CurrencyCZK,
	)

	// 450 * 20% = 90, so the item totals 500 - 50 - 90 = 360
	if got := basket.TicketTotalPrice(item, applied, false); !approx(got, 360) {
		t.Errorf("expected total 360, got %v", got)
	}
	ap := applied["d1"]
	if !approx(ap.Amount, 90) || !approx(ap.DiscountedTicketPrice, 360) {
		t.Errorf("expected applied amount 90 at price 360, got %+v", ap)
	}
}

func TestTotalPrice_SumsOverItems(t *testing.T) {
	items := []basket.BasketItem{czkItem("i1", 500), czkItem("i2", 250)}

	if got := basket.TotalPrice(items, nil, false); got != 750 {
		t.Errorf("expected basket total 750, got %v", got)
	}
	if got := basket.TotalPrice(nil, nil, false); got != 0 {
		t.Errorf("expected empty basket total 0, got %v", got)
	}
}
