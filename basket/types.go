/*
Package basket provides the core basket pricing and discount engine.

PURPOSE:
  This package contains the domain types and algorithms for a multi-step
  ticket-booking basket: trip selections with fare classes, addons and
  seats, flat code discounts, stacking percentual discounts, and the
  lifecycle transitions a basket item moves through from add to removal.

KEY CONCEPTS IN THIS FILE (types.go):
  - BasketItem: One purchasable trip selection and everything attached to it
  - Route/PriceClass: Trip metadata and the chosen fare tier
  - Addon: Optional extra with a checked flag and quantity
  - CodeDiscount: Flat-amount promo-code reduction, at most one per item
  - SectionSeats: Per-leg seat selection state

DESIGN PRINCIPLES:
  1. Purity: State transitions are pure functions over immutable snapshots
  2. Reference arithmetic: Prices are float64 and percentual math multiplies
     before dividing; rounding happens only at currency boundaries
  3. Type Safety: Strong typing for IDs prevents mixing item/discount IDs
  4. Defensiveness: Operations on missing items are no-ops, never panics

USAGE:
  item := basket.BasketItem{
      ID:                 "itm-123",
      Status:             basket.StatusPresent,
      SelectedPriceClass: basket.PriceClass{Price: 500, Currency: basket.CurrencyCZK},
  }
  total := basket.TicketTotalPrice(item, applied, false)

SEE ALSO:
  - pricing.go: Pure price composition functions
  - discount.go: Percentual discounts and the reconciliation engine
  - state.go: Basket state snapshot and reducer
*/
package basket

import (
	"time"
)

// =============================================================================
// IDENTIFIERS
// =============================================================================

type BasketID string
type ItemID string
type DiscountID string

// =============================================================================
// ROUTE - Trip metadata for one selection
// =============================================================================

// Section is one leg of a trip (a single vehicle between two stops).
type Section struct {
	ID            string
	FromStationID string
	ToStationID   string
	Departure     time.Time
	Arrival       time.Time
	VehicleType   string
}

// Surcharge is an optional flat fee attached to a route (e.g. night line).
type Surcharge struct {
	Price float64
	Name  string
}

// Route describes the trip a basket item was created from.
type Route struct {
	ID           string
	Sections     []Section
	VehicleTypes []string
	Surcharge    *Surcharge
}

// =============================================================================
// PRICE CLASS - The fare tier chosen for the trip
// =============================================================================

// Tariff identifies a passenger fare category (one entry per passenger).
type Tariff string

const (
	TariffRegular Tariff = "REGULAR"
	TariffChild   Tariff = "CHILD"
	TariffStudent Tariff = "STUDENT"
	TariffSenior  Tariff = "SENIOR"
)

// PriceClass is the selected fare tier with its base and credit prices.
// CreditPrice applies to credit-account users and may differ from Price.
type PriceClass struct {
	SeatClassKey string
	Price        float64
	CreditPrice  float64
	Currency     Currency
	Tariffs      []Tariff
}

// =============================================================================
// ADDON - Optional extra attached to a basket item
// =============================================================================

// Addon is an optional extra. Only checked addons contribute to the price,
// at Count * Price each. Count must be a non-negative integer.
type Addon struct {
	ID      string
	Name    string
	Price   float64
	Checked bool
	Count   int
}

// =============================================================================
// CODE DISCOUNT - Flat promo-code reduction
// =============================================================================

// CodeDiscount is present only after a promo code has been verified against
// the item. At most one code discount per item; applying a new code replaces
// the previous one unconditionally.
type CodeDiscount struct {
	Code                  string
	Amount                float64
	Currency              Currency
	DiscountedTicketPrice float64
}

// =============================================================================
// SEATS - Per-section seat selection
// =============================================================================

// Seat is a single seat in a vehicle.
type Seat struct {
	VehicleNumber int
	Index         string
	SpecialNeeds  bool
}

// SectionSeats holds the seat selection for one trip section.
type SectionSeats struct {
	SectionID string
	Seats     []Seat
}

// =============================================================================
// PASSENGERS
// =============================================================================

// PassengerDataRequirements lists which fields the carrier requires,
// separately for the first passenger and the remaining ones.
type PassengerDataRequirements struct {
	FirstPassengerData  []string
	OtherPassengersData []string
}

// Passenger is one traveller on the item. Field names follow the
// requirement identifiers returned by the backend.
type Passenger struct {
	FirstName string
	LastName  string
	Email     string
	Phone     string
	Tariff    Tariff
}

// =============================================================================
// BASKET ITEM - One trip selection pending purchase
// =============================================================================

// ItemStatus is the explicit lifecycle state of a basket item.
// Absent and Removed items are not stored in the basket; they exist only
// as answers from State.StatusOf.
type ItemStatus string

const (
	StatusAbsent     ItemStatus = "absent"
	StatusPendingAdd ItemStatus = "pending_add"
	StatusPresent    ItemStatus = "present"
	StatusRemoved    ItemStatus = "removed"
)

// BasketItem is one trip/fare selection added to the basket.
//
// Invariants:
//   - At most one CodeDiscount per item.
//   - Addons carry non-negative counts.
//   - Only Present items are priced, mutated, or verified.
type BasketItem struct {
	ID     ItemID
	Status ItemStatus

	Route              Route
	SelectedPriceClass PriceClass

	Addons       []Addon
	CodeDiscount *CodeDiscount
	Seats        []SectionSeats

	Passengers    []Passenger
	PassengerData PassengerDataRequirements

	AddedAt time.Time
}

// Currency returns the currency the item is priced in.
func (i BasketItem) ItemCurrency() Currency {
	return i.SelectedPriceClass.Currency
}

// clone returns a deep copy so reducer outputs never alias reducer inputs.
func (i BasketItem) clone() BasketItem {
	out := i
	out.Addons = append([]Addon(nil), i.Addons...)
	out.Passengers = append([]Passenger(nil), i.Passengers...)
	out.Seats = make([]SectionSeats, len(i.Seats))
	for n, ss := range i.Seats {
		out.Seats[n] = SectionSeats{SectionID: ss.SectionID, Seats: append([]Seat(nil), ss.Seats...)}
	}
	if i.CodeDiscount != nil {
		cd := *i.CodeDiscount
		out.CodeDiscount = &cd
	}
	out.SelectedPriceClass.Tariffs = append([]Tariff(nil), i.SelectedPriceClass.Tariffs...)
	return out
}
