/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the internal domain model from the external API contract, allowing:
  - Field renaming without breaking clients
  - API-specific validation
  - Version evolution

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

TYPES:
  Basket:
    BasketDTO, ItemDTO, TotalsDTO

  Items:
    AddItemRequest, AddonDTO, UpdateAddonsRequest

  Seats / passengers:
    SeatDTO, SectionSeatsDTO, SelectSeatsRequest, MarkSpecialSeatRequest,
    PassengerDTO, SetPassengersRequest

  Discounts:
    DiscountDTO, ApplyCodeRequest, ApplyDiscountRequest

  Scenarios:
    ScenarioDTO, LoadScenarioRequest

AMOUNT FORMATTING:
  Raw amounts are returned as floats alongside a display string produced
  by basket.FormatAmount, so clients never re-implement currency rounding.

VALIDATION:
  Validation is done in handlers, not in DTOs. DTOs are pure data carriers.

SEE ALSO:
  - handlers.go: Uses these types
  - basket/pricing.go: Price composition behind TotalsDTO
*/
package api

import (
	"time"

	"github.com/transitkit/basket-engine/basket"
)

// =============================================================================
// REQUEST/RESPONSE TYPES
// =============================================================================

// AddItemRequest is the request to add a trip selection to the basket.
type AddItemRequest struct {
	RouteID      string `json:"route_id"`
	SeatClassKey string `json:"seat_class_key"`
}

// UpdateAddonsRequest replaces the addon selection of one item.
type UpdateAddonsRequest struct {
	Addons []AddonDTO `json:"addons"`
}

// ApplyCodeRequest applies a promo code to one item.
type ApplyCodeRequest struct {
	Code string `json:"code"`
}

// ApplyDiscountRequest applies a percentual discount to one item.
type ApplyDiscountRequest struct {
	ItemID string `json:"item_id"`
}

// SelectSeatsRequest replaces the seat selection of one item.
type SelectSeatsRequest struct {
	Seats []SectionSeatsDTO `json:"seats"`
}

// MarkSpecialSeatRequest flags one selected seat as special-needs.
type MarkSpecialSeatRequest struct {
	SectionID string `json:"section_id"`
	SeatIndex string `json:"seat_index"`
	Special   bool   `json:"special"`
}

// SetPassengersRequest fills passenger data for one item.
type SetPassengersRequest struct {
	Passengers []PassengerDTO `json:"passengers"`
}

// LoadScenarioRequest loads a named demo scenario.
type LoadScenarioRequest struct {
	ScenarioID string `json:"scenario_id"`
}

// =============================================================================
// RESPONSE DTOS
// =============================================================================

// AddonDTO represents an addon in both directions.
type AddonDTO struct {
	ID      string  `json:"id"`
	Name    string  `json:"name"`
	Price   float64 `json:"price"`
	Checked bool    `json:"checked"`
	Count   int     `json:"count"`
}

// SeatDTO represents one seat.
type SeatDTO struct {
	VehicleNumber int    `json:"vehicle_number"`
	Index         string `json:"index"`
	SpecialNeeds  bool   `json:"special_needs,omitempty"`
}

// SectionSeatsDTO holds the seat selection for one trip section.
type SectionSeatsDTO struct {
	SectionID string    `json:"section_id"`
	Seats     []SeatDTO `json:"seats"`
}

// PassengerDTO represents one traveller.
type PassengerDTO struct {
	FirstName string `json:"first_name,omitempty"`
	LastName  string `json:"last_name,omitempty"`
	Email     string `json:"email,omitempty"`
	Phone     string `json:"phone,omitempty"`
	Tariff    string `json:"tariff,omitempty"`
}

// CodeDiscountDTO is the verified promo code on an item.
type CodeDiscountDTO struct {
	Code                  string  `json:"code"`
	Amount                float64 `json:"amount"`
	Currency              string  `json:"currency"`
	DiscountedTicketPrice float64 `json:"discounted_ticket_price"`
}

// ItemDTO represents one basket item in API responses.
type ItemDTO struct {
	ID            string            `json:"id"`
	Status        string            `json:"status"`
	RouteID       string            `json:"route_id"`
	SeatClassKey  string            `json:"seat_class_key"`
	Currency      string            `json:"currency"`
	TicketPrice   float64           `json:"ticket_price"`
	TotalPrice    float64           `json:"total_price"`
	TotalDisplay  string            `json:"total_display"`
	Addons        []AddonDTO        `json:"addons,omitempty"`
	CodeDiscount  *CodeDiscountDTO  `json:"code_discount,omitempty"`
	Seats         []SectionSeatsDTO `json:"seats,omitempty"`
	Passengers    []PassengerDTO    `json:"passengers,omitempty"`
	AddedAt       string            `json:"added_at,omitempty"`
}

// DiscountDTO joins a discount with its applied state.
type DiscountDTO struct {
	ID                    string  `json:"id"`
	Percentage            float64 `json:"percentage"`
	State                 string  `json:"state"`
	AppliedToItem         string  `json:"applied_to_item,omitempty"`
	Amount                float64 `json:"amount,omitempty"`
	Currency              string  `json:"currency,omitempty"`
	DiscountedTicketPrice float64 `json:"discounted_ticket_price,omitempty"`
}

// TotalsDTO is the priced summary of the basket.
type TotalsDTO struct {
	Currency     string  `json:"currency"`
	Total        float64 `json:"total"`
	TotalDisplay string  `json:"total_display"`
	ItemCount    int     `json:"item_count"`
	Credit       bool    `json:"credit"`
}

// BasketDTO is the full basket snapshot returned to clients.
type BasketDTO struct {
	ID         string        `json:"id"`
	Items      []ItemDTO     `json:"items"`
	Discounts  []DiscountDTO `json:"discounts"`
	Totals     TotalsDTO     `json:"totals"`
	LastChange string        `json:"last_change,omitempty"`
}

// ScenarioDTO represents a demo scenario.
type ScenarioDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// ErrorResponse is the standard error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details any    `json:"details,omitempty"`
}

// =============================================================================
// CONVERSION HELPERS
// =============================================================================

func toAddonDTOs(addons []basket.Addon) []AddonDTO {
	if len(addons) == 0 {
		return nil
	}
	dtos := make([]AddonDTO, len(addons))
	for i, a := range addons {
		dtos[i] = AddonDTO{ID: a.ID, Name: a.Name, Price: a.Price, Checked: a.Checked, Count: a.Count}
	}
	return dtos
}

func fromAddonDTOs(dtos []AddonDTO) []basket.Addon {
	addons := make([]basket.Addon, len(dtos))
	for i, d := range dtos {
		addons[i] = basket.Addon{ID: d.ID, Name: d.Name, Price: d.Price, Checked: d.Checked, Count: d.Count}
	}
	return addons
}

func toSeatDTOs(seats []basket.SectionSeats) []SectionSeatsDTO {
	if len(seats) == 0 {
		return nil
	}
	dtos := make([]SectionSeatsDTO, len(seats))
	for i, ss := range seats {
		sd := SectionSeatsDTO{SectionID: ss.SectionID, Seats: make([]SeatDTO, len(ss.Seats))}
		for j, seat := range ss.Seats {
			sd.Seats[j] = SeatDTO{VehicleNumber: seat.VehicleNumber, Index: seat.Index, SpecialNeeds: seat.SpecialNeeds}
		}
		dtos[i] = sd
	}
	return dtos
}

func fromSeatDTOs(dtos []SectionSeatsDTO) []basket.SectionSeats {
	seats := make([]basket.SectionSeats, len(dtos))
	for i, d := range dtos {
		ss := basket.SectionSeats{SectionID: d.SectionID, Seats: make([]basket.Seat, len(d.Seats))}
		for j, seat := range d.Seats {
			ss.Seats[j] = basket.Seat{VehicleNumber: seat.VehicleNumber, Index: seat.Index, SpecialNeeds: seat.SpecialNeeds}
		}
		seats[i] = ss
	}
	return seats
}

func toPassengerDTOs(passengers []basket.Passenger) []PassengerDTO {
	if len(passengers) == 0 {
		return nil
	}
	dtos := make([]PassengerDTO, len(passengers))
	for i, p := range passengers {
		dtos[i] = PassengerDTO{
			FirstName: p.FirstName,
			LastName:  p.LastName,
			Email:     p.Email,
			Phone:     p.Phone,
			Tariff:    string(p.Tariff),
		}
	}
	return dtos
}

func fromPassengerDTOs(dtos []PassengerDTO) []basket.Passenger {
	passengers := make([]basket.Passenger, len(dtos))
	for i, d := range dtos {
		passengers[i] = basket.Passenger{
			FirstName: d.FirstName,
			LastName:  d.LastName,
			Email:     d.Email,
			Phone:     d.Phone,
			Tariff:    basket.Tariff(d.Tariff),
		}
	}
	return passengers
}

func toItemDTO(item basket.BasketItem, applied basket.AppliedState, isCredit bool) ItemDTO {
	currency := item.ItemCurrency()
	total := basket.TicketTotalPrice(item, applied, isCredit)
	dto := ItemDTO{
		ID:           string(item.ID),
		Status:       string(item.Status),
		RouteID:      item.Route.ID,
		SeatClassKey: item.SelectedPriceClass.SeatClassKey,
		Currency:     string(currency),
		TicketPrice:  basket.TicketPrice(item, isCredit),
		TotalPrice:   total,
		TotalDisplay: basket.FormatAmount(total, currency),
		Addons:       toAddonDTOs(item.Addons),
		Seats:        toSeatDTOs(item.Seats),
		Passengers:   toPassengerDTOs(item.Passengers),
	}
	if item.CodeDiscount != nil {
		dto.CodeDiscount = &CodeDiscountDTO{
			Code:                  item.CodeDiscount.Code,
			Amount:                item.CodeDiscount.Amount,
			Currency:              string(item.CodeDiscount.Currency),
			DiscountedTicketPrice: item.CodeDiscount.DiscountedTicketPrice,
		}
	}
	if !item.AddedAt.IsZero() {
		dto.AddedAt = item.AddedAt.Format(time.RFC3339)
	}
	return dto
}

func toDiscountDTOs(views []basket.DiscountView) []DiscountDTO {
	dtos := make([]DiscountDTO, len(views))
	for i, v := range views {
		dtos[i] = DiscountDTO{
			ID:         string(v.ID),
			Percentage: v.Percentage,
			State:      string(v.State),
		}
		if v.Applied != nil {
			dtos[i].AppliedToItem = string(v.Applied.ItemID)
			dtos[i].Amount = v.Applied.Amount
			dtos[i].Currency = string(v.Applied.Currency)
			dtos[i].DiscountedTicketPrice = v.Applied.DiscountedTicketPrice
		}
	}
	return dtos
}

func toBasketDTO(id basket.BasketID, st basket.State, isCredit bool) BasketDTO {
	items := st.PresentItems()
	currency := basket.Currency("")
	if len(items) > 0 {
		currency = items[0].ItemCurrency()
	}
	total := basket.TotalPrice(items, st.Applied, isCredit)
	dto := BasketDTO{
		ID:        string(id),
		Items:     make([]ItemDTO, len(items)),
		Discounts: toDiscountDTOs(basket.JoinApplied(st.Discounts, st.Applied)),
		Totals: TotalsDTO{
			Currency:     string(currency),
			Total:        total,
			TotalDisplay: basket.FormatAmount(total, currency),
			ItemCount:    len(items),
			Credit:       isCredit,
		},
	}
	for i, item := range items {
		dto.Items[i] = toItemDTO(item, st.Applied, isCredit)
	}
	if !st.LastChange.IsZero() {
		dto.LastChange = st.LastChange.Format(time.RFC3339)
	}
	return dto
}
