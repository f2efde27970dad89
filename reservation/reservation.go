// Package reservation implements seat-selection and passenger-data rules
// on top of the basket engine. The basket package owns the state
// transitions; this package owns the domain checks the API performs
// before dispatching them.
package reservation

import (
	"fmt"

	"github.com/transitkit/basket-engine/basket"
)

// =============================================================================
// SEAT SELECTION
// =============================================================================

// ValidateSelection checks a requested seat selection against the free
// seats fetched for the item: every section of the selection must exist
// in the free list, and every requested seat must be free in that
// section. Returns a field-keyed ValidationError on the first conflict.
func ValidateSelection(free, selection []basket.SectionSeats) error {
	freeBySection := make(map[string]map[seatKey]bool, len(free))
	for _, ss := range free {
		seats := make(map[seatKey]bool, len(ss.Seats))
		for _, seat := range ss.Seats {
			seats[seatKey{seat.VehicleNumber, seat.Index}] = true
		}
		freeBySection[ss.SectionID] = seats
	}

	for _, ss := range selection {
		seats, ok := freeBySection[ss.SectionID]
		if !ok {
			return &basket.ValidationError{
				Message: "unknown trip section",
				Fields:  map[string]string{"section": ss.SectionID},
			}
		}
		for _, seat := range ss.Seats {
			if !seats[seatKey{seat.VehicleNumber, seat.Index}] {
				return &basket.ValidationError{
					Message: "seat is not available",
					Fields: map[string]string{
						"section": ss.SectionID,
						"seat":    fmt.Sprintf("%d/%s", seat.VehicleNumber, seat.Index),
					},
				}
			}
		}
	}
	return nil
}

type seatKey struct {
	vehicle int
	index   string
}

// SelectedSeat finds a seat in a selection by section and index.
func SelectedSeat(seats []basket.SectionSeats, sectionID, index string) (basket.Seat, bool) {
	for _, ss := range seats {
		if ss.SectionID != sectionID {
			continue
		}
		for _, seat := range ss.Seats {
			if seat.Index == index {
				return seat, true
			}
		}
	}
	return basket.Seat{}, false
}

// =============================================================================
// PASSENGER DATA
// =============================================================================

// RequiredFields returns the field identifiers the carrier requires for
// the passenger at the given position (the first passenger usually needs
// contact data the others do not).
func RequiredFields(reqs basket.PassengerDataRequirements, position int) []string {
	if position == 0 {
		return reqs.FirstPassengerData
	}
	return reqs.OtherPassengersData
}

// ValidatePassengers checks prefilled passenger records against the
// item's requirements: one record per tariff, and every required field
// filled. Field keys are "passengers[i].<field>".
func ValidatePassengers(item basket.BasketItem, passengers []basket.Passenger) error {
	want := len(item.SelectedPriceClass.Tariffs)
	if want > 0 && len(passengers) != want {
		return &basket.ValidationError{
			Message: "passenger count does not match tariff count",
			Fields: map[string]string{
				"passengers": fmt.Sprintf("expected %d, got %d", want, len(passengers)),
			},
		}
	}

	for i, p := range passengers {
		for _, field := range RequiredFields(item.PassengerData, i) {
			if fieldValue(p, field) == "" {
				return &basket.ValidationError{
					Message: "missing required passenger field",
					Fields: map[string]string{
						fmt.Sprintf("passengers[%d].%s", i, field): "required",
					},
				}
			}
		}
	}
	return nil
}

func fieldValue(p basket.Passenger, field string) string {
	switch field {
	case "firstName":
		return p.FirstName
	case "lastName":
		return p.LastName
	case "email":
		return p.Email
	case "phone":
		return p.Phone
	default:
		// Unknown requirement identifiers are ignored rather than failing
		// the whole prefill; the backend re-verifies on ticket creation.
		return "unknown"
	}
}

// Prefill fills empty tariff slots from the item's fare tier so a
// returning user only types names once. Existing values win.
func Prefill(item basket.BasketItem, passengers []basket.Passenger) []basket.Passenger {
	out := append([]basket.Passenger(nil), passengers...)
	for i := range out {
		if out[i].Tariff == "" && i < len(item.SelectedPriceClass.Tariffs) {
			out[i].Tariff = item.SelectedPriceClass.Tariffs[i]
		}
	}
	return out
}
