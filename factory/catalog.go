/*
Package factory provides JSON to Go catalog conversion.

PURPOSE:
  Converts a JSON catalog definition into domain types: routes with
  their fare tiers, available addons, free seats, promo codes and user
  discounts. The stub backend and the demo scenarios are driven entirely
  by catalogs, so new demo data needs no code changes.

JSON SCHEMA:
  {
    "currency": "CZK",
    "routes": [
      {
        "id": "prg-brn-0800",
        "surcharge": {"name": "night line", "price": 30},
        "sections": [
          {"id": "s1", "from": "PRG", "to": "BRN", "vehicle_type": "train"}
        ],
        "price_classes": [
          {"seat_class": "standard", "price": 500, "credit_price": 480,
           "tariffs": ["REGULAR"]}
        ],
        "addons": [
          {"id": "ad-coffee", "name": "Coffee", "price": 45}
        ],
        "free_seats": [
          {"section": "s1", "seats": [{"vehicle": 1, "index": "12"}]}
        ]
      }
    ],
    "codes": [
      {"code": "SPRING50", "amount": 50}
    ],
    "discounts": [
      {"id": "d-loyalty", "percentage": 20, "state": "VALID"}
    ]
  }

USAGE:
  catalog, err := factory.ParseCatalog(jsonString)
  route, pc, err := catalog.PriceClass("prg-brn-0800", "standard")

SEE ALSO:
  - backend/stub: Serves a Catalog as a basket.Backend
  - api/scenarios.go: Built-in demo catalogs
*/
package factory

import (
	"encoding/json"
	"fmt"

	"github.com/transitkit/basket-engine/basket"
)

// =============================================================================
// JSON SCHEMA TYPES
// =============================================================================

// CatalogJSON is the JSON representation of a catalog.
type CatalogJSON struct {
	Currency  string         `json:"currency"`
	Routes    []RouteJSON    `json:"routes"`
	Codes     []CodeJSON     `json:"codes,omitempty"`
	Discounts []DiscountJSON `json:"discounts,omitempty"`
}

type RouteJSON struct {
	ID           string           `json:"id"`
	Surcharge    *SurchargeJSON   `json:"surcharge,omitempty"`
	Sections     []SectionJSON    `json:"sections"`
	PriceClasses []PriceClassJSON `json:"price_classes"`
	Addons       []AddonJSON      `json:"addons,omitempty"`
	FreeSeats    []FreeSeatsJSON  `json:"free_seats,omitempty"`
	PassengerData *PassengerDataJSON `json:"passenger_data,omitempty"`
}

type SurchargeJSON struct {
	Name  string  `json:"name"`
	Price float64 `json:"price"`
}

type SectionJSON struct {
	ID          string `json:"id"`
	From        string `json:"from"`
	To          string `json:"to"`
	VehicleType string `json:"vehicle_type"`
}

type PriceClassJSON struct {
	SeatClass   string   `json:"seat_class"`
	Price       float64  `json:"price"`
	CreditPrice float64  `json:"credit_price,omitempty"`
	Tariffs     []string `json:"tariffs,omitempty"`
}

type AddonJSON struct {
	ID    string  `json:"id"`
	Name  string  `json:"name"`
	Price float64 `json:"price"`
}

type FreeSeatsJSON struct {
	Section string     `json:"section"`
	Seats   []SeatJSON `json:"seats"`
}

type SeatJSON struct {
	Vehicle int    `json:"vehicle"`
	Index   string `json:"index"`
}

type PassengerDataJSON struct {
	First  []string `json:"first"`
	Others []string `json:"others"`
}

type CodeJSON struct {
	Code   string  `json:"code"`
	Amount float64 `json:"amount"`
}

type DiscountJSON struct {
	ID         string  `json:"id"`
	Percentage float64 `json:"percentage"`
	State      string  `json:"state,omitempty"`
}

// =============================================================================
// CATALOG
// =============================================================================

// CatalogRoute bundles a route with the data the backend serves for it.
type CatalogRoute struct {
	Route         basket.Route
	PriceClasses  []basket.PriceClass
	Addons        []basket.Addon
	FreeSeats     []basket.SectionSeats
	PassengerData basket.PassengerDataRequirements
}

// Catalog is the parsed, lookup-friendly form of a CatalogJSON.
type Catalog struct {
	Currency  basket.Currency
	Routes    map[string]CatalogRoute
	Codes     map[string]float64
	Discounts []basket.Discount
}

// ParseCatalog converts a JSON catalog into a Catalog.
func ParseCatalog(data string) (Catalog, error) {
	var cj CatalogJSON
	if err := json.Unmarshal([]byte(data), &cj); err != nil {
		return Catalog{}, fmt.Errorf("invalid catalog JSON: %w", err)
	}
	return BuildCatalog(cj)
}

// BuildCatalog converts schema types into a Catalog with defaults applied.
func BuildCatalog(cj CatalogJSON) (Catalog, error) {
	if cj.Currency == "" {
		cj.Currency = string(basket.CurrencyCZK)
	}
	currency := basket.Currency(cj.Currency)

	cat := Catalog{
		Currency: currency,
		Routes:   make(map[string]CatalogRoute, len(cj.Routes)),
		Codes:    make(map[string]float64, len(cj.Codes)),
	}

	for _, rj := range cj.Routes {
		if rj.ID == "" {
			return Catalog{}, fmt.Errorf("catalog route without id")
		}
		if len(rj.PriceClasses) == 0 {
			return Catalog{}, fmt.Errorf("route %s: at least one price class required", rj.ID)
		}

		route := basket.Route{ID: rj.ID}
		if rj.Surcharge != nil {
			route.Surcharge = &basket.Surcharge{Name: rj.Surcharge.Name, Price: rj.Surcharge.Price}
		}
		vehicleTypes := map[string]bool{}
		for _, sj := range rj.Sections {
			route.Sections = append(route.Sections, basket.Section{
				ID:            sj.ID,
				FromStationID: sj.From,
				ToStationID:   sj.To,
				VehicleType:   sj.VehicleType,
			})
			if sj.VehicleType != "" && !vehicleTypes[sj.VehicleType] {
				vehicleTypes[sj.VehicleType] = true
				route.VehicleTypes = append(route.VehicleTypes, sj.VehicleType)
			}
		}

		cr := CatalogRoute{Route: route}
		for _, pj := range rj.PriceClasses {
			pc := basket.PriceClass{
				SeatClassKey: pj.SeatClass,
				Price:        pj.Price,
				CreditPrice:  pj.CreditPrice,
				Currency:     currency,
			}
			if pc.CreditPrice == 0 {
				pc.CreditPrice = pj.Price
			}
			if len(pj.Tariffs) == 0 {
				pc.Tariffs = []basket.Tariff{basket.TariffRegular}
			} else {
				for _, t := range pj.Tariffs {
					pc.Tariffs = append(pc.Tariffs, basket.Tariff(t))
				}
			}
			cr.PriceClasses = append(cr.PriceClasses, pc)
		}
		for _, aj := range rj.Addons {
			cr.Addons = append(cr.Addons, basket.Addon{ID: aj.ID, Name: aj.Name, Price: aj.Price})
		}
		for _, fj := range rj.FreeSeats {
			ss := basket.SectionSeats{SectionID: fj.Section}
			for _, seat := range fj.Seats {
				ss.Seats = append(ss.Seats, basket.Seat{VehicleNumber: seat.Vehicle, Index: seat.Index})
			}
			cr.FreeSeats = append(cr.FreeSeats, ss)
		}
		if rj.PassengerData != nil {
			cr.PassengerData = basket.PassengerDataRequirements{
				FirstPassengerData:  rj.PassengerData.First,
				OtherPassengersData: rj.PassengerData.Others,
			}
		} else {
			cr.PassengerData = DefaultPassengerData()
		}

		cat.Routes[rj.ID] = cr
	}

	for _, cjn := range cj.Codes {
		cat.Codes[cjn.Code] = cjn.Amount
	}

	for _, dj := range cj.Discounts {
		state := basket.DiscountState(dj.State)
		if state == "" {
			state = basket.DiscountValid
		}
		cat.Discounts = append(cat.Discounts, basket.Discount{
			ID:         basket.DiscountID(dj.ID),
			Percentage: dj.Percentage,
			State:      state,
		})
	}

	return cat, nil
}

// DefaultPassengerData is the requirement set used when a catalog route
// does not specify one: contact data for the first passenger, names for
// the rest.
func DefaultPassengerData() basket.PassengerDataRequirements {
	return basket.PassengerDataRequirements{
		FirstPassengerData:  []string{"firstName", "lastName", "email", "phone"},
		OtherPassengersData: []string{"firstName", "lastName"},
	}
}

// PriceClass looks up a route and one of its fare tiers by seat class key.
func (c Catalog) PriceClass(routeID, seatClassKey string) (basket.Route, basket.PriceClass, error) {
	cr, ok := c.Routes[routeID]
	if !ok {
		return basket.Route{}, basket.PriceClass{}, fmt.Errorf("route %q not in catalog", routeID)
	}
	for _, pc := range cr.PriceClasses {
		if pc.SeatClassKey == seatClassKey {
			return cr.Route, pc, nil
		}
	}
	return basket.Route{}, basket.PriceClass{}, fmt.Errorf("route %q has no seat class %q", routeID, seatClassKey)
}
