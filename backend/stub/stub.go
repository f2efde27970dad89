/*
Package stub provides a deterministic in-process basket.Backend driven
by a factory.Catalog.

PURPOSE:
  Serves demo scenarios and tests without a remote booking API. All
  answers come from the loaded catalog; verification math mirrors what
  the real backend does (flat code discounts capped at the ticket price,
  percentual discounts rounded at the currency boundary).

FAILURE INJECTION:
  Tests can make any call fail by setting FailNext with the call name
  ("addons", "passenger-data", "free-seats", "verify-addons",
  "verify-discount", "verify-code", "discounts"). The failure is
  consumed by the next matching call.

SEE ALSO:
  - factory/catalog.go: The catalog the stub serves
  - backend/httpclient: The production implementation
*/
package stub

import (
	"context"
	"sync"

	"github.com/transitkit/basket-engine/basket"
	"github.com/transitkit/basket-engine/factory"
)

// Stub implements basket.Backend over a catalog.
type Stub struct {
	mu      sync.Mutex
	catalog factory.Catalog
	fail    map[string]error
}

// New creates a stub backend serving the given catalog.
func New(catalog factory.Catalog) *Stub {
	return &Stub{catalog: catalog, fail: make(map[string]error)}
}

// SetCatalog swaps the served catalog (scenario loading).
func (s *Stub) SetCatalog(catalog factory.Catalog) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.catalog = catalog
}

// FailNext makes the next call of the given kind return err.
func (s *Stub) FailNext(call string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fail[call] = err
}

func (s *Stub) take(call string) (factory.Catalog, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err, ok := s.fail[call]; ok {
		delete(s.fail, call)
		return factory.Catalog{}, err
	}
	return s.catalog, nil
}

func (s *Stub) route(call, routeID string) (factory.CatalogRoute, error) {
	cat, err := s.take(call)
	if err != nil {
		return factory.CatalogRoute{}, err
	}
	cr, ok := cat.Routes[routeID]
	if !ok {
		return factory.CatalogRoute{}, &basket.NotFoundError{Kind: "item", ID: routeID}
	}
	return cr, nil
}

// FetchAddons returns the catalog addons for the route, unchecked with
// count zero.
func (s *Stub) FetchAddons(_ context.Context, route basket.Route, _ basket.PriceClass) ([]basket.Addon, error) {
	cr, err := s.route("addons", route.ID)
	if err != nil {
		return nil, err
	}
	return append([]basket.Addon(nil), cr.Addons...), nil
}

// FetchPassengerDataRequirements returns the route's requirement set.
func (s *Stub) FetchPassengerDataRequirements(_ context.Context, route basket.Route, _ basket.PriceClass) (basket.PassengerDataRequirements, error) {
	cr, err := s.route("passenger-data", route.ID)
	if err != nil {
		return basket.PassengerDataRequirements{}, err
	}
	return cr.PassengerData, nil
}

// FetchFreeSeats returns the free seats per section from the catalog.
func (s *Stub) FetchFreeSeats(_ context.Context, route basket.Route) ([]basket.SectionSeats, error) {
	cr, err := s.route("free-seats", route.ID)
	if err != nil {
		return nil, err
	}
	return append([]basket.SectionSeats(nil), cr.FreeSeats...), nil
}

// VerifyAddonSelection accepts any selection of known addons with
// non-negative counts.
func (s *Stub) VerifyAddonSelection(_ context.Context, route basket.Route, addons []basket.Addon) error {
	cr, err := s.route("verify-addons", route.ID)
	if err != nil {
		return err
	}
	known := make(map[string]bool, len(cr.Addons))
	for _, a := range cr.Addons {
		known[a.ID] = true
	}
	for _, a := range addons {
		if !known[a.ID] {
			return &basket.ValidationError{
				Message: "unknown addon",
				Fields:  map[string]string{"addon": a.ID},
			}
		}
		if a.Count < 0 {
			return &basket.ValidationError{
				Message: "addon count must not be negative",
				Fields:  map[string]string{"addon": a.ID},
			}
		}
	}
	return nil
}

// VerifyPercentualDiscount verifies a catalog discount at the given
// baseline price. The amount is the currency-rounded delta, the same
// arithmetic the reconciliation engine uses.
func (s *Stub) VerifyPercentualDiscount(_ context.Context, discountID basket.DiscountID, item basket.BasketItem, ticketPrice float64) (basket.Verification, error) {
	cat, err := s.take("verify-discount")
	if err != nil {
		return basket.Verification{}, err
	}
	for _, d := range cat.Discounts {
		if d.ID != discountID {
			continue
		}
		if d.State != basket.DiscountValid {
			return basket.Verification{}, basket.ErrDiscountNotUsable
		}
		currency := item.ItemCurrency()
		raw := ticketPrice * d.Percentage / 100
		discounted := basket.RoundByCurrency(ticketPrice-raw, currency)
		return basket.Verification{
			Amount:                ticketPrice - discounted,
			Currency:              currency,
			DiscountedTicketPrice: discounted,
		}, nil
	}
	return basket.Verification{}, &basket.NotFoundError{Kind: "discount", ID: string(discountID)}
}

// VerifyCodeDiscount verifies a promo code. The flat amount is capped at
// the ticket price.
func (s *Stub) VerifyCodeDiscount(_ context.Context, code string, item basket.BasketItem, ticketPrice float64) (basket.Verification, error) {
	cat, err := s.take("verify-code")
	if err != nil {
		return basket.Verification{}, err
	}
	amount, ok := cat.Codes[code]
	if !ok {
		return basket.Verification{}, &basket.ValidationError{
			Message: "unknown or expired code",
			Fields:  map[string]string{"code": code},
		}
	}
	if amount > ticketPrice {
		amount = ticketPrice
	}
	return basket.Verification{
		Amount:                amount,
		Currency:              item.ItemCurrency(),
		DiscountedTicketPrice: ticketPrice - amount,
	}, nil
}

// FetchUserPercentualDiscounts returns the catalog's user discounts.
func (s *Stub) FetchUserPercentualDiscounts(_ context.Context) ([]basket.Discount, error) {
	cat, err := s.take("discounts")
	if err != nil {
		return nil, err
	}
	return append([]basket.Discount(nil), cat.Discounts...), nil
}

var _ basket.Backend = (*Stub)(nil)
