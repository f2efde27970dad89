/*
scenarios.go - Demo scenario loaders for testing and demonstrations

PURPOSE:

	Provides pre-built catalogs that populate the stub backend with
	realistic trip data for testing and demos. Each scenario swaps in a
	catalog of routes, fare tiers, addons, promo codes and discounts.

AVAILABLE SCENARIOS:

	city-hopper:       Two short routes, addons, one promo code
	discount-stacking: One route with two stacking percentual discounts
	euro-routes:       EUR-priced routes exercising 1-decimal rounding

HOW SCENARIOS WORK:
 1. Parse the scenario's catalog JSON
 2. Swap the catalog into the stub backend
 3. Replace the handler's catalog for route lookups

USAGE VIA API:

	POST /api/scenarios/load
	{"scenario_id": "discount-stacking"}

ADDING NEW SCENARIOS:
 1. Add to 'scenarios' slice with ID, name, description
 2. Add the catalog JSON to scenarioCatalogs

NOTE:

	Scenarios only change the stub backend. Against a real booking API
	the scenario endpoints do nothing.

SEE ALSO:
  - factory/catalog.go: Catalog JSON schema
  - backend/stub: Catalog-driven backend
*/
package api

import (
	"encoding/json"
	"net/http"

	"github.com/transitkit/basket-engine/backend/stub"
	"github.com/transitkit/basket-engine/factory"
)

// =============================================================================
// SCENARIO DEFINITIONS
// =============================================================================

var scenarios = []ScenarioDTO{
	{
		ID:          "city-hopper",
		Name:        "City Hopper",
		Description: "Two short CZK routes with addons and the SPRING50 promo code",
	},
	{
		ID:          "discount-stacking",
		Name:        "Discount Stacking",
		Description: "One route with a promo code and two stacking percentual discounts",
	},
	{
		ID:          "euro-routes",
		Name:        "Euro Routes",
		Description: "EUR-priced cross-border routes with one-decimal rounding",
	},
}

var scenarioCatalogs = map[string]string{
	"city-hopper": `{
		"currency": "CZK",
		"routes": [
			{
				"id": "prg-brn-0800",
				"sections": [
					{"id": "s1", "from": "PRG", "to": "BRN", "vehicle_type": "train"}
				],
				"price_classes": [
					{"seat_class": "standard", "price": 250, "tariffs": ["REGULAR"]},
					{"seat_class": "business", "price": 390, "credit_price": 370, "tariffs": ["REGULAR"]}
				],
				"addons": [
					{"id": "ad-coffee", "name": "Coffee", "price": 45},
					{"id": "ad-paper", "name": "Newspaper", "price": 25}
				],
				"free_seats": [
					{"section": "s1", "seats": [
						{"vehicle": 1, "index": "11"}, {"vehicle": 1, "index": "12"},
						{"vehicle": 2, "index": "4"}
					]}
				]
			},
			{
				"id": "brn-olo-1215",
				"surcharge": {"name": "express", "price": 30},
				"sections": [
					{"id": "s1", "from": "BRN", "to": "OLO", "vehicle_type": "bus"}
				],
				"price_classes": [
					{"seat_class": "standard", "price": 180, "tariffs": ["REGULAR", "CHILD"]}
				]
			}
		],
		"codes": [
			{"code": "SPRING50", "amount": 50}
		]
	}`,
	"discount-stacking": `{
		"currency": "CZK",
		"routes": [
			{
				"id": "prg-vie-0930",
				"sections": [
					{"id": "s1", "from": "PRG", "to": "BRN", "vehicle_type": "train"},
					{"id": "s2", "from": "BRN", "to": "VIE", "vehicle_type": "train"}
				],
				"price_classes": [
					{"seat_class": "standard", "price": 500, "tariffs": ["REGULAR"]}
				],
				"addons": [
					{"id": "ad-meal", "name": "Warm meal", "price": 120}
				]
			}
		],
		"codes": [
			{"code": "WELCOME50", "amount": 50}
		],
		"discounts": [
			{"id": "d-loyalty", "percentage": 20, "state": "VALID"},
			{"id": "d-partner", "percentage": 10, "state": "VALID"}
		]
	}`,
	"euro-routes": `{
		"currency": "EUR",
		"routes": [
			{
				"id": "vie-bud-1100",
				"sections": [
					{"id": "s1", "from": "VIE", "to": "BUD", "vehicle_type": "train"}
				],
				"price_classes": [
					{"seat_class": "standard", "price": 10.25, "tariffs": ["REGULAR"]},
					{"seat_class": "first", "price": 18.9, "tariffs": ["REGULAR"]}
				]
			}
		],
		"discounts": [
			{"id": "d-euro", "percentage": 10, "state": "VALID"}
		]
	}`,
}

// ListScenarios returns available scenarios.
func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, scenarios)
}

// GetCurrentScenario returns the currently loaded scenario, if any.
func (h *Handler) GetCurrentScenario(w http.ResponseWriter, r *http.Request) {
	if h.currentScenario == "" {
		writeJSON(w, http.StatusOK, nil)
		return
	}

	for _, s := range scenarios {
		if s.ID == h.currentScenario {
			writeJSON(w, http.StatusOK, s)
			return
		}
	}

	writeJSON(w, http.StatusOK, ScenarioDTO{
		ID:   h.currentScenario,
		Name: h.currentScenario,
	})
}

// LoadScenario swaps in a predefined catalog.
func (h *Handler) LoadScenario(w http.ResponseWriter, r *http.Request) {
	var req LoadScenarioRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	data, ok := scenarioCatalogs[req.ScenarioID]
	if !ok {
		writeError(w, http.StatusBadRequest, "Unknown scenario", nil)
		return
	}

	catalog, err := factory.ParseCatalog(data)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load scenario", err)
		return
	}

	// Scenarios only work against the stub backend.
	stubBackend, ok := h.Service.Backend.(*stub.Stub)
	if !ok {
		writeError(w, http.StatusConflict, "Scenarios require the stub backend", nil)
		return
	}

	stubBackend.SetCatalog(catalog)
	h.Catalog = catalog
	h.currentScenario = req.ScenarioID

	writeJSON(w, http.StatusOK, map[string]string{"status": "loaded", "scenario": req.ScenarioID})
}
