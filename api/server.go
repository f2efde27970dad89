/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

ROUTER: chi
  Chi was chosen for:
  - Lightweight and fast
  - Context-based
  - Middleware support
  - RESTful route patterns

MIDDLEWARE STACK:
  1. Logger:     Request logging
  2. Recoverer:  Panic recovery (500 instead of crash)
  3. RequestID:  Unique ID per request for tracing
  4. CORS:       Cross-origin requests for frontend

ROUTE GROUPS:
  /api/baskets/*        Basket, item, seat, passenger and discount ops
  /api/scenarios/*      Demo scenarios

SECURITY NOTE:
  No authentication middleware currently. All endpoints are public.

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/server/main.go: Server startup
*/
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:5173", "http://localhost:8080"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	// API routes
	r.Route("/api", func(r chi.Router) {
		// Basket routes
		r.Route("/baskets/{basketID}", func(r chi.Router) {
			r.Get("/", h.GetBasket)
			r.Delete("/", h.ClearBasket)
			r.Get("/totals", h.GetTotals)

			r.Route("/items", func(r chi.Router) {
				r.Post("/", h.AddItem)
				r.Route("/{itemID}", func(r chi.Router) {
					r.Delete("/", h.RemoveItem)
					r.Put("/addons", h.UpdateAddons)
					r.Put("/seats", h.SelectSeats)
					r.Post("/seats/special", h.MarkSpecialSeat)
					r.Put("/passengers", h.SetPassengers)
					r.Post("/code", h.ApplyCode)
					r.Delete("/code", h.RemoveCode)
				})
			})

			r.Route("/discounts", func(r chi.Router) {
				r.Get("/", h.ListDiscounts)
				r.Post("/refresh", h.RefreshDiscounts)
				r.Post("/{discountID}/apply", h.ApplyDiscount)
				r.Delete("/{discountID}", h.RemoveDiscount)
			})
		})

		// Scenario routes
		r.Route("/scenarios", func(r chi.Router) {
			r.Get("/", h.ListScenarios)
			r.Get("/current", h.GetCurrentScenario)
			r.Post("/load", h.LoadScenario)
		})
	})

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(`<!DOCTYPE html>
<html>
<head><title>Basket Engine</title></head>
<body style="font-family: system-ui; max-width: 800px; margin: 50px auto; padding: 20px;">
<h1>Basket Engine API</h1>
<h2>API Endpoints</h2>
<ul>
<li><code>GET /api/baskets/{id}</code> - Basket snapshot</li>
<li><code>POST /api/baskets/{id}/items</code> - Add trip selection</li>
<li><code>GET /api/baskets/{id}/discounts</code> - Discount list</li>
<li><a href="/api/scenarios">/api/scenarios</a> - List demo scenarios</li>
</ul>
</body>
</html>`))
	})

	return r
}
