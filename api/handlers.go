/*
handlers.go - HTTP API handlers for the basket engine

PURPOSE:
  Exposes the basket engine via REST API. Handles HTTP request/response,
  JSON serialization, and delegates to domain logic.

ENDPOINTS:
  Basket:
    GET    /api/baskets/{basketID}               Full basket snapshot
    DELETE /api/baskets/{basketID}               Clear the basket
    GET    /api/baskets/{basketID}/totals        Priced totals only

  Items:
    POST   /api/baskets/{basketID}/items                   Add trip selection
    DELETE /api/baskets/{basketID}/items/{itemID}          Remove item
    PUT    /api/baskets/{basketID}/items/{itemID}/addons   Replace addons
    PUT    /api/baskets/{basketID}/items/{itemID}/seats    Replace seat selection
    POST   /api/baskets/{basketID}/items/{itemID}/seats/special  Mark special seat
    PUT    /api/baskets/{basketID}/items/{itemID}/passengers     Fill passengers
    POST   /api/baskets/{basketID}/items/{itemID}/code     Apply promo code
    DELETE /api/baskets/{basketID}/items/{itemID}/code     Remove promo code

  Discounts:
    GET    /api/baskets/{basketID}/discounts                    Joined discount list
    POST   /api/baskets/{basketID}/discounts/refresh            Re-fetch from backend
    POST   /api/baskets/{basketID}/discounts/{discountID}/apply Apply to an item
    DELETE /api/baskets/{basketID}/discounts/{discountID}       Remove from its item

  Scenarios:
    GET    /api/scenarios              List demo scenarios
    POST   /api/scenarios/load         Load a demo scenario

REQUEST FLOW:
  1. Parse HTTP request
  2. Validate input (reservation package for seats/passengers)
  3. Call domain logic (basket.Service)
  4. Serialize response
  5. Handle errors

ERROR HANDLING:
  Domain errors are mapped to HTTP status via the basket error predicates:
  - 400: Validation errors, invalid input (IsClientError)
  - 404: Item or discount not found (IsNotFound)
  - 502: Backend unreachable (IsTransient)
  - 500: Internal errors

SECURITY NOTE:
  Currently NO authentication or authorization. All endpoints are public.

SEE ALSO:
  - dto.go: Request/response data structures
  - scenarios.go: Demo scenario loaders
  - server.go: Router setup and middleware
*/
package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/transitkit/basket-engine/basket"
	"github.com/transitkit/basket-engine/factory"
	"github.com/transitkit/basket-engine/reservation"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Service *basket.Service
	Catalog factory.Catalog

	// Track currently loaded scenario
	currentScenario string
}

// NewHandler creates a new handler over a basket service and catalog.
func NewHandler(svc *basket.Service, catalog factory.Catalog) *Handler {
	return &Handler{Service: svc, Catalog: catalog}
}

func basketID(r *http.Request) basket.BasketID {
	return basket.BasketID(chi.URLParam(r, "basketID"))
}

func itemID(r *http.Request) basket.ItemID {
	return basket.ItemID(chi.URLParam(r, "itemID"))
}

func isCredit(r *http.Request) bool {
	return r.URL.Query().Get("credit") == "true"
}

// =============================================================================
// BASKET HANDLERS
// =============================================================================

// GetBasket returns the full basket snapshot.
func (h *Handler) GetBasket(w http.ResponseWriter, r *http.Request) {
	id := basketID(r)
	st, err := h.Service.State(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load basket", err)
		return
	}
	writeJSON(w, http.StatusOK, toBasketDTO(id, st, isCredit(r)))
}

// ClearBasket empties the basket.
func (h *Handler) ClearBasket(w http.ResponseWriter, r *http.Request) {
	id := basketID(r)
	st, err := h.Service.Clear(r.Context(), id)
	if err != nil {
		writeDomainError(w, "Failed to clear basket", err)
		return
	}
	writeJSON(w, http.StatusOK, toBasketDTO(id, st, isCredit(r)))
}

// GetTotals returns the priced totals without the item detail.
func (h *Handler) GetTotals(w http.ResponseWriter, r *http.Request) {
	id := basketID(r)
	st, err := h.Service.State(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load basket", err)
		return
	}
	writeJSON(w, http.StatusOK, toBasketDTO(id, st, isCredit(r)).Totals)
}

// =============================================================================
// ITEM HANDLERS
// =============================================================================

// AddItem resolves a route and fare tier from the catalog and adds it.
func (h *Handler) AddItem(w http.ResponseWriter, r *http.Request) {
	var req AddItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.RouteID == "" || req.SeatClassKey == "" {
		writeError(w, http.StatusBadRequest, "route_id and seat_class_key are required", nil)
		return
	}

	route, pc, err := h.Catalog.PriceClass(req.RouteID, req.SeatClassKey)
	if err != nil {
		writeError(w, http.StatusNotFound, "Unknown route or fare class", err)
		return
	}

	id := basketID(r)
	item, err := h.Service.AddItem(r.Context(), id, route, pc)
	if err != nil {
		writeDomainError(w, "Failed to add item", err)
		return
	}

	st, err := h.Service.State(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load basket", err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"item":   toItemDTO(item, st.Applied, isCredit(r)),
		"basket": toBasketDTO(id, st, isCredit(r)),
	})
}

// RemoveItem removes one item from the basket.
func (h *Handler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	id := basketID(r)
	st, err := h.Service.RemoveItem(r.Context(), id, itemID(r))
	if err != nil {
		writeDomainError(w, "Failed to remove item", err)
		return
	}
	writeJSON(w, http.StatusOK, toBasketDTO(id, st, isCredit(r)))
}

// UpdateAddons verifies and replaces the addon selection of one item.
func (h *Handler) UpdateAddons(w http.ResponseWriter, r *http.Request) {
	var req UpdateAddonsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	for _, a := range req.Addons {
		if a.Count < 0 {
			writeError(w, http.StatusBadRequest, "Addon count must be non-negative", nil)
			return
		}
	}

	id := basketID(r)
	st, err := h.Service.UpdateAddons(r.Context(), id, itemID(r), fromAddonDTOs(req.Addons))
	if err != nil {
		writeDomainError(w, "Failed to update addons", err)
		return
	}
	writeJSON(w, http.StatusOK, toBasketDTO(id, st, isCredit(r)))
}

// =============================================================================
// SEAT HANDLERS
// =============================================================================

// SelectSeats validates the selection against free seats and stores it.
func (h *Handler) SelectSeats(w http.ResponseWriter, r *http.Request) {
	var req SelectSeatsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	ctx := r.Context()
	id := basketID(r)
	itID := itemID(r)

	st, err := h.Service.State(ctx, id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load basket", err)
		return
	}
	item, ok := st.Item(itID)
	if !ok || item.Status != basket.StatusPresent {
		writeError(w, http.StatusNotFound, "Item not found", nil)
		return
	}

	selection := fromSeatDTOs(req.Seats)
	free, err := h.Service.Backend.FetchFreeSeats(ctx, item.Route)
	if err != nil {
		writeDomainError(w, "Failed to fetch free seats", err)
		return
	}
	if err := reservation.ValidateSelection(free, selection); err != nil {
		writeDomainError(w, "Invalid seat selection", err)
		return
	}

	next, err := h.Service.SelectSeats(ctx, id, itID, selection)
	if err != nil {
		writeDomainError(w, "Failed to select seats", err)
		return
	}
	writeJSON(w, http.StatusOK, toBasketDTO(id, next, isCredit(r)))
}

// MarkSpecialSeat flags one selected seat as special-needs.
func (h *Handler) MarkSpecialSeat(w http.ResponseWriter, r *http.Request) {
	var req MarkSpecialSeatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.SectionID == "" || req.SeatIndex == "" {
		writeError(w, http.StatusBadRequest, "section_id and seat_index are required", nil)
		return
	}

	id := basketID(r)
	st, err := h.Service.MarkSpecialSeat(r.Context(), id, itemID(r), req.SectionID, req.SeatIndex, req.Special)
	if err != nil {
		writeDomainError(w, "Failed to mark seat", err)
		return
	}
	writeJSON(w, http.StatusOK, toBasketDTO(id, st, isCredit(r)))
}

// =============================================================================
// PASSENGER HANDLERS
// =============================================================================

// SetPassengers validates and stores passenger data for one item.
func (h *Handler) SetPassengers(w http.ResponseWriter, r *http.Request) {
	var req SetPassengersRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	ctx := r.Context()
	id := basketID(r)
	itID := itemID(r)

	st, err := h.Service.State(ctx, id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load basket", err)
		return
	}
	item, ok := st.Item(itID)
	if !ok || item.Status != basket.StatusPresent {
		writeError(w, http.StatusNotFound, "Item not found", nil)
		return
	}

	passengers := reservation.Prefill(item, fromPassengerDTOs(req.Passengers))
	if err := reservation.ValidatePassengers(item, passengers); err != nil {
		writeDomainError(w, "Invalid passenger data", err)
		return
	}

	next, err := h.Service.PrefillPassengers(ctx, id, itID, passengers)
	if err != nil {
		writeDomainError(w, "Failed to set passengers", err)
		return
	}
	writeJSON(w, http.StatusOK, toBasketDTO(id, next, isCredit(r)))
}

// =============================================================================
// CODE DISCOUNT HANDLERS
// =============================================================================

// ApplyCode verifies a promo code against one item and applies it.
func (h *Handler) ApplyCode(w http.ResponseWriter, r *http.Request) {
	var req ApplyCodeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.Code == "" {
		writeError(w, http.StatusBadRequest, "code is required", nil)
		return
	}

	id := basketID(r)
	st, err := h.Service.ApplyCodeDiscount(r.Context(), id, itemID(r), req.Code, isCredit(r))
	if err != nil {
		writeDomainError(w, "Failed to apply code", err)
		return
	}
	writeJSON(w, http.StatusOK, toBasketDTO(id, st, isCredit(r)))
}

// RemoveCode removes the promo code from one item.
func (h *Handler) RemoveCode(w http.ResponseWriter, r *http.Request) {
	id := basketID(r)
	st, err := h.Service.RemoveCodeDiscount(r.Context(), id, itemID(r))
	if err != nil {
		writeDomainError(w, "Failed to remove code", err)
		return
	}
	writeJSON(w, http.StatusOK, toBasketDTO(id, st, isCredit(r)))
}

// =============================================================================
// PERCENTUAL DISCOUNT HANDLERS
// =============================================================================

// ListDiscounts returns the session discount list joined with applied state.
func (h *Handler) ListDiscounts(w http.ResponseWriter, r *http.Request) {
	st, err := h.Service.State(r.Context(), basketID(r))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load basket", err)
		return
	}
	writeJSON(w, http.StatusOK, toDiscountDTOs(basket.JoinApplied(st.Discounts, st.Applied)))
}

// RefreshDiscounts re-fetches the user's discounts from the backend.
func (h *Handler) RefreshDiscounts(w http.ResponseWriter, r *http.Request) {
	id := basketID(r)
	st, err := h.Service.RefreshDiscounts(r.Context(), id)
	if err != nil {
		writeDomainError(w, "Failed to refresh discounts", err)
		return
	}
	writeJSON(w, http.StatusOK, toDiscountDTOs(basket.JoinApplied(st.Discounts, st.Applied)))
}

// ApplyDiscount applies a percentual discount to one item.
func (h *Handler) ApplyDiscount(w http.ResponseWriter, r *http.Request) {
	var req ApplyDiscountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.ItemID == "" {
		writeError(w, http.StatusBadRequest, "item_id is required", nil)
		return
	}

	id := basketID(r)
	discountID := basket.DiscountID(chi.URLParam(r, "discountID"))
	st, err := h.Service.ApplyPercentualDiscount(r.Context(), id, basket.ItemID(req.ItemID), discountID, isCredit(r))
	if err != nil {
		writeDomainError(w, "Failed to apply discount", err)
		return
	}
	writeJSON(w, http.StatusOK, toBasketDTO(id, st, isCredit(r)))
}

// RemoveDiscount removes a percentual discount from its item.
func (h *Handler) RemoveDiscount(w http.ResponseWriter, r *http.Request) {
	id := basketID(r)
	discountID := basket.DiscountID(chi.URLParam(r, "discountID"))
	st, err := h.Service.RemovePercentualDiscount(r.Context(), id, discountID, isCredit(r))
	if err != nil {
		writeDomainError(w, "Failed to remove discount", err)
		return
	}
	writeJSON(w, http.StatusOK, toBasketDTO(id, st, isCredit(r)))
}

// =============================================================================
// HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// writeDomainError maps basket error predicates to HTTP status codes.
func writeDomainError(w http.ResponseWriter, message string, err error) {
	status := http.StatusInternalServerError
	code := ""
	var details any = err.Error()

	var verr *basket.ValidationError
	switch {
	case basket.IsClientError(err):
		status = http.StatusBadRequest
		code = "validation"
		if errors.As(err, &verr) && len(verr.Fields) > 0 {
			details = verr.Fields
		}
	case basket.IsNotFound(err):
		status = http.StatusNotFound
		code = "not_found"
	case basket.IsTransient(err):
		status = http.StatusBadGateway
		code = "backend_unavailable"
	}

	writeJSON(w, status, ErrorResponse{Error: message, Code: code, Details: details})
}
