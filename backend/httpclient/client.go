/*
Package httpclient implements basket.Backend against the remote booking
API over HTTP/JSON.

PURPOSE:
  Owns everything the engine deliberately does not know about: base URL,
  headers, authentication token, timeouts. Failures are mapped onto the
  engine's error taxonomy so callers can classify them without touching
  net/http:

    transport error / 5xx  -> *basket.NetworkError (transient)
    404                    -> *basket.NotFoundError
    400 / 422              -> *basket.ValidationError with field messages

TIMEOUTS:
  The HTTP client's timeout is the only deadline this package adds; the
  engine passes its context through untouched and never retries.

SEE ALSO:
  - basket/service.go: The Backend interface served here
  - backend/stub: In-process implementation for tests and demos
*/
package httpclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/transitkit/basket-engine/basket"
)

// Client is an HTTP implementation of basket.Backend.
type Client struct {
	BaseURL    string
	AuthToken  string
	HTTPClient *http.Client
}

// New creates a client for the booking API at baseURL.
func New(baseURL string) *Client {
	return &Client{
		BaseURL:    baseURL,
		HTTPClient: &http.Client{Timeout: 15 * time.Second},
	}
}

// =============================================================================
// WIRE TYPES
// =============================================================================

type addonWire struct {
	ID    string  `json:"id"`
	Name  string  `json:"name"`
	Price float64 `json:"price"`
}

type passengerDataWire struct {
	FirstPassengerData  []string `json:"firstPassengerData"`
	OtherPassengersData []string `json:"otherPassengersData"`
}

type sectionSeatsWire struct {
	SectionID string `json:"sectionId"`
	Seats     []struct {
		Vehicle int    `json:"vehicleNumber"`
		Index   string `json:"index"`
	} `json:"seats"`
}

type verificationWire struct {
	Amount                float64 `json:"amount"`
	Currency              string  `json:"currency"`
	DiscountedTicketPrice float64 `json:"discountedTicketPrice"`
}

type discountWire struct {
	ID         string  `json:"id"`
	Percentage float64 `json:"percentage"`
	State      string  `json:"state"`
}

type verifyAddonsWire struct {
	RouteID string `json:"routeId"`
	Addons  []struct {
		ID    string `json:"id"`
		Count int    `json:"count"`
	} `json:"addons"`
}

type verifyDiscountWire struct {
	RouteID      string  `json:"routeId"`
	SeatClassKey string  `json:"seatClassKey"`
	TicketPrice  float64 `json:"ticketPrice"`
	Currency     string  `json:"currency"`
}

type errorWire struct {
	Message string            `json:"message"`
	Fields  map[string]string `json:"fields,omitempty"`
}

// =============================================================================
// BACKEND IMPLEMENTATION
// =============================================================================

func (c *Client) FetchAddons(ctx context.Context, route basket.Route, pc basket.PriceClass) ([]basket.Addon, error) {
	var wire []addonWire
	path := fmt.Sprintf("/routes/%s/addons?seatClass=%s", route.ID, pc.SeatClassKey)
	if err := c.call(ctx, http.MethodGet, path, nil, &wire); err != nil {
		return nil, err
	}
	addons := make([]basket.Addon, len(wire))
	for i, w := range wire {
		addons[i] = basket.Addon{ID: w.ID, Name: w.Name, Price: w.Price}
	}
	return addons, nil
}

func (c *Client) FetchPassengerDataRequirements(ctx context.Context, route basket.Route, pc basket.PriceClass) (basket.PassengerDataRequirements, error) {
	var wire passengerDataWire
	path := fmt.Sprintf("/routes/%s/passenger-data?seatClass=%s", route.ID, pc.SeatClassKey)
	if err := c.call(ctx, http.MethodGet, path, nil, &wire); err != nil {
		return basket.PassengerDataRequirements{}, err
	}
	return basket.PassengerDataRequirements{
		FirstPassengerData:  wire.FirstPassengerData,
		OtherPassengersData: wire.OtherPassengersData,
	}, nil
}

func (c *Client) FetchFreeSeats(ctx context.Context, route basket.Route) ([]basket.SectionSeats, error) {
	var wire []sectionSeatsWire
	if err := c.call(ctx, http.MethodGet, "/routes/"+route.ID+"/free-seats", nil, &wire); err != nil {
		return nil, err
	}
	seats := make([]basket.SectionSeats, len(wire))
	for i, w := range wire {
		ss := basket.SectionSeats{SectionID: w.SectionID}
		for _, seat := range w.Seats {
			ss.Seats = append(ss.Seats, basket.Seat{VehicleNumber: seat.Vehicle, Index: seat.Index})
		}
		seats[i] = ss
	}
	return seats, nil
}

func (c *Client) VerifyAddonSelection(ctx context.Context, route basket.Route, addons []basket.Addon) error {
	body := verifyAddonsWire{RouteID: route.ID}
	for _, a := range addons {
		if !a.Checked {
			continue
		}
		body.Addons = append(body.Addons, struct {
			ID    string `json:"id"`
			Count int    `json:"count"`
		}{ID: a.ID, Count: a.Count})
	}
	return c.call(ctx, http.MethodPost, "/addons/verify", body, nil)
}

func (c *Client) VerifyPercentualDiscount(ctx context.Context, discountID basket.DiscountID, item basket.BasketItem, ticketPrice float64) (basket.Verification, error) {
	body := verifyDiscountWire{
		RouteID:      item.Route.ID,
		SeatClassKey: item.SelectedPriceClass.SeatClassKey,
		TicketPrice:  ticketPrice,
		Currency:     string(item.ItemCurrency()),
	}
	var wire verificationWire
	if err := c.call(ctx, http.MethodPost, "/discounts/"+string(discountID)+"/verify", body, &wire); err != nil {
		return basket.Verification{}, err
	}
	return toVerification(wire), nil
}

func (c *Client) VerifyCodeDiscount(ctx context.Context, code string, item basket.BasketItem, ticketPrice float64) (basket.Verification, error) {
	body := struct {
		Code string `json:"code"`
		verifyDiscountWire
	}{Code: code, verifyDiscountWire: verifyDiscountWire{
		RouteID:      item.Route.ID,
		SeatClassKey: item.SelectedPriceClass.SeatClassKey,
		TicketPrice:  ticketPrice,
		Currency:     string(item.ItemCurrency()),
	}}
	var wire verificationWire
	if err := c.call(ctx, http.MethodPost, "/code-discounts/verify", body, &wire); err != nil {
		return basket.Verification{}, err
	}
	return toVerification(wire), nil
}

func (c *Client) FetchUserPercentualDiscounts(ctx context.Context) ([]basket.Discount, error) {
	var wire []discountWire
	if err := c.call(ctx, http.MethodGet, "/users/self/discounts", nil, &wire); err != nil {
		return nil, err
	}
	discounts := make([]basket.Discount, len(wire))
	for i, w := range wire {
		discounts[i] = basket.Discount{
			ID:         basket.DiscountID(w.ID),
			Percentage: w.Percentage,
			State:      basket.DiscountState(w.State),
		}
	}
	return discounts, nil
}

func toVerification(w verificationWire) basket.Verification {
	return basket.Verification{
		Amount:                w.Amount,
		Currency:              basket.Currency(w.Currency),
		DiscountedTicketPrice: w.DiscountedTicketPrice,
	}
}

// =============================================================================
// TRANSPORT
// =============================================================================

func (c *Client) call(ctx context.Context, method, path string, body, out any) error {
	op := method + " " + path

	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("%s: encode request: %w", op, err)
		}
		reader = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, reader)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.AuthToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.AuthToken)
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return &basket.NetworkError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		if out == nil {
			return nil
		}
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return &basket.NetworkError{Op: op, Err: fmt.Errorf("decode response: %w", err)}
		}
		return nil

	case resp.StatusCode == http.StatusNotFound:
		return &basket.NotFoundError{Kind: "item", ID: path}

	case resp.StatusCode == http.StatusBadRequest || resp.StatusCode == http.StatusUnprocessableEntity:
		var ew errorWire
		if err := json.NewDecoder(resp.Body).Decode(&ew); err != nil || ew.Message == "" {
			ew.Message = "request rejected"
		}
		return &basket.ValidationError{Message: ew.Message, Fields: ew.Fields}

	default:
		return &basket.NetworkError{Op: op, Err: fmt.Errorf("unexpected status %d", resp.StatusCode)}
	}
}

var _ basket.Backend = (*Client)(nil)
