/*
Package sqlite provides a SQLite-backed implementation of the basket
StateStore.

PURPOSE:
  Persists basket snapshots so an interrupted session (app restart,
  server redeploy) resumes with the user's basket intact. In production
  the same patterns apply to PostgreSQL - only minor SQL dialect
  differences.

INTERFACES IMPLEMENTED:
  basket.StateStore: Load / Save / List of basket snapshots

SNAPSHOT SEMANTICS:
  A basket snapshot is saved as a whole inside one database transaction:
  the basket row, its items, the session discount list and the applied
  relation are replaced together. Readers therefore never observe a
  half-written basket, matching the engine's atomic-transition contract.

KEY TABLES:
  baskets:           One row per basket with the expiry clock
  basket_items:      Items in display order, payload as JSON
  basket_discounts:  Session discount list in verification order
  applied_discounts: discount id -> item assignment with amounts

AMOUNT COLUMNS:
  Monetary amounts are stored as decimal TEXT (shopspring/decimal), not
  as REAL, so a round-tripped snapshot re-prices identically.

CONCURRENCY:
  Uses sync.RWMutex for thread-safety. In production with PostgreSQL,
  database-level concurrency control handles this instead.

WAL MODE:
  SQLite is opened with WAL (Write-Ahead Logging) for better concurrency:
  - Multiple readers don't block
  - Single writer at a time
  - Better crash recovery

USAGE:
  store, err := sqlite.New("./data/baskets.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

  svc := basket.NewService(store, backend)

SEE ALSO:
  - basket/service.go: StateStore interface definition
  - basket/store/memory.go: In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/transitkit/basket-engine/basket"
)

// Store implements basket.StateStore using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS baskets (
		id TEXT PRIMARY KEY,
		last_change TEXT NOT NULL DEFAULT '',
		updated_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS basket_items (
		basket_id TEXT NOT NULL REFERENCES baskets(id) ON DELETE CASCADE,
		id TEXT NOT NULL,
		position INTEGER NOT NULL,
		status TEXT NOT NULL,
		payload TEXT NOT NULL,
		PRIMARY KEY (basket_id, id)
	);

	CREATE TABLE IF NOT EXISTS basket_discounts (
		basket_id TEXT NOT NULL REFERENCES baskets(id) ON DELETE CASCADE,
		id TEXT NOT NULL,
		position INTEGER NOT NULL,
		percentage TEXT NOT NULL,
		state TEXT NOT NULL,
		PRIMARY KEY (basket_id, id)
	);

	CREATE TABLE IF NOT EXISTS applied_discounts (
		basket_id TEXT NOT NULL REFERENCES baskets(id) ON DELETE CASCADE,
		discount_id TEXT NOT NULL,
		item_id TEXT NOT NULL,
		amount TEXT NOT NULL,
		currency TEXT NOT NULL,
		discounted_ticket_price TEXT NOT NULL,
		PRIMARY KEY (basket_id, discount_id)
	);

	CREATE INDEX IF NOT EXISTS idx_basket_items_position
		ON basket_items(basket_id, position);
	CREATE INDEX IF NOT EXISTS idx_basket_discounts_position
		ON basket_discounts(basket_id, position);
	`
	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// ITEM PAYLOAD - stored JSON shape of one basket item
// =============================================================================

// itemPayload is the persisted form of a basket item. Monetary fields
// nested inside the payload stay as decimal strings.
type itemPayload struct {
	Route              basket.Route                     `json:"route"`
	SelectedPriceClass basket.PriceClass                `json:"selected_price_class"`
	Addons             []basket.Addon                   `json:"addons,omitempty"`
	CodeDiscount       *codeDiscountPayload             `json:"code_discount,omitempty"`
	Seats              []basket.SectionSeats            `json:"seats,omitempty"`
	Passengers         []basket.Passenger               `json:"passengers,omitempty"`
	PassengerData      basket.PassengerDataRequirements `json:"passenger_data"`
	AddedAt            time.Time                        `json:"added_at"`
}

type codeDiscountPayload struct {
	Code                  string `json:"code"`
	Amount                string `json:"amount"`
	Currency              string `json:"currency"`
	DiscountedTicketPrice string `json:"discounted_ticket_price"`
}

func encodeItem(item basket.BasketItem) (string, error) {
	p := itemPayload{
		Route:              item.Route,
		SelectedPriceClass: item.SelectedPriceClass,
		Addons:             item.Addons,
		Seats:              item.Seats,
		Passengers:         item.Passengers,
		PassengerData:      item.PassengerData,
		AddedAt:            item.AddedAt,
	}
	if item.CodeDiscount != nil {
		p.CodeDiscount = &codeDiscountPayload{
			Code:                  item.CodeDiscount.Code,
			Amount:                decimal.NewFromFloat(item.CodeDiscount.Amount).String(),
			Currency:              string(item.CodeDiscount.Currency),
			DiscountedTicketPrice: decimal.NewFromFloat(item.CodeDiscount.DiscountedTicketPrice).String(),
		}
	}
	buf, err := json.Marshal(p)
	if err != nil {
		return "", err
	}
	return string(buf), nil
}

func decodeItem(id basket.ItemID, status, payload string) (basket.BasketItem, error) {
	var p itemPayload
	if err := json.Unmarshal([]byte(payload), &p); err != nil {
		return basket.BasketItem{}, fmt.Errorf("item %s: %w", id, err)
	}
	item := basket.BasketItem{
		ID:                 id,
		Status:             basket.ItemStatus(status),
		Route:              p.Route,
		SelectedPriceClass: p.SelectedPriceClass,
		Addons:             p.Addons,
		Seats:              p.Seats,
		Passengers:         p.Passengers,
		PassengerData:      p.PassengerData,
		AddedAt:            p.AddedAt,
	}
	if p.CodeDiscount != nil {
		amount, err := parseDecimal(p.CodeDiscount.Amount)
		if err != nil {
			return basket.BasketItem{}, fmt.Errorf("item %s: %w", id, err)
		}
		price, err := parseDecimal(p.CodeDiscount.DiscountedTicketPrice)
		if err != nil {
			return basket.BasketItem{}, fmt.Errorf("item %s: %w", id, err)
		}
		item.CodeDiscount = &basket.CodeDiscount{
			Code:                  p.CodeDiscount.Code,
			Amount:                amount,
			Currency:              basket.Currency(p.CodeDiscount.Currency),
			DiscountedTicketPrice: price,
		}
	}
	return item, nil
}

func parseDecimal(s string) (float64, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, fmt.Errorf("invalid decimal %q: %w", s, err)
	}
	f, _ := d.Float64()
	return f, nil
}

// =============================================================================
// STATE STORE
// =============================================================================

// Load reads the full snapshot of one basket. Unknown ids load as an
// empty basket; baskets exist implicitly from the first save.
func (s *Store) Load(ctx context.Context, id basket.BasketID) (basket.State, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st := basket.NewState()

	var lastChange string
	err := s.db.QueryRowContext(ctx,
		"SELECT last_change FROM baskets WHERE id = ?", string(id),
	).Scan(&lastChange)
	if err == sql.ErrNoRows {
		return st, nil
	}
	if err != nil {
		return basket.State{}, fmt.Errorf("load basket %s: %w", id, err)
	}
	if lastChange != "" {
		t, err := time.Parse(time.RFC3339Nano, lastChange)
		if err != nil {
			return basket.State{}, fmt.Errorf("load basket %s: %w", id, err)
		}
		st.LastChange = t
	}

	if err := s.loadItems(ctx, id, &st); err != nil {
		return basket.State{}, err
	}
	if err := s.loadDiscounts(ctx, id, &st); err != nil {
		return basket.State{}, err
	}
	if err := s.loadApplied(ctx, id, &st); err != nil {
		return basket.State{}, err
	}
	return st, nil
}

func (s *Store) loadItems(ctx context.Context, id basket.BasketID, st *basket.State) error {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, status, payload FROM basket_items WHERE basket_id = ? ORDER BY position",
		string(id))
	if err != nil {
		return fmt.Errorf("load items %s: %w", id, err)
	}
	defer rows.Close()

	for rows.Next() {
		var itemID, status, payload string
		if err := rows.Scan(&itemID, &status, &payload); err != nil {
			return err
		}
		item, err := decodeItem(basket.ItemID(itemID), status, payload)
		if err != nil {
			return err
		}
		st.Items = append(st.Items, item)
	}
	return rows.Err()
}

func (s *Store) loadDiscounts(ctx context.Context, id basket.BasketID, st *basket.State) error {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, percentage, state FROM basket_discounts WHERE basket_id = ? ORDER BY position",
		string(id))
	if err != nil {
		return fmt.Errorf("load discounts %s: %w", id, err)
	}
	defer rows.Close()

	for rows.Next() {
		var did, percentage, state string
		if err := rows.Scan(&did, &percentage, &state); err != nil {
			return err
		}
		pct, err := parseDecimal(percentage)
		if err != nil {
			return err
		}
		st.Discounts = append(st.Discounts, basket.Discount{
			ID:         basket.DiscountID(did),
			Percentage: pct,
			State:      basket.DiscountState(state),
		})
	}
	return rows.Err()
}

func (s *Store) loadApplied(ctx context.Context, id basket.BasketID, st *basket.State) error {
	rows, err := s.db.QueryContext(ctx,
		`SELECT discount_id, item_id, amount, currency, discounted_ticket_price
		 FROM applied_discounts WHERE basket_id = ?`,
		string(id))
	if err != nil {
		return fmt.Errorf("load applied %s: %w", id, err)
	}
	defer rows.Close()

	for rows.Next() {
		var did, itemID, amount, currency, price string
		if err := rows.Scan(&did, &itemID, &amount, &currency, &price); err != nil {
			return err
		}
		amt, err := parseDecimal(amount)
		if err != nil {
			return err
		}
		dtp, err := parseDecimal(price)
		if err != nil {
			return err
		}
		st.Applied[basket.DiscountID(did)] = basket.Applied{
			ItemID:                basket.ItemID(itemID),
			Amount:                amt,
			Currency:              basket.Currency(currency),
			DiscountedTicketPrice: dtp,
		}
	}
	return rows.Err()
}

// Save replaces the full snapshot of one basket atomically.
func (s *Store) Save(ctx context.Context, id basket.BasketID, st basket.State) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("save basket %s: %w", id, err)
	}
	defer tx.Rollback()

	lastChange := ""
	if !st.LastChange.IsZero() {
		lastChange = st.LastChange.Format(time.RFC3339Nano)
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO baskets (id, last_change, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			last_change = excluded.last_change,
			updated_at = excluded.updated_at`,
		string(id), lastChange, time.Now().UTC().Format(time.RFC3339Nano)); err != nil {
		return fmt.Errorf("save basket %s: %w", id, err)
	}

	for _, table := range []string{"basket_items", "basket_discounts", "applied_discounts"} {
		if _, err := tx.ExecContext(ctx,
			"DELETE FROM "+table+" WHERE basket_id = ?", string(id)); err != nil {
			return fmt.Errorf("save basket %s: %w", id, err)
		}
	}

	for i, item := range st.Items {
		payload, err := encodeItem(item)
		if err != nil {
			return fmt.Errorf("save item %s: %w", item.ID, err)
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO basket_items (basket_id, id, position, status, payload)
			VALUES (?, ?, ?, ?, ?)`,
			string(id), string(item.ID), i, string(item.Status), payload); err != nil {
			return fmt.Errorf("save item %s: %w", item.ID, err)
		}
	}

	for i, d := range st.Discounts {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO basket_discounts (basket_id, id, position, percentage, state)
			VALUES (?, ?, ?, ?, ?)`,
			string(id), string(d.ID), i,
			decimal.NewFromFloat(d.Percentage).String(), string(d.State)); err != nil {
			return fmt.Errorf("save discount %s: %w", d.ID, err)
		}
	}

	for did, ap := range st.Applied {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO applied_discounts
				(basket_id, discount_id, item_id, amount, currency, discounted_ticket_price)
			VALUES (?, ?, ?, ?, ?, ?)`,
			string(id), string(did), string(ap.ItemID),
			decimal.NewFromFloat(ap.Amount).String(), string(ap.Currency),
			decimal.NewFromFloat(ap.DiscountedTicketPrice).String()); err != nil {
			return fmt.Errorf("save applied %s: %w", did, err)
		}
	}

	return tx.Commit()
}

// List returns all known basket ids sorted.
func (s *Store) List(ctx context.Context) ([]basket.BasketID, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, "SELECT id FROM baskets ORDER BY id")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []basket.BasketID
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, basket.BasketID(id))
	}
	return ids, rows.Err()
}

// Reset drops all basket data. Used by demo scenarios.
func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, table := range []string{"applied_discounts", "basket_discounts", "basket_items", "baskets"} {
		if _, err := s.db.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("reset %s: %w", table, err)
		}
	}
	return nil
}

var _ basket.StateStore = (*Store)(nil)
