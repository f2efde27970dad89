package basket_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/transitkit/basket-engine/basket"
	"github.com/transitkit/basket-engine/basket/store"
)

// =============================================================================
// FAKE BACKEND
// =============================================================================

// fakeBackend answers every call from fixed data and lets tests fail
// individual calls.
type fakeBackend struct {
	addons    []basket.Addon
	reqs      basket.PassengerDataRequirements
	freeSeats []basket.SectionSeats
	discounts []basket.Discount

	codeAmounts map[string]float64
	percentages map[basket.DiscountID]float64

	failAddons   error
	failReqs     error
	failSeats    error
	failVerify   error
	failCode     error
	failDiscount error
	failFetch    error
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		reqs:        basket.PassengerDataRequirements{FirstPassengerData: []string{"firstName", "lastName"}},
		codeAmounts: map[string]float64{"WELCOME50": 50},
		percentages: map[basket.DiscountID]float64{},
	}
}

func (f *fakeBackend) FetchAddons(context.Context, basket.Route, basket.PriceClass) ([]basket.Addon, error) {
	return f.addons, f.failAddons
}

func (f *fakeBackend) FetchPassengerDataRequirements(context.Context, basket.Route, basket.PriceClass) (basket.PassengerDataRequirements, error) {
	return f.reqs, f.failReqs
}

func (f *fakeBackend) FetchFreeSeats(context.Context, basket.Route) ([]basket.SectionSeats, error) {
	return f.freeSeats, f.failSeats
}

func (f *fakeBackend) VerifyAddonSelection(context.Context, basket.Route, []basket.Addon) error {
	return f.failVerify
}

func (f *fakeBackend) VerifyPercentualDiscount(_ context.Context, id basket.DiscountID, item basket.BasketItem, ticketPrice float64) (basket.Verification, error) {
	if f.failDiscount != nil {
		return basket.Verification{}, f.failDiscount
	}
	pct, ok := f.percentages[id]
	if !ok {
		return basket.Verification{}, &basket.NotFoundError{Kind: "discount", ID: string(id)}
	}
	currency := item.ItemCurrency()
	price := basket.RoundByCurrency(ticketPrice-ticketPrice*pct/100, currency)
	return basket.Verification{
		Amount:                ticketPrice - price,
		Currency:              currency,
		DiscountedTicketPrice: price,
	}, nil
}

func (f *fakeBackend) VerifyCodeDiscount(_ context.Context, code string, item basket.BasketItem, ticketPrice float64) (basket.Verification, error) {
	if f.failCode != nil {
		return basket.Verification{}, f.failCode
	}
	amount, ok := f.codeAmounts[code]
	if !ok {
		return basket.Verification{}, &basket.ValidationError{Message: "unknown code"}
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

func (f *fakeBackend) FetchUserPercentualDiscounts(context.Context) ([]basket.Discount, error) {
	return f.discounts, f.failFetch
}

var _ basket.Backend = (*fakeBackend)(nil)

// =============================================================================
// TEST SETUP
// =============================================================================

func newTestService() (*basket.Service, *fakeBackend) {
	backend := newFakeBackend()
	return basket.NewService(store.NewMemory(), backend), backend
}

func testRoute() (basket.Route, basket.PriceClass) {
	route := basket.Route{
		ID:       "prg-brn-0800",
		Sections: []basket.Section{{ID: "s1", FromStationID: "PRG", ToStationID: "BRN"}},
	}
	pc := basket.PriceClass{
		SeatClassKey: "standard",
		Price:        500,
		CreditPrice:  500,
		Currency:     basket.CurrencyCZK,
		Tariffs:      []basket.Tariff{basket.TariffRegular},
	}
	return route, pc
}

func addTestItem(t *testing.T, svc *basket.Service, id basket.BasketID) basket.BasketItem {
	t.Helper()
	route, pc := testRoute()
	item, err := svc.AddItem(context.Background(), id, route, pc)
	require.NoError(t, err)
	return item
}

// =============================================================================
// ADD ITEM TESTS
// =============================================================================

func TestAddItem_JoinsAllFetches(t *testing.T) {
	svc, backend := newTestService()
	backend.addons = []basket.Addon{{ID: "a1", Name: "Coffee", Price: 45}}
	backend.freeSeats = []basket.SectionSeats{{SectionID: "s1", Seats: []basket.Seat{{VehicleNumber: 1, Index: "12"}}}}

	item := addTestItem(t, svc, "b1")

	assert.Equal(t, basket.StatusPresent, item.Status)
	assert.Len(t, item.Addons, 1)
	assert.Len(t, item.Seats, 1)
	assert.Equal(t, []string{"firstName", "lastName"}, item.PassengerData.FirstPassengerData)
	assert.False(t, item.AddedAt.IsZero())

	st, err := svc.State(context.Background(), "b1")
	require.NoError(t, err)
	assert.False(t, st.LastChange.IsZero())
}

func TestAddItem_AnyFetchFailureRollsBack(t *testing.T) {
	for name, arrange := range map[string]func(*fakeBackend){
		"addons":         func(b *fakeBackend) { b.failAddons = &basket.NetworkError{Op: "addons"} },
		"passenger data": func(b *fakeBackend) { b.failReqs = &basket.NetworkError{Op: "passenger-data"} },
		"free seats":     func(b *fakeBackend) { b.failSeats = &basket.NetworkError{Op: "free-seats"} },
	} {
		t.Run(name, func(t *testing.T) {
			svc, backend := newTestService()
			arrange(backend)

			route, pc := testRoute()
			_, err := svc.AddItem(context.Background(), "b1", route, pc)

			require.Error(t, err)
			assert.True(t, basket.IsTransient(err))

			// All-or-nothing: no partial item survives
			st, loadErr := svc.State(context.Background(), "b1")
			require.NoError(t, loadErr)
			assert.True(t, st.IsEmpty())
		})
	}
}

func TestRemoveItem_UnassignsItsDiscounts(t *testing.T) {
	svc, backend := newTestService()
	backend.discounts = []basket.Discount{valid("d1", 20)}
	backend.percentages["d1"] = 20

	ctx := context.Background()
	item := addTestItem(t, svc, "b1")

	_, err := svc.RefreshDiscounts(ctx, "b1")
	require.NoError(t, err)
	_, err = svc.ApplyPercentualDiscount(ctx, "b1", item.ID, "d1", false)
	require.NoError(t, err)

	st, err := svc.RemoveItem(ctx, "b1", item.ID)
	require.NoError(t, err)

	assert.True(t, st.IsEmpty())
	assert.Empty(t, st.Applied, "discounts on a removed item return to the pool")
	assert.Len(t, st.Discounts, 1, "the discount list itself survives")
}

// =============================================================================
// ADDON TESTS
// =============================================================================

func TestUpdateAddons_VerifiedThenReplaced(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()
	item := addTestItem(t, svc, "b1")

	st, err := svc.UpdateAddons(ctx, "b1", item.ID, []basket.Addon{
		{ID: "a1", Name: "Coffee", Price: 45, Checked: true, Count: 2},
	})
	require.NoError(t, err)

	got, _ := st.Item(item.ID)
	require.Len(t, got.Addons, 1)
	assert.Equal(t, 2, got.Addons[0].Count)
}

func TestUpdateAddons_VerificationFailureKeepsOldList(t *testing.T) {
	svc, backend := newTestService()
	backend.addons = []basket.Addon{{ID: "a1", Name: "Coffee", Price: 45}}

	ctx := context.Background()
	item := addTestItem(t, svc, "b1")

	backend.failVerify = &basket.NetworkError{Op: "verify-addons"}
	_, err := svc.UpdateAddons(ctx, "b1", item.ID, []basket.Addon{{ID: "a1", Checked: true, Count: 99}})

	require.Error(t, err)
	st, _ := svc.State(ctx, "b1")
	got, _ := st.Item(item.ID)
	require.Len(t, got.Addons, 1)
	assert.Equal(t, 0, got.Addons[0].Count, "failed verification must leave the selection untouched")
}

func TestUpdateAddons_MissingItem(t *testing.T) {
	svc, _ := newTestService()

	_, err := svc.UpdateAddons(context.Background(), "b1", "ghost", nil)

	assert.True(t, basket.IsNotFound(err))
}

// =============================================================================
// CODE DISCOUNT TESTS
// =============================================================================

func TestApplyCodeDiscount_SetsVerifiedAmounts(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()
	item := addTestItem(t, svc, "b1")

	st, err := svc.ApplyCodeDiscount(ctx, "b1", item.ID, "WELCOME50", false)
	require.NoError(t, err)

	got, _ := st.Item(item.ID)
	require.NotNil(t, got.CodeDiscount)
	assert.Equal(t, 50.0, got.CodeDiscount.Amount)
	assert.Equal(t, 450.0, got.CodeDiscount.DiscountedTicketPrice)
	assert.Equal(t, 450.0, basket.TicketTotalPrice(got, st.Applied, false))
}

func TestApplyCodeDiscount_ReconcilesPercentualsAgainstNewBaseline(t *testing.T) {
	// GIVEN: A 20% discount applied to the bare 500 ticket (amount 100)
	svc, backend := newTestService()
	backend.discounts = []basket.Discount{valid("d1", 20)}
	backend.percentages["d1"] = 20

	ctx := context.Background()
	item := addTestItem(t, svc, "b1")
	_, err := svc.RefreshDiscounts(ctx, "b1")
	require.NoError(t, err)
	_, err = svc.ApplyPercentualDiscount(ctx, "b1", item.ID, "d1", false)
	require.NoError(t, err)

	// WHEN: Applying a 50 CZK promo code
	st, err := svc.ApplyCodeDiscount(ctx, "b1", item.ID, "WELCOME50", false)
	require.NoError(t, err)

	// THEN: The percentual re-bases to the 450 post-code price
	ap := st.Applied["d1"]
	assert.Equal(t, 90.0, ap.Amount)
	assert.Equal(t, 360.0, ap.DiscountedTicketPrice)

	got, _ := st.Item(item.ID)
	assert.Equal(t, 360.0, basket.TicketTotalPrice(got, st.Applied, false))
}

func TestApplyCodeDiscount_UnknownCodeLeavesStateUntouched(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()
	item := addTestItem(t, svc, "b1")

	_, err := svc.ApplyCodeDiscount(ctx, "b1", item.ID, "BOGUS", false)

	require.Error(t, err)
	assert.True(t, basket.IsClientError(err))

	st, _ := svc.State(ctx, "b1")
	got, _ := st.Item(item.ID)
	assert.Nil(t, got.CodeDiscount)
}

func TestRemoveCodeDiscount_RestoresPreCodeBaseline(t *testing.T) {
	// GIVEN: Code 50 applied, then 20% verified against the 450 baseline
	svc, backend := newTestService()
	backend.discounts = []basket.Discount{valid("d1", 20)}
	backend.percentages["d1"] = 20

	ctx := context.Background()
	item := addTestItem(t, svc, "b1")
	_, err := svc.ApplyCodeDiscount(ctx, "b1", item.ID, "WELCOME50", false)
	require.NoError(t, err)
	_, err = svc.RefreshDiscounts(ctx, "b1")
	require.NoError(t, err)
	_, err = svc.ApplyPercentualDiscount(ctx, "b1", item.ID, "d1", false)
	require.NoError(t, err)

	// WHEN: The code is removed
	st, err := svc.RemoveCodeDiscount(ctx, "b1", item.ID)
	require.NoError(t, err)

	// THEN: The percentual re-bases to 450 + 50 = 500
	got, _ := st.Item(item.ID)
	assert.Nil(t, got.CodeDiscount)
	ap := st.Applied["d1"]
	assert.Equal(t, 100.0, ap.Amount)
	assert.Equal(t, 400.0, ap.DiscountedTicketPrice)
}

func TestRemoveCodeDiscount_NoCode(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()
	item := addTestItem(t, svc, "b1")

	_, err := svc.RemoveCodeDiscount(ctx, "b1", item.ID)

	assert.True(t, errors.Is(err, basket.ErrNoCodeDiscount))
}

// =============================================================================
// PERCENTUAL DISCOUNT TESTS
// =============================================================================

func setupDiscounts(t *testing.T, svc *basket.Service, backend *fakeBackend, discounts ...basket.Discount) {
	t.Helper()
	backend.discounts = discounts
	for _, d := range discounts {
		backend.percentages[d.ID] = d.Percentage
	}
	_, err := svc.RefreshDiscounts(context.Background(), "b1")
	require.NoError(t, err)
}

func TestApplyPercentualDiscount_StacksSequentially(t *testing.T) {
	svc, backend := newTestService()
	ctx := context.Background()

	route, pc := testRoute()
	pc.Price = 1000
	pc.CreditPrice = 1000
	item, err := svc.AddItem(ctx, "b1", route, pc)
	require.NoError(t, err)

	setupDiscounts(t, svc, backend, valid("d1", 10), valid("d2", 10))

	_, err = svc.ApplyPercentualDiscount(ctx, "b1", item.ID, "d1", false)
	require.NoError(t, err)
	st, err := svc.ApplyPercentualDiscount(ctx, "b1", item.ID, "d2", false)
	require.NoError(t, err)

	assert.Equal(t, 100.0, st.Applied["d1"].Amount)
	assert.Equal(t, 900.0, st.Applied["d1"].DiscountedTicketPrice)
	assert.Equal(t, 90.0, st.Applied["d2"].Amount)
	assert.Equal(t, 810.0, st.Applied["d2"].DiscountedTicketPrice)

	got, _ := st.Item(item.ID)
	assert.Equal(t, 810.0, basket.TicketTotalPrice(got, st.Applied, false))
}

func TestApplyPercentualDiscount_RejectsNonValidStates(t *testing.T) {
	svc, backend := newTestService()
	ctx := context.Background()
	item := addTestItem(t, svc, "b1")
	setupDiscounts(t, svc, backend,
		basket.Discount{ID: "d-used", Percentage: 10, State: basket.DiscountUsed},
		basket.Discount{ID: "d-exp", Percentage: 10, State: basket.DiscountExpired},
	)

	for _, id := range []basket.DiscountID{"d-used", "d-exp"} {
		_, err := svc.ApplyPercentualDiscount(ctx, "b1", item.ID, id, false)
		assert.True(t, errors.Is(err, basket.ErrDiscountNotUsable), "discount %s", id)
	}
}

func TestApplyPercentualDiscount_RejectsDoubleAssignment(t *testing.T) {
	svc, backend := newTestService()
	ctx := context.Background()

	i1 := addTestItem(t, svc, "b1")
	i2 := addTestItem(t, svc, "b1")
	setupDiscounts(t, svc, backend, valid("d1", 20))

	_, err := svc.ApplyPercentualDiscount(ctx, "b1", i1.ID, "d1", false)
	require.NoError(t, err)

	_, err = svc.ApplyPercentualDiscount(ctx, "b1", i2.ID, "d1", false)
	assert.True(t, errors.Is(err, basket.ErrDiscountAlreadyApplied))
}

func TestApplyPercentualDiscount_VerificationFailureLeavesStateUntouched(t *testing.T) {
	svc, backend := newTestService()
	ctx := context.Background()
	item := addTestItem(t, svc, "b1")
	setupDiscounts(t, svc, backend, valid("d1", 20))

	backend.failDiscount = &basket.NetworkError{Op: "verify-discount"}
	_, err := svc.ApplyPercentualDiscount(ctx, "b1", item.ID, "d1", false)

	require.Error(t, err)
	st, _ := svc.State(ctx, "b1")
	assert.Empty(t, st.Applied)
}

func TestRemovePercentualDiscount_ReconcilesRemaining(t *testing.T) {
	svc, backend := newTestService()
	ctx := context.Background()

	route, pc := testRoute()
	pc.Price = 1000
	pc.CreditPrice = 1000
	item, err := svc.AddItem(ctx, "b1", route, pc)
	require.NoError(t, err)

	setupDiscounts(t, svc, backend, valid("d1", 10), valid("d2", 10))
	_, err = svc.ApplyPercentualDiscount(ctx, "b1", item.ID, "d1", false)
	require.NoError(t, err)
	_, err = svc.ApplyPercentualDiscount(ctx, "b1", item.ID, "d2", false)
	require.NoError(t, err)

	// WHEN: The first discount is removed
	st, err := svc.RemovePercentualDiscount(ctx, "b1", "d1", false)
	require.NoError(t, err)

	// THEN: The second re-bases to the full 1000 ticket
	_, hasD1 := st.Applied["d1"]
	assert.False(t, hasD1)
	assert.Equal(t, 100.0, st.Applied["d2"].Amount)
	assert.Equal(t, 900.0, st.Applied["d2"].DiscountedTicketPrice)
}

func TestRemovePercentualDiscount_NotApplied(t *testing.T) {
	svc, _ := newTestService()
	addTestItem(t, svc, "b1")

	_, err := svc.RemovePercentualDiscount(context.Background(), "b1", "d1", false)

	assert.True(t, basket.IsNotFound(err))
}

// =============================================================================
// REFRESH TESTS
// =============================================================================

func TestRefreshDiscounts_IdenticalListKeepsAppliedState(t *testing.T) {
	svc, backend := newTestService()
	ctx := context.Background()
	item := addTestItem(t, svc, "b1")
	setupDiscounts(t, svc, backend, valid("d1", 20))

	_, err := svc.ApplyPercentualDiscount(ctx, "b1", item.ID, "d1", false)
	require.NoError(t, err)

	// Backend returns the same list again
	st, err := svc.RefreshDiscounts(ctx, "b1")
	require.NoError(t, err)

	_, stillApplied := st.Applied["d1"]
	assert.True(t, stillApplied, "identical refresh must keep assignments")
}

func TestRefreshDiscounts_ChangedListReplacesAndUnassigns(t *testing.T) {
	svc, backend := newTestService()
	ctx := context.Background()
	item := addTestItem(t, svc, "b1")
	setupDiscounts(t, svc, backend, valid("d1", 20))

	_, err := svc.ApplyPercentualDiscount(ctx, "b1", item.ID, "d1", false)
	require.NoError(t, err)

	// Backend now reports the discount as used
	backend.discounts = []basket.Discount{{ID: "d1", Percentage: 20, State: basket.DiscountUsed}}
	st, err := svc.RefreshDiscounts(ctx, "b1")
	require.NoError(t, err)

	assert.Equal(t, basket.DiscountUsed, st.Discounts[0].State)
	assert.Empty(t, st.Applied, "changed refresh replaces wholesale")
}

func TestRefreshDiscounts_FetchFailureKeepsList(t *testing.T) {
	svc, backend := newTestService()
	ctx := context.Background()
	addTestItem(t, svc, "b1")
	setupDiscounts(t, svc, backend, valid("d1", 20))

	backend.failFetch = &basket.NetworkError{Op: "discounts"}
	_, err := svc.RefreshDiscounts(ctx, "b1")

	require.Error(t, err)
	st, _ := svc.State(ctx, "b1")
	assert.Len(t, st.Discounts, 1)
}

// =============================================================================
// EXPIRY TESTS
// =============================================================================

func TestClearExpired_SweepsOnlyStaleBaskets(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	addTestItem(t, svc, "fresh")
	addTestItem(t, svc, "stale")

	// Backdate the stale basket's clock past the window
	st, err := svc.State(ctx, "stale")
	require.NoError(t, err)
	st.LastChange = time.Now().Add(-time.Hour)
	require.NoError(t, svc.Store.Save(ctx, "stale", st))

	cleared, err := svc.ClearExpired(ctx, time.Now(), 30*time.Minute)
	require.NoError(t, err)

	assert.Equal(t, []basket.BasketID{"stale"}, cleared)

	staleState, _ := svc.State(ctx, "stale")
	assert.True(t, staleState.IsEmpty())
	freshState, _ := svc.State(ctx, "fresh")
	assert.False(t, freshState.IsEmpty())
}

func TestClearExpired_SkipsEmptyBaskets(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	// An empty basket that has been saved once
	require.NoError(t, svc.Store.Save(ctx, "empty", basket.NewState()))

	cleared, err := svc.ClearExpired(ctx, time.Now(), 0)
	require.NoError(t, err)
	assert.Empty(t, cleared)
}
