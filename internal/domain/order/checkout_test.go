package order

import (
	"context"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ovenworks/pizzeria/internal/domain/cart"
	"github.com/ovenworks/pizzeria/internal/domain/customer"
	"github.com/ovenworks/pizzeria/internal/domain/delivery"
	"github.com/ovenworks/pizzeria/internal/domain/discount"
)

var checkoutNow = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

// --- Mock implementations ---

type mockTx struct {
	customer *customer.Customer
	custErr  error

	loyaltySet    map[string]int
	setLoyaltyErr error

	// courierLists is consumed one entry per ListCouriers call; the last
	// entry repeats.
	courierLists [][]delivery.Courier
	listCalls    int
	stamped      map[string]time.Time

	inserted  *Order
	insertErr error

	usedCode    bool
	usedBetween bool
}

func (m *mockTx) CustomerForUpdate(_ context.Context, id string) (*customer.Customer, error) {
	if m.custErr != nil {
		return nil, m.custErr
	}
	if m.customer == nil || m.customer.ID != id {
		return nil, customer.ErrNotFound
	}
	cp := *m.customer
	return &cp, nil
}

func (m *mockTx) SetLoyaltyPizzas(_ context.Context, customerID string, count int) error {
	if m.setLoyaltyErr != nil {
		return m.setLoyaltyErr
	}
	if m.loyaltySet == nil {
		m.loyaltySet = make(map[string]int)
	}
	m.loyaltySet[customerID] = count
	return nil
}

func (m *mockTx) ListCouriers(_ context.Context) ([]delivery.Courier, error) {
	if len(m.courierLists) == 0 {
		return nil, nil
	}
	idx := m.listCalls
	if idx >= len(m.courierLists) {
		idx = len(m.courierLists) - 1
	}
	m.listCalls++
	return m.courierLists[idx], nil
}

func (m *mockTx) LockCourier(_ context.Context, id string) (*delivery.Courier, error) {
	// Return the courier as seen by the freshest listing, mimicking the
	// row lock reading committed state.
	latest := m.courierLists[len(m.courierLists)-1]
	for i := range latest {
		if latest[i].ID == id {
			cp := latest[i]
			return &cp, nil
		}
	}
	return nil, delivery.ErrNotFound
}

func (m *mockTx) StampCourier(_ context.Context, id string, at time.Time) error {
	if m.stamped == nil {
		m.stamped = make(map[string]time.Time)
	}
	m.stamped[id] = at
	return nil
}

func (m *mockTx) InsertOrder(_ context.Context, o *Order) error {
	if m.insertErr != nil {
		return m.insertErr
	}
	m.inserted = o
	return nil
}

func (m *mockTx) HasUsedCode(_ context.Context, _, _ string) (bool, error) {
	return m.usedCode, nil
}

func (m *mockTx) HasUsedCodeBetween(_ context.Context, _, _ string, _, _ time.Time) (bool, error) {
	return m.usedBetween, nil
}

type mockCheckoutStore struct {
	tx       *mockTx
	beginErr error
}

func (m *mockCheckoutStore) ExecCheckout(_ context.Context, fn func(tx Tx) error) error {
	if m.beginErr != nil {
		return m.beginErr
	}
	return fn(m.tx)
}

type mockOrderRepo struct {
	order     *Order
	getErr    error
	delivered map[string]time.Time
	markCalls int
	sweepN    int64
}

func (m *mockOrderRepo) GetByID(_ context.Context, id string) (*Order, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	if m.order == nil || m.order.ID != id {
		return nil, ErrNotFound
	}
	cp := *m.order
	return &cp, nil
}

func (m *mockOrderRepo) MarkDelivered(_ context.Context, id string, deliveredAt time.Time) error {
	if m.delivered == nil {
		m.delivered = make(map[string]time.Time)
	}
	m.markCalls++
	m.delivered[id] = deliveredAt
	return nil
}

func (m *mockOrderRepo) MarkOverdueDelivered(_ context.Context, _ time.Time) (int64, error) {
	return m.sweepN, nil
}

type mockDiscountRepo struct {
	code *discount.Code
}

func (m *mockDiscountRepo) FindByCode(_ context.Context, code string) (*discount.Code, error) {
	if m.code != nil && code == m.code.Code {
		return m.code, nil
	}
	return nil, discount.ErrCodeNotFound
}

// --- Helpers ---

type fixture struct {
	svc    *Service
	tx     *mockTx
	orders *mockOrderRepo
	carts  *cart.MemoryStore
}

func newFixture(t *testing.T, tx *mockTx, code *discount.Code) *fixture {
	t.Helper()

	orders := &mockOrderRepo{}
	carts := cart.NewMemoryStore()
	evaluator := discount.NewEvaluator(&mockDiscountRepo{code: code}, discount.Config{
		LoyaltyThreshold: 10,
		Location:         time.UTC,
	})
	assigner := delivery.NewAssigner(30*time.Minute,
		delivery.WithClock(func() time.Time { return checkoutNow }),
		delivery.WithRand(func(int) int { return 0 }),
	)

	svc := NewService(&mockCheckoutStore{tx: tx}, orders, carts, evaluator, assigner)
	svc.now = func() time.Time { return checkoutNow }

	return &fixture{svc: svc, tx: tx, orders: orders, carts: carts}
}

func testCustomer(loyalty int) *customer.Customer {
	return &customer.Customer{
		ID:            "cust-1",
		FirstName:     "Ada",
		LastName:      "Moretti",
		PostalCode:    "10050",
		DateOfBirth:   time.Date(1990, 3, 15, 0, 0, 0, 0, time.UTC),
		LoyaltyPizzas: loyalty,
	}
}

func freshCourier(id string, ranges ...delivery.PostalRange) delivery.Courier {
	return delivery.Courier{ID: id, Name: id, Ranges: ranges}
}

func fillCart(t *testing.T, carts *cart.MemoryStore, lines ...cart.Line) {
	t.Helper()
	c := cart.New()
	for _, l := range lines {
		require.NoError(t, c.Add(l))
	}
	require.NoError(t, carts.Set(context.Background(), "sess-1", c))
}

func cartLine(pizzaID, price string, qty int) cart.Line {
	return cart.Line{
		PizzaID:   pizzaID,
		Name:      pizzaID,
		UnitPrice: decimal.RequireFromString(price),
		Quantity:  qty,
	}
}

func promoCode(percent int64) *discount.Code {
	return &discount.Code{
		ID:   "code-promo",
		Code: "WELCOME20",
		Type: discount.Type{
			ID:      "type-promo",
			Name:    discount.NameOneTimePromo,
			Percent: decimal.NewFromInt(percent),
			Kind:    discount.KindOneTimePromo,
		},
	}
}

func loyaltyCode(percent int64) *discount.Code {
	return &discount.Code{
		ID:   "code-loyal",
		Code: "LOYAL10",
		Type: discount.Type{
			ID:      "type-loyal",
			Name:    discount.NameLoyaltyReward,
			Percent: decimal.NewFromInt(percent),
			Kind:    discount.KindLoyaltyReward,
		},
	}
}

func checkoutReq(code string) CheckoutRequest {
	return CheckoutRequest{CustomerID: "cust-1", SessionID: "sess-1", DiscountCode: code}
}

// --- Tests ---

func TestCheckout_EmptyCart(t *testing.T) {
	f := newFixture(t, &mockTx{customer: testCustomer(0)}, nil)

	_, err := f.svc.Checkout(context.Background(), checkoutReq(""))
	require.ErrorIs(t, err, cart.ErrEmptyCart)
}

func TestCheckout_NoDiscountCode(t *testing.T) {
	tx := &mockTx{
		customer: testCustomer(2),
		courierLists: [][]delivery.Courier{{
			freshCourier("courier-1", delivery.PostalRange{StartZip: 10000, EndZip: 10099}),
		}},
	}
	f := newFixture(t, tx, nil)
	fillCart(t, f.carts,
		cartLine("margherita", "10.00", 2),
		cartLine("diavola", "11.30", 1),
	)

	res, err := f.svc.Checkout(context.Background(), checkoutReq(""))
	require.NoError(t, err)

	assert.False(t, res.DiscountApplied)
	require.NotNil(t, tx.inserted)
	assert.True(t, decimal.RequireFromString("31.30").Equal(tx.inserted.TotalPrice),
		"want 31.30, got %s", tx.inserted.TotalPrice)
	assert.Equal(t, StatusPending, tx.inserted.Status)
	assert.Equal(t, checkoutNow, tx.inserted.CreatedAt)
	assert.Nil(t, tx.inserted.DiscountCodeID)

	// Courier assigned and stamped within the same transaction.
	require.NotNil(t, tx.inserted.CourierID)
	assert.Equal(t, "courier-1", *tx.inserted.CourierID)
	assert.Equal(t, checkoutNow, tx.stamped["courier-1"])

	// Loyalty pizzas accrued for all three pizzas.
	assert.Equal(t, 5, tx.loyaltySet["cust-1"])

	// Items frozen in stable order.
	require.Len(t, tx.inserted.Items, 2)
	assert.Equal(t, "diavola", tx.inserted.Items[0].PizzaID)
	assert.Equal(t, "margherita", tx.inserted.Items[1].PizzaID)
	assert.True(t, decimal.RequireFromString("10.00").Equal(tx.inserted.Items[1].UnitPrice))

	// Cart cleared after commit.
	c, err := f.carts.Get(context.Background(), "sess-1")
	require.NoError(t, err)
	assert.True(t, c.Empty())
}

func TestCheckout_UnknownCodeProceedsAtFullPrice(t *testing.T) {
	tx := &mockTx{customer: testCustomer(0)}
	f := newFixture(t, tx, nil)
	fillCart(t, f.carts, cartLine("margherita", "10.00", 1))

	res, err := f.svc.Checkout(context.Background(), checkoutReq("TYPO"))
	require.NoError(t, err)

	assert.False(t, res.DiscountApplied)
	assert.Equal(t, "discount code not found", res.DiscountMessage)
	assert.True(t, decimal.RequireFromString("10.00").Equal(tx.inserted.TotalPrice))
	assert.Nil(t, tx.inserted.DiscountCodeID)

	// Loyalty still accrues on a failed code.
	assert.Equal(t, 1, tx.loyaltySet["cust-1"])
}

func TestCheckout_PromoApplied(t *testing.T) {
	tx := &mockTx{customer: testCustomer(0)}
	f := newFixture(t, tx, promoCode(20))
	fillCart(t, f.carts, cartLine("margherita", "10.00", 2)) // total 20.00

	res, err := f.svc.Checkout(context.Background(), checkoutReq("WELCOME20"))
	require.NoError(t, err)

	assert.True(t, res.DiscountApplied)
	assert.True(t, decimal.RequireFromString("4.00").Equal(res.DiscountAmount))
	assert.True(t, decimal.RequireFromString("16.00").Equal(tx.inserted.TotalPrice))
	require.NotNil(t, tx.inserted.DiscountCodeID)
	assert.Equal(t, "code-promo", *tx.inserted.DiscountCodeID)
}

func TestCheckout_PromoAlreadyUsed(t *testing.T) {
	tx := &mockTx{customer: testCustomer(0), usedCode: true}
	f := newFixture(t, tx, promoCode(20))
	fillCart(t, f.carts, cartLine("margherita", "10.00", 2))

	res, err := f.svc.Checkout(context.Background(), checkoutReq("WELCOME20"))
	require.NoError(t, err)

	assert.False(t, res.DiscountApplied)
	assert.Contains(t, res.DiscountMessage, "already been used")
	assert.True(t, decimal.RequireFromString("20.00").Equal(tx.inserted.TotalPrice))
	assert.Nil(t, tx.inserted.DiscountCodeID)
	assert.Equal(t, 2, tx.loyaltySet["cust-1"])
}

func TestCheckout_LoyaltyRedemptionResetsCounter(t *testing.T) {
	tx := &mockTx{customer: testCustomer(7)}
	f := newFixture(t, tx, loyaltyCode(10))
	fillCart(t, f.carts, cartLine("margherita", "10.00", 5)) // 7 + 5 >= 10

	res, err := f.svc.Checkout(context.Background(), checkoutReq("LOYAL10"))
	require.NoError(t, err)

	assert.True(t, res.DiscountApplied)
	// 7 + 5 - 10 = 2 carried forward.
	assert.Equal(t, 2, tx.loyaltySet["cust-1"])
}

func TestCheckout_LoyaltyBelowThresholdAccruesNormally(t *testing.T) {
	tx := &mockTx{customer: testCustomer(7)}
	f := newFixture(t, tx, loyaltyCode(10))
	fillCart(t, f.carts, cartLine("margherita", "10.00", 2)) // 7 + 2 < 10

	res, err := f.svc.Checkout(context.Background(), checkoutReq("LOYAL10"))
	require.NoError(t, err)

	assert.False(t, res.DiscountApplied)
	assert.Equal(t, "1 more pizza(s) needed", res.DiscountMessage)
	assert.Equal(t, 9, tx.loyaltySet["cust-1"])
}

func TestCheckout_DiscountFloorsAtZero(t *testing.T) {
	tx := &mockTx{customer: testCustomer(0)}
	f := newFixture(t, tx, promoCode(200))
	fillCart(t, f.carts, cartLine("margherita", "10.00", 1))

	_, err := f.svc.Checkout(context.Background(), checkoutReq("WELCOME20"))
	require.NoError(t, err)
	assert.True(t, tx.inserted.TotalPrice.IsZero())
}

func TestCheckout_NoCouriers(t *testing.T) {
	tx := &mockTx{customer: testCustomer(0)}
	f := newFixture(t, tx, nil)
	fillCart(t, f.carts, cartLine("margherita", "10.00", 1))

	_, err := f.svc.Checkout(context.Background(), checkoutReq(""))
	require.NoError(t, err)

	assert.Nil(t, tx.inserted.CourierID)
	assert.Empty(t, tx.stamped)
}

func TestCheckout_RepicksCourierStampedDuringSelection(t *testing.T) {
	stale := freshCourier("contested", delivery.PostalRange{StartZip: 10000, EndZip: 10099})
	justStamped := stale
	at := checkoutNow.Add(-time.Minute)
	justStamped.LastAssignedAt = &at

	backup := freshCourier("backup", delivery.PostalRange{StartZip: 10000, EndZip: 10099})

	tx := &mockTx{
		customer: testCustomer(0),
		courierLists: [][]delivery.Courier{
			// First listing still shows the contested courier as free; by
			// the time the row lock is taken a concurrent checkout has
			// stamped it.
			{stale, backup},
			{justStamped, backup},
		},
	}
	f := newFixture(t, tx, nil)
	fillCart(t, f.carts, cartLine("margherita", "10.00", 1))

	_, err := f.svc.Checkout(context.Background(), checkoutReq(""))
	require.NoError(t, err)

	require.NotNil(t, tx.inserted.CourierID)
	assert.Equal(t, "backup", *tx.inserted.CourierID)
	assert.Equal(t, checkoutNow, tx.stamped["backup"])
}

func TestCheckout_InsertFailureIsProcessingError(t *testing.T) {
	tx := &mockTx{
		customer:  testCustomer(0),
		insertErr: errors.New("connection reset"),
	}
	f := newFixture(t, tx, nil)
	fillCart(t, f.carts, cartLine("margherita", "10.00", 1))

	_, err := f.svc.Checkout(context.Background(), checkoutReq(""))

	var pErr *ProcessingError
	require.ErrorAs(t, err, &pErr)
	assert.Contains(t, err.Error(), "connection reset")

	// The cart survives a failed checkout so the customer can retry.
	c, cerr := f.carts.Get(context.Background(), "sess-1")
	require.NoError(t, cerr)
	assert.False(t, c.Empty())
}

func TestCheckout_CustomerNotFound(t *testing.T) {
	f := newFixture(t, &mockTx{}, nil)
	fillCart(t, f.carts, cartLine("margherita", "10.00", 1))

	_, err := f.svc.Checkout(context.Background(), checkoutReq(""))
	require.ErrorIs(t, err, customer.ErrNotFound)
}

func TestCheckout_MalformedPostalCode(t *testing.T) {
	cust := testCustomer(0)
	cust.PostalCode = "not-a-zip"
	f := newFixture(t, &mockTx{customer: cust}, nil)
	fillCart(t, f.carts, cartLine("margherita", "10.00", 1))

	_, err := f.svc.Checkout(context.Background(), checkoutReq(""))
	require.ErrorIs(t, err, customer.ErrInvalidPostalCode)
}

func TestGet_LazyDeliveredTransition(t *testing.T) {
	createdAt := checkoutNow.Add(-31 * time.Minute)
	orders := &mockOrderRepo{order: &Order{
		ID:        "o1",
		Status:    StatusPending,
		CreatedAt: createdAt,
	}}

	svc := NewService(nil, orders, cart.NewMemoryStore(), nil, nil)
	svc.now = func() time.Time { return checkoutNow }

	got, err := svc.Get(context.Background(), "o1")
	require.NoError(t, err)

	assert.Equal(t, StatusDelivered, got.Status)
	require.NotNil(t, got.DeliveredAt)
	assert.Equal(t, createdAt.Add(30*time.Minute), *got.DeliveredAt)
	assert.Equal(t, createdAt.Add(30*time.Minute), orders.delivered["o1"])
	assert.Equal(t, 1, orders.markCalls)
}

func TestGet_DeliveredIsNotRewritten(t *testing.T) {
	deliveredAt := checkoutNow.Add(-10 * time.Minute)
	orders := &mockOrderRepo{order: &Order{
		ID:          "o1",
		Status:      StatusDelivered,
		CreatedAt:   checkoutNow.Add(-40 * time.Minute),
		DeliveredAt: &deliveredAt,
	}}

	svc := NewService(nil, orders, cart.NewMemoryStore(), nil, nil)
	svc.now = func() time.Time { return checkoutNow }

	got, err := svc.Get(context.Background(), "o1")
	require.NoError(t, err)

	assert.Equal(t, StatusDelivered, got.Status)
	assert.Zero(t, orders.markCalls)
}

func TestGet_IntermediateStatusIsNotPersisted(t *testing.T) {
	orders := &mockOrderRepo{order: &Order{
		ID:        "o1",
		Status:    StatusPending,
		CreatedAt: checkoutNow.Add(-15 * time.Minute),
	}}

	svc := NewService(nil, orders, cart.NewMemoryStore(), nil, nil)
	svc.now = func() time.Time { return checkoutNow }

	got, err := svc.Get(context.Background(), "o1")
	require.NoError(t, err)

	assert.Equal(t, StatusOutForDelivery, got.Status)
	assert.Zero(t, orders.markCalls)
}
