package discount

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ovenworks/pizzeria/internal/domain/cart"
	"github.com/ovenworks/pizzeria/internal/domain/customer"
)

// --- Mock implementations ---

type mockCodeRepo struct {
	codes map[string]*Code
	err   error
}

func (m *mockCodeRepo) FindByCode(_ context.Context, code string) (*Code, error) {
	if m.err != nil {
		return nil, m.err
	}
	for _, c := range m.codes {
		if strings.EqualFold(c.Code, code) {
			return c, nil
		}
	}
	return nil, ErrCodeNotFound
}

type mockUsage struct {
	used        bool
	usedBetween bool
	from, to    time.Time
	err         error
}

func (m *mockUsage) HasUsedCode(_ context.Context, _, _ string) (bool, error) {
	return m.used, m.err
}

func (m *mockUsage) HasUsedCodeBetween(_ context.Context, _, _ string, from, to time.Time) (bool, error) {
	m.from, m.to = from, to
	return m.usedBetween, m.err
}

// --- Helpers ---

func promoCode(percent int64) *Code {
	return &Code{
		ID:   "code-promo",
		Code: "WELCOME20",
		Type: Type{
			ID:      "type-promo",
			Name:    NameOneTimePromo,
			Percent: decimal.NewFromInt(percent),
			Kind:    KindOneTimePromo,
		},
	}
}

func birthdayCode() *Code {
	return &Code{
		ID:   "code-bday",
		Code: "BDAY",
		Type: Type{
			ID:   "type-bday",
			Name: NameBirthday,
			Kind: KindBirthday,
		},
	}
}

func loyaltyCode(percent int64) *Code {
	return &Code{
		ID:   "code-loyal",
		Code: "LOYAL10",
		Type: Type{
			ID:      "type-loyal",
			Name:    NameLoyaltyReward,
			Percent: decimal.NewFromInt(percent),
			Kind:    KindLoyaltyReward,
		},
	}
}

func newEvaluator(t *testing.T, codes []*Code, now time.Time) *Evaluator {
	t.Helper()
	byID := make(map[string]*Code, len(codes))
	for _, c := range codes {
		byID[c.ID] = c
	}
	e := NewEvaluator(&mockCodeRepo{codes: byID}, Config{
		LoyaltyThreshold: 10,
		Location:         time.UTC,
	})
	e.now = func() time.Time { return now }
	return e
}

func cartWith(t *testing.T, lines ...cart.Line) cart.Cart {
	t.Helper()
	c := cart.New()
	for _, l := range lines {
		require.NoError(t, c.Add(l))
	}
	return c
}

func cartLine(pizzaID, price string, qty int) cart.Line {
	return cart.Line{
		PizzaID:   pizzaID,
		Name:      pizzaID,
		UnitPrice: decimal.RequireFromString(price),
		Quantity:  qty,
	}
}

// --- Tests ---

func TestEvaluate_CodeNotFound(t *testing.T) {
	e := newEvaluator(t, nil, time.Now())
	cust := &customer.Customer{ID: "c1"}

	res, err := e.Evaluate(context.Background(), cust, "BOGUS", cartWith(t, cartLine("p1", "10.00", 1)), &mockUsage{})
	require.NoError(t, err)
	assert.False(t, res.Eligible)
	assert.Equal(t, "discount code not found", res.Message)
	assert.Nil(t, res.Code)
}

func TestEvaluate_CodeCaseInsensitiveAndTrimmed(t *testing.T) {
	e := newEvaluator(t, []*Code{promoCode(20)}, time.Now())
	cust := &customer.Customer{ID: "c1"}

	res, err := e.Evaluate(context.Background(), cust, "  welcome20 ", cartWith(t, cartLine("p1", "20.00", 1)), &mockUsage{})
	require.NoError(t, err)
	assert.True(t, res.Eligible)
}

func TestEvaluate_Misconfigured(t *testing.T) {
	e := NewEvaluator(&mockCodeRepo{err: ErrMisconfigured}, Config{})
	cust := &customer.Customer{ID: "c1"}

	res, err := e.Evaluate(context.Background(), cust, "BROKEN", cartWith(t, cartLine("p1", "10.00", 1)), &mockUsage{})
	require.NoError(t, err)
	assert.False(t, res.Eligible)
	assert.Equal(t, "discount code is misconfigured", res.Message)
}

func TestEvaluate_OneTimePromo(t *testing.T) {
	crt := cartWith(t, cartLine("p1", "10.00", 2)) // total 20.00

	t.Run("first use grants percent of total", func(t *testing.T) {
		e := newEvaluator(t, []*Code{promoCode(20)}, time.Now())
		cust := &customer.Customer{ID: "c1"}

		res, err := e.Evaluate(context.Background(), cust, "WELCOME20", crt, &mockUsage{})
		require.NoError(t, err)
		assert.True(t, res.Eligible)
		assert.True(t, decimal.RequireFromString("4.00").Equal(res.Amount),
			"want 4.00, got %s", res.Amount)
		assert.False(t, res.ConsumesLoyalty)
	})

	t.Run("second use is ineligible", func(t *testing.T) {
		e := newEvaluator(t, []*Code{promoCode(20)}, time.Now())
		cust := &customer.Customer{ID: "c1"}

		res, err := e.Evaluate(context.Background(), cust, "WELCOME20", crt, &mockUsage{used: true})
		require.NoError(t, err)
		assert.False(t, res.Eligible)
		assert.Contains(t, res.Message, "already been used")
		assert.True(t, res.Amount.IsZero())
	})
}

func TestEvaluate_Birthday(t *testing.T) {
	dob := time.Date(1990, 3, 15, 0, 0, 0, 0, time.UTC)

	t.Run("eligible on the birthday", func(t *testing.T) {
		now := time.Date(2024, 3, 15, 18, 30, 0, 0, time.UTC)
		e := newEvaluator(t, []*Code{birthdayCode()}, now)
		cust := &customer.Customer{ID: "c1", DateOfBirth: dob}
		crt := cartWith(t,
			cartLine("diavola", "11.30", 1),
			cartLine("margherita", "8.50", 2),
		)

		res, err := e.Evaluate(context.Background(), cust, "BDAY", crt, &mockUsage{})
		require.NoError(t, err)
		assert.True(t, res.Eligible)
		// Cheapest single line item is free, not cheapest * quantity.
		assert.True(t, decimal.RequireFromString("8.50").Equal(res.Amount),
			"want 8.50, got %s", res.Amount)
	})

	t.Run("ineligible the day after", func(t *testing.T) {
		now := time.Date(2024, 3, 16, 0, 0, 1, 0, time.UTC)
		e := newEvaluator(t, []*Code{birthdayCode()}, now)
		cust := &customer.Customer{ID: "c1", DateOfBirth: dob}

		res, err := e.Evaluate(context.Background(), cust, "BDAY", cartWith(t, cartLine("p1", "10.00", 1)), &mockUsage{})
		require.NoError(t, err)
		assert.False(t, res.Eligible)
		assert.Contains(t, res.Message, "birthday")
	})

	t.Run("already redeemed today", func(t *testing.T) {
		now := time.Date(2024, 3, 15, 18, 30, 0, 0, time.UTC)
		e := newEvaluator(t, []*Code{birthdayCode()}, now)
		cust := &customer.Customer{ID: "c1", DateOfBirth: dob}
		usage := &mockUsage{usedBetween: true}

		res, err := e.Evaluate(context.Background(), cust, "BDAY", cartWith(t, cartLine("p1", "10.00", 1)), usage)
		require.NoError(t, err)
		assert.False(t, res.Eligible)
		assert.Contains(t, res.Message, "already redeemed")

		// The usage window is the local calendar day, not a UTC day or a
		// rolling 24 hours.
		assert.Equal(t, time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC), usage.from)
		assert.Equal(t, time.Date(2024, 3, 16, 0, 0, 0, 0, time.UTC), usage.to)
	})

	t.Run("empty cart", func(t *testing.T) {
		now := time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC)
		e := newEvaluator(t, []*Code{birthdayCode()}, now)
		cust := &customer.Customer{ID: "c1", DateOfBirth: dob}

		res, err := e.Evaluate(context.Background(), cust, "BDAY", cart.New(), &mockUsage{})
		require.NoError(t, err)
		assert.False(t, res.Eligible)
		assert.Equal(t, "cart is empty", res.Message)
	})

	t.Run("day boundary uses the configured location", func(t *testing.T) {
		loc := time.FixedZone("UTC+2", 2*60*60)
		// 23:30 UTC on the 14th is already the 15th locally.
		now := time.Date(2024, 3, 14, 23, 30, 0, 0, time.UTC)
		e := NewEvaluator(&mockCodeRepo{codes: map[string]*Code{"code-bday": birthdayCode()}}, Config{
			LoyaltyThreshold: 10,
			Location:         loc,
		})
		e.now = func() time.Time { return now }
		cust := &customer.Customer{ID: "c1", DateOfBirth: dob}

		res, err := e.Evaluate(context.Background(), cust, "BDAY", cartWith(t, cartLine("p1", "10.00", 1)), &mockUsage{})
		require.NoError(t, err)
		assert.True(t, res.Eligible)
	})
}

func TestEvaluate_LoyaltyReward(t *testing.T) {
	t.Run("threshold reached with cart contribution", func(t *testing.T) {
		e := newEvaluator(t, []*Code{loyaltyCode(10)}, time.Now())
		cust := &customer.Customer{ID: "c1", LoyaltyPizzas: 7}
		crt := cartWith(t, cartLine("p1", "10.00", 3)) // 7 + 3 = 10

		res, err := e.Evaluate(context.Background(), cust, "LOYAL10", crt, &mockUsage{})
		require.NoError(t, err)
		assert.True(t, res.Eligible)
		assert.True(t, res.ConsumesLoyalty)
		assert.True(t, decimal.RequireFromString("3.00").Equal(res.Amount),
			"want 3.00, got %s", res.Amount)
	})

	t.Run("below threshold reports shortfall", func(t *testing.T) {
		e := newEvaluator(t, []*Code{loyaltyCode(10)}, time.Now())
		cust := &customer.Customer{ID: "c1", LoyaltyPizzas: 7}
		crt := cartWith(t, cartLine("p1", "10.00", 2)) // 7 + 2 = 9

		res, err := e.Evaluate(context.Background(), cust, "LOYAL10", crt, &mockUsage{})
		require.NoError(t, err)
		assert.False(t, res.Eligible)
		assert.Equal(t, "1 more pizza(s) needed", res.Message)
	})
}

func TestLoyaltyAfterRedemption(t *testing.T) {
	tests := []struct {
		name      string
		count     int
		cartQty   int
		threshold int
		want      int
	}{
		{"remainder carries forward", 7, 5, 10, 2},
		{"exact threshold resets to zero", 7, 3, 10, 0},
		{"never negative", 2, 3, 10, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, LoyaltyAfterRedemption(tt.count, tt.cartQty, tt.threshold))
		})
	}
}

func TestKindFromName(t *testing.T) {
	for name, want := range map[string]Kind{
		NameOneTimePromo:  KindOneTimePromo,
		NameBirthday:      KindBirthday,
		NameLoyaltyReward: KindLoyaltyReward,
	} {
		got, err := KindFromName(name)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}

	_, err := KindFromName("Mystery Deal")
	assert.True(t, errors.Is(err, ErrMisconfigured))
}
