package discount

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/ovenworks/pizzeria/internal/domain/cart"
	"github.com/ovenworks/pizzeria/internal/domain/customer"
)

var hundred = decimal.NewFromInt(100)

// Config holds the evaluator's tunables.
type Config struct {
	// LoyaltyThreshold is the pizza count that unlocks the loyalty reward
	// and the block size consumed on redemption.
	LoyaltyThreshold int
	// Location defines the wall-clock day boundary for the birthday
	// discount. The birthday is a local-day concept, not a UTC one.
	Location *time.Location
}

// DefaultConfig returns the production evaluator settings.
func DefaultConfig() Config {
	return Config{
		LoyaltyThreshold: 10,
		Location:         time.Local,
	}
}

// Result is the outcome of evaluating a code against a customer and cart.
// An ineligible result carries a user-facing Message and a zero Amount; it
// is not an error.
type Result struct {
	Eligible bool
	Message  string
	// Code is the resolved discount code, nil when the code was not found
	// or was misconfigured. Checkout references Code.ID on the order only
	// when Eligible is true.
	Code   *Code
	Amount decimal.Decimal
	// ConsumesLoyalty is true when the loyalty reward was granted: the
	// checkout must apply the reset rule instead of plain accrual.
	ConsumesLoyalty bool
}

// Evaluator decides discount eligibility. The clock is injectable for
// birthday and day-boundary tests.
type Evaluator struct {
	repo Repository
	cfg  Config
	now  func() time.Time
}

// NewEvaluator builds an Evaluator. Zero config fields fall back to the
// defaults.
func NewEvaluator(repo Repository, cfg Config) *Evaluator {
	if cfg.LoyaltyThreshold <= 0 {
		cfg.LoyaltyThreshold = DefaultConfig().LoyaltyThreshold
	}
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	return &Evaluator{repo: repo, cfg: cfg, now: time.Now}
}

// LoyaltyThreshold returns the configured loyalty block size.
func (e *Evaluator) LoyaltyThreshold() int {
	return e.cfg.LoyaltyThreshold
}

// Evaluate resolves the raw code string and dispatches on the discount kind.
// Ineligibility (unknown code, conditions unmet, misconfigured type) is
// reported through the Result; an error is returned only for infrastructure
// failures. The usage checker is passed per call so checkout can bind it to
// its transaction.
func (e *Evaluator) Evaluate(
	ctx context.Context,
	cust *customer.Customer,
	rawCode string,
	crt cart.Cart,
	usage UsageChecker,
) (Result, error) {
	code := strings.TrimSpace(rawCode)
	if code == "" {
		return Result{Message: "discount code not found"}, nil
	}

	resolved, err := e.repo.FindByCode(ctx, code)
	if err != nil {
		switch {
		case errors.Is(err, ErrCodeNotFound):
			return Result{Message: "discount code not found"}, nil
		case errors.Is(err, ErrMisconfigured):
			return Result{Message: "discount code is misconfigured"}, nil
		default:
			return Result{}, errors.Wrap(err, "lookup discount code")
		}
	}

	switch resolved.Type.Kind {
	case KindOneTimePromo:
		return e.evaluateOneTimePromo(ctx, cust, resolved, crt, usage)
	case KindBirthday:
		return e.evaluateBirthday(ctx, cust, resolved, crt, usage)
	case KindLoyaltyReward:
		return e.evaluateLoyaltyReward(cust, resolved, crt)
	default:
		// FindByCode maps names to kinds, so this only fires if a new kind
		// is added without an evaluation branch.
		return Result{}, errors.Errorf("unhandled discount kind %q", resolved.Type.Kind)
	}
}

// evaluateOneTimePromo grants a percentage of the cart total unless the
// customer has redeemed this exact code before.
func (e *Evaluator) evaluateOneTimePromo(
	ctx context.Context,
	cust *customer.Customer,
	code *Code,
	crt cart.Cart,
	usage UsageChecker,
) (Result, error) {
	used, err := usage.HasUsedCode(ctx, cust.ID, code.ID)
	if err != nil {
		return Result{}, errors.Wrap(err, "check code usage")
	}
	if used {
		return Result{
			Code:    code,
			Message: fmt.Sprintf("discount code %s has already been used", code.Code),
		}, nil
	}

	return Result{
		Eligible: true,
		Code:     code,
		Amount:   percentOf(crt.Total(), code.Type.Percent),
		Message:  fmt.Sprintf("%s%% off your order", code.Type.Percent),
	}, nil
}

// evaluateBirthday makes the cheapest pizza free on the customer's birthday,
// at most once per local calendar day.
func (e *Evaluator) evaluateBirthday(
	ctx context.Context,
	cust *customer.Customer,
	code *Code,
	crt cart.Cart,
	usage UsageChecker,
) (Result, error) {
	if crt.Empty() {
		return Result{Code: code, Message: "cart is empty"}, nil
	}

	localNow := e.now().In(e.cfg.Location)
	if !cust.BirthdayOn(localNow) {
		return Result{
			Code:    code,
			Message: "this discount is only valid on your birthday",
		}, nil
	}

	dayStart := time.Date(localNow.Year(), localNow.Month(), localNow.Day(), 0, 0, 0, 0, e.cfg.Location)
	used, err := usage.HasUsedCodeBetween(ctx, cust.ID, code.ID, dayStart, dayStart.AddDate(0, 0, 1))
	if err != nil {
		return Result{}, errors.Wrap(err, "check birthday code usage")
	}
	if used {
		return Result{
			Code:    code,
			Message: "birthday discount already redeemed today",
		}, nil
	}

	return Result{
		Eligible: true,
		Code:     code,
		Amount:   cheapestUnitPrice(crt).Round(2),
		Message:  "happy birthday, your cheapest pizza is free",
	}, nil
}

// evaluateLoyaltyReward grants a percentage of the cart total when the
// running pizza count plus the cart reaches the threshold. Redemption
// consumes exactly one threshold block; the remainder carries forward.
func (e *Evaluator) evaluateLoyaltyReward(cust *customer.Customer, code *Code, crt cart.Cart) (Result, error) {
	combined := cust.LoyaltyPizzas + crt.TotalQuantity()
	if combined < e.cfg.LoyaltyThreshold {
		return Result{
			Code:    code,
			Message: fmt.Sprintf("%d more pizza(s) needed", e.cfg.LoyaltyThreshold-combined),
		}, nil
	}

	return Result{
		Eligible:        true,
		Code:            code,
		Amount:          percentOf(crt.Total(), code.Type.Percent),
		ConsumesLoyalty: true,
		Message:         fmt.Sprintf("loyalty reward: %s%% off your order", code.Type.Percent),
	}, nil
}

// LoyaltyAfterRedemption returns the loyalty counter after a successful
// reward redemption: the cart accrues first, then one threshold block is
// consumed, floored at zero.
func LoyaltyAfterRedemption(count, cartQuantity, threshold int) int {
	next := count + cartQuantity - threshold
	if next < 0 {
		return 0
	}
	return next
}

func percentOf(total, percent decimal.Decimal) decimal.Decimal {
	return total.Mul(percent).Div(hundred).Round(2)
}

// cheapestUnitPrice returns the lowest frozen unit price in the cart.
func cheapestUnitPrice(crt cart.Cart) decimal.Decimal {
	cheapest := decimal.Zero
	first := true
	for _, line := range crt.Lines {
		if first || line.UnitPrice.LessThan(cheapest) {
			cheapest = line.UnitPrice
			first = false
		}
	}
	return cheapest
}
