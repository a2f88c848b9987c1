// Package discount resolves discount codes and evaluates their eligibility
// against a customer and cart. Each persisted discount type maps to a closed
// Kind at load time; evaluation dispatches on the Kind, never on the
// human-readable type name.
package discount

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// Kind enumerates the supported discount behaviours.
type Kind string

const (
	// KindOneTimePromo is a percentage discount a customer may redeem once.
	KindOneTimePromo Kind = "one_time_promo"
	// KindBirthday makes the cheapest pizza in the cart free on the
	// customer's birthday, at most once per calendar day.
	KindBirthday Kind = "birthday"
	// KindLoyaltyReward is a percentage discount unlocked every time the
	// customer's running pizza count crosses the loyalty threshold.
	KindLoyaltyReward Kind = "loyalty_reward"
)

// Persisted discount type names. New rows must use one of these names; the
// repository maps them to Kinds and refuses anything else.
const (
	NameOneTimePromo  = "One-Time Promo"
	NameBirthday      = "Birthday Discount"
	NameLoyaltyReward = "Loyalty Reward"
)

var (
	// ErrCodeNotFound is returned when a discount code does not exist.
	ErrCodeNotFound = errors.New("discount code not found")
	// ErrMisconfigured is returned when a discount code references a
	// discount type with an unrecognized name. Checkout treats it like
	// ineligibility: reported, nothing mutated.
	ErrMisconfigured = errors.New("discount code is misconfigured")
)

// KindFromName maps a persisted discount type name to its Kind.
func KindFromName(name string) (Kind, error) {
	switch name {
	case NameOneTimePromo:
		return KindOneTimePromo, nil
	case NameBirthday:
		return KindBirthday, nil
	case NameLoyaltyReward:
		return KindLoyaltyReward, nil
	default:
		return "", errors.Wrapf(ErrMisconfigured, "unknown discount type %q", name)
	}
}

// Type is a named discount policy. Kind is derived from Name when the row is
// loaded.
type Type struct {
	ID      string
	Name    string
	Percent decimal.Decimal
	Kind    Kind
}

// Code is a redeemable string mapped to exactly one discount type. Multiple
// codes may share a type.
type Code struct {
	ID   string
	Code string
	Type Type
}

// Repository looks up discount codes. Lookup is case-insensitive on the code
// string; the input is expected to be trimmed by the caller.
type Repository interface {
	// FindByCode returns ErrCodeNotFound for unknown codes and
	// ErrMisconfigured when the code's type cannot be mapped to a Kind.
	FindByCode(ctx context.Context, code string) (*Code, error)
}

// UsageChecker answers redemption-history questions about a customer and a
// discount code. During checkout the implementation is bound to the checkout
// transaction so history reads see a consistent snapshot.
type UsageChecker interface {
	// HasUsedCode reports whether the customer has any prior order
	// referencing the code.
	HasUsedCode(ctx context.Context, customerID, codeID string) (bool, error)
	// HasUsedCodeBetween reports whether the customer has an order
	// referencing the code with created_at in [from, to).
	HasUsedCodeBetween(ctx context.Context, customerID, codeID string, from, to time.Time) (bool, error)
}
