// Package order holds placed orders, the checkout orchestration, and the
// time-based delivery status derivation.
package order

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/ovenworks/pizzeria/internal/domain/customer"
	"github.com/ovenworks/pizzeria/internal/domain/delivery"
	"github.com/ovenworks/pizzeria/internal/domain/discount"
)

// ErrNotFound is returned when an order does not exist.
var ErrNotFound = errors.New("order not found")

// ProcessingError wraps a persistence failure during checkout. The checkout
// transaction has been rolled back; the cart is intact and the caller may
// retry.
type ProcessingError struct {
	cause error
}

func (e *ProcessingError) Error() string {
	return "order processing failed: " + e.cause.Error()
}

func (e *ProcessingError) Unwrap() error {
	return e.cause
}

// Item is a single order line. UnitPrice is the price at time of purchase,
// copied from the cart line; later ingredient cost changes never touch it.
type Item struct {
	ID        string
	PizzaID   string
	Name      string
	Quantity  int
	UnitPrice decimal.Decimal
}

// Order is a persisted customer order. TotalPrice is post-discount and
// VAT-inclusive. DiscountCodeID is set only when a discount was actually
// applied; CourierID is nil when no courier existed at checkout time.
type Order struct {
	ID             string
	CustomerID     string
	DiscountCodeID *string
	CourierID      *string
	TotalPrice     decimal.Decimal
	Status         Status
	CreatedAt      time.Time
	DeliveredAt    *time.Time
	Items          []Item
}

// Tx exposes the repositories bound to a single checkout transaction. All
// mutations made through it commit or roll back together.
type Tx interface {
	// CustomerForUpdate loads and row-locks the customer so the loyalty
	// read-modify-write cannot lose updates to a concurrent checkout.
	CustomerForUpdate(ctx context.Context, id string) (*customer.Customer, error)
	SetLoyaltyPizzas(ctx context.Context, customerID string, count int) error

	ListCouriers(ctx context.Context) ([]delivery.Courier, error)
	// LockCourier row-locks the courier and returns its fresh state, so a
	// selection made from a stale listing can be verified before stamping.
	LockCourier(ctx context.Context, id string) (*delivery.Courier, error)
	StampCourier(ctx context.Context, id string, at time.Time) error

	InsertOrder(ctx context.Context, o *Order) error

	discount.UsageChecker
}

// Store runs checkout transactions.
type Store interface {
	// ExecCheckout begins a transaction, invokes fn with a bound Tx, and
	// commits when fn returns nil. Any error rolls everything back.
	ExecCheckout(ctx context.Context, fn func(tx Tx) error) error
}

// Repository defines read and status operations for persisted orders.
type Repository interface {
	GetByID(ctx context.Context, id string) (*Order, error)
	// MarkDelivered persists the terminal status with the given timestamp.
	// It must be a no-op for orders already delivered so concurrent
	// lazy-reconciling reads stay idempotent.
	MarkDelivered(ctx context.Context, id string, deliveredAt time.Time) error
	// MarkOverdueDelivered transitions every order past the delivery window
	// at once. Returns the number of orders updated.
	MarkOverdueDelivered(ctx context.Context, now time.Time) (int64, error)
}
