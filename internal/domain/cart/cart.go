// Package cart holds the ephemeral per-session shopping cart. Carts are not
// persisted to the relational store; they live in a session-scoped Store and
// are cleared on successful checkout.
package cart

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

var (
	// ErrEmptyCart is returned when an operation requires a non-empty cart.
	ErrEmptyCart = errors.New("cart is empty")
	// ErrInvalidQuantity is returned for non-positive quantities.
	ErrInvalidQuantity = errors.New("quantity must be greater than 0")
)

// Line is a single cart entry. UnitPrice is frozen at add-to-cart time and
// is never re-derived, even if ingredient costs change afterwards.
type Line struct {
	PizzaID    string          `json:"pizza_id"`
	Name       string          `json:"name"`
	UnitPrice  decimal.Decimal `json:"unit_price"`
	Quantity   int             `json:"quantity"`
	Vegetarian bool            `json:"is_vegetarian"`
}

// Subtotal returns UnitPrice * Quantity for the line.
func (l Line) Subtotal() decimal.Decimal {
	return l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// Cart maps pizza IDs to their cart lines. The zero value is not usable;
// construct with New.
type Cart struct {
	Lines map[string]Line `json:"lines"`
}

// New returns an empty cart.
func New() Cart {
	return Cart{Lines: make(map[string]Line)}
}

// Add merges a line into the cart. Adding a pizza already present increases
// its quantity but keeps the originally frozen unit price.
func (c *Cart) Add(line Line) error {
	if line.Quantity <= 0 {
		return errors.Wrapf(ErrInvalidQuantity, "pizza %s", line.PizzaID)
	}
	if c.Lines == nil {
		c.Lines = make(map[string]Line)
	}
	if existing, ok := c.Lines[line.PizzaID]; ok {
		existing.Quantity += line.Quantity
		c.Lines[line.PizzaID] = existing
		return nil
	}
	c.Lines[line.PizzaID] = line
	return nil
}

// Remove deletes a pizza from the cart. Removing an absent pizza is a no-op.
func (c *Cart) Remove(pizzaID string) {
	delete(c.Lines, pizzaID)
}

// Empty reports whether the cart has no lines.
func (c Cart) Empty() bool {
	return len(c.Lines) == 0
}

// Total returns the VAT-inclusive sum over all lines.
func (c Cart) Total() decimal.Decimal {
	total := decimal.Zero
	for _, line := range c.Lines {
		total = total.Add(line.Subtotal())
	}
	return total
}

// TotalQuantity returns the number of pizzas across all lines.
func (c Cart) TotalQuantity() int {
	qty := 0
	for _, line := range c.Lines {
		qty += line.Quantity
	}
	return qty
}

// Store is the session-scoped cart transport. Implementations must return an
// empty cart, not an error, for unknown sessions.
type Store interface {
	Get(ctx context.Context, sessionID string) (Cart, error)
	Set(ctx context.Context, sessionID string, c Cart) error
	Clear(ctx context.Context, sessionID string) error
}
