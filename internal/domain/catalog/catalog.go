// Package catalog holds the pizza catalog: pizzas, their ingredient graph,
// and the pricing rules that derive a sale price from ingredient costs.
package catalog

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// ErrNotFound is returned when a pizza does not exist in the catalog.
var ErrNotFound = errors.New("pizza not found")

// Ingredient is a single pizza component with its purchase cost.
type Ingredient struct {
	ID         string
	Name       string
	Cost       decimal.Decimal
	Vegetarian bool
}

// Pizza is a menu entry. Price is the published menu price, recomputed from
// the ingredient set by the reprice tool; quotes for carts are always
// derived fresh by a Pricer so a stale stored price never leaks into an
// order.
type Pizza struct {
	ID          string
	Name        string
	Description string
	Price       decimal.Decimal
	Ingredients []Ingredient
}

// Vegetarian reports whether every ingredient is vegetarian.
// A pizza with no ingredients counts as vegetarian.
func (p Pizza) Vegetarian() bool {
	for _, ing := range p.Ingredients {
		if !ing.Vegetarian {
			return false
		}
	}
	return true
}

// BaseCost returns the sum of ingredient costs before margin and VAT.
func (p Pizza) BaseCost() decimal.Decimal {
	cost := decimal.Zero
	for _, ing := range p.Ingredients {
		cost = cost.Add(ing.Cost)
	}
	return cost
}

// Repository defines persistence operations for the catalog.
type Repository interface {
	List(ctx context.Context) ([]Pizza, error)
	GetByID(ctx context.Context, id string) (*Pizza, error)
}
