package repository

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/ovenworks/pizzeria/internal/domain/catalog"
)

const (
	listPizzasSQL = `SELECT id, name, description, price FROM pizzas ORDER BY name`

	getPizzaByIDSQL = `SELECT id, name, description, price FROM pizzas WHERE id = $1`

	updatePizzaPriceSQL = `UPDATE pizzas SET price = $2 WHERE id = $1`

	listPizzaIngredientsSQL = `SELECT pi.pizza_id, i.id, i.name, i.cost, i.vegetarian
		FROM pizza_ingredients pi
		JOIN ingredients i ON i.id = pi.ingredient_id
		ORDER BY pi.pizza_id, i.name`

	getPizzaIngredientsSQL = `SELECT pi.pizza_id, i.id, i.name, i.cost, i.vegetarian
		FROM pizza_ingredients pi
		JOIN ingredients i ON i.id = pi.ingredient_id
		WHERE pi.pizza_id = $1
		ORDER BY i.name`
)

var _ catalog.Repository = (*CatalogRepository)(nil)

// CatalogRepository implements catalog.Repository backed by PostgreSQL.
// Pizzas and their ingredient lists live in separate tables; loads assemble
// them so pricing always sees the full recipe.
type CatalogRepository struct {
	pool *pgxpool.Pool
}

// NewCatalogRepository returns a CatalogRepository that uses the given pool.
func NewCatalogRepository(pool *pgxpool.Pool) *CatalogRepository {
	return &CatalogRepository{pool: pool}
}

// List returns every pizza with its ingredients, ordered by name.
func (r *CatalogRepository) List(ctx context.Context) ([]catalog.Pizza, error) {
	rows, err := r.pool.Query(ctx, listPizzasSQL)
	if err != nil {
		return nil, fmt.Errorf("listing pizzas: %w", err)
	}
	pizzas, err := pgx.CollectRows(rows, scanPizza)
	if err != nil {
		return nil, fmt.Errorf("listing pizzas: %w", err)
	}

	ingredients, err := r.ingredientsByPizza(ctx)
	if err != nil {
		return nil, err
	}
	for i := range pizzas {
		pizzas[i].Ingredients = ingredients[pizzas[i].ID]
	}
	return pizzas, nil
}

// GetByID returns a single pizza with its ingredients.
func (r *CatalogRepository) GetByID(ctx context.Context, id string) (*catalog.Pizza, error) {
	rows, err := r.pool.Query(ctx, getPizzaByIDSQL, id)
	if err != nil {
		return nil, fmt.Errorf("getting pizza %q: %w", id, err)
	}

	p, err := pgx.CollectExactlyOneRow(rows, scanPizza)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, catalog.ErrNotFound
		}
		return nil, fmt.Errorf("getting pizza %q: %w", id, err)
	}

	ingRows, err := r.pool.Query(ctx, getPizzaIngredientsSQL, id)
	if err != nil {
		return nil, fmt.Errorf("getting ingredients for pizza %q: %w", id, err)
	}
	pis, err := pgx.CollectRows(ingRows, scanPizzaIngredient)
	if err != nil {
		return nil, fmt.Errorf("getting ingredients for pizza %q: %w", id, err)
	}
	for _, pi := range pis {
		p.Ingredients = append(p.Ingredients, pi.ingredient)
	}
	return &p, nil
}

func (r *CatalogRepository) ingredientsByPizza(ctx context.Context) (map[string][]catalog.Ingredient, error) {
	rows, err := r.pool.Query(ctx, listPizzaIngredientsSQL)
	if err != nil {
		return nil, fmt.Errorf("listing pizza ingredients: %w", err)
	}
	pis, err := pgx.CollectRows(rows, scanPizzaIngredient)
	if err != nil {
		return nil, fmt.Errorf("listing pizza ingredients: %w", err)
	}

	byPizza := make(map[string][]catalog.Ingredient)
	for _, pi := range pis {
		byPizza[pi.pizzaID] = append(byPizza[pi.pizzaID], pi.ingredient)
	}
	return byPizza, nil
}

type pizzaIngredient struct {
	pizzaID    string
	ingredient catalog.Ingredient
}

func scanPizzaIngredient(row pgx.CollectableRow) (pizzaIngredient, error) {
	var (
		pi   pizzaIngredient
		cost decimal.Decimal
	)
	err := row.Scan(
		&pi.pizzaID,
		&pi.ingredient.ID, &pi.ingredient.Name, &cost, &pi.ingredient.Vegetarian,
	)
	pi.ingredient.Cost = cost
	return pi, err
}

// UpdatePrice stores a recomputed menu price. Used by the reprice tool.
func (r *CatalogRepository) UpdatePrice(ctx context.Context, id string, price decimal.Decimal) error {
	tag, err := r.pool.Exec(ctx, updatePizzaPriceSQL, id, price)
	if err != nil {
		return fmt.Errorf("updating price of pizza %q: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return catalog.ErrNotFound
	}
	return nil
}

func scanPizza(row pgx.CollectableRow) (catalog.Pizza, error) {
	var (
		p     catalog.Pizza
		price decimal.Decimal
	)
	err := row.Scan(&p.ID, &p.Name, &p.Description, &price)
	p.Price = price
	return p, err
}
