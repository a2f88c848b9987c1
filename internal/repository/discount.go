package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/ovenworks/pizzeria/internal/domain/discount"
)

const (
	getDiscountCodeSQL = `SELECT dc.id, dc.code, dt.id, dt.name, dt.percent
		FROM discount_codes dc
		JOIN discount_types dt ON dt.id = dc.discount_type_id
		WHERE UPPER(dc.code) = UPPER($1)`

	getDiscountTypeByNameSQL = `SELECT id, name, percent FROM discount_types WHERE name = $1`

	insertDiscountCodeSQL = `INSERT INTO discount_codes (id, code, discount_type_id)
		VALUES ($1, $2, $3)
		ON CONFLICT (code) DO NOTHING`

	hasUsedCodeSQL = `SELECT EXISTS (
		SELECT 1 FROM orders WHERE customer_id = $1 AND discount_code_id = $2
	)`

	hasUsedCodeBetweenSQL = `SELECT EXISTS (
		SELECT 1 FROM orders
		WHERE customer_id = $1 AND discount_code_id = $2
		  AND created_at >= $3 AND created_at < $4
	)`
)

var (
	_ discount.Repository   = (*DiscountRepository)(nil)
	_ discount.UsageChecker = (*DiscountRepository)(nil)
)

// DiscountRepository implements discount.Repository and, for preview
// evaluations outside a checkout transaction, discount.UsageChecker, backed
// by PostgreSQL.
type DiscountRepository struct {
	pool *pgxpool.Pool
}

// NewDiscountRepository returns a DiscountRepository that uses the given pool.
func NewDiscountRepository(pool *pgxpool.Pool) *DiscountRepository {
	return &DiscountRepository{pool: pool}
}

// FindByCode looks up a discount code (case-insensitive) together with its
// type. Returns discount.ErrCodeNotFound for unknown codes and
// discount.ErrMisconfigured when the type name maps to no known kind.
func (r *DiscountRepository) FindByCode(ctx context.Context, code string) (*discount.Code, error) {
	return findDiscountCode(ctx, r.pool, code)
}

// HasUsedCode reports whether the customer has any order referencing the code.
func (r *DiscountRepository) HasUsedCode(ctx context.Context, customerID, codeID string) (bool, error) {
	return hasUsedCode(ctx, r.pool, customerID, codeID)
}

// HasUsedCodeBetween reports whether the customer has an order referencing
// the code created within [from, to).
func (r *DiscountRepository) HasUsedCodeBetween(ctx context.Context, customerID, codeID string, from, to time.Time) (bool, error) {
	return hasUsedCodeBetween(ctx, r.pool, customerID, codeID, from, to)
}

// FindTypeByName looks up a discount type by its exact name. Returns
// discount.ErrCodeNotFound when no such type exists.
func (r *DiscountRepository) FindTypeByName(ctx context.Context, name string) (*discount.Type, error) {
	var (
		t       discount.Type
		percent decimal.Decimal
	)
	err := r.pool.QueryRow(ctx, getDiscountTypeByNameSQL, name).Scan(&t.ID, &t.Name, &percent)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, discount.ErrCodeNotFound
		}
		return nil, fmt.Errorf("finding discount type %q: %w", name, err)
	}
	t.Percent = percent

	kind, err := discount.KindFromName(t.Name)
	if err != nil {
		return nil, errors.Wrapf(discount.ErrMisconfigured, "type %q", t.Name)
	}
	t.Kind = kind
	return &t, nil
}

// CreateCode stores a new discount code bound to an existing type.
func (r *DiscountRepository) CreateCode(ctx context.Context, c *discount.Code) error {
	_, err := r.pool.Exec(ctx, insertDiscountCodeSQL, c.ID, c.Code, c.Type.ID)
	if err != nil {
		return fmt.Errorf("creating discount code %q: %w", c.Code, err)
	}
	return nil
}

func findDiscountCode(ctx context.Context, q querier, code string) (*discount.Code, error) {
	rows, err := q.Query(ctx, getDiscountCodeSQL, code)
	if err != nil {
		return nil, fmt.Errorf("finding discount code %q: %w", code, err)
	}

	c, err := pgx.CollectExactlyOneRow(rows, scanDiscountCode)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, discount.ErrCodeNotFound
		}
		return nil, fmt.Errorf("finding discount code %q: %w", code, err)
	}

	kind, err := discount.KindFromName(c.Type.Name)
	if err != nil {
		return nil, errors.Wrapf(discount.ErrMisconfigured, "code %q type %q", c.Code, c.Type.Name)
	}
	c.Type.Kind = kind
	return &c, nil
}

func hasUsedCode(ctx context.Context, q querier, customerID, codeID string) (bool, error) {
	var used bool
	if err := q.QueryRow(ctx, hasUsedCodeSQL, customerID, codeID).Scan(&used); err != nil {
		return false, fmt.Errorf("checking code usage: %w", err)
	}
	return used, nil
}

func hasUsedCodeBetween(ctx context.Context, q querier, customerID, codeID string, from, to time.Time) (bool, error) {
	var used bool
	if err := q.QueryRow(ctx, hasUsedCodeBetweenSQL, customerID, codeID, from, to).Scan(&used); err != nil {
		return false, fmt.Errorf("checking code usage window: %w", err)
	}
	return used, nil
}

func scanDiscountCode(row pgx.CollectableRow) (discount.Code, error) {
	var (
		c       discount.Code
		percent decimal.Decimal
	)
	err := row.Scan(&c.ID, &c.Code, &c.Type.ID, &c.Type.Name, &percent)
	c.Type.Percent = percent
	return c, err
}
