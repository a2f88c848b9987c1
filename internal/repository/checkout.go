package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ovenworks/pizzeria/internal/domain/customer"
	"github.com/ovenworks/pizzeria/internal/domain/delivery"
	"github.com/ovenworks/pizzeria/internal/domain/order"
)

var _ order.Store = (*CheckoutStore)(nil)

// CheckoutStore implements order.Store on top of pgx transactions. Each
// checkout runs in a single transaction: the order row, its items, the
// loyalty counter, and the courier stamp commit together or not at all.
type CheckoutStore struct {
	pool *pgxpool.Pool
}

// NewCheckoutStore returns a CheckoutStore that uses the given pool.
func NewCheckoutStore(pool *pgxpool.Pool) *CheckoutStore {
	return &CheckoutStore{pool: pool}
}

// ExecCheckout begins a transaction, invokes fn with a bound order.Tx, and
// commits when fn returns nil. Any error rolls the transaction back and is
// returned as-is so the caller can classify it.
func (s *CheckoutStore) ExecCheckout(ctx context.Context, fn func(tx order.Tx) error) error {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("beginning checkout transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(&checkoutTx{tx: tx}); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing checkout transaction: %w", err)
	}
	return nil
}

var _ order.Tx = (*checkoutTx)(nil)

// checkoutTx adapts a pgx.Tx to the order.Tx seam. The row locks it takes
// (customer, courier) serialize concurrent checkouts touching the same rows.
type checkoutTx struct {
	tx pgx.Tx
}

func (t *checkoutTx) CustomerForUpdate(ctx context.Context, id string) (*customer.Customer, error) {
	return getCustomer(ctx, t.tx, getCustomerForUpdateSQL, id)
}

func (t *checkoutTx) SetLoyaltyPizzas(ctx context.Context, customerID string, count int) error {
	tag, err := t.tx.Exec(ctx, setLoyaltyPizzasSQL, customerID, count)
	if err != nil {
		return fmt.Errorf("setting loyalty pizzas for customer %q: %w", customerID, err)
	}
	if tag.RowsAffected() == 0 {
		return customer.ErrNotFound
	}
	return nil
}

func (t *checkoutTx) ListCouriers(ctx context.Context) ([]delivery.Courier, error) {
	return listCouriers(ctx, t.tx)
}

func (t *checkoutTx) LockCourier(ctx context.Context, id string) (*delivery.Courier, error) {
	return lockCourier(ctx, t.tx, id)
}

func (t *checkoutTx) StampCourier(ctx context.Context, id string, at time.Time) error {
	return stampCourier(ctx, t.tx, id, at)
}

func (t *checkoutTx) InsertOrder(ctx context.Context, o *order.Order) error {
	return insertOrder(ctx, t.tx, o)
}

func (t *checkoutTx) HasUsedCode(ctx context.Context, customerID, codeID string) (bool, error) {
	return hasUsedCode(ctx, t.tx, customerID, codeID)
}

func (t *checkoutTx) HasUsedCodeBetween(ctx context.Context, customerID, codeID string, from, to time.Time) (bool, error) {
	return hasUsedCodeBetween(ctx, t.tx, customerID, codeID, from, to)
}
