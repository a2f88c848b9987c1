package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/ovenworks/pizzeria/internal/domain/order"
)

const (
	getOrderByIDSQL = `SELECT id, customer_id, discount_code_id, delivery_person_id,
		total_price, status, created_at, delivered_at
		FROM orders WHERE id = $1`

	getOrderItemsSQL = `SELECT oi.id, oi.pizza_id, p.name, oi.quantity, oi.unit_price
		FROM order_items oi
		JOIN pizzas p ON p.id = oi.pizza_id
		WHERE oi.order_id = $1
		ORDER BY oi.pizza_id`

	insertOrderSQL = `INSERT INTO orders (id, customer_id, discount_code_id, delivery_person_id,
		total_price, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	insertOrderItemSQL = `INSERT INTO order_items (id, order_id, pizza_id, quantity, unit_price)
		VALUES ($1, $2, $3, $4, $5)`

	markDeliveredSQL = `UPDATE orders SET status = 'delivered', delivered_at = $2
		WHERE id = $1 AND status <> 'delivered'`

	markOverdueDeliveredSQL = `UPDATE orders
		SET status = 'delivered', delivered_at = created_at + make_interval(secs => $2)
		WHERE status <> 'delivered' AND created_at <= $1`
)

var _ order.Repository = (*OrderRepository)(nil)

// OrderRepository implements order.Repository backed by PostgreSQL.
type OrderRepository struct {
	pool *pgxpool.Pool
}

// NewOrderRepository returns an OrderRepository that uses the given pool.
func NewOrderRepository(pool *pgxpool.Pool) *OrderRepository {
	return &OrderRepository{pool: pool}
}

// GetByID returns a single order with its items.
func (r *OrderRepository) GetByID(ctx context.Context, id string) (*order.Order, error) {
	rows, err := r.pool.Query(ctx, getOrderByIDSQL, id)
	if err != nil {
		return nil, fmt.Errorf("getting order %q: %w", id, err)
	}

	o, err := pgx.CollectExactlyOneRow(rows, scanOrder)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, order.ErrNotFound
		}
		return nil, fmt.Errorf("getting order %q: %w", id, err)
	}

	itemRows, err := r.pool.Query(ctx, getOrderItemsSQL, id)
	if err != nil {
		return nil, fmt.Errorf("getting items for order %q: %w", id, err)
	}
	o.Items, err = pgx.CollectRows(itemRows, scanOrderItem)
	if err != nil {
		return nil, fmt.Errorf("getting items for order %q: %w", id, err)
	}
	return &o, nil
}

// MarkDelivered persists the terminal status. Already-delivered orders are
// left untouched, which keeps concurrent lazy reconciles idempotent.
func (r *OrderRepository) MarkDelivered(ctx context.Context, id string, deliveredAt time.Time) error {
	_, err := r.pool.Exec(ctx, markDeliveredSQL, id, deliveredAt)
	if err != nil {
		return fmt.Errorf("marking order %q delivered: %w", id, err)
	}
	return nil
}

// MarkOverdueDelivered transitions every order whose delivery window has
// elapsed in a single statement. DeliveredAt is derived from each order's
// own created_at, so the sweep and the lazy read path agree on timestamps.
func (r *OrderRepository) MarkOverdueDelivered(ctx context.Context, now time.Time) (int64, error) {
	cutoff := now.Add(-order.DeliveryWindow)
	tag, err := r.pool.Exec(ctx, markOverdueDeliveredSQL, cutoff, order.DeliveryWindow.Seconds())
	if err != nil {
		return 0, fmt.Errorf("marking overdue orders delivered: %w", err)
	}
	return tag.RowsAffected(), nil
}

func insertOrder(ctx context.Context, q querier, o *order.Order) error {
	_, err := q.Exec(ctx, insertOrderSQL,
		o.ID, o.CustomerID, o.DiscountCodeID, o.CourierID,
		o.TotalPrice, string(o.Status), o.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("inserting order %q: %w", o.ID, err)
	}

	for _, item := range o.Items {
		_, err := q.Exec(ctx, insertOrderItemSQL,
			item.ID, o.ID, item.PizzaID, item.Quantity, item.UnitPrice,
		)
		if err != nil {
			return fmt.Errorf("inserting item %q of order %q: %w", item.PizzaID, o.ID, err)
		}
	}
	return nil
}

func scanOrder(row pgx.CollectableRow) (order.Order, error) {
	var (
		o      order.Order
		status string
		total  decimal.Decimal
	)
	err := row.Scan(
		&o.ID, &o.CustomerID, &o.DiscountCodeID, &o.CourierID,
		&total, &status, &o.CreatedAt, &o.DeliveredAt,
	)
	o.TotalPrice = total
	o.Status = order.Status(status)
	return o, err
}

func scanOrderItem(row pgx.CollectableRow) (order.Item, error) {
	var (
		item  order.Item
		price decimal.Decimal
	)
	err := row.Scan(&item.ID, &item.PizzaID, &item.Name, &item.Quantity, &price)
	item.UnitPrice = price
	return item, err
}
