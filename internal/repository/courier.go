package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ovenworks/pizzeria/internal/domain/delivery"
)

const (
	listCouriersSQL = `SELECT id, name, last_assigned_at FROM delivery_persons ORDER BY id`

	listPostalRangesSQL = `SELECT id, delivery_person_id, start_zip, end_zip
		FROM postal_ranges ORDER BY delivery_person_id, start_zip`

	lockCourierSQL = `SELECT id, name, last_assigned_at
		FROM delivery_persons WHERE id = $1 FOR UPDATE`

	stampCourierSQL = `UPDATE delivery_persons SET last_assigned_at = $2 WHERE id = $1`
)

var _ delivery.Repository = (*CourierRepository)(nil)

// CourierRepository implements delivery.Repository backed by PostgreSQL.
type CourierRepository struct {
	pool *pgxpool.Pool
}

// NewCourierRepository returns a CourierRepository that uses the given pool.
func NewCourierRepository(pool *pgxpool.Pool) *CourierRepository {
	return &CourierRepository{pool: pool}
}

// List returns every courier with its postal ranges attached.
func (r *CourierRepository) List(ctx context.Context) ([]delivery.Courier, error) {
	return listCouriers(ctx, r.pool)
}

func listCouriers(ctx context.Context, q querier) ([]delivery.Courier, error) {
	rows, err := q.Query(ctx, listCouriersSQL)
	if err != nil {
		return nil, fmt.Errorf("listing couriers: %w", err)
	}
	couriers, err := pgx.CollectRows(rows, scanCourier)
	if err != nil {
		return nil, fmt.Errorf("listing couriers: %w", err)
	}

	rangeRows, err := q.Query(ctx, listPostalRangesSQL)
	if err != nil {
		return nil, fmt.Errorf("listing postal ranges: %w", err)
	}
	ranges, err := pgx.CollectRows(rangeRows, scanPostalRange)
	if err != nil {
		return nil, fmt.Errorf("listing postal ranges: %w", err)
	}

	byCourier := make(map[string][]delivery.PostalRange, len(couriers))
	for _, pr := range ranges {
		byCourier[pr.courierID] = append(byCourier[pr.courierID], pr.r)
	}
	for i := range couriers {
		couriers[i].Ranges = byCourier[couriers[i].ID]
	}
	return couriers, nil
}

func lockCourier(ctx context.Context, q querier, id string) (*delivery.Courier, error) {
	rows, err := q.Query(ctx, lockCourierSQL, id)
	if err != nil {
		return nil, fmt.Errorf("locking courier %q: %w", id, err)
	}

	c, err := pgx.CollectExactlyOneRow(rows, scanCourier)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, delivery.ErrNotFound
		}
		return nil, fmt.Errorf("locking courier %q: %w", id, err)
	}
	return &c, nil
}

func stampCourier(ctx context.Context, q querier, id string, at time.Time) error {
	tag, err := q.Exec(ctx, stampCourierSQL, id, at)
	if err != nil {
		return fmt.Errorf("stamping courier %q: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return delivery.ErrNotFound
	}
	return nil
}

type courierRange struct {
	courierID string
	r         delivery.PostalRange
}

func scanCourier(row pgx.CollectableRow) (delivery.Courier, error) {
	var c delivery.Courier
	err := row.Scan(&c.ID, &c.Name, &c.LastAssignedAt)
	return c, err
}

func scanPostalRange(row pgx.CollectableRow) (courierRange, error) {
	var cr courierRange
	err := row.Scan(&cr.r.ID, &cr.courierID, &cr.r.StartZip, &cr.r.EndZip)
	return cr, err
}
