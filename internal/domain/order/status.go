package order

import (
	"context"
	"time"

	"github.com/go-faster/errors"
)

// Status is an order's delivery status. Only "delivered" is stored as a
// terminal fact; the in-between states are derived from elapsed time since
// the order was created.
type Status string

const (
	// StatusPending is the persisted default before any derivation.
	StatusPending Status = "pending"
	// StatusPreparing covers the first ten minutes after checkout.
	StatusPreparing Status = "preparing"
	// StatusOutForDelivery covers minutes ten through thirty.
	StatusOutForDelivery Status = "out_for_delivery"
	// StatusDelivered is terminal and sticky once persisted.
	StatusDelivered Status = "delivered"
)

const (
	// PreparingWindow is how long an order stays in preparation.
	PreparingWindow = 10 * time.Minute
	// DeliveryWindow is the elapsed time after which an order counts as
	// delivered.
	DeliveryWindow = 30 * time.Minute
)

// DeriveStatus computes the delivery status at the given instant. A stored
// "delivered" status always wins; it never reverts regardless of the clock.
func DeriveStatus(createdAt time.Time, stored Status, now time.Time) Status {
	if stored == StatusDelivered {
		return StatusDelivered
	}

	elapsed := now.Sub(createdAt)
	switch {
	case elapsed >= DeliveryWindow:
		return StatusDelivered
	case elapsed >= PreparingWindow:
		return StatusOutForDelivery
	default:
		return StatusPreparing
	}
}

// DeliveredAt returns the deterministic delivery timestamp persisted when an
// order transitions to delivered: exactly the end of the delivery window.
// Because it depends only on createdAt, racing reconcile writes agree on the
// value.
func DeliveredAt(createdAt time.Time) time.Time {
	return createdAt.Add(DeliveryWindow)
}

// Get returns the order with its status derived at the current instant.
// When derivation crosses into delivered, the terminal status is reconciled
// to storage before returning; the intermediate states are presentation-only
// and never written.
func (s *Service) Get(ctx context.Context, id string) (*Order, error) {
	o, err := s.orders.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	derived := DeriveStatus(o.CreatedAt, o.Status, s.now())
	if derived == StatusDelivered && o.Status != StatusDelivered {
		if err := s.ReconcileDelivered(ctx, o); err != nil {
			return nil, err
		}
		return o, nil
	}

	o.Status = derived
	return o, nil
}

// ReconcileDelivered persists the delivered transition for an order whose
// delivery window has elapsed. The write is idempotent: the timestamp is a
// pure function of CreatedAt and the repository ignores already-delivered
// rows, so concurrent reconciles agree.
func (s *Service) ReconcileDelivered(ctx context.Context, o *Order) error {
	deliveredAt := DeliveredAt(o.CreatedAt)
	if err := s.orders.MarkDelivered(ctx, o.ID, deliveredAt); err != nil {
		return errors.Wrapf(err, "mark order %s delivered", o.ID)
	}
	o.Status = StatusDelivered
	o.DeliveredAt = &deliveredAt
	return nil
}

// SweepDelivered marks every overdue order delivered in one statement. It is
// invoked periodically by the background job so statuses converge even for
// orders nobody reads.
func (s *Service) SweepDelivered(ctx context.Context) (int64, error) {
	return s.orders.MarkOverdueDelivered(ctx, s.now())
}
