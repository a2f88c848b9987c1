// Package jobs holds the background jobs driven by cron schedules.
package jobs

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/ovenworks/pizzeria/internal/domain/order"
)

// DeliverySweepJob periodically marks overdue orders delivered so statuses
// converge even for orders nobody reads. The write is idempotent, so the
// sweep and the lazy read-path reconcile never conflict.
type DeliverySweepJob struct {
	orders *order.Service
	cron   *cron.Cron
	lg     *zap.Logger
}

// NewDeliverySweepJob creates the sweep job. The schedule uses the standard
// cron format, e.g. "@every 1m".
func NewDeliverySweepJob(orders *order.Service, lg *zap.Logger) *DeliverySweepJob {
	return &DeliverySweepJob{
		orders: orders,
		cron:   cron.New(),
		lg:     lg.Named("delivery_sweep"),
	}
}

// Start registers the sweep on the given schedule and starts the scheduler.
func (j *DeliverySweepJob) Start(ctx context.Context, schedule string) error {
	_, err := j.cron.AddFunc(schedule, func() {
		n, err := j.orders.SweepDelivered(ctx)
		if err != nil {
			j.lg.Error("sweep failed", zap.Error(err))
			return
		}
		if n > 0 {
			j.lg.Info("orders marked delivered", zap.Int64("count", n))
		}
	})
	if err != nil {
		return errors.Wrapf(err, "schedule %q", schedule)
	}

	j.cron.Start()
	j.lg.Info("started", zap.String("schedule", schedule))
	return nil
}

// Stop stops the scheduler and waits for a running sweep to finish.
func (j *DeliverySweepJob) Stop() {
	<-j.cron.Stop().Done()
	j.lg.Info("stopped")
}
