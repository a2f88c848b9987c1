// Command reprice recomputes the published menu price of every pizza from its
// current ingredient costs and writes the result back to the catalog. Carts
// quote fresh at add time, so this only refreshes what the menu displays.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"sync/atomic"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/ovenworks/pizzeria/internal/domain/catalog"
	"github.com/ovenworks/pizzeria/internal/repository"
)

func main() {
	var (
		databaseURL string
		margin      string
		vat         string
		dryRun      bool
	)

	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&margin, "margin", "40", "margin percent applied on ingredient cost")
	flag.StringVar(&vat, "vat", "9", "VAT percent applied after margin")
	flag.BoolVar(&dryRun, "dry-run", false, "compute and report prices without writing")
	flag.Parse()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}

	marginPct, err := decimal.NewFromString(margin)
	if err != nil {
		slog.Error("invalid margin percent", slog.String("value", margin))
		os.Exit(1)
	}
	vatPct, err := decimal.NewFromString(vat)
	if err != nil {
		slog.Error("invalid VAT percent", slog.String("value", vat))
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, databaseURL, marginPct, vatPct, dryRun); err != nil {
		slog.Error("reprice failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func run(ctx context.Context, databaseURL string, marginPct, vatPct decimal.Decimal, dryRun bool) error {
	pool, err := repository.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	repo := repository.NewCatalogRepository(pool)
	pricer := catalog.NewPricer(catalog.PricingConfig{
		MarginPercent: marginPct,
		VATPercent:    vatPct,
	})

	pizzas, err := repo.List(ctx)
	if err != nil {
		return errors.Wrap(err, "list pizzas")
	}
	if len(pizzas) == 0 {
		slog.Info("no pizzas found")
		return nil
	}

	var updated atomic.Int64

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(8)

	for _, p := range pizzas {
		g.Go(func() error {
			price := pricer.CatalogPrice(p)
			if price.Equal(p.Price) {
				return nil
			}

			slog.Info("repricing pizza",
				slog.String("id", p.ID),
				slog.String("name", p.Name),
				slog.String("old", p.Price.StringFixed(2)),
				slog.String("new", price.StringFixed(2)),
			)
			if dryRun {
				return nil
			}

			if err := repo.UpdatePrice(ctx, p.ID, price); err != nil {
				return errors.Wrapf(err, "update price of %s", p.ID)
			}
			updated.Add(1)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	slog.Info("reprice completed",
		slog.Int("pizzas", len(pizzas)),
		slog.Int64("updated", updated.Load()),
	)
	return nil
}
