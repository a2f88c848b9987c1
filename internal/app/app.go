// Package app wires the pizzeria API server: configuration, database,
// domain services, HTTP surface, background jobs, and graceful shutdown.
package app

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/app"
	"github.com/go-faster/sdk/zctx"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/ovenworks/pizzeria/internal/domain/auth"
	"github.com/ovenworks/pizzeria/internal/domain/cart"
	"github.com/ovenworks/pizzeria/internal/domain/catalog"
	"github.com/ovenworks/pizzeria/internal/domain/delivery"
	"github.com/ovenworks/pizzeria/internal/domain/discount"
	"github.com/ovenworks/pizzeria/internal/domain/order"
	"github.com/ovenworks/pizzeria/internal/handler"
	"github.com/ovenworks/pizzeria/internal/jobs"
	"github.com/ovenworks/pizzeria/internal/repository"
	"github.com/ovenworks/pizzeria/pkg/health"
	"github.com/ovenworks/pizzeria/pkg/httpmiddleware"
)

// Run creates all dependencies, starts the HTTP server and background jobs,
// and handles graceful shutdown. It is the single wiring point for the
// application.
func Run(ctx context.Context, lg *zap.Logger, m *app.Telemetry, cfg *Config) error {
	lg.Info("Initializing", zap.String("addr", cfg.Addr))

	// PostgreSQL pool + migrations.
	pool, err := repository.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return errors.Wrap(err, "create db pool")
	}
	defer pool.Close()

	if err := repository.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	// Health check service.
	healthSvc := health.New()
	healthSvc.AddReadinessCheck("postgres", 5*time.Second, health.PingCheck(pool))
	healthSvc.AddLivenessCheck("goroutines", time.Second, health.GoroutineCountCheck(10000))

	// Repositories.
	catalogRepo := repository.NewCatalogRepository(pool)
	customerRepo := repository.NewCustomerRepository(pool)
	discountRepo := repository.NewDiscountRepository(pool)
	orderRepo := repository.NewOrderRepository(pool)
	apikeyRepo := repository.NewAPIKeyRepository(pool)
	checkoutStore := repository.NewCheckoutStore(pool)

	// Domain services.
	loc, err := time.LoadLocation(cfg.Loyalty.Timezone)
	if err != nil {
		return errors.Wrapf(err, "load timezone %q", cfg.Loyalty.Timezone)
	}

	pricer := catalog.NewPricer(catalog.PricingConfig{
		MarginPercent: decimal.NewFromInt(int64(cfg.Pricing.MarginPercent)),
		VATPercent:    decimal.NewFromInt(int64(cfg.Pricing.VATPercent)),
	})
	evaluator := discount.NewEvaluator(discountRepo, discount.Config{
		LoyaltyThreshold: cfg.Loyalty.Threshold,
		Location:         loc,
	})
	assigner := delivery.NewAssigner(cfg.Assignment.Cooldown)
	carts := cart.NewMemoryStore()
	orderService := order.NewService(checkoutStore, orderRepo, carts, evaluator, assigner)
	authenticator := auth.NewAuthenticator(apikeyRepo, []byte(cfg.APIKeyPepper))

	// Background jobs.
	sweep := jobs.NewDeliverySweepJob(orderService, lg)
	if err := sweep.Start(ctx, cfg.Sweep.Schedule); err != nil {
		return errors.Wrap(err, "start delivery sweep")
	}
	defer sweep.Stop()

	// HTTP surface.
	h := handler.NewHandler(
		catalogRepo, pricer, carts, customerRepo,
		evaluator, discountRepo, orderService,
		discountRepo, catalogRepo, authenticator,
	)

	router := chi.NewRouter()
	router.Use(httpmiddleware.LabelRoutes())
	router.Method(http.MethodGet, "/livez", healthSvc.LiveHandler())
	router.Method(http.MethodGet, "/readyz", healthSvc.ReadyHandler())
	h.Routes(router)

	server := &http.Server{
		ReadHeaderTimeout: time.Second,
		ReadTimeout:       5 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
		Addr:              cfg.Addr,
		Handler: httpmiddleware.Wrap(router,
			httpmiddleware.Recovery(),
			httpmiddleware.CORS(httpmiddleware.CORSConfig{
				AllowOrigins:     cfg.CORS.Origins,
				AllowHeaders:     []string{"Content-Type", "X-Api-Key"},
				AllowCredentials: cfg.CORS.AllowCredentials,
				MaxAge:           86400,
			}),
			httpmiddleware.RateLimitWithCleanup(ctx, httpmiddleware.RateLimitConfig{
				Max:    cfg.RateLimit.Max,
				Window: cfg.RateLimit.Window,
			}),
			httpmiddleware.RequestID(),
			httpmiddleware.InjectLogger(zctx.From(ctx)),
			httpmiddleware.Instrument("pizzeria-api", m),
			httpmiddleware.LogRequests(),
		),
	}

	healthSvc.SetReady(true)

	// Graceful shutdown: wait for context cancellation, drain, then stop.
	shutdownDone := make(chan struct{})
	go func() {
		<-ctx.Done()
		healthSvc.SetReady(false)
		lg.Info("Readiness set to false, draining", zap.Duration("delay", cfg.Graceful.ReadinessDelay))
		time.Sleep(cfg.Graceful.ReadinessDelay)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Graceful.ShutdownTimeout)
		defer cancel()

		lg.Info("Shutting down server", zap.Duration("timeout", cfg.Graceful.ShutdownTimeout))
		if err := server.Shutdown(shutdownCtx); err != nil {
			lg.Error("Server shutdown error", zap.Error(err))
		}
		close(shutdownDone)
	}()

	lg.Info("Server listening", zap.String("addr", cfg.Addr))
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.Wrap(err, "server")
	}
	<-shutdownDone
	return nil
}
