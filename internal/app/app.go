package app

import (
	"context"
	"net/http"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/app"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/academy-commerce/internal/domain/cart"
	"github.com/xenking/academy-commerce/internal/domain/checkout"
	"github.com/xenking/academy-commerce/internal/domain/coupon"
	"github.com/xenking/academy-commerce/internal/domain/enrollment"
	"github.com/xenking/academy-commerce/internal/domain/order"
	"github.com/xenking/academy-commerce/internal/handler"
	"github.com/xenking/academy-commerce/internal/idempotency"
	"github.com/xenking/academy-commerce/internal/repository"
	"github.com/xenking/academy-commerce/pkg/health"
	"github.com/xenking/academy-commerce/pkg/httpmiddleware"
)

// Run creates all dependencies, starts the HTTP server, and handles graceful
// shutdown. It is the single wiring point for the application.
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

	checkoutOpts := []checkout.Option{
		checkout.WithMaxAttempts(cfg.Checkout.OrderNumberAttempts),
		checkout.WithMeterProvider(m.MeterProvider()),
		checkout.WithTracerProvider(m.TracerProvider()),
	}

	// Redis is optional: without it checkouts are not idempotent.
	if cfg.Redis.URL != "" {
		rdb, err := idempotency.NewClient(ctx, cfg.Redis.URL)
		if err != nil {
			return errors.Wrap(err, "connect redis")
		}
		defer func() { _ = rdb.Close() }()

		healthSvc.AddReadinessCheck("redis", 2*time.Second, func(ctx context.Context) error {
			return rdb.Ping(ctx).Err()
		})
		checkoutOpts = append(checkoutOpts,
			checkout.WithIdempotency(idempotency.NewRedisStore(rdb, cfg.Redis.IdempotencyTTL)),
		)
	} else {
		lg.Warn("Redis is not configured, idempotency keys are ignored")
	}

	healthSvc.Start(ctx, 10*time.Second)
	healthSvc.SetReady(true)

	// Repositories.
	courseRepo := repository.NewCourseRepository(pool)
	cartRepo := repository.NewCartRepository(pool)
	couponRepo := repository.NewCouponRepository(pool)
	orderRepo := repository.NewOrderRepository(pool)
	enrollmentRepo := repository.NewEnrollmentRepository(pool)

	// Domain services.
	enrollments := enrollment.NewService(enrollmentRepo)
	carts := cart.NewService(courseRepo, enrollments, cartRepo)
	coupons := coupon.NewEvaluator(couponRepo)
	ledger := order.NewLedger(orderRepo)
	checkouts, err := checkout.NewService(
		cartRepo,
		coupons,
		repository.NewCheckoutStore(pool),
		ledger,
		enrollments,
		checkoutOpts...,
	)
	if err != nil {
		return errors.Wrap(err, "create checkout service")
	}

	verifier, err := handler.NewJWTVerifier(cfg.JWT.Secret, cfg.JWT.Issuer)
	if err != nil {
		return errors.Wrap(err, "create jwt verifier")
	}

	// Router: API routes plus health endpoints. Route-aware middlewares run
	// inside chi so they see the matched pattern.
	h := handler.NewHandler(carts, coupons, checkouts, ledger, enrollments)
	router := handler.NewRouter(h, verifier,
		httpmiddleware.LogRequests(),
		httpmiddleware.Labeler(),
	)
	router.Get("/livez", healthSvc.LiveEndpoint)
	router.Get("/readyz", healthSvc.ReadyEndpoint)

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
				AllowHeaders:     []string{"Content-Type", "Authorization", handler.IdempotencyKeyHeader, httpmiddleware.RequestIDHeader},
				ExposeHeaders:    []string{httpmiddleware.RequestIDHeader, "Retry-After"},
				AllowCredentials: cfg.CORS.AllowCredentials,
				MaxAge:           86400,
			}),
			httpmiddleware.RateLimitWithCleanup(ctx, httpmiddleware.RateLimitConfig{
				Max:    cfg.RateLimit.Max,
				Window: cfg.RateLimit.Window,
			}),
			httpmiddleware.RequestID(),
			httpmiddleware.InjectLogger(zctx.From(ctx)),
			httpmiddleware.Instrument("academy-api", m),
		),
	}

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
		healthSvc.Stop()
		close(shutdownDone)
	}()

	lg.Info("Server listening", zap.String("addr", cfg.Addr))
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.Wrap(err, "server")
	}
	<-shutdownDone
	return nil
}
