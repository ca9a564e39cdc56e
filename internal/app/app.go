package app

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/app"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/partstore/storefront/internal/domain/category"
	"github.com/partstore/storefront/internal/domain/checkout"
	"github.com/partstore/storefront/internal/domain/coupon"
	"github.com/partstore/storefront/internal/domain/order"
	"github.com/partstore/storefront/internal/domain/product"
	"github.com/partstore/storefront/internal/handler"
	"github.com/partstore/storefront/internal/payment"
	"github.com/partstore/storefront/internal/storage/minio"
	"github.com/partstore/storefront/internal/storage/postgres"
	"github.com/partstore/storefront/internal/storage/redis"
	"github.com/partstore/storefront/pkg/health"
	"github.com/partstore/storefront/pkg/httpmiddleware"
)

// Run creates all dependencies, starts the HTTP server, and handles graceful
// shutdown. It is the single wiring point for the application.
func Run(ctx context.Context, lg *zap.Logger, m *app.Telemetry, cfg *Config) error {
	lg.Info("Initializing", zap.String("addr", cfg.Addr))
	gin.SetMode(gin.ReleaseMode)

	// PostgreSQL pool + migrations.
	pool, err := postgres.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return errors.Wrap(err, "create db pool")
	}
	defer pool.Close()

	if err := postgres.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	// Redis cache.
	rdb, err := redis.NewClient(ctx, redis.Config{
		URL:      cfg.Redis.URL,
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err != nil {
		return errors.Wrap(err, "connect redis")
	}
	defer func() { _ = rdb.Close() }()
	cache := redis.NewCache(rdb, cfg.Redis.Prefix)

	// Image storage.
	blobs, err := minio.New(minio.Config{
		Endpoint:  cfg.MinIO.Endpoint,
		AccessKey: cfg.MinIO.AccessKey,
		SecretKey: cfg.MinIO.SecretKey,
		Bucket:    cfg.MinIO.Bucket,
		UseSSL:    cfg.MinIO.UseSSL,
		PublicURL: cfg.MinIO.PublicURL,
	})
	if err != nil {
		return errors.Wrap(err, "create image store")
	}
	if err := blobs.EnsureBucket(ctx); err != nil {
		return errors.Wrap(err, "ensure image bucket")
	}

	if cfg.Stripe.SecretKey == "" {
		lg.Warn("Stripe secret key is not set, checkout sessions will fail")
	}
	gateway := payment.NewStripeGateway(cfg.Stripe.SecretKey)

	// Repositories.
	categoryRepo := postgres.NewCategoryRepository(pool)
	productRepo := postgres.NewProductRepository(pool)
	orderRepo := postgres.NewOrderRepository(pool)
	couponRepo := postgres.NewCouponRepository(pool)

	// Domain services.
	categoryService := category.NewService(categoryRepo, productRepo, blobs, cache)
	productService := product.NewService(productRepo, categoryRepo, blobs, cache, cfg.Redis.FeaturedTTL)
	issuer := coupon.NewIssuer(couponRepo, coupon.IssuerConfig{
		Percent:  cfg.Checkout.RewardPercent,
		Validity: cfg.Checkout.RewardValidity,
	})
	orderService := order.NewService(productRepo, orderRepo)
	checkoutService, err := checkout.NewService(gateway, issuer, orderService, checkout.Config{
		Currency:        cfg.Stripe.Currency,
		ClientURL:       cfg.ClientURL,
		RewardThreshold: cfg.Checkout.RewardThreshold,
	}, m.MeterProvider(), m.TracerProvider())
	if err != nil {
		return errors.Wrap(err, "create checkout service")
	}

	// Health check service.
	healthSvc := health.New()
	healthSvc.AddReadinessCheck("postgres", 5*time.Second, health.PingCheck(pool))
	healthSvc.AddReadinessCheck("redis", 2*time.Second, health.PingCheck(cache))
	healthSvc.AddReadinessCheck("minio", 5*time.Second, health.PingCheck(blobs))
	healthSvc.AddLivenessCheck("goroutines", time.Second, health.GoroutineCountCheck(10000))
	healthSvc.AddLivenessCheck("gc", time.Second, health.GCMaxPauseCheck(time.Second))
	healthSvc.SetReady(true)

	// HTTP handlers.
	limiter := httpmiddleware.NewLimiter(cfg.RateLimit.Max, cfg.RateLimit.Window)
	h := handler.NewHandler(
		categoryService,
		productService,
		orderService,
		checkoutService,
		issuer,
		handler.NewAuthenticator([]byte(cfg.Auth.JWTSecret)),
	)
	engine := h.Engine(handler.EngineConfig{
		Logger:           lg,
		CORSOrigins:      cfg.CORS.Origins,
		AllowCredentials: cfg.CORS.AllowCredentials,
		Limiter:          limiter,
	})

	// Mux: health endpoints + gin API routes on one server.
	mux := http.NewServeMux()
	mux.HandleFunc("/livez", healthSvc.LiveEndpoint)
	mux.HandleFunc("/readyz", healthSvc.ReadyEndpoint)
	mux.Handle("/api/", engine)

	server := &http.Server{
		ReadHeaderTimeout: time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
		Addr:              cfg.Addr,
		Handler: otelhttp.NewHandler(mux, "storefront-api",
			otelhttp.WithTracerProvider(m.TracerProvider()),
			otelhttp.WithMeterProvider(m.MeterProvider()),
		),
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		limiter.Run(gctx)
		return nil
	})
	g.Go(func() error {
		lg.Info("Server listening", zap.String("addr", cfg.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return errors.Wrap(err, "server")
		}
		return nil
	})
	// Graceful shutdown: wait for cancellation, drain, then stop.
	g.Go(func() error {
		<-gctx.Done()
		healthSvc.SetReady(false)
		lg.Info("Readiness set to false, draining", zap.Duration("delay", cfg.Graceful.ReadinessDelay))
		time.Sleep(cfg.Graceful.ReadinessDelay)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Graceful.ShutdownTimeout)
		defer cancel()

		lg.Info("Shutting down server", zap.Duration("timeout", cfg.Graceful.ShutdownTimeout))
		if err := server.Shutdown(shutdownCtx); err != nil {
			return errors.Wrap(err, "shutdown")
		}
		return nil
	})
	return g.Wait()
}
