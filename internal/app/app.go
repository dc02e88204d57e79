package app

import (
	"context"
	"net/http"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/app"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/avelys/promo-engine/internal/api"
	"github.com/avelys/promo-engine/internal/cache"
	"github.com/avelys/promo-engine/internal/domain/auth"
	"github.com/avelys/promo-engine/internal/domain/cart"
	"github.com/avelys/promo-engine/internal/domain/coupon"
	"github.com/avelys/promo-engine/internal/domain/order"
	"github.com/avelys/promo-engine/internal/domain/product"
	"github.com/avelys/promo-engine/internal/storage/memory"
	"github.com/avelys/promo-engine/internal/storage/postgres"
	"github.com/avelys/promo-engine/pkg/health"
	"github.com/avelys/promo-engine/pkg/httpmiddleware"
)

// storages groups the repository set behind the services; it is satisfied by
// either the postgres or the in-memory backend.
type storages struct {
	coupons  coupon.Store
	carts    cart.Repository
	products product.Repository
	orders   order.Repository
	apikeys  auth.Repository
}

// Run creates all dependencies, starts the HTTP server, and handles graceful
// shutdown. It is the single wiring point for the application.
func Run(ctx context.Context, lg *zap.Logger, m *app.Telemetry, cfg *Config) error {
	lg.Info("Initializing", zap.String("addr", cfg.Addr))

	healthSvc := health.New()
	healthSvc.AddLivenessCheck("goroutines", time.Second, health.GoroutineCountCheck(10000))

	var st storages
	if cfg.DatabaseURL != "" {
		pool, err := postgres.NewPool(ctx, cfg.DatabaseURL)
		if err != nil {
			return errors.Wrap(err, "create db pool")
		}
		defer pool.Close()

		if err := postgres.RunMigrations(ctx, pool); err != nil {
			return errors.Wrap(err, "run migrations")
		}
		healthSvc.AddReadinessCheck("postgres", 5*time.Second, func(ctx context.Context) error {
			return pool.Ping(ctx)
		})

		st = storages{
			coupons:  postgres.NewCouponRepository(pool),
			carts:    postgres.NewCartRepository(pool),
			products: postgres.NewProductRepository(pool),
			orders:   postgres.NewOrderRepository(pool),
			apikeys:  postgres.NewAPIKeyRepository(pool),
		}
	} else {
		lg.Warn("No database configured, running on in-memory storage")
		st = storages{
			coupons:  memory.NewCouponStore(),
			carts:    memory.NewCartStore(),
			products: memory.NewProductStore(),
			orders:   memory.NewOrderStore(),
			apikeys:  memory.NewAPIKeyStore(),
		}
	}

	if cfg.RedisAddr != "" {
		redisCache := cache.NewRedisCouponCache(cfg.RedisAddr, "", cfg.RedisDB)
		defer func() {
			_ = redisCache.Close()
		}()
		healthSvc.AddReadinessCheck("redis", 2*time.Second, redisCache.Ping)
		st.coupons = cache.NewCachedStore(st.coupons, redisCache, cfg.CacheTTL)
		lg.Info("Coupon cache enabled", zap.String("addr", cfg.RedisAddr))
	}

	// Domain services.
	engine := coupon.NewEngine(st.coupons)
	cartService := cart.NewService(st.carts, st.products, engine)
	orderService := order.NewService(st.carts, engine, st.orders)

	// HTTP surface.
	h := api.NewHandler(st.products, cartService, orderService, st.coupons, st.apikeys, []byte(cfg.APIKeyPepper))

	mux := http.NewServeMux()
	mux.HandleFunc("/livez", healthSvc.LiveEndpoint)
	mux.HandleFunc("/readyz", healthSvc.ReadyEndpoint)
	mux.Handle("/api/", h.Routes())

	healthSvc.SetReady(true)

	server := &http.Server{
		ReadHeaderTimeout: time.Second,
		ReadTimeout:       5 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
		Addr:              cfg.Addr,
		Handler: httpmiddleware.Wrap(mux,
			httpmiddleware.Recovery(),
			httpmiddleware.CORS(httpmiddleware.CORSConfig{
				AllowOrigins:     cfg.CORS.Origins,
				AllowHeaders:     []string{"Content-Type", "Authorization", "X-API-Key"},
				AllowCredentials: cfg.CORS.AllowCredentials,
				MaxAge:           86400,
			}),
			httpmiddleware.RateLimitWithCleanup(ctx, httpmiddleware.RateLimitConfig{
				Max:    cfg.RateLimit.Max,
				Window: cfg.RateLimit.Window,
			}),
			httpmiddleware.RequestID(),
			httpmiddleware.InjectLogger(zctx.From(ctx)),
			httpmiddleware.Instrument("promo-api", m.TracerProvider(), m.MeterProvider()),
			httpmiddleware.LogRequests(),
		),
	}

	// Graceful shutdown: flip readiness, let load balancers drain, then stop.
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
