package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/utafrali/storefront/internal/backend"
	"github.com/utafrali/storefront/internal/cart"
	"github.com/utafrali/storefront/internal/catalog"
	"github.com/utafrali/storefront/internal/config"
	"github.com/utafrali/storefront/internal/event"
	handler "github.com/utafrali/storefront/internal/handler/http"
	"github.com/utafrali/storefront/internal/proxy"
	"github.com/utafrali/storefront/internal/service"
	"github.com/utafrali/storefront/internal/session"
	"github.com/utafrali/storefront/internal/storage"
	"github.com/utafrali/storefront/internal/storage/leveldb"
	"github.com/utafrali/storefront/internal/storage/memory"
	redisstore "github.com/utafrali/storefront/internal/storage/redis"
	"github.com/utafrali/storefront/pkg/database"
	"github.com/utafrali/storefront/pkg/health"
	"github.com/utafrali/storefront/pkg/httpclient"
	pkgkafka "github.com/utafrali/storefront/pkg/kafka"
	"github.com/utafrali/storefront/pkg/middleware"
	"github.com/utafrali/storefront/pkg/tracing"
)

// App wires together all dependencies and runs the storefront.
type App struct {
	cfg            *config.Config
	logger         *slog.Logger
	httpServer     *http.Server
	store          storage.Store
	rdb            *redis.Client
	producer       *pkgkafka.Producer
	cartEvents     *event.CartProducer
	cache          *catalog.Cache
	registry       *session.Registry
	rateLimiter    *middleware.RateLimiter
	tracerShutdown func(context.Context) error
}

// NewApp creates a new application instance, initializing all dependencies.
func NewApp(cfg *config.Config, logger *slog.Logger) (*App, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// Initialize OpenTelemetry tracing.
	tracerShutdown, err := tracing.InitTracer(ctx, tracing.Config{
		ServiceName:    "storefront",
		ServiceVersion: "0.1.0",
		Environment:    cfg.Environment,
		OTLPEndpoint:   cfg.OTELEndpoint,
		SampleRate:     cfg.OTELSampleRate,
		Enabled:        cfg.OTELEnabled,
	})
	if err != nil {
		return nil, fmt.Errorf("init tracer: %w", err)
	}

	a := &App{cfg: cfg, logger: logger, tracerShutdown: tracerShutdown}
	healthHandler := health.NewHandler()

	// Session and cart storage.
	if err := a.openStorage(ctx, healthHandler); err != nil {
		_ = tracerShutdown(context.Background())
		return nil, err
	}

	// Cart events are optional.
	var cartOpts []cart.Option
	if cfg.KafkaEnabled() {
		a.producer = pkgkafka.NewProducer(pkgkafka.DefaultProducerConfig(cfg.KafkaBrokers), logger)
		a.cartEvents = event.NewCartProducer(a.producer, logger, cfg.CartEventBuffer)
		cartOpts = append(cartOpts, cart.WithPublisher(a.cartEvents))
		healthHandler.RegisterNonCritical("kafka", a.producer.Ping)
		logger.Info("kafka producer initialized", slog.Any("brokers", cfg.KafkaBrokers))
	}

	// Backend client behind retries and a circuit breaker.
	hc := httpclient.New(httpclient.Config{
		Timeout:         cfg.BackendTimeout,
		MaxRetries:      cfg.BackendMaxRetries,
		RetryWaitMin:    cfg.BackendRetryWaitMin,
		RetryWaitMax:    cfg.BackendRetryWaitMax,
		MaxConnsPerHost: cfg.BackendMaxConns,
	})
	breaker := httpclient.NewCircuitBreakerClient(hc, httpclient.DefaultCircuitBreakerConfig("backend"), logger).
		WithFallback(backend.CircuitOpenFallback)
	client := backend.New(cfg.BackendURL, breaker, logger)

	healthHandler.RegisterNonCritical("backend", backendChecker(cfg.BackendURL))

	// Build the dependency graph.
	a.cache = catalog.NewCache(client, cfg.CatalogTTL, logger)
	a.registry = session.NewRegistry(a.store, cfg.SessionIdleTTL, logger, cartOpts...)

	sp, err := proxy.NewServiceProxy(cfg.BackendURL, proxyTransport(cfg), logger)
	if err != nil {
		a.closeResources()
		return nil, fmt.Errorf("init backend proxy: %w", err)
	}

	a.rateLimiter = middleware.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst, logger)

	cors := middleware.DefaultCORSConfig()
	cors.AllowedOrigins = cfg.CORSAllowedOrigins
	cors.AllowCredentials = true

	router := handler.NewRouter(handler.RouterConfig{
		CORS:                cors,
		RequestTimeout:      cfg.RequestTimeout,
		CatalogMaxAge:       cfg.CatalogMaxAge,
		MetricsAllowedCIDRs: cfg.MetricsAllowedCIDRs,
		PprofAllowedCIDRs:   cfg.PprofAllowedCIDRs,
	}, handler.Handlers{
		Storefront: handler.NewStorefrontHandler(a.cache, logger),
		Cart:       handler.NewCartHandler(a.registry, logger),
		Auth:       handler.NewAuthHandler(service.NewAuthService(client, logger), logger),
		Admin:      handler.NewAdminHandler(service.NewAdminService(client, a.cache, logger), logger),
		Proxy:      sp,
		Sessions: handler.NewSessions(a.registry, handler.SessionConfig{
			CookieName: cfg.SessionCookie,
			MaxAge:     cfg.SessionMaxAge,
			Secure:     cfg.SecureCookies,
		}),
		Health:      healthHandler,
		RateLimiter: a.rateLimiter,
	}, logger)

	a.httpServer = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           router,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      cfg.RequestTimeout + 5*time.Second,
		IdleTimeout:       60 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
	}

	return a, nil
}

func (a *App) openStorage(ctx context.Context, healthHandler *health.Handler) error {
	switch a.cfg.StorageDriver {
	case config.StorageLevelDB:
		store, err := leveldb.Open(a.cfg.LevelDBPath)
		if err != nil {
			return err
		}
		a.store = store
		healthHandler.Register("leveldb", store.Ping)
		a.logger.Info("opened LevelDB storage", slog.String("path", a.cfg.LevelDBPath))

	case config.StorageRedis:
		redisCfg := database.DefaultRedisConfig()
		redisCfg.Addr = a.cfg.RedisAddr
		redisCfg.Password = a.cfg.RedisPass
		redisCfg.DB = a.cfg.RedisDB

		rdb, err := database.NewRedisClient(ctx, redisCfg)
		if err != nil {
			return fmt.Errorf("connect to redis: %w", err)
		}
		store, err := redisstore.New(ctx, rdb, a.logger)
		if err != nil {
			_ = rdb.Close()
			return fmt.Errorf("init redis storage: %w", err)
		}
		a.rdb = rdb
		a.store = store
		healthHandler.Register("redis", database.RedisChecker(rdb))
		a.logger.Info("connected to Redis",
			slog.String("addr", a.cfg.RedisAddr),
			slog.Int("db", a.cfg.RedisDB),
		)

	default:
		a.store = memory.New()
		a.logger.Info("using in-memory storage")
	}
	return nil
}

func proxyTransport(cfg *config.Config) http.RoundTripper {
	t := http.DefaultTransport.(*http.Transport).Clone()
	t.ResponseHeaderTimeout = cfg.BackendTimeout
	t.MaxConnsPerHost = cfg.BackendMaxConns
	t.MaxIdleConnsPerHost = cfg.BackendMaxConns
	return t
}

// backendChecker dials the backend host.
func backendChecker(rawURL string) health.Checker {
	return func(ctx context.Context) error {
		u, err := url.Parse(rawURL)
		if err != nil {
			return fmt.Errorf("parse backend URL: %w", err)
		}
		host := u.Host
		if u.Port() == "" {
			port := "80"
			if u.Scheme == "https" {
				port = "443"
			}
			host = net.JoinHostPort(u.Hostname(), port)
		}
		d := net.Dialer{Timeout: 2 * time.Second}
		conn, err := d.DialContext(ctx, "tcp", host)
		if err != nil {
			return fmt.Errorf("backend unreachable: %w", err)
		}
		_ = conn.Close()
		return nil
	}
}

// Run starts the HTTP server and the session sweeper, and blocks until the
// context is canceled.
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 1)

	sweepCtx, stopSweep := context.WithCancel(ctx)
	defer stopSweep()
	go a.registry.Run(sweepCtx, a.cfg.SessionSweep)

	go func() {
		a.logger.Info("starting HTTP server",
			slog.String("addr", a.httpServer.Addr),
		)
		if err := a.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		a.logger.Info("shutdown signal received")
	case err := <-errCh:
		stopSweep()
		_ = a.Shutdown()
		return err
	}

	return a.Shutdown()
}

// Shutdown gracefully stops all components:
// 1. HTTP server (drain in-flight requests)
// 2. Sessions and carts, then queued cart events
// 3. Storage and Kafka
// 4. Tracer (flush pending spans)
func (a *App) Shutdown() error {
	a.logger.Info("shutting down application...")

	var errs []error

	httpCtx, httpCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer httpCancel()
	if err := a.httpServer.Shutdown(httpCtx); err != nil {
		a.logger.Error("http server shutdown error", slog.String("error", err.Error()))
		errs = append(errs, err)
	}

	errs = append(errs, a.closeResources()...)

	if a.tracerShutdown != nil {
		tracerCtx, tracerCancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer tracerCancel()
		if err := a.tracerShutdown(tracerCtx); err != nil {
			a.logger.Error("tracer shutdown error", slog.String("error", err.Error()))
			errs = append(errs, err)
		}
	}

	a.logger.Info("application shutdown complete")
	return errors.Join(errs...)
}

func (a *App) closeResources() []error {
	var errs []error

	if a.rateLimiter != nil {
		a.rateLimiter.Close()
	}
	if a.registry != nil {
		a.registry.Close()
	}
	if a.cache != nil {
		a.cache.Close()
	}
	if a.cartEvents != nil {
		a.cartEvents.Close()
	}
	if a.producer != nil {
		if err := a.producer.Close(); err != nil {
			a.logger.Error("kafka producer close error", slog.String("error", err.Error()))
			errs = append(errs, err)
		}
	}
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.logger.Error("storage close error", slog.String("error", err.Error()))
			errs = append(errs, err)
		}
	}
	if a.rdb != nil {
		if err := a.rdb.Close(); err != nil {
			a.logger.Error("redis close error", slog.String("error", err.Error()))
			errs = append(errs, err)
		}
	}
	return errs
}
