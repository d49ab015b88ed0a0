package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/utafrali/storefront/internal/domain"
	"github.com/utafrali/storefront/internal/proxy"
	"github.com/utafrali/storefront/pkg/health"
	"github.com/utafrali/storefront/pkg/middleware"
)

// serviceName labels metrics and traces.
const serviceName = "storefront"

// RouterConfig holds the HTTP-level settings of the router.
type RouterConfig struct {
	CORS                middleware.CORSConfig
	RequestTimeout      time.Duration
	CatalogMaxAge       int
	MetricsAllowedCIDRs []string
	PprofAllowedCIDRs   []string
}

// Handlers are the endpoint groups the router mounts.
type Handlers struct {
	Storefront  *StorefrontHandler
	Cart        *CartHandler
	Auth        *AuthHandler
	Admin       *AdminHandler
	Proxy       *proxy.ServiceProxy
	Sessions    *Sessions
	Health      *health.Handler
	RateLimiter *middleware.RateLimiter
}

// NewRouter creates a chi router with global middleware, health endpoints,
// the storefront API and the /api backend proxy.
func NewRouter(cfg RouterConfig, h Handlers, logger *slog.Logger) http.Handler {
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 30 * time.Second
	}

	r := chi.NewRouter()

	// Global middleware stack (applied in order).
	r.Use(middleware.CORS(cfg.CORS))
	if h.RateLimiter != nil {
		r.Use(h.RateLimiter.Middleware)
	}
	r.Use(middleware.Recovery(logger))
	r.Use(chimw.Compress(5))
	r.Use(chimw.Timeout(cfg.RequestTimeout))
	r.Use(middleware.RequestLogging(logger))
	r.Use(middleware.PrometheusMetrics(serviceName))
	r.Use(middleware.Tracing(serviceName))

	// Health check endpoints
	r.Get("/health/live", h.Health.LivenessHandler())
	r.Get("/health/ready", h.Health.ReadinessHandler())

	// Metrics endpoint with IP allowlist protection.
	r.With(middleware.IPAllowlist(cfg.MetricsAllowedCIDRs, logger)).
		Get("/metrics", promhttp.Handler().ServeHTTP)

	// Pprof debug endpoints with IP allowlist.
	middleware.RegisterPprof(r, cfg.PprofAllowedCIDRs, logger)

	// Catalog reads only look at an existing session for its locale and
	// never set a cookie.
	r.Route("/storefront", func(r chi.Router) {
		r.Use(h.Sessions.Lookup)
		r.Use(middleware.RequestLogger(logger))
		r.Use(middleware.CacheControl(cfg.CatalogMaxAge, explicitLang))

		r.Get("/products", h.Storefront.ListProducts)
		r.Get("/products/{id}", h.Storefront.GetProduct)
		r.Get("/categories", h.Storefront.ListCategories)
		r.Get("/search", h.Storefront.Search)
	})

	// Everything below runs inside a browser session.
	r.Group(func(r chi.Router) {
		r.Use(h.Sessions.Middleware)
		r.Use(middleware.Auth(h.Sessions.Identity))
		r.Use(middleware.RequestLogger(logger))

		r.Route("/cart", func(r chi.Router) {
			r.Use(middleware.NoStore)
			r.Use(ContentTypeJSON)

			r.Get("/", h.Cart.GetCart)
			r.Delete("/", h.Cart.ClearCart)

			r.Post("/items", h.Cart.AddItem)
			r.Delete("/items/{id}", h.Cart.RemoveItem)
			r.Put("/items/{id}/quantity", h.Cart.UpdateQuantity)
			r.Post("/items/{id}/increment", h.Cart.IncrementQuantity)
			r.Post("/items/{id}/decrement", h.Cart.DecrementQuantity)
		})

		r.Route("/auth", func(r chi.Router) {
			r.Use(middleware.NoStore)
			r.Use(ContentTypeJSON)

			r.Post("/login", h.Auth.Login)
			r.Post("/register", h.Auth.Register)
			r.Post("/logout", h.Auth.Logout)
			r.Get("/me", h.Auth.Me)
		})

		r.Route("/session", func(r chi.Router) {
			r.Use(middleware.NoStore)
			r.Get("/locale", h.Auth.GetLocale)
			r.With(ContentTypeJSON).Put("/locale", h.Auth.SetLocale)
		})

		r.Route("/admin", func(r chi.Router) {
			r.Use(middleware.NoStore)
			r.With(ContentTypeJSON).Post("/login", h.Auth.AdminLogin)

			r.Group(func(r chi.Router) {
				r.Use(middleware.RequireRole(domain.RoleAdmin))

				r.Post("/upload", h.Admin.UploadImage)
				r.Get("/users", h.Admin.ListUsers)

				r.Group(func(r chi.Router) {
					r.Use(ContentTypeJSON)
					r.Post("/products", h.Admin.CreateProduct)
					r.Put("/products/{id}", h.Admin.UpdateProduct)
					r.Delete("/products/{id}", h.Admin.DeleteProduct)

					r.Post("/categories", h.Admin.CreateCategory)
					r.Put("/categories/{id}", h.Admin.UpdateCategory)
					r.Delete("/categories/{id}", h.Admin.DeleteCategory)
				})
			})
		})

		// Backend passthrough for clients that talk to the remote API directly.
		r.Mount("/api", h.Proxy.Routes())
	})

	return r
}
