package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"
)

type RouterConfig struct {
	Auth               AuthConfig
	RequestTimeout     time.Duration
	MaxRequestBodySize int64
	// AllowedOrigins may call the API from a browser. Empty disables CORS headers.
	AllowedOrigins     []string
	Logger             *zap.Logger
	// Metrics serves /metrics and observes requests. Optional.
	Metrics interface {
		RequestObserver
		Handler() http.Handler
	}
}

// NewRouter builds the mini-app API wrapped in OpenTelemetry instrumentation.
func NewRouter(shop *ShopHandler, cfg RouterConfig) http.Handler {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.Recoverer)
	if len(cfg.AllowedOrigins) > 0 {
		// the mini-app page is served from another origin; preflights carry no init data
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: cfg.AllowedOrigins,
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodDelete, http.MethodOptions},
			AllowedHeaders: []string{"Authorization", "Content-Type", "X-Request-ID", insecureUserHeader},
			ExposedHeaders: []string{"X-Request-ID"},
			MaxAge:         300,
		}))
	}
	r.Use(LoggerMiddleware(cfg.Logger))
	r.Use(RequestIDMiddleware)
	var obs RequestObserver
	if cfg.Metrics != nil {
		obs = cfg.Metrics
	}
	r.Use(AccessLogMiddleware(obs))
	if cfg.MaxRequestBodySize > 0 {
		r.Use(middleware.RequestSize(cfg.MaxRequestBodySize))
	}
	r.Use(middleware.Compress(5))

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, r, http.StatusOK, map[string]string{"status": "ok"})
	})
	if cfg.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", cfg.Metrics.Handler())
	}

	// API routes
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(TelegramAuthMiddleware(cfg.Auth))
		if cfg.RequestTimeout > 0 {
			r.Use(middleware.Timeout(cfg.RequestTimeout))
		}

		r.Get("/storefront", shop.Storefront)
		r.Get("/catalog", shop.Catalog)
		r.Route("/cart", func(r chi.Router) {
			r.Get("/", shop.GetCart)
			r.Post("/items", shop.AddItem)
			r.Patch("/items/{product_id}", shop.UpdateQuantity)
			r.Delete("/items/{product_id}", shop.RemoveItem)
		})
		r.Post("/checkout", shop.Checkout)
	})

	return otelhttp.NewHandler(r, "shop-api")
}
