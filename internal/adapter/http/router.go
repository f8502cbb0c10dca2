package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/iho/txstats/internal/adapter/http/handler"
	"github.com/iho/txstats/internal/adapter/http/middleware"
	"github.com/iho/txstats/internal/infrastructure/auth"
	"github.com/iho/txstats/internal/infrastructure/metrics"
	"github.com/iho/txstats/internal/usecase"
)

// RouterConfig holds dependencies for the router.
type RouterConfig struct {
	TransactionHandler *handler.TransactionHandler
	StatisticsHandler  *handler.StatisticsHandler
	HealthHandler      *handler.HealthHandler
	APIKeyVerifier     *auth.APIKeyVerifier
	IdempotencyStore   usecase.IdempotencyStore
	RateLimiter        *middleware.RateLimiter
	Metrics            *metrics.Metrics
	// Gatherer backs /metrics; the endpoint is omitted when nil.
	Gatherer       prometheus.Gatherer
	Logger         zerolog.Logger
	IdempotencyTTL time.Duration
	// CORSAllowedOrigins enables CORS for the listed origins; "*" allows any.
	CORSAllowedOrigins []string
}

// NewRouter creates a new HTTP router.
func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.NewLoggingMiddleware(cfg.Logger).Wrap)
	r.Use(middleware.Recovery)
	if len(cfg.CORSAllowedOrigins) > 0 {
		r.Use(corsHandler(cfg.CORSAllowedOrigins))
	}
	if cfg.Metrics != nil {
		r.Use(middleware.Metrics(cfg.Metrics))
	}
	if cfg.RateLimiter != nil {
		r.Use(cfg.RateLimiter.Limit)
	}

	// Health endpoints
	r.Get("/health", cfg.HealthHandler.Liveness)
	r.Get("/ready", cfg.HealthHandler.Readiness)

	if cfg.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(cfg.Gatherer, promhttp.HandlerOpts{}))
	}

	// API v1
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.APIKeyAuth(cfg.APIKeyVerifier, cfg.Metrics))

		// Idempotency middleware for mutating requests
		if cfg.IdempotencyStore != nil {
			idempotencyMiddleware := middleware.NewIdempotencyMiddleware(cfg.IdempotencyStore, cfg.IdempotencyTTL)
			r.Use(idempotencyMiddleware.Wrap)
		}

		// Transactions
		r.Route("/transactions", func(r chi.Router) {
			r.Post("/", cfg.TransactionHandler.Create)
			r.Delete("/", cfg.TransactionHandler.DeleteAll)
			r.Get("/{id}", cfg.TransactionHandler.Get)
		})

		// Statistics
		r.Route("/statistics", func(r chi.Router) {
			r.Get("/", cfg.StatisticsHandler.Get)
			r.Post("/recompute", cfg.StatisticsHandler.Recompute)
			r.Delete("/cache", cfg.StatisticsHandler.ClearCache)
		})
	})

	return r
}

// corsHandler answers preflight requests before authentication runs.
func corsHandler(origins []string) func(http.Handler) http.Handler {
	return cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", middleware.IdempotencyKeyHeader},
		ExposedHeaders: []string{"X-Idempotency-Replay", "X-Request-Id"},
		MaxAge:         300,
	})
}
