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

	"github.com/iho/goportfolio/internal/adapter/http/handler"
	"github.com/iho/goportfolio/internal/adapter/http/middleware"
	"github.com/iho/goportfolio/internal/infrastructure/metrics"
)

// RouterConfig holds dependencies for the router.
type RouterConfig struct {
	InstrumentHandler     *handler.InstrumentHandler
	PositionHandler       *handler.PositionHandler
	ReconciliationHandler *handler.ReconciliationHandler
	HealthHandler         *handler.HealthHandler

	Logger             zerolog.Logger
	Metrics            *metrics.Metrics
	Gatherer           prometheus.Gatherer
	CORSAllowedOrigins []string
	RequestTimeout     time.Duration

	// Optional
	IdempotencyStore middleware.IdempotencyStore
	RateLimiter      *middleware.RateLimiter
}

// NewRouter creates a new HTTP router.
func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.NewLoggingMiddleware(cfg.Logger).Wrap)
	r.Use(middleware.Recovery(cfg.Logger))
	if cfg.Metrics != nil {
		r.Use(middleware.Metrics(cfg.Metrics))
	}
	if cfg.RateLimiter != nil {
		r.Use(cfg.RateLimiter.Limit)
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: cfg.CORSAllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", middleware.IdempotencyKeyHeader},
		ExposedHeaders: []string{"X-Idempotency-Replay"},
		MaxAge:         300,
	}))

	r.Get("/health", cfg.HealthHandler.Liveness)
	r.Get("/ready", cfg.HealthHandler.Readiness)

	if cfg.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(cfg.Gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/api/v1", func(r chi.Router) {
		if cfg.RequestTimeout > 0 {
			r.Use(chimiddleware.Timeout(cfg.RequestTimeout))
		}

		if cfg.IdempotencyStore != nil {
			r.Use(middleware.NewIdempotencyMiddleware(cfg.IdempotencyStore, cfg.Logger).Wrap)
		}

		r.Route("/instruments", func(r chi.Router) {
			r.Get("/", cfg.InstrumentHandler.List)
			r.Get("/{symbol}", cfg.InstrumentHandler.Get)
			r.Put("/{symbol}", cfg.InstrumentHandler.Upsert)
			r.Put("/{symbol}/price", cfg.InstrumentHandler.SetPrice)
			r.Put("/{symbol}/statement", cfg.InstrumentHandler.SetStatement)
		})

		r.Route("/positions/{symbol}", func(r chi.Router) {
			r.Get("/", cfg.PositionHandler.Get)
			r.Get("/holdings", cfg.PositionHandler.ListHoldings)
			r.Put("/holdings/{account}", cfg.PositionHandler.UpsertHolding)
			r.Delete("/holdings/{account}", cfg.PositionHandler.RemoveHolding)
			r.Post("/transactions", cfg.PositionHandler.RecordBuy)
		})

		r.Get("/portfolio", cfg.PositionHandler.Portfolio)

		r.Route("/reconciliations", func(r chi.Router) {
			r.Post("/", cfg.ReconciliationHandler.Run)
			r.Get("/", cfg.ReconciliationHandler.List)
			r.Get("/{id}", cfg.ReconciliationHandler.Get)
		})
	})

	return r
}
