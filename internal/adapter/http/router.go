package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/iho/rideledger/internal/adapter/http/handler"
	"github.com/iho/rideledger/internal/adapter/http/middleware"
	"github.com/iho/rideledger/internal/infrastructure/auth"
	"github.com/iho/rideledger/internal/usecase"
)

// RouterConfig holds dependencies for the router.
type RouterConfig struct {
	AccountHandler *handler.AccountHandler
	WalletHandler  *handler.WalletHandler
	OrderHandler   *handler.OrderHandler
	WatchHandler   *handler.WatchHandler
	LedgerHandler  *handler.LedgerHandler
	HealthHandler  *handler.HealthHandler

	// Authenticator verifies bearer tokens. When nil the caller is taken
	// from the X-Account-ID and X-Account-Role headers.
	Authenticator auth.Authenticator

	IdempotencyStore usecase.IdempotencyStore
	IdempotencyTTL   time.Duration
	RateLimiter      *middleware.RateLimiter
	Logger           zerolog.Logger
	AllowedOrigins   []string
	MetricsHandler   http.Handler
}

// NewRouter creates a new HTTP router.
func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.NewLoggingMiddleware(cfg.Logger).Wrap)
	r.Use(middleware.Recovery)
	r.Use(middleware.Metrics)
	r.Use(cors.Handler(corsOptions(cfg.AllowedOrigins)))
	if cfg.RateLimiter != nil {
		r.Use(cfg.RateLimiter.Limit)
	}

	// Health endpoints
	r.Get("/health", cfg.HealthHandler.Liveness)
	r.Get("/ready", cfg.HealthHandler.Readiness)

	metricsHandler := cfg.MetricsHandler
	if metricsHandler == nil {
		metricsHandler = promhttp.Handler()
	}
	r.Method(http.MethodGet, "/metrics", metricsHandler)

	r.Route("/api/v1", func(r chi.Router) {
		if cfg.Authenticator != nil {
			r.Use(middleware.AuthMiddleware(cfg.Authenticator))
		} else {
			r.Use(middleware.HeaderIdentity)
		}

		// Keys are scoped to the caller, so this must run after authentication.
		if cfg.IdempotencyStore != nil {
			r.Use(middleware.NewIdempotencyMiddleware(cfg.IdempotencyStore, cfg.IdempotencyTTL).Wrap)
		}

		r.Route("/accounts", func(r chi.Router) {
			r.Post("/", cfg.AccountHandler.Create)
			r.Get("/me", cfg.AccountHandler.Get)
			r.Get("/me/balance", cfg.AccountHandler.Balance)
			r.Get("/me/entries", cfg.AccountHandler.Entries)
			r.Get("/me/orders", cfg.AccountHandler.Orders)
			r.Get("/me/analytics", cfg.AccountHandler.Analytics)
		})

		r.Route("/wallet", func(r chi.Router) {
			r.Post("/topup", cfg.WalletHandler.TopUp)
			r.Post("/withdraw", cfg.WalletHandler.Withdraw)
		})

		r.Route("/orders", func(r chi.Router) {
			r.Post("/", cfg.OrderHandler.Place)
			r.Get("/", cfg.OrderHandler.List)
			r.Get("/watch", cfg.WatchHandler.Board)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", cfg.OrderHandler.Get)
				r.Get("/watch", cfg.WatchHandler.Order)
				r.Post("/accept", cfg.OrderHandler.Accept)
				r.Post("/pickup", cfg.OrderHandler.Pickup)
				r.Post("/complete", cfg.OrderHandler.Complete)
				r.Post("/cancel", cfg.OrderHandler.Cancel)
			})
		})

		r.Get("/ledger/reconcile", cfg.LedgerHandler.Reconcile)
	})

	return r
}

func corsOptions(origins []string) cors.Options {
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	return cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{
			"Accept", "Authorization", "Content-Type",
			middleware.IdempotencyKeyHeader, middleware.AccountIDHeader, middleware.AccountRoleHeader,
		},
		ExposedHeaders:   []string{"X-Request-Id", "X-Idempotency-Replay"},
		AllowCredentials: false,
		MaxAge:           86400,
	}
}
