// Package server exposes the HTTP API surface.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/deqrypt/yieldrouter/internal/domain"
	"github.com/deqrypt/yieldrouter/internal/server/handler"
	"github.com/deqrypt/yieldrouter/internal/server/middleware"
)

// Config holds the HTTP server configuration.
type Config struct {
	Port        int
	CORSOrigins []string
	APIKey      string // if empty, authentication is disabled

	// RateLimit caps requests per client IP per RateWindow. Zero disables
	// rate limiting.
	RateLimit  int
	RateWindow time.Duration
}

// Handlers aggregates all HTTP handlers that the server needs to register.
type Handlers struct {
	Health       *handler.HealthHandler
	Lending      *handler.LendingHandler
	Profiles     *handler.ProfileHandler
	Transactions *handler.TransactionHandler
	Rates        *handler.RateHandler
}

// Server is the headless HTTP API server.
type Server struct {
	httpServer *http.Server
	mux        *http.ServeMux
	logger     *slog.Logger
}

// NewServer creates a Server with all routes registered on the ServeMux and
// the middleware chain (rate limiting, auth, logging, CORS) applied.
// limiter may be nil.
func NewServer(cfg Config, handlers Handlers, limiter domain.RateLimiter, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	// Health check (no auth required).
	mux.HandleFunc("GET /api/health", handlers.Health.HealthCheck)

	// Lending endpoints.
	mux.HandleFunc("POST /api/lending/recommend", handlers.Lending.Recommend)
	mux.HandleFunc("GET /api/lending/project", handlers.Lending.Project)
	mux.HandleFunc("POST /api/lending/deposit", handlers.Lending.Deposit)
	mux.HandleFunc("POST /api/lending/withdraw", handlers.Lending.Withdraw)
	mux.HandleFunc("POST /api/lending/info", handlers.Lending.Info)
	mux.HandleFunc("POST /api/lending/sync", handlers.Lending.Sync)

	// Profile endpoints.
	mux.HandleFunc("POST /api/profiles", handlers.Profiles.Register)
	mux.HandleFunc("GET /api/profiles/{wallet}", handlers.Profiles.Get)
	mux.HandleFunc("POST /api/profiles/{wallet}/verify", handlers.Profiles.Verify)
	mux.HandleFunc("POST /api/profiles/{wallet}/image", handlers.Profiles.UploadImage)

	// Transfer log.
	mux.HandleFunc("GET /api/transactions", handlers.Transactions.List)
	mux.HandleFunc("POST /api/transactions", handlers.Transactions.Record)

	// Fiat conversion.
	mux.HandleFunc("POST /api/rates", handlers.Rates.Convert)

	// Build the middleware chain, innermost first.
	var h http.Handler = mux

	h = middleware.Auth(cfg.APIKey)(h)

	if limiter != nil && cfg.RateLimit > 0 {
		h = middleware.RateLimit(limiter, cfg.RateLimit, cfg.RateWindow)(h)
	}

	h = middleware.Logging(logger)(h)
	h = middleware.CORS(cfg.CORSOrigins)(h)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      h,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return &Server{
		httpServer: srv,
		mux:        mux,
		logger:     logger,
	}
}

// Start begins listening for HTTP requests. It blocks until the server
// encounters an error or is shut down.
func (s *Server) Start() error {
	s.logger.Info("server: starting",
		slog.String("addr", s.httpServer.Addr),
	)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server: listen: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the server, waiting for in-flight requests
// to complete within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("server: shutting down")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server: shutdown: %w", err)
	}
	return nil
}
