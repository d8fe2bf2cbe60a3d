// Package server provides the HTTP API for browsing bar history, the
// strategy catalogue and backtest runs.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gibsonxiong/vtrader/internal/domain"
	"github.com/gibsonxiong/vtrader/internal/server/handler"
	"github.com/gibsonxiong/vtrader/internal/server/middleware"
)

// Config holds the HTTP server configuration.
type Config struct {
	Port        int
	CORSOrigins []string
	AuthToken   string // if empty, authentication is disabled
	RateLimit   int    // requests per minute per client; 0 disables
}

// Handlers aggregates all HTTP handlers that the server needs to register.
type Handlers struct {
	Health     *handler.HealthHandler
	Bars       *handler.BarHandler
	Strategies *handler.StrategiesHandler
	Backtests  *handler.BacktestHandler
}

// Server is the headless HTTP API server.
type Server struct {
	httpServer *http.Server
	mux        *http.ServeMux
	logger     *slog.Logger
}

// NewServer creates a new Server with all routes registered on the ServeMux.
// It wires up middleware (rate limiting, auth, logging, CORS). limiter may be
// nil to disable rate limiting.
func NewServer(cfg Config, handlers Handlers, limiter domain.RateLimiter, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	// Health check (no auth required on the chain level; auth middleware
	// wraps everything, so a token-protected deployment protects this too).
	mux.HandleFunc("GET /api/health", handlers.Health.HealthCheck)

	// Bar history endpoints.
	mux.HandleFunc("GET /api/bars", handlers.Bars.GetBars)
	mux.HandleFunc("GET /api/bars/count", handlers.Bars.Count)
	mux.HandleFunc("POST /api/bars/download", handlers.Bars.Download)

	// Strategy catalogue endpoints.
	mux.HandleFunc("GET /api/strategies", handlers.Strategies.List)
	mux.HandleFunc("GET /api/strategies/{name}", handlers.Strategies.Get)

	// Backtest run endpoints.
	mux.HandleFunc("POST /api/backtests", handlers.Backtests.Create)
	mux.HandleFunc("GET /api/backtests", handlers.Backtests.List)
	mux.HandleFunc("GET /api/backtests/{id}", handlers.Backtests.Get)
	mux.HandleFunc("GET /api/backtests/{id}/result", handlers.Backtests.Result)
	mux.HandleFunc("POST /api/backtests/{id}/run", handlers.Backtests.Run)
	mux.HandleFunc("DELETE /api/backtests/{id}", handlers.Backtests.Delete)

	// Build the middleware chain.
	var h http.Handler = mux

	if limiter != nil && cfg.RateLimit > 0 {
		h = middleware.RateLimit(limiter, cfg.RateLimit, time.Minute)(h)
	}

	h = middleware.Auth(cfg.AuthToken)(h)
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
