package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/Biliion-Dollar-Company/supermolt-mono-sub005/internal/server/handler"
	"github.com/Biliion-Dollar-Company/supermolt-mono-sub005/internal/server/middleware"
)

// Config holds the HTTP server configuration.
type Config struct {
	Port         int
	CORSOrigins  []string
	APIKey       string // if empty, authentication is disabled
	RateLimitRPS float64
	RateBurst    int
}

// Handlers aggregates all HTTP handlers that the server needs to register.
type Handlers struct {
	Health    *handler.HealthHandler
	Trades    *handler.TradeHandler
	Portfolio *handler.PortfolioHandler
	Prices    *handler.PriceHandler
	Archive   *handler.ArchiveHandler
	// Metrics serves the Prometheus exposition. Nil leaves /metrics unmounted.
	Metrics http.Handler
}

// Server is the headless HTTP API in front of the trading core.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
}

// NewServer creates a new Server with all routes registered on the ServeMux
// and the middleware chain (rate limit, auth, logging, CORS) applied.
func NewServer(cfg Config, handlers Handlers, observer middleware.RequestObserver, logger *slog.Logger) *Server {
	return &Server{
		httpServer: &http.Server{
			Addr:         fmt.Sprintf(":%d", cfg.Port),
			Handler:      NewHandler(cfg, handlers, observer, logger),
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 90 * time.Second, // trades wait on confirmation
			IdleTimeout:  60 * time.Second,
		},
		logger: logger,
	}
}

// NewHandler builds the routed and wrapped handler without binding a port.
func NewHandler(cfg Config, handlers Handlers, observer middleware.RequestObserver, logger *slog.Logger) http.Handler {
	mux := http.NewServeMux()

	// Health check and metrics (no auth required).
	mux.HandleFunc("GET /api/health", handlers.Health.HealthCheck)
	if handlers.Metrics != nil {
		mux.Handle("GET /metrics", handlers.Metrics)
	}

	// Trade endpoints.
	mux.HandleFunc("POST /api/trades", handlers.Trades.PlaceTrade)
	mux.HandleFunc("GET /api/agents/{agentID}/trades", handlers.Trades.ListTrades)

	// Position endpoints.
	mux.HandleFunc("GET /api/agents/{agentID}/portfolio", handlers.Portfolio.GetPortfolio)
	mux.HandleFunc("GET /api/positions", handlers.Portfolio.ListPositions)

	// Price endpoint.
	mux.HandleFunc("GET /api/prices/{mint}", handlers.Prices.GetPrice)

	// Archive trigger.
	mux.HandleFunc("POST /api/archive", handlers.Archive.Archive)

	// Build the middleware chain.
	var h http.Handler = mux
	h = middleware.RateLimit(cfg.RateLimitRPS, cfg.RateBurst)(h)
	h = middleware.Auth(cfg.APIKey, "/api/health", "/metrics")(h)
	h = middleware.Logging(logger, observer)(h)
	h = middleware.CORS(cfg.CORSOrigins)(h)
	return h
}

// Start begins listening for HTTP requests. It blocks until the server
// encounters an error or is shut down.
func (s *Server) Start() error {
	s.logger.Info("server: starting",
		slog.String("addr", s.httpServer.Addr),
	)
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
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
