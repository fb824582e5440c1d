// Package server assembles the HTTP API: routes, middleware chain and the
// WebSocket endpoint.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/mwhitfield/auctionhouse/internal/domain"
	"github.com/mwhitfield/auctionhouse/internal/server/handler"
	"github.com/mwhitfield/auctionhouse/internal/server/middleware"
	"github.com/mwhitfield/auctionhouse/internal/server/ws"
)

// Config holds the HTTP server configuration.
type Config struct {
	Port        int
	CORSOrigins []string
	APIKey      string // if empty, authentication is disabled

	// Per-client request limiting. Disabled when Limiter is nil or
	// RateLimit is zero.
	Limiter    domain.RateLimiter
	RateLimit  int
	RateWindow time.Duration
}

// Handlers aggregates all HTTP handlers that the server needs to register.
type Handlers struct {
	Health        *handler.HealthHandler
	Auctions      *handler.AuctionHandler
	Bids          *handler.BidHandler
	Disputes      *handler.DisputeHandler
	Notifications *handler.NotificationHandler
	Metrics       http.Handler
}

// Server is the HTTP + WebSocket API server for the auction service.
type Server struct {
	httpServer *http.Server
	mux        *http.ServeMux
	logger     *slog.Logger
}

// NewServer creates a new Server with all routes registered on the ServeMux.
// It wires up middleware (logging, CORS, auth) and attaches the WebSocket hub.
func NewServer(cfg Config, handlers Handlers, wsHub *ws.Hub, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	// Health check (no auth required).
	mux.HandleFunc("GET /api/health", handlers.Health.HealthCheck)

	// Auction endpoints.
	mux.HandleFunc("POST /api/auctions", handlers.Auctions.CreateAuction)
	mux.HandleFunc("GET /api/auctions", handlers.Auctions.ListAuctions)
	mux.HandleFunc("GET /api/auctions/active", handlers.Auctions.ListActive)
	mux.HandleFunc("GET /api/auctions/past", handlers.Auctions.ListPast)
	mux.HandleFunc("GET /api/auctions/{id}", handlers.Auctions.GetAuction)
	mux.HandleFunc("POST /api/auctions/{id}/reconcile", handlers.Auctions.ReconcileAuction)
	mux.HandleFunc("POST /api/auctions/{id}/image", handlers.Auctions.UploadImage)

	// Bid endpoints.
	mux.HandleFunc("POST /api/bids", handlers.Bids.PlaceBid)
	mux.HandleFunc("GET /api/auctions/{id}/bids", handlers.Bids.ListBids)
	mux.HandleFunc("GET /api/auctions/{id}/highest-bid", handlers.Bids.HighestBid)

	// Administrative dispute endpoint.
	mux.HandleFunc("POST /api/admin/auctions/{id}/dispute", handlers.Disputes.ResolveDispute)

	// Notification endpoints.
	mux.HandleFunc("GET /api/notifications", handlers.Notifications.ListNotifications)
	mux.HandleFunc("PUT /api/notifications/{id}/read", handlers.Notifications.MarkRead)

	// Prometheus metrics.
	if handlers.Metrics != nil {
		mux.Handle("GET /metrics", handlers.Metrics)
	}

	// WebSocket endpoint.
	if wsHub != nil {
		mux.HandleFunc("GET /ws", wsHub.HandleWS)
	}

	// Build the middleware chain.
	var h http.Handler = mux
	h = middleware.Auth(cfg.APIKey)(h)
	if cfg.Limiter != nil && cfg.RateLimit > 0 {
		h = middleware.RateLimit(cfg.Limiter, cfg.RateLimit, cfg.RateWindow)(h)
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
