//
//
package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/orbital-demo/satlink/internal/auth"
)

// Version is reported by /health.
const Version = "1.0.0"

// Options configures a Server.
type Options struct {
	// Guards /events when set
	Auth *auth.Middleware

	Auditor SubscriptionAuditor

	// Attribute registrations to the first X-Forwarded-For hop
	TrustForwardedFor bool

	ReadTimeout time.Duration
	IdleTimeout time.Duration

	Logger *slog.Logger
}

// Server represents the hub HTTP server.
type Server struct {
	hub       HubPort
	opts      Options
	logger    *slog.Logger
	startTime time.Time

	mu         sync.Mutex
	httpServer *http.Server
}

// NewServer creates a server in front of hub.
func NewServer(hub HubPort, opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Server{
		hub:       hub,
		opts:      opts,
		logger:    opts.Logger,
		startTime: time.Now(),
	}
}

// Handler returns the routed handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.RegisterRoutes(mux)
	return mux
}

// Start serves on addr until Stop is called.
func (s *Server) Start(addr string) error {
	// No write timeout: event streams stay open indefinitely.
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: s.opts.ReadTimeout,
		IdleTimeout:       s.opts.IdleTimeout,
	}

	s.mu.Lock()
	s.httpServer = httpServer
	s.mu.Unlock()

	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("failed to start HTTP server: %w", err)
	}
	return nil
}

// Stop gracefully stops the HTTP server.
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	httpServer := s.httpServer
	s.mu.Unlock()

	if httpServer == nil {
		return nil
	}

	if err := httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown HTTP server: %w", err)
	}
	return nil
}
