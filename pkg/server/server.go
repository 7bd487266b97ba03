// Package server exposes the assistant over HTTP.
//
//	POST /chat   {"user_id": "...", "message": "...", "session_id": "..."}
//	             → {"response": "...", "memory_context": "..."}
//	GET  /health → {"status": "healthy", "version": "..."}
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/oceanbase/vira-go/pkg/core"
	"github.com/oceanbase/vira-go/pkg/resilience"
)

// Assistant is the part of core.Assistant the server needs.
type Assistant interface {
	Chat(ctx context.Context, userID, message string, opts ...core.ChatOption) (*core.ChatResult, error)
	Health(ctx context.Context) core.HealthStatus
}

// Server serves the chat API.
type Server struct {
	assistant Assistant
	cfg       core.ServerConfig
	limiter   *resilience.Limiter
	logger    *zap.Logger
	handler   http.Handler
}

// New creates a server for assistant. A zero RateLimitPerSecond disables
// rate limiting.
func New(assistant Assistant, cfg core.ServerConfig, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Addr == "" {
		cfg.Addr = core.DefaultConfig().Server.Addr
	}
	s := &Server{
		assistant: assistant,
		cfg:       cfg,
		limiter:   resilience.NewLimiter(cfg.RateLimitPerSecond, cfg.RateLimitBurst),
		logger:    logger,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /chat", s.handleChat)
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("OPTIONS /chat", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	s.handler = s.recoverPanics(s.logRequests(securityHeaders(cors(s.rateLimit(mux)))))
	return s
}

// Handler returns the root handler with all middleware applied.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Run listens on the configured address until ctx is cancelled, then shuts
// down gracefully within ShutdownTimeoutSeconds.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		s.logger.Info("http server listening", zap.String("addr", s.cfg.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		timeout := time.Duration(s.cfg.ShutdownTimeoutSeconds) * time.Second
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		s.logger.Info("http server shutting down")
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
