// Package api implements the HTTP management surface: community
// registration, platform linking settings, announcements, polls, audit
// log access, and operational endpoints.
package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/lumio-labs/lumiod/internal/metrics"
)

// Server wraps the HTTP server hosting the management API.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
}

// NewServer builds the router and HTTP server around the handler set.
func NewServer(addr string, h *Handler, logger *slog.Logger) *Server {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Route("/api", func(r chi.Router) {
		r.Post("/servers", h.CreateServer)
		r.Get("/servers", h.ListServers)
		r.Get("/servers/{serverID}", h.GetServer)
		r.Put("/servers/{serverID}/moderation", h.UpdateModeration)
		r.Put("/servers/{serverID}/onboarding", h.UpdateOnboarding)
		r.Post("/servers/{serverID}/announcements", h.Announce)
		r.Post("/servers/{serverID}/polls", h.LaunchPoll)
		r.Get("/servers/{serverID}/logs", h.GetLogs)
		r.Get("/servers/{serverID}/stats", h.GetStats)
	})

	r.Get("/healthz", h.Healthz)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	return &Server{
		httpServer: &http.Server{
			Addr:              addr,
			Handler:           r,
			ReadHeaderTimeout: 10 * time.Second,
		},
		logger: logger.With("component", "api_server"),
	}
}

// Run serves until the context is cancelled, then shuts down
// gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("Management API listening", "addr", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("api server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	s.logger.Info("Shutting down management API...")
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("api server shutdown failed: %w", err)
	}
	return nil
}
