// Package server exposes the provisioning wizard over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/liptonj/wpn-provisioner/internal/models"
	"github.com/liptonj/wpn-provisioner/internal/services/provisioner"
	"github.com/liptonj/wpn-provisioner/internal/services/settings"
	"github.com/liptonj/wpn-provisioner/internal/services/share"
	"github.com/liptonj/wpn-provisioner/internal/services/status"
	"github.com/liptonj/wpn-provisioner/internal/services/validator"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

const shutdownTimeout = 30 * time.Second

// Services groups the collaborators behind the wizard endpoints.
type Services struct {
	Status      status.Service
	Provisioner provisioner.Service
	Validator   validator.Service
	Settings    settings.Service
	Share       share.Service
}

// Server serves the wizard API for one SSID.
type Server struct {
	svc      Services
	target   models.NetworkTarget
	defaults models.DesiredConfiguration
	logger   zerolog.Logger
	applying atomic.Bool
}

// New creates a wizard API server.
func New(logger zerolog.Logger, cfg models.AppConfig, svc Services) *Server {
	return &Server{
		svc:      svc,
		target:   cfg.Network,
		defaults: cfg.WPN.Desired(),
		logger:   logger,
	}
}

// Router builds the HTTP handler.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "healthy", "service": "wpn-provisioner"})
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/wpn", func(r chi.Router) {
		r.Get("/status", s.handleStatus)
		r.Post("/apply", s.handleApply)
		r.Post("/validate", s.handleValidate)
		r.Post("/confirm-wpn", s.handleConfirmWPN)
		r.Get("/share.png", s.handleSharePNG)
	})

	return r
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
		// Apply may wait on the remote API for several retried calls.
		WriteTimeout: 5 * time.Minute,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info().Str("listen", addr).Msg("wizard API listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	s.logger.Info().Msg("wizard API shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	return nil
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		s.logger.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Str("request_id", middleware.GetReqID(r.Context())).
			Dur("duration", time.Since(start)).
			Msg("request handled")
	})
}
