// Package server wires the catalog state into an HTTP API and runs it until
// shutdown.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/judev34/parking-montpellier-app/internal/catalog"
	"github.com/judev34/parking-montpellier-app/internal/config"
	"github.com/judev34/parking-montpellier-app/internal/health"
	"github.com/judev34/parking-montpellier-app/internal/middleware"
)

// NewRouter builds the full route table. Split out of Run so tests can mount
// it on httptest.
func NewRouter(logger *slog.Logger, store *catalog.Store) chi.Router {
	if logger == nil {
		logger = slog.Default()
	}
	r := chi.NewRouter()
	r.Use(middleware.Recover())
	r.Use(middleware.Logging(logger))
	r.Use(middleware.CORS())

	r.Get("/healthz", health.Liveness())
	r.Get("/readyz", health.Readiness(store))
	r.Get("/metrics", promhttp.Handler().ServeHTTP)

	r.Route("/api", func(r chi.Router) {
		r.Get("/parkings", instrument("/api/parkings", handleList(store)))
		r.Get("/parkings/{id}", instrument("/api/parkings/{id}", handleDetails(logger, store)))
		r.Get("/parkings/{id}/history", instrument("/api/parkings/{id}/history", handleHistory(store)))
		r.Patch("/filters", instrument("/api/filters", handleFilters(store)))
		r.Put("/position", instrument("/api/position", handlePosition(store)))
	})
	return r
}

// sets up http and starts serving
func Run(ctx context.Context, cfg config.Config, logger *slog.Logger, store *catalog.Store) error {
	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           NewRouter(logger, store),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http listen", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		return nil
	case err := <-errCh:
		return err
	}
}
