// Package server exposes the control API used by the web panel: settings,
// logs (snapshot and live stream), chat channels, notifier status and restart,
// plus health, readiness and metrics. Requests carry correlation IDs and a
// tracing span.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewRouter returns the HTTP handler with all routes.
func NewRouter(ctx context.Context, d Deps) http.Handler {
	h := NewHandlers(ctx, d)
	limiter := newIPRateLimiter(ctx, loadRateLimiterConfig())

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(corsHandler(d.AllowedOrigins))
	r.Use(correlate)

	r.Handle("/metrics", promhttp.Handler())
	r.Get("/healthz", h.HandleHealthz)
	r.Get("/readyz", h.HandleReadyz)

	r.Route("/api", func(r chi.Router) {
		r.Get("/logs", h.HandleLogs)
		r.Get("/logs/stream", h.HandleLogStream)
		r.Get("/config", h.HandleGetConfig)
		r.Get("/channels", h.HandleChannels)
		r.Get("/status", h.HandleStatus)

		r.Group(func(r chi.Router) {
			r.Use(rateLimit(limiter))
			r.Put("/config", h.HandlePutConfig)
			r.Post("/restart", h.HandleRestart)
		})
	})
	return r
}

// Start runs the HTTP server and shuts down gracefully on context cancellation.
func Start(ctx context.Context, addr string, handler http.Handler) error {
	srv := &http.Server{
		Addr:        addr,
		Handler:     handler,
		ReadTimeout: 5 * time.Second,
		// no WriteTimeout: /api/logs/stream is long-lived
		IdleTimeout: 60 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("http server shutdown error", slog.Any("err", err))
		}
	}()

	slog.Info("control API listening", slog.String("addr", addr))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("http server error", slog.Any("err", err))
		return err
	}
	return nil
}
