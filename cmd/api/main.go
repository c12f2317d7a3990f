// Package main is the entry point for the ride dispatch API server.
// Its sole responsibility is wiring dependencies together and starting the server.
// No business logic belongs here.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/pkordes/ride-dispatch/internal/config"
	"github.com/pkordes/ride-dispatch/internal/database"
	"github.com/pkordes/ride-dispatch/internal/handler"
	"github.com/pkordes/ride-dispatch/internal/middleware"
	"github.com/pkordes/ride-dispatch/internal/o11y"
	"github.com/pkordes/ride-dispatch/internal/repo"
	"github.com/pkordes/ride-dispatch/internal/service"
	"github.com/pkordes/ride-dispatch/spec"
)

func main() {
	if err := run(); err != nil {
		slog.Error("fatal", "error", err)
		os.Exit(1)
	}
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// --- Config -----------------------------------------------------------
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	// --- Logger, tracing, metrics -----------------------------------------
	obs, shutdownTracing, err := o11y.Setup(ctx, o11y.Options{
		LogLevel:     cfg.LogLevel,
		LogOutput:    os.Stdout,
		OTLPEndpoint: cfg.OTLPEndpoint,
	})
	if err != nil {
		return err
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(flushCtx); err != nil {
			slog.Error("tracer shutdown", "error", err)
		}
	}()
	slog.SetDefault(obs.Logger)

	httpMetrics, err := middleware.NewMetrics(obs.Registry)
	if err != nil {
		return err
	}
	if err := handler.RegisterMetrics(obs.Registry); err != nil {
		return err
	}

	// --- Database ---------------------------------------------------------
	pool, err := database.Open(ctx, cfg.DatabaseURL, cfg.DBStatementTimeout)
	if err != nil {
		return err
	}
	defer pool.Close()
	slog.Info("database connection established", "statement_timeout", cfg.DBStatementTimeout.String())

	rides := service.NewRideService(repo.NewRideRepo(pool), repo.NewUserRepo(pool))
	server := handler.NewServer(rides, time.Now)

	// --- Router -----------------------------------------------------------
	// Middleware is applied in order: RequestID → RealIP → Tracing → Metrics →
	// SlogLogger → Recoverer → CORS → MaxBodySize.
	// Recoverer sits inside the observers so a panic is still logged,
	// counted and traced as a 500.
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Tracing)
	r.Use(httpMetrics.Handler)
	r.Use(middleware.NewSlogLogger(obs.Logger))
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.NewCORSHandler(cfg.CORSOrigins))
	r.Use(middleware.NewMaxBodySizeHandler(cfg.MaxBodyBytes))

	server.Routes(r, middleware.NewAdminGate(cfg.AdminJWTSecret))
	r.Handle("/metrics", promhttp.HandlerFor(obs.Registry, promhttp.HandlerOpts{}))
	r.Get("/openapi.yaml", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/yaml")
		_, _ = w.Write(spec.OpenAPI)
	})
	if cfg.AdminJWTSecret == "" {
		slog.Warn("ADMIN_JWT_SECRET not set; /rides is not gated")
	}

	// --- HTTP Server ------------------------------------------------------
	// Explicit timeouts prevent slowloris and resource exhaustion attacks.
	// WriteTimeout leaves room for the statement timeout plus encoding.
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: cfg.DBStatementTimeout + 10*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("server starting", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	// Graceful shutdown: wait for a signal or a listener failure, then give
	// in-flight requests up to 15 seconds to complete.
	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	slog.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	slog.Info("server stopped")
	return nil
}
