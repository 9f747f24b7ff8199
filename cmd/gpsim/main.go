// gpsim is a simulated geoprocessing analysis service. It speaks the same
// HTTP protocol as a hosted analysis endpoint so the geotask CLI and tests
// can run against it without a real GIS backend.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"geotask/internal/api"
	"geotask/internal/config"
	"geotask/internal/health"
	"geotask/internal/observability"
	"geotask/internal/sim"
)

func main() {
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, nil)))

	if err := run(); err != nil {
		slog.Error("Service failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	ctx := context.Background()

	// Load environment variables
	if err := godotenv.Load(); err != nil {
		slog.Debug("No .env file found, using environment variables")
	}
	cfg := config.LoadSimConfig()

	// Setup metrics
	metrics, metricsHandler, err := observability.NewMetrics(ctx)
	if err != nil {
		return err
	}

	// Create the analysis engine
	engine := sim.NewEngine(sim.Config{
		QueueFor:      cfg.QueueFor,
		PauseFor:      cfg.PauseFor,
		ExecFor:       cfg.ExecFor,
		CancelLag:     cfg.CancelLag,
		Retention:     cfg.Retention,
		SweepInterval: cfg.SweepInterval,
		LayerURLBase:  cfg.LayerURLBase,
	})
	defer engine.Close()

	// Create health checker
	healthChecker := health.NewChecker(engine)

	// Create API router
	router := api.NewRouter(api.RouterConfig{
		Engine:        engine,
		Metrics:       metrics,
		HealthChecker: healthChecker,
		APIKey:        cfg.APIKey,
	})

	if cfg.APIKey != "" {
		slog.Info("API authentication enabled")
	} else {
		slog.Warn("API authentication disabled - no API_KEY configured")
	}

	// Create API server
	apiServer := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Create metrics server
	metricsMux := http.NewServeMux()
	metricsMux.Handle("GET /metrics", metricsHandler)
	metricsServer := &http.Server{
		Addr:         ":" + cfg.MetricsPort,
		Handler:      metricsMux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	// shutdown closes both servers gracefully
	shutdown := func(timeout time.Duration) {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()

		if err := apiServer.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("API server shutdown error", "error", err)
		}
		if err := metricsServer.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Metrics server shutdown error", "error", err)
		}
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		slog.Info("Starting API server", "port", cfg.Port)
		if err := apiServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("api server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		slog.Info("Starting metrics server", "port", cfg.MetricsPort)
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("metrics server: %w", err)
		}
		return nil
	})

	// Shutdown sequencing. A signal drains traffic in phases; a server error
	// cancels gctx and tears the other listener down immediately.
	g.Go(func() error {
		select {
		case sig := <-quit:
			slog.Info("Received shutdown signal", "signal", sig)
		case <-gctx.Done():
			shutdown(5 * time.Second)
			return nil
		}

		// Phase 1: Mark service as unhealthy for load balancer draining
		healthChecker.SetShuttingDown()

		// Wait for load balancers to stop sending traffic
		if cfg.ShutdownDrainWait > 0 {
			slog.Info("Waiting for traffic to drain", "duration", cfg.ShutdownDrainWait)
			time.Sleep(cfg.ShutdownDrainWait)
		}

		// Phase 2: Graceful shutdown - stop accepting new connections, finish in-flight requests
		slog.Info("Starting graceful shutdown")
		shutdown(25 * time.Second)
		return nil
	})

	err = g.Wait()

	// Phase 3: Stop the engine's retention sweeper and report final counts
	engine.Close()
	stats := engine.Stats()
	slog.Info("Engine stats",
		"active", stats.Active,
		"finished", stats.Finished,
	)

	if err != nil {
		return err
	}
	slog.Info("Shutdown complete")
	return nil
}
