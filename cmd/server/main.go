// Package main is the entry point for the quant engine HTTP server.
// The server exposes portfolio analysis (efficient frontier, Black-Litterman, HRP,
// correlation, risk metrics) and backtesting over HTTP, streams run progress over
// SSE and websockets, and keeps a local cache of daily price histories fresh.
//
// Startup sequence:
//  1. Load configuration from the environment (.env supported)
//  2. Initialize logging
//  3. Wire dependencies via the DI container (databases, price source, services, jobs)
//  4. Start the HTTP server and the job scheduler
//  5. Wait for a shutdown signal and stop gracefully
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aristath/sentinel-quant/internal/config"
	"github.com/aristath/sentinel-quant/internal/di"
	"github.com/aristath/sentinel-quant/internal/server"
	"github.com/aristath/sentinel-quant/pkg/logger"
)

func main() {
	// Load configuration first to get log level
	cfg, err := config.Load()
	if err != nil {
		// Use fallback logger if config fails
		fallbackLog := logger.New(logger.Config{
			Level:  "info",
			Pretty: true,
		})
		fallbackLog.Fatal().Err(err).Msg("Failed to load configuration")
	}

	log := logger.New(logger.Config{
		Level:  cfg.LogLevel,
		Pretty: true,
	})

	log.Info().
		Str("data_dir", cfg.DataDir).
		Str("price_source", cfg.PriceSource).
		Msg("Starting quant engine")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Wire all dependencies using DI container
	// Databases are opened and migrated first, then the price pipeline and the
	// services on top of it, then the scheduled jobs.
	container, jobs, err := di.Wire(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to wire dependencies")
	}

	// Closing the container stops the scheduler and checkpoints both databases
	defer func() {
		if err := container.Close(); err != nil {
			log.Error().Err(err).Msg("Failed to close databases")
		}
	}()

	srv := server.New(server.Config{
		Log:         log,
		Port:        cfg.Port,
		DevMode:     cfg.DevMode,
		PriceSource: cfg.PriceSource,
		Engine:      cfg.Engine,
		Container:   container,
		Jobs:        jobs,
	})

	// Start server in goroutine
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	log.Info().Int("port", cfg.Port).Msg("Server started successfully")

	// Start the scheduler once the server is accepting requests
	container.Scheduler.Start()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")
	cancel()

	// In-flight requests get up to 10 seconds; open streams are cut after that
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server stopped")
}
