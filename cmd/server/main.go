// Package main is the entry point for the fundval valuation service.
// It serves intraday NAV estimates for mutual funds, freezes them into a daily
// archive and reconciles them against published NAV growth.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aristath/fundval/internal/config"
	"github.com/aristath/fundval/internal/di"
	"github.com/aristath/fundval/internal/scheduler"
	"github.com/aristath/fundval/internal/server"
	"github.com/aristath/fundval/pkg/logger"
)

// main orchestrates startup:
// 1. Loads configuration from environment variables (.env supported)
// 2. Initializes logging
// 3. Wires all dependencies via the DI container
// 4. Starts the refresh pool, the scheduler and the HTTP server
// 5. Waits for a shutdown signal and stops everything in reverse order
func main() {
	cfg, err := config.Load()
	if err != nil {
		fallbackLog := logger.New(logger.Config{
			Level:  "info",
			Pretty: true,
		})
		fallbackLog.Fatal().Err(err).Msg("Failed to load configuration")
	}

	log := logger.New(logger.Config{
		Level:  cfg.LogLevel,
		Pretty: cfg.DevMode,
	})

	log.Info().Str("data_dir", cfg.DataDir).Str("timezone", cfg.Timezone).Msg("Starting fundval")

	sched := scheduler.New(cfg.Location, log)

	container, _, err := di.Wire(cfg, sched, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to wire dependencies")
	}
	defer container.Close()

	container.RefreshPool.Start()
	sched.Start()

	srv := server.New(server.Config{
		Log:       log,
		Config:    cfg,
		Container: container,
	})

	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	// Warm the fund-name index on first start; the daily job keeps it fresh.
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
		defer cancel()
		if _, err := container.FundService.SyncFundList(ctx, false); err != nil {
			log.Warn().Err(err).Msg("Initial fund list sync failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	sched.Stop()
	container.RefreshPool.Stop()

	log.Info().Msg("Server stopped")
}
