// Package main is the entry point for the advisor service: a
// quantitative robo-advisor pipeline that normalizes raw market data,
// computes universe statistics, profiles investors and produces
// optimized portfolio recommendations over HTTP.
//
// The application follows clean architecture principles:
// - Domain layer is pure (no infrastructure dependencies)
// - Dependency injection via DI container
// - Repository pattern for data access
// - Service layer for business logic
// - HTTP handlers for API endpoints
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/aristath/advisor/internal/config"
	"github.com/aristath/advisor/internal/database"
	"github.com/aristath/advisor/internal/di"
	advicehandlers "github.com/aristath/advisor/internal/modules/advice/handlers"
	universehandlers "github.com/aristath/advisor/internal/modules/universe/handlers"
	"github.com/aristath/advisor/internal/server"
	"github.com/aristath/advisor/pkg/logger"
)

// main orchestrates the startup sequence:
// 1. Load configuration from environment variables
// 2. Initialize logging
// 3. Wire all dependencies via the DI container (databases, repositories, services)
// 4. Run the initial market data import if CSVs are present and nothing
//    has ever been imported
// 5. Register and start background jobs (when enabled)
// 6. Start the HTTP server
// 7. Wait for shutdown signal and shut down gracefully
func main() {
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
		Pretty: cfg.LogPretty,
	})

	log.Info().Msg("Starting advisor")

	// Wire all dependencies using DI container
	container, err := di.Wire(cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to wire dependencies")
	}
	defer container.Close()

	// First boot with CSVs already dropped in place: import them now so
	// the API serves data immediately instead of waiting for the nightly
	// job.
	rawDir := di.RawDataDir(cfg)
	if rawDir != "" {
		last, err := container.UniverseService.LastImportedAt()
		if err != nil {
			log.Warn().Err(err).Msg("Failed to check import history")
		} else if last == nil {
			log.Info().Str("dir", rawDir).Msg("No prior import; loading market data")
			result, err := container.UniverseService.Reload(rawDir)
			if err != nil {
				log.Error().Err(err).Msg("Initial market data import failed")
			} else {
				log.Info().
					Int("files", result.Files).
					Int("rows", result.Rows).
					Int("skipped_rows", result.SkippedRows).
					Msg("Initial market data import completed")
			}
		}
	}

	// Background jobs: nightly data reload plus database health checks.
	// The scheduler can be disabled entirely via configuration.
	sched, err := di.RegisterJobs(container, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to register background jobs")
	}
	if cfg.SchedulerEnabled {
		sched.Start()
	} else {
		sched = nil
		log.Info().Msg("Scheduler disabled by configuration")
	}

	// HTTP surface: the advisory pipeline, the asset registry and the
	// system endpoints.
	adviceHandlers := advicehandlers.NewHandler(container.AdviceService, container.Profiler, log)
	assetHandlers := universehandlers.NewHandler(container.UniverseService, container.AdviceService, log)
	systemHandlers := server.NewSystemHandlers(
		log,
		rawDir,
		container.UniverseService,
		container.CacheRepository,
		sched,
		[]*database.DB{container.UniverseDB, container.CacheDB},
		filepath.Join(cfg.DataDir, "history.db"),
	)

	srv := server.New(server.Config{
		Log:            log,
		Port:           cfg.Port,
		DevMode:        cfg.DevMode,
		AdviceHandlers: adviceHandlers,
		AssetHandlers:  assetHandlers,
		SystemHandlers: systemHandlers,
	})

	// Start server in goroutine so shutdown handling below can run.
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	log.Info().Int("port", cfg.Port).Msg("Server started successfully")

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	if sched != nil {
		sched.Stop()
	}

	// The HTTP server gets up to 10 seconds to finish in-flight requests.
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server stopped")
}
