// Package di provides dependency injection wiring and initialization.
package di

import (
	"fmt"
	"path/filepath"

	"github.com/rs/zerolog"

	"github.com/aristath/advisor/internal/config"
	"github.com/aristath/advisor/internal/database"
	"github.com/aristath/advisor/internal/modules/advice"
	"github.com/aristath/advisor/internal/modules/normalization"
	"github.com/aristath/advisor/internal/modules/optimization"
	"github.com/aristath/advisor/internal/modules/performance"
	"github.com/aristath/advisor/internal/modules/profiling"
	"github.com/aristath/advisor/internal/modules/statistics"
	"github.com/aristath/advisor/internal/modules/universe"
)

// Wire initializes all dependencies and returns a fully configured
// container. Order of operations:
// 1. Open databases and run migrations
// 2. Build repositories and seed the registry on first boot
// 3. Build the pipeline services and the advice facade
func Wire(cfg *config.Config, log zerolog.Logger) (*Container, error) {
	container, err := initializeDatabases(cfg, log)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize databases: %w", err)
	}

	if err := initializeServices(container, cfg, log); err != nil {
		container.Close()
		return nil, fmt.Errorf("failed to initialize services: %w", err)
	}

	return container, nil
}

func initializeDatabases(cfg *config.Config, log zerolog.Logger) (*Container, error) {
	universeDB, err := database.New(database.Config{
		Path:    filepath.Join(cfg.DataDir, "universe.db"),
		Profile: database.ProfileStandard,
		Name:    "universe",
	})
	if err != nil {
		return nil, fmt.Errorf("open universe database: %w", err)
	}
	if err := universeDB.Migrate(); err != nil {
		_ = universeDB.Close()
		return nil, fmt.Errorf("migrate universe database: %w", err)
	}

	cacheDB, err := database.New(database.Config{
		Path:    filepath.Join(cfg.DataDir, "cache.db"),
		Profile: database.ProfileCache,
		Name:    "cache",
	})
	if err != nil {
		_ = universeDB.Close()
		return nil, fmt.Errorf("open cache database: %w", err)
	}
	if err := cacheDB.Migrate(); err != nil {
		_ = cacheDB.Close()
		_ = universeDB.Close()
		return nil, fmt.Errorf("migrate cache database: %w", err)
	}

	historyStore, err := universe.OpenHistoryStore(filepath.Join(cfg.DataDir, "history.db"), log)
	if err != nil {
		_ = cacheDB.Close()
		_ = universeDB.Close()
		return nil, fmt.Errorf("open history store: %w", err)
	}

	return &Container{
		UniverseDB:   universeDB,
		CacheDB:      cacheDB,
		HistoryStore: historyStore,
	}, nil
}

func initializeServices(c *Container, cfg *config.Config, log zerolog.Logger) error {
	c.AssetRepository = universe.NewAssetRepository(c.UniverseDB.Conn(), log)
	if err := universe.SeedDefaults(c.AssetRepository, log); err != nil {
		return fmt.Errorf("seed asset registry: %w", err)
	}

	c.CacheRepository = statistics.NewCacheRepository(c.CacheDB.Conn(), log)

	c.UniverseService = universe.NewService(c.AssetRepository, c.HistoryStore, universe.ServiceConfig{
		BaseCurrency: cfg.BaseCurrency,
	}, log)

	c.Normalizer = normalization.New(c.UniverseService, normalization.Config{
		DailyObsThreshold: float64(cfg.DailyObsThreshold),
		MonthlyObsCeiling: float64(cfg.MonthlyObsCeiling),
		MinOverlapMonths:  cfg.MinOverlapMonths,
	}, log)

	c.StatsEngine = statistics.NewEngine(c.CacheRepository, cfg.BaseCurrency, cfg.StatsCacheTTL, log)
	c.Profiler = profiling.New(log)

	c.Optimizer = optimization.NewService(nil, optimization.Config{
		MinWeight:        cfg.MinWeight,
		MaxConcentration: cfg.MaxConcentration,
		SolverTimeout:    cfg.SolverTimeout,
	}, log)

	c.Reconstructor = performance.NewReconstructor(log)
	c.Analyzer = performance.NewAnalyzer(log)

	c.AdviceService = advice.NewService(
		c.UniverseService,
		c.Normalizer,
		c.StatsEngine,
		c.Profiler,
		c.Optimizer,
		c.Reconstructor,
		c.Analyzer,
		log,
	)

	return nil
}
