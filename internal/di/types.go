/**
 * Package di provides dependency injection type definitions.
 *
 * This package defines the Container type which holds all application
 * dependencies. The Container is the single source of truth for all
 * service instances and is passed to the server and scheduler wiring.
 */
package di

import (
	"github.com/aristath/advisor/internal/database"
	"github.com/aristath/advisor/internal/modules/advice"
	"github.com/aristath/advisor/internal/modules/normalization"
	"github.com/aristath/advisor/internal/modules/optimization"
	"github.com/aristath/advisor/internal/modules/performance"
	"github.com/aristath/advisor/internal/modules/profiling"
	"github.com/aristath/advisor/internal/modules/statistics"
	"github.com/aristath/advisor/internal/modules/universe"
)

/**
 * Container holds all dependencies for the application.
 *
 * Architecture:
 * - Databases: universe (registry), cache (computed statistics), both
 *   SQLite with profile-specific PRAGMAs; plus the history store for
 *   raw time series.
 * - Repositories: data access layer.
 * - Services: the advisory pipeline stages and the facade over them.
 *
 * All dependencies are injected via constructor injection.
 */
type Container struct {
	// Databases
	UniverseDB   *database.DB           // Asset registry
	CacheDB      *database.DB           // Computed statistics (rebuildable)
	HistoryStore *universe.HistoryStore // Raw price, FX and rate series

	// Repositories
	AssetRepository *universe.AssetRepository
	CacheRepository *statistics.CacheRepository

	// Services
	UniverseService *universe.Service
	Normalizer      *normalization.Normalizer
	StatsEngine     *statistics.Engine
	Profiler        *profiling.Profiler
	Optimizer       *optimization.Service
	Reconstructor   *performance.Reconstructor
	Analyzer        *performance.Analyzer
	AdviceService   *advice.Service
}

// Close releases every database handle. Safe to call on a partially
// wired container.
func (c *Container) Close() {
	if c.HistoryStore != nil {
		_ = c.HistoryStore.Close()
	}
	if c.CacheDB != nil {
		_ = c.CacheDB.Close()
	}
	if c.UniverseDB != nil {
		_ = c.UniverseDB.Close()
	}
}
