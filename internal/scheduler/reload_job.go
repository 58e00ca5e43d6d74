package scheduler

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/aristath/advisor/internal/modules/universe"
)

// DefaultReloadSchedule re-imports market data nightly at 02:30, after
// upstream publishers have settled the previous day.
const DefaultReloadSchedule = "0 30 2 * * *"

// MarketDataReloader re-imports the raw data directory.
// *universe.Service satisfies it.
type MarketDataReloader interface {
	Reload(dir string) (*universe.ImportResult, error)
}

// CacheInvalidator drops cached statistics.
// *statistics.CacheRepository satisfies it.
type CacheInvalidator interface {
	InvalidateAll() error
}

// ReloadJob re-imports the market-data directory and invalidates the
// statistics cache so the next advisory run sees the fresh history.
type ReloadJob struct {
	universe MarketDataReloader
	cache    CacheInvalidator
	dataDir  string
	log      zerolog.Logger
}

// NewReloadJob creates the nightly reload job.
func NewReloadJob(universe MarketDataReloader, cache CacheInvalidator, dataDir string, log zerolog.Logger) *ReloadJob {
	return &ReloadJob{
		universe: universe,
		cache:    cache,
		dataDir:  dataDir,
		log:      log.With().Str("job", "market_data_reload").Logger(),
	}
}

// Name returns the job name.
func (j *ReloadJob) Name() string {
	return "market_data_reload"
}

// Run re-imports the data directory, then invalidates the cache. The
// cache is only touched after a successful import: a failed import
// leaves the previous statistics serving.
func (j *ReloadJob) Run() error {
	result, err := j.universe.Reload(j.dataDir)
	if err != nil {
		return fmt.Errorf("reload market data: %w", err)
	}

	if err := j.cache.InvalidateAll(); err != nil {
		return fmt.Errorf("invalidate statistics cache: %w", err)
	}

	j.log.Info().
		Int("files", result.Files).
		Int("rows", result.Rows).
		Int("skipped_rows", result.SkippedRows).
		Msg("Market data reloaded")

	return nil
}
