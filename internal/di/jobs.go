package di

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"

	"github.com/aristath/advisor/internal/config"
	"github.com/aristath/advisor/internal/scheduler"
)

// RawDataDir returns the directory watched for CSV drops, or "" when
// it does not exist. Market data lands under <DataDir>/raw.
func RawDataDir(cfg *config.Config) string {
	dir := filepath.Join(cfg.DataDir, "raw")
	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		return ""
	}
	return dir
}

// RegisterJobs creates the scheduler and registers the background
// jobs: the nightly market-data reload (skipped when no raw data
// directory exists), the hourly WAL checkpoint check and the weekly
// integrity check.
func RegisterJobs(c *Container, cfg *config.Config, log zerolog.Logger) (*scheduler.Scheduler, error) {
	sched := scheduler.New(log)

	if rawDir := RawDataDir(cfg); rawDir != "" {
		schedule := cfg.ReloadSchedule
		if schedule == "" {
			schedule = scheduler.DefaultReloadSchedule
		}
		reload := scheduler.NewReloadJob(c.UniverseService, c.CacheRepository, rawDir, log)
		if err := sched.AddJob(schedule, reload); err != nil {
			return nil, fmt.Errorf("register reload job: %w", err)
		}
	} else {
		log.Info().Msg("No raw data directory; market data reload job not registered")
	}

	walCheck := scheduler.NewCheckWALCheckpointsJob(c.UniverseDB.Conn(), c.HistoryStore.DB(), c.CacheDB.Conn(), log)
	if err := sched.AddJob(scheduler.WALCheckSchedule, walCheck); err != nil {
		return nil, fmt.Errorf("register WAL check job: %w", err)
	}

	integrity := scheduler.NewCheckCoreDatabasesJob(c.UniverseDB.Conn(), c.HistoryStore.DB(), c.CacheDB.Conn(), log)
	if err := sched.AddJob(scheduler.IntegrityCheckSchedule, integrity); err != nil {
		return nil, fmt.Errorf("register integrity check job: %w", err)
	}

	return sched, nil
}
