package scheduler

import (
	"database/sql"
	"fmt"

	"github.com/rs/zerolog"
)

// IntegrityCheckSchedule runs the full integrity check weekly, early
// Sunday morning when nothing else touches the databases.
const IntegrityCheckSchedule = "0 0 4 * * SUN"

// CheckCoreDatabasesJob verifies the integrity of the advisor's SQLite
// databases. Corruption here cannot be auto-recovered; the job fails
// loudly so the operator restores from a backup or re-imports.
type CheckCoreDatabasesJob struct {
	log        zerolog.Logger
	universeDB *sql.DB
	historyDB  *sql.DB
	cacheDB    *sql.DB
}

// NewCheckCoreDatabasesJob creates a new CheckCoreDatabasesJob.
// A nil handle skips that database.
func NewCheckCoreDatabasesJob(universeDB, historyDB, cacheDB *sql.DB, log zerolog.Logger) *CheckCoreDatabasesJob {
	return &CheckCoreDatabasesJob{
		log:        log.With().Str("job", "check_core_databases").Logger(),
		universeDB: universeDB,
		historyDB:  historyDB,
		cacheDB:    cacheDB,
	}
}

// Name returns the job name.
func (j *CheckCoreDatabasesJob) Name() string {
	return "check_core_databases"
}

// Run executes the integrity check on every database.
func (j *CheckCoreDatabasesJob) Run() error {
	databases := map[string]*sql.DB{
		"universe": j.universeDB,
		"history":  j.historyDB,
		"cache":    j.cacheDB,
	}

	for name, db := range databases {
		if db == nil {
			j.log.Warn().Str("database", name).Msg("Database not initialized, skipping")
			continue
		}

		if err := checkDatabaseIntegrity(db); err != nil {
			j.log.Error().
				Err(err).
				Str("database", name).
				Msg("Database integrity check failed")
			return fmt.Errorf("database %s is corrupted: %w", name, err)
		}

		j.log.Debug().Str("database", name).Msg("Database integrity OK")
	}

	j.log.Info().Msg("All databases passed the integrity check")
	return nil
}

// checkDatabaseIntegrity runs SQLite's PRAGMA integrity_check.
func checkDatabaseIntegrity(db *sql.DB) error {
	var result string
	err := db.QueryRow("PRAGMA integrity_check").Scan(&result)
	if err != nil {
		return fmt.Errorf("integrity check failed: %w", err)
	}

	if result != "ok" {
		return fmt.Errorf("integrity check returned: %s", result)
	}

	return nil
}
