package scheduler

import (
	"database/sql"

	"github.com/rs/zerolog"
)

// WALCheckSchedule runs the WAL check hourly, offset from the reload.
const WALCheckSchedule = "0 15 * * * *"

// walFrameWarnThreshold is the WAL size, in frames, above which the
// autocheckpoint has evidently fallen behind.
const walFrameWarnThreshold = 1000

// CheckWALCheckpointsJob monitors WAL checkpoint status across the
// advisor databases and flags files whose WAL keeps growing.
type CheckWALCheckpointsJob struct {
	log        zerolog.Logger
	universeDB *sql.DB
	historyDB  *sql.DB
	cacheDB    *sql.DB
}

// NewCheckWALCheckpointsJob creates a new CheckWALCheckpointsJob.
// A nil handle skips that database.
func NewCheckWALCheckpointsJob(universeDB, historyDB, cacheDB *sql.DB, log zerolog.Logger) *CheckWALCheckpointsJob {
	return &CheckWALCheckpointsJob{
		log:        log.With().Str("job", "check_wal_checkpoints").Logger(),
		universeDB: universeDB,
		historyDB:  historyDB,
		cacheDB:    cacheDB,
	}
}

// Name returns the job name.
func (j *CheckWALCheckpointsJob) Name() string {
	return "check_wal_checkpoints"
}

// Run passively checkpoints each database and reports WAL growth.
func (j *CheckWALCheckpointsJob) Run() error {
	databases := map[string]*sql.DB{
		"universe": j.universeDB,
		"history":  j.historyDB,
		"cache":    j.cacheDB,
	}

	checked := 0
	for name, db := range databases {
		if db == nil {
			continue
		}

		// PRAGMA wal_checkpoint returns: busy, log, checkpointed
		var busy, frames, checkpointed int
		err := db.QueryRow("PRAGMA wal_checkpoint(PASSIVE)").Scan(&busy, &frames, &checkpointed)
		if err != nil {
			j.log.Warn().
				Err(err).
				Str("database", name).
				Msg("Failed to check WAL checkpoint")
			continue
		}

		if frames > walFrameWarnThreshold {
			j.log.Warn().
				Str("database", name).
				Int("wal_frames", frames).
				Int("checkpointed", checkpointed).
				Msg("WAL file is large, checkpoint may be needed")
		} else {
			j.log.Debug().
				Str("database", name).
				Int("wal_frames", frames).
				Msg("WAL checkpoint status OK")
		}

		checked++
	}

	j.log.Info().
		Int("checked", checked).
		Msg("WAL checkpoint check completed")

	return nil
}
