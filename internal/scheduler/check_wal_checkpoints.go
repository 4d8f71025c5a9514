package scheduler

import (
	"github.com/aristath/fundval/internal/database"
	"github.com/rs/zerolog"
)

// walFrameWarnThreshold is the WAL size, in frames, above which a warning is logged.
const walFrameWarnThreshold = 1000

// CheckWALCheckpointsJob monitors WAL checkpoint status
type CheckWALCheckpointsJob struct {
	log       zerolog.Logger
	databases map[string]*database.DB
}

// NewCheckWALCheckpointsJob creates a new CheckWALCheckpointsJob over the named databases.
func NewCheckWALCheckpointsJob(databases map[string]*database.DB, log zerolog.Logger) *CheckWALCheckpointsJob {
	return &CheckWALCheckpointsJob{
		log:       log.With().Str("job", "check_wal_checkpoints").Logger(),
		databases: databases,
	}
}

// Name returns the job name
func (j *CheckWALCheckpointsJob) Name() string {
	return "check_wal_checkpoints"
}

// Run executes the check WAL checkpoints job
func (j *CheckWALCheckpointsJob) Run() error {
	checked := 0
	for name, db := range j.databases {
		if db == nil {
			continue
		}

		// PRAGMA wal_checkpoint returns: busy, log, checkpointed
		var busy, frames, checkpointed int
		err := db.Conn().QueryRow("PRAGMA wal_checkpoint(PASSIVE)").Scan(&busy, &frames, &checkpointed)
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
