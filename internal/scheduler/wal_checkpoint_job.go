package scheduler

import (
	"github.com/rs/zerolog"

	"github.com/quantfold/tradewire/internal/database"
)

// WALCheckpointJob periodically truncates the ledger WAL file so it cannot
// grow unbounded between natural checkpoints.
type WALCheckpointJob struct {
	log      zerolog.Logger
	ledgerDB *database.DB
}

// NewWALCheckpointJob creates a new WAL checkpoint job
func NewWALCheckpointJob(ledgerDB *database.DB, log zerolog.Logger) *WALCheckpointJob {
	return &WALCheckpointJob{
		log:      log.With().Str("job", "wal_checkpoint").Logger(),
		ledgerDB: ledgerDB,
	}
}

// Name returns the job name
func (j *WALCheckpointJob) Name() string {
	return "wal_checkpoint"
}

// Run executes the WAL checkpoint job
func (j *WALCheckpointJob) Run() error {
	if err := j.ledgerDB.WALCheckpoint("TRUNCATE"); err != nil {
		return err
	}

	j.log.Debug().Str("database", j.ledgerDB.Name()).Msg("WAL checkpoint completed")
	return nil
}
