package sweeper

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/zfskit/workspaces/pkg/engine"
	"github.com/zfskit/workspaces/pkg/log"
	"github.com/zfskit/workspaces/pkg/storage"
)

// Sweeper walks every record and finalizes destruction of workspaces past
// their deletion timestamp. It runs as the administrative identity and
// relies on the same per-key locks as user mutations, so it is safe to
// run concurrently with them.
type Sweeper struct {
	engine *engine.Engine
	store  storage.Store
	logger zerolog.Logger
}

// New creates a sweeper over the given engine and store.
func New(eng *engine.Engine, store storage.Store) *Sweeper {
	return &Sweeper{
		engine: eng,
		store:  store,
		logger: log.WithComponent("sweeper"),
	}
}

// SkippedRecord names a record one sweep could not process and why. It is
// retried on the next sweep.
type SkippedRecord struct {
	Key    string
	Reason string
}

// Report summarizes one sweep.
type Report struct {
	Destroyed        int
	Reconciled       int
	ReadOnlyEnforced int
	Skipped          []SkippedRecord
}

// Sweep processes all records independently: a failure on one record is
// recorded and never aborts the rest. Only a store-level scan failure is
// fatal.
func (s *Sweeper) Sweep(ctx context.Context, now time.Time) (*Report, error) {
	records, err := s.store.Scan(ctx)
	if err != nil {
		return nil, err
	}

	report := &Report{}
	for _, ws := range records {
		outcome, err := s.engine.SweepOne(ctx, ws.Pool, ws.Name, now)
		if err != nil {
			s.logger.Warn().Err(err).Str("workspace", ws.Key()).Msg("sweep skipped record")
			report.Skipped = append(report.Skipped, SkippedRecord{Key: ws.Key(), Reason: err.Error()})
			continue
		}
		switch outcome {
		case engine.SweepDestroyed:
			report.Destroyed++
		case engine.SweepReconciled:
			report.Reconciled++
		case engine.SweepReadOnlyEnforced:
			report.ReadOnlyEnforced++
		case engine.SweepLocked:
			report.Skipped = append(report.Skipped, SkippedRecord{
				Key:    ws.Key(),
				Reason: "locked by a concurrent invocation",
			})
		}
	}

	s.logger.Info().
		Int("destroyed", report.Destroyed).
		Int("reconciled", report.Reconciled).
		Int("readonly_enforced", report.ReadOnlyEnforced).
		Int("skipped", len(report.Skipped)).
		Msg("sweep complete")
	return report, nil
}
