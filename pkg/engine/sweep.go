package engine

import (
	"context"
	"errors"
	"time"

	"github.com/zfskit/workspaces/pkg/types"
	"github.com/zfskit/workspaces/pkg/zfs"
)

// SweepOutcome reports what one sweep pass did to a single record.
type SweepOutcome string

const (
	// SweepDestroyed: the workspace was past its deletion timestamp and
	// has been destroyed.
	SweepDestroyed SweepOutcome = "destroyed"
	// SweepReconciled: a record/volume mismatch was repaired.
	SweepReconciled SweepOutcome = "reconciled"
	// SweepReadOnlyEnforced: an expired volume was put in read-only.
	SweepReadOnlyEnforced SweepOutcome = "readonly-enforced"
	// SweepLocked: another invocation holds the key lock; retried on the
	// next sweep.
	SweepLocked SweepOutcome = "locked"
	// SweepNone: nothing to do.
	SweepNone SweepOutcome = "none"
)

// SweepOne processes a single record for the garbage collector. It takes
// the record's key lock non-blocking (a racing user mutation wins and the
// record is retried on the next sweep), re-reads the record under the
// lock so a just-extended workspace is never destroyed, and then applies
// the time-derived state: destruction past the deletion timestamp,
// read-only enforcement after expiry, and opportunistic reconciliation of
// provisional records and lagging readonly flags.
func (e *Engine) SweepOne(ctx context.Context, poolName, name string, now time.Time) (SweepOutcome, error) {
	pool, err := e.pool(poolName)
	if err != nil {
		return SweepNone, err
	}

	outcome := SweepNone
	acquired, err := e.locks.TryWithLock(pool.Name, name, func() error {
		ws, err := e.store.Get(ctx, pool.Name, name)
		if errors.Is(err, types.ErrNotFound) {
			// Destroyed or rolled back by a racing invocation.
			return nil
		}
		if err != nil {
			return err
		}

		if ws.Provisional {
			if _, err := e.reconcileProvisional(ctx, pool, ws); err != nil {
				return err
			}
			outcome = SweepReconciled
			return nil
		}

		dataset := zfs.DatasetFor(pool.Root, ws.Name)
		switch ws.State(now) {
		case types.StatePendingDeletion:
			if err := e.destroyLocked(ctx, pool, ws); err != nil {
				return err
			}
			outcome = SweepDestroyed
		case types.StateExpired:
			readonly, err := e.adapter.ReadOnly(ctx, dataset)
			if err != nil {
				return err
			}
			if !readonly {
				if err := e.adapter.SetReadOnly(ctx, dataset, true); err != nil {
					return err
				}
				outcome = SweepReadOnlyEnforced
			}
		case types.StateActive:
			// Repair a readonly flag left behind by an extend whose
			// property-set failed after the record was persisted.
			readonly, err := e.adapter.ReadOnly(ctx, dataset)
			if err != nil {
				return err
			}
			if readonly {
				if err := e.adapter.SetReadOnly(ctx, dataset, false); err != nil {
					return err
				}
				e.logger.Warn().Str("workspace", ws.Key()).
					Msg("made active workspace writable again")
				outcome = SweepReconciled
			}
		}
		return nil
	})
	if err != nil {
		return outcome, err
	}
	if !acquired {
		return SweepLocked, nil
	}
	return outcome, nil
}
