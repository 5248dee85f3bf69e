/*
Package engine implements the workspace lifecycle engine.

A workspace moves through three states, derived purely from its stored
timestamps compared to the current time:

	Active            now < ExpiresAt        volume writable
	Expired           ExpiresAt <= now       volume read-only, record kept
	PendingDeletion   DeletesAt <= now       eligible for destruction

The state is never cached as ground truth; the timestamps are. The engine
orchestrates the record store and the volume adapter around each
transition, and because those two systems are not transactional with each
other, every mutating path is written so an interruption leaves a state
the next operation can repair:

  - Create reserves a provisional record under the key lock, creates the
    volume, then finalizes the record. A provisional leftover is resolved
    deterministically on the next touch: volume present - finish
    finalizing; volume absent - remove the record.
  - Extend and Expire persist the new timestamps first and toggle the
    volume's readonly property second. A lagging property is detected and
    repaired by the next mutation or by the sweep.
  - Destroy removes the volume first and the record second, treating an
    already-absent volume as reconciled.

All mutating operations run under the per-(pool, name) flock from
pkg/storage, which also serializes them against the garbage collector.
Read-only operations (List, Filesystems) take no locks.

SweepOne is the garbage collector's per-record primitive: non-blocking
lock acquisition, a re-read under the lock so a racing extend is never
lost, then destruction, read-only enforcement or reconciliation as the
timestamps dictate.
*/
package engine
