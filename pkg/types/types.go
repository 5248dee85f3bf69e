package types

import (
	"time"
)

// Workspace represents one time-bounded storage area backed by a
// copy-on-write dataset. Identity is the (Pool, Name) pair.
type Workspace struct {
	ID         string // immutable, assigned at creation
	Pool       string
	Name       string
	Owner      string
	CreatedAt  time.Time
	ExpiresAt  time.Time
	DeletesAt  time.Time
	Mountpoint string

	// Provisional marks a record reserved in the store before the backing
	// volume has been confirmed. A provisional record is resolved by the
	// next operation touching its key.
	Provisional bool
}

// WorkspaceState is the lifecycle state derived from the record's
// timestamps. It is never persisted as ground truth.
type WorkspaceState string

const (
	StateActive          WorkspaceState = "active"
	StateExpired         WorkspaceState = "expired"
	StatePendingDeletion WorkspaceState = "pending-deletion"
)

// State derives the lifecycle state of the workspace at the given instant.
func (w *Workspace) State(now time.Time) WorkspaceState {
	switch {
	case now.Before(w.ExpiresAt):
		return StateActive
	case now.Before(w.DeletesAt):
		return StateExpired
	default:
		return StatePendingDeletion
	}
}

// Key returns the store key for the workspace, "pool/name".
func (w *Workspace) Key() string {
	return w.Pool + "/" + w.Name
}

// Pool describes a configured backing pool workspaces can be created on.
type Pool struct {
	// Name is the pool's configured name, used in CLI flags and records.
	Name string
	// Root is the dataset acting as the parent for workspace volumes.
	Root string
	// MaxDuration is the longest duration a non-administrative caller may
	// request on create or extend.
	MaxDuration time.Duration
	// Retention is how long an expired workspace is kept read-only before
	// it becomes eligible for destruction.
	Retention time.Duration
	// Disabled pools reject create/extend for non-administrative callers.
	Disabled bool
}

// PoolUsage is a pool descriptor joined with live space figures.
type PoolUsage struct {
	Pool       *Pool
	UsedBytes  uint64
	FreeBytes  uint64
	TotalBytes uint64
}

// WorkspaceInfo is a workspace record joined with its live used space,
// as returned by listing.
type WorkspaceInfo struct {
	Workspace *Workspace
	UsedBytes uint64
}
