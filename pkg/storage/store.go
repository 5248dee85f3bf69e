package storage

import (
	"context"

	"github.com/zfskit/workspaces/pkg/types"
)

// Store defines the interface for durable workspace record storage.
// Implemented by the SQLite-backed store; engine tests may substitute
// their own.
type Store interface {
	// Get returns the record for (pool, name), or an error wrapping
	// types.ErrNotFound.
	Get(ctx context.Context, pool, name string) (*types.Workspace, error)

	// Scan returns all records ordered by pool then name, snapshot
	// consistent at call time.
	Scan(ctx context.Context) ([]*types.Workspace, error)

	// Upsert atomically persists the full record.
	Upsert(ctx context.Context, ws *types.Workspace) error

	// Remove atomically deletes the record. Removing a non-existent key
	// is a no-op success.
	Remove(ctx context.Context, pool, name string) error

	// Rename atomically changes a record's name within its pool. Fails
	// with types.ErrNotFound if the source is absent and
	// types.ErrAlreadyExists if the target is taken.
	Rename(ctx context.Context, pool, oldName, newName string) error

	// Close releases the underlying database.
	Close() error
}
