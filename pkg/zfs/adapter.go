package zfs

import (
	"context"
)

// Adapter defines the volume operations the lifecycle engine depends on.
// All operations are idempotent where the engine relies on it: setting a
// read-only flag that already matches succeeds, and destroying an absent
// dataset reports types.ErrNotFound for the caller to treat as already
// reconciled.
type Adapter interface {
	// Create creates the dataset. Fails with types.ErrAlreadyExists or
	// types.ErrPoolUnavailable.
	Create(ctx context.Context, dataset string) error

	// Destroy destroys the dataset. Fails with types.ErrNotFound or
	// types.ErrBusy.
	Destroy(ctx context.Context, dataset string) error

	// Rename renames the dataset, carrying its mountpoint with it.
	Rename(ctx context.Context, oldDataset, newDataset string) error

	// SetReadOnly toggles the dataset's readonly property.
	SetReadOnly(ctx context.Context, dataset string, readonly bool) error

	// ReadOnly reports the dataset's current readonly property.
	ReadOnly(ctx context.Context, dataset string) (bool, error)

	// Exists reports whether the dataset is present.
	Exists(ctx context.Context, dataset string) (bool, error)

	// Mountpoint returns where the dataset is mounted.
	Mountpoint(ctx context.Context, dataset string) (string, error)

	// UsedSpace returns the bytes referenced by the dataset.
	UsedSpace(ctx context.Context, dataset string) (uint64, error)

	// PoolSpace returns the used and available bytes of a pool's root
	// dataset.
	PoolSpace(ctx context.Context, root string) (used, free uint64, err error)
}

// DatasetFor derives the dataset path for a workspace deterministically
// from the pool root and the workspace name. The adapter guarantees the
// dataset mounts where its mountpoint property says, so this derivation
// is the single source for record/volume binding.
func DatasetFor(root, name string) string {
	return root + "/" + name
}
