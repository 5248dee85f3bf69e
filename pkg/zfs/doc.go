/*
Package zfs provides the volume adapter the lifecycle engine drives.

The Adapter interface is the full contract: create, destroy, rename,
readonly toggling, existence and space queries. The CLI implementation
shells out to the zfs binary; nothing above this package knows how
volume operations are issued, which keeps the engine testable against a
fake adapter.

Every invocation is bounded by a timeout so a suspended pool cannot hold
a record lock forever, and zfs stderr is classified into the shared
error taxonomy (types.ErrAlreadyExists, types.ErrNotFound, types.ErrBusy,
types.ErrPoolUnavailable) so the engine can make reconciliation decisions
without parsing strings.

The dataset for a workspace is derived deterministically:

	zfs.DatasetFor(pool.Root, name) // e.g. tank/workspaces/scratch1

and its mountpoint is read back from the dataset after creation rather
than guessed, so the record always matches where the volume actually
mounted.
*/
package zfs
