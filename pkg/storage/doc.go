/*
Package storage provides SQLite-backed persistence for workspace records.

One database file per host holds every record regardless of pool. Each CLI
invocation is a short-lived process, so the store is built for
cross-process concurrency: the database runs in WAL mode with a busy
timeout (readers never block on the writer, brief writer collisions wait),
and the LockManager supplies flock(2)-based advisory locks that serialize
mutating sequences on a single (pool, name) key for as long as the
sequence needs - including the external volume operations SQLite knows
nothing about.

# Components

Store is the record interface: Get, Scan, Upsert, Remove, Rename, all
atomic at the record level. SQLiteStore implements it; the schema is
created and upgraded through an ordered migration chain tracked in
PRAGMA user_version.

LockManager hands out the per-key locks:

	err := locks.WithLock(pool, name, func() error {
		// exactly one mutating sequence for pool/name runs here,
		// host-wide
		return engineOperation()
	})

Store failures (missing file, corrupt database) wrap
types.ErrStoreUnavailable so callers fail loudly instead of treating an
unreachable store as an empty one.
*/
package storage
