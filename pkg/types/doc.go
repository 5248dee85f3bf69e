/*
Package types defines the core data structures shared by every other
package: workspace records, pool descriptors and the common error
taxonomy.

A Workspace is identified by its (Pool, Name) pair and carries three
timestamps: CreatedAt, ExpiresAt and DeletesAt, ordered
CreatedAt <= ExpiresAt <= DeletesAt. Its lifecycle state is never
stored; it is derived from the timestamps at the moment of inspection:

	Active           now <  ExpiresAt   writable
	Expired          now <  DeletesAt   read-only, recoverable by extend
	PendingDeletion  otherwise          destroyed by the next sweep

The sentinel errors (ErrNotFound, ErrAlreadyExists, ErrBusy,
ErrPoolUnavailable, ErrStoreUnavailable) form the failure vocabulary
of the store and the volume adapter; callers match them with errors.Is.
DeniedError is the authorization failure and matches with IsDenied.
*/
package types
