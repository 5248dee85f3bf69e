package types

import (
	"errors"
	"fmt"
)

// Sentinel errors forming the failure taxonomy shared by the store, the
// volume adapter and the engine. Callers match them with errors.Is.
var (
	// ErrNotFound indicates the record or volume does not exist.
	ErrNotFound = errors.New("not found")
	// ErrAlreadyExists indicates a creation conflict.
	ErrAlreadyExists = errors.New("already exists")
	// ErrBusy indicates destruction was blocked by an external condition
	// (e.g. an open file handle). Left for the next sweep, never retried
	// silently.
	ErrBusy = errors.New("busy")
	// ErrPoolUnavailable indicates the backing pool could not be reached.
	ErrPoolUnavailable = errors.New("pool unavailable")
	// ErrStoreUnavailable indicates the record store could not be reached.
	// Operations must fail rather than proceed as if no record existed.
	ErrStoreUnavailable = errors.New("store unavailable")
)

// DeniedError is an authorization failure. It is a normal result, not an
// exception path: the CLI renders it as a permission error and no mutation
// happens before the check.
type DeniedError struct {
	Operation string
	Reason    string
}

func (e *DeniedError) Error() string {
	return fmt.Sprintf("%s denied: %s", e.Operation, e.Reason)
}

// IsDenied reports whether err is (or wraps) a DeniedError.
func IsDenied(err error) bool {
	var d *DeniedError
	return errors.As(err, &d)
}
