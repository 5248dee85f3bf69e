package identity

import (
	"fmt"
	"os"
	"os/user"
	"strconv"

	"github.com/zfskit/workspaces/pkg/types"
)

// Operation names a mutating engine operation for authorization decisions
// and error messages.
type Operation string

const (
	OpCreate  Operation = "create"
	OpExtend  Operation = "extend"
	OpExpire  Operation = "expire"
	OpRename  Operation = "rename"
	OpDestroy Operation = "destroy"
)

// Caller is the two-identity model of a setuid invocation: the real uid
// identifies who ran the command, the effective uid is the privilege the
// process executes with. Resolved once at process start and passed
// explicitly; nothing else in the engine consults process credentials.
type Caller struct {
	UID          int
	Username     string
	EffectiveUID int
}

// Resolve determines the invoking user's real identity.
func Resolve() (*Caller, error) {
	uid := os.Getuid()
	u, err := user.LookupId(strconv.Itoa(uid))
	if err != nil {
		return nil, fmt.Errorf("failed to resolve uid %d: %w", uid, err)
	}
	return &Caller{
		UID:          uid,
		Username:     u.Username,
		EffectiveUID: os.Geteuid(),
	}, nil
}

// Admin is the administrative identity used by the garbage collector and
// by system-level invocation.
func Admin() *Caller {
	return &Caller{UID: 0, Username: "root", EffectiveUID: 0}
}

// IsAdmin reports whether the caller holds the administrative identity.
func (c *Caller) IsAdmin() bool {
	return c.UID == 0
}

// Authorize decides whether caller may perform op on the workspace. It is
// a pure decision over (caller identity, record ownership, operation
// kind); a denial is a normal result, never a partial mutation.
func Authorize(op Operation, ws *types.Workspace, caller *Caller) error {
	return AuthorizeOwner(op, ws.Owner, caller)
}

// AuthorizeOwner is Authorize for operations that name an owner before a
// record exists, such as create.
func AuthorizeOwner(op Operation, owner string, caller *Caller) error {
	if caller.IsAdmin() {
		return nil
	}
	if caller.Username == owner {
		return nil
	}
	return &types.DeniedError{
		Operation: string(op),
		Reason:    fmt.Sprintf("workspace belongs to %s, not %s", owner, caller.Username),
	}
}
