package engine

import (
	"fmt"
	"os"
	"os/user"
	"strconv"
)

// setMountpointOwner hands a freshly created mountpoint to its owner:
// mode 0750, owned by the owner's primary group. Runs with the elevated
// execution identity.
func setMountpointOwner(mountpoint, owner string) error {
	u, err := user.Lookup(owner)
	if err != nil {
		return fmt.Errorf("unknown user %s: %w", owner, err)
	}
	uid, err := strconv.Atoi(u.Uid)
	if err != nil {
		return fmt.Errorf("parse uid of %s: %w", owner, err)
	}
	gid, err := strconv.Atoi(u.Gid)
	if err != nil {
		return fmt.Errorf("parse gid of %s: %w", owner, err)
	}

	if err := os.Chmod(mountpoint, 0o750); err != nil {
		return fmt.Errorf("chmod %s: %w", mountpoint, err)
	}
	if err := os.Chown(mountpoint, uid, gid); err != nil {
		return fmt.Errorf("chown %s: %w", mountpoint, err)
	}
	return nil
}
