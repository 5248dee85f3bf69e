package zfs

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/zfskit/workspaces/pkg/types"
)

const (
	// DefaultCommandTimeout bounds every zfs invocation so a wedged pool
	// cannot hold a record lock indefinitely.
	DefaultCommandTimeout = 30 * time.Second
)

// CLI implements Adapter by shelling out to the zfs command. The process
// runs with elevated privilege, so no sudo indirection is needed.
type CLI struct {
	// Binary is the zfs executable, "zfs" by default.
	Binary string
	// Timeout bounds each command invocation.
	Timeout time.Duration
}

// NewCLI returns an Adapter backed by the system zfs binary.
func NewCLI() *CLI {
	return &CLI{Binary: "zfs", Timeout: DefaultCommandTimeout}
}

// Create creates the dataset.
func (c *CLI) Create(ctx context.Context, dataset string) error {
	_, err := c.run(ctx, "create", dataset)
	return err
}

// Destroy destroys the dataset and everything in it.
func (c *CLI) Destroy(ctx context.Context, dataset string) error {
	_, err := c.run(ctx, "destroy", "-r", dataset)
	return err
}

// Rename renames the dataset.
func (c *CLI) Rename(ctx context.Context, oldDataset, newDataset string) error {
	_, err := c.run(ctx, "rename", oldDataset, newDataset)
	return err
}

// SetReadOnly toggles the readonly property. zfs set of an already
// matching value succeeds, so this is idempotent by construction.
func (c *CLI) SetReadOnly(ctx context.Context, dataset string, readonly bool) error {
	value := "off"
	if readonly {
		value = "on"
	}
	_, err := c.run(ctx, "set", "readonly="+value, dataset)
	return err
}

// ReadOnly reports the dataset's current readonly property.
func (c *CLI) ReadOnly(ctx context.Context, dataset string) (bool, error) {
	value, err := c.getProperty(ctx, dataset, "readonly")
	if err != nil {
		return false, err
	}
	return value == "on", nil
}

// Exists reports whether the dataset is present.
func (c *CLI) Exists(ctx context.Context, dataset string) (bool, error) {
	_, err := c.run(ctx, "list", "-H", "-o", "name", dataset)
	if err == nil {
		return true, nil
	}
	if isNotFound(err) {
		return false, nil
	}
	return false, err
}

// Mountpoint returns the dataset's mountpoint property.
func (c *CLI) Mountpoint(ctx context.Context, dataset string) (string, error) {
	return c.getProperty(ctx, dataset, "mountpoint")
}

// UsedSpace returns the bytes referenced by the dataset.
func (c *CLI) UsedSpace(ctx context.Context, dataset string) (uint64, error) {
	return c.getNumericProperty(ctx, dataset, "referenced")
}

// PoolSpace returns used and available bytes for the pool root dataset.
func (c *CLI) PoolSpace(ctx context.Context, root string) (uint64, uint64, error) {
	used, err := c.getNumericProperty(ctx, root, "used")
	if err != nil {
		return 0, 0, err
	}
	free, err := c.getNumericProperty(ctx, root, "available")
	if err != nil {
		return 0, 0, err
	}
	return used, free, nil
}

func (c *CLI) getProperty(ctx context.Context, dataset, property string) (string, error) {
	out, err := c.run(ctx, "get", "-H", "-p", "-o", "value", property, dataset)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out), nil
}

func (c *CLI) getNumericProperty(ctx context.Context, dataset, property string) (uint64, error) {
	value, err := c.getProperty(ctx, dataset, property)
	if err != nil {
		return 0, err
	}
	n, err := strconv.ParseUint(value, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse %s of %s: %w", property, dataset, err)
	}
	return n, nil
}

func (c *CLI) run(ctx context.Context, args ...string) (string, error) {
	timeout := c.Timeout
	if timeout <= 0 {
		timeout = DefaultCommandTimeout
	}
	cctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	binary := c.Binary
	if binary == "" {
		binary = "zfs"
	}

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(cctx, binary, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if cctx.Err() == context.DeadlineExceeded {
			return "", fmt.Errorf("zfs %s timed out after %s: %w", args[0], timeout, types.ErrBusy)
		}
		return "", classify(args[0], stderr.String(), err)
	}
	return stdout.String(), nil
}

// classify maps zfs stderr output onto the shared error taxonomy.
func classify(verb, stderr string, err error) error {
	msg := strings.TrimSpace(stderr)
	lower := strings.ToLower(msg)
	switch {
	case strings.Contains(lower, "dataset already exists"):
		return fmt.Errorf("zfs %s: %s: %w", verb, msg, types.ErrAlreadyExists)
	case strings.Contains(lower, "dataset does not exist"):
		return fmt.Errorf("zfs %s: %s: %w", verb, msg, types.ErrNotFound)
	case strings.Contains(lower, "dataset is busy"),
		strings.Contains(lower, "pool is busy"):
		return fmt.Errorf("zfs %s: %s: %w", verb, msg, types.ErrBusy)
	case strings.Contains(lower, "no such pool"),
		strings.Contains(lower, "pool i/o is currently suspended"),
		strings.Contains(lower, "permission denied"):
		return fmt.Errorf("zfs %s: %s: %w", verb, msg, types.ErrPoolUnavailable)
	case msg == "":
		return fmt.Errorf("zfs %s: %w", verb, err)
	default:
		return fmt.Errorf("zfs %s: %s: %w", verb, msg, err)
	}
}

func isNotFound(err error) bool {
	return errors.Is(err, types.ErrNotFound)
}
