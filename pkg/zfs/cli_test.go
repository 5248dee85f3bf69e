package zfs

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zfskit/workspaces/pkg/types"
)

func TestDatasetFor(t *testing.T) {
	assert.Equal(t, "tank/bulk/scratch", DatasetFor("tank/bulk", "scratch"))
}

func TestClassify(t *testing.T) {
	exitErr := errors.New("exit status 1")

	tests := []struct {
		name   string
		stderr string
		want   error
	}{
		{"already exists", "cannot create 'tank/bulk/ws': dataset already exists", types.ErrAlreadyExists},
		{"does not exist", "cannot open 'tank/bulk/ws': dataset does not exist", types.ErrNotFound},
		{"dataset busy", "cannot destroy 'tank/bulk/ws': dataset is busy", types.ErrBusy},
		{"no such pool", "cannot open 'tank': no such pool", types.ErrPoolUnavailable},
		{"io suspended", "cannot open 'tank': pool I/O is currently suspended", types.ErrPoolUnavailable},
		{"permission denied", "cannot create 'tank/bulk/ws': permission denied", types.ErrPoolUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := classify("create", tt.stderr, exitErr)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestClassify_Unrecognized(t *testing.T) {
	exitErr := errors.New("exit status 1")

	err := classify("create", "something unexpected", exitErr)
	assert.ErrorIs(t, err, exitErr)
	assert.NotErrorIs(t, err, types.ErrNotFound)

	// Empty stderr still carries the underlying error.
	err = classify("list", "", exitErr)
	assert.ErrorIs(t, err, exitErr)
}

// stubCLI writes a shell script standing in for the zfs binary and returns
// a CLI pointed at it.
func stubCLI(t *testing.T, script string) *CLI {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("stub script requires a POSIX shell")
	}
	path := filepath.Join(t.TempDir(), "zfs")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+script), 0o755))
	return &CLI{Binary: path, Timeout: 5 * time.Second}
}

func TestGetProperty(t *testing.T) {
	cli := stubCLI(t, `
if [ "$1" = "get" ] && [ "$6" = "mountpoint" ]; then
  echo "/tank/bulk/scratch"
  exit 0
fi
exit 1
`)
	mountpoint, err := cli.Mountpoint(context.Background(), "tank/bulk/scratch")
	require.NoError(t, err)
	assert.Equal(t, "/tank/bulk/scratch", mountpoint)
}

func TestReadOnly(t *testing.T) {
	cli := stubCLI(t, `echo on`)
	readonly, err := cli.ReadOnly(context.Background(), "tank/bulk/scratch")
	require.NoError(t, err)
	assert.True(t, readonly)

	cli = stubCLI(t, `echo off`)
	readonly, err = cli.ReadOnly(context.Background(), "tank/bulk/scratch")
	require.NoError(t, err)
	assert.False(t, readonly)
}

func TestUsedSpace(t *testing.T) {
	cli := stubCLI(t, `echo 10737418240`)
	used, err := cli.UsedSpace(context.Background(), "tank/bulk/scratch")
	require.NoError(t, err)
	assert.Equal(t, uint64(10737418240), used)

	// Non-numeric output is a parse error, not a zero.
	cli = stubCLI(t, `echo 10G`)
	_, err = cli.UsedSpace(context.Background(), "tank/bulk/scratch")
	assert.Error(t, err)
}

func TestExists(t *testing.T) {
	cli := stubCLI(t, `echo tank/bulk/scratch`)
	exists, err := cli.Exists(context.Background(), "tank/bulk/scratch")
	require.NoError(t, err)
	assert.True(t, exists)

	cli = stubCLI(t, `echo "cannot open 'tank/bulk/scratch': dataset does not exist" >&2; exit 1`)
	exists, err = cli.Exists(context.Background(), "tank/bulk/scratch")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestRunTimeout(t *testing.T) {
	cli := stubCLI(t, `sleep 10`)
	cli.Timeout = 100 * time.Millisecond

	err := cli.Create(context.Background(), "tank/bulk/scratch")
	assert.ErrorIs(t, err, types.ErrBusy)
}

func TestCreateErrorClassified(t *testing.T) {
	cli := stubCLI(t, `echo "cannot create 'tank/bulk/scratch': dataset already exists" >&2; exit 1`)
	err := cli.Create(context.Background(), "tank/bulk/scratch")
	assert.ErrorIs(t, err, types.ErrAlreadyExists)
}
