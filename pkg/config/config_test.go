package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "workspaces.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

const sampleConfig = `
default_filesystem: bulk
db_path: /tmp/workspaces-test.db
lock_dir: /tmp/workspaces-test-locks
metrics_file: /var/lib/node_exporter/workspaces.prom
filesystems:
  bulk:
    root: tank/bulk
    max_duration_days: 30
    retention_days: 14
  fast:
    root: nvme/fast
    max_duration_days: 7
    retention_days: 3
  old:
    root: tank/old
    max_duration_days: 10
    retention_days: 7
    disabled: true
`

func TestLoad(t *testing.T) {
	cfg, err := Load(writeConfig(t, sampleConfig))
	require.NoError(t, err)

	assert.Equal(t, "bulk", cfg.DefaultFilesystem)
	assert.Equal(t, "/tmp/workspaces-test.db", cfg.DBPath)
	assert.Equal(t, "/var/lib/node_exporter/workspaces.prom", cfg.MetricsFile)
	require.Len(t, cfg.Filesystems, 3)

	pool := cfg.Pool("bulk")
	require.NotNil(t, pool)
	assert.Equal(t, "tank/bulk", pool.Root)
	assert.Equal(t, 30*24*time.Hour, pool.MaxDuration)
	assert.Equal(t, 14*24*time.Hour, pool.Retention)
	assert.False(t, pool.Disabled)

	assert.True(t, cfg.Pool("old").Disabled)
	assert.Nil(t, cfg.Pool("nope"))
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, `
filesystems:
  bulk:
    root: tank/bulk
    max_duration_days: 30
`))
	require.NoError(t, err)
	assert.Equal(t, DefaultDBPath, cfg.DBPath)
	assert.Equal(t, DefaultLockDir, cfg.LockDir)
	assert.Empty(t, cfg.MetricsFile)
	assert.Zero(t, cfg.Pool("bulk").Retention)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{"empty", "", "no filesystems"},
		{"missing root", `
filesystems:
  bulk:
    max_duration_days: 30
`, "has no root"},
		{"missing max duration", `
filesystems:
  bulk:
    root: tank/bulk
`, "max_duration_days"},
		{"negative retention", `
filesystems:
  bulk:
    root: tank/bulk
    max_duration_days: 30
    retention_days: -1
`, "retention_days"},
		{"bad default", `
default_filesystem: nope
filesystems:
  bulk:
    root: tank/bulk
    max_duration_days: 30
`, "default_filesystem"},
		{"not yaml", "{{{", "parse"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.content))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestPools_Ordered(t *testing.T) {
	cfg, err := Load(writeConfig(t, sampleConfig))
	require.NoError(t, err)

	pools := cfg.Pools()
	require.Len(t, pools, 3)
	assert.Equal(t, "bulk", pools[0].Name)
	assert.Equal(t, "fast", pools[1].Name)
	assert.Equal(t, "old", pools[2].Name)
}

func TestResolvePool(t *testing.T) {
	cfg, err := Load(writeConfig(t, sampleConfig))
	require.NoError(t, err)

	// Explicit name wins over the default.
	pool, err := cfg.ResolvePool("fast")
	require.NoError(t, err)
	assert.Equal(t, "fast", pool.Name)

	// No name falls back to the configured default.
	pool, err = cfg.ResolvePool("")
	require.NoError(t, err)
	assert.Equal(t, "bulk", pool.Name)

	// Unknown names fail with the configured choices listed.
	_, err = cfg.ResolvePool("nope")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown filesystem")
}

func TestResolvePool_SingleWithoutDefault(t *testing.T) {
	cfg, err := Load(writeConfig(t, `
filesystems:
  bulk:
    root: tank/bulk
    max_duration_days: 30
    retention_days: 14
`))
	require.NoError(t, err)

	pool, err := cfg.ResolvePool("")
	require.NoError(t, err)
	assert.Equal(t, "bulk", pool.Name)
}

func TestResolvePool_AmbiguousWithoutDefault(t *testing.T) {
	cfg, err := Load(writeConfig(t, `
filesystems:
  bulk:
    root: tank/bulk
    max_duration_days: 30
  fast:
    root: nvme/fast
    max_duration_days: 7
`))
	require.NoError(t, err)

	_, err = cfg.ResolvePool("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no filesystem specified")
}
