package config

import (
	"fmt"
	"os"
	"sort"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/zfskit/workspaces/pkg/types"
)

const (
	// DefaultPath is where the pool catalog is read from.
	DefaultPath = "/etc/workspaces/workspaces.yaml"
	// DefaultDBPath is the durable record store location, shared by all
	// pools on the host.
	DefaultDBPath = "/var/lib/workspaces/workspaces.db"
	// DefaultLockDir holds the per-workspace advisory lock files.
	DefaultLockDir = "/var/lib/workspaces/locks"
)

// Config is the host-wide configuration, loaded once at process start.
type Config struct {
	// DefaultFilesystem is used when a command does not name a pool.
	DefaultFilesystem string `yaml:"default_filesystem"`
	// DBPath overrides the record store location.
	DBPath string `yaml:"db_path"`
	// LockDir overrides the lock file directory.
	LockDir string `yaml:"lock_dir"`
	// MetricsFile, when set, is the textfile-collector .prom file the
	// clean command writes after a sweep.
	MetricsFile string `yaml:"metrics_file"`
	// Filesystems enumerates the backing pools, keyed by pool name.
	Filesystems map[string]*Filesystem `yaml:"filesystems"`
}

// Filesystem is the on-disk form of one pool entry.
type Filesystem struct {
	// Root is the dataset acting as the parent for workspace volumes.
	Root string `yaml:"root"`
	// MaxDurationDays caps the duration of create and extend requests.
	MaxDurationDays int `yaml:"max_duration_days"`
	// RetentionDays is how long expired workspaces stay before deletion.
	RetentionDays int `yaml:"retention_days"`
	// Disabled pools reject create/extend for regular users.
	Disabled bool `yaml:"disabled"`
}

// Load reads and validates the configuration file at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if len(cfg.Filesystems) == 0 {
		return nil, fmt.Errorf("config defines no filesystems")
	}
	for name, fs := range cfg.Filesystems {
		if fs == nil || fs.Root == "" {
			return nil, fmt.Errorf("filesystem %q has no root", name)
		}
		if fs.MaxDurationDays <= 0 {
			return nil, fmt.Errorf("filesystem %q has no max_duration_days", name)
		}
		if fs.RetentionDays < 0 {
			return nil, fmt.Errorf("filesystem %q has negative retention_days", name)
		}
	}
	if cfg.DefaultFilesystem != "" {
		if _, ok := cfg.Filesystems[cfg.DefaultFilesystem]; !ok {
			return nil, fmt.Errorf("default_filesystem %q is not a configured filesystem", cfg.DefaultFilesystem)
		}
	}

	if cfg.DBPath == "" {
		cfg.DBPath = DefaultDBPath
	}
	if cfg.LockDir == "" {
		cfg.LockDir = DefaultLockDir
	}
	return &cfg, nil
}

// Pool returns the pool descriptor for name, or nil if not configured.
func (c *Config) Pool(name string) *types.Pool {
	fs, ok := c.Filesystems[name]
	if !ok {
		return nil
	}
	return &types.Pool{
		Name:        name,
		Root:        fs.Root,
		MaxDuration: time.Duration(fs.MaxDurationDays) * 24 * time.Hour,
		Retention:   time.Duration(fs.RetentionDays) * 24 * time.Hour,
		Disabled:    fs.Disabled,
	}
}

// Pools returns all configured pools ordered by name.
func (c *Config) Pools() []*types.Pool {
	names := make([]string, 0, len(c.Filesystems))
	for name := range c.Filesystems {
		names = append(names, name)
	}
	sort.Strings(names)

	pools := make([]*types.Pool, 0, len(names))
	for _, name := range names {
		pools = append(pools, c.Pool(name))
	}
	return pools
}

// ResolvePool picks the pool a command should act on. Preference order:
// the explicitly named pool, the configured default, the only configured
// pool if there is exactly one.
func (c *Config) ResolvePool(name string) (*types.Pool, error) {
	switch {
	case name != "":
	case c.DefaultFilesystem != "":
		name = c.DefaultFilesystem
	case len(c.Filesystems) == 1:
		for only := range c.Filesystems {
			name = only
		}
	default:
		return nil, fmt.Errorf("no filesystem specified; use -f <filesystem>")
	}

	pool := c.Pool(name)
	if pool == nil {
		names := make([]string, 0, len(c.Filesystems))
		for n := range c.Filesystems {
			names = append(names, n)
		}
		sort.Strings(names)
		return nil, fmt.Errorf("unknown filesystem %q, configured filesystems: %v", name, names)
	}
	return pool, nil
}
