/*
Package config loads the host-wide YAML configuration describing the
backing pools and shared paths.

The file enumerates the filesystems workspaces can be created on, each
with a parent dataset, a duration cap and a retention window:

	default_filesystem: bulk
	filesystems:
	  bulk:
	    root: tank/workspaces
	    max_duration_days: 30
	    retention_days: 14

Configuration is read once at process start and treated as immutable;
Config satisfies the engine's pool catalog interface directly.
*/
package config
