package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/zfskit/workspaces/pkg/config"
	"github.com/zfskit/workspaces/pkg/engine"
	"github.com/zfskit/workspaces/pkg/identity"
	"github.com/zfskit/workspaces/pkg/log"
	"github.com/zfskit/workspaces/pkg/storage"
	"github.com/zfskit/workspaces/pkg/zfs"
)

var (
	// Version information (set via ldflags during build)
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "workspaces",
	Short: "Workspaces - time-bounded scratch storage on ZFS",
	Long: `Workspaces manages ephemeral storage areas backed by ZFS datasets.

Each workspace is created on a configured filesystem, stays writable until
its expiry date, is kept read-only for a retention period afterwards, and
is destroyed by the periodic clean once that retention has passed.

The binary is installed setuid so regular users can request the privileged
dataset operations; every mutation is authorized against the invoking
user's real identity.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.SetVersionTemplate(fmt.Sprintf(
		"Workspaces version %s\nCommit: %s\nBuilt: %s\n",
		Version, Commit, BuildTime,
	))

	rootCmd.PersistentFlags().String("config", config.DefaultPath, "Configuration file")
	rootCmd.PersistentFlags().String("log-level", "warn", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().Bool("log-json", false, "Emit logs as JSON")
}

// app bundles everything a command needs after bootstrap.
type app struct {
	cfg    *config.Config
	store  storage.Store
	engine *engine.Engine
	caller *identity.Caller
}

// withApp loads configuration, initializes logging, resolves the caller
// identity and opens the record store, then runs fn and releases the
// store on every path.
func withApp(cmd *cobra.Command, fn func(a *app) error) error {
	configPath, _ := cmd.Flags().GetString("config")
	logLevel, _ := cmd.Flags().GetString("log-level")
	logJSON, _ := cmd.Flags().GetBool("log-json")

	log.Init(log.Config{Level: logLevel, JSONOutput: logJSON})

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	caller, err := identity.Resolve()
	if err != nil {
		return err
	}

	store, err := storage.NewSQLiteStore(cmd.Context(), cfg.DBPath)
	if err != nil {
		return err
	}
	defer store.Close()

	locks, err := storage.NewLockManager(cfg.LockDir)
	if err != nil {
		return err
	}

	eng := engine.New(engine.Options{
		Store:   store,
		Locks:   locks,
		Adapter: zfs.NewCLI(),
		Catalog: cfg,
	})

	return fn(&app{cfg: cfg, store: store, engine: eng, caller: caller})
}
