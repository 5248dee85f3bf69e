package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/zfskit/workspaces/pkg/engine"
)

func init() {
	createCmd.Flags().IntP("duration", "d", 0, "Duration in days (required)")
	createCmd.Flags().StringP("user", "u", "", "User the workspace belongs to (default: invoking user)")
	createCmd.Flags().StringP("filesystem", "f", "", "Filesystem to create the workspace on")
	_ = createCmd.MarkFlagRequired("duration")

	listCmd.Flags().StringSliceP("user", "u", nil, "Only show workspaces belonging to USER")
	listCmd.Flags().StringSliceP("filesystem", "f", nil, "Only show workspaces on FILESYSTEM")

	renameCmd.Flags().StringP("filesystem", "f", "", "Filesystem of the workspace")

	extendCmd.Flags().IntP("duration", "d", 0, "Duration in days to extend by (required)")
	extendCmd.Flags().StringP("filesystem", "f", "", "Filesystem of the workspace")
	_ = extendCmd.MarkFlagRequired("duration")

	expireCmd.Flags().StringP("filesystem", "f", "", "Filesystem of the workspace")
	expireCmd.Flags().Bool("terminally", false, "Delete the workspace on the next clean")

	rootCmd.AddCommand(createCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(renameCmd)
	rootCmd.AddCommand(extendCmd)
	rootCmd.AddCommand(expireCmd)
}

var createCmd = &cobra.Command{
	Use:     "create <name>",
	Aliases: []string{"c"},
	Short:   "Create a new workspace",
	Long: `Create a new workspace on a filesystem.

The name must consist entirely of the characters [A-Za-z0-9_-]. The
duration must be at most the DURATION shown by 'workspaces filesystems'.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		days, _ := cmd.Flags().GetInt("duration")
		owner, _ := cmd.Flags().GetString("user")
		fsName, _ := cmd.Flags().GetString("filesystem")

		return withApp(cmd, func(a *app) error {
			pool, err := a.cfg.ResolvePool(fsName)
			if err != nil {
				return err
			}
			if owner == "" {
				owner = a.caller.Username
			}
			ws, err := a.engine.Create(cmd.Context(), a.caller, pool.Name, args[0],
				owner, time.Duration(days)*24*time.Hour)
			if err != nil {
				return err
			}
			fmt.Printf("Created workspace at %s\n", ws.Mountpoint)
			return nil
		})
	},
}

var listCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List workspaces",
	RunE: func(cmd *cobra.Command, args []string) error {
		owners, _ := cmd.Flags().GetStringSlice("user")
		pools, _ := cmd.Flags().GetStringSlice("filesystem")

		return withApp(cmd, func(a *app) error {
			infos, err := a.engine.List(cmd.Context(), engine.ListFilter{
				Owners: owners,
				Pools:  pools,
			})
			if err != nil {
				return err
			}
			renderWorkspaces(cmd.OutOrStdout(), infos, time.Now())
			return nil
		})
	},
}

var renameCmd = &cobra.Command{
	Use:     "rename <old-name> <new-name>",
	Aliases: []string{"mv"},
	Short:   "Rename an existing workspace",
	Args:    cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		fsName, _ := cmd.Flags().GetString("filesystem")

		return withApp(cmd, func(a *app) error {
			pool, err := a.cfg.ResolvePool(fsName)
			if err != nil {
				return err
			}
			ws, err := a.engine.Rename(cmd.Context(), a.caller, pool.Name, args[0], args[1])
			if err != nil {
				return err
			}
			fmt.Printf("Renamed workspace, now at %s\n", ws.Mountpoint)
			return nil
		})
	},
}

var extendCmd = &cobra.Command{
	Use:     "extend <name>",
	Aliases: []string{"ex"},
	Short:   "Postpone the expiry date of a workspace",
	Long: `Postpone the expiry date of an existing workspace.

The extension counts from the later of now and the current expiry, so
extending an already-expired workspace pushes its new expiry into the
future from today. An expired workspace becomes writable again.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		days, _ := cmd.Flags().GetInt("duration")
		fsName, _ := cmd.Flags().GetString("filesystem")

		return withApp(cmd, func(a *app) error {
			pool, err := a.cfg.ResolvePool(fsName)
			if err != nil {
				return err
			}
			ws, err := a.engine.Extend(cmd.Context(), a.caller, pool.Name, args[0],
				time.Duration(days)*24*time.Hour)
			if err != nil {
				return err
			}
			fmt.Printf("Workspace expires %s\n", ws.ExpiresAt.Format("2006-01-02"))
			return nil
		})
	},
}

var expireCmd = &cobra.Command{
	Use:   "expire <name>",
	Short: "Expire a workspace now",
	Long: `Expire a workspace immediately, making it read-only.

The workspace is retained read-only for the filesystem's retention period
and destroyed afterwards. With --terminally it is destroyed by the next
clean instead; be aware that clean may run at any time via cron.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		fsName, _ := cmd.Flags().GetString("filesystem")
		terminally, _ := cmd.Flags().GetBool("terminally")

		return withApp(cmd, func(a *app) error {
			pool, err := a.cfg.ResolvePool(fsName)
			if err != nil {
				return err
			}
			ws, err := a.engine.Expire(cmd.Context(), a.caller, pool.Name, args[0], terminally)
			if err != nil {
				return err
			}
			fmt.Printf("Workspace is read-only, deleted after %s\n", ws.DeletesAt.Format("2006-01-02"))
			return nil
		})
	},
}
