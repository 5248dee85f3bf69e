package main

import (
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(filesystemsCmd)
}

var filesystemsCmd = &cobra.Command{
	Use:     "filesystems",
	Aliases: []string{"fi"},
	Short:   "List the configured filesystems",
	Long: `List the filesystems workspaces can be created on, with live space
figures, the maximum creatable duration and the post-expiry retention.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(a *app) error {
			usages, err := a.engine.Filesystems(cmd.Context())
			if err != nil {
				return err
			}
			renderFilesystems(cmd.OutOrStdout(), usages)
			return nil
		})
	},
}
