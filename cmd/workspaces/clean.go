package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/zfskit/workspaces/pkg/log"
	"github.com/zfskit/workspaces/pkg/metrics"
	"github.com/zfskit/workspaces/pkg/sweeper"
)

func init() {
	rootCmd.AddCommand(cleanCmd)
}

var cleanCmd = &cobra.Command{
	Use:   "clean",
	Short: "Destroy workspaces whose retention has passed",
	Long: `Sweep all workspace records: destroy those past their deletion date,
enforce read-only on expired ones and repair record/volume mismatches.

This includes other users' workspaces. Intended to be invoked
periodically by cron or a systemd timer, but safe to run on demand and
concurrently with user commands.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(a *app) error {
			now := time.Now()
			report, err := sweeper.New(a.engine, a.store).Sweep(cmd.Context(), now)
			if err != nil {
				return err
			}

			fmt.Printf("Sweep complete: %d destroyed, %d reconciled, %d made read-only, %d skipped\n",
				report.Destroyed, report.Reconciled, report.ReadOnlyEnforced, len(report.Skipped))
			for _, skipped := range report.Skipped {
				fmt.Printf("  skipped %s: %s\n", skipped.Key, skipped.Reason)
			}

			if a.cfg.MetricsFile != "" {
				if err := writeMetrics(cmd, a, report, now); err != nil {
					logger := log.WithComponent("clean")
					logger.Warn().Err(err).Msg("failed to write metrics file")
				}
			}
			return nil
		})
	},
}

func writeMetrics(cmd *cobra.Command, a *app, report *sweeper.Report, now time.Time) error {
	records, err := a.store.Scan(cmd.Context())
	if err != nil {
		return err
	}
	usages, err := a.engine.Filesystems(cmd.Context())
	if err != nil {
		return err
	}

	exporter := metrics.NewExporter()
	exporter.ObserveInventory(records, usages, now)
	exporter.ObserveSweep(report, now)
	return exporter.WriteTextfile(a.cfg.MetricsFile)
}
