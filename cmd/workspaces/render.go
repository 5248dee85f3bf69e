package main

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/zfskit/workspaces/pkg/types"
)

func renderWorkspaces(w io.Writer, infos []*types.WorkspaceInfo, now time.Time) {
	tw := tabwriter.NewWriter(w, 0, 8, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tUSER\tFS\tSIZE\tEXPIRY\tMOUNTPOINT")
	for _, info := range infos {
		ws := info.Workspace
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
			ws.Name, ws.Owner, ws.Pool,
			gib(info.UsedBytes), expiryLabel(ws, now), ws.Mountpoint)
	}
	tw.Flush()
}

func renderFilesystems(w io.Writer, usages []*types.PoolUsage) {
	tw := tabwriter.NewWriter(w, 0, 8, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tUSED\tFREE\tTOTAL\tDURATION\tRETENTION")
	for _, usage := range usages {
		duration := fmt.Sprintf("%dd", days(usage.Pool.MaxDuration))
		if usage.Pool.Disabled {
			duration = "disabled"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%dd\n",
			usage.Pool.Name,
			gib(usage.UsedBytes), gib(usage.FreeBytes), gib(usage.TotalBytes),
			duration, days(usage.Pool.Retention))
	}
	tw.Flush()
}

// expiryLabel renders the EXPIRY column: how long until expiry for active
// workspaces, how long until deletion for expired ones.
func expiryLabel(ws *types.Workspace, now time.Time) string {
	switch ws.State(now) {
	case types.StatePendingDeletion:
		return "deleted soon"
	case types.StateExpired:
		return fmt.Sprintf("deleted in %dd", days(ws.DeletesAt.Sub(now)))
	default:
		return fmt.Sprintf("expires in %dd", days(ws.ExpiresAt.Sub(now)))
	}
}

func days(d time.Duration) int {
	return int(d.Hours() / 24)
}

func gib(bytes uint64) string {
	return fmt.Sprintf("%dG", bytes>>30)
}
