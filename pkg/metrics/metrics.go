package metrics

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"

	"github.com/zfskit/workspaces/pkg/sweeper"
	"github.com/zfskit/workspaces/pkg/types"
)

// Exporter collects workspace inventory and sweep metrics on a private
// registry and renders them in Prometheus text exposition format for the
// node_exporter textfile collector. A short-lived CLI cannot serve a
// scrape endpoint, so the clean command writes a .prom file instead.
type Exporter struct {
	registry *prometheus.Registry

	workspacesByState *prometheus.GaugeVec
	poolUsedBytes     *prometheus.GaugeVec
	poolFreeBytes     *prometheus.GaugeVec
	sweepDestroyed    prometheus.Gauge
	sweepReconciled   prometheus.Gauge
	sweepSkipped      prometheus.Gauge
	sweepTimestamp    prometheus.Gauge
}

// NewExporter creates an exporter with all metrics registered.
func NewExporter() *Exporter {
	e := &Exporter{
		registry: prometheus.NewRegistry(),
		workspacesByState: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "workspaces_state_total",
				Help: "Number of workspace records by pool and lifecycle state",
			},
			[]string{"pool", "state"},
		),
		poolUsedBytes: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "workspaces_pool_used_bytes",
				Help: "Used bytes on the pool's root dataset",
			},
			[]string{"pool"},
		),
		poolFreeBytes: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "workspaces_pool_free_bytes",
				Help: "Available bytes on the pool's root dataset",
			},
			[]string{"pool"},
		),
		sweepDestroyed: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "workspaces_sweep_destroyed",
			Help: "Workspaces destroyed by the last sweep",
		}),
		sweepReconciled: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "workspaces_sweep_reconciled",
			Help: "Record/volume mismatches repaired by the last sweep",
		}),
		sweepSkipped: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "workspaces_sweep_skipped",
			Help: "Records the last sweep could not process",
		}),
		sweepTimestamp: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "workspaces_sweep_last_run_timestamp_seconds",
			Help: "Unix time of the last completed sweep",
		}),
	}

	e.registry.MustRegister(
		e.workspacesByState,
		e.poolUsedBytes,
		e.poolFreeBytes,
		e.sweepDestroyed,
		e.sweepReconciled,
		e.sweepSkipped,
		e.sweepTimestamp,
	)
	return e
}

// ObserveInventory records the current record population and pool usage.
func (e *Exporter) ObserveInventory(records []*types.Workspace, usages []*types.PoolUsage, now time.Time) {
	for _, ws := range records {
		e.workspacesByState.WithLabelValues(ws.Pool, string(ws.State(now))).Inc()
	}
	for _, usage := range usages {
		e.poolUsedBytes.WithLabelValues(usage.Pool.Name).Set(float64(usage.UsedBytes))
		e.poolFreeBytes.WithLabelValues(usage.Pool.Name).Set(float64(usage.FreeBytes))
	}
}

// ObserveSweep records the outcome of a sweep.
func (e *Exporter) ObserveSweep(report *sweeper.Report, now time.Time) {
	e.sweepDestroyed.Set(float64(report.Destroyed))
	e.sweepReconciled.Set(float64(report.Reconciled))
	e.sweepSkipped.Set(float64(len(report.Skipped)))
	e.sweepTimestamp.Set(float64(now.Unix()))
}

// WriteTextfile renders the registry in text exposition format and
// atomically replaces path, so the textfile collector never reads a
// partial file.
func (e *Exporter) WriteTextfile(path string) error {
	families, err := e.registry.Gather()
	if err != nil {
		return fmt.Errorf("failed to gather metrics: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("failed to create metrics tempfile: %w", err)
	}
	defer os.Remove(tmp.Name())

	enc := expfmt.NewEncoder(tmp, expfmt.NewFormat(expfmt.TypeTextPlain))
	for _, family := range families {
		if err := enc.Encode(family); err != nil {
			tmp.Close()
			return fmt.Errorf("failed to encode metrics: %w", err)
		}
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close metrics tempfile: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to replace metrics file: %w", err)
	}
	return nil
}
