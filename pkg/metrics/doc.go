/*
Package metrics exports workspace inventory and sweep metrics.

Every invocation of this tool is a short-lived process, so there is no
scrape endpoint. Instead the clean command writes the metrics in
Prometheus text exposition format to a file the node_exporter textfile
collector picks up:

	workspaces_state_total{pool="bulk",state="active"} 12
	workspaces_pool_free_bytes{pool="bulk"} 5.49755813888e+11
	workspaces_sweep_destroyed 2
	workspaces_sweep_last_run_timestamp_seconds 1.7561e+09

The file is replaced atomically (write-then-rename) so a concurrent
collector read never sees a partial exposition.
*/
package metrics
