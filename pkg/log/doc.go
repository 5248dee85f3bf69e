/*
Package log provides structured logging for workspaces using zerolog.

Operational events (reconciliation actions, sweep outcomes, adapter
failures) go through this logger; command results still print to stdout
so they stay pipeable. The default output is a human-readable console
writer on stderr; JSON output can be selected for log shippers.

Initialize once at process start:

	log.Init(log.Config{Level: "info"})

and derive per-component loggers:

	logger := log.WithComponent("sweeper")
	logger.Info().Str("workspace", key).Msg("destroyed")
*/
package log
