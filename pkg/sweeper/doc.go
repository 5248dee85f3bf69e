/*
Package sweeper implements the garbage collector.

A sweep scans every record and hands each one to the engine's SweepOne:
workspaces past their deletion timestamp are destroyed, expired volumes
get read-only enforced, and record/volume mismatches are reconciled.
Records are processed independently - a busy volume or a key held by a
concurrent user mutation is recorded in the report and retried on the
next sweep, never aborting the rest.

The sweep is a one-shot pass intended to be driven by cron or a systemd
timer through the clean command; there is no long-running scheduler in
the process.
*/
package sweeper
