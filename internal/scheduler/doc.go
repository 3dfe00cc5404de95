// Frame-Connect - Photo Sync for Remote Display Devices
// Copyright 2026 C. Malpass (cmalpass)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/cmalpass/frame-connect

/*
Package scheduler fires reconciliation runs on cron cadences and guarantees
at most one concurrent run per mapping.

# Schedules

Mappings carry an optional five-field cron expression (minute, hour,
day-of-month, month, day-of-week), evaluated at minute granularity in the
host's local time zone. A tick loop wakes on a fixed check interval and
fires every registered task whose next-run time has passed. An invalid
expression is rejected at registration and the mapping stays reachable
through manual triggers only.

# Single-Flight

Trigger starts a run for a mapping or, when one is already executing, waits
for that run and returns its result instead of starting a second. Runs for
different mappings are fully independent. A fired run detaches from the
triggering caller's context and gets its own deadline from the configured
run timeout, so a joined run does not die with the first caller's request.

# Shutdown

Stop halts the tick loop and waits for runs the scheduler spawned; it never
preempts a run in progress. A task that came due while its mapping was busy
fires on the first tick after the running reconciliation completes.
*/
package scheduler
