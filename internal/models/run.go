// Frame-Connect - Photo Sync for Remote Display Devices
// Copyright 2026 C. Malpass (cmalpass)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/cmalpass/frame-connect

// Package models provides data structures for the Frame-Connect application.
//
// run.go - Reconciliation Run Models
package models

import "time"

// TriggerKind identifies what started a run.
type TriggerKind string

const (
	// TriggerManual marks runs started through the API or CLI.
	TriggerManual TriggerKind = "manual"

	// TriggerSchedule marks runs fired by the cron scheduler.
	TriggerSchedule TriggerKind = "schedule"
)

// RunResult is the outcome of one reconciliation run for one mapping.
//
// Success means every photo the run attempted was handled without error;
// a run that adds nothing because everything was already in place is still
// a success. Per-photo failures land in Errors and flip Success to false
// without aborting the rest of the run.
type RunResult struct {
	// MappingID is the mapping this run reconciled.
	MappingID string `json:"mapping_id"`

	// RunID uniquely identifies the run (UUIDv4).
	RunID string `json:"run_id"`

	// Trigger records what started the run.
	Trigger TriggerKind `json:"trigger"`

	// Success is true when Errors is empty.
	Success bool `json:"success"`

	// Added counts photos transferred to the device this run.
	Added int `json:"added"`

	// Removed counts photos deleted from the device this run.
	Removed int `json:"removed"`

	// Skipped counts photos already in place, whether confirmed by the
	// ledger or by a matching remote content hash.
	Skipped int `json:"skipped"`

	// Errors holds one message per failed photo, plus the terminal error
	// when the run could not start its passes at all.
	Errors []string `json:"errors,omitempty"`

	// StartedAt is when the run began.
	StartedAt time.Time `json:"started_at"`

	// FinishedAt is when the run completed.
	FinishedAt time.Time `json:"finished_at"`
}

// Duration returns the wall-clock duration of the run.
func (r *RunResult) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

// Record converts the result into its persisted run-history form.
func (r *RunResult) Record() RunRecord {
	return RunRecord{
		RunID:      r.RunID,
		MappingID:  r.MappingID,
		Trigger:    r.Trigger,
		Success:    r.Success,
		Added:      r.Added,
		Removed:    r.Removed,
		Skipped:    r.Skipped,
		Errors:     r.Errors,
		StartedAt:  r.StartedAt,
		FinishedAt: r.FinishedAt,
		DurationMS: r.Duration().Milliseconds(),
	}
}

// RunRecord is the persisted projection of a RunResult, stored newest-first
// in the per-mapping run history.
type RunRecord struct {
	RunID      string      `json:"run_id"`
	MappingID  string      `json:"mapping_id"`
	Trigger    TriggerKind `json:"trigger"`
	Success    bool        `json:"success"`
	Added      int         `json:"added"`
	Removed    int         `json:"removed"`
	Skipped    int         `json:"skipped"`
	Errors     []string    `json:"errors,omitempty"`
	StartedAt  time.Time   `json:"started_at"`
	FinishedAt time.Time   `json:"finished_at"`
	DurationMS int64       `json:"duration_ms"`
}
