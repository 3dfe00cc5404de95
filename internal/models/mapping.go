// Frame-Connect - Photo Sync for Remote Display Devices
// Copyright 2026 C. Malpass (cmalpass)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/cmalpass/frame-connect

// Package models provides data structures for the Frame-Connect application.
//
// mapping.go - Sync Mapping Models
//
// A mapping pairs one photo source with one display device and carries the
// reconciliation policy applied whenever that pair is synced. Mappings are
// the unit of scheduling, of single-flight execution, and of ledger scoping.
package models

import (
	"fmt"
	"time"
)

// ============================================================================
// Reconciliation Policy
// ============================================================================

// Policy defines how a sync run reconciles the device against the source.
type Policy string

const (
	// PolicyMirrorAll keeps the device exactly in step with the source:
	// photos missing from the device are added, and photos this mapping
	// previously placed that have left the source are removed.
	PolicyMirrorAll Policy = "mirror_all"

	// PolicyAddOnly only ever adds photos. Nothing is deleted from the
	// device, even when photos disappear from the source.
	PolicyAddOnly Policy = "add_only"
)

// ValidPolicies contains all valid reconciliation policies.
var ValidPolicies = []Policy{
	PolicyMirrorAll,
	PolicyAddOnly,
}

// IsValidPolicy checks if a policy value is valid.
func IsValidPolicy(p Policy) bool {
	for _, valid := range ValidPolicies {
		if p == valid {
			return true
		}
	}
	return false
}

// Deletes reports whether the policy permits the removal pass.
func (p Policy) Deletes() bool {
	return p == PolicyMirrorAll
}

// ============================================================================
// Mapping
// ============================================================================

// Mapping binds a photo source to a display device under a reconciliation
// policy. At most one active mapping may exist per (source, device) pair;
// the store enforces that invariant transactionally.
type Mapping struct {
	// ID is the unique mapping identifier (UUIDv4).
	ID string `json:"id"`

	// SourceID identifies the configured photo source.
	SourceID string `json:"source_id" validate:"required"`

	// DeviceID identifies the configured display device.
	DeviceID string `json:"device_id" validate:"required"`

	// Policy selects mirror_all or add_only reconciliation.
	Policy Policy `json:"policy" validate:"required"`

	// AlbumID optionally narrows the source to a single album. Empty means
	// the source's full photo set.
	AlbumID string `json:"album_id,omitempty"`

	// MaxPhotos caps how many photos the run considers, applied after the
	// source's deterministic ordering. Zero or negative means uncapped.
	MaxPhotos int `json:"max_photos,omitempty" validate:"min=0"`

	// Schedule is an optional five-field cron expression. Empty means the
	// mapping only runs when triggered manually.
	Schedule string `json:"schedule,omitempty"`

	// Active gates both scheduling and manual triggering. Inactive mappings
	// keep their ledger but never run.
	Active bool `json:"active"`

	// CreatedAt is when the mapping was created.
	CreatedAt time.Time `json:"created_at"`

	// UpdatedAt is when the mapping was last modified.
	UpdatedAt time.Time `json:"updated_at"`
}

// Validate checks the mapping's field-level invariants. Store and API layers
// call this before persisting.
func (m *Mapping) Validate() error {
	if m.SourceID == "" {
		return fmt.Errorf("mapping %s: source_id is required", m.ID)
	}
	if m.DeviceID == "" {
		return fmt.Errorf("mapping %s: device_id is required", m.ID)
	}
	if !IsValidPolicy(m.Policy) {
		return fmt.Errorf("mapping %s: invalid policy %q", m.ID, m.Policy)
	}
	if m.MaxPhotos < 0 {
		return fmt.Errorf("mapping %s: max_photos must not be negative", m.ID)
	}
	return nil
}

// PairKey returns the uniqueness key for the (source, device) pair.
func (m *Mapping) PairKey() string {
	return m.SourceID + "|" + m.DeviceID
}

// Scheduled reports whether the mapping carries a cron schedule.
func (m *Mapping) Scheduled() bool {
	return m.Schedule != ""
}
