// Frame-Connect - Photo Sync for Remote Display Devices
// Copyright 2026 C. Malpass (cmalpass)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/cmalpass/frame-connect

// Package models provides data structures for the Frame-Connect application.
//
// ledger.go - Synced-Photo Ledger Models
//
// The ledger is the engine's durable memory of what it placed where. Every
// entry is scoped to one mapping: the same photo synced through two mappings
// produces two entries, and the removal pass only ever acts on entries owned
// by the mapping being reconciled.
package models

import "time"

// LedgerEntry records that a run placed (or confirmed) one photo on one
// device under one mapping.
type LedgerEntry struct {
	// MappingID scopes the entry to its mapping.
	MappingID string `json:"mapping_id"`

	// PhotoID is the source-scoped stable photo identifier.
	PhotoID string `json:"photo_id"`

	// Locator is the source-private handle the photo was fetched with,
	// kept for diagnostics.
	Locator string `json:"locator,omitempty"`

	// RemotePath is the content-addressed path on the device.
	RemotePath string `json:"remote_path"`

	// ContentHash is the hash of the transferred bytes, lowercase hex.
	ContentHash string `json:"content_hash"`

	// Size is the transferred size in bytes.
	Size int64 `json:"size,omitempty"`

	// PlacedAt is when the entry was written.
	PlacedAt time.Time `json:"placed_at"`
}
