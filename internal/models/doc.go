// Frame-Connect - Photo Sync for Remote Display Devices
// Copyright 2026 C. Malpass (cmalpass)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/cmalpass/frame-connect

/*
Package models defines data structures for the Frame-Connect application.

This package contains the domain models shared by the sync engine, the
persistence layer, the scheduler, and the HTTP API. It serves as the single
source of truth for data structure definitions.

Key Components:

  - Mapping: a (source, device) pair with a reconciliation policy and schedule
  - SourcePhoto: a photo as reported by a photo source
  - LedgerEntry: the durable record that a photo was placed on a device
  - RunResult: the outcome of one reconciliation run
  - DeviceHandle: a configured display device and how to reach it

Model Categories:

1. Sync Configuration:
  - Mapping: policy (mirror_all, add_only), photo cap, cron schedule
  - DeviceHandle: transport (usb, tcp), serial or address, base directory

2. Sync State:
  - LedgerEntry: mapping-scoped record of a placed photo
  - RunRecord: persisted run history entry

3. Source Data:
  - SourcePhoto: stable ID, locator, dimensions, capture time
  - Album: a browsable grouping exposed by a source

Remote Path Derivation:

Files are addressed on devices by content, not by source name:

	remote := models.RemotePathFor("/sdcard/Pictures/Frame", hash, ".jpg")
	// -> /sdcard/Pictures/Frame/9e107d9d372bb6826bd81d3542a419d6.jpg

Two different source photos with identical bytes resolve to the same remote
path, so re-transfers and duplicates are avoided without any device-side
database.

Thread Safety:

All models are plain data structures, safe for concurrent reads. Mutation is
owned by the store and engine packages.

JSON Marshaling:

All models carry snake_case JSON tags and omitempty on optional fields.
time.Time fields use RFC3339.

See Also:

  - internal/store: persistence for mappings, ledger entries, and run history
  - internal/engine: the reconciliation passes that produce RunResults
  - internal/api: HTTP handlers returning these models
*/
package models
