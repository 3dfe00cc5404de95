// Frame-Connect - Photo Sync for Remote Display Devices
// Copyright 2026 C. Malpass (cmalpass)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/cmalpass/frame-connect

// Package store provides durable persistence for mappings, the synced-photo
// ledger, and run history using BadgerDB.
//
// # Key Layout
//
// All records share one database, separated by key prefix:
//
//	mapping:<id>                         Mapping record (JSON)
//	mappingpair:<sourceID>|<deviceID>    Active-mapping index, value = mapping ID
//	ledger:<mappingID>:<photoID>         Synced-photo ledger entry (JSON)
//	runlog:<mappingID>:<seq>             Run record (JSON), seq zero-padded
//	runseq:<mappingID>                   Badger sequence backing the run log
//	srcsync:<sourceID>                   Last successful sync time per source
//
// # Invariants
//
// At most one active mapping exists per (source, device) pair. PutMapping
// enforces this inside a single transaction by claiming the pair index key;
// a second active mapping for the same pair fails with ErrPairConflict.
//
// Ledger entries are scoped to their mapping. DeleteMapping cascades: the
// mapping record, its pair-index claim, its ledger entries, and its run log
// all go in one transaction, so a half-deleted mapping is never observable.
//
// # Why BadgerDB
//
// Pure Go, ACID transactions, crash-safe, and an embedded single-file
// deployment story that suits a daemon running next to a USB cable. The
// value log needs periodic garbage collection; RunGC is called on an
// interval by the store GC service.
package store
