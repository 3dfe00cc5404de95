// Frame-Connect - Photo Sync for Remote Display Devices
// Copyright 2026 C. Malpass (cmalpass)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/cmalpass/frame-connect

/*
Package engine reconciles one mapping's source photo set against its display
device and the synced-photo ledger.

A run is two passes over ledger truth:

 1. Addition pass. Every listed photo not in the ledger is downloaded,
    processed, hashed, and placed at the content-addressed path
    <base_dir>/<hash>.<ext>. If the device already holds those exact bytes
    (same hash at the same path, typically from an identical photo) the
    transfer is skipped and only the ledger entry is written.
 2. Removal pass (mirror_all only). Every ledger entry whose photo is no
    longer listed has its remote file deleted and its entry dropped. A remote
    file still referenced by another entry is never deleted, and an entry is
    never dropped before its remote delete has confirmed, so an interrupted
    pass retries cleanly on the next run.

# Failure model

Failures come in two grades. Terminal failures (unknown mapping, source, or
device; device unreachable; base directory uncreatable; listing failure)
abort the run before any photo work. Per-photo failures (download, process,
hash, transfer, ledger write) are appended to the run result and the run
moves on to the next photo; one broken photo never aborts a batch. A run is
successful exactly when it finished with zero errors.

The run result is returned to the caller and projected into the per-mapping
run history. A history write failure is logged but never fails the run.

# Concurrency

The engine itself holds no run state; it is safe for concurrent runs of
different mappings. Serializing runs of the same mapping is the scheduler's
job.
*/
package engine
