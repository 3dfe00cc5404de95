// Frame-Connect - Photo Sync for Remote Display Devices
// Copyright 2026 C. Malpass (cmalpass)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/cmalpass/frame-connect

// Package source provides the photo-source contract and its two
// implementations: a local filesystem walker and an Immich server client.
//
// Sources are constructed once at startup from configuration via New, which
// dispatches on the closed set of kinds. There is no runtime registry; an
// unknown kind fails construction, not a later sync run.
//
// Every source lists photos in a deterministic order: capture time
// (EXIF DateTimeOriginal for local files, the server-reported timestamp for
// Immich) ascending, then file name. Mappings with a photo cap truncate that
// ordering, so determinism here is what makes the cap stable across runs.
//
// The Immich client is wrapped in a circuit breaker and a client-side rate
// limiter: a photo server that starts failing or throttling must not have
// every scheduled run pile more requests onto it.
package source
