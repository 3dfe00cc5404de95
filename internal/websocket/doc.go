// Frame-Connect - Photo Sync for Remote Display Devices
// Copyright 2026 C. Malpass (cmalpass)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/cmalpass/frame-connect

/*
Package websocket pushes run events to connected dashboard clients.

The hub fans every broadcast out to all registered clients. The engine
publishes a sync_completed message with the full run result after each
reconciliation; clients use it to refresh status without polling.

Delivery is best-effort. Each client has a bounded send queue, and a client
that cannot drain it in time is evicted rather than allowed to stall the
broadcast path. A full hub queue drops the message. Nothing a frame needs
rides on these events, so losing one costs a dashboard refresh at most.

The hub runs under the supervision tree: Run blocks until the context is
canceled, then closes every client so a restart begins clean.
*/
package websocket
