// Frame-Connect - Photo Sync for Remote Display Devices
// Copyright 2026 C. Malpass (cmalpass)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/cmalpass/frame-connect

/*
Package api provides the ops HTTP surface using the Chi router.

The daemon is useful without this package (mappings can ship in config and
run on their schedules), but the API is how operators watch and steer it:
inspect mappings, trigger runs, read run history, and follow live events
over a websocket.

# Endpoints

Probes and observability sit at the root:

	GET /healthz   liveness, always 200 while the process runs
	GET /readyz    readiness, 503 until the store and transport answer
	GET /metrics   Prometheus metrics

Everything else lives under /api/v1:

	GET    /api/v1/mappings              list mappings
	POST   /api/v1/mappings              create a mapping
	GET    /api/v1/mappings/{id}         fetch one mapping
	DELETE /api/v1/mappings/{id}         delete a mapping and its history
	POST   /api/v1/mappings/{id}/sync    run now (joins an in-flight run)
	GET    /api/v1/mappings/{id}/runs    run history, newest first
	GET    /api/v1/mappings/{id}/status  ledger count, last run, next fire
	GET    /api/v1/devices               devices with readiness and storage
	GET    /api/v1/sources               sources with connectivity
	GET    /api/v1/ws                    websocket event stream

# Response Format

Every JSON response uses the same envelope: success flag, data payload,
error object with machine-readable code, and metadata carrying the request
ID and processing duration. See response.go.

# Middleware

The global stack adds request IDs (propagated into the logging context),
panic recovery, real-IP resolution, and CORS. API routes add Prometheus
instrumentation and IP rate limiting; the manual sync trigger carries a
stricter limit because each call can start a device transfer. When an API
key is configured, all /api/v1 routes require it in X-Api-Key (compared in
constant time); probes and /metrics stay open for schedulers and scrapers.
*/
package api
