// Frame-Connect - Photo Sync for Remote Display Devices
// Copyright 2026 C. Malpass (cmalpass)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/cmalpass/frame-connect

package api

import (
	"net/http"
	"time"
)

// HealthLive handles liveness probe requests. It answers 200 whenever the
// process is up, regardless of dependencies.
func (h *Handler) HealthLive(w http.ResponseWriter, r *http.Request) {
	NewResponseWriter(w, r).Success(map[string]any{
		"alive":  true,
		"uptime": time.Since(h.startTime).Seconds(),
	})
}

// HealthReady handles readiness probe requests. Ready means the store
// answers reads and the adb transport responds; until both do, syncs
// cannot succeed and the probe answers 503.
func (h *Handler) HealthReady(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	storeReady := h.store != nil && h.store.Ping(ctx) == nil
	transportReady := h.transport != nil && h.transport.Ping(ctx) == nil
	ready := storeReady && transportReady

	statusCode := http.StatusOK
	if !ready {
		statusCode = http.StatusServiceUnavailable
	}

	rw := NewResponseWriter(w, r)
	data := map[string]any{
		"store_ready":     storeReady,
		"transport_ready": transportReady,
		"ready_to_serve":  ready,
		"uptime":          time.Since(h.startTime).Seconds(),
	}
	if ready {
		rw.Success(data)
		return
	}
	rw.ErrorWithDetails(statusCode, ErrCodeServiceUnavailable, "Not ready", data)
}
