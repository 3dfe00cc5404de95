// Frame-Connect - Photo Sync for Remote Display Devices
// Copyright 2026 C. Malpass (cmalpass)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/cmalpass/frame-connect

package api

import (
	"net/http"
	"sort"

	"github.com/cmalpass/frame-connect/internal/models"
	"github.com/cmalpass/frame-connect/internal/source"
	ws "github.com/cmalpass/frame-connect/internal/websocket"
)

// DeviceStatusResponse describes one configured device and its probed state.
// Storage is omitted when the device is offline or its report is unusable.
type DeviceStatusResponse struct {
	models.DeviceHandle
	Ready   bool                 `json:"ready"`
	Storage *models.StorageUsage `json:"storage,omitempty"`
}

// ListDevices handles GET /api/v1/devices. Every configured device is
// probed, so with offline devices the response takes up to the readiness
// timeout per device.
func (h *Handler) ListDevices(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	devices := h.devices.List()
	out := make([]DeviceStatusResponse, 0, len(devices))
	for _, dev := range devices {
		status := DeviceStatusResponse{DeviceHandle: dev}
		if h.transport != nil {
			status.Ready = h.transport.IsReady(r.Context(), dev)
			if status.Ready {
				usage, err := h.transport.StorageUsage(r.Context(), dev, dev.BaseDir)
				if err != nil {
					h.logger.Debug().Err(err).Str("device_id", dev.ID).Msg("Storage usage probe failed")
				} else {
					status.Storage = usage
				}
			}
		}
		out = append(out, status)
	}

	rw.SuccessList(out, len(out))
}

// SourceStatusResponse describes one configured photo source.
type SourceStatusResponse struct {
	ID        string      `json:"id"`
	Name      string      `json:"name,omitempty"`
	Kind      source.Kind `json:"kind"`
	Connected bool        `json:"connected"`
}

// ListSources handles GET /api/v1/sources. Connected reflects a live probe,
// a directory check for local sources and a server round-trip for immich.
func (h *Handler) ListSources(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	names := make(map[string]string)
	if h.config != nil {
		for _, sc := range h.config.Sources {
			names[sc.ID] = sc.Name
		}
	}

	out := make([]SourceStatusResponse, 0, len(h.sources))
	for id, src := range h.sources {
		out = append(out, SourceStatusResponse{
			ID:        id,
			Name:      names[id],
			Kind:      src.Kind(),
			Connected: src.TestConnection(r.Context()),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })

	rw.SuccessList(out, len(out))
}

// WebSocket handles GET /api/v1/ws, upgrading the connection and attaching
// it to the hub for sync event broadcasts.
func (h *Handler) WebSocket(w http.ResponseWriter, r *http.Request) {
	if h.hub == nil {
		NewResponseWriter(w, r).ServiceUnavailable("Event stream is not running")
		return
	}

	conn, err := h.getUpgrader().Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the HTTP error response.
		h.logger.Warn().Err(err).Str("remote_addr", r.RemoteAddr).Msg("WebSocket upgrade failed")
		return
	}

	client := ws.NewClient(h.hub, conn)
	h.hub.Register <- client
	client.Start()
}
