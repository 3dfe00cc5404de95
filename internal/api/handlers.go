// Frame-Connect - Photo Sync for Remote Display Devices
// Copyright 2026 C. Malpass (cmalpass)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/cmalpass/frame-connect

package api

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/cmalpass/frame-connect/internal/adb"
	"github.com/cmalpass/frame-connect/internal/config"
	"github.com/cmalpass/frame-connect/internal/device"
	"github.com/cmalpass/frame-connect/internal/logging"
	"github.com/cmalpass/frame-connect/internal/scheduler"
	"github.com/cmalpass/frame-connect/internal/source"
	"github.com/cmalpass/frame-connect/internal/store"
	ws "github.com/cmalpass/frame-connect/internal/websocket"
)

// maxBodyBytes caps request body size. Mapping payloads are tiny; anything
// larger is a mistake or an attack.
const maxBodyBytes = 1 << 20

// Handler contains dependencies for API handlers.
//
// Handler methods are split across files:
//   - handlers.go: Handler struct, constructor, shared helpers (this file)
//   - handlers_health.go: Liveness and readiness probes
//   - handlers_mappings.go: Mapping CRUD, manual triggers, run history
//   - handlers_system.go: Device and source inventory, websocket upgrade
type Handler struct {
	store     *store.Store
	scheduler *scheduler.Scheduler
	transport adb.Transport
	devices   *device.Registry
	sources   map[string]source.Source
	hub       *ws.Hub
	config    *config.Config
	startTime time.Time
	logger    zerolog.Logger
}

// NewHandler creates the API handler with all its dependencies.
func NewHandler(
	st *store.Store,
	sched *scheduler.Scheduler,
	transport adb.Transport,
	devices *device.Registry,
	sources map[string]source.Source,
	hub *ws.Hub,
	cfg *config.Config,
) *Handler {
	return &Handler{
		store:     st,
		scheduler: sched,
		transport: transport,
		devices:   devices,
		sources:   sources,
		hub:       hub,
		config:    cfg,
		startTime: time.Now(),
		logger:    logging.With().Str("component", "api").Logger(),
	}
}

// decodeJSON reads a size-capped JSON request body into dst.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return fmt.Errorf("decode request body: %w", err)
	}
	return nil
}

// getUpgrader creates a WebSocket upgrader with origin checking and a
// handshake timeout against slow clients.
func (h *Handler) getUpgrader() websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:   1024,
		WriteBufferSize:  1024,
		CheckOrigin:      h.checkWebSocketOrigin,
		HandshakeTimeout: 10 * time.Second,
	}
}

// checkWebSocketOrigin validates WebSocket connection origins. Browser
// websockets always send Origin; an empty one is rejected because allowing
// it would bypass CORS entirely.
func (h *Handler) checkWebSocketOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		h.logger.Warn().Msg("WebSocket connection rejected: missing Origin header")
		return false
	}

	// Nil config allows everything, which only tests rely on.
	if h.config == nil {
		return true
	}

	for _, allowed := range h.config.API.CORSOrigins {
		if allowed == "*" || allowed == origin {
			return true
		}
	}

	h.logger.Warn().
		Str("origin", sanitizeLogValue(origin)).
		Msg("WebSocket connection rejected from unauthorized origin")
	return false
}

// sanitizeLogValue strips newlines from attacker-controlled header values
// before they reach the log.
func sanitizeLogValue(v string) string {
	v = strings.ReplaceAll(v, "\n", "")
	v = strings.ReplaceAll(v, "\r", "")
	if len(v) > 256 {
		v = v[:256]
	}
	return v
}
