// Frame-Connect - Photo Sync for Remote Display Devices
// Copyright 2026 C. Malpass (cmalpass)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/cmalpass/frame-connect

package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/cmalpass/frame-connect/internal/metrics"
	"github.com/cmalpass/frame-connect/internal/models"
	"github.com/cmalpass/frame-connect/internal/store"
	"github.com/cmalpass/frame-connect/internal/validation"
)

// ListMappings handles GET /api/v1/mappings.
func (h *Handler) ListMappings(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	mappings, err := h.store.ListMappings(r.Context())
	if err != nil {
		rw.StoreError(err)
		return
	}

	rw.SuccessList(mappings, len(mappings))
}

// CreateMapping handles POST /api/v1/mappings.
func (h *Handler) CreateMapping(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	var req CreateMappingRequest
	if err := decodeJSON(w, r, &req); err != nil {
		rw.BadRequest("Invalid JSON body")
		return
	}

	if verr := validation.ValidateStruct(&req); verr != nil {
		apiErr := verr.ToAPIError()
		rw.ValidationError(apiErr.Message, apiErr.Details)
		return
	}

	// Source and device must be configured; mappings cannot point at
	// identifiers the daemon does not know.
	if _, ok := h.sources[req.SourceID]; !ok {
		rw.BadRequest("Unknown source: " + req.SourceID)
		return
	}
	if _, err := h.devices.Resolve(req.DeviceID); err != nil {
		rw.BadRequest("Unknown device: " + req.DeviceID)
		return
	}

	policy := models.Policy(req.Policy)
	if req.Policy == "" {
		policy = models.PolicyMirrorAll
	}
	active := req.Active == nil || *req.Active

	mapping := &models.Mapping{
		ID:        uuid.New().String(),
		SourceID:  req.SourceID,
		DeviceID:  req.DeviceID,
		Policy:    policy,
		AlbumID:   req.AlbumID,
		MaxPhotos: req.MaxPhotos,
		Schedule:  req.Schedule,
		Active:    active,
	}

	if err := h.store.PutMapping(r.Context(), mapping); err != nil {
		if errors.Is(err, store.ErrPairConflict) {
			rw.Conflict(err.Error())
			return
		}
		rw.StoreError(err)
		return
	}

	if mapping.Active && mapping.Scheduled() {
		if err := h.scheduler.Schedule(mapping); err != nil {
			// The cron validator runs the same grammar, so this only
			// fires if the two ever drift apart.
			h.logger.Warn().Err(err).Str("mapping_id", mapping.ID).Msg("Mapping stored but not scheduled")
		}
	}

	h.logger.Info().
		Str("mapping_id", mapping.ID).
		Str("source_id", mapping.SourceID).
		Str("device_id", mapping.DeviceID).
		Str("policy", string(mapping.Policy)).
		Msg("Mapping created")

	rw.Created(mapping)
}

// GetMapping handles GET /api/v1/mappings/{id}.
func (h *Handler) GetMapping(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	id := chi.URLParam(r, "id")

	mapping, err := h.store.GetMapping(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrMappingNotFound) {
			rw.NotFound("Mapping not found: " + id)
			return
		}
		rw.StoreError(err)
		return
	}

	rw.Success(mapping)
}

// DeleteMapping handles DELETE /api/v1/mappings/{id}. The mapping's ledger
// and run history go with it; photos already on the device stay.
func (h *Handler) DeleteMapping(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	id := chi.URLParam(r, "id")

	if _, err := h.store.GetMapping(r.Context(), id); err != nil {
		if errors.Is(err, store.ErrMappingNotFound) {
			rw.NotFound("Mapping not found: " + id)
			return
		}
		rw.StoreError(err)
		return
	}

	h.scheduler.Unschedule(id)

	if err := h.store.DeleteMapping(r.Context(), id); err != nil {
		rw.StoreError(err)
		return
	}
	metrics.DropMapping(id)

	h.logger.Info().Str("mapping_id", id).Msg("Mapping deleted")
	rw.NoContent()
}

// TriggerSync handles POST /api/v1/mappings/{id}/sync. The call blocks
// until the run finishes; when a run for the mapping is already in flight
// the caller joins it and both receive the same result.
func (h *Handler) TriggerSync(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	id := chi.URLParam(r, "id")

	mapping, err := h.store.GetMapping(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrMappingNotFound) {
			rw.NotFound("Mapping not found: " + id)
			return
		}
		rw.StoreError(err)
		return
	}
	if !mapping.Active {
		rw.Conflict("Mapping is inactive")
		return
	}

	result := h.scheduler.Trigger(r.Context(), id, models.TriggerManual)
	rw.Success(result)
}

// MappingRuns handles GET /api/v1/mappings/{id}/runs. History comes back
// newest first, capped by the limit query parameter.
func (h *Handler) MappingRuns(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	id := chi.URLParam(r, "id")

	if _, err := h.store.GetMapping(r.Context(), id); err != nil {
		if errors.Is(err, store.ErrMappingNotFound) {
			rw.NotFound("Mapping not found: " + id)
			return
		}
		rw.StoreError(err)
		return
	}

	def, maxLimit := h.pageBounds()
	limit := def
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			rw.BadRequest("Invalid limit parameter: " + sanitizeLogValue(raw))
			return
		}
		query := RunsQuery{Limit: parsed}
		if verr := validation.ValidateStruct(&query); verr != nil {
			apiErr := verr.ToAPIError()
			rw.ValidationError(apiErr.Message, apiErr.Details)
			return
		}
		limit = parsed
		if limit > maxLimit {
			limit = maxLimit
		}
	}

	runs, err := h.store.Runs(r.Context(), id, limit)
	if err != nil {
		rw.StoreError(err)
		return
	}

	rw.SuccessList(runs, len(runs))
}

// MappingStatusResponse is the payload for GET /api/v1/mappings/{id}/status.
type MappingStatusResponse struct {
	Mapping       *models.Mapping   `json:"mapping"`
	LedgerEntries int               `json:"ledger_entries"`
	Running       bool              `json:"running"`
	LastRun       *models.RunRecord `json:"last_run,omitempty"`
	NextRun       *time.Time        `json:"next_run,omitempty"`
}

// MappingStatus handles GET /api/v1/mappings/{id}/status.
func (h *Handler) MappingStatus(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	id := chi.URLParam(r, "id")

	mapping, err := h.store.GetMapping(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrMappingNotFound) {
			rw.NotFound("Mapping not found: " + id)
			return
		}
		rw.StoreError(err)
		return
	}

	count, err := h.store.CountEntries(r.Context(), id)
	if err != nil {
		rw.StoreError(err)
		return
	}

	status := MappingStatusResponse{
		Mapping:       mapping,
		LedgerEntries: count,
		Running:       h.scheduler.IsRunning(id),
	}

	if last, err := h.store.LastRun(r.Context(), id); err == nil && last != nil {
		status.LastRun = last
	}

	for _, task := range h.scheduler.GetScheduledTasks() {
		if task.MappingID == id {
			next := task.NextRun
			status.NextRun = &next
			break
		}
	}

	rw.Success(status)
}

// pageBounds returns the default and maximum page sizes, honoring the
// API config when one is wired in.
func (h *Handler) pageBounds() (def, maxLimit int) {
	def, maxLimit = 20, 100
	if h.config != nil {
		if h.config.API.DefaultPageSize > 0 {
			def = h.config.API.DefaultPageSize
		}
		if h.config.API.MaxPageSize > 0 {
			maxLimit = h.config.API.MaxPageSize
		}
	}
	return def, maxLimit
}
