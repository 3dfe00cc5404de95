// Frame-Connect - Photo Sync for Remote Display Devices
// Copyright 2026 C. Malpass (cmalpass)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/cmalpass/frame-connect

// HTTP request bodies and query parameters with go-playground/validator
// tags. Handlers decode into these, validate, and only then touch the
// store or scheduler.

package api

// CreateMappingRequest is the request body for POST /api/v1/mappings.
//
// Fields:
//   - SourceID: Configured source the photos come from
//   - DeviceID: Configured device the photos go to
//   - Policy: Reconciliation policy, mirror_all or add_only (default mirror_all)
//   - AlbumID: Optional album narrowing the source's photo set
//   - MaxPhotos: Cap on photos considered per run, 0 means uncapped
//   - Schedule: Optional five-field cron expression
//   - Active: Whether the mapping may run (default true via pointer)
type CreateMappingRequest struct {
	SourceID  string `json:"source_id" validate:"required,min=1,max=128"`
	DeviceID  string `json:"device_id" validate:"required,min=1,max=128"`
	Policy    string `json:"policy" validate:"omitempty,oneof=mirror_all add_only"`
	AlbumID   string `json:"album_id" validate:"omitempty,max=256"`
	MaxPhotos int    `json:"max_photos" validate:"min=0,max=100000"`
	Schedule  string `json:"schedule" validate:"omitempty,cron"`
	Active    *bool  `json:"active"`
}

// RunsQuery is the validated query parameters for
// GET /api/v1/mappings/{id}/runs.
type RunsQuery struct {
	Limit int `validate:"min=1,max=100"`
}
