// Frame-Connect - Photo Sync for Remote Display Devices
// Copyright 2026 C. Malpass (cmalpass)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/cmalpass/frame-connect

// Package models provides data structures for the Frame-Connect application.
//
// photo.go - Source Photo Models and Remote Path Derivation
package models

import (
	"path"
	"strings"
	"time"
)

// SourcePhoto is a photo as reported by a photo source. The ID must be stable
// across listings of the same source; the Locator is opaque to everything but
// the source that produced it (a filesystem path, an asset UUID, etc.).
type SourcePhoto struct {
	// ID is the source-scoped stable identifier.
	ID string `json:"id"`

	// Name is the human-readable file name, used for extension fallback.
	Name string `json:"name"`

	// Locator is the source-private handle used to download the photo.
	Locator string `json:"locator"`

	// MimeType is the reported content type (e.g. "image/jpeg").
	MimeType string `json:"mime_type,omitempty"`

	// Size is the reported size in bytes, zero when unknown.
	Size int64 `json:"size,omitempty"`

	// Width is the pixel width when the source reports it.
	Width *int `json:"width,omitempty"`

	// Height is the pixel height when the source reports it.
	Height *int `json:"height,omitempty"`

	// TakenAt is the capture timestamp when known. Sources order their
	// listings by this field first, so it drives maxPhotos truncation.
	TakenAt *time.Time `json:"taken_at,omitempty"`

	// ContentHash is a source-reported hash of the original bytes, in
	// whatever algorithm the source natively uses. Advisory only: remote
	// paths always derive from a fresh hash of the processed artifact,
	// because processing may change the bytes.
	ContentHash string `json:"content_hash,omitempty"`
}

// Album is a browsable photo grouping exposed by a source.
type Album struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	PhotoCount int    `json:"photo_count"`
}

// ============================================================================
// Remote Path Derivation
// ============================================================================

var mimeExtensions = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/gif":  ".gif",
	"image/webp": ".webp",
	"image/heic": ".heic",
	"image/heif": ".heic",
	"image/bmp":  ".bmp",
}

// ExtForMime returns the canonical file extension (with leading dot) for a
// MIME type, or the empty string when the type is unknown.
func ExtForMime(mimeType string) string {
	base := mimeType
	if i := strings.IndexByte(base, ';'); i >= 0 {
		base = base[:i]
	}
	return mimeExtensions[strings.ToLower(strings.TrimSpace(base))]
}

// ExtForName returns the lowercased extension of a file name (with leading
// dot), or the empty string when the name has none.
func ExtForName(name string) string {
	ext := path.Ext(name)
	if ext == "." {
		return ""
	}
	return strings.ToLower(ext)
}

// RemotePathFor derives the content-addressed path of a photo on a device.
// The name encodes only the content hash and an extension, so identical bytes
// land on identical paths regardless of which source (or which run) placed
// them. Device paths are POSIX, hence path.Join rather than filepath.Join.
func RemotePathFor(baseDir, contentHash, ext string) string {
	if ext != "" && !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return path.Join(baseDir, contentHash+ext)
}
