// Frame-Connect - Photo Sync for Remote Display Devices
// Copyright 2026 C. Malpass (cmalpass)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/cmalpass/frame-connect

package source

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/cmalpass/frame-connect/internal/config"
	"github.com/cmalpass/frame-connect/internal/models"
)

// Kind identifies a source implementation.
type Kind string

const (
	// KindLocal reads photos from a directory on the daemon's filesystem.
	KindLocal Kind = "local"

	// KindImmich reads photos from an Immich server over HTTP.
	KindImmich Kind = "immich"
)

// ValidKinds contains all valid source kinds.
var ValidKinds = []Kind{
	KindLocal,
	KindImmich,
}

// IsValidKind checks if a source kind is valid.
func IsValidKind(k Kind) bool {
	for _, valid := range ValidKinds {
		if k == valid {
			return true
		}
	}
	return false
}

// ErrAlbumNotFound is returned when a listing names an album the source does
// not have.
var ErrAlbumNotFound = errors.New("album not found")

// SyncMarker persists per-source sync marks. The store implements it.
type SyncMarker interface {
	MarkSourceSynced(ctx context.Context, sourceID string, t time.Time) error
}

// Source is the photo-provider contract the reconciliation engine consumes.
type Source interface {
	// ID returns the configured source identifier.
	ID() string

	// Kind returns the source implementation kind.
	Kind() Kind

	// TestConnection reports whether the source is reachable. Never returns
	// an error; an unreachable source is simply not connected.
	TestConnection(ctx context.Context) bool

	// ListAlbums returns the source's browsable albums.
	ListAlbums(ctx context.Context) ([]models.Album, error)

	// ListPhotos returns the photos of one album, or of the whole source
	// when albumID is empty, in the source's deterministic order.
	ListPhotos(ctx context.Context, albumID string) ([]models.SourcePhoto, error)

	// Download fetches one photo into destDir and returns the local path.
	// The caller owns destDir and deletes it when done.
	Download(ctx context.Context, photo *models.SourcePhoto, destDir string) (string, error)

	// MarkSynced records that a sync run over this source completed.
	MarkSynced(ctx context.Context) error
}

// New constructs the source described by cfg. Kinds form a closed set;
// an unknown kind is a construction-time error, never a runtime one.
func New(cfg config.SourceConfig, marks SyncMarker) (Source, error) {
	switch Kind(cfg.Kind) {
	case KindLocal:
		return NewLocal(cfg, marks)
	case KindImmich:
		return NewImmich(cfg, marks)
	default:
		return nil, fmt.Errorf("source %s: unknown kind %q", cfg.ID, cfg.Kind)
	}
}

// NewAll constructs every configured source, keyed by ID.
func NewAll(cfgs []config.SourceConfig, marks SyncMarker) (map[string]Source, error) {
	sources := make(map[string]Source, len(cfgs))
	for _, cfg := range cfgs {
		src, err := New(cfg, marks)
		if err != nil {
			return nil, err
		}
		sources[cfg.ID] = src
	}
	return sources, nil
}

// orderPhotos sorts a listing into the deterministic source order: capture
// time ascending, photos without one after those with, ties broken by name
// and then ID so equal inputs always produce equal output order.
func orderPhotos(photos []models.SourcePhoto) {
	sort.SliceStable(photos, func(i, j int) bool {
		a, b := photos[i], photos[j]
		switch {
		case a.TakenAt != nil && b.TakenAt != nil:
			if !a.TakenAt.Equal(*b.TakenAt) {
				return a.TakenAt.Before(*b.TakenAt)
			}
		case a.TakenAt != nil:
			return true
		case b.TakenAt != nil:
			return false
		}
		if a.Name != b.Name {
			return a.Name < b.Name
		}
		return a.ID < b.ID
	})
}
