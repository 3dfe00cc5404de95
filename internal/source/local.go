// Frame-Connect - Photo Sync for Remote Display Devices
// Copyright 2026 C. Malpass (cmalpass)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/cmalpass/frame-connect

package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
	goexif "github.com/rwcarlsen/goexif/exif"

	"github.com/cmalpass/frame-connect/internal/config"
	"github.com/cmalpass/frame-connect/internal/logging"
	"github.com/cmalpass/frame-connect/internal/metrics"
	"github.com/cmalpass/frame-connect/internal/models"
)

// photoExtensions maps recognized file extensions to their MIME types.
var photoExtensions = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".gif":  "image/gif",
	".webp": "image/webp",
	".heic": "image/heic",
	".heif": "image/heif",
	".bmp":  "image/bmp",
}

// LocalSource lists photos from a directory tree on the daemon's own
// filesystem. Photo IDs are root-relative slash paths, so they stay stable
// as long as the file does not move.
type LocalSource struct {
	id        string
	name      string
	root      string
	recursive bool
	marks     SyncMarker
	logger    zerolog.Logger
}

var _ Source = (*LocalSource)(nil)

// NewLocal creates a local filesystem source rooted at cfg.Path.
func NewLocal(cfg config.SourceConfig, marks SyncMarker) (*LocalSource, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("source %s: path is required", cfg.ID)
	}
	root, err := filepath.Abs(cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("source %s: resolve path: %w", cfg.ID, err)
	}

	return &LocalSource{
		id:        cfg.ID,
		name:      cfg.Name,
		root:      root,
		recursive: cfg.Recursive,
		marks:     marks,
		logger:    logging.With().Str("component", "source").Str("source_id", cfg.ID).Logger(),
	}, nil
}

// ID returns the configured source identifier.
func (s *LocalSource) ID() string { return s.id }

// Kind returns KindLocal.
func (s *LocalSource) Kind() Kind { return KindLocal }

// TestConnection reports whether the root directory exists and is readable.
func (s *LocalSource) TestConnection(ctx context.Context) bool {
	info, err := os.Stat(s.root)
	if err != nil || !info.IsDir() {
		return false
	}
	f, err := os.Open(s.root)
	if err != nil {
		return false
	}
	_ = f.Close() //nolint:errcheck // probe only
	return true
}

// ListAlbums returns the immediate subdirectories of the root, with the
// count of photos directly inside each.
func (s *LocalSource) ListAlbums(ctx context.Context) ([]models.Album, error) {
	dirEntries, err := os.ReadDir(s.root)
	if err != nil {
		return nil, fmt.Errorf("source %s: read root: %w", s.id, err)
	}

	var albums []models.Album
	for _, entry := range dirEntries {
		if !entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		count := 0
		sub, err := os.ReadDir(filepath.Join(s.root, entry.Name()))
		if err == nil {
			for _, f := range sub {
				if !f.IsDir() && isPhotoFile(f.Name()) {
					count++
				}
			}
		}
		albums = append(albums, models.Album{
			ID:         entry.Name(),
			Name:       entry.Name(),
			PhotoCount: count,
		})
	}
	return albums, nil
}

// ListPhotos walks the tree under the root (or under one album directory)
// and returns its photos in capture order.
func (s *LocalSource) ListPhotos(ctx context.Context, albumID string) ([]models.SourcePhoto, error) {
	start := time.Now()

	walkRoot := s.root
	if albumID != "" {
		dir, err := s.albumDir(albumID)
		if err != nil {
			return nil, err
		}
		walkRoot = dir
	}

	var photos []models.SourcePhoto
	err := filepath.WalkDir(walkRoot, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if d.IsDir() {
			if strings.HasPrefix(d.Name(), ".") && path != walkRoot {
				return filepath.SkipDir
			}
			if !s.recursive && path != walkRoot {
				return filepath.SkipDir
			}
			return nil
		}
		if strings.HasPrefix(d.Name(), ".") || !isPhotoFile(d.Name()) {
			return nil
		}

		photo, err := s.photoFor(ctx, path)
		if err != nil {
			// A file that vanished or cannot be read mid-walk is skipped,
			// not fatal to the listing.
			s.logger.Warn().Err(err).Str("path", path).Msg("Skipping unreadable photo")
			return nil
		}
		photos = append(photos, photo)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("source %s: walk: %w", s.id, err)
	}

	orderPhotos(photos)
	metrics.RecordSourceList(string(KindLocal), time.Since(start))
	return photos, nil
}

// albumDir resolves an album ID to its directory, rejecting IDs that would
// escape the root.
func (s *LocalSource) albumDir(albumID string) (string, error) {
	if strings.Contains(albumID, "..") || strings.ContainsAny(albumID, `/\`) || filepath.IsAbs(albumID) {
		return "", fmt.Errorf("source %s: %w: %q", s.id, ErrAlbumNotFound, albumID)
	}
	dir := filepath.Join(s.root, albumID)
	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		return "", fmt.Errorf("source %s: %w: %q", s.id, ErrAlbumNotFound, albumID)
	}
	return dir, nil
}

// photoFor builds the SourcePhoto for one file.
func (s *LocalSource) photoFor(ctx context.Context, path string) (models.SourcePhoto, error) {
	info, err := os.Stat(path)
	if err != nil {
		return models.SourcePhoto{}, err
	}

	rel, err := filepath.Rel(s.root, path)
	if err != nil {
		return models.SourcePhoto{}, err
	}

	photo := models.SourcePhoto{
		ID:       filepath.ToSlash(rel),
		Name:     filepath.Base(path),
		Locator:  path,
		MimeType: photoExtensions[strings.ToLower(filepath.Ext(path))],
		Size:     info.Size(),
	}
	if taken, err := exifTakenAt(ctx, path); err == nil {
		photo.TakenAt = &taken
	}
	return photo, nil
}

// Download copies the photo's file into destDir.
func (s *LocalSource) Download(ctx context.Context, photo *models.SourcePhoto, destDir string) (string, error) {
	dest, err := s.download(ctx, photo, destDir)
	metrics.RecordSourceDownload(string(KindLocal), err)
	return dest, err
}

func (s *LocalSource) download(ctx context.Context, photo *models.SourcePhoto, destDir string) (string, error) {
	if ctx.Err() != nil {
		return "", ctx.Err()
	}

	src, err := os.Open(photo.Locator)
	if err != nil {
		return "", fmt.Errorf("open source photo: %w", err)
	}
	defer src.Close() //nolint:errcheck // read-only file

	dest := filepath.Join(destDir, filepath.Base(photo.Locator))
	out, err := os.Create(dest)
	if err != nil {
		return "", fmt.Errorf("create local copy: %w", err)
	}

	if _, err := io.Copy(out, src); err != nil {
		_ = out.Close()     //nolint:errcheck // copy already failed
		_ = os.Remove(dest) //nolint:errcheck // best-effort cleanup
		return "", fmt.Errorf("copy photo: %w", err)
	}
	if err := out.Close(); err != nil {
		return "", fmt.Errorf("close local copy: %w", err)
	}
	return dest, nil
}

// MarkSynced records that a run over this source completed.
func (s *LocalSource) MarkSynced(ctx context.Context) error {
	return s.marks.MarkSourceSynced(ctx, s.id, time.Now().UTC())
}

// isPhotoFile reports whether a file name carries a recognized photo
// extension.
func isPhotoFile(name string) bool {
	_, ok := photoExtensions[strings.ToLower(filepath.Ext(name))]
	return ok
}

// exifTakenAt reads the capture time from a file's EXIF block. Files without
// EXIF (PNGs, stripped JPEGs) report an error and sort by name instead.
func exifTakenAt(ctx context.Context, path string) (time.Time, error) {
	select {
	case <-ctx.Done():
		return time.Time{}, ctx.Err()
	default:
	}

	f, err := os.Open(path)
	if err != nil {
		return time.Time{}, err
	}
	defer f.Close() //nolint:errcheck // read-only file

	x, err := goexif.Decode(f)
	if err != nil {
		return time.Time{}, err
	}

	if tag, err := x.Get(goexif.DateTimeOriginal); err == nil {
		if str, err := tag.StringVal(); err == nil {
			if parsed, err := time.Parse("2006:01:02 15:04:05", str); err == nil {
				return parsed, nil
			}
		}
	}
	if parsed, err := x.DateTime(); err == nil {
		return parsed, nil
	}
	return time.Time{}, errors.New("exif datetime not found")
}
