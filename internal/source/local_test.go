// Frame-Connect - Photo Sync for Remote Display Devices
// Copyright 2026 C. Malpass (cmalpass)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/cmalpass/frame-connect

package source

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/cmalpass/frame-connect/internal/config"
	"github.com/cmalpass/frame-connect/internal/models"
)

// recordingMarker is a SyncMarker that remembers which sources were marked.
type recordingMarker struct {
	mu    sync.Mutex
	calls []string
}

func (m *recordingMarker) MarkSourceSynced(_ context.Context, sourceID string, _ time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, sourceID)
	return nil
}

func (m *recordingMarker) marked() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.calls...)
}

// writePhotoTree lays out a small photo directory for walker tests.
func writePhotoTree(t *testing.T) string {
	t.Helper()
	root := t.TempDir()

	files := map[string]string{
		"beach.jpg":           "beach bytes",
		"alps.png":            "alps bytes",
		"notes.txt":           "not a photo",
		".hidden.jpg":         "hidden file",
		"trip/city.jpg":       "city bytes",
		"trip/harbor.webp":    "harbor bytes",
		".thumbs/thumb.jpg":   "thumbnail",
		"empty-album/.keep":   "",
		"trip/deeper/sea.gif": "sea bytes",
	}
	for name, content := range files {
		path := filepath.Join(root, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
			t.Fatal(err)
		}
	}
	return root
}

func localConfig(root string, recursive bool) config.SourceConfig {
	return config.SourceConfig{
		ID:        "src-photos",
		Name:      "Photos",
		Kind:      "local",
		Path:      root,
		Recursive: recursive,
	}
}

func TestNewDispatchesOnKind(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	marks := &recordingMarker{}

	src, err := New(localConfig(root, true), marks)
	if err != nil {
		t.Fatalf("New(local) error = %v", err)
	}
	if _, ok := src.(*LocalSource); !ok {
		t.Errorf("New(local) = %T, want *LocalSource", src)
	}

	immich, err := New(config.SourceConfig{
		ID: "src-immich", Kind: "immich", URL: "http://immich.local:2283", APIKey: "k",
	}, marks)
	if err != nil {
		t.Fatalf("New(immich) error = %v", err)
	}
	if _, ok := immich.(*ImmichSource); !ok {
		t.Errorf("New(immich) = %T, want *ImmichSource", immich)
	}

	if _, err := New(config.SourceConfig{ID: "src-x", Kind: "gphotos"}, marks); err == nil {
		t.Error("New(unknown kind) expected construction error")
	}
}

func TestNewAll(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	sources, err := NewAll([]config.SourceConfig{
		localConfig(root, true),
		{ID: "src-immich", Kind: "immich", URL: "http://immich.local:2283", APIKey: "k"},
	}, &recordingMarker{})
	if err != nil {
		t.Fatalf("NewAll() error = %v", err)
	}
	if len(sources) != 2 {
		t.Fatalf("NewAll() len = %d, want 2", len(sources))
	}
	if sources["src-photos"].Kind() != KindLocal {
		t.Errorf("src-photos kind = %s, want local", sources["src-photos"].Kind())
	}

	if _, err := NewAll([]config.SourceConfig{{ID: "bad", Kind: "nope"}}, &recordingMarker{}); err == nil {
		t.Error("NewAll() with unknown kind expected error")
	}
}

func TestLocalListPhotosRecursive(t *testing.T) {
	t.Parallel()

	root := writePhotoTree(t)
	src, err := NewLocal(localConfig(root, true), &recordingMarker{})
	if err != nil {
		t.Fatalf("NewLocal() error = %v", err)
	}

	photos, err := src.ListPhotos(context.Background(), "")
	if err != nil {
		t.Fatalf("ListPhotos() error = %v", err)
	}

	// None of the fixture files carry EXIF, so ordering falls back to name.
	want := []string{"alps.png", "beach.jpg", "city.jpg", "harbor.webp", "sea.gif"}
	if len(photos) != len(want) {
		t.Fatalf("ListPhotos() returned %d photos, want %d: %+v", len(photos), len(want), photoNames(photos))
	}
	for i := range want {
		if photos[i].Name != want[i] {
			t.Errorf("photos[%d].Name = %q, want %q", i, photos[i].Name, want[i])
		}
	}

	// IDs are root-relative slash paths; locators are absolute.
	for _, p := range photos {
		if filepath.IsAbs(p.ID) {
			t.Errorf("photo ID %q must be root-relative", p.ID)
		}
		if !filepath.IsAbs(p.Locator) {
			t.Errorf("photo locator %q must be absolute", p.Locator)
		}
		if p.Size <= 0 {
			t.Errorf("photo %s size = %d, want > 0", p.Name, p.Size)
		}
	}

	// The walker must ignore non-photos, dotfiles, and dot-directories.
	for _, p := range photos {
		switch p.Name {
		case "notes.txt", ".hidden.jpg", "thumb.jpg":
			t.Errorf("photo %q must not be listed", p.Name)
		}
	}
}

func TestLocalListPhotosNonRecursive(t *testing.T) {
	t.Parallel()

	root := writePhotoTree(t)
	src, err := NewLocal(localConfig(root, false), &recordingMarker{})
	if err != nil {
		t.Fatalf("NewLocal() error = %v", err)
	}

	photos, err := src.ListPhotos(context.Background(), "")
	if err != nil {
		t.Fatalf("ListPhotos() error = %v", err)
	}

	want := []string{"alps.png", "beach.jpg"}
	if len(photos) != len(want) {
		t.Fatalf("ListPhotos() returned %v, want %v", photoNames(photos), want)
	}
	for i := range want {
		if photos[i].Name != want[i] {
			t.Errorf("photos[%d].Name = %q, want %q", i, photos[i].Name, want[i])
		}
	}
}

func TestLocalListPhotosAlbum(t *testing.T) {
	t.Parallel()

	root := writePhotoTree(t)
	src, err := NewLocal(localConfig(root, true), &recordingMarker{})
	if err != nil {
		t.Fatalf("NewLocal() error = %v", err)
	}
	ctx := context.Background()

	photos, err := src.ListPhotos(ctx, "trip")
	if err != nil {
		t.Fatalf("ListPhotos(trip) error = %v", err)
	}
	want := []string{"city.jpg", "harbor.webp", "sea.gif"}
	if len(photos) != len(want) {
		t.Fatalf("ListPhotos(trip) returned %v, want %v", photoNames(photos), want)
	}

	if _, err := src.ListPhotos(ctx, "no-such-album"); !errors.Is(err, ErrAlbumNotFound) {
		t.Errorf("ListPhotos(missing) error = %v, want ErrAlbumNotFound", err)
	}
	for _, hostile := range []string{"../..", "trip/../..", "/etc"} {
		if _, err := src.ListPhotos(ctx, hostile); !errors.Is(err, ErrAlbumNotFound) {
			t.Errorf("ListPhotos(%q) error = %v, want ErrAlbumNotFound", hostile, err)
		}
	}
}

func TestLocalListAlbums(t *testing.T) {
	t.Parallel()

	root := writePhotoTree(t)
	src, err := NewLocal(localConfig(root, true), &recordingMarker{})
	if err != nil {
		t.Fatalf("NewLocal() error = %v", err)
	}

	albums, err := src.ListAlbums(context.Background())
	if err != nil {
		t.Fatalf("ListAlbums() error = %v", err)
	}

	byID := make(map[string]models.Album, len(albums))
	for _, a := range albums {
		byID[a.ID] = a
	}
	if _, ok := byID[".thumbs"]; ok {
		t.Error("ListAlbums() must not expose dot-directories")
	}
	trip, ok := byID["trip"]
	if !ok {
		t.Fatalf("ListAlbums() missing trip album: %+v", albums)
	}
	// Direct photos only; deeper/sea.gif does not count here.
	if trip.PhotoCount != 2 {
		t.Errorf("trip.PhotoCount = %d, want 2", trip.PhotoCount)
	}
	if empty, ok := byID["empty-album"]; ok && empty.PhotoCount != 0 {
		t.Errorf("empty-album.PhotoCount = %d, want 0", empty.PhotoCount)
	}
}

func TestLocalDownload(t *testing.T) {
	t.Parallel()

	root := writePhotoTree(t)
	src, err := NewLocal(localConfig(root, true), &recordingMarker{})
	if err != nil {
		t.Fatalf("NewLocal() error = %v", err)
	}
	ctx := context.Background()

	photos, err := src.ListPhotos(ctx, "")
	if err != nil {
		t.Fatalf("ListPhotos() error = %v", err)
	}

	destDir := t.TempDir()
	local, err := src.Download(ctx, &photos[0], destDir)
	if err != nil {
		t.Fatalf("Download() error = %v", err)
	}
	if filepath.Dir(local) != destDir {
		t.Errorf("Download() path = %q, want inside %q", local, destDir)
	}
	got, err := os.ReadFile(local)
	if err != nil {
		t.Fatalf("read downloaded copy: %v", err)
	}
	want, err := os.ReadFile(photos[0].Locator)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != string(want) {
		t.Error("downloaded bytes differ from the source file")
	}

	gone := models.SourcePhoto{ID: "gone.jpg", Name: "gone.jpg", Locator: filepath.Join(root, "gone.jpg")}
	if _, err := src.Download(ctx, &gone, destDir); err == nil {
		t.Error("Download(missing) expected error")
	}
}

func TestLocalTestConnection(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	src, err := NewLocal(localConfig(root, true), &recordingMarker{})
	if err != nil {
		t.Fatalf("NewLocal() error = %v", err)
	}
	if !src.TestConnection(context.Background()) {
		t.Error("TestConnection() = false for an existing directory")
	}

	missing, err := NewLocal(localConfig(filepath.Join(root, "nope"), true), &recordingMarker{})
	if err != nil {
		t.Fatalf("NewLocal() error = %v", err)
	}
	if missing.TestConnection(context.Background()) {
		t.Error("TestConnection() = true for a missing directory")
	}
}

func TestLocalMarkSynced(t *testing.T) {
	t.Parallel()

	marks := &recordingMarker{}
	src, err := NewLocal(localConfig(t.TempDir(), true), marks)
	if err != nil {
		t.Fatalf("NewLocal() error = %v", err)
	}

	if err := src.MarkSynced(context.Background()); err != nil {
		t.Fatalf("MarkSynced() error = %v", err)
	}
	if got := marks.marked(); len(got) != 1 || got[0] != "src-photos" {
		t.Errorf("marked sources = %v, want [src-photos]", got)
	}
}

func TestNewLocalRequiresPath(t *testing.T) {
	t.Parallel()

	_, err := NewLocal(config.SourceConfig{ID: "src-x", Kind: "local"}, &recordingMarker{})
	if err == nil {
		t.Error("NewLocal() without path expected error")
	}
}

func TestOrderPhotos(t *testing.T) {
	t.Parallel()

	at := func(s string) *time.Time {
		ts, err := time.Parse(time.RFC3339, s)
		if err != nil {
			t.Fatal(err)
		}
		return &ts
	}

	photos := []models.SourcePhoto{
		{ID: "d", Name: "zzz.jpg"},
		{ID: "b", Name: "late.jpg", TakenAt: at("2026-07-02T10:00:00Z")},
		{ID: "c", Name: "aaa.jpg"},
		{ID: "a", Name: "early.jpg", TakenAt: at("2026-07-01T10:00:00Z")},
		{ID: "e", Name: "tie.jpg", TakenAt: at("2026-07-02T10:00:00Z")},
	}
	orderPhotos(photos)

	// Capture time ascending first, name tiebreak, then undated by name.
	want := []string{"a", "b", "e", "c", "d"}
	for i := range want {
		if photos[i].ID != want[i] {
			t.Errorf("order[%d] = %s, want %s", i, photos[i].ID, want[i])
		}
	}
}

func photoNames(photos []models.SourcePhoto) []string {
	names := make([]string, len(photos))
	for i, p := range photos {
		names[i] = p.Name
	}
	return names
}
