// Frame-Connect - Photo Sync for Remote Display Devices
// Copyright 2026 C. Malpass (cmalpass)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/cmalpass/frame-connect

package store

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/cmalpass/frame-connect/internal/models"
)

// newTestStore opens an in-memory store that closes with the test.
func newTestStore(t *testing.T) *Store {
	t.Helper()

	s, err := Open(Config{InMemory: true})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() {
		if err := s.Close(); err != nil {
			t.Errorf("Close() error = %v", err)
		}
	})
	return s
}

func testMapping(id string) *models.Mapping {
	return &models.Mapping{
		ID:       id,
		SourceID: "src-vacation",
		DeviceID: "dev-hallway",
		Policy:   models.PolicyMirrorAll,
		Active:   true,
	}
}

func TestPutMappingAndGet(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	m := testMapping("m-1")
	m.Schedule = "0 6 * * *"
	m.MaxPhotos = 200

	if err := s.PutMapping(ctx, m); err != nil {
		t.Fatalf("PutMapping() error = %v", err)
	}
	if m.CreatedAt.IsZero() || m.UpdatedAt.IsZero() {
		t.Error("PutMapping() must stamp created_at and updated_at")
	}

	got, err := s.GetMapping(ctx, "m-1")
	if err != nil {
		t.Fatalf("GetMapping() error = %v", err)
	}
	if got.SourceID != m.SourceID || got.DeviceID != m.DeviceID {
		t.Errorf("GetMapping() = %+v, want pair %s|%s", got, m.SourceID, m.DeviceID)
	}
	if got.Schedule != "0 6 * * *" {
		t.Errorf("Schedule = %q, want %q", got.Schedule, "0 6 * * *")
	}
	if got.MaxPhotos != 200 {
		t.Errorf("MaxPhotos = %d, want 200", got.MaxPhotos)
	}
}

func TestGetMappingNotFound(t *testing.T) {
	s := newTestStore(t)

	_, err := s.GetMapping(context.Background(), "missing")
	if !errors.Is(err, ErrMappingNotFound) {
		t.Fatalf("GetMapping() error = %v, want ErrMappingNotFound", err)
	}
}

func TestPutMappingRejectsInvalid(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	tests := []struct {
		name   string
		mutate func(*models.Mapping)
	}{
		{"no id", func(m *models.Mapping) { m.ID = "" }},
		{"no source", func(m *models.Mapping) { m.SourceID = "" }},
		{"no device", func(m *models.Mapping) { m.DeviceID = "" }},
		{"bad policy", func(m *models.Mapping) { m.Policy = "keep_all" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := testMapping("m-bad")
			tt.mutate(m)
			if err := s.PutMapping(ctx, m); err == nil {
				t.Error("PutMapping() expected error")
			}
		})
	}
}

func TestPutMappingPairConflict(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.PutMapping(ctx, testMapping("m-1")); err != nil {
		t.Fatalf("PutMapping(m-1) error = %v", err)
	}

	// A second active mapping for the same pair must be rejected.
	err := s.PutMapping(ctx, testMapping("m-2"))
	if !errors.Is(err, ErrPairConflict) {
		t.Fatalf("PutMapping(m-2) error = %v, want ErrPairConflict", err)
	}

	// An inactive mapping for the same pair is allowed.
	inactive := testMapping("m-3")
	inactive.Active = false
	if err := s.PutMapping(ctx, inactive); err != nil {
		t.Fatalf("PutMapping(inactive) error = %v", err)
	}

	// Updating the holder itself must not conflict with its own claim.
	m1 := testMapping("m-1")
	m1.MaxPhotos = 10
	if err := s.PutMapping(ctx, m1); err != nil {
		t.Fatalf("PutMapping(m-1 update) error = %v", err)
	}
}

func TestPutMappingReleasesPairOnDeactivate(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.PutMapping(ctx, testMapping("m-1")); err != nil {
		t.Fatalf("PutMapping() error = %v", err)
	}

	m1 := testMapping("m-1")
	m1.Active = false
	if err := s.PutMapping(ctx, m1); err != nil {
		t.Fatalf("PutMapping(deactivate) error = %v", err)
	}

	// The pair is free for another mapping now.
	if err := s.PutMapping(ctx, testMapping("m-2")); err != nil {
		t.Fatalf("PutMapping(m-2) after release error = %v", err)
	}
}

func TestPutMappingReleasesPairOnMove(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.PutMapping(ctx, testMapping("m-1")); err != nil {
		t.Fatalf("PutMapping() error = %v", err)
	}

	moved := testMapping("m-1")
	moved.DeviceID = "dev-kitchen"
	if err := s.PutMapping(ctx, moved); err != nil {
		t.Fatalf("PutMapping(move) error = %v", err)
	}

	// Old pair is released, new pair is claimed.
	if err := s.PutMapping(ctx, testMapping("m-2")); err != nil {
		t.Fatalf("PutMapping(m-2) on released pair error = %v", err)
	}
	conflicting := testMapping("m-3")
	conflicting.DeviceID = "dev-kitchen"
	if err := s.PutMapping(ctx, conflicting); !errors.Is(err, ErrPairConflict) {
		t.Fatalf("PutMapping(m-3) error = %v, want ErrPairConflict", err)
	}
}

func TestActiveMappingForPair(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.PutMapping(ctx, testMapping("m-1")); err != nil {
		t.Fatalf("PutMapping() error = %v", err)
	}

	got, err := s.ActiveMappingForPair(ctx, "src-vacation", "dev-hallway")
	if err != nil {
		t.Fatalf("ActiveMappingForPair() error = %v", err)
	}
	if got.ID != "m-1" {
		t.Errorf("ActiveMappingForPair() = %s, want m-1", got.ID)
	}

	if _, err := s.ActiveMappingForPair(ctx, "src-vacation", "dev-unknown"); !errors.Is(err, ErrMappingNotFound) {
		t.Errorf("ActiveMappingForPair(unclaimed) error = %v, want ErrMappingNotFound", err)
	}
}

func TestListMappingsOrdered(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	base := time.Now().UTC().Add(-time.Hour)
	for i, id := range []string{"m-c", "m-a", "m-b"} {
		m := testMapping(id)
		m.DeviceID = fmt.Sprintf("dev-%d", i) // distinct pairs
		m.CreatedAt = base.Add(time.Duration(i) * time.Minute)
		if err := s.PutMapping(ctx, m); err != nil {
			t.Fatalf("PutMapping(%s) error = %v", id, err)
		}
	}

	got, err := s.ListMappings(ctx)
	if err != nil {
		t.Fatalf("ListMappings() error = %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("ListMappings() len = %d, want 3", len(got))
	}
	want := []string{"m-c", "m-a", "m-b"} // creation order, not key order
	for i := range want {
		if got[i].ID != want[i] {
			t.Errorf("ListMappings()[%d] = %s, want %s", i, got[i].ID, want[i])
		}
	}
}

func TestLedgerRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	entry := &models.LedgerEntry{
		MappingID:   "m-1",
		PhotoID:     "photo-1",
		Locator:     "/photos/a.jpg",
		RemotePath:  "/sdcard/Pictures/Frame/d41d8cd98f00b204e9800998ecf8427e.jpg",
		ContentHash: "d41d8cd98f00b204e9800998ecf8427e",
		Size:        1234,
	}
	if err := s.RecordEntry(ctx, entry); err != nil {
		t.Fatalf("RecordEntry() error = %v", err)
	}
	if entry.PlacedAt.IsZero() {
		t.Error("RecordEntry() must stamp placed_at")
	}

	got, err := s.GetEntry(ctx, "m-1", "photo-1")
	if err != nil {
		t.Fatalf("GetEntry() error = %v", err)
	}
	if got == nil {
		t.Fatal("GetEntry() = nil, want entry")
	}
	if got.RemotePath != entry.RemotePath || got.ContentHash != entry.ContentHash {
		t.Errorf("GetEntry() = %+v, want %+v", got, entry)
	}

	// Upsert refreshes fields.
	entry.Size = 5678
	if err := s.RecordEntry(ctx, entry); err != nil {
		t.Fatalf("RecordEntry(upsert) error = %v", err)
	}
	got, err = s.GetEntry(ctx, "m-1", "photo-1")
	if err != nil {
		t.Fatalf("GetEntry() error = %v", err)
	}
	if got.Size != 5678 {
		t.Errorf("Size after upsert = %d, want 5678", got.Size)
	}

	missing, err := s.GetEntry(ctx, "m-1", "photo-none")
	if err != nil {
		t.Fatalf("GetEntry(missing) error = %v", err)
	}
	if missing != nil {
		t.Errorf("GetEntry(missing) = %+v, want nil", missing)
	}
}

func TestLedgerEntriesScopedToMapping(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for _, pair := range []struct{ mapping, photo string }{
		{"m-1", "photo-1"},
		{"m-1", "photo-2"},
		{"m-2", "photo-1"},
	} {
		err := s.RecordEntry(ctx, &models.LedgerEntry{
			MappingID:   pair.mapping,
			PhotoID:     pair.photo,
			RemotePath:  "/sdcard/x.jpg",
			ContentHash: "abc",
		})
		if err != nil {
			t.Fatalf("RecordEntry(%s/%s) error = %v", pair.mapping, pair.photo, err)
		}
	}

	entries, err := s.LedgerEntries(ctx, "m-1")
	if err != nil {
		t.Fatalf("LedgerEntries() error = %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("LedgerEntries(m-1) len = %d, want 2", len(entries))
	}
	if _, ok := entries["photo-1"]; !ok {
		t.Error("LedgerEntries(m-1) missing photo-1")
	}

	count, err := s.CountEntries(ctx, "m-2")
	if err != nil {
		t.Fatalf("CountEntries() error = %v", err)
	}
	if count != 1 {
		t.Errorf("CountEntries(m-2) = %d, want 1", count)
	}
}

func TestRemoveEntry(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	err := s.RecordEntry(ctx, &models.LedgerEntry{
		MappingID:   "m-1",
		PhotoID:     "photo-1",
		RemotePath:  "/sdcard/x.jpg",
		ContentHash: "abc",
	})
	if err != nil {
		t.Fatalf("RecordEntry() error = %v", err)
	}

	if err := s.RemoveEntry(ctx, "m-1", "photo-1"); err != nil {
		t.Fatalf("RemoveEntry() error = %v", err)
	}
	got, err := s.GetEntry(ctx, "m-1", "photo-1")
	if err != nil {
		t.Fatalf("GetEntry() error = %v", err)
	}
	if got != nil {
		t.Errorf("GetEntry() after remove = %+v, want nil", got)
	}

	// Removing again converges silently.
	if err := s.RemoveEntry(ctx, "m-1", "photo-1"); err != nil {
		t.Errorf("RemoveEntry(absent) error = %v", err)
	}
}

func TestRunLogNewestFirst(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		record := &models.RunRecord{
			RunID:     fmt.Sprintf("run-%d", i),
			MappingID: "m-1",
			Trigger:   models.TriggerSchedule,
			Success:   true,
			Added:     i,
		}
		if err := s.AppendRun(ctx, record); err != nil {
			t.Fatalf("AppendRun(%d) error = %v", i, err)
		}
	}

	runs, err := s.Runs(ctx, "m-1", 3)
	if err != nil {
		t.Fatalf("Runs() error = %v", err)
	}
	if len(runs) != 3 {
		t.Fatalf("Runs() len = %d, want 3", len(runs))
	}
	for i, want := range []string{"run-4", "run-3", "run-2"} {
		if runs[i].RunID != want {
			t.Errorf("Runs()[%d] = %s, want %s", i, runs[i].RunID, want)
		}
	}

	all, err := s.Runs(ctx, "m-1", 0)
	if err != nil {
		t.Fatalf("Runs(0) error = %v", err)
	}
	if len(all) != 5 {
		t.Errorf("Runs(0) len = %d, want 5", len(all))
	}

	last, err := s.LastRun(ctx, "m-1")
	if err != nil {
		t.Fatalf("LastRun() error = %v", err)
	}
	if last == nil || last.RunID != "run-4" {
		t.Errorf("LastRun() = %+v, want run-4", last)
	}

	none, err := s.LastRun(ctx, "m-never")
	if err != nil {
		t.Fatalf("LastRun(never) error = %v", err)
	}
	if none != nil {
		t.Errorf("LastRun(never) = %+v, want nil", none)
	}
}

func TestDeleteMappingCascades(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.PutMapping(ctx, testMapping("m-1")); err != nil {
		t.Fatalf("PutMapping() error = %v", err)
	}
	err := s.RecordEntry(ctx, &models.LedgerEntry{
		MappingID: "m-1", PhotoID: "photo-1", RemotePath: "/sdcard/x.jpg", ContentHash: "abc",
	})
	if err != nil {
		t.Fatalf("RecordEntry() error = %v", err)
	}
	err = s.AppendRun(ctx, &models.RunRecord{RunID: "run-1", MappingID: "m-1", Success: true})
	if err != nil {
		t.Fatalf("AppendRun() error = %v", err)
	}

	if err := s.DeleteMapping(ctx, "m-1"); err != nil {
		t.Fatalf("DeleteMapping() error = %v", err)
	}

	if _, err := s.GetMapping(ctx, "m-1"); !errors.Is(err, ErrMappingNotFound) {
		t.Errorf("GetMapping() after delete error = %v, want ErrMappingNotFound", err)
	}
	entries, err := s.LedgerEntries(ctx, "m-1")
	if err != nil {
		t.Fatalf("LedgerEntries() error = %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("ledger entries survived delete: %d", len(entries))
	}
	runs, err := s.Runs(ctx, "m-1", 0)
	if err != nil {
		t.Fatalf("Runs() error = %v", err)
	}
	if len(runs) != 0 {
		t.Errorf("run records survived delete: %d", len(runs))
	}

	// The pair is claimable again.
	if err := s.PutMapping(ctx, testMapping("m-2")); err != nil {
		t.Errorf("PutMapping() after cascade error = %v", err)
	}
}

func TestDeleteMappingNotFound(t *testing.T) {
	s := newTestStore(t)

	err := s.DeleteMapping(context.Background(), "missing")
	if !errors.Is(err, ErrMappingNotFound) {
		t.Fatalf("DeleteMapping() error = %v, want ErrMappingNotFound", err)
	}
}

func TestSourceSyncMarks(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	never, err := s.SourceLastSynced(ctx, "src-vacation")
	if err != nil {
		t.Fatalf("SourceLastSynced() error = %v", err)
	}
	if !never.IsZero() {
		t.Errorf("SourceLastSynced(never) = %v, want zero", never)
	}

	mark := time.Date(2026, 8, 20, 6, 0, 0, 0, time.UTC)
	if err := s.MarkSourceSynced(ctx, "src-vacation", mark); err != nil {
		t.Fatalf("MarkSourceSynced() error = %v", err)
	}

	got, err := s.SourceLastSynced(ctx, "src-vacation")
	if err != nil {
		t.Fatalf("SourceLastSynced() error = %v", err)
	}
	if !got.Equal(mark) {
		t.Errorf("SourceLastSynced() = %v, want %v", got, mark)
	}
}

func TestRunGC(t *testing.T) {
	s := newTestStore(t)

	// In-memory databases have no value log to rewrite; the pass must still
	// complete without error.
	if err := s.RunGC(); err != nil {
		t.Fatalf("RunGC() error = %v", err)
	}
}

func TestStoreClosedOperations(t *testing.T) {
	s, err := Open(Config{InMemory: true})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if err := s.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}
	if err := s.RunGC(); !errors.Is(err, ErrStoreClosed) {
		t.Errorf("RunGC() after close error = %v, want ErrStoreClosed", err)
	}
}
