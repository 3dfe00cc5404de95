// Frame-Connect - Photo Sync for Remote Display Devices
// Copyright 2026 C. Malpass (cmalpass)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/cmalpass/frame-connect

package services

import (
	"context"
	"errors"
	"io"
	"sync/atomic"
	"testing"
	"time"

	"github.com/thejerf/suture/v4"

	"github.com/cmalpass/frame-connect/internal/logging"
)

func init() {
	logging.Init(logging.Config{Level: "error", Output: io.Discard})
}

// mockGarbageCollector is a test double for GarbageCollector interface.
type mockGarbageCollector struct {
	runErr   error
	runCount atomic.Int32
}

func (m *mockGarbageCollector) RunGC() error {
	m.runCount.Add(1)
	return m.runErr
}

func TestStoreGCService_Interface(t *testing.T) {
	// Verify StoreGCService implements suture.Service
	var _ suture.Service = (*StoreGCService)(nil)
}

func TestNewStoreGCService(t *testing.T) {
	gc := &mockGarbageCollector{}
	svc := NewStoreGCService(gc, 5*time.Minute)

	if svc == nil {
		t.Fatal("NewStoreGCService returned nil")
	}
	if svc.store != gc {
		t.Error("store not assigned correctly")
	}
	if svc.interval != 5*time.Minute {
		t.Errorf("expected interval 5m, got %v", svc.interval)
	}
	if svc.name != "store-gc" {
		t.Errorf("expected name 'store-gc', got %q", svc.name)
	}
}

func TestNewStoreGCService_DefaultInterval(t *testing.T) {
	gc := &mockGarbageCollector{}

	// Test zero interval gets default
	svc := NewStoreGCService(gc, 0)
	if svc.interval != 10*time.Minute {
		t.Errorf("expected default interval 10m, got %v", svc.interval)
	}

	// Test negative interval gets default
	svc = NewStoreGCService(gc, -time.Minute)
	if svc.interval != 10*time.Minute {
		t.Errorf("expected default interval 10m, got %v", svc.interval)
	}
}

func TestStoreGCService_Serve(t *testing.T) {
	t.Run("runs GC passes on each tick", func(t *testing.T) {
		gc := &mockGarbageCollector{}
		svc := NewStoreGCService(gc, 10*time.Millisecond)

		ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
		defer cancel()

		err := svc.Serve(ctx)
		if !errors.Is(err, context.DeadlineExceeded) {
			t.Errorf("expected context.DeadlineExceeded, got %v", err)
		}

		if got := gc.runCount.Load(); got < 2 {
			t.Errorf("expected at least 2 GC passes, got %d", got)
		}
	})

	t.Run("keeps ticking after a failed pass", func(t *testing.T) {
		gc := &mockGarbageCollector{runErr: errors.New("value log GC: disk full")}
		svc := NewStoreGCService(gc, 10*time.Millisecond)

		ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
		defer cancel()

		err := svc.Serve(ctx)
		if !errors.Is(err, context.DeadlineExceeded) {
			t.Errorf("expected context.DeadlineExceeded, got %v", err)
		}

		// Failures are logged, not fatal; the loop must keep running
		if got := gc.runCount.Load(); got < 2 {
			t.Errorf("expected at least 2 GC passes despite errors, got %d", got)
		}
	})

	t.Run("returns promptly on cancellation without ticking", func(t *testing.T) {
		gc := &mockGarbageCollector{}
		svc := NewStoreGCService(gc, time.Hour)

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		err := svc.Serve(ctx)
		if !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
		if got := gc.runCount.Load(); got != 0 {
			t.Errorf("expected 0 GC passes, got %d", got)
		}
	})
}

func TestStoreGCService_String(t *testing.T) {
	svc := NewStoreGCService(&mockGarbageCollector{}, time.Minute)

	if svc.String() != "store-gc" {
		t.Errorf("expected 'store-gc', got %q", svc.String())
	}
}

func TestStoreGCService_WithSupervisor(t *testing.T) {
	gc := &mockGarbageCollector{}
	svc := NewStoreGCService(gc, 10*time.Millisecond)

	sup := suture.New("test-sup", suture.Spec{
		FailureThreshold: 3,
		FailureBackoff:   10 * time.Millisecond,
		Timeout:          time.Second,
	})
	sup.Add(svc)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	errCh := sup.ServeBackground(ctx)

	// Wait for at least one pass with polling
	var ran bool
	for i := 0; i < 10; i++ {
		time.Sleep(20 * time.Millisecond)
		if gc.runCount.Load() >= 1 {
			ran = true
			break
		}
	}

	if !ran {
		t.Error("GC pass did not run under supervision")
	}

	cancel()
	<-errCh
}
