// Frame-Connect - Photo Sync for Remote Display Devices
// Copyright 2026 C. Malpass (cmalpass)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/cmalpass/frame-connect

package supervisor

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"sync/atomic"
	"testing"
	"time"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

// fakeService implements suture.Service. It fails its first failures Serve
// calls, then blocks until the context is canceled. Configure failures
// before handing the service to the tree.
type fakeService struct {
	name     string
	failures int32
	starts   atomic.Int32
	fails    atomic.Int32
}

func (f *fakeService) Serve(ctx context.Context) error {
	f.starts.Add(1)
	if f.fails.Add(1) <= f.failures {
		return errors.New("simulated failure")
	}
	<-ctx.Done()
	return ctx.Err()
}

// String identifies the service in suture's event log.
func (f *fakeService) String() string { return f.name }

func TestSupervisorTreeConstruction(t *testing.T) {
	t.Run("creates hierarchical supervisor tree", func(t *testing.T) {
		tree, err := NewSupervisorTree(testLogger(), TreeConfig{
			FailureThreshold: 5,
			FailureBackoff:   time.Second,
			ShutdownTimeout:  10 * time.Second,
		})
		if err != nil {
			t.Fatalf("failed to create tree: %v", err)
		}

		if tree.Root() == nil {
			t.Error("root supervisor should not be nil")
		}
	})

	t.Run("applies default values for zero config", func(t *testing.T) {
		tree, err := NewSupervisorTree(testLogger(), TreeConfig{})
		if err != nil {
			t.Fatalf("failed to create tree: %v", err)
		}

		if tree.config.FailureThreshold != 5.0 {
			t.Errorf("expected default FailureThreshold 5.0, got %f", tree.config.FailureThreshold)
		}
		if tree.config.FailureDecay != 30.0 {
			t.Errorf("expected default FailureDecay 30.0, got %f", tree.config.FailureDecay)
		}
		if tree.config.FailureBackoff != 15*time.Second {
			t.Errorf("expected default FailureBackoff 15s, got %v", tree.config.FailureBackoff)
		}
		if tree.config.ShutdownTimeout != 10*time.Second {
			t.Errorf("expected default ShutdownTimeout 10s, got %v", tree.config.ShutdownTimeout)
		}
	})
}

func TestSupervisorTreeLifecycle(t *testing.T) {
	t.Run("tree starts and stops gracefully", func(t *testing.T) {
		tree, err := NewSupervisorTree(testLogger(), TreeConfig{
			FailureThreshold: 5,
			FailureBackoff:   100 * time.Millisecond,
			ShutdownTimeout:  time.Second,
		})
		if err != nil {
			t.Fatalf("failed to create tree: %v", err)
		}

		// One fake per layer
		tree.AddDataService(&fakeService{name: "fake-gc"})
		tree.AddMessagingService(&fakeService{name: "fake-hub"})
		tree.AddAPIService(&fakeService{name: "fake-http"})

		ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
		defer cancel()

		errCh := make(chan error, 1)
		go func() {
			errCh <- tree.Serve(ctx)
		}()

		// Let it run briefly
		time.Sleep(100 * time.Millisecond)
		cancel()

		select {
		case err := <-errCh:
			if err != nil && !errors.Is(err, context.Canceled) {
				t.Errorf("unexpected error: %v", err)
			}
		case <-time.After(2 * time.Second):
			t.Error("tree did not shut down in time")
		}
	})

	t.Run("ServeBackground returns channel", func(t *testing.T) {
		tree, _ := NewSupervisorTree(testLogger(), TreeConfig{ShutdownTimeout: time.Second})

		ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
		defer cancel()

		errCh := tree.ServeBackground(ctx)

		select {
		case err := <-errCh:
			if err != nil && !errors.Is(err, context.DeadlineExceeded) {
				t.Errorf("unexpected error: %v", err)
			}
		case <-time.After(time.Second):
			t.Error("did not receive from error channel")
		}
	})
}

func TestSupervisorTreeServiceManagement(t *testing.T) {
	layers := []struct {
		name string
		add  func(*SupervisorTree, *fakeService)
	}{
		{"data", func(tr *SupervisorTree, svc *fakeService) { tr.AddDataService(svc) }},
		{"messaging", func(tr *SupervisorTree, svc *fakeService) { tr.AddMessagingService(svc) }},
		{"api", func(tr *SupervisorTree, svc *fakeService) { tr.AddAPIService(svc) }},
	}

	for _, layer := range layers {
		t.Run("services in "+layer.name+" layer are started", func(t *testing.T) {
			tree, _ := NewSupervisorTree(testLogger(), TreeConfig{ShutdownTimeout: time.Second})

			svc := &fakeService{name: layer.name + "-service"}
			layer.add(tree, svc)

			ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
			defer cancel()

			go tree.Serve(ctx)
			time.Sleep(100 * time.Millisecond)

			if svc.starts.Load() < 1 {
				t.Errorf("%s service was not started", layer.name)
			}
		})
	}

	// Note: Remove/RemoveAndWait on tree.Root() only works for services
	// added directly to root. Services added to child supervisors (data,
	// messaging, api) must be removed from those supervisors directly.
	// This is a limitation of suture's service token design.
}

func TestSupervisorTreeFailureHandling(t *testing.T) {
	t.Run("failing service in one layer is restarted", func(t *testing.T) {
		tree, _ := NewSupervisorTree(testLogger(), TreeConfig{
			FailureThreshold: 10,
			FailureBackoff:   10 * time.Millisecond,
			ShutdownTimeout:  time.Second,
		})

		failingSvc := &fakeService{name: "failing", failures: 2}
		stableSvc := &fakeService{name: "stable"}

		tree.AddMessagingService(failingSvc)
		tree.AddAPIService(stableSvc)

		ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
		defer cancel()

		go tree.Serve(ctx)
		time.Sleep(200 * time.Millisecond)

		// Failing service should have been restarted
		if failingSvc.starts.Load() < 3 {
			t.Errorf("expected at least 3 starts for failing service, got %d", failingSvc.starts.Load())
		}

		// Stable service should have started normally
		if stableSvc.starts.Load() < 1 {
			t.Error("stable service was not started")
		}
	})
}

func TestDefaultTreeConfig(t *testing.T) {
	config := DefaultTreeConfig()

	if config.FailureThreshold != 5.0 {
		t.Errorf("expected FailureThreshold 5.0, got %f", config.FailureThreshold)
	}
	if config.FailureDecay != 30.0 {
		t.Errorf("expected FailureDecay 30.0, got %f", config.FailureDecay)
	}
	if config.FailureBackoff != 15*time.Second {
		t.Errorf("expected FailureBackoff 15s, got %v", config.FailureBackoff)
	}
	if config.ShutdownTimeout != 10*time.Second {
		t.Errorf("expected ShutdownTimeout 10s, got %v", config.ShutdownTimeout)
	}
}
