// Frame-Connect - Photo Sync for Remote Display Devices
// Copyright 2026 C. Malpass (cmalpass)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/cmalpass/frame-connect

/*
Package services provides suture.Service wrappers for Frame-Connect components.

This package adapts application components to the suture v4 supervision
model, translating their lifecycle patterns (Start/Stop, Run, ListenAndServe)
into suture's context-aware Serve pattern.

# Overview

Each wrapper implements the suture.Service interface:

	type Service interface {
	    Serve(ctx context.Context) error
	}

The wrappers handle:
  - Lifecycle translation (Start/Stop to Serve pattern)
  - Graceful shutdown via context cancellation
  - Error propagation for supervisor restart decisions
  - Service identification via fmt.Stringer

# Available Services

HTTP Server (HTTPServerService):
  - Wraps *http.Server with graceful shutdown
  - Converts ListenAndServe pattern to Serve
  - Configurable shutdown timeout for draining connections

WebSocket Hub (HubService):
  - Wraps websocket.Hub, which already follows the Serve pattern
  - Closes all client connections on shutdown

Sync Scheduler (SchedulerService):
  - Wraps scheduler.Scheduler with its Start/Stop lifecycle
  - Drives cron-scheduled sync runs and manual triggers

Store GC (StoreGCService):
  - Runs periodic Badger value-log garbage collection
  - Owns the ticker; a failed pass is logged and retried next interval

# Lifecycle Patterns

Start/Stop Pattern:

	type StartStopper interface {
	    Start(ctx context.Context) error
	    Stop() error
	}

	// Wrapped as:
	func (s *Service) Serve(ctx context.Context) error {
	    if err := s.component.Start(ctx); err != nil {
	        return err
	    }
	    <-ctx.Done()
	    if err := s.component.Stop(); err != nil {
	        return err
	    }
	    return ctx.Err()
	}

ListenAndServe Pattern:

	type Listener interface {
	    ListenAndServe() error
	    Shutdown(ctx context.Context) error
	}

	// Wrapped as:
	func (s *Service) Serve(ctx context.Context) error {
	    go s.server.ListenAndServe()
	    <-ctx.Done()
	    return s.server.Shutdown(shutdownCtx)
	}

# Error Handling

Return values determine supervisor behavior:

	nil         -> Service stopped cleanly, will not restart
	error       -> Service crashed, supervisor will restart
	ctx.Err()   -> Shutdown requested, normal termination

# See Also

  - internal/supervisor: SupervisorTree that manages these services
  - github.com/thejerf/suture/v4: Underlying supervision library
*/
package services
