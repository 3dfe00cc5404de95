// Frame-Connect - Photo Sync for Remote Display Devices
// Copyright 2026 C. Malpass (cmalpass)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/cmalpass/frame-connect

/*
Package supervisor provides process supervision for Frame-Connect using suture v4.

This package implements a hierarchical supervisor tree that manages the lifecycle
of all long-running services in the daemon. It provides Erlang/OTP-style
supervision with automatic restart, failure isolation, and graceful shutdown.

# Overview

The supervisor tree organizes services into three layers for failure isolation:

	RootSupervisor ("frame-connect")
	├── DataSupervisor ("data-layer")
	│   └── StoreGCService
	├── MessagingSupervisor ("messaging-layer")
	│   ├── HubService
	│   └── SchedulerService
	└── APISupervisor ("api-layer")
	    └── HTTPServerService

This hierarchy ensures that:
  - A crash in the scheduler doesn't affect WebSocket connections
  - Store GC failures don't impact API availability
  - Each layer can restart independently

# Usage Example

Basic setup in main.go:

	logger := logging.NewSlogLogger()
	tree, err := supervisor.NewSupervisorTree(logger, supervisor.DefaultTreeConfig())
	if err != nil {
	    log.Fatal(err)
	}

	tree.AddDataService(services.NewStoreGCService(st, cfg.Store.GCInterval))
	tree.AddMessagingService(services.NewHubService(hub))
	tree.AddMessagingService(services.NewSchedulerService(sched))
	tree.AddAPIService(services.NewHTTPServerService(server, 10*time.Second))

	errCh := tree.ServeBackground(ctx)
	if err := <-errCh; err != nil {
	    log.Printf("supervisor stopped: %v", err)
	}

# Configuration

The TreeConfig controls restart behavior:

	config := supervisor.TreeConfig{
	    FailureThreshold: 5.0,              // Failures before backoff
	    FailureDecay:     30.0,             // Seconds for failures to decay
	    FailureBackoff:   15 * time.Second, // Backoff duration
	    ShutdownTimeout:  10 * time.Second, // Per-service shutdown timeout
	}

Default values match suture's production-ready defaults.

# Service Interface

All services must implement suture.Service:

	type Service interface {
	    Serve(ctx context.Context) error
	}

Return behavior:
  - Return nil: Service stopped cleanly, will not be restarted
  - Return error: Service crashed, will be restarted
  - Context canceled: Shutdown requested, return promptly

# What Is NOT Supervised

The Badger store itself is intentionally not supervised:
  - It's an embedded library, not a long-running service
  - Open/Close are managed directly by main
  - Only its periodic value-log GC runs as a supervised service

ADB and photo-source connections are not supervised either: each sync run
probes the device and source it needs, and a failed run is reported and
retried on the next schedule tick rather than crash-looping a service.

# Debugging Shutdown Issues

If services don't stop within the timeout:

	report, err := tree.UnstoppedServiceReport()
	for _, svc := range report {
	    log.Printf("service didn't stop: %v", svc)
	}

Common causes:
  - Goroutines not respecting context cancellation
  - Blocked network I/O without deadlines

# See Also

  - internal/supervisor/services: Service wrappers
  - github.com/thejerf/suture/v4: Underlying library
*/
package supervisor
