// Frame-Connect - Photo Sync for Remote Display Devices
// Copyright 2026 C. Malpass (cmalpass)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/cmalpass/frame-connect

package services

import (
	"context"
	"fmt"
)

// SchedulerManager interface matches the sync scheduler lifecycle.
//
// This interface abstracts the scheduler's Start/Stop pattern, allowing the
// SchedulerService wrapper to adapt it to suture's Serve pattern without
// modifying the scheduler code.
//
// The interface is satisfied by *scheduler.Scheduler from internal/scheduler.
type SchedulerManager interface {
	Start(ctx context.Context) error
	Stop() error
}

// SchedulerService wraps the sync scheduler as a supervised service.
//
// It adapts the Start/Stop lifecycle pattern to suture's Serve pattern:
//  1. Calls Start(ctx) to load persisted schedules and begin the cron loop
//  2. Waits for context cancellation
//  3. Calls Stop() for graceful shutdown, waiting on in-flight runs
type SchedulerService struct {
	manager SchedulerManager
	name    string
}

// NewSchedulerService creates a new sync scheduler service wrapper.
//
// Example usage:
//
//	sched := scheduler.New(engine, st, scheduler.ConfigFromSync(cfg.Sync))
//	svc := services.NewSchedulerService(sched)
//	tree.AddMessagingService(svc)
func NewSchedulerService(manager SchedulerManager) *SchedulerService {
	return &SchedulerService{
		manager: manager,
		name:    "sync-scheduler",
	}
}

// Serve implements suture.Service.
//
// This method:
//  1. Starts the scheduler (which spawns its internal loop)
//  2. Blocks until the context is canceled
//  3. Stops the scheduler gracefully
//
// If Start() fails, the error is returned immediately, causing suture to
// restart the service according to its backoff policy.
func (s *SchedulerService) Serve(ctx context.Context) error {
	// Start the scheduler
	if err := s.manager.Start(ctx); err != nil {
		return fmt.Errorf("sync scheduler start failed: %w", err)
	}

	// Wait for shutdown signal
	<-ctx.Done()

	// Stop the scheduler gracefully
	if err := s.manager.Stop(); err != nil {
		return fmt.Errorf("sync scheduler stop failed: %w", err)
	}

	return ctx.Err()
}

// String implements fmt.Stringer for logging.
// Suture uses this to identify the service in log messages.
func (s *SchedulerService) String() string {
	return s.name
}
