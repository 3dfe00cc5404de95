// Frame-Connect - Photo Sync for Remote Display Devices
// Copyright 2026 C. Malpass (cmalpass)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/cmalpass/frame-connect

package services

import (
	"context"
	"time"

	"github.com/cmalpass/frame-connect/internal/logging"
)

// GarbageCollector interface matches the store's value-log GC entry point.
//
// Satisfied by *store.Store from internal/store. A single pass returns nil
// when there was nothing to rewrite; only real Badger failures surface as
// errors.
type GarbageCollector interface {
	RunGC() error
}

// StoreGCService runs periodic value-log garbage collection against the
// ledger store.
//
// Badger never reclaims value-log space on its own; something has to call
// RunValueLogGC on a timer. The store exposes a single pass as RunGC, and
// this service owns the ticker. A failed pass is logged and retried on the
// next interval rather than crashing the service, so a transient disk
// hiccup doesn't restart-loop the data layer.
type StoreGCService struct {
	store    GarbageCollector
	interval time.Duration
	name     string
}

// NewStoreGCService creates a new store GC service.
//
// The interval controls how often a GC pass runs. Zero or negative values
// fall back to 10 minutes, matching the store's default.
//
// Example usage:
//
//	svc := services.NewStoreGCService(st, cfg.Store.GCInterval)
//	tree.AddDataService(svc)
func NewStoreGCService(store GarbageCollector, interval time.Duration) *StoreGCService {
	if interval <= 0 {
		interval = 10 * time.Minute
	}
	return &StoreGCService{
		store:    store,
		interval: interval,
		name:     "store-gc",
	}
}

// Serve implements suture.Service.
//
// This method ticks at the configured interval and runs one GC pass per
// tick. It returns ctx.Err() when the context is canceled.
func (s *StoreGCService) Serve(ctx context.Context) error {
	logger := logging.With().Str("component", "store-gc").Logger()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	logger.Debug().Dur("interval", s.interval).Msg("Store GC loop started")

	for {
		select {
		case <-ticker.C:
			if err := s.store.RunGC(); err != nil {
				logger.Warn().Err(err).Msg("Value log GC pass failed")
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// String implements fmt.Stringer for logging.
// Suture uses this to identify the service in log messages.
func (s *StoreGCService) String() string {
	return s.name
}
