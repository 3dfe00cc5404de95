// Frame-Connect - Photo Sync for Remote Display Devices
// Copyright 2026 C. Malpass (cmalpass)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/cmalpass/frame-connect

package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/cmalpass/frame-connect/internal/adb"
	"github.com/cmalpass/frame-connect/internal/config"
	"github.com/cmalpass/frame-connect/internal/device"
	"github.com/cmalpass/frame-connect/internal/logging"
	"github.com/cmalpass/frame-connect/internal/processor"
	"github.com/cmalpass/frame-connect/internal/source"
	"github.com/cmalpass/frame-connect/internal/store"
)

// EventPublisher receives run completion events for live observers. The
// websocket hub implements it; a nil publisher disables events.
type EventPublisher interface {
	BroadcastJSON(event string, payload any)
}

// Options tune per-run behavior.
type Options struct {
	// Processor holds the image processing options applied to every photo.
	Processor processor.Options

	// RetryAttempts bounds transfer attempts per photo.
	RetryAttempts int

	// RetryDelay is the initial backoff between attempts, doubled each try.
	RetryDelay time.Duration

	// WorkDir is where per-photo scratch directories are created. Empty
	// uses the OS temp dir.
	WorkDir string
}

// OptionsFromConfig maps the sync and processor configuration onto engine
// options.
func OptionsFromConfig(sync config.SyncConfig, proc config.ProcessorConfig) Options {
	return Options{
		Processor:     processor.OptionsFromConfig(proc),
		RetryAttempts: sync.RetryAttempts,
		RetryDelay:    sync.RetryDelay,
		WorkDir:       sync.WorkDir,
	}
}

// Engine runs reconciliation passes. All collaborators are fixed at
// construction; Run is safe for concurrent use across different mappings.
type Engine struct {
	store     *store.Store
	transport adb.Transport
	sources   map[string]source.Source
	devices   *device.Registry
	processor processor.Processor
	hub       EventPublisher
	opts      Options
	logger    zerolog.Logger
}

// New creates an engine. hub may be nil.
func New(
	st *store.Store,
	transport adb.Transport,
	sources map[string]source.Source,
	devices *device.Registry,
	proc processor.Processor,
	hub EventPublisher,
	opts Options,
) *Engine {
	if opts.RetryAttempts < 1 {
		opts.RetryAttempts = 1
	}
	if opts.RetryDelay <= 0 {
		opts.RetryDelay = 2 * time.Second
	}

	return &Engine{
		store:     st,
		transport: transport,
		sources:   sources,
		devices:   devices,
		processor: proc,
		hub:       hub,
		opts:      opts,
		logger:    logging.With().Str("component", "engine").Logger(),
	}
}

// retryWithBackoff executes fn with exponential backoff on failure. The
// context cancels waits between attempts.
func (e *Engine) retryWithBackoff(ctx context.Context, fn func() error) error {
	var err error
	delay := e.opts.RetryDelay

	for attempt := 0; attempt < e.opts.RetryAttempts; attempt++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		err = fn()
		if err == nil {
			return nil
		}

		if attempt < e.opts.RetryAttempts-1 {
			e.logger.Warn().Err(err).Int("attempt", attempt+1).Int("max_attempts", e.opts.RetryAttempts).Dur("delay", delay).Msg("Retrying transfer")
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return ctx.Err()
			}
			delay *= 2
		}
	}

	return fmt.Errorf("max retry attempts reached: %w", err)
}
