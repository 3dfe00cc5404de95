// Frame-Connect - Photo Sync for Remote Display Devices
// Copyright 2026 C. Malpass (cmalpass)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/cmalpass/frame-connect

package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/cmalpass/frame-connect/internal/adb"
	"github.com/cmalpass/frame-connect/internal/api"
	"github.com/cmalpass/frame-connect/internal/config"
	"github.com/cmalpass/frame-connect/internal/device"
	"github.com/cmalpass/frame-connect/internal/engine"
	"github.com/cmalpass/frame-connect/internal/logging"
	"github.com/cmalpass/frame-connect/internal/metrics"
	"github.com/cmalpass/frame-connect/internal/processor"
	"github.com/cmalpass/frame-connect/internal/scheduler"
	"github.com/cmalpass/frame-connect/internal/source"
	"github.com/cmalpass/frame-connect/internal/store"
	"github.com/cmalpass/frame-connect/internal/supervisor"
	"github.com/cmalpass/frame-connect/internal/supervisor/services"
	ws "github.com/cmalpass/frame-connect/internal/websocket"
)

// version is stamped at build time via -ldflags "-X main.version=v1.2.3".
var version = "dev"

func main() {
	// Load configuration first to get logging settings
	cfg, err := config.Load()
	if err != nil {
		// Use default logger for config errors (config not yet available)
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	// Initialize zerolog with configuration
	logging.Init(logging.Config{
		Level:      cfg.Logging.Level,
		Format:     cfg.Logging.Format,
		Caller:     cfg.Logging.Caller,
		File:       cfg.Logging.File,
		MaxSizeMB:  cfg.Logging.MaxSizeMB,
		MaxBackups: cfg.Logging.MaxBackups,
		MaxAgeDays: cfg.Logging.MaxAgeDays,
	})

	logging.Info().Str("version", version).Msg("Starting Frame-Connect with supervisor tree")
	logging.Info().
		Str("store_path", cfg.Store.Path).
		Int("devices", len(cfg.Devices)).
		Int("sources", len(cfg.Sources)).
		Msg("Configuration loaded")

	// Open the ledger store. Mappings, the synced-photo ledger, and run
	// history all live here.
	st, err := store.Open(store.Config{
		Path:           cfg.Store.Path,
		SyncWrites:     cfg.Store.SyncWrites,
		GCDiscardRatio: cfg.Store.GCDiscardRatio,
		InMemory:       cfg.Store.InMemory,
	})
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to open store")
	}
	defer func() {
		if err := st.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing store")
		}
	}()

	// The adb transport talks to every display device. An unreachable adb
	// server is not fatal at startup; runs fail and retry on the next tick.
	transport := adb.NewClient(adb.Config{
		Binary:         cfg.ADB.Binary,
		CommandTimeout: cfg.ADB.CommandTimeout,
		PushTimeout:    cfg.ADB.PushTimeout,
		ReadyTimeout:   cfg.ADB.ReadyTimeout,
		ConnectTimeout: cfg.ADB.ConnectTimeout,
		MediaScan:      cfg.ADB.MediaScan,
	})
	if err := transport.Ping(context.Background()); err != nil {
		logging.Warn().Err(err).Msg("Failed to reach adb (will retry)")
	} else {
		logging.Info().Msg("Connected to adb successfully")
	}

	registry, err := device.NewRegistry(cfg.Devices)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to build device registry")
	}

	// The store doubles as the per-source sync marker.
	sources, err := source.NewAll(cfg.Sources, st)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to build sources")
	}

	proc, err := processor.New()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to create image processor")
	}
	defer func() {
		if err := proc.Close(); err != nil {
			logging.Error().Err(err).Msg("Error removing processor artifacts")
		}
	}()

	// Create context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Create structured logger for supervisor using our slog adapter
	// This bridges zerolog to slog for sutureslog compatibility
	slogLogger := logging.NewSlogLogger()

	// Create supervisor tree
	tree, err := supervisor.NewSupervisorTree(slogLogger, supervisor.TreeConfig{
		FailureThreshold: 5,
		FailureBackoff:   15 * time.Second,
		ShutdownTimeout:  10 * time.Second,
	})
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to create supervisor tree")
	}

	// Create WebSocket hub for real-time updates (before the engine so runs
	// can broadcast progress)
	wsHub := ws.NewHub()

	// Reconciliation engine and the scheduler that drives it. The scheduler
	// loads persisted mapping schedules when the supervisor starts it.
	eng := engine.New(st, transport, sources, registry, proc, wsHub,
		engine.OptionsFromConfig(cfg.Sync, cfg.Processor))
	sched := scheduler.New(eng, st, scheduler.ConfigFromSync(cfg.Sync))

	handler := api.NewHandler(st, sched, transport, registry, sources, wsHub, cfg)
	router := api.NewRouter(handler, cfg.API)

	// === ADD SERVICES TO SUPERVISOR TREE ===

	// Data layer services
	tree.AddDataService(services.NewStoreGCService(st, cfg.Store.GCInterval))
	logging.Info().Dur("interval", cfg.Store.GCInterval).Msg("Store GC service added")

	// Messaging layer services
	tree.AddMessagingService(services.NewHubService(wsHub))
	tree.AddMessagingService(services.NewSchedulerService(sched))
	logging.Info().Msg("WebSocket hub and sync scheduler added to supervisor tree")

	// API layer services
	if cfg.API.Enabled {
		server := &http.Server{
			Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
			Handler:      router.Setup(),
			ReadTimeout:  cfg.Server.Timeout,
			WriteTimeout: cfg.Server.Timeout,
			IdleTimeout:  60 * time.Second,
		}
		tree.AddAPIService(services.NewHTTPServerService(server, 10*time.Second))
		logging.Info().Str("addr", server.Addr).Msg("HTTP server service added")
	} else {
		logging.Warn().Msg("HTTP API disabled (API_ENABLED=false) - running headless, probes and metrics unavailable")
	}

	// Export build info and keep the uptime gauge current
	metrics.AppInfo.WithLabelValues(version, runtime.Version()).Set(1)
	startedAt := time.Now()
	go func() {
		ticker := time.NewTicker(15 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				metrics.AppUptime.Set(time.Since(startedAt).Seconds())
			case <-ctx.Done():
				return
			}
		}
	}()

	// === START SUPERVISOR TREE ===

	// Setup signal handling
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logging.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
		cancel()
	}()

	logging.Info().Msg("Starting supervisor tree...")
	errCh := tree.ServeBackground(ctx)

	// Wait for supervisor to finish (either from signal or error)
	select {
	case <-ctx.Done():
		logging.Info().Msg("Context canceled, waiting for supervisor to finish...")
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor tree error")
		}
	}

	// Wait for the error channel to close (supervisor finished)
	for err := range errCh {
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor shutdown error")
		}
	}

	// Report any services that failed to stop within timeout
	unstopped, _ := tree.UnstoppedServiceReport()
	if len(unstopped) > 0 {
		logging.Warn().Int("count", len(unstopped)).Msg("Services failed to stop within timeout")
		for _, svc := range unstopped {
			logging.Warn().Str("service", svc.Name).Msg("Service failed to stop")
		}
	}

	logging.Info().Msg("Frame-Connect stopped gracefully")
}
