// Frame-Connect - Photo Sync for Remote Display Devices
// Copyright 2026 C. Malpass (cmalpass)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/cmalpass/frame-connect

package scheduler

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/cmalpass/frame-connect/internal/config"
	"github.com/cmalpass/frame-connect/internal/logging"
	"github.com/cmalpass/frame-connect/internal/metrics"
	"github.com/cmalpass/frame-connect/internal/models"
)

// Runner executes one reconciliation run. Satisfied by the engine.
type Runner interface {
	Run(ctx context.Context, mappingID string, trigger models.TriggerKind) models.RunResult
}

// MappingStore lists mappings for schedule registration at startup.
type MappingStore interface {
	ListMappings(ctx context.Context) ([]*models.Mapping, error)
}

// Config holds scheduler settings.
type Config struct {
	// CheckInterval is how often the tick loop looks for due tasks
	// (default: 30 seconds).
	CheckInterval time.Duration

	// RunTimeout is the deadline applied to each fired run
	// (default: 30 minutes).
	RunTimeout time.Duration
}

// ConfigFromSync derives scheduler settings from the sync config section.
func ConfigFromSync(cfg config.SyncConfig) Config {
	return Config{
		CheckInterval: cfg.CheckInterval,
		RunTimeout:    cfg.RunTimeout,
	}
}

// ScheduledTask describes one registered schedule for status reporting.
type ScheduledTask struct {
	MappingID string    `json:"mapping_id"`
	Schedule  string    `json:"schedule"`
	NextRun   time.Time `json:"next_run"`
}

// scheduledTask is the registry entry for one mapping's schedule.
type scheduledTask struct {
	expr string
	cron *CronSchedule
	next time.Time
}

// inflight is the single-flight slot for one executing run. The result is
// written before done is closed, so joiners read it without further locking.
type inflight struct {
	done   chan struct{}
	result models.RunResult
}

// Scheduler triggers reconciliation runs from cron schedules and serializes
// runs per mapping.
type Scheduler struct {
	runner   Runner
	mappings MappingStore
	logger   zerolog.Logger
	config   Config

	mu       sync.Mutex
	tasks    map[string]*scheduledTask
	running  map[string]*inflight
	started  bool
	loopStop chan struct{}
	loopDone chan struct{}

	// wg tracks runs the scheduler itself spawned, so Stop can wait for
	// them without preempting.
	wg sync.WaitGroup
}

// New creates a scheduler. Zero config values fall back to defaults.
func New(runner Runner, mappings MappingStore, cfg Config) *Scheduler {
	if cfg.CheckInterval <= 0 {
		cfg.CheckInterval = 30 * time.Second
	}
	if cfg.RunTimeout <= 0 {
		cfg.RunTimeout = 30 * time.Minute
	}
	return &Scheduler{
		runner:   runner,
		mappings: mappings,
		logger:   logging.With().Str("component", "scheduler").Logger(),
		config:   cfg,
		tasks:    make(map[string]*scheduledTask),
		running:  make(map[string]*inflight),
	}
}

// Start registers every active mapping that carries a schedule and begins
// the tick loop.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return fmt.Errorf("scheduler already running")
	}
	s.started = true
	s.loopStop = make(chan struct{})
	s.loopDone = make(chan struct{})
	s.mu.Unlock()

	mappings, err := s.mappings.ListMappings(ctx)
	if err != nil {
		s.mu.Lock()
		s.started = false
		s.mu.Unlock()
		return fmt.Errorf("load mappings: %w", err)
	}

	scheduled := 0
	for _, m := range mappings {
		if !m.Active || !m.Scheduled() {
			continue
		}
		// Schedule logs the rejection; a bad expression leaves the
		// mapping manual-only rather than failing startup.
		if err := s.Schedule(m); err != nil {
			continue
		}
		scheduled++
	}

	s.logger.Info().
		Dur("check_interval", s.config.CheckInterval).
		Int("scheduled", scheduled).
		Msg("Starting scheduler")

	go s.loop(ctx)
	return nil
}

// Stop halts the tick loop and waits for scheduler-spawned runs to finish.
// It never preempts a run in progress.
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return nil
	}
	s.mu.Unlock()

	s.logger.Info().Msg("Stopping scheduler...")
	close(s.loopStop)
	<-s.loopDone
	s.wg.Wait()

	s.mu.Lock()
	s.started = false
	s.mu.Unlock()

	s.logger.Info().Msg("Scheduler stopped")
	return nil
}

// Schedule registers or replaces the mapping's schedule. An invalid or
// never-matching expression is logged and returned as an error; the mapping
// stays unscheduled and reachable through manual triggers.
func (s *Scheduler) Schedule(m *models.Mapping) error {
	logger := s.logger.With().Str("mapping_id", m.ID).Str("schedule", m.Schedule).Logger()

	if m.Schedule == "" {
		err := fmt.Errorf("mapping %s has no schedule expression", m.ID)
		logger.Warn().Msg("Schedule rejected: empty expression")
		return err
	}
	cron, err := ParseCron(m.Schedule)
	if err != nil {
		logger.Warn().Err(err).Msg("Schedule rejected, mapping is manual-only")
		return fmt.Errorf("parse schedule %q: %w", m.Schedule, err)
	}
	next := cron.NextRun(time.Now(), time.Local)
	if next.IsZero() {
		logger.Warn().Msg("Schedule rejected: expression never matches")
		return fmt.Errorf("schedule %q never matches", m.Schedule)
	}

	s.mu.Lock()
	s.tasks[m.ID] = &scheduledTask{expr: m.Schedule, cron: cron, next: next}
	s.mu.Unlock()

	logger.Info().Time("next_run", next).Msg("Mapping scheduled")
	return nil
}

// Unschedule removes the mapping's schedule. A run already in flight for
// the mapping is left to finish.
func (s *Scheduler) Unschedule(mappingID string) {
	s.mu.Lock()
	_, ok := s.tasks[mappingID]
	delete(s.tasks, mappingID)
	s.mu.Unlock()

	if ok {
		s.logger.Info().Str("mapping_id", mappingID).Msg("Mapping unscheduled")
	}
}

// Trigger runs the mapping now, or joins a run already in flight and
// returns that run's result instead of starting a second. Runs for
// different mappings proceed independently.
//
// The run itself detaches from ctx; ctx only bounds how long this caller
// waits when joining.
func (s *Scheduler) Trigger(ctx context.Context, mappingID string, trigger models.TriggerKind) models.RunResult {
	s.mu.Lock()
	if fl, ok := s.running[mappingID]; ok {
		s.mu.Unlock()
		s.logger.Debug().Str("mapping_id", mappingID).Msg("Run already in flight, joining")
		select {
		case <-fl.done:
			return fl.result
		case <-ctx.Done():
			return models.RunResult{
				MappingID: mappingID,
				Trigger:   trigger,
				Errors:    []string{fmt.Sprintf("wait for in-flight run: %v", ctx.Err())},
			}
		}
	}
	fl := &inflight{done: make(chan struct{})}
	s.running[mappingID] = fl
	s.mu.Unlock()

	fl.result = s.execute(mappingID, trigger)

	s.mu.Lock()
	delete(s.running, mappingID)
	s.mu.Unlock()
	close(fl.done)

	return fl.result
}

// TriggerAsync starts a run without waiting for its result. Used by the
// tick loop and fire-and-forget callers.
func (s *Scheduler) TriggerAsync(mappingID string, trigger models.TriggerKind) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.Trigger(context.Background(), mappingID, trigger)
	}()
}

// execute runs the engine under the configured run timeout. The run gets a
// fresh context: a joined manual trigger must not die with the first
// caller's request, and scheduled runs outlive any tick.
func (s *Scheduler) execute(mappingID string, trigger models.TriggerKind) models.RunResult {
	ctx, cancel := context.WithTimeout(context.Background(), s.config.RunTimeout)
	defer cancel()

	metrics.SyncRunsInFlight.Inc()
	defer metrics.SyncRunsInFlight.Dec()

	return s.runner.Run(ctx, mappingID, trigger)
}

// GetScheduledTasks returns a snapshot of registered schedules, sorted by
// mapping ID.
func (s *Scheduler) GetScheduledTasks() []ScheduledTask {
	s.mu.Lock()
	out := make([]ScheduledTask, 0, len(s.tasks))
	for id, task := range s.tasks {
		out = append(out, ScheduledTask{MappingID: id, Schedule: task.expr, NextRun: task.next})
	}
	s.mu.Unlock()

	sort.Slice(out, func(i, j int) bool { return out[i].MappingID < out[j].MappingID })
	return out
}

// IsRunning reports whether a run for the mapping is currently in flight.
func (s *Scheduler) IsRunning(mappingID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.running[mappingID]
	return ok
}

// loop is the tick loop. It exits on Stop or context cancellation.
func (s *Scheduler) loop(ctx context.Context) {
	defer close(s.loopDone)

	ticker := time.NewTicker(s.config.CheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.fireDue()
		case <-s.loopStop:
			return
		case <-ctx.Done():
			return
		}
	}
}

// fireDue fires every task whose next-run time has passed and advances its
// next-run time. A due task whose mapping is still running is left in the
// past so the first tick after the run completes fires the catch-up.
func (s *Scheduler) fireDue() {
	now := time.Now()
	var due []string

	s.mu.Lock()
	for id, task := range s.tasks {
		if task.next.After(now) {
			continue
		}
		if _, busy := s.running[id]; busy {
			continue
		}
		task.next = task.cron.NextRun(now, time.Local)
		due = append(due, id)
	}
	s.mu.Unlock()

	for _, id := range due {
		s.logger.Debug().Str("mapping_id", id).Msg("Schedule fired")
		s.TriggerAsync(id, models.TriggerSchedule)
	}
}
