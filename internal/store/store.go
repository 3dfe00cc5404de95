// Frame-Connect - Photo Sync for Remote Display Devices
// Copyright 2026 C. Malpass (cmalpass)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/cmalpass/frame-connect

package store

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/dgraph-io/badger/v4"
	"github.com/rs/zerolog"

	"github.com/cmalpass/frame-connect/internal/logging"
	"github.com/cmalpass/frame-connect/internal/metrics"
)

// Key prefixes for BadgerDB storage
const (
	mappingKeyPrefix = "mapping:"
	pairKeyPrefix    = "mappingpair:"
	ledgerKeyPrefix  = "ledger:"
	runLogKeyPrefix  = "runlog:"
	runSeqKeyPrefix  = "runseq:"
	srcSyncKeyPrefix = "srcsync:"
)

// runSeqBandwidth is how many sequence numbers a lease reserves at once.
// Unused numbers are lost on restart, which only gaps the run-log keys.
const runSeqBandwidth = 16

var (
	// ErrMappingNotFound is returned when a mapping ID does not exist.
	ErrMappingNotFound = errors.New("mapping not found")

	// ErrPairConflict is returned when an active mapping already exists for
	// the same (source, device) pair.
	ErrPairConflict = errors.New("an active mapping already exists for this source and device")

	// ErrStoreClosed is returned by operations on a closed store.
	ErrStoreClosed = errors.New("store is closed")
)

// Config holds store settings.
type Config struct {
	// Path is the database directory. Ignored when InMemory is set.
	Path string

	// SyncWrites forces fsync after every write. The ledger is the only
	// record of what was placed on devices, so this defaults on.
	SyncWrites bool

	// GCDiscardRatio is passed to the value-log garbage collector.
	GCDiscardRatio float64

	// InMemory runs the database without files. Used by tests.
	InMemory bool
}

// Store wraps a BadgerDB database holding mappings, ledger entries, and run
// history. All methods are safe for concurrent use.
type Store struct {
	db     *badger.DB
	cfg    Config
	logger zerolog.Logger

	mu     sync.Mutex
	seqs   map[string]*badger.Sequence
	closed bool
}

// Open opens (or creates) the database described by cfg.
func Open(cfg Config) (*Store, error) {
	if cfg.GCDiscardRatio <= 0 || cfg.GCDiscardRatio >= 1 {
		cfg.GCDiscardRatio = 0.5
	}

	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if cfg.Path == "" {
			return nil, errors.New("store path is required")
		}
		opts = badger.DefaultOptions(cfg.Path)
	}
	opts.SyncWrites = cfg.SyncWrites

	// Reduce logging verbosity
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open BadgerDB: %w", err)
	}

	s := &Store{
		db:     db,
		cfg:    cfg,
		logger: logging.With().Str("component", "store").Logger(),
		seqs:   make(map[string]*badger.Sequence),
	}

	s.logger.Info().
		Str("path", cfg.Path).
		Bool("sync_writes", cfg.SyncWrites).
		Bool("in_memory", cfg.InMemory).
		Msg("Store opened")
	return s, nil
}

// Close releases all sequences and closes the database. Safe to call more
// than once.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true

	for id, seq := range s.seqs {
		if err := seq.Release(); err != nil {
			s.logger.Warn().Err(err).Str("mapping_id", id).Msg("Failed to release run sequence")
		}
	}
	s.seqs = nil

	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close BadgerDB: %w", err)
	}
	s.logger.Info().Msg("Store closed")
	return nil
}

// Ping reports whether the database is open and answering reads. Health
// probes call this.
func (s *Store) Ping(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrStoreClosed
	}
	s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	return s.db.View(func(txn *badger.Txn) error {
		_, err := txn.Get([]byte("ping"))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		return err
	})
}

// RunGC runs one value-log garbage collection pass. Badger reports
// ErrNoRewrite when there was nothing worth rewriting; that is not a
// failure.
func (s *Store) RunGC() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrStoreClosed
	}
	s.mu.Unlock()

	// In-memory databases have no value log.
	if s.cfg.InMemory {
		metrics.RecordStoreGC("noop")
		return nil
	}

	err := s.db.RunValueLogGC(s.cfg.GCDiscardRatio)
	switch {
	case err == nil:
		metrics.RecordStoreGC("rewritten")
		return nil
	case errors.Is(err, badger.ErrNoRewrite):
		metrics.RecordStoreGC("noop")
		return nil
	default:
		metrics.RecordStoreGC("error")
		return fmt.Errorf("value log GC: %w", err)
	}
}

// runSequence returns the lazily created badger sequence for a mapping's
// run log.
func (s *Store) runSequence(mappingID string) (*badger.Sequence, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, ErrStoreClosed
	}
	if seq, ok := s.seqs[mappingID]; ok {
		return seq, nil
	}

	seq, err := s.db.GetSequence([]byte(runSeqKeyPrefix+mappingID), runSeqBandwidth)
	if err != nil {
		return nil, fmt.Errorf("run sequence for %s: %w", mappingID, err)
	}
	s.seqs[mappingID] = seq
	return seq, nil
}

// releaseSequence drops a mapping's cached sequence, releasing its lease.
// Called when the mapping is deleted.
func (s *Store) releaseSequence(mappingID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if seq, ok := s.seqs[mappingID]; ok {
		if err := seq.Release(); err != nil {
			s.logger.Warn().Err(err).Str("mapping_id", mappingID).Msg("Failed to release run sequence")
		}
		delete(s.seqs, mappingID)
	}
}

func mappingKey(id string) []byte {
	return []byte(mappingKeyPrefix + id)
}

func pairKey(pair string) []byte {
	return []byte(pairKeyPrefix + pair)
}

func ledgerKey(mappingID, photoID string) []byte {
	return []byte(ledgerKeyPrefix + mappingID + ":" + photoID)
}

func ledgerPrefix(mappingID string) []byte {
	return []byte(ledgerKeyPrefix + mappingID + ":")
}

func runLogKey(mappingID string, seq uint64) []byte {
	return []byte(fmt.Sprintf("%s%s:%020d", runLogKeyPrefix, mappingID, seq))
}

func runLogPrefix(mappingID string) []byte {
	return []byte(runLogKeyPrefix + mappingID + ":")
}

func srcSyncKey(sourceID string) []byte {
	return []byte(srcSyncKeyPrefix + sourceID)
}
