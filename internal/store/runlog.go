// Frame-Connect - Photo Sync for Remote Display Devices
// Copyright 2026 C. Malpass (cmalpass)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/cmalpass/frame-connect

package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"

	"github.com/cmalpass/frame-connect/internal/models"
)

// AppendRun appends a run record to its mapping's run log. Records are keyed
// by a monotonic per-mapping sequence so iteration order is append order.
func (s *Store) AppendRun(ctx context.Context, record *models.RunRecord) error {
	if record.MappingID == "" {
		return errors.New("run record requires mapping_id")
	}

	seq, err := s.runSequence(record.MappingID)
	if err != nil {
		return err
	}
	n, err := seq.Next()
	if err != nil {
		return fmt.Errorf("next run sequence: %w", err)
	}

	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("marshal run record: %w", err)
	}

	return s.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set(runLogKey(record.MappingID, n), data); err != nil {
			return fmt.Errorf("set run record: %w", err)
		}
		return nil
	})
}

// Runs returns a mapping's run history, newest first. A limit of zero or
// less returns the full history.
func (s *Store) Runs(ctx context.Context, mappingID string, limit int) ([]*models.RunRecord, error) {
	var records []*models.RunRecord

	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = true
		opts.Reverse = true
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := runLogPrefix(mappingID)

		// Reverse iteration needs a seek key past the last possible entry
		// under the prefix.
		seekKey := append(append([]byte{}, prefix...), 0xff)
		for it.Seek(seekKey); it.ValidForPrefix(prefix); it.Next() {
			var record models.RunRecord
			err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &record)
			})
			if err != nil {
				return fmt.Errorf("unmarshal run record: %w", err)
			}
			records = append(records, &record)
			if limit > 0 && len(records) >= limit {
				break
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return records, nil
}

// LastRun returns a mapping's most recent run record, or nil when the
// mapping has never run.
func (s *Store) LastRun(ctx context.Context, mappingID string) (*models.RunRecord, error) {
	records, err := s.Runs(ctx, mappingID, 1)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, nil
	}
	return records[0], nil
}

// MarkSourceSynced records when a source last completed a successful run
// through any mapping. Sources surface this in status endpoints.
func (s *Store) MarkSourceSynced(ctx context.Context, sourceID string, t time.Time) error {
	if sourceID == "" {
		return errors.New("source ID is required")
	}

	data, err := json.Marshal(t.UTC())
	if err != nil {
		return fmt.Errorf("marshal sync time: %w", err)
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(srcSyncKey(sourceID), data)
	})
}

// SourceLastSynced returns when a source last completed a successful run,
// or the zero time when it never has.
func (s *Store) SourceLastSynced(ctx context.Context, sourceID string) (time.Time, error) {
	var t time.Time

	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(srcSyncKey(sourceID))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("get source sync time: %w", err)
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &t)
		})
	})
	if err != nil {
		return time.Time{}, err
	}
	return t, nil
}
