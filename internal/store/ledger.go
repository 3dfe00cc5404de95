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

// RecordEntry upserts a ledger entry. Re-recording a photo the ledger
// already holds refreshes its fields; the engine does this when it confirms
// a photo is in place by its remote hash.
func (s *Store) RecordEntry(ctx context.Context, entry *models.LedgerEntry) error {
	if entry.MappingID == "" || entry.PhotoID == "" {
		return errors.New("ledger entry requires mapping_id and photo_id")
	}
	if entry.PlacedAt.IsZero() {
		entry.PlacedAt = time.Now().UTC()
	}

	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshal ledger entry: %w", err)
	}

	return s.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set(ledgerKey(entry.MappingID, entry.PhotoID), data); err != nil {
			return fmt.Errorf("set ledger entry: %w", err)
		}
		return nil
	})
}

// RemoveEntry deletes one ledger entry. Removing an entry that does not
// exist is not an error; the removal pass converges either way.
func (s *Store) RemoveEntry(ctx context.Context, mappingID, photoID string) error {
	return s.db.Update(func(txn *badger.Txn) error {
		err := txn.Delete(ledgerKey(mappingID, photoID))
		if err != nil && !errors.Is(err, badger.ErrKeyNotFound) {
			return fmt.Errorf("delete ledger entry: %w", err)
		}
		return nil
	})
}

// GetEntry retrieves one ledger entry, or nil when the photo has never been
// recorded for this mapping.
func (s *Store) GetEntry(ctx context.Context, mappingID, photoID string) (*models.LedgerEntry, error) {
	var entry models.LedgerEntry
	found := false

	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(ledgerKey(mappingID, photoID))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("get ledger entry: %w", err)
		}
		found = true
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &entry)
		})
	})
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, nil
	}
	return &entry, nil
}

// LedgerEntries returns every ledger entry for a mapping, keyed by photo ID.
// The engine diffs this map against the source's current photo set.
func (s *Store) LedgerEntries(ctx context.Context, mappingID string) (map[string]*models.LedgerEntry, error) {
	entries := make(map[string]*models.LedgerEntry)

	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = true
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := ledgerPrefix(mappingID)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var entry models.LedgerEntry
			err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &entry)
			})
			if err != nil {
				return fmt.Errorf("unmarshal ledger entry: %w", err)
			}
			entries[entry.PhotoID] = &entry
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return entries, nil
}

// CountEntries returns the number of ledger entries for a mapping without
// reading their values.
func (s *Store) CountEntries(ctx context.Context, mappingID string) (int, error) {
	count := 0

	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := ledgerPrefix(mappingID)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			count++
		}
		return nil
	})
	return count, err
}
