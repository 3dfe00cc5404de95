// Frame-Connect - Photo Sync for Remote Display Devices
// Copyright 2026 C. Malpass (cmalpass)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/cmalpass/frame-connect

package store

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"

	"github.com/cmalpass/frame-connect/internal/models"
)

// PutMapping creates or updates a mapping. The active-mapping invariant is
// enforced here: claiming a (source, device) pair that another active
// mapping already holds fails with ErrPairConflict. The pair index, the old
// index entry when a mapping moves pairs or deactivates, and the record
// itself are written in one transaction.
func (s *Store) PutMapping(ctx context.Context, m *models.Mapping) error {
	if m.ID == "" {
		return errors.New("mapping ID is required")
	}
	if err := m.Validate(); err != nil {
		return err
	}

	now := time.Now().UTC()
	if m.CreatedAt.IsZero() {
		m.CreatedAt = now
	}
	m.UpdatedAt = now

	return s.db.Update(func(txn *badger.Txn) error {
		// Load the previous version so pair moves release their old claim.
		var prev *models.Mapping
		item, err := txn.Get(mappingKey(m.ID))
		switch {
		case err == nil:
			var stored models.Mapping
			if err := item.Value(func(val []byte) error {
				return json.Unmarshal(val, &stored)
			}); err != nil {
				return fmt.Errorf("unmarshal previous mapping: %w", err)
			}
			prev = &stored
			m.CreatedAt = stored.CreatedAt
		case errors.Is(err, badger.ErrKeyNotFound):
			// Create.
		default:
			return fmt.Errorf("get mapping: %w", err)
		}

		if m.Active {
			holder, err := pairHolder(txn, m.PairKey())
			if err != nil {
				return err
			}
			if holder != "" && holder != m.ID {
				return fmt.Errorf("%w: pair %s held by mapping %s", ErrPairConflict, m.PairKey(), holder)
			}
			if err := txn.Set(pairKey(m.PairKey()), []byte(m.ID)); err != nil {
				return fmt.Errorf("set pair index: %w", err)
			}
		}

		// Release a stale claim when the pair changed or the mapping went
		// inactive. Only this mapping's own claim is ever removed.
		if prev != nil && (prev.PairKey() != m.PairKey() || !m.Active) {
			holder, err := pairHolder(txn, prev.PairKey())
			if err != nil {
				return err
			}
			if holder == m.ID {
				if err := txn.Delete(pairKey(prev.PairKey())); err != nil {
					return fmt.Errorf("release pair index: %w", err)
				}
			}
		}

		data, err := json.Marshal(m)
		if err != nil {
			return fmt.Errorf("marshal mapping: %w", err)
		}
		if err := txn.Set(mappingKey(m.ID), data); err != nil {
			return fmt.Errorf("set mapping: %w", err)
		}
		return nil
	})
}

// pairHolder returns the mapping ID holding a pair-index entry, or "" when
// the pair is unclaimed.
func pairHolder(txn *badger.Txn, pair string) (string, error) {
	item, err := txn.Get(pairKey(pair))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("get pair index: %w", err)
	}

	var holder string
	if err := item.Value(func(val []byte) error {
		holder = string(val)
		return nil
	}); err != nil {
		return "", fmt.Errorf("read pair index: %w", err)
	}
	return holder, nil
}

// GetMapping retrieves a mapping by ID.
func (s *Store) GetMapping(ctx context.Context, id string) (*models.Mapping, error) {
	var m models.Mapping

	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(mappingKey(id))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrMappingNotFound
		}
		if err != nil {
			return fmt.Errorf("get mapping: %w", err)
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &m)
		})
	})
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// ListMappings returns all mappings ordered by creation time, oldest first.
func (s *Store) ListMappings(ctx context.Context) ([]*models.Mapping, error) {
	var mappings []*models.Mapping

	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = true
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := []byte(mappingKeyPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var m models.Mapping
			err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &m)
			})
			if err != nil {
				return fmt.Errorf("unmarshal mapping: %w", err)
			}
			mappings = append(mappings, &m)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(mappings, func(i, j int) bool {
		if mappings[i].CreatedAt.Equal(mappings[j].CreatedAt) {
			return mappings[i].ID < mappings[j].ID
		}
		return mappings[i].CreatedAt.Before(mappings[j].CreatedAt)
	})
	return mappings, nil
}

// ActiveMappingForPair returns the active mapping claiming a (source,
// device) pair, or ErrMappingNotFound when the pair is unclaimed.
func (s *Store) ActiveMappingForPair(ctx context.Context, sourceID, deviceID string) (*models.Mapping, error) {
	var id string
	err := s.db.View(func(txn *badger.Txn) error {
		holder, err := pairHolder(txn, sourceID+"|"+deviceID)
		if err != nil {
			return err
		}
		if holder == "" {
			return ErrMappingNotFound
		}
		id = holder
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.GetMapping(ctx, id)
}

// DeleteMapping removes a mapping together with everything scoped to it:
// the pair-index claim, every ledger entry, the run log, and the run
// sequence, all in one transaction.
func (s *Store) DeleteMapping(ctx context.Context, id string) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		item, err := txn.Get(mappingKey(id))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrMappingNotFound
		}
		if err != nil {
			return fmt.Errorf("get mapping: %w", err)
		}

		var m models.Mapping
		if err := item.Value(func(val []byte) error {
			return json.Unmarshal(val, &m)
		}); err != nil {
			return fmt.Errorf("unmarshal mapping: %w", err)
		}

		holder, err := pairHolder(txn, m.PairKey())
		if err != nil {
			return err
		}
		if holder == id {
			if err := txn.Delete(pairKey(m.PairKey())); err != nil {
				return fmt.Errorf("release pair index: %w", err)
			}
		}

		for _, prefix := range [][]byte{ledgerPrefix(id), runLogPrefix(id)} {
			if err := deletePrefix(txn, prefix); err != nil {
				return err
			}
		}
		if err := txn.Delete([]byte(runSeqKeyPrefix + id)); err != nil && !errors.Is(err, badger.ErrKeyNotFound) {
			return fmt.Errorf("delete run sequence: %w", err)
		}

		if err := txn.Delete(mappingKey(id)); err != nil {
			return fmt.Errorf("delete mapping: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.releaseSequence(id)
	s.logger.Info().Str("mapping_id", id).Msg("Mapping deleted")
	return nil
}

// deletePrefix removes every key under a prefix within the transaction.
func deletePrefix(txn *badger.Txn, prefix []byte) error {
	opts := badger.DefaultIteratorOptions
	opts.PrefetchValues = false
	it := txn.NewIterator(opts)
	defer it.Close()

	var keys [][]byte
	for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
		keys = append(keys, it.Item().KeyCopy(nil))
	}
	for _, key := range keys {
		if err := txn.Delete(key); err != nil {
			return fmt.Errorf("delete %s: %w", key, err)
		}
	}
	return nil
}
