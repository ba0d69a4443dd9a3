// Switchboard - Multiplexed WebSocket and HTTP API Gateway
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/switchboard

package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"

	"github.com/tomtom215/switchboard/internal/logging"
)

const badgerConflictRetries = 32

// BadgerStore persists windows in an embedded BadgerDB so budgets survive a
// restart of a single gateway instance.
type BadgerStore struct {
	db     *badger.DB
	prefix []byte
}

// OpenBadgerStore opens (or creates) the database at path. An empty path
// opens an in-memory database.
func OpenBadgerStore(path string) (*BadgerStore, error) {
	opts := badger.DefaultOptions(path)
	if path == "" {
		opts = opts.WithInMemory(true)
	}
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open BadgerDB: %w", err)
	}
	logging.Info().Str("path", path).Bool("in_memory", path == "").Msg("rate limit store opened")
	return &BadgerStore{db: db, prefix: []byte("rl:")}, nil
}

func (s *BadgerStore) Name() string { return "badger" }

// Allow implements Store. Conflicting concurrent transactions on the same
// key are retried.
func (s *BadgerStore) Allow(ctx context.Context, key string, limit int, window time.Duration, now time.Time) (bool, time.Duration, error) {
	k := append(append([]byte{}, s.prefix...), key...)

	var (
		allowed bool
		retry   time.Duration
	)
	for attempt := 0; attempt < badgerConflictRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return false, 0, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
		}
		err := s.db.Update(func(txn *badger.Txn) error {
			var log []int64
			item, err := txn.Get(k)
			switch {
			case errors.Is(err, badger.ErrKeyNotFound):
			case err != nil:
				return err
			default:
				if err := item.Value(func(val []byte) error {
					return json.Unmarshal(val, &log)
				}); err != nil {
					return err
				}
			}

			log, allowed, retry = slide(log, limit, window, now)
			if !allowed {
				return nil
			}
			data, err := json.Marshal(log)
			if err != nil {
				return err
			}
			return txn.SetEntry(badger.NewEntry(k, data).WithTTL(window))
		})
		if errors.Is(err, badger.ErrConflict) {
			continue
		}
		if err != nil {
			return false, 0, fmt.Errorf("%w: badger: %v", ErrStoreUnavailable, err)
		}
		return allowed, retry, nil
	}
	return false, 0, fmt.Errorf("%w: badger: too many transaction conflicts", ErrStoreUnavailable)
}

// Close closes the database.
func (s *BadgerStore) Close() error {
	return s.db.Close()
}
