// Switchboard - Multiplexed WebSocket and HTTP API Gateway
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/switchboard

package ratelimit

import (
	"context"
	"sync"
	"time"

	"github.com/tomtom215/switchboard/internal/logging"
	"github.com/tomtom215/switchboard/internal/metrics"
)

// evictionSample is how many keys are inspected to pick an eviction victim
// when the store is full.
const evictionSample = 16

// windowLog is the timestamp log for one key.
type windowLog struct {
	mu       sync.Mutex
	times    []int64
	window   time.Duration
	lastSeen time.Time
	// dead is set when the log has been removed from the store; holders of
	// a stale pointer must look the key up again.
	dead bool
}

// MemoryStore keeps sliding windows in process memory. It is exact and
// atomic per key but not shared between gateway instances.
//
// The number of keys is bounded by maxKeys. When full, the least recently
// used key among a random sample is evicted. RunWithContext periodically
// drops keys whose windows are empty.
type MemoryStore struct {
	mu      sync.RWMutex
	logs    map[string]*windowLog
	maxKeys int
	sweep   time.Duration
	now     func() time.Time
}

// NewMemoryStore creates a store holding at most maxKeys keys (0 means
// unbounded) and sweeping idle keys every sweep interval.
func NewMemoryStore(maxKeys int, sweep time.Duration) *MemoryStore {
	if sweep <= 0 {
		sweep = time.Minute
	}
	return &MemoryStore{
		logs:    make(map[string]*windowLog),
		maxKeys: maxKeys,
		sweep:   sweep,
		now:     time.Now,
	}
}

func (s *MemoryStore) Name() string { return "memory" }

// Allow implements Store. It never returns an error.
func (s *MemoryStore) Allow(_ context.Context, key string, limit int, window time.Duration, now time.Time) (bool, time.Duration, error) {
	for {
		wl := s.getOrCreate(key, now)
		wl.mu.Lock()
		if wl.dead {
			wl.mu.Unlock()
			continue
		}
		var (
			allowed bool
			retry   time.Duration
		)
		wl.times, allowed, retry = slide(wl.times, limit, window, now)
		wl.window = window
		wl.lastSeen = now
		wl.mu.Unlock()
		return allowed, retry, nil
	}
}

func (s *MemoryStore) getOrCreate(key string, now time.Time) *windowLog {
	s.mu.RLock()
	wl, ok := s.logs[key]
	s.mu.RUnlock()
	if ok {
		return wl
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if wl, ok = s.logs[key]; ok {
		return wl
	}
	if s.maxKeys > 0 && len(s.logs) >= s.maxKeys {
		s.evictLocked()
	}
	wl = &windowLog{lastSeen: now}
	s.logs[key] = wl
	metrics.RateLimitTrackedKeys.Set(float64(len(s.logs)))
	return wl
}

// evictLocked removes the least recently used key of a random sample.
// Must be called with s.mu held for writing.
func (s *MemoryStore) evictLocked() {
	var (
		victim  string
		oldest  time.Time
		sampled int
	)
	for key, wl := range s.logs {
		wl.mu.Lock()
		seen := wl.lastSeen
		wl.mu.Unlock()
		if sampled == 0 || seen.Before(oldest) {
			victim, oldest = key, seen
		}
		sampled++
		if sampled >= evictionSample {
			break
		}
	}
	if sampled > 0 {
		s.removeLocked(victim)
	}
}

func (s *MemoryStore) removeLocked(key string) {
	wl := s.logs[key]
	wl.mu.Lock()
	wl.dead = true
	wl.mu.Unlock()
	delete(s.logs, key)
}

// Sweep drops keys with no entries left inside their window and returns
// how many were removed.
func (s *MemoryStore) Sweep(now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for key, wl := range s.logs {
		wl.mu.Lock()
		if len(wl.times) == 0 || wl.times[len(wl.times)-1] <= now.UnixNano()-int64(wl.window) {
			wl.dead = true
			delete(s.logs, key)
			removed++
		}
		wl.mu.Unlock()
	}
	metrics.RateLimitTrackedKeys.Set(float64(len(s.logs)))
	return removed
}

// Len returns the number of tracked keys.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.logs)
}

// RunWithContext sweeps idle keys until ctx is cancelled.
func (s *MemoryStore) RunWithContext(ctx context.Context) error {
	ticker := time.NewTicker(s.sweep)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if n := s.Sweep(s.now()); n > 0 {
				logging.Debug().Int("removed", n).Int("remaining", s.Len()).Msg("rate limit store swept")
			}
		}
	}
}
