// Switchboard - Multiplexed WebSocket and HTTP API Gateway
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/switchboard

package ratelimit

import (
	"context"
	"errors"
	"sort"
	"time"
)

// ErrStoreUnavailable wraps every backing-store failure.
var ErrStoreUnavailable = errors.New("rate limit store unavailable")

// Store records events in per-key sliding windows.
//
// Allow prunes entries at or before now-window, rejects without recording
// when limit entries remain, and otherwise records now. retryAfter is the
// time until the oldest entry leaves the window and is zero when allowed.
type Store interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration, now time.Time) (allowed bool, retryAfter time.Duration, err error)
	Name() string
}

// slide applies the window algorithm to an ascending timestamp log and
// returns the updated log. Shared by the memory and badger stores.
func slide(log []int64, limit int, window time.Duration, now time.Time) ([]int64, bool, time.Duration) {
	nowNs := now.UnixNano()
	cutoff := nowNs - int64(window)

	i := sort.Search(len(log), func(i int) bool { return log[i] > cutoff })
	if i > 0 {
		log = append(log[:0], log[i:]...)
	}

	if limit <= 0 {
		return log, false, window
	}
	if len(log) >= limit {
		return log, false, retryAfter(log[0], window, nowNs)
	}

	// keep the log sorted even if callers' clocks step backwards
	j := sort.Search(len(log), func(j int) bool { return log[j] > nowNs })
	log = append(log, 0)
	copy(log[j+1:], log[j:])
	log[j] = nowNs
	return log, true, 0
}

func retryAfter(oldestNs int64, window time.Duration, nowNs int64) time.Duration {
	d := time.Duration(oldestNs + int64(window) - nowNs)
	if d < time.Millisecond {
		d = time.Millisecond
	}
	return d
}
