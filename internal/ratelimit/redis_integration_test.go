// Switchboard - Multiplexed WebSocket and HTTP API Gateway
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/switchboard

//go:build integration

package ratelimit

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/tomtom215/switchboard/internal/testinfra"
)

func TestRedisStore_RealServer_ExactWindow(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}
	client := testinfra.StartRedis(t)
	s := NewRedisStore(client, "it:")
	ctx := context.Background()

	for i := 0; i < 100; i++ {
		ok, _, err := s.Allow(ctx, "conn-1", 100, time.Minute, epoch.Add(time.Duration(i)*time.Millisecond))
		if err != nil || !ok {
			t.Fatalf("event %d: allowed=%v err=%v", i, ok, err)
		}
	}
	ok, retry, err := s.Allow(ctx, "conn-1", 100, time.Minute, epoch.Add(time.Second))
	if err != nil || ok {
		t.Fatalf("101st allowed=%v err=%v", ok, err)
	}
	if retry != 59*time.Second {
		t.Errorf("retryAfter = %v, want 59s", retry)
	}
}

// Two limiters sharing one Redis key space admit exactly limit events in
// total, which is what makes the budget hold across gateway instances.
func TestRedisStore_RealServer_SharedAcrossInstances(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}
	client := testinfra.StartRedis(t)
	a := NewRedisStore(client, "shared:")
	b := NewRedisStore(client, "shared:")

	var admitted atomic.Int32
	var wg sync.WaitGroup
	now := time.Now()
	for i := 0; i < 200; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			s := a
			if i%2 == 1 {
				s = b
			}
			if ok, _, err := s.Allow(context.Background(), "user-1", 50, time.Minute, now); err == nil && ok {
				admitted.Add(1)
			}
		}(i)
	}
	wg.Wait()
	if got := admitted.Load(); got != 50 {
		t.Errorf("admitted = %d, want 50", got)
	}
}
