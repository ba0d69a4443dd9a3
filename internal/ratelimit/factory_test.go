// Switchboard - Multiplexed WebSocket and HTTP API Gateway
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/switchboard

package ratelimit

import (
	"testing"
	"time"

	"github.com/tomtom215/switchboard/internal/config"
)

func badgerTestConfig(path string) config.RateLimitConfig {
	p := config.PolicyConfig{Limit: 10, Burst: 0, Window: time.Second}
	return config.RateLimitConfig{
		Store:         config.StoreBadger,
		BadgerPath:    path,
		FailurePolicy: config.FailClosed,
		HTTP:          p,
		WSConnect:     p,
		WSMessage:     p,
	}
}

// TestNewFromConfig_ReleasesBadgerOnError checks that a failed build does
// not keep the Badger directory lock, so the path can be opened again.
func TestNewFromConfig_ReleasesBadgerOnError(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*config.RateLimitConfig)
	}{
		{"bad failure policy", func(c *config.RateLimitConfig) { c.FailurePolicy = "sideways" }},
		{"bad domain policy", func(c *config.RateLimitConfig) { c.WSMessage.Limit = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			cfg := badgerTestConfig(dir)
			tt.mutate(&cfg)

			if l, s, err := NewFromConfig(cfg, nil); err == nil {
				t.Fatalf("NewFromConfig() = %v, %v, want error", l, s)
			}

			bs, err := OpenBadgerStore(dir)
			if err != nil {
				t.Fatalf("reopen after failed build: %v", err)
			}
			if err := bs.Close(); err != nil {
				t.Errorf("Close() error = %v", err)
			}
		})
	}
}

func TestNewFromConfig_Badger(t *testing.T) {
	l, s, err := NewFromConfig(badgerTestConfig(t.TempDir()), nil)
	if err != nil {
		t.Fatalf("NewFromConfig() error = %v", err)
	}
	bs, ok := s.(*BadgerStore)
	if !ok {
		t.Fatalf("store = %T, want *BadgerStore", s)
	}
	defer bs.Close()
	if l == nil {
		t.Fatal("limiter is nil")
	}
}
