// Switchboard - Multiplexed WebSocket and HTTP API Gateway
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/switchboard

package ratelimit

import (
	"fmt"
	"io"

	"github.com/redis/go-redis/v9"

	"github.com/tomtom215/switchboard/internal/config"
)

// PoliciesFromConfig converts the three configured domain policies.
func PoliciesFromConfig(cfg config.RateLimitConfig) map[Domain]Policy {
	conv := func(p config.PolicyConfig) Policy {
		return Policy{Limit: p.Limit, Burst: p.Burst, Window: p.Window}
	}
	return map[Domain]Policy{
		DomainHTTP:      conv(cfg.HTTP),
		DomainWSConnect: conv(cfg.WSConnect),
		DomainWSMessage: conv(cfg.WSMessage),
	}
}

// NewFromConfig builds the configured store and a Limiter over it. The
// store is returned so the caller can supervise a MemoryStore sweep or
// close a BadgerStore.
func NewFromConfig(cfg config.RateLimitConfig, rdb redis.UniversalClient) (_ *Limiter, _ Store, err error) {
	var store Store
	switch cfg.Store {
	case config.StoreMemory, "":
		store = NewMemoryStore(cfg.MaxKeys, cfg.SweepInterval)
	case config.StoreRedis:
		if rdb == nil {
			return nil, nil, fmt.Errorf("redis rate limit store configured without a redis client")
		}
		store = NewRedisStore(rdb, cfg.RedisPrefix)
	case config.StoreBadger:
		bs, err := OpenBadgerStore(cfg.BadgerPath)
		if err != nil {
			return nil, nil, err
		}
		store = bs
	default:
		return nil, nil, fmt.Errorf("unknown rate limit store %q", cfg.Store)
	}
	// A BadgerStore holds a directory lock until closed.
	defer func() {
		if c, ok := store.(io.Closer); ok && err != nil {
			_ = c.Close()
		}
	}()

	failure, err := ParseFailurePolicy(cfg.FailurePolicy)
	if err != nil {
		return nil, nil, err
	}
	l, err := NewLimiter(store, PoliciesFromConfig(cfg), failure)
	if err != nil {
		return nil, nil, err
	}
	return l, store, nil
}
