// Switchboard - Multiplexed WebSocket and HTTP API Gateway
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/switchboard

package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// slidingWindowScript runs the window algorithm on a sorted set scored in
// microseconds. KEYS[1] key; ARGV now, window, limit, member, ttl (ms).
// Returns {allowed, retry_after_us}.
var slidingWindowScript = redis.NewScript(`
local key = KEYS[1]
local now = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local limit = tonumber(ARGV[3])

redis.call('ZREMRANGEBYSCORE', key, '-inf', now - window)
local count = redis.call('ZCARD', key)
if count >= limit then
  local retry = window
  local oldest = redis.call('ZRANGE', key, 0, 0, 'WITHSCORES')
  if oldest[2] then
    retry = tonumber(oldest[2]) + window - now
  end
  return {0, retry}
end

redis.call('ZADD', key, now, ARGV[4])
redis.call('PEXPIRE', key, ARGV[5])
return {1, 0}
`)

// RedisStore keeps windows in Redis sorted sets so every gateway instance
// shares the same budget.
type RedisStore struct {
	client redis.UniversalClient
	prefix string
}

// NewRedisStore prefixes every key with prefix.
func NewRedisStore(client redis.UniversalClient, prefix string) *RedisStore {
	if prefix == "" {
		prefix = "switchboard:rl:"
	}
	return &RedisStore{client: client, prefix: prefix}
}

func (s *RedisStore) Name() string { return "redis" }

// Allow implements Store.
func (s *RedisStore) Allow(ctx context.Context, key string, limit int, window time.Duration, now time.Time) (bool, time.Duration, error) {
	if limit <= 0 {
		return false, window, nil
	}
	ttl := window.Milliseconds() + 1
	res, err := slidingWindowScript.Run(ctx, s.client,
		[]string{s.prefix + key},
		now.UnixMicro(), window.Microseconds(), limit, uuid.NewString(), ttl,
	).Int64Slice()
	if err != nil {
		return false, 0, fmt.Errorf("%w: redis: %v", ErrStoreUnavailable, err)
	}
	if len(res) != 2 {
		return false, 0, fmt.Errorf("%w: redis: unexpected script reply %v", ErrStoreUnavailable, res)
	}
	if res[0] == 1 {
		return true, 0, nil
	}
	retry := time.Duration(res[1]) * time.Microsecond
	if retry < time.Millisecond {
		retry = time.Millisecond
	}
	return false, retry, nil
}
