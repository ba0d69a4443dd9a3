// Switchboard - Multiplexed WebSocket and HTTP API Gateway
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/switchboard

package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/tomtom215/switchboard/internal/cache"
)

// RevocationList answers whether a token id (jti) has been revoked.
type RevocationList interface {
	IsRevoked(ctx context.Context, tokenID string) (bool, error)
	Revoke(ctx context.Context, tokenID string) error
}

// Bounds of the in-memory deny list. Revoked ids older than the retention
// are forgotten, which is safe as long as tokens live shorter than it.
const (
	memoryRevocationCapacity  = 100000
	memoryRevocationRetention = 24 * time.Hour
)

// MemoryRevocationList is a process-local deny list.
type MemoryRevocationList struct {
	ids *cache.ExpiringSet
}

func NewMemoryRevocationList() *MemoryRevocationList {
	return &MemoryRevocationList{ids: cache.NewExpiringSet(memoryRevocationCapacity, memoryRevocationRetention)}
}

func (m *MemoryRevocationList) IsRevoked(_ context.Context, tokenID string) (bool, error) {
	return m.ids.Contains(tokenID), nil
}

func (m *MemoryRevocationList) Revoke(_ context.Context, tokenID string) error {
	m.ids.Add(tokenID, 0)
	return nil
}

// RedisRevocationList keeps revoked ids in a Redis set shared by every
// gateway instance.
type RedisRevocationList struct {
	client redis.UniversalClient
	key    string
}

// NewRedisRevocationList uses the set at key.
func NewRedisRevocationList(client redis.UniversalClient, key string) *RedisRevocationList {
	if key == "" {
		key = "switchboard:revoked"
	}
	return &RedisRevocationList{client: client, key: key}
}

func (r *RedisRevocationList) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	ok, err := r.client.SIsMember(ctx, r.key, tokenID).Result()
	if err != nil {
		return false, fmt.Errorf("revocation lookup: %w", err)
	}
	return ok, nil
}

func (r *RedisRevocationList) Revoke(ctx context.Context, tokenID string) error {
	if err := r.client.SAdd(ctx, r.key, tokenID).Err(); err != nil {
		return fmt.Errorf("revoke token: %w", err)
	}
	return nil
}
