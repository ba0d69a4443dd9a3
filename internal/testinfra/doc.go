// Switchboard - Multiplexed WebSocket and HTTP API Gateway
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/switchboard

//go:build integration

// Package testinfra starts real backing services in Docker for integration
// tests. Everything here is behind the integration build tag:
//
//	go test -tags integration ./internal/ratelimit/... ./internal/auth/...
//
// Unit tests use miniredis instead.
//
//	func TestRedisStore_RealServer(t *testing.T) {
//	    client := testinfra.StartRedis(t)
//	    store := ratelimit.NewRedisStore(client, "it:")
//	    ...
//	}
package testinfra
