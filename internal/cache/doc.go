// Switchboard - Multiplexed WebSocket and HTTP API Gateway
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/switchboard

/*
Package cache provides bounded in-memory data structures.

ExpiringSet holds keys with individual deadlines and a hard capacity. The
in-memory token revocation list stores revoked token ids in one for a fixed
retention, so the deny list cannot grow without bound on a long-running
instance.

	s := cache.NewExpiringSet(100000, 24*time.Hour)
	s.Add(tokenID, 0)
	if s.Contains(tokenID) { ... }
*/
package cache
