// Switchboard - Multiplexed WebSocket and HTTP API Gateway
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/switchboard

// Package ratelimit implements exact sliding-window rate limiting for the
// three gateway domains: http requests, ws_connect attempts and ws_message
// frames.
//
// Every event timestamp inside the window is kept, so the count is exact
// rather than approximated from fixed buckets. For a key at time now:
//
//  1. timestamps at or before now-window are dropped
//  2. if the remaining count has reached the limit the event is rejected
//     and not recorded
//  3. otherwise now is recorded and the event admitted
//
// The three steps run atomically per key in every Store: a mutex for
// MemoryStore, a Lua script for RedisStore and a transaction for
// BadgerStore.
//
// When the store fails, the Limiter applies the configured FailurePolicy.
// There is no implicit choice between failing open and failing closed.
package ratelimit
