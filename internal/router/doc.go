// Switchboard - Multiplexed WebSocket and HTTP API Gateway
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/switchboard

// Package router dispatches decoded request envelopes to package handlers.
//
// Registrations are collected with a Builder and frozen by Build. Handle
// runs every request through the same fixed steps:
//
//	lookup -> role check -> schema validation -> handler -> echo ids
//
// Each step can end the request. A package registered with several roles
// requires all of them. A package registered with none is public to every
// authenticated connection. The response always carries the request's
// pkg_id and req_id, whatever the handler put there.
package router
