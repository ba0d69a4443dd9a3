// Switchboard - Multiplexed WebSocket and HTTP API Gateway
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/switchboard

// Package protocol defines the JSON envelopes exchanged over the WebSocket
// endpoint, the response status codes and the close codes the gateway sends.
//
// Inbound:
//
//	{"pkg_id": 5, "req_id": "<uuid>", "method": "get", "data": {...}}
//
// Outbound:
//
//	{"pkg_id": 5, "req_id": "<uuid>", "status_code": 0, "meta": null, "data": {...}}
//
// Broadcasts carry the all-zero UUID as req_id so clients can tell them
// apart from replies.
package protocol
