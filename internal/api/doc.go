// Switchboard - Multiplexed WebSocket and HTTP API Gateway
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/switchboard

/*
Package api provides the HTTP surface of the gateway.

Routes:

  - GET  /ws                                  WebSocket connection endpoint
  - GET  /health/live                         liveness, never checks dependencies
  - GET  /health/ready                        readiness, runs every ReadinessCheck
  - GET  /metrics                             Prometheus exposition
  - GET  /api/v1/admin/packages               registered packages
  - GET  /api/v1/admin/connections            live connections (?user_id= filter)
  - DELETE /api/v1/admin/connections/{userID} evict a user on this instance
  - POST /api/v1/admin/broadcast              publish a broadcast to every instance
  - GET  /api/v1/admin/policy                 loaded authorization policy
  - POST /api/v1/admin/policy/check           test a permission for the caller

Admin routes pass, in order, through the http-domain rate limiter, security
headers, response compression, Bearer authentication and Casbin
authorization. The /ws route performs its own admission and is not wrapped
by the request metrics middleware.

Responses use the APIResponse envelope:

	{"success": true, "data": {...}, "meta": {"request_id": "...", "timestamp": "...", "duration_ms": 1}}
	{"success": false, "error": {"code": "VALIDATION_FAILED", "message": "..."}}
*/
package api
