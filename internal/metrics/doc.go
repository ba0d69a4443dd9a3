// Switchboard - Multiplexed WebSocket and HTTP API Gateway
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/switchboard

/*
Package metrics defines the gateway's Prometheus collectors.

Collectors are registered with the default registry through promauto and
exposed by the HTTP surface at /metrics. Instrumented areas:

  - HTTP API latency and throughput
  - WebSocket admissions, closes, message counts and broadcast fan-out
  - Package router outcomes per pkg_id and status
  - Sliding-window rate-limit decisions per domain
  - Token validation results and the identity-provider circuit breaker
  - Cross-instance broadcast relay traffic

Callers use the Record* helpers rather than touching collectors directly,
except for gauges that track a live count.
*/
package metrics
