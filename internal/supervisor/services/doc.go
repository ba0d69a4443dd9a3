// Switchboard - Multiplexed WebSocket and HTTP API Gateway
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/switchboard

/*
Package services adapts gateway components to suture.Service.

  - HTTPServerService: ListenAndServe / Shutdown with a drain timeout
  - RunnerService: anything with RunWithContext (registry, relay, memory store)
  - EmbeddedNATSService: liveness poll and shutdown for the in-process NATS server

Every wrapper implements fmt.Stringer so suture's event log names the
service.
*/
package services
