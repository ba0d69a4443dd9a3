// Switchboard - Multiplexed WebSocket and HTTP API Gateway
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/switchboard

/*
Package supervisor runs the gateway's long-lived services under suture v4.

	RootSupervisor ("switchboard")
	├── "transport-layer"
	│   ├── EmbeddedNATSService   (broadcast.transport=nats with embedded server)
	│   └── broadcast-relay       (RunnerService)
	├── "gateway-layer"
	│   ├── websocket-registry    (RunnerService; token expiry sweep, close-all on stop)
	│   └── ratelimit-sweeper     (RunnerService; only with the memory store)
	└── "api-layer"
	    └── HTTPServerService

Crashed services restart with suture's backoff. Restarts are counted per
layer, so a flapping relay does not push the HTTP server into backoff.
Supervisor events are logged through sutureslog into the zerolog stream.

Usage:

	tree, _ := supervisor.NewSupervisorTree(slog.New(logging.NewSlogHandler()), supervisor.TreeConfigFrom(cfg.Supervisor))
	tree.AddGatewayService(services.NewRunnerService("websocket-registry", registry))
	tree.AddAPIService(services.NewHTTPServerService(srv, cfg.Server.Addr(), cfg.Server.ShutdownTimeout))
	err := tree.Serve(ctx)
*/
package supervisor
