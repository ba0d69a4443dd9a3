// Switchboard - Multiplexed WebSocket and HTTP API Gateway
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/switchboard

/*
Package main is the entry point for the Switchboard gateway.

Switchboard accepts authenticated WebSocket connections on /ws and
multiplexes numbered request packages over them, alongside a small HTTP
surface for health, metrics and administration.

# Application Architecture

The server runs under a Suture v4 supervisor tree:

	RootSupervisor ("switchboard")
	├── TransportSupervisor ("transport-layer")
	│   ├── Embedded NATS server (optional, NATS_EMBEDDED=true)
	│   └── Broadcast relay (Watermill subscriber)
	├── GatewaySupervisor ("gateway-layer")
	│   ├── Connection registry (token-expiry sweep, close-all on shutdown)
	│   └── Rate limit sweeper (memory store only)
	└── APISupervisor ("api-layer")
	    └── HTTP server (Chi router)

Component initialization order:

 1. Configuration: Koanf v2 with environment variables and config file
 2. Logging: zerolog with JSON/console output modes
 3. Redis client, when the rate limit store or revocation list needs it
 4. Token validator behind a gobreaker circuit breaker
 5. Sliding-window rate limiter (memory, redis or badger store)
 6. Connection registry and broadcast relay (GoChannel or NATS)
 7. Package router with the system packages
 8. Casbin enforcer for the admin API
 9. Supervisor tree and HTTP server

# Configuration

Priority: Environment variables > Config file > Defaults

	HTTP_PORT=8080
	LOG_LEVEL=info               # trace, debug, info, warn, error
	LOG_FORMAT=json              # json or console
	AUTH_MODE=hmac               # hmac or oidc
	JWT_SECRET=<32+ chars>       # required in hmac mode
	AUTH_ISSUER=https://idp.example.com/realms/main  # oidc discovery base
	RATE_LIMIT_STORE=memory      # memory, redis or badger
	RATE_LIMIT_FAILURE_POLICY=fail_closed
	WS_ALLOWED_ORIGINS=https://app.example.com
	WS_MAX_CONNECTIONS_PER_USER=5
	BROADCAST_TRANSPORT=local    # local or nats
	REDIS_ADDR=127.0.0.1:6379

The config file is located via CONFIG_PATH or ./config.yaml. Changes to
logging.level in that file apply without a restart.

# Signal Handling

SIGINT and SIGTERM cancel the tree. The HTTP server drains within
SHUTDOWN_TIMEOUT, the registry closes every connection with 1000, and the
transport, rate limit store and Redis client are closed afterwards.
*/
package main
