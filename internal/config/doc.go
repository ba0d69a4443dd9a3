// Switchboard - Multiplexed WebSocket and HTTP API Gateway
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/switchboard

// Package config loads gateway configuration with koanf.
//
// Sources are layered, later ones winning:
//
//  1. Built-in defaults (defaultConfig)
//  2. A YAML file from CONFIG_PATH or DefaultConfigPaths
//  3. Environment variables listed in envMappings
//
// Only explicitly mapped environment variables are read, so unrelated
// variables in the process environment cannot leak into the config.
//
// Example config.yaml:
//
//	auth:
//	  mode: oidc
//	  issuer: https://keycloak.example.com/realms/main
//	  audience: gateway
//	  role_claims: [realm_access.roles, resource_access.gateway.roles]
//	rate_limit:
//	  store: redis
//	  failure_policy: fail_open
//	  ws_message: {limit: 100, window: 1m}
//	websocket:
//	  max_connections_per_user: 5
package config
