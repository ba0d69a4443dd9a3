// Switchboard - Multiplexed WebSocket and HTTP API Gateway
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/switchboard

// Package auth validates bearer tokens presented at WebSocket connect time
// and on the admin HTTP API.
//
// A Verifier checks the token itself: HMACVerifier for shared-secret JWTs,
// OIDCVerifier for RS256 tokens issued by an OpenID Connect provider such as
// Keycloak. BreakerValidator wraps a Verifier with a circuit breaker and an
// optional jti revocation list, and is what the rest of the gateway calls.
//
// Every failure is an *AuthError carrying one of four reasons:
//
//	expired                    token exp is in the past
//	malformed                  bad signature, bad claims, unparseable
//	revoked                    jti is on the revocation list
//	introspection_unavailable  provider or revocation store unreachable,
//	                           or the circuit breaker is open
//
// Only introspection_unavailable counts against the breaker. A flood of bad
// tokens never opens it.
package auth
