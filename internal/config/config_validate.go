// Switchboard - Multiplexed WebSocket and HTTP API Gateway
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/switchboard

package config

import (
	"fmt"
	"slices"
	"time"
)

// minHMACSecretLength matches the HS256 key size.
const minHMACSecretLength = 32

// Validate checks every section and returns the first problem found.
func (c *Config) Validate() error {
	if err := c.validateServer(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	if err := c.validateSecurity(); err != nil {
		return err
	}
	if err := c.validateAuth(); err != nil {
		return err
	}
	if err := c.validateRateLimit(); err != nil {
		return err
	}
	if err := c.validateWebSocket(); err != nil {
		return err
	}
	return c.validateBroadcast()
}

func (c *Config) validateServer() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("HTTP_PORT must be between 1 and 65535, got %d", c.Server.Port)
	}
	if c.Server.ShutdownTimeout <= 0 {
		return fmt.Errorf("server.shutdown_timeout must be positive")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "json", "console":
	default:
		return fmt.Errorf("LOG_FORMAT must be json or console, got %q", c.Logging.Format)
	}
	return nil
}

func (c *Config) validateSecurity() error {
	if len(c.Security.WebSocketOrigins) == 0 {
		return fmt.Errorf("WS_ALLOWED_ORIGINS must list at least one origin (use * for development)")
	}
	return nil
}

// ShouldWarnAboutOrigins reports whether the WebSocket origin check is disabled.
func (c *Config) ShouldWarnAboutOrigins() bool {
	return slices.Contains(c.Security.WebSocketOrigins, "*")
}

func (c *Config) validateAuth() error {
	a := c.Auth
	switch a.Mode {
	case AuthModeHMAC:
		if len(a.HMACSecret) < minHMACSecretLength {
			return fmt.Errorf("JWT_SECRET must be at least %d characters in hmac mode", minHMACSecretLength)
		}
	case AuthModeOIDC:
		if a.Issuer == "" {
			return fmt.Errorf("AUTH_ISSUER is required in oidc mode")
		}
	default:
		return fmt.Errorf("AUTH_MODE must be %q or %q, got %q", AuthModeHMAC, AuthModeOIDC, a.Mode)
	}
	if a.TokenQueryParam == "" {
		return fmt.Errorf("auth.token_query_param must not be empty")
	}
	if len(a.RoleClaims) == 0 {
		return fmt.Errorf("AUTH_ROLE_CLAIMS must name at least one claim path")
	}
	switch a.Revocation {
	case RevocationNone, RevocationMemory, RevocationRedis:
	default:
		return fmt.Errorf("AUTH_REVOCATION must be none, memory or redis, got %q", a.Revocation)
	}
	if a.Breaker.ConsecutiveFailures == 0 {
		return fmt.Errorf("auth.breaker.consecutive_failures must be at least 1")
	}
	if a.Breaker.Timeout <= 0 {
		return fmt.Errorf("auth.breaker.timeout must be positive")
	}
	return nil
}

func (c *Config) validateRateLimit() error {
	r := c.RateLimit
	switch r.Store {
	case StoreMemory, StoreRedis:
	case StoreBadger:
		if r.BadgerPath == "" {
			return fmt.Errorf("RATE_LIMIT_BADGER_PATH is required for the badger store")
		}
	default:
		return fmt.Errorf("RATE_LIMIT_STORE must be memory, redis or badger, got %q", r.Store)
	}
	switch r.FailurePolicy {
	case FailOpen, FailClosed:
	default:
		return fmt.Errorf("RATE_LIMIT_FAILURE_POLICY must be set explicitly to %q or %q, got %q",
			FailOpen, FailClosed, r.FailurePolicy)
	}
	for name, p := range map[string]PolicyConfig{
		"http":       r.HTTP,
		"ws_connect": r.WSConnect,
		"ws_message": r.WSMessage,
	} {
		if err := validatePolicy(name, p); err != nil {
			return err
		}
	}
	return nil
}

func validatePolicy(name string, p PolicyConfig) error {
	if p.Limit < 1 {
		return fmt.Errorf("rate_limit.%s.limit must be at least 1, got %d", name, p.Limit)
	}
	if p.Burst < 0 {
		return fmt.Errorf("rate_limit.%s.burst must not be negative", name)
	}
	if p.Window < time.Millisecond {
		return fmt.Errorf("rate_limit.%s.window must be at least 1ms, got %v", name, p.Window)
	}
	return nil
}

func (c *Config) validateWebSocket() error {
	w := c.WebSocket
	if w.MaxConnectionsPerUser < 1 {
		return fmt.Errorf("WS_MAX_CONNECTIONS_PER_USER must be at least 1, got %d", w.MaxConnectionsPerUser)
	}
	if w.ReadLimit < 1024 {
		return fmt.Errorf("WS_READ_LIMIT must be at least 1024 bytes")
	}
	if w.PingPeriod >= w.PongWait {
		return fmt.Errorf("websocket.ping_period (%v) must be shorter than websocket.pong_wait (%v)", w.PingPeriod, w.PongWait)
	}
	if w.SendBuffer < 1 {
		return fmt.Errorf("websocket.send_buffer must be at least 1")
	}
	if w.CloseOnTokenExpiry && w.ExpirySweepInterval <= 0 {
		return fmt.Errorf("websocket.expiry_sweep_interval must be positive when close_on_token_expiry is set")
	}
	return nil
}

func (c *Config) validateBroadcast() error {
	switch c.Broadcast.Transport {
	case TransportLocal:
	case TransportNATS:
		if c.Broadcast.NATSURL == "" && !c.Broadcast.EmbeddedNATS {
			return fmt.Errorf("NATS_URL is required for the nats broadcast transport")
		}
	default:
		return fmt.Errorf("BROADCAST_TRANSPORT must be local or nats, got %q", c.Broadcast.Transport)
	}
	if c.Broadcast.Topic == "" {
		return fmt.Errorf("BROADCAST_TOPIC must not be empty")
	}
	return nil
}
