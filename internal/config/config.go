// Switchboard - Multiplexed WebSocket and HTTP API Gateway
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/switchboard

package config

import (
	"fmt"
	"time"
)

// Config is the complete gateway configuration. Values are layered by
// LoadWithKoanf: struct defaults, then an optional YAML file, then
// environment variables.
type Config struct {
	Server     ServerConfig     `koanf:"server"`
	Logging    LoggingConfig    `koanf:"logging"`
	Security   SecurityConfig   `koanf:"security"`
	Auth       AuthConfig       `koanf:"auth"`
	RateLimit  RateLimitConfig  `koanf:"rate_limit"`
	WebSocket  WebSocketConfig  `koanf:"websocket"`
	Redis      RedisConfig      `koanf:"redis"`
	Broadcast  BroadcastConfig  `koanf:"broadcast"`
	Supervisor SupervisorConfig `koanf:"supervisor"`
}

// ServerConfig holds HTTP listener settings.
type ServerConfig struct {
	Host            string        `koanf:"host"`
	Port            int           `koanf:"port"`
	ReadTimeout     time.Duration `koanf:"read_timeout"`
	WriteTimeout    time.Duration `koanf:"write_timeout"`
	IdleTimeout     time.Duration `koanf:"idle_timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

// Addr returns host:port for http.Server.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	Caller bool   `koanf:"caller"`
}

// SecurityConfig covers browser-facing policy.
type SecurityConfig struct {
	// CORSOrigins applies to the HTTP API.
	CORSOrigins []string `koanf:"cors_origins"`

	// WebSocketOrigins is the Origin allow-list for /ws. "*" accepts any
	// origin and is meant for development only.
	WebSocketOrigins []string `koanf:"websocket_origins"`

	// TrustProxy makes client-IP keyed limits honour X-Forwarded-For and
	// X-Real-IP. Enable only behind a reverse proxy that sets them.
	TrustProxy bool `koanf:"trust_proxy"`

	// AuthzModelPath and AuthzPolicyPath override the embedded Casbin
	// model/policy used for the admin API.
	AuthzModelPath  string `koanf:"authz_model_path"`
	AuthzPolicyPath string `koanf:"authz_policy_path"`
}

// AuthConfig configures the token validator.
type AuthConfig struct {
	// Mode is "hmac" (shared-secret JWT) or "oidc" (JWKS from an OIDC provider).
	Mode string `koanf:"mode"`

	// TokenQueryParam names the query parameter carrying the bearer token on /ws.
	TokenQueryParam string `koanf:"token_query_param"`

	HMACSecret string `koanf:"hmac_secret"`

	// Issuer and Audience are checked when non-empty. In oidc mode Issuer is
	// also the discovery base URL.
	Issuer   string `koanf:"issuer"`
	Audience string `koanf:"audience"`

	// RoleClaims are dot paths searched for role arrays, e.g.
	// "realm_access.roles" or "resource_access.gateway.roles".
	RoleClaims []string `koanf:"role_claims"`

	// UsernameClaim falls back to "sub" when the claim is absent.
	UsernameClaim string `koanf:"username_claim"`

	HTTPTimeout time.Duration `koanf:"http_timeout"`
	ClockSkew   time.Duration `koanf:"clock_skew"`

	// Revocation selects the jti deny-list: "none", "memory" or "redis".
	Revocation         string `koanf:"revocation"`
	RevocationRedisKey string `koanf:"revocation_redis_key"`

	Breaker BreakerConfig `koanf:"breaker"`
}

// BreakerConfig tunes the gobreaker guarding identity-provider calls.
type BreakerConfig struct {
	MaxRequests         uint32        `koanf:"max_requests"`
	Interval            time.Duration `koanf:"interval"`
	Timeout             time.Duration `koanf:"timeout"`
	ConsecutiveFailures uint32        `koanf:"consecutive_failures"`
}

// RateLimitConfig configures the three sliding-window domains.
type RateLimitConfig struct {
	// Store is "memory", "redis" or "badger".
	Store string `koanf:"store"`

	// FailurePolicy decides what happens when the store itself errors:
	// "fail_open" admits, "fail_closed" rejects. There is no implicit default.
	FailurePolicy string `koanf:"failure_policy"`

	HTTP      PolicyConfig `koanf:"http"`
	WSConnect PolicyConfig `koanf:"ws_connect"`
	WSMessage PolicyConfig `koanf:"ws_message"`

	// MaxKeys bounds the in-memory store.
	MaxKeys       int           `koanf:"max_keys"`
	SweepInterval time.Duration `koanf:"sweep_interval"`

	RedisPrefix string `koanf:"redis_prefix"`
	BadgerPath  string `koanf:"badger_path"`
}

// PolicyConfig is a limit of Limit+Burst events per Window.
type PolicyConfig struct {
	Limit  int           `koanf:"limit"`
	Burst  int           `koanf:"burst"`
	Window time.Duration `koanf:"window"`
}

// WebSocketConfig governs per-connection behaviour.
type WebSocketConfig struct {
	MaxConnectionsPerUser int           `koanf:"max_connections_per_user"`
	ReadLimit             int64         `koanf:"read_limit"`
	WriteWait             time.Duration `koanf:"write_wait"`
	PongWait              time.Duration `koanf:"pong_wait"`
	PingPeriod            time.Duration `koanf:"ping_period"`
	SendBuffer            int           `koanf:"send_buffer"`
	HandshakeTimeout      time.Duration `koanf:"handshake_timeout"`

	// CloseOnTokenExpiry closes connections (4001) once the identity captured
	// at connect time expires. Off by default.
	CloseOnTokenExpiry  bool          `koanf:"close_on_token_expiry"`
	ExpirySweepInterval time.Duration `koanf:"expiry_sweep_interval"`
}

type RedisConfig struct {
	Addr        string        `koanf:"addr"`
	Password    string        `koanf:"password"`
	DB          int           `koanf:"db"`
	DialTimeout time.Duration `koanf:"dial_timeout"`
}

// BroadcastConfig selects how broadcasts reach every gateway instance.
type BroadcastConfig struct {
	// Transport is "local" (in-process) or "nats".
	Transport string `koanf:"transport"`
	Topic     string `koanf:"topic"`
	NATSURL   string `koanf:"nats_url"`

	// EmbeddedNATS starts an in-process nats-server and points NATSURL at it.
	EmbeddedNATS bool   `koanf:"embedded_nats"`
	NATSHost     string `koanf:"nats_host"`
	NATSPort     int    `koanf:"nats_port"`
}

type SupervisorConfig struct {
	FailureThreshold float64       `koanf:"failure_threshold"`
	FailureDecay     float64       `koanf:"failure_decay"`
	FailureBackoff   time.Duration `koanf:"failure_backoff"`
	ShutdownTimeout  time.Duration `koanf:"shutdown_timeout"`
}

// RedisRequired reports whether any configured component talks to Redis.
func (c *Config) RedisRequired() bool {
	return c.RateLimit.Store == StoreRedis || c.Auth.Revocation == RevocationRedis
}

const (
	AuthModeHMAC = "hmac"
	AuthModeOIDC = "oidc"

	StoreMemory = "memory"
	StoreRedis  = "redis"
	StoreBadger = "badger"

	FailOpen   = "fail_open"
	FailClosed = "fail_closed"

	RevocationNone   = "none"
	RevocationMemory = "memory"
	RevocationRedis  = "redis"

	TransportLocal = "local"
	TransportNATS  = "nats"
)
