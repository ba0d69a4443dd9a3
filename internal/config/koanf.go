// Switchboard - Multiplexed WebSocket and HTTP API Gateway
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/switchboard

package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths are searched in order when CONFIG_PATH is unset.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/switchboard/config.yaml",
	"/etc/switchboard/config.yml",
}

// ConfigPathEnvVar overrides the config file location.
const ConfigPathEnvVar = "CONFIG_PATH"

func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8080,
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    15 * time.Second,
			IdleTimeout:     60 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Security: SecurityConfig{
			CORSOrigins:      []string{"*"},
			WebSocketOrigins: []string{"*"},
		},
		Auth: AuthConfig{
			Mode:               AuthModeHMAC,
			TokenQueryParam:    "token",
			RoleClaims:         []string{"realm_access.roles", "roles"},
			UsernameClaim:      "preferred_username",
			HTTPTimeout:        5 * time.Second,
			ClockSkew:          30 * time.Second,
			Revocation:         RevocationNone,
			RevocationRedisKey: "switchboard:revoked_jti",
			Breaker: BreakerConfig{
				MaxRequests:         3,
				Interval:            time.Minute,
				Timeout:             30 * time.Second,
				ConsecutiveFailures: 5,
			},
		},
		RateLimit: RateLimitConfig{
			Store:         StoreMemory,
			FailurePolicy: FailClosed,
			HTTP:          PolicyConfig{Limit: 60, Burst: 10, Window: time.Minute},
			WSConnect:     PolicyConfig{Limit: 20, Window: time.Minute},
			WSMessage:     PolicyConfig{Limit: 100, Window: time.Minute},
			MaxKeys:       100000,
			SweepInterval: time.Minute,
			RedisPrefix:   "switchboard:rl",
			BadgerPath:    "./data/ratelimit",
		},
		WebSocket: WebSocketConfig{
			MaxConnectionsPerUser: 5,
			ReadLimit:             512 * 1024,
			WriteWait:             10 * time.Second,
			PongWait:              60 * time.Second,
			PingPeriod:            54 * time.Second,
			SendBuffer:            256,
			HandshakeTimeout:      10 * time.Second,
			ExpirySweepInterval:   30 * time.Second,
		},
		Redis: RedisConfig{
			Addr:        "127.0.0.1:6379",
			DialTimeout: 5 * time.Second,
		},
		Broadcast: BroadcastConfig{
			Transport: TransportLocal,
			Topic:     "switchboard.broadcast",
			NATSURL:   "nats://127.0.0.1:4222",
			NATSHost:  "127.0.0.1",
			NATSPort:  4222,
		},
		Supervisor: SupervisorConfig{
			FailureThreshold: 5,
			FailureDecay:     30,
			FailureBackoff:   15 * time.Second,
			ShutdownTimeout:  10 * time.Second,
		},
	}
}

// LoadWithKoanf builds the configuration with precedence
// env > file > defaults, then validates it.
func LoadWithKoanf() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if path := findConfigFile(); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider("", ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := processSliceFields(k); err != nil {
		return nil, fmt.Errorf("failed to process slice fields: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

func findConfigFile() string {
	if p := os.Getenv(ConfigPathEnvVar); p != "" {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	for _, p := range DefaultConfigPaths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

var sliceConfigPaths = []string{
	"security.cors_origins",
	"security.websocket_origins",
	"auth.role_claims",
}

// processSliceFields splits comma-separated env values for slice fields.
// Values that came from YAML are already slices and are left alone.
func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		s, ok := k.Get(path).(string)
		if !ok || s == "" {
			continue
		}
		parts := strings.Split(s, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				out = append(out, p)
			}
		}
		if err := k.Set(path, out); err != nil {
			return fmt.Errorf("failed to set %s: %w", path, err)
		}
	}
	return nil
}

// envMappings maps supported environment variables (lower-cased) to config
// paths. Anything not listed is ignored.
var envMappings = map[string]string{
	"http_host":        "server.host",
	"http_port":        "server.port",
	"shutdown_timeout": "server.shutdown_timeout",

	"log_level":  "logging.level",
	"log_format": "logging.format",
	"log_caller": "logging.caller",

	"cors_origins":       "security.cors_origins",
	"ws_allowed_origins": "security.websocket_origins",
	"authz_model_path":   "security.authz_model_path",
	"authz_policy_path":  "security.authz_policy_path",
	"trust_proxy":        "security.trust_proxy",

	"auth_mode":              "auth.mode",
	"auth_token_query_param": "auth.token_query_param",
	"jwt_secret":             "auth.hmac_secret",
	"auth_issuer":            "auth.issuer",
	"auth_audience":          "auth.audience",
	"auth_role_claims":       "auth.role_claims",
	"auth_username_claim":    "auth.username_claim",
	"auth_revocation":        "auth.revocation",
	"auth_breaker_timeout":   "auth.breaker.timeout",
	"auth_breaker_failures":  "auth.breaker.consecutive_failures",

	"rate_limit_store":             "rate_limit.store",
	"rate_limit_failure_policy":    "rate_limit.failure_policy",
	"rate_limit_http_limit":        "rate_limit.http.limit",
	"rate_limit_http_burst":        "rate_limit.http.burst",
	"rate_limit_http_window":       "rate_limit.http.window",
	"rate_limit_ws_connect_limit":  "rate_limit.ws_connect.limit",
	"rate_limit_ws_connect_window": "rate_limit.ws_connect.window",
	"rate_limit_ws_message_limit":  "rate_limit.ws_message.limit",
	"rate_limit_ws_message_window": "rate_limit.ws_message.window",
	"rate_limit_badger_path":       "rate_limit.badger_path",

	"ws_max_connections_per_user": "websocket.max_connections_per_user",
	"ws_read_limit":               "websocket.read_limit",
	"ws_close_on_token_expiry":    "websocket.close_on_token_expiry",

	"redis_addr":     "redis.addr",
	"redis_password": "redis.password",
	"redis_db":       "redis.db",

	"broadcast_transport": "broadcast.transport",
	"broadcast_topic":     "broadcast.topic",
	"nats_url":            "broadcast.nats_url",
	"nats_embedded":       "broadcast.embedded_nats",
	"nats_port":           "broadcast.nats_port",
}

func envTransformFunc(key string) string {
	return envMappings[strings.ToLower(key)]
}

// WatchConfigFile invokes callback whenever path changes on disk.
// The caller is responsible for synchronising access to any reloaded Config.
func WatchConfigFile(path string, callback func()) error {
	return file.Provider(path).Watch(func(_ interface{}, err error) {
		if err != nil {
			return
		}
		callback()
	})
}

// ConfigFile returns the config file LoadWithKoanf reads, or "" when
// configuration comes from defaults and the environment only.
func ConfigFile() string {
	return findConfigFile()
}
