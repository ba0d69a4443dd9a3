// Switchboard - Multiplexed WebSocket and HTTP API Gateway
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/switchboard

package auth

import (
	"fmt"
	"net/http"

	"github.com/redis/go-redis/v9"

	"github.com/tomtom215/switchboard/internal/config"
)

// NewFromConfig assembles the validator described by cfg. rdb is only used
// when the revocation list lives in Redis and may otherwise be nil.
func NewFromConfig(cfg config.AuthConfig, rdb redis.UniversalClient) (*BreakerValidator, Verifier, error) {
	mapping := ClaimsMapping{RoleClaims: cfg.RoleClaims, UsernameClaim: cfg.UsernameClaim}

	var (
		verifier Verifier
		err      error
	)
	switch cfg.Mode {
	case config.AuthModeHMAC:
		verifier, err = NewHMACVerifier(HMACConfig{
			Secret:    cfg.HMACSecret,
			Issuer:    cfg.Issuer,
			Audience:  cfg.Audience,
			ClockSkew: cfg.ClockSkew,
			Claims:    mapping,
		})
	case config.AuthModeOIDC:
		verifier, err = NewOIDCVerifier(OIDCConfig{
			IssuerURL:  cfg.Issuer,
			Audience:   cfg.Audience,
			ClockSkew:  cfg.ClockSkew,
			Claims:     mapping,
			HTTPClient: &http.Client{Timeout: cfg.HTTPTimeout},
		})
	default:
		err = fmt.Errorf("unknown auth mode %q", cfg.Mode)
	}
	if err != nil {
		return nil, nil, err
	}

	var revocations RevocationList
	switch cfg.Revocation {
	case config.RevocationMemory:
		revocations = NewMemoryRevocationList()
	case config.RevocationRedis:
		if rdb == nil {
			return nil, nil, fmt.Errorf("redis revocation list configured without a redis client")
		}
		revocations = NewRedisRevocationList(rdb, cfg.RevocationRedisKey)
	}

	validator := NewBreakerValidator(verifier, revocations, BreakerConfig{
		Name:                "token_validator",
		MaxRequests:         cfg.Breaker.MaxRequests,
		Interval:            cfg.Breaker.Interval,
		Timeout:             cfg.Breaker.Timeout,
		ConsecutiveFailures: cfg.Breaker.ConsecutiveFailures,
	})
	return validator, verifier, nil
}
