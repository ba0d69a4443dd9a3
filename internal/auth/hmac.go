// Switchboard - Multiplexed WebSocket and HTTP API Gateway
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/switchboard

package auth

import (
	"context"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// HMACConfig configures an HMACVerifier.
type HMACConfig struct {
	Secret    string
	Issuer    string
	Audience  string
	ClockSkew time.Duration
	Claims    ClaimsMapping
}

// HMACVerifier validates HS256/HS384/HS512 tokens signed with a shared secret.
// It never touches the network, so it never reports ReasonUnavailable.
type HMACVerifier struct {
	secret []byte
	claims ClaimsMapping
	parser *jwt.Parser
}

// NewHMACVerifier creates an HMAC verifier.
func NewHMACVerifier(cfg HMACConfig) (*HMACVerifier, error) {
	if cfg.Secret == "" {
		return nil, errors.New("hmac secret is required")
	}
	if len(cfg.Claims.RoleClaims) == 0 {
		cfg.Claims = DefaultClaimsMapping()
	}
	return &HMACVerifier{
		secret: []byte(cfg.Secret),
		claims: cfg.Claims,
		parser: jwt.NewParser(parserOptions([]string{"HS256", "HS384", "HS512"}, cfg.Issuer, cfg.Audience, cfg.ClockSkew)...),
	}, nil
}

// Verify implements Verifier.
func (v *HMACVerifier) Verify(_ context.Context, raw string) (*Identity, error) {
	if raw == "" {
		return nil, newAuthError(ReasonMalformed, errors.New("no token presented"))
	}
	claims := jwt.MapClaims{}
	if _, err := v.parser.ParseWithClaims(raw, claims, func(*jwt.Token) (interface{}, error) {
		return v.secret, nil
	}); err != nil {
		return nil, classifyJWTError(err)
	}
	return v.claims.identityFromClaims(claims)
}

func (v *HMACVerifier) Name() string { return "hmac" }

// TokenIssuer mints HS256 tokens accepted by an HMACVerifier with the same
// secret. Used by the load generator and by tests.
type TokenIssuer struct {
	Secret   string
	Issuer   string
	Audience string
}

// Issue signs a token for subject with roles, valid for ttl.
func (ti TokenIssuer) Issue(subject string, roles []string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"sub":                subject,
		"preferred_username": subject,
		"jti":                uuid.NewString(),
		"iat":                now.Unix(),
		"exp":                now.Add(ttl).Unix(),
		"realm_access":       map[string]interface{}{"roles": roles},
	}
	if ti.Issuer != "" {
		claims["iss"] = ti.Issuer
	}
	if ti.Audience != "" {
		claims["aud"] = ti.Audience
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(ti.Secret))
}
