// Switchboard - Multiplexed WebSocket and HTTP API Gateway
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/switchboard

package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	oidcclient "github.com/zitadel/oidc/v3/pkg/client"
	"github.com/zitadel/oidc/v3/pkg/client/rp"
	"github.com/zitadel/oidc/v3/pkg/oidc"

	"github.com/tomtom215/switchboard/internal/logging"
)

// oidcSigningAlgs are the algorithms accepted from the provider. HMAC is
// never accepted, so a token signed with the public key as secret fails.
var oidcSigningAlgs = []string{"RS256", "RS384", "RS512", "ES256", "ES384", "PS256"}

// OIDCConfig configures an OIDCVerifier.
type OIDCConfig struct {
	// IssuerURL is both the expected iss claim and the discovery base.
	IssuerURL string
	Audience  string
	ClockSkew time.Duration
	Claims    ClaimsMapping

	// HTTPClient is used for discovery and JWKS. Defaults to a client with
	// a 10 second timeout.
	HTTPClient *http.Client
}

// OIDCVerifier validates provider-signed JWTs. Discovery runs lazily on
// first use and is retried until it succeeds, so the gateway can start
// while the provider is down. Signing keys come from zitadel's remote key
// set, which refetches the JWKS when it meets an unknown kid and keeps the
// last good keys when a fetch fails.
type OIDCVerifier struct {
	cfg    OIDCConfig
	client *http.Client

	mu     sync.Mutex
	keySet oidc.KeySet
}

// NewOIDCVerifier creates a verifier. No network calls are made.
func NewOIDCVerifier(cfg OIDCConfig) (*OIDCVerifier, error) {
	if cfg.IssuerURL == "" {
		return nil, errors.New("oidc issuer url is required")
	}
	if len(cfg.Claims.RoleClaims) == 0 {
		cfg.Claims = DefaultClaimsMapping()
	}
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &OIDCVerifier{cfg: cfg, client: client}, nil
}

func (v *OIDCVerifier) Name() string { return "oidc" }

// Discover fetches the discovery document if it has not been fetched yet.
func (v *OIDCVerifier) Discover(ctx context.Context) error {
	_, err := v.keys(ctx)
	return err
}

func (v *OIDCVerifier) keys(ctx context.Context) (oidc.KeySet, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.keySet != nil {
		return v.keySet, nil
	}

	disc, err := oidcclient.Discover(ctx, v.cfg.IssuerURL, v.client)
	if err != nil {
		return nil, unavailablef("discovery: %v", err)
	}
	if disc.JwksURI == "" {
		return nil, unavailablef("discovery document has no jwks_uri")
	}

	v.keySet = rp.NewRemoteKeySet(v.client, disc.JwksURI)
	logging.Info().Str("issuer", v.cfg.IssuerURL).Str("jwks_uri", disc.JwksURI).Msg("OIDC discovery complete")
	return v.keySet, nil
}

// Verify implements Verifier.
func (v *OIDCVerifier) Verify(ctx context.Context, raw string) (*Identity, error) {
	if raw == "" {
		return nil, newAuthError(ReasonMalformed, errors.New("no token presented"))
	}
	keySet, err := v.keys(ctx)
	if err != nil {
		return nil, classifyJWTError(err)
	}

	var claims oidc.AccessTokenClaims
	payload, err := oidc.ParseToken(raw, &claims)
	if err != nil {
		return nil, newAuthError(ReasonMalformed, err)
	}
	if err := oidc.CheckIssuer(&claims, v.cfg.IssuerURL); err != nil {
		return nil, newAuthError(ReasonMalformed, err)
	}
	if v.cfg.Audience != "" {
		if err := oidc.CheckAudience(&claims, v.cfg.Audience); err != nil {
			return nil, newAuthError(ReasonMalformed, err)
		}
	}
	if err := oidc.CheckSignature(ctx, raw, payload, &claims, oidcSigningAlgs, keySet); err != nil {
		return nil, classifyOIDCError(err)
	}
	// A negative offset grants the configured leeway past exp.
	if err := oidc.CheckExpiration(&claims, -v.cfg.ClockSkew); err != nil {
		return nil, classifyOIDCError(err)
	}
	return v.cfg.Claims.identityFromClaims(jwt.MapClaims(claims.Claims))
}

// classifyOIDCError maps zitadel verification errors onto AuthError
// reasons. The key set flattens transport failures into the signature
// error text, so an unreachable JWKS is recognised by its message.
func classifyOIDCError(err error) *AuthError {
	switch {
	case errors.Is(err, oidc.ErrExpired):
		return newAuthError(ReasonExpired, err)
	case strings.Contains(err.Error(), "unable to fetch key"):
		return newAuthError(ReasonUnavailable, err)
	default:
		return newAuthError(ReasonMalformed, err)
	}
}
