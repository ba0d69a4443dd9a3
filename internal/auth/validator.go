// Switchboard - Multiplexed WebSocket and HTTP API Gateway
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/switchboard

package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Validator turns a raw bearer token into an Identity.
type Validator interface {
	Validate(ctx context.Context, raw string) (*Identity, error)
}

// Verifier checks a token's signature and claims. Failures must be
// *AuthError; transport problems must carry ReasonUnavailable.
type Verifier interface {
	Verify(ctx context.Context, raw string) (*Identity, error)
	Name() string
}

// ClaimsMapping controls how claims become Identity fields.
type ClaimsMapping struct {
	// RoleClaims are dot paths to role arrays. All of them contribute.
	RoleClaims []string
	// UsernameClaim falls back to sub when absent.
	UsernameClaim string
}

// DefaultClaimsMapping covers Keycloak realm roles and a flat roles claim.
func DefaultClaimsMapping() ClaimsMapping {
	return ClaimsMapping{
		RoleClaims:    []string{"realm_access.roles", "roles"},
		UsernameClaim: "preferred_username",
	}
}

// ExtractToken returns the bearer token from the queryParam query parameter
// or, failing that, the Authorization header. queryParam may be empty to
// accept the header only.
func ExtractToken(r *http.Request, queryParam string) string {
	if queryParam != "" {
		if t := strings.TrimSpace(r.URL.Query().Get(queryParam)); t != "" {
			return t
		}
	}
	parts := strings.SplitN(r.Header.Get("Authorization"), " ", 2)
	if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
		return strings.TrimSpace(parts[1])
	}
	return ""
}

// identityFromClaims maps verified claims onto an Identity.
func (m ClaimsMapping) identityFromClaims(claims jwt.MapClaims) (*Identity, error) {
	sub, err := claims.GetSubject()
	if err != nil || sub == "" {
		return nil, newAuthError(ReasonMalformed, errors.New("token missing sub claim"))
	}

	username, _ := claims[m.UsernameClaim].(string)

	var roles []string
	for _, path := range m.RoleClaims {
		roles = append(roles, stringsAt(claims, path)...)
	}

	var expiresAt time.Time
	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
		expiresAt = exp.Time
	}

	id := NewIdentity(sub, username, roles, expiresAt)
	id.TokenID, _ = claims["jti"].(string)
	return id, nil
}

// stringsAt walks a dot path through nested claim objects and returns the
// strings found at the end. A single string is returned as one element.
func stringsAt(claims map[string]interface{}, path string) []string {
	var cur interface{} = claims
	for _, seg := range strings.Split(path, ".") {
		obj, ok := cur.(map[string]interface{})
		if !ok {
			return nil
		}
		if cur, ok = obj[seg]; !ok {
			return nil
		}
	}

	switch v := cur.(type) {
	case string:
		return []string{v}
	case []interface{}:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	case []string:
		return v
	}
	return nil
}

// classifyJWTError maps golang-jwt parse errors onto AuthError reasons.
func classifyJWTError(err error) *AuthError {
	var ae *AuthError
	switch {
	case errors.Is(err, ErrUnavailable):
		return newAuthError(ReasonUnavailable, err)
	case errors.As(err, &ae):
		return ae
	case errors.Is(err, jwt.ErrTokenExpired):
		return newAuthError(ReasonExpired, err)
	default:
		return newAuthError(ReasonMalformed, err)
	}
}

func parserOptions(methods []string, issuer, audience string, leeway time.Duration) []jwt.ParserOption {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods(methods),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(leeway),
	}
	if issuer != "" {
		opts = append(opts, jwt.WithIssuer(issuer))
	}
	if audience != "" {
		opts = append(opts, jwt.WithAudience(audience))
	}
	return opts
}

func unavailablef(format string, args ...interface{}) error {
	return fmt.Errorf("%w: "+format, append([]interface{}{ErrUnavailable}, args...)...)
}
