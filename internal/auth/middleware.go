// Switchboard - Multiplexed WebSocket and HTTP API Gateway
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/switchboard

package auth

import (
	"context"
	"errors"
	"net/http"

	"github.com/tomtom215/switchboard/internal/logging"
)

type contextKey string

// IdentityContextKey is the context key for the request Identity.
const IdentityContextKey contextKey = "auth_identity"

// ErrNoCredentials is returned when a request carries no bearer token.
var ErrNoCredentials = errors.New("no credentials provided")

// ContextWithIdentity returns a copy of ctx carrying id.
func ContextWithIdentity(ctx context.Context, id *Identity) context.Context {
	return context.WithValue(ctx, IdentityContextKey, id)
}

// GetIdentity retrieves the Identity from the request context.
func GetIdentity(ctx context.Context) *Identity {
	id, ok := ctx.Value(IdentityContextKey).(*Identity)
	if !ok {
		return nil
	}
	return id
}

// Middleware authenticates HTTP requests with a bearer token.
type Middleware struct {
	validator Validator
}

// NewMiddleware creates the bearer authentication middleware.
func NewMiddleware(v Validator) *Middleware {
	return &Middleware{validator: v}
}

// Authenticate validates the Authorization header and stores the Identity
// in the request context. The query string is not consulted; only the
// WebSocket handshake accepts a token there.
func (m *Middleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw := ExtractToken(r, "")
		if raw == "" {
			handleAuthError(w, r, ErrNoCredentials)
			return
		}

		id, err := m.validator.Validate(r.Context(), raw)
		if err != nil {
			handleAuthError(w, r, err)
			return
		}

		ctx := ContextWithIdentity(r.Context(), id)
		ctx = logging.ContextWithUserID(ctx, id.UserID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// handleAuthError maps a validation failure to a status code.
func handleAuthError(w http.ResponseWriter, r *http.Request, err error) {
	logging.Ctx(r.Context()).Warn().
		Err(err).
		Str("path", r.URL.Path).
		Msg("HTTP authentication failed")

	switch {
	case errors.Is(err, ErrNoCredentials):
		w.Header().Set("WWW-Authenticate", `Bearer realm="switchboard"`)
		http.Error(w, "Unauthorized: authentication required", http.StatusUnauthorized)
	case errors.Is(err, ErrUnavailable):
		http.Error(w, "Service unavailable: token introspection unavailable", http.StatusServiceUnavailable)
	case errors.Is(err, ErrExpired):
		http.Error(w, "Unauthorized: token expired", http.StatusUnauthorized)
	case errors.Is(err, ErrRevoked):
		http.Error(w, "Unauthorized: token revoked", http.StatusUnauthorized)
	default:
		http.Error(w, "Unauthorized: invalid token", http.StatusUnauthorized)
	}
}
