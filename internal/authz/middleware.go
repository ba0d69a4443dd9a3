// Switchboard - Multiplexed WebSocket and HTTP API Gateway
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/switchboard

package authz

import (
	"net/http"
	"time"

	"github.com/tomtom215/switchboard/internal/auth"
	"github.com/tomtom215/switchboard/internal/logging"
)

// Middleware authorizes authenticated requests against the Casbin policy.
// It must run after auth.Middleware.Authenticate.
type Middleware struct {
	enforcer *Enforcer
	security *logging.SecurityLogger
}

// NewMiddleware creates a new authorization middleware.
func NewMiddleware(enforcer *Enforcer) *Middleware {
	return &Middleware{
		enforcer: enforcer,
		security: logging.NewSecurityLogger(),
	}
}

// Authorize enforces a fixed object and action.
func (m *Middleware) Authorize(object, action string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if m.check(w, r, object, action) {
			next(w, r)
		}
	}
}

// AuthorizeRequest derives the action from the HTTP method and uses the
// request path as the object.
func (m *Middleware) AuthorizeRequest(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if m.check(w, r, r.URL.Path, methodToAction(r.Method)) {
			next.ServeHTTP(w, r)
		}
	})
}

// check writes the error response and returns false when access is denied.
func (m *Middleware) check(w http.ResponseWriter, r *http.Request, object, action string) bool {
	id := auth.GetIdentity(r.Context())
	if id == nil {
		http.Error(w, "Forbidden: no authentication context", http.StatusForbidden)
		return false
	}

	start := time.Now()
	allowed, err := m.enforcer.EnforceWithRoles(id.UserID, id.RoleList(), object, action)
	RecordAuthzDecision(object, action, allowed && err == nil, time.Since(start))
	if err != nil {
		logging.Ctx(r.Context()).Error().Err(err).Msg("Authorization error")
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return false
	}

	if !allowed {
		m.security.LogAuthzDenied(id.UserID, r.RemoteAddr, object, action)
		http.Error(w, "Forbidden: insufficient permissions", http.StatusForbidden)
		return false
	}
	return true
}

// methodToAction maps HTTP methods to Casbin actions.
func methodToAction(method string) string {
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodPatch:
		return ActionWrite
	case http.MethodDelete:
		return ActionDelete
	default:
		return ActionRead
	}
}
