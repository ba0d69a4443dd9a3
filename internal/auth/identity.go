// Switchboard - Multiplexed WebSocket and HTTP API Gateway
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/switchboard

package auth

import (
	"sort"
	"time"
)

// Identity is the authenticated principal behind a connection or request.
// It is built once by a Verifier and never mutated afterwards.
type Identity struct {
	UserID   string
	Username string
	// TokenID is the jti claim, empty when the token has none.
	TokenID   string
	ExpiresAt time.Time

	roles map[string]struct{}
}

// NewIdentity builds an Identity. Empty role names are dropped.
func NewIdentity(userID, username string, roles []string, expiresAt time.Time) *Identity {
	set := make(map[string]struct{}, len(roles))
	for _, r := range roles {
		if r != "" {
			set[r] = struct{}{}
		}
	}
	if username == "" {
		username = userID
	}
	return &Identity{
		UserID:    userID,
		Username:  username,
		ExpiresAt: expiresAt,
		roles:     set,
	}
}

// HasRole reports whether the identity holds role.
func (i *Identity) HasRole(role string) bool {
	if i == nil {
		return false
	}
	_, ok := i.roles[role]
	return ok
}

// HasAllRoles reports whether every entry of required is held. An empty
// required list is always satisfied.
func (i *Identity) HasAllRoles(required []string) bool {
	for _, r := range required {
		if !i.HasRole(r) {
			return false
		}
	}
	return true
}

// RoleList returns the roles sorted by name.
func (i *Identity) RoleList() []string {
	if i == nil {
		return nil
	}
	out := make([]string, 0, len(i.roles))
	for r := range i.roles {
		out = append(out, r)
	}
	sort.Strings(out)
	return out
}

// Expired reports whether the token the identity came from has expired at
// now. An identity without an expiry never expires.
func (i *Identity) Expired(now time.Time) bool {
	return !i.ExpiresAt.IsZero() && !now.Before(i.ExpiresAt)
}
