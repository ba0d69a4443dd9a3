// Switchboard - Multiplexed WebSocket and HTTP API Gateway
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/switchboard

package auth

import (
	"errors"
	"io"
	"net/http/httptest"
	"reflect"
	"testing"
	"time"

	"github.com/tomtom215/switchboard/internal/logging"
)

func init() {
	logging.Init(logging.Config{Level: "error", Format: "json", Output: io.Discard})
}

func TestIdentity_Roles(t *testing.T) {
	id := NewIdentity("u1", "", []string{"admin", "", "broadcast", "admin"}, time.Time{})

	if id.Username != "u1" {
		t.Errorf("Username = %q, want fallback to user id", id.Username)
	}
	if got := id.RoleList(); !reflect.DeepEqual(got, []string{"admin", "broadcast"}) {
		t.Errorf("RoleList() = %v", got)
	}

	tests := []struct {
		name     string
		required []string
		want     bool
	}{
		{"none required", nil, true},
		{"one held", []string{"admin"}, true},
		{"all held", []string{"admin", "broadcast"}, true},
		{"one missing", []string{"admin", "superuser"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := id.HasAllRoles(tt.required); got != tt.want {
				t.Errorf("HasAllRoles(%v) = %v, want %v", tt.required, got, tt.want)
			}
		})
	}

	var nilID *Identity
	if nilID.HasRole("admin") {
		t.Error("nil identity must not hold roles")
	}
}

func TestIdentity_Expired(t *testing.T) {
	now := time.Now()
	if NewIdentity("u", "", nil, time.Time{}).Expired(now) {
		t.Error("identity without expiry should never expire")
	}
	if !NewIdentity("u", "", nil, now).Expired(now) {
		t.Error("identity should be expired at its expiry instant")
	}
	if NewIdentity("u", "", nil, now.Add(time.Minute)).Expired(now) {
		t.Error("identity should not be expired before its expiry")
	}
}

func TestExtractToken(t *testing.T) {
	tests := []struct {
		name   string
		url    string
		header string
		param  string
		want   string
	}{
		{"query param", "/ws?token=abc", "", "token", "abc"},
		{"query wins over header", "/ws?token=abc", "Bearer def", "token", "abc"},
		{"header fallback", "/ws", "Bearer def", "token", "def"},
		{"lowercase scheme", "/ws", "bearer def", "token", "def"},
		{"header only mode", "/ws?token=abc", "Bearer def", "", "def"},
		{"basic ignored", "/ws", "Basic Zm9vOmJhcg==", "token", ""},
		{"nothing", "/ws", "", "token", ""},
		{"custom param", "/ws?access_token=xyz", "", "access_token", "xyz"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest("GET", tt.url, nil)
			if tt.header != "" {
				r.Header.Set("Authorization", tt.header)
			}
			if got := ExtractToken(r, tt.param); got != tt.want {
				t.Errorf("ExtractToken() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestStringsAt(t *testing.T) {
	claims := map[string]interface{}{
		"roles": []interface{}{"a", 7, "b"},
		"realm_access": map[string]interface{}{
			"roles": []interface{}{"admin"},
		},
		"resource_access": map[string]interface{}{
			"gateway": map[string]interface{}{"roles": []interface{}{"broadcast"}},
		},
		"scope": "single",
	}
	tests := []struct {
		path string
		want []string
	}{
		{"roles", []string{"a", "b"}},
		{"realm_access.roles", []string{"admin"}},
		{"resource_access.gateway.roles", []string{"broadcast"}},
		{"resource_access.other.roles", nil},
		{"scope", []string{"single"}},
		{"scope.nested", nil},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			if got := stringsAt(claims, tt.path); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("stringsAt(%q) = %v, want %v", tt.path, got, tt.want)
			}
		})
	}
}

func TestAuthError_Is(t *testing.T) {
	err := newAuthError(ReasonExpired, errors.New("token is expired"))
	if !errors.Is(err, ErrExpired) {
		t.Error("errors.Is(err, ErrExpired) = false")
	}
	if errors.Is(err, ErrMalformed) {
		t.Error("expired error must not match ErrMalformed")
	}
	if ReasonOf(err) != ReasonExpired {
		t.Errorf("ReasonOf() = %q", ReasonOf(err))
	}
	if ReasonOf(errors.New("plain")) != ReasonMalformed {
		t.Error("plain errors should classify as malformed")
	}
	if err.Error() != "expired: token is expired" {
		t.Errorf("Error() = %q", err.Error())
	}
}
