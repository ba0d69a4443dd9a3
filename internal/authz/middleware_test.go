// Switchboard - Multiplexed WebSocket and HTTP API Gateway
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/switchboard

package authz

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/switchboard/internal/auth"
)

func withIdentity(r *http.Request, userID string, roles ...string) *http.Request {
	id := auth.NewIdentity(userID, "", roles, time.Now().Add(time.Hour))
	return r.WithContext(auth.ContextWithIdentity(r.Context(), id))
}

func TestMiddleware_AuthorizeRequest(t *testing.T) {
	m := NewMiddleware(setupEnforcer(t, nil))

	tests := []struct {
		name       string
		method     string
		path       string
		roles      []string
		noIdentity bool
		wantStatus int
	}{
		{"operator GET packages", http.MethodGet, "/api/v1/admin/packages", []string{"operator"}, false, http.StatusOK},
		{"operator POST broadcast", http.MethodPost, "/api/v1/admin/broadcast", []string{"operator"}, false, http.StatusForbidden},
		{"admin POST broadcast", http.MethodPost, "/api/v1/admin/broadcast", []string{"admin"}, false, http.StatusOK},
		{"admin DELETE connection", http.MethodDelete, "/api/v1/admin/connections/bob", []string{"admin"}, false, http.StatusOK},
		{"operator DELETE connection", http.MethodDelete, "/api/v1/admin/connections/bob", []string{"operator"}, false, http.StatusForbidden},
		{"user GET packages", http.MethodGet, "/api/v1/admin/packages", []string{"user"}, false, http.StatusForbidden},
		{"no identity", http.MethodGet, "/api/v1/admin/packages", nil, true, http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			called := false
			h := m.AuthorizeRequest(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				called = true
				w.WriteHeader(http.StatusOK)
			}))

			req := httptest.NewRequest(tt.method, tt.path, nil)
			if !tt.noIdentity {
				req = withIdentity(req, "tester", tt.roles...)
			}
			w := httptest.NewRecorder()
			h.ServeHTTP(w, req)

			if w.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", w.Code, tt.wantStatus)
			}
			if called != (tt.wantStatus == http.StatusOK) {
				t.Errorf("handler called = %v", called)
			}
		})
	}
}

func TestMiddleware_Authorize(t *testing.T) {
	m := NewMiddleware(setupEnforcer(t, nil))
	h := m.Authorize("/api/v1/admin/broadcast", ActionWrite, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	// The fixed object wins over the request path.
	req := withIdentity(httptest.NewRequest(http.MethodGet, "/anything", nil), "a", "admin")
	w := httptest.NewRecorder()
	h(w, req)
	if w.Code != http.StatusNoContent {
		t.Errorf("admin status = %d", w.Code)
	}

	req = withIdentity(httptest.NewRequest(http.MethodGet, "/anything", nil), "o", "operator")
	w = httptest.NewRecorder()
	h(w, req)
	if w.Code != http.StatusForbidden {
		t.Errorf("operator status = %d", w.Code)
	}
}

func TestMethodToAction(t *testing.T) {
	tests := map[string]string{
		http.MethodGet:     ActionRead,
		http.MethodHead:    ActionRead,
		http.MethodOptions: ActionRead,
		http.MethodPost:    ActionWrite,
		http.MethodPut:     ActionWrite,
		http.MethodPatch:   ActionWrite,
		http.MethodDelete:  ActionDelete,
	}
	for method, want := range tests {
		if got := methodToAction(method); got != want {
			t.Errorf("methodToAction(%s) = %s, want %s", method, got, want)
		}
	}
}

func TestPolicyHandlers(t *testing.T) {
	h := NewPolicyHandlers(setupEnforcer(t, nil))

	t.Run("get policy", func(t *testing.T) {
		w := httptest.NewRecorder()
		h.GetPolicy(w, httptest.NewRequest(http.MethodGet, "/api/v1/admin/policy", nil))
		if w.Code != http.StatusOK {
			t.Fatalf("status = %d", w.Code)
		}
		var resp PolicyResponse
		if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
			t.Fatal(err)
		}
		if len(resp.Rules) != 4 {
			t.Errorf("rules = %+v", resp.Rules)
		}
		if len(resp.Assignments) != 1 || resp.Assignments[0] != (RoleAssignment{Member: "admin", Role: "operator"}) {
			t.Errorf("assignments = %+v", resp.Assignments)
		}
	})

	checks := []struct {
		name       string
		body       string
		roles      []string
		wantStatus int
		wantBody   string
	}{
		{"allowed", `{"object":"/api/v1/admin/packages","action":"read"}`, []string{"operator"}, http.StatusOK, `"allowed":true`},
		{"denied", `{"object":"/api/v1/admin/broadcast","action":"write"}`, []string{"operator"}, http.StatusOK, `"allowed":false`},
		{"missing fields", `{"object":""}`, []string{"operator"}, http.StatusBadRequest, ""},
		{"bad json", `{`, []string{"operator"}, http.StatusBadRequest, ""},
	}
	for _, tt := range checks {
		t.Run("check "+tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/v1/admin/policy/check", strings.NewReader(tt.body))
			req = withIdentity(req, "tester", tt.roles...)
			w := httptest.NewRecorder()
			h.CheckPermission(w, req)
			if w.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", w.Code, tt.wantStatus)
			}
			if tt.wantBody != "" && !strings.Contains(w.Body.String(), tt.wantBody) {
				t.Errorf("body = %s, want %s", w.Body.String(), tt.wantBody)
			}
		})
	}

	t.Run("check unauthenticated", func(t *testing.T) {
		w := httptest.NewRecorder()
		h.CheckPermission(w, httptest.NewRequest(http.MethodPost, "/api/v1/admin/policy/check", strings.NewReader(`{}`)))
		if w.Code != http.StatusUnauthorized {
			t.Errorf("status = %d", w.Code)
		}
	})
}
