// Switchboard - Multiplexed WebSocket and HTTP API Gateway
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/switchboard

package ratelimit

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/tomtom215/switchboard/internal/config"
	"github.com/tomtom215/switchboard/internal/metrics"
)

// fakeClock is a manually advanced clock.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type brokenStore struct{}

func (brokenStore) Allow(context.Context, string, int, time.Duration, time.Time) (bool, time.Duration, error) {
	return false, 0, errors.New("connection refused")
}
func (brokenStore) Name() string { return "broken" }

func testPolicies() map[Domain]Policy {
	return map[Domain]Policy{
		DomainHTTP:      {Limit: 3, Burst: 1, Window: time.Minute},
		DomainWSConnect: {Limit: 2, Window: time.Minute},
		DomainWSMessage: {Limit: 100, Window: time.Minute},
	}
}

func TestNewLimiter_Validation(t *testing.T) {
	tests := []struct {
		name     string
		policies map[Domain]Policy
		failure  FailurePolicy
		wantErr  string
	}{
		{"ok", testPolicies(), FailClosed, ""},
		{"implicit failure policy", testPolicies(), "", "failure policy"},
		{"missing domain", map[Domain]Policy{DomainHTTP: {Limit: 1, Window: time.Second}}, FailOpen, "ws_connect"},
		{"zero window", func() map[Domain]Policy {
			p := testPolicies()
			p[DomainWSMessage] = Policy{Limit: 1}
			return p
		}(), FailOpen, "ws_message"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewLimiter(NewMemoryStore(0, 0), tt.policies, tt.failure)
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("NewLimiter() error = %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("NewLimiter() error = %v, want it to mention %q", err, tt.wantErr)
			}
		})
	}
}

// TestLimiter_MessageWindow walks the per-connection message budget: 100
// messages in a minute pass, the 101st is throttled, and the budget frees up
// as the window slides.
func TestLimiter_MessageWindow(t *testing.T) {
	clock := &fakeClock{now: epoch}
	l, err := NewLimiter(NewMemoryStore(0, 0), testPolicies(), FailClosed, WithClock(clock.Now))
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()

	for i := 0; i < 100; i++ {
		if d := l.Allow(ctx, DomainWSMessage, "conn-a"); !d.Allowed {
			t.Fatalf("message %d rejected", i)
		}
		clock.Advance(500 * time.Millisecond)
	}
	// now = epoch+50s
	d := l.Allow(ctx, DomainWSMessage, "conn-a")
	if d.Allowed {
		t.Fatal("101st message should be throttled")
	}
	if d.RetryAfter != 10*time.Second {
		t.Errorf("RetryAfter = %v, want 10s", d.RetryAfter)
	}
	if d.Degraded {
		t.Error("a normal rejection is not degraded")
	}

	clock.Advance(10 * time.Second)
	if d := l.Allow(ctx, DomainWSMessage, "conn-a"); !d.Allowed {
		t.Fatal("message after the oldest left the window should pass")
	}
}

func TestLimiter_BurstAndDomainIsolation(t *testing.T) {
	clock := &fakeClock{now: epoch}
	l, _ := NewLimiter(NewMemoryStore(0, 0), testPolicies(), FailClosed, WithClock(clock.Now))
	ctx := context.Background()

	// http: limit 3 + burst 1
	for i := 0; i < 4; i++ {
		if !l.Allow(ctx, DomainHTTP, "alice").Allowed {
			t.Fatalf("http request %d rejected", i)
		}
	}
	if l.Allow(ctx, DomainHTTP, "alice").Allowed {
		t.Fatal("fifth http request should be rejected")
	}
	// the same identity still has its ws_connect budget
	if !l.Allow(ctx, DomainWSConnect, "alice").Allowed {
		t.Fatal("domains must not share budgets")
	}
}

func TestLimiter_FailurePolicy(t *testing.T) {
	tests := []struct {
		policy      FailurePolicy
		wantAllowed bool
	}{
		{FailOpen, true},
		{FailClosed, false},
	}
	for _, tt := range tests {
		t.Run(string(tt.policy), func(t *testing.T) {
			l, err := NewLimiter(brokenStore{}, testPolicies(), tt.policy)
			if err != nil {
				t.Fatal(err)
			}
			before := testutil.ToFloat64(metrics.RateLimitStoreErrors.WithLabelValues("broken"))

			d := l.Allow(context.Background(), DomainWSConnect, "1.2.3.4")
			if d.Allowed != tt.wantAllowed || !d.Degraded {
				t.Fatalf("Decision = %+v, want allowed=%v degraded", d, tt.wantAllowed)
			}
			if got := testutil.ToFloat64(metrics.RateLimitStoreErrors.WithLabelValues("broken")); got != before+1 {
				t.Errorf("store error counter = %v, want %v", got, before+1)
			}
		})
	}
}

func TestLimiter_Check(t *testing.T) {
	l, _ := NewLimiter(NewMemoryStore(0, 0), testPolicies(), FailClosed)
	ctx := context.Background()
	if !l.Check(ctx, DomainHTTP, "x", 1, time.Hour).Allowed {
		t.Fatal("first event should pass")
	}
	if l.Check(ctx, DomainHTTP, "x", 1, time.Hour).Allowed {
		t.Fatal("second event should be rejected at limit 1")
	}
}

func TestNewFromConfig(t *testing.T) {
	cfg := config.RateLimitConfig{
		Store:         config.StoreMemory,
		FailurePolicy: config.FailOpen,
		HTTP:          config.PolicyConfig{Limit: 60, Burst: 10, Window: time.Minute},
		WSConnect:     config.PolicyConfig{Limit: 20, Window: time.Minute},
		WSMessage:     config.PolicyConfig{Limit: 100, Window: time.Minute},
	}
	l, store, err := NewFromConfig(cfg, nil)
	if err != nil {
		t.Fatalf("NewFromConfig() error = %v", err)
	}
	if _, ok := store.(*MemoryStore); !ok {
		t.Errorf("store = %T, want *MemoryStore", store)
	}
	if p, _ := l.Policy(DomainHTTP); p.Effective() != 70 {
		t.Errorf("http effective limit = %d, want 70", p.Effective())
	}

	cfg.Store = config.StoreRedis
	if _, _, err := NewFromConfig(cfg, nil); err == nil {
		t.Error("redis store without a client should fail")
	}
	cfg.Store = config.StoreMemory
	cfg.FailurePolicy = ""
	if _, _, err := NewFromConfig(cfg, nil); err == nil {
		t.Error("missing failure policy should fail")
	}
}

func TestMiddleware(t *testing.T) {
	l, _ := NewLimiter(NewMemoryStore(0, 0), testPolicies(), FailClosed)
	h := Middleware(l, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	var last *httptest.ResponseRecorder
	for i := 0; i < 5; i++ {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest("GET", "/api/v1/admin/packages", nil)
		req.RemoteAddr = "10.0.0.7:5555"
		h.ServeHTTP(rec, req)
		if i < 4 && rec.Code != http.StatusNoContent {
			t.Fatalf("request %d status = %d", i, rec.Code)
		}
		last = rec
	}
	if last.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", last.Code)
	}
	if ra := last.Header().Get("Retry-After"); ra == "" || ra == "0" {
		t.Errorf("Retry-After = %q", ra)
	}
	if !strings.Contains(last.Body.String(), "rate limit exceeded") {
		t.Errorf("body = %s", last.Body.String())
	}

	// another client is unaffected
	rec := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/api/v1/admin/packages", nil)
	req.RemoteAddr = "10.0.0.8:5555"
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusNoContent {
		t.Errorf("other client status = %d", rec.Code)
	}
}

func TestClientIP(t *testing.T) {
	r := httptest.NewRequest("GET", "/ws", nil)
	r.RemoteAddr = "192.0.2.1:4000"
	r.Header.Set("X-Forwarded-For", "203.0.113.9")
	if got := ClientIP(r, false); got != "192.0.2.1" {
		t.Errorf("ClientIP(untrusted) = %q", got)
	}
	if got := ClientIP(r, true); got != "203.0.113.9" {
		t.Errorf("ClientIP(trusted) = %q", got)
	}
}

func TestKeyByUser(t *testing.T) {
	user := func(r *http.Request) string { return r.Header.Get("X-Test-User") }
	tests := []struct {
		name    string
		user    string
		want    string
		wantErr bool
	}{
		{"authenticated", "alice", "user:alice", false},
		{"anonymous falls back to address", "", "ip:192.0.2.1", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest("GET", "/api/v1/admin/packages", nil)
			r.RemoteAddr = "192.0.2.1:4000"
			if tt.user != "" {
				r.Header.Set("X-Test-User", tt.user)
			}
			got, err := KeyByUser(user, KeyByIP)(r)
			if (err != nil) != tt.wantErr {
				t.Fatalf("KeyByUser() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("KeyByUser() = %q, want %q", got, tt.want)
			}
		})
	}

	failing := func(*http.Request) (string, error) { return "", errors.New("no address") }
	r := httptest.NewRequest("GET", "/", nil)
	if _, err := KeyByUser(user, failing)(r); err == nil {
		t.Error("fallback error should propagate")
	}
}
