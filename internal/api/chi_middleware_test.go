// Switchboard - Multiplexed WebSocket and HTTP API Gateway
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/switchboard

package api

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestNewChiMiddleware_DefaultConfig(t *testing.T) {
	m := NewChiMiddleware(nil)
	if m.config == nil {
		t.Fatal("config is nil")
	}
	if len(m.config.CORSAllowedOrigins) != 0 {
		t.Errorf("CORSAllowedOrigins = %v, want []", m.config.CORSAllowedOrigins)
	}
	if m.config.HealthRateLimit != RateLimitHealth {
		t.Errorf("HealthRateLimit = %+v", m.config.HealthRateLimit)
	}
	if m.config.PreAuthRateLimit != RateLimitPreAuth {
		t.Errorf("PreAuthRateLimit = %+v", m.config.PreAuthRateLimit)
	}
}

func TestChiMiddleware_CORS(t *testing.T) {
	cfg := DefaultChiMiddlewareConfig()
	cfg.CORSAllowedOrigins = []string{"https://console.example.com"}
	handler := NewChiMiddleware(cfg).CORS()(okHandler())

	tests := []struct {
		name       string
		origin     string
		wantHeader string
	}{
		{"allowed origin", "https://console.example.com", "https://console.example.com"},
		{"foreign origin", "https://evil.example.com", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodOptions, "/api/v1/admin/packages", nil)
			req.Header.Set("Origin", tt.origin)
			req.Header.Set("Access-Control-Request-Method", http.MethodGet)
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)
			if got := rec.Header().Get("Access-Control-Allow-Origin"); got != tt.wantHeader {
				t.Errorf("Access-Control-Allow-Origin = %q, want %q", got, tt.wantHeader)
			}
		})
	}
}

func TestChiMiddleware_IPRateLimits(t *testing.T) {
	tests := []struct {
		name     string
		disabled bool
		wantLast int
	}{
		{"enforced", false, http.StatusTooManyRequests},
		{"disabled", true, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultChiMiddlewareConfig()
			cfg.HealthRateLimit = RateLimitConfig{Requests: 2, Window: time.Minute}
			cfg.PreAuthRateLimit = cfg.HealthRateLimit
			cfg.RateLimitDisabled = tt.disabled
			m := NewChiMiddleware(cfg)
			for _, route := range []struct {
				path string
				mw   func(http.Handler) http.Handler
			}{
				{"/health/live", m.RateLimitHealth()},
				{"/api/v1/admin/packages", m.RateLimitPreAuth()},
			} {
				handler := route.mw(okHandler())
				var last int
				for i := 0; i < 3; i++ {
					req := httptest.NewRequest(http.MethodGet, route.path, nil)
					req.RemoteAddr = "192.0.2.10:5555"
					rec := httptest.NewRecorder()
					handler.ServeHTTP(rec, req)
					last = rec.Code
				}
				if last != tt.wantLast {
					t.Errorf("%s third request = %d, want %d", route.path, last, tt.wantLast)
				}
			}
		})
	}
}

func TestAPISecurityHeaders(t *testing.T) {
	tests := []struct {
		name     string
		proto    string
		wantHSTS bool
	}{
		{"plain http", "", false},
		{"behind tls proxy", "https", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/health/live", nil)
			if tt.proto != "" {
				req.Header.Set("X-Forwarded-Proto", tt.proto)
			}
			rec := httptest.NewRecorder()
			APISecurityHeaders()(okHandler()).ServeHTTP(rec, req)

			if rec.Header().Get("X-Frame-Options") != "DENY" {
				t.Error("X-Frame-Options missing")
			}
			if rec.Header().Get("Cache-Control") != "no-store" {
				t.Error("Cache-Control missing")
			}
			if got := rec.Header().Get("Strict-Transport-Security") != ""; got != tt.wantHSTS {
				t.Errorf("HSTS present = %v, want %v", got, tt.wantHSTS)
			}
		})
	}
}
