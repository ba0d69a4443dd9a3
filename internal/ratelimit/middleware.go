// Switchboard - Multiplexed WebSocket and HTTP API Gateway
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/switchboard

package ratelimit

import (
	"math"
	"net"
	"net/http"
	"strconv"

	"github.com/go-chi/httprate"
	"github.com/goccy/go-json"

	"github.com/tomtom215/switchboard/internal/logging"
	"github.com/tomtom215/switchboard/internal/metrics"
)

// KeyFunc derives the rate-limit identity of a request.
type KeyFunc func(r *http.Request) (string, error)

// KeyByIP keys on the connection's remote address.
func KeyByIP(r *http.Request) (string, error) {
	return httprate.KeyByIP(r)
}

// KeyByRealIP honours True-Client-IP, X-Real-IP and X-Forwarded-For. Only
// use it behind a proxy that sets them.
func KeyByRealIP(r *http.Request) (string, error) {
	return httprate.KeyByRealIP(r)
}

// KeyByUser keys on userID(r) when it is non-empty and on fallback
// otherwise. The prefixes keep a user id from colliding with an address.
func KeyByUser(userID func(*http.Request) string, fallback KeyFunc) KeyFunc {
	if fallback == nil {
		fallback = KeyByIP
	}
	return func(r *http.Request) (string, error) {
		if id := userID(r); id != "" {
			return "user:" + id, nil
		}
		key, err := fallback(r)
		if err != nil {
			return "", err
		}
		return "ip:" + key, nil
	}
}

// ClientIP returns the client address used for ws_connect limiting.
func ClientIP(r *http.Request, trustProxy bool) string {
	key := KeyByIP
	if trustProxy {
		key = KeyByRealIP
	}
	if ip, err := key(r); err == nil && ip != "" {
		return ip
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// Middleware limits requests in the http domain. Rejections get 429 with a
// Retry-After header in whole seconds.
func Middleware(l *Limiter, keyFunc KeyFunc) func(http.Handler) http.Handler {
	if keyFunc == nil {
		keyFunc = KeyByIP
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key, err := keyFunc(r)
			if err != nil {
				logging.Ctx(r.Context()).Warn().Err(err).Msg("rate limit key extraction failed")
				key = ClientIP(r, false)
			}

			d := l.Allow(r.Context(), DomainHTTP, key)
			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(d.Limit))
			if d.Allowed {
				next.ServeHTTP(w, r)
				return
			}

			metrics.APIRateLimitHits.WithLabelValues(r.URL.Path).Inc()
			secs := int(math.Ceil(d.RetryAfter.Seconds()))
			if secs < 1 {
				secs = 1
			}
			w.Header().Set("Retry-After", strconv.Itoa(secs))
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusTooManyRequests)
			_ = json.NewEncoder(w).Encode(map[string]interface{}{
				"error":          "rate limit exceeded",
				"retry_after_ms": d.RetryAfter.Milliseconds(),
			})
		})
	}
}
