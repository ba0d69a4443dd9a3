// Switchboard - Multiplexed WebSocket and HTTP API Gateway
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/switchboard

package logging

import (
	"strconv"
	"strings"

	"github.com/rs/zerolog"
)

// SecurityEvent is one audit-relevant occurrence at the gateway edge.
type SecurityEvent struct {
	// Event names what happened, e.g. "ws_admission_rejected".
	Event    string
	UserID   string
	Username string
	IP       string
	Origin   string
	// Reason is a short machine-friendly cause such as "expired" or "connection_limit".
	Reason  string
	Details map[string]string
}

// SecurityLogger writes audit events with credentials masked.
// Audit persistence is external; this only shapes the log stream.
type SecurityLogger struct {
	logger zerolog.Logger
}

// NewSecurityLogger creates a security logger over the global logger.
func NewSecurityLogger() *SecurityLogger {
	return &SecurityLogger{logger: WithComponent("security")}
}

// NewSecurityLoggerWithLogger is used by tests to capture output.
//
//nolint:gocritic // zerolog.Logger is passed by value by design of the library
func NewSecurityLoggerWithLogger(l zerolog.Logger) *SecurityLogger {
	return &SecurityLogger{logger: l.With().Str("component", "security").Logger()}
}

// LogEvent emits ev at warn level.
func (l *SecurityLogger) LogEvent(ev *SecurityEvent) {
	e := l.logger.Warn().Str("event", ev.Event)
	if ev.UserID != "" {
		e = e.Str("user_id", ev.UserID)
	}
	if ev.Username != "" {
		e = e.Str("username", ev.Username)
	}
	if ev.IP != "" {
		e = e.Str("ip", ev.IP)
	}
	if ev.Origin != "" {
		e = e.Str("origin", truncateString(ev.Origin, 200))
	}
	if ev.Reason != "" {
		e = e.Str("reason", ev.Reason)
	}
	for k, v := range ev.Details {
		e = e.Str(k, SanitizeValue(k, v))
	}
	e.Msg("security event")
}

// LogAdmissionRejected records a refused WebSocket connection attempt.
func (l *SecurityLogger) LogAdmissionRejected(ip, origin, userID, reason string, closeCode int) {
	l.LogEvent(&SecurityEvent{
		Event:   "ws_admission_rejected",
		UserID:  userID,
		IP:      ip,
		Origin:  origin,
		Reason:  reason,
		Details: map[string]string{"close_code": strconv.Itoa(closeCode)},
	})
}

// LogEviction records an administrative eviction.
func (l *SecurityLogger) LogEviction(userID, actor string, connections int) {
	l.LogEvent(&SecurityEvent{
		Event:   "ws_user_evicted",
		UserID:  userID,
		Reason:  "administrative",
		Details: map[string]string{"actor": actor, "connections": strconv.Itoa(connections)},
	})
}

// LogAuthzDenied records an admin API request refused by policy.
func (l *SecurityLogger) LogAuthzDenied(userID, ip, path, action string) {
	l.LogEvent(&SecurityEvent{
		Event:   "authz_denied",
		UserID:  userID,
		IP:      ip,
		Reason:  "insufficient_permissions",
		Details: map[string]string{"path": path, "action": action},
	})
}

// SanitizeToken masks a credential, keeping the first and last 4 characters.
func SanitizeToken(token string) string {
	if token == "" {
		return ""
	}
	if len(token) <= 12 {
		return "***"
	}
	return token[:4] + "..." + token[len(token)-4:]
}

// SanitizeValue masks values whose key looks like it carries a credential.
func SanitizeValue(key, value string) string {
	switch strings.ToLower(key) {
	case "token", "access_token", "id_token", "authorization", "bearer", "secret", "password", "api_key":
		return SanitizeToken(value)
	}
	return value
}

func truncateString(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
