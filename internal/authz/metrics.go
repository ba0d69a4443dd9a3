// Switchboard - Multiplexed WebSocket and HTTP API Gateway
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/switchboard

package authz

import (
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// AuthzDecisionsTotal counts admin API decisions by route pattern.
	AuthzDecisionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "authz_decisions_total",
			Help: "Total number of authorization decisions",
		},
		[]string{"resource_pattern", "action", "decision"},
	)

	AuthzDecisionDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "authz_decision_duration_seconds",
			Help:    "Duration of authorization decisions in seconds",
			Buckets: []float64{0.00001, 0.00005, 0.0001, 0.0005, 0.001, 0.005, 0.01},
		},
	)

	AuthzCacheHitsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "authz_cache_hits_total",
			Help: "Total number of authorization cache hits",
		},
	)

	AuthzCacheMissesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "authz_cache_misses_total",
			Help: "Total number of authorization cache misses",
		},
	)

	AuthzPolicyReloadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "authz_policy_reloads_total",
			Help: "Total number of policy reloads by result",
		},
		[]string{"result"},
	)

	// AuthzPolicyRules reports loaded rules by type (p or g).
	AuthzPolicyRules = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "authz_policy_rules",
			Help: "Number of loaded Casbin rules",
		},
		[]string{"type"},
	)
)

// RecordAuthzDecision records one middleware decision.
func RecordAuthzDecision(resource, action string, allowed bool, duration time.Duration) {
	decision := "denied"
	if allowed {
		decision = "allowed"
	}
	AuthzDecisionsTotal.WithLabelValues(resourcePattern(resource), action, decision).Inc()
	AuthzDecisionDuration.Observe(duration.Seconds())
}

// resourcePattern keeps label cardinality bounded: anything below
// /api/v1/admin/<collection> is collapsed to a wildcard, so per-user
// eviction paths share one series.
func resourcePattern(resource string) string {
	const prefix = "/api/v1/admin/"
	if !strings.HasPrefix(resource, prefix) {
		return "other"
	}
	rest := strings.TrimPrefix(resource, prefix)
	if i := strings.IndexByte(rest, '/'); i >= 0 {
		return prefix + rest[:i] + "/*"
	}
	return resource
}
