// Switchboard - Multiplexed WebSocket and HTTP API Gateway
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/switchboard

package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP surface
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total number of HTTP API requests",
		},
		[]string{"method", "endpoint", "status_code"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "HTTP API request duration in seconds",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		},
		[]string{"method", "endpoint"},
	)

	APIActiveRequests = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "api_active_requests",
			Help: "Current number of in-flight HTTP API requests",
		},
	)

	APIRateLimitHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_rate_limit_hits_total",
			Help: "HTTP requests rejected by rate limiting",
		},
		[]string{"endpoint"},
	)

	// WebSocket connections
	WSConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "websocket_connections",
			Help: "Current number of registered WebSocket connections",
		},
	)

	WSAdmissions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "websocket_admissions_total",
			Help: "WebSocket connection attempts by outcome",
		},
		[]string{"outcome"}, // accepted, origin_rejected, rate_limited, unauthorized, connection_limit
	)

	WSMessagesSent = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "websocket_messages_sent_total",
			Help: "Total number of WebSocket envelopes written",
		},
	)

	WSMessagesReceived = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "websocket_messages_received_total",
			Help: "Total number of WebSocket frames read",
		},
	)

	WSErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "websocket_errors_total",
			Help: "WebSocket errors by type",
		},
		[]string{"error_type"},
	)

	WSCloses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "websocket_server_closes_total",
			Help: "Server-initiated WebSocket closes by close code",
		},
		[]string{"code"},
	)

	WSBroadcasts = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "websocket_broadcasts_total",
			Help: "Broadcast envelopes fanned out by this instance",
		},
	)

	WSBroadcastDeliveries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "websocket_broadcast_deliveries_total",
			Help: "Per-connection broadcast delivery results",
		},
		[]string{"result"}, // delivered, dropped
	)

	// Package router
	PackageRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "package_requests_total",
			Help: "Dispatched packages by pkg_id and resulting status",
		},
		[]string{"pkg_id", "status"},
	)

	PackageDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "package_handler_duration_seconds",
			Help:    "Package handler execution time",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"pkg_id"},
	)

	// Rate limiting
	RateLimitDecisions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rate_limit_decisions_total",
			Help: "Sliding-window admission decisions by domain and outcome",
		},
		[]string{"domain", "outcome"}, // allowed, rejected, fail_open, fail_closed
	)

	RateLimitStoreErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rate_limit_store_errors_total",
			Help: "Errors returned by the rate-limit backing store",
		},
		[]string{"store"},
	)

	RateLimitTrackedKeys = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "rate_limit_memory_keys",
			Help: "Keys held by the in-memory rate-limit store",
		},
	)

	// Token validation
	AuthValidations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "auth_token_validations_total",
			Help: "Token validation results",
		},
		[]string{"result"}, // ok, expired, malformed, revoked, introspection_unavailable
	)

	// Circuit breakers
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	CircuitBreakerRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_requests_total",
			Help: "Requests through the circuit breaker",
		},
		[]string{"name", "result"}, // success, failure, rejected
	)

	CircuitBreakerConsecutiveFailures = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_consecutive_failures",
			Help: "Current number of consecutive failures",
		},
		[]string{"name"},
	)

	CircuitBreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_state_transitions_total",
			Help: "Circuit breaker state transitions",
		},
		[]string{"name", "from_state", "to_state"},
	)

	// Cross-instance broadcast relay
	RelayMessages = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "broadcast_relay_messages_total",
			Help: "Broadcast relay traffic by direction",
		},
		[]string{"direction"}, // published, received, invalid
	)

	AppInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "app_info",
			Help: "Build information",
		},
		[]string{"version", "go_version"},
	)
)

// RecordAPIRequest records one completed HTTP request.
func RecordAPIRequest(method, endpoint, statusCode string, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, endpoint, statusCode).Inc()
	APIRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// TrackActiveRequest moves the in-flight gauge.
func TrackActiveRequest(inc bool) {
	if inc {
		APIActiveRequests.Inc()
	} else {
		APIActiveRequests.Dec()
	}
}

// RecordAdmission counts a WebSocket admission outcome.
func RecordAdmission(outcome string) {
	WSAdmissions.WithLabelValues(outcome).Inc()
}

// RecordServerClose counts a close frame sent by the gateway.
func RecordServerClose(code int) {
	WSCloses.WithLabelValues(strconv.Itoa(code)).Inc()
}

// RecordPackage records a routed package outcome. status is the
// textual status name; duration is zero when the handler never ran.
func RecordPackage(pkgID int, status string, duration time.Duration) {
	id := strconv.Itoa(pkgID)
	PackageRequests.WithLabelValues(id, status).Inc()
	if duration > 0 {
		PackageDuration.WithLabelValues(id).Observe(duration.Seconds())
	}
}

// RecordRateLimit counts a limiter decision.
func RecordRateLimit(domain, outcome string) {
	RateLimitDecisions.WithLabelValues(domain, outcome).Inc()
}

// RecordBroadcast records one fan-out.
func RecordBroadcast(delivered, dropped int) {
	WSBroadcasts.Inc()
	WSBroadcastDeliveries.WithLabelValues("delivered").Add(float64(delivered))
	WSBroadcastDeliveries.WithLabelValues("dropped").Add(float64(dropped))
}

// RecordAuthResult counts a token validation result.
func RecordAuthResult(result string) {
	AuthValidations.WithLabelValues(result).Inc()
}
