// Switchboard - Multiplexed WebSocket and HTTP API Gateway
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/switchboard

package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/tomtom215/switchboard/internal/logging"
	"github.com/tomtom215/switchboard/internal/metrics"
)

// Domain partitions rate-limit budgets. The same identity has independent
// windows in each domain.
type Domain string

const (
	DomainHTTP      Domain = "http"
	DomainWSConnect Domain = "ws_connect"
	DomainWSMessage Domain = "ws_message"
)

// Domains lists every domain a Limiter must be configured for.
var Domains = []Domain{DomainHTTP, DomainWSConnect, DomainWSMessage}

// Policy admits Limit+Burst events per Window.
type Policy struct {
	Limit  int
	Burst  int
	Window time.Duration
}

// Effective is the number of events admitted per window.
func (p Policy) Effective() int { return p.Limit + p.Burst }

// FailurePolicy decides what happens when the store cannot answer.
type FailurePolicy string

const (
	FailOpen   FailurePolicy = "fail_open"
	FailClosed FailurePolicy = "fail_closed"
)

// ParseFailurePolicy accepts exactly "fail_open" or "fail_closed".
func ParseFailurePolicy(s string) (FailurePolicy, error) {
	switch FailurePolicy(s) {
	case FailOpen, FailClosed:
		return FailurePolicy(s), nil
	}
	return "", fmt.Errorf("failure policy must be %q or %q, got %q", FailOpen, FailClosed, s)
}

// Decision is the outcome of one admission check.
type Decision struct {
	Allowed    bool
	RetryAfter time.Duration
	Limit      int
	// Degraded is set when the store failed and the failure policy decided.
	Degraded bool
}

// Limiter applies per-domain policies on top of a Store.
type Limiter struct {
	store    Store
	policies map[Domain]Policy
	failure  FailurePolicy
	now      func() time.Time
}

// Option configures a Limiter.
type Option func(*Limiter)

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(l *Limiter) { l.now = now }
}

// NewLimiter requires a policy for every domain and an explicit failure
// policy.
func NewLimiter(store Store, policies map[Domain]Policy, failure FailurePolicy, opts ...Option) (*Limiter, error) {
	if store == nil {
		return nil, fmt.Errorf("rate limit store is required")
	}
	if _, err := ParseFailurePolicy(string(failure)); err != nil {
		return nil, err
	}
	copied := make(map[Domain]Policy, len(policies))
	for _, d := range Domains {
		p, ok := policies[d]
		if !ok {
			return nil, fmt.Errorf("no rate limit policy for domain %s", d)
		}
		if p.Limit <= 0 || p.Burst < 0 || p.Window <= 0 {
			return nil, fmt.Errorf("invalid rate limit policy for domain %s: %+v", d, p)
		}
		copied[d] = p
	}

	l := &Limiter{store: store, policies: copied, failure: failure, now: time.Now}
	for _, opt := range opts {
		opt(l)
	}
	return l, nil
}

// Policy returns the configured policy for domain.
func (l *Limiter) Policy(domain Domain) (Policy, bool) {
	p, ok := l.policies[domain]
	return p, ok
}

// FailurePolicy returns the configured failure policy.
func (l *Limiter) FailurePolicy() FailurePolicy { return l.failure }

// Allow checks one event for identity in domain against the domain policy.
func (l *Limiter) Allow(ctx context.Context, domain Domain, identity string) Decision {
	p, ok := l.policies[domain]
	if !ok {
		logging.Error().Str("domain", string(domain)).Msg("rate limit check for unconfigured domain")
		return l.degraded(domain, time.Minute, 0)
	}
	return l.Check(ctx, domain, identity, p.Effective(), p.Window)
}

// Check is the raw contract: at most limit events per window for identity
// in domain.
func (l *Limiter) Check(ctx context.Context, domain Domain, identity string, limit int, window time.Duration) Decision {
	key := string(domain) + ":" + identity
	allowed, retry, err := l.store.Allow(ctx, key, limit, window, l.now())
	if err != nil {
		metrics.RateLimitStoreErrors.WithLabelValues(l.store.Name()).Inc()
		logging.Warn().
			Err(err).
			Str("domain", string(domain)).
			Str("store", l.store.Name()).
			Str("failure_policy", string(l.failure)).
			Msg("rate limit store error")
		return l.degraded(domain, window, limit)
	}

	outcome := "allowed"
	if !allowed {
		outcome = "rejected"
	}
	metrics.RecordRateLimit(string(domain), outcome)
	return Decision{Allowed: allowed, RetryAfter: retry, Limit: limit}
}

func (l *Limiter) degraded(domain Domain, window time.Duration, limit int) Decision {
	metrics.RecordRateLimit(string(domain), string(l.failure))
	if l.failure == FailOpen {
		return Decision{Allowed: true, Limit: limit, Degraded: true}
	}
	return Decision{Allowed: false, RetryAfter: window, Limit: limit, Degraded: true}
}
