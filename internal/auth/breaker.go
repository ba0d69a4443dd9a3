// Switchboard - Multiplexed WebSocket and HTTP API Gateway
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/switchboard

package auth

import (
	"context"
	"errors"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/tomtom215/switchboard/internal/logging"
	"github.com/tomtom215/switchboard/internal/metrics"
)

// BreakerConfig tunes the circuit breaker in front of a Verifier.
type BreakerConfig struct {
	Name string
	// MaxRequests is the number of trial calls allowed while half-open.
	MaxRequests uint32
	// Interval clears the closed-state counts. Zero never clears them.
	Interval time.Duration
	// Timeout is how long the breaker stays open.
	Timeout time.Duration
	// ConsecutiveFailures trips the breaker.
	ConsecutiveFailures uint32
}

// DefaultBreakerConfig returns the settings used when none are configured.
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		Name:                "token_validator",
		MaxRequests:         3,
		Interval:            time.Minute,
		Timeout:             30 * time.Second,
		ConsecutiveFailures: 5,
	}
}

// BreakerValidator is the Validator used by the gateway. It runs the
// Verifier and the revocation check inside a circuit breaker and fails fast
// with ReasonUnavailable while the breaker is open.
type BreakerValidator struct {
	verifier    Verifier
	revocations RevocationList
	cb          *gobreaker.CircuitBreaker[*Identity]
	name        string
}

// NewBreakerValidator wraps verifier. revocations may be nil.
func NewBreakerValidator(verifier Verifier, revocations RevocationList, cfg BreakerConfig) *BreakerValidator {
	def := DefaultBreakerConfig()
	if cfg.Name == "" {
		cfg.Name = def.Name
	}
	if cfg.ConsecutiveFailures == 0 {
		cfg.ConsecutiveFailures = def.ConsecutiveFailures
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = def.Timeout
	}

	settings := gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			metrics.CircuitBreakerConsecutiveFailures.WithLabelValues(cfg.Name).Set(float64(counts.ConsecutiveFailures))
			return counts.ConsecutiveFailures >= cfg.ConsecutiveFailures
		},
		// Credential failures are the caller's problem, not the provider's.
		IsSuccessful: func(err error) bool {
			return err == nil || !errors.Is(err, ErrUnavailable)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			metrics.CircuitBreakerState.WithLabelValues(name).Set(float64(to))
			metrics.CircuitBreakerTransitions.WithLabelValues(name, from.String(), to.String()).Inc()
			logging.Warn().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("circuit breaker state change")
		},
	}

	return &BreakerValidator{
		verifier:    verifier,
		revocations: revocations,
		cb:          gobreaker.NewCircuitBreaker[*Identity](settings),
		name:        cfg.Name,
	}
}

// Validate implements Validator.
func (b *BreakerValidator) Validate(ctx context.Context, raw string) (*Identity, error) {
	if raw == "" {
		err := newAuthError(ReasonMalformed, errors.New("no token presented"))
		metrics.RecordAuthResult(string(err.Reason))
		return nil, err
	}

	id, err := b.cb.Execute(func() (*Identity, error) {
		return b.verify(ctx, raw)
	})

	switch {
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		metrics.CircuitBreakerRequests.WithLabelValues(b.name, "rejected").Inc()
		err = newAuthError(ReasonUnavailable, err)
	case errors.Is(err, ErrUnavailable):
		metrics.CircuitBreakerRequests.WithLabelValues(b.name, "failure").Inc()
	default:
		metrics.CircuitBreakerRequests.WithLabelValues(b.name, "success").Inc()
	}

	if err != nil {
		var ae *AuthError
		if !errors.As(err, &ae) {
			ae = newAuthError(ReasonMalformed, err)
		}
		metrics.RecordAuthResult(string(ae.Reason))
		return nil, ae
	}
	metrics.RecordAuthResult("ok")
	return id, nil
}

func (b *BreakerValidator) verify(ctx context.Context, raw string) (*Identity, error) {
	id, err := b.verifier.Verify(ctx, raw)
	if err != nil {
		return nil, err
	}
	if b.revocations == nil || id.TokenID == "" {
		return id, nil
	}
	revoked, err := b.revocations.IsRevoked(ctx, id.TokenID)
	if err != nil {
		return nil, newAuthError(ReasonUnavailable, err)
	}
	if revoked {
		return nil, newAuthError(ReasonRevoked, errors.New("token id "+id.TokenID+" is revoked"))
	}
	return id, nil
}

// State reports the breaker state for health and stats output.
func (b *BreakerValidator) State() string {
	return b.cb.State().String()
}

// Revocations returns the revocation list, or nil when none is configured.
func (b *BreakerValidator) Revocations() RevocationList {
	return b.revocations
}
