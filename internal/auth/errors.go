// Switchboard - Multiplexed WebSocket and HTTP API Gateway
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/switchboard

package auth

import "errors"

// Reason classifies a token validation failure.
type Reason string

const (
	ReasonExpired     Reason = "expired"
	ReasonMalformed   Reason = "malformed"
	ReasonRevoked     Reason = "revoked"
	ReasonUnavailable Reason = "introspection_unavailable"
)

// AuthError is returned by every Validator and Verifier failure.
type AuthError struct {
	Reason Reason
	Err    error
}

func (e *AuthError) Error() string {
	if e.Err != nil {
		return string(e.Reason) + ": " + e.Err.Error()
	}
	return string(e.Reason)
}

func (e *AuthError) Unwrap() error { return e.Err }

// Is matches the reason sentinels below, so errors.Is(err, ErrExpired)
// works for any wrapped cause.
func (e *AuthError) Is(target error) bool {
	t, ok := target.(*AuthError)
	return ok && t.Err == nil && t.Reason == e.Reason
}

// Reason sentinels for errors.Is.
var (
	ErrExpired     = &AuthError{Reason: ReasonExpired}
	ErrMalformed   = &AuthError{Reason: ReasonMalformed}
	ErrRevoked     = &AuthError{Reason: ReasonRevoked}
	ErrUnavailable = &AuthError{Reason: ReasonUnavailable}
)

func newAuthError(reason Reason, err error) *AuthError {
	return &AuthError{Reason: reason, Err: err}
}

// ReasonOf extracts the failure reason from err. Errors that are not
// AuthErrors are reported as malformed.
func ReasonOf(err error) Reason {
	var ae *AuthError
	if errors.As(err, &ae) {
		return ae.Reason
	}
	return ReasonMalformed
}
