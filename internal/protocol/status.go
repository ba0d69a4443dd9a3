// Switchboard - Multiplexed WebSocket and HTTP API Gateway
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/switchboard

package protocol

import "strconv"

// StatusCode is the closed set of outcomes a response envelope can carry.
// Handlers must not invent values outside it.
type StatusCode int

const (
	StatusOK               StatusCode = 0
	StatusError            StatusCode = 1
	StatusInvalidData      StatusCode = 2
	StatusPermissionDenied StatusCode = 3
)

// Valid reports whether s is one of the four defined codes.
func (s StatusCode) Valid() bool {
	return s >= StatusOK && s <= StatusPermissionDenied
}

func (s StatusCode) String() string {
	switch s {
	case StatusOK:
		return "OK"
	case StatusError:
		return "ERROR"
	case StatusInvalidData:
		return "INVALID_DATA"
	case StatusPermissionDenied:
		return "PERMISSION_DENIED"
	}
	return "UNKNOWN(" + strconv.Itoa(int(s)) + ")"
}

// WebSocket close codes used by the gateway.
const (
	CloseNormal          = 1000
	CloseUnsupportedData = 1003
	ClosePolicyViolation = 1008
	// CloseUnauthorized is application-defined: the credential was missing,
	// invalid or expired at connect time.
	CloseUnauthorized = 4001
)

// MaxCloseReasonLen is the longest reason a close frame can carry.
const MaxCloseReasonLen = 123

// Close reasons sent alongside the codes above.
const (
	ReasonShutdown        = "server shutting down"
	ReasonMalformed       = "malformed message"
	ReasonBinary          = "binary frames are not supported"
	ReasonOriginRejected  = "origin not allowed"
	ReasonConnectionLimit = "connection limit exceeded"
	ReasonRateLimited     = "connection rate limit exceeded"
	ReasonEvicted         = "evicted"
	ReasonSlowConsumer    = "send queue full"
	ReasonTokenExpired    = "token expired"
)
