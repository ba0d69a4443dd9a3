// Switchboard - Multiplexed WebSocket and HTTP API Gateway
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/switchboard

package router

import (
	"bytes"
	"fmt"

	"github.com/goccy/go-json"

	"github.com/tomtom215/switchboard/internal/validation"
)

// Schema validates a request's data member and returns the decoded value
// handed to the handler as Call.Payload. The error message is shown to the
// client.
type Schema interface {
	Validate(data json.RawMessage) (any, error)
}

// SchemaFunc adapts a function to Schema.
type SchemaFunc func(data json.RawMessage) (any, error)

func (f SchemaFunc) Validate(data json.RawMessage) (any, error) { return f(data) }

// StructSchema decodes data into a T and runs struct validation tags on it.
// Unknown fields are rejected.
type StructSchema[T any] struct{}

// Validate implements Schema. The payload is a *T.
func (StructSchema[T]) Validate(data json.RawMessage) (any, error) {
	v := new(T)
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return nil, fmt.Errorf("invalid data: %s", decodeMessage(err))
	}
	if verr := validation.ValidateStruct(v); verr != nil {
		return nil, verr.First()
	}
	return v, nil
}

// decodeMessage shortens goccy decode errors to something a client can act on.
func decodeMessage(err error) string {
	switch e := err.(type) {
	case *json.UnmarshalTypeError:
		if e.Field != "" {
			return fmt.Sprintf("%s must be %s", e.Field, e.Type.String())
		}
		return "unexpected " + e.Value
	case *json.SyntaxError:
		return "malformed json"
	}
	return err.Error()
}
