// Switchboard - Multiplexed WebSocket and HTTP API Gateway
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/switchboard

package protocol

import (
	"bytes"
	"errors"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
)

// BroadcastID is the req_id carried by every unsolicited broadcast. It is
// never echoed for a client request.
var BroadcastID = uuid.Nil

// ErrMalformed is wrapped by every DecodeRequest failure.
var ErrMalformed = errors.New("malformed request envelope")

var emptyObject = json.RawMessage(`{}`)

// Request is an inbound envelope.
type Request struct {
	PkgID  int             `json:"pkg_id"`
	ReqID  uuid.UUID       `json:"req_id"`
	Method string          `json:"method"`
	Data   json.RawMessage `json:"data"`
}

// Response is an outbound envelope. Meta and Data encode as null when nil.
type Response struct {
	PkgID      int        `json:"pkg_id"`
	ReqID      uuid.UUID  `json:"req_id"`
	StatusCode StatusCode `json:"status_code"`
	Meta       any        `json:"meta"`
	Data       any        `json:"data"`
}

// IsBroadcast reports whether r carries the broadcast sentinel.
func (r *Response) IsBroadcast() bool {
	return r.ReqID == BroadcastID
}

// wireRequest distinguishes absent fields from zero values.
type wireRequest struct {
	PkgID  *int            `json:"pkg_id"`
	ReqID  *string         `json:"req_id"`
	Method *string         `json:"method"`
	Data   json.RawMessage `json:"data"`
}

// DecodeRequest parses one text frame. pkg_id and req_id are required and
// req_id must be a UUID other than the broadcast sentinel. A missing or null
// data member becomes {}.
func DecodeRequest(frame []byte) (*Request, error) {
	var w wireRequest
	if err := json.Unmarshal(frame, &w); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if w.PkgID == nil {
		return nil, fmt.Errorf("%w: pkg_id is required", ErrMalformed)
	}
	if w.ReqID == nil {
		return nil, fmt.Errorf("%w: req_id is required", ErrMalformed)
	}
	id, err := uuid.Parse(*w.ReqID)
	if err != nil {
		return nil, fmt.Errorf("%w: req_id: %v", ErrMalformed, err)
	}
	if id == BroadcastID {
		return nil, fmt.Errorf("%w: req_id must not be the broadcast sentinel", ErrMalformed)
	}

	req := &Request{PkgID: *w.PkgID, ReqID: id, Data: w.Data}
	if w.Method != nil {
		req.Method = *w.Method
	}
	if len(bytes.TrimSpace(req.Data)) == 0 || bytes.Equal(bytes.TrimSpace(req.Data), []byte("null")) {
		req.Data = emptyObject
	}
	return req, nil
}

// DataIsObject reports whether the request payload is a JSON object.
func (r *Request) DataIsObject() bool {
	d := bytes.TrimSpace(r.Data)
	return len(d) > 0 && d[0] == '{'
}

// Encode serialises a response envelope.
func Encode(r *Response) ([]byte, error) {
	return json.Marshal(r)
}

// ErrorData is the data payload of non-OK responses generated by the gateway.
type ErrorData struct {
	Error        string `json:"error"`
	Throttled    bool   `json:"throttled,omitempty"`
	RetryAfterMs int64  `json:"retry_after_ms,omitempty"`
}

// PageMeta is the conventional meta object for paginated results.
type PageMeta struct {
	Page     int   `json:"page"`
	PageSize int   `json:"page_size"`
	Total    int64 `json:"total"`
	HasNext  bool  `json:"has_next"`
}

// OK builds a successful response. The router fills in pkg_id and req_id.
func OK(data any) *Response {
	return &Response{StatusCode: StatusOK, Data: data}
}

// OKPage builds a successful paginated response.
func OKPage(data any, meta PageMeta) *Response {
	return &Response{StatusCode: StatusOK, Data: data, Meta: meta}
}

// Fail builds a response with a non-OK status and a message.
func Fail(status StatusCode, message string) *Response {
	return &Response{StatusCode: status, Data: ErrorData{Error: message}}
}

// Throttled answers req when the per-connection message budget is spent.
func Throttled(req *Request, retryAfter time.Duration) *Response {
	return &Response{
		PkgID:      req.PkgID,
		ReqID:      req.ReqID,
		StatusCode: StatusError,
		Data: ErrorData{
			Error:        "rate limit exceeded",
			Throttled:    true,
			RetryAfterMs: retryAfter.Milliseconds(),
		},
	}
}

// NewBroadcast builds an uncorrelated envelope for fan-out.
func NewBroadcast(pkgID int, data any) *Response {
	return &Response{PkgID: pkgID, ReqID: BroadcastID, StatusCode: StatusOK, Data: data}
}
