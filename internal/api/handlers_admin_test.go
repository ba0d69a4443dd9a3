// Switchboard - Multiplexed WebSocket and HTTP API Gateway
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/switchboard

package api

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/goccy/go-json"

	"github.com/tomtom215/switchboard/internal/router"
)

func TestBroadcast_NoRelay(t *testing.T) {
	h := NewHandler(&fakeRegistry{}, router.NewBuilder().Build(), nil, nil, "test")

	req := httptest.NewRequest(http.MethodPost, "/api/v1/admin/broadcast", strings.NewReader(`{"pkg_id":1}`))
	rec := httptest.NewRecorder()
	h.Broadcast(rec, req)

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rec.Code)
	}
	var body APIResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body.Success || body.Error == nil || body.Error.Code != ErrCodeServiceUnavailable {
		t.Errorf("body = %+v", body)
	}
}

func TestBroadcast_BodyTooLarge(t *testing.T) {
	h := NewHandler(&fakeRegistry{}, router.NewBuilder().Build(), &fakeBroadcaster{}, nil, "test")

	big := `{"pkg_id":1,"data":{"x":"` + strings.Repeat("a", maxAdminBody) + `"}}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/admin/broadcast", strings.NewReader(big))
	rec := httptest.NewRecorder()
	h.Broadcast(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestResponseWriter_InternalErrorHidesDetail(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	NewResponseWriter(rec, req).InternalError(errTest("dial tcp 10.0.0.5:6379: refused"))

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d", rec.Code)
	}
	if strings.Contains(rec.Body.String(), "10.0.0.5") {
		t.Error("internal address leaked")
	}
}

type errTest string

func (e errTest) Error() string { return string(e) }
