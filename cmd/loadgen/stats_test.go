// Switchboard - Multiplexed WebSocket and HTTP API Gateway
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/switchboard

package main

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/switchboard/internal/client"
	"github.com/tomtom215/switchboard/internal/protocol"
)

func TestPercentile(t *testing.T) {
	sorted := make([]time.Duration, 100)
	for i := range sorted {
		sorted[i] = time.Duration(i+1) * time.Millisecond
	}
	tests := []struct {
		p    float64
		want time.Duration
	}{
		{0, time.Millisecond},
		{50, 50 * time.Millisecond},
		{90, 90 * time.Millisecond},
		{99, 99 * time.Millisecond},
		{100, 100 * time.Millisecond},
	}
	for _, tt := range tests {
		if got := percentile(sorted, tt.p); got != tt.want {
			t.Errorf("p%.0f = %v, want %v", tt.p, got, tt.want)
		}
	}
	if got := percentile(nil, 50); got != 0 {
		t.Errorf("empty percentile = %v", got)
	}
}

func TestStats_Report(t *testing.T) {
	s := newStats()
	s.Connected()
	s.Closed(protocol.ClosePolicyViolation)
	s.CallFailed(client.ErrCallTimeout)

	throttled, _ := json.Marshal(protocol.ErrorData{Error: "rate limit exceeded", Throttled: true, RetryAfterMs: 100})
	s.Reply(&client.Reply{StatusCode: protocol.StatusOK}, 2*time.Millisecond)
	s.Reply(&client.Reply{StatusCode: protocol.StatusError, Data: throttled}, 4*time.Millisecond)

	var buf bytes.Buffer
	s.Report(&buf, time.Second)
	out := buf.String()

	for _, want := range []string{"Connected:    1", "Closed 1008:  1", "Replies:      2", "Throttled:    1", "Timeouts:     1", "Max:  4ms"} {
		if !strings.Contains(out, want) {
			t.Errorf("report missing %q:\n%s", want, out)
		}
	}
}

func TestUserFor(t *testing.T) {
	tests := []struct {
		i, users int
		want     string
	}{
		{7, 0, "loadgen-0007"},
		{7, 5, "loadgen-0002"},
	}
	for _, tt := range tests {
		if got := userFor(tt.i, tt.users); got != tt.want {
			t.Errorf("userFor(%d, %d) = %q, want %q", tt.i, tt.users, got, tt.want)
		}
	}
}

func TestTokenSource(t *testing.T) {
	t.Setenv("JWT_SECRET", "")
	if _, err := tokenSource("", "", nil); err == nil {
		t.Error("expected error without token or secret")
	}
	fixed, err := tokenSource("abc", "", nil)
	if err != nil {
		t.Fatal(err)
	}
	if tok, _ := fixed("anyone"); tok != "abc" {
		t.Errorf("fixed token = %q", tok)
	}
	minted, err := tokenSource("", "0123456789abcdef0123456789abcdef", []string{"get-authors"})
	if err != nil {
		t.Fatal(err)
	}
	if tok, err := minted("u1"); err != nil || strings.Count(tok, ".") != 2 {
		t.Errorf("minted token = %q, err = %v", tok, err)
	}
}
