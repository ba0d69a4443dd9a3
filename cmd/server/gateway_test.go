// Switchboard - Multiplexed WebSocket and HTTP API Gateway
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/switchboard

package main

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"

	"github.com/tomtom215/switchboard/internal/auth"
	"github.com/tomtom215/switchboard/internal/client"
	"github.com/tomtom215/switchboard/internal/config"
	"github.com/tomtom215/switchboard/internal/logging"
	"github.com/tomtom215/switchboard/internal/packages"
	"github.com/tomtom215/switchboard/internal/protocol"
)

const testSecret = "gateway-test-secret-0123456789abcdef"

func init() {
	logging.Init(logging.Config{Level: "error", Format: "json", Output: io.Discard})
}

func loadTestConfig(t *testing.T, env map[string]string) *config.Config {
	t.Helper()
	t.Setenv(config.ConfigPathEnvVar, "")
	t.Setenv("JWT_SECRET", testSecret)
	for k, v := range env {
		t.Setenv(k, v)
	}
	cfg, err := config.LoadWithKoanf()
	if err != nil {
		t.Fatalf("LoadWithKoanf: %v", err)
	}
	return cfg
}

// startTestGateway serves g.handler and runs the relay until the test ends.
func startTestGateway(t *testing.T, cfg *config.Config) (*gateway, *httptest.Server) {
	t.Helper()
	g, err := newGateway(cfg)
	if err != nil {
		t.Fatalf("newGateway: %v", err)
	}
	srv := httptest.NewServer(g.handler)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = g.relay.RunWithContext(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
		srv.Close()
		g.close()
	})

	select {
	case <-g.relay.Ready():
	case <-time.After(2 * time.Second):
		t.Fatal("relay never subscribed")
	}
	return g, srv
}

func getStatus(t *testing.T, url string) int {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	resp.Body.Close()
	return resp.StatusCode
}

func TestNewGateway_InvalidRateLimitStore(t *testing.T) {
	cfg := loadTestConfig(t, nil)
	cfg.RateLimit.Store = "carrier-pigeon"
	if g, err := newGateway(cfg); err == nil {
		g.close()
		t.Fatal("expected error for unknown store")
	}
}

func TestGateway_ReadinessTracksRelay(t *testing.T) {
	cfg := loadTestConfig(t, nil)
	g, err := newGateway(cfg)
	if err != nil {
		t.Fatalf("newGateway: %v", err)
	}
	defer g.close()
	srv := httptest.NewServer(g.handler)
	defer srv.Close()

	if got := getStatus(t, srv.URL+"/health/ready"); got != http.StatusServiceUnavailable {
		t.Errorf("ready before relay = %d, want 503", got)
	}
	if got := getStatus(t, srv.URL+"/health/live"); got != http.StatusOK {
		t.Errorf("live = %d, want 200", got)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = g.relay.RunWithContext(ctx)
	}()
	defer func() {
		cancel()
		<-done
	}()
	<-g.relay.Ready()

	if got := getStatus(t, srv.URL+"/health/ready"); got != http.StatusOK {
		t.Errorf("ready after relay = %d, want 200", got)
	}
}

func TestGateway_EndToEnd(t *testing.T) {
	cfg := loadTestConfig(t, nil)
	_, srv := startTestGateway(t, cfg)

	token, err := auth.TokenIssuer{Secret: testSecret}.Issue("user-1", nil, time.Minute)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	c, err := client.Dial(ctx, url, token, nil)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer c.Close()

	reply, err := c.Call(ctx, packages.PkgPing, nil)
	if err != nil {
		t.Fatalf("Call ping: %v", err)
	}
	if reply.StatusCode != protocol.StatusOK {
		t.Errorf("ping status = %d, want %d", reply.StatusCode, protocol.StatusOK)
	}

	// system.broadcast needs admin and broadcast roles.
	reply, err = c.Call(ctx, packages.PkgBroadcast, map[string]any{"pkg_id": 100, "data": map[string]any{}})
	if err != nil {
		t.Fatalf("Call broadcast: %v", err)
	}
	if reply.StatusCode != protocol.StatusPermissionDenied {
		t.Errorf("broadcast status = %d, want %d", reply.StatusCode, protocol.StatusPermissionDenied)
	}

	bad, err := client.Dial(ctx, url, "not-a-jwt", nil)
	if err != nil {
		t.Fatalf("Dial with bad token: %v", err)
	}
	defer bad.Close()
	select {
	case <-bad.Done():
	case <-ctx.Done():
		t.Fatal("connection with bad token stayed open")
	}
	if code := bad.CloseCode(); code != protocol.CloseUnauthorized {
		t.Errorf("close code = %d, want %d", code, protocol.CloseUnauthorized)
	}
}

func TestGateway_RedisReadiness(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := loadTestConfig(t, map[string]string{
		"RATE_LIMIT_STORE": config.StoreRedis,
		"REDIS_ADDR":       mr.Addr(),
	})
	g, srv := startTestGateway(t, cfg)

	names := make([]string, 0, 3)
	for _, c := range g.readinessChecks() {
		names = append(names, c.Name)
	}
	if len(names) != 3 || names[2] != "redis" {
		t.Fatalf("readiness checks = %v, want redis last", names)
	}

	if got := getStatus(t, srv.URL+"/health/ready"); got != http.StatusOK {
		t.Errorf("ready with redis up = %d, want 200", got)
	}
	mr.Close()
	if got := getStatus(t, srv.URL+"/health/ready"); got != http.StatusServiceUnavailable {
		t.Errorf("ready with redis down = %d, want 503", got)
	}
}
