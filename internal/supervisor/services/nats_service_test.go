// Switchboard - Multiplexed WebSocket and HTTP API Gateway
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/switchboard

package services

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/thejerf/suture/v4"

	"github.com/tomtom215/switchboard/internal/websocket"
)

type fakeEmbedded struct {
	running   atomic.Bool
	shutdowns atomic.Int32
}

func (f *fakeEmbedded) IsRunning() bool { return f.running.Load() }

func (f *fakeEmbedded) Shutdown(context.Context) error {
	f.shutdowns.Add(1)
	f.running.Store(false)
	return nil
}

func TestEmbeddedNATSService(t *testing.T) {
	t.Run("shuts down on cancellation", func(t *testing.T) {
		srv := &fakeEmbedded{}
		srv.running.Store(true)
		svc := NewEmbeddedNATSService(srv, time.Second)

		ctx, cancel := context.WithCancel(context.Background())
		errCh := make(chan error, 1)
		go func() { errCh <- svc.Serve(ctx) }()
		cancel()

		if err := <-errCh; !errors.Is(err, context.Canceled) {
			t.Errorf("Serve = %v", err)
		}
		if srv.shutdowns.Load() != 1 {
			t.Errorf("shutdowns = %d", srv.shutdowns.Load())
		}
	})

	t.Run("dead server is not restarted", func(t *testing.T) {
		svc := NewEmbeddedNATSService(&fakeEmbedded{}, time.Second)
		err := svc.Serve(context.Background())
		if !errors.Is(err, suture.ErrDoNotRestart) {
			t.Errorf("Serve = %v, want ErrDoNotRestart", err)
		}
	})

	t.Run("liveness poll notices a crash", func(t *testing.T) {
		srv := &fakeEmbedded{}
		srv.running.Store(true)
		svc := NewEmbeddedNATSService(srv, time.Second)
		svc.checkInterval = 5 * time.Millisecond

		errCh := make(chan error, 1)
		go func() { errCh <- svc.Serve(context.Background()) }()
		srv.running.Store(false)

		select {
		case err := <-errCh:
			if !errors.Is(err, suture.ErrDoNotRestart) {
				t.Errorf("Serve = %v", err)
			}
		case <-time.After(time.Second):
			t.Fatal("crash not detected")
		}
	})
}

func TestEmbeddedNATSService_RealServer(t *testing.T) {
	ns, err := websocket.StartEmbeddedNATS("127.0.0.1", -1)
	if err != nil {
		t.Fatal(err)
	}
	svc := NewEmbeddedNATSService(ns, 5*time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- svc.Serve(ctx) }()
	cancel()

	if err := <-errCh; !errors.Is(err, context.Canceled) {
		t.Errorf("Serve = %v", err)
	}
	if ns.IsRunning() {
		t.Error("embedded server still running")
	}
}
