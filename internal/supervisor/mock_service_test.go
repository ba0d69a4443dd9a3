// Switchboard - Multiplexed WebSocket and HTTP API Gateway
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/switchboard

package supervisor

import (
	"context"
	"errors"
	"sync/atomic"
)

// stubService runs until cancelled, optionally failing its first
// failFirst starts.
type stubService struct {
	name      string
	failFirst int32
	starts    atomic.Int32
}

func newStubService(name string, failFirst int) *stubService {
	return &stubService{name: name, failFirst: int32(failFirst)}
}

func (s *stubService) Serve(ctx context.Context) error {
	if n := s.starts.Add(1); n <= s.failFirst {
		return errors.New("simulated failure")
	}
	<-ctx.Done()
	return ctx.Err()
}

func (s *stubService) Starts() int32 { return s.starts.Load() }

func (s *stubService) String() string { return s.name }
