// Switchboard - Multiplexed WebSocket and HTTP API Gateway
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/switchboard

package services

import (
	"context"
	"fmt"
	"time"

	"github.com/thejerf/suture/v4"

	"github.com/tomtom215/switchboard/internal/logging"
)

// EmbeddedServer is the lifecycle of the in-process NATS server, which is
// already running when handed to the supervisor.
type EmbeddedServer interface {
	IsRunning() bool
	Shutdown(ctx context.Context) error
}

// EmbeddedNATSService owns an embedded NATS server. It polls liveness and
// shuts the server down on cancellation.
type EmbeddedNATSService struct {
	server          EmbeddedServer
	checkInterval   time.Duration
	shutdownTimeout time.Duration
	name            string
}

// NewEmbeddedNATSService wraps server with a 5s liveness poll.
func NewEmbeddedNATSService(server EmbeddedServer, shutdownTimeout time.Duration) *EmbeddedNATSService {
	if shutdownTimeout <= 0 {
		shutdownTimeout = 10 * time.Second
	}
	return &EmbeddedNATSService{
		server:          server,
		checkInterval:   5 * time.Second,
		shutdownTimeout: shutdownTimeout,
		name:            "embedded-nats",
	}
}

// Serve implements suture.Service. A server that stopped on its own cannot
// be restarted by calling Serve again, so that case is reported with
// suture.ErrDoNotRestart and the relay's own restarts surface the outage.
func (s *EmbeddedNATSService) Serve(ctx context.Context) error {
	ticker := time.NewTicker(s.checkInterval)
	defer ticker.Stop()

	for {
		if !s.server.IsRunning() {
			logging.Error().Str("service", s.name).Msg("embedded NATS server is not running")
			return fmt.Errorf("embedded NATS server stopped: %w", suture.ErrDoNotRestart)
		}
		select {
		case <-ctx.Done():
			shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
			defer cancel()
			if err := s.server.Shutdown(shutdownCtx); err != nil {
				return fmt.Errorf("embedded NATS shutdown failed: %w", err)
			}
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (s *EmbeddedNATSService) String() string {
	return s.name
}
