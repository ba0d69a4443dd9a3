// Switchboard - Multiplexed WebSocket and HTTP API Gateway
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/switchboard

package api

import (
	"context"
	"time"

	"github.com/tomtom215/switchboard/internal/logging"
	"github.com/tomtom215/switchboard/internal/router"
	"github.com/tomtom215/switchboard/internal/websocket"
)

// ReadinessCheck is one dependency consulted by /health/ready.
type ReadinessCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

// ConnectionAdmin is the part of the registry the admin API drives.
type ConnectionAdmin interface {
	Connections() []websocket.ConnectionInfo
	Stats() websocket.Stats
	Evict(userID, reason string) int
}

// PackageLister lists the registered packages.
type PackageLister interface {
	Packages() []router.PackageInfo
}

// Handler serves the health and admin routes.
type Handler struct {
	registry    ConnectionAdmin
	packages    PackageLister
	broadcaster websocket.Broadcaster
	readiness   []ReadinessCheck
	security    *logging.SecurityLogger
	version     string
	startTime   time.Time
}

// NewHandler creates the handler set. broadcaster may be nil, in which case
// POST /broadcast answers 503.
func NewHandler(registry ConnectionAdmin, packages PackageLister, broadcaster websocket.Broadcaster, readiness []ReadinessCheck, version string) *Handler {
	return &Handler{
		registry:    registry,
		packages:    packages,
		broadcaster: broadcaster,
		readiness:   readiness,
		security:    logging.NewSecurityLogger(),
		version:     version,
		startTime:   time.Now(),
	}
}
