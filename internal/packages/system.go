// Switchboard - Multiplexed WebSocket and HTTP API Gateway
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/switchboard

package packages

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"runtime"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/switchboard/internal/logging"
	"github.com/tomtom215/switchboard/internal/protocol"
	"github.com/tomtom215/switchboard/internal/router"
	"github.com/tomtom215/switchboard/internal/websocket"
)

// System package ids.
const (
	PkgPing      = 1
	PkgWhoAmI    = 2
	PkgBroadcast = 3
	PkgStats     = 4

	// FirstApplicationPkgID is the lowest id free for application packages.
	FirstApplicationPkgID = 100
)

// Roles required by the privileged system packages.
const (
	RoleAdmin     = "admin"
	RoleBroadcast = "broadcast"
)

// StatsSource reports registry statistics.
type StatsSource interface {
	Stats() websocket.Stats
}

// Deps are the collaborators the system packages need.
type Deps struct {
	Registry    StatsSource
	Broadcaster websocket.Broadcaster
	Version     string
	StartedAt   time.Time
	// Now defaults to time.Now.
	Now func() time.Time
}

// BroadcastRequest is the payload of system.broadcast.
type BroadcastRequest struct {
	PkgID int             `json:"pkg_id" validate:"required,min=1"`
	Data  json.RawMessage `json:"data"`
}

// WhoAmI is the system.whoami reply.
type WhoAmI struct {
	UserID    string    `json:"user_id"`
	Username  string    `json:"username"`
	Roles     []string  `json:"roles"`
	ExpiresAt time.Time `json:"expires_at"`
}

// StatsReply is the system.stats reply.
type StatsReply struct {
	websocket.Stats
	Version       string `json:"version"`
	GoVersion     string `json:"go_version"`
	Goroutines    int    `json:"goroutines"`
	UptimeSeconds int64  `json:"uptime_seconds"`
}

// RegisterSystem adds the built-in packages to b.
func RegisterSystem(b *router.Builder, deps Deps) error {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.StartedAt.IsZero() {
		deps.StartedAt = deps.Now()
	}
	s := &system{deps: deps}

	regs := []struct {
		id   int
		h    router.Handler
		opts []router.Option
	}{
		{PkgPing, s.ping, []router.Option{router.WithName("system.ping")}},
		{PkgWhoAmI, s.whoami, []router.Option{router.WithName("system.whoami")}},
		{PkgBroadcast, s.broadcast, []router.Option{
			router.WithName("system.broadcast"),
			router.WithRoles(RoleAdmin, RoleBroadcast),
			router.WithSchema(router.SchemaFunc(validateBroadcast)),
		}},
		{PkgStats, s.stats, []router.Option{router.WithName("system.stats"), router.WithRoles(RoleAdmin)}},
	}
	for _, r := range regs {
		if err := b.Register(r.id, r.h, r.opts...); err != nil {
			return fmt.Errorf("register %d: %w", r.id, err)
		}
	}
	return nil
}

type system struct {
	deps Deps
}

func (s *system) ping(context.Context, *router.Call) (*protocol.Response, error) {
	return protocol.OK(map[string]any{
		"pong": true,
		"time": s.deps.Now().UTC().Format(time.RFC3339Nano),
	}), nil
}

func (s *system) whoami(_ context.Context, c *router.Call) (*protocol.Response, error) {
	id := c.Identity
	return protocol.OK(WhoAmI{
		UserID:    id.UserID,
		Username:  id.Username,
		Roles:     id.RoleList(),
		ExpiresAt: id.ExpiresAt,
	}), nil
}

func (s *system) broadcast(ctx context.Context, c *router.Call) (*protocol.Response, error) {
	if s.deps.Broadcaster == nil {
		return nil, errors.New("no broadcaster configured")
	}
	req := c.Payload.(*BroadcastRequest)

	var data any
	if len(req.Data) > 0 {
		data = req.Data
	}
	if err := s.deps.Broadcaster.Publish(ctx, protocol.NewBroadcast(req.PkgID, data)); err != nil {
		return nil, fmt.Errorf("publish broadcast for pkg %d: %w", req.PkgID, err)
	}

	logging.Ctx(ctx).Info().
		Int("broadcast_pkg_id", req.PkgID).
		Str("user_id", c.Identity.UserID).
		Msg("broadcast queued")
	return protocol.OK(map[string]bool{"queued": true}), nil
}

func (s *system) stats(context.Context, *router.Call) (*protocol.Response, error) {
	reply := StatsReply{
		Version:       s.deps.Version,
		GoVersion:     runtime.Version(),
		Goroutines:    runtime.NumGoroutine(),
		UptimeSeconds: int64(s.deps.Now().Sub(s.deps.StartedAt).Seconds()),
	}
	if s.deps.Registry != nil {
		reply.Stats = s.deps.Registry.Stats()
	}
	return protocol.OK(reply), nil
}

func validateBroadcast(data json.RawMessage) (any, error) {
	return ParseBroadcastRequest(data)
}

// ParseBroadcastRequest runs struct validation and requires data, when
// given, to be a JSON object. The admin HTTP API shares it.
func ParseBroadcastRequest(data json.RawMessage) (*BroadcastRequest, error) {
	v, err := router.StructSchema[BroadcastRequest]{}.Validate(data)
	if err != nil {
		return nil, err
	}
	req := v.(*BroadcastRequest)
	d := bytes.TrimSpace(req.Data)
	if len(d) == 0 || bytes.Equal(d, []byte("null")) {
		req.Data = nil
		return req, nil
	}
	if d[0] != '{' {
		return nil, errors.New("data must be a JSON object")
	}
	return req, nil
}
