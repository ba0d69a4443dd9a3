// Switchboard - Multiplexed WebSocket and HTTP API Gateway
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/switchboard

package router

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sort"
	"strconv"
	"time"

	"github.com/tomtom215/switchboard/internal/auth"
	"github.com/tomtom215/switchboard/internal/logging"
	"github.com/tomtom215/switchboard/internal/metrics"
	"github.com/tomtom215/switchboard/internal/protocol"
)

// ErrDuplicatePackage is returned when a pkg_id is registered twice.
var ErrDuplicatePackage = errors.New("package already registered")

const internalErrorMessage = "internal error"

// Call is what a handler receives.
type Call struct {
	Identity *auth.Identity
	Request  *protocol.Request
	// Payload is the value returned by the registration's Schema, or nil
	// when the package has no schema.
	Payload any
}

// Handler executes a package. A returned error is logged and reported to
// the client as a generic ERROR. A nil response with a nil error is OK with
// null data.
type Handler func(ctx context.Context, call *Call) (*protocol.Response, error)

// Registration binds a pkg_id to its handler and admission rules.
type Registration struct {
	PkgID         int
	Name          string
	Handler       Handler
	Schema        Schema
	RequiredRoles []string
}

// Option configures a Registration.
type Option func(*Registration)

// WithSchema validates request data before the handler runs.
func WithSchema(s Schema) Option {
	return func(r *Registration) { r.Schema = s }
}

// WithRoles requires every listed role.
func WithRoles(roles ...string) Option {
	return func(r *Registration) { r.RequiredRoles = append(r.RequiredRoles, roles...) }
}

// WithName labels the package in logs and the admin API.
func WithName(name string) Option {
	return func(r *Registration) { r.Name = name }
}

// Builder collects registrations. It is not safe for concurrent use.
type Builder struct {
	routes map[int]*Registration
}

func NewBuilder() *Builder {
	return &Builder{routes: make(map[int]*Registration)}
}

// Register adds a package.
func (b *Builder) Register(pkgID int, h Handler, opts ...Option) error {
	if h == nil {
		return fmt.Errorf("package %d: nil handler", pkgID)
	}
	if _, exists := b.routes[pkgID]; exists {
		return fmt.Errorf("%w: %d", ErrDuplicatePackage, pkgID)
	}
	reg := &Registration{PkgID: pkgID, Handler: h}
	for _, opt := range opts {
		opt(reg)
	}
	if reg.Name == "" {
		reg.Name = "pkg." + strconv.Itoa(pkgID)
	}
	b.routes[pkgID] = reg
	return nil
}

// Build freezes the registrations into a Router. The builder can keep
// being used without affecting the returned Router.
func (b *Builder) Build() *Router {
	routes := make(map[int]Registration, len(b.routes))
	for id, reg := range b.routes {
		r := *reg
		r.RequiredRoles = append([]string(nil), reg.RequiredRoles...)
		routes[id] = r
	}
	return &Router{routes: routes}
}

// Router is the immutable dispatch table. Safe for concurrent use.
type Router struct {
	routes map[int]Registration
}

// PackageInfo describes a registration for listing.
type PackageInfo struct {
	PkgID         int      `json:"pkg_id"`
	Name          string   `json:"name"`
	RequiredRoles []string `json:"required_roles"`
	HasSchema     bool     `json:"has_schema"`
}

// Packages lists registrations ordered by pkg_id.
func (r *Router) Packages() []PackageInfo {
	out := make([]PackageInfo, 0, len(r.routes))
	for _, reg := range r.routes {
		roles := reg.RequiredRoles
		if roles == nil {
			roles = []string{}
		}
		out = append(out, PackageInfo{
			PkgID:         reg.PkgID,
			Name:          reg.Name,
			RequiredRoles: roles,
			HasSchema:     reg.Schema != nil,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PkgID < out[j].PkgID })
	return out
}

// Handle dispatches req on behalf of id. It always returns a response
// carrying req's pkg_id and req_id and never panics.
func (r *Router) Handle(ctx context.Context, id *auth.Identity, req *protocol.Request) *protocol.Response {
	start := time.Now()
	resp, ran := r.dispatch(ctx, id, req)

	resp.PkgID = req.PkgID
	resp.ReqID = req.ReqID

	var took time.Duration
	if ran {
		took = time.Since(start)
	}
	metrics.RecordPackage(req.PkgID, resp.StatusCode.String(), took)
	return resp
}

// dispatch runs the fixed steps. ran reports whether the handler executed.
func (r *Router) dispatch(ctx context.Context, id *auth.Identity, req *protocol.Request) (*protocol.Response, bool) {
	reg, ok := r.routes[req.PkgID]
	if !ok {
		logging.Ctx(ctx).Debug().Int("pkg_id", req.PkgID).Msg("unknown package")
		return protocol.Fail(protocol.StatusError, fmt.Sprintf("unknown package %d", req.PkgID)), false
	}

	if !id.HasAllRoles(reg.RequiredRoles) {
		ev := logging.Ctx(ctx).Warn().
			Int("pkg_id", reg.PkgID).
			Str("package", reg.Name).
			Strs("required_roles", reg.RequiredRoles).
			Strs("held_roles", id.RoleList())
		if id != nil {
			ev = ev.Str("user_id", id.UserID)
		}
		ev.Msg("permission denied")
		return protocol.Fail(protocol.StatusPermissionDenied, "permission denied"), false
	}

	if !req.DataIsObject() {
		return protocol.Fail(protocol.StatusInvalidData, "data must be a JSON object"), false
	}

	call := &Call{Identity: id, Request: req}
	if reg.Schema != nil {
		payload, err := reg.Schema.Validate(req.Data)
		if err != nil {
			logging.Ctx(ctx).Info().
				Int("pkg_id", reg.PkgID).
				Str("package", reg.Name).
				Str("violation", err.Error()).
				Msg("invalid package data")
			return protocol.Fail(protocol.StatusInvalidData, err.Error()), false
		}
		call.Payload = payload
	}

	return execute(ctx, reg, call), true
}

func execute(ctx context.Context, reg Registration, call *Call) (resp *protocol.Response) {
	defer func() {
		if rec := recover(); rec != nil {
			logging.Ctx(ctx).Error().
				Int("pkg_id", reg.PkgID).
				Str("package", reg.Name).
				Interface("panic", rec).
				Bytes("stack", debug.Stack()).
				Msg("package handler panicked")
			resp = protocol.Fail(protocol.StatusError, internalErrorMessage)
		}
	}()

	out, err := reg.Handler(ctx, call)
	if err != nil {
		logging.Ctx(ctx).Error().
			Err(err).
			Int("pkg_id", reg.PkgID).
			Str("package", reg.Name).
			Msg("package handler failed")
		return protocol.Fail(protocol.StatusError, internalErrorMessage)
	}
	if out == nil {
		return protocol.OK(nil)
	}
	if !out.StatusCode.Valid() {
		logging.Ctx(ctx).Error().
			Int("pkg_id", reg.PkgID).
			Str("package", reg.Name).
			Int("status_code", int(out.StatusCode)).
			Msg("package handler returned an undefined status code")
		return protocol.Fail(protocol.StatusError, internalErrorMessage)
	}
	copied := *out
	return &copied
}
