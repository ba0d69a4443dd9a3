// Switchboard - Multiplexed WebSocket and HTTP API Gateway
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/switchboard

package api

import (
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/tomtom215/switchboard/internal/auth"
	"github.com/tomtom215/switchboard/internal/logging"
	"github.com/tomtom215/switchboard/internal/packages"
	"github.com/tomtom215/switchboard/internal/protocol"
	"github.com/tomtom215/switchboard/internal/websocket"
)

// maxAdminBody bounds admin request bodies.
const maxAdminBody = 1 << 20

// ErrNoBroadcaster is reported when broadcasting is not configured.
var ErrNoBroadcaster = errors.New("broadcast relay not configured")

// ListPackages returns every registered package.
// GET /api/v1/admin/packages
func (h *Handler) ListPackages(w http.ResponseWriter, r *http.Request) {
	pkgs := h.packages.Packages()
	NewResponseWriter(w, r).Success(map[string]any{
		"packages": pkgs,
		"count":    len(pkgs),
	})
}

// ListConnections returns the live connections on this instance, optionally
// filtered by ?user_id=.
// GET /api/v1/admin/connections
func (h *Handler) ListConnections(w http.ResponseWriter, r *http.Request) {
	conns := h.registry.Connections()
	if userID := r.URL.Query().Get("user_id"); userID != "" {
		filtered := make([]websocket.ConnectionInfo, 0, len(conns))
		for _, c := range conns {
			if c.UserID == userID {
				filtered = append(filtered, c)
			}
		}
		conns = filtered
	}
	NewResponseWriter(w, r).Success(map[string]any{
		"connections": conns,
		"stats":       h.registry.Stats(),
	})
}

// Broadcast relays a broadcast envelope to every connected client of every
// instance. The body is {"pkg_id": int, "data": object}.
// POST /api/v1/admin/broadcast
func (h *Handler) Broadcast(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	if h.broadcaster == nil {
		rw.ServiceUnavailable(ErrNoBroadcaster.Error(), nil)
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxAdminBody))
	if err != nil {
		rw.BadRequest("request body too large or unreadable")
		return
	}
	req, err := packages.ParseBroadcastRequest(body)
	if err != nil {
		rw.ValidationError(err.Error())
		return
	}

	var data any
	if len(req.Data) > 0 {
		data = req.Data
	}
	if err := h.broadcaster.Publish(r.Context(), protocol.NewBroadcast(req.PkgID, data)); err != nil {
		rw.InternalError(err)
		return
	}

	actor := ""
	if id := auth.GetIdentity(r.Context()); id != nil {
		actor = id.UserID
	}
	logging.Ctx(r.Context()).Info().
		Int("broadcast_pkg_id", req.PkgID).
		Str("actor", actor).
		Msg("Broadcast queued via admin API")
	rw.Accepted(map[string]any{"queued": true, "pkg_id": req.PkgID})
}

// EvictUser closes every connection of a user on this instance with 1008.
// DELETE /api/v1/admin/connections/{userID}?reason=
func (h *Handler) EvictUser(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	userID := chi.URLParam(r, "userID")
	if strings.TrimSpace(userID) == "" {
		rw.BadRequest("user id required")
		return
	}

	reason := r.URL.Query().Get("reason")
	if len(reason) > protocol.MaxCloseReasonLen {
		rw.ValidationError("reason too long")
		return
	}

	n := h.registry.Evict(userID, reason)

	actor := ""
	if id := auth.GetIdentity(r.Context()); id != nil {
		actor = id.UserID
	}
	h.security.LogEviction(userID, actor, n)

	if n == 0 {
		rw.NotFound("no connections for user")
		return
	}
	rw.Success(map[string]any{"user_id": userID, "evicted": n})
}
