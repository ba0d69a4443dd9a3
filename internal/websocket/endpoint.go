// Switchboard - Multiplexed WebSocket and HTTP API Gateway
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/switchboard

package websocket

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/tomtom215/switchboard/internal/auth"
	"github.com/tomtom215/switchboard/internal/config"
	"github.com/tomtom215/switchboard/internal/logging"
	"github.com/tomtom215/switchboard/internal/metrics"
	"github.com/tomtom215/switchboard/internal/protocol"
	"github.com/tomtom215/switchboard/internal/ratelimit"
	"github.com/tomtom215/switchboard/internal/router"
)

// EndpointConfig tunes admission and the per-connection pumps.
type EndpointConfig struct {
	// AllowedOrigins is an exact-match allow-list; "*" accepts any origin.
	// Requests without an Origin header (non-browser clients) are accepted.
	AllowedOrigins  []string
	TokenQueryParam string
	TrustProxy      bool

	ReadLimit        int64
	WriteWait        time.Duration
	PongWait         time.Duration
	PingPeriod       time.Duration
	SendBuffer       int
	HandshakeTimeout time.Duration
}

// EndpointConfigFrom assembles an EndpointConfig from the loaded config.
func EndpointConfigFrom(cfg *config.Config) EndpointConfig {
	return EndpointConfig{
		AllowedOrigins:   cfg.Security.WebSocketOrigins,
		TokenQueryParam:  cfg.Auth.TokenQueryParam,
		TrustProxy:       cfg.Security.TrustProxy,
		ReadLimit:        cfg.WebSocket.ReadLimit,
		WriteWait:        cfg.WebSocket.WriteWait,
		PongWait:         cfg.WebSocket.PongWait,
		PingPeriod:       cfg.WebSocket.PingPeriod,
		SendBuffer:       cfg.WebSocket.SendBuffer,
		HandshakeTimeout: cfg.WebSocket.HandshakeTimeout,
	}
}

func (c *EndpointConfig) applyDefaults() {
	if c.ReadLimit <= 0 {
		c.ReadLimit = defaultReadLimit
	}
	if c.WriteWait <= 0 {
		c.WriteWait = defaultWriteWait
	}
	if c.PongWait <= 0 {
		c.PongWait = defaultPongWait
	}
	if c.PingPeriod <= 0 || c.PingPeriod >= c.PongWait {
		c.PingPeriod = (c.PongWait * 9) / 10
	}
	if c.SendBuffer <= 0 {
		c.SendBuffer = defaultSendBuffer
	}
	if c.HandshakeTimeout <= 0 {
		c.HandshakeTimeout = 10 * time.Second
	}
}

// Endpoint admits WebSocket connections and runs their read loops.
type Endpoint struct {
	cfg       EndpointConfig
	registry  *Registry
	validator auth.Validator
	limiter   *ratelimit.Limiter
	router    *router.Router
	upgrader  websocket.Upgrader
	security  *logging.SecurityLogger
}

// NewEndpoint wires the admission pipeline.
func NewEndpoint(cfg EndpointConfig, registry *Registry, validator auth.Validator, limiter *ratelimit.Limiter, rt *router.Router) *Endpoint {
	cfg.applyDefaults()
	return &Endpoint{
		cfg:       cfg,
		registry:  registry,
		validator: validator,
		limiter:   limiter,
		router:    rt,
		upgrader: websocket.Upgrader{
			ReadBufferSize:   1024,
			WriteBufferSize:  1024,
			HandshakeTimeout: cfg.HandshakeTimeout,
			// Origin is enforced before the upgrade so a rejection can
			// still be reported with a close code.
			CheckOrigin: func(*http.Request) bool { return true },
		},
		security: logging.NewSecurityLogger(),
	}
}

// rejection describes a refused admission.
type rejection struct {
	code    int
	reason  string
	outcome string
	userID  string
}

// ServeHTTP admits a connection: origin, ws_connect limit, token,
// registration, upgrade. The read loop then runs on this goroutine until
// the connection ends.
func (e *Endpoint) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ip := ratelimit.ClientIP(r, e.cfg.TrustProxy)
	origin := r.Header.Get("Origin")

	if !e.originAllowed(origin) {
		e.reject(w, r, ip, rejection{protocol.ClosePolicyViolation, protocol.ReasonOriginRejected, "origin_rejected", ""})
		return
	}

	if d := e.limiter.Allow(r.Context(), ratelimit.DomainWSConnect, ip); !d.Allowed {
		e.reject(w, r, ip, rejection{protocol.ClosePolicyViolation, protocol.ReasonRateLimited, "rate_limited", ""})
		return
	}

	identity, err := e.validator.Validate(r.Context(), auth.ExtractToken(r, e.cfg.TokenQueryParam))
	if err != nil {
		e.reject(w, r, ip, rejection{protocol.CloseUnauthorized, string(auth.ReasonOf(err)), "unauthorized", ""})
		return
	}

	c := newConn(identity, ip, e.cfg.SendBuffer, e.cfg.WriteWait)
	if err := e.registry.Register(c); err != nil {
		if !errors.Is(err, ErrConnectionLimit) {
			logging.Error().Err(err).Str("user_id", identity.UserID).Msg("failed to register websocket connection")
		}
		e.reject(w, r, ip, rejection{protocol.ClosePolicyViolation, protocol.ReasonConnectionLimit, "connection_limit", identity.UserID})
		return
	}

	ws, err := e.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already answered with an HTTP error.
		e.registry.Deregister(c)
		c.release()
		metrics.WSErrors.WithLabelValues("upgrade").Inc()
		logging.Debug().Err(err).Str("ip", ip).Msg("websocket upgrade failed")
		return
	}
	metrics.RecordAdmission("accepted")

	ctx, cancel := context.WithCancel(logging.ContextWithConnection(r.Context(), c.id.String(), identity.UserID))
	defer cancel()

	if !c.attach(ws) {
		e.registry.Deregister(c)
		_ = ws.Close()
		return
	}

	logging.Ctx(ctx).Info().
		Str("ip", ip).
		Strs("roles", identity.RoleList()).
		Msg("websocket connection opened")

	go c.writePump(ws, e.cfg.PingPeriod)
	e.readLoop(ctx, c, ws)

	e.registry.Deregister(c)
	c.release()
	_ = ws.Close()

	logging.Ctx(ctx).Info().
		Int("close_code", c.CloseCode()).
		Dur("duration", time.Since(c.connectedAt)).
		Msg("websocket connection closed")
}

func (e *Endpoint) originAllowed(origin string) bool {
	if origin == "" {
		return true
	}
	for _, allowed := range e.cfg.AllowedOrigins {
		if allowed == "*" || strings.EqualFold(allowed, origin) {
			return true
		}
	}
	return false
}

// reject completes the handshake only to deliver a close frame, then drops
// the socket. No application message is written.
func (e *Endpoint) reject(w http.ResponseWriter, r *http.Request, ip string, rej rejection) {
	metrics.RecordAdmission(rej.outcome)
	e.security.LogAdmissionRejected(ip, r.Header.Get("Origin"), rej.userID, rej.reason, rej.code)

	ws, err := e.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer func() { _ = ws.Close() }()

	msg := websocket.FormatCloseMessage(rej.code, rej.reason)
	if err := ws.WriteControl(websocket.CloseMessage, msg, time.Now().Add(e.cfg.WriteWait)); err != nil {
		logging.Debug().Err(err).Msg("failed to write admission close frame")
		return
	}
	metrics.RecordServerClose(rej.code)
}

// readLoop processes frames strictly in order until the socket fails.
// After a server-initiated close it keeps reading only to collect the
// peer's close reply.
func (e *Endpoint) readLoop(ctx context.Context, c *Conn, ws *websocket.Conn) {
	ws.SetReadLimit(e.cfg.ReadLimit)
	if err := ws.SetReadDeadline(time.Now().Add(e.cfg.PongWait)); err != nil {
		logging.Error().Err(err).Msg("failed to set read deadline")
		return
	}
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(e.cfg.PongWait))
	})

	for {
		kind, frame, err := ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived) {
				metrics.WSErrors.WithLabelValues("read").Inc()
				logging.Ctx(ctx).Debug().Err(err).Msg("unexpected websocket close error")
			}
			return
		}

		select {
		case <-c.Done():
			continue
		default:
		}
		metrics.WSMessagesReceived.Inc()

		if kind != websocket.TextMessage {
			metrics.WSErrors.WithLabelValues("binary").Inc()
			c.Close(protocol.CloseUnsupportedData, protocol.ReasonBinary)
			continue
		}

		req, err := protocol.DecodeRequest(frame)
		if err != nil {
			metrics.WSErrors.WithLabelValues("malformed").Inc()
			logging.Ctx(ctx).Debug().Err(err).Msg("closing connection on malformed frame")
			c.Close(protocol.CloseUnsupportedData, protocol.ReasonMalformed)
			continue
		}

		out, err := protocol.Encode(e.handle(ctx, c, req))
		if err != nil {
			logging.Ctx(ctx).Error().Err(err).Int("pkg_id", req.PkgID).Msg("failed to encode response")
			fallback := protocol.Fail(protocol.StatusError, "internal error")
			fallback.PkgID, fallback.ReqID = req.PkgID, req.ReqID
			if out, err = protocol.Encode(fallback); err != nil {
				continue
			}
		}
		if err := c.sendReply(ctx, out); err != nil {
			logging.Ctx(ctx).Debug().Err(err).Int("pkg_id", req.PkgID).Msg("reply dropped")
		}
	}
}

// handle applies the per-connection message budget, then routes.
func (e *Endpoint) handle(ctx context.Context, c *Conn, req *protocol.Request) *protocol.Response {
	d := e.limiter.Allow(ctx, ratelimit.DomainWSMessage, c.id.String())
	if !d.Allowed {
		logging.Ctx(ctx).Debug().
			Int("pkg_id", req.PkgID).
			Dur("retry_after", d.RetryAfter).
			Msg("websocket message throttled")
		return protocol.Throttled(req, d.RetryAfter)
	}
	return e.router.Handle(ctx, c.identity, req)
}
