// Switchboard - Multiplexed WebSocket and HTTP API Gateway
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/switchboard

package websocket

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/tomtom215/switchboard/internal/auth"
	"github.com/tomtom215/switchboard/internal/logging"
	"github.com/tomtom215/switchboard/internal/metrics"
)

const (
	defaultWriteWait  = 10 * time.Second
	defaultPongWait   = 60 * time.Second
	defaultPingPeriod = (defaultPongWait * 9) / 10
	defaultReadLimit  = 512 * 1024 // 512 KiB
	defaultSendBuffer = 256

	// closeGrace bounds how long a server-initiated close waits for the
	// peer's close frame before the socket is dropped.
	closeGrace = time.Second
)

// ErrConnClosed is returned when queueing to a connection that is closing.
var ErrConnClosed = errors.New("connection closed")

// connSeq orders connections by admission for deterministic fan-out.
var connSeq atomic.Uint64

// Conn is the registry's record of one admitted WebSocket connection.
// It exists before the HTTP upgrade completes; the socket is attached
// afterwards.
type Conn struct {
	id          uuid.UUID
	seq         uint64
	identity    *auth.Identity
	remoteAddr  string
	connectedAt time.Time
	writeWait   time.Duration

	// send is never closed; closed signals the write pump instead.
	send   chan []byte
	closed chan struct{}

	closeOnce  sync.Once
	mu         sync.Mutex
	ws         *websocket.Conn
	closeCode  int
	closeFrame []byte
}

func newConn(identity *auth.Identity, remoteAddr string, sendBuffer int, writeWait time.Duration) *Conn {
	if sendBuffer <= 0 {
		sendBuffer = defaultSendBuffer
	}
	if writeWait <= 0 {
		writeWait = defaultWriteWait
	}
	return &Conn{
		id:          uuid.New(),
		seq:         connSeq.Add(1),
		identity:    identity,
		remoteAddr:  remoteAddr,
		connectedAt: time.Now(),
		writeWait:   writeWait,
		send:        make(chan []byte, sendBuffer),
		closed:      make(chan struct{}),
	}
}

// ID returns the connection's unique identifier.
func (c *Conn) ID() uuid.UUID { return c.id }

// Identity returns the identity the connection was admitted with.
func (c *Conn) Identity() *auth.Identity { return c.identity }

// UserID is shorthand for Identity().UserID.
func (c *Conn) UserID() string { return c.identity.UserID }

// RemoteAddr returns the client address seen at admission.
func (c *Conn) RemoteAddr() string { return c.remoteAddr }

// ConnectedAt returns the admission time.
func (c *Conn) ConnectedAt() time.Time { return c.connectedAt }

// Done is closed once the connection starts closing.
func (c *Conn) Done() <-chan struct{} { return c.closed }

// CloseCode returns the code of the server-initiated close, or 0.
func (c *Conn) CloseCode() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closeCode
}

// attach binds the upgraded socket. It returns false if the connection
// was closed in the meantime, after delivering the pending close frame.
func (c *Conn) attach(ws *websocket.Conn) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	select {
	case <-c.closed:
		if c.closeFrame != nil {
			_ = ws.WriteControl(websocket.CloseMessage, c.closeFrame, time.Now().Add(c.writeWait))
		}
		return false
	default:
	}
	c.ws = ws
	return true
}

// Close starts a server-initiated close with code and reason. Only the
// first call has any effect; it reports whether this call closed c.
func (c *Conn) Close(code int, reason string) bool {
	return c.finish(code, reason, true)
}

// release marks c closed without sending a close frame. Used when the
// peer went away first.
func (c *Conn) release() {
	c.finish(0, "", false)
}

func (c *Conn) finish(code int, reason string, sendFrame bool) bool {
	first := false
	c.closeOnce.Do(func() {
		first = true

		c.mu.Lock()
		if sendFrame {
			c.closeCode = code
			c.closeFrame = websocket.FormatCloseMessage(code, reason)
		}
		ws := c.ws
		close(c.closed)
		c.mu.Unlock()

		if !sendFrame {
			return
		}
		metrics.RecordServerClose(code)
		if ws == nil {
			return
		}
		if err := ws.WriteControl(websocket.CloseMessage, c.closeFrame, time.Now().Add(c.writeWait)); err != nil {
			logging.Debug().Err(err).Str("connection_id", c.id.String()).Msg("failed to write close frame")
			_ = ws.Close()
			return
		}
		// The read loop normally sees the peer's close reply first.
		time.AfterFunc(closeGrace, func() { _ = ws.Close() })
	})
	return first
}

// trySend queues frame without blocking. It fails when the queue is full
// or the connection is closing.
func (c *Conn) trySend(frame []byte) bool {
	select {
	case <-c.closed:
		return false
	default:
	}
	select {
	case c.send <- frame:
		return true
	default:
		return false
	}
}

// sendReply queues a reply, blocking while the queue is full. A slow
// reader therefore stalls its own read loop rather than losing replies.
func (c *Conn) sendReply(ctx context.Context, frame []byte) error {
	select {
	case c.send <- frame:
		return nil
	case <-c.closed:
		return ErrConnClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// writePump drains the send queue to ws and keeps the peer alive with
// pings. It is the only data writer on ws.
func (c *Conn) writePump(ws *websocket.Conn, pingPeriod time.Duration) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-c.closed:
			return

		case frame := <-c.send:
			if err := ws.SetWriteDeadline(time.Now().Add(c.writeWait)); err != nil {
				logging.Error().Err(err).Msg("failed to set write deadline")
				_ = ws.Close()
				return
			}
			if err := ws.WriteMessage(websocket.TextMessage, frame); err != nil {
				metrics.WSErrors.WithLabelValues("write").Inc()
				logging.Debug().Err(err).Str("connection_id", c.id.String()).Msg("websocket write failed")
				_ = ws.Close()
				return
			}
			metrics.WSMessagesSent.Inc()

		case <-ticker.C:
			if err := ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(c.writeWait)); err != nil {
				metrics.WSErrors.WithLabelValues("ping").Inc()
				_ = ws.Close()
				return
			}
		}
	}
}
