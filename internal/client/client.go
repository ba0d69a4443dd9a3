// Switchboard - Multiplexed WebSocket and HTTP API Gateway
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/switchboard

package client

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/tomtom215/switchboard/internal/protocol"
)

var (
	// ErrClosed is returned by Call after the connection ended.
	ErrClosed = errors.New("client: connection closed")
	// ErrCallTimeout is returned when no reply arrives within the call timeout.
	ErrCallTimeout = errors.New("client: call timed out")
)

// Reply is a decoded response envelope. Meta and Data stay raw until the
// caller knows their shape.
type Reply struct {
	PkgID      int                 `json:"pkg_id"`
	ReqID      uuid.UUID           `json:"req_id"`
	StatusCode protocol.StatusCode `json:"status_code"`
	Meta       json.RawMessage     `json:"meta"`
	Data       json.RawMessage     `json:"data"`
}

// IsBroadcast reports whether the reply is an unsolicited broadcast.
func (r *Reply) IsBroadcast() bool { return r.ReqID == protocol.BroadcastID }

// Decode unmarshals Data into v.
func (r *Reply) Decode(v any) error { return json.Unmarshal(r.Data, v) }

// Error returns the gateway's error message for non-OK replies.
func (r *Reply) Error() string {
	var e protocol.ErrorData
	_ = json.Unmarshal(r.Data, &e)
	return e.Error
}

// Option configures a Client.
type Option func(*Client)

// WithCallTimeout bounds Call when ctx has no earlier deadline. Default 10s.
func WithCallTimeout(d time.Duration) Option {
	return func(c *Client) { c.callTimeout = d }
}

// WithWriteTimeout bounds each frame write. Default 5s.
func WithWriteTimeout(d time.Duration) Option {
	return func(c *Client) { c.writeTimeout = d }
}

// WithBroadcastHandler receives broadcasts on the read goroutine. Without a
// handler broadcasts are dropped.
func WithBroadcastHandler(fn func(*Reply)) Option {
	return func(c *Client) { c.onBroadcast = fn }
}

// Client multiplexes calls over one gateway connection. It is safe for
// concurrent use.
type Client struct {
	conn *websocket.Conn

	callTimeout  time.Duration
	writeTimeout time.Duration
	onBroadcast  func(*Reply)

	wmu sync.Mutex

	mu      sync.Mutex
	pending map[uuid.UUID]chan *Reply
	err     error
	done    chan struct{}
}

// Dial connects to a gateway /ws URL presenting token as a Bearer header.
// The gateway completes the handshake before rejecting, so an admission
// failure shows up as Err and CloseCode rather than a Dial error.
func Dial(ctx context.Context, url, token string, header http.Header, opts ...Option) (*Client, error) {
	if header == nil {
		header = http.Header{}
	}
	if token != "" {
		header.Set("Authorization", "Bearer "+token)
	}
	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, resp, err := dialer.DialContext(ctx, url, header)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("websocket dial failed (status %d): %w", resp.StatusCode, err)
		}
		return nil, fmt.Errorf("websocket dial failed: %w", err)
	}
	return New(conn, opts...), nil
}

// New wraps an established connection and starts the read goroutine.
func New(conn *websocket.Conn, opts ...Option) *Client {
	c := &Client{
		conn:         conn,
		callTimeout:  10 * time.Second,
		writeTimeout: 5 * time.Second,
		pending:      make(map[uuid.UUID]chan *Reply),
		done:         make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	go c.readLoop()
	return c
}

func (c *Client) readLoop() {
	defer close(c.done)
	for {
		_, frame, err := c.conn.ReadMessage()
		if err != nil {
			c.fail(err)
			return
		}
		var reply Reply
		if err := json.Unmarshal(frame, &reply); err != nil {
			continue
		}
		if reply.IsBroadcast() {
			if c.onBroadcast != nil {
				c.onBroadcast(&reply)
			}
			continue
		}
		c.mu.Lock()
		ch, ok := c.pending[reply.ReqID]
		delete(c.pending, reply.ReqID)
		c.mu.Unlock()
		if ok {
			ch <- &reply
		}
	}
}

// fail records the first terminal error and releases every waiting call.
func (c *Client) fail(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err == nil {
		c.err = err
	}
	for id, ch := range c.pending {
		close(ch)
		delete(c.pending, id)
	}
}

// Send writes a request without waiting for the reply and returns its req_id.
func (c *Client) Send(pkgID int, data any) (uuid.UUID, error) {
	id := uuid.New()
	return id, c.write(pkgID, id, data)
}

func (c *Client) write(pkgID int, reqID uuid.UUID, data any) error {
	frame, err := json.Marshal(struct {
		PkgID int       `json:"pkg_id"`
		ReqID uuid.UUID `json:"req_id"`
		Data  any       `json:"data"`
	}{pkgID, reqID, data})
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}
	return c.WriteRaw(frame)
}

// WriteRaw sends one text frame verbatim.
func (c *Client) WriteRaw(frame []byte) error {
	c.wmu.Lock()
	defer c.wmu.Unlock()
	if err := c.conn.SetWriteDeadline(time.Now().Add(c.writeTimeout)); err != nil {
		return err
	}
	return c.conn.WriteMessage(websocket.TextMessage, frame)
}

// Call sends a request and waits for the reply with the same req_id.
func (c *Client) Call(ctx context.Context, pkgID int, data any) (*Reply, error) {
	if _, ok := ctx.Deadline(); !ok && c.callTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.callTimeout)
		defer cancel()
	}

	id := uuid.New()
	ch := make(chan *Reply, 1)
	c.mu.Lock()
	if c.err != nil {
		c.mu.Unlock()
		return nil, ErrClosed
	}
	c.pending[id] = ch
	c.mu.Unlock()

	if err := c.write(pkgID, id, data); err != nil {
		c.forget(id)
		return nil, err
	}

	select {
	case reply, ok := <-ch:
		if !ok {
			return nil, ErrClosed
		}
		return reply, nil
	case <-ctx.Done():
		c.forget(id)
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, ErrCallTimeout
		}
		return nil, ctx.Err()
	}
}

func (c *Client) forget(id uuid.UUID) {
	c.mu.Lock()
	delete(c.pending, id)
	c.mu.Unlock()
}

// Done is closed when the read goroutine exits.
func (c *Client) Done() <-chan struct{} { return c.done }

// Err returns the error that ended the connection, if any.
func (c *Client) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

// CloseCode returns the close code sent by the gateway, or 0 when the
// connection is open or ended without a close frame.
func (c *Client) CloseCode() int {
	var ce *websocket.CloseError
	if errors.As(c.Err(), &ce) {
		return ce.Code
	}
	return 0
}

// CloseReason returns the close frame text sent by the gateway.
func (c *Client) CloseReason() string {
	var ce *websocket.CloseError
	if errors.As(c.Err(), &ce) {
		return ce.Text
	}
	return ""
}

// Close sends a 1000 close frame and waits briefly for the gateway to echo
// it before dropping the socket.
func (c *Client) Close() error {
	c.wmu.Lock()
	_ = c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(c.writeTimeout))
	c.wmu.Unlock()

	select {
	case <-c.done:
	case <-time.After(time.Second):
	}
	return c.conn.Close()
}
