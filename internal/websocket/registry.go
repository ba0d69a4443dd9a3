// Switchboard - Multiplexed WebSocket and HTTP API Gateway
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/switchboard

package websocket

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/tomtom215/switchboard/internal/logging"
	"github.com/tomtom215/switchboard/internal/metrics"
	"github.com/tomtom215/switchboard/internal/protocol"
)

// ShutdownReason identifies why the registry stopped.
type ShutdownReason string

const (
	// ShutdownReasonContextCanceled is the normal graceful path (SIGTERM).
	ShutdownReasonContextCanceled ShutdownReason = "context_canceled"

	// ShutdownReasonContextDeadline may indicate a hung shutdown.
	ShutdownReasonContextDeadline ShutdownReason = "context_deadline"
)

// DefaultMaxConnectionsPerUser applies when RegistryConfig leaves it unset.
const DefaultMaxConnectionsPerUser = 5

var (
	// ErrConnectionLimit is returned by Register when the user already
	// holds the maximum number of connections.
	ErrConnectionLimit = errors.New("connection limit reached")

	// ErrAlreadyRegistered is returned when the same record is registered twice.
	ErrAlreadyRegistered = errors.New("connection already registered")
)

// RegistryConfig configures a Registry.
type RegistryConfig struct {
	MaxConnectionsPerUser int

	// CloseOnTokenExpiry enables a periodic sweep that closes connections
	// whose token has expired with 4001.
	CloseOnTokenExpiry  bool
	ExpirySweepInterval time.Duration
}

// Stats is a point-in-time summary of the registry.
type Stats struct {
	Connections           int `json:"connections"`
	Users                 int `json:"users"`
	MaxConnectionsPerUser int `json:"max_connections_per_user"`
}

// ConnectionInfo describes one live connection for the admin API.
type ConnectionInfo struct {
	ID          uuid.UUID `json:"id"`
	UserID      string    `json:"user_id"`
	Username    string    `json:"username"`
	Roles       []string  `json:"roles"`
	RemoteAddr  string    `json:"remote_addr"`
	ConnectedAt time.Time `json:"connected_at"`
}

// Registry tracks live connections and enforces the per-user limit.
type Registry struct {
	mu     sync.RWMutex
	conns  map[uuid.UUID]*Conn
	byUser map[string]map[uuid.UUID]*Conn

	maxPerUser     int
	expiryCheck    bool
	expiryInterval time.Duration
	now            func() time.Time
}

// NewRegistry creates an empty registry.
func NewRegistry(cfg RegistryConfig) *Registry {
	if cfg.MaxConnectionsPerUser <= 0 {
		cfg.MaxConnectionsPerUser = DefaultMaxConnectionsPerUser
	}
	if cfg.ExpirySweepInterval <= 0 {
		cfg.ExpirySweepInterval = 30 * time.Second
	}
	return &Registry{
		conns:          make(map[uuid.UUID]*Conn),
		byUser:         make(map[string]map[uuid.UUID]*Conn),
		maxPerUser:     cfg.MaxConnectionsPerUser,
		expiryCheck:    cfg.CloseOnTokenExpiry,
		expiryInterval: cfg.ExpirySweepInterval,
		now:            time.Now,
	}
}

// Register admits c. The per-user count is checked and c inserted under
// the same lock, so concurrent attempts cannot exceed the limit.
func (r *Registry) Register(c *Conn) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.conns[c.id]; ok {
		return ErrAlreadyRegistered
	}
	user := r.byUser[c.UserID()]
	if len(user) >= r.maxPerUser {
		return ErrConnectionLimit
	}
	if user == nil {
		user = make(map[uuid.UUID]*Conn)
		r.byUser[c.UserID()] = user
	}
	user[c.id] = c
	r.conns[c.id] = c
	metrics.WSConnections.Inc()

	logging.Debug().
		Str("connection_id", c.id.String()).
		Str("user_id", c.UserID()).
		Int("user_connections", len(user)).
		Int("total_connections", len(r.conns)).
		Msg("websocket connection registered")
	return nil
}

// Deregister removes c. It is idempotent: only the first call for a
// given record returns true.
func (r *Registry) Deregister(c *Conn) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.removeLocked(c)
}

func (r *Registry) removeLocked(c *Conn) bool {
	if cur, ok := r.conns[c.id]; !ok || cur != c {
		return false
	}
	delete(r.conns, c.id)
	if user := r.byUser[c.UserID()]; user != nil {
		delete(user, c.id)
		if len(user) == 0 {
			delete(r.byUser, c.UserID())
		}
	}
	metrics.WSConnections.Dec()
	return true
}

// Lookup returns the live connection with id.
func (r *Registry) Lookup(id uuid.UUID) (*Conn, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.conns[id]
	return c, ok
}

// Broadcast fans resp out to every registered connection and returns how
// many accepted it. resp should carry the broadcast sentinel.
func (r *Registry) Broadcast(resp *protocol.Response) int {
	frame, err := protocol.Encode(resp)
	if err != nil {
		logging.Error().Err(err).Int("pkg_id", resp.PkgID).Msg("failed to encode broadcast")
		return 0
	}
	return r.BroadcastBytes(frame)
}

// BroadcastBytes fans an already encoded envelope out. Delivery is
// attempted on a snapshot in admission order; a connection that cannot
// take the frame is deregistered and closed with 1008 without affecting
// the others.
func (r *Registry) BroadcastBytes(frame []byte) int {
	targets := r.snapshot()

	delivered := 0
	var failed []*Conn
	for _, c := range targets {
		if c.trySend(frame) {
			delivered++
			continue
		}
		failed = append(failed, c)
	}

	for _, c := range failed {
		r.Deregister(c)
		c.Close(protocol.ClosePolicyViolation, protocol.ReasonSlowConsumer)
		logging.Warn().
			Str("connection_id", c.id.String()).
			Str("user_id", c.UserID()).
			Msg("dropped websocket connection during broadcast")
	}

	metrics.RecordBroadcast(delivered, len(failed))
	return delivered
}

// Evict closes every connection held by userID with 1008 and returns how
// many were closed.
func (r *Registry) Evict(userID, reason string) int {
	if reason == "" {
		reason = protocol.ReasonEvicted
	}

	r.mu.Lock()
	user := r.byUser[userID]
	victims := make([]*Conn, 0, len(user))
	for _, c := range user {
		victims = append(victims, c)
	}
	for _, c := range victims {
		r.removeLocked(c)
	}
	r.mu.Unlock()

	sortBySeq(victims)
	for _, c := range victims {
		c.Close(protocol.ClosePolicyViolation, reason)
	}
	if len(victims) > 0 {
		logging.Info().
			Str("user_id", userID).
			Str("reason", reason).
			Int("closed", len(victims)).
			Msg("evicted websocket connections")
	}
	return len(victims)
}

// CloseAll deregisters and closes every connection with code.
func (r *Registry) CloseAll(code int, reason string) int {
	r.mu.Lock()
	all := make([]*Conn, 0, len(r.conns))
	for _, c := range r.conns {
		all = append(all, c)
	}
	for _, c := range all {
		r.removeLocked(c)
	}
	r.mu.Unlock()

	sortBySeq(all)
	for _, c := range all {
		c.Close(code, reason)
	}
	return len(all)
}

// Count returns the number of registered connections.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}

// UserCount returns the number of connections held by userID.
func (r *Registry) UserCount(userID string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byUser[userID])
}

// Stats returns a summary of the registry.
func (r *Registry) Stats() Stats {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return Stats{
		Connections:           len(r.conns),
		Users:                 len(r.byUser),
		MaxConnectionsPerUser: r.maxPerUser,
	}
}

// Connections lists live connections in admission order.
func (r *Registry) Connections() []ConnectionInfo {
	conns := r.snapshot()
	out := make([]ConnectionInfo, 0, len(conns))
	for _, c := range conns {
		out = append(out, ConnectionInfo{
			ID:          c.id,
			UserID:      c.UserID(),
			Username:    c.identity.Username,
			Roles:       c.identity.RoleList(),
			RemoteAddr:  c.remoteAddr,
			ConnectedAt: c.connectedAt,
		})
	}
	return out
}

func (r *Registry) snapshot() []*Conn {
	r.mu.RLock()
	out := make([]*Conn, 0, len(r.conns))
	for _, c := range r.conns {
		out = append(out, c)
	}
	r.mu.RUnlock()
	sortBySeq(out)
	return out
}

func sortBySeq(conns []*Conn) {
	sort.Slice(conns, func(i, j int) bool { return conns[i].seq < conns[j].seq })
}

// SweepExpired closes connections whose identity expired before now with
// 4001. It returns the number closed.
func (r *Registry) SweepExpired(now time.Time) int {
	r.mu.Lock()
	var expired []*Conn
	for _, c := range r.conns {
		if c.identity.Expired(now) {
			expired = append(expired, c)
		}
	}
	for _, c := range expired {
		r.removeLocked(c)
	}
	r.mu.Unlock()

	sortBySeq(expired)
	for _, c := range expired {
		c.Close(protocol.CloseUnauthorized, protocol.ReasonTokenExpired)
	}
	if len(expired) > 0 {
		logging.Info().Int("closed", len(expired)).Msg("closed websocket connections with expired tokens")
	}
	return len(expired)
}

// RunWithContext runs the registry as a supervised service. It sweeps
// expired tokens when enabled and, on cancellation, closes every
// connection with 1000.
func (r *Registry) RunWithContext(ctx context.Context) error {
	var tick <-chan time.Time
	if r.expiryCheck {
		ticker := time.NewTicker(r.expiryInterval)
		defer ticker.Stop()
		tick = ticker.C
	}

	for {
		select {
		case <-ctx.Done():
			r.logGracefulShutdown(ctx)
			return ctx.Err()
		case <-tick:
			r.SweepExpired(r.now())
		}
	}
}

// logGracefulShutdown closes all connections and logs without an error
// field; cancellation is the expected path.
func (r *Registry) logGracefulShutdown(ctx context.Context) {
	closed := r.CloseAll(protocol.CloseNormal, protocol.ReasonShutdown)

	logging.Info().
		Str("component", "websocket-registry").
		Str("reason", string(getShutdownReason(ctx))).
		Int("connections_closed", closed).
		Msg("websocket registry stopped")
}

func getShutdownReason(ctx context.Context) ShutdownReason {
	switch ctx.Err() {
	case context.DeadlineExceeded:
		return ShutdownReasonContextDeadline
	default:
		return ShutdownReasonContextCanceled
	}
}
