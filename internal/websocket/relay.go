// Switchboard - Multiplexed WebSocket and HTTP API Gateway
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/switchboard

package websocket

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/tomtom215/switchboard/internal/logging"
	"github.com/tomtom215/switchboard/internal/metrics"
	"github.com/tomtom215/switchboard/internal/protocol"
)

// DefaultRelayTopic carries broadcast envelopes between instances.
const DefaultRelayTopic = "switchboard.broadcast"

// ErrNotBroadcast is returned when publishing an envelope that does not
// carry the broadcast sentinel.
var ErrNotBroadcast = errors.New("envelope is not a broadcast")

// Broadcaster publishes broadcast envelopes to every connected client.
type Broadcaster interface {
	Publish(ctx context.Context, resp *protocol.Response) error
}

// Relay fans broadcasts out across gateway instances. Publish sends to
// the transport; every instance, including the sender, receives the
// envelope through RunWithContext and delivers it to its own registry.
type Relay struct {
	transport *Transport
	registry  *Registry
	topic     string

	ready     chan struct{}
	readyOnce sync.Once
}

// NewRelay creates a relay delivering into registry.
func NewRelay(transport *Transport, registry *Registry, topic string) *Relay {
	if topic == "" {
		topic = DefaultRelayTopic
	}
	return &Relay{transport: transport, registry: registry, topic: topic, ready: make(chan struct{})}
}

// Ready is closed once the first subscription is established.
func (r *Relay) Ready() <-chan struct{} { return r.ready }

// Publish sends resp to every instance.
func (r *Relay) Publish(ctx context.Context, resp *protocol.Response) error {
	if !resp.IsBroadcast() {
		return ErrNotBroadcast
	}
	payload, err := protocol.Encode(resp)
	if err != nil {
		return fmt.Errorf("encode broadcast: %w", err)
	}

	msg := message.NewMessage(watermill.NewUUID(), payload)
	msg.SetContext(ctx)
	if err := r.transport.Publisher.Publish(r.topic, msg); err != nil {
		return fmt.Errorf("publish broadcast: %w", err)
	}
	metrics.RelayMessages.WithLabelValues("published").Inc()
	return nil
}

// relayEnvelope is the part of a broadcast the relay checks before
// forwarding the raw payload.
type relayEnvelope struct {
	PkgID *int       `json:"pkg_id"`
	ReqID *uuid.UUID `json:"req_id"`
}

// RunWithContext subscribes to the topic and delivers until ctx is done.
func (r *Relay) RunWithContext(ctx context.Context) error {
	messages, err := r.transport.Subscriber.Subscribe(ctx, r.topic)
	if err != nil {
		return fmt.Errorf("subscribe to %s: %w", r.topic, err)
	}

	r.readyOnce.Do(func() { close(r.ready) })
	logging.Info().
		Str("topic", r.topic).
		Str("transport", r.transport.Name()).
		Msg("broadcast relay started")

	for {
		select {
		case <-ctx.Done():
			logging.Info().
				Str("component", "broadcast-relay").
				Str("reason", string(getShutdownReason(ctx))).
				Msg("broadcast relay stopped")
			return ctx.Err()

		case msg, ok := <-messages:
			if !ok {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				return errors.New("broadcast subscription closed")
			}
			r.deliver(msg)
			msg.Ack()
		}
	}
}

// deliver forwards one relayed envelope. Invalid payloads are dropped so
// they cannot be redelivered forever.
func (r *Relay) deliver(msg *message.Message) {
	var env relayEnvelope
	if err := json.Unmarshal(msg.Payload, &env); err != nil || env.PkgID == nil || env.ReqID == nil || *env.ReqID != protocol.BroadcastID {
		metrics.RelayMessages.WithLabelValues("invalid").Inc()
		logging.Warn().
			Err(err).
			Str("message_uuid", msg.UUID).
			Msg("dropping invalid relayed broadcast")
		return
	}

	metrics.RelayMessages.WithLabelValues("received").Inc()
	delivered := r.registry.BroadcastBytes(msg.Payload)
	logging.Debug().
		Int("pkg_id", *env.PkgID).
		Int("delivered", delivered).
		Msg("relayed broadcast delivered")
}
