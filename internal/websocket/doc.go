// Switchboard - Multiplexed WebSocket and HTTP API Gateway
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/switchboard

/*
Package websocket implements the multiplexed WebSocket endpoint, the
connection registry and the cross-instance broadcast relay.

Admission runs in a fixed order before any application message is sent:

	origin allow-list      -> close 1008
	ws_connect rate limit  -> close 1008 (keyed by client IP)
	token validation       -> close 4001 (reason names the cause)
	registry.Register      -> close 1008 when the user is at the limit
	HTTP upgrade

A rejected request is still upgraded, but only so the close frame can be
delivered.

Each admitted connection has two goroutines:

  - the read loop, running on the ServeHTTP goroutine, which decodes
    frames, applies the per-connection ws_message budget and routes
    packages strictly in arrival order
  - writePump, the only data writer, which drains the send queue and
    pings the peer every PingPeriod

Replies block the read loop when the send queue is full. Broadcasts never
block: a connection that cannot take one is dropped with 1008.

Broadcasts travel through a Relay over watermill, either an in-process
gochannel or core NATS (optionally an embedded nats-server), so every
instance delivers every broadcast to its own registry:

	relay := websocket.NewRelay(websocket.NewGoChannelTransport(nil), registry, "")
	go relay.RunWithContext(ctx)
	_ = relay.Publish(ctx, protocol.NewBroadcast(42, map[string]any{"hello": "world"}))
*/
package websocket
