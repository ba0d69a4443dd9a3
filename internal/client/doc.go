// Switchboard - Multiplexed WebSocket and HTTP API Gateway
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/switchboard

/*
Package client is a Go client for the gateway's WebSocket protocol.

One Client carries many concurrent calls. Each Call generates a fresh
req_id, writes {"pkg_id", "req_id", "data"} and waits for the reply that
echoes the same req_id. Replies arrive in completion order, not send
order. Broadcasts, which carry the all-zero req_id, go to the handler
installed with WithBroadcastHandler.

	c, err := client.Dial(ctx, "ws://localhost:8080/ws", token, nil)
	if err != nil {
		return err
	}
	defer c.Close()

	reply, err := c.Call(ctx, 1, map[string]string{"echo": "hi"})

When the gateway refuses a connection it still completes the handshake
and sends a close frame, so the refusal is visible through CloseCode and
CloseReason once Done is closed.
*/
package client
