// Switchboard - Multiplexed WebSocket and HTTP API Gateway
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/switchboard

// Package logging provides the gateway's zerolog-based structured logging.
//
// A single global logger is configured once from main:
//
//	logging.Init(logging.Config{Level: "info", Format: "json"})
//	logging.Info().Str("addr", addr).Msg("listening")
//
// Per-connection code should log through Ctx so that connection_id and
// user_id are attached automatically:
//
//	ctx = logging.ContextWithConnection(ctx, conn.ID.String(), id.UserID)
//	logging.Ctx(ctx).Warn().Int("pkg_id", 7).Msg("permission denied")
//
// NewSlogLogger bridges slog-only libraries (suture via sutureslog, watermill)
// onto the same output.
//
// Always terminate event chains with Msg or Send; an unterminated chain is
// never written.
package logging
