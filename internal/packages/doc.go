// Switchboard - Multiplexed WebSocket and HTTP API Gateway
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/switchboard

// Package packages registers the gateway's built-in system packages.
//
//	pkg_id  name              roles             payload
//	1       system.ping       -                 -
//	2       system.whoami     -                 -
//	3       system.broadcast  admin, broadcast  {"pkg_id": int, "data": object}
//	4       system.stats      admin             -
//
// Applications register their own packages on the same router.Builder
// after RegisterSystem, using ids outside this range.
package packages
