// Switchboard - Multiplexed WebSocket and HTTP API Gateway
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/switchboard

/*
Package middleware provides the HTTP middleware shared by every route.

  - RequestID: accepts or generates X-Request-ID and puts it in the
    context for logging.Ctx and chi's own helpers.
  - PrometheusMetrics: request counters and latency histograms labelled by
    chi route pattern.

Both are chi-style func(http.Handler) http.Handler and are installed
globally by internal/api:

	r.Use(middleware.RequestID)
	r.Use(middleware.PrometheusMetrics)
*/
package middleware
