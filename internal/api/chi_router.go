// Switchboard - Multiplexed WebSocket and HTTP API Gateway
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/switchboard

package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tomtom215/switchboard/internal/auth"
	"github.com/tomtom215/switchboard/internal/authz"
	"github.com/tomtom215/switchboard/internal/middleware"
	"github.com/tomtom215/switchboard/internal/ratelimit"
)

// Deps are the collaborators mounted by the router.
type Deps struct {
	Handler *Handler
	// Endpoint serves /ws.
	Endpoint http.Handler
	// Validator authenticates admin requests.
	Validator auth.Validator
	// Limiter applies the http domain to /api/v1/admin.
	Limiter  *ratelimit.Limiter
	Enforcer *authz.Enforcer

	Middleware *ChiMiddlewareConfig
}

// Router wires the HTTP surface together.
type Router struct {
	handler         *Handler
	endpoint        http.Handler
	authn           *auth.Middleware
	authzMiddleware *authz.Middleware
	policyHandlers  *authz.PolicyHandlers
	limiter         *ratelimit.Limiter
	chiMiddleware   *ChiMiddleware
}

// NewRouter validates deps and builds the router.
func NewRouter(deps Deps) (*Router, error) {
	switch {
	case deps.Handler == nil:
		return nil, errors.New("api: handler required")
	case deps.Endpoint == nil:
		return nil, errors.New("api: websocket endpoint required")
	case deps.Validator == nil:
		return nil, errors.New("api: token validator required")
	case deps.Limiter == nil:
		return nil, errors.New("api: rate limiter required")
	case deps.Enforcer == nil:
		return nil, errors.New("api: authz enforcer required")
	}
	return &Router{
		handler:         deps.Handler,
		endpoint:        deps.Endpoint,
		authn:           auth.NewMiddleware(deps.Validator),
		authzMiddleware: authz.NewMiddleware(deps.Enforcer),
		policyHandlers:  authz.NewPolicyHandlers(deps.Enforcer),
		limiter:         deps.Limiter,
		chiMiddleware:   NewChiMiddleware(deps.Middleware),
	}, nil
}

func identityUserID(r *http.Request) string {
	if id := auth.GetIdentity(r.Context()); id != nil {
		return id.UserID
	}
	return ""
}

// SetupChi configures all HTTP routes.
func (router *Router) SetupChi() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(chimiddleware.Recoverer)
	r.Use(router.chiMiddleware.CORS())

	// The endpoint runs its own admission sequence (origin, ws_connect
	// limit, token, registry) and records its own metrics, so it sits
	// outside the request instrumentation.
	r.Get("/ws", router.endpoint.ServeHTTP)

	r.Group(func(r chi.Router) {
		r.Use(middleware.PrometheusMetrics)

		r.Route("/health", func(r chi.Router) {
			r.Use(router.chiMiddleware.RateLimitHealth())
			r.Use(APISecurityHeaders())
			r.Get("/live", router.handler.HealthLive)
			r.Get("/ready", router.handler.HealthReady)
		})

		r.Handle("/metrics", promhttp.Handler())

		keyFunc := ratelimit.KeyByIP
		if router.chiMiddleware.config.TrustProxy {
			keyFunc = ratelimit.KeyByRealIP
		}
		r.Route("/api/v1/admin", func(r chi.Router) {
			r.Use(router.chiMiddleware.RateLimitPreAuth())
			r.Use(APISecurityHeaders())
			r.Use(chimiddleware.Compress(5, "application/json"))
			r.Use(router.authn.Authenticate)
			r.Use(ratelimit.Middleware(router.limiter, ratelimit.KeyByUser(identityUserID, keyFunc)))
			r.Use(router.authzMiddleware.AuthorizeRequest)

			r.Get("/packages", router.handler.ListPackages)
			r.Get("/connections", router.handler.ListConnections)
			r.Delete("/connections/{userID}", router.handler.EvictUser)
			r.Post("/broadcast", router.handler.Broadcast)
			r.Get("/policy", router.policyHandlers.GetPolicy)
			r.Post("/policy/check", router.policyHandlers.CheckPermission)
		})
	})

	return r
}
