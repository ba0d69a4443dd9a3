// Switchboard - Multiplexed WebSocket and HTTP API Gateway
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/switchboard

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/tomtom215/switchboard/internal/api"
	"github.com/tomtom215/switchboard/internal/auth"
	"github.com/tomtom215/switchboard/internal/authz"
	"github.com/tomtom215/switchboard/internal/config"
	"github.com/tomtom215/switchboard/internal/logging"
	"github.com/tomtom215/switchboard/internal/packages"
	"github.com/tomtom215/switchboard/internal/ratelimit"
	"github.com/tomtom215/switchboard/internal/router"
	"github.com/tomtom215/switchboard/internal/supervisor"
	"github.com/tomtom215/switchboard/internal/supervisor/services"
	ws "github.com/tomtom215/switchboard/internal/websocket"
)

// gateway holds every long-lived component of one instance.
type gateway struct {
	cfg *config.Config

	rdb       *redis.Client
	validator *auth.BreakerValidator
	limiter   *ratelimit.Limiter
	store     ratelimit.Store
	registry  *ws.Registry
	nats      *ws.EmbeddedNATS
	transport *ws.Transport
	relay     *ws.Relay
	packages  *router.Router
	enforcer  *authz.Enforcer

	handler http.Handler
}

// newGateway builds the component graph described by cfg. On error every
// component created so far is closed again.
func newGateway(cfg *config.Config) (_ *gateway, err error) {
	g := &gateway{cfg: cfg}
	defer func() {
		if err != nil {
			g.close()
		}
	}()

	if cfg.RedisRequired() {
		g.rdb = redis.NewClient(&redis.Options{
			Addr:        cfg.Redis.Addr,
			Password:    cfg.Redis.Password,
			DB:          cfg.Redis.DB,
			DialTimeout: cfg.Redis.DialTimeout,
		})
		logging.Info().Str("addr", cfg.Redis.Addr).Msg("Redis client configured")
	}

	// A nil *redis.Client must not become a non-nil interface.
	var rdb redis.UniversalClient
	if g.rdb != nil {
		rdb = g.rdb
	}

	g.validator, _, err = auth.NewFromConfig(cfg.Auth, rdb)
	if err != nil {
		return nil, fmt.Errorf("token validator: %w", err)
	}
	logging.Info().
		Str("mode", cfg.Auth.Mode).
		Str("revocation", cfg.Auth.Revocation).
		Msg("Token validator initialized")

	g.limiter, g.store, err = ratelimit.NewFromConfig(cfg.RateLimit, rdb)
	if err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}
	logging.Info().
		Str("store", cfg.RateLimit.Store).
		Str("failure_policy", cfg.RateLimit.FailurePolicy).
		Msg("Rate limiter initialized")

	g.registry = ws.NewRegistry(ws.RegistryConfig{
		MaxConnectionsPerUser: cfg.WebSocket.MaxConnectionsPerUser,
		CloseOnTokenExpiry:    cfg.WebSocket.CloseOnTokenExpiry,
		ExpirySweepInterval:   cfg.WebSocket.ExpirySweepInterval,
	})

	natsURL := ""
	if cfg.Broadcast.Transport == config.TransportNATS && cfg.Broadcast.EmbeddedNATS {
		g.nats, err = ws.StartEmbeddedNATS(cfg.Broadcast.NATSHost, cfg.Broadcast.NATSPort)
		if err != nil {
			return nil, fmt.Errorf("embedded NATS: %w", err)
		}
		natsURL = g.nats.ClientURL()
		logging.Info().Str("url", natsURL).Msg("Embedded NATS server started")
	}

	g.transport, err = ws.NewTransportFromConfig(cfg.Broadcast, natsURL)
	if err != nil {
		return nil, fmt.Errorf("broadcast transport: %w", err)
	}
	g.relay = ws.NewRelay(g.transport, g.registry, cfg.Broadcast.Topic)
	logging.Info().
		Str("transport", g.transport.Name()).
		Str("topic", cfg.Broadcast.Topic).
		Msg("Broadcast relay configured")

	b := router.NewBuilder()
	if err = packages.RegisterSystem(b, packages.Deps{
		Registry:    g.registry,
		Broadcaster: g.relay,
		Version:     version,
		StartedAt:   time.Now(),
	}); err != nil {
		return nil, fmt.Errorf("register system packages: %w", err)
	}
	g.packages = b.Build()

	endpoint := ws.NewEndpoint(ws.EndpointConfigFrom(cfg), g.registry, g.validator, g.limiter, g.packages)

	g.enforcer, err = authz.NewEnforcer(authz.EnforcerConfigFrom(cfg.Security))
	if err != nil {
		return nil, fmt.Errorf("authz enforcer: %w", err)
	}

	mw := api.DefaultChiMiddlewareConfig()
	mw.CORSAllowedOrigins = cfg.Security.CORSOrigins
	mw.TrustProxy = cfg.Security.TrustProxy

	rt, err := api.NewRouter(api.Deps{
		Handler:    api.NewHandler(g.registry, g.packages, g.relay, g.readinessChecks(), version),
		Endpoint:   endpoint,
		Validator:  g.validator,
		Limiter:    g.limiter,
		Enforcer:   g.enforcer,
		Middleware: mw,
	})
	if err != nil {
		return nil, fmt.Errorf("api router: %w", err)
	}
	g.handler = rt.SetupChi()
	return g, nil
}

// readinessChecks lists the dependencies /health/ready consults.
func (g *gateway) readinessChecks() []api.ReadinessCheck {
	checks := []api.ReadinessCheck{
		{
			Name: "token_validator",
			Check: func(context.Context) error {
				if g.validator.State() == "open" {
					return errors.New("introspection circuit open")
				}
				return nil
			},
		},
		{
			Name: "broadcast_relay",
			Check: func(context.Context) error {
				select {
				case <-g.relay.Ready():
					return nil
				default:
					return errors.New("relay not subscribed")
				}
			},
		},
	}
	if g.rdb != nil {
		checks = append(checks, api.ReadinessCheck{
			Name:  "redis",
			Check: func(ctx context.Context) error { return g.rdb.Ping(ctx).Err() },
		})
	}
	return checks
}

// addServices places every background loop under the supervisor tree.
func (g *gateway) addServices(tree *supervisor.SupervisorTree, server *http.Server) {
	if g.nats != nil {
		tree.AddTransportService(services.NewEmbeddedNATSService(g.nats, g.cfg.Server.ShutdownTimeout))
	}
	tree.AddTransportService(services.NewRunnerService("broadcast-relay", g.relay))

	tree.AddGatewayService(services.NewRunnerService("connection-registry", g.registry))
	if runner, ok := g.store.(services.ContextRunner); ok {
		tree.AddGatewayService(services.NewRunnerService("ratelimit-sweeper", runner))
	}

	tree.AddAPIService(services.NewHTTPServerService(server, server.Addr, g.cfg.Server.ShutdownTimeout))
}

// close releases what the supervisor does not own. Safe on a partially
// built gateway.
func (g *gateway) close() {
	if g.enforcer != nil {
		g.enforcer.Close()
	}
	if g.transport != nil {
		if err := g.transport.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing broadcast transport")
		}
	}
	if g.nats != nil && g.nats.IsRunning() {
		ctx, cancel := context.WithTimeout(context.Background(), g.cfg.Server.ShutdownTimeout)
		if err := g.nats.Shutdown(ctx); err != nil {
			logging.Error().Err(err).Msg("Error stopping embedded NATS")
		}
		cancel()
	}
	if c, ok := g.store.(io.Closer); ok {
		if err := c.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing rate limit store")
		}
	}
	if g.rdb != nil {
		if err := g.rdb.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing redis client")
		}
	}
}
