// Switchboard - Multiplexed WebSocket and HTTP API Gateway
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/switchboard

// Command loadgen opens N gateway connections and fires packages at a
// fixed per-connection rate for a duration, then prints outcome counts
// and latency percentiles.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/goccy/go-json"
	"golang.org/x/time/rate"

	"github.com/tomtom215/switchboard/internal/auth"
	"github.com/tomtom215/switchboard/internal/client"
	"github.com/tomtom215/switchboard/internal/logging"
)

var (
	addrFlag     = flag.String("addr", "ws://localhost:8080/ws", "Gateway `url`.")
	connFlag     = flag.Int("c", 50, "Number of `connections`.")
	usersFlag    = flag.Int("users", 0, "Spread connections over this many user ids (0 = one user per connection).")
	durationFlag = flag.Duration("d", 30*time.Second, "Run `duration`.")
	rateFlag     = flag.Float64("r", 1, "Calls per second per connection.")
	timeoutFlag  = flag.Duration("t", 5*time.Second, "Call `timeout`.")
	pkgFlag      = flag.Int("pkg", 1, "Package `id` to call.")
	dataFlag     = flag.String("data", "{}", "Request data (JSON object).")
	rolesFlag    = flag.String("roles", "", "Comma-separated roles to put in minted tokens.")
	secretFlag   = flag.String("secret", "", "HMAC `secret` used to mint tokens (default $JWT_SECRET).")
	tokenFlag    = flag.String("token", "", "Use this token for every connection instead of minting.")
	logLevelFlag = flag.String("log-level", "info", "Log `level`.")
)

func main() {
	flag.Parse()
	logging.Init(logging.Config{Level: *logLevelFlag, Format: "console"})

	if *connFlag <= 0 || *rateFlag <= 0 {
		logging.Fatal().Msg("-c and -r must be greater than 0")
	}
	var data json.RawMessage
	if err := json.Unmarshal([]byte(*dataFlag), &data); err != nil {
		logging.Fatal().Err(err).Msg("-data is not valid JSON")
	}

	tokens, err := tokenSource(*tokenFlag, *secretFlag, splitRoles(*rolesFlag))
	if err != nil {
		logging.Fatal().Err(err).Msg("cannot obtain tokens")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, *durationFlag)
	defer cancel()

	run := &runner{
		addr:    *addrFlag,
		pkgID:   *pkgFlag,
		data:    data,
		timeout: *timeoutFlag,
		limit:   rate.Limit(*rateFlag),
		tokens:  tokens,
		stats:   newStats(),
	}

	logging.Info().
		Str("addr", run.addr).
		Int("connections", *connFlag).
		Float64("rate_per_conn", *rateFlag).
		Dur("duration", *durationFlag).
		Msg("load run starting")

	start := time.Now()
	var wg sync.WaitGroup
	for i := 0; i < *connFlag; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			run.connection(ctx, userFor(i, *usersFlag))
		}(i)
	}
	wg.Wait()

	run.stats.Report(os.Stdout, time.Since(start))
}

func splitRoles(s string) []string {
	var roles []string
	for _, r := range strings.Split(s, ",") {
		if r = strings.TrimSpace(r); r != "" {
			roles = append(roles, r)
		}
	}
	return roles
}

func userFor(i, users int) string {
	if users > 0 {
		i %= users
	}
	return fmt.Sprintf("loadgen-%04d", i)
}

// tokenSource returns a fixed token or mints one per user.
func tokenSource(fixed, secret string, roles []string) (func(user string) (string, error), error) {
	if fixed != "" {
		return func(string) (string, error) { return fixed, nil }, nil
	}
	if secret == "" {
		secret = os.Getenv("JWT_SECRET")
	}
	if secret == "" {
		return nil, fmt.Errorf("either -token or -secret (or JWT_SECRET) is required")
	}
	issuer := auth.TokenIssuer{Secret: secret}
	return func(user string) (string, error) {
		return issuer.Issue(user, roles, 24*time.Hour)
	}, nil
}

type runner struct {
	addr    string
	pkgID   int
	data    json.RawMessage
	timeout time.Duration
	limit   rate.Limit
	tokens  func(user string) (string, error)
	stats   *stats
}

// connection drives one client until ctx ends or the gateway closes it.
func (r *runner) connection(ctx context.Context, user string) {
	tok, err := r.tokens(user)
	if err != nil {
		r.stats.DialFailed()
		logging.Warn().Err(err).Str("user", user).Msg("token mint failed")
		return
	}
	c, err := client.Dial(ctx, r.addr, tok, nil,
		client.WithCallTimeout(r.timeout),
		client.WithBroadcastHandler(func(*client.Reply) { r.stats.Broadcast() }))
	if err != nil {
		r.stats.DialFailed()
		logging.Warn().Err(err).Str("user", user).Msg("dial failed")
		return
	}
	defer c.Close()
	r.stats.Connected()

	limiter := rate.NewLimiter(r.limit, 1)
	for {
		if err := limiter.Wait(ctx); err != nil {
			return
		}
		select {
		case <-c.Done():
			r.stats.Closed(c.CloseCode())
			logging.Debug().Str("user", user).Int("code", c.CloseCode()).Str("reason", c.CloseReason()).Msg("connection closed by gateway")
			return
		default:
		}

		began := time.Now()
		reply, err := c.Call(ctx, r.pkgID, r.data)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			r.stats.CallFailed(err)
			continue
		}
		r.stats.Reply(reply, time.Since(began))
	}
}
