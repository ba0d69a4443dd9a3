// Switchboard - Multiplexed WebSocket and HTTP API Gateway
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/switchboard

package auth

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

// stubVerifier returns err when set, otherwise an identity with tokenID.
type stubVerifier struct {
	err     error
	tokenID string
	calls   atomic.Int32
}

func (s *stubVerifier) Verify(context.Context, string) (*Identity, error) {
	s.calls.Add(1)
	if s.err != nil {
		return nil, s.err
	}
	id := NewIdentity("u1", "", []string{"user"}, time.Now().Add(time.Hour))
	id.TokenID = s.tokenID
	return id, nil
}

func (s *stubVerifier) Name() string { return "stub" }

type failingRevocations struct{}

func (failingRevocations) IsRevoked(context.Context, string) (bool, error) {
	return false, errors.New("connection refused")
}
func (failingRevocations) Revoke(context.Context, string) error { return nil }

func testBreaker(v Verifier, rl RevocationList) *BreakerValidator {
	return NewBreakerValidator(v, rl, BreakerConfig{
		Name:                "test_" + time.Now().Format("150405.000000000"),
		MaxRequests:         1,
		Timeout:             time.Hour,
		ConsecutiveFailures: 3,
	})
}

func TestBreakerValidator_OpensOnUnavailable(t *testing.T) {
	stub := &stubVerifier{err: newAuthError(ReasonUnavailable, errors.New("idp down"))}
	b := testBreaker(stub, nil)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := b.Validate(ctx, "tok"); !errors.Is(err, ErrUnavailable) {
			t.Fatalf("call %d: err = %v", i, err)
		}
	}
	if b.State() != "open" {
		t.Fatalf("State() = %s, want open", b.State())
	}

	// open breaker fails fast without calling the verifier
	before := stub.calls.Load()
	_, err := b.Validate(ctx, "tok")
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("err = %v, want introspection_unavailable", err)
	}
	if stub.calls.Load() != before {
		t.Error("verifier called while breaker open")
	}
}

func TestBreakerValidator_CredentialFailuresDoNotTrip(t *testing.T) {
	stub := &stubVerifier{err: newAuthError(ReasonMalformed, errors.New("bad signature"))}
	b := testBreaker(stub, nil)

	for i := 0; i < 20; i++ {
		_, err := b.Validate(context.Background(), "tok")
		if !errors.Is(err, ErrMalformed) {
			t.Fatalf("err = %v, want malformed", err)
		}
	}
	if b.State() != "closed" {
		t.Errorf("State() = %s, want closed", b.State())
	}
}

func TestBreakerValidator_EmptyToken(t *testing.T) {
	stub := &stubVerifier{}
	b := testBreaker(stub, nil)
	if _, err := b.Validate(context.Background(), ""); !errors.Is(err, ErrMalformed) {
		t.Fatalf("err = %v, want malformed", err)
	}
	if stub.calls.Load() != 0 {
		t.Error("verifier should not run for an empty token")
	}
}

func TestBreakerValidator_Revocation(t *testing.T) {
	ctx := context.Background()
	rl := NewMemoryRevocationList()
	b := testBreaker(&stubVerifier{tokenID: "jti-1"}, rl)

	if _, err := b.Validate(ctx, "tok"); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	if err := b.Revocations().Revoke(ctx, "jti-1"); err != nil {
		t.Fatal(err)
	}
	if _, err := b.Validate(ctx, "tok"); !errors.Is(err, ErrRevoked) {
		t.Fatalf("err = %v, want revoked", err)
	}
}

func TestBreakerValidator_RevocationStoreDown(t *testing.T) {
	b := testBreaker(&stubVerifier{tokenID: "jti-1"}, failingRevocations{})
	for i := 0; i < 3; i++ {
		if _, err := b.Validate(context.Background(), "tok"); !errors.Is(err, ErrUnavailable) {
			t.Fatalf("err = %v, want introspection_unavailable", err)
		}
	}
	if b.State() != "open" {
		t.Errorf("revocation store failures should count against the breaker, state = %s", b.State())
	}
}

func TestRedisRevocationList(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer func() { _ = client.Close() }()

	rl := NewRedisRevocationList(client, "")
	ctx := context.Background()

	revoked, err := rl.IsRevoked(ctx, "jti-9")
	if err != nil || revoked {
		t.Fatalf("IsRevoked() = %v, %v; want false, nil", revoked, err)
	}
	if err := rl.Revoke(ctx, "jti-9"); err != nil {
		t.Fatal(err)
	}
	if ok, _ := mr.SIsMember("switchboard:revoked", "jti-9"); !ok {
		t.Error("jti not stored in the redis set")
	}
	if revoked, _ := rl.IsRevoked(ctx, "jti-9"); !revoked {
		t.Error("IsRevoked() = false after Revoke")
	}

	mr.Close()
	if _, err := rl.IsRevoked(ctx, "jti-9"); err == nil {
		t.Error("expected an error once redis is gone")
	}
}
