// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package auth

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
)

// ErrNoCredential indicates the token source has no token to offer.
var ErrNoCredential = errors.New("no credential configured")

// Gate decides whether the current credential may be used.
type Gate struct {
	source    oauth2.TokenSource
	now       func() time.Time
	onExpired func()
	log       *zap.Logger

	mu      sync.Mutex
	expired bool
}

// GateOption configures a Gate.
type GateOption func(*Gate)

// WithOnExpired registers a hook run once each time the credential turns
// expired. It runs on the caller's goroutine without locks held.
func WithOnExpired(fn func()) GateOption {
	return func(g *Gate) { g.onExpired = fn }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) GateOption {
	return func(g *Gate) { g.now = now }
}

// WithLogger sets the logger.
func WithLogger(log *zap.Logger) GateOption {
	return func(g *Gate) { g.log = log.Named("auth") }
}

// NewGate creates a gate over src.
func NewGate(src oauth2.TokenSource, opts ...GateOption) *Gate {
	g := &Gate{
		source: src,
		now:    time.Now,
		log:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// NewStaticGate creates a gate over a fixed bearer token.
func NewStaticGate(token string, opts ...GateOption) *Gate {
	src := oauth2.StaticTokenSource(&oauth2.Token{
		AccessToken: strings.TrimSpace(token),
		TokenType:   "Bearer",
	})
	return NewGate(src, opts...)
}

// Token returns the bearer credential.
func (g *Gate) Token() (string, error) {
	tok, err := g.source.Token()
	if err != nil {
		return "", fmt.Errorf("read credential: %w", err)
	}
	if tok == nil || tok.AccessToken == "" {
		return "", ErrNoCredential
	}
	return tok.AccessToken, nil
}

// Expired reports whether the credential must not be used. A missing
// credential counts as expired.
func (g *Gate) Expired() bool {
	expired, reason := g.check()

	g.mu.Lock()
	transition := expired && !g.expired
	g.expired = expired
	g.mu.Unlock()

	if transition {
		g.log.Info("credential expired", zap.String("reason", reason))
		if g.onExpired != nil {
			g.onExpired()
		}
	}
	return expired
}

func (g *Gate) check() (bool, string) {
	tok, err := g.source.Token()
	if err != nil {
		return true, "token source: " + err.Error()
	}
	if tok == nil || tok.AccessToken == "" {
		return true, "no credential"
	}

	now := g.now()
	if !tok.Expiry.IsZero() && !now.Before(tok.Expiry) {
		return true, "token expiry passed"
	}
	if exp, ok := jwtExpiry(tok.AccessToken); ok && !now.Before(exp) {
		return true, "jwt exp passed"
	}
	return false, ""
}

// jwtExpiry reads the exp claim of an unverified JWT. Opaque tokens and
// tokens without exp report false.
func jwtExpiry(token string) (time.Time, bool) {
	if strings.Count(token, ".") != 2 {
		return time.Time{}, false
	}
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return time.Time{}, false
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}, false
	}
	return exp.Time, true
}

// Fingerprint returns a short, non-reversible identifier of a token for
// logs.
func Fingerprint(token string) string {
	if token == "" {
		return "none"
	}
	h := sha256.Sum256([]byte(token))
	return hex.EncodeToString(h[:4])
}
