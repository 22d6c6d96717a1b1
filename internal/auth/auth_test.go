// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package auth

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"golang.org/x/oauth2"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

var gateNow = time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

func signedJWT(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	require.NoError(t, err)
	return s
}

// mutableSource lets a test swap the token under a gate.
type mutableSource struct {
	mu  sync.Mutex
	tok *oauth2.Token
}

func (s *mutableSource) Token() (*oauth2.Token, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tok, nil
}

func (s *mutableSource) set(tok *oauth2.Token) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tok = tok
}

// =============================================================================
// GATE TESTS
// =============================================================================

func TestGate_Expired(t *testing.T) {
	tests := []struct {
		name  string
		token func(t *testing.T) *oauth2.Token
		want  bool
	}{
		{
			name:  "opaque token",
			token: func(t *testing.T) *oauth2.Token { return &oauth2.Token{AccessToken: "opaque-token"} },
			want:  false,
		},
		{
			name: "jwt valid",
			token: func(t *testing.T) *oauth2.Token {
				return &oauth2.Token{AccessToken: signedJWT(t, jwt.MapClaims{"exp": gateNow.Add(time.Hour).Unix()})}
			},
			want: false,
		},
		{
			name: "jwt expired",
			token: func(t *testing.T) *oauth2.Token {
				return &oauth2.Token{AccessToken: signedJWT(t, jwt.MapClaims{"exp": gateNow.Add(-time.Minute).Unix()})}
			},
			want: true,
		},
		{
			name: "jwt without exp",
			token: func(t *testing.T) *oauth2.Token {
				return &oauth2.Token{AccessToken: signedJWT(t, jwt.MapClaims{"sub": "user-1"})}
			},
			want: false,
		},
		{
			name: "token source expiry passed",
			token: func(t *testing.T) *oauth2.Token {
				return &oauth2.Token{AccessToken: "opaque", Expiry: gateNow.Add(-time.Second)}
			},
			want: true,
		},
		{
			name:  "empty token",
			token: func(t *testing.T) *oauth2.Token { return &oauth2.Token{} },
			want:  true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := NewGate(oauth2.StaticTokenSource(tt.token(t)), WithClock(func() time.Time { return gateNow }))
			assert.Equal(t, tt.want, g.Expired())
		})
	}
}

func TestGate_OnExpiredFiresOncePerTransition(t *testing.T) {
	src := &mutableSource{}
	src.set(&oauth2.Token{AccessToken: signedJWT(t, jwt.MapClaims{"exp": gateNow.Add(-time.Minute).Unix()})})

	calls := 0
	g := NewGate(src, WithClock(func() time.Time { return gateNow }), WithOnExpired(func() { calls++ }))

	assert.True(t, g.Expired())
	assert.True(t, g.Expired())
	assert.Equal(t, 1, calls)

	src.set(&oauth2.Token{AccessToken: signedJWT(t, jwt.MapClaims{"exp": gateNow.Add(time.Hour).Unix()})})
	assert.False(t, g.Expired())

	src.set(&oauth2.Token{AccessToken: ""})
	assert.True(t, g.Expired())
	assert.Equal(t, 2, calls)
}

func TestGate_Token(t *testing.T) {
	tok, err := NewStaticGate("  abc  ").Token()
	require.NoError(t, err)
	assert.Equal(t, "abc", tok)

	_, err = NewStaticGate("").Token()
	assert.ErrorIs(t, err, ErrNoCredential)
}

func TestFingerprint(t *testing.T) {
	assert.Equal(t, "none", Fingerprint(""))
	fp := Fingerprint("secret-token")
	assert.Len(t, fp, 8)
	assert.NotContains(t, fp, "secret")
	assert.Equal(t, fp, Fingerprint("secret-token"))
}

// =============================================================================
// FILE TOKEN SOURCE TESTS
// =============================================================================

func TestFileTokenSource_Reads(t *testing.T) {
	path := filepath.Join(t.TempDir(), "token")
	require.NoError(t, os.WriteFile(path, []byte("first-token\n"), 0600))

	src, err := NewFileTokenSource(path, false, nil)
	require.NoError(t, err)
	defer src.Close()

	tok, err := src.Token()
	require.NoError(t, err)
	assert.Equal(t, "first-token", tok.AccessToken)
}

func TestFileTokenSource_MissingFile(t *testing.T) {
	_, err := NewFileTokenSource(filepath.Join(t.TempDir(), "absent"), false, nil)
	assert.Error(t, err)
}

func TestFileTokenSource_ReloadsOnChange(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "token")
	require.NoError(t, os.WriteFile(path, []byte("first-token"), 0600))

	src, err := NewFileTokenSource(path, true, nil)
	require.NoError(t, err)
	defer src.Close()

	// Replace by rename, the way login helpers write it.
	tmp := filepath.Join(dir, "token.new")
	require.NoError(t, os.WriteFile(tmp, []byte("second-token"), 0600))
	require.NoError(t, os.Rename(tmp, path))

	require.Eventually(t, func() bool {
		tok, err := src.Token()
		return err == nil && tok.AccessToken == "second-token"
	}, 5*time.Second, 20*time.Millisecond)
}

func TestFileTokenSource_FeedsGate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "token")
	require.NoError(t, os.WriteFile(path, []byte(""), 0600))

	src, err := NewFileTokenSource(path, false, nil)
	require.NoError(t, err)

	g := NewGate(src)
	assert.True(t, g.Expired(), "empty token file means no credential")
}
