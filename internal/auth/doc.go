// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package auth supplies the bearer credential and the expiry gate every
// outbound request passes through.
//
// Signing in and refreshing tokens happen elsewhere. This package only reads
// a credential through an oauth2.TokenSource and decides whether it is still
// usable. A credential is expired when the token source reports an expiry in
// the past, or when the token is a JWT whose exp claim has passed. Opaque
// tokens without an expiry never expire here.
//
// # Key Types
//
//   - Gate: answers Expired() and Token(), and fires OnExpired on the
//     transition from valid to expired
//   - FileTokenSource: reads the token from a file and reloads it when the
//     file changes, so an external login helper can rotate it
//
// # Usage
//
//	gate := auth.NewStaticGate(cfg.Auth.Token, auth.WithOnExpired(func() {
//	    fmt.Println("session expired, sign in again")
//	}))
//	if gate.Expired() {
//	    return
//	}
//	token, err := gate.Token()
//
// # Security
//
// Tokens are never logged. JWT signatures are not verified here; the backend
// does that. The client only reads exp to avoid sending a dead credential.
package auth
