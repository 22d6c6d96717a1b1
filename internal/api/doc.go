// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package api is the HTTP client for the thread backend.
//
// Every request passes the authorization gate first. An expired credential
// aborts with ErrCredentialExpired before anything is sent. Requests carry a
// bearer token and an X-Request-ID, and they share one rate limiter.
// Idempotent calls (list, rename, delete) are retried with exponential
// backoff on 5xx responses and network errors. Posting a message is never
// retried because its reply is streamed.
//
// # Endpoints
//
//	GET    {base}api/thread/               list threads
//	POST   {base}api/thread/               create thread {title, message, plugin}
//	POST   {base}api/thread/{id}/messages  append message {text}
//	PATCH  {base}api/thread/{id}/          rename {title}
//	DELETE {base}api/thread/{id}/          delete
//
// Create and append answer with either a tag-encoded text stream or a JSON
// document. Reply carries whichever arrived.
//
// # Key Types
//
//   - Client: the backend client
//   - FetchError: a non-2xx response (URL, status, status text, message)
//   - ThreadDTO, MessageDTO: wire shapes, convertible to model types
//   - Reply: streamed body or decoded JSON from create/append
//
// # Usage
//
//	c := api.NewClient(cfg.API.BaseURL, gate).WithLogger(log)
//	threads, err := c.ListThreads(ctx)
//	reply, err := c.PostMessage(ctx, 42, "hello")
//	defer reply.Close()
package api
