// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package controller runs the request lifecycle of threadline.
//
// The Controller issues backend calls, attaches the stream decoder to reply
// bodies and dispatches everything into the store. It owns the selected
// thread and the list-level loading and error flags; thread state lives in
// the store.
//
// Failures never escape as errors. They become the failing thread's error
// field (or the list error for ListThreads) with a fixed user-facing message.
// The one exception is a successful reply without a body, reported as
// ErrMissingStream.
//
// # Key Types
//
//   - Controller: Operations on threads, and the stream.Sink for replies
//   - Backend: The backend calls the Controller needs (api.Client)
//   - PostOptions: Title and plugin for a posted message
//
// # Usage
//
//	gate := auth.NewStaticGate(token, auth.WithOnExpired(promptLogin))
//	ctrl := controller.New(api.NewClient(baseURL, gate), gate)
//
//	ctrl.ListThreads(ctx)
//	id := ctrl.CreateThread()
//	if err := ctrl.PostMessage(ctx, id, "find a desk for tomorrow", controller.PostOptions{}); err != nil {
//	    return err
//	}
package controller
