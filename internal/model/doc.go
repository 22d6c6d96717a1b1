// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package model contains the data structures for threads and messages.
//
// Values in this package are plain data. They are owned by the conversation
// store and copied on every change, so a Thread handed to a reader is never
// mutated afterwards.
//
// # Key Types
//
//   - Thread: one conversation, with its messages and transient request flags
//   - Message: a single message with role, content and back-filled metadata
//   - Role: user, assistant or notAttributed (not yet known)
//   - ThreadID, MessageID: numeric identifiers; negative values are provisional
//
// # Identifiers
//
// Server identifiers are positive. Threads created locally carry a negative
// provisional identifier until the backend confirms one, so the two ranges can
// never collide. MessageID zero means "not yet assigned".
//
// # Usage
//
//	t := model.NewProvisionalThread()
//	t.Title = model.AutoTitle("find a desk for tomorrow")
//	label := model.FormatTimestamp("2024-01-01T10:00:00Z", time.Now())
package model
