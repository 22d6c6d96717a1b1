// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package stream decodes one streamed assistant reply into store actions.
//
// A Session tracks what a single reply has revealed so far: the confirmed
// thread id, whether the originating user message has been resolved, and the
// cumulative reply text. Decoder reads the body chunk by chunk, runs the tag
// extractor on each chunk and dispatches the resulting actions to a Sink in
// arrival order.
//
// # Chunk Boundaries
//
// A read may end in the middle of a UTF-8 sequence or a tag block. Both are
// carried over and prepended to the next read, so the decoded result does not
// depend on where the transport cut the stream. Anything still carried at EOF
// is decoded as a final fragment.
//
// # Key Types
//
//   - Session: per-reply progress, owned by the caller for one request
//   - Decoder: the read loop
//   - Sink: where actions and selection changes go (the controller)
//
// # Usage
//
//	sess := stream.NewSession(threadID, title)
//	err := stream.NewDecoder(log).Decode(ctx, resp.Body, sess, controller)
package stream
