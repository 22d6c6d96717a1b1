// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package tags implements the metadata tag grammar embedded in streamed
// assistant replies.
//
// The backend interleaves out-of-band metadata with reply text as
// self-delimited blocks of the form [[name=value]]. A reply typically opens
// with a header of blocks, then carries plain text, then closes with a
// trailer:
//
//	[[threadId=42]][[userMessageId=7]][[role=assistant]]Sure, checking...[[aiMessageId=8]][[aiMessageCreatedAt=2024-01-01T10:00:00Z]]
//
// # Grammar
//
//   - threadId is recognized only as a prefix, and only until the caller
//     reports it resolved.
//   - userMessageId, userMessageCreatedAt, role and aiMessageId are tried in
//     that fixed order, each as a prefix of what remains.
//   - aiMessageCreatedAt is recognized only as a suffix, after everything else.
//   - aiMessageId that was not a prefix is also accepted at the end of the
//     remainder, directly before the timestamp suffix (the trailer).
//   - Anything else, including well-formed blocks in the middle of the text or
//     blocks in an unexpected order, is literal content.
//
// A block whose numeric value does not parse is treated as absent and stays
// in the content. A role block is always consumed; an unknown role value is
// reported as unattributed.
//
// # Key Types
//
//   - Extraction: fields found in one fragment plus the leftover content
//   - Frame: the inverse, used to encode a reply
//
// # Usage
//
//	ex := tags.Extract(chunk, threadResolved)
//	if ex.HasThreadID {
//	    ...
//	}
package tags
