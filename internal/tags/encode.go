// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package tags

import (
	"strconv"
	"strings"

	"github.com/jeranaias/threadline/internal/model"
)

// Block renders a single [[name=value]] block.
func Block(n Name, value string) string {
	return blockOpen + string(n) + "=" + value + blockClose
}

// Frame describes one streamed reply in wire order. Zero values are omitted.
type Frame struct {
	ThreadID             model.ThreadID
	UserMessageID        model.MessageID
	UserMessageCreatedAt string
	Role                 model.Role
	Content              string
	AIMessageID          model.MessageID
	AIMessageCreatedAt   string
}

// Header returns the prefix blocks of f.
func (f Frame) Header() string {
	var b strings.Builder
	if f.ThreadID != model.NoThread {
		b.WriteString(Block(ThreadID, strconv.FormatInt(int64(f.ThreadID), 10)))
	}
	if f.UserMessageID != model.NoMessageID {
		b.WriteString(Block(UserMessageID, strconv.FormatInt(int64(f.UserMessageID), 10)))
	}
	if f.UserMessageCreatedAt != "" {
		b.WriteString(Block(UserMessageCreatedAt, f.UserMessageCreatedAt))
	}
	if f.Role != "" {
		b.WriteString(Block(Role, string(f.Role)))
	}
	return b.String()
}

// Trailer returns the closing blocks of f.
func (f Frame) Trailer() string {
	var b strings.Builder
	if f.AIMessageID != model.NoMessageID {
		b.WriteString(Block(AIMessageID, strconv.FormatInt(int64(f.AIMessageID), 10)))
	}
	if f.AIMessageCreatedAt != "" {
		b.WriteString(Block(AIMessageCreatedAt, f.AIMessageCreatedAt))
	}
	return b.String()
}

// Encode returns the whole reply as one string.
func (f Frame) Encode() string {
	return f.Header() + f.Content + f.Trailer()
}
