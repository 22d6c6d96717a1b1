// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/jeranaias/threadline/internal/util"
)

// AutoTitleRunes is the length of a title derived from the first message.
const AutoTitleRunes = 20

// UntitledLabel is shown for threads without a title.
const UntitledLabel = "New chat"

// =============================================================================
// THREAD TYPE
// =============================================================================

// Thread is one conversation with the assistant.
type Thread struct {
	ID       ThreadID  `json:"id"`
	Title    string    `json:"title,omitempty"`
	Messages []Message `json:"messages"`
	Plugin   string    `json:"plugin,omitempty"`

	// IsNew is set while the thread exists only locally.
	IsNew bool `json:"-"`

	// Request state, never persisted.
	Loading       bool   `json:"-"`
	AwaitingReply bool   `json:"-"`
	Error         string `json:"-"`
}

// NewProvisionalThread returns an empty, unsaved thread with a fresh
// provisional id.
func NewProvisionalThread() Thread {
	return Thread{
		ID:       NewProvisionalID(),
		IsNew:    true,
		Messages: []Message{},
	}
}

// Clone returns a copy of t that shares no message storage with t.
func (t Thread) Clone() Thread {
	c := t
	c.Messages = make([]Message, len(t.Messages))
	copy(c.Messages, t.Messages)
	return c
}

// DisplayTitle returns the title or a placeholder.
func (t Thread) DisplayTitle() string {
	if strings.TrimSpace(t.Title) == "" {
		return UntitledLabel
	}
	return t.Title
}

// LastMessage returns the final message, if any.
func (t Thread) LastMessage() (Message, bool) {
	if len(t.Messages) == 0 {
		return Message{}, false
	}
	return t.Messages[len(t.Messages)-1], true
}

// LastIndexOf returns the index of the most recent message with the given
// role, or -1.
func (t Thread) LastIndexOf(role Role) int {
	for i := len(t.Messages) - 1; i >= 0; i-- {
		if t.Messages[i].Role == role {
			return i
		}
	}
	return -1
}

// Preview returns the last message content on one line, for lists.
func (t Thread) Preview() string {
	last, ok := t.LastMessage()
	if !ok {
		return ""
	}
	return util.SingleLine(last.Content)
}

// AutoTitle derives a thread title from the first message: the first
// AutoTitleRunes runes of the NFC-normalized, trimmed text.
func AutoTitle(message string) string {
	s := norm.NFC.String(strings.TrimSpace(message))
	return strings.TrimSpace(util.FirstRunes(s, AutoTitleRunes))
}
