// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package stream

import (
	"strings"

	"github.com/google/uuid"

	"github.com/jeranaias/threadline/internal/model"
)

// Session is the decoding state of one in-flight reply.
type Session struct {
	// ID correlates log lines of one reply.
	ID string

	// ProvisionalID is the id the thread had when the request was sent. For
	// an existing thread it is simply that thread's id.
	ProvisionalID model.ThreadID

	// Title is the title sent with the request.
	Title string

	threadID           model.ThreadID
	userIDKnown        bool
	userCreatedAtKnown bool
	content            strings.Builder
	chunks             int
}

// NewSession starts decoding state for a reply to the given thread.
func NewSession(provisional model.ThreadID, title string) *Session {
	return &Session{
		ID:            uuid.New().String(),
		ProvisionalID: provisional,
		Title:         title,
	}
}

// ThreadID returns the confirmed thread id, or NoThread.
func (s *Session) ThreadID() model.ThreadID {
	return s.threadID
}

// TargetID returns the id the thread is known by right now.
func (s *Session) TargetID() model.ThreadID {
	if s.threadID != model.NoThread {
		return s.threadID
	}
	return s.ProvisionalID
}

// Content returns the reply text decoded so far.
func (s *Session) Content() string {
	return s.content.String()
}

// Chunks returns how many fragments have been decoded.
func (s *Session) Chunks() int {
	return s.chunks
}

func (s *Session) userResolved() bool {
	return s.userIDKnown && s.userCreatedAtKnown
}
