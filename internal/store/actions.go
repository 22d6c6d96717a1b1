// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package store

import "github.com/jeranaias/threadline/internal/model"

// Action is one state transition. The set is closed; see the types below.
type Action interface {
	// Kind names the transition for logs.
	Kind() string
	sealed()
}

// SetThreads replaces every confirmed thread with a freshly fetched list.
// Unsaved threads are kept in front.
type SetThreads struct {
	Threads []model.Thread
}

// SetLoading marks a thread busy and clears its error.
type SetLoading struct {
	ID model.ThreadID
}

// SetError records a failure on a thread and clears its busy flags.
type SetError struct {
	ID      model.ThreadID
	Message string
}

// AddThread appends a thread.
type AddThread struct {
	Thread model.Thread
}

// DeleteThread removes a thread.
type DeleteThread struct {
	ID model.ThreadID
}

// SetThreadTitle renames a thread.
type SetThreadTitle struct {
	ID    model.ThreadID
	Title string
}

// AddChatMessageRequest appends an outgoing message optimistically.
type AddChatMessageRequest struct {
	ThreadID  model.ThreadID
	Role      model.Role // RoleUser when empty
	Content   string
	MessageID model.MessageID
	CreatedAt string
}

// ResolveUserMessage back-fills the last user message of a thread with its
// server id and timestamp, and confirms the thread id.
type ResolveUserMessage struct {
	ProvisionalID model.ThreadID
	ThreadID      model.ThreadID // NoThread while unknown
	Title         string
	MessageID     model.MessageID // NoMessageID while unknown
	CreatedAt     string
}

// ResolveAssistantMessage creates or updates the reply placeholder at the end
// of a thread. Content is the cumulative reply so far.
type ResolveAssistantMessage struct {
	ProvisionalID model.ThreadID
	ThreadID      model.ThreadID
	Role          model.Role
	MessageID     model.MessageID
	CreatedAt     string
	Content       string
}

// ReplaceThread swaps a provisional thread for the server's copy.
type ReplaceThread struct {
	ProvisionalID model.ThreadID
	Thread        model.Thread
}

// SetPlugin records the plugin a thread talks to.
type SetPlugin struct {
	ID     model.ThreadID
	Plugin string
}

func (SetThreads) Kind() string              { return "SET_THREADS" }
func (SetLoading) Kind() string              { return "SET_LOADING" }
func (SetError) Kind() string                { return "SET_ERROR" }
func (AddThread) Kind() string               { return "ADD_THREAD" }
func (DeleteThread) Kind() string            { return "DELETE_THREAD" }
func (SetThreadTitle) Kind() string          { return "SET_THREAD_TITLE" }
func (AddChatMessageRequest) Kind() string   { return "ADD_CHAT_MESSAGE_REQUEST" }
func (ResolveUserMessage) Kind() string      { return "SET_USER_REQUEST" }
func (ResolveAssistantMessage) Kind() string { return "SET_AI_RESPONSE" }
func (ReplaceThread) Kind() string           { return "REPLACE_THREAD" }
func (SetPlugin) Kind() string               { return "SET_PLUGIN" }

func (SetThreads) sealed()              {}
func (SetLoading) sealed()              {}
func (SetError) sealed()                {}
func (AddThread) sealed()               {}
func (DeleteThread) sealed()            {}
func (SetThreadTitle) sealed()          {}
func (AddChatMessageRequest) sealed()   {}
func (ResolveUserMessage) sealed()      {}
func (ResolveAssistantMessage) sealed() {}
func (ReplaceThread) sealed()           {}
func (SetPlugin) sealed()               {}
