// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package api

import (
	"encoding/json"
	"io"

	"github.com/jeranaias/threadline/internal/model"
)

// MessageData is the payload of a wire message.
type MessageData struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// MessageDTO is a message as the backend sends it.
type MessageDTO struct {
	ID        int64       `json:"id"`
	Data      MessageData `json:"data"`
	CreatedAt string      `json:"createdAt,omitempty"`
}

// ThreadDTO is a thread as the backend sends it.
type ThreadDTO struct {
	ID       int64        `json:"id"`
	Title    string       `json:"title,omitempty"`
	Messages []MessageDTO `json:"messages"`
	Plugin   string       `json:"plugin,omitempty"`
}

// UnmarshalJSON accepts the list form {id, data:{role, content}, createdAt}
// and the bare {role, content} form that non-streamed replies carry.
func (m *MessageDTO) UnmarshalJSON(b []byte) error {
	var raw struct {
		ID        int64        `json:"id"`
		Data      *MessageData `json:"data"`
		Role      string       `json:"role"`
		Content   string       `json:"content"`
		CreatedAt string       `json:"createdAt"`
	}
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	*m = MessageDTO{ID: raw.ID, CreatedAt: raw.CreatedAt}
	if raw.Data != nil {
		m.Data = *raw.Data
	} else {
		m.Data = MessageData{Role: raw.Role, Content: raw.Content}
	}
	return nil
}

// ToModel converts m. Unknown roles become RoleUnattributed.
func (m MessageDTO) ToModel() model.Message {
	role, ok := model.ParseRole(m.Data.Role)
	if !ok {
		role = model.RoleUnattributed
	}
	return model.Message{
		ID:           model.MessageID(m.ID),
		Role:         role,
		Content:      m.Data.Content,
		RawCreatedAt: m.CreatedAt,
	}
}

// ToModel converts t.
func (t ThreadDTO) ToModel() model.Thread {
	msgs := make([]model.Message, 0, len(t.Messages))
	for _, m := range t.Messages {
		msgs = append(msgs, m.ToModel())
	}
	return model.Thread{
		ID:       model.ThreadID(t.ID),
		Title:    t.Title,
		Messages: msgs,
		Plugin:   t.Plugin,
	}
}

// ThreadsToModel converts a list response.
func ThreadsToModel(dtos []ThreadDTO) []model.Thread {
	out := make([]model.Thread, 0, len(dtos))
	for _, d := range dtos {
		out = append(out, d.ToModel())
	}
	return out
}

// FromModel builds the wire form of a thread, used by export and tests.
func FromModel(t model.Thread) ThreadDTO {
	dto := ThreadDTO{ID: int64(t.ID), Title: t.Title, Plugin: t.Plugin, Messages: make([]MessageDTO, 0, len(t.Messages))}
	for _, m := range t.Messages {
		dto.Messages = append(dto.Messages, MessageDTO{
			ID:        int64(m.ID),
			Data:      MessageData{Role: string(m.Role), Content: m.Content},
			CreatedAt: m.RawCreatedAt,
		})
	}
	return dto
}

// CreateThreadRequest is the body of a create call.
type CreateThreadRequest struct {
	Title   string `json:"title"`
	Message string `json:"message"`
	Plugin  string `json:"plugin,omitempty"`
}

type postMessageRequest struct {
	Text string `json:"text"`
}

type renameRequest struct {
	Title string `json:"title"`
}

// errorBody is the backend's error document.
type errorBody struct {
	Error  string `json:"error"`
	Status int    `json:"status"`
}

// Reply is the answer to a create or append call. Exactly one of Body,
// Thread and Message is set, or none when the backend sent nothing.
type Reply struct {
	// Body is the tag-encoded stream. The caller must Close the Reply.
	Body io.ReadCloser

	// Thread is set when a create answered with a JSON thread.
	Thread *ThreadDTO

	// Message is set when an append answered with a JSON message.
	Message *MessageDTO
}

// Empty reports whether the backend sent no usable content.
func (r *Reply) Empty() bool {
	return r == nil || (r.Body == nil && r.Thread == nil && r.Message == nil)
}

// Close releases the stream, if any.
func (r *Reply) Close() error {
	if r == nil || r.Body == nil {
		return nil
	}
	return r.Body.Close()
}
