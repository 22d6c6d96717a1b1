// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// json_output.go - JSON output support for scripting.
//
// Every command run with --json writes exactly one JSONResponse to stdout.
// Human-readable progress goes to stderr in that mode.

package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/jeranaias/threadline/internal/model"
)

// JSONResponse is the response envelope of every command.
type JSONResponse struct {
	// Success indicates whether the command completed successfully
	Success bool `json:"success"`

	// Data contains the command-specific response data
	Data any `json:"data"`

	// Error contains the error message if Success is false, null otherwise
	Error *string `json:"error"`

	// Timestamp is when the response was generated (RFC 3339, UTC)
	Timestamp string `json:"timestamp"`

	// Command is the command that was executed
	Command string `json:"command,omitempty"`
}

// NewJSONResponse creates a new successful JSON response.
func NewJSONResponse(command string, data any) *JSONResponse {
	return &JSONResponse{
		Success:   true,
		Data:      data,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Command:   command,
	}
}

// NewJSONErrorResponse creates a new error JSON response.
func NewJSONErrorResponse(command string, err error) *JSONResponse {
	errStr := err.Error()
	return &JSONResponse{
		Success:   false,
		Error:     &errStr,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Command:   command,
	}
}

// Write outputs the response as indented JSON.
func (r *JSONResponse) Write(w io.Writer) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(r); err != nil {
		_, werr := fmt.Fprintln(w, errorJSON(err))
		if werr != nil {
			return werr
		}
		return err
	}
	return nil
}

// =============================================================================
// COMMAND-SPECIFIC DATA STRUCTURES
// =============================================================================

// ThreadSummary is one row of the list command.
type ThreadSummary struct {
	ID       model.ThreadID `json:"id"`
	Title    string         `json:"title"`
	Plugin   string         `json:"plugin,omitempty"`
	Messages int            `json:"messages"`
	Updated  string         `json:"updated,omitempty"`
}

// SendResult is the data of the send command.
type SendResult struct {
	ThreadID  model.ThreadID  `json:"thread_id"`
	MessageID model.MessageID `json:"message_id,omitempty"`
	Reply     string          `json:"reply"`
}

// summarize builds the list row of t.
func summarize(t model.Thread) ThreadSummary {
	s := ThreadSummary{
		ID:       t.ID,
		Title:    t.DisplayTitle(),
		Plugin:   t.Plugin,
		Messages: len(t.Messages),
	}
	if last, ok := t.LastMessage(); ok {
		s.Updated = last.RawCreatedAt
	}
	return s
}
