// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package tags

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/jeranaias/threadline/internal/model"
)

const deskReply = "[[threadId=42]][[userMessageId=7]][[role=assistant]]Sure, checking...[[aiMessageId=8]][[aiMessageCreatedAt=2024-01-01T10:00:00Z]]"

// =============================================================================
// EXTRACT TESTS
// =============================================================================

func TestExtract(t *testing.T) {
	tests := []struct {
		name     string
		fragment string
		resolved bool
		want     Extraction
	}{
		{
			name:     "full reply in one fragment",
			fragment: deskReply,
			want: Extraction{
				ThreadID: 42, HasThreadID: true,
				UserMessageID: 7, HasUserMessageID: true,
				Role: model.RoleAssistant, HasRole: true,
				AIMessageID: 8, HasAIMessageID: true,
				AIMessageCreatedAt: "2024-01-01T10:00:00Z",
				Content:            "Sure, checking...", HasContent: true,
			},
		},
		{
			name:     "header only",
			fragment: "[[threadId=42]][[userMessageId=7]][[userMessageCreatedAt=2024-01-01T09:59:58Z]][[role=assistant]]",
			want: Extraction{
				ThreadID: 42, HasThreadID: true,
				UserMessageID: 7, HasUserMessageID: true,
				UserMessageCreatedAt: "2024-01-01T09:59:58Z",
				Role:                 model.RoleAssistant, HasRole: true,
			},
		},
		{
			name:     "plain content",
			fragment: "Hello there",
			want:     Extraction{Content: "Hello there", HasContent: true},
		},
		{
			name:     "empty fragment",
			fragment: "",
			want:     Extraction{},
		},
		{
			name:     "thread id ignored once resolved",
			fragment: "[[threadId=99]]more",
			resolved: true,
			want:     Extraction{Content: "[[threadId=99]]more", HasContent: true},
		},
		{
			name:     "thread id then content",
			fragment: "[[threadId=42]]Hi",
			want:     Extraction{ThreadID: 42, HasThreadID: true, Content: "Hi", HasContent: true},
		},
		{
			name:     "ai message id as prefix",
			fragment: "[[aiMessageId=8]][[aiMessageCreatedAt=2024-01-01T10:00:00Z]]",
			want: Extraction{
				AIMessageID: 8, HasAIMessageID: true,
				AIMessageCreatedAt: "2024-01-01T10:00:00Z",
			},
		},
		{
			name:     "timestamp suffix after content",
			fragment: "done.[[aiMessageCreatedAt=2024-01-01T10:00:00Z]]",
			want: Extraction{
				AIMessageCreatedAt: "2024-01-01T10:00:00Z",
				Content:            "done.", HasContent: true,
			},
		},
		{
			name:     "mid-content block is literal",
			fragment: "see [[role=user]] here",
			want:     Extraction{Content: "see [[role=user]] here", HasContent: true},
		},
		{
			name:     "unparseable thread id stays literal",
			fragment: "[[threadId=abc]]Hi",
			want:     Extraction{Content: "[[threadId=abc]]Hi", HasContent: true},
		},
		{
			name:     "zero id is not an id",
			fragment: "[[userMessageId=0]]",
			want:     Extraction{Content: "[[userMessageId=0]]", HasContent: true},
		},
		{
			name:     "unknown role is unattributed",
			fragment: "[[role=system]]Hi",
			want:     Extraction{Role: model.RoleUnattributed, HasRole: true, Content: "Hi", HasContent: true},
		},
		{
			name:     "unknown role does not block later header tags",
			fragment: "[[threadId=42]][[userMessageId=7]][[role=system]][[aiMessageId=8]]Hi[[aiMessageCreatedAt=2024-01-01T10:00:00Z]]",
			want: Extraction{
				ThreadID: 42, HasThreadID: true,
				UserMessageID: 7, HasUserMessageID: true,
				Role: model.RoleUnattributed, HasRole: true,
				AIMessageID: 8, HasAIMessageID: true,
				AIMessageCreatedAt: "2024-01-01T10:00:00Z",
				Content:            "Hi", HasContent: true,
			},
		},
		{
			name:     "unknown tag name stays literal",
			fragment: "[[model=gpt]]Hi",
			want:     Extraction{Content: "[[model=gpt]]Hi", HasContent: true},
		},
		{
			name:     "value may not contain a bracket",
			fragment: "[[role=assi]stant]]",
			want:     Extraction{Content: "[[role=assi]stant]]", HasContent: true},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Extract(tt.fragment, tt.resolved))
		})
	}
}

// The extraction order is fixed. A backend that emits tags in another order
// leaks the misordered block into the content; these cases pin that down.
func TestExtract_OrderIsFixed(t *testing.T) {
	tests := []struct {
		name        string
		fragment    string
		wantContent string
		check       func(t *testing.T, ex Extraction)
	}{
		{
			name:        "role before user message id",
			fragment:    "[[role=assistant]][[userMessageId=7]]Hi",
			wantContent: "[[userMessageId=7]]Hi",
			check: func(t *testing.T, ex Extraction) {
				assert.True(t, ex.HasRole)
				assert.False(t, ex.HasUserMessageID)
			},
		},
		{
			name:        "user message id before thread id",
			fragment:    "[[userMessageId=7]][[threadId=42]]Hi",
			wantContent: "[[threadId=42]]Hi",
			check: func(t *testing.T, ex Extraction) {
				assert.True(t, ex.HasUserMessageID)
				assert.False(t, ex.HasThreadID)
			},
		},
		{
			name:        "timestamp before trailing ai id",
			fragment:    "Hi[[aiMessageCreatedAt=2024-01-01T10:00:00Z]][[aiMessageId=8]]",
			wantContent: "Hi[[aiMessageCreatedAt=2024-01-01T10:00:00Z]]",
			check: func(t *testing.T, ex Extraction) {
				assert.True(t, ex.HasAIMessageID)
				assert.Empty(t, ex.AIMessageCreatedAt)
			},
		},
		{
			name:        "ai id in the middle of content",
			fragment:    "Hi[[aiMessageId=8]] there",
			wantContent: "Hi[[aiMessageId=8]] there",
			check: func(t *testing.T, ex Extraction) {
				assert.False(t, ex.HasAIMessageID)
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ex := Extract(tt.fragment, false)
			assert.Equal(t, tt.wantContent, ex.Content)
			tt.check(t, ex)
		})
	}
}

func TestExtraction_Empty(t *testing.T) {
	assert.True(t, Extract("", false).Empty())
	assert.False(t, Extract("x", false).Empty())
	assert.False(t, Extract("[[role=user]]", false).Empty())
}

// =============================================================================
// ENCODE TESTS
// =============================================================================

func TestFrame_EncodeRoundTrip(t *testing.T) {
	frames := []Frame{
		{
			ThreadID: 42, UserMessageID: 7, UserMessageCreatedAt: "2024-01-01T09:59:58Z",
			Role: model.RoleAssistant, Content: "Sure, checking...",
			AIMessageID: 8, AIMessageCreatedAt: "2024-01-01T10:00:00Z",
		},
		{ThreadID: 1, Role: model.RoleAssistant, Content: "no trailer"},
		{Content: "[[brackets]] inside are fine", AIMessageID: 3},
	}
	for _, f := range frames {
		t.Run(f.Content, func(t *testing.T) {
			ex := Extract(f.Encode(), false)
			assert.Equal(t, f.ThreadID, ex.ThreadID)
			assert.Equal(t, f.UserMessageID, ex.UserMessageID)
			assert.Equal(t, f.UserMessageCreatedAt, ex.UserMessageCreatedAt)
			assert.Equal(t, f.Role, ex.Role)
			assert.Equal(t, f.Content, ex.Content)
			assert.Equal(t, f.AIMessageID, ex.AIMessageID)
			assert.Equal(t, f.AIMessageCreatedAt, ex.AIMessageCreatedAt)
		})
	}
}

func TestFrame_HeaderOmitsZeroFields(t *testing.T) {
	f := Frame{ThreadID: 42, Role: model.RoleAssistant}
	assert.Equal(t, "[[threadId=42]][[role=assistant]]", f.Header())
	assert.Equal(t, "", f.Trailer())
}

// =============================================================================
// CHUNK BOUNDARY TESTS
// =============================================================================

func TestIncompleteTail(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want int
	}{
		{"no brackets", "hello", -1},
		{"closed block", "[[threadId=42]]", -1},
		{"open block", "[[threadId=4", 0},
		{"open after closed", "[[threadId=42]][[userMess", 15},
		{"half close", "[[role=assistant]", 0},
		{"bare open", "text[[", 4},
		{"lone bracket", "text[", 4},
		{"lone bracket after open block", "[[aiMessageCreatedAt=2024[", 0},
		{"not a tag name", "see [[wiki", -1},
		{"unknown name with value", "[[model=x", -1},
		{"markdown link", "[docs](http://x)", -1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IncompleteTail(tt.in))
		})
	}
}
