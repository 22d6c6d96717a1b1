// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package store

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/threadline/internal/model"
)

var testNow = time.Date(2024, 1, 1, 18, 0, 0, 0, time.UTC)

const provisional model.ThreadID = -1000

func testReducer() Reducer {
	return Reducer{
		Now: func() time.Time { return testNow },
		NewThread: func() model.Thread {
			return model.Thread{ID: -1, IsNew: true, Messages: []model.Message{}}
		},
	}
}

func newThread(id model.ThreadID) model.Thread {
	return model.Thread{ID: id, IsNew: id.Provisional(), Messages: []model.Message{}}
}

func reduceAll(r Reducer, threads []model.Thread, actions ...Action) []model.Thread {
	for _, a := range actions {
		threads = r.Reduce(threads, a)
	}
	return threads
}

// =============================================================================
// LIST / ADD / DELETE
// =============================================================================

func TestReduce_SetThreadsKeepsUnsavedAndFormats(t *testing.T) {
	r := testReducer()
	before := []model.Thread{newThread(provisional), {ID: 5, Title: "old"}}

	got := r.Reduce(before, SetThreads{Threads: []model.Thread{
		{ID: 1, Title: "one", Messages: []model.Message{
			{ID: 10, Role: model.RoleUser, Content: "hi", RawCreatedAt: "2024-01-01T10:00:00Z"},
			{ID: 11, Role: "robot", Content: "??"},
		}},
		{ID: 1, Title: "duplicate"},
		{ID: 2, Title: "two"},
	}})

	require.Len(t, got, 3)
	assert.Equal(t, provisional, got[0].ID)
	assert.Equal(t, model.ThreadID(1), got[1].ID)
	assert.Equal(t, "one", got[1].Title)
	assert.Equal(t, "10:00 AM", got[1].Messages[0].CreatedAt)
	assert.Equal(t, model.RoleUnattributed, got[1].Messages[1].Role)
	assert.Equal(t, model.ThreadID(2), got[2].ID)
	assert.NotNil(t, got[2].Messages)
}

func TestReduce_SetThreadsEmptyYieldsProvisional(t *testing.T) {
	got := testReducer().Reduce(nil, SetThreads{})
	require.Len(t, got, 1)
	assert.True(t, got[0].IsNew)
}

func TestReduce_AddThreadIgnoresDuplicate(t *testing.T) {
	r := testReducer()
	threads := r.Reduce(nil, AddThread{Thread: newThread(provisional)})
	threads = r.Reduce(threads, AddThread{Thread: newThread(provisional)})
	assert.Len(t, threads, 1)
}

func TestReduce_DeleteSoleThreadSynthesizesProvisional(t *testing.T) {
	r := testReducer()
	threads := []model.Thread{{ID: 42, Title: "Desk booking", Messages: []model.Message{{ID: 1, Role: model.RoleUser}}}}

	got := r.Reduce(threads, DeleteThread{ID: 42})

	require.Len(t, got, 1)
	assert.True(t, got[0].ID.Provisional())
	assert.True(t, got[0].IsNew)
	assert.Empty(t, got[0].Messages)
}

func TestReduce_DeleteKeepsOthers(t *testing.T) {
	threads := []model.Thread{newThread(1), newThread(2), newThread(3)}
	got := testReducer().Reduce(threads, DeleteThread{ID: 2})
	require.Len(t, got, 2)
	assert.Equal(t, model.ThreadID(1), got[0].ID)
	assert.Equal(t, model.ThreadID(3), got[1].ID)
}

// =============================================================================
// FLAGS
// =============================================================================

func TestReduce_LoadingAndError(t *testing.T) {
	r := testReducer()
	threads := []model.Thread{newThread(1)}

	threads = r.Reduce(threads, SetError{ID: 1, Message: "Failed to fetch"})
	threads = r.Reduce(threads, SetLoading{ID: 1})
	assert.True(t, threads[0].Loading)
	assert.Empty(t, threads[0].Error)

	threads[0].AwaitingReply = true
	threads = r.Reduce(threads, SetError{ID: 1, Message: "Failed to fetch"})
	assert.False(t, threads[0].Loading)
	assert.False(t, threads[0].AwaitingReply)
	assert.Equal(t, "Failed to fetch", threads[0].Error)
}

func TestReduce_SetThreadTitleClearsLoading(t *testing.T) {
	threads := []model.Thread{{ID: 1, Loading: true}}
	got := testReducer().Reduce(threads, SetThreadTitle{ID: 1, Title: "Renamed"})
	assert.Equal(t, "Renamed", got[0].Title)
	assert.False(t, got[0].Loading)
}

func TestReduce_SetPlugin(t *testing.T) {
	got := testReducer().Reduce([]model.Thread{newThread(1)}, SetPlugin{ID: 1, Plugin: "desks"})
	assert.Equal(t, "desks", got[0].Plugin)
}

func TestReduce_UnknownIDIsNoOp(t *testing.T) {
	r := testReducer()
	threads := []model.Thread{newThread(1)}
	actions := []Action{
		SetLoading{ID: 9},
		SetError{ID: 9, Message: "x"},
		DeleteThread{ID: 9},
		SetThreadTitle{ID: 9, Title: "x"},
		AddChatMessageRequest{ThreadID: 9, Content: "x"},
		ResolveUserMessage{ProvisionalID: -9, ThreadID: 9, MessageID: 1},
		ResolveAssistantMessage{ProvisionalID: -9, ThreadID: 9, Content: "x"},
		ReplaceThread{ProvisionalID: -9, Thread: newThread(9)},
		SetPlugin{ID: 9, Plugin: "x"},
	}
	for _, a := range actions {
		t.Run(a.Kind(), func(t *testing.T) {
			got := r.Reduce(threads, a)
			if diff := cmp.Diff(threads, got); diff != "" {
				t.Errorf("state changed (-want +got):\n%s", diff)
			}
		})
	}
}

// =============================================================================
// OUTGOING MESSAGE
// =============================================================================

func TestReduce_AddChatMessageRequest(t *testing.T) {
	r := testReducer()
	threads := []model.Thread{newThread(provisional)}
	threads[0].Error = "previous failure"

	got := r.Reduce(threads, AddChatMessageRequest{
		ThreadID: provisional, Content: "find a desk for tomorrow", MessageID: -5,
	})

	th := got[0]
	require.Len(t, th.Messages, 1)
	assert.Equal(t, model.RoleUser, th.Messages[0].Role)
	assert.Equal(t, model.MessageID(-5), th.Messages[0].ID)
	assert.True(t, th.Loading)
	assert.True(t, th.AwaitingReply)
	assert.Empty(t, th.Error)
	assert.Equal(t, "find a desk for tomo", th.Title)
}

func TestReduce_AddChatMessageRequestKeepsTitleAndNonUserRole(t *testing.T) {
	r := testReducer()
	threads := []model.Thread{{ID: provisional, IsNew: true, Title: "Desk booking"}}

	got := r.Reduce(threads, AddChatMessageRequest{ThreadID: provisional, Role: model.RoleAssistant, Content: "note"})

	assert.Equal(t, "Desk booking", got[0].Title)
	assert.True(t, got[0].Loading)
	assert.False(t, got[0].AwaitingReply)
}

// =============================================================================
// STREAM RESOLUTION
// =============================================================================

func TestReduce_ResolveUserMessageBackfillsLastUserMessage(t *testing.T) {
	r := testReducer()
	threads := []model.Thread{{
		ID: provisional, IsNew: true,
		Messages: []model.Message{
			{ID: -1, Role: model.RoleUser, Content: "first"},
			{ID: -2, Role: model.RoleUser, Content: "second"},
		},
	}}

	got := r.Reduce(threads, ResolveUserMessage{
		ProvisionalID: provisional, ThreadID: 42, Title: "Desk booking",
		MessageID: 7, CreatedAt: "2024-01-01T09:59:58Z",
	})

	th := got[0]
	assert.Equal(t, model.ThreadID(42), th.ID)
	assert.False(t, th.IsNew)
	assert.Equal(t, "Desk booking", th.Title)
	assert.True(t, th.Loading)
	assert.True(t, th.AwaitingReply)
	assert.Equal(t, model.MessageID(-1), th.Messages[0].ID)
	assert.Equal(t, model.Message{
		ID: 7, Role: model.RoleUser, Content: "second",
		RawCreatedAt: "2024-01-01T09:59:58Z", CreatedAt: "9:59 AM",
	}, th.Messages[1])
}

func TestReduce_ResolveAssistantAppendsThenMutates(t *testing.T) {
	r := testReducer()
	threads := []model.Thread{{
		ID: provisional, IsNew: true,
		Messages: []model.Message{{ID: -1, Role: model.RoleUser, Content: "hi"}},
	}}

	threads = r.Reduce(threads, ResolveAssistantMessage{ProvisionalID: provisional, ThreadID: 42, Role: model.RoleAssistant})
	require.Len(t, threads[0].Messages, 2)
	assert.Equal(t, model.ThreadID(42), threads[0].ID)
	assert.True(t, threads[0].Loading)
	assert.True(t, threads[0].AwaitingReply)

	threads = r.Reduce(threads, ResolveAssistantMessage{ProvisionalID: provisional, ThreadID: 42, Content: "Hel"})
	threads = r.Reduce(threads, ResolveAssistantMessage{ProvisionalID: provisional, ThreadID: 42, Content: "Hello"})
	require.Len(t, threads[0].Messages, 2)
	assert.Equal(t, "Hello", threads[0].Messages[1].Content)
	assert.True(t, threads[0].Loading)
	assert.False(t, threads[0].AwaitingReply)

	threads = r.Reduce(threads, ResolveAssistantMessage{
		ProvisionalID: provisional, ThreadID: 42, Content: "Hello",
		MessageID: 8, CreatedAt: "2024-01-01T10:00:00Z",
	})
	last := threads[0].Messages[1]
	assert.Equal(t, model.MessageID(8), last.ID)
	assert.Equal(t, "10:00 AM", last.CreatedAt)
	assert.False(t, threads[0].Loading)
	assert.False(t, threads[0].AwaitingReply)
}

func TestReduce_ResolveAssistantUnattributedPlaceholder(t *testing.T) {
	r := testReducer()
	threads := []model.Thread{{ID: 42, Messages: []model.Message{{ID: 7, Role: model.RoleUser}}}}

	threads = r.Reduce(threads, ResolveAssistantMessage{ProvisionalID: 42, ThreadID: 42, Content: "x"})
	require.Len(t, threads[0].Messages, 2)
	assert.Equal(t, model.RoleUnattributed, threads[0].Messages[1].Role)

	// Id zero still marks the placeholder, so the role is filled in place.
	threads = r.Reduce(threads, ResolveAssistantMessage{ProvisionalID: 42, ThreadID: 42, Role: model.RoleAssistant, Content: "xy"})
	require.Len(t, threads[0].Messages, 2)
	assert.Equal(t, model.RoleAssistant, threads[0].Messages[1].Role)
	assert.Equal(t, "xy", threads[0].Messages[1].Content)
}

func TestReduce_ResolveAssistantKeepsUnnumberedUserMessage(t *testing.T) {
	r := testReducer()
	threads := r.Reduce([]model.Thread{newThread(42)}, AddChatMessageRequest{ThreadID: 42, Content: "book it"})
	require.Equal(t, model.NoMessageID, threads[0].Messages[0].ID)

	threads = r.Reduce(threads, ResolveAssistantMessage{ProvisionalID: 42, ThreadID: 42, Role: model.RoleAssistant, Content: "Booked."})
	require.Len(t, threads[0].Messages, 2)
	assert.Equal(t, model.Message{Role: model.RoleUser, Content: "book it"}, threads[0].Messages[0])
	assert.Equal(t, model.RoleAssistant, threads[0].Messages[1].Role)
	assert.Equal(t, "Booked.", threads[0].Messages[1].Content)
}

func TestReduce_RoleIsImmutableOnceResolved(t *testing.T) {
	r := testReducer()
	threads := []model.Thread{{ID: 42, Messages: []model.Message{
		{ID: 7, Role: model.RoleUser, Content: "q"},
		{ID: 0, Role: model.RoleAssistant, Content: "a"},
	}}}

	got := r.Reduce(threads, ResolveAssistantMessage{ThreadID: 42, Role: model.RoleUser, Content: "ab"})

	assert.Equal(t, model.RoleUser, got[0].Messages[0].Role)
	assert.Equal(t, model.RoleAssistant, got[0].Messages[1].Role)
	assert.Equal(t, "ab", got[0].Messages[1].Content)

	got = r.Reduce(got, ResolveUserMessage{ThreadID: 42, MessageID: 70})
	assert.Equal(t, model.RoleUser, got[0].Messages[0].Role)
	assert.Equal(t, model.MessageID(70), got[0].Messages[0].ID)
}

func TestReduce_ResolveAssistantIsIdempotent(t *testing.T) {
	r := testReducer()
	threads := []model.Thread{{
		ID: provisional, IsNew: true,
		Messages: []model.Message{{ID: -1, Role: model.RoleUser, Content: "hi"}},
	}}
	events := []ResolveAssistantMessage{
		{ProvisionalID: provisional, ThreadID: 42, Role: model.RoleAssistant, Content: "partial"},
		{ProvisionalID: provisional, ThreadID: 42, Content: "partial reply", MessageID: 8, CreatedAt: "2024-01-01T10:00:00Z"},
	}
	for _, ev := range events {
		once := r.Reduce(threads, ev)
		twice := r.Reduce(once, ev)
		if diff := cmp.Diff(once, twice); diff != "" {
			t.Errorf("second application changed state (-once +twice):\n%s", diff)
		}
		threads = once
	}
}

func TestReduce_PromotionDropsStaleDuplicate(t *testing.T) {
	r := testReducer()
	// A list refresh raced the stream and already brought in thread 42.
	threads := []model.Thread{
		{ID: provisional, IsNew: true, Messages: []model.Message{{ID: -1, Role: model.RoleUser, Content: "hi"}}},
		{ID: 42, Title: "from list", Messages: []model.Message{}},
		{ID: 43, Messages: []model.Message{}},
	}

	got := r.Reduce(threads, ResolveAssistantMessage{ProvisionalID: provisional, ThreadID: 42, Content: "hello"})

	require.Len(t, got, 2)
	assert.Equal(t, model.ThreadID(42), got[0].ID)
	assert.Len(t, got[0].Messages, 2)
	assert.Equal(t, model.ThreadID(43), got[1].ID)
}

func TestReduce_EventsAfterDeleteAreNoOps(t *testing.T) {
	r := testReducer()
	threads := []model.Thread{newThread(provisional), newThread(5)}
	threads = r.Reduce(threads, DeleteThread{ID: provisional})

	got := r.Reduce(threads, ResolveAssistantMessage{ProvisionalID: provisional, ThreadID: 42, Content: "late"})
	if diff := cmp.Diff(threads, got); diff != "" {
		t.Errorf("late event changed state:\n%s", diff)
	}
}

func TestReduce_ReplaceThread(t *testing.T) {
	r := testReducer()
	threads := []model.Thread{
		{ID: provisional, IsNew: true, Loading: true, Messages: []model.Message{{ID: -1, Role: model.RoleUser, Content: "hi"}}},
		newThread(7),
	}

	got := r.Reduce(threads, ReplaceThread{ProvisionalID: provisional, Thread: model.Thread{
		ID: 42, Title: "Desk booking",
		Messages: []model.Message{
			{ID: 1, Role: model.RoleUser, Content: "hi"},
			{ID: 2, Role: model.RoleAssistant, Content: "hello", RawCreatedAt: "2024-01-01T10:00:00Z"},
		},
	}})

	require.Len(t, got, 2)
	assert.Equal(t, model.ThreadID(42), got[0].ID)
	assert.False(t, got[0].IsNew)
	assert.False(t, got[0].Loading)
	assert.Equal(t, "10:00 AM", got[0].Messages[1].CreatedAt)
}

// =============================================================================
// PURITY
// =============================================================================

func TestReduce_DoesNotMutateInput(t *testing.T) {
	r := testReducer()
	threads := []model.Thread{{
		ID: provisional, IsNew: true,
		Messages: []model.Message{{ID: -1, Role: model.RoleUser, Content: "hi"}},
	}}
	frozen := []model.Thread{threads[0].Clone()}

	actions := []Action{
		AddChatMessageRequest{ThreadID: provisional, Content: "more"},
		ResolveUserMessage{ProvisionalID: provisional, ThreadID: 42, MessageID: 7},
		ResolveAssistantMessage{ProvisionalID: provisional, ThreadID: 42, Content: "x"},
		SetError{ID: provisional, Message: "boom"},
		DeleteThread{ID: provisional},
	}
	for _, a := range actions {
		r.Reduce(threads, a)
		if diff := cmp.Diff(frozen, threads); diff != "" {
			t.Fatalf("%s mutated its input:\n%s", a.Kind(), diff)
		}
	}
}

// =============================================================================
// SCENARIO
// =============================================================================

func TestReduce_DeskBookingScenario(t *testing.T) {
	r := testReducer()
	threads := reduceAll(r, nil,
		AddThread{Thread: model.Thread{ID: provisional, IsNew: true, Title: "Desk booking"}},
		AddChatMessageRequest{ThreadID: provisional, Content: "find a desk for tomorrow", MessageID: -3},
	)
	require.True(t, threads[0].Loading)
	require.True(t, threads[0].AwaitingReply)

	threads = reduceAll(r, threads,
		ResolveUserMessage{ProvisionalID: provisional, ThreadID: 42, Title: "Desk booking", MessageID: 7},
		ResolveAssistantMessage{
			ProvisionalID: provisional, ThreadID: 42, Role: model.RoleAssistant,
			MessageID: 8, CreatedAt: "2024-01-01T10:00:00Z", Content: "Sure, checking...",
		},
	)

	require.Len(t, threads, 1)
	th := threads[0]
	assert.Equal(t, model.ThreadID(42), th.ID)
	assert.Equal(t, "Desk booking", th.Title)
	assert.False(t, th.Loading)
	assert.False(t, th.AwaitingReply)
	require.Len(t, th.Messages, 2)
	assert.Equal(t, model.MessageID(7), th.Messages[0].ID)
	assert.Equal(t, model.RoleUser, th.Messages[0].Role)
	assert.Equal(t, model.MessageID(8), th.Messages[1].ID)
	assert.Equal(t, model.RoleAssistant, th.Messages[1].Role)
	assert.Equal(t, "Sure, checking...", th.Messages[1].Content)
}
