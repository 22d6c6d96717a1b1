// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package store

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/jeranaias/threadline/internal/model"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestNew_StartsWithOneProvisionalThread(t *testing.T) {
	s := New()
	snap := s.Snapshot()
	require.Len(t, snap.Threads, 1)
	assert.True(t, snap.Threads[0].IsNew)
	assert.True(t, snap.Threads[0].ID.Provisional())
	assert.Equal(t, uint64(0), snap.Version)
}

func TestNew_WithThreadsNormalizes(t *testing.T) {
	s := New(WithReducer(testReducer()), WithThreads([]model.Thread{
		{ID: 3, Messages: []model.Message{{ID: 1, Role: model.RoleUser, RawCreatedAt: "2024-01-01T10:00:00Z"}}},
	}))
	th, ok := s.Snapshot().Find(3)
	require.True(t, ok)
	assert.Equal(t, "10:00 AM", th.Messages[0].CreatedAt)
}

func TestStore_DispatchBumpsVersion(t *testing.T) {
	s := New(WithReducer(testReducer()))
	id := s.Snapshot().Threads[0].ID

	snap := s.Dispatch(SetThreadTitle{ID: id, Title: "Desk booking"})
	assert.Equal(t, uint64(1), snap.Version)

	th, ok := snap.Find(id)
	require.True(t, ok)
	assert.Equal(t, "Desk booking", th.Title)
}

func TestStore_SnapshotsAreStable(t *testing.T) {
	s := New(WithReducer(testReducer()))
	id := s.Snapshot().Threads[0].ID
	s.Dispatch(AddChatMessageRequest{ThreadID: id, Content: "hi", MessageID: -1})
	before := s.Snapshot()

	s.Dispatch(ResolveAssistantMessage{ProvisionalID: id, ThreadID: 42, Content: "hello"})

	th, ok := before.Find(id)
	require.True(t, ok, "old snapshot must still see the provisional id")
	assert.Len(t, th.Messages, 1)
}

func TestStore_SubscribeDeliversLatest(t *testing.T) {
	s := New(WithReducer(testReducer()))
	updates, cancel := s.Subscribe()
	defer cancel()

	first := <-updates
	assert.Equal(t, uint64(0), first.Version)

	id := first.Threads[0].ID
	for i := 0; i < 5; i++ {
		s.Dispatch(SetLoading{ID: id})
	}
	latest := <-updates
	assert.Equal(t, uint64(5), latest.Version, "intermediate versions are coalesced")
}

func TestStore_CancelClosesChannel(t *testing.T) {
	s := New()
	updates, cancel := s.Subscribe()
	<-updates
	cancel()
	cancel()

	_, open := <-updates
	assert.False(t, open)

	// Dispatch after cancel must not panic on a closed channel.
	s.Dispatch(SetLoading{ID: s.Snapshot().Threads[0].ID})
}

func TestStore_ConcurrentDispatch(t *testing.T) {
	s := New(WithReducer(testReducer()))
	updates, cancel := s.Subscribe()

	var readers sync.WaitGroup
	readers.Add(1)
	go func() {
		defer readers.Done()
		var last uint64
		for snap := range updates {
			if snap.Version < last {
				t.Errorf("version went backwards: %d after %d", snap.Version, last)
			}
			last = snap.Version
		}
	}()

	var wg sync.WaitGroup
	for i := 1; i <= 20; i++ {
		wg.Add(1)
		go func(id model.ThreadID) {
			defer wg.Done()
			s.Dispatch(AddThread{Thread: model.Thread{ID: id}})
			s.Dispatch(AddChatMessageRequest{ThreadID: id, Content: "hi", MessageID: -1})
			s.Dispatch(ResolveAssistantMessage{ProvisionalID: id, ThreadID: id, Content: "hello", MessageID: 2, CreatedAt: "2024-01-01T10:00:00Z"})
		}(model.ThreadID(i))
	}
	wg.Wait()
	cancel()
	readers.Wait()

	snap := s.Snapshot()
	assert.Len(t, snap.Threads, 21)
	assert.Equal(t, uint64(60), snap.Version)
	for _, th := range snap.Threads[1:] {
		require.Len(t, th.Messages, 2)
		assert.False(t, th.Loading)
	}
}

func TestSnapshot_Search(t *testing.T) {
	snap := Snapshot{Threads: []model.Thread{
		{ID: 1, Title: "Desk booking"},
		{ID: 2, Title: "Lunch", Messages: []model.Message{{Content: "Book a DESK near the window"}}},
		{ID: 3, Title: "Parking"},
	}}

	got := snap.Search("desk")
	require.Len(t, got, 2)
	assert.Equal(t, model.ThreadID(1), got[0].ID)
	assert.Equal(t, model.ThreadID(2), got[1].ID)

	assert.Len(t, snap.Search("  "), 3)
	assert.Empty(t, snap.Search("nothing"))
}
