// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package store

import (
	"time"

	"github.com/jeranaias/threadline/internal/model"
)

// =============================================================================
// REDUCER
// =============================================================================

// Reducer is the pure transition function of the store. The zero value is
// ready to use; the fields exist so tests can pin time and ids.
type Reducer struct {
	// Now is the reference time for timestamp display. Defaults to time.Now.
	Now func() time.Time

	// NewThread creates the replacement thread when the collection would
	// become empty. Defaults to model.NewProvisionalThread.
	NewThread func() model.Thread
}

func (r Reducer) now() time.Time {
	if r.Now != nil {
		return r.Now()
	}
	return time.Now()
}

func (r Reducer) newThread() model.Thread {
	if r.NewThread != nil {
		return r.NewThread()
	}
	return model.NewProvisionalThread()
}

// Reduce applies a to threads and returns the resulting collection. threads
// is never modified. When a has no effect the input slice is returned as is.
func (r Reducer) Reduce(threads []model.Thread, a Action) []model.Thread {
	switch a := a.(type) {
	case SetThreads:
		return r.setThreads(threads, a)

	case SetLoading:
		return update(threads, indexOf(threads, a.ID), func(t *model.Thread) {
			t.Loading = true
			t.Error = ""
		})

	case SetError:
		return update(threads, indexOf(threads, a.ID), func(t *model.Thread) {
			t.Error = a.Message
			t.Loading = false
			t.AwaitingReply = false
		})

	case AddThread:
		if indexOf(threads, a.Thread.ID) >= 0 {
			return threads
		}
		t := a.Thread.Clone()
		if t.Messages == nil {
			t.Messages = []model.Message{}
		}
		return append(cloneSlice(threads), t)

	case DeleteThread:
		i := indexOf(threads, a.ID)
		if i < 0 {
			return threads
		}
		out := removeAt(threads, i)
		if len(out) == 0 {
			out = append(out, r.newThread())
		}
		return out

	case SetThreadTitle:
		return update(threads, indexOf(threads, a.ID), func(t *model.Thread) {
			t.Title = a.Title
			t.Loading = false
		})

	case AddChatMessageRequest:
		return r.addChatMessage(threads, a)

	case ResolveUserMessage:
		return r.resolveUser(threads, a)

	case ResolveAssistantMessage:
		return r.resolveAssistant(threads, a)

	case ReplaceThread:
		return r.replaceThread(threads, a)

	case SetPlugin:
		return update(threads, indexOf(threads, a.ID), func(t *model.Thread) {
			t.Plugin = a.Plugin
		})
	}
	return threads
}

func (r Reducer) setThreads(threads []model.Thread, a SetThreads) []model.Thread {
	now := r.now()
	out := make([]model.Thread, 0, len(threads)+len(a.Threads))
	seen := make(map[model.ThreadID]bool)

	for _, t := range threads {
		if t.IsNew {
			out = append(out, t)
			seen[t.ID] = true
		}
	}
	for _, t := range a.Threads {
		if seen[t.ID] {
			continue
		}
		seen[t.ID] = true
		out = append(out, normalize(t, now))
	}
	if len(out) == 0 {
		out = append(out, r.newThread())
	}
	return out
}

func (r Reducer) addChatMessage(threads []model.Thread, a AddChatMessageRequest) []model.Thread {
	now := r.now()
	return update(threads, indexOf(threads, a.ThreadID), func(t *model.Thread) {
		role := a.Role
		if role == "" {
			role = model.RoleUser
		}
		t.Messages = append(t.Messages, model.Message{
			ID:           a.MessageID,
			Role:         role,
			Content:      a.Content,
			RawCreatedAt: a.CreatedAt,
			CreatedAt:    model.FormatTimestamp(a.CreatedAt, now),
		})
		t.Loading = true
		t.AwaitingReply = role == model.RoleUser
		t.Error = ""
		if t.IsNew && t.Title == "" && role == model.RoleUser {
			t.Title = model.AutoTitle(a.Content)
		}
	})
}

func (r Reducer) resolveUser(threads []model.Thread, a ResolveUserMessage) []model.Thread {
	threads, i := locate(threads, a.ProvisionalID, a.ThreadID)
	now := r.now()
	return update(threads, i, func(t *model.Thread) {
		if j := t.LastIndexOf(model.RoleUser); j >= 0 {
			m := &t.Messages[j]
			if a.MessageID != model.NoMessageID {
				m.ID = a.MessageID
			}
			if a.CreatedAt != "" {
				m.RawCreatedAt = a.CreatedAt
				m.CreatedAt = model.FormatTimestamp(a.CreatedAt, now)
			}
		}
		if a.Title != "" {
			t.Title = a.Title
		}
		t.Loading = true
		t.AwaitingReply = true
	})
}

func (r Reducer) resolveAssistant(threads []model.Thread, a ResolveAssistantMessage) []model.Thread {
	threads, i := locate(threads, a.ProvisionalID, a.ThreadID)
	now := r.now()
	return update(threads, i, func(t *model.Thread) {
		j := len(t.Messages) - 1
		if j >= 0 && isReplyPlaceholder(t.Messages[j]) {
			m := &t.Messages[j]
			if a.MessageID != model.NoMessageID {
				m.ID = a.MessageID
			}
			if a.CreatedAt != "" {
				m.RawCreatedAt = a.CreatedAt
				m.CreatedAt = model.FormatTimestamp(a.CreatedAt, now)
			}
			if a.Role.Resolved() && !m.Role.Resolved() {
				m.Role = a.Role
			}
			if a.Content != "" {
				m.Content = a.Content
			}
		} else {
			role := a.Role
			if role == "" {
				role = model.RoleUnattributed
			}
			t.Messages = append(t.Messages, model.Message{
				ID:           a.MessageID,
				Role:         role,
				Content:      a.Content,
				RawCreatedAt: a.CreatedAt,
				CreatedAt:    model.FormatTimestamp(a.CreatedAt, now),
			})
		}

		last := t.Messages[len(t.Messages)-1]
		t.Loading = !last.HasTimestamp()
		t.AwaitingReply = t.Loading && last.Content == ""
	})
}

func (r Reducer) replaceThread(threads []model.Thread, a ReplaceThread) []model.Thread {
	i := indexOf(threads, a.ProvisionalID)
	if i < 0 {
		return threads
	}
	out := cloneSlice(threads)
	out[i] = normalize(a.Thread, r.now())
	return dropDuplicates(out, i)
}

// =============================================================================
// HELPERS
// =============================================================================

// locate finds the thread a stream event targets. When the confirmed id is
// known and the thread still carries its provisional id, the id is rewritten
// in the returned collection. This is the only place a thread id changes.
func locate(threads []model.Thread, provisional, confirmed model.ThreadID) ([]model.Thread, int) {
	if provisional != model.NoThread {
		if p := indexOf(threads, provisional); p >= 0 {
			if confirmed == model.NoThread || confirmed == provisional {
				return threads, p
			}
			out := cloneSlice(threads)
			out[p].ID = confirmed
			out[p].IsNew = false
			out = dropDuplicates(out, p)
			return out, indexOf(out, confirmed)
		}
	}
	if confirmed != model.NoThread {
		return threads, indexOf(threads, confirmed)
	}
	return threads, -1
}

// dropDuplicates removes every thread other than keep that shares its id.
func dropDuplicates(threads []model.Thread, keep int) []model.Thread {
	id := threads[keep].ID
	out := threads[:0:0]
	for i, t := range threads {
		if i != keep && t.ID == id {
			continue
		}
		out = append(out, t)
	}
	return out
}

// normalize prepares a server thread for the collection.
func normalize(t model.Thread, now time.Time) model.Thread {
	n := t.Clone()
	if n.Messages == nil {
		n.Messages = []model.Message{}
	}
	for i := range n.Messages {
		m := &n.Messages[i]
		if _, ok := model.ParseRole(string(m.Role)); !ok {
			m.Role = model.RoleUnattributed
		}
		m.CreatedAt = model.FormatTimestamp(m.RawCreatedAt, now)
	}
	n.IsNew = false
	n.Loading = false
	n.AwaitingReply = false
	n.Error = ""
	return n
}

func indexOf(threads []model.Thread, id model.ThreadID) int {
	if id == model.NoThread {
		return -1
	}
	for i := range threads {
		if threads[i].ID == id {
			return i
		}
	}
	return -1
}

// update returns a copy of threads with element i cloned and passed to fn.
// An out-of-range i means the thread is gone and threads is returned as is.
func update(threads []model.Thread, i int, fn func(*model.Thread)) []model.Thread {
	if i < 0 || i >= len(threads) {
		return threads
	}
	out := cloneSlice(threads)
	t := threads[i].Clone()
	fn(&t)
	out[i] = t
	return out
}

func cloneSlice(threads []model.Thread) []model.Thread {
	out := make([]model.Thread, len(threads), len(threads)+1)
	copy(out, threads)
	return out
}

func removeAt(threads []model.Thread, i int) []model.Thread {
	out := make([]model.Thread, 0, len(threads))
	out = append(out, threads[:i]...)
	return append(out, threads[i+1:]...)
}

// isReplyPlaceholder reports whether m is the reply being streamed: an
// assistant message, or a message with no id yet that is not the user's.
func isReplyPlaceholder(m model.Message) bool {
	if m.Role == model.RoleAssistant {
		return true
	}
	return m.ID == model.NoMessageID && m.Role != model.RoleUser
}
