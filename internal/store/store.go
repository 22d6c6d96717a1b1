// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package store

import (
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/jeranaias/threadline/internal/model"
)

// =============================================================================
// SNAPSHOT
// =============================================================================

// Snapshot is the collection as of one dispatch. Treat it as read-only: the
// slices are shared with later snapshots.
type Snapshot struct {
	Threads []model.Thread
	Version uint64
}

// Find returns the thread with the given id.
func (s Snapshot) Find(id model.ThreadID) (model.Thread, bool) {
	if i := indexOf(s.Threads, id); i >= 0 {
		return s.Threads[i], true
	}
	return model.Thread{}, false
}

// Search returns threads whose title or any message contains query,
// ignoring case. An empty query matches everything.
func (s Snapshot) Search(query string) []model.Thread {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return s.Threads
	}
	var out []model.Thread
	for _, t := range s.Threads {
		if strings.Contains(strings.ToLower(t.Title), q) {
			out = append(out, t)
			continue
		}
		for _, m := range t.Messages {
			if strings.Contains(strings.ToLower(m.Content), q) {
				out = append(out, t)
				break
			}
		}
	}
	return out
}

// =============================================================================
// STORE
// =============================================================================

// Store owns the thread collection. All mutation goes through Dispatch.
type Store struct {
	mu      sync.Mutex
	reducer Reducer
	threads []model.Thread
	version uint64
	log     *zap.Logger

	subs    map[int]chan Snapshot
	nextSub int
}

// Option configures a Store.
type Option func(*Store)

// WithReducer replaces the default reducer.
func WithReducer(r Reducer) Option {
	return func(s *Store) { s.reducer = r }
}

// WithLogger sets the logger used for dispatch tracing.
func WithLogger(log *zap.Logger) Option {
	return func(s *Store) { s.log = log }
}

// WithThreads seeds the collection. An empty seed still yields one
// provisional thread.
func WithThreads(threads []model.Thread) Option {
	return func(s *Store) { s.threads = threads }
}

// New creates a store holding a single provisional thread unless seeded.
func New(opts ...Option) *Store {
	s := &Store{
		log:  zap.NewNop(),
		subs: make(map[int]chan Snapshot),
	}
	for _, opt := range opts {
		opt(s)
	}
	if len(s.threads) == 0 {
		s.threads = []model.Thread{s.reducer.newThread()}
	} else {
		s.threads = s.reducer.Reduce(nil, SetThreads{Threads: s.threads})
	}
	return s
}

// Dispatch applies a and returns the resulting snapshot. Dispatches are
// serialized; subscribers see every version in order or a later one.
func (s *Store) Dispatch(a Action) Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.reducer.Reduce(s.threads, a)
	s.threads = next
	s.version++
	snap := Snapshot{Threads: next, Version: s.version}

	s.log.Debug("dispatch",
		zap.String("action", a.Kind()),
		zap.Uint64("version", snap.Version),
		zap.Int("threads", len(next)))

	for _, ch := range s.subs {
		publish(ch, snap)
	}
	return snap
}

// Snapshot returns the current state.
func (s *Store) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Snapshot{Threads: s.threads, Version: s.version}
}

// Subscribe returns a channel that receives the latest snapshot after each
// dispatch. Slow readers skip intermediate versions. The current snapshot is
// delivered immediately. Call cancel to stop and close the channel.
func (s *Store) Subscribe() (updates <-chan Snapshot, cancel func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ch := make(chan Snapshot, 1)
	id := s.nextSub
	s.nextSub++
	s.subs[id] = ch
	ch <- Snapshot{Threads: s.threads, Version: s.version}

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			delete(s.subs, id)
			close(ch)
		})
	}
}

// publish replaces any unread snapshot with snap. Callers hold s.mu, which
// makes the drain-then-send pair atomic with respect to other publishers.
func publish(ch chan Snapshot, snap Snapshot) {
	select {
	case <-ch:
	default:
	}
	select {
	case ch <- snap:
	default:
	}
}
