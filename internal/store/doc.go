// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package store holds the conversation collection and the reducer that
// evolves it.
//
// Every change goes through Store.Dispatch with one Action. The Reducer maps
// the previous collection and the action to a new collection without
// mutating the old one, so a Snapshot handed to a reader stays valid forever.
//
// # Key Types
//
//   - Action: sealed sum type, one struct per transition
//   - Reducer: the pure transition function
//   - Store: serializes dispatches and fans snapshots out to subscribers
//   - Snapshot: an immutable view of the collection at one version
//
// # Invariants
//
//   - Thread ids are unique. A provisional id is rewritten to the confirmed
//     one in place, and a stale copy already holding the confirmed id is
//     dropped.
//   - The collection is never empty. Removing the last thread leaves a fresh
//     provisional one.
//   - A message role, once user or assistant, never changes.
//   - A thread stops loading exactly when its trailing assistant message has a
//     timestamp. It awaits a reply only while that message has no content.
//   - Actions naming an unknown thread are no-ops. Late stream events for a
//     deleted thread fall into this case.
//
// # Usage
//
//	s := store.New(store.WithLogger(log))
//	snap := s.Dispatch(store.AddThread{Thread: model.NewProvisionalThread()})
//	updates, cancel := s.Subscribe()
//	defer cancel()
package store
