// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package storage provides the local thread cache for threadline.
//
// After every successful thread list the confirmed threads are written to a
// SQLite database, so the client can start warm and list threads offline.
// Provisional threads never reach the cache.
//
// # Key Types
//
//   - Cache: SQLite-backed snapshot of the last thread list
//
// # Usage
//
//	cache, err := storage.Open(path, log)
//	if err != nil {
//	    return err
//	}
//	defer cache.Close()
//
//	err = cache.SaveThreads(ctx, snapshot.Threads)
//	threads, err := cache.LoadThreads(ctx)
//
// # Storage Location
//
// The database lives at ~/.threadline/threads.db unless [cache] path is set.
package storage
