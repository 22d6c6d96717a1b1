// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"
	_ "modernc.org/sqlite" // Pure Go SQLite driver

	"github.com/jeranaias/threadline/internal/model"
	"github.com/jeranaias/threadline/internal/util"
)

// =============================================================================
// ERRORS
// =============================================================================

var (
	// ErrThreadNotFound is returned when a thread is not in the cache.
	ErrThreadNotFound = errors.New("thread not found in cache")

	// ErrClosed is returned after Close.
	ErrClosed = errors.New("cache is closed")
)

// =============================================================================
// CACHE
// =============================================================================

// Cache is a SQLite snapshot of the confirmed threads.
type Cache struct {
	db  *sql.DB
	log *zap.Logger
	now func() time.Time

	mu     sync.Mutex
	closed bool
}

// Open opens or creates the cache database at path.
func Open(path string, log *zap.Logger) (*Cache, error) {
	if log == nil {
		log = zap.NewNop()
	}

	if err := os.MkdirAll(filepath.Dir(path), util.DefaultDirPerm); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open cache: %w", err)
	}

	// SQLite only supports one writer at a time, so limit connections
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
		"PRAGMA busy_timeout=5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to set pragma: %w", err)
		}
	}

	if _, err := db.Exec(Schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	if _, err := db.Exec(InitMetadata); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize metadata: %w", err)
	}

	// SECURITY: The cache holds conversation content.
	if err := os.Chmod(path, 0600); err != nil {
		log.Warn("could not restrict cache permissions", zap.String("path", path), zap.Error(err))
	}

	return &Cache{db: db, log: log.Named("storage"), now: time.Now}, nil
}

// Close closes the database.
func (c *Cache) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	return c.db.Close()
}

func (c *Cache) check() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}
	return nil
}

// =============================================================================
// WRITE
// =============================================================================

// SaveThreads replaces the cached list with the confirmed threads in
// threads, keeping their order. Provisional threads are skipped.
func (c *Cache) SaveThreads(ctx context.Context, threads []model.Thread) error {
	if err := c.check(); err != nil {
		return err
	}

	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin cache write: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM messages"); err != nil {
		return fmt.Errorf("clear messages: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM threads"); err != nil {
		return fmt.Errorf("clear threads: %w", err)
	}

	threadStmt, err := tx.PrepareContext(ctx,
		"INSERT INTO threads (id, position, title, plugin) VALUES (?, ?, ?, ?)")
	if err != nil {
		return fmt.Errorf("prepare thread insert: %w", err)
	}
	defer threadStmt.Close()

	msgStmt, err := tx.PrepareContext(ctx,
		"INSERT INTO messages (thread_id, position, id, role, content, created_at) VALUES (?, ?, ?, ?, ?, ?)")
	if err != nil {
		return fmt.Errorf("prepare message insert: %w", err)
	}
	defer msgStmt.Close()

	saved := 0
	seen := make(map[model.ThreadID]bool, len(threads))
	for _, t := range threads {
		if t.ID.Provisional() || t.ID == model.NoThread || seen[t.ID] {
			continue
		}
		seen[t.ID] = true

		if _, err := threadStmt.ExecContext(ctx, int64(t.ID), saved, t.Title, t.Plugin); err != nil {
			return fmt.Errorf("insert thread %s: %w", t.ID, err)
		}
		for i, m := range t.Messages {
			id := int64(m.ID)
			if m.ID < 0 {
				id = 0
			}
			if _, err := msgStmt.ExecContext(ctx, int64(t.ID), i, id, string(m.Role), m.Content, m.RawCreatedAt); err != nil {
				return fmt.Errorf("insert message %d of thread %s: %w", i, t.ID, err)
			}
		}
		saved++
	}

	if _, err := tx.ExecContext(ctx, "UPDATE metadata SET value = ? WHERE key = 'synced_at'",
		c.now().UTC().Format(time.RFC3339)); err != nil {
		return fmt.Errorf("record sync time: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit cache write: %w", err)
	}
	c.log.Debug("threads cached", zap.Int("threads", saved))
	return nil
}

// =============================================================================
// READ
// =============================================================================

// LoadThreads returns the cached threads in list order.
func (c *Cache) LoadThreads(ctx context.Context) ([]model.Thread, error) {
	if err := c.check(); err != nil {
		return nil, err
	}

	rows, err := c.db.QueryContext(ctx, "SELECT id, title, plugin FROM threads ORDER BY position")
	if err != nil {
		return nil, fmt.Errorf("query threads: %w", err)
	}
	defer rows.Close()

	var threads []model.Thread
	index := make(map[model.ThreadID]int)
	for rows.Next() {
		var (
			id            int64
			title, plugin string
		)
		if err := rows.Scan(&id, &title, &plugin); err != nil {
			return nil, fmt.Errorf("scan thread: %w", err)
		}
		index[model.ThreadID(id)] = len(threads)
		threads = append(threads, model.Thread{
			ID:       model.ThreadID(id),
			Title:    title,
			Plugin:   plugin,
			Messages: []model.Message{},
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate threads: %w", err)
	}

	msgRows, err := c.db.QueryContext(ctx,
		"SELECT thread_id, id, role, content, created_at FROM messages ORDER BY thread_id, position")
	if err != nil {
		return nil, fmt.Errorf("query messages: %w", err)
	}
	defer msgRows.Close()

	for msgRows.Next() {
		var (
			threadID, id             int64
			role, content, createdAt string
		)
		if err := msgRows.Scan(&threadID, &id, &role, &content, &createdAt); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		i, ok := index[model.ThreadID(threadID)]
		if !ok {
			continue
		}
		r, ok := model.ParseRole(role)
		if !ok {
			r = model.RoleUnattributed
		}
		threads[i].Messages = append(threads[i].Messages, model.Message{
			ID:           model.MessageID(id),
			Role:         r,
			Content:      content,
			RawCreatedAt: createdAt,
		})
	}
	if err := msgRows.Err(); err != nil {
		return nil, fmt.Errorf("iterate messages: %w", err)
	}

	return threads, nil
}

// LoadThread returns one cached thread.
func (c *Cache) LoadThread(ctx context.Context, id model.ThreadID) (model.Thread, error) {
	threads, err := c.LoadThreads(ctx)
	if err != nil {
		return model.Thread{}, err
	}
	for _, t := range threads {
		if t.ID == id {
			return t, nil
		}
	}
	return model.Thread{}, fmt.Errorf("%w: %s", ErrThreadNotFound, id)
}

// SyncedAt returns when the cache was last written. The zero time means
// never.
func (c *Cache) SyncedAt(ctx context.Context) (time.Time, error) {
	if err := c.check(); err != nil {
		return time.Time{}, err
	}
	var v string
	err := c.db.QueryRowContext(ctx, "SELECT value FROM metadata WHERE key = 'synced_at'").Scan(&v)
	if err != nil {
		return time.Time{}, fmt.Errorf("read sync time: %w", err)
	}
	if v == "" {
		return time.Time{}, nil
	}
	ts, err := time.Parse(time.RFC3339, v)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse sync time: %w", err)
	}
	return ts, nil
}
