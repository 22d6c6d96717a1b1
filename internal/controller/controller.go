// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package controller

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/jeranaias/threadline/internal/api"
	"github.com/jeranaias/threadline/internal/model"
	"github.com/jeranaias/threadline/internal/store"
	"github.com/jeranaias/threadline/internal/stream"
)

// Messages surfaced on failures.
const (
	MsgListFailed   = "Failed to fetch threads"
	MsgDeleteFailed = "Failed to delete thread"
	MsgRenameFailed = "Failed to rename thread"
	MsgCreateFailed = "Failed to create thread"
	MsgPostFailed   = "Failed to fetch"
)

// ErrMissingStream means the backend accepted a message but sent no reply.
var ErrMissingStream = errors.New("response is missing the streamed body")

// Backend is the set of backend calls the Controller makes.
type Backend interface {
	ListThreads(ctx context.Context) ([]api.ThreadDTO, error)
	CreateThread(ctx context.Context, req api.CreateThreadRequest) (*api.Reply, error)
	PostMessage(ctx context.Context, id model.ThreadID, text string) (*api.Reply, error)
	RenameThread(ctx context.Context, id model.ThreadID, title string) error
	DeleteThread(ctx context.Context, id model.ThreadID) error
}

// Gate reports whether the credential has expired.
type Gate interface {
	Expired() bool
}

// ThreadCache receives the confirmed threads after every successful list.
type ThreadCache interface {
	SaveThreads(ctx context.Context, threads []model.Thread) error
}

// PostOptions carries the optional parts of a posted message.
type PostOptions struct {
	// Title for a new thread. Defaults to the thread's title, then to the
	// start of the message.
	Title string

	// Plugin for a new thread. Defaults to the thread's plugin.
	Plugin string
}

// =============================================================================
// CONTROLLER
// =============================================================================

// Controller coordinates the backend, the decoder and the store.
type Controller struct {
	backend Backend
	gate    Gate
	store   *store.Store
	decoder *stream.Decoder
	cache   ThreadCache
	log     *zap.Logger
	now     func() time.Time

	mu       sync.RWMutex
	selected model.ThreadID
	loading  bool
	err      string
}

// Option configures a Controller.
type Option func(*Controller)

// WithStore uses s instead of a fresh store.
func WithStore(s *store.Store) Option {
	return func(c *Controller) { c.store = s }
}

// WithDecoder replaces the default decoder.
func WithDecoder(d *stream.Decoder) Option {
	return func(c *Controller) { c.decoder = d }
}

// WithCache writes every fetched list to cache.
func WithCache(cache ThreadCache) Option {
	return func(c *Controller) { c.cache = cache }
}

// WithLogger sets the logger.
func WithLogger(log *zap.Logger) Option {
	return func(c *Controller) { c.log = log }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(c *Controller) { c.now = now }
}

// New creates a Controller. Every backend call is preceded by gate.Expired.
func New(backend Backend, gate Gate, opts ...Option) *Controller {
	c := &Controller{
		backend: backend,
		gate:    gate,
		log:     zap.NewNop(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.log = c.log.Named("controller")
	if c.store == nil {
		c.store = store.New(store.WithLogger(c.log))
	}
	if c.decoder == nil {
		c.decoder = stream.NewDecoder(c.log)
	}
	return c
}

// Store returns the underlying store, for subscribers.
func (c *Controller) Store() *store.Store {
	return c.store
}

// expired is the preflight of every outbound call.
func (c *Controller) expired() bool {
	if c.gate.Expired() {
		c.log.Info("credential expired; request not sent")
		return true
	}
	return false
}

// =============================================================================
// THREAD LIST
// =============================================================================

// ListThreads fetches the thread list and replaces the confirmed threads.
// Unsaved threads are kept.
func (c *Controller) ListThreads(ctx context.Context) {
	if c.expired() {
		return
	}
	c.setListState(true, "")

	dtos, err := c.backend.ListThreads(ctx)
	if err != nil {
		c.log.Warn("list threads failed", zap.Error(err))
		c.setListState(false, MsgListFailed)
		return
	}

	snap := c.store.Dispatch(store.SetThreads{Threads: api.ThreadsToModel(dtos)})
	c.setListState(false, "")

	if c.cache != nil {
		if err := c.cache.SaveThreads(ctx, snap.Threads); err != nil {
			c.log.Warn("cache write failed", zap.Error(err))
		}
	}
}

func (c *Controller) setListState(loading bool, msg string) {
	c.mu.Lock()
	c.loading = loading
	c.err = msg
	c.mu.Unlock()
}

// CreateThread adds an unsaved thread and selects it. It exists only locally
// until its first message is posted.
func (c *Controller) CreateThread() model.ThreadID {
	t := model.NewProvisionalThread()
	c.store.Dispatch(store.AddThread{Thread: t})
	c.SelectThread(t.ID)
	return t.ID
}

// DeleteThread removes a thread. Unsaved threads are removed without a
// backend call.
func (c *Controller) DeleteThread(ctx context.Context, id model.ThreadID) {
	t, ok := c.store.Snapshot().Find(id)
	if !ok {
		return
	}
	remote := !t.IsNew && !id.Provisional()
	if remote && c.expired() {
		return
	}

	c.store.Dispatch(store.SetLoading{ID: id})
	if remote {
		if err := c.backend.DeleteThread(ctx, id); err != nil {
			c.fail(id, MsgDeleteFailed, err)
			return
		}
	}
	c.store.Dispatch(store.DeleteThread{ID: id})

	c.mu.Lock()
	if c.selected == id {
		c.selected = model.NoThread
	}
	c.mu.Unlock()
}

// RenameThread sets a thread's title locally, then on the backend. The
// title is applied again once the backend confirms.
func (c *Controller) RenameThread(ctx context.Context, id model.ThreadID, title string) {
	title = strings.TrimSpace(title)
	t, ok := c.store.Snapshot().Find(id)
	if !ok {
		return
	}
	if t.IsNew || id.Provisional() {
		c.store.Dispatch(store.SetThreadTitle{ID: id, Title: title})
		return
	}
	if c.expired() {
		return
	}

	c.store.Dispatch(store.SetThreadTitle{ID: id, Title: title})
	c.store.Dispatch(store.SetLoading{ID: id})
	if err := c.backend.RenameThread(ctx, id, title); err != nil {
		c.fail(id, MsgRenameFailed, err)
		return
	}
	c.store.Dispatch(store.SetThreadTitle{ID: id, Title: title})
}

// SetPlugin records the plugin a thread uses. It is sent when the thread is
// created on the backend.
func (c *Controller) SetPlugin(id model.ThreadID, plugin string) {
	c.store.Dispatch(store.SetPlugin{ID: id, Plugin: strings.TrimSpace(plugin)})
}

// =============================================================================
// MESSAGES
// =============================================================================

// PostMessage sends text to a thread. The message is shown at once; an
// unsaved thread is created on the backend with it, otherwise it is
// appended. The reply is decoded into the store before PostMessage returns.
func (c *Controller) PostMessage(ctx context.Context, id model.ThreadID, text string, opts PostOptions) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	t, ok := c.store.Snapshot().Find(id)
	if !ok {
		return nil
	}
	if c.expired() {
		return nil
	}

	isNew := t.IsNew || id.Provisional()
	c.store.Dispatch(store.AddChatMessageRequest{
		ThreadID:  id,
		Role:      model.RoleUser,
		Content:   text,
		MessageID: model.NewProvisionalMessageID(),
	})
	c.store.Dispatch(store.SetLoading{ID: id})

	var (
		reply   *api.Reply
		err     error
		title   string
		failMsg string
	)
	if isNew {
		title = newThreadTitle(t, text, opts.Title)
		plugin := opts.Plugin
		if plugin == "" {
			plugin = t.Plugin
		}
		failMsg = MsgCreateFailed
		reply, err = c.backend.CreateThread(ctx, api.CreateThreadRequest{Title: title, Message: text, Plugin: plugin})
	} else {
		failMsg = MsgPostFailed
		reply, err = c.backend.PostMessage(ctx, id, text)
	}
	if err != nil {
		c.fail(id, failMsg, err)
		return nil
	}
	defer reply.Close()

	switch {
	case reply.Thread != nil:
		c.replaceThread(id, reply.Thread.ToModel())
		return nil

	case reply.Message != nil:
		c.applyMessage(id, *reply.Message)
		return nil

	case reply.Body != nil:
		sess := stream.NewSession(id, title)
		if err := c.decoder.Decode(ctx, reply.Body, sess, c); err != nil {
			c.fail(sess.TargetID(), failMsg, err)
		}
		return nil
	}

	c.fail(id, failMsg, ErrMissingStream)
	return ErrMissingStream
}

// newThreadTitle picks the title sent with a create request.
func newThreadTitle(t model.Thread, text, requested string) string {
	if title := strings.TrimSpace(requested); title != "" {
		return title
	}
	if title := strings.TrimSpace(t.Title); title != "" {
		return title
	}
	return model.AutoTitle(text)
}

// replaceThread installs the backend's copy of a created thread.
func (c *Controller) replaceThread(provisional model.ThreadID, t model.Thread) {
	c.store.Dispatch(store.ReplaceThread{ProvisionalID: provisional, Thread: t})

	c.mu.Lock()
	if c.selected == provisional {
		c.selected = t.ID
	}
	c.mu.Unlock()
}

// applyMessage records a complete, non-streamed reply.
func (c *Controller) applyMessage(id model.ThreadID, m api.MessageDTO) {
	msg := m.ToModel()
	createdAt := msg.RawCreatedAt
	if createdAt == "" {
		createdAt = c.now().UTC().Format(time.RFC3339)
	}
	role := msg.Role
	if !role.Resolved() {
		role = model.RoleAssistant
	}
	c.store.Dispatch(store.ResolveAssistantMessage{
		ProvisionalID: id,
		Role:          role,
		MessageID:     msg.ID,
		CreatedAt:     createdAt,
		Content:       msg.Content,
	})
}

// fail turns err into the thread's error state.
func (c *Controller) fail(id model.ThreadID, msg string, err error) {
	fields := []zap.Field{zap.Stringer("thread", id), zap.String("message", msg), zap.Error(err)}
	var fe *api.FetchError
	if errors.As(err, &fe) {
		fields = append(fields, zap.Int("status", fe.Status), zap.String("detail", fe.Message))
	}
	c.log.Warn("request failed", fields...)
	c.store.Dispatch(store.SetError{ID: id, Message: msg})
}

// =============================================================================
// SELECTION AND STATE
// =============================================================================

// Dispatch applies a to the store. It makes the Controller a stream.Sink.
func (c *Controller) Dispatch(a store.Action) {
	c.store.Dispatch(a)
}

// SelectThread selects a thread.
func (c *Controller) SelectThread(id model.ThreadID) {
	c.mu.Lock()
	c.selected = id
	c.mu.Unlock()
}

// SelectedThreadID returns the selected thread, or the first thread when the
// selection is unset or gone.
func (c *Controller) SelectedThreadID() model.ThreadID {
	c.mu.RLock()
	selected := c.selected
	c.mu.RUnlock()

	snap := c.store.Snapshot()
	if selected != model.NoThread {
		if _, ok := snap.Find(selected); ok {
			return selected
		}
	}
	if len(snap.Threads) == 0 {
		return model.NoThread
	}
	return snap.Threads[0].ID
}

// Selected returns the selected thread.
func (c *Controller) Selected() (model.Thread, bool) {
	return c.store.Snapshot().Find(c.SelectedThreadID())
}

// Threads returns the current thread collection. Callers must not modify it.
func (c *Controller) Threads() []model.Thread {
	return c.store.Snapshot().Threads
}

// Loading reports whether the thread list is being fetched.
func (c *Controller) Loading() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.loading
}

// Error returns the thread list error, or "".
func (c *Controller) Error() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.err
}
