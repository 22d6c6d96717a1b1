// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"
	"sync"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/threadline/internal/api"
	"github.com/jeranaias/threadline/internal/controller"
	"github.com/jeranaias/threadline/internal/model"
	"github.com/jeranaias/threadline/internal/store"
	"github.com/jeranaias/threadline/internal/ui/styles"
)

// stubBackend answers every create with thread 9 and records calls.
type stubBackend struct {
	mu      sync.Mutex
	created []api.CreateThreadRequest
	renamed map[model.ThreadID]string
	deleted []model.ThreadID
}

func (b *stubBackend) ListThreads(context.Context) ([]api.ThreadDTO, error) {
	return []api.ThreadDTO{{ID: 1, Title: "Desk booking"}, {ID: 2, Title: "Lunch"}}, nil
}

func (b *stubBackend) CreateThread(_ context.Context, req api.CreateThreadRequest) (*api.Reply, error) {
	b.mu.Lock()
	b.created = append(b.created, req)
	b.mu.Unlock()
	return &api.Reply{Thread: &api.ThreadDTO{
		ID:    9,
		Title: req.Title,
		Messages: []api.MessageDTO{
			{ID: 1, Data: api.MessageData{Role: "user", Content: req.Message}, CreatedAt: "2024-01-01T10:00:00Z"},
			{ID: 2, Data: api.MessageData{Role: "assistant", Content: "**Done**"}, CreatedAt: "2024-01-01T10:00:01Z"},
		},
	}}, nil
}

func (b *stubBackend) PostMessage(context.Context, model.ThreadID, string) (*api.Reply, error) {
	return &api.Reply{Message: &api.MessageDTO{ID: 5, Data: api.MessageData{Role: "assistant", Content: "ok"}}}, nil
}

func (b *stubBackend) RenameThread(_ context.Context, id model.ThreadID, title string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.renamed == nil {
		b.renamed = map[model.ThreadID]string{}
	}
	b.renamed[id] = title
	return nil
}

func (b *stubBackend) DeleteThread(_ context.Context, id model.ThreadID) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.deleted = append(b.deleted, id)
	return nil
}

type openGate struct{}

func (openGate) Expired() bool { return false }

func newTestModel(t *testing.T, threads ...model.Thread) (Model, *controller.Controller, *stubBackend) {
	t.Helper()
	be := &stubBackend{}
	var opts []store.Option
	if len(threads) > 0 {
		opts = append(opts, store.WithThreads(threads))
	}
	ctrl := controller.New(be, openGate{}, controller.WithStore(store.New(opts...)))
	m := New(ctrl, styles.NewTheme(styles.ModeDark), WithPlain(true))
	t.Cleanup(m.Close)

	updated, _ := m.Update(tea.WindowSizeMsg{Width: 100, Height: 30})
	return updated.(Model), ctrl, be
}

// run executes cmd and feeds its message back into m.
func run(t *testing.T, m Model, cmd tea.Cmd) Model {
	t.Helper()
	require.NotNil(t, cmd)
	msg := cmd()
	updated, _ := m.Update(msg)
	return updated.(Model)
}

func keyMsg(k tea.KeyType) tea.KeyMsg { return tea.KeyMsg{Type: k} }

func runes(s string) tea.KeyMsg { return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)} }

func refresh(m Model, ctrl *controller.Controller) Model {
	updated, _ := m.Update(SnapshotMsg{Snapshot: ctrl.Store().Snapshot()})
	return updated.(Model)
}

func TestView_ListsThreads(t *testing.T) {
	m, ctrl, _ := newTestModel(t)
	m = run(t, m, listThreadsCmd(context.Background(), ctrl))
	m = refresh(m, ctrl)

	view := m.View()
	assert.Contains(t, view, "Desk booking")
	assert.Contains(t, view, "Lunch")
	assert.Contains(t, view, model.UntitledLabel)
}

func TestSubmit_CreatesThread(t *testing.T) {
	m, ctrl, be := newTestModel(t)

	updated, _ := m.Update(runes("find a desk"))
	m = updated.(Model)
	updated, cmd := m.Update(keyMsg(tea.KeyEnter))
	m = updated.(Model)
	assert.Empty(t, m.input.Value(), "composer is cleared on send")

	m = run(t, m, cmd)
	m = refresh(m, ctrl)

	require.Len(t, be.created, 1)
	assert.Equal(t, "find a desk", be.created[0].Message)
	assert.Equal(t, model.ThreadID(9), ctrl.SelectedThreadID())

	content := m.renderThread(mustSelected(t, ctrl))
	assert.Contains(t, content, "You")
	assert.Contains(t, content, "find a desk")
	assert.Contains(t, content, "Assistant")
	assert.Contains(t, content, "**Done**", "plain mode leaves markdown untouched")
}

func TestSubmit_BlankDoesNothing(t *testing.T) {
	m, _, _ := newTestModel(t)
	updated, _ := m.Update(runes("   "))
	m = updated.(Model)
	_, cmd := m.Update(keyMsg(tea.KeyEnter))
	assert.Nil(t, cmd)
}

func TestKeys_NewThreadAndNavigation(t *testing.T) {
	m, ctrl, _ := newTestModel(t,
		model.Thread{ID: 1, Title: "one"},
		model.Thread{ID: 2, Title: "two"})

	assert.Equal(t, model.ThreadID(1), ctrl.SelectedThreadID())

	updated, _ := m.Update(keyMsg(tea.KeyTab))
	m = updated.(Model)
	assert.Equal(t, focusList, m.focus)

	updated, _ = m.Update(runes("j"))
	m = updated.(Model)
	assert.Equal(t, model.ThreadID(2), ctrl.SelectedThreadID())

	updated, _ = m.Update(runes("j"))
	m = updated.(Model)
	assert.Equal(t, model.ThreadID(1), ctrl.SelectedThreadID(), "selection wraps")

	updated, _ = m.Update(keyMsg(tea.KeyCtrlN))
	m = updated.(Model)
	assert.True(t, ctrl.SelectedThreadID().Provisional())
	assert.Equal(t, focusInput, m.focus)
	assert.Len(t, ctrl.Threads(), 3)
}

func TestKeys_RenameAndDelete(t *testing.T) {
	m, ctrl, be := newTestModel(t, model.Thread{ID: 1, Title: "one"}, model.Thread{ID: 2, Title: "two"})

	updated, _ := m.Update(keyMsg(tea.KeyTab))
	m = updated.(Model)
	updated, _ = m.Update(runes("r"))
	m = updated.(Model)
	require.True(t, m.renaming)
	assert.Equal(t, "one", m.input.Value())

	m.input.SetValue("renamed")
	updated, cmd := m.Update(keyMsg(tea.KeyEnter))
	m = updated.(Model)
	assert.False(t, m.renaming)
	m = run(t, m, cmd)
	assert.Equal(t, "renamed", be.renamed[1])

	updated, _ = m.Update(keyMsg(tea.KeyTab))
	m = updated.(Model)
	_, cmd = m.Update(runes("d"))
	run(t, m, cmd)
	assert.Equal(t, []model.ThreadID{1}, be.deleted)
	assert.Len(t, ctrl.Threads(), 1)
}

func TestKeys_Quit(t *testing.T) {
	m, _, _ := newTestModel(t)
	_, cmd := m.Update(keyMsg(tea.KeyCtrlC))
	require.NotNil(t, cmd)
	assert.Equal(t, tea.QuitMsg{}, cmd())
}

func TestExpiredMsg_SetsStatus(t *testing.T) {
	m, _, _ := newTestModel(t)
	updated, cmd := m.Update(ExpiredMsg{})
	m = updated.(Model)
	assert.Nil(t, cmd)
	assert.Contains(t, m.status, "Session expired")
	assert.Contains(t, m.View(), "Session expired")
}

func TestRenderThread_ErrorAndTimestamps(t *testing.T) {
	m, ctrl, _ := newTestModel(t, model.Thread{ID: 1, Title: "one", Error: "Failed to fetch",
		Messages: []model.Message{
			{ID: 3, Role: model.RoleUser, Content: "hello", RawCreatedAt: "2024-01-01T10:00:00Z", CreatedAt: "10:00 AM"},
		}})
	m = refresh(m, ctrl)

	content := m.renderThread(mustSelected(t, ctrl))
	assert.Contains(t, content, "You 10:00 AM")
	assert.Contains(t, m.View(), "Failed to fetch")
}

func TestResize(t *testing.T) {
	m, _, _ := newTestModel(t)
	assert.Equal(t, 100-defaultSidebarWidth-3, m.viewport.Width)
	assert.Equal(t, 25, m.viewport.Height)

	updated, _ := m.Update(tea.WindowSizeMsg{Width: 45, Height: 10})
	m = updated.(Model)
	assert.Equal(t, minSidebarWidth, m.sidebarWidth)
	assert.GreaterOrEqual(t, m.viewport.Height, 1)
}

func mustSelected(t *testing.T, ctrl *controller.Controller) model.Thread {
	t.Helper()
	th, ok := ctrl.Selected()
	require.True(t, ok)
	return th
}
