// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"

	"github.com/jeranaias/threadline/internal/controller"
	"github.com/jeranaias/threadline/internal/model"
	"github.com/jeranaias/threadline/internal/store"
	"github.com/jeranaias/threadline/internal/ui/styles"
)

// focusArea is the pane receiving key presses.
type focusArea int

const (
	focusInput focusArea = iota
	focusList
)

const (
	defaultSidebarWidth = 28
	minSidebarWidth     = 16
	inputCharLimit      = 4096
)

// Model is the Bubble Tea model of the chat view.
type Model struct {
	ctrl  *controller.Controller
	theme *styles.Theme
	keys  KeyMap
	help  help.Model
	md    *Markdown
	log   *zap.Logger

	ctx    context.Context
	cancel context.CancelFunc

	updates     <-chan store.Snapshot
	unsubscribe func()
	snapshot    store.Snapshot

	viewport viewport.Model
	input    textinput.Model
	spinner  spinner.Model

	focus    focusArea
	renaming bool
	status   string

	width        int
	height       int
	sidebarWidth int
}

// Option configures a Model.
type Option func(*Model)

// WithLogger sets the logger. The TUI owns the terminal, so it must not
// write to stderr.
func WithLogger(log *zap.Logger) Option {
	return func(m *Model) { m.log = log }
}

// WithPlain disables markdown rendering.
func WithPlain(plain bool) Option {
	return func(m *Model) {
		if plain {
			m.md.plain = true
		}
	}
}

// WithContext sets the parent context of controller operations.
func WithContext(ctx context.Context) Option {
	return func(m *Model) { m.ctx = ctx }
}

// New creates the chat model and subscribes it to the controller's store.
func New(ctrl *controller.Controller, theme *styles.Theme, opts ...Option) Model {
	ti := textinput.New()
	ti.Prompt = "> "
	ti.Placeholder = "Type a message..."
	ti.CharLimit = inputCharLimit
	ti.PromptStyle = theme.InputPrompt
	ti.Focus()

	sp := spinner.New(spinner.WithSpinner(spinner.Dot), spinner.WithStyle(theme.Spinner))

	m := Model{
		ctrl:         ctrl,
		theme:        theme,
		keys:         DefaultKeyMap(),
		help:         help.New(),
		md:           NewMarkdown(theme.GlamourStyle(), false, nil),
		log:          zap.NewNop(),
		ctx:          context.Background(),
		viewport:     viewport.New(80, 20),
		input:        ti,
		spinner:      sp,
		focus:        focusInput,
		sidebarWidth: defaultSidebarWidth,
	}
	for _, opt := range opts {
		opt(&m)
	}
	m.log = m.log.Named("tui")
	m.md.log = m.log
	m.ctx, m.cancel = context.WithCancel(m.ctx)

	m.updates, m.unsubscribe = ctrl.Store().Subscribe()
	m.snapshot = ctrl.Store().Snapshot()
	m.refreshViewport()
	return m
}

// =============================================================================
// BUBBLE TEA INTERFACE
// =============================================================================

// Init starts the snapshot loop and the first thread list fetch.
func (m Model) Init() tea.Cmd {
	return tea.Batch(
		textinput.Blink,
		m.spinner.Tick,
		waitForSnapshot(m.updates),
		listThreadsCmd(m.ctx, m.ctrl),
	)
}

// Update handles messages and updates the model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		return m.handleResize(msg)

	case tea.KeyMsg:
		return m.handleKey(msg)

	case SnapshotMsg:
		m.snapshot = msg.Snapshot
		m.refreshViewport()
		return m, waitForSnapshot(m.updates)

	case OpDoneMsg:
		if msg.Err != nil {
			m.status = msg.Err.Error()
			m.log.Debug("operation failed", zap.String("op", msg.Op), zap.Error(msg.Err))
		}
		return m, nil

	case ExpiredMsg:
		m.status = "Session expired. Update the token and restart threadline."
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		if m.busy() {
			m.refreshViewport()
		}
		return m, cmd
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// Close cancels in-flight operations and ends the store subscription.
func (m Model) Close() {
	m.cancel()
	m.unsubscribe()
}

// =============================================================================
// MESSAGE HANDLERS
// =============================================================================

func (m Model) handleResize(msg tea.WindowSizeMsg) (tea.Model, tea.Cmd) {
	m.width = msg.Width
	m.height = msg.Height

	// Layout: header (1) + transcript + error line (1) + input (1) + status bar (1)
	const reserved = 4

	m.sidebarWidth = defaultSidebarWidth
	if m.width/3 < m.sidebarWidth {
		m.sidebarWidth = max(minSidebarWidth, m.width/3)
	}
	mainWidth := max(1, m.width-m.sidebarWidth-3)

	m.viewport.Width = mainWidth
	m.viewport.Height = max(1, m.height-reserved-1)
	m.input.Width = max(10, mainWidth-len(m.input.Prompt)-1)
	m.help.Width = m.width
	m.md.SetWidth(mainWidth - 2)

	m.refreshViewport()
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.ForceQuit):
		m.Close()
		return m, tea.Quit

	case key.Matches(msg, m.keys.NewThread):
		m.ctrl.CreateThread()
		m.renaming = false
		return m.focusComposer()

	case key.Matches(msg, m.keys.Focus):
		if m.focus == focusInput {
			m.focus = focusList
			m.input.Blur()
			return m, nil
		}
		return m.focusComposer()

	case key.Matches(msg, m.keys.Refresh):
		return m, listThreadsCmd(m.ctx, m.ctrl)

	case key.Matches(msg, m.keys.PageUp):
		m.viewport.HalfViewUp()
		return m, nil

	case key.Matches(msg, m.keys.PageDown):
		m.viewport.HalfViewDown()
		return m, nil
	}

	if m.focus == focusList {
		return m.handleListKey(msg)
	}
	return m.handleInputKey(msg)
}

func (m Model) handleListKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		m.Close()
		return m, tea.Quit

	case key.Matches(msg, m.keys.Up):
		m.moveSelection(-1)
		return m, nil

	case key.Matches(msg, m.keys.Down):
		m.moveSelection(1)
		return m, nil

	case key.Matches(msg, m.keys.Submit):
		return m.focusComposer()

	case key.Matches(msg, m.keys.Delete):
		id := m.ctrl.SelectedThreadID()
		if id == model.NoThread {
			return m, nil
		}
		return m, deleteThreadCmd(m.ctx, m.ctrl, id)

	case key.Matches(msg, m.keys.Rename):
		t, ok := m.ctrl.Selected()
		if !ok {
			return m, nil
		}
		m.renaming = true
		m.input.SetValue(t.Title)
		m.input.CursorEnd()
		return m.focusComposer()

	case key.Matches(msg, m.keys.Help):
		m.help.ShowAll = !m.help.ShowAll
		return m, nil
	}
	return m, nil
}

func (m Model) handleInputKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Cancel):
		if m.renaming {
			m.renaming = false
			m.input.Reset()
		}
		m.focus = focusList
		m.input.Blur()
		return m, nil

	case key.Matches(msg, m.keys.Submit):
		return m.submit()
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// submit sends the composer content as a message or, while renaming, as the
// new title of the selected thread.
func (m Model) submit() (tea.Model, tea.Cmd) {
	text := strings.TrimSpace(m.input.Value())
	id := m.ctrl.SelectedThreadID()
	if id == model.NoThread {
		return m, nil
	}

	if m.renaming {
		m.renaming = false
		m.input.Reset()
		if text == "" {
			return m, nil
		}
		return m, renameThreadCmd(m.ctx, m.ctrl, id, text)
	}

	if text == "" {
		return m, nil
	}
	m.input.Reset()
	m.status = ""
	m.viewport.GotoBottom()
	return m, postMessageCmd(m.ctx, m.ctrl, id, text)
}

func (m Model) focusComposer() (tea.Model, tea.Cmd) {
	m.focus = focusInput
	m.refreshViewport()
	return m, m.input.Focus()
}

// moveSelection selects the thread delta rows away from the current one.
func (m *Model) moveSelection(delta int) {
	threads := m.snapshot.Threads
	if len(threads) == 0 {
		return
	}
	current := m.ctrl.SelectedThreadID()
	i := 0
	for j, t := range threads {
		if t.ID == current {
			i = j
			break
		}
	}
	i = (i + delta + len(threads)) % len(threads)
	m.ctrl.SelectThread(threads[i].ID)
	m.refreshViewport()
}

// busy reports whether a spinner should be shown.
func (m Model) busy() bool {
	if m.ctrl.Loading() {
		return true
	}
	t, ok := m.snapshot.Find(m.ctrl.SelectedThreadID())
	return ok && t.Loading
}

// refreshViewport re-renders the selected thread into the viewport, keeping
// the scroll pinned to the bottom when it was there.
func (m *Model) refreshViewport() {
	atBottom := m.viewport.AtBottom()
	t, ok := m.snapshot.Find(m.ctrl.SelectedThreadID())
	if !ok {
		m.viewport.SetContent("")
		return
	}
	m.viewport.SetContent(m.renderThread(t))
	if atBottom {
		m.viewport.GotoBottom()
	}
}
