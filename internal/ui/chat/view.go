// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/jeranaias/threadline/internal/model"
	"github.com/jeranaias/threadline/internal/util"
)

// =============================================================================
// VIEW
// =============================================================================

// View renders the whole screen.
func (m Model) View() string {
	header := m.renderHeader()
	body := lipgloss.JoinHorizontal(lipgloss.Top, m.renderSidebar(), m.renderMain())
	return lipgloss.JoinVertical(lipgloss.Left, header, body, m.renderStatusBar())
}

func (m Model) renderHeader() string {
	title := "threadline"
	if t, ok := m.snapshot.Find(m.ctrl.SelectedThreadID()); ok {
		title += " · " + util.SingleLine(t.DisplayTitle())
	}
	width := m.width
	if width <= 0 {
		width = 80
	}
	return m.theme.Header.Width(width).Render(
		m.theme.HeaderTitle.Render(util.TruncateWidth(title, max(1, width-2))))
}

// renderSidebar lists the threads, one row each. Unsaved threads are marked
// "*", failed ones "!".
func (m Model) renderSidebar() string {
	width := m.sidebarWidth
	selected := m.ctrl.SelectedThreadID()

	var rows []string
	if m.ctrl.Loading() {
		rows = append(rows, m.theme.Muted.Render(m.spinner.View()+" loading"))
	}
	if msg := m.ctrl.Error(); msg != "" {
		rows = append(rows, m.theme.Error.Render(util.TruncateWidth(msg, width)))
	}

	for _, t := range m.snapshot.Threads {
		marker := " "
		switch {
		case t.Error != "":
			marker = "!"
		case t.IsNew:
			marker = "*"
		}
		label := util.PadWidth(marker+" "+util.SingleLine(t.DisplayTitle()), width)

		style := m.theme.ThreadItem
		switch {
		case t.ID == selected:
			style = m.theme.ThreadSelected
		case t.Error != "":
			style = m.theme.ThreadError
		case t.IsNew:
			style = m.theme.ThreadUnsaved
		}
		rows = append(rows, style.Render(label))
	}

	height := m.viewport.Height + 2
	return m.theme.Sidebar.Height(height).Width(width).Render(strings.Join(rows, "\n"))
}

func (m Model) renderMain() string {
	var errLine string
	if t, ok := m.snapshot.Find(m.ctrl.SelectedThreadID()); ok && t.Error != "" {
		errLine = m.theme.Error.Render(t.Error)
	} else if m.status != "" {
		errLine = m.theme.Error.Render(m.status)
	}

	input := m.input.View()
	if m.renaming {
		input = m.theme.Muted.Render("rename: ") + input
	}
	return m.theme.Main.Render(lipgloss.JoinVertical(lipgloss.Left, m.viewport.View(), errLine, input))
}

func (m Model) renderStatusBar() string {
	width := m.width
	if width <= 0 {
		width = 80
	}
	var help string
	if m.help.ShowAll {
		help = m.help.FullHelpView(m.keys.FullHelp())
	} else {
		help = m.help.ShortHelpView(m.keys.ShortHelp())
	}
	return m.theme.StatusBar.Width(width).Render(help)
}

// =============================================================================
// TRANSCRIPT
// =============================================================================

// renderThread renders every message of t. Assistant content goes through
// markdown; user content is shown as typed.
func (m Model) renderThread(t model.Thread) string {
	if len(t.Messages) == 0 {
		return m.theme.Muted.Render("No messages yet. Type below to start the thread.")
	}

	var b strings.Builder
	for i, msg := range t.Messages {
		if i > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(m.renderMessageHeader(msg))
		b.WriteString("\n")

		switch {
		case msg.Role == model.RoleAssistant && msg.HasTimestamp():
			b.WriteString(m.md.Render(msg.Content))
		case msg.Content == "":
			b.WriteString(m.theme.Muted.Render(m.spinner.View()))
		default:
			b.WriteString(m.theme.Body.Width(max(1, m.viewport.Width-2)).Render(msg.Content))
		}
	}

	if t.AwaitingReply {
		if last, ok := t.LastMessage(); ok && last.Role == model.RoleUser {
			b.WriteString("\n\n")
			b.WriteString(m.theme.Muted.Render(m.spinner.View() + " Waiting for reply..."))
		}
	}
	return b.String()
}

func (m Model) renderMessageHeader(msg model.Message) string {
	var name string
	switch msg.Role {
	case model.RoleUser:
		name = m.theme.UserName.Render(msg.Role.DisplayName())
	case model.RoleAssistant:
		name = m.theme.AssistantName.Render(msg.Role.DisplayName())
	default:
		name = m.theme.PendingName.Render(msg.Role.DisplayName())
	}
	if msg.CreatedAt == "" {
		return name
	}
	return name + " " + m.theme.Timestamp.Render(msg.CreatedAt)
}
