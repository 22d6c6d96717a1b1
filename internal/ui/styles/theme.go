// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package styles

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
)

// Theme modes accepted by NewTheme.
const (
	ModeAuto  = "auto"
	ModeDark  = "dark"
	ModeLight = "light"
)

// Theme holds the styled components of the application.
type Theme struct {
	// Terminal capabilities
	IsDark       bool
	ColorProfile termenv.Profile

	// ==========================================================================
	// LAYOUT
	// ==========================================================================

	Header      lipgloss.Style
	HeaderTitle lipgloss.Style
	Sidebar     lipgloss.Style
	Main        lipgloss.Style
	StatusBar   lipgloss.Style

	// ==========================================================================
	// THREAD LIST
	// ==========================================================================

	ThreadItem     lipgloss.Style
	ThreadSelected lipgloss.Style
	ThreadUnsaved  lipgloss.Style
	ThreadError    lipgloss.Style

	// ==========================================================================
	// MESSAGES
	// ==========================================================================

	UserName      lipgloss.Style
	AssistantName lipgloss.Style
	PendingName   lipgloss.Style
	Timestamp     lipgloss.Style
	Body          lipgloss.Style

	// ==========================================================================
	// INPUT AND FEEDBACK
	// ==========================================================================

	InputPrompt lipgloss.Style
	Error       lipgloss.Style
	Muted       lipgloss.Style
	Spinner     lipgloss.Style
}

// NewTheme creates a theme. mode "dark" or "light" forces the palette;
// anything else asks the terminal.
func NewTheme(mode string) *Theme {
	t := &Theme{ColorProfile: termenv.ColorProfile()}

	switch strings.ToLower(mode) {
	case ModeDark:
		t.IsDark = true
		lipgloss.SetHasDarkBackground(true)
	case ModeLight:
		t.IsDark = false
		lipgloss.SetHasDarkBackground(false)
	default:
		t.IsDark = termenv.HasDarkBackground()
	}

	t.initStyles()
	return t
}

// GlamourStyle names the glamour standard style matching the theme.
func (t *Theme) GlamourStyle() string {
	if t.ColorProfile == termenv.Ascii {
		return "notty"
	}
	if t.IsDark {
		return "dark"
	}
	return "light"
}

func (t *Theme) initStyles() {
	t.Header = lipgloss.NewStyle().
		Background(SurfaceDim).
		Padding(0, 1)
	t.HeaderTitle = lipgloss.NewStyle().
		Bold(true).
		Foreground(Purple)
	t.Sidebar = lipgloss.NewStyle().
		BorderStyle(lipgloss.NormalBorder()).
		BorderRight(true).
		BorderForeground(Overlay).
		PaddingRight(1)
	t.Main = lipgloss.NewStyle().
		PaddingLeft(1)
	t.StatusBar = lipgloss.NewStyle().
		Foreground(TextMuted).
		Background(SurfaceDim).
		Padding(0, 1)

	t.ThreadItem = lipgloss.NewStyle().
		Foreground(TextPrimary)
	t.ThreadSelected = lipgloss.NewStyle().
		Bold(true).
		Foreground(Purple).
		Background(SurfaceBright)
	t.ThreadUnsaved = lipgloss.NewStyle().
		Italic(true).
		Foreground(Amber)
	t.ThreadError = lipgloss.NewStyle().
		Foreground(Rose)

	t.UserName = lipgloss.NewStyle().
		Bold(true).
		Foreground(Cyan)
	t.AssistantName = lipgloss.NewStyle().
		Bold(true).
		Foreground(Purple)
	t.PendingName = lipgloss.NewStyle().
		Italic(true).
		Foreground(TextMuted)
	t.Timestamp = lipgloss.NewStyle().
		Foreground(TextMuted)
	t.Body = lipgloss.NewStyle().
		Foreground(TextPrimary)

	t.InputPrompt = lipgloss.NewStyle().
		Bold(true).
		Foreground(Cyan)
	t.Error = lipgloss.NewStyle().
		Bold(true).
		Foreground(Rose)
	t.Muted = lipgloss.NewStyle().
		Foreground(TextSecondary)
	t.Spinner = lipgloss.NewStyle().
		Foreground(Purple)
}
