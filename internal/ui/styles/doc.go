// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

/*
Package styles provides the visual styling of the threadline TUI.

All colors use Lip Gloss AdaptiveColor so one palette serves light and dark
terminals.

# Color System (colors.go)

  - Purple - assistant messages and the selected thread
  - Cyan - user messages and prompts
  - Amber - unsaved threads
  - Rose - request errors

# Theme (theme.go)

NewTheme builds every lipgloss.Style the chat view uses. The mode comes from
the ui.theme setting: "dark" and "light" force a palette, "auto" asks the
terminal through termenv. GlamourStyle names the matching glamour style for
markdown rendering.

# Usage

	theme := styles.NewTheme(cfg.UI.Theme)
	title := theme.HeaderTitle.Render(thread.DisplayTitle())
*/
package styles
