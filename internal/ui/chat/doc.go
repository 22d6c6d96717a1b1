// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

/*
Package chat implements the interactive Bubble Tea view of threadline.

The view never owns conversation state. It renders the latest store.Snapshot
delivered by the store subscription and turns key presses into controller
operations, which run as tea.Cmds off the UI goroutine.

# Key Types

  - Model: the Bubble Tea model (thread sidebar, transcript, composer)
  - KeyMap: key bindings, shown through bubbles/help
  - Markdown: glamour renderer for assistant replies with a small cache

# Layout

	┌ threadline ─ Desk booking ─────────────────────┐
	│ Desk booking  │ You 9:59 AM                    │
	│ Lunch         │ find a desk for tomorrow       │
	│ New chat      │ Assistant 10:00 AM             │
	│               │ Sure, checking...              │
	│               │ > _                            │
	└ tab focus · ctrl+n new · d delete · q quit ────┘

# Usage

	ctrl := controller.New(client, gate)
	m := chat.New(ctrl, styles.NewTheme(cfg.UI.Theme))
	_, err := tea.NewProgram(m, tea.WithAltScreen()).Run()
*/
package chat
