// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// tui.go - Full-screen interface, the default command.

package cli

import (
	"errors"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/jeranaias/threadline/internal/ui/chat"
	"github.com/jeranaias/threadline/internal/ui/styles"
)

// runTUI opens the Bubble Tea interface. Without a terminal it prints help.
func runTUI(cmd *cobra.Command, g *globalOptions) error {
	if !IsTTY() || !IsStdoutTTY() {
		return cmd.Help()
	}

	var prog *tea.Program
	opts := appOptions{
		backend: true,
		onExpired: func() {
			if prog != nil {
				prog.Send(chat.ExpiredMsg{})
			}
		},
	}
	return runWithApp(g, opts, func(a *app) error {
		m := chat.New(a.ctrl, styles.NewTheme(a.cfg.UI.Theme),
			chat.WithLogger(a.log),
			chat.WithPlain(a.cfg.UI.Plain),
			chat.WithContext(cmd.Context()))

		prog = tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(cmd.Context()))
		final, err := prog.Run()
		if fm, ok := final.(chat.Model); ok {
			fm.Close()
		}
		if errors.Is(err, tea.ErrProgramKilled) {
			return nil
		}
		return err
	})
}
