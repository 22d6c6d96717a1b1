// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/threadline/internal/controller"
	"github.com/jeranaias/threadline/internal/model"
	"github.com/jeranaias/threadline/internal/store"
)

// =============================================================================
// MESSAGES
// =============================================================================

// SnapshotMsg carries a new store snapshot to the view.
type SnapshotMsg struct {
	Snapshot store.Snapshot
}

// ExpiredMsg reports that the credential can no longer be used.
type ExpiredMsg struct{}

// OpDoneMsg reports that a controller operation finished. Err is only set
// for failures the controller does not record on the thread itself.
type OpDoneMsg struct {
	Op  string
	Err error
}

// =============================================================================
// COMMANDS
// =============================================================================

// waitForSnapshot blocks until the store publishes. A closed subscription
// ends the loop.
func waitForSnapshot(updates <-chan store.Snapshot) tea.Cmd {
	return func() tea.Msg {
		snap, ok := <-updates
		if !ok {
			return nil
		}
		return SnapshotMsg{Snapshot: snap}
	}
}

func listThreadsCmd(ctx context.Context, ctrl *controller.Controller) tea.Cmd {
	return func() tea.Msg {
		ctrl.ListThreads(ctx)
		return OpDoneMsg{Op: "list"}
	}
}

func postMessageCmd(ctx context.Context, ctrl *controller.Controller, id model.ThreadID, text string) tea.Cmd {
	return func() tea.Msg {
		err := ctrl.PostMessage(ctx, id, text, controller.PostOptions{})
		return OpDoneMsg{Op: "post", Err: err}
	}
}

func deleteThreadCmd(ctx context.Context, ctrl *controller.Controller, id model.ThreadID) tea.Cmd {
	return func() tea.Msg {
		ctrl.DeleteThread(ctx, id)
		return OpDoneMsg{Op: "delete"}
	}
}

func renameThreadCmd(ctx context.Context, ctrl *controller.Controller, id model.ThreadID, title string) tea.Cmd {
	return func() tea.Msg {
		ctrl.RenameThread(ctx, id, title)
		return OpDoneMsg{Op: "rename"}
	}
}
