// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// threads.go - Thread browsing and management commands.
//
// Commands: list, show, rename, delete, export
//
// Examples:
//   threadline list                    List threads from the backend
//   threadline list --offline          List threads from the local cache
//   threadline list --search desk      Filter by title or message text
//   threadline show 42                 Print a thread
//   threadline rename 42 Desk booking  Rename a thread
//   threadline delete 42               Delete a thread
//   threadline export 42 --format json Write thread_42_<title>.json

package cli

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/jeranaias/threadline/internal/export"
	"github.com/jeranaias/threadline/internal/model"
	"github.com/jeranaias/threadline/internal/ui/chat"
	"github.com/jeranaias/threadline/internal/ui/styles"
	"github.com/jeranaias/threadline/internal/util"
)

// =============================================================================
// LIST
// =============================================================================

func newListCommand(g *globalOptions) *cobra.Command {
	var (
		search  string
		offline bool
	)
	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List threads",
		Args:    noArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWithApp(g, appOptions{backend: !offline, console: true}, func(a *app) error {
				snap, err := a.loadThreads(cmd.Context(), offline)
				if err != nil {
					return err
				}
				threads := snap.Threads
				if search != "" {
					threads = snap.Search(search)
				}

				rows := make([]ThreadSummary, 0, len(threads))
				for _, t := range threads {
					if t.IsNew {
						continue
					}
					rows = append(rows, summarize(t))
				}
				if g.jsonOut {
					return writeJSON(cmd, rows)
				}
				printThreadTable(cmd.OutOrStdout(), rows, time.Now())
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&search, "search", "s", "", "only threads whose title or messages contain this text")
	cmd.Flags().BoolVar(&offline, "offline", false, "read the local cache instead of the backend")
	return cmd
}

// printThreadTable writes rows as aligned columns sized to the terminal.
func printThreadTable(w io.Writer, rows []ThreadSummary, now time.Time) {
	if len(rows) == 0 {
		fmt.Fprintln(w, MutedStyle.Render("No threads."))
		return
	}

	const (
		idWidth      = 8
		countWidth   = 6
		updatedWidth = 22
	)
	titleWidth := GetTerminalWidth() - idWidth - countWidth - updatedWidth - 3
	if titleWidth < 20 {
		titleWidth = 20
	}

	header := util.PadWidth("ID", idWidth) + " " + util.PadWidth("TITLE", titleWidth) + " " +
		util.PadWidth("MSGS", countWidth) + " " + "UPDATED"
	fmt.Fprintln(w, TitleStyle.Render(header))
	for _, r := range rows {
		fmt.Fprintf(w, "%s %s %s %s\n",
			util.PadWidth(r.ID.String(), idWidth),
			util.PadWidth(util.SingleLine(r.Title), titleWidth),
			util.PadWidth(fmt.Sprint(r.Messages), countWidth),
			MutedStyle.Render(model.FormatTimestamp(r.Updated, now)))
	}
}

// =============================================================================
// SHOW
// =============================================================================

func newShowCommand(g *globalOptions) *cobra.Command {
	var (
		offline bool
		plain   bool
	)
	cmd := &cobra.Command{
		Use:   "show <thread-id>",
		Short: "Print a thread",
		Args:  exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWithApp(g, appOptions{backend: !offline, console: true}, func(a *app) error {
				snap, err := a.loadThreads(cmd.Context(), offline)
				if err != nil {
					return err
				}
				t, err := findThread(snap, args[0])
				if err != nil {
					return err
				}
				if g.jsonOut {
					return writeJSON(cmd, t)
				}

				usePlain := plain || a.cfg.UI.Plain || !ColorsEnabled()
				md := chat.NewMarkdown(styles.NewTheme(a.cfg.UI.Theme).GlamourStyle(), usePlain, a.log)
				md.SetWidth(GetTerminalWidth() - 4)
				printTranscript(cmd.OutOrStdout(), t, md)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&offline, "offline", false, "read the local cache instead of the backend")
	cmd.Flags().BoolVar(&plain, "plain", false, "print replies without markdown rendering")
	return cmd
}

// printTranscript writes every message of t.
func printTranscript(w io.Writer, t model.Thread, md *chat.Markdown) {
	fmt.Fprintln(w, TitleStyle.Render(t.DisplayTitle()))
	fmt.Fprintln(w, RenderSeparator(min(GetTerminalWidth()-4, 60)))
	for _, m := range t.Messages {
		name := MutedStyle.Render(m.Role.DisplayName())
		switch m.Role {
		case model.RoleUser:
			name = UserStyle.Render(m.Role.DisplayName())
		case model.RoleAssistant:
			name = AssistantStyle.Render(m.Role.DisplayName())
		}
		if m.CreatedAt != "" {
			name += " " + MutedStyle.Render(m.CreatedAt)
		}
		fmt.Fprintln(w, name)

		content := m.Content
		if m.Role == model.RoleAssistant {
			content = md.Render(content)
		}
		fmt.Fprintln(w, content)
		fmt.Fprintln(w)
	}
}

// =============================================================================
// RENAME AND DELETE
// =============================================================================

func newRenameCommand(g *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "rename <thread-id> <title>",
		Short: "Rename a thread",
		Args:  minArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			title := strings.TrimSpace(strings.Join(args[1:], " "))
			if title == "" {
				return NewUsageError("title", "", "must not be empty")
			}
			return runWithApp(g, appOptions{backend: true, console: true}, func(a *app) error {
				snap, err := a.loadThreads(cmd.Context(), false)
				if err != nil {
					return err
				}
				t, err := findThread(snap, args[0])
				if err != nil {
					return err
				}

				a.ctrl.RenameThread(cmd.Context(), t.ID, title)
				after, _ := a.ctrl.Store().Snapshot().Find(t.ID)
				if after.Error != "" {
					return NewCommandError("rename", "rename thread "+t.ID.String(), after.Error, nil)
				}
				if g.jsonOut {
					return writeJSON(cmd, summarize(after))
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s thread %s to %q\n", SuccessStyle.Render("Renamed"), t.ID, after.Title)
				return nil
			})
		},
	}
}

func newDeleteCommand(g *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:     "delete <thread-id>",
		Aliases: []string{"rm"},
		Short:   "Delete a thread",
		Args:    exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWithApp(g, appOptions{backend: true, console: true}, func(a *app) error {
				snap, err := a.loadThreads(cmd.Context(), false)
				if err != nil {
					return err
				}
				t, err := findThread(snap, args[0])
				if err != nil {
					return err
				}

				a.ctrl.DeleteThread(cmd.Context(), t.ID)
				if after, ok := a.ctrl.Store().Snapshot().Find(t.ID); ok {
					return NewCommandError("delete", "delete thread "+t.ID.String(), after.Error, nil)
				}
				if g.jsonOut {
					return writeJSON(cmd, map[string]any{"deleted": t.ID})
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s thread %s\n", SuccessStyle.Render("Deleted"), t.ID)
				return nil
			})
		},
	}
}

// =============================================================================
// EXPORT
// =============================================================================

func newExportCommand(g *globalOptions) *cobra.Command {
	var (
		format     string
		outDir     string
		offline    bool
		noMetadata bool
	)
	cmd := &cobra.Command{
		Use:   "export <thread-id>",
		Short: "Export a thread to a markdown or JSON file",
		Args:  exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := export.DefaultOptions()
			opts.OutputDir = outDir
			opts.IncludeMetadata = !noMetadata
			exporter, err := export.ForFormat(format, opts)
			if errors.Is(err, export.ErrUnknownFormat) {
				return NewUsageError("format", format, "must be one of "+strings.Join(export.Formats(), ", "))
			}
			if err != nil {
				return err
			}

			return runWithApp(g, appOptions{backend: !offline, console: true}, func(a *app) error {
				snap, err := a.loadThreads(cmd.Context(), offline)
				if err != nil {
					return err
				}
				t, err := findThread(snap, args[0])
				if err != nil {
					return err
				}
				path, err := export.ToFile(t, exporter, opts)
				if err != nil {
					return NewCommandError("export", "write file", "thread "+t.ID.String(), err)
				}
				if g.jsonOut {
					return writeJSON(cmd, map[string]any{"thread_id": t.ID, "path": path})
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", SuccessStyle.Render("Exported"), path)
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", "markdown", "export format: "+strings.Join(export.Formats(), ", "))
	cmd.Flags().StringVarP(&outDir, "out", "o", ".", "output directory")
	cmd.Flags().BoolVar(&offline, "offline", false, "read the local cache instead of the backend")
	cmd.Flags().BoolVar(&noMetadata, "no-metadata", false, "omit the frontmatter header")
	return cmd
}
