// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// chat.go - Interactive line-mode chat for threadline CLI.
//
// USABILITY: Line editing and history for the REPL
//
// Command: chat
// Short:   Chat in the terminal without the full-screen interface
//
// Examples:
//   threadline chat               Start a new thread
//   threadline chat --thread 42   Continue thread 42
//
// Interactive Commands (during chat):
//   /help, /h           Show available commands
//   /new                Start a new thread
//   /threads            List threads
//   /switch <id>        Continue another thread
//   /rename <title>     Rename the current thread
//   /delete             Delete the current thread
//   /quit, /q           Exit chat
//   Ctrl+C              Cancel the reply being received
//   Ctrl+D              Exit chat

package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"github.com/peterh/liner"
	"github.com/spf13/cobra"

	"github.com/jeranaias/threadline/internal/config"
	"github.com/jeranaias/threadline/internal/controller"
	"github.com/jeranaias/threadline/internal/model"
	"github.com/jeranaias/threadline/internal/util"
)

// =============================================================================
// INPUT HISTORY
// =============================================================================

// ChatCLI provides input history and line editing for interactive chat.
type ChatCLI struct {
	line        *liner.State
	historyFile string
}

// NewChatCLI creates a ChatCLI with history stored in the config directory.
func NewChatCLI() *ChatCLI {
	line := liner.NewLiner()
	line.SetCtrlCAborts(true)

	configDir, err := config.ConfigDir()
	if err != nil {
		configDir = os.TempDir()
	}

	c := &ChatCLI{
		line:        line,
		historyFile: filepath.Join(configDir, "chat_history"),
	}
	c.LoadHistory()
	return c
}

// LoadHistory loads command history from file.
func (c *ChatCLI) LoadHistory() {
	if f, err := os.Open(c.historyFile); err == nil {
		c.line.ReadHistory(f)
		f.Close()
	}
}

// ReadInput reads a line of input with the given prompt.
func (c *ChatCLI) ReadInput(prompt string) (string, error) {
	input, err := c.line.Prompt(prompt)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(input) != "" {
		c.line.AppendHistory(input)
	}
	return input, nil
}

// SaveHistory writes command history to file.
// SECURITY: History holds message text, so the file is owner-only.
func (c *ChatCLI) SaveHistory() {
	if err := os.MkdirAll(filepath.Dir(c.historyFile), util.DefaultDirPerm); err != nil {
		return
	}
	f, err := os.OpenFile(c.historyFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return
	}
	defer f.Close()
	c.line.WriteHistory(f)
}

// Close saves history and restores the terminal.
func (c *ChatCLI) Close() {
	c.SaveHistory()
	c.line.Close()
}

// =============================================================================
// CHAT COMMAND
// =============================================================================

func newChatCommand(g *globalOptions) *cobra.Command {
	var threadArg string
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Chat in the terminal without the full-screen interface",
		Args:  noArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !IsTTY() {
				return NewCommandError("chat", "start", "stdin is not a terminal; use `threadline send` instead", nil)
			}
			errOut := cmd.ErrOrStderr()
			opts := appOptions{
				backend: true,
				console: true,
				onExpired: func() {
					fmt.Fprintln(errOut, WarningStyle.Render("Session expired. Update the token; messages are not sent until then."))
				},
			}
			return runWithApp(g, opts, func(a *app) error {
				return runChat(cmd.Context(), a, threadArg, cmd.OutOrStdout(), errOut)
			})
		},
	}
	cmd.Flags().StringVarP(&threadArg, "thread", "t", "", "continue this thread")
	return cmd
}

// chatSession is the state of one interactive chat.
type chatSession struct {
	ctx    context.Context
	ctrl   *controller.Controller
	out    io.Writer
	errOut io.Writer
}

func runChat(ctx context.Context, a *app, threadArg string, out, errOut io.Writer) error {
	if err := a.requireSession(); err != nil {
		return err
	}
	snap, err := a.loadThreads(ctx, false)
	if err != nil {
		return err
	}
	if threadArg != "" {
		t, err := findThread(snap, threadArg)
		if err != nil {
			return err
		}
		a.ctrl.SelectThread(t.ID)
	} else {
		a.ctrl.CreateThread()
	}

	s := &chatSession{ctx: ctx, ctrl: a.ctrl, out: out, errOut: errOut}
	in := NewChatCLI()
	defer in.Close()

	s.printWelcome()
	for {
		input, err := in.ReadInput("you> ")
		if errors.Is(err, liner.ErrPromptAborted) {
			continue
		}
		if errors.Is(err, io.EOF) {
			fmt.Fprintln(out)
			return nil
		}
		if err != nil {
			return NewCommandError("chat", "read input", "terminal error", err)
		}

		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}
		if strings.HasPrefix(input, "/") {
			if quit := s.handleSlashCommand(input); quit {
				return nil
			}
			continue
		}
		s.send(input)
	}
}

// send posts input to the current thread. Ctrl+C cancels the request
// without leaving the chat.
func (s *chatSession) send(input string) {
	ctx, stop := signal.NotifyContext(s.ctx, os.Interrupt)
	defer stop()

	fmt.Fprint(s.out, AssistantStyle.Render("assistant> "))
	_, err := sendMessage(ctx, s.ctrl, s.ctrl.SelectedThreadID(), input, controller.PostOptions{}, s.out)
	fmt.Fprintln(s.out)
	if err != nil {
		fmt.Fprintln(s.errOut, ErrorStyle.Render(err.Error()))
	}
}

// handleSlashCommand runs a /command and reports whether the chat should end.
func (s *chatSession) handleSlashCommand(input string) bool {
	name, arg, _ := strings.Cut(input, " ")
	arg = strings.TrimSpace(arg)

	switch strings.ToLower(name) {
	case "/quit", "/q", "/exit":
		return true

	case "/help", "/h":
		s.printHelp()

	case "/new":
		s.ctrl.CreateThread()
		fmt.Fprintln(s.out, MutedStyle.Render("Started a new thread."))

	case "/threads":
		cur := s.ctrl.SelectedThreadID()
		for _, t := range s.ctrl.Threads() {
			marker := "  "
			if t.ID == cur {
				marker = "> "
			}
			id := t.ID.String()
			if t.IsNew {
				id = "new"
			}
			fmt.Fprintf(s.out, "%s%s %s\n", marker, util.PadWidth(id, 8), util.TruncateWidth(t.DisplayTitle(), 60))
		}

	case "/switch":
		id, err := parseThreadID(arg)
		if err != nil {
			fmt.Fprintln(s.errOut, ErrorStyle.Render(err.Error()))
			break
		}
		t, ok := s.ctrl.Store().Snapshot().Find(id)
		if !ok {
			fmt.Fprintln(s.errOut, ErrorStyle.Render(NewNotFoundError("thread", arg).Error()))
			break
		}
		s.ctrl.SelectThread(id)
		fmt.Fprintf(s.out, "%s %s\n", MutedStyle.Render("Switched to"), t.DisplayTitle())

	case "/rename":
		if arg == "" {
			fmt.Fprintln(s.errOut, ErrorStyle.Render("usage: /rename <title>"))
			break
		}
		id := s.ctrl.SelectedThreadID()
		s.ctrl.RenameThread(s.ctx, id, arg)
		s.reportThreadError(id)

	case "/delete":
		id := s.ctrl.SelectedThreadID()
		s.ctrl.DeleteThread(s.ctx, id)
		if !s.reportThreadError(id) {
			fmt.Fprintln(s.out, MutedStyle.Render("Deleted the thread."))
		}

	default:
		fmt.Fprintf(s.errOut, "%s %s (try /help)\n", ErrorStyle.Render("Unknown command:"), name)
	}
	return false
}

// reportThreadError prints the error state of thread id, if any.
func (s *chatSession) reportThreadError(id model.ThreadID) bool {
	t, ok := s.ctrl.Store().Snapshot().Find(id)
	if ok && t.Error != "" {
		fmt.Fprintln(s.errOut, ErrorStyle.Render(t.Error))
		return true
	}
	return false
}

func (s *chatSession) printWelcome() {
	title := model.UntitledLabel
	if t, ok := s.ctrl.Selected(); ok && !t.IsNew {
		title = t.DisplayTitle()
	}
	fmt.Fprintln(s.out, TitleStyle.Render("threadline chat")+" "+MutedStyle.Render("· "+title))
	fmt.Fprintln(s.out, MutedStyle.Render("Type a message and press Enter. /help lists commands, Ctrl+D exits."))
	fmt.Fprintln(s.out)
}

func (s *chatSession) printHelp() {
	rows := [][2]string{
		{"/new", "start a new thread"},
		{"/threads", "list threads"},
		{"/switch <id>", "continue another thread"},
		{"/rename <title>", "rename the current thread"},
		{"/delete", "delete the current thread"},
		{"/quit", "exit"},
	}
	for _, r := range rows {
		fmt.Fprintln(s.out, RenderLabel(r[0])+ValueStyle.Render(r[1]))
	}
}
