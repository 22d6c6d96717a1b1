// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// send.go - One-shot message command and reply streaming.
//
// Command: send
// Short:   Send a message and print the reply as it streams
//
// Examples:
//   threadline send "find a desk for tomorrow"     Start a new thread
//   threadline send --thread 42 "book it"          Append to thread 42
//   echo "summarize this" | threadline send        Read the message from stdin
//   threadline send --json --title Plans "hello"   Print a JSON result

package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jeranaias/threadline/internal/controller"
	"github.com/jeranaias/threadline/internal/model"
	"github.com/jeranaias/threadline/internal/store"
)

func newSendCommand(g *globalOptions) *cobra.Command {
	var (
		threadArg string
		opts      controller.PostOptions
	)
	cmd := &cobra.Command{
		Use:   "send [message...]",
		Short: "Send a message and print the reply as it streams",
		RunE: func(cmd *cobra.Command, args []string) error {
			text := strings.TrimSpace(strings.Join(args, " "))
			if text == "" && !IsTTY() {
				data, err := io.ReadAll(io.LimitReader(cmd.InOrStdin(), 1<<20))
				if err != nil {
					return NewCommandError("send", "read stdin", "could not read the message", err)
				}
				text = strings.TrimSpace(string(data))
			}
			if text == "" {
				return NewUsageError("message", "", "must not be empty")
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()

			return runWithApp(g, appOptions{backend: true, console: true}, func(a *app) error {
				if err := a.requireSession(); err != nil {
					return err
				}

				var id model.ThreadID
				if threadArg != "" {
					snap, err := a.loadThreads(ctx, false)
					if err != nil {
						return err
					}
					t, err := findThread(snap, threadArg)
					if err != nil {
						return err
					}
					id = t.ID
					a.ctrl.SelectThread(id)
				} else {
					id = a.ctrl.CreateThread()
				}

				out := cmd.OutOrStdout()
				if g.jsonOut {
					out = io.Discard
				}
				result, err := sendMessage(ctx, a.ctrl, id, text, opts, out)
				if err != nil {
					return err
				}
				if g.jsonOut {
					return writeJSON(cmd, result)
				}
				fmt.Fprintln(out)
				fmt.Fprintln(cmd.ErrOrStderr(), MutedStyle.Render("thread "+result.ThreadID.String()))
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&threadArg, "thread", "t", "", "append to this thread instead of starting one")
	cmd.Flags().StringVar(&opts.Title, "title", "", "title of a new thread (default: start of the message)")
	cmd.Flags().StringVar(&opts.Plugin, "plugin", "", "plugin of a new thread")
	return cmd
}

// sendMessage posts text to thread id, copying the reply to w as it
// streams, and returns the final reply.
func sendMessage(ctx context.Context, ctrl *controller.Controller, id model.ThreadID, text string, opts controller.PostOptions, w io.Writer) (SendResult, error) {
	p := startReplyPrinter(ctrl, w)
	err := ctrl.PostMessage(ctx, id, text, opts)
	t, ok := p.stop()
	if err != nil {
		return SendResult{}, NewCommandError("send", "post message", "no reply received", err)
	}
	if !ok {
		return SendResult{}, NewNotFoundError("thread", id.String())
	}
	if t.Error != "" {
		return SendResult{ThreadID: t.ID}, NewCommandError("send", "post message", t.Error, ctx.Err())
	}

	result := SendResult{ThreadID: t.ID}
	if last, ok := t.LastMessage(); ok && last.Role != model.RoleUser {
		result.MessageID = last.ID
		result.Reply = last.Content
	}
	return result, nil
}

// =============================================================================
// REPLY PRINTER
// =============================================================================

// replyPrinter copies the growing reply of the selected thread to w. It
// follows the selection, which moves when a new thread gets its id.
type replyPrinter struct {
	ctrl    *controller.Controller
	w       io.Writer
	reply   int // index of the reply message
	printed int // bytes of the reply already written

	updates <-chan store.Snapshot
	cancel  func()
	done    chan struct{}
}

func startReplyPrinter(ctrl *controller.Controller, w io.Writer) *replyPrinter {
	t, _ := ctrl.Selected()
	p := &replyPrinter{
		ctrl:  ctrl,
		w:     w,
		reply: len(t.Messages) + 1,
		done:  make(chan struct{}),
	}
	p.updates, p.cancel = ctrl.Store().Subscribe()
	go p.run()
	return p
}

func (p *replyPrinter) run() {
	defer close(p.done)
	for snap := range p.updates {
		p.flush(snap)
	}
}

// flush writes whatever part of the reply snap adds.
func (p *replyPrinter) flush(snap store.Snapshot) (model.Thread, bool) {
	t, ok := snap.Find(p.ctrl.SelectedThreadID())
	if !ok {
		return t, false
	}
	if len(t.Messages) > p.reply {
		content := t.Messages[p.reply].Content
		if len(content) > p.printed {
			io.WriteString(p.w, content[p.printed:])
			p.printed = len(content)
		}
	}
	return t, true
}

// stop ends the subscription and writes the rest of the reply.
func (p *replyPrinter) stop() (model.Thread, bool) {
	p.cancel()
	<-p.done
	return p.flush(p.ctrl.Store().Snapshot())
}
