// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// cli.go - Root command and entry point of the threadline CLI.

package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/multierr"

	"github.com/jeranaias/threadline/internal/model"
	"github.com/jeranaias/threadline/internal/store"
)

// Version information (can be overridden at build time)
var (
	Version   = "0.1.0"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// Execute runs the CLI and returns the process exit code.
func Execute() int {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM)
	defer stop()

	root := NewRootCommand(os.Stdout, os.Stderr)
	cmd, err := root.ExecuteContextC(ctx)
	if err == nil {
		return ExitSuccess
	}

	jsonMode, _ := root.PersistentFlags().GetBool("json")
	w := io.Writer(os.Stderr)
	if jsonMode {
		w = os.Stdout
	}
	name := root.Name()
	if cmd != nil {
		name = cmd.Name()
	}
	DisplayError(w, err, jsonMode, name)
	return ExitCode(err)
}

// NewRootCommand builds the command tree writing to out and errOut.
func NewRootCommand(out, errOut io.Writer) *cobra.Command {
	g := &globalOptions{}

	root := &cobra.Command{
		Use:   "threadline",
		Short: "Chat with the assistant from your terminal",
		Long: `threadline keeps your assistant conversations as threads.

Run without arguments to open the full-screen interface. Use the
subcommands to script against the same threads.`,
		Version:       fmt.Sprintf("%s (commit %s, built %s)", Version, GitCommit, BuildDate),
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          noArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTUI(cmd, g)
		},
	}
	root.SetOut(out)
	root.SetErr(errOut)
	root.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return NewUsageError("flag", "", err.Error())
	})

	pf := root.PersistentFlags()
	pf.StringVar(&g.configPath, "config", "", "config file (default ~/.threadline/config.toml)")
	pf.StringVar(&g.logLevel, "log-level", "", "log level: debug, info, warn, error")
	pf.BoolVarP(&g.verbose, "verbose", "v", false, "also write logs to stderr")
	pf.BoolVar(&g.jsonOut, "json", false, "write a JSON response to stdout")

	root.AddCommand(
		newListCommand(g),
		newShowCommand(g),
		newSendCommand(g),
		newChatCommand(g),
		newRenameCommand(g),
		newDeleteCommand(g),
		newExportCommand(g),
		newConfigCommand(g),
	)
	return root
}

// =============================================================================
// SHARED HELPERS
// =============================================================================

// runWithApp wires an app, runs fn and releases the app.
func runWithApp(g *globalOptions, opts appOptions, fn func(a *app) error) error {
	a, err := newApp(g, opts)
	if err != nil {
		return err
	}
	err = fn(a)
	return multierr.Append(err, a.Close())
}

// writeJSON writes the success envelope of command.
func writeJSON(cmd *cobra.Command, data any) error {
	return NewJSONResponse(cmd.Name(), data).Write(cmd.OutOrStdout())
}

// parseThreadID parses a thread id argument. Only confirmed ids are valid on
// the command line.
func parseThreadID(s string) (model.ThreadID, error) {
	id, err := model.ParseThreadID(strings.TrimSpace(s))
	if err != nil || id <= 0 {
		return model.NoThread, NewUsageError("thread id", s, "must be a positive integer")
	}
	return id, nil
}

// findThread returns the thread idArg names in snap.
func findThread(snap store.Snapshot, idArg string) (model.Thread, error) {
	id, err := parseThreadID(idArg)
	if err != nil {
		return model.Thread{}, err
	}
	t, ok := snap.Find(id)
	if !ok {
		return model.Thread{}, NewNotFoundError("thread", id.String())
	}
	return t, nil
}

func noArgs(cmd *cobra.Command, args []string) error {
	if len(args) > 0 {
		return NewUsageError("argument", args[0], fmt.Sprintf("%s takes no arguments", cmd.CommandPath()))
	}
	return nil
}

func exactArgs(n int) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if len(args) != n {
			return NewUsageError("arguments", strings.Join(args, " "),
				fmt.Sprintf("%s needs %d argument(s): %s", cmd.CommandPath(), n, cmd.Use))
		}
		return nil
	}
}

func minArgs(n int) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if len(args) < n {
			return NewUsageError("arguments", strings.Join(args, " "),
				fmt.Sprintf("%s needs at least %d argument(s): %s", cmd.CommandPath(), n, cmd.Use))
		}
		return nil
	}
}
