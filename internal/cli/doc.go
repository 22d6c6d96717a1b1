// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package cli provides the threadline command-line interface.
//
// Commands are built with cobra. Every command that talks to the backend
// goes through the same wiring (see app.go): configuration, zap logging,
// the credential gate, the API client, the sqlite thread cache and the
// controller that owns the conversation store.
//
// # Key Types
//
//   - app: the wired dependencies of one invocation
//   - ChatCLI: line editing and history for the interactive chat
//   - JSONResponse: the envelope of --json output
//   - CommandError, UsageError, NotFoundError: errors mapped to exit codes
//
// # Usage
//
//	func main() {
//		os.Exit(cli.Execute())
//	}
//
// # Commands Overview
//
//   - (none): full-screen TUI
//   - list, show: browse threads, online or from the offline cache
//   - send, chat: post messages and stream replies
//   - rename, delete, export: manage threads
//   - config: show, path, init, get, set and keys
//
// All commands except chat and the TUI support --json.
package cli
