// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package util provides small helpers shared across threadline.
//
// # Key Functions
//
// Text:
//   - FirstRunes: rune-safe prefix without ellipsis (auto titles)
//   - TruncateWidth, PadWidth: display-width aware truncation for lists
//   - SingleLine: collapse whitespace for one-line previews
//
// Files:
//   - AtomicWriteFile: crash-safe write with fsync and rename
//
// # Usage
//
//	title := util.FirstRunes(message, 20)
//	row := util.PadWidth(thread.Title, 24)
//	err := util.AtomicWriteFile(path, data, 0600)
package util
