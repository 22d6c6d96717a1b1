// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package export writes threads to files for reading or archiving.
//
// # Key Types
//
//   - Exporter: Converts a thread to one output format
//   - Options: Output directory and metadata switches
//
// # Supported Formats
//
//   - JSON: The thread as the backend serves it, re-importable
//   - Markdown: Human-readable transcript with YAML frontmatter
//
// # Usage
//
//	exporter, err := export.ForFormat("markdown", nil)
//	if err != nil {
//	    return err
//	}
//	path, err := export.ToFile(thread, exporter, &export.Options{OutputDir: "."})
package export
