// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package logging builds the zap logger shared by every threadline component.
//
// Output is JSON lines on a size-rotated file, optionally teed to a human
// readable console encoder on stderr. Components name their own child logger
// (log.Named("api")) so every line carries its origin.
//
// # Usage
//
//	log, err := logging.New(cfg.Log)
//	if err != nil {
//	    return err
//	}
//	defer log.Sync()
package logging
