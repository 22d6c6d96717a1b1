// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"strings"

	"github.com/charmbracelet/glamour"
	"go.uber.org/zap"
)

// maxCachedRenders bounds the render cache. It is reset, not evicted, when
// full; a transcript re-renders in one pass anyway.
const maxCachedRenders = 256

// =============================================================================
// MARKDOWN RENDERER
// =============================================================================

// Markdown renders assistant replies with glamour. A reply that is still
// streaming changes on every snapshot, so finished replies are cached by
// content to keep redraws cheap.
type Markdown struct {
	style    string
	width    int
	plain    bool
	renderer *glamour.TermRenderer
	cache    map[string]string
	log      *zap.Logger
}

// NewMarkdown creates a renderer using a glamour standard style ("dark",
// "light", "notty"). A plain renderer returns content unchanged.
func NewMarkdown(style string, plain bool, log *zap.Logger) *Markdown {
	if log == nil {
		log = zap.NewNop()
	}
	return &Markdown{
		style: style,
		plain: plain,
		cache: make(map[string]string),
		log:   log,
	}
}

// SetWidth sets the wrap width. Changing it drops the renderer and cache.
func (md *Markdown) SetWidth(width int) {
	if width < 20 {
		width = 20
	}
	if width == md.width {
		return
	}
	md.width = width
	md.renderer = nil
	md.cache = make(map[string]string)
}

// Render returns content rendered for the terminal. Rendering failures fall
// back to the raw content.
func (md *Markdown) Render(content string) string {
	if md.plain || strings.TrimSpace(content) == "" {
		return content
	}
	if out, ok := md.cache[content]; ok {
		return out
	}

	if md.renderer == nil {
		width := md.width
		if width == 0 {
			width = 80
		}
		r, err := glamour.NewTermRenderer(
			glamour.WithStandardStyle(md.style),
			glamour.WithWordWrap(width),
		)
		if err != nil {
			md.log.Warn("markdown renderer unavailable", zap.Error(err))
			md.plain = true
			return content
		}
		md.renderer = r
	}

	out, err := md.renderer.Render(content)
	if err != nil {
		md.log.Debug("markdown render failed", zap.Error(err))
		return content
	}
	out = strings.Trim(out, "\n")

	if len(md.cache) >= maxCachedRenders {
		md.cache = make(map[string]string)
	}
	md.cache[content] = out
	return out
}
