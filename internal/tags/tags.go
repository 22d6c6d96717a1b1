// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package tags

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/jeranaias/threadline/internal/model"
)

// Name is the wire name of a metadata tag.
type Name string

const (
	ThreadID             Name = "threadId"
	UserMessageID        Name = "userMessageId"
	UserMessageCreatedAt Name = "userMessageCreatedAt"
	Role                 Name = "role"
	AIMessageID          Name = "aiMessageId"
	AIMessageCreatedAt   Name = "aiMessageCreatedAt"
)

// Names lists every tag in extraction order.
var Names = []Name{ThreadID, UserMessageID, UserMessageCreatedAt, Role, AIMessageID, AIMessageCreatedAt}

const (
	blockOpen  = "[["
	blockClose = "]]"
)

var (
	prefixPatterns = make(map[Name]*regexp.Regexp, len(Names))
	suffixPatterns = make(map[Name]*regexp.Regexp, len(Names))
)

func init() {
	for _, n := range Names {
		body := `\[\[` + regexp.QuoteMeta(string(n)) + `=([^\]]+)\]\]`
		prefixPatterns[n] = regexp.MustCompile(`^` + body)
		suffixPatterns[n] = regexp.MustCompile(body + `$`)
	}
}

// =============================================================================
// EXTRACTION
// =============================================================================

// Extraction holds what one fragment yielded. Each optional field has a Has
// flag; timestamps are empty when absent.
type Extraction struct {
	ThreadID    model.ThreadID
	HasThreadID bool

	UserMessageID        model.MessageID
	HasUserMessageID     bool
	UserMessageCreatedAt string

	Role    model.Role
	HasRole bool

	AIMessageID        model.MessageID
	HasAIMessageID     bool
	AIMessageCreatedAt string

	Content    string
	HasContent bool
}

// Empty reports whether nothing at all was extracted.
func (e Extraction) Empty() bool {
	return !e.HasThreadID && !e.HasUserMessageID && e.UserMessageCreatedAt == "" &&
		!e.HasRole && !e.HasAIMessageID && e.AIMessageCreatedAt == "" && !e.HasContent
}

// Extract strips recognized tags from fragment and decodes them.
// threadResolved disables the threadId prefix once the session knows its
// thread. Extract never fails; unrecognized input is content.
func Extract(fragment string, threadResolved bool) Extraction {
	var ex Extraction
	rest := fragment

	if !threadResolved {
		if v, r, ok := cutPrefix(rest, ThreadID); ok {
			if id, ok := parseID(v); ok {
				ex.ThreadID, ex.HasThreadID = model.ThreadID(id), true
				rest = r
			}
		}
	}

	if v, r, ok := cutPrefix(rest, UserMessageID); ok {
		if id, ok := parseID(v); ok {
			ex.UserMessageID, ex.HasUserMessageID = model.MessageID(id), true
			rest = r
		}
	}

	if v, r, ok := cutPrefix(rest, UserMessageCreatedAt); ok {
		ex.UserMessageCreatedAt = v
		rest = r
	}

	// A role block is consumed whatever its value; an unknown role is
	// recorded as unattributed so later header blocks still decode.
	if v, r, ok := cutPrefix(rest, Role); ok {
		role, known := model.ParseRole(v)
		if !known {
			role = model.RoleUnattributed
		}
		ex.Role, ex.HasRole = role, true
		rest = r
	}

	if v, r, ok := cutPrefix(rest, AIMessageID); ok {
		if id, ok := parseID(v); ok {
			ex.AIMessageID, ex.HasAIMessageID = model.MessageID(id), true
			rest = r
		}
	}

	if v, r, ok := cutSuffix(rest, AIMessageCreatedAt); ok {
		ex.AIMessageCreatedAt = v
		rest = r
	}

	// Trailer form: content[[aiMessageId=N]][[aiMessageCreatedAt=T]].
	if !ex.HasAIMessageID {
		if v, r, ok := cutSuffix(rest, AIMessageID); ok {
			if id, ok := parseID(v); ok {
				ex.AIMessageID, ex.HasAIMessageID = model.MessageID(id), true
				rest = r
			}
		}
	}

	if rest != "" {
		ex.Content, ex.HasContent = rest, true
	}
	return ex
}

func cutPrefix(s string, n Name) (value, rest string, ok bool) {
	if !strings.HasPrefix(s, blockOpen) {
		return "", s, false
	}
	m := prefixPatterns[n].FindStringSubmatchIndex(s)
	if m == nil {
		return "", s, false
	}
	return s[m[2]:m[3]], s[m[1]:], true
}

func cutSuffix(s string, n Name) (value, rest string, ok bool) {
	if !strings.HasSuffix(s, blockClose) {
		return "", s, false
	}
	m := suffixPatterns[n].FindStringSubmatchIndex(s)
	if m == nil {
		return "", s, false
	}
	return s[m[2]:m[3]], s[:m[0]], true
}

// parseID accepts positive decimal integers only; server ids are never zero
// or negative.
func parseID(v string) (int64, bool) {
	n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
	if err != nil || n <= 0 {
		return 0, false
	}
	return n, true
}

// =============================================================================
// CHUNK BOUNDARIES
// =============================================================================

// IncompleteTail returns the index at which s ends with the beginning of a
// tag block that is not closed yet, or -1. A stream reader holds s[i:] back
// and prepends it to the next chunk, so a block cut by a read boundary is
// decoded as if it had arrived whole.
func IncompleteTail(s string) int {
	if strings.HasSuffix(s, "[") && !strings.HasSuffix(s, blockOpen) {
		// A lone "[" may be the first half of "[[". If it also continues an
		// open block, that block's start wins below.
		if i := openBlockStart(s[:len(s)-1]); i >= 0 {
			return i
		}
		return len(s) - 1
	}
	return openBlockStart(s)
}

func openBlockStart(s string) int {
	i := strings.LastIndex(s, blockOpen)
	if i < 0 {
		return -1
	}
	tail := s[i+len(blockOpen):]
	if strings.Contains(tail, blockClose) || !couldBeTag(tail) {
		return -1
	}
	return i
}

// couldBeTag reports whether partial, the text after "[[", can still grow
// into a recognized block.
func couldBeTag(partial string) bool {
	name, value, hasEq := strings.Cut(partial, "=")
	if !hasEq {
		for _, n := range Names {
			if strings.HasPrefix(string(n), name) {
				return true
			}
		}
		return false
	}
	if !isName(name) {
		return false
	}
	// A value never contains "]"; a single trailing "]" is half a close.
	value = strings.TrimSuffix(value, "]")
	return !strings.Contains(value, "]")
}

func isName(s string) bool {
	for _, n := range Names {
		if string(n) == s {
			return true
		}
	}
	return false
}
