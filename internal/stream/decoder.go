// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package stream

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/jeranaias/threadline/internal/model"
	"github.com/jeranaias/threadline/internal/store"
	"github.com/jeranaias/threadline/internal/tags"
)

const (
	// DefaultReadSize is the read buffer size; each read is one chunk.
	DefaultReadSize = 32 * 1024

	// MaxCarry bounds how much of an unterminated tag block is held back
	// waiting for the next chunk. Longer runs are literal text.
	MaxCarry = 512
)

// Sink receives the output of a decoder.
type Sink interface {
	Dispatch(a store.Action)
	SelectedThreadID() model.ThreadID
	SelectThread(id model.ThreadID)
}

// Decoder turns a reply body into store actions.
type Decoder struct {
	log      *zap.Logger
	readSize int
}

// NewDecoder creates a decoder. A nil logger disables logging.
func NewDecoder(log *zap.Logger) *Decoder {
	if log == nil {
		log = zap.NewNop()
	}
	return &Decoder{log: log.Named("stream"), readSize: DefaultReadSize}
}

// WithReadSize sets the read buffer size. Small sizes are useful in tests.
func (d *Decoder) WithReadSize(n int) *Decoder {
	if n > 0 {
		d.readSize = n
	}
	return d
}

// Decode consumes body until EOF. Every decoded fragment produces an
// assistant update, preceded by a user update while the originating message
// is unresolved. A read error ends decoding and is returned; actions already
// dispatched stand. Cancelling ctx stops decoding between reads; the
// caller closes body to interrupt a blocked read.
func (d *Decoder) Decode(ctx context.Context, body io.Reader, sess *Session, sink Sink) error {
	buf := make([]byte, d.readSize)
	var pending []byte

	for {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("read reply stream: %w", err)
		}
		n, err := body.Read(buf)
		if n > 0 {
			pending = append(pending, buf[:n]...)
			var text string
			text, pending = splitReady(pending)
			if text != "" {
				d.feed(sess, text, sink)
			}
		}

		if errors.Is(err, io.EOF) {
			if len(pending) > 0 {
				d.feed(sess, strings.ToValidUTF8(string(pending), string(utf8.RuneError)), sink)
			}
			d.log.Debug("stream complete",
				zap.String("session", sess.ID),
				zap.Stringer("thread", sess.TargetID()),
				zap.Int("chunks", sess.chunks),
				zap.Int("bytes", sess.content.Len()))
			return nil
		}
		if err != nil {
			d.log.Warn("stream read failed",
				zap.String("session", sess.ID),
				zap.Stringer("thread", sess.TargetID()),
				zap.Error(err))
			return fmt.Errorf("read reply stream: %w", err)
		}
	}
}

// feed decodes one fragment and dispatches its actions.
func (d *Decoder) feed(sess *Session, fragment string, sink Sink) {
	sess.chunks++
	ex := tags.Extract(fragment, sess.threadID != model.NoThread)

	newlyResolved := false
	if ex.HasThreadID && ex.ThreadID != sess.threadID {
		sess.threadID = ex.ThreadID
		newlyResolved = true
	}

	if ex.HasContent {
		sess.content.WriteString(ex.Content)
	}

	if !sess.userResolved() && (ex.HasUserMessageID || ex.UserMessageCreatedAt != "") {
		sink.Dispatch(store.ResolveUserMessage{
			ProvisionalID: sess.ProvisionalID,
			ThreadID:      sess.threadID,
			Title:         sess.Title,
			MessageID:     ex.UserMessageID,
			CreatedAt:     ex.UserMessageCreatedAt,
		})
		sess.userIDKnown = sess.userIDKnown || ex.HasUserMessageID
		sess.userCreatedAtKnown = sess.userCreatedAtKnown || ex.UserMessageCreatedAt != ""
	}

	var role model.Role
	if ex.HasRole {
		role = ex.Role
	}
	sink.Dispatch(store.ResolveAssistantMessage{
		ProvisionalID: sess.ProvisionalID,
		ThreadID:      sess.threadID,
		Role:          role,
		MessageID:     ex.AIMessageID,
		CreatedAt:     ex.AIMessageCreatedAt,
		Content:       sess.content.String(),
	})

	// Selection moves after the promotion above, so the selected id exists.
	if newlyResolved && sess.threadID != sink.SelectedThreadID() {
		sink.SelectThread(sess.threadID)
	}

	d.log.Debug("chunk",
		zap.String("session", sess.ID),
		zap.Int("chunk", sess.chunks),
		zap.Int("len", len(fragment)),
		zap.Bool("content", ex.HasContent),
		zap.Bool("done", ex.AIMessageCreatedAt != ""))
}

// splitReady returns the decodable prefix of pending as text, and the bytes
// to carry into the next read: an incomplete UTF-8 sequence and any
// unterminated tag block at the end.
func splitReady(pending []byte) (string, []byte) {
	cut := completeUTF8(pending)
	text := string(pending[:cut])

	if i := tags.IncompleteTail(text); i >= 0 && len(text)-i <= MaxCarry {
		cut = i
		text = text[:i]
	}

	carry := make([]byte, len(pending)-cut)
	copy(carry, pending[cut:])
	return strings.ToValidUTF8(text, string(utf8.RuneError)), carry
}

// completeUTF8 returns the length of b without a trailing partial rune.
func completeUTF8(b []byte) int {
	for i := len(b) - 1; i >= 0 && i >= len(b)-utf8.UTFMax; i-- {
		if utf8.RuneStart(b[i]) {
			if !utf8.FullRune(b[i:]) {
				return i
			}
			break
		}
	}
	return len(b)
}
