// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"crypto/rand"
	"encoding/binary"
	"strconv"
)

// ThreadID identifies a thread. Negative values are provisional.
type ThreadID int64

// MessageID identifies a message. Zero means unassigned, negative values are
// provisional ids given to optimistic outgoing messages.
type MessageID int64

// NoThread is the zero ThreadID, used for "no selection" and "not resolved".
const NoThread ThreadID = 0

// NoMessageID marks a message whose server id is not known yet.
const NoMessageID MessageID = 0

// Provisional reports whether id was generated locally.
func (id ThreadID) Provisional() bool { return id < 0 }

// String returns the decimal form of id.
func (id ThreadID) String() string { return strconv.FormatInt(int64(id), 10) }

// String returns the decimal form of id.
func (id MessageID) String() string { return strconv.FormatInt(int64(id), 10) }

// ParseThreadID parses a decimal thread id as typed by a user.
func ParseThreadID(s string) (ThreadID, error) {
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return NoThread, err
	}
	return ThreadID(n), nil
}

// NewProvisionalID returns a random negative ThreadID.
func NewProvisionalID() ThreadID {
	return ThreadID(-randomPositive())
}

// NewProvisionalMessageID returns a random negative MessageID. It is non-zero
// so an optimistic user message is never mistaken for an unassigned
// assistant placeholder.
func NewProvisionalMessageID() MessageID {
	return MessageID(-randomPositive())
}

// randomPositive returns a crypto-random value in [1, 2^53). The bound keeps
// ids exactly representable by JSON consumers that use float64.
func randomPositive() int64 {
	var b [8]byte
	for {
		if _, err := rand.Read(b[:]); err != nil {
			panic("model: crypto/rand unavailable: " + err.Error())
		}
		n := int64(binary.BigEndian.Uint64(b[:]) & (1<<53 - 1))
		if n != 0 {
			return n
		}
	}
}
