// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

// =============================================================================
// ROLE TYPE
// =============================================================================

// Role represents the sender of a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"

	// RoleUnattributed is used until a role tag arrives.
	RoleUnattributed Role = "notAttributed"
)

// ParseRole maps a wire value to a Role. Unknown values report false.
func ParseRole(s string) (Role, bool) {
	switch Role(s) {
	case RoleUser, RoleAssistant, RoleUnattributed:
		return Role(s), true
	}
	return "", false
}

// String returns the wire representation of the role.
func (r Role) String() string {
	return string(r)
}

// Resolved reports whether the role is final. A resolved role never changes.
func (r Role) Resolved() bool {
	return r == RoleUser || r == RoleAssistant
}

// DisplayName returns a human-readable name for the role.
func (r Role) DisplayName() string {
	switch r {
	case RoleUser:
		return "You"
	case RoleAssistant:
		return "Assistant"
	default:
		return "..."
	}
}

// =============================================================================
// MESSAGE TYPE
// =============================================================================

// Message is a single entry in a thread.
//
// ID and the timestamps may be back-filled after the message is created;
// Role may only move from RoleUnattributed to a resolved role.
type Message struct {
	ID      MessageID `json:"id"`
	Role    Role      `json:"role"`
	Content string    `json:"content"`

	// RawCreatedAt is the timestamp as received from the backend.
	RawCreatedAt string `json:"createdAt,omitempty"`

	// CreatedAt is RawCreatedAt rendered for display.
	CreatedAt string `json:"-"`
}

// HasTimestamp reports whether the creation time is known.
func (m Message) HasTimestamp() bool {
	return m.RawCreatedAt != ""
}
