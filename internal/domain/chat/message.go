package chat

import (
	"context"
	"time"
)

// ===============================================
// Message Types
// ===============================================

// SenderRole distinguishes the two sides of a conversation. Guests are
// represented as role "user"; the counter-party of every message determines
// who "reading" it means.
type SenderRole string

const (
	SenderRoleAdmin SenderRole = "admin"
	SenderRoleUser  SenderRole = "user"
)

// Counterparty returns the opposite side of a role.
func (r SenderRole) Counterparty() SenderRole {
	if r == SenderRoleAdmin {
		return SenderRoleUser
	}
	return SenderRoleAdmin
}

// ===============================================
// Message Structure
// ===============================================

// Message is append-only from the domain's perspective: after creation only
// the IsRead flag ever changes, and destruction happens solely as a cascade
// of the owning conversation's deletion.
type Message struct {
	ID             uint   `json:"-"`
	PublicID       string `json:"id"`
	ConversationID uint   `json:"-"`

	// ConversationPublicID is the owning conversation's client-facing ID.
	// The service stamps it on every message it returns so a client that
	// posted without a conversation reference can still address follow-up
	// calls (polling, mark-read, clear) at the resolved thread.
	ConversationPublicID string `json:"conversation_id"`

	SenderID   string     `json:"sender_id"`
	SenderRole SenderRole `json:"sender_role"`

	// Content may be empty only when Image is set.
	Content string `json:"content"`
	// Image is a pre-uploaded asset URL; upload itself happens elsewhere.
	Image *string `json:"image,omitempty"`

	// IsRead means the counterparty of the sender has seen the message.
	IsRead bool `json:"is_read"`

	CreatedAt time.Time `json:"created_at"`
}

// HasPayload reports whether the message carries content or an image.
func (m *Message) HasPayload() bool {
	return m.Content != "" || (m.Image != nil && *m.Image != "")
}

// ===============================================
// Message Repository
// ===============================================

type MessageRepository interface {
	// Append inserts the message and, in the same transaction, advances the
	// parent conversation's last_message_at and - when the sender role is
	// "user" - increments unread_count by exactly one. The increment must be
	// a serialized read-modify-write in the store, never a value computed in
	// application memory.
	Append(ctx context.Context, msg *Message) error

	// ListByConversation returns messages in created_at ascending order.
	// When visibleAfter is non-nil, messages with created_at at or before
	// the cutoff are excluded (the cleared-history filter for the non-admin
	// party).
	ListByConversation(ctx context.Context, conversationID uint, visibleAfter *time.Time) ([]*Message, error)

	// MarkReadBySenderRole flags every unread message authored by the given
	// role as read. Idempotent: nothing to mark is a no-op.
	MarkReadBySenderRole(ctx context.Context, conversationID uint, senderRole SenderRole) error
}
