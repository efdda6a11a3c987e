package chat

import (
	"context"
	"time"
)

// ===============================================
// Conversation Types
// ===============================================

type ConversationStatus string

const (
	// ConversationStatusActive is the initial state; both parties may message.
	ConversationStatusActive ConversationStatus = "active"
	// ConversationStatusClosed is terminal for messaging. Nobody, admin
	// included, may append messages; only deletion or a fresh conversation
	// can follow.
	ConversationStatusClosed ConversationStatus = "closed"
	// ConversationStatusArchived is an organizational bucket, not a lock:
	// archived conversations still accept messages and are listed under the
	// admin's "archived" filter until the retention sweeper purges them.
	ConversationStatusArchived ConversationStatus = "archived"
)

// ===============================================
// Conversation Structure
// ===============================================

// Conversation is one support thread between the admin side and a single
// non-admin party (an authenticated user or an anonymous guest).
type Conversation struct {
	ID       uint   `json:"-"`
	PublicID string `json:"id"`

	// ParticipantID identifies the non-admin party: a user account ID, or a
	// generated pseudo-ID carrying the guest marker prefix.
	ParticipantID    string  `json:"participant_id"`
	ParticipantName  *string `json:"participant_name,omitempty"`
	ParticipantEmail *string `json:"participant_email,omitempty"`

	Status ConversationStatus `json:"status"`

	// UnreadCount counts messages from the non-admin party the admin has not
	// yet seen. Admin-authored messages never touch it. Never negative.
	UnreadCount int `json:"unread_count"`

	// LastMessageAt orders the admin list and drives poll change detection.
	LastMessageAt time.Time `json:"last_message_at"`

	// ArchivedAt is set on the active -> archived transition and drives the
	// retention sweep.
	ArchivedAt *time.Time `json:"archived_at,omitempty"`

	// UserClearedAt hides messages at or before this instant from the
	// non-admin party only. Admin reads are never filtered.
	UserClearedAt *time.Time `json:"-"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// IsArchived reports whether the conversation sits in the archived bucket.
func (c *Conversation) IsArchived() bool {
	return c.Status == ConversationStatusArchived
}

// IsClosed reports whether messaging is terminally disabled.
func (c *Conversation) IsClosed() bool {
	return c.Status == ConversationStatusClosed
}

// CanTransitionTo validates the lifecycle state machine. Closed is terminal;
// archived may still be closed later.
func (c *Conversation) CanTransitionTo(target ConversationStatus) bool {
	switch c.Status {
	case ConversationStatusActive:
		return target == ConversationStatusClosed || target == ConversationStatusArchived
	case ConversationStatusArchived:
		return target == ConversationStatusClosed
	case ConversationStatusClosed:
		return false
	}
	return false
}

// ===============================================
// Conversation Repository
// ===============================================

type ConversationFilter struct {
	ID            *uint
	PublicID      *string
	ParticipantID *string
	Status        *ConversationStatus
	// Archived selects the archived vs. not-archived bucket for admin lists.
	Archived *bool
}

type ConversationRepository interface {
	Create(ctx context.Context, conv *Conversation) error
	FindByID(ctx context.Context, id uint) (*Conversation, error)
	FindByPublicID(ctx context.Context, publicID string) (*Conversation, error)
	// FindActiveByParticipant returns the participant's single active
	// conversation, or nil when none exists.
	FindActiveByParticipant(ctx context.Context, participantID string) (*Conversation, error)
	// FindByFilter lists conversations sorted by last_message_at descending.
	FindByFilter(ctx context.Context, filter ConversationFilter) ([]*Conversation, error)
	UpdateStatus(ctx context.Context, id uint, status ConversationStatus, archivedAt *time.Time) error
	SetUserClearedAt(ctx context.Context, id uint, clearedAt time.Time) error
	// ZeroUnread resets the admin-facing unread counter.
	ZeroUnread(ctx context.Context, id uint) error
	// Delete removes the conversation and cascades its messages.
	Delete(ctx context.Context, id uint) error
	// DeleteArchivedBefore purges every archived conversation whose
	// archived_at is older than the cutoff, cascading messages. Returns the
	// number of conversations removed.
	DeleteArchivedBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// ===============================================
// Conversation Factory Functions
// ===============================================

// NewConversation creates an active conversation for a participant.
func NewConversation(publicID, participantID string, name, email *string) *Conversation {
	now := time.Now()
	return &Conversation{
		PublicID:         publicID,
		ParticipantID:    participantID,
		ParticipantName:  name,
		ParticipantEmail: email,
		Status:           ConversationStatusActive,
		UnreadCount:      0,
		LastMessageAt:    now,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
}
