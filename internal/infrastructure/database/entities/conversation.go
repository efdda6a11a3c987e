package entities

import (
	"time"

	"staybook-server/services/chat-api/internal/domain/chat"
)

// Conversation represents the database schema for support conversations.
type Conversation struct {
	ID        uint      `gorm:"primaryKey"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
	UpdatedAt time.Time `gorm:"autoUpdateTime"`

	PublicID string `gorm:"type:varchar(50);uniqueIndex;not null"`
	// The partial unique index backs the one-active-conversation-per-
	// participant rule at the store level; the service retries the lookup
	// when a concurrent first post loses the insert race.
	ParticipantID    string                  `gorm:"type:varchar(64);index:idx_conversation_participant_status;uniqueIndex:uidx_conversation_active_participant,where:status = 'active';not null"`
	ParticipantName  *string                 `gorm:"type:varchar(128)"`
	ParticipantEmail *string                 `gorm:"type:varchar(256)"`
	Status           chat.ConversationStatus `gorm:"type:varchar(20);index:idx_conversation_participant_status;not null;default:'active'"`
	UnreadCount      int                     `gorm:"not null;default:0"`
	LastMessageAt    time.Time               `gorm:"index;not null"`
	ArchivedAt       *time.Time              `gorm:"index"`
	UserClearedAt    *time.Time

	Messages []Message `gorm:"foreignKey:ConversationID;constraint:OnDelete:CASCADE"`
}

// TableName specifies the table name for Conversation.
func (Conversation) TableName() string {
	return "conversations"
}

// EtoD converts database entity to domain model
func (c *Conversation) EtoD() *chat.Conversation {
	return &chat.Conversation{
		ID:               c.ID,
		PublicID:         c.PublicID,
		ParticipantID:    c.ParticipantID,
		ParticipantName:  c.ParticipantName,
		ParticipantEmail: c.ParticipantEmail,
		Status:           c.Status,
		UnreadCount:      c.UnreadCount,
		LastMessageAt:    c.LastMessageAt,
		ArchivedAt:       c.ArchivedAt,
		UserClearedAt:    c.UserClearedAt,
		CreatedAt:        c.CreatedAt,
		UpdatedAt:        c.UpdatedAt,
	}
}

// NewSchemaConversation creates a database entity from domain model
func NewSchemaConversation(c *chat.Conversation) *Conversation {
	return &Conversation{
		ID:               c.ID,
		PublicID:         c.PublicID,
		ParticipantID:    c.ParticipantID,
		ParticipantName:  c.ParticipantName,
		ParticipantEmail: c.ParticipantEmail,
		Status:           c.Status,
		UnreadCount:      c.UnreadCount,
		LastMessageAt:    c.LastMessageAt,
		ArchivedAt:       c.ArchivedAt,
		UserClearedAt:    c.UserClearedAt,
		CreatedAt:        c.CreatedAt,
		UpdatedAt:        c.UpdatedAt,
	}
}
