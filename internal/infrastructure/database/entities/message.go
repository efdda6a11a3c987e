package entities

import (
	"time"

	"staybook-server/services/chat-api/internal/domain/chat"
)

// Message represents the database schema for chat messages. Rows are
// immutable after insert except for the is_read flag.
type Message struct {
	ID        uint      `gorm:"primaryKey"`
	CreatedAt time.Time `gorm:"autoCreateTime;index:idx_message_conversation_created"`

	PublicID       string          `gorm:"type:varchar(50);uniqueIndex;not null"`
	ConversationID uint            `gorm:"index:idx_message_conversation_created;not null"`
	SenderID       string          `gorm:"type:varchar(64);not null"`
	SenderRole     chat.SenderRole `gorm:"type:varchar(10);not null"`
	Content        string          `gorm:"type:text;not null;default:''"`
	Image          *string         `gorm:"type:varchar(512)"`
	IsRead         bool            `gorm:"not null;default:false"`
}

// TableName specifies the table name for Message.
func (Message) TableName() string {
	return "messages"
}

// EtoD converts database entity to domain model
func (m *Message) EtoD() *chat.Message {
	return &chat.Message{
		ID:             m.ID,
		PublicID:       m.PublicID,
		ConversationID: m.ConversationID,
		SenderID:       m.SenderID,
		SenderRole:     m.SenderRole,
		Content:        m.Content,
		Image:          m.Image,
		IsRead:         m.IsRead,
		CreatedAt:      m.CreatedAt,
	}
}

// NewSchemaMessage creates a database entity from domain model
func NewSchemaMessage(m *chat.Message) *Message {
	return &Message{
		ID:             m.ID,
		PublicID:       m.PublicID,
		ConversationID: m.ConversationID,
		SenderID:       m.SenderID,
		SenderRole:     m.SenderRole,
		Content:        m.Content,
		Image:          m.Image,
		IsRead:         m.IsRead,
		CreatedAt:      m.CreatedAt,
	}
}
