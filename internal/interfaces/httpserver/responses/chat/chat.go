package chat

import (
	"time"

	domainchat "staybook-server/services/chat-api/internal/domain/chat"
	"staybook-server/services/chat-api/internal/utils/functional"
)

// ConversationPayload is returned to clients.
type ConversationPayload struct {
	ID               string     `json:"id"`
	ParticipantID    string     `json:"participant_id"`
	ParticipantName  *string    `json:"participant_name,omitempty"`
	ParticipantEmail *string    `json:"participant_email,omitempty"`
	Status           string     `json:"status"`
	UnreadCount      int        `json:"unread_count"`
	LastMessageAt    time.Time  `json:"last_message_at"`
	ArchivedAt       *time.Time `json:"archived_at,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

// FromConversation maps the domain conversation to DTO.
func FromConversation(conv *domainchat.Conversation) ConversationPayload {
	return ConversationPayload{
		ID:               conv.PublicID,
		ParticipantID:    conv.ParticipantID,
		ParticipantName:  conv.ParticipantName,
		ParticipantEmail: conv.ParticipantEmail,
		Status:           string(conv.Status),
		UnreadCount:      conv.UnreadCount,
		LastMessageAt:    conv.LastMessageAt,
		ArchivedAt:       conv.ArchivedAt,
		CreatedAt:        conv.CreatedAt,
		UpdatedAt:        conv.UpdatedAt,
	}
}

// MessagePayload is returned to clients. ConversationID lets a client that
// posted without a conversation reference learn which thread the server
// resolved for it.
type MessagePayload struct {
	ID             string    `json:"id"`
	ConversationID string    `json:"conversation_id"`
	SenderID       string    `json:"sender_id"`
	SenderRole     string    `json:"sender_role"`
	Content        string    `json:"content"`
	Image          *string   `json:"image,omitempty"`
	IsRead         bool      `json:"is_read"`
	CreatedAt      time.Time `json:"created_at"`
}

// FromMessage maps the domain message to DTO.
func FromMessage(msg *domainchat.Message) MessagePayload {
	return MessagePayload{
		ID:             msg.PublicID,
		ConversationID: msg.ConversationPublicID,
		SenderID:       msg.SenderID,
		SenderRole:     string(msg.SenderRole),
		Content:        msg.Content,
		Image:          msg.Image,
		IsRead:         msg.IsRead,
		CreatedAt:      msg.CreatedAt,
	}
}

// ConversationListResponse wraps the admin inbox listing.
type ConversationListResponse struct {
	Object string                `json:"object"`
	Data   []ConversationPayload `json:"data"`
}

// NewConversationListResponse builds the list envelope.
func NewConversationListResponse(convs []*domainchat.Conversation) ConversationListResponse {
	return ConversationListResponse{
		Object: "list",
		Data: functional.Map(convs, func(conv *domainchat.Conversation) ConversationPayload {
			return FromConversation(conv)
		}),
	}
}

// MessagesResponse carries a conversation snapshot plus its visible
// messages. PollInterval tells polling clients how long to wait before the
// next fetch.
type MessagesResponse struct {
	Object       string              `json:"object"`
	Conversation ConversationPayload `json:"conversation"`
	Data         []MessagePayload    `json:"data"`
	PollInterval string              `json:"poll_interval,omitempty"`
}

// NewMessagesResponse builds the messages envelope.
func NewMessagesResponse(conv *domainchat.Conversation, msgs []*domainchat.Message, pollInterval time.Duration) MessagesResponse {
	resp := MessagesResponse{
		Object:       "list",
		Conversation: FromConversation(conv),
		Data: functional.Map(msgs, func(msg *domainchat.Message) MessagePayload {
			return FromMessage(msg)
		}),
	}
	if pollInterval > 0 {
		resp.PollInterval = pollInterval.String()
	}
	return resp
}
