package chat

// StartConversationRequest opens a guest conversation from the widget's
// pre-chat form.
type StartConversationRequest struct {
	Name  string `json:"name" binding:"required"`
	Email string `json:"email" binding:"omitempty,email"`
}

// PostMessageRequest sends a message. ConversationID may be omitted only by
// authenticated users, whose single active conversation is resolved
// server-side.
type PostMessageRequest struct {
	ConversationID *string `json:"conversation_id,omitempty"`
	Content        string  `json:"content"`
	Image          *string `json:"image,omitempty"`
}

// SetStatusRequest moves a conversation through its lifecycle.
type SetStatusRequest struct {
	Status string `json:"status" binding:"required,oneof=active closed archived"`
}

// ListConversationsQueryParams filters the admin inbox.
type ListConversationsQueryParams struct {
	Bucket string `form:"bucket" binding:"omitempty,oneof=active archived"`
}
