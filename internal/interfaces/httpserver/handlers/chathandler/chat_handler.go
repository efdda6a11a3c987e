package chathandler

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"staybook-server/services/chat-api/internal/domain/chat"
	"staybook-server/services/chat-api/internal/domain/identity"
	"staybook-server/services/chat-api/internal/infrastructure/metrics"
	"staybook-server/services/chat-api/internal/utils/platformerrors"
)

// ConversationService is the slice of the chat service the HTTP layer uses.
type ConversationService interface {
	StartGuestConversation(ctx context.Context, name, email string) (*chat.Conversation, error)
	MyConversation(ctx context.Context, ident identity.Identity) (*chat.Conversation, error)
	PostMessage(ctx context.Context, ident identity.Identity, input chat.PostMessageInput) (*chat.Message, error)
	Messages(ctx context.Context, ident identity.Identity, convPublicID string) (*chat.Conversation, []*chat.Message, error)
	ListConversations(ctx context.Context, ident identity.Identity, archived bool) ([]*chat.Conversation, error)
	MarkRead(ctx context.Context, ident identity.Identity, convPublicID string) error
	SetStatus(ctx context.Context, ident identity.Identity, convPublicID string, target chat.ConversationStatus) (*chat.Conversation, error)
	ClearHistory(ctx context.Context, ident identity.Identity, convPublicID string) error
	DeleteConversation(ctx context.Context, ident identity.Identity, convPublicID string) error
}

// ChatHandler adapts the conversation service for HTTP routes and records
// domain metrics on the way through.
type ChatHandler struct {
	service      ConversationService
	pollInterval time.Duration
	logger       zerolog.Logger
}

func NewChatHandler(service ConversationService, pollInterval time.Duration, logger zerolog.Logger) *ChatHandler {
	return &ChatHandler{
		service:      service,
		pollInterval: pollInterval,
		logger:       logger,
	}
}

// PollInterval is the wait clients should observe between fetches.
func (h *ChatHandler) PollInterval() time.Duration {
	return h.pollInterval
}

// StartGuestConversation opens a guest thread.
func (h *ChatHandler) StartGuestConversation(ctx context.Context, name, email string) (*chat.Conversation, error) {
	conv, err := h.service.StartGuestConversation(ctx, name, email)
	if err != nil {
		return nil, err
	}
	metrics.RecordConversationStarted(string(identity.KindGuest))
	return conv, nil
}

// MyConversation resolves the caller's own thread.
func (h *ChatHandler) MyConversation(ctx context.Context, ident identity.Identity) (*chat.Conversation, error) {
	conv, err := h.service.MyConversation(ctx, ident)
	if err != nil {
		h.recordDenial(err)
		return nil, err
	}
	return conv, nil
}

// PostMessage appends a message on behalf of the caller.
func (h *ChatHandler) PostMessage(ctx context.Context, ident identity.Identity, input chat.PostMessageInput) (*chat.Message, error) {
	msg, err := h.service.PostMessage(ctx, ident, input)
	if err != nil {
		h.recordDenial(err)
		return nil, err
	}
	metrics.RecordMessageIngested(string(msg.SenderRole))
	return msg, nil
}

// Messages fetches the conversation snapshot and visible history.
func (h *ChatHandler) Messages(ctx context.Context, ident identity.Identity, convPublicID string) (*chat.Conversation, []*chat.Message, error) {
	conv, msgs, err := h.service.Messages(ctx, ident, convPublicID)
	if err != nil {
		h.recordDenial(err)
		return nil, nil, err
	}
	return conv, msgs, nil
}

// ListConversations returns the admin inbox for a bucket.
func (h *ChatHandler) ListConversations(ctx context.Context, ident identity.Identity, archived bool) ([]*chat.Conversation, error) {
	return h.service.ListConversations(ctx, ident, archived)
}

// MarkRead flags the counterparty's messages as seen.
func (h *ChatHandler) MarkRead(ctx context.Context, ident identity.Identity, convPublicID string) error {
	if err := h.service.MarkRead(ctx, ident, convPublicID); err != nil {
		h.recordDenial(err)
		return err
	}
	return nil
}

// SetStatus moves the conversation through its lifecycle.
func (h *ChatHandler) SetStatus(ctx context.Context, ident identity.Identity, convPublicID string, target chat.ConversationStatus) (*chat.Conversation, error) {
	return h.service.SetStatus(ctx, ident, convPublicID, target)
}

// ClearHistory hides prior messages from the non-admin party.
func (h *ChatHandler) ClearHistory(ctx context.Context, ident identity.Identity, convPublicID string) error {
	return h.service.ClearHistory(ctx, ident, convPublicID)
}

// DeleteConversation permanently removes a thread and its messages.
func (h *ChatHandler) DeleteConversation(ctx context.Context, ident identity.Identity, convPublicID string) error {
	return h.service.DeleteConversation(ctx, ident, convPublicID)
}

func (h *ChatHandler) recordDenial(err error) {
	for _, errorType := range []platformerrors.ErrorType{
		platformerrors.ErrorTypeForbidden,
		platformerrors.ErrorTypeClosed,
		platformerrors.ErrorTypeUnauthorized,
	} {
		if platformerrors.IsErrorType(err, errorType) {
			metrics.RecordAccessDenied(string(errorType))
			return
		}
	}
}
