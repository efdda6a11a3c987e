package chat

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"staybook-server/services/chat-api/internal/domain/identity"
	"staybook-server/services/chat-api/internal/utils/idgen"
	"staybook-server/services/chat-api/internal/utils/platformerrors"
)

// ChatService owns every mutation of conversation state. The conversation
// row (unread_count and status) is the only hot shared resource; all writes
// to it funnel through here and through the repository's transactional
// updates.
type ChatService struct {
	convRepo ConversationRepository
	msgRepo  MessageRepository
	gate     *Gate
	logger   zerolog.Logger
}

func NewChatService(convRepo ConversationRepository, msgRepo MessageRepository, gate *Gate, logger zerolog.Logger) *ChatService {
	return &ChatService{
		convRepo: convRepo,
		msgRepo:  msgRepo,
		gate:     gate,
		logger:   logger,
	}
}

// ===============================================
// Conversation Resolution
// ===============================================

// GetConversation loads a conversation by public ID or returns NotFound.
func (s *ChatService) GetConversation(ctx context.Context, publicID string) (*Conversation, error) {
	conv, err := s.convRepo.FindByPublicID(ctx, publicID)
	if err != nil {
		return nil, platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "conversation not found")
	}
	return conv, nil
}

// StartGuestConversation mints a guest pseudo-identity and creates its
// conversation. The returned public ID is the guest's only credential; the
// client must persist it locally, and losing it strands the history.
func (s *ChatService) StartGuestConversation(ctx context.Context, name, email string) (*Conversation, error) {
	participantID, err := idgen.GenerateSecureID("guest", 20)
	if err != nil {
		return nil, platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "failed to generate guest identity")
	}

	publicID, err := idgen.GenerateSecureID("conv", 16)
	if err != nil {
		return nil, platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "failed to generate conversation ID")
	}

	conv := NewConversation(publicID, participantID, &name, &email)
	if err := s.convRepo.Create(ctx, conv); err != nil {
		return nil, platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "failed to create guest conversation")
	}

	s.logger.Info().Str("conversation_id", conv.PublicID).Msg("guest conversation started")
	return conv, nil
}

// resolveForUser returns the user's single active conversation, creating one
// when none exists. Closed conversations are never reused; archived ones are
// not "active" and therefore not reused either, which preserves the
// one-active-conversation-per-participant invariant.
func (s *ChatService) resolveForUser(ctx context.Context, userID string) (*Conversation, error) {
	existing, err := s.convRepo.FindActiveByParticipant(ctx, userID)
	if err != nil {
		return nil, platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "failed to look up active conversation")
	}
	if existing != nil {
		return existing, nil
	}

	publicID, err := idgen.GenerateSecureID("conv", 16)
	if err != nil {
		return nil, platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "failed to generate conversation ID")
	}

	conv := NewConversation(publicID, userID, nil, nil)
	if err := s.convRepo.Create(ctx, conv); err != nil {
		// A concurrent first post can win the insert under the partial
		// unique index on (participant_id) WHERE status='active'; adopt the
		// winner's row instead of surfacing the conflict.
		if winner, lookupErr := s.convRepo.FindActiveByParticipant(ctx, userID); lookupErr == nil && winner != nil {
			return winner, nil
		}
		return nil, platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "failed to create conversation")
	}
	return conv, nil
}

// MyConversation resolves the caller's own thread without requiring the
// client to hold its ID: a user gets their single active conversation, a
// guest gets the conversation their stored credential points at. Admins use
// the inbox listing instead. NotFound means the caller has no thread yet.
func (s *ChatService) MyConversation(ctx context.Context, ident identity.Identity) (*Conversation, error) {
	switch ident.Kind {
	case identity.KindUser:
		conv, err := s.convRepo.FindActiveByParticipant(ctx, ident.UserID)
		if err != nil {
			return nil, platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "failed to look up active conversation")
		}
		if conv == nil {
			return nil, platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeNotFound, "no active conversation", nil, "9f1b3d5a-7c0e-4b2d-8f4a-6c8e0a2b4d62")
		}
		return conv, nil
	case identity.KindGuest:
		conv, err := s.GetConversation(ctx, ident.ConversationID)
		if err != nil {
			return nil, err
		}
		if err := s.gate.CanRead(ctx, ident, conv); err != nil {
			return nil, err
		}
		return conv, nil
	default:
		return nil, platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeForbidden, "conversation resolution is a participant action", nil, "4b6d8f0a-2c4e-4d6f-8a0c-2e4f6a8c0d73")
	}
}

// ===============================================
// Message Ingestion
// ===============================================

// PostMessageInput carries a send request. ConversationPublicID may be nil
// only for authenticated non-admin users, which triggers auto-resolution of
// their single active conversation.
type PostMessageInput struct {
	ConversationPublicID *string
	Content              string
	Image                *string
}

// PostMessage validates, gates, and atomically appends a message. The
// message insert, last_message_at advance, and unread increment happen in
// one repository transaction so concurrent sends on the same conversation
// never drop an increment.
func (s *ChatService) PostMessage(ctx context.Context, ident identity.Identity, input PostMessageInput) (*Message, error) {
	if input.Content == "" && (input.Image == nil || *input.Image == "") {
		return nil, platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeValidation, "message requires content or an image", nil, "e8f2a6b4-3c1d-4a9e-8b5f-7d0c2e4a6b81")
	}

	var conv *Conversation
	var err error
	switch {
	case input.ConversationPublicID != nil:
		conv, err = s.GetConversation(ctx, *input.ConversationPublicID)
		if err != nil {
			return nil, err
		}
	case ident.Kind == identity.KindUser:
		conv, err = s.resolveForUser(ctx, ident.UserID)
		if err != nil {
			return nil, err
		}
	default:
		// Guests create conversations through the explicit start step;
		// admins always reply into an existing thread.
		return nil, platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeValidation, "conversation ID is required", nil, "b3d5f7a9-1e2c-4b6d-8a0f-9c1e3b5d7f02")
	}

	if err := s.gate.CanWrite(ctx, ident, conv); err != nil {
		return nil, err
	}

	publicID, err := idgen.GenerateSecureID("msg", 16)
	if err != nil {
		return nil, platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "failed to generate message ID")
	}

	msg := &Message{
		PublicID:             publicID,
		ConversationID:       conv.ID,
		ConversationPublicID: conv.PublicID,
		SenderID:             s.senderID(ident, conv),
		SenderRole:           s.senderRole(ident),
		Content:              input.Content,
		Image:                input.Image,
		CreatedAt:            time.Now(),
	}

	if err := s.msgRepo.Append(ctx, msg); err != nil {
		return nil, platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "failed to append message")
	}

	return msg, nil
}

func (s *ChatService) senderRole(ident identity.Identity) SenderRole {
	if ident.Kind == identity.KindAdmin {
		return SenderRoleAdmin
	}
	// Guests are represented as role "user".
	return SenderRoleUser
}

func (s *ChatService) senderID(ident identity.Identity, conv *Conversation) string {
	switch ident.Kind {
	case identity.KindAdmin, identity.KindUser:
		return ident.UserID
	default:
		return conv.ParticipantID
	}
}

// ===============================================
// Reads
// ===============================================

// Messages returns the conversation's ordered history, gated and filtered by
// the caller's cleared-history cutoff.
func (s *ChatService) Messages(ctx context.Context, ident identity.Identity, convPublicID string) (*Conversation, []*Message, error) {
	conv, err := s.GetConversation(ctx, convPublicID)
	if err != nil {
		return nil, nil, err
	}
	if err := s.gate.CanRead(ctx, ident, conv); err != nil {
		return nil, nil, err
	}

	msgs, err := s.msgRepo.ListByConversation(ctx, conv.ID, s.gate.VisibilityCutoff(ident, conv))
	if err != nil {
		return nil, nil, platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "failed to list messages")
	}
	for _, msg := range msgs {
		msg.ConversationPublicID = conv.PublicID
	}
	return conv, msgs, nil
}

// ListConversations returns the admin inbox, archived bucket or not, sorted
// by last activity.
func (s *ChatService) ListConversations(ctx context.Context, ident identity.Identity, archived bool) ([]*Conversation, error) {
	if !ident.IsAdmin() {
		return nil, platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeForbidden, "admin access required", nil, "1a3c5e7f-9b2d-4c6e-8f0a-2b4d6e8f0a13")
	}
	convs, err := s.convRepo.FindByFilter(ctx, ConversationFilter{Archived: &archived})
	if err != nil {
		return nil, platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "failed to list conversations")
	}
	return convs, nil
}

// ===============================================
// Read-State Reconciliation
// ===============================================

// MarkRead flags the counterparty's messages as read for the acting role.
// An admin call additionally zeroes the admin-facing unread counter; there
// is no symmetric per-user counter - the widget computes its own transient
// count from is_read flags on each poll. Idempotent.
func (s *ChatService) MarkRead(ctx context.Context, ident identity.Identity, convPublicID string) error {
	conv, err := s.GetConversation(ctx, convPublicID)
	if err != nil {
		return err
	}
	if err := s.gate.CanRead(ctx, ident, conv); err != nil {
		return err
	}

	actingRole := s.senderRole(ident)
	if err := s.msgRepo.MarkReadBySenderRole(ctx, conv.ID, actingRole.Counterparty()); err != nil {
		return platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "failed to mark messages read")
	}

	if actingRole == SenderRoleAdmin {
		if err := s.convRepo.ZeroUnread(ctx, conv.ID); err != nil {
			return platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "failed to reset unread counter")
		}
	}
	return nil
}

// ===============================================
// Lifecycle Transitions
// ===============================================

// SetStatus applies an admin close or archive. Closed never reopens; the
// participant's only recovery is a brand-new conversation.
func (s *ChatService) SetStatus(ctx context.Context, ident identity.Identity, convPublicID string, target ConversationStatus) (*Conversation, error) {
	if !ident.IsAdmin() {
		return nil, platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeForbidden, "admin access required", nil, "5d7f9a1b-3c5e-4d7f-9a1b-3c5e7f9a1b35")
	}
	if target != ConversationStatusClosed && target != ConversationStatusArchived {
		return nil, platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeValidation, "unsupported target status", nil, "8e0a2c4d-6f8a-4b0c-8d0e-2f4a6c8e0a24")
	}

	conv, err := s.GetConversation(ctx, convPublicID)
	if err != nil {
		return nil, err
	}
	if !conv.CanTransitionTo(target) {
		return nil, platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeConflict, "invalid status transition", nil, "2b4d6f8a-0c2e-4f6a-8c0e-4f6a8c0e2b46")
	}

	var archivedAt *time.Time
	if target == ConversationStatusArchived {
		now := time.Now()
		archivedAt = &now
	}
	if err := s.convRepo.UpdateStatus(ctx, conv.ID, target, archivedAt); err != nil {
		return nil, platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "failed to update conversation status")
	}

	conv.Status = target
	conv.ArchivedAt = archivedAt
	s.logger.Info().Str("conversation_id", conv.PublicID).Str("status", string(target)).Msg("conversation status changed")
	return conv, nil
}

// ClearHistory hides the conversation's history from the non-admin party.
// Only the owning participant may clear; admin keeps full visibility.
func (s *ChatService) ClearHistory(ctx context.Context, ident identity.Identity, convPublicID string) error {
	if ident.IsAdmin() {
		return platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeForbidden, "clearing history is a participant action", nil, "6c8e0a2b-4d6f-4a8c-0e2f-4a6c8e0a2b57")
	}

	conv, err := s.GetConversation(ctx, convPublicID)
	if err != nil {
		return err
	}
	if err := s.gate.CanRead(ctx, ident, conv); err != nil {
		return err
	}

	if err := s.convRepo.SetUserClearedAt(ctx, conv.ID, time.Now()); err != nil {
		return platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "failed to clear history")
	}
	return nil
}

// DeleteConversation is the explicit admin destroy path; messages cascade.
func (s *ChatService) DeleteConversation(ctx context.Context, ident identity.Identity, convPublicID string) error {
	if !ident.IsAdmin() {
		return platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeForbidden, "admin access required", nil, "0a2c4e6f-8b0d-4e6f-8a0c-2e4f6a8c0d24")
	}

	conv, err := s.GetConversation(ctx, convPublicID)
	if err != nil {
		return err
	}
	if err := s.convRepo.Delete(ctx, conv.ID); err != nil {
		return platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "failed to delete conversation")
	}
	s.logger.Warn().Str("conversation_id", conv.PublicID).Msg("conversation deleted")
	return nil
}

// ===============================================
// Retention
// ===============================================

// SweepArchived permanently deletes conversations archived longer than the
// retention window, cascading their messages. Destructive and unconditional:
// no notification, no recovery path.
func (s *ChatService) SweepArchived(ctx context.Context, retention time.Duration) (int64, error) {
	cutoff := time.Now().Add(-retention)
	purged, err := s.convRepo.DeleteArchivedBefore(ctx, cutoff)
	if err != nil {
		return 0, platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "retention sweep failed")
	}
	if purged > 0 {
		s.logger.Warn().Int64("purged", purged).Time("cutoff", cutoff).Msg("retention sweep purged archived conversations")
	}
	return purged, nil
}
