package chat

import (
	"context"
	"time"

	"staybook-server/services/chat-api/internal/domain/identity"
	"staybook-server/services/chat-api/internal/utils/platformerrors"
)

// Gate is the single decision point for NotFound/Forbidden/Closed. Every
// read and write against a conversation passes through here before any
// repository mutation; downstream layers only add validation errors.
type Gate struct{}

func NewGate() *Gate {
	return &Gate{}
}

// CanRead decides read access.
//
// Admin reads anything. A user reads only their own conversation while it is
// not closed. A guest reads only the conversation their stored ID points at,
// and only if its participant carries the guest marker - possession of a
// foreign conversation ID yields Forbidden, never data.
func (g *Gate) CanRead(ctx context.Context, ident identity.Identity, conv *Conversation) error {
	switch ident.Kind {
	case identity.KindAdmin:
		return nil
	case identity.KindUser:
		if conv.ParticipantID != ident.UserID {
			return platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeForbidden, "conversation belongs to another participant", nil, "c54f1f51-2b12-4a52-9f06-0f6f3f2a9d41")
		}
		if conv.IsClosed() {
			return g.closedErr(ctx)
		}
		return nil
	case identity.KindGuest:
		if conv.PublicID != ident.ConversationID || !identity.IsGuestParticipant(conv.ParticipantID) {
			return platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeForbidden, "conversation does not belong to this guest", nil, "7d2c3f80-5583-4d24-9a41-b21de3f6c7a2")
		}
		if conv.IsClosed() {
			return g.closedErr(ctx)
		}
		return nil
	}
	// Unknown identity kinds never fall through to an allow.
	return platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeForbidden, "unrecognized identity", nil, "4f0e9a13-8d2b-47c6-a1b5-6f1f0c2d3e44")
}

// CanWrite decides write access: the read ownership rules, plus closed
// conversations reject writes from every role, admin included.
func (g *Gate) CanWrite(ctx context.Context, ident identity.Identity, conv *Conversation) error {
	if ident.Kind == identity.KindAdmin {
		if conv.IsClosed() {
			return g.closedErr(ctx)
		}
		return nil
	}
	// Non-admin write shares the read ownership checks, which already
	// reject closed conversations.
	return g.CanRead(ctx, ident, conv)
}

// VisibilityCutoff returns the cleared-history cutoff for the caller, or nil
// when the full history is visible. Admin is exempt.
func (g *Gate) VisibilityCutoff(ident identity.Identity, conv *Conversation) *time.Time {
	if ident.Kind == identity.KindAdmin {
		return nil
	}
	return conv.UserClearedAt
}

func (g *Gate) closedErr(ctx context.Context) error {
	return platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeClosed, "conversation is closed", nil, "9b7a5c2e-1d4f-4e8a-b3c6-2f5a8d1e0b73")
}
