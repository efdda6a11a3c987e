package chat_test

import (
	"context"
	"testing"
	"time"

	"staybook-server/services/chat-api/internal/domain/chat"
	"staybook-server/services/chat-api/internal/domain/identity"
	"staybook-server/services/chat-api/internal/utils/platformerrors"
)

func activeConversation(publicID, participantID string) *chat.Conversation {
	return &chat.Conversation{
		ID:            1,
		PublicID:      publicID,
		ParticipantID: participantID,
		Status:        chat.ConversationStatusActive,
	}
}

func TestGate_AdminReadsAnything(t *testing.T) {
	gate := chat.NewGate()
	ctx := context.Background()
	admin := identity.Admin("admin-1")

	for _, status := range []chat.ConversationStatus{
		chat.ConversationStatusActive,
		chat.ConversationStatusClosed,
		chat.ConversationStatusArchived,
	} {
		conv := activeConversation("conv_a", "user-9")
		conv.Status = status
		if err := gate.CanRead(ctx, admin, conv); err != nil {
			t.Errorf("admin read on %s conversation: unexpected error %v", status, err)
		}
	}
}

func TestGate_UserOwnership(t *testing.T) {
	gate := chat.NewGate()
	ctx := context.Background()
	conv := activeConversation("conv_a", "user-1")

	if err := gate.CanRead(ctx, identity.User("user-1"), conv); err != nil {
		t.Fatalf("owner read: unexpected error %v", err)
	}
	err := gate.CanRead(ctx, identity.User("user-2"), conv)
	if !platformerrors.IsErrorType(err, platformerrors.ErrorTypeForbidden) {
		t.Fatalf("foreign user read: want Forbidden, got %v", err)
	}
}

func TestGate_UserReadClosedConversation(t *testing.T) {
	gate := chat.NewGate()
	ctx := context.Background()
	conv := activeConversation("conv_a", "user-1")
	conv.Status = chat.ConversationStatusClosed

	err := gate.CanRead(ctx, identity.User("user-1"), conv)
	if !platformerrors.IsErrorType(err, platformerrors.ErrorTypeClosed) {
		t.Fatalf("owner read on closed: want Closed, got %v", err)
	}
}

func TestGate_GuestCannotTouchForeignConversation(t *testing.T) {
	gate := chat.NewGate()
	ctx := context.Background()

	// Guest A holds g1; g2 belongs to another guest. The exact ID being
	// guessed must never yield data.
	g2 := activeConversation("conv_g2", "guest_othertoken")
	guestA := identity.Guest("conv_g1")

	if err := gate.CanRead(ctx, guestA, g2); !platformerrors.IsErrorType(err, platformerrors.ErrorTypeForbidden) {
		t.Fatalf("guest read of foreign conversation: want Forbidden, got %v", err)
	}
	if err := gate.CanWrite(ctx, guestA, g2); !platformerrors.IsErrorType(err, platformerrors.ErrorTypeForbidden) {
		t.Fatalf("guest write to foreign conversation: want Forbidden, got %v", err)
	}
}

func TestGate_GuestMarkerRequired(t *testing.T) {
	gate := chat.NewGate()
	ctx := context.Background()

	// Conversation ID matches but the participant is a real user account:
	// the guest path must not grant access to it.
	conv := activeConversation("conv_x", "user-1")
	err := gate.CanRead(ctx, identity.Guest("conv_x"), conv)
	if !platformerrors.IsErrorType(err, platformerrors.ErrorTypeForbidden) {
		t.Fatalf("guest read of user conversation: want Forbidden, got %v", err)
	}
}

func TestGate_GuestReadsOwnConversation(t *testing.T) {
	gate := chat.NewGate()
	ctx := context.Background()
	conv := activeConversation("conv_g1", "guest_sometoken")

	if err := gate.CanRead(ctx, identity.Guest("conv_g1"), conv); err != nil {
		t.Fatalf("guest read of own conversation: unexpected error %v", err)
	}
	if err := gate.CanWrite(ctx, identity.Guest("conv_g1"), conv); err != nil {
		t.Fatalf("guest write to own conversation: unexpected error %v", err)
	}
}

func TestGate_ClosedRejectsWritesForEveryRole(t *testing.T) {
	gate := chat.NewGate()
	ctx := context.Background()

	idents := []identity.Identity{
		identity.Admin("admin-1"),
		identity.User("user-1"),
		identity.Guest("conv_c"),
	}
	for _, ident := range idents {
		conv := activeConversation("conv_c", "user-1")
		if ident.Kind == identity.KindGuest {
			conv.ParticipantID = "guest_token"
		}
		conv.Status = chat.ConversationStatusClosed

		err := gate.CanWrite(ctx, ident, conv)
		if !platformerrors.IsErrorType(err, platformerrors.ErrorTypeClosed) {
			t.Errorf("%s write to closed conversation: want Closed, got %v", ident.Kind, err)
		}
	}
}

func TestGate_ArchivedStillAcceptsWrites(t *testing.T) {
	gate := chat.NewGate()
	ctx := context.Background()
	conv := activeConversation("conv_a", "user-1")
	conv.Status = chat.ConversationStatusArchived

	if err := gate.CanWrite(ctx, identity.Admin("admin-1"), conv); err != nil {
		t.Fatalf("admin write to archived conversation: unexpected error %v", err)
	}
	if err := gate.CanWrite(ctx, identity.User("user-1"), conv); err != nil {
		t.Fatalf("owner write to archived conversation: unexpected error %v", err)
	}
}

func TestGate_VisibilityCutoff(t *testing.T) {
	gate := chat.NewGate()
	cleared := time.Now().Add(-time.Hour)
	conv := activeConversation("conv_a", "user-1")
	conv.UserClearedAt = &cleared

	if got := gate.VisibilityCutoff(identity.Admin("admin-1"), conv); got != nil {
		t.Errorf("admin cutoff: want nil, got %v", got)
	}
	if got := gate.VisibilityCutoff(identity.User("user-1"), conv); got == nil || !got.Equal(cleared) {
		t.Errorf("user cutoff: want %v, got %v", cleared, got)
	}
	if got := gate.VisibilityCutoff(identity.Guest("conv_a"), conv); got == nil || !got.Equal(cleared) {
		t.Errorf("guest cutoff: want %v, got %v", cleared, got)
	}
}

func TestConversation_StatusTransitions(t *testing.T) {
	tests := []struct {
		from  chat.ConversationStatus
		to    chat.ConversationStatus
		allow bool
	}{
		{chat.ConversationStatusActive, chat.ConversationStatusClosed, true},
		{chat.ConversationStatusActive, chat.ConversationStatusArchived, true},
		{chat.ConversationStatusArchived, chat.ConversationStatusClosed, true},
		{chat.ConversationStatusArchived, chat.ConversationStatusArchived, false},
		{chat.ConversationStatusClosed, chat.ConversationStatusActive, false},
		{chat.ConversationStatusClosed, chat.ConversationStatusArchived, false},
	}
	for _, tt := range tests {
		conv := &chat.Conversation{Status: tt.from}
		if got := conv.CanTransitionTo(tt.to); got != tt.allow {
			t.Errorf("transition %s -> %s: want %v, got %v", tt.from, tt.to, tt.allow, got)
		}
	}
}
