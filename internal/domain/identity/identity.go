package identity

import "strings"

// Kind tags the caller classes the chat core distinguishes. Every access
// decision switches exhaustively on this tag so a new caller class cannot
// fall through to an implicit allow.
type Kind string

const (
	KindAdmin Kind = "admin"
	KindUser  Kind = "user"
	KindGuest Kind = "guest"
)

// GuestParticipantPrefix marks participant IDs that belong to anonymous
// guests. A guest pseudo-identity is minted once, stored client-side, and
// never maps to an account.
const GuestParticipantPrefix = "guest_"

// Identity is the resolved caller: an admin, an authenticated user with a
// stable account ID, or an anonymous guest whose only credential is
// possession of a conversation ID.
type Identity struct {
	Kind Kind

	// UserID is set for KindAdmin and KindUser.
	UserID string

	// ConversationID is set for KindGuest: the only conversation the guest
	// may touch.
	ConversationID string
}

// Admin returns an administrator identity.
func Admin(userID string) Identity {
	return Identity{Kind: KindAdmin, UserID: userID}
}

// User returns an authenticated non-admin identity.
func User(userID string) Identity {
	return Identity{Kind: KindUser, UserID: userID}
}

// Guest returns an anonymous identity bound to a single conversation.
func Guest(conversationID string) Identity {
	return Identity{Kind: KindGuest, ConversationID: conversationID}
}

// IsAdmin reports whether the identity carries the elevated role.
func (i Identity) IsAdmin() bool {
	return i.Kind == KindAdmin
}

// IsGuestParticipant reports whether a conversation participant ID carries
// the guest marker.
func IsGuestParticipant(participantID string) bool {
	return strings.HasPrefix(participantID, GuestParticipantPrefix)
}
