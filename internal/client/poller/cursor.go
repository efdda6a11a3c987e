package poller

// Cursor is the per-conversation "last seen" state a polling client carries
// between cycles. It is explicit and owned by the poller: switching the
// viewer to another conversation resets it wholesale, so stale comparisons
// from a previous thread can never leak into the new one.
type Cursor struct {
	// ConversationID is the thread this cursor tracks.
	ConversationID string

	// LastMessageID is the trailing message public ID of the last applied
	// snapshot. Empty until the first successful fetch.
	LastMessageID string

	// MessageCount is the size of the last applied snapshot.
	MessageCount int

	// Primed reports whether at least one snapshot has been applied. The
	// initial backlog is never treated as new: history loads silently.
	Primed bool

	// ClosedNotified records that the one-time closed notification has
	// already fired for this conversation.
	ClosedNotified bool
}

// Reset rebinds the cursor to a conversation, dropping all tracking state.
func (c *Cursor) Reset(conversationID string) {
	*c = Cursor{ConversationID: conversationID}
}
