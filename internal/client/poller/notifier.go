package poller

import (
	chatresponses "staybook-server/services/chat-api/internal/interfaces/httpserver/responses/chat"
)

// Notifier receives the local side effects of a poll cycle: one call per
// newly observed counterparty message, one call per inbox thread with fresh
// unread activity, and a single closed notice per conversation.
// Implementations drive sounds, OS notifications, or UI badges; the poller
// guarantees the dedup contracts so implementations need none of their own.
type Notifier interface {
	NotifyMessage(conversationID string, msg chatresponses.MessagePayload)
	NotifyConversation(conv chatresponses.ConversationPayload)
	NotifyClosed(conversationID string)
}

// NopNotifier discards all notifications.
type NopNotifier struct{}

func (NopNotifier) NotifyMessage(string, chatresponses.MessagePayload)   {}
func (NopNotifier) NotifyConversation(chatresponses.ConversationPayload) {}
func (NopNotifier) NotifyClosed(string)                                  {}
