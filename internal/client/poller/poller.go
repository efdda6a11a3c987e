package poller

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	domainchat "staybook-server/services/chat-api/internal/domain/chat"
	chatresponses "staybook-server/services/chat-api/internal/interfaces/httpserver/responses/chat"
	"staybook-server/services/chat-api/internal/utils/platformerrors"
)

// WidgetPoller drives the guest/user widget's fixed-interval fetch cycle
// for its single conversation. The admin console runs AdminPoller instead;
// both apply the same snapshot-diff contract: history loads silently, each
// newly observed counterparty message notifies exactly once, and a closed
// conversation raises a single closed notice.
type WidgetPoller struct {
	client   *Client
	notifier Notifier
	interval time.Duration
	logger   zerolog.Logger

	mu       sync.Mutex
	cursor   Cursor
	snapshot []chatresponses.MessagePayload
}

func NewWidgetPoller(client *Client, conversationID string, interval time.Duration, notifier Notifier, logger zerolog.Logger) *WidgetPoller {
	p := &WidgetPoller{
		client:   client,
		notifier: notifier,
		interval: interval,
		logger:   logger,
	}
	p.cursor.Reset(conversationID)
	return p
}

// SwitchConversation rebinds the poller to another conversation, dropping
// all last-seen tracking so comparisons never leak across threads.
func (p *WidgetPoller) SwitchConversation(conversationID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.cursor.Reset(conversationID)
	p.snapshot = nil
}

// Snapshot returns the last applied message set.
func (p *WidgetPoller) Snapshot() []chatresponses.MessagePayload {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]chatresponses.MessagePayload, len(p.snapshot))
	copy(out, p.snapshot)
	return out
}

// Run polls until the context is canceled or the conversation terminates.
// A closed conversation notifies once and stops cleanly; lost access stops
// with the error; transient failures skip the cycle and keep going.
func (p *WidgetPoller) Run(ctx context.Context) error {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		done, err := p.poll(ctx)
		if err != nil || done {
			return err
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// poll runs one fetch cycle. done=true means polling should stop without
// error (conversation closed).
func (p *WidgetPoller) poll(ctx context.Context) (bool, error) {
	convID := p.conversationID()
	if convID == "" {
		// idle: check whether the caller's credential resolves to a thread,
		// so a returning viewer rediscovers their conversation without
		// holding its ID locally
		conv, err := p.client.MyConversation(ctx)
		if ctx.Err() != nil {
			return true, ctx.Err()
		}
		if err != nil {
			switch {
			case platformerrors.IsErrorType(err, platformerrors.ErrorTypeNotFound):
				// no thread yet; stay idle
				return false, nil
			case platformerrors.IsErrorType(err, platformerrors.ErrorTypeClosed):
				p.notifyClosedOnce()
				return true, nil
			case platformerrors.IsErrorType(err, platformerrors.ErrorTypeForbidden),
				platformerrors.IsErrorType(err, platformerrors.ErrorTypeUnauthorized):
				return true, err
			default:
				p.logger.Debug().Err(err).Msg("idle resolution cycle skipped")
				return false, nil
			}
		}
		p.mu.Lock()
		p.cursor.Reset(conv.ID)
		p.snapshot = nil
		p.mu.Unlock()
		convID = conv.ID
	}

	resp, err := p.client.FetchMessages(ctx, convID)
	if ctx.Err() != nil {
		// viewer navigated away mid-flight; discard the result
		return true, ctx.Err()
	}

	if err != nil {
		switch {
		case platformerrors.IsErrorType(err, platformerrors.ErrorTypeClosed):
			p.notifyClosedOnce()
			return true, nil
		case platformerrors.IsErrorType(err, platformerrors.ErrorTypeForbidden),
			platformerrors.IsErrorType(err, platformerrors.ErrorTypeUnauthorized),
			platformerrors.IsErrorType(err, platformerrors.ErrorTypeNotFound):
			return true, err
		default:
			// transient failure: skip this cycle, no state change
			p.logger.Debug().Err(err).Msg("poll cycle skipped")
			return false, nil
		}
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if resp.Conversation.ID != p.cursor.ConversationID {
		// stale response for a conversation we already switched away from
		return false, nil
	}

	applySnapshot(&p.cursor, resp.Data, string(domainchat.SenderRoleAdmin), p.notifier)
	p.snapshot = resp.Data

	if resp.Conversation.Status == string(domainchat.ConversationStatusClosed) && !p.cursor.ClosedNotified {
		p.cursor.ClosedNotified = true
		p.notifier.NotifyClosed(p.cursor.ConversationID)
		return true, nil
	}
	return false, nil
}

func (p *WidgetPoller) conversationID() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cursor.ConversationID
}

func (p *WidgetPoller) notifyClosedOnce() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.cursor.ClosedNotified {
		p.cursor.ClosedNotified = true
		p.notifier.NotifyClosed(p.cursor.ConversationID)
	}
}

// AdminPoller drives the admin console: every cycle refreshes the inbox
// list, raising a notification per thread with fresh unread activity, plus
// the currently open conversation's messages when one is open.
type AdminPoller struct {
	client   *Client
	notifier Notifier
	interval time.Duration
	logger   zerolog.Logger

	mu            sync.Mutex
	cursor        Cursor
	conversations []chatresponses.ConversationPayload
	inboxPrimed   bool
	snapshot      []chatresponses.MessagePayload
}

func NewAdminPoller(client *Client, interval time.Duration, notifier Notifier, logger zerolog.Logger) *AdminPoller {
	return &AdminPoller{
		client:   client,
		notifier: notifier,
		interval: interval,
		logger:   logger,
	}
}

// OpenConversation points the message poll at a conversation, resetting all
// last-seen tracking. An empty ID closes the detail view.
func (p *AdminPoller) OpenConversation(conversationID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.cursor.Reset(conversationID)
	p.snapshot = nil
}

// Conversations returns the last applied inbox snapshot.
func (p *AdminPoller) Conversations() []chatresponses.ConversationPayload {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]chatresponses.ConversationPayload, len(p.conversations))
	copy(out, p.conversations)
	return out
}

// Snapshot returns the open conversation's last applied message set.
func (p *AdminPoller) Snapshot() []chatresponses.MessagePayload {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]chatresponses.MessagePayload, len(p.snapshot))
	copy(out, p.snapshot)
	return out
}

// Run polls until the context is canceled. Lost access stops with the
// error; transient failures skip the cycle.
func (p *AdminPoller) Run(ctx context.Context) error {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		if err := p.poll(ctx); err != nil {
			return err
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (p *AdminPoller) poll(ctx context.Context) error {
	list, err := p.client.FetchConversations(ctx, "")
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if err != nil {
		if platformerrors.IsErrorType(err, platformerrors.ErrorTypeForbidden) ||
			platformerrors.IsErrorType(err, platformerrors.ErrorTypeUnauthorized) {
			return err
		}
		p.logger.Debug().Err(err).Msg("inbox poll cycle skipped")
		return nil
	}

	p.mu.Lock()
	p.diffInbox(list.Data)
	p.conversations = list.Data
	p.inboxPrimed = true
	openConvID := p.cursor.ConversationID
	p.mu.Unlock()

	if openConvID == "" {
		return nil
	}

	resp, err := p.client.FetchMessages(ctx, openConvID)
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if err != nil {
		if platformerrors.IsErrorType(err, platformerrors.ErrorTypeForbidden) ||
			platformerrors.IsErrorType(err, platformerrors.ErrorTypeUnauthorized) {
			return err
		}
		p.logger.Debug().Err(err).Msg("message poll cycle skipped")
		return nil
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.cursor.ConversationID != openConvID {
		// admin switched threads while the fetch was in flight
		return nil
	}

	applySnapshot(&p.cursor, resp.Data, string(domainchat.SenderRoleUser), p.notifier)
	p.snapshot = resp.Data

	if resp.Conversation.Status == string(domainchat.ConversationStatusClosed) && !p.cursor.ClosedNotified {
		p.cursor.ClosedNotified = true
		p.notifier.NotifyClosed(p.cursor.ConversationID)
	}
	return nil
}

// diffInbox compares the fetched inbox against the previous one and fires a
// conversation notification for every thread whose unread counter grew,
// including threads seen for the first time. The first fetch primes silently,
// and the currently open conversation is skipped: its new messages already
// notify individually through the message diff. Caller holds p.mu.
func (p *AdminPoller) diffInbox(fetched []chatresponses.ConversationPayload) {
	if !p.inboxPrimed {
		return
	}
	prev := make(map[string]int, len(p.conversations))
	for _, conv := range p.conversations {
		prev[conv.ID] = conv.UnreadCount
	}
	for _, conv := range fetched {
		if conv.ID == p.cursor.ConversationID {
			continue
		}
		if conv.UnreadCount > prev[conv.ID] {
			p.notifier.NotifyConversation(conv)
		}
	}
}

// applySnapshot diffs a fetched message set against the cursor and fires
// one notification per newly observed message authored by the viewer's
// counterparty. The first snapshot after a reset primes the cursor
// silently: existing history is never "new".
func applySnapshot(cur *Cursor, msgs []chatresponses.MessagePayload, counterpartyRole string, notifier Notifier) {
	defer func() {
		if len(msgs) > 0 {
			cur.LastMessageID = msgs[len(msgs)-1].ID
		} else {
			cur.LastMessageID = ""
		}
		cur.MessageCount = len(msgs)
		cur.Primed = true
	}()

	if !cur.Primed {
		return
	}

	start := 0
	if cur.LastMessageID != "" {
		found := false
		for i := len(msgs) - 1; i >= 0; i-- {
			if msgs[i].ID == cur.LastMessageID {
				start = i + 1
				found = true
				break
			}
		}
		if !found {
			// trailing anchor vanished (history cleared); replace the
			// snapshot without re-firing for anything
			return
		}
	}

	for _, msg := range msgs[start:] {
		if msg.SenderRole == counterpartyRole {
			notifier.NotifyMessage(cur.ConversationID, msg)
		}
	}
}
