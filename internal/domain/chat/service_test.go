package chat_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"staybook-server/services/chat-api/internal/domain/chat"
	"staybook-server/services/chat-api/internal/domain/identity"
	"staybook-server/services/chat-api/internal/utils/platformerrors"
)

// memStore is an in-memory implementation of both repositories. Mutations
// hold a single mutex, which models the per-conversation serialized update
// the real repository achieves with a database transaction.
type memStore struct {
	mu            sync.Mutex
	nextID        uint
	conversations map[uint]*chat.Conversation
	messages      []*chat.Message
}

func newMemStore() *memStore {
	return &memStore{
		nextID:        1,
		conversations: make(map[uint]*chat.Conversation),
	}
}

func (m *memStore) Create(_ context.Context, conv *chat.Conversation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	conv.ID = m.nextID
	m.nextID++
	clone := *conv
	m.conversations[conv.ID] = &clone
	return nil
}

func (m *memStore) FindByID(ctx context.Context, id uint) (*chat.Conversation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	conv, ok := m.conversations[id]
	if !ok {
		return nil, platformerrors.NewError(ctx, platformerrors.LayerRepository, platformerrors.ErrorTypeNotFound, "conversation not found", nil, "")
	}
	clone := *conv
	return &clone, nil
}

func (m *memStore) FindByPublicID(ctx context.Context, publicID string) (*chat.Conversation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, conv := range m.conversations {
		if conv.PublicID == publicID {
			clone := *conv
			return &clone, nil
		}
	}
	return nil, platformerrors.NewError(ctx, platformerrors.LayerRepository, platformerrors.ErrorTypeNotFound, "conversation not found", nil, "")
}

func (m *memStore) FindActiveByParticipant(_ context.Context, participantID string) (*chat.Conversation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, conv := range m.conversations {
		if conv.ParticipantID == participantID && conv.Status == chat.ConversationStatusActive {
			clone := *conv
			return &clone, nil
		}
	}
	return nil, nil
}

func (m *memStore) FindByFilter(_ context.Context, filter chat.ConversationFilter) ([]*chat.Conversation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*chat.Conversation
	for _, conv := range m.conversations {
		if filter.Archived != nil && conv.IsArchived() != *filter.Archived {
			continue
		}
		clone := *conv
		out = append(out, &clone)
	}
	return out, nil
}

func (m *memStore) UpdateStatus(_ context.Context, id uint, status chat.ConversationStatus, archivedAt *time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	conv := m.conversations[id]
	conv.Status = status
	conv.ArchivedAt = archivedAt
	return nil
}

func (m *memStore) SetUserClearedAt(_ context.Context, id uint, clearedAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.conversations[id].UserClearedAt = &clearedAt
	return nil
}

func (m *memStore) ZeroUnread(_ context.Context, id uint) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.conversations[id].UnreadCount = 0
	return nil
}

func (m *memStore) Delete(_ context.Context, id uint) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.conversations, id)
	kept := m.messages[:0]
	for _, msg := range m.messages {
		if msg.ConversationID != id {
			kept = append(kept, msg)
		}
	}
	m.messages = kept
	return nil
}

func (m *memStore) DeleteArchivedBefore(_ context.Context, cutoff time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var purged int64
	for id, conv := range m.conversations {
		if conv.IsArchived() && conv.ArchivedAt != nil && conv.ArchivedAt.Before(cutoff) {
			delete(m.conversations, id)
			kept := m.messages[:0]
			for _, msg := range m.messages {
				if msg.ConversationID != id {
					kept = append(kept, msg)
				}
			}
			m.messages = kept
			purged++
		}
	}
	return purged, nil
}

func (m *memStore) Append(_ context.Context, msg *chat.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	msg.ID = m.nextID
	m.nextID++
	clone := *msg
	m.messages = append(m.messages, &clone)

	conv := m.conversations[msg.ConversationID]
	conv.LastMessageAt = msg.CreatedAt
	if msg.SenderRole == chat.SenderRoleUser {
		conv.UnreadCount++
	}
	return nil
}

func (m *memStore) ListByConversation(_ context.Context, conversationID uint, visibleAfter *time.Time) ([]*chat.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*chat.Message
	for _, msg := range m.messages {
		if msg.ConversationID != conversationID {
			continue
		}
		if visibleAfter != nil && !msg.CreatedAt.After(*visibleAfter) {
			continue
		}
		clone := *msg
		out = append(out, &clone)
	}
	return out, nil
}

func (m *memStore) MarkReadBySenderRole(_ context.Context, conversationID uint, senderRole chat.SenderRole) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, msg := range m.messages {
		if msg.ConversationID == conversationID && msg.SenderRole == senderRole {
			msg.IsRead = true
		}
	}
	return nil
}

func newTestService() (*chat.ChatService, *memStore) {
	store := newMemStore()
	svc := chat.NewChatService(store, store, chat.NewGate(), zerolog.Nop())
	return svc, store
}

func TestPostMessage_AutoResolvesUserConversation(t *testing.T) {
	svc, store := newTestService()
	ctx := context.Background()
	user := identity.User("user-7")

	msg, err := svc.PostMessage(ctx, user, chat.PostMessageInput{Content: "hello"})
	require.NoError(t, err)
	require.NotEmpty(t, msg.PublicID)

	conv, err := store.FindActiveByParticipant(ctx, "user-7")
	require.NoError(t, err)
	require.NotNil(t, conv)
	assert.Equal(t, chat.ConversationStatusActive, conv.Status)
	assert.Equal(t, 1, conv.UnreadCount)
	// the returned message names the resolved thread so the caller can
	// address follow-up requests at it
	assert.Equal(t, conv.PublicID, msg.ConversationPublicID)

	// Second post with no conversation ID reuses the same conversation.
	_, err = svc.PostMessage(ctx, user, chat.PostMessageInput{Content: "again"})
	require.NoError(t, err)

	convs, err := store.FindByFilter(ctx, chat.ConversationFilter{})
	require.NoError(t, err)
	assert.Len(t, convs, 1)
	assert.Equal(t, 2, convs[0].UnreadCount)
}

func TestPostMessage_EmptyPayloadRejected(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	_, err := svc.PostMessage(ctx, identity.User("user-1"), chat.PostMessageInput{})
	assert.True(t, platformerrors.IsErrorType(err, platformerrors.ErrorTypeValidation))

	empty := ""
	_, err = svc.PostMessage(ctx, identity.User("user-1"), chat.PostMessageInput{Image: &empty})
	assert.True(t, platformerrors.IsErrorType(err, platformerrors.ErrorTypeValidation))
}

func TestPostMessage_ImageOnlyAccepted(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	img := "https://cdn.example.com/upload/receipt.png"
	msg, err := svc.PostMessage(ctx, identity.User("user-1"), chat.PostMessageInput{Image: &img})
	require.NoError(t, err)
	assert.Empty(t, msg.Content)
	assert.Equal(t, img, *msg.Image)
}

func TestPostMessage_GuestRequiresConversationID(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	_, err := svc.PostMessage(ctx, identity.Guest(""), chat.PostMessageInput{Content: "hi"})
	assert.True(t, platformerrors.IsErrorType(err, platformerrors.ErrorTypeValidation))
}

func TestPostMessage_UnknownConversation(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	unknown := "conv_missing"
	_, err := svc.PostMessage(ctx, identity.User("user-1"), chat.PostMessageInput{ConversationPublicID: &unknown, Content: "hi"})
	assert.True(t, platformerrors.IsErrorType(err, platformerrors.ErrorTypeNotFound))
}

func TestUnreadCounter_AdminRepliesNeverCount(t *testing.T) {
	svc, store := newTestService()
	ctx := context.Background()
	user := identity.User("user-1")

	_, err := svc.PostMessage(ctx, user, chat.PostMessageInput{Content: "question"})
	require.NoError(t, err)

	conv, _ := store.FindActiveByParticipant(ctx, "user-1")
	convID := conv.PublicID

	_, err = svc.PostMessage(ctx, identity.Admin("admin-1"), chat.PostMessageInput{ConversationPublicID: &convID, Content: "answer"})
	require.NoError(t, err)

	conv, _ = store.FindByPublicID(ctx, convID)
	assert.Equal(t, 1, conv.UnreadCount, "admin reply must not change unread_count")
}

func TestMarkRead_AdminZeroesCounterAndFlagsMessages(t *testing.T) {
	svc, store := newTestService()
	ctx := context.Background()
	user := identity.User("user-1")
	admin := identity.Admin("admin-1")

	for i := 0; i < 3; i++ {
		_, err := svc.PostMessage(ctx, user, chat.PostMessageInput{Content: "msg"})
		require.NoError(t, err)
	}
	conv, _ := store.FindActiveByParticipant(ctx, "user-1")
	require.Equal(t, 3, conv.UnreadCount)

	require.NoError(t, svc.MarkRead(ctx, admin, conv.PublicID))

	conv, _ = store.FindByPublicID(ctx, conv.PublicID)
	assert.Equal(t, 0, conv.UnreadCount)

	msgs, _ := store.ListByConversation(ctx, conv.ID, nil)
	for _, msg := range msgs {
		assert.True(t, msg.IsRead, "user-authored message should be read after admin reconcile")
	}

	// Idempotent: a second call changes nothing and does not error.
	require.NoError(t, svc.MarkRead(ctx, admin, conv.PublicID))
	conv, _ = store.FindByPublicID(ctx, conv.PublicID)
	assert.Equal(t, 0, conv.UnreadCount)
}

func TestMarkRead_UserDoesNotTouchAdminCounter(t *testing.T) {
	svc, store := newTestService()
	ctx := context.Background()
	user := identity.User("user-1")

	_, err := svc.PostMessage(ctx, user, chat.PostMessageInput{Content: "q"})
	require.NoError(t, err)
	conv, _ := store.FindActiveByParticipant(ctx, "user-1")
	convID := conv.PublicID

	_, err = svc.PostMessage(ctx, identity.Admin("admin-1"), chat.PostMessageInput{ConversationPublicID: &convID, Content: "a"})
	require.NoError(t, err)

	require.NoError(t, svc.MarkRead(ctx, user, convID))

	conv, _ = store.FindByPublicID(ctx, convID)
	assert.Equal(t, 1, conv.UnreadCount, "user mark-read must not zero the admin counter")

	msgs, _ := store.ListByConversation(ctx, conv.ID, nil)
	for _, msg := range msgs {
		if msg.SenderRole == chat.SenderRoleAdmin {
			assert.True(t, msg.IsRead)
		} else {
			assert.False(t, msg.IsRead)
		}
	}
}

func TestCloseConversation_BlocksFurtherWritesKeepsAdminHistory(t *testing.T) {
	svc, store := newTestService()
	ctx := context.Background()
	user := identity.User("user-1")
	admin := identity.Admin("admin-1")

	_, err := svc.PostMessage(ctx, user, chat.PostMessageInput{Content: "first"})
	require.NoError(t, err)
	conv, _ := store.FindActiveByParticipant(ctx, "user-1")
	convID := conv.PublicID

	_, err = svc.PostMessage(ctx, user, chat.PostMessageInput{ConversationPublicID: &convID, Content: "second"})
	require.NoError(t, err)

	_, err = svc.SetStatus(ctx, admin, convID, chat.ConversationStatusClosed)
	require.NoError(t, err)

	_, err = svc.PostMessage(ctx, user, chat.PostMessageInput{ConversationPublicID: &convID, Content: "third"})
	assert.True(t, platformerrors.IsErrorType(err, platformerrors.ErrorTypeClosed))

	// Admin still reads the full prior history.
	_, msgs, err := svc.Messages(ctx, admin, convID)
	require.NoError(t, err)
	assert.Len(t, msgs, 2)

	// The participant gets the Closed signal on read.
	_, _, err = svc.Messages(ctx, user, convID)
	assert.True(t, platformerrors.IsErrorType(err, platformerrors.ErrorTypeClosed))
}

func TestCloseConversation_UserStartsFreshThread(t *testing.T) {
	svc, store := newTestService()
	ctx := context.Background()
	user := identity.User("user-1")
	admin := identity.Admin("admin-1")

	_, err := svc.PostMessage(ctx, user, chat.PostMessageInput{Content: "hello"})
	require.NoError(t, err)
	first, _ := store.FindActiveByParticipant(ctx, "user-1")

	_, err = svc.SetStatus(ctx, admin, first.PublicID, chat.ConversationStatusClosed)
	require.NoError(t, err)

	// Posting without an ID after close creates a brand-new conversation.
	_, err = svc.PostMessage(ctx, user, chat.PostMessageInput{Content: "hello again"})
	require.NoError(t, err)

	second, _ := store.FindActiveByParticipant(ctx, "user-1")
	require.NotNil(t, second)
	assert.NotEqual(t, first.PublicID, second.PublicID)
}

func TestClearHistory_HidesOldMessagesFromParticipantOnly(t *testing.T) {
	svc, store := newTestService()
	ctx := context.Background()
	user := identity.User("user-1")
	admin := identity.Admin("admin-1")

	_, err := svc.PostMessage(ctx, user, chat.PostMessageInput{Content: "old"})
	require.NoError(t, err)
	conv, _ := store.FindActiveByParticipant(ctx, "user-1")
	convID := conv.PublicID

	require.NoError(t, svc.ClearHistory(ctx, user, convID))

	// Later message stays visible; pre-clear history does not. The memStore
	// records message timestamps from time.Now(), so nudge past the cutoff.
	time.Sleep(5 * time.Millisecond)
	_, err = svc.PostMessage(ctx, user, chat.PostMessageInput{ConversationPublicID: &convID, Content: "new"})
	require.NoError(t, err)

	_, userMsgs, err := svc.Messages(ctx, user, convID)
	require.NoError(t, err)
	require.Len(t, userMsgs, 1)
	assert.Equal(t, "new", userMsgs[0].Content)

	_, adminMsgs, err := svc.Messages(ctx, admin, convID)
	require.NoError(t, err)
	assert.Len(t, adminMsgs, 2, "admin is exempt from the cleared-history filter")
}

func TestClearHistory_AdminRejected(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	err := svc.ClearHistory(ctx, identity.Admin("admin-1"), "conv_any")
	assert.True(t, platformerrors.IsErrorType(err, platformerrors.ErrorTypeForbidden))
}

func TestStartGuestConversation(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	conv, err := svc.StartGuestConversation(ctx, "Ana", "ana@example.com")
	require.NoError(t, err)
	assert.True(t, identity.IsGuestParticipant(conv.ParticipantID))
	assert.Equal(t, chat.ConversationStatusActive, conv.Status)
	assert.Equal(t, 0, conv.UnreadCount)

	// The minted guest identity can message its own conversation.
	guest := identity.Guest(conv.PublicID)
	_, err = svc.PostMessage(ctx, guest, chat.PostMessageInput{ConversationPublicID: &conv.PublicID, Content: "hi"})
	require.NoError(t, err)
}

func TestListConversations_AdminOnlyAndBucketed(t *testing.T) {
	svc, store := newTestService()
	ctx := context.Background()
	admin := identity.Admin("admin-1")

	_, err := svc.PostMessage(ctx, identity.User("user-1"), chat.PostMessageInput{Content: "a"})
	require.NoError(t, err)
	_, err = svc.PostMessage(ctx, identity.User("user-2"), chat.PostMessageInput{Content: "b"})
	require.NoError(t, err)

	conv, _ := store.FindActiveByParticipant(ctx, "user-2")
	_, err = svc.SetStatus(ctx, admin, conv.PublicID, chat.ConversationStatusArchived)
	require.NoError(t, err)

	active, err := svc.ListConversations(ctx, admin, false)
	require.NoError(t, err)
	assert.Len(t, active, 1)

	archived, err := svc.ListConversations(ctx, admin, true)
	require.NoError(t, err)
	assert.Len(t, archived, 1)

	_, err = svc.ListConversations(ctx, identity.User("user-1"), false)
	assert.True(t, platformerrors.IsErrorType(err, platformerrors.ErrorTypeForbidden))
}

func TestSweepArchived_RespectsRetentionWindow(t *testing.T) {
	svc, store := newTestService()
	ctx := context.Background()
	admin := identity.Admin("admin-1")

	_, err := svc.PostMessage(ctx, identity.User("user-1"), chat.PostMessageInput{Content: "old thread"})
	require.NoError(t, err)
	conv, _ := store.FindActiveByParticipant(ctx, "user-1")

	_, err = svc.SetStatus(ctx, admin, conv.PublicID, chat.ConversationStatusArchived)
	require.NoError(t, err)

	// Backdate the archive timestamp to simulate age.
	archivedAt := time.Now().Add(-31 * 24 * time.Hour)
	require.NoError(t, store.UpdateStatus(ctx, conv.ID, chat.ConversationStatusArchived, &archivedAt))

	// Sweep with a window larger than the age leaves it intact.
	purged, err := svc.SweepArchived(ctx, 60*24*time.Hour)
	require.NoError(t, err)
	assert.Zero(t, purged)

	// Sweep with the 30-day policy removes it and cascades messages.
	purged, err = svc.SweepArchived(ctx, 30*24*time.Hour)
	require.NoError(t, err)
	assert.EqualValues(t, 1, purged)

	_, err = store.FindByPublicID(ctx, conv.PublicID)
	assert.True(t, platformerrors.IsErrorType(err, platformerrors.ErrorTypeNotFound))
	msgs, _ := store.ListByConversation(ctx, conv.ID, nil)
	assert.Empty(t, msgs)
}

func TestSetStatus_InvalidTransitionsAndRoles(t *testing.T) {
	svc, store := newTestService()
	ctx := context.Background()
	admin := identity.Admin("admin-1")

	_, err := svc.PostMessage(ctx, identity.User("user-1"), chat.PostMessageInput{Content: "x"})
	require.NoError(t, err)
	conv, _ := store.FindActiveByParticipant(ctx, "user-1")

	_, err = svc.SetStatus(ctx, identity.User("user-1"), conv.PublicID, chat.ConversationStatusClosed)
	assert.True(t, platformerrors.IsErrorType(err, platformerrors.ErrorTypeForbidden))

	_, err = svc.SetStatus(ctx, admin, conv.PublicID, chat.ConversationStatusActive)
	assert.True(t, platformerrors.IsErrorType(err, platformerrors.ErrorTypeValidation))

	_, err = svc.SetStatus(ctx, admin, conv.PublicID, chat.ConversationStatusClosed)
	require.NoError(t, err)

	// Closed is terminal.
	_, err = svc.SetStatus(ctx, admin, conv.PublicID, chat.ConversationStatusArchived)
	assert.True(t, platformerrors.IsErrorType(err, platformerrors.ErrorTypeConflict))
}

func TestMyConversation_UserResolvesActiveThread(t *testing.T) {
	svc, store := newTestService()
	ctx := context.Background()
	user := identity.User("user-1")

	// no thread yet
	_, err := svc.MyConversation(ctx, user)
	assert.True(t, platformerrors.IsErrorType(err, platformerrors.ErrorTypeNotFound))

	_, err = svc.PostMessage(ctx, user, chat.PostMessageInput{Content: "hello"})
	require.NoError(t, err)

	conv, err := svc.MyConversation(ctx, user)
	require.NoError(t, err)
	created, _ := store.FindActiveByParticipant(ctx, "user-1")
	assert.Equal(t, created.PublicID, conv.PublicID)

	// a closed thread is not resolvable; the user starts fresh instead
	_, err = svc.SetStatus(ctx, identity.Admin("admin-1"), conv.PublicID, chat.ConversationStatusClosed)
	require.NoError(t, err)
	_, err = svc.MyConversation(ctx, user)
	assert.True(t, platformerrors.IsErrorType(err, platformerrors.ErrorTypeNotFound))
}

func TestMyConversation_GuestResolvesOwnThreadOnly(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	conv, err := svc.StartGuestConversation(ctx, "Ana", "ana@example.com")
	require.NoError(t, err)

	resolved, err := svc.MyConversation(ctx, identity.Guest(conv.PublicID))
	require.NoError(t, err)
	assert.Equal(t, conv.PublicID, resolved.PublicID)

	// guests learn about closure through the resolution call too
	_, err = svc.SetStatus(ctx, identity.Admin("admin-1"), conv.PublicID, chat.ConversationStatusClosed)
	require.NoError(t, err)
	_, err = svc.MyConversation(ctx, identity.Guest(conv.PublicID))
	assert.True(t, platformerrors.IsErrorType(err, platformerrors.ErrorTypeClosed))

	_, err = svc.MyConversation(ctx, identity.Guest("conv_unknown"))
	assert.True(t, platformerrors.IsErrorType(err, platformerrors.ErrorTypeNotFound))

	_, err = svc.MyConversation(ctx, identity.Admin("admin-1"))
	assert.True(t, platformerrors.IsErrorType(err, platformerrors.ErrorTypeForbidden))
}

// racingConvRepo simulates a concurrent first post winning the insert: the
// first Create fails after another active conversation appeared for the same
// participant, as the partial unique index would make it.
type racingConvRepo struct {
	*memStore
	raced bool
}

func (r *racingConvRepo) Create(ctx context.Context, conv *chat.Conversation) error {
	if !r.raced && conv.ParticipantID == "user-1" {
		r.raced = true
		winner := chat.NewConversation("conv_winner", conv.ParticipantID, nil, nil)
		if err := r.memStore.Create(ctx, winner); err != nil {
			return err
		}
		return platformerrors.NewError(ctx, platformerrors.LayerRepository, platformerrors.ErrorTypeConflict, "duplicate active conversation", nil, "")
	}
	return r.memStore.Create(ctx, conv)
}

func TestPostMessage_ConcurrentFirstPostAdoptsWinner(t *testing.T) {
	store := newMemStore()
	repo := &racingConvRepo{memStore: store}
	svc := chat.NewChatService(repo, store, chat.NewGate(), zerolog.Nop())
	ctx := context.Background()

	msg, err := svc.PostMessage(ctx, identity.User("user-1"), chat.PostMessageInput{Content: "hello"})
	require.NoError(t, err)
	assert.Equal(t, "conv_winner", msg.ConversationPublicID)

	convs, err := store.FindByFilter(ctx, chat.ConversationFilter{})
	require.NoError(t, err)
	assert.Len(t, convs, 1, "the losing insert must not mint a second active conversation")
}

func TestConcurrentIngestion_NoLostIncrements(t *testing.T) {
	svc, store := newTestService()
	ctx := context.Background()
	user := identity.User("user-1")

	_, err := svc.PostMessage(ctx, user, chat.PostMessageInput{Content: "seed"})
	require.NoError(t, err)
	conv, _ := store.FindActiveByParticipant(ctx, "user-1")
	convID := conv.PublicID

	const concurrent = 32
	var wg sync.WaitGroup
	for i := 0; i < concurrent; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.PostMessage(ctx, user, chat.PostMessageInput{ConversationPublicID: &convID, Content: "burst"})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	conv, _ = store.FindByPublicID(ctx, convID)
	assert.Equal(t, concurrent+1, conv.UnreadCount)
}
