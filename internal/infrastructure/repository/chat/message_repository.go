package chat

import (
	"context"
	"time"

	"gorm.io/gorm"

	domain "staybook-server/services/chat-api/internal/domain/chat"
	"staybook-server/services/chat-api/internal/infrastructure/database/entities"
	"staybook-server/services/chat-api/internal/utils/functional"
	"staybook-server/services/chat-api/internal/utils/platformerrors"
)

// MessageRepository persists chat messages.
type MessageRepository struct {
	db *gorm.DB
}

var _ domain.MessageRepository = (*MessageRepository)(nil)

// NewMessageRepository constructs the message repository.
func NewMessageRepository(db *gorm.DB) *MessageRepository {
	return &MessageRepository{db: db}
}

// Append inserts the message and touches the parent conversation in one
// transaction. The unread increment runs as an in-database expression
// (unread_count + 1) so two concurrent sends each land exactly one
// increment; the value is never read into application memory first.
func (r *MessageRepository) Append(ctx context.Context, msg *domain.Message) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		entity := entities.NewSchemaMessage(msg)
		if err := tx.Create(entity).Error; err != nil {
			return err
		}
		msg.ID = entity.ID
		msg.CreatedAt = entity.CreatedAt

		updates := map[string]any{
			"last_message_at": entity.CreatedAt,
		}
		if msg.SenderRole == domain.SenderRoleUser {
			updates["unread_count"] = gorm.Expr("unread_count + 1")
		}

		result := tx.Model(&entities.Conversation{}).
			Where("id = ?", msg.ConversationID).
			Updates(updates)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
	if err != nil {
		return platformerrors.NewError(ctx, platformerrors.LayerRepository, platformerrors.ErrorTypeDatabaseError, "failed to append message", err, "5f6a7b8c-9d0e-4f1a-2b3c-4d5e6f7a8b9d")
	}
	return nil
}

// ListByConversation returns messages in creation order. A non-nil
// visibleAfter excludes everything at or before the cutoff.
func (r *MessageRepository) ListByConversation(ctx context.Context, conversationID uint, visibleAfter *time.Time) ([]*domain.Message, error) {
	sql := r.db.WithContext(ctx).
		Where("conversation_id = ?", conversationID)
	if visibleAfter != nil {
		sql = sql.Where("created_at > ?", *visibleAfter)
	}

	var rows []*entities.Message
	if err := sql.Order("created_at ASC, id ASC").Find(&rows).Error; err != nil {
		return nil, platformerrors.NewError(ctx, platformerrors.LayerRepository, platformerrors.ErrorTypeDatabaseError, "failed to list messages", err, "8c9d0e1f-2a3b-4c5d-6e7f-8a9b0c1d2e4f")
	}

	return functional.Map(rows, func(row *entities.Message) *domain.Message {
		return row.EtoD()
	}), nil
}

// MarkReadBySenderRole flags unread messages from one role as read.
// Idempotent: the WHERE clause makes a repeat call a zero-row update.
func (r *MessageRepository) MarkReadBySenderRole(ctx context.Context, conversationID uint, senderRole domain.SenderRole) error {
	err := r.db.WithContext(ctx).Model(&entities.Message{}).
		Where("conversation_id = ? AND sender_role = ? AND is_read = ?", conversationID, senderRole, false).
		Update("is_read", true).Error
	if err != nil {
		return platformerrors.NewError(ctx, platformerrors.LayerRepository, platformerrors.ErrorTypeDatabaseError, "failed to mark messages read", err, "1e2f3a4b-5c6d-4e7f-8a9b-0c1d2e3f4a5c")
	}
	return nil
}
