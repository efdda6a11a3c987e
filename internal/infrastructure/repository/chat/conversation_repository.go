package chat

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	domain "staybook-server/services/chat-api/internal/domain/chat"
	"staybook-server/services/chat-api/internal/infrastructure/database/entities"
	"staybook-server/services/chat-api/internal/utils/functional"
	"staybook-server/services/chat-api/internal/utils/platformerrors"
)

// ConversationRepository persists conversations.
type ConversationRepository struct {
	db *gorm.DB
}

var _ domain.ConversationRepository = (*ConversationRepository)(nil)

// NewConversationRepository constructs the conversation repository.
func NewConversationRepository(db *gorm.DB) *ConversationRepository {
	return &ConversationRepository{db: db}
}

// Create inserts a conversation.
func (r *ConversationRepository) Create(ctx context.Context, conv *domain.Conversation) error {
	entity := entities.NewSchemaConversation(conv)
	if err := r.db.WithContext(ctx).Create(entity).Error; err != nil {
		return platformerrors.NewError(ctx, platformerrors.LayerRepository, platformerrors.ErrorTypeDatabaseError, "failed to create conversation", err, "3f1a2b4c-5d6e-4f7a-8b9c-0d1e2f3a4b5c")
	}
	conv.ID = entity.ID
	conv.CreatedAt = entity.CreatedAt
	conv.UpdatedAt = entity.UpdatedAt
	return nil
}

// FindByID loads a conversation by numeric ID.
func (r *ConversationRepository) FindByID(ctx context.Context, id uint) (*domain.Conversation, error) {
	var entity entities.Conversation
	err := r.db.WithContext(ctx).First(&entity, id).Error
	if err != nil {
		return nil, r.wrapLookupErr(ctx, err)
	}
	return entity.EtoD(), nil
}

// FindByPublicID loads a conversation by its public identifier.
func (r *ConversationRepository) FindByPublicID(ctx context.Context, publicID string) (*domain.Conversation, error) {
	var entity entities.Conversation
	err := r.db.WithContext(ctx).Where("public_id = ?", publicID).First(&entity).Error
	if err != nil {
		return nil, r.wrapLookupErr(ctx, err)
	}
	return entity.EtoD(), nil
}

// FindActiveByParticipant returns the participant's single active
// conversation, or nil when none exists.
func (r *ConversationRepository) FindActiveByParticipant(ctx context.Context, participantID string) (*domain.Conversation, error) {
	var entity entities.Conversation
	err := r.db.WithContext(ctx).
		Where("participant_id = ? AND status = ?", participantID, domain.ConversationStatusActive).
		First(&entity).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, platformerrors.NewError(ctx, platformerrors.LayerRepository, platformerrors.ErrorTypeDatabaseError, "failed to find active conversation", err, "6a7b8c9d-0e1f-4a2b-3c4d-5e6f7a8b9c0d")
	}
	return entity.EtoD(), nil
}

// FindByFilter lists conversations sorted by last activity, newest first.
func (r *ConversationRepository) FindByFilter(ctx context.Context, filter domain.ConversationFilter) ([]*domain.Conversation, error) {
	sql := r.db.WithContext(ctx).Model(&entities.Conversation{})

	if filter.ID != nil {
		sql = sql.Where("id = ?", *filter.ID)
	}
	if filter.PublicID != nil {
		sql = sql.Where("public_id = ?", *filter.PublicID)
	}
	if filter.ParticipantID != nil {
		sql = sql.Where("participant_id = ?", *filter.ParticipantID)
	}
	if filter.Status != nil {
		sql = sql.Where("status = ?", *filter.Status)
	}
	if filter.Archived != nil {
		if *filter.Archived {
			sql = sql.Where("status = ?", domain.ConversationStatusArchived)
		} else {
			sql = sql.Where("status <> ?", domain.ConversationStatusArchived)
		}
	}

	var rows []*entities.Conversation
	if err := sql.Order("last_message_at DESC").Find(&rows).Error; err != nil {
		return nil, platformerrors.NewError(ctx, platformerrors.LayerRepository, platformerrors.ErrorTypeDatabaseError, "failed to list conversations", err, "9c0d1e2f-3a4b-4c5d-6e7f-8a9b0c1d2e3f")
	}

	return functional.Map(rows, func(row *entities.Conversation) *domain.Conversation {
		return row.EtoD()
	}), nil
}

// UpdateStatus applies a lifecycle transition.
func (r *ConversationRepository) UpdateStatus(ctx context.Context, id uint, status domain.ConversationStatus, archivedAt *time.Time) error {
	updates := map[string]any{
		"status":      status,
		"archived_at": archivedAt,
	}
	result := r.db.WithContext(ctx).Model(&entities.Conversation{}).Where("id = ?", id).Updates(updates)
	if result.Error != nil {
		return platformerrors.NewError(ctx, platformerrors.LayerRepository, platformerrors.ErrorTypeDatabaseError, "failed to update conversation status", result.Error, "2e3f4a5b-6c7d-4e8f-9a0b-1c2d3e4f5a6b")
	}
	if result.RowsAffected == 0 {
		return platformerrors.NewError(ctx, platformerrors.LayerRepository, platformerrors.ErrorTypeNotFound, "conversation not found", nil, "5b6c7d8e-9f0a-4b1c-2d3e-4f5a6b7c8d9e")
	}
	return nil
}

// SetUserClearedAt stamps the participant's history cutoff.
func (r *ConversationRepository) SetUserClearedAt(ctx context.Context, id uint, clearedAt time.Time) error {
	err := r.db.WithContext(ctx).Model(&entities.Conversation{}).
		Where("id = ?", id).
		Update("user_cleared_at", clearedAt).Error
	if err != nil {
		return platformerrors.NewError(ctx, platformerrors.LayerRepository, platformerrors.ErrorTypeDatabaseError, "failed to set history cutoff", err, "8d9e0f1a-2b3c-4d5e-6f7a-8b9c0d1e2f3a")
	}
	return nil
}

// ZeroUnread resets the admin-facing unread counter. A single-row update,
// serialized by the database against concurrent increments.
func (r *ConversationRepository) ZeroUnread(ctx context.Context, id uint) error {
	err := r.db.WithContext(ctx).Model(&entities.Conversation{}).
		Where("id = ?", id).
		Update("unread_count", 0).Error
	if err != nil {
		return platformerrors.NewError(ctx, platformerrors.LayerRepository, platformerrors.ErrorTypeDatabaseError, "failed to reset unread counter", err, "1a2b3c4d-5e6f-4a7b-8c9d-0e1f2a3b4c5e")
	}
	return nil
}

// Delete removes a conversation and its messages in one transaction.
func (r *ConversationRepository) Delete(ctx context.Context, id uint) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("conversation_id = ?", id).Delete(&entities.Message{}).Error; err != nil {
			return err
		}
		return tx.Delete(&entities.Conversation{}, id).Error
	})
	if err != nil {
		return platformerrors.NewError(ctx, platformerrors.LayerRepository, platformerrors.ErrorTypeDatabaseError, "failed to delete conversation", err, "4d5e6f7a-8b9c-4d0e-1f2a-3b4c5d6e7f8a")
	}
	return nil
}

// DeleteArchivedBefore purges archived conversations past the retention
// cutoff, cascading messages. Returns the number of conversations removed.
func (r *ConversationRepository) DeleteArchivedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	var purged int64
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		sub := tx.Model(&entities.Conversation{}).
			Select("id").
			Where("status = ? AND archived_at < ?", domain.ConversationStatusArchived, cutoff)

		if err := tx.Where("conversation_id IN (?)", sub).Delete(&entities.Message{}).Error; err != nil {
			return err
		}

		result := tx.Where("status = ? AND archived_at < ?", domain.ConversationStatusArchived, cutoff).
			Delete(&entities.Conversation{})
		if result.Error != nil {
			return result.Error
		}
		purged = result.RowsAffected
		return nil
	})
	if err != nil {
		return 0, platformerrors.NewError(ctx, platformerrors.LayerRepository, platformerrors.ErrorTypeDatabaseError, "retention sweep failed", err, "7a8b9c0d-1e2f-4a3b-4c5d-6e7f8a9b0c1d")
	}
	return purged, nil
}

func (r *ConversationRepository) wrapLookupErr(ctx context.Context, err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return platformerrors.NewError(ctx, platformerrors.LayerRepository, platformerrors.ErrorTypeNotFound, "conversation not found", err, "0c1d2e3f-4a5b-4c6d-7e8f-9a0b1c2d3e4f")
	}
	return platformerrors.NewError(ctx, platformerrors.LayerRepository, platformerrors.ErrorTypeDatabaseError, "failed to load conversation", err, "3e4f5a6b-7c8d-4e9f-0a1b-2c3d4e5f6a7b")
}
