package implementation

import (
	"context"

	"ai-tutor-be/internal/entity"
	"ai-tutor-be/internal/repository/contract"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type TutoringMessageRepositoryImpl struct {
	db *gorm.DB
}

func NewTutoringMessageRepository(db *gorm.DB) contract.TutoringMessageRepository {
	return &TutoringMessageRepositoryImpl{db: db}
}

func (r *TutoringMessageRepositoryImpl) Create(ctx context.Context, message *entity.TutoringMessage) error {
	return r.db.WithContext(ctx).Create(message).Error
}

func (r *TutoringMessageRepositoryImpl) CreateBulk(ctx context.Context, messages []*entity.TutoringMessage) error {
	if len(messages) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(messages).Error
}

func (r *TutoringMessageRepositoryImpl) FindAllBySessionId(ctx context.Context, sessionId uuid.UUID) ([]*entity.TutoringMessage, error) {
	var messages []*entity.TutoringMessage
	err := r.db.WithContext(ctx).
		Where("tutoring_session_id = ? AND is_deleted = ?", sessionId, false).
		Order("created_at ASC").
		Find(&messages).Error
	if err != nil {
		return nil, err
	}
	return messages, nil
}

func (r *TutoringMessageRepositoryImpl) DeleteBySessionId(ctx context.Context, sessionId uuid.UUID) error {
	return r.db.WithContext(ctx).
		Model(&entity.TutoringMessage{}).
		Where("tutoring_session_id = ?", sessionId).
		Update("is_deleted", true).Error
}
