package implementation

import (
	"context"
	"errors"
	"time"

	"ai-tutor-be/internal/entity"
	"ai-tutor-be/internal/repository/contract"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type TutoringSessionRepositoryImpl struct {
	db *gorm.DB
}

func NewTutoringSessionRepository(db *gorm.DB) contract.TutoringSessionRepository {
	return &TutoringSessionRepositoryImpl{db: db}
}

func (r *TutoringSessionRepositoryImpl) Create(ctx context.Context, session *entity.TutoringSession) error {
	return r.db.WithContext(ctx).Create(session).Error
}

func (r *TutoringSessionRepositoryImpl) Update(ctx context.Context, session *entity.TutoringSession) error {
	now := time.Now()
	session.UpdatedAt = &now
	return r.db.WithContext(ctx).Save(session).Error
}

func (r *TutoringSessionRepositoryImpl) Delete(ctx context.Context, id uuid.UUID) error {
	now := time.Now()
	return r.db.WithContext(ctx).
		Model(&entity.TutoringSession{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{"is_deleted": true, "deleted_at": now}).Error
}

func (r *TutoringSessionRepositoryImpl) FindById(ctx context.Context, id uuid.UUID) (*entity.TutoringSession, error) {
	var session entity.TutoringSession
	err := r.db.WithContext(ctx).
		Where("id = ? AND is_deleted = ?", id, false).
		First(&session).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &session, nil
}

func (r *TutoringSessionRepositoryImpl) FindAllByUserId(ctx context.Context, userId string) ([]*entity.TutoringSession, error) {
	var sessions []*entity.TutoringSession
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND is_deleted = ?", userId, false).
		Order("created_at DESC").
		Find(&sessions).Error
	if err != nil {
		return nil, err
	}
	return sessions, nil
}
