package contract

import (
	"context"

	"ai-tutor-be/internal/entity"

	"github.com/google/uuid"
)

type TutoringSessionRepository interface {
	Create(ctx context.Context, session *entity.TutoringSession) error
	Update(ctx context.Context, session *entity.TutoringSession) error
	Delete(ctx context.Context, id uuid.UUID) error
	FindById(ctx context.Context, id uuid.UUID) (*entity.TutoringSession, error)
	FindAllByUserId(ctx context.Context, userId string) ([]*entity.TutoringSession, error)
}
