package contract

import (
	"context"

	"ai-tutor-be/internal/entity"

	"github.com/google/uuid"
)

type TutoringMessageRepository interface {
	Create(ctx context.Context, message *entity.TutoringMessage) error
	CreateBulk(ctx context.Context, messages []*entity.TutoringMessage) error
	FindAllBySessionId(ctx context.Context, sessionId uuid.UUID) ([]*entity.TutoringMessage, error)
	DeleteBySessionId(ctx context.Context, sessionId uuid.UUID) error
}
