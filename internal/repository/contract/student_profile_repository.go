package contract

import (
	"context"

	"ai-tutor-be/internal/entity"
)

type StudentProfileRepository interface {
	Upsert(ctx context.Context, profile *entity.StudentProfile) error
	FindByUserId(ctx context.Context, userId string) (*entity.StudentProfile, error)
}
