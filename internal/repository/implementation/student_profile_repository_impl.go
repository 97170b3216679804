package implementation

import (
	"context"
	"errors"
	"time"

	"ai-tutor-be/internal/entity"
	"ai-tutor-be/internal/repository/contract"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type StudentProfileRepositoryImpl struct {
	db *gorm.DB
}

func NewStudentProfileRepository(db *gorm.DB) contract.StudentProfileRepository {
	return &StudentProfileRepositoryImpl{db: db}
}

// Upsert writes the whole partial profile. The orchestrator treats its
// local copy as the source of truth, so last-write-wins is acceptable.
func (r *StudentProfileRepositoryImpl) Upsert(ctx context.Context, profile *entity.StudentProfile) error {
	now := time.Now()
	profile.UpdatedAt = &now
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}},
			UpdateAll: true,
		}).
		Create(profile).Error
}

func (r *StudentProfileRepositoryImpl) FindByUserId(ctx context.Context, userId string) (*entity.StudentProfile, error) {
	var profile entity.StudentProfile
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userId).
		First(&profile).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &profile, nil
}
