package entity

import (
	"time"

	"github.com/google/uuid"
)

type TutoringSession struct {
	Id        uuid.UUID `gorm:"type:uuid;primaryKey"`
	UserId    string    `gorm:"index"`
	Subject   string
	Language  string
	IsGuest   bool
	CreatedAt time.Time
	UpdatedAt *time.Time
	DeletedAt *time.Time
	IsDeleted bool
}

func (TutoringSession) TableName() string {
	return "tutoring_sessions"
}
