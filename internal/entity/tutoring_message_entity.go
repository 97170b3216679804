package entity

import (
	"time"

	"github.com/google/uuid"
)

type TutoringMessage struct {
	Id                uuid.UUID `gorm:"type:uuid;primaryKey"`
	TutoringSessionId uuid.UUID `gorm:"type:uuid;index"`
	UserId            string    `gorm:"index"`
	Sender            string
	Modality          string
	Content           string
	ImageRef          string
	SectionId         string
	SectionType       string
	CreatedAt         time.Time
	IsDeleted         bool
}

func (TutoringMessage) TableName() string {
	return "tutoring_messages"
}
