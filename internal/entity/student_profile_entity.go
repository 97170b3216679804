package entity

import (
	"time"

	"gorm.io/datatypes"
)

type StudentProfile struct {
	UserId        string `gorm:"primaryKey"`
	Name          string
	Role          string
	Grade         string
	Board         string
	Subjects      datatypes.JSON `gorm:"type:jsonb"`
	LearningStyle string
	Pace          string
	Location      string
	Credential    string
	Finalized     bool
	CreatedAt     time.Time
	UpdatedAt     *time.Time
}

func (StudentProfile) TableName() string {
	return "student_profiles"
}
