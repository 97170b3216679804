package dto

import (
	"time"

	"github.com/google/uuid"
)

type CreateSessionRequest struct {
	Subject string `json:"subject,omitempty"`
}

type CreateSessionResponse struct {
	Id uuid.UUID `json:"id"`
}

type GetAllSessionsResponse struct {
	Id        uuid.UUID  `json:"id"`
	Subject   string     `json:"subject"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt *time.Time `json:"updated_at"`
}

// SendMessageRequest arrives as a POST body so inline image payloads fit;
// query-string dispatch cannot carry them.
type SendMessageRequest struct {
	SessionId string `json:"session_id,omitempty"`
	Message   string `json:"message" validate:"required_without_all=ImageRef ImageData"`
	Modality  string `json:"modality" validate:"omitempty,oneof=text voice image"`
	Language  string `json:"language,omitempty"`
	ImageRef  string `json:"image_ref,omitempty"`
	ImageData []byte `json:"image_data,omitempty"`
}

type SendMessageResponse struct {
	SessionId string `json:"session_id"`
	Accepted  bool   `json:"accepted"`
}

type ConfirmUnderstandingRequest struct {
	SessionId string `json:"session_id" validate:"required"`
}

type AnswerQuizRequest struct {
	SessionId     string `json:"session_id" validate:"required"`
	SelectedIndex int    `json:"selected_index" validate:"gte=0,lte=3"`
}

type GetHistoryResponse struct {
	Id        uuid.UUID `json:"id"`
	Sender    string    `json:"sender"`
	Modality  string    `json:"modality"`
	Content   string    `json:"content"`
	SectionId string    `json:"section_id,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}
