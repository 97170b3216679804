package dto

import (
	"ai-tutor-be/pkg/tutor/stream"
)

// PublishStreamEventMessage is the watermill payload carrying one stream
// event from the orchestrator to the delivery consumer.
type PublishStreamEventMessage struct {
	UserId string       `json:"user_id"`
	Event  stream.Event `json:"event"`
}
