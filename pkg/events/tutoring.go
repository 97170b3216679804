package events

import "time"

// Tutoring domain event codes.
const (
	TypeSessionCreated = "TUTORING_SESSION_CREATED"
	TypeTurnCompleted  = "TUTORING_TURN_COMPLETED"
	TypeProfileUpdated = "STUDENT_PROFILE_UPDATED"
)

func NewSessionCreated(sessionId, userId string, guest bool) Event {
	return BaseEvent{
		Type: TypeSessionCreated,
		Data: map[string]interface{}{
			"session_id": sessionId,
			"user_id":    userId,
			"guest":      guest,
		},
		OccurredAt: time.Now(),
	}
}

func NewTurnCompleted(sessionId, sectionType string, latencyMs int64, fallback bool) Event {
	return BaseEvent{
		Type: TypeTurnCompleted,
		Data: map[string]interface{}{
			"session_id":   sessionId,
			"section_type": sectionType,
			"latency_ms":   latencyMs,
			"fallback":     fallback,
		},
		OccurredAt: time.Now(),
	}
}

func NewProfileUpdated(userId string, finalized bool) Event {
	return BaseEvent{
		Type: TypeProfileUpdated,
		Data: map[string]interface{}{
			"user_id":   userId,
			"finalized": finalized,
		},
		OccurredAt: time.Now(),
	}
}
