package stream

import (
	"time"

	"ai-tutor-be/pkg/store"
)

// Event types emitted while a turn is produced. Exactly one terminal event
// (final or error) ends a turn; token and section events may precede it.
const (
	EventSection = "section"
	EventToken   = "token"
	EventMCQ     = "mcq"
	EventHint    = "hint"
	EventFinal   = "final"
	EventError   = "error"
)

// DoneSentinel is the transport-level completion marker, written to the
// wire after the stream closes. It is independent of the final event;
// consumers must honor whichever arrives.
const DoneSentinel = "[DONE]"

// Performance carries turn-level latency and throughput metrics, attached
// to the final event.
type Performance struct {
	LatencyMs       int64   `json:"latency_ms"`
	TokenCount      int     `json:"token_count"`
	TokensPerSecond float64 `json:"tokens_per_second"`
}

type SectionPayload struct {
	Section    *store.TutoringSection `json:"section"`
	IsComplete bool                   `json:"is_complete"`
}

type TokenPayload struct {
	Token     string `json:"token"`
	SectionId string `json:"section_id"`
	StepId    string `json:"step_id,omitempty"`
}

type MCQPayload struct {
	Question      string   `json:"question"`
	Options       []string `json:"options"`
	CorrectAnswer *int     `json:"correct_answer,omitempty"`
	Explanation   string   `json:"explanation,omitempty"`
}

type HintPayload struct {
	Hint           store.Hint `json:"hint"`
	RemainingHints int        `json:"remaining_hints"`
}

type FinalPayload struct {
	Section     *store.TutoringSection `json:"section"`
	NextAction  string                 `json:"next_action,omitempty"`
	Performance Performance            `json:"performance"`
}

type ErrorPayload struct {
	Error     string `json:"error"`
	Code      string `json:"code"`
	Retryable bool   `json:"retryable"`
}

// Event is one typed message on a turn's stream. Exactly one payload field
// is set, matching Type.
type Event struct {
	Type      string          `json:"type"`
	SessionId string          `json:"session_id"`
	Timestamp time.Time       `json:"timestamp"`
	Section   *SectionPayload `json:"section,omitempty"`
	Token     *TokenPayload   `json:"token,omitempty"`
	MCQ       *MCQPayload     `json:"mcq,omitempty"`
	Hint      *HintPayload    `json:"hint,omitempty"`
	Final     *FinalPayload   `json:"final,omitempty"`
	Error     *ErrorPayload   `json:"error,omitempty"`
}

// IsTerminal reports whether no further events are valid after this one.
func (e Event) IsTerminal() bool {
	return e.Type == EventFinal || e.Type == EventError
}

func NewSectionEvent(sessionId string, section *store.TutoringSection, isComplete bool) Event {
	return Event{
		Type:      EventSection,
		SessionId: sessionId,
		Timestamp: time.Now(),
		Section:   &SectionPayload{Section: section, IsComplete: isComplete},
	}
}

func NewTokenEvent(sessionId, token, sectionId, stepId string) Event {
	return Event{
		Type:      EventToken,
		SessionId: sessionId,
		Timestamp: time.Now(),
		Token:     &TokenPayload{Token: token, SectionId: sectionId, StepId: stepId},
	}
}

func NewMCQEvent(sessionId string, quiz store.QuizQuestion) Event {
	payload := &MCQPayload{
		Question:    quiz.Question,
		Options:     quiz.Options,
		Explanation: quiz.Explanation,
	}
	if quiz.CorrectIndex >= 0 {
		idx := quiz.CorrectIndex
		payload.CorrectAnswer = &idx
	}
	return Event{
		Type:      EventMCQ,
		SessionId: sessionId,
		Timestamp: time.Now(),
		MCQ:       payload,
	}
}

func NewHintEvent(sessionId string, hint store.Hint, remaining int) Event {
	return Event{
		Type:      EventHint,
		SessionId: sessionId,
		Timestamp: time.Now(),
		Hint:      &HintPayload{Hint: hint, RemainingHints: remaining},
	}
}

func NewFinalEvent(sessionId string, section *store.TutoringSection, nextAction string, perf Performance) Event {
	return Event{
		Type:      EventFinal,
		SessionId: sessionId,
		Timestamp: time.Now(),
		Final:     &FinalPayload{Section: section, NextAction: nextAction, Performance: perf},
	}
}

func NewErrorEvent(sessionId, message, code string, retryable bool) Event {
	return Event{
		Type:      EventError,
		SessionId: sessionId,
		Timestamp: time.Now(),
		Error:     &ErrorPayload{Error: message, Code: code, Retryable: retryable},
	}
}
