package store

import (
	"time"
)

// Session FSM states
const (
	StateIdle             = "IDLE"
	StateAwaitingResponse = "AWAITING_RESPONSE"
	StateAwaitingQuiz     = "AWAITING_QUIZ_RESPONSE"
	StateAwaitingProfile  = "AWAITING_PROFILE_RESPONSE"
	StateCreatingSession  = "CREATING_SESSION"
)

// Input modalities
const (
	ModalityText  = "text"
	ModalityVoice = "voice"
	ModalityImage = "image"
)

// Message senders
const (
	SenderUser = "user"
	SenderAI   = "ai"
)

// Languages
const (
	LanguageEnglish  = "en"
	LanguageHindi    = "hi"
	LanguageHinglish = "hinglish"
)

// Section types
const (
	SectionProbe      = "probe"
	SectionBigIdea    = "big_idea"
	SectionExample    = "example"
	SectionQuickCheck = "quick_check"
	SectionTryIt      = "try_it"
	SectionRecap      = "recap"
	SectionMCQ        = "mcq"
	SectionHint       = "hint"
)

// Doubt types
const (
	DoubtConceptual  = "conceptual"
	DoubtProcedural  = "procedural"
	DoubtApplication = "application"
	DoubtCalculation = "calculation"
)

// StudentInput is one raw input from the student. Immutable once created.
type StudentInput struct {
	Text      string                 `json:"text"`
	Modality  string                 `json:"modality"`
	ImageRef  string                 `json:"image_ref,omitempty"`
	ImageData []byte                 `json:"-"`
	Timestamp time.Time              `json:"timestamp"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
}

// HasInlineImage reports whether the input carries raw image bytes rather
// than a reference URL. Inline payloads must go through a request path that
// supports bodies.
func (si *StudentInput) HasInlineImage() bool {
	return len(si.ImageData) > 0
}

// DoubtType classifies why the student is stuck.
type DoubtType struct {
	Type       string   `json:"type"`
	Confidence float64  `json:"confidence"`
	Keywords   []string `json:"keywords,omitempty"`
}

// ConfidenceScores carries per-dimension classification confidence.
// Overall gates whether the rule-based result is trusted.
type ConfidenceScores struct {
	Subject    float64 `json:"subject"`
	Topic      float64 `json:"topic"`
	Difficulty float64 `json:"difficulty"`
	Overall    float64 `json:"overall"`
}

// Step is one ordered unit inside a scaffolded section.
type Step struct {
	Id          string `json:"id"`
	Content     string `json:"content"`
	IsCompleted bool   `json:"is_completed"`
	Order       int    `json:"order"`
}

// MCQOption is one choice of a multiple-choice section. Callers must handle
// zero-or-multiple IsCorrect flags defensively; the parser cannot always
// recover the correct option from free text.
type MCQOption struct {
	Id          string `json:"id"`
	Text        string `json:"text"`
	IsCorrect   bool   `json:"is_correct"`
	Explanation string `json:"explanation,omitempty"`
}

// Hint is one progressive hint level. Levels are revealed monotonically:
// level k before level k+1.
type Hint struct {
	Id         string `json:"id"`
	Level      int    `json:"level"`
	Content    string `json:"content"`
	IsRevealed bool   `json:"is_revealed"`
}

// TutoringSection is the structured pedagogical response unit. Immutable
// after creation except for the completion transition.
type TutoringSection struct {
	Id          string      `json:"id"`
	Type        string      `json:"type"`
	Title       string      `json:"title"`
	Content     string      `json:"content"`
	Steps       []Step      `json:"steps"`
	MCQOptions  []MCQOption `json:"mcq_options,omitempty"`
	Hints       []Hint      `json:"hints,omitempty"`
	IsCompleted bool        `json:"is_completed"`
	CreatedAt   time.Time   `json:"created_at"`
	CompletedAt *time.Time  `json:"completed_at,omitempty"`
}

// MarkCompleted transitions the section to its completed state.
func (s *TutoringSection) MarkCompleted(at time.Time) {
	if s.IsCompleted {
		return
	}
	s.IsCompleted = true
	s.CompletedAt = &at
}

// RevealNextHint reveals the lowest unrevealed hint level and returns it
// with the count of hints still hidden. Returns nil when nothing is left.
func (s *TutoringSection) RevealNextHint() (*Hint, int) {
	for i := range s.Hints {
		if !s.Hints[i].IsRevealed {
			s.Hints[i].IsRevealed = true
			return &s.Hints[i], len(s.Hints) - i - 1
		}
	}
	return nil, 0
}

// Message is one entry of the append-only conversation log.
type Message struct {
	Id        string                 `json:"id"`
	SessionId string                 `json:"session_id"`
	UserId    string                 `json:"user_id"`
	Sender    string                 `json:"sender"`
	Modality  string                 `json:"modality"`
	Content   string                 `json:"content"`
	ImageRef  string                 `json:"image_ref,omitempty"`
	SectionId string                 `json:"section_id,omitempty"`
	StepId    string                 `json:"step_id,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
}

// QuizQuestion is a single comprehension-check question with its recorded
// correct index. CorrectIndex is -1 when the generator could not establish
// a correct answer; scoring treats such questions as unscorable.
type QuizQuestion struct {
	Question     string   `json:"question"`
	Options      []string `json:"options"`
	CorrectIndex int      `json:"correct_index"`
	Explanation  string   `json:"explanation,omitempty"`
	Completed    bool     `json:"completed"`
}

// StudentProfile is the progressively elicited profile record.
type StudentProfile struct {
	Name          string   `json:"name,omitempty"`
	Role          string   `json:"role,omitempty"`
	Grade         string   `json:"grade,omitempty"`
	Board         string   `json:"board,omitempty"`
	Subjects      []string `json:"subjects,omitempty"`
	LearningStyle string   `json:"learning_style,omitempty"`
	Pace          string   `json:"pace,omitempty"`
	Location      string   `json:"location,omitempty"`
	Credential    string   `json:"credential,omitempty"`
	Finalized     bool     `json:"finalized"`
}

// TutoringContext is the per-session aggregate. Owned exclusively by the
// session's orchestrator; history and previous sections only ever grow.
type TutoringContext struct {
	SessionId        string            `json:"session_id"`
	UserId           string            `json:"user_id"`
	Subject          string            `json:"subject,omitempty"`
	Grade            string            `json:"grade,omitempty"`
	Language         string            `json:"language"`
	State            string            `json:"state"`
	CurrentSection   *TutoringSection  `json:"current_section,omitempty"`
	PreviousSections []TutoringSection `json:"previous_sections,omitempty"`
	Profile          *StudentProfile   `json:"profile,omitempty"`
	History          []Message         `json:"history"`
	ActiveQuiz       *QuizQuestion     `json:"active_quiz,omitempty"`
	ConfirmCount     int               `json:"confirm_count"`
}

// NewTutoringContext creates an idle context for a session.
func NewTutoringContext(sessionId, userId string) *TutoringContext {
	return &TutoringContext{
		SessionId: sessionId,
		UserId:    userId,
		Language:  LanguageEnglish,
		State:     StateIdle,
	}
}

// AppendMessage appends to the conversation log. Messages are never removed
// or rewritten mid-session.
func (tc *TutoringContext) AppendMessage(msg Message) {
	tc.History = append(tc.History, msg)
}

// ReplaceSection archives the current section and installs the new one.
// The prior section is marked completed if the caller has not already done
// so, keeping the at-most-one-current invariant.
func (tc *TutoringContext) ReplaceSection(section *TutoringSection, at time.Time) {
	if tc.CurrentSection != nil {
		tc.CurrentSection.MarkCompleted(at)
		tc.PreviousSections = append(tc.PreviousSections, *tc.CurrentSection)
	}
	tc.CurrentSection = section
}

// RecentTurns returns up to n most recent messages, oldest first.
func (tc *TutoringContext) RecentTurns(n int) []Message {
	if len(tc.History) <= n {
		return tc.History
	}
	return tc.History[len(tc.History)-n:]
}

// LastAIMessage returns the most recent AI message, or nil.
func (tc *TutoringContext) LastAIMessage() *Message {
	for i := len(tc.History) - 1; i >= 0; i-- {
		if tc.History[i].Sender == SenderAI {
			return &tc.History[i]
		}
	}
	return nil
}
