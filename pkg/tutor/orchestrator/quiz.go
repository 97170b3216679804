package orchestrator

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"ai-tutor-be/pkg/store"
	"ai-tutor-be/pkg/tutor/classify"
	"ai-tutor-be/pkg/tutor/section"
	"ai-tutor-be/pkg/tutor/stream"
)

// ConfirmUnderstanding handles the "I got it" affordance. The first
// confirmation after a new question offers a comprehension quiz; once that
// quiz is completed, further confirmations advance profile elicitation
// instead of re-offering a quiz for the same question.
func (o *Orchestrator) ConfirmUnderstanding(ctx context.Context) error {
	o.mu.Lock()
	if o.tctx == nil {
		o.mu.Unlock()
		return ErrNoSession
	}
	if o.inFlight {
		o.mu.Unlock()
		return ErrTurnInFlight
	}

	if quiz := o.tctx.ActiveQuiz; quiz != nil {
		if !quiz.Completed {
			// Still awaiting an answer; re-deliver the question.
			o.emit(stream.NewMCQEvent(o.tctx.SessionId, *quiz))
			o.mu.Unlock()
			return nil
		}
		o.advanceProfileLocked()
		o.mu.Unlock()
		return nil
	}
	// Quiz generation is an LLM call; the in-flight flag stays set until
	// offerQuiz installs the question, so no generation turn can start
	// alongside it.
	o.inFlight = true
	o.mu.Unlock()

	return o.offerQuiz(ctx)
}

// offerQuiz generates one contextual MCQ from the previous AI section's
// content, or a generic question built from the student's own wording when
// no AI content exists yet.
func (o *Orchestrator) offerQuiz(ctx context.Context) error {
	o.mu.Lock()
	tctx := o.tctx
	sid := tctx.SessionId
	subject := tctx.Subject
	language := tctx.Language
	source := ""
	if last := tctx.LastAIMessage(); last != nil {
		source = last.Content
	}
	lastStudentText := lastStudentContentLocked(tctx)
	o.mu.Unlock()

	var quiz store.QuizQuestion
	if source != "" {
		input := store.StudentInput{Text: source, Modality: store.ModalityText, Timestamp: time.Now()}
		doubt := classify.Result{Subject: subject, Language: language}
		result := o.generator.Generate(ctx, store.SectionMCQ, tctx, input, doubt)
		quiz = section.QuizFromSection(result.Section)
	}
	if quiz.Question == "" || len(quiz.Options) == 0 {
		quiz = genericQuiz(lastStudentText)
	}

	o.mu.Lock()
	o.inFlight = false
	o.tctx.ActiveQuiz = &quiz
	o.tctx.State = store.StateAwaitingQuiz
	o.emit(stream.NewMCQEvent(sid, quiz))
	o.emit(stream.NewFinalEvent(sid, nil, "answer_quiz", stream.Performance{}))
	o.mu.Unlock()
	return nil
}

// genericQuiz is the no-prior-content fallback. It carries no correct
// index, so scoring acknowledges without judging.
func genericQuiz(studentText string) store.QuizQuestion {
	question := "Which statement best matches what you just learned?"
	if studentText != "" {
		question = fmt.Sprintf("Thinking about your question %q, which statement feels right to you?", truncateText(studentText, 100))
	}
	return store.QuizQuestion{
		Question: question,
		Options: []string{
			"I can explain it in my own words",
			"I follow the steps but not the idea",
			"I understand the idea but not the steps",
			"I need another explanation",
		},
		CorrectIndex: -1,
	}
}

// AnswerQuiz scores an answer by option index.
func (o *Orchestrator) AnswerQuiz(selectedIndex int) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.tctx == nil {
		return ErrNoSession
	}
	quiz := o.tctx.ActiveQuiz
	if quiz == nil || quiz.Completed {
		return fmt.Errorf("no quiz awaiting an answer")
	}
	o.scoreQuizLocked(quiz, selectedIndex)
	return nil
}

// handleQuizAnswer routes free text arriving while awaiting a quiz answer.
// Unparsable answers keep the machine waiting.
func (o *Orchestrator) handleQuizAnswer(input store.StudentInput) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	quiz := o.tctx.ActiveQuiz
	if quiz == nil {
		o.tctx.State = store.StateIdle
		return nil
	}
	o.appendStudentMessageLocked(input)

	idx, ok := parseAnswerIndex(input.Text, quiz.Options)
	if !ok {
		o.emitMessageLocked("Please answer with one of the option letters (A, B, C, D).", "answer_quiz")
		return nil
	}
	o.scoreQuizLocked(quiz, idx)
	return nil
}

// scoreQuizLocked appends feedback, marks the quiz completed for this
// question and returns the machine to idle. Unscorable questions (recorded
// correct index -1) acknowledge without judging.
func (o *Orchestrator) scoreQuizLocked(quiz *store.QuizQuestion, selectedIndex int) {
	var feedback string
	switch {
	case quiz.CorrectIndex < 0:
		feedback = "Thanks for answering! Let's keep going."
	case selectedIndex == quiz.CorrectIndex:
		feedback = "Correct, well done!"
		if quiz.Explanation != "" {
			feedback += " " + quiz.Explanation
		}
	default:
		correct := ""
		if quiz.CorrectIndex < len(quiz.Options) {
			correct = quiz.Options[quiz.CorrectIndex]
		}
		feedback = fmt.Sprintf("Not quite. The right answer was %q.", correct)
		if quiz.Explanation != "" {
			feedback += " " + quiz.Explanation
		}
	}

	quiz.Completed = true
	o.tctx.State = store.StateIdle
	o.emitMessageLocked(feedback, "confirm_understanding")
}

// parseAnswerIndex accepts a letter (A-D), a 1-based number, or the full
// text of an option.
func parseAnswerIndex(text string, options []string) (int, bool) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return 0, false
	}

	upper := strings.ToUpper(trimmed)
	if len(upper) == 1 && upper[0] >= 'A' && upper[0] <= 'D' {
		idx := int(upper[0] - 'A')
		if idx < len(options) {
			return idx, true
		}
		return 0, false
	}

	if n, err := strconv.Atoi(trimmed); err == nil {
		if n >= 1 && n <= len(options) {
			return n - 1, true
		}
		return 0, false
	}

	for i, opt := range options {
		if strings.EqualFold(strings.TrimSpace(opt), trimmed) {
			return i, true
		}
	}
	return 0, false
}

func lastStudentContentLocked(tctx *store.TutoringContext) string {
	for i := len(tctx.History) - 1; i >= 0; i-- {
		if tctx.History[i].Sender == store.SenderUser {
			return tctx.History[i].Content
		}
	}
	return ""
}

func truncateText(s string, maxLen int) string {
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	return string(runes[:maxLen]) + "..."
}
