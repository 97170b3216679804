package orchestrator

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ai-tutor-be/pkg/store"
	"ai-tutor-be/pkg/tutor/stream"
)

func scoredMCQSection() *store.TutoringSection {
	return &store.TutoringSection{
		Id:      uuid.NewString(),
		Type:    store.SectionMCQ,
		Content: "What balances an equation?\nA) Guessing\nB) Doing the same to both sides\nC) Removing x\nD) Nothing",
		MCQOptions: []store.MCQOption{
			{Id: uuid.NewString(), Text: "Guessing"},
			{Id: uuid.NewString(), Text: "Doing the same to both sides", IsCorrect: true, Explanation: "Equality is preserved."},
			{Id: uuid.NewString(), Text: "Removing x"},
			{Id: uuid.NewString(), Text: "Nothing"},
		},
	}
}

// runTurn drives one full generation turn so the session has AI content.
func runTurn(t *testing.T, h *harness, text string) {
	t.Helper()
	require.NoError(t, h.orch.SendMessage(context.Background(), textInput(text)))
	ev := h.sink.waitTerminal(t)
	require.Equal(t, stream.EventFinal, ev.Type)
}

func TestConfirmWithoutSession(t *testing.T) {
	h := newHarness(t, nil)
	assert.ErrorIs(t, h.orch.ConfirmUnderstanding(context.Background()), ErrNoSession)
}

func TestQuizOfferedFromPriorContent(t *testing.T) {
	h := newHarness(t, func(_ *Config, _ *fakeClassifier, gen *fakeGenerator) {
		gen.mcq = scoredMCQSection()
	})
	runTurn(t, h, "how do I solve equations")

	require.NoError(t, h.orch.ConfirmUnderstanding(context.Background()))

	tctx := h.orch.Context()
	assert.Equal(t, store.StateAwaitingQuiz, tctx.State)
	require.NotNil(t, tctx.ActiveQuiz)
	assert.Equal(t, 1, tctx.ActiveQuiz.CorrectIndex)
	assert.False(t, tctx.ActiveQuiz.Completed)

	// The MCQ section was generated from the previous AI message.
	types := h.generator.callTypes()
	assert.Equal(t, store.SectionMCQ, types[len(types)-1])

	var sawMCQ bool
	for _, ev := range h.sink.all() {
		if ev.Type == stream.EventMCQ {
			sawMCQ = true
			assert.Len(t, ev.MCQ.Options, 4)
		}
	}
	assert.True(t, sawMCQ)
}

func TestQuizAnswerScoring(t *testing.T) {
	tests := []struct {
		name     string
		answer   string
		expected string
	}{
		{name: "correct by letter", answer: "B", expected: "Correct"},
		{name: "wrong by letter", answer: "C", expected: "Not quite"},
		{name: "correct by number", answer: "2", expected: "Correct"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, func(_ *Config, _ *fakeClassifier, gen *fakeGenerator) {
				gen.mcq = scoredMCQSection()
			})
			runTurn(t, h, "how do I solve equations")
			require.NoError(t, h.orch.ConfirmUnderstanding(context.Background()))
			h.sink.waitTerminal(t)

			require.NoError(t, h.orch.SendMessage(context.Background(), textInput(tt.answer)))
			h.sink.waitTerminal(t)

			tctx := h.orch.Context()
			assert.True(t, tctx.ActiveQuiz.Completed)
			assert.Equal(t, store.StateIdle, tctx.State)
			last := tctx.LastAIMessage()
			require.NotNil(t, last)
			assert.Contains(t, last.Content, tt.expected)
		})
	}
}

func TestQuizUnparsableAnswerKeepsWaiting(t *testing.T) {
	h := newHarness(t, func(_ *Config, _ *fakeClassifier, gen *fakeGenerator) {
		gen.mcq = scoredMCQSection()
	})
	runTurn(t, h, "how do I solve equations")
	require.NoError(t, h.orch.ConfirmUnderstanding(context.Background()))
	h.sink.waitTerminal(t)

	require.NoError(t, h.orch.SendMessage(context.Background(), textInput("no idea what you mean")))
	h.sink.waitTerminal(t)

	tctx := h.orch.Context()
	assert.Equal(t, store.StateAwaitingQuiz, tctx.State)
	assert.False(t, tctx.ActiveQuiz.Completed)
}

func TestQuizGating(t *testing.T) {
	h := newHarness(t, func(_ *Config, _ *fakeClassifier, gen *fakeGenerator) {
		gen.mcq = scoredMCQSection()
	})
	runTurn(t, h, "how do I solve equations")

	require.NoError(t, h.orch.ConfirmUnderstanding(context.Background()))
	h.sink.waitTerminal(t)
	require.NoError(t, h.orch.SendMessage(context.Background(), textInput("B")))
	h.sink.waitTerminal(t)

	// Completed quiz: the next confirmation advances profile elicitation,
	// it does not re-offer a quiz for the same question.
	require.NoError(t, h.orch.ConfirmUnderstanding(context.Background()))
	h.sink.waitTerminal(t)
	tctx := h.orch.Context()
	assert.Equal(t, store.StateAwaitingProfile, tctx.State)
	assert.True(t, tctx.ActiveQuiz.Completed)

	// A new question re-arms the quiz affordance.
	require.NoError(t, h.orch.SendMessage(context.Background(), textInput("my name is Asha"))) // profile answer
	h.sink.waitTerminal(t)
	runTurn(t, h, "what about quadratic equations")
	assert.Nil(t, h.orch.Context().ActiveQuiz)
}

func TestQuizGenerationBlocksConcurrentTurn(t *testing.T) {
	h := newHarness(t, func(_ *Config, _ *fakeClassifier, gen *fakeGenerator) {
		gen.mcq = scoredMCQSection()
	})
	runTurn(t, h, "how do I solve equations")

	h.generator.delay = 300 * time.Millisecond
	confirmed := make(chan error, 1)
	go func() { confirmed <- h.orch.ConfirmUnderstanding(context.Background()) }()

	// A message landing while the quiz question is being generated must
	// not start a second generation turn.
	time.Sleep(100 * time.Millisecond)
	err := h.orch.SendMessage(context.Background(), textInput("a brand new question"))
	assert.ErrorIs(t, err, ErrTurnInFlight)

	require.NoError(t, <-confirmed)
	h.sink.waitTerminal(t)

	tctx := h.orch.Context()
	assert.Equal(t, store.StateAwaitingQuiz, tctx.State)
	require.NotNil(t, tctx.ActiveQuiz)

	// The guard is released once the question is installed.
	require.NoError(t, h.orch.SendMessage(context.Background(), textInput("B")))
	h.sink.waitTerminal(t)
	assert.True(t, h.orch.Context().ActiveQuiz.Completed)
}

func TestQuizGenericFallback(t *testing.T) {
	// The generator's MCQ output has no recognizable options, so the quiz
	// degrades to the generic unscorable question.
	h := newHarness(t, nil)
	runTurn(t, h, "why does ice float")

	require.NoError(t, h.orch.ConfirmUnderstanding(context.Background()))
	h.sink.waitTerminal(t)

	tctx := h.orch.Context()
	require.NotNil(t, tctx.ActiveQuiz)
	assert.Equal(t, -1, tctx.ActiveQuiz.CorrectIndex)
	assert.Len(t, tctx.ActiveQuiz.Options, 4)

	// Any answer is acknowledged without judgment.
	require.NoError(t, h.orch.SendMessage(context.Background(), textInput("A")))
	h.sink.waitTerminal(t)
	last := h.orch.Context().LastAIMessage()
	require.NotNil(t, last)
	assert.Contains(t, last.Content, "Thanks for answering")
}

func TestAnswerQuizByIndex(t *testing.T) {
	h := newHarness(t, func(_ *Config, _ *fakeClassifier, gen *fakeGenerator) {
		gen.mcq = scoredMCQSection()
	})
	runTurn(t, h, "how do I solve equations")
	require.NoError(t, h.orch.ConfirmUnderstanding(context.Background()))
	h.sink.waitTerminal(t)

	require.NoError(t, h.orch.AnswerQuiz(1))
	h.sink.waitTerminal(t)
	assert.True(t, h.orch.Context().ActiveQuiz.Completed)

	// No quiz pending anymore.
	assert.Error(t, h.orch.AnswerQuiz(0))
}

func TestParseAnswerIndex(t *testing.T) {
	options := []string{"alpha", "beta", "gamma"}

	tests := []struct {
		in       string
		expected int
		ok       bool
	}{
		{"A", 0, true},
		{"b", 1, true},
		{"3", 2, true},
		{"beta", 1, true},
		{"D", 0, false},
		{"7", 0, false},
		{"something else", 0, false},
		{"", 0, false},
	}

	for _, tt := range tests {
		idx, ok := parseAnswerIndex(tt.in, options)
		assert.Equal(t, tt.ok, ok, "input %q", tt.in)
		if tt.ok {
			assert.Equal(t, tt.expected, idx, "input %q", tt.in)
		}
	}
}
