package section

import (
	"context"
	"errors"
	"log"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ai-tutor-be/pkg/llm"
	"ai-tutor-be/pkg/store"
	"ai-tutor-be/pkg/tutor/classify"
)

func testLogger() *log.Logger {
	return log.New(os.Stderr, "[TEST] ", log.LstdFlags)
}

func testDoubt() classify.Result {
	return classify.Result{
		Subject:   "mathematics",
		Topic:     "trigonometry",
		DoubtType: store.DoubtType{Type: store.DoubtConceptual, Confidence: 0.8},
		Language:  store.LanguageEnglish,
	}
}

func TestGenerateBigIdea(t *testing.T) {
	provider := llm.NewMockProvider(llm.MockResponse{
		Content: "Trigonometry is about ratios.\n1. A ratio compares two sides\n2. The angle fixes the ratio\n3. Sin, cos and tan name the three main ratios",
	})
	gen := NewGenerator(provider, testLogger())

	tctx := store.NewTutoringContext("session-1", "student-1")
	input := store.StudentInput{Text: "What is sin theta?", Modality: store.ModalityText}

	result := gen.Generate(context.Background(), store.SectionBigIdea, tctx, input, testDoubt())

	require.NotNil(t, result.Section)
	assert.False(t, result.Fallback)
	assert.Equal(t, store.SectionBigIdea, result.Section.Type)
	assert.Equal(t, "The Big Idea", result.Section.Title)
	assert.Len(t, result.Section.Steps, 3)
	assert.Empty(t, result.Section.MCQOptions)
	assert.NotEmpty(t, result.Section.Id)
}

func TestGenerateMCQ(t *testing.T) {
	provider := llm.NewMockProvider(llm.MockResponse{
		Content: "What is tan 45?\nA) 0\nB) 1\nC) 0.5\nD) 2\nAnswer: B tan equals sin over cos",
	})
	gen := NewGenerator(provider, testLogger())

	tctx := store.NewTutoringContext("session-1", "student-1")
	input := store.StudentInput{Text: "tan values", Modality: store.ModalityText}

	result := gen.Generate(context.Background(), store.SectionMCQ, tctx, input, testDoubt())

	require.NotNil(t, result.Section)
	require.Len(t, result.Section.MCQOptions, 4)
	assert.True(t, result.Section.MCQOptions[1].IsCorrect)
	assert.False(t, result.Section.MCQOptions[0].IsCorrect)
}

func TestGenerateMCQWithoutOptions(t *testing.T) {
	// Malformed model output: no recognizable options. The section is still
	// returned with an empty option list rather than an error.
	provider := llm.NewMockProvider(llm.MockResponse{
		Content: "Consider what tan 45 might be and why.",
	})
	gen := NewGenerator(provider, testLogger())

	tctx := store.NewTutoringContext("session-1", "student-1")
	input := store.StudentInput{Text: "tan values", Modality: store.ModalityText}

	result := gen.Generate(context.Background(), store.SectionMCQ, tctx, input, testDoubt())

	require.NotNil(t, result.Section)
	assert.False(t, result.Fallback)
	assert.Empty(t, result.Section.MCQOptions)
	assert.NotEmpty(t, result.Section.Steps)
}

func TestGenerateHints(t *testing.T) {
	provider := llm.NewMockProvider(llm.MockResponse{
		Content: "Hint 1: Draw the triangle.\nHint 2: Label opposite and adjacent.\nHint 3: Both sides are equal at 45 degrees.",
	})
	gen := NewGenerator(provider, testLogger())

	tctx := store.NewTutoringContext("session-1", "student-1")
	input := store.StudentInput{Text: "stuck on tan 45", Modality: store.ModalityText}

	result := gen.Generate(context.Background(), store.SectionHint, tctx, input, testDoubt())

	require.NotNil(t, result.Section)
	require.Len(t, result.Section.Hints, 3)
	assert.Equal(t, 1, result.Section.Hints[0].Level)
	assert.False(t, result.Section.Hints[0].IsRevealed)
}

func TestGenerateFallbackOnProviderError(t *testing.T) {
	provider := llm.NewMockProvider(llm.MockResponse{
		Err: errors.New("model unavailable"),
	})
	gen := NewGenerator(provider, testLogger())

	tctx := store.NewTutoringContext("session-1", "student-1")
	input := store.StudentInput{Text: "why do shadows form", Modality: store.ModalityText}

	result := gen.Generate(context.Background(), store.SectionExample, tctx, input, testDoubt())

	require.NotNil(t, result.Section)
	assert.True(t, result.Fallback)
	assert.Equal(t, store.SectionExample, result.Section.Type)
	require.NotEmpty(t, result.Section.Steps)
	assert.Contains(t, result.Section.Content, "why do shadows form")
}

func TestQuizFromSection(t *testing.T) {
	provider := llm.NewMockProvider(llm.MockResponse{
		Content: "Which gas do plants absorb?\nA) Oxygen\nB) Carbon dioxide\nC) Nitrogen\nD) Helium\nAnswer: B plants use it in photosynthesis",
	})
	gen := NewGenerator(provider, testLogger())

	tctx := store.NewTutoringContext("session-1", "student-1")
	input := store.StudentInput{Text: "photosynthesis", Modality: store.ModalityText}

	result := gen.Generate(context.Background(), store.SectionMCQ, tctx, input, testDoubt())
	quiz := QuizFromSection(result.Section)

	assert.Equal(t, "Which gas do plants absorb?", quiz.Question)
	require.Len(t, quiz.Options, 4)
	assert.Equal(t, 1, quiz.CorrectIndex)
	assert.Equal(t, "plants use it in photosynthesis", quiz.Explanation)
}

func TestQuizFromSectionUnscorable(t *testing.T) {
	quiz := QuizFromSection(&store.TutoringSection{
		Type:    store.SectionMCQ,
		Title:   "Check Your Understanding",
		Content: "No options here",
	})

	assert.Equal(t, -1, quiz.CorrectIndex)
	assert.Empty(t, quiz.Options)

	assert.Equal(t, -1, QuizFromSection(nil).CorrectIndex)
}
