package classify

import (
	"context"
	"errors"
	"io"
	"log"
	"testing"

	"ai-tutor-be/pkg/llm"
	"ai-tutor-be/pkg/store"
)

func newTestClassifier(provider llm.LLMProvider) *Classifier {
	return NewClassifier(provider, DefaultConfig(), log.New(io.Discard, "", 0))
}

func TestClassifyRulePass(t *testing.T) {
	tests := []struct {
		name          string
		text          string
		wantSubject   string
		wantDoubtType string
	}{
		{
			name:          "trigonometry proof",
			text:          "Prove that tan θ + cot θ = sec θ cosec θ",
			wantSubject:   "mathematics",
			wantDoubtType: "application",
		},
		{
			name:          "procedural chemistry",
			text:          "Tell me the steps to balance this reaction between acid and base",
			wantSubject:   "science",
			wantDoubtType: "procedural",
		},
		{
			name:          "conceptual physics",
			text:          "Why does refraction happen when light passes through a lens?",
			wantSubject:   "science",
			wantDoubtType: "conceptual",
		},
		{
			name:          "calculation",
			text:          "Calculate the mean and median of 3, 7, 7, 9",
			wantSubject:   "mathematics",
			wantDoubtType: "calculation",
		},
	}

	// Rule pass should be confident enough that the provider is never called.
	provider := llm.NewMockProvider()
	c := newTestClassifier(provider)

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := c.Classify(context.Background(), store.StudentInput{Text: tt.text, Modality: store.ModalityText}, nil)

			if result.Subject != tt.wantSubject {
				t.Errorf("Subject = %q, want %q", result.Subject, tt.wantSubject)
			}
			if result.DoubtType.Type != tt.wantDoubtType {
				t.Errorf("DoubtType = %q, want %q", result.DoubtType.Type, tt.wantDoubtType)
			}
			if result.Confidence.Overall < 0 || result.Confidence.Overall > 1 {
				t.Errorf("Overall confidence %v outside [0,1]", result.Confidence.Overall)
			}
		})
	}

	if provider.CallCount() != 0 {
		t.Errorf("provider called %d times for confident rule results, want 0", provider.CallCount())
	}
}

func TestClassifyLanguageDetection(t *testing.T) {
	tests := []struct {
		name string
		text string
		want string
	}{
		{"pure english", "why is the sky blue", store.LanguageEnglish},
		{"pure hindi", "यह कैसे होता है", store.LanguageHindi},
		{"mixed scripts", "please समझाओ this concept", store.LanguageHinglish},
	}

	c := newTestClassifier(llm.NewMockProvider())

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := c.Classify(context.Background(), store.StudentInput{Text: tt.text}, nil)
			if result.Language != tt.want {
				t.Errorf("Language = %q, want %q", result.Language, tt.want)
			}
		})
	}
}

func TestClassifyLLMFallback(t *testing.T) {
	provider := llm.NewMockProvider(llm.MockResponse{
		Content: "```json\n{\"subject\": \"science\", \"topic\": \"optics\", \"doubt_type\": \"conceptual\", \"confidence\": 0.85, \"language\": \"en\"}\n```",
	})
	c := newTestClassifier(provider)

	// Vague input: no subject keywords, no doubt cues, forces the LLM path.
	result := c.Classify(context.Background(), store.StudentInput{Text: "I am stuck on this one"}, nil)

	if provider.CallCount() != 1 {
		t.Fatalf("provider called %d times, want 1", provider.CallCount())
	}
	if result.Subject != "science" || result.Topic != "optics" {
		t.Errorf("got subject/topic %q/%q, want science/optics", result.Subject, result.Topic)
	}
	if result.Confidence.Overall != 0.85 {
		t.Errorf("Overall = %v, want 0.85", result.Confidence.Overall)
	}
}

func TestClassifyTotality(t *testing.T) {
	tests := []struct {
		name     string
		provider *llm.MockProvider
	}{
		{"provider errors", llm.NewMockProvider(llm.MockResponse{Err: errors.New("connection refused")})},
		{"malformed JSON", llm.NewMockProvider(llm.MockResponse{Content: "sure! the subject is maths"})},
		{"invalid doubt type", llm.NewMockProvider(llm.MockResponse{Content: `{"subject":"x","topic":"y","doubt_type":"banana","confidence":0.9}`})},
		{"empty queue", llm.NewMockProvider()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClassifier(tt.provider)
			result := c.Classify(context.Background(), store.StudentInput{Text: "hmm not sure about this"}, nil)

			if result.Subject == "" || result.DoubtType.Type == "" {
				t.Errorf("degraded result incomplete: %+v", result)
			}
			if result.Confidence.Overall < 0 || result.Confidence.Overall > 1 {
				t.Errorf("Overall confidence %v outside [0,1]", result.Confidence.Overall)
			}
		})
	}
}

func TestClassifyGenericDegradation(t *testing.T) {
	provider := llm.NewMockProvider(llm.MockResponse{Err: errors.New("unreachable")})
	c := newTestClassifier(provider)

	result := c.Classify(context.Background(), store.StudentInput{Text: "help"}, nil)

	if result.Subject != "general" {
		t.Errorf("Subject = %q, want general", result.Subject)
	}
	if result.DoubtType.Type != store.DoubtConceptual {
		t.Errorf("DoubtType = %q, want conceptual", result.DoubtType.Type)
	}
	if result.Confidence.Overall != 0.5 {
		t.Errorf("Overall = %v, want 0.5", result.Confidence.Overall)
	}
	if result.Language != store.LanguageEnglish {
		t.Errorf("Language = %q, want en", result.Language)
	}
}
