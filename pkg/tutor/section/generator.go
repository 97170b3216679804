package section

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"ai-tutor-be/pkg/llm"
	"ai-tutor-be/pkg/store"
	"ai-tutor-be/pkg/tutor/classify"
)

// Generation bounds: the output ceiling keeps parsing cost predictable, the
// temperature favors varied but on-task phrasing.
const (
	generationMaxTokens   = 800
	generationTemperature = 0.7
)

// Generator drives the completion provider and parses its free-text output
// into a structured section.
type Generator struct {
	provider llm.LLMProvider
	logger   *log.Logger
}

func NewGenerator(provider llm.LLMProvider, logger *log.Logger) *Generator {
	return &Generator{
		provider: provider,
		logger:   logger,
	}
}

// Generate produces a section of the requested type. It never fails: a
// provider error yields a synthesized fallback section, tagged as such in
// the ParseResult.
func (g *Generator) Generate(
	ctx context.Context,
	sectionType string,
	tctx *store.TutoringContext,
	input store.StudentInput,
	doubt classify.Result,
) ParseResult {
	prompt := BuildPrompt(sectionType, tctx, input, doubt)

	raw, err := g.provider.Generate(ctx, prompt,
		llm.WithTemperature(generationTemperature),
		llm.WithMaxTokens(generationMaxTokens),
	)
	if err != nil {
		g.logger.Printf("[SECTION] Generation failed for type %s: %v", sectionType, err)
		return AsFallback(g.fallbackSection(sectionType, input))
	}

	return Ok(g.parseSection(sectionType, raw))
}

func (g *Generator) parseSection(sectionType, raw string) *store.TutoringSection {
	content := normalizeContent(raw)

	section := &store.TutoringSection{
		Id:        uuid.NewString(),
		Type:      sectionType,
		Title:     TitleFor(sectionType),
		Content:   content,
		Steps:     parseSteps(content),
		CreatedAt: time.Now(),
	}

	switch sectionType {
	case store.SectionMCQ:
		parsed := parseMCQ(content)
		section.MCQOptions = parsed.Options
		if len(parsed.Options) == 0 {
			g.logger.Printf("[SECTION] MCQ parse found no options, keeping empty list")
		}
	case store.SectionHint:
		section.Hints = parseHints(content)
	}

	return section
}

// Canned fallback content per type. Visibly generic so quality monitoring
// can detect degradation downstream.
var fallbackTemplates = map[string]string{
	store.SectionProbe:      "Let me make sure I understand your question: %q. Could you tell me which part is giving you trouble?",
	store.SectionBigIdea:    "That's a good question about %q. Let's take it one small piece at a time.",
	store.SectionExample:    "Let's work through an example related to %q together, step by step.",
	store.SectionQuickCheck: "Before we go on, try restating %q in your own words.",
	store.SectionTryIt:      "Here's something to try on your own, based on %q. Give it your best attempt.",
	store.SectionRecap:      "Let's quickly recap what we discussed about %q.",
	store.SectionMCQ:        "I couldn't prepare a quiz question for %q right now. Let's keep going and try again shortly.",
	store.SectionHint:       "Think about what %q is really asking. Which formula or idea connects the pieces?",
}

func (g *Generator) fallbackSection(sectionType string, input store.StudentInput) *store.TutoringSection {
	template, ok := fallbackTemplates[sectionType]
	if !ok {
		template = fallbackTemplates[store.SectionBigIdea]
	}
	content := fmt.Sprintf(template, truncate(input.Text, 120))

	return &store.TutoringSection{
		Id:      uuid.NewString(),
		Type:    sectionType,
		Title:   TitleFor(sectionType),
		Content: content,
		Steps: []store.Step{
			{
				Id:      uuid.NewString(),
				Content: content,
				Order:   1,
			},
		},
		CreatedAt: time.Now(),
	}
}

// QuizFromSection derives a scoreable quiz question from a generated MCQ
// section. Zero or multiple IsCorrect flags are handled defensively: the
// first flagged option wins, none means unscorable (-1).
func QuizFromSection(s *store.TutoringSection) store.QuizQuestion {
	q := store.QuizQuestion{CorrectIndex: -1}
	if s == nil {
		return q
	}

	for i, opt := range s.MCQOptions {
		q.Options = append(q.Options, opt.Text)
		if opt.IsCorrect && q.CorrectIndex == -1 {
			q.CorrectIndex = i
			q.Explanation = opt.Explanation
		}
	}

	// Question text: section content up to the first option, or the title.
	parsed := parseMCQ(s.Content)
	if parsed.Question != "" {
		q.Question = parsed.Question
	} else {
		q.Question = s.Title
	}
	return q
}
