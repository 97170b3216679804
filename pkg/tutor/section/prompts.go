package section

import (
	"fmt"
	"strings"

	"ai-tutor-be/pkg/store"
	"ai-tutor-be/pkg/tutor/classify"
)

// Fixed titles per section type.
var sectionTitles = map[string]string{
	store.SectionProbe:      "Let's Understand Your Question",
	store.SectionBigIdea:    "The Big Idea",
	store.SectionExample:    "Worked Example",
	store.SectionQuickCheck: "Quick Check",
	store.SectionTryIt:      "Your Turn - Try It",
	store.SectionRecap:      "Let's Recap",
	store.SectionMCQ:        "Check Your Understanding",
	store.SectionHint:       "Here's a Hint",
}

// TitleFor returns the fixed title for a section type.
func TitleFor(sectionType string) string {
	if title, ok := sectionTitles[sectionType]; ok {
		return title
	}
	return "Let's Learn Together"
}

// Per-type instruction blocks. Kept short and imperative; the context block
// carries the specifics.
var sectionInstructions = map[string]string{
	store.SectionProbe: `Ask 1-2 short probing questions to pin down exactly what the student is stuck on, then restate their doubt in simpler words. Break your response into 2-3 numbered steps.`,
	store.SectionBigIdea: `Explain the single core concept behind the student's doubt in plain language. Start from what a student of this grade already knows. Use 3-5 numbered steps, one idea per step.`,
	store.SectionExample: `Work through one concrete example that resolves the student's doubt. Show every intermediate step as a numbered list (at most 5 steps). State the final answer clearly.`,
	store.SectionQuickCheck: `Ask one short question that checks whether the student followed the last explanation. Give the expected answer on a separate line starting with "Expected:".`,
	store.SectionTryIt: `Pose one practice problem very similar to the student's doubt for them to try on their own. List what they should do as 2-3 numbered steps. Do not reveal the solution.`,
	store.SectionRecap: `Summarize what was covered about the student's doubt in 3-4 numbered takeaway points a student can revise from.`,
	store.SectionMCQ: `Write one multiple-choice question testing the concept behind the student's doubt. Give exactly 4 options labelled A) B) C) D), one correct. After the options, add a line "Answer: <letter>" and a one-line explanation.`,
	store.SectionHint: `Give 3 progressive hints for the student's problem, from gentle nudge to near-solution. Label them "Hint 1:", "Hint 2:", "Hint 3:". Never give the full answer.`,
}

// BuildPrompt concatenates the task instruction with the session context.
func BuildPrompt(sectionType string, tctx *store.TutoringContext, input store.StudentInput, doubt classify.Result) string {
	instruction, ok := sectionInstructions[sectionType]
	if !ok {
		instruction = sectionInstructions[store.SectionBigIdea]
	}

	var b strings.Builder
	b.WriteString("You are a patient school tutor.\n\n")
	b.WriteString(instruction)
	b.WriteString("\n\n")
	b.WriteString(contextBlock(tctx, doubt))
	b.WriteString("\nStudent's doubt: ")
	b.WriteString(input.Text)
	return b.String()
}

func contextBlock(tctx *store.TutoringContext, doubt classify.Result) string {
	var b strings.Builder
	b.WriteString("Context:\n")
	if tctx != nil && tctx.Grade != "" {
		fmt.Fprintf(&b, "- Grade: %s\n", tctx.Grade)
	}
	language := store.LanguageEnglish
	if doubt.Language != "" {
		language = doubt.Language
	}
	fmt.Fprintf(&b, "- Respond in: %s\n", languageName(language))
	fmt.Fprintf(&b, "- Subject: %s (%s)\n", doubt.Subject, doubt.Topic)
	fmt.Fprintf(&b, "- Doubt type: %s (confidence %.2f)\n", doubt.DoubtType.Type, doubt.DoubtType.Confidence)

	if tctx != nil && len(tctx.History) > 0 {
		b.WriteString("- Recent conversation:\n")
		for _, msg := range tctx.RecentTurns(3) {
			fmt.Fprintf(&b, "  %s: %s\n", msg.Sender, truncate(msg.Content, 200))
		}
	}
	return b.String()
}

func languageName(code string) string {
	switch code {
	case store.LanguageHindi:
		return "Hindi"
	case store.LanguageHinglish:
		return "Hinglish (mixed Hindi and English, Latin script allowed)"
	default:
		return "English"
	}
}

func truncate(s string, maxLen int) string {
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	return string(runes[:maxLen]) + "..."
}
