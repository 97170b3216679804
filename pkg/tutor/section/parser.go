package section

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"ai-tutor-be/pkg/store"
)

var (
	numberedStepRe = regexp.MustCompile(`^\s*\d+[.)]\s+(.+)$`)
	bulletStepRe   = regexp.MustCompile(`^\s*•\s+(.+)$`)
	dashStepRe     = regexp.MustCompile(`^\s*-\s+(.+)$`)

	letterOptionRe = regexp.MustCompile(`^\s*([A-D])\)\s*(.+)$`)
	markerOptionRe = regexp.MustCompile(`^\s*([A-Za-z0-9])[).:-]\s+(.+)$`)
	answerLineRe   = regexp.MustCompile(`(?i)^\s*answer\s*[:\-]\s*([A-D1-4])\b[).:\s]*(.*)$`)

	hintMarkerRe = regexp.MustCompile(`(?i)^\s*(?:hint|level)\s*([1-9])\s*[:.\-]\s*(.+)$`)

	tripleNewlineRe = regexp.MustCompile(`\n{3,}`)
	hspaceRunRe     = regexp.MustCompile(`[ \t]{2,}`)
)

// normalizeContent collapses 3+ consecutive newlines to 2 and runs of
// horizontal whitespace to a single space. Leading/trailing whitespace is
// preserved; some renderers are sensitive to it.
func normalizeContent(s string) string {
	s = tripleNewlineRe.ReplaceAllString(s, "\n\n")
	s = hspaceRunRe.ReplaceAllString(s, " ")
	return s
}

// parseSteps extracts ordered steps from free text. Numbered lists win over
// bullets, bullets over dashes; with no markers at all the first paragraphs
// become the steps. Always capped at MaxSteps.
func parseSteps(content string) []store.Step {
	lines := strings.Split(content, "\n")

	for _, re := range []*regexp.Regexp{numberedStepRe, bulletStepRe, dashStepRe} {
		var texts []string
		for _, line := range lines {
			if m := re.FindStringSubmatch(line); m != nil {
				texts = append(texts, strings.TrimSpace(m[1]))
			}
		}
		if len(texts) > 0 {
			return buildSteps(texts)
		}
	}

	// Paragraph fallback
	var texts []string
	for _, para := range strings.Split(content, "\n\n") {
		para = strings.TrimSpace(para)
		if para != "" {
			texts = append(texts, para)
		}
	}
	return buildSteps(texts)
}

func buildSteps(texts []string) []store.Step {
	if len(texts) > MaxSteps {
		texts = texts[:MaxSteps]
	}
	steps := make([]store.Step, 0, len(texts))
	for i, text := range texts {
		steps = append(steps, store.Step{
			Id:      uuid.NewString(),
			Content: text,
			Order:   i + 1,
		})
	}
	return steps
}

// mcqParse is the intermediate result of option extraction.
type mcqParse struct {
	Question     string
	Options      []store.MCQOption
	CorrectIndex int // -1 when the answer line was absent or unusable
	Explanation  string
}

// parseMCQ extracts up to MaxOptions options. The primary pattern is the
// letter prefix A)..D); the fallback accepts any letter-or-digit marker.
// A trailing "Answer: <letter>" line, when present, is wired back onto the
// matching option. Without it no option is marked correct.
func parseMCQ(content string) mcqParse {
	result := mcqParse{CorrectIndex: -1}
	lines := strings.Split(content, "\n")

	var optionTexts []string
	var optionLetters []string
	firstOptionLine := -1

	for i, line := range lines {
		if m := letterOptionRe.FindStringSubmatch(line); m != nil {
			if firstOptionLine == -1 {
				firstOptionLine = i
			}
			optionLetters = append(optionLetters, strings.ToUpper(m[1]))
			optionTexts = append(optionTexts, strings.TrimSpace(m[2]))
		}
	}

	if len(optionTexts) == 0 {
		// Marker fallback: letter-or-digit prefixed lines
		for i, line := range lines {
			if answerLineRe.MatchString(line) {
				continue
			}
			if m := markerOptionRe.FindStringSubmatch(line); m != nil {
				if firstOptionLine == -1 {
					firstOptionLine = i
				}
				optionLetters = append(optionLetters, strings.ToUpper(m[1]))
				optionTexts = append(optionTexts, strings.TrimSpace(m[2]))
			}
		}
	}

	if len(optionTexts) > MaxOptions {
		optionTexts = optionTexts[:MaxOptions]
		optionLetters = optionLetters[:MaxOptions]
	}

	// The question is everything before the first option marker.
	if firstOptionLine > 0 {
		result.Question = strings.TrimSpace(strings.Join(lines[:firstOptionLine], "\n"))
	} else if firstOptionLine == -1 {
		result.Question = strings.TrimSpace(content)
	}

	// Answer line, anywhere after the options.
	for _, line := range lines {
		if m := answerLineRe.FindStringSubmatch(line); m != nil {
			result.CorrectIndex = answerToIndex(m[1], optionLetters)
			result.Explanation = strings.TrimSpace(m[2])
			break
		}
	}

	for i, text := range optionTexts {
		opt := store.MCQOption{
			Id:   uuid.NewString(),
			Text: text,
		}
		if i == result.CorrectIndex {
			opt.IsCorrect = true
			opt.Explanation = result.Explanation
		}
		result.Options = append(result.Options, opt)
	}

	if result.CorrectIndex >= len(result.Options) {
		result.CorrectIndex = -1
	}
	return result
}

// answerToIndex maps an answer marker ("B" or "2") to an option index,
// preferring a match against the letters actually used by the options.
func answerToIndex(marker string, letters []string) int {
	marker = strings.ToUpper(marker)
	for i, l := range letters {
		if l == marker {
			return i
		}
	}
	if n, err := strconv.Atoi(marker); err == nil && n >= 1 {
		return n - 1
	}
	if len(marker) == 1 && marker[0] >= 'A' && marker[0] <= 'D' {
		return int(marker[0] - 'A')
	}
	return -1
}

// parseHints extracts up to MaxHints progressive hints via "Hint N:" or
// "Level N:" markers, falling back to a numbered list. Hints start
// unrevealed and are tagged 1..N regardless of the labels in the text.
func parseHints(content string) []store.Hint {
	lines := strings.Split(content, "\n")

	var texts []string
	for _, line := range lines {
		if m := hintMarkerRe.FindStringSubmatch(line); m != nil {
			texts = append(texts, strings.TrimSpace(m[2]))
		}
	}
	if len(texts) == 0 {
		for _, line := range lines {
			if m := numberedStepRe.FindStringSubmatch(line); m != nil {
				texts = append(texts, strings.TrimSpace(m[1]))
			}
		}
	}

	if len(texts) > MaxHints {
		texts = texts[:MaxHints]
	}
	hints := make([]store.Hint, 0, len(texts))
	for i, text := range texts {
		hints = append(hints, store.Hint{
			Id:      uuid.NewString(),
			Level:   i + 1,
			Content: text,
		})
	}
	return hints
}
