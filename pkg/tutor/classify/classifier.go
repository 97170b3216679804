package classify

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"unicode"

	"ai-tutor-be/pkg/llm"
	"ai-tutor-be/pkg/store"
)

// Result is the classification outcome. Classify always produces one; there
// is no error path visible to callers.
type Result struct {
	Subject    string                 `json:"subject"`
	Topic      string                 `json:"topic"`
	DoubtType  store.DoubtType        `json:"doubt_type"`
	Confidence store.ConfidenceScores `json:"confidence"`
	Language   string                 `json:"language"`
}

// Config tunes the classifier heuristics.
type Config struct {
	// RuleConfidenceGate is the overall confidence above which the rule-based
	// result is returned without consulting the LLM.
	RuleConfidenceGate float64

	// TwoScriptHinglish treats co-occurrence of Devanagari and Latin script
	// in one message as hinglish. Known-coarse; kept tunable.
	TwoScriptHinglish bool
}

func DefaultConfig() Config {
	return Config{
		RuleConfidenceGate: 0.7,
		TwoScriptHinglish:  true,
	}
}

// Classifier determines subject, topic, doubt type and language for one
// student input. The rule pass runs first; the LLM is only consulted when
// the rules are not confident enough.
type Classifier struct {
	provider llm.LLMProvider
	cfg      Config
	logger   *log.Logger
}

func NewClassifier(provider llm.LLMProvider, cfg Config, logger *log.Logger) *Classifier {
	if cfg.RuleConfidenceGate <= 0 {
		cfg.RuleConfidenceGate = 0.7
	}
	return &Classifier{
		provider: provider,
		cfg:      cfg,
		logger:   logger,
	}
}

// Classify never fails: any provider or parse error degrades to the rule
// result, and in the worst case to a generic low-confidence answer.
func (c *Classifier) Classify(ctx context.Context, input store.StudentInput, tctx *store.TutoringContext) Result {
	ruleResult := c.classifyByRules(input, tctx)

	if ruleResult.Confidence.Overall > c.cfg.RuleConfidenceGate {
		return ruleResult
	}

	llmResult, err := c.classifyByLLM(ctx, input, tctx)
	if err != nil {
		c.logger.Printf("[CLASSIFY] LLM fallback failed, using rule result: %v", err)
		if ruleResult.Subject == "general" {
			// Nothing matched and the LLM is unreachable: generic answer at
			// neutral confidence rather than an artificially low one.
			return genericResult(ruleResult.Language)
		}
		return ruleResult
	}
	// The rule pass owns language detection; the LLM only fills it when the
	// script scan saw nothing useful.
	if llmResult.Language == "" {
		llmResult.Language = ruleResult.Language
	}
	return llmResult
}

// genericResult is the last-resort classification: always usable, never
// confidently wrong.
func genericResult(language string) Result {
	if language == "" {
		language = store.LanguageEnglish
	}
	return Result{
		Subject: "general",
		Topic:   "general",
		DoubtType: store.DoubtType{
			Type:       store.DoubtConceptual,
			Confidence: 0.5,
		},
		Confidence: store.ConfidenceScores{
			Subject:    0.5,
			Topic:      0.5,
			Difficulty: 0.5,
			Overall:    0.5,
		},
		Language: language,
	}
}

// --- Rule pass ---

func (c *Classifier) classifyByRules(input store.StudentInput, tctx *store.TutoringContext) Result {
	text := strings.ToLower(input.Text)
	tokens := tokenize(text)

	subject, topic, subjectConf, topicConf, keywords := matchSubject(text, tokens)
	doubtType, doubtConf := matchDoubtType(text)
	language := c.detectLanguage(input.Text, tctx)

	if subject == "" {
		subject, topic = "general", "general"
		subjectConf, topicConf = 0.3, 0.3
	}
	if doubtType == "" {
		doubtType, doubtConf = store.DoubtConceptual, 0.4
	}

	// Difficulty is only guessed from context; a known grade narrows it.
	difficultyConf := 0.4
	if tctx != nil && tctx.Grade != "" {
		difficultyConf = 0.6
	}

	overall := clamp01(0.5*subjectConf + 0.3*doubtConf + 0.2*topicConf)

	return Result{
		Subject: subject,
		Topic:   topic,
		DoubtType: store.DoubtType{
			Type:       doubtType,
			Confidence: doubtConf,
			Keywords:   keywords,
		},
		Confidence: store.ConfidenceScores{
			Subject:    subjectConf,
			Topic:      topicConf,
			Difficulty: difficultyConf,
			Overall:    overall,
		},
		Language: language,
	}
}

func matchSubject(text string, tokens map[string]bool) (subject, topic string, subjectConf, topicConf float64, matched []string) {
	bestCount := 0
	for subj, topics := range subjectKeywords {
		for top, words := range topics {
			count := 0
			var hits []string
			for _, w := range words {
				if containsKeyword(text, tokens, w) {
					count++
					hits = append(hits, w)
				}
			}
			if count > bestCount {
				bestCount = count
				subject, topic, matched = subj, top, hits
			}
		}
	}
	if bestCount == 0 {
		return "", "", 0, 0, nil
	}
	subjectConf = clamp01(0.5 + 0.15*float64(bestCount))
	topicConf = clamp01(0.4 + 0.15*float64(bestCount))
	return subject, topic, subjectConf, topicConf, matched
}

func matchDoubtType(text string) (string, float64) {
	best := ""
	bestCount := 0
	for _, dt := range []string{store.DoubtConceptual, store.DoubtProcedural, store.DoubtApplication, store.DoubtCalculation} {
		count := 0
		for _, cue := range doubtCues[dt] {
			if strings.Contains(text, cue) {
				count++
			}
		}
		if count > bestCount {
			best = dt
			bestCount = count
		}
	}
	if best == "" {
		return "", 0
	}
	return best, clamp01(0.5 + 0.2*float64(bestCount))
}

func (c *Classifier) detectLanguage(text string, tctx *store.TutoringContext) string {
	hasDevanagari := false
	hasLatin := false
	for _, r := range text {
		if r >= 0x0900 && r <= 0x097F {
			hasDevanagari = true
		} else if unicode.Is(unicode.Latin, r) {
			hasLatin = true
		}
	}

	switch {
	case hasDevanagari && hasLatin && c.cfg.TwoScriptHinglish:
		return store.LanguageHinglish
	case hasDevanagari:
		return store.LanguageHindi
	case hasLatin:
		return store.LanguageEnglish
	}
	if tctx != nil && tctx.Language != "" {
		return tctx.Language
	}
	return store.LanguageEnglish
}

// containsKeyword checks a single-word keyword against the token set and a
// multi-word phrase against the raw text.
func containsKeyword(text string, tokens map[string]bool, keyword string) bool {
	if strings.Contains(keyword, " ") {
		return strings.Contains(text, keyword)
	}
	return tokens[keyword]
}

func tokenize(text string) map[string]bool {
	tokens := make(map[string]bool)
	words := strings.FieldsFunc(text, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
	for _, w := range words {
		tokens[w] = true
	}
	return tokens
}

// --- LLM fallback ---

type llmClassification struct {
	Subject    string  `json:"subject"`
	Topic      string  `json:"topic"`
	DoubtType  string  `json:"doubt_type"`
	Confidence float64 `json:"confidence"`
	Language   string  `json:"language"`
}

const classifyPromptTemplate = `Classify the student's doubt below. Respond with ONLY this JSON format, no other text:
{"subject": "mathematics|science|english|general", "topic": "<short topic>", "doubt_type": "conceptual|procedural|application|calculation", "confidence": <0.0-1.0>, "language": "en|hi|hinglish"}

Recent conversation:
%s

Student doubt: %s`

func (c *Classifier) classifyByLLM(ctx context.Context, input store.StudentInput, tctx *store.TutoringContext) (Result, error) {
	prompt := fmt.Sprintf(classifyPromptTemplate, recentTurnsBlock(tctx), input.Text)

	raw, err := c.provider.Generate(ctx, prompt, llm.WithTemperature(0.1), llm.WithMaxTokens(200))
	if err != nil {
		return Result{}, fmt.Errorf("classification request: %w", err)
	}

	var parsed llmClassification
	if err := json.Unmarshal([]byte(stripCodeFences(raw)), &parsed); err != nil {
		return Result{}, fmt.Errorf("parse classification JSON: %w", err)
	}

	if !validDoubtType(parsed.DoubtType) {
		return Result{}, fmt.Errorf("invalid doubt_type %q", parsed.DoubtType)
	}
	if parsed.Subject == "" {
		parsed.Subject = "general"
	}
	if parsed.Topic == "" {
		parsed.Topic = "general"
	}
	conf := clamp01(parsed.Confidence)

	return Result{
		Subject: parsed.Subject,
		Topic:   parsed.Topic,
		DoubtType: store.DoubtType{
			Type:       parsed.DoubtType,
			Confidence: conf,
		},
		Confidence: store.ConfidenceScores{
			Subject:    conf,
			Topic:      conf,
			Difficulty: conf,
			Overall:    conf,
		},
		Language: normalizeLanguage(parsed.Language),
	}, nil
}

func recentTurnsBlock(tctx *store.TutoringContext) string {
	if tctx == nil || len(tctx.History) == 0 {
		return "(none)"
	}
	var b strings.Builder
	for _, msg := range tctx.RecentTurns(3) {
		fmt.Fprintf(&b, "%s: %s\n", msg.Sender, msg.Content)
	}
	return strings.TrimRight(b.String(), "\n")
}

func validDoubtType(dt string) bool {
	switch dt {
	case store.DoubtConceptual, store.DoubtProcedural, store.DoubtApplication, store.DoubtCalculation:
		return true
	}
	return false
}

func normalizeLanguage(lang string) string {
	switch lang {
	case store.LanguageEnglish, store.LanguageHindi, store.LanguageHinglish:
		return lang
	}
	return ""
}

func stripCodeFences(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```json") {
		s = strings.TrimSpace(strings.TrimPrefix(s, "```json"))
	} else if strings.HasPrefix(s, "```") {
		s = strings.TrimSpace(strings.TrimPrefix(s, "```"))
	}
	if strings.HasSuffix(s, "```") {
		s = strings.TrimSpace(strings.TrimSuffix(s, "```"))
	}
	return s
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
