package section

import (
	"ai-tutor-be/pkg/store"
)

// Parsing caps keep a section boundable for streaming.
const (
	MaxSteps   = 5
	MaxOptions = 4
	MaxHints   = 3
)

// ParseResult distinguishes a structurally parsed section from a synthesized
// fallback so callers cannot mistake a best-effort heuristic parse for a
// guaranteed-structured one.
type ParseResult struct {
	Section  *store.TutoringSection
	Fallback bool
}

// Ok wraps a successfully generated-and-parsed section.
func Ok(s *store.TutoringSection) ParseResult {
	return ParseResult{Section: s}
}

// AsFallback wraps a synthesized section produced on the degraded path.
func AsFallback(s *store.TutoringSection) ParseResult {
	return ParseResult{Section: s, Fallback: true}
}
