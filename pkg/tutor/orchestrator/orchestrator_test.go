package orchestrator

import (
	"context"
	"errors"
	"log"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ai-tutor-be/pkg/store"
	"ai-tutor-be/pkg/tutor/classify"
	"ai-tutor-be/pkg/tutor/section"
	"ai-tutor-be/pkg/tutor/stream"
)

type fakeClassifier struct {
	delay time.Duration
}

func (f *fakeClassifier) Classify(_ context.Context, _ store.StudentInput, _ *store.TutoringContext) classify.Result {
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	return classify.Result{
		Subject:   "mathematics",
		Topic:     "algebra",
		DoubtType: store.DoubtType{Type: store.DoubtConceptual, Confidence: 0.8},
		Language:  store.LanguageEnglish,
	}
}

type fakeGenerator struct {
	mu      sync.Mutex
	delay   time.Duration
	mcq     *store.TutoringSection
	calls   []string
	content string
}

func (f *fakeGenerator) Generate(_ context.Context, sectionType string, _ *store.TutoringContext, input store.StudentInput, _ classify.Result) section.ParseResult {
	f.mu.Lock()
	f.calls = append(f.calls, sectionType)
	f.mu.Unlock()
	if f.delay > 0 {
		time.Sleep(f.delay)
	}

	if sectionType == store.SectionHint {
		return section.Ok(&store.TutoringSection{
			Id:   uuid.NewString(),
			Type: store.SectionHint,
			Hints: []store.Hint{
				{Id: uuid.NewString(), Level: 1, Content: "What pattern is this?"},
				{Id: uuid.NewString(), Level: 2, Content: "Compare both sides."},
			},
		})
	}

	if sectionType == store.SectionMCQ {
		if f.mcq != nil {
			return section.Ok(f.mcq)
		}
		return section.Ok(&store.TutoringSection{
			Id:      uuid.NewString(),
			Type:    store.SectionMCQ,
			Content: "Unstructured quiz text with no options",
		})
	}

	content := f.content
	if content == "" {
		content = "The key idea behind " + input.Text + " is balance.\n1. State the equation\n2. Work both sides"
	}
	return section.Ok(&store.TutoringSection{
		Id:      uuid.NewString(),
		Type:    sectionType,
		Title:   "The Big Idea",
		Content: content,
		Steps: []store.Step{
			{Id: uuid.NewString(), Content: "State the equation", Order: 1},
			{Id: uuid.NewString(), Content: "Work both sides", Order: 2},
		},
		CreatedAt: time.Now(),
	})
}

func (f *fakeGenerator) callTypes() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

type fakeSessionStore struct {
	mu    sync.Mutex
	err   error
	calls int
}

func (f *fakeSessionStore) CreateSession(_ context.Context, _, _ string, _ bool) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	return "sess-1", nil
}

type fakeProfileStore struct {
	mu       sync.Mutex
	persists []store.StudentProfile
}

func (f *fakeProfileStore) Persist(_ context.Context, _ string, p store.StudentProfile) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.persists = append(f.persists, p)
	return nil
}

func (f *fakeProfileStore) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.persists)
}

type eventSink struct {
	mu        sync.Mutex
	events    []stream.Event
	terminals chan stream.Event
}

func newEventSink() *eventSink {
	return &eventSink{terminals: make(chan stream.Event, 16)}
}

func (s *eventSink) emit(ev stream.Event) {
	s.mu.Lock()
	s.events = append(s.events, ev)
	s.mu.Unlock()
	if ev.IsTerminal() {
		s.terminals <- ev
	}
}

func (s *eventSink) all() []stream.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]stream.Event(nil), s.events...)
}

func (s *eventSink) waitTerminal(t *testing.T) stream.Event {
	t.Helper()
	select {
	case ev := <-s.terminals:
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("no terminal event within deadline")
		return stream.Event{}
	}
}

type harness struct {
	orch      *Orchestrator
	sink      *eventSink
	generator *fakeGenerator
	sessions  *fakeSessionStore
	profiles  *fakeProfileStore
}

func newHarness(t *testing.T, mutate func(*Config, *fakeClassifier, *fakeGenerator)) *harness {
	t.Helper()
	cfg := Config{
		ConnectTimeout: time.Second,
		TurnTimeout:    2 * time.Second,
		DedupeWindow:   10 * time.Millisecond,
	}
	cls := &fakeClassifier{}
	gen := &fakeGenerator{}
	if mutate != nil {
		mutate(&cfg, cls, gen)
	}
	sink := newEventSink()
	sessions := &fakeSessionStore{}
	profiles := &fakeProfileStore{}
	logger := log.New(os.Stderr, "[TEST] ", log.LstdFlags)
	orch := NewOrchestrator("user-1", false, cls, gen, sessions, profiles, sink.emit, cfg, logger)
	return &harness{orch: orch, sink: sink, generator: gen, sessions: sessions, profiles: profiles}
}

func textInput(text string) store.StudentInput {
	return store.StudentInput{Text: text, Modality: store.ModalityText}
}

func TestSendMessageRunsFullTurn(t *testing.T) {
	h := newHarness(t, nil)

	require.NoError(t, h.orch.SendMessage(context.Background(), textInput("solve 2x+3=7")))
	final := h.sink.waitTerminal(t)

	assert.Equal(t, stream.EventFinal, final.Type)
	require.NotNil(t, final.Final)
	assert.Equal(t, "confirm_understanding", final.Final.NextAction)
	assert.NotNil(t, final.Final.Section)

	events := h.sink.all()
	assert.Equal(t, stream.EventSection, events[0].Type)
	assert.Equal(t, stream.EventFinal, events[len(events)-1].Type)

	tctx := h.orch.Context()
	require.NotNil(t, tctx)
	assert.Equal(t, "sess-1", tctx.SessionId)
	assert.Equal(t, store.StateIdle, tctx.State)
	assert.NotNil(t, tctx.CurrentSection)
	require.Len(t, tctx.History, 2)
	assert.Equal(t, store.SenderUser, tctx.History[0].Sender)
	assert.Equal(t, store.SenderAI, tctx.History[1].Sender)

	// First turn uses the opening section type.
	assert.Equal(t, []string{store.SectionProbe}, h.generator.callTypes())
}

func TestSessionCreatedLazilyOnce(t *testing.T) {
	h := newHarness(t, nil)

	require.NoError(t, h.orch.SendMessage(context.Background(), textInput("first question")))
	h.sink.waitTerminal(t)
	require.NoError(t, h.orch.SendMessage(context.Background(), textInput("second question")))
	h.sink.waitTerminal(t)

	h.sessions.mu.Lock()
	defer h.sessions.mu.Unlock()
	assert.Equal(t, 1, h.sessions.calls)
}

func TestSessionCreationFailureDefersDispatch(t *testing.T) {
	h := newHarness(t, nil)
	h.sessions.err = errors.New("storage down")

	err := h.orch.SendMessage(context.Background(), textInput("hello"))
	require.Error(t, err)
	assert.Nil(t, h.orch.Context())

	// A retry after the collaborator recovers succeeds.
	h.sessions.mu.Lock()
	h.sessions.err = nil
	h.sessions.mu.Unlock()
	time.Sleep(15 * time.Millisecond) // past the dedupe window
	require.NoError(t, h.orch.SendMessage(context.Background(), textInput("hello")))
	h.sink.waitTerminal(t)
	assert.NotNil(t, h.orch.Context())
}

func TestDuplicateSuppression(t *testing.T) {
	h := newHarness(t, func(cfg *Config, _ *fakeClassifier, gen *fakeGenerator) {
		cfg.DedupeWindow = time.Second
		gen.delay = 50 * time.Millisecond
	})

	require.NoError(t, h.orch.SendMessage(context.Background(), textInput("same text")))
	err := h.orch.SendMessage(context.Background(), textInput("same text"))
	assert.ErrorIs(t, err, ErrDuplicateMessage)
	h.sink.waitTerminal(t)
}

func TestInFlightTurnRejectsNewMessage(t *testing.T) {
	h := newHarness(t, func(_ *Config, _ *fakeClassifier, gen *fakeGenerator) {
		gen.delay = 200 * time.Millisecond
	})

	require.NoError(t, h.orch.SendMessage(context.Background(), textInput("first")))
	err := h.orch.SendMessage(context.Background(), textInput("different text"))
	assert.ErrorIs(t, err, ErrTurnInFlight)

	h.sink.waitTerminal(t)

	// Released after the turn completes.
	require.NoError(t, h.orch.SendMessage(context.Background(), textInput("third")))
	h.sink.waitTerminal(t)
}

func TestTurnTimeoutSynthesizesError(t *testing.T) {
	h := newHarness(t, func(cfg *Config, _ *fakeClassifier, gen *fakeGenerator) {
		cfg.ConnectTimeout = 30 * time.Millisecond
		cfg.TurnTimeout = 60 * time.Millisecond
		gen.delay = 500 * time.Millisecond
	})

	require.NoError(t, h.orch.SendMessage(context.Background(), textInput("slow one")))
	ev := h.sink.waitTerminal(t)

	require.Equal(t, stream.EventError, ev.Type)
	assert.Equal(t, "turn_timeout", ev.Error.Code)
	assert.True(t, ev.Error.Retryable)

	// The terminal event arrives after teardown, so the next turn is
	// accepted right away.
	require.NoError(t, h.orch.SendMessage(context.Background(), textInput("next one")))
}

func TestSlowGenerationOutlivesConnectDeadline(t *testing.T) {
	h := newHarness(t, func(cfg *Config, _ *fakeClassifier, gen *fakeGenerator) {
		cfg.ConnectTimeout = 50 * time.Millisecond
		cfg.TurnTimeout = 2 * time.Second
		gen.delay = 150 * time.Millisecond
	})

	require.NoError(t, h.orch.SendMessage(context.Background(), textInput("a slow but healthy call")))
	ev := h.sink.waitTerminal(t)

	require.Equal(t, stream.EventFinal, ev.Type)
	require.NotNil(t, h.orch.Context().CurrentSection)
}

func TestEmptyInputRejected(t *testing.T) {
	h := newHarness(t, nil)
	err := h.orch.SendMessage(context.Background(), textInput("   "))
	assert.ErrorIs(t, err, ErrEmptyInput)
}

func TestRequestHintWithoutSession(t *testing.T) {
	h := newHarness(t, nil)
	assert.ErrorIs(t, h.orch.RequestHint(context.Background()), ErrNoSession)
}

func TestRequestHintGeneratesAndRevealsInLevelOrder(t *testing.T) {
	h := newHarness(t, nil)
	require.NoError(t, h.orch.SendMessage(context.Background(), textInput("factor x^2-1")))
	h.sink.waitTerminal(t)

	require.NoError(t, h.orch.RequestHint(context.Background()))
	require.NoError(t, h.orch.RequestHint(context.Background()))
	assert.ErrorIs(t, h.orch.RequestHint(context.Background()), ErrNoHints)

	// The first request generated the hint set; later requests reuse it.
	hintCalls := 0
	for _, typ := range h.generator.callTypes() {
		if typ == store.SectionHint {
			hintCalls++
		}
	}
	assert.Equal(t, 1, hintCalls)

	var hints []stream.Event
	for _, ev := range h.sink.all() {
		if ev.Type == stream.EventHint {
			hints = append(hints, ev)
		}
	}
	require.Len(t, hints, 2)
	assert.Equal(t, 1, hints[0].Hint.Hint.Level)
	assert.Equal(t, 1, hints[0].Hint.RemainingHints)
	assert.Equal(t, 2, hints[1].Hint.Hint.Level)
	assert.Equal(t, 0, hints[1].Hint.RemainingHints)
	assert.True(t, h.orch.Context().CurrentSection.Hints[0].IsRevealed)
	assert.True(t, h.orch.Context().CurrentSection.Hints[1].IsRevealed)
}
