package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"ai-tutor-be/pkg/store"
	"ai-tutor-be/pkg/tutor/classify"
	"ai-tutor-be/pkg/tutor/section"
	"ai-tutor-be/pkg/tutor/stream"
)

var (
	ErrEmptyInput       = errors.New("orchestrator: empty input")
	ErrDuplicateMessage = errors.New("orchestrator: duplicate message suppressed")
	ErrTurnInFlight     = errors.New("orchestrator: a turn is already in flight")
	ErrNoSession        = errors.New("orchestrator: no active session")
	ErrNoHints          = errors.New("orchestrator: no hints to reveal")
)

// Config tunes the per-turn timing behavior.
type Config struct {
	// ConnectTimeout bounds the wait for the first stream event of a turn.
	ConnectTimeout time.Duration
	// TurnTimeout bounds the whole turn; without a terminal event by then
	// the turn is released with a synthesized error.
	TurnTimeout time.Duration
	// DedupeWindow suppresses identical re-submits within this window.
	DedupeWindow time.Duration
}

func DefaultConfig() Config {
	return Config{
		ConnectTimeout: 5 * time.Second,
		TurnTimeout:    45 * time.Second,
		DedupeWindow:   3 * time.Second,
	}
}

// Classifier decides subject, topic, doubt type and language for an input.
type Classifier interface {
	Classify(ctx context.Context, input store.StudentInput, tctx *store.TutoringContext) classify.Result
}

// SectionGenerator produces one structured section per call.
type SectionGenerator interface {
	Generate(ctx context.Context, sectionType string, tctx *store.TutoringContext, input store.StudentInput, doubt classify.Result) section.ParseResult
}

// SessionStore creates session identifiers. Creation must tolerate retries
// after transient failures.
type SessionStore interface {
	CreateSession(ctx context.Context, userId, subject string, guest bool) (string, error)
}

// ProfileStore persists partial profile records. Called fire-and-forget;
// the orchestrator's local copy stays the source of truth between calls.
type ProfileStore interface {
	Persist(ctx context.Context, userId string, profile store.StudentProfile) error
}

// EmitFunc receives every client-bound event, in order, for one session.
type EmitFunc func(stream.Event)

// Orchestrator owns the conversational state machine of a single session:
// dispatch, lazy session creation, quiz interludes, profile elicitation,
// duplicate suppression and streaming consumption. One instance per
// session; methods are safe for concurrent use.
type Orchestrator struct {
	cfg        Config
	classifier Classifier
	generator  SectionGenerator
	sessions   SessionStore
	profiles   ProfileStore
	emit       EmitFunc
	logger     *log.Logger

	userId string
	guest  bool

	mu           sync.Mutex
	tctx         *store.TutoringContext
	creating     bool
	inFlight     bool
	current      *stream.Stream
	recent       map[string]time.Time
	pendingField string
}

func NewOrchestrator(
	userId string,
	guest bool,
	classifier Classifier,
	generator SectionGenerator,
	sessions SessionStore,
	profiles ProfileStore,
	emit EmitFunc,
	cfg Config,
	logger *log.Logger,
) *Orchestrator {
	return &Orchestrator{
		cfg:        cfg,
		classifier: classifier,
		generator:  generator,
		sessions:   sessions,
		profiles:   profiles,
		emit:       emit,
		logger:     logger,
		userId:     userId,
		guest:      guest,
		recent:     make(map[string]time.Time),
	}
}

// Context returns the session context, or nil before the first message.
func (o *Orchestrator) Context() *store.TutoringContext {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.tctx
}

// SendMessage dispatches one student input. Routing depends on the machine
// state: quiz answers and profile answers are handled synchronously, all
// other inputs start a streamed generation turn.
func (o *Orchestrator) SendMessage(ctx context.Context, input store.StudentInput) error {
	if strings.TrimSpace(input.Text) == "" && input.ImageRef == "" && len(input.ImageData) == 0 {
		return ErrEmptyInput
	}
	if input.Timestamp.IsZero() {
		input.Timestamp = time.Now()
	}

	o.mu.Lock()
	if !o.admitLocked(input) {
		o.mu.Unlock()
		return ErrDuplicateMessage
	}
	needSession := o.tctx == nil
	if needSession {
		o.creating = true
	}
	o.mu.Unlock()

	if needSession {
		if err := o.createSession(ctx); err != nil {
			return err
		}
	}

	o.mu.Lock()
	state := o.tctx.State
	o.mu.Unlock()

	switch state {
	case store.StateAwaitingQuiz:
		return o.handleQuizAnswer(input)
	case store.StateAwaitingProfile:
		return o.handleProfileAnswer(input)
	default:
		return o.startGenerationTurn(input)
	}
}

// RequestHint reveals the next unrevealed hint of the current section and
// emits it as a hint event. The first request for a section generates its
// hint set from the section's content; later requests reveal the remaining
// levels strictly in order.
func (o *Orchestrator) RequestHint(ctx context.Context) error {
	o.mu.Lock()
	if o.tctx == nil {
		o.mu.Unlock()
		return ErrNoSession
	}
	sec := o.tctx.CurrentSection
	if sec == nil {
		o.mu.Unlock()
		return ErrNoHints
	}

	if len(sec.Hints) == 0 {
		// Hint generation is an LLM call and shares the in-flight guard
		// with generation turns.
		if o.inFlight {
			o.mu.Unlock()
			return ErrTurnInFlight
		}
		o.inFlight = true
		tctx := o.tctx
		input := store.StudentInput{Text: sec.Content, Modality: store.ModalityText, Timestamp: time.Now()}
		doubt := classify.Result{Subject: tctx.Subject, Language: tctx.Language}
		o.mu.Unlock()

		result := o.generator.Generate(ctx, store.SectionHint, tctx, input, doubt)

		o.mu.Lock()
		o.inFlight = false
		if o.tctx.CurrentSection == sec && len(sec.Hints) == 0 && result.Section != nil {
			sec.Hints = result.Section.Hints
		}
	}
	defer o.mu.Unlock()

	cur := o.tctx.CurrentSection
	if cur == nil || len(cur.Hints) == 0 {
		return ErrNoHints
	}
	hint, remaining := cur.RevealNextHint()
	if hint == nil {
		return ErrNoHints
	}
	o.emit(stream.NewHintEvent(o.tctx.SessionId, *hint, remaining))
	return nil
}

// Teardown releases the session's streaming resources. Part of the explicit
// lifecycle; safe to call more than once.
func (o *Orchestrator) Teardown() {
	o.mu.Lock()
	st := o.current
	o.mu.Unlock()
	if st != nil {
		o.cleanup(st)
	}
}

// admitLocked applies the duplicate-suppression window. The dedupe key uses
// "creating" while the session identifier does not exist yet, so a
// double-submit during creation is still caught.
func (o *Orchestrator) admitLocked(input store.StudentInput) bool {
	sid := "creating"
	if o.tctx != nil {
		sid = o.tctx.SessionId
	}
	key := input.Text + "|" + input.Modality + "|" + sid

	now := time.Now()
	if last, ok := o.recent[key]; ok && now.Sub(last) < o.cfg.DedupeWindow {
		return false
	}
	for k, t := range o.recent {
		if now.Sub(t) >= o.cfg.DedupeWindow {
			delete(o.recent, k)
		}
	}
	o.recent[key] = now
	return true
}

// createSession performs the lazy first-message session creation. Dispatch
// is deferred until the storage collaborator returns an identifier.
func (o *Orchestrator) createSession(ctx context.Context) error {
	sid, err := o.sessions.CreateSession(ctx, o.userId, "", o.guest)

	o.mu.Lock()
	defer o.mu.Unlock()
	o.creating = false
	if err != nil {
		return fmt.Errorf("create session: %w", err)
	}
	if o.tctx == nil {
		o.tctx = store.NewTutoringContext(sid, o.userId)
		// Entries recorded under the placeholder suffix still have to
		// suppress a double-submit that lands after creation finished.
		for k, ts := range o.recent {
			if prefix, ok := strings.CutSuffix(k, "|creating"); ok {
				delete(o.recent, k)
				o.recent[prefix+"|"+sid] = ts
			}
		}
	}
	return nil
}

// appendStudentMessage records the input in the conversation log.
// Caller holds the lock.
func (o *Orchestrator) appendStudentMessageLocked(input store.StudentInput) {
	o.tctx.AppendMessage(store.Message{
		Id:        uuid.NewString(),
		SessionId: o.tctx.SessionId,
		UserId:    o.userId,
		Sender:    store.SenderUser,
		Modality:  input.Modality,
		Content:   input.Text,
		ImageRef:  input.ImageRef,
		Timestamp: input.Timestamp,
	})
}

// emitMessage appends an AI message and delivers it as a token event
// followed by a final event, keeping the client-side contract uniform with
// streamed turns. Caller holds the lock.
func (o *Orchestrator) emitMessageLocked(text, nextAction string) {
	msg := store.Message{
		Id:        uuid.NewString(),
		SessionId: o.tctx.SessionId,
		UserId:    o.userId,
		Sender:    store.SenderAI,
		Modality:  store.ModalityText,
		Content:   text,
		Timestamp: time.Now(),
	}
	o.tctx.AppendMessage(msg)
	o.emit(stream.NewTokenEvent(o.tctx.SessionId, text, "", ""))
	o.emit(stream.NewFinalEvent(o.tctx.SessionId, nil, nextAction, stream.Performance{}))
}
