package orchestrator

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"ai-tutor-be/pkg/store"
	"ai-tutor-be/pkg/tutor/stream"
)

// User-visible transport failure message. Retrying is the student's call;
// the turn itself is never retried automatically.
const transportApology = "Sorry, I'm having trouble responding right now. Please try sending your question again."

const interruptedMarker = " (interrupted)"

const tokenChunkRunes = 48

// sectionProgression is the pedagogical order of section types across the
// turns of one session.
var sectionProgression = []string{
	store.SectionProbe,
	store.SectionBigIdea,
	store.SectionExample,
	store.SectionTryIt,
	store.SectionRecap,
}

// startGenerationTurn opens the single streaming connection for this turn.
// A prior connection, if any survived, is closed first; a turn already in
// flight rejects the new input instead.
func (o *Orchestrator) startGenerationTurn(input store.StudentInput) error {
	o.mu.Lock()
	if o.inFlight {
		o.mu.Unlock()
		return ErrTurnInFlight
	}
	prior := o.current

	o.inFlight = true
	o.tctx.State = store.StateAwaitingResponse
	o.appendStudentMessageLocked(input)

	st := stream.NewStream()
	o.current = st
	o.mu.Unlock()

	if prior != nil {
		prior.Close()
	}

	go o.produceTurn(st, input)
	go o.consumeTurn(st, input)
	return nil
}

// produceTurn runs classification and generation and publishes the event
// sequence: one section header, the content as token chunks, one final.
// Cancellation is cooperative; a closed stream stops publication.
func (o *Orchestrator) produceTurn(st *stream.Stream, input store.StudentInput) {
	st.MarkConnected()

	ctx, cancel := context.WithTimeout(context.Background(), o.cfg.TurnTimeout)
	defer cancel()

	start := time.Now()

	o.mu.Lock()
	tctx := o.tctx
	sid := tctx.SessionId
	o.mu.Unlock()

	doubt := o.classifier.Classify(ctx, input, tctx)

	o.mu.Lock()
	if tctx.Subject == "" {
		tctx.Subject = doubt.Subject
	}
	tctx.Language = doubt.Language
	sectionType := o.nextSectionTypeLocked()
	o.mu.Unlock()

	result := o.generator.Generate(ctx, sectionType, tctx, input, doubt)
	sec := result.Section
	if result.Fallback {
		o.logger.Printf("[ORCH] Session %s serving fallback section type %s", sid, sectionType)
	}

	if err := st.Publish(stream.NewSectionEvent(sid, sec, false)); err != nil {
		return
	}

	chunks := chunkContent(sec.Content)
	for _, chunk := range chunks {
		if err := st.Publish(stream.NewTokenEvent(sid, chunk, sec.Id, "")); err != nil {
			return
		}
	}

	elapsed := time.Since(start)
	perf := stream.Performance{
		LatencyMs:  elapsed.Milliseconds(),
		TokenCount: len(chunks),
	}
	if elapsed > 0 {
		perf.TokensPerSecond = float64(len(chunks)) / elapsed.Seconds()
	}
	_ = st.Publish(stream.NewFinalEvent(sid, sec, "confirm_understanding", perf))
}

// consumeTurn drives the consumer side of the turn: forwards every event to
// the client emitter, applies terminal effects to the context, and enforces
// the connect and turn timeouts. The connect timer covers connection
// establishment only; once the producer has attached, generation latency is
// the turn timer's business. Terminal effects are applied before the
// terminal event goes out, so a client reacting to it finds the machine
// idle. All exits funnel through cleanup.
func (o *Orchestrator) consumeTurn(st *stream.Stream, input store.StudentInput) {
	connect := time.NewTimer(o.cfg.ConnectTimeout)
	defer connect.Stop()
	turn := time.NewTimer(o.cfg.TurnTimeout)
	defer turn.Stop()

	select {
	case <-st.Connected():
		connect.Stop()
	case <-connect.C:
		o.cleanup(st)
		o.synthesizeError("connect_timeout")
		return
	case <-turn.C:
		o.cleanup(st)
		o.synthesizeError("turn_timeout")
		return
	case <-st.Done():
		o.cleanup(st)
		return
	}

	var partial strings.Builder

	for {
		select {
		case ev := <-st.Events():
			switch ev.Type {
			case stream.EventFinal:
				o.completeTurn(ev.Final.Section, input)
				o.cleanup(st)
				o.emit(ev)
				return
			case stream.EventError:
				o.keepPartial(partial.String())
				o.cleanup(st)
				o.emit(ev)
				return
			case stream.EventToken:
				o.emit(ev)
				partial.WriteString(ev.Token.Token)
			default:
				o.emit(ev)
			}

		case <-turn.C:
			o.keepPartial(partial.String())
			o.cleanup(st)
			o.synthesizeError("turn_timeout")
			return

		case <-st.Done():
			// Transport closed without a terminal event.
			o.keepPartial(partial.String())
			o.cleanup(st)
			return
		}
	}
}

// completeTurn installs the finished section and its AI message.
func (o *Orchestrator) completeTurn(sec *store.TutoringSection, input store.StudentInput) {
	if sec == nil {
		return
	}
	o.mu.Lock()
	defer o.mu.Unlock()

	now := time.Now()
	o.tctx.ReplaceSection(sec, now)
	o.tctx.AppendMessage(store.Message{
		Id:        uuid.NewString(),
		SessionId: o.tctx.SessionId,
		UserId:    o.userId,
		Sender:    store.SenderAI,
		Modality:  store.ModalityText,
		Content:   sec.Content,
		SectionId: sec.Id,
		Timestamp: now,
	})
	// A fresh question re-arms the quiz affordance.
	o.tctx.ActiveQuiz = nil
}

// keepPartial preserves already-streamed content as an annotated message
// rather than discarding it.
func (o *Orchestrator) keepPartial(partial string) {
	if strings.TrimSpace(partial) == "" {
		return
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	o.tctx.AppendMessage(store.Message{
		Id:        uuid.NewString(),
		SessionId: o.tctx.SessionId,
		UserId:    o.userId,
		Sender:    store.SenderAI,
		Modality:  store.ModalityText,
		Content:   partial + interruptedMarker,
		Timestamp: time.Now(),
	})
}

// synthesizeError delivers the user-visible failure for a turn that never
// reached a terminal event.
func (o *Orchestrator) synthesizeError(code string) {
	o.mu.Lock()
	sid := o.tctx.SessionId
	o.mu.Unlock()
	o.logger.Printf("[ORCH] Session %s turn aborted: %s", sid, code)
	o.emit(stream.NewErrorEvent(sid, transportApology, code, true))
}

// cleanup is the convergent teardown path shared by completion, errors,
// timeouts and cancellation: close the connection, clear the in-flight
// flag, return the machine to idle so the next turn is possible.
func (o *Orchestrator) cleanup(st *stream.Stream) {
	st.Close()
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.current == st {
		o.current = nil
	}
	o.inFlight = false
	if o.tctx != nil && o.tctx.State == store.StateAwaitingResponse {
		o.tctx.State = store.StateIdle
	}
}

// nextSectionTypeLocked walks the pedagogical progression by how many
// sections this session has produced, holding at recap.
func (o *Orchestrator) nextSectionTypeLocked() string {
	count := len(o.tctx.PreviousSections)
	if o.tctx.CurrentSection != nil {
		count++
	}
	if count >= len(sectionProgression) {
		count = len(sectionProgression) - 1
	}
	return sectionProgression[count]
}

// chunkContent splits content into rune-safe fragments for token events.
func chunkContent(content string) []string {
	runes := []rune(content)
	if len(runes) == 0 {
		return nil
	}
	chunks := make([]string, 0, len(runes)/tokenChunkRunes+1)
	for start := 0; start < len(runes); start += tokenChunkRunes {
		end := start + tokenChunkRunes
		if end > len(runes) {
			end = len(runes)
		}
		chunks = append(chunks, string(runes[start:end]))
	}
	return chunks
}
