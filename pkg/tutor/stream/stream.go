package stream

import (
	"errors"
	"sync"
)

var (
	// ErrStreamTerminated is returned when publishing after a terminal event.
	ErrStreamTerminated = errors.New("stream: already terminated")
	// ErrStreamClosed is returned when publishing after transport close.
	ErrStreamClosed = errors.New("stream: closed")
)

const defaultBuffer = 64

// Stream is an ordered, single-turn event channel between the orchestrator
// and its consumer. It latches on the first terminal event: anything
// published afterwards is rejected, which upholds the exactly-one-terminal
// ordering guarantee at the source rather than trusting every producer.
//
// Transport completion is a separate signal from the final event: Close
// fires the Done channel, after which the wire writer emits DoneSentinel.
type Stream struct {
	events chan Event
	done   chan struct{}
	ready  chan struct{}

	mu       sync.Mutex
	terminal bool

	closeOnce sync.Once
	readyOnce sync.Once
}

func NewStream() *Stream {
	return &Stream{
		events: make(chan Event, defaultBuffer),
		done:   make(chan struct{}),
		ready:  make(chan struct{}),
	}
}

// MarkConnected signals that the producing side has attached to the stream.
// Producers call this before any work, so the consumer's connect deadline
// covers connection establishment only, never generation latency.
// Idempotent.
func (s *Stream) MarkConnected() {
	s.readyOnce.Do(func() { close(s.ready) })
}

// Connected fires once the producing side has attached.
func (s *Stream) Connected() <-chan struct{} {
	return s.ready
}

// Publish delivers an event in order. The first terminal event latches the
// stream; later events return ErrStreamTerminated and are not delivered.
func (s *Stream) Publish(ev Event) error {
	s.mu.Lock()
	if s.terminal {
		s.mu.Unlock()
		return ErrStreamTerminated
	}
	if ev.IsTerminal() {
		s.terminal = true
	}
	s.mu.Unlock()

	select {
	case s.events <- ev:
		return nil
	case <-s.done:
		return ErrStreamClosed
	}
}

// Events is the ordered event sequence for this turn. The channel is never
// closed; consumers select on Done as well.
func (s *Stream) Events() <-chan Event {
	return s.events
}

// Done fires when the transport is closed, whether or not a terminal event
// was delivered. Consumers must tolerate either signal.
func (s *Stream) Done() <-chan struct{} {
	return s.done
}

// Close ends the transport. Idempotent; safe from any goroutine.
func (s *Stream) Close() {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.terminal = true
		s.mu.Unlock()
		close(s.done)
	})
}

// Terminated reports whether a terminal event has been published or the
// stream closed.
func (s *Stream) Terminated() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.terminal
}
