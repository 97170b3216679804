package stream

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ai-tutor-be/pkg/store"
)

func TestStreamOrdering(t *testing.T) {
	s := NewStream()

	require.NoError(t, s.Publish(NewTokenEvent("sess", "Hel", "sec-1", "")))
	require.NoError(t, s.Publish(NewTokenEvent("sess", "lo", "sec-1", "")))
	require.NoError(t, s.Publish(NewFinalEvent("sess", &store.TutoringSection{Id: "sec-1"}, "", Performance{})))

	// Nothing after a terminal event.
	err := s.Publish(NewTokenEvent("sess", "late", "sec-1", ""))
	assert.ErrorIs(t, err, ErrStreamTerminated)
	err = s.Publish(NewErrorEvent("sess", "boom", "internal", false))
	assert.ErrorIs(t, err, ErrStreamTerminated)

	var received []Event
	for i := 0; i < 3; i++ {
		select {
		case ev := <-s.Events():
			received = append(received, ev)
		case <-time.After(time.Second):
			t.Fatal("expected buffered event")
		}
	}

	require.Len(t, received, 3)
	assert.Equal(t, EventToken, received[0].Type)
	assert.Equal(t, EventToken, received[1].Type)
	assert.Equal(t, EventFinal, received[2].Type)
	assert.True(t, received[2].IsTerminal())

	select {
	case ev := <-s.Events():
		t.Fatalf("unexpected event after terminal: %s", ev.Type)
	default:
	}
}

func TestStreamConnectedSignal(t *testing.T) {
	s := NewStream()

	select {
	case <-s.Connected():
		t.Fatal("connected before the producer attached")
	default:
	}

	s.MarkConnected()
	s.MarkConnected()

	select {
	case <-s.Connected():
	default:
		t.Fatal("connected signal did not fire")
	}
}

func TestStreamErrorIsTerminal(t *testing.T) {
	s := NewStream()

	require.NoError(t, s.Publish(NewErrorEvent("sess", "model unavailable", "llm_error", true)))
	assert.True(t, s.Terminated())

	err := s.Publish(NewFinalEvent("sess", nil, "", Performance{}))
	assert.ErrorIs(t, err, ErrStreamTerminated)
}

func TestStreamClose(t *testing.T) {
	s := NewStream()

	s.Close()
	s.Close() // idempotent

	select {
	case <-s.Done():
	default:
		t.Fatal("expected done channel to fire after close")
	}

	err := s.Publish(NewTokenEvent("sess", "x", "sec-1", ""))
	assert.ErrorIs(t, err, ErrStreamTerminated)
	assert.True(t, s.Terminated())
}

func TestStreamCloseUnblocksPublish(t *testing.T) {
	s := NewStream()

	// Fill the buffer so the next publish blocks.
	for i := 0; i < defaultBuffer; i++ {
		require.NoError(t, s.Publish(NewTokenEvent("sess", "x", "sec-1", "")))
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- s.Publish(NewTokenEvent("sess", "blocked", "sec-1", ""))
	}()

	time.Sleep(20 * time.Millisecond)
	s.Close()

	select {
	case err := <-errCh:
		assert.ErrorIs(t, err, ErrStreamClosed)
	case <-time.After(time.Second):
		t.Fatal("publish did not unblock after close")
	}
}

func TestMCQEventOmitsUnscorableAnswer(t *testing.T) {
	ev := NewMCQEvent("sess", store.QuizQuestion{
		Question:     "Pick one",
		Options:      []string{"a", "b"},
		CorrectIndex: -1,
	})
	require.NotNil(t, ev.MCQ)
	assert.Nil(t, ev.MCQ.CorrectAnswer)

	scored := NewMCQEvent("sess", store.QuizQuestion{
		Question:     "Pick one",
		Options:      []string{"a", "b"},
		CorrectIndex: 1,
	})
	require.NotNil(t, scored.MCQ.CorrectAnswer)
	assert.Equal(t, 1, *scored.MCQ.CorrectAnswer)
}
