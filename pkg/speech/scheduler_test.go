package speech

import (
	"errors"
	"sync"
	"testing"
	"time"
)

// fakeSink is a hand-rolled AudioSink mock: RemainingTimeUntil returns
// whatever the test has configured, whatever sample is asked for, and Write just
// records what was handed to it.
type fakeSink struct {
	mu        sync.Mutex
	remaining time.Duration
	busy      bool
	err       error
	closed    bool
	written   [][]byte
}

func (s *fakeSink) Write(pcm []byte) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.written = append(s.written, pcm)
	return 0, nil
}

func (s *fakeSink) IsBusy() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.busy
}

func (s *fakeSink) RemainingTimeUntil(sample uint64) (time.Duration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.remaining, s.err
}

func (s *fakeSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func schedulerTestConfig() Config {
	cfg := DefaultConfig()
	cfg.ActivityTimeoutMS = 2
	cfg.MaxActivityCheck = 3
	cfg.SentenceSynthesisDelayMS = 2
	cfg.TerminateJoinTimeoutMS = 200
	return cfg
}

func TestEventSchedulerFiresImmediatelyReadyEvent(t *testing.T) {
	sink := &fakeSink{remaining: 0, busy: true}
	s := NewEventScheduler(sink, schedulerTestConfig(), nil, nil)
	defer s.Terminate()

	received := make(chan Event, 8)
	s.SetCallback(func(ev Event) { received <- ev })

	if err := s.Declare(Event{Kind: EventWord, UID: 1}); err != nil {
		t.Fatalf("Declare: %v", err)
	}

	first := waitForEvent(t, received)
	if first.Kind != EventSentence || first.UID != 1 {
		t.Fatalf("expected a synthesized SENTENCE lead-in first, got %+v", first)
	}

	second := waitForEvent(t, received)
	if second.Kind != EventWord || second.UID != 1 {
		t.Fatalf("expected the real WORD event second, got %+v", second)
	}
}

func TestEventSchedulerNoSentenceLeadInForSameUID(t *testing.T) {
	sink := &fakeSink{remaining: 0, busy: true}
	s := NewEventScheduler(sink, schedulerTestConfig(), nil, nil)
	defer s.Terminate()

	received := make(chan Event, 8)
	s.SetCallback(func(ev Event) { received <- ev })

	s.Declare(Event{Kind: EventWord, UID: 5})
	waitForEvent(t, received) // SENTENCE
	waitForEvent(t, received) // WORD

	s.Declare(Event{Kind: EventWord, UID: 5})
	got := waitForEvent(t, received)
	if got.Kind != EventWord {
		t.Fatalf("expected a second WORD with no repeated SENTENCE lead-in, got %+v", got)
	}
}

func TestEventSchedulerMsgTerminatedDoubleNotify(t *testing.T) {
	sink := &fakeSink{remaining: 0, busy: true}
	s := NewEventScheduler(sink, schedulerTestConfig(), nil, nil)
	defer s.Terminate()

	received := make(chan Event, 8)
	s.SetCallback(func(ev Event) { received <- ev })

	s.Declare(Event{Kind: EventMsgTerminated, UID: 9, UserData: "ctx"})

	lead := waitForEvent(t, received)
	if lead.Kind != EventSentence {
		t.Fatalf("expected SENTENCE lead-in, got %+v", lead)
	}

	real := waitForEvent(t, received)
	if real.Kind != EventMsgTerminated || real.UserData != "ctx" {
		t.Fatalf("expected the live MSG_TERMINATED event, got %+v", real)
	}

	sentinel := waitForEvent(t, received)
	if sentinel.Kind != EventListTerminated || sentinel.UserData != nil {
		t.Fatalf("expected a zeroed-out LIST_TERMINATED sentinel on the second delivery, got %+v", sentinel)
	}
}

func TestEventSchedulerDropsEventOnSinkError(t *testing.T) {
	sink := &fakeSink{err: errors.New("sink gone")}
	s := NewEventScheduler(sink, schedulerTestConfig(), nil, nil)
	defer s.Terminate()

	received := make(chan Event, 8)
	s.SetCallback(func(ev Event) { received <- ev })

	s.Declare(Event{Kind: EventWord, UID: 1})

	select {
	case ev := <-received:
		t.Fatalf("expected no callback when the sink errors, got %+v", ev)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestEventSchedulerDropsEventWhenSinkNeverReady(t *testing.T) {
	sink := &fakeSink{remaining: 0, busy: false} // never busy, never ready
	s := NewEventScheduler(sink, schedulerTestConfig(), nil, nil)
	defer s.Terminate()

	received := make(chan Event, 8)
	s.SetCallback(func(ev Event) { received <- ev })

	s.Declare(Event{Kind: EventWord, UID: 1, Sample: 0})

	select {
	case ev := <-received:
		t.Fatalf("expected no spurious callback for a sink that never becomes ready, got %+v", ev)
	case <-time.After(200 * time.Millisecond):
	}
}

func TestEventSchedulerClearAllDiscardsQueueWithoutCallback(t *testing.T) {
	sink := &fakeSink{remaining: time.Hour, busy: true}
	s := NewEventScheduler(sink, schedulerTestConfig(), nil, nil)
	defer s.Terminate()

	received := make(chan Event, 8)
	s.SetCallback(func(ev Event) { received <- ev })

	s.Declare(Event{Kind: EventWord, UID: 1, Sample: 99999})
	time.Sleep(10 * time.Millisecond) // let the worker start sleeping on it

	s.ClearAll()

	select {
	case ev := <-received:
		t.Fatalf("expected ClearAll to discard without invoking the callback, got %+v", ev)
	case <-time.After(50 * time.Millisecond):
	}
}

func waitForEvent(t *testing.T, ch <-chan Event) Event {
	t.Helper()
	select {
	case ev := <-ch:
		return ev
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for an event")
		return Event{}
	}
}
