package speech

import (
	"errors"
	"sync"
	"time"
)

// Callback is the client's event sink. It is never invoked concurrently
// with itself (spec.md §8 invariant 4) — the scheduler goroutine calls it
// synchronously, one event at a time.
type Callback func(ev Event)

// EventScheduler is the sample-accurate event queue and its dedicated
// polling goroutine (spec.md §4.2), grounded 1:1 on
// original_source/msvc/event.c's polling_thread/event_declare/
// event_clear_all/get_remaining_time/event_notify.
type EventScheduler struct {
	mu sync.Mutex
	q  *eventQueue

	hs   *handshake
	sink AudioSink
	cfg  Config
	log  Logger

	metrics *Metrics

	cbMu     sync.Mutex
	callback Callback

	lastUID     uint32
	haveLastUID bool

	shuttingDown bool
	wg           sync.WaitGroup
}

// NewEventScheduler wires sink and starts the polling goroutine. sink may
// be nil only in tests that never declare sample-bearing events.
func NewEventScheduler(sink AudioSink, cfg Config, log Logger, metrics *Metrics) *EventScheduler {
	if log == nil {
		log = NoOpLogger{}
	}
	s := &EventScheduler{
		q:       newEventQueue(cfg.MaxEventQueue),
		hs:      newHandshake(),
		sink:    sink,
		cfg:     cfg,
		log:     log,
		metrics: metrics,
	}
	s.wg.Add(1)
	started := make(chan struct{})
	go s.run(started)
	<-started
	return s
}

// SetCallback installs the client's event sink. Safe to call at any time;
// takes effect for the next event delivered.
func (s *EventScheduler) SetCallback(cb Callback) {
	s.cbMu.Lock()
	s.callback = cb
	s.cbMu.Unlock()
}

func (s *EventScheduler) invoke(ev Event) {
	s.cbMu.Lock()
	cb := s.callback
	s.cbMu.Unlock()
	if cb != nil {
		cb(ev)
	}
}

// Declare pushes ev onto the queue and wakes the scheduler. Returns
// ErrBufferFull past MaxEventQueue entries (spec.md §4.2's `event_declare`).
func (s *EventScheduler) Declare(ev Event) error {
	cp := ev.clone()
	s.mu.Lock()
	err := s.q.push(&cp)
	depth := s.q.count
	s.mu.Unlock()
	if err != nil {
		if s.metrics != nil {
			s.metrics.droppedEvents.Inc()
		}
		return err
	}
	if s.metrics != nil {
		s.metrics.eventQueueDepth.Set(float64(depth))
	}
	s.hs.requestStart()
	return nil
}

// ClearAll cancels any in-flight waiting and discards every queued event
// without invoking the callback (spec.md's `event_clear_all`). Idempotent.
func (s *EventScheduler) ClearAll() {
	s.hs.requestStopAndWaitAck(s.hs.running)
}

// Terminate stops the polling goroutine without force-killing it (the same
// REDESIGN FLAG as CommandFIFO.Terminate — event.c's event_terminate calls
// TerminateThread, which is not translated here). The shutdown flag is
// checked when the goroutine comes back to its start wait; a timed wait
// for a queued event's sample is not interrupted, and Terminate stops
// waiting after cfg.TerminateJoinTimeoutMS.
func (s *EventScheduler) Terminate() {
	s.mu.Lock()
	s.shuttingDown = true
	s.mu.Unlock()
	s.hs.requestStart()

	joined := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(joined)
	}()

	select {
	case <-joined:
	case <-time.After(time.Duration(s.cfg.TerminateJoinTimeoutMS) * time.Millisecond):
		s.log.Warn("event scheduler did not exit within terminate timeout")
	}
}

func (s *EventScheduler) isShuttingDown() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.shuttingDown
}

// run is the polling goroutine — the translation of event.c's
// polling_thread.
func (s *EventScheduler) run(started chan struct{}) {
	defer s.wg.Done()
	close(started)

	for {
		if s.isShuttingDown() {
			return
		}

		s.hs.waitStart()
		if s.isShuttingDown() {
			return
		}

		s.hs.setRunning(true)
		s.drainQueue()
		s.hs.setRunning(false)

		if s.hs.stopRequested() {
			s.discardRemaining()
			s.hs.acknowledgeStop()
		}
	}
}

// drainQueue processes events until the queue empties or a stop is
// observed, mirroring polling_thread's inner while loop.
func (s *EventScheduler) drainQueue() {
	for {
		s.mu.Lock()
		s.hs.purgeStart()
		ev := s.q.peek()
		s.mu.Unlock()

		if ev == nil {
			return
		}
		if s.hs.stopRequested() {
			return
		}

		if s.sink == nil {
			s.fire(ev)
			continue
		}

		remaining, err := s.remainingTime(ev.Sample)
		if s.hs.stopRequested() {
			return
		}
		if err != nil {
			// Sink is gone: drop silently, no callback (spec.md §4.2).
			s.popFront()
			continue
		}
		if remaining <= 0 {
			s.fire(ev)
			continue
		}

		if s.hs.sleepStopOrTimeout(remaining) {
			return
		}
	}
}

// remainingTime queries the sink, retrying startup underflow up to
// MaxActivityCheck times at ActivityTimeoutMS apart — the translation of
// event.c's get_remaining_time, covering scenario S6 (sink reports
// !is_busy && remaining==0 before playback has actually begun).
func (s *EventScheduler) remainingTime(sample uint64) (time.Duration, error) {
	for attempt := 0; attempt < s.cfg.MaxActivityCheck; attempt++ {
		remaining, err := s.sink.RemainingTimeUntil(sample)
		if err != nil {
			return 0, err
		}
		if remaining > 0 || s.sink.IsBusy() {
			return remaining, nil
		}
		if s.hs.stopRequested() {
			return 0, nil
		}
		if attempt < s.cfg.MaxActivityCheck-1 {
			time.Sleep(time.Duration(s.cfg.ActivityTimeoutMS) * time.Millisecond)
		}
	}
	// Sink never became ready: report an error so the caller pops and
	// discards the event without a spurious callback (S6).
	return 0, errSinkNeverReady
}

// fire pops the head event and delivers it, synthesizing a lead-in
// SENTENCE event whenever its UID differs from the previously delivered
// event's UID (spec.md §4.3 / invariant 5)
// and handling the MSG_TERMINATED double-notify rule.
func (s *EventScheduler) fire(ev *Event) {
	fireStart := time.Now()
	defer func() {
		if s.metrics != nil {
			s.metrics.notifyLatency.Observe(float64(time.Since(fireStart).Milliseconds()))
		}
	}()

	s.mu.Lock()
	newUID := !s.haveLastUID || s.lastUID != ev.UID
	s.lastUID = ev.UID
	s.haveLastUID = true
	s.mu.Unlock()

	if newUID && ev.Kind.needsSentenceLeadIn() {
		lead := Event{Kind: EventSentence, UID: ev.UID, UserData: ev.UserData}
		s.invoke(lead)
		time.Sleep(time.Duration(s.cfg.SentenceSynthesisDelayMS) * time.Millisecond)
	}

	s.popFront()
	s.invoke(*ev)

	if ev.Kind == EventMsgTerminated {
		// event.c's event_delete calls event_notify a second time at free
		// time; terminalize so that second delivery is a harmless sentinel
		// rather than a live MSG_TERMINATED (Open Question #1 in spec.md
		// §9, resolved in favor of keeping the double notify).
		sentinel := *ev
		sentinel.terminalize()
		s.invoke(sentinel)
	}
}

func (s *EventScheduler) popFront() {
	s.mu.Lock()
	s.q.pop()
	depth := s.q.count
	s.mu.Unlock()
	if s.metrics != nil {
		s.metrics.eventQueueDepth.Set(float64(depth))
	}
}

// discardRemaining drops every queued event without invoking the callback,
// the event-scheduler analogue of fifo.c's drain-on-cancel (no sticky
// concept applies to events — spec.md §3 limits stickiness to commands).
func (s *EventScheduler) discardRemaining() {
	s.mu.Lock()
	for !s.q.empty() {
		s.q.pop()
	}
	s.mu.Unlock()
	if s.metrics != nil {
		s.metrics.eventQueueDepth.Set(0)
	}
}

var errSinkNeverReady = errors.New("speech: audio sink never became ready")
