package speech

import (
	"context"
	"sync"
	"time"
)

// CommandFIFO is the bounded command queue plus the dedicated worker
// goroutine that drains it (spec.md §4.1), grounded 1:1 on
// original_source/msvc/fifo.c's say_thread/fifo_add_command(s)/fifo_stop.
//
// Submit/SubmitTwo/Cancel may be called from any goroutine; the worker
// itself owns q and mu for the duration of its loop.
type CommandFIFO struct {
	mu sync.Mutex
	q  *commandQueue

	hs        *handshake
	synth     Synthesizer
	scheduler *EventScheduler
	cfg       Config
	log       Logger
	metrics   *Metrics

	shuttingDown bool
	wg           sync.WaitGroup

	// lastSticky remembers the most recently pushed PARAMETER/VOICE_NAME/
	// VOICE_SPEC command of each kind so a drain-on-cancel can still apply
	// it even if a later, non-sticky command made it unreachable by normal
	// FIFO order (spec.md §3, S3).
	lastSticky map[CommandKind]*Command
}

// NewCommandFIFO wires synth and scheduler together and starts the worker
// goroutine. scheduler may be nil only in tests that don't exercise
// event-producing commands.
func NewCommandFIFO(synth Synthesizer, scheduler *EventScheduler, cfg Config, log Logger, metrics *Metrics) (*CommandFIFO, error) {
	if synth == nil {
		return nil, ErrNilProvider
	}
	if log == nil {
		log = NoOpLogger{}
	}
	f := &CommandFIFO{
		q:          newCommandQueue(cfg.MaxCommandQueue),
		hs:         newHandshake(),
		synth:      synth,
		scheduler:  scheduler,
		cfg:        cfg,
		log:        log,
		metrics:    metrics,
		lastSticky: make(map[CommandKind]*Command),
	}

	// fifo_init in the original blocks until say_thread announces itself;
	// emulate that with a plain readiness channel so a caller can rely on
	// the worker goroutine being alive as soon as this constructor returns.
	f.wg.Add(1)
	started := make(chan struct{})
	go f.run(started)
	<-started
	return f, nil
}

// Submit enqueues a single command, waking the worker. Returns
// ErrBufferFull if the queue is at capacity.
func (f *CommandFIFO) Submit(cmd *Command) error {
	f.mu.Lock()
	if err := f.q.push(cmd); err != nil {
		f.mu.Unlock()
		return err
	}
	f.rememberSticky(cmd)
	depth := f.q.count
	f.mu.Unlock()

	if f.metrics != nil {
		f.metrics.commandQueueDepth.Set(float64(depth))
	}
	f.hs.requestStart()
	f.hs.waitStartObserved()
	return nil
}

// SubmitTwo enqueues both commands atomically — either both go in or
// neither does (spec.md §4.1's "submit_two" all-or-nothing contract, the
// Go analogue of fifo_add_commands' `node_counter + 1 >= MAX_NODE_COUNTER`
// pre-check).
func (f *CommandFIFO) SubmitTwo(first, second *Command) error {
	f.mu.Lock()
	if f.q.freeSlots() < 2 {
		f.mu.Unlock()
		return ErrBufferFull
	}
	if err := f.q.push(first); err != nil {
		f.mu.Unlock()
		return err
	}
	if err := f.q.push(second); err != nil {
		// Should be unreachable given the freeSlots check above, but leave
		// the queue consistent if it ever happens.
		f.q.pop()
		f.mu.Unlock()
		return err
	}
	f.rememberSticky(first)
	f.rememberSticky(second)
	depth := f.q.count
	f.mu.Unlock()

	if f.metrics != nil {
		f.metrics.commandQueueDepth.Set(float64(depth))
	}
	f.hs.requestStart()
	f.hs.waitStartObserved()
	return nil
}

func (f *CommandFIFO) rememberSticky(cmd *Command) {
	if cmd.Kind.Sticky() {
		f.lastSticky[cmd.Kind] = cmd
	}
}

// Cancel aborts the in-flight command (if any), discards the queue and then
// re-applies the most recent PARAMETER/VOICE_NAME/VOICE_SPEC command of
// each kind (see drainWithStickyReplay). A
// second Cancel with nothing running is a no-op (spec.md's idempotence
// property).
func (f *CommandFIFO) Cancel() {
	f.hs.requestStopAndWaitAck(f.hs.running)
}

// IsBusy reports whether a command is currently being processed.
func (f *CommandFIFO) IsBusy() bool {
	return f.hs.running()
}

// AreCommandsEnabled reports whether no stop is currently pending. Intended
// for use inside a Synthesizer.Process implementation so it can poll for
// cancellation, the Go equivalent of `are_commands_enabled()`.
func (f *CommandFIFO) AreCommandsEnabled() bool {
	return !f.hs.stopRequested()
}

// Terminate stops the worker goroutine without force-killing it (REDESIGN
// FLAG in spec.md §9 — the original's fifo_terminate calls TerminateThread,
// which is not translated). The worker checks a shutdown flag each time it
// comes back to its idle/start wait; a command already inside
// Synthesizer.Process is not interrupted. Terminate blocks up to
// cfg.TerminateJoinTimeoutMS for the goroutine to notice and exit.
func (f *CommandFIFO) Terminate() {
	f.mu.Lock()
	f.shuttingDown = true
	f.mu.Unlock()
	f.hs.requestStart() // wake it if idle so it observes the flag

	joined := make(chan struct{})
	go func() {
		f.wg.Wait()
		close(joined)
	}()

	select {
	case <-joined:
	case <-time.After(time.Duration(f.cfg.TerminateJoinTimeoutMS) * time.Millisecond):
		f.log.Warn("command worker did not exit within terminate timeout")
	}
}

func (f *CommandFIFO) isShuttingDown() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.shuttingDown
}

// run is the worker loop — the translation of fifo.c's say_thread.
func (f *CommandFIFO) run(started chan struct{}) {
	defer f.wg.Done()
	close(started)

	idleChecks := 0
	for {
		if f.isShuttingDown() {
			return
		}

		woke := f.hs.sleepStartOrTimeout(time.Duration(f.cfg.InactivityTimeoutMS) * time.Millisecond)
		if !woke {
			if f.sinkBusy() {
				// Audio from an earlier command is still playing; this
				// slice doesn't count toward the idle threshold (fifo.c's
				// `idx = wave_is_busy(NULL) ? 0 : idx+1`).
				idleChecks = 0
				continue
			}
			idleChecks++
			if idleChecks < f.cfg.MaxInactivityCheck {
				continue
			}
			f.closeIfStillIdle()
			idleChecks = 0
			continue
		}
		idleChecks = 0

		// Mark running before consuming the start request: Submit returns as
		// soon as startReq is cleared, and its caller must then see IsBusy.
		// startReq is already > 0 here, so waitStart does not block.
		f.hs.setRunning(true)
		f.hs.waitStart()
		if f.isShuttingDown() {
			f.hs.setRunning(false)
			return
		}

		f.processUntilEmptyOrStop()
		f.hs.setRunning(false)

		if f.hs.stopRequested() {
			f.drainWithStickyReplay()
			f.hs.acknowledgeStop()
		}
	}
}

// closeIfStillIdle implements fifo.c's close_stream: after MAX_INACTIVITY_
// CHECK consecutive idle-and-not-busy polls, close the sink — unless a
// start request raced in while we were deciding, in which case skip the
// close (spec.md §4.1 "Edge cases").
func (f *CommandFIFO) closeIfStillIdle() {
	if !f.hs.startObserved() {
		return
	}
	if f.scheduler != nil && f.scheduler.sink != nil {
		if err := f.scheduler.sink.Close(); err != nil {
			f.log.Warn("idle sink close failed", "error", err)
		}
	}
}

// sinkBusy reports whether the wired audio sink is still consuming
// previously-written samples. A nil scheduler/sink (as in tests that never
// wire one) is never busy.
func (f *CommandFIFO) sinkBusy() bool {
	if f.scheduler == nil || f.scheduler.sink == nil {
		return false
	}
	return f.scheduler.sink.IsBusy()
}

// processUntilEmptyOrStop pops and runs commands until the queue is empty
// or a stop is observed, checking stop after every command the way
// say_thread checks fifo_stop_req_val on each iteration.
func (f *CommandFIFO) processUntilEmptyOrStop() {
	for {
		f.mu.Lock()
		f.hs.purgeStart()
		cmd := f.q.pop()
		depth := f.q.count
		f.mu.Unlock()

		if f.metrics != nil {
			f.metrics.commandQueueDepth.Set(float64(depth))
		}

		if cmd == nil {
			return
		}
		if f.hs.stopRequested() {
			// Dropped: lastSticky already recorded this command's effect
			// at Submit time if it was a sticky kind, so drainWithStickyReplay
			// still re-applies it even though it never runs here.
			cmd.State = CommandProcessed
			return
		}

		f.runOne(cmd)

		if f.hs.stopRequested() {
			return
		}
	}
}

// runOne hands cmd to the synthesizer with a context that is cancelled the
// moment a stop is requested, the Go equivalent of a Process implementation
// polling `are_commands_enabled()` — except here cancellation is pushed to
// it instead of pulled, since a Go synth call can't be force-interrupted any
// other way. This is what lets Cancel interrupt an in-flight Process call
// within roughly one ActivityTimeoutMS slice instead of waiting for it to
// finish on its own (spec.md §8 scenario S2).
func (f *CommandFIFO) runOne(cmd *Command) {
	cmd.State = CommandProcessed
	f.synth.Display(cmd, f.log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	procDone := make(chan struct{})
	go func() {
		for {
			select {
			case <-procDone:
				return
			default:
			}
			if f.hs.sleepStopOrTimeout(time.Duration(f.cfg.ActivityTimeoutMS) * time.Millisecond) {
				cancel()
				return
			}
		}
	}()

	var sink EventSink
	if f.scheduler != nil {
		sink = f.scheduler
	} else {
		sink = noopEventSink{}
	}

	err := f.synth.Process(ctx, cmd, sink)
	close(procDone)

	if err != nil {
		f.log.Error("synthesizer process failed", "kind", cmd.Kind.String(), "error", err)
	}
}

// drainWithStickyReplay discards every remaining command, but re-applies
// the last PARAMETER/VOICE_NAME/VOICE_SPEC command of each kind seen since
// startup so voice/rate state isn't lost across the cancel (spec.md §3,
// §4.1 "drain the queue with sticky-parameter replay"; fifo.c's
// `init(1)`).
func (f *CommandFIFO) drainWithStickyReplay() {
	f.mu.Lock()
	for {
		cmd := f.q.pop()
		if cmd == nil {
			break
		}
		cmd.State = CommandProcessed
	}
	sticky := make([]*Command, 0, len(f.lastSticky))
	for _, cmd := range f.lastSticky {
		sticky = append(sticky, cmd)
	}
	f.mu.Unlock()

	if f.metrics != nil {
		f.metrics.commandQueueDepth.Set(0)
	}

	// The stop has already been fully observed by the time we get here —
	// there is nothing left in flight to cancel, and a sticky replay must
	// run to completion to restore voice/rate state, so an uncancellable
	// context is correct here (unlike runOne's live Process call).
	ctx := context.Background()
	sink := EventSink(noopEventSink{})
	for _, cmd := range sticky {
		if err := f.synth.Process(ctx, cmd, sink); err != nil {
			f.log.Error("sticky replay failed", "kind", cmd.Kind.String(), "error", err)
		}
	}
}

type noopEventSink struct{}

func (noopEventSink) Declare(Event) error { return nil }
