package speech

import (
	"sync"
	"time"
)

// handshake is the request/acknowledge primitive shared by the command
// worker and the event scheduler (spec.md §3 "Handshake State", §4.4). Two
// integer counters guarded by one mutex, woken through three condition
// variables:
//
//   - startReq: client -> worker, "work available, wake up"
//   - stopReq:  client -> worker, "abort"; the worker decrements it back to
//     zero and broadcasts ackCond once it has rolled back, so a requester
//     blocking on ackCond until stopReq<=0 plays the role of the original's
//     separate stopAck counter without needing one.
//
// Counters (not booleans) so overlapping requests never lose a wake; at
// steady state they settle back to zero. No blocking call is ever made
// while mu is held.
type handshake struct {
	mu sync.Mutex

	startReq  int
	stopReq   int
	isRunning bool

	startCond *sync.Cond
	stopCond  *sync.Cond
	ackCond   *sync.Cond
}

func newHandshake() *handshake {
	h := &handshake{}
	h.startCond = sync.NewCond(&h.mu)
	h.stopCond = sync.NewCond(&h.mu)
	h.ackCond = sync.NewCond(&h.mu)
	return h
}

// requestStart increments startReq and wakes anyone waiting on it. Mirrors
// `fifo_start_req_val++; WakeConditionVariable(&fifo_start_req);`.
func (h *handshake) requestStart() {
	h.mu.Lock()
	h.startReq++
	h.mu.Unlock()
	h.startCond.Broadcast()
}

// waitStart blocks until startReq > 0, then decrements it (the "lock; while
// counter<=0 wait; counter--; unlock" pattern from spec.md §4.4).
func (h *handshake) waitStart() {
	h.mu.Lock()
	for h.startReq <= 0 {
		h.startCond.Wait()
	}
	h.startReq--
	h.mu.Unlock()
	h.startCond.Broadcast()
}

// startObserved reports whether a pending start request has been cleared
// yet, without blocking — used by closeIfStillIdle to skip the idle sink
// close when a Submit raced in (spec.md §4.1 "Edge cases").
func (h *handshake) startObserved() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.startReq <= 0
}

// waitStartObserved blocks until the worker has cleared startReq, the Go
// analogue of fifo_add_command's `while (fifo_start_req_val > 0)
// espeakSleep(50)` — a caller of Submit/SubmitTwo returns only once the
// worker has actually picked up the command.
func (h *handshake) waitStartObserved() {
	h.mu.Lock()
	for h.startReq > 0 {
		h.startCond.Wait()
	}
	h.mu.Unlock()
}

// purgeStart clears any pending start request without waiting (the worker
// does this each time, just before taking the next item off its queue, so a racing Submit's wake does
// not get replayed against the next idle cycle).
func (h *handshake) purgeStart() {
	h.mu.Lock()
	h.startReq = 0
	h.mu.Unlock()
	h.startCond.Broadcast()
}

// requestStopAndWaitAck sets stopReq, wakes the worker, and blocks until the
// worker decrements it back and wakes stopAck. Returns immediately
// without signaling if nothing is running — Cancel/ClearAll's idempotence
// (spec.md §8) falls out of this. runningNow is called without mu held, so
// it may itself take mu (as h.running does).
func (h *handshake) requestStopAndWaitAck(runningNow func() bool) {
	if !runningNow() {
		return
	}
	h.mu.Lock()
	h.stopReq++
	h.mu.Unlock()
	h.stopCond.Broadcast()

	h.mu.Lock()
	for h.stopReq > 0 {
		h.ackCond.Wait()
	}
	h.mu.Unlock()
}

// stopRequested reports whether a stop is currently pending, without
// consuming it (spec.md "are_commands_enabled").
func (h *handshake) stopRequested() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.stopReq > 0
}

// acknowledgeStop decrements stopReq and wakes any waiter on stopAck. Called
// by the worker once it has drained/rolled back after observing a stop.
func (h *handshake) acknowledgeStop() {
	h.mu.Lock()
	if h.stopReq > 0 {
		h.stopReq--
	}
	h.mu.Unlock()
	h.ackCond.Broadcast()
}

// sleepStartOrTimeout blocks until either requestStart is called or d
// elapses, returning true if it was a start wake. Mirrors
// `SleepConditionVariableCS(&fifo_start_req, &fifo_lock, INACTIVITY_TIMEOUT)`
// from fifo.c's idle poll, but without consuming the start request — a
// genuine Submit racing in during the sleep is still observed by the
// caller's next waitStart.
func (h *handshake) sleepStartOrTimeout(d time.Duration) bool {
	return h.sleepOrTimeout(d, &h.startReq, h.startCond)
}

// sleepStopOrTimeout blocks until either a stop is requested or d elapses,
// returning true if it woke because of a stop. Mirrors event.c's
// `sleep_until_timeout_or_stop_request`.
func (h *handshake) sleepStopOrTimeout(d time.Duration) bool {
	return h.sleepOrTimeout(d, &h.stopReq, h.stopCond)
}

func (h *handshake) sleepOrTimeout(d time.Duration, counter *int, cond *sync.Cond) bool {
	deadline := time.Now().Add(d)
	timer := time.AfterFunc(d, cond.Broadcast)
	defer timer.Stop()

	h.mu.Lock()
	defer h.mu.Unlock()
	for *counter <= 0 {
		if !time.Now().Before(deadline) {
			return false
		}
		cond.Wait()
	}
	return true
}

func (h *handshake) setRunning(running bool) {
	h.mu.Lock()
	h.isRunning = running
	h.mu.Unlock()
}

func (h *handshake) running() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.isRunning
}
