package speech

import (
	"testing"
	"time"
)

func TestHandshakeRequestStartWaitStart(t *testing.T) {
	h := newHandshake()

	done := make(chan struct{})
	go func() {
		h.waitStart()
		close(done)
	}()

	h.requestStart()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("waitStart did not unblock after requestStart")
	}
}

func TestHandshakeRequestStopAndWaitAckIsNoOpWhenNotRunning(t *testing.T) {
	h := newHandshake()

	done := make(chan struct{})
	go func() {
		h.requestStopAndWaitAck(func() bool { return false })
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("requestStopAndWaitAck should return immediately when nothing is running")
	}
}

func TestHandshakeRequestStopAndWaitAckBlocksUntilAcknowledged(t *testing.T) {
	h := newHandshake()
	h.setRunning(true)

	done := make(chan struct{})
	go func() {
		h.requestStopAndWaitAck(h.running)
		close(done)
	}()

	// Give the goroutine a chance to reach the ack wait before we check it
	// has NOT returned yet.
	time.Sleep(20 * time.Millisecond)
	select {
	case <-done:
		t.Fatal("requestStopAndWaitAck returned before acknowledgeStop was called")
	default:
	}

	if !h.stopRequested() {
		t.Fatal("expected stopRequested to be true before acknowledgement")
	}

	h.acknowledgeStop()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("requestStopAndWaitAck did not unblock after acknowledgeStop")
	}

	if h.stopRequested() {
		t.Fatal("expected stopRequested to be false after acknowledgement")
	}
}

func TestHandshakeSleepStartOrTimeoutTimesOut(t *testing.T) {
	h := newHandshake()
	start := time.Now()
	if woke := h.sleepStartOrTimeout(30 * time.Millisecond); woke {
		t.Fatal("expected sleepStartOrTimeout to time out, not wake on a start")
	}
	if elapsed := time.Since(start); elapsed < 25*time.Millisecond {
		t.Fatalf("returned too early: %v", elapsed)
	}
}

func TestHandshakeSleepStartOrTimeoutWokenByStart(t *testing.T) {
	h := newHandshake()

	go func() {
		time.Sleep(10 * time.Millisecond)
		h.requestStart()
	}()

	if woke := h.sleepStartOrTimeout(time.Second); !woke {
		t.Fatal("expected sleepStartOrTimeout to report a start wake")
	}
}
