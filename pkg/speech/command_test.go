package speech

import "testing"

func TestCommandKindSticky(t *testing.T) {
	sticky := []CommandKind{CommandParameter, CommandVoiceName, CommandVoiceSpec}
	for _, k := range sticky {
		if !k.Sticky() {
			t.Errorf("expected %s to be sticky", k)
		}
	}

	notSticky := []CommandKind{CommandText, CommandMark, CommandKey, CommandChar, CommandTerminatedMsg}
	for _, k := range notSticky {
		if k.Sticky() {
			t.Errorf("expected %s to not be sticky", k)
		}
	}
}

func TestCommandQueuePushPopOrder(t *testing.T) {
	q := newCommandQueue(4)

	a := &Command{Kind: CommandText}
	b := &Command{Kind: CommandMark}

	if err := q.push(a); err != nil {
		t.Fatalf("push a: %v", err)
	}
	if err := q.push(b); err != nil {
		t.Fatalf("push b: %v", err)
	}

	if got := q.pop(); got != a {
		t.Fatalf("expected to pop a first, got %+v", got)
	}
	if got := q.pop(); got != b {
		t.Fatalf("expected to pop b second, got %+v", got)
	}
	if !q.empty() {
		t.Fatal("expected queue to be empty")
	}
	if got := q.pop(); got != nil {
		t.Fatalf("expected nil pop on empty queue, got %+v", got)
	}
}

func TestCommandQueueBufferFull(t *testing.T) {
	q := newCommandQueue(2)

	if err := q.push(&Command{}); err != nil {
		t.Fatalf("push 1: %v", err)
	}
	if err := q.push(&Command{}); err != nil {
		t.Fatalf("push 2: %v", err)
	}
	if err := q.push(&Command{}); err != ErrBufferFull {
		t.Fatalf("expected ErrBufferFull at capacity, got %v", err)
	}

	q.pop()
	if err := q.push(&Command{}); err != nil {
		t.Fatalf("expected push to succeed after a pop freed a slot: %v", err)
	}
}

func TestCommandQueuePushNil(t *testing.T) {
	q := newCommandQueue(4)
	if err := q.push(nil); err != ErrInternal {
		t.Fatalf("expected ErrInternal for nil command, got %v", err)
	}
}

func TestCommandQueueFreeSlots(t *testing.T) {
	q := newCommandQueue(3)
	if got := q.freeSlots(); got != 3 {
		t.Fatalf("expected 3 free slots, got %d", got)
	}
	q.push(&Command{})
	if got := q.freeSlots(); got != 2 {
		t.Fatalf("expected 2 free slots after one push, got %d", got)
	}
}
