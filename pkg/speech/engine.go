package speech

import "github.com/google/uuid"

// Engine is the top-level facade: one command FIFO and one event
// scheduler, wired to a Synthesizer and an AudioSink, identified by a
// stable random ID (ID) that callers can use to tell engines apart; the
// core itself does not log or export it. This is the unit spec.md describes —
// a single async dispatch core serving one speech stream at a time.
type Engine struct {
	ID string

	fifo      *CommandFIFO
	scheduler *EventScheduler

	cfg Config
	log Logger
}

// NewEngine starts both worker goroutines and returns a ready Engine.
// synth and sink must be non-nil.
func NewEngine(synth Synthesizer, sink AudioSink, cfg Config, log Logger, metrics *Metrics) (*Engine, error) {
	if synth == nil || sink == nil {
		return nil, ErrNilProvider
	}
	if log == nil {
		log = NoOpLogger{}
	}

	scheduler := NewEventScheduler(sink, cfg, log, metrics)
	fifo, err := NewCommandFIFO(synth, scheduler, cfg, log, metrics)
	if err != nil {
		scheduler.Terminate()
		return nil, err
	}

	return &Engine{
		ID:        uuid.NewString(),
		fifo:      fifo,
		scheduler: scheduler,
		cfg:       cfg,
		log:       log,
	}, nil
}

// SetCallback installs the client's event sink.
func (e *Engine) SetCallback(cb Callback) {
	e.scheduler.SetCallback(cb)
}

// Submit enqueues a single command.
func (e *Engine) Submit(cmd *Command) error {
	return e.fifo.Submit(cmd)
}

// SubmitTwo enqueues two commands atomically.
func (e *Engine) SubmitTwo(first, second *Command) error {
	return e.fifo.SubmitTwo(first, second)
}

// Cancel aborts the in-flight command and drains both queues, including
// sticky parameter replay on the command side.
func (e *Engine) Cancel() {
	e.fifo.Cancel()
	e.scheduler.ClearAll()
}

// IsBusy reports whether a command is currently being processed.
func (e *Engine) IsBusy() bool {
	return e.fifo.IsBusy()
}

// AreCommandsEnabled reports whether no cancel is currently pending.
func (e *Engine) AreCommandsEnabled() bool {
	return e.fifo.AreCommandsEnabled()
}

// Close stops both worker goroutines and releases the audio sink. Safe to
// call once; a second call is a harmless no-op because Terminate on an
// already-stopped worker just observes the shutdown flag immediately.
func (e *Engine) Close() error {
	e.fifo.Terminate()
	e.scheduler.Terminate()
	if e.scheduler.sink != nil {
		return e.scheduler.sink.Close()
	}
	return nil
}
