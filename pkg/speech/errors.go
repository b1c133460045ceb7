package speech

import "errors"

var (
	// ErrInternal is returned for a nil payload or an allocation-shaped
	// failure. Clients do not throttle on it.
	ErrInternal = errors.New("speech: internal error")

	// ErrBufferFull is returned when a queue is at capacity. Clients are
	// expected to throttle specifically on this error (spec.md §6/§7).
	ErrBufferFull = errors.New("speech: buffer full")

	// ErrNilProvider is returned by constructors given a nil Synthesizer or
	// AudioSink.
	ErrNilProvider = errors.New("speech: required provider is nil")

	// ErrClosed is returned by an AudioSink implementation (such as
	// audiosink.MalgoSink) used after its Close.
	ErrClosed = errors.New("speech: closed")
)
