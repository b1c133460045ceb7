package speech

import "time"

// AudioSink is the external playback device the scheduler queries. Spec.md
// §2/§6 describes it as `is_busy()`, `remaining_time_until(sample)` and
// `close()`; concrete implementations live in pkg/providers/audiosink.
type AudioSink interface {
	// Write enqueues pcm for playback and returns the absolute sample
	// index of its first frame, letting a Synthesizer tag the events it
	// declares (WORD/MARK/END/...) with the exact sample they fall on.
	Write(pcm []byte) (startSample uint64, err error)

	// IsBusy reports whether samples are still being consumed.
	IsBusy() bool

	// RemainingTimeUntil returns how long until the given absolute sample
	// index will have been played. Zero means it has already played. A
	// non-nil error means the stream is gone (closed/failed) and any event
	// waiting on it should be dropped without notification.
	RemainingTimeUntil(sample uint64) (time.Duration, error)

	// Close releases the sink. Idempotent.
	Close() error
}
