package speech

import "context"

// EventSink is the narrow interface a Synthesizer uses to push events while
// it processes a command. *EventScheduler implements it; tests can supply a
// fake.
type EventSink interface {
	Declare(ev Event) error
}

// Synthesizer is the external phoneme/voice synthesizer (spec.md §6,
// out of scope for the core itself). Process is blocking and is invoked by
// the command worker on its own goroutine; it declares zero or more events
// on sink as it goes. It must honor ctx cancellation so a Cancel on the
// FIFO can interrupt it cooperatively — the Go equivalent of polling
// `are_commands_enabled()`.
type Synthesizer interface {
	// Process runs cmd to completion (or until ctx is cancelled),
	// declaring events on sink as synthesis produces them.
	Process(ctx context.Context, cmd *Command, sink EventSink) error

	// Display is the optional debug hook (`display_espeak_command` in the
	// original); the default implementation most callers use logs nothing.
	Display(cmd *Command, log Logger)
}
