// Package speech implements the asynchronous command and event dispatch
// core of a text-to-speech engine: a bounded command FIFO serialized onto a
// dedicated worker, and a sample-accurate event scheduler, coordinated
// through a shared start/stop/acknowledge handshake primitive.
package speech

// Logger is the narrow debug-logging interface the core references. It is
// never required; a nil or NoOpLogger value is always safe to use.
type Logger interface {
	Debug(msg string, args ...interface{})
	Info(msg string, args ...interface{})
	Warn(msg string, args ...interface{})
	Error(msg string, args ...interface{})
}

// NoOpLogger discards everything. It is the default when no Logger is
// supplied.
type NoOpLogger struct{}

func (NoOpLogger) Debug(msg string, args ...interface{}) {}
func (NoOpLogger) Info(msg string, args ...interface{})  {}
func (NoOpLogger) Warn(msg string, args ...interface{})  {}
func (NoOpLogger) Error(msg string, args ...interface{}) {}

// Voice selects a synthesis voice. The concrete identifiers are the
// engine's; the core only moves them around as an opaque tag carried by
// VOICE_NAME/VOICE_SPEC commands.
type Voice string

const (
	VoiceF1 Voice = "F1"
	VoiceF2 Voice = "F2"
	VoiceF3 Voice = "F3"
	VoiceF4 Voice = "F4"
	VoiceF5 Voice = "F5"
	VoiceM1 Voice = "M1"
	VoiceM2 Voice = "M2"
	VoiceM3 Voice = "M3"
	VoiceM4 Voice = "M4"
	VoiceM5 Voice = "M5"
)

// Language selects a synthesis language.
type Language string

const (
	LanguageEn Language = "en"
	LanguageEs Language = "es"
	LanguageFr Language = "fr"
	LanguageDe Language = "de"
	LanguageIt Language = "it"
	LanguagePt Language = "pt"
	LanguageJa Language = "ja"
	LanguageZh Language = "zh"
)

// Config holds the dispatch core's tunables. The four *Timeout/*Check
// constants correspond 1:1 to the original INACTIVITY_TIMEOUT,
// MAX_INACTIVITY_CHECK, ACTIVITY_TIMEOUT and MAX_ACTIVITY_CHECK constants.
type Config struct {
	SampleRate int
	Channels   int

	MaxCommandQueue int
	MaxEventQueue   int

	InactivityTimeoutMS int
	MaxInactivityCheck  int

	ActivityTimeoutMS int
	MaxActivityCheck  int

	// SentenceSynthesisDelayMS is the pause between the synthesized
	// SENTENCE event and the real event that triggered it (spec.md §4.3).
	SentenceSynthesisDelayMS int

	// TerminateJoinTimeoutMS bounds how long Terminate waits for a worker
	// goroutine (command worker or event scheduler) to observe the
	// shutdown flag and exit.
	TerminateJoinTimeoutMS int
}

// DefaultConfig returns the constants specified in spec.md §4.1/§4.2/§8.
func DefaultConfig() Config {
	return Config{
		SampleRate:               22050,
		Channels:                 1,
		MaxCommandQueue:          400,
		MaxEventQueue:            1000,
		InactivityTimeoutMS:      50,
		MaxInactivityCheck:       2,
		ActivityTimeoutMS:        50,
		MaxActivityCheck:         6,
		SentenceSynthesisDelayMS: 50,
		TerminateJoinTimeoutMS:   500,
	}
}
