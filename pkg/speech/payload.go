package speech

// Payload shapes for the opaque Command.Payload field. The core never
// inspects these; only a Synthesizer implementation does. Concrete
// providers may ignore fields they don't support.

// TextPayload is the payload of a CommandText command.
type TextPayload struct {
	Text     string
	Voice    Voice
	Language Language

	// UID tags every event this command produces (spec.md §3's
	// unique_identifier). Callers own UID allocation; the core never
	// assigns one itself.
	UID uint32
}

// ParameterName identifies a synthesis parameter set by a CommandParameter
// command (rate, pitch, volume — the original's espeak_PARAMETER enum).
type ParameterName int

const (
	ParamRate ParameterName = iota
	ParamPitch
	ParamVolume
	ParamRange
)

// ParameterPayload is the payload of a CommandParameter command.
type ParameterPayload struct {
	Name  ParameterName
	Value int
}

// VoiceNamePayload is the payload of a CommandVoiceName command.
type VoiceNamePayload struct {
	Name string
}

// VoiceSpecPayload is the payload of a CommandVoiceSpec command — a more
// detailed voice selection than a bare name (language + gender + age, the
// original's espeak_VOICE struct).
type VoiceSpecPayload struct {
	Language Language
	Voice    Voice
	AgeYears int
}

// MarkPayload is the payload of a CommandMark command: resume synthesis
// from a named position within previously submitted text.
type MarkPayload struct {
	Name string
}
