// Package synth adapts the lokutor streaming TTS API to speech.Synthesizer.
package synth

import (
	"context"
	"fmt"
	"net/url"
	"sync"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/lokutor-ai/lokutor-speech-core/pkg/speech"
)

// LokutorSynth drives lokutor's websocket TTS endpoint for CommandText
// commands. Non-text commands (PARAMETER/VOICE_NAME/VOICE_SPEC/...) only
// update local state; they never touch the network.
//
// Grounded on pkg/providers/tts/lokutor.go's LokutorTTS — the connection
// lifecycle (getConn/Close) and the binary-chunk/EOS/ERR: wire protocol are
// unchanged; what changed is the boundary: StreamSynthesize used to hand
// chunks to an orchestrator callback, Process now writes them onto a
// speech.AudioSink and declares WORD/END events at the resulting sample
// offsets.
type LokutorSynth struct {
	apiKey string
	host   string
	scheme string
	sink   speech.AudioSink

	mu   sync.Mutex
	conn *websocket.Conn

	voice speech.Voice
	lang  speech.Language
}

// NewLokutorSynth returns a Synthesizer that writes decoded audio to sink.
func NewLokutorSynth(apiKey string, sink speech.AudioSink) *LokutorSynth {
	return &LokutorSynth{
		apiKey: apiKey,
		host:   "api.lokutor.com",
		scheme: "wss",
		sink:   sink,
		voice:  speech.VoiceF1,
		lang:   speech.LanguageEn,
	}
}

func (t *LokutorSynth) getConn(ctx context.Context) (*websocket.Conn, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.conn != nil {
		return t.conn, nil
	}

	u := url.URL{Scheme: t.scheme, Host: t.host, Path: "/ws", RawQuery: "api_key=" + t.apiKey}
	conn, _, err := websocket.Dial(ctx, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to lokutor: %w", err)
	}

	t.conn = conn
	return conn, nil
}

// Process implements speech.Synthesizer.
func (t *LokutorSynth) Process(ctx context.Context, cmd *speech.Command, sink speech.EventSink) error {
	switch cmd.Kind {
	case speech.CommandVoiceName:
		if p, ok := cmd.Payload.(speech.VoiceNamePayload); ok {
			t.mu.Lock()
			t.voice = speech.Voice(p.Name)
			t.mu.Unlock()
		}
		return nil
	case speech.CommandVoiceSpec:
		if p, ok := cmd.Payload.(speech.VoiceSpecPayload); ok {
			t.mu.Lock()
			t.voice, t.lang = p.Voice, p.Language
			t.mu.Unlock()
		}
		return nil
	case speech.CommandParameter, speech.CommandMark, speech.CommandKey, speech.CommandChar, speech.CommandTerminatedMsg:
		return nil
	case speech.CommandText:
		p, ok := cmd.Payload.(speech.TextPayload)
		if !ok {
			return speech.ErrInternal
		}
		return t.streamText(ctx, p, sink)
	default:
		return nil
	}
}

func (t *LokutorSynth) streamText(ctx context.Context, p speech.TextPayload, sink speech.EventSink) error {
	conn, err := t.getConn(ctx)
	if err != nil {
		return err
	}

	voice, lang := p.Voice, p.Language
	if voice == "" {
		t.mu.Lock()
		voice = t.voice
		t.mu.Unlock()
	}
	if lang == "" {
		t.mu.Lock()
		lang = t.lang
		t.mu.Unlock()
	}

	req := map[string]interface{}{
		"text":    p.Text,
		"voice":   string(voice),
		"lang":    string(lang),
		"speed":   1.05,
		"steps":   5,
		"version": "versa-1.0",
	}

	t.mu.Lock()
	writeErr := wsjson.Write(ctx, conn, req)
	t.mu.Unlock()
	if writeErr != nil {
		t.dropConn(conn)
		conn.Close(websocket.StatusAbnormalClosure, "failed to write json")
		return fmt.Errorf("failed to send synthesis request: %w", writeErr)
	}

	uid := p.UID
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		messageType, payload, err := conn.Read(ctx)
		if err != nil {
			t.dropConn(conn)
			conn.Close(websocket.StatusAbnormalClosure, "failed to read")
			return fmt.Errorf("failed to read from lokutor: %w", err)
		}

		switch messageType {
		case websocket.MessageBinary:
			startSample, err := t.sink.Write(payload)
			if err != nil {
				return err
			}
			_ = sink.Declare(speech.Event{
				Kind:   speech.EventWord,
				UID:    uid,
				Sample: startSample,
			})
		case websocket.MessageText:
			msg := string(payload)
			if msg == "EOS" {
				startSample, _ := t.sink.Write(nil)
				return sink.Declare(speech.Event{
					Kind:   speech.EventEnd,
					UID:    uid,
					Sample: startSample,
				})
			}
			if len(msg) >= 4 && msg[:4] == "ERR:" {
				return fmt.Errorf("lokutor error: %s", msg)
			}
		}
	}
}

func (t *LokutorSynth) dropConn(conn *websocket.Conn) {
	t.mu.Lock()
	if t.conn == conn {
		t.conn = nil
	}
	t.mu.Unlock()
}

// Display implements speech.Synthesizer's debug hook.
func (t *LokutorSynth) Display(cmd *speech.Command, log speech.Logger) {
	log.Debug("synth command", "kind", cmd.Kind.String())
}

func (t *LokutorSynth) Name() string { return "lokutor" }

func (t *LokutorSynth) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.conn != nil {
		err := t.conn.Close(websocket.StatusNormalClosure, "")
		t.conn = nil
		return err
	}
	return nil
}
