package synth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/lokutor-ai/lokutor-speech-core/pkg/speech"
)

// recordingSink is a hand-rolled speech.AudioSink mock that records every
// non-empty write and hands back sequential sample offsets. An empty write
// (LokutorSynth's way of reading the current end offset on EOS) is not
// recorded as a chunk.
type recordingSink struct {
	mu      sync.Mutex
	written [][]byte
	samples uint64
}

func (s *recordingSink) Write(pcm []byte) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	start := s.samples
	if len(pcm) > 0 {
		s.written = append(s.written, pcm)
	}
	s.samples += uint64(len(pcm) / 2)
	return start, nil
}

func (s *recordingSink) IsBusy() bool { return true }
func (s *recordingSink) RemainingTimeUntil(uint64) (time.Duration, error) { return 0, nil }
func (s *recordingSink) Close() error { return nil }

// fakeEventSink records every event declared on it.
type fakeEventSink struct {
	mu     sync.Mutex
	events []speech.Event
}

func (s *fakeEventSink) Declare(ev speech.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, ev)
	return nil
}

func TestLokutorSynthStreamsTextToSink(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close(websocket.StatusNormalClosure, "closing")

		var req map[string]interface{}
		if err := wsjson.Read(r.Context(), conn, &req); err != nil {
			return
		}

		conn.Write(r.Context(), websocket.MessageBinary, []byte{1, 2, 3, 4})
		conn.Write(r.Context(), websocket.MessageBinary, []byte{5, 6, 7, 8})
		conn.Write(r.Context(), websocket.MessageText, []byte("EOS"))
	}))
	defer server.Close()

	sink := &recordingSink{}
	st := NewLokutorSynth("test-key", sink)
	st.host = strings.TrimPrefix(server.URL, "http://")
	st.scheme = "ws"

	events := &fakeEventSink{}
	cmd := &speech.Command{
		Kind: speech.CommandText,
		Payload: speech.TextPayload{
			Text: "hello", Voice: speech.VoiceF1, Language: speech.LanguageEn, UID: 3,
		},
	}

	if err := st.Process(context.Background(), cmd, events); err != nil {
		t.Fatalf("Process: %v", err)
	}

	sink.mu.Lock()
	writtenChunks := len(sink.written)
	sink.mu.Unlock()
	if writtenChunks != 2 {
		t.Fatalf("expected 2 chunks written to the sink, got %d", writtenChunks)
	}

	events.mu.Lock()
	defer events.mu.Unlock()
	if len(events.events) != 3 {
		t.Fatalf("expected 2 WORD events + 1 END event, got %d: %+v", len(events.events), events.events)
	}
	last := events.events[len(events.events)-1]
	if last.Kind != speech.EventEnd || last.UID != 3 {
		t.Fatalf("expected a final END event tagged uid=3, got %+v", last)
	}

	if st.Name() != "lokutor" {
		t.Fatalf("expected Name() == lokutor, got %s", st.Name())
	}
	st.Close()
}

func TestLokutorSynthNonTextCommandsDoNotDialNetwork(t *testing.T) {
	st := NewLokutorSynth("test-key", &recordingSink{})
	st.host = "127.0.0.1:0" // would fail to dial if Process ever tried

	events := &fakeEventSink{}
	cmd := &speech.Command{Kind: speech.CommandVoiceName, Payload: speech.VoiceNamePayload{Name: "M3"}}
	if err := st.Process(context.Background(), cmd, events); err != nil {
		t.Fatalf("expected VOICE_NAME to be handled locally without error, got %v", err)
	}
	if st.voice != speech.Voice("M3") {
		t.Fatalf("expected voice to be updated to M3, got %s", st.voice)
	}
}
