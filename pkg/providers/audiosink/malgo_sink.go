// Package audiosink implements speech.AudioSink against a real playback
// device via malgo.
package audiosink

import (
	"sync"
	"time"

	"github.com/gen2brain/malgo"
	"github.com/lokutor-ai/lokutor-speech-core/pkg/audio"
	"github.com/lokutor-ai/lokutor-speech-core/pkg/speech"
)

const bytesPerSample = 2 // malgo.FormatS16

// MalgoSink is a speech.AudioSink backed by a malgo playback-only device.
// Grounded on cmd/agent/main.go's malgo.InitContext/InitDevice duplex
// setup: the capture half and VAD/RMS plumbing are dropped (out of scope
// for a pure TTS sink), the playback half and its ring-buffer-via-slice
// feeding pattern are kept.
type MalgoSink struct {
	mu sync.Mutex

	mctx   *malgo.AllocatedContext
	device *malgo.Device

	sampleRate int
	channels   int

	pending      []byte // queued but not yet handed to the device callback
	totalWritten uint64 // samples queued since start
	totalPlayed  uint64 // samples the device callback has consumed

	captureDebug bool
	debugPCM     []byte

	closed bool
}

// NewMalgoSink opens the default playback device at cfg's sample rate.
// captureDebug, if true, retains every sample written so DebugWAV can
// later render it for inspection.
func NewMalgoSink(cfg speech.Config, captureDebug bool) (*MalgoSink, error) {
	mctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return nil, err
	}

	s := &MalgoSink{
		mctx:         mctx,
		sampleRate:   cfg.SampleRate,
		channels:     cfg.Channels,
		captureDebug: captureDebug,
	}

	deviceConfig := malgo.DefaultDeviceConfig(malgo.Playback)
	deviceConfig.Playback.Format = malgo.FormatS16
	deviceConfig.Playback.Channels = uint32(cfg.Channels)
	deviceConfig.SampleRate = uint32(cfg.SampleRate)
	deviceConfig.Alsa.NoMMap = 1

	device, err := malgo.InitDevice(mctx.Context, deviceConfig, malgo.DeviceCallbacks{
		Data: s.onSamples,
	})
	if err != nil {
		mctx.Uninit()
		return nil, err
	}
	s.device = device

	if err := device.Start(); err != nil {
		device.Uninit()
		mctx.Uninit()
		return nil, err
	}

	return s, nil
}

func (s *MalgoSink) onSamples(pOutput, _ []byte, _ uint32) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := copy(pOutput, s.pending)
	s.pending = s.pending[n:]
	s.totalPlayed += uint64(n / (bytesPerSample * s.channels))

	for i := n; i < len(pOutput); i++ {
		pOutput[i] = 0
	}
}

// Write implements speech.AudioSink.
func (s *MalgoSink) Write(pcm []byte) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return 0, speech.ErrClosed
	}

	start := s.totalWritten
	s.pending = append(s.pending, pcm...)
	s.totalWritten += uint64(len(pcm) / (bytesPerSample * s.channels))

	if s.captureDebug {
		s.debugPCM = append(s.debugPCM, pcm...)
	}

	return start, nil
}

// IsBusy implements speech.AudioSink.
func (s *MalgoSink) IsBusy() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.totalPlayed < s.totalWritten
}

// RemainingTimeUntil implements speech.AudioSink.
func (s *MalgoSink) RemainingTimeUntil(sample uint64) (time.Duration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return 0, speech.ErrClosed
	}
	if sample <= s.totalPlayed {
		return 0, nil
	}
	framesLeft := sample - s.totalPlayed
	seconds := float64(framesLeft) / float64(s.sampleRate)
	return time.Duration(seconds * float64(time.Second)), nil
}

// DebugWAV renders everything written (if captureDebug was set at
// construction) as a playable WAV file, reusing pkg/audio's RIFF writer.
func (s *MalgoSink) DebugWAV() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return audio.NewWavBuffer(s.debugPCM, s.sampleRate)
}

// Close implements speech.AudioSink. Idempotent.
func (s *MalgoSink) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	if s.device != nil {
		s.device.Uninit()
	}
	if s.mctx != nil {
		s.mctx.Uninit()
	}
	return nil
}
