package main

import (
	"bufio"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/lokutor-ai/lokutor-speech-core/pkg/providers/audiosink"
	"github.com/lokutor-ai/lokutor-speech-core/pkg/providers/synth"
	"github.com/lokutor-ai/lokutor-speech-core/pkg/speech"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("Note: No .env file found, using system environment variables")
	}

	lokutorKey := os.Getenv("LOKUTOR_API_KEY")
	if lokutorKey == "" {
		log.Fatal("Error: LOKUTOR_API_KEY must be set.")
	}

	voice := speech.Voice(os.Getenv("SPEECHD_VOICE"))
	if voice == "" {
		voice = speech.VoiceF1
	}
	lang := speech.Language(os.Getenv("SPEECHD_LANGUAGE"))
	if lang == "" {
		lang = speech.LanguageEn
	}

	cfg := speech.DefaultConfig()
	if v := os.Getenv("SPEECHD_SAMPLE_RATE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.SampleRate = n
		}
	}

	metrics := speech.NewMetrics("speechd")
	if addr := os.Getenv("SPEECHD_METRICS_ADDR"); addr != "" {
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", speech.MetricsHandler())
			log.Printf("metrics listening on %s", addr)
			if err := http.ListenAndServe(addr, mux); err != nil {
				log.Printf("metrics server stopped: %v", err)
			}
		}()
	}

	sink, err := audiosink.NewMalgoSink(cfg, os.Getenv("SPEECHD_DEBUG_WAV") != "")
	if err != nil {
		log.Fatalf("failed to open audio sink: %v", err)
	}

	synthesizer := synth.NewLokutorSynth(lokutorKey, sink)
	defer synthesizer.Close()

	engine, err := speech.NewEngine(synthesizer, sink, cfg, nil, metrics)
	if err != nil {
		log.Fatalf("failed to start speech engine: %v", err)
	}
	defer engine.Close()

	engine.SetCallback(func(ev speech.Event) {
		switch ev.Kind {
		case speech.EventSentence:
			fmt.Printf("\r\033[K[SENTENCE uid=%d]\n", ev.UID)
		case speech.EventWord:
			fmt.Printf("\r\033[K[WORD uid=%d sample=%d]\n", ev.UID, ev.Sample)
		case speech.EventEnd:
			fmt.Printf("\r\033[K[END uid=%d]\n", ev.UID)
		case speech.EventMsgTerminated:
			fmt.Printf("\r\033[K[DONE uid=%d]\n", ev.UID)
		}
	})

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)

	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()

	uid := uint32(1)
	fmt.Println("speechd ready; type text and press enter to synthesize it, Ctrl+C to quit")
	for {
		select {
		case <-sig:
			fmt.Println("\nShutting down...")
			return
		case line, ok := <-lines:
			if !ok {
				return
			}
			if line == "" {
				continue
			}
			err := engine.Submit(&speech.Command{
				Kind: speech.CommandText,
				Payload: speech.TextPayload{
					Text:     line,
					Voice:    voice,
					Language: lang,
					UID:      uid,
				},
			})
			if err != nil {
				fmt.Printf("submit failed: %v\n", err)
			}
			uid++
		}
	}
}
