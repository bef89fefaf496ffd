package asr

import (
	"context"
	"sync"
)

// Word is a single recognized word with times in seconds relative to the
// start of the submitted samples.
type Word struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"word"`
}

// Segment is one recognized span. Words may be empty when the engine does
// not produce word-level timestamps.
type Segment struct {
	Start        float64 `json:"start"`
	End          float64 `json:"end"`
	Text         string  `json:"text"`
	NoSpeechProb float64 `json:"no_speech_prob"`
	Words        []Word  `json:"words,omitempty"`
}

// Result is the output of one recognition pass.
type Result struct {
	Text     string    `json:"text"`
	Segments []Segment `json:"segments"`
}

// Engine turns normalized mono 16 kHz samples into text. The prompt, when
// non-empty, is fed to the engine as preceding-context conditioning.
type Engine interface {
	Transcribe(ctx context.Context, samples []float32, prompt string) (Result, error)
}

var (
	loadMu       sync.Mutex
	loadedEngine Engine
)

// Load initializes the process-wide engine and returns the same instance on
// later calls. A failed health check is not cached, so a session arriving
// after the recognition server comes up still gets an engine.
func Load(cfg Config) (Engine, error) {
	loadMu.Lock()
	defer loadMu.Unlock()
	if loadedEngine != nil {
		return loadedEngine, nil
	}
	client := NewWhisperClient(cfg)
	if err := client.Ping(context.Background()); err != nil {
		return nil, err
	}
	loadedEngine = client
	return loadedEngine, nil
}
