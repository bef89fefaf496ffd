package asr

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"sync"
	"time"

	"github.com/charmbracelet/log"
)

const (
	// SampleRate is the only rate the pipeline operates at.
	SampleRate = 16000

	inferencePath = "/inference"
	healthPath    = "/health"
)

// Config holds the connection settings for the local whisper server.
type Config struct {
	// URL is the server base URL, e.g. http://127.0.0.1:8178.
	URL string
	// Language passed to the engine. Empty means auto-detect.
	Language string
	// Timeout bounds a single inference call.
	Timeout time.Duration
}

// WhisperClient talks to a whisper.cpp style HTTP server. The server handles
// one request at a time, so calls are serialized with a mutex; that also
// keeps one session's long inference from erroring another's.
type WhisperClient struct {
	cfg        Config
	httpClient *http.Client
	mu         sync.Mutex
}

func NewWhisperClient(cfg Config) *WhisperClient {
	if cfg.Timeout == 0 {
		cfg.Timeout = 60 * time.Second
	}
	return &WhisperClient{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
	}
}

// Ping probes the server so setup failures surface before any audio flows.
func (c *WhisperClient) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, "GET", c.cfg.URL+healthPath, nil)
	if err != nil {
		return err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("whisper server unreachable at %s: %w", c.cfg.URL, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("whisper server unhealthy: status %d", resp.StatusCode)
	}
	return nil
}

func (c *WhisperClient) Transcribe(
	ctx context.Context,
	samples []float32,
	prompt string,
) (Result, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	part, err := writer.CreateFormFile("file", "audio.wav")
	if err != nil {
		return Result{}, err
	}
	if err := WriteWAV(part, samples, SampleRate); err != nil {
		return Result{}, fmt.Errorf("encode wav: %w", err)
	}

	fields := map[string]string{
		"response_format": "verbose_json",
		"temperature":     "0.0",
	}
	if prompt != "" {
		fields["prompt"] = prompt
	}
	if c.cfg.Language != "" {
		fields["language"] = c.cfg.Language
	}
	for k, v := range fields {
		if err := writer.WriteField(k, v); err != nil {
			return Result{}, err
		}
	}
	if err := writer.Close(); err != nil {
		return Result{}, err
	}

	req, err := http.NewRequestWithContext(
		ctx,
		"POST",
		c.cfg.URL+inferencePath,
		body,
	)
	if err != nil {
		return Result{}, err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Result{}, fmt.Errorf("whisper request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, readErr := io.ReadAll(resp.Body)
		if readErr != nil {
			return Result{}, fmt.Errorf(
				"whisper returned status %d, failed to read response body: %w",
				resp.StatusCode,
				readErr,
			)
		}
		return Result{}, fmt.Errorf(
			"whisper returned status %d: %s",
			resp.StatusCode,
			string(msg),
		)
	}

	var result Result
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return Result{}, fmt.Errorf("decode whisper response: %w", err)
	}

	log.Debug(
		"whisper inference",
		"seconds", float64(len(samples))/SampleRate,
		"elapsed", time.Since(start),
		"segments", len(result.Segments),
	)

	return result, nil
}
