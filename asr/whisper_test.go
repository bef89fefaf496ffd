package asr

import (
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestWhisperClientTranscribe(t *testing.T) {
	var gotPrompt, gotFormat string
	var gotWAV []byte

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case healthPath:
			w.WriteHeader(http.StatusOK)
		case inferencePath:
			if err := r.ParseMultipartForm(32 << 20); err != nil {
				t.Errorf("parse multipart: %v", err)
			}
			gotPrompt = r.FormValue("prompt")
			gotFormat = r.FormValue("response_format")
			file, _, err := r.FormFile("file")
			if err != nil {
				t.Errorf("form file: %v", err)
			} else {
				gotWAV, _ = io.ReadAll(file)
				file.Close()
			}
			fmt.Fprint(w, `{
				"text": "hello there",
				"segments": [
					{"start": 0.0, "end": 1.2, "text": "hello there", "no_speech_prob": 0.01,
					 "words": [
						{"start": 0.0, "end": 0.6, "word": "hello"},
						{"start": 0.6, "end": 1.2, "word": "there"}
					 ]}
				]
			}`)
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	client := NewWhisperClient(Config{URL: server.URL})
	if err := client.Ping(context.Background()); err != nil {
		t.Fatalf("ping: %v", err)
	}

	samples := make([]float32, SampleRate/2)
	result, err := client.Transcribe(context.Background(), samples, "previous text")
	if err != nil {
		t.Fatal(err)
	}

	if gotPrompt != "previous text" {
		t.Errorf("prompt = %q, want %q", gotPrompt, "previous text")
	}
	if gotFormat != "verbose_json" {
		t.Errorf("response_format = %q, want verbose_json", gotFormat)
	}

	if len(gotWAV) != 44+len(samples)*2 {
		t.Errorf("wav payload = %d bytes, want %d", len(gotWAV), 44+len(samples)*2)
	}
	if string(gotWAV[0:4]) != "RIFF" || string(gotWAV[8:12]) != "WAVE" {
		t.Error("payload is not a RIFF/WAVE stream")
	}
	if rate := binary.LittleEndian.Uint32(gotWAV[24:28]); rate != SampleRate {
		t.Errorf("wav sample rate = %d, want %d", rate, SampleRate)
	}

	if result.Text != "hello there" {
		t.Errorf("text = %q", result.Text)
	}
	if len(result.Segments) != 1 {
		t.Fatalf("got %d segments, want 1", len(result.Segments))
	}
	seg := result.Segments[0]
	if seg.NoSpeechProb != 0.01 {
		t.Errorf("no_speech_prob = %v", seg.NoSpeechProb)
	}
	if len(seg.Words) != 2 || seg.Words[1].Text != "there" {
		t.Errorf("words = %+v", seg.Words)
	}
}

func TestWhisperClientServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model exploded", http.StatusInternalServerError)
	}))
	defer server.Close()

	client := NewWhisperClient(Config{URL: server.URL})
	_, err := client.Transcribe(context.Background(), make([]float32, 100), "")
	if err == nil {
		t.Fatal("expected an error from a 500 response")
	}
}

func TestPingUnreachable(t *testing.T) {
	client := NewWhisperClient(Config{URL: "http://127.0.0.1:1"})
	if err := client.Ping(context.Background()); err == nil {
		t.Fatal("expected ping failure")
	}
}
