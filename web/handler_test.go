package web

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"

	"github.com/MauroDruwel/Midnight-Investigator/interview"
	"github.com/MauroDruwel/Midnight-Investigator/llm"
)

// fakeLLM is an OpenAI-compatible chat endpoint returning a fixed content
// string and counting how often it is hit.
type fakeLLM struct {
	content string
	calls   int
}

func (f *fakeLLM) handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		f.calls++
		w.Header().Set("Content-Type", "application/json")
		resp := map[string]interface{}{
			"choices": []map[string]interface{}{
				{"message": map[string]string{
					"role":    "assistant",
					"content": f.content,
				}},
			},
		}
		if err := json.NewEncoder(w).Encode(resp); err != nil {
			panic(err)
		}
	}
}

func newTestHandler(t *testing.T, fake *fakeLLM) (*Handler, *interview.Store, http.Handler) {
	t.Helper()

	llmServer := httptest.NewServer(fake.handler())
	t.Cleanup(llmServer.Close)

	dataDir := t.TempDir()
	store := interview.NewStore(filepath.Join(dataDir, "interviews.json"))
	analyst := llm.NewAnalyst("test-key", llmServer.URL, "test-model", "test-vision", "", log.New(io.Discard))

	h := NewHandler(Config{DataDir: dataDir}, store, analyst, log.New(io.Discard))
	r := chi.NewRouter()
	h.Routes(r)
	return h, store, r
}

func TestListInterviews(t *testing.T) {
	_, store, router := newTestHandler(t, &fakeLLM{})

	if err := store.Put(interview.Interview{Name: "alice", GuiltLevel: -1}); err != nil {
		t.Fatal(err)
	}
	// Nameless garbage record must be filtered from the listing.
	if err := store.Put(interview.Interview{Name: "", Transcript: "orphan"}); err != nil {
		t.Fatal(err)
	}

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest("GET", "/interviews", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var got []interview.Interview
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].Name != "alice" {
		t.Errorf("got %+v, want just alice", got)
	}
}

func TestDeleteInterview(t *testing.T) {
	_, store, router := newTestHandler(t, &fakeLLM{})

	if err := store.Put(interview.Interview{Name: "bob"}); err != nil {
		t.Fatal(err)
	}

	t.Run("existing", func(t *testing.T) {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest("DELETE", "/interview/bob", nil))
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d", rec.Code)
		}
	})

	t.Run("missing", func(t *testing.T) {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest("DELETE", "/interview/bob", nil))
		if rec.Code != http.StatusNotFound {
			t.Fatalf("status = %d, want 404", rec.Code)
		}
	})
}

func TestAnalyze(t *testing.T) {
	fake := &fakeLLM{content: "87"}
	_, store, router := newTestHandler(t, fake)

	if err := store.Put(interview.Interview{
		Name:       "carol",
		Transcript: "i was at the arcade",
		GuiltLevel: -1,
	}); err != nil {
		t.Fatal(err)
	}

	form := url.Values{"name": {"carol"}}
	req := httptest.NewRequest("POST", "/analyze", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		Name       string `json:"name"`
		GuiltLevel int    `json:"guilt_level"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.GuiltLevel != 87 {
		t.Errorf("guilt_level = %d, want 87", resp.GuiltLevel)
	}

	stored, err := store.Get("carol")
	if err != nil {
		t.Fatal(err)
	}
	if stored.GuiltLevel != 87 {
		t.Errorf("stored guilt_level = %d, want 87", stored.GuiltLevel)
	}
}

func TestAnalyzeMissingTranscript(t *testing.T) {
	_, _, router := newTestHandler(t, &fakeLLM{})

	form := url.Values{"name": {"nobody"}}
	req := httptest.NewRequest("POST", "/analyze", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestSummaryRequiresTranscripts(t *testing.T) {
	_, _, router := newTestHandler(t, &fakeLLM{})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest("GET", "/summary", nil))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestSummaryCachesVerdict(t *testing.T) {
	fake := &fakeLLM{content: `{"ranking":[{"name":"dave","rank":1,"reason":"sus"}],"summary":"dave fr"}`}
	_, store, router := newTestHandler(t, fake)

	if err := store.Put(interview.Interview{Name: "dave", Transcript: "no comment"}); err != nil {
		t.Fatal(err)
	}

	for i := 0; i < 2; i++ {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest("GET", "/summary", nil))
		if rec.Code != http.StatusOK {
			t.Fatalf("request %d status = %d: %s", i, rec.Code, rec.Body.String())
		}
		var resp struct {
			Summary json.RawMessage `json:"summary"`
		}
		if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
			t.Fatal(err)
		}
		if !strings.Contains(string(resp.Summary), "dave") {
			t.Errorf("summary = %s", resp.Summary)
		}
	}

	if fake.calls != 1 {
		t.Errorf("LLM called %d times, want 1 (second response from cache)", fake.calls)
	}
}

func TestCORSPreflightAllowsConfiguredOrigin(t *testing.T) {
	handler := CORS([]string{"http://localhost:5173"})(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, "ok")
		}),
	)

	req := httptest.NewRequest("OPTIONS", "/interviews", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Errorf("status = %d, want 204", rec.Code)
	}
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "http://localhost:5173" {
		t.Errorf("allow-origin = %q", got)
	}

	req = httptest.NewRequest("GET", "/interviews", nil)
	req.Header.Set("Origin", "http://evil.example")
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Errorf("unexpected allow-origin %q for unlisted origin", got)
	}
}
