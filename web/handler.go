package web

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"

	"github.com/MauroDruwel/Midnight-Investigator/asr"
	"github.com/MauroDruwel/Midnight-Investigator/decode"
	"github.com/MauroDruwel/Midnight-Investigator/interview"
	"github.com/MauroDruwel/Midnight-Investigator/llm"
)

const maxUploadBytes = 64 << 20

// Config carries everything the handlers need that isn't a collaborator
// object.
type Config struct {
	DataDir        string
	FFmpegPath     string
	ASR            asr.Config
	AllowedOrigins []string
}

// Handler serves the interview API and the live transcription socket.
type Handler struct {
	cfg     Config
	store   *interview.Store
	analyst *llm.Analyst
	cache   *llm.SummaryCache
	logger  *log.Logger
}

func NewHandler(
	cfg Config,
	store *interview.Store,
	analyst *llm.Analyst,
	logger *log.Logger,
) *Handler {
	return &Handler{
		cfg:     cfg,
		store:   store,
		analyst: analyst,
		cache:   llm.NewSummaryCache(filepath.Join(cfg.DataDir, "summary_cache.json")),
		logger:  logger,
	}
}

// Routes mounts every endpoint on the router.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/interviews", h.handleListInterviews)
	r.Post("/interview", h.handleAddInterview)
	r.Delete("/interview/{name}", h.handleDeleteInterview)
	r.Delete("/interviews/reset", h.handleResetInterviews)
	r.Post("/analyze", h.handleAnalyze)
	r.Get("/summary", h.handleSummary)
	r.Post("/video-feedback", h.handleVideoFeedback)
	r.Get("/transcribe", h.handleTranscribe)
}

func (h *Handler) handleListInterviews(w http.ResponseWriter, r *http.Request) {
	interviews, err := h.store.List()
	if err != nil {
		h.logger.Error("list interviews", "error", err)
		http.Error(w, "Failed to load interviews", http.StatusInternalServerError)
		return
	}

	// Records without a name are garbage from older clients; skip them.
	named := make([]interview.Interview, 0, len(interviews))
	for _, iv := range interviews {
		if iv.Name != "" {
			named = append(named, iv)
		}
	}
	h.writeJSON(w, named)
}

func (h *Handler) handleAddInterview(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		http.Error(w, "Invalid multipart form", http.StatusBadRequest)
		return
	}
	name := r.FormValue("name")
	if name == "" {
		http.Error(w, "Missing name", http.StatusBadRequest)
		return
	}

	file, _, err := r.FormFile("file")
	if err != nil {
		http.Error(w, "Missing audio file", http.StatusBadRequest)
		return
	}
	defer file.Close()

	content, err := io.ReadAll(file)
	if err != nil {
		http.Error(w, "Failed to read upload", http.StatusBadRequest)
		return
	}
	if len(content) == 0 {
		http.Error(w, "Empty audio file", http.StatusBadRequest)
		return
	}

	h.logger.Info("adding interview", "name", name, "bytes", len(content))

	path, err := interview.SaveAudio(h.cfg.DataDir, name, content)
	if err != nil {
		h.logger.Error("save audio", "name", name, "error", err)
		http.Error(w, "Failed to save audio", http.StatusInternalServerError)
		return
	}

	transcript, err := h.transcribeFile(r, path)
	if err != nil {
		h.logger.Error("transcription failed", "name", name, "error", err)
		http.Error(
			w,
			fmt.Sprintf("Transcription failed: %v", err),
			http.StatusInternalServerError,
		)
		return
	}

	iv := interview.Interview{
		Name:       name,
		AudioPath:  path,
		GuiltLevel: -1,
		Transcript: transcript,
	}
	if err := h.store.Put(iv); err != nil {
		h.logger.Error("store interview", "name", name, "error", err)
		http.Error(w, "Failed to store interview", http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, map[string]string{
		"message":    "Interview added",
		"name":       name,
		"transcript": transcript,
	})
}

func (h *Handler) handleDeleteInterview(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	removed, err := h.store.Delete(name)
	if errors.Is(err, interview.ErrNotFound) {
		http.Error(w, "Interview not found", http.StatusNotFound)
		return
	}
	if err != nil {
		h.logger.Error("delete interview", "name", name, "error", err)
		http.Error(w, "Failed to delete interview", http.StatusInternalServerError)
		return
	}
	interview.RemoveAudio(removed.AudioPath)

	h.logger.Info("deleted interview", "name", name)
	h.writeJSON(w, map[string]string{
		"message": fmt.Sprintf("Interview '%s' deleted", name),
	})
}

func (h *Handler) handleResetInterviews(w http.ResponseWriter, r *http.Request) {
	removed, err := h.store.Reset()
	if err != nil {
		h.logger.Error("reset interviews", "error", err)
		http.Error(w, "Failed to reset interviews", http.StatusInternalServerError)
		return
	}
	for _, iv := range removed {
		interview.RemoveAudio(iv.AudioPath)
	}

	h.logger.Info("reset interviews", "count", len(removed))
	h.writeJSON(w, map[string]string{"message": "All interviews deleted"})
}

func (h *Handler) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	name := r.FormValue("name")

	iv, err := h.store.Get(name)
	if errors.Is(err, interview.ErrNotFound) || (err == nil && iv.Transcript == "") {
		http.Error(w, "Transcript not found", http.StatusNotFound)
		return
	}
	if err != nil {
		h.logger.Error("load interview", "name", name, "error", err)
		http.Error(w, "Failed to load interview", http.StatusInternalServerError)
		return
	}

	level, err := h.analyst.GuiltLevel(r.Context(), iv.Transcript)
	if err != nil {
		h.logger.Error("guilt analysis failed", "name", name, "error", err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	iv.GuiltLevel = level
	if err := h.store.Put(iv); err != nil {
		h.logger.Error("store guilt level", "name", name, "error", err)
		http.Error(w, "Failed to store result", http.StatusInternalServerError)
		return
	}

	h.logger.Info("guilt computed", "name", name, "level", level)
	h.writeJSON(w, map[string]interface{}{
		"name":        name,
		"guilt_level": level,
	})
}

func (h *Handler) handleSummary(w http.ResponseWriter, r *http.Request) {
	interviews, err := h.store.List()
	if err != nil {
		h.logger.Error("list interviews", "error", err)
		http.Error(w, "Failed to load interviews", http.StatusInternalServerError)
		return
	}

	var prompt strings.Builder
	prompt.WriteString("Transcripts:\n")
	count := 0
	for _, iv := range interviews {
		if iv.Transcript == "" {
			continue
		}
		fmt.Fprintf(&prompt, "\nName: %s\nTranscript: %s\n", iv.Name, iv.Transcript)
		count++
	}
	if count == 0 {
		http.Error(w, "No transcripts", http.StatusBadRequest)
		return
	}

	hash := llm.Hash(prompt.String())
	if cached, ok := h.cache.Get(hash); ok {
		h.logger.Info("summary cache hit")
		h.writeJSON(w, map[string]json.RawMessage{"summary": cached})
		return
	}

	summary, err := h.analyst.Summary(r.Context(), prompt.String())
	if err != nil {
		h.logger.Error("summary failed", "error", err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if err := h.cache.Put(hash, summary); err != nil {
		h.logger.Warn("summary cache write failed", "error", err)
	}

	h.writeJSON(w, map[string]json.RawMessage{"summary": summary})
}

func (h *Handler) handleVideoFeedback(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		http.Error(w, "Invalid multipart form", http.StatusBadRequest)
		return
	}

	goal := r.FormValue("goal")
	if goal == "" {
		goal = "Give camera/communication feedback for an interview. Avoid judging guilt."
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		http.Error(w, "Missing image", http.StatusBadRequest)
		return
	}
	defer file.Close()

	img, err := io.ReadAll(file)
	if err != nil || len(img) == 0 {
		http.Error(w, "Empty image upload", http.StatusBadRequest)
		return
	}

	feedback, err := h.analyst.VideoFeedback(
		r.Context(),
		img,
		header.Header.Get("Content-Type"),
		goal,
	)
	if err != nil {
		h.logger.Error("video feedback failed", "error", err)
		http.Error(w, err.Error(), http.StatusBadGateway)
		return
	}

	h.writeJSON(w, map[string]string{"feedback": feedback})
}

// transcribeFile decodes an uploaded recording and runs one whole-file
// recognition pass.
func (h *Handler) transcribeFile(r *http.Request, path string) (string, error) {
	engine, err := asr.Load(h.cfg.ASR)
	if err != nil {
		return "", err
	}
	samples, err := decode.File(r.Context(), h.cfg.FFmpegPath, path)
	if err != nil {
		return "", err
	}
	result, err := engine.Transcribe(r.Context(), samples, "")
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(result.Text), nil
}

func (h *Handler) writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Error("encode response", "error", err)
	}
}
