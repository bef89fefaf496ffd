package llm

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/sashabaranov/go-openai"
)

const (
	guiltSystemPrompt = "You're a teenage detective. Analyze the transcript and give a guilt level from 0 (innocent) to 100 (guilty). " +
		"Respond like a teenager, keep it casual, but only return the number."

	summarySystemPrompt = "You're a teenage detective AI. Given the following interview transcripts, rank the suspects from most to least likely to be the murderer. " +
		"For each, give a short, casual, teenage-style reason, with some max gen z vibe, like put as most memes in it as possible. " +
		`Return ONLY valid JSON (no markdown). The JSON must be an object of this exact shape: ` +
		`{"ranking": [{"name": string, "rank": number, "reason": string}], "summary": string}. ` +
		"Do not include a 'summary' field inside ranking items."

	visionSystemPrompt = "You are a real-time interview coach. " +
		"Only comment on observable factors (lighting, framing, gaze, posture). " +
		"DO NOT infer guilt, deception, or intent. " +
		"Return 3–6 short bullet tips and a single quality_score (1–10)."
)

// Analyst wraps an OpenAI-compatible chat-completions endpoint for the
// game's three judgments: guilt scoring, suspect ranking, and camera
// feedback. Text judgments fall back to Gemini when the primary endpoint
// fails and a Gemini key is configured.
type Analyst struct {
	client      *openai.Client
	fallback    generator
	model       string
	visionModel string
	logger      *log.Logger
}

func NewAnalyst(
	apiKey, baseURL, model, visionModel, geminiAPIKey string,
	logger *log.Logger,
) *Analyst {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	a := &Analyst{
		client:      openai.NewClientWithConfig(cfg),
		model:       model,
		visionModel: visionModel,
		logger:      logger,
	}
	if geminiAPIKey != "" {
		a.fallback = &geminiGenerator{apiKey: geminiAPIKey}
	}
	return a
}

var firstNumber = regexp.MustCompile(`\d+`)

// GuiltLevel asks the model to score one transcript 0-100.
func (a *Analyst) GuiltLevel(ctx context.Context, transcript string) (int, error) {
	content, err := a.chat(ctx, a.model, guiltSystemPrompt, transcript)
	if err != nil {
		return 0, err
	}

	// The model is told to return only the number, but it is a teenager.
	match := firstNumber.FindString(content)
	if match == "" {
		return 0, fmt.Errorf("no guilt score in model output: %q", content)
	}
	level, err := strconv.Atoi(match)
	if err != nil {
		return 0, fmt.Errorf("parse guilt score %q: %w", match, err)
	}
	if level < 0 {
		level = 0
	}
	if level > 100 {
		level = 100
	}
	return level, nil
}

// Summary asks the model to rank all suspects. The result is the model's
// JSON verdict when it parses, otherwise the raw text wrapped as a JSON
// string so the handler always has something serializable.
func (a *Analyst) Summary(ctx context.Context, transcripts string) (json.RawMessage, error) {
	content, err := a.chat(ctx, a.model, summarySystemPrompt, transcripts)
	if err != nil {
		return nil, err
	}

	trimmed := strings.TrimSpace(content)
	if json.Valid([]byte(trimmed)) {
		return json.RawMessage(trimmed), nil
	}
	a.logger.Warn("summary was not valid JSON, passing through as text")
	wrapped, err := json.Marshal(trimmed)
	if err != nil {
		return nil, err
	}
	return wrapped, nil
}

// VideoFeedback sends one camera frame to the vision model and returns its
// coaching notes.
func (a *Analyst) VideoFeedback(
	ctx context.Context,
	image []byte,
	contentType, goal string,
) (string, error) {
	if contentType == "" {
		contentType = "image/jpeg"
	}
	dataURL := fmt.Sprintf(
		"data:%s;base64,%s",
		contentType,
		base64.StdEncoding.EncodeToString(image),
	)

	resp, err := a.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       a.visionModel,
		Temperature: 0.2,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: visionSystemPrompt,
			},
			{
				Role: openai.ChatMessageRoleUser,
				MultiContent: []openai.ChatMessagePart{
					{
						Type: openai.ChatMessagePartTypeText,
						Text: goal,
					},
					{
						Type: openai.ChatMessagePartTypeImageURL,
						ImageURL: &openai.ChatMessageImageURL{
							URL: dataURL,
						},
					},
				},
			},
		},
	})
	if err != nil {
		return "", fmt.Errorf("vision request: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("vision model returned no choices")
	}
	return resp.Choices[0].Message.Content, nil
}

func (a *Analyst) chat(
	ctx context.Context,
	model, system, user string,
) (string, error) {
	resp, err := a.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: user},
		},
	})
	if err != nil {
		if a.fallback == nil {
			return "", fmt.Errorf("chat completion: %w", err)
		}
		a.logger.Warn("primary model failed, falling back", "err", err)
		content, ferr := a.fallback.Generate(ctx, system+"\n"+user)
		if ferr != nil {
			return "", fmt.Errorf("primary model failed (%v), fallback failed too: %w", err, ferr)
		}
		return content, nil
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("model returned no choices")
	}
	return resp.Choices[0].Message.Content, nil
}
