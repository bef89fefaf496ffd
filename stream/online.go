package stream

import (
	"context"
	"strings"
	"unicode/utf8"

	"github.com/charmbracelet/log"

	"github.com/MauroDruwel/Midnight-Investigator/asr"
)

const (
	// BufferTrimmingSec is the window length that triggers a trim.
	BufferTrimmingSec = 15.0
	// KeepDuration is how much trailing audio a trim retains for context.
	KeepDuration = 5.0

	// promptTokens and promptMaxChars bound the continuity prompt built
	// from committed text. Inherited tuning values; kept as-is.
	promptTokens   = 10
	promptMaxChars = 200

	noSpeechThreshold = 0.9
)

// Span is a committed stretch of transcript with its absolute timestamps.
// A zero Text means nothing was committed.
type Span struct {
	Start float64
	End   float64
	Text  string
}

func (s Span) Empty() bool {
	return s.Text == ""
}

// OnlineProcessor owns one session's audio window and committed history and
// drives the recognizer over the window as it grows, delegating consensus
// to a HypothesisBuffer. Not safe for concurrent use; each session's
// production loop is the sole caller.
type OnlineProcessor struct {
	engine asr.Engine
	logger *log.Logger

	audio      []float32
	timeOffset float64

	hypothesis *HypothesisBuffer
	committed  []Token
}

func NewOnlineProcessor(engine asr.Engine, logger *log.Logger) *OnlineProcessor {
	return &OnlineProcessor{
		engine:     engine,
		logger:     logger,
		hypothesis: NewHypothesisBuffer(),
	}
}

// InsertAudioChunk appends samples to the window.
func (p *OnlineProcessor) InsertAudioChunk(samples []float32) {
	p.audio = append(p.audio, samples...)
}

// ProcessIter runs one recognition pass over the current window and returns
// whatever the consensus newly committed. An empty window is a no-op.
func (p *OnlineProcessor) ProcessIter(ctx context.Context) (Span, error) {
	if len(p.audio) == 0 {
		return Span{}, nil
	}

	prompt := p.prompt()

	p.logger.Debug(
		"transcribing window",
		"seconds", p.windowSeconds(),
		"offset", p.timeOffset,
	)

	result, err := p.engine.Transcribe(ctx, p.audio, prompt)
	if err != nil {
		return Span{}, err
	}

	p.hypothesis.Insert(p.extractTokens(result), p.timeOffset)
	committed := p.hypothesis.Flush()
	p.committed = append(p.committed, committed...)

	if p.windowSeconds() > BufferTrimmingSec {
		p.trim()
	}

	return joinTokens(committed), nil
}

// Finish returns the still-unconfirmed tail as a best-effort final result.
// End of stream means no further pass will ever confirm it.
func (p *OnlineProcessor) Finish() Span {
	return joinTokens(p.hypothesis.Complete())
}

// prompt collects the last few committed words that precede the current
// window, for recognizer conditioning across the trim boundary.
func (p *OnlineProcessor) prompt() string {
	if len(p.committed) == 0 {
		return ""
	}
	k := len(p.committed) - 1
	for k > 0 && p.committed[k].Start > p.timeOffset {
		k--
	}
	lo := k - promptTokens
	if lo < 0 {
		lo = 0
	}
	words := make([]string, 0, k+1-lo)
	for _, t := range p.committed[lo : k+1] {
		words = append(words, t.Text)
	}
	s := strings.Join(words, " ")
	if len(s) > promptMaxChars {
		cut := len(s) - promptMaxChars
		// Step forward to a rune start so the suffix stays valid UTF-8.
		for cut < len(s) && !utf8.RuneStart(s[cut]) {
			cut++
		}
		s = s[cut:]
	}
	return s
}

// extractTokens turns a recognition result into window-relative tokens,
// preferring word timing, falling back to segment spans, and synthesizing
// one whole-window token when the engine segments nothing.
func (p *OnlineProcessor) extractTokens(result asr.Result) []Token {
	var tokens []Token

	if len(result.Segments) == 0 {
		if result.Text == "" {
			return nil
		}
		return []Token{{Start: 0, End: p.windowSeconds(), Text: result.Text}}
	}

	for _, seg := range result.Segments {
		if seg.NoSpeechProb > noSpeechThreshold {
			continue
		}
		if len(seg.Words) > 0 {
			for _, w := range seg.Words {
				tokens = append(tokens, Token{Start: w.Start, End: w.End, Text: w.Text})
			}
			continue
		}
		tokens = append(tokens, Token{Start: seg.Start, End: seg.End, Text: seg.Text})
	}
	return tokens
}

// trim drops the front of the window down to KeepDuration trailing seconds
// and advances the time offset to match. Committed history is kept whole;
// only the hypothesis buffer's mirror is pruned.
func (p *OnlineProcessor) trim() {
	if len(p.committed) == 0 {
		return
	}
	trimSeconds := p.windowSeconds() - KeepDuration
	if trimSeconds <= 0 {
		return
	}
	cut := int(trimSeconds * asr.SampleRate)
	p.audio = p.audio[cut:]
	p.timeOffset += trimSeconds
	p.hypothesis.PopCommitted(p.timeOffset)
	p.logger.Debug("trimmed window", "seconds", trimSeconds, "offset", p.timeOffset)
}

func (p *OnlineProcessor) windowSeconds() float64 {
	return float64(len(p.audio)) / asr.SampleRate
}

func joinTokens(tokens []Token) Span {
	if len(tokens) == 0 {
		return Span{}
	}
	words := make([]string, len(tokens))
	for i, t := range tokens {
		words[i] = t.Text
	}
	return Span{
		Start: tokens[0].Start,
		End:   tokens[len(tokens)-1].End,
		Text:  strings.Join(words, " "),
	}
}
