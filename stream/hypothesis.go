package stream

// Token is one recognized word (or segment, when the engine gives no word
// timing) with start/end in absolute session seconds.
type Token struct {
	Start float64
	End   float64
	Text  string
}

// HypothesisBuffer stabilizes repeated recognition passes over a growing
// audio window. Each pass re-recognizes the whole window, so earlier words
// tend to reappear identically while the newest words keep shifting. The
// buffer front-aligns the current pass against the previous one and commits
// only the matching prefix: a word that came out the same twice in a row is
// considered settled.
type HypothesisBuffer struct {
	committed []Token // committed tokens still inside the audio window
	buffer    []Token // previous pass's unconfirmed remainder
	incoming  []Token // current pass, consumed by the next Flush

	LastCommittedTime float64
	lastCommittedWord string
}

func NewHypothesisBuffer() *HypothesisBuffer {
	return &HypothesisBuffer{}
}

// Insert stores the current pass's hypothesis, shifting its window-relative
// timestamps by offset into absolute session time. An unconsumed previous
// insert is replaced.
func (h *HypothesisBuffer) Insert(tokens []Token, offset float64) {
	shifted := make([]Token, len(tokens))
	for i, t := range tokens {
		shifted[i] = Token{Start: t.Start + offset, End: t.End + offset, Text: t.Text}
	}
	h.incoming = shifted
}

// Flush compares the inserted hypothesis against the previous one and
// returns the newly committed tokens: the run of front positions whose text
// matches. The first mismatch stops the scan. The unconfirmed remainder of
// the current pass becomes the baseline for the next call.
func (h *HypothesisBuffer) Flush() []Token {
	var commit []Token
	for len(h.incoming) > 0 && len(h.buffer) > 0 {
		next := h.incoming[0]
		if next.Text != h.buffer[0].Text {
			break
		}
		commit = append(commit, next)
		h.lastCommittedWord = next.Text
		h.LastCommittedTime = next.End
		h.buffer = h.buffer[1:]
		h.incoming = h.incoming[1:]
	}
	h.buffer = h.incoming
	h.incoming = nil
	h.committed = append(h.committed, commit...)
	return commit
}

// PopCommitted drops committed tokens whose end time is at or before t.
// Called as the audio window trims so the mirror list cannot grow without
// bound.
func (h *HypothesisBuffer) PopCommitted(t float64) {
	for len(h.committed) > 0 && h.committed[0].End <= t {
		h.committed = h.committed[1:]
	}
}

// Complete returns the current unconfirmed tokens: recognized text still
// waiting for a second matching pass.
func (h *HypothesisBuffer) Complete() []Token {
	return h.buffer
}
