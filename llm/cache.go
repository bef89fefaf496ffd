package llm

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"os"
	"sync"
)

// SummaryCache remembers the last summary verdict and the hash of the
// transcripts that produced it, so reloading the summary page with
// unchanged interviews does not re-pay the model call.
type SummaryCache struct {
	path string
	mu   sync.Mutex
}

type cacheEntry struct {
	Hash    string          `json:"hash"`
	Summary json.RawMessage `json:"summary"`
}

func NewSummaryCache(path string) *SummaryCache {
	return &SummaryCache{path: path}
}

// Hash fingerprints the input the summary was computed from.
func Hash(data string) string {
	sum := sha256.Sum256([]byte(data))
	return hex.EncodeToString(sum[:])
}

// Get returns the cached summary when hash matches the stored one.
func (c *SummaryCache) Get(hash string) (json.RawMessage, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	data, err := os.ReadFile(c.path)
	if err != nil {
		return nil, false
	}
	var entry cacheEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		return nil, false
	}
	if entry.Hash != hash {
		return nil, false
	}
	return entry.Summary, true
}

// Put stores the summary. Failures are non-fatal; the cache is best-effort.
func (c *SummaryCache) Put(hash string, summary json.RawMessage) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	data, err := json.Marshal(cacheEntry{Hash: hash, Summary: summary})
	if err != nil {
		return err
	}
	return os.WriteFile(c.path, data, 0o644)
}
