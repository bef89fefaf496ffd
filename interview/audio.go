package interview

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

var unsafeChars = regexp.MustCompile(`[^a-zA-Z0-9_-]`)

// SaveAudio writes an uploaded recording under dir/audio with a filename
// derived from the suspect's name, and returns the stored path.
func SaveAudio(dir, name string, data []byte) (string, error) {
	base := unsafeChars.ReplaceAllString(strings.TrimSpace(name), "_")
	audioDir := filepath.Join(dir, "audio")
	if err := os.MkdirAll(audioDir, 0o755); err != nil {
		return "", fmt.Errorf("create audio dir: %w", err)
	}
	path := filepath.Join(audioDir, base+".mp3")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("save audio: %w", err)
	}
	return path, nil
}

// RemoveAudio deletes a stored recording, tolerating records whose file is
// already gone.
func RemoveAudio(path string) {
	if path == "" {
		return
	}
	_ = os.Remove(path)
}
