package decode

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
)

// File decodes a whole audio file to normalized 16 kHz mono samples with a
// single ffmpeg run. Used for uploaded interviews, where latency does not
// matter and the file format is whatever the client recorded.
func File(ctx context.Context, ffmpegPath, path string) ([]float32, error) {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	cmd := exec.CommandContext(ctx, ffmpegPath,
		"-i", path,
		"-f", "s16le",
		"-acodec", "pcm_s16le",
		"-ar", "16000",
		"-ac", "1",
		"-loglevel", "error",
		"pipe:1")

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("decode %s: %w: %s", path, err, stderr.String())
	}
	return Samples(stdout.Bytes()), nil
}
