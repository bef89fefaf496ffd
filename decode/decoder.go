package decode

import (
	"fmt"
	"io"
	"os/exec"
	"sync"
	"time"

	"github.com/charmbracelet/log"
)

const (
	// BytesPerSecond is the decoded output rate: 16 kHz mono s16le.
	BytesPerSecond = 32000

	minReadSize = 4096
	maxReadSize = 64000

	stopTimeout = 2 * time.Second
)

// Decoder wraps one ffmpeg process that consumes a compressed container
// (whatever the browser recorded) on stdin and emits headerless 16 kHz mono
// s16le PCM on stdout. Feed and ReadNext are safe to call from different
// goroutines; the process pipe provides the backpressure between them.
type Decoder struct {
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stdout io.ReadCloser
	logger *log.Logger

	lastRead time.Time
	stopOnce sync.Once
}

// StartDecoder spawns ffmpeg configured for low-latency streaming. The
// flag set follows the same tuning we use everywhere ffmpeg decodes a live
// stream: no internal buffering, tiny probe window.
func StartDecoder(ffmpegPath string, logger *log.Logger) (*Decoder, error) {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	cmd := exec.Command(ffmpegPath,
		"-i", "pipe:0",
		"-f", "s16le",
		"-acodec", "pcm_s16le",
		"-ar", "16000",
		"-ac", "1",
		"-fflags", "nobuffer+flush_packets",
		"-flags", "low_delay",
		"-probesize", "32",
		"-analyzeduration", "0",
		"-loglevel", "error",
		"pipe:1")

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("ffmpeg stdin: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("ffmpeg stdout: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start ffmpeg: %w", err)
	}

	logger.Debug("decoder started", "pid", cmd.Process.Pid)

	return &Decoder{
		cmd:      cmd,
		stdin:    stdin,
		stdout:   stdout,
		logger:   logger,
		lastRead: time.Now(),
	}, nil
}

// Feed writes one compressed chunk to the decoder. The pipe write reaches
// the process immediately; ffmpeg's flush_packets setting pushes decoded
// audio out without waiting for more input.
func (d *Decoder) Feed(data []byte) error {
	if _, err := d.stdin.Write(data); err != nil {
		return fmt.Errorf("feed decoder: %w", err)
	}
	return nil
}

// ReadNext performs one blocking read of decoded PCM. The read size scales
// with the time since the previous read, approximating how much output is
// likely ready, clamped so a slow stream still returns promptly and a burst
// cannot demand an unbounded read. A nil result with nil error means the
// decoder reached end of stream.
func (d *Decoder) ReadNext() ([]byte, error) {
	size := readSize(time.Since(d.lastRead).Seconds())
	d.lastRead = time.Now()

	buf := make([]byte, size)
	n, err := d.stdout.Read(buf)
	if n > 0 {
		return buf[:n], nil
	}
	if err == io.EOF {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read decoder: %w", err)
	}
	return nil, nil
}

// CloseInput signals end of the compressed stream. ffmpeg drains whatever
// it has buffered and exits, so readers see the tail of the audio followed
// by a clean EOF.
func (d *Decoder) CloseInput() {
	_ = d.stdin.Close()
}

// readSize scales a blocking read with the time since the previous one.
// Inherited tuning values; kept as-is.
func readSize(elapsed float64) int {
	size := int(BytesPerSecond*elapsed) + minReadSize
	if size < minReadSize {
		size = minReadSize
	}
	if size > maxReadSize {
		size = maxReadSize
	}
	return size
}

// Stop closes both pipes and waits briefly for ffmpeg to exit, killing it
// if it does not. Safe to call more than once; only the first call acts.
func (d *Decoder) Stop() {
	d.stopOnce.Do(func() {
		_ = d.stdin.Close()
		_ = d.stdout.Close()

		done := make(chan error, 1)
		go func() { done <- d.cmd.Wait() }()

		select {
		case <-done:
		case <-time.After(stopTimeout):
			d.logger.Warn("decoder did not exit, killing", "pid", d.cmd.Process.Pid)
			_ = d.cmd.Process.Kill()
			<-done
		}
	})
}
