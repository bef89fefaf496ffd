package decode

import "encoding/binary"

// Accumulator batches raw decoder output into roughly one-second chunks of
// normalized float32 samples. Batching bounds how often the recognizer runs
// and keeps end-to-end latency near the chunk length.
type Accumulator struct {
	pending []byte
}

// Threshold is the byte count that triggers a conversion: one second of
// 16 kHz mono s16le audio.
const Threshold = BytesPerSecond

// Push appends raw PCM bytes. Once at least Threshold bytes are queued the
// queue is converted and returned; otherwise the return is nil. An unpaired
// trailing byte stays queued so sample alignment survives odd-length reads.
func (a *Accumulator) Push(pcm []byte) []float32 {
	a.pending = append(a.pending, pcm...)
	if len(a.pending) < Threshold {
		return nil
	}
	n := len(a.pending) &^ 1
	samples := Samples(a.pending[:n])
	rest := copy(a.pending, a.pending[n:])
	a.pending = a.pending[:rest]
	return samples
}

// Samples converts s16le bytes to normalized float32 in [-1, 1). A trailing
// odd byte is ignored.
func Samples(pcm []byte) []float32 {
	out := make([]float32, len(pcm)/2)
	for i := range out {
		out[i] = float32(int16(binary.LittleEndian.Uint16(pcm[i*2:]))) / 32768.0
	}
	return out
}
