package asr

import (
	"encoding/binary"
	"io"
	"math"
)

// WriteWAV encodes samples as a mono 16-bit PCM RIFF stream. Samples are
// clamped to [-1, 1] before conversion.
func WriteWAV(w io.Writer, samples []float32, sampleRate int) error {
	dataLen := len(samples) * 2

	header := make([]byte, 44)
	copy(header[0:4], "RIFF")
	binary.LittleEndian.PutUint32(header[4:8], uint32(36+dataLen))
	copy(header[8:12], "WAVE")
	copy(header[12:16], "fmt ")
	binary.LittleEndian.PutUint32(header[16:20], 16)
	binary.LittleEndian.PutUint16(header[20:22], 1) // PCM
	binary.LittleEndian.PutUint16(header[22:24], 1) // mono
	binary.LittleEndian.PutUint32(header[24:28], uint32(sampleRate))
	binary.LittleEndian.PutUint32(header[28:32], uint32(sampleRate*2))
	binary.LittleEndian.PutUint16(header[32:34], 2)
	binary.LittleEndian.PutUint16(header[34:36], 16)
	copy(header[36:40], "data")
	binary.LittleEndian.PutUint32(header[40:44], uint32(dataLen))

	if _, err := w.Write(header); err != nil {
		return err
	}

	pcm := make([]byte, dataLen)
	for i, s := range samples {
		v := float64(s)
		if v > 1 {
			v = 1
		} else if v < -1 {
			v = -1
		}
		binary.LittleEndian.PutUint16(
			pcm[i*2:],
			uint16(int16(math.Round(v*32767))),
		)
	}
	if _, err := w.Write(pcm); err != nil {
		return err
	}
	return nil
}
