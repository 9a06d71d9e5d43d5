package probe

import (
	"bytes"
	"encoding/binary"
	"math"
)

const (
	toneRate      = 16000
	toneHz        = 440
	toneDuration  = 600 // ms
	toneAmplitude = 0.08
)

// Tone is the built-in speaker check: a short, quiet 440 Hz sine as 16-bit mono PCM WAV.
func Tone() []byte {
	n := toneRate * toneDuration / 1000
	pcm := make([]int16, n)
	for i := range pcm {
		// linear fade over the first and last 10%
		env := 1.0
		if edge := n / 10; i < edge {
			env = float64(i) / float64(edge)
		} else if i > n-edge {
			env = float64(n-i) / float64(edge)
		}
		v := toneAmplitude * env * math.Sin(2*math.Pi*toneHz*float64(i)/toneRate)
		pcm[i] = int16(v * math.MaxInt16)
	}

	var buf bytes.Buffer
	dataLen := uint32(n * 2)
	buf.WriteString("RIFF")
	_ = binary.Write(&buf, binary.LittleEndian, 36+dataLen)
	buf.WriteString("WAVEfmt ")
	for _, v := range []any{
		uint32(16),           // fmt chunk size
		uint16(1),            // PCM
		uint16(1),            // mono
		uint32(toneRate),     // sample rate
		uint32(toneRate * 2), // byte rate
		uint16(2),            // block align
		uint16(16),           // bits per sample
	} {
		_ = binary.Write(&buf, binary.LittleEndian, v)
	}
	buf.WriteString("data")
	_ = binary.Write(&buf, binary.LittleEndian, dataLen)
	_ = binary.Write(&buf, binary.LittleEndian, pcm)
	return buf.Bytes()
}
