package store

import (
	"encoding/binary"
	"math"
)

// Built-in jingles, synthesized as 8-bit unsigned mono PCM at 16 kHz.
// Slot 0 is the coin chime, which also serves as the fallback asset when
// a requested sample is missing from disk.

const defaultRate = 16000

type note struct {
	freq float64 // Hz, 0 for a rest
	ms   int
}

var (
	coinNotes = []note{
		{988, 80},   // B5
		{1319, 300}, // E6
	}
	powerupNotes = []note{
		{523, 60},  // C5
		{659, 60},  // E5
		{784, 60},  // G5
		{1047, 60}, // C6
		{1319, 60}, // E6
		{1568, 90}, // G6
	}
	oneupNotes = []note{
		{659, 120},  // E5
		{784, 120},  // G5
		{1319, 120}, // E6
		{1047, 120}, // C6
		{1175, 120}, // D6
		{1568, 160}, // G6
	}
)

// DefaultSample returns the built-in WAV for a sample slot. Slots beyond
// the three jingles cycle through them.
func DefaultSample(index int) []byte {
	switch index % 3 {
	case 1:
		return renderWAV(powerupNotes)
	case 2:
		return renderWAV(oneupNotes)
	default:
		return renderWAV(coinNotes)
	}
}

func renderWAV(notes []note) []byte {
	var data []byte
	for _, n := range notes {
		data = append(data, renderNote(n)...)
		data = append(data, renderNote(note{0, 10})...)
	}
	out := make([]byte, 0, 44+len(data))
	out = append(out, wavHeader(len(data))...)
	return append(out, data...)
}

// renderNote produces a half-amplitude square wave, or silence for freq 0.
func renderNote(n note) []byte {
	out := make([]byte, defaultRate*n.ms/1000)
	for i := range out {
		if n.freq == 0 {
			out[i] = 128
			continue
		}
		if math.Sin(2*math.Pi*n.freq*float64(i)/defaultRate) >= 0 {
			out[i] = 192
		} else {
			out[i] = 64
		}
	}
	return out
}

// wavHeader builds the canonical 44-byte RIFF header for 8-bit mono PCM.
func wavHeader(dataLen int) []byte {
	h := make([]byte, 44)
	copy(h[0:4], "RIFF")
	binary.LittleEndian.PutUint32(h[4:8], uint32(36+dataLen))
	copy(h[8:12], "WAVE")
	copy(h[12:16], "fmt ")
	binary.LittleEndian.PutUint32(h[16:20], 16)
	binary.LittleEndian.PutUint16(h[20:22], 1) // PCM
	binary.LittleEndian.PutUint16(h[22:24], 1) // mono
	binary.LittleEndian.PutUint32(h[24:28], defaultRate)
	binary.LittleEndian.PutUint32(h[28:32], defaultRate) // byte rate, 8-bit mono
	binary.LittleEndian.PutUint16(h[32:34], 1)           // block align
	binary.LittleEndian.PutUint16(h[34:36], 8)
	copy(h[36:40], "data")
	binary.LittleEndian.PutUint32(h[40:44], uint32(dataLen))
	return h
}
