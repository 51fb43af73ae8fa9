package audio

import (
	"encoding/binary"
	"fmt"
	"math"
	"os"

	"github.com/staveplay/staveplay/internal/score"
)

// RenderRefs renders a note sequence offline at the score tempo,
// returning interleaved stereo float32 samples. A short release tail is
// appended so the last note does not clip.
func RenderRefs(sc *score.Score, refs []score.NoteRef, sampleRate int, opts ...SynthOption) []float32 {
	synth := NewSynth(sampleRate, opts...)
	rate := float64(sampleRate)

	type cue struct {
		frame int
		note  score.Note
	}
	var cues []cue
	elapsed := 0.0
	for _, ref := range refs {
		n, ok := sc.NoteAt(ref)
		if !ok {
			elapsed += sc.SecondsPerBeat()
			continue
		}
		cues = append(cues, cue{frame: int(elapsed * rate), note: n})
		elapsed += n.Beats() * sc.SecondsPerBeat()
	}

	const tailSec = 0.5
	totalFrames := int((elapsed + tailSec) * rate)
	out := make([]float32, totalFrames*2)

	pos := 0
	for _, c := range cues {
		if c.frame > pos {
			synth.Process(out[pos*2 : c.frame*2])
			pos = c.frame
		}
		if !c.note.IsRest {
			synth.PlayNote(c.note.Pitch, sc.NoteDuration(c.note))
		}
	}
	if pos < totalFrames {
		synth.Process(out[pos*2:])
	}
	return out
}

// RenderScore renders the whole score in order.
func RenderScore(sc *score.Score, sampleRate int, opts ...SynthOption) []float32 {
	return RenderRefs(sc, sc.AllRefs(), sampleRate, opts...)
}

// EncodeWAVFloat32LE wraps samples in a RIFF/WAVE container using IEEE
// float format (format tag 3, 32 bits per sample).
func EncodeWAVFloat32LE(samples []float32, sampleRate int, channels int) []byte {
	dataSize := len(samples) * 4
	byteRate := sampleRate * channels * 4
	blockAlign := channels * 4
	chunkSize := 36 + dataSize
	out := make([]byte, 44+dataSize)
	copy(out[0:], []byte("RIFF"))
	binary.LittleEndian.PutUint32(out[4:], uint32(chunkSize))
	copy(out[8:], []byte("WAVE"))
	copy(out[12:], []byte("fmt "))
	binary.LittleEndian.PutUint32(out[16:], 16)
	binary.LittleEndian.PutUint16(out[20:], 3)
	binary.LittleEndian.PutUint16(out[22:], uint16(channels))
	binary.LittleEndian.PutUint32(out[24:], uint32(sampleRate))
	binary.LittleEndian.PutUint32(out[28:], uint32(byteRate))
	binary.LittleEndian.PutUint16(out[32:], uint16(blockAlign))
	binary.LittleEndian.PutUint16(out[34:], 32)
	copy(out[36:], []byte("data"))
	binary.LittleEndian.PutUint32(out[40:], uint32(dataSize))
	for i, s := range samples {
		binary.LittleEndian.PutUint32(out[44+i*4:], math.Float32bits(s))
	}
	return out
}

// WriteWAV renders a score and writes it to path as a stereo WAV file.
func WriteWAV(path string, sc *score.Score, sampleRate int, opts ...SynthOption) error {
	samples := RenderScore(sc, sampleRate, opts...)
	data := EncodeWAVFloat32LE(samples, sampleRate, 2)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("audio: write %s: %w", path, err)
	}
	return nil
}
