package audio

import (
	"math"
	"testing"
	"time"

	"github.com/staveplay/staveplay/internal/score"
)

func peak(samples []float32) float64 {
	var p float64
	for _, s := range samples {
		if a := math.Abs(float64(s)); a > p {
			p = a
		}
	}
	return p
}

func TestSynthProducesAudibleOutput(t *testing.T) {
	s := NewSynth(44100)
	s.PlayNote("A4", 500*time.Millisecond)
	buf := make([]float32, 44100)
	s.Process(buf)
	if p := peak(buf); p < 0.01 {
		t.Fatalf("peak = %v, expected audible signal", p)
	}
	if p := peak(buf); p > 1 {
		t.Fatalf("peak = %v, output must stay clamped", p)
	}
}

func TestSynthSilentWithoutNotes(t *testing.T) {
	s := NewSynth(44100)
	buf := make([]float32, 8192)
	s.Process(buf)
	if p := peak(buf); p != 0 {
		t.Fatalf("idle synth produced signal, peak = %v", p)
	}
}

func TestSynthVoiceReleasesAfterDuration(t *testing.T) {
	s := NewSynth(44100)
	s.PlayNote("C4", 100*time.Millisecond)
	if s.ActiveVoiceCount() != 1 {
		t.Fatalf("active voices = %d, want 1", s.ActiveVoiceCount())
	}
	// 1 second covers the 100ms note plus any release tail.
	buf := make([]float32, 2*44100)
	s.Process(buf)
	if s.ActiveVoiceCount() != 0 {
		t.Fatalf("voice still active after the note ended")
	}
}

func TestSynthIgnoresUnplayablePitches(t *testing.T) {
	s := NewSynth(44100)
	s.PlayNote("", time.Second)
	s.PlayNote(score.RestPitch, time.Second)
	s.PlayNote("H9x", time.Second)
	if n := s.ActiveVoiceCount(); n != 0 {
		t.Fatalf("unplayable pitches allocated %d voices", n)
	}
}

func TestSynthPolyphonyStealsQuietestVoice(t *testing.T) {
	s := NewSynth(44100, WithPolyphony(2))
	s.PlayNote("C4", time.Second)
	s.PlayNote("E4", time.Second)
	s.PlayNote("G4", time.Second)
	if n := s.ActiveVoiceCount(); n != 2 {
		t.Fatalf("active voices = %d, polyphony limit is 2", n)
	}
}

func TestSynthInstrumentSelection(t *testing.T) {
	s := NewSynth(44100, WithInstrument(InstrumentOrgan))
	if s.Instrument() != InstrumentOrgan {
		t.Fatalf("instrument = %q", s.Instrument())
	}
	s.SetInstrument("theremin")
	if s.Instrument() != InstrumentOrgan {
		t.Fatal("unknown instrument should be rejected")
	}
	s.SetInstrument(InstrumentStrings)
	if s.Instrument() != InstrumentStrings {
		t.Fatalf("instrument = %q", s.Instrument())
	}
}

func TestSynthSilenceReleasesAllVoices(t *testing.T) {
	s := NewSynth(44100)
	s.PlayNote("C4", 10*time.Second)
	s.PlayNote("E4", 10*time.Second)
	s.Silence()
	buf := make([]float32, 44100)
	s.Process(buf)
	if n := s.ActiveVoiceCount(); n != 0 {
		t.Fatalf("%d voices survived Silence", n)
	}
}
