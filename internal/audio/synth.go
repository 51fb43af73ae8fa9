package audio

import (
	"math"
	"sync"
	"time"

	"github.com/staveplay/staveplay/internal/score"
)

const twoPi = math.Pi * 2

// Instrument selects a harmonic profile and envelope shape.
type Instrument string

const (
	InstrumentPiano   Instrument = "piano"
	InstrumentOrgan   Instrument = "organ"
	InstrumentStrings Instrument = "strings"
)

// patch is the per-instrument recipe: partial amplitudes relative to the
// fundamental plus ADSR times in seconds.
type patch struct {
	harmonics  []float64
	attackSec  float64
	decaySec   float64
	sustainLvl float64
	releaseSec float64
	gain       float64
}

var patches = map[Instrument]patch{
	InstrumentPiano: {
		harmonics:  []float64{1.0, 0.5, 0.25, 0.12, 0.06},
		attackSec:  0.004,
		decaySec:   0.35,
		sustainLvl: 0.25,
		releaseSec: 0.25,
		gain:       0.5,
	},
	InstrumentOrgan: {
		harmonics:  []float64{1.0, 0.7, 0.0, 0.5, 0.0, 0.3},
		attackSec:  0.02,
		decaySec:   0.05,
		sustainLvl: 0.9,
		releaseSec: 0.08,
		gain:       0.35,
	},
	InstrumentStrings: {
		harmonics:  []float64{1.0, 0.35, 0.2, 0.1},
		attackSec:  0.12,
		decaySec:   0.2,
		sustainLvl: 0.8,
		releaseSec: 0.4,
		gain:       0.45,
	},
}

type envState int

const (
	envAttack envState = iota
	envDecay
	envSustain
	envRelease
	envOff
)

type voice struct {
	active    bool
	freq      float64
	phase     float64
	env       float64
	envState  envState
	pat       patch
	remaining int // frames until the envelope releases
}

// Synth is a polyphonic additive synthesizer. PlayNote may be called
// from any goroutine; Process runs on the audio thread.
type Synth struct {
	mu         sync.Mutex
	sampleRate float64
	voices     []voice
	instrument Instrument
	masterGain float64
}

type SynthOption func(*Synth)

func WithInstrument(inst Instrument) SynthOption {
	return func(s *Synth) {
		if _, ok := patches[inst]; ok {
			s.instrument = inst
		}
	}
}

func WithPolyphony(n int) SynthOption {
	return func(s *Synth) {
		if n > 0 {
			s.voices = make([]voice, n)
		}
	}
}

func NewSynth(sampleRate int, opts ...SynthOption) *Synth {
	s := &Synth{
		sampleRate: float64(sampleRate),
		voices:     make([]voice, 16),
		instrument: InstrumentPiano,
		masterGain: 0.8,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Synth) SetInstrument(inst Instrument) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := patches[inst]; ok {
		s.instrument = inst
	}
}

func (s *Synth) Instrument() Instrument {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.instrument
}

func (s *Synth) SetMasterGain(g float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.masterGain = clamp(g, 0, 1)
}

// PlayNote starts a voice for a scientific-pitch-notation note name.
// Unparseable pitches and the rest sentinel are ignored so a bad note in
// the score degrades to silence instead of failing playback.
func (s *Synth) PlayNote(pitch string, dur time.Duration) {
	if pitch == "" || pitch == score.RestPitch {
		return
	}
	midi, ok := score.MIDINote(pitch)
	if !ok {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	pat := patches[s.instrument]
	slot := s.stealVoice()
	frames := int(dur.Seconds() * s.sampleRate)
	if frames < 1 {
		frames = 1
	}
	s.voices[slot] = voice{
		active:    true,
		freq:      midiToFreq(midi),
		envState:  envAttack,
		pat:       pat,
		remaining: frames,
	}
}

// Silence releases every active voice.
func (s *Synth) Silence() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.voices {
		if s.voices[i].active {
			s.voices[i].envState = envRelease
			s.voices[i].remaining = 0
		}
	}
}

func (s *Synth) ActiveVoiceCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for i := range s.voices {
		if s.voices[i].active {
			n++
		}
	}
	return n
}

// Process renders interleaved stereo frames into dst.
func (s *Synth) Process(dst []float32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	gain := s.masterGain
	for f := 0; f < len(dst)/2; f++ {
		var sig float64
		for i := range s.voices {
			v := &s.voices[i]
			if !v.active {
				continue
			}
			advanceEnv(v, s.sampleRate)
			if v.envState == envOff {
				v.active = false
				continue
			}
			sig += sampleVoice(v) * v.env * v.pat.gain
			v.phase += twoPi * v.freq / s.sampleRate
			if v.phase > twoPi {
				v.phase -= twoPi
			}
			if v.remaining > 0 {
				v.remaining--
				if v.remaining == 0 && v.envState != envRelease {
					v.envState = envRelease
				}
			}
		}
		out := float32(clamp(sig*gain, -1, 1))
		dst[f*2] = out
		dst[f*2+1] = out
	}
}

func sampleVoice(v *voice) float64 {
	var sum, norm float64
	for k, h := range v.pat.harmonics {
		if h == 0 {
			continue
		}
		sum += h * math.Sin(v.phase*float64(k+1))
		norm += h
	}
	if norm == 0 {
		return 0
	}
	return sum / norm
}

func advanceEnv(v *voice, sampleRate float64) {
	switch v.envState {
	case envAttack:
		step := 1.0 / (v.pat.attackSec * sampleRate)
		if step <= 0 {
			step = 1
		}
		v.env += step
		if v.env >= 1 {
			v.env = 1
			v.envState = envDecay
		}
	case envDecay:
		step := (1 - v.pat.sustainLvl) / (v.pat.decaySec * sampleRate)
		if step <= 0 {
			step = 1
		}
		v.env -= step
		if v.env <= v.pat.sustainLvl {
			v.env = v.pat.sustainLvl
			v.envState = envSustain
		}
	case envSustain:
	case envRelease:
		step := v.pat.sustainLvl / (v.pat.releaseSec * sampleRate)
		if step <= 0 {
			step = 1
		}
		v.env -= step
		if v.env <= 0.0001 {
			v.env = 0
			v.envState = envOff
		}
	case envOff:
		v.env = 0
	}
}

// stealVoice prefers a free slot, then the quietest active voice.
func (s *Synth) stealVoice() int {
	for i := range s.voices {
		if !s.voices[i].active {
			return i
		}
	}
	quiet := 0
	minEnv := s.voices[0].env
	for i := 1; i < len(s.voices); i++ {
		if s.voices[i].env < minEnv {
			minEnv = s.voices[i].env
			quiet = i
		}
	}
	return quiet
}

func midiToFreq(note int) float64 {
	return 440 * math.Pow(2, float64(note-69)/12)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
