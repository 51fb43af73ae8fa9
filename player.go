// Package staveplay is a sheet-music practice player: it loads MusicXML
// scores, lays them out on wrapped staves, resolves pointer selections to
// note ranges, and plays them back with a position indicator and a
// loop-with-skip practice mode.
package staveplay

import (
	"errors"
	"io"
	"sort"
	"sync"
	"time"

	intaudio "github.com/staveplay/staveplay/internal/audio"
	"github.com/staveplay/staveplay/internal/layout"
	gamelog "github.com/staveplay/staveplay/internal/log"
	"github.com/staveplay/staveplay/internal/musicxml"
	"github.com/staveplay/staveplay/internal/notation"
	"github.com/staveplay/staveplay/internal/playback"
	"github.com/staveplay/staveplay/internal/score"
)

// Re-exported playback types so callers outside internal/ can consume
// events and state without a second import.
type (
	PlaybackEvent = playback.Event
	PlaybackState = playback.State
	LoopRange     = playback.LoopRange
	Instrument    = intaudio.Instrument
)

const (
	EventNoteStarted   = playback.EventNoteStarted
	EventLoopCompleted = playback.EventLoopCompleted
	EventPlaybackEnded = playback.EventPlaybackEnded
)

const (
	InstrumentPiano   = intaudio.InstrumentPiano
	InstrumentOrgan   = intaudio.InstrumentOrgan
	InstrumentStrings = intaudio.InstrumentStrings
)

type PlayerOption func(*playerConfig)

type playerConfig struct {
	sampleRate  int
	instrument  Instrument
	tempo       int
	audioDevice bool
	logger      *gamelog.Logger
}

func defaultPlayerConfig() playerConfig {
	return playerConfig{
		sampleRate: 48000,
		instrument: InstrumentPiano,
	}
}

func WithSampleRate(rate int) PlayerOption {
	return func(cfg *playerConfig) { cfg.sampleRate = rate }
}

func WithInstrument(inst Instrument) PlayerOption {
	return func(cfg *playerConfig) { cfg.instrument = inst }
}

// WithTempo overrides the score's notated tempo for playback.
func WithTempo(bpm int) PlayerOption {
	return func(cfg *playerConfig) { cfg.tempo = bpm }
}

// WithAudioDevice opens the platform audio output. Without it the player
// runs silent, which is what tests and offline rendering want.
func WithAudioDevice() PlayerOption {
	return func(cfg *playerConfig) { cfg.audioDevice = true }
}

func WithLogger(l *gamelog.Logger) PlayerOption {
	return func(cfg *playerConfig) { cfg.logger = l }
}

// Player is the library facade: one loaded score, one playback engine,
// one synthesizer. Safe for concurrent use.
type Player struct {
	mu         sync.Mutex
	logger     *gamelog.Logger
	sampleRate int
	tempoOver  int

	sc     *score.Score
	synth  *intaudio.Synth
	engine *playback.Engine
	device *intaudio.Player

	engineStop chan struct{}
	done       chan struct{}

	eventCh   chan PlaybackEvent
	eventChMu sync.Mutex
}

func NewPlayer(opts ...PlayerOption) (*Player, error) {
	cfg := defaultPlayerConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.sampleRate <= 0 {
		return nil, errors.New("sample rate must be positive")
	}
	logger := cfg.logger
	if logger == nil {
		logger = gamelog.Discard()
	}
	p := &Player{
		logger:     logger,
		sampleRate: cfg.sampleRate,
		tempoOver:  cfg.tempo,
		synth:      intaudio.NewSynth(cfg.sampleRate, intaudio.WithInstrument(cfg.instrument)),
	}
	if cfg.audioDevice {
		dev, err := intaudio.NewPlayer(cfg.sampleRate, p.synth)
		if err != nil {
			return nil, err
		}
		p.device = dev
		p.device.Play()
	}
	return p, nil
}

// LoadMusicXML loads a score from a .musicxml/.xml/.mxl file.
func (p *Player) LoadMusicXML(path string) error {
	sc, err := musicxml.ParseFile(path)
	if err != nil {
		return err
	}
	p.LoadScore(sc)
	return nil
}

// ReadMusicXML loads a score from a reader holding a plain document.
func (p *Player) ReadMusicXML(r io.Reader) error {
	sc, err := musicxml.Parse(r)
	if err != nil {
		return err
	}
	p.LoadScore(sc)
	return nil
}

// LoadScore installs an already-parsed score, replacing any previous one
// and stopping playback.
func (p *Player) LoadScore(sc *score.Score) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.teardownEngineLocked()

	p.sc = sc
	engine := playback.NewEngine(sc, p.synth, p.logger)
	if p.tempoOver > 0 {
		engine.Sched.SetTempo(p.tempoOver)
	}
	stop := make(chan struct{})
	p.engine = engine
	p.engineStop = stop
	go p.forwardEvents(engine, stop)
}

func (p *Player) teardownEngineLocked() {
	if p.engine != nil {
		p.engine.Close()
		close(p.engineStop)
		p.engine = nil
		p.engineStop = nil
	}
	p.signalDoneLocked()
}

// forwardEvents fans engine events out to the Watch channel and closes
// the done channel when playback ends.
func (p *Player) forwardEvents(engine *playback.Engine, stop chan struct{}) {
	for {
		select {
		case ev := <-engine.Events:
			p.sendEvent(ev)
			if ev.Kind == playback.EventPlaybackEnded {
				p.mu.Lock()
				p.signalDoneLocked()
				p.mu.Unlock()
			}
		case <-stop:
			return
		}
	}
}

func (p *Player) sendEvent(ev PlaybackEvent) {
	p.eventChMu.Lock()
	ch := p.eventCh
	p.eventChMu.Unlock()
	if ch != nil {
		select {
		case ch <- ev:
		default:
			// Slow consumer; drop rather than stall the tick loop.
		}
	}
}

func (p *Player) signalDoneLocked() {
	if p.done != nil {
		close(p.done)
		p.done = nil
	}
}

// Score returns the loaded score, or nil.
func (p *Player) Score() *score.Score {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.sc
}

// Geometry lays the loaded score out with the given config and returns
// the layout plan and geometry snapshot.
func (p *Player) Geometry(cfg layout.Config) (layout.Plan, *layout.Geometry, error) {
	p.mu.Lock()
	sc := p.sc
	p.mu.Unlock()
	if sc == nil {
		return layout.Plan{}, nil, errors.New("no score loaded")
	}
	plan, g := notation.BuildGeometry(sc, cfg)
	return plan, g, nil
}

// PlayAll plays the whole score from the top.
func (p *Player) PlayAll() error {
	p.mu.Lock()
	sc := p.sc
	p.mu.Unlock()
	if sc == nil {
		return errors.New("no score loaded")
	}
	return p.PlaySelection(sc.AllRefs())
}

// PlaySelection plays a set of notes in score order. The refs may arrive
// in any order; stale refs are skipped during playback.
func (p *Player) PlaySelection(refs []score.NoteRef) error {
	p.mu.Lock()
	engine := p.engine
	if engine == nil {
		p.mu.Unlock()
		return errors.New("no score loaded")
	}
	if len(refs) == 0 {
		p.mu.Unlock()
		return errors.New("empty selection")
	}
	sorted := make([]score.NoteRef, len(refs))
	copy(sorted, refs)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Less(sorted[j]) })
	p.signalDoneLocked()
	p.done = make(chan struct{})
	p.mu.Unlock()

	engine.Play(sorted)
	return nil
}

func (p *Player) Pause() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.engine != nil {
		p.engine.Pause()
	}
}

func (p *Player) Resume() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.engine != nil {
		p.engine.Resume()
	}
}

func (p *Player) Stop() {
	p.mu.Lock()
	engine := p.engine
	p.mu.Unlock()
	if engine != nil {
		engine.Stop()
	}
	p.synth.Silence()
}

// Close stops playback and releases the engine and audio device.
func (p *Player) Close() {
	p.mu.Lock()
	p.teardownEngineLocked()
	device := p.device
	p.device = nil
	p.mu.Unlock()
	if device != nil {
		_ = device.Stop()
	}
}

// Wait blocks until the current playback ends or is replaced. Returns
// immediately when nothing is playing.
func (p *Player) Wait() {
	p.mu.Lock()
	done := p.done
	p.mu.Unlock()
	if done != nil {
		<-done
	}
}

// Watch returns a buffered channel of playback events. Only the most
// recent Watch channel receives events; call it before playing.
func (p *Player) Watch() <-chan PlaybackEvent {
	ch := make(chan PlaybackEvent, 8)
	p.eventChMu.Lock()
	p.eventCh = ch
	p.eventChMu.Unlock()
	return ch
}

// State snapshots the playback position.
func (p *Player) State() PlaybackState {
	p.mu.Lock()
	engine := p.engine
	p.mu.Unlock()
	if engine == nil {
		return PlaybackState{Measure: -1, Note: -1}
	}
	return engine.State()
}

// SetTempo changes the tempo used by the next play call.
func (p *Player) SetTempo(bpm int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.tempoOver = bpm
	if p.engine != nil {
		p.engine.Sched.SetTempo(bpm)
	}
}

func (p *Player) Tempo() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.engine != nil {
		return p.engine.Sched.Tempo()
	}
	return p.tempoOver
}

// SetLoop arms or disarms looping; a nil rng loops the whole sequence.
func (p *Player) SetLoop(enabled bool, rng *LoopRange) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.engine != nil {
		p.engine.Sched.SetLoop(enabled, rng)
	}
}

// SetMasterVolume scales the synthesizer output. Values are clamped to
// the 0..1 range inside the synth.
func (p *Player) SetMasterVolume(v float64) {
	p.synth.SetMasterGain(v)
}

func (p *Player) SetInstrument(inst Instrument) {
	p.synth.SetInstrument(inst)
}

func (p *Player) Instrument() Instrument {
	return p.synth.Instrument()
}

// RenderWAV renders the loaded score offline to a stereo WAV file.
func (p *Player) RenderWAV(path string) error {
	p.mu.Lock()
	sc := p.sc
	inst := p.synth.Instrument()
	rate := p.sampleRate
	p.mu.Unlock()
	if sc == nil {
		return errors.New("no score loaded")
	}
	return intaudio.WriteWAV(path, sc, rate, intaudio.WithInstrument(inst))
}

// Duration is the wall-clock length of the loaded score at the playback
// tempo.
func (p *Player) Duration() time.Duration {
	p.mu.Lock()
	sc := p.sc
	tempo := p.tempoOver
	p.mu.Unlock()
	if sc == nil {
		return 0
	}
	if tempo > 0 {
		scaled := *sc
		scaled.Tempo = tempo
		return scaled.BeatsToDuration(scaled.TotalBeats())
	}
	return sc.BeatsToDuration(sc.TotalBeats())
}
