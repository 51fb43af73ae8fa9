// Package playback drives timed advancement through a note sequence,
// triggering audio cues and publishing the position data the indicator
// needs. Position is always re-derived from absolute elapsed time, never
// accumulated tick to tick, so jittery tick rates cannot drift it.
package playback

import (
	"sync"
	"time"

	gamelog "github.com/staveplay/staveplay/internal/log"
	"github.com/staveplay/staveplay/internal/score"
)

// Sink receives audio cues. PlayNote is called once per non-rest note at
// its scheduled start; rests consume time without a cue.
type Sink interface {
	PlayNote(pitch string, dur time.Duration)
}

type EventKind int

const (
	EventNoteStarted EventKind = iota
	EventLoopCompleted
	EventPlaybackEnded
)

type Event struct {
	Kind EventKind
	Ref  score.NoteRef
}

// LoopRange is a practice loop in quarter-note beat offsets from the start
// of the score. SkipBeats is the silent pause between repeats; zero or
// negative means no pause (plain looping), never a zero-length cycle.
type LoopRange struct {
	StartBeat float64
	EndBeat   float64
	SkipBeats float64
}

// State is a snapshot of the scheduler for the UI.
type State struct {
	Playing      bool
	Paused       bool
	Measure      int // -1 when stopped
	Note         int // -1 when stopped
	Progress     float64 // 0-100 percent of total duration
	NoteProgress float64 // 0-1 within the current note
	LastNote     bool
	Elapsed      time.Duration
	Total        time.Duration
	LoopEnabled  bool
	Loop         *LoopRange
	SkipPhase    bool
}

// Scheduler is the playback state machine: stopped -> playing <-> paused
// -> stopped. Tick must be called periodically while playing (the Engine
// wrapper owns that); the clock is injectable for tests.
type Scheduler struct {
	mu     sync.Mutex
	logger *gamelog.Logger
	sink   Sink
	now    func() time.Time

	sc    *score.Score
	tempo int // requested tempo; captured into secPerBeat on Play

	seq    []score.NoteRef
	starts []time.Duration
	durs   []time.Duration
	total  time.Duration

	secPerBeat float64

	playing       bool
	paused        bool
	startedAt     time.Time
	pausedElapsed time.Duration
	cursor        int
	noteProgress  float64

	loopEnabled bool
	loop        *LoopRange
	loopRef     score.NoteRef
	haveLoopRef bool
	skipPhase   bool

	onEvent func(Event)
}

func NewScheduler(sc *score.Score, sink Sink, logger *gamelog.Logger) *Scheduler {
	if logger == nil {
		logger = gamelog.Discard()
	}
	tempo := 120
	if sc != nil && sc.Tempo > 0 {
		tempo = sc.Tempo
	}
	return &Scheduler{
		logger: logger,
		sink:   sink,
		now:    time.Now,
		sc:     sc,
		tempo:  tempo,
	}
}

// SetTempo sets the tempo used by the next Play call. Tempo is captured
// once per play invocation; already-running playback keeps its durations.
func (s *Scheduler) SetTempo(bpm int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if bpm > 0 {
		s.tempo = bpm
	}
}

func (s *Scheduler) Tempo() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tempo
}

// SetLoop arms or disarms looping. A nil rng with enabled=true loops the
// whole played sequence back to back.
func (s *Scheduler) SetLoop(enabled bool, rng *LoopRange) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loopEnabled = enabled
	s.loop = rng
	s.haveLoopRef = false
	s.skipPhase = false
}

// OnEvent installs the event callback. Called synchronously from Tick;
// keep it brief.
func (s *Scheduler) OnEvent(fn func(Event)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onEvent = fn
}

// Play starts playback of a note sequence. The caller supplies refs
// pre-sorted in (measure, note) ascending order; the scheduler does not
// sort. An empty sequence is a no-op.
func (s *Scheduler) Play(refs []score.NoteRef) {
	s.mu.Lock()
	if s.sc == nil || len(refs) == 0 {
		s.mu.Unlock()
		return
	}
	s.seq = make([]score.NoteRef, len(refs))
	copy(s.seq, refs)

	s.secPerBeat = (60.0 / float64(s.tempo)) * (4.0 / float64(s.sc.BeatValue()))
	s.starts = make([]time.Duration, len(s.seq))
	s.durs = make([]time.Duration, len(s.seq))
	var acc time.Duration
	for i, ref := range s.seq {
		s.starts[i] = acc
		d := time.Duration(s.secPerBeat * float64(time.Second)) // stale-ref fallback
		if n, ok := s.sc.NoteAt(ref); ok {
			d = time.Duration(n.Beats() * s.secPerBeat * float64(time.Second))
		}
		s.durs[i] = d
		acc += d
	}
	s.total = acc

	s.playing = true
	s.paused = false
	s.startedAt = s.now()
	s.pausedElapsed = 0
	s.cursor = 0
	s.noteProgress = 0
	s.haveLoopRef = false
	s.skipPhase = false
	skipLoop := s.loopEnabled && s.loop != nil
	s.mu.Unlock()

	s.logger.Debugf("[PLAYBACK] play: %d notes, %v total", len(refs), acc)
	// First note fires immediately; with a skip-loop armed the first tick
	// resolves and cues it instead, so the loop start isn't cued twice.
	if !skipLoop {
		s.cueCursor()
	}
}

// Pause freezes playback, preserving position for Resume.
func (s *Scheduler) Pause() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.playing || s.paused {
		return
	}
	s.pausedElapsed = s.now().Sub(s.startedAt)
	s.paused = true
}

// Resume continues from the paused position.
func (s *Scheduler) Resume() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.playing || !s.paused {
		return
	}
	s.startedAt = s.now().Add(-s.pausedElapsed)
	s.paused = false
}

// Stop halts playback and resets position to the stopped sentinel.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	wasPlaying := s.playing
	s.playing = false
	s.paused = false
	s.cursor = 0
	s.noteProgress = 0
	s.haveLoopRef = false
	s.skipPhase = false
	fn := s.onEvent
	s.mu.Unlock()
	if wasPlaying && fn != nil {
		fn(Event{Kind: EventPlaybackEnded})
	}
}

func (s *Scheduler) elapsed() time.Duration {
	if !s.playing {
		return 0
	}
	if s.paused {
		return s.pausedElapsed
	}
	return s.now().Sub(s.startedAt)
}

// Tick advances the state machine from the current wall-clock time. Safe
// to call at any rate; each call recomputes position from elapsed time.
func (s *Scheduler) Tick() {
	s.mu.Lock()
	if !s.playing || s.paused {
		s.mu.Unlock()
		return
	}
	if s.loopEnabled && s.loop != nil {
		s.tickSkipLoopLocked()
		return // tickSkipLoopLocked unlocks
	}
	s.tickSequenceLocked()
}

// tickSequenceLocked handles plain sequential playback and whole-sequence
// looping. Unlocks s.mu before invoking callbacks.
func (s *Scheduler) tickSequenceLocked() {
	el := s.elapsed()
	if el >= s.total {
		if s.loopEnabled {
			// Restart with no gap, carrying the overshoot into the next
			// cycle so repeated loops don't drift.
			s.startedAt = s.startedAt.Add(s.total)
			s.cursor = 0
			s.noteProgress = 0
			fn := s.onEvent
			s.mu.Unlock()
			if fn != nil {
				fn(Event{Kind: EventLoopCompleted})
			}
			s.cueCursor()
			return
		}
		s.playing = false
		s.paused = false
		s.cursor = 0
		s.noteProgress = 0
		fn := s.onEvent
		s.mu.Unlock()
		if fn != nil {
			fn(Event{Kind: EventPlaybackEnded})
		}
		return
	}
	var due []int
	for s.cursor+1 < len(s.seq) && el >= s.starts[s.cursor+1] {
		s.cursor++
		due = append(due, s.cursor)
	}
	if d := s.durs[s.cursor]; d > 0 {
		s.noteProgress = clamp01(float64(el-s.starts[s.cursor]) / float64(d))
	}
	s.mu.Unlock()
	for _, i := range due {
		s.cueIndex(i)
	}
}

// tickSkipLoopLocked implements the play-N-beats, skip-M-beats practice
// discipline. cycleTime is always recomputed from absolute elapsed time.
func (s *Scheduler) tickSkipLoopLocked() {
	lr := *s.loop
	playBeats := lr.EndBeat - lr.StartBeat
	if playBeats <= 0 {
		// Degenerate range; fall back to plain sequence handling.
		s.tickSequenceLocked()
		return
	}
	playDur := time.Duration(playBeats * s.secPerBeat * float64(time.Second))
	skipBeats := lr.SkipBeats
	if skipBeats < 0 {
		skipBeats = 0
	}
	skipDur := time.Duration(skipBeats * s.secPerBeat * float64(time.Second))
	cycle := playDur + skipDur

	el := s.elapsed()
	ct := el % cycle

	if ct >= playDur {
		// Skip phase: silent, indicator frozen at the end of the range.
		ref, _, ok := s.sc.ResolveBeat(lr.EndBeat - 1e-9)
		wasPlaying := !s.skipPhase
		s.skipPhase = true
		s.haveLoopRef = false
		if ok {
			s.cursor = s.indexOf(ref)
			s.noteProgress = 1
		}
		fn := s.onEvent
		s.mu.Unlock()
		if wasPlaying && fn != nil {
			fn(Event{Kind: EventLoopCompleted})
		}
		return
	}

	s.skipPhase = false
	beat := lr.StartBeat + float64(ct)/float64(time.Second)/s.secPerBeat
	ref, prog, ok := s.sc.ResolveBeat(beat)
	if !ok {
		s.mu.Unlock()
		return
	}
	s.cursor = s.indexOf(ref)
	s.noteProgress = prog
	changed := !s.haveLoopRef || ref != s.loopRef
	s.loopRef = ref
	s.haveLoopRef = true
	sc := s.sc
	sink := s.sink
	fn := s.onEvent
	dur := time.Duration(0)
	var note score.Note
	if n, okNote := sc.NoteAt(ref); okNote {
		note = n
		dur = time.Duration(n.Beats() * s.secPerBeat * float64(time.Second))
	}
	s.mu.Unlock()
	if changed {
		if !note.IsRest && note.Pitch != "" && sink != nil {
			sink.PlayNote(note.Pitch, dur)
		}
		if fn != nil {
			fn(Event{Kind: EventNoteStarted, Ref: ref})
		}
	}
}

// indexOf locates a ref in the active sequence, or keeps the cursor where
// it is for refs outside the played selection.
func (s *Scheduler) indexOf(ref score.NoteRef) int {
	for i, r := range s.seq {
		if r == ref {
			return i
		}
	}
	return s.cursor
}

// cueCursor fires the audio cue for the note at the current cursor.
func (s *Scheduler) cueCursor() {
	s.mu.Lock()
	i := s.cursor
	s.mu.Unlock()
	s.cueIndex(i)
}

func (s *Scheduler) cueIndex(i int) {
	s.mu.Lock()
	if i < 0 || i >= len(s.seq) {
		s.mu.Unlock()
		return
	}
	ref := s.seq[i]
	dur := s.durs[i]
	sink := s.sink
	fn := s.onEvent
	n, ok := s.sc.NoteAt(ref)
	s.mu.Unlock()
	if !ok {
		// Stale ref: consume the slot silently and let the next tick
		// carry on. Render caches can lag logical state during reloads.
		s.logger.Warnf("[PLAYBACK] stale ref %d:%d skipped", ref.Measure, ref.Note)
		return
	}
	if !n.IsRest && n.Pitch != "" && sink != nil {
		sink.PlayNote(n.Pitch, dur)
	}
	if fn != nil {
		fn(Event{Kind: EventNoteStarted, Ref: ref})
	}
}

// State snapshots the scheduler for rendering. Stopped playback reports
// the sentinel position (-1, -1, zero progress).
func (s *Scheduler) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := State{
		Playing:     s.playing,
		Paused:      s.paused,
		Measure:     -1,
		Note:        -1,
		LoopEnabled: s.loopEnabled,
		Loop:        s.loop,
		SkipPhase:   s.skipPhase,
		Total:       s.total,
	}
	if !s.playing {
		return st
	}
	st.Elapsed = s.elapsed()
	if s.total > 0 {
		st.Progress = clamp01(float64(st.Elapsed)/float64(s.total)) * 100
	}
	if s.cursor >= 0 && s.cursor < len(s.seq) {
		ref := s.seq[s.cursor]
		st.Measure = ref.Measure
		st.Note = ref.Note
		st.LastNote = s.cursor == len(s.seq)-1
	}
	st.NoteProgress = s.noteProgress
	return st
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
