package playback

import (
	"testing"
	"time"

	"github.com/staveplay/staveplay/internal/score"
)

type fakeClock struct{ t time.Time }

func newFakeClock() *fakeClock               { return &fakeClock{t: time.Unix(100, 0)} }
func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

type cue struct {
	pitch string
	dur   time.Duration
}

type recordingSink struct{ cues []cue }

func (r *recordingSink) PlayNote(pitch string, dur time.Duration) {
	r.cues = append(r.cues, cue{pitch, dur})
}

func quarterScore(tempo int, measures ...[]string) *score.Score {
	s := &score.Score{Tempo: tempo, TimeSignature: "4/4"}
	for mi, pitches := range measures {
		m := score.Measure{Index: mi}
		for _, p := range pitches {
			n := score.Note{Pitch: p, Duration: score.DurQuarter}
			if p == score.RestPitch {
				n.IsRest = true
			}
			m.Notes = append(m.Notes, n)
		}
		s.Measures = append(s.Measures, m)
	}
	return s
}

func TestPlayStepsThroughSequence(t *testing.T) {
	sc := quarterScore(120, []string{"C4", "D4"}, []string{"E4", "F4"})
	sink := &recordingSink{}
	clk := newFakeClock()
	s := NewScheduler(sc, sink, nil)
	s.now = clk.now

	var events []Event
	s.OnEvent(func(ev Event) { events = append(events, ev) })

	s.Play(sc.AllRefs())
	if len(sink.cues) != 1 || sink.cues[0].pitch != "C4" {
		t.Fatalf("first note should fire immediately, cues=%v", sink.cues)
	}
	if d := sink.cues[0].dur; d != 500*time.Millisecond {
		t.Fatalf("quarter at 120 BPM = %v, want 500ms", d)
	}

	want := []string{"C4", "D4", "E4", "F4"}
	for i := 1; i < 4; i++ {
		clk.advance(500 * time.Millisecond)
		s.Tick()
		if len(sink.cues) != i+1 || sink.cues[i].pitch != want[i] {
			t.Fatalf("after %d ticks cues=%v", i, sink.cues)
		}
	}

	st := s.State()
	if !st.Playing || st.Measure != 1 || st.Note != 1 || !st.LastNote {
		t.Fatalf("state before end = %+v", st)
	}

	clk.advance(500 * time.Millisecond)
	s.Tick()
	st = s.State()
	if st.Playing || st.Measure != -1 || st.Note != -1 || st.Progress != 0 {
		t.Fatalf("state after end = %+v", st)
	}
	if len(events) == 0 || events[len(events)-1].Kind != EventPlaybackEnded {
		t.Fatalf("expected trailing EventPlaybackEnded, events=%v", events)
	}
}

func TestRestsConsumeTimeWithoutAudio(t *testing.T) {
	sc := quarterScore(120, []string{"C4", "rest", "E4"})
	sink := &recordingSink{}
	clk := newFakeClock()
	s := NewScheduler(sc, sink, nil)
	s.now = clk.now
	s.Play(sc.AllRefs())

	clk.advance(500 * time.Millisecond)
	s.Tick() // rest starts: no cue
	if len(sink.cues) != 1 {
		t.Fatalf("rest produced a cue: %v", sink.cues)
	}
	clk.advance(500 * time.Millisecond)
	s.Tick()
	if len(sink.cues) != 2 || sink.cues[1].pitch != "E4" {
		t.Fatalf("note after rest late or missing: %v", sink.cues)
	}
}

func TestWholeSequenceLoopRestartsWithNoGap(t *testing.T) {
	sc := quarterScore(120, []string{"C4", "D4"})
	sink := &recordingSink{}
	clk := newFakeClock()
	s := NewScheduler(sc, sink, nil)
	s.now = clk.now
	s.SetLoop(true, nil)

	var events []Event
	s.OnEvent(func(ev Event) { events = append(events, ev) })
	s.Play(sc.AllRefs())

	clk.advance(500 * time.Millisecond)
	s.Tick()
	clk.advance(500 * time.Millisecond)
	s.Tick() // wraps
	if len(events) == 0 || events[len(events)-1].Kind != EventNoteStarted {
		t.Fatalf("events = %v", events)
	}
	sawLoop := false
	for _, ev := range events {
		if ev.Kind == EventLoopCompleted {
			sawLoop = true
		}
		if ev.Kind == EventPlaybackEnded {
			t.Fatal("looping playback must not end")
		}
	}
	if !sawLoop {
		t.Fatalf("expected a loop completion, events=%v", events)
	}
	if last := sink.cues[len(sink.cues)-1]; last.pitch != "C4" {
		t.Fatalf("loop should restart at the first note, cues=%v", sink.cues)
	}
	if st := s.State(); !st.Playing {
		t.Fatal("still playing after wrap")
	}
}

func TestPauseResumePreservesPosition(t *testing.T) {
	sc := quarterScore(120, []string{"C4", "D4", "E4", "F4"})
	sink := &recordingSink{}
	clk := newFakeClock()
	s := NewScheduler(sc, sink, nil)
	s.now = clk.now
	s.Play(sc.AllRefs())

	clk.advance(700 * time.Millisecond)
	s.Tick()
	s.Pause()
	st := s.State()
	if !st.Paused || st.Measure != 0 || st.Note != 1 {
		t.Fatalf("paused state = %+v", st)
	}

	// Time passes while paused; position must not move.
	clk.advance(10 * time.Second)
	s.Tick()
	if got := s.State(); got.Elapsed != st.Elapsed {
		t.Fatalf("elapsed drifted while paused: %v -> %v", st.Elapsed, got.Elapsed)
	}

	s.Resume()
	clk.advance(300 * time.Millisecond)
	s.Tick() // now at 1.0s: note index 2
	if got := s.State(); got.Measure != 0 || got.Note != 2 {
		t.Fatalf("state after resume = %+v", got)
	}
}

func TestLoopWithSkipPhaseDeterminism(t *testing.T) {
	// 8 quarter notes at 120 BPM: loop beats 0-4 with a 4 beat skip gives
	// playDuration 2s, skipDuration 2s, cycleDuration 4s.
	sc := quarterScore(120,
		[]string{"C4", "D4", "E4", "F4"},
		[]string{"G4", "A4", "B4", "C5"},
	)
	sink := &recordingSink{}
	clk := newFakeClock()
	s := NewScheduler(sc, sink, nil)
	s.now = clk.now
	s.SetLoop(true, &LoopRange{StartBeat: 0, EndBeat: 4, SkipBeats: 4})
	s.Play(sc.AllRefs())

	// t=1.5s: playing phase, beat 3 => fourth note.
	clk.advance(1500 * time.Millisecond)
	s.Tick()
	st := s.State()
	if st.SkipPhase {
		t.Fatalf("t=1.5s should be the playing phase: %+v", st)
	}
	if st.Measure != 0 || st.Note != 3 {
		t.Fatalf("t=1.5s position = %d:%d, want 0:3", st.Measure, st.Note)
	}

	// t=3.0s: skip phase, silent, indicator frozen at end of range.
	clk.advance(1500 * time.Millisecond)
	cuesBefore := len(sink.cues)
	s.Tick()
	st = s.State()
	if !st.SkipPhase {
		t.Fatalf("t=3.0s should be the skip phase: %+v", st)
	}
	if len(sink.cues) != cuesBefore {
		t.Fatalf("skip phase cued audio: %v", sink.cues)
	}
	if st.NoteProgress != 1 {
		t.Fatalf("indicator should freeze at range end, progress=%v", st.NoteProgress)
	}

	// t=4.5s: next cycle, playing again at beat 1.
	clk.advance(1500 * time.Millisecond)
	s.Tick()
	st = s.State()
	if st.SkipPhase || st.Measure != 0 || st.Note != 1 {
		t.Fatalf("t=4.5s state = %+v", st)
	}
}

func TestLoopSkipZeroMeansPlainLoop(t *testing.T) {
	sc := quarterScore(120, []string{"C4", "D4", "E4", "F4"})
	sink := &recordingSink{}
	clk := newFakeClock()
	s := NewScheduler(sc, sink, nil)
	s.now = clk.now
	s.SetLoop(true, &LoopRange{StartBeat: 0, EndBeat: 4, SkipBeats: 0})
	s.Play(sc.AllRefs())

	// Walk well past several cycle lengths; the skip phase must never appear.
	for i := 0; i < 20; i++ {
		clk.advance(300 * time.Millisecond)
		s.Tick()
		if st := s.State(); st.SkipPhase {
			t.Fatalf("tick %d entered a skip phase with skipBeats=0", i)
		}
	}
}

func TestStopResetsToSentinel(t *testing.T) {
	sc := quarterScore(120, []string{"C4", "D4"})
	clk := newFakeClock()
	s := NewScheduler(sc, &recordingSink{}, nil)
	s.now = clk.now
	s.Play(sc.AllRefs())
	clk.advance(600 * time.Millisecond)
	s.Tick()
	s.Stop()
	st := s.State()
	if st.Playing || st.Paused || st.Measure != -1 || st.Note != -1 || st.Progress != 0 {
		t.Fatalf("stopped state = %+v", st)
	}
	// Further ticks are no-ops.
	clk.advance(time.Second)
	s.Tick()
	if st := s.State(); st.Playing {
		t.Fatal("tick revived stopped playback")
	}
}

func TestStaleRefsAreSkippedSilently(t *testing.T) {
	sc := quarterScore(120, []string{"C4"})
	sink := &recordingSink{}
	clk := newFakeClock()
	s := NewScheduler(sc, sink, nil)
	s.now = clk.now
	refs := []score.NoteRef{
		{Measure: 0, Note: 0},
		{Measure: 0, Note: 7}, // beyond the measure's note count
		{Measure: 9, Note: 0}, // beyond the score
	}
	s.Play(refs)
	for i := 0; i < 5; i++ {
		clk.advance(500 * time.Millisecond)
		s.Tick()
	}
	if len(sink.cues) != 1 || sink.cues[0].pitch != "C4" {
		t.Fatalf("cues = %v, want only C4", sink.cues)
	}
	if st := s.State(); st.Playing {
		t.Fatal("playback should have ended")
	}
}

func TestEmptySequenceIsANoOp(t *testing.T) {
	sc := quarterScore(120, []string{"C4"})
	s := NewScheduler(sc, &recordingSink{}, nil)
	s.Play(nil)
	if st := s.State(); st.Playing {
		t.Fatal("empty play should not start")
	}
}

func TestTempoCapturedPerPlayInvocation(t *testing.T) {
	sc := quarterScore(120, []string{"C4", "D4"})
	sink := &recordingSink{}
	clk := newFakeClock()
	s := NewScheduler(sc, sink, nil)
	s.now = clk.now
	s.SetTempo(60) // quarter = 1s
	s.Play(sc.AllRefs())
	if d := sink.cues[0].dur; d != time.Second {
		t.Fatalf("quarter at 60 BPM = %v, want 1s", d)
	}
	// A tempo change mid-playback does not retime scheduled notes.
	s.SetTempo(240)
	clk.advance(999 * time.Millisecond)
	s.Tick()
	if len(sink.cues) != 1 {
		t.Fatalf("note fired early after mid-play tempo change: %v", sink.cues)
	}
	clk.advance(2 * time.Millisecond)
	s.Tick()
	if len(sink.cues) != 2 {
		t.Fatalf("second note missing: %v", sink.cues)
	}
}
