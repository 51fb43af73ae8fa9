package staveplay

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/staveplay/staveplay/internal/layout"
	"github.com/staveplay/staveplay/internal/score"
)

const twoMeasureDoc = `<?xml version="1.0" encoding="UTF-8"?>
<score-partwise version="3.1">
  <work><work-title>Scale Fragment</work-title></work>
  <part-list><score-part id="P1"><part-name>Guitar</part-name></score-part></part-list>
  <part id="P1">
    <measure number="1">
      <attributes>
        <divisions>4</divisions>
        <key><fifths>0</fifths></key>
        <time><beats>4</beats><beat-type>4</beat-type></time>
      </attributes>
      <direction><sound tempo="120"/></direction>
      <note><pitch><step>C</step><octave>4</octave></pitch><duration>4</duration><type>quarter</type></note>
      <note><pitch><step>D</step><octave>4</octave></pitch><duration>4</duration><type>quarter</type></note>
      <note><pitch><step>E</step><octave>4</octave></pitch><duration>8</duration><type>half</type></note>
    </measure>
    <measure number="2">
      <note><pitch><step>F</step><octave>4</octave></pitch><duration>8</duration><type>half</type></note>
      <note><rest/><duration>8</duration><type>half</type></note>
    </measure>
  </part>
</score-partwise>`

func newTestPlayer(t *testing.T, opts ...PlayerOption) *Player {
	t.Helper()
	p, err := NewPlayer(opts...)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(p.Close)
	return p
}

func quickScore(tempo int, pitches ...string) *score.Score {
	sc := &score.Score{Tempo: tempo, TimeSignature: "4/4"}
	m := score.Measure{}
	for _, pitch := range pitches {
		m.Notes = append(m.Notes, score.Note{Pitch: pitch, Duration: score.DurQuarter})
	}
	sc.Measures = append(sc.Measures, m)
	return sc
}

func TestNewPlayerRejectsBadSampleRate(t *testing.T) {
	if _, err := NewPlayer(WithSampleRate(0)); err == nil {
		t.Fatal("zero sample rate accepted")
	}
	if _, err := NewPlayer(WithSampleRate(-44100)); err == nil {
		t.Fatal("negative sample rate accepted")
	}
}

func TestPlayWithoutScoreFails(t *testing.T) {
	p := newTestPlayer(t)
	if err := p.PlayAll(); err == nil {
		t.Fatal("PlayAll with no score should fail")
	}
	if err := p.PlaySelection([]score.NoteRef{{}}); err == nil {
		t.Fatal("PlaySelection with no score should fail")
	}
	if st := p.State(); st.Measure != -1 || st.Note != -1 {
		t.Fatalf("idle state = %+v, want sentinel", st)
	}
}

func TestReadMusicXMLLoadsScore(t *testing.T) {
	p := newTestPlayer(t)
	if err := p.ReadMusicXML(strings.NewReader(twoMeasureDoc)); err != nil {
		t.Fatal(err)
	}
	sc := p.Score()
	if sc == nil {
		t.Fatal("no score after load")
	}
	if sc.Title != "Scale Fragment" {
		t.Fatalf("title = %q", sc.Title)
	}
	if len(sc.Measures) != 2 || sc.Tempo != 120 {
		t.Fatalf("measures=%d tempo=%d", len(sc.Measures), sc.Tempo)
	}
}

func TestPlayAllEmitsSortedNoteEvents(t *testing.T) {
	p := newTestPlayer(t)
	if err := p.ReadMusicXML(strings.NewReader(twoMeasureDoc)); err != nil {
		t.Fatal(err)
	}
	events := p.Watch()
	if err := p.PlayAll(); err != nil {
		t.Fatal(err)
	}
	select {
	case ev := <-events:
		if ev.Kind != EventNoteStarted {
			t.Fatalf("first event kind = %v", ev.Kind)
		}
		if ev.Ref != (score.NoteRef{Measure: 0, Note: 0}) {
			t.Fatalf("first note = %v", ev.Ref)
		}
	case <-time.After(time.Second):
		t.Fatal("no event within a second of Play")
	}
	p.Stop()
	if st := p.State(); st.Playing {
		t.Fatalf("state after stop = %+v", st)
	}
}

func TestPlaySelectionSortsRefs(t *testing.T) {
	p := newTestPlayer(t)
	p.LoadScore(quickScore(120, "C4", "E4", "G4"))
	events := p.Watch()
	refs := []score.NoteRef{
		{Measure: 0, Note: 2},
		{Measure: 0, Note: 0},
	}
	if err := p.PlaySelection(refs); err != nil {
		t.Fatal(err)
	}
	select {
	case ev := <-events:
		if ev.Ref != (score.NoteRef{Measure: 0, Note: 0}) {
			t.Fatalf("playback started at %v, want the earliest ref", ev.Ref)
		}
	case <-time.After(time.Second):
		t.Fatal("no event")
	}
}

func TestPlaySelectionRejectsEmpty(t *testing.T) {
	p := newTestPlayer(t)
	p.LoadScore(quickScore(120, "C4"))
	if err := p.PlaySelection(nil); err == nil {
		t.Fatal("empty selection accepted")
	}
}

func TestWaitReturnsWhenPlaybackEnds(t *testing.T) {
	p := newTestPlayer(t, WithTempo(400))
	p.LoadScore(quickScore(120, "C4"))
	if err := p.PlayAll(); err != nil {
		t.Fatal(err)
	}
	done := make(chan struct{})
	go func() {
		p.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(3 * time.Second):
		t.Fatal("Wait did not return after a single 150ms note")
	}
	if st := p.State(); st.Playing {
		t.Fatalf("state after natural end = %+v", st)
	}
}

func TestDurationUsesTempoOverride(t *testing.T) {
	p := newTestPlayer(t)
	p.LoadScore(quickScore(120, "C4", "C4", "C4", "C4"))
	if d := p.Duration(); d != 2*time.Second {
		t.Fatalf("duration at notated tempo = %v", d)
	}
	p.SetTempo(60)
	if d := p.Duration(); d != 4*time.Second {
		t.Fatalf("duration at 60 BPM = %v", d)
	}
}

func TestInstrumentSelection(t *testing.T) {
	p := newTestPlayer(t, WithInstrument(InstrumentOrgan))
	if got := p.Instrument(); got != InstrumentOrgan {
		t.Fatalf("instrument = %v", got)
	}
	p.SetInstrument(InstrumentStrings)
	if got := p.Instrument(); got != InstrumentStrings {
		t.Fatalf("instrument after set = %v", got)
	}
}

func TestGeometryRequiresScore(t *testing.T) {
	p := newTestPlayer(t)
	if _, _, err := p.Geometry(layout.DefaultConfig()); err == nil {
		t.Fatal("geometry with no score should fail")
	}
	p.LoadScore(quickScore(120, "C4", "E4"))
	plan, g, err := p.Geometry(layout.DefaultConfig())
	if err != nil {
		t.Fatal(err)
	}
	if plan.TotalRows != 1 || len(g.Notes) != 2 {
		t.Fatalf("rows=%d notes=%d", plan.TotalRows, len(g.Notes))
	}
}

func TestRenderWAVWritesFile(t *testing.T) {
	p := newTestPlayer(t, WithSampleRate(8000))
	p.LoadScore(quickScore(240, "C4", "E4"))
	path := filepath.Join(t.TempDir(), "out.wav")
	if err := p.RenderWAV(path); err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(data) < 44 || string(data[:4]) != "RIFF" || string(data[8:12]) != "WAVE" {
		t.Fatalf("not a WAV file, %d bytes", len(data))
	}
}

func TestLoadScoreReplacesEngine(t *testing.T) {
	p := newTestPlayer(t)
	p.LoadScore(quickScore(120, "C4"))
	if err := p.PlayAll(); err != nil {
		t.Fatal(err)
	}
	p.LoadScore(quickScore(120, "D4", "E4"))
	if st := p.State(); st.Playing {
		t.Fatalf("playback survived a score swap: %+v", st)
	}
	if got := len(p.Score().AllRefs()); got != 2 {
		t.Fatalf("new score has %d refs", got)
	}
}
