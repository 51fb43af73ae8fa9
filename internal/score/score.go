package score

import (
	"strconv"
	"strings"
	"time"
)

// Duration is a note length code. Beat counts are quarter-note relative.
type Duration string

const (
	DurWhole        Duration = "whole"
	DurHalf         Duration = "half"
	DurQuarter      Duration = "quarter"
	DurEighth       Duration = "eighth"
	DurSixteenth    Duration = "sixteenth"
	DurThirtySecond Duration = "thirtysecond"
	DurSixtyFourth  Duration = "sixtyfourth"
)

// Beats returns the quarter-note-relative beat count for the code.
// Unknown codes read as a quarter note so malformed input stays audible
// instead of collapsing to zero-length notes.
func (d Duration) Beats() float64 {
	switch d {
	case DurWhole:
		return 4
	case DurHalf:
		return 2
	case DurQuarter:
		return 1
	case DurEighth:
		return 0.5
	case DurSixteenth:
		return 0.25
	case DurThirtySecond:
		return 0.125
	case DurSixtyFourth:
		return 0.0625
	default:
		return 1
	}
}

// Note is a single event in a measure. Pitch is scientific pitch notation
// ("C4", "F#3") or the "rest" sentinel when IsRest is set.
type Note struct {
	Pitch      string
	Duration   Duration
	IsRest     bool
	Dots       int
	Accidental string
	TiedToNext bool
	Voice      int
}

// Beats returns the note's beat count with dot augmentation applied.
// Each dot adds half of the previous value: 1 dot = 1.5x, 2 dots = 1.75x.
func (n Note) Beats() float64 {
	base := n.Duration.Beats()
	add := base / 2
	for i := 0; i < n.Dots; i++ {
		base += add
		add /= 2
	}
	return base
}

type Measure struct {
	Index         int
	Notes         []Note
	TimeSignature string // per-measure override, "" inherits the score's
	KeySignature  string
}

// Score is the parsed piece. Immutable once produced by a parser.
type Score struct {
	Title         string
	Composer      string
	Measures      []Measure
	Tempo         int    // beats per minute
	TimeSignature string // "N/D"
	KeySignature  string
	Divisions     int // source time base, only meaningful during parsing
}

// NoteRef identifies a note by position. Notes are re-derived on every
// render pass, so the (measure, note) pair is the only stable identity.
type NoteRef struct {
	Measure int
	Note    int
}

// Less orders refs measure-major, note-minor.
func (r NoteRef) Less(o NoteRef) bool {
	if r.Measure != o.Measure {
		return r.Measure < o.Measure
	}
	return r.Note < o.Note
}

// NoteAt resolves a ref, reporting false for stale or out-of-range refs.
func (s *Score) NoteAt(ref NoteRef) (Note, bool) {
	if ref.Measure < 0 || ref.Measure >= len(s.Measures) {
		return Note{}, false
	}
	m := s.Measures[ref.Measure]
	if ref.Note < 0 || ref.Note >= len(m.Notes) {
		return Note{}, false
	}
	return m.Notes[ref.Note], true
}

// ParseTimeSignature splits "N/D" into numerator and denominator.
func ParseTimeSignature(ts string) (beats, beatValue int, ok bool) {
	parts := strings.SplitN(strings.TrimSpace(ts), "/", 2)
	if len(parts) != 2 {
		return 0, 0, false
	}
	n, err1 := strconv.Atoi(strings.TrimSpace(parts[0]))
	d, err2 := strconv.Atoi(strings.TrimSpace(parts[1]))
	if err1 != nil || err2 != nil || n <= 0 || d <= 0 {
		return 0, 0, false
	}
	return n, d, true
}

// BeatValue returns the time signature denominator, defaulting to 4.
func (s *Score) BeatValue() int {
	if _, d, ok := ParseTimeSignature(s.TimeSignature); ok {
		return d
	}
	return 4
}

// SecondsPerBeat converts the score tempo into wall-clock seconds per
// quarter-note beat, scaled by the time signature's beat unit.
func (s *Score) SecondsPerBeat() float64 {
	tempo := s.Tempo
	if tempo <= 0 {
		tempo = 120
	}
	return (60.0 / float64(tempo)) * (4.0 / float64(s.BeatValue()))
}

// NoteDuration returns the wall-clock duration of a note at the score tempo.
func (s *Score) NoteDuration(n Note) time.Duration {
	return time.Duration(n.Beats() * s.SecondsPerBeat() * float64(time.Second))
}

// BeatsToDuration converts a beat count to wall-clock time at the score tempo.
func (s *Score) BeatsToDuration(beats float64) time.Duration {
	return time.Duration(beats * s.SecondsPerBeat() * float64(time.Second))
}

// BeatOffsetOf returns the beat offset of ref from the start of the score,
// accumulating the beat counts of every preceding note.
func (s *Score) BeatOffsetOf(ref NoteRef) float64 {
	offset := 0.0
	for mi := 0; mi < len(s.Measures) && mi <= ref.Measure; mi++ {
		for ni, n := range s.Measures[mi].Notes {
			if mi == ref.Measure && ni >= ref.Note {
				return offset
			}
			offset += n.Beats()
		}
	}
	return offset
}

// ResolveBeat maps an absolute beat offset back to a note by linear scan,
// returning the ref and the 0..1 progress within that note. The second
// return is false when the offset lies beyond the last note.
func (s *Score) ResolveBeat(offset float64) (NoteRef, float64, bool) {
	if offset < 0 {
		offset = 0
	}
	acc := 0.0
	for mi, m := range s.Measures {
		for ni, n := range m.Notes {
			beats := n.Beats()
			if beats <= 0 {
				continue
			}
			if offset < acc+beats {
				return NoteRef{Measure: mi, Note: ni}, (offset - acc) / beats, true
			}
			acc += beats
		}
	}
	return NoteRef{}, 0, false
}

// TotalBeats sums the beat counts of every note in the score.
func (s *Score) TotalBeats() float64 {
	total := 0.0
	for _, m := range s.Measures {
		for _, n := range m.Notes {
			total += n.Beats()
		}
	}
	return total
}

// AllRefs lists every note in score order, measure-major.
func (s *Score) AllRefs() []NoteRef {
	var refs []NoteRef
	for mi, m := range s.Measures {
		for ni := range m.Notes {
			refs = append(refs, NoteRef{Measure: mi, Note: ni})
		}
	}
	return refs
}
