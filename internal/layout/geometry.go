package layout

import "github.com/staveplay/staveplay/internal/score"

// Rect is an axis-aligned pixel rectangle.
type Rect struct {
	X, Y, W, H float64
}

func (r Rect) Right() float64  { return r.X + r.W }
func (r Rect) Bottom() float64 { return r.Y + r.H }

// OverlapsX reports whether the rect touches the horizontal span [x0, x1].
// Boundary touch counts: selection is biased toward including edge notes.
func (r Rect) OverlapsX(x0, x1 float64) bool {
	return r.Right() >= x0 && r.X <= x1
}

// NoteBox is one rendered note's on-screen footprint.
type NoteBox struct {
	Ref   score.NoteRef
	Row   int
	Rect  Rect
	Stave Rect // owning stave segment's rect
}

// Geometry is the per-render snapshot of note and row positions. It is
// rebuilt wholesale on every render pass and passed explicitly to the
// selection and playback code; holding on to a snapshot across renders
// yields stale pixel coordinates.
type Geometry struct {
	Notes       []NoteBox // append order is score order: measure-major, note-minor
	Rows        []Row
	StaveHeight float64
}

// Append records a note box. Boxes must arrive in score order; that
// invariant is what makes an index slice of Notes a contiguous musical range.
func (g *Geometry) Append(b NoteBox) {
	g.Notes = append(g.Notes, b)
}

// IndexOf returns the position of ref in Notes, or -1.
func (g *Geometry) IndexOf(ref score.NoteRef) int {
	for i, b := range g.Notes {
		if b.Ref == ref {
			return i
		}
	}
	return -1
}

// Find resolves a ref to its box, reporting false for stale refs.
func (g *Geometry) Find(ref score.NoteRef) (NoteBox, bool) {
	if i := g.IndexOf(ref); i >= 0 {
		return g.Notes[i], true
	}
	return NoteBox{}, false
}

// FirstInMeasure returns the first rendered note of a measure, if any.
func (g *Geometry) FirstInMeasure(measure int) (NoteBox, bool) {
	for _, b := range g.Notes {
		if b.Ref.Measure == measure {
			return b, true
		}
	}
	return NoteBox{}, false
}

// RowSpan returns the index range [first, last] of Notes on a row,
// reporting false for rows with no rendered notes.
func (g *Geometry) RowSpan(row int) (first, last int, ok bool) {
	first = -1
	for i, b := range g.Notes {
		if b.Row != row {
			continue
		}
		if first < 0 {
			first = i
		}
		last = i
	}
	return first, last, first >= 0
}

// RowBounds returns the vertical band of the row containing a measure.
// The caller hides the indicator when no row matches.
func (g *Geometry) RowBounds(measure int) (top, bottom float64, ok bool) {
	for _, r := range g.Rows {
		if measure >= r.StartMeasure && measure <= r.EndMeasure {
			return r.Y, r.Y + g.StaveHeight, true
		}
	}
	return 0, 0, false
}
