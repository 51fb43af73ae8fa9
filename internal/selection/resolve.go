package selection

import (
	"github.com/staveplay/staveplay/internal/layout"
	"github.com/staveplay/staveplay/internal/score"
)

// NotesInRange resolves a range descriptor to the logical notes it covers.
// Inclusion is generous: any pixel overlap with the span counts, so
// boundary notes are over-selected rather than dropped.
func NotesInRange(r Range, g *layout.Geometry) []score.NoteRef {
	if g == nil {
		return nil
	}
	if r.Kind == RangeNotes {
		if segs := Decompose(r, g); segs != nil {
			return notesInSegments(segs, g)
		}
		// An anchor went stale (score reloaded, geometry rebuilt); fall
		// back to coordinate resolution rather than failing the selection.
	}
	return notesInCoordinateRange(r, g)
}

func notesInSegments(segs []RowSegment, g *layout.Geometry) []score.NoteRef {
	var out []score.NoteRef
	for _, b := range g.Notes {
		for _, seg := range segs {
			if b.Row == seg.Row && b.Rect.OverlapsX(seg.StartX, seg.EndX) {
				out = append(out, b.Ref)
				break
			}
		}
	}
	return out
}

// notesInCoordinateRange tests raw X overlap. When the gesture recorded a
// starting Y, only the row band the drag began on participates: crossing
// rows requires a note-anchored drag.
func notesInCoordinateRange(r Range, g *layout.Geometry) []score.NoteRef {
	startRow := -1
	if r.HasStartY {
		for _, row := range g.Rows {
			if r.StartY >= row.Y && r.StartY <= row.Y+g.StaveHeight {
				startRow = row.Index
				break
			}
		}
	}
	var out []score.NoteRef
	for _, b := range g.Notes {
		if startRow >= 0 && b.Row != startRow {
			continue
		}
		if b.Rect.OverlapsX(r.StartX, r.EndX) {
			out = append(out, b.Ref)
		}
	}
	return out
}

// Decompose splits a note-anchored range into one rectangle per spanned
// row: the first row runs from the start note to the row's end, the last
// row from the row's start to the end note, and fully enclosed rows span
// their whole width. Rows without rendered notes are skipped. Returns nil
// when either anchor fails to resolve.
func Decompose(r Range, g *layout.Geometry) []RowSegment {
	if r.Kind != RangeNotes || g == nil {
		return nil
	}
	startBox, ok1 := g.Find(r.Start)
	endBox, ok2 := g.Find(r.End)
	if !ok1 || !ok2 {
		return nil
	}
	// The user may have dragged backwards; order anchors by score position.
	if g.IndexOf(r.Start) > g.IndexOf(r.End) {
		startBox, endBox = endBox, startBox
	}
	startRow, endRow := startBox.Row, endBox.Row
	if startRow > endRow {
		startRow, endRow = endRow, startRow
	}

	var segs []RowSegment
	for row := startRow; row <= endRow; row++ {
		first, last, ok := g.RowSpan(row)
		if !ok {
			continue
		}
		rowY, height := rowBand(g, row)
		seg := RowSegment{Row: row, Y: rowY, Height: height}
		switch {
		case startRow == endRow:
			left, right := startBox.Rect, endBox.Rect
			if left.X > right.X {
				left, right = right, left
			}
			seg.StartX = left.X
			seg.EndX = right.Right()
		case row == startBox.Row:
			seg.StartX = startBox.Rect.X
			seg.EndX = g.Notes[last].Rect.Right()
		case row == endBox.Row:
			seg.StartX = g.Notes[first].Rect.X
			seg.EndX = endBox.Rect.Right()
		default:
			seg.StartX = g.Notes[first].Rect.X
			seg.EndX = g.Notes[last].Rect.Right()
		}
		segs = append(segs, seg)
	}
	return segs
}

// Segments returns the drawable highlight rectangles for a range of
// either kind. A coordinate range paints a single rectangle on the row
// band the drag started on.
func Segments(r Range, g *layout.Geometry) []RowSegment {
	if g == nil {
		return nil
	}
	if r.Kind == RangeNotes {
		if segs := Decompose(r, g); segs != nil {
			return segs
		}
	}
	if !r.HasStartY {
		return nil
	}
	for _, row := range g.Rows {
		if r.StartY >= row.Y && r.StartY <= row.Y+g.StaveHeight {
			return []RowSegment{{
				Row:    row.Index,
				Y:      row.Y,
				Height: g.StaveHeight,
				StartX: r.StartX,
				EndX:   r.EndX,
			}}
		}
	}
	return nil
}

func rowBand(g *layout.Geometry, row int) (y, height float64) {
	for _, r := range g.Rows {
		if r.Index == row {
			return r.Y, g.StaveHeight
		}
	}
	return 0, g.StaveHeight
}
