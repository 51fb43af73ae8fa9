package ui

import (
	"testing"

	"github.com/staveplay/staveplay/internal/layout"
	"github.com/staveplay/staveplay/internal/score"
	"github.com/staveplay/staveplay/internal/selection"
)

func hitGeometry() *layout.Geometry {
	g := &layout.Geometry{StaveHeight: 80}
	g.Rows = []layout.Row{{Index: 0, StartMeasure: 0, EndMeasure: 0, Y: 60}}
	stave := layout.Rect{X: 0, Y: 60, W: 220, H: 80}
	g.Append(layout.NoteBox{
		Ref:   score.NoteRef{Measure: 0, Note: 0},
		Rect:  layout.Rect{X: 40, Y: 100, W: 14, H: 10},
		Stave: stave,
	})
	g.Append(layout.NoteBox{
		Ref:   score.NoteRef{Measure: 0, Note: 1},
		Rect:  layout.Rect{X: 120, Y: 100, W: 14, H: 10},
		Stave: stave,
	})
	return g
}

func TestNoteAtExactAndTolerance(t *testing.T) {
	g := hitGeometry()
	if ref, ok := NoteAt(g, 45, 105); !ok || ref != (score.NoteRef{Measure: 0, Note: 0}) {
		t.Fatalf("direct hit = %v ok=%v", ref, ok)
	}
	// 3px outside the box edge, inside the tolerance ring.
	if ref, ok := NoteAt(g, 57, 105); !ok || ref != (score.NoteRef{Measure: 0, Note: 0}) {
		t.Fatalf("tolerance hit = %v ok=%v", ref, ok)
	}
	// Well outside any box.
	if _, ok := NoteAt(g, 90, 105); ok {
		t.Fatal("hit in the gap between notes")
	}
	if _, ok := NoteAt(nil, 45, 105); ok {
		t.Fatal("nil geometry cannot hit")
	}
}

func TestHandleAtGrabsEdges(t *testing.T) {
	segs := []selection.RowSegment{
		{Row: 0, Y: 60, Height: 80, StartX: 40, EndX: 200},
		{Row: 1, Y: 180, Height: 80, StartX: 20, EndX: 140},
	}
	if h, ok := HandleAt(segs, 41, 100); !ok || h != selection.HandleStart {
		t.Fatalf("start handle = %v ok=%v", h, ok)
	}
	if h, ok := HandleAt(segs, 143, 220); !ok || h != selection.HandleEnd {
		t.Fatalf("end handle = %v ok=%v", h, ok)
	}
	// Outside the grab zone.
	if _, ok := HandleAt(segs, 100, 100); ok {
		t.Fatal("grabbed a handle mid-range")
	}
	// The end handle lives on the last segment's row only.
	if _, ok := HandleAt(segs, 200, 100); ok {
		t.Fatal("end x on the first row is not a handle")
	}
	if _, ok := HandleAt(nil, 41, 100); ok {
		t.Fatal("no segments, no handles")
	}
}
