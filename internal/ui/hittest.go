package ui

import (
	"github.com/staveplay/staveplay/internal/layout"
	"github.com/staveplay/staveplay/internal/score"
	"github.com/staveplay/staveplay/internal/selection"
)

// hitTolerance widens note hit targets so small heads stay clickable.
const hitTolerance = 4.0

// NoteAt finds the note box under a point, preferring an exact hit and
// falling back to the nearest box within the tolerance ring.
func NoteAt(g *layout.Geometry, x, y float64) (score.NoteRef, bool) {
	if g == nil {
		return score.NoteRef{}, false
	}
	var best score.NoteRef
	bestDist := hitTolerance + 1
	found := false
	for _, box := range g.Notes {
		r := box.Rect
		if x >= r.X && x <= r.Right() && y >= r.Y && y <= r.Bottom() {
			return box.Ref, true
		}
		dx := axisDist(x, r.X, r.Right())
		dy := axisDist(y, r.Y, r.Bottom())
		d := dx
		if dy > d {
			d = dy
		}
		if d <= hitTolerance && d < bestDist {
			bestDist = d
			best = box.Ref
			found = true
		}
	}
	return best, found
}

// HandleAt reports which range handle, if any, a point grabs. The start
// handle sits at the first segment's left edge, the end handle at the
// last segment's right edge.
func HandleAt(segs []selection.RowSegment, x, y float64) (handle selection.Handle, ok bool) {
	const grab = 6.0
	if len(segs) == 0 {
		return 0, false
	}
	first := segs[0]
	last := segs[len(segs)-1]
	if y >= first.Y && y <= first.Y+first.Height && x >= first.StartX-grab && x <= first.StartX+grab {
		return selection.HandleStart, true
	}
	if y >= last.Y && y <= last.Y+last.Height && x >= last.EndX-grab && x <= last.EndX+grab {
		return selection.HandleEnd, true
	}
	return 0, false
}

func axisDist(v, lo, hi float64) float64 {
	if v < lo {
		return lo - v
	}
	if v > hi {
		return v - hi
	}
	return 0
}
