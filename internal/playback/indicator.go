package playback

import (
	"github.com/staveplay/staveplay/internal/layout"
	"github.com/staveplay/staveplay/internal/score"
)

// IndicatorX maps a playback position to a pixel X coordinate. While a
// next note exists and the current note is not the sequence's last, the
// position interpolates between the two note heads; the terminal note
// interpolates within its own width so the indicator never overshoots
// into notes outside the active selection. isLast is the caller's call:
// true when (measure, note) equals the last entry of the played sequence.
func IndicatorX(g *layout.Geometry, measure, note int, progress float64, isLast bool) float64 {
	if g == nil {
		return 0
	}
	progress = clamp01(progress)
	cur, ok := g.Find(score.NoteRef{Measure: measure, Note: note})
	if !ok {
		// Stale position: fall back to the measure's first rendered note.
		if first, ok2 := g.FirstInMeasure(measure); ok2 {
			return first.Rect.X
		}
		return 0
	}
	if !isLast {
		if i := g.IndexOf(cur.Ref); i >= 0 && i+1 < len(g.Notes) {
			next := g.Notes[i+1]
			if next.Row == cur.Row {
				return cur.Rect.X + (next.Rect.X-cur.Rect.X)*progress
			}
			// Row boundary: glide through the remainder of the current
			// stave instead of jumping backwards to the next row's left edge.
			return cur.Rect.X + (cur.Stave.Right()-cur.Rect.X)*progress
		}
	}
	return cur.Rect.X + cur.Rect.W*progress
}

// IndicatorRowBounds returns the vertical extent of the indicator line for
// a measure. ok=false means no row holds the measure and the indicator
// should be hidden.
func IndicatorRowBounds(g *layout.Geometry, measure int) (top, bottom float64, ok bool) {
	if g == nil {
		return 0, 0, false
	}
	return g.RowBounds(measure)
}
