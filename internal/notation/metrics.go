// Package notation renders a score onto five-line staves. The metrics
// pass is pure: it turns a score and a layout plan into pixel boxes with
// no drawing context involved, so geometry can be tested headless. The
// draw pass paints those boxes onto an ebiten image.
package notation

import (
	"strings"

	"github.com/staveplay/staveplay/internal/layout"
	"github.com/staveplay/staveplay/internal/score"
)

const (
	// Staff line spacing and note head size in pixels.
	LineGap   = 10.0
	NoteHeadW = 14.0
	NoteHeadH = 10.0

	// Horizontal margins inside a measure's stave.
	measurePadLeft  = 16.0
	measurePadRight = 10.0
)

// BuildGeometry lays out every note of the score: a plan for the row
// wrapping plus a geometry snapshot with one box per note, appended in
// score order. Rebuilt from scratch on every layout change.
func BuildGeometry(sc *score.Score, cfg layout.Config) (layout.Plan, *layout.Geometry) {
	plan := layout.Compute(len(sc.Measures), cfg)
	g := &layout.Geometry{
		Rows:        plan.Rows,
		StaveHeight: cfg.StaveHeight,
	}
	for mi, m := range sc.Measures {
		row, ok := plan.RowFor(mi)
		if !ok {
			continue
		}
		stave := StaveRect(row, mi, cfg)
		total := measureBeats(m)
		offset := 0.0
		for ni, n := range m.Notes {
			x := noteX(stave, offset, total)
			y := noteY(stave, n)
			g.Append(layout.NoteBox{
				Ref:   score.NoteRef{Measure: mi, Note: ni},
				Row:   row.Index,
				Rect:  layout.Rect{X: x, Y: y, W: NoteHeadW, H: NoteHeadH},
				Stave: stave,
			})
			offset += n.Beats()
		}
	}
	return plan, g
}

// StaveRect is the pixel rectangle of one measure's stave.
func StaveRect(row layout.Row, measure int, cfg layout.Config) layout.Rect {
	col := measure - row.StartMeasure
	return layout.Rect{
		X: cfg.Padding + float64(col)*cfg.StaveWidth,
		Y: row.Y,
		W: cfg.StaveWidth,
		H: cfg.StaveHeight,
	}
}

// StaffTop is the Y of the topmost of the five staff lines, vertically
// centered in the stave band.
func StaffTop(stave layout.Rect) float64 {
	return stave.Y + (stave.H-4*LineGap)/2
}

func measureBeats(m score.Measure) float64 {
	total := 0.0
	for _, n := range m.Notes {
		total += n.Beats()
	}
	if total <= 0 {
		total = 1
	}
	return total
}

// noteX spreads notes across the measure proportionally to their beat
// offsets, so a half note claims twice the width of a quarter.
func noteX(stave layout.Rect, beatOffset, totalBeats float64) float64 {
	usable := stave.W - measurePadLeft - measurePadRight - NoteHeadW
	if usable < 0 {
		usable = 0
	}
	return stave.X + measurePadLeft + usable*(beatOffset/totalBeats)
}

// noteY positions a note head vertically from its pitch: diatonic steps
// above or below the treble staff's bottom line (E4), half a line gap
// per step. Rests sit centered on the middle line.
func noteY(stave layout.Rect, n score.Note) float64 {
	top := StaffTop(stave)
	if n.IsRest {
		return top + 2*LineGap - NoteHeadH/2
	}
	steps, ok := diatonicSteps(n.Pitch)
	if !ok {
		return top + 2*LineGap - NoteHeadH/2
	}
	bottomLine := top + 4*LineGap
	return bottomLine - float64(steps)*(LineGap/2) - NoteHeadH/2
}

// diatonicSteps counts letter steps from E4, ignoring accidentals.
func diatonicSteps(pitch string) (int, bool) {
	if pitch == "" {
		return 0, false
	}
	letter := strings.ToUpper(pitch[:1])
	idx := strings.Index("CDEFGAB", letter)
	if idx < 0 {
		return 0, false
	}
	rest := pitch[1:]
	for len(rest) > 0 && (rest[0] == '#' || rest[0] == 'b') {
		rest = rest[1:]
	}
	octave := 4
	if len(rest) > 0 {
		o := 0
		neg := false
		s := rest
		if s[0] == '-' {
			neg = true
			s = s[1:]
		}
		for _, c := range s {
			if c < '0' || c > '9' {
				return 0, false
			}
			o = o*10 + int(c-'0')
		}
		if neg {
			o = -o
		}
		octave = o
	}
	// E4 is diatonic index 2 in octave 4.
	return (octave*7 + idx) - (4*7 + 2), true
}
