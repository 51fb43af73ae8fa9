package notation

import (
	"image/color"
	"math"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/ebitenutil"

	"github.com/staveplay/staveplay/internal/layout"
	"github.com/staveplay/staveplay/internal/score"
	"github.com/staveplay/staveplay/internal/selection"
)

var (
	staffColor     = color.RGBA{70, 70, 80, 255}
	barlineColor   = color.RGBA{70, 70, 80, 255}
	noteColor      = color.RGBA{20, 20, 28, 255}
	restColor      = color.RGBA{90, 90, 100, 255}
	selectedColor  = color.RGBA{70, 130, 220, 255}
	rangeFillColor = color.RGBA{70, 130, 220, 60}
	handleColor    = color.RGBA{40, 90, 180, 255}
	indicatorColor = color.RGBA{220, 60, 60, 255}
)

const (
	stemHeight = 28.0
	handleW    = 8.0
	indicatorW = 2.0
	restGlyphW = 10.0
	restGlyphH = 6.0
)

// DrawScore paints staves, barlines and note heads for every measure in
// the plan. Selected notes are tinted; everything else uses the base
// note color.
func DrawScore(screen *ebiten.Image, sc *score.Score, g *layout.Geometry, plan layout.Plan, cfg layout.Config, selected map[score.NoteRef]bool) {
	for _, row := range plan.Rows {
		for mi := row.StartMeasure; mi <= row.EndMeasure; mi++ {
			drawStave(screen, StaveRect(row, mi, cfg))
		}
	}
	for _, box := range g.Notes {
		n, ok := sc.NoteAt(box.Ref)
		if !ok {
			continue
		}
		if n.IsRest {
			drawRest(screen, box)
			continue
		}
		col := noteColor
		if selected[box.Ref] {
			col = selectedColor
		}
		drawNote(screen, box, n, col)
	}
}

func drawStave(screen *ebiten.Image, stave layout.Rect) {
	top := StaffTop(stave)
	for i := 0; i < 5; i++ {
		y := top + float64(i)*LineGap
		ebitenutil.DrawRect(screen, stave.X, y, stave.W, 1, staffColor)
	}
	ebitenutil.DrawRect(screen, stave.X, top, 1, 4*LineGap, barlineColor)
	ebitenutil.DrawRect(screen, stave.Right()-1, top, 1, 4*LineGap, barlineColor)
}

func drawNote(screen *ebiten.Image, box layout.NoteBox, n score.Note, col color.RGBA) {
	r := box.Rect
	ebitenutil.DrawRect(screen, r.X, r.Y, r.W, r.H, col)
	// Hollow head for whole and half notes.
	if n.Duration == score.DurWhole || n.Duration == score.DurHalf {
		ebitenutil.DrawRect(screen, r.X+2, r.Y+2, r.W-4, r.H-4, color.RGBA{240, 240, 245, 255})
	}
	// Whole notes have no stem.
	if n.Duration != score.DurWhole {
		ebitenutil.DrawRect(screen, r.Right()-1, r.Y-stemHeight+r.H, 1, stemHeight, col)
	}
	for d := 0; d < n.Dots; d++ {
		ebitenutil.DrawRect(screen, r.Right()+3+float64(d)*5, r.Y+r.H/2-1, 3, 3, col)
	}
}

func drawRest(screen *ebiten.Image, box layout.NoteBox) {
	r := box.Rect
	cx := r.X + r.W/2
	cy := r.Y + r.H/2
	ebitenutil.DrawRect(screen, cx-restGlyphW/2, cy-restGlyphH/2, restGlyphW, restGlyphH, restColor)
}

// DrawRangeSegments paints the translucent per-row highlight rectangles
// of an active range, with drag handles on the first segment's left edge
// and the last segment's right edge.
func DrawRangeSegments(screen *ebiten.Image, segs []selection.RowSegment) {
	if len(segs) == 0 {
		return
	}
	for _, s := range segs {
		w := s.EndX - s.StartX
		if w <= 0 {
			continue
		}
		ebitenutil.DrawRect(screen, s.StartX, s.Y, w, s.Height, rangeFillColor)
	}
	// Multi-row ranges get a dashed connector through the row gap.
	for i := 0; i+1 < len(segs); i++ {
		a, b := segs[i], segs[i+1]
		drawDashedConnector(screen, a.EndX, a.Y+a.Height, b.StartX, b.Y)
	}
	first := segs[0]
	last := segs[len(segs)-1]
	drawHandle(screen, first.StartX, first.Y, first.Height)
	drawHandle(screen, last.EndX, last.Y, last.Height)
}

func drawDashedConnector(screen *ebiten.Image, x0, y0, x1, y1 float64) {
	const step = 8.0
	dx, dy := x1-x0, y1-y0
	dist := math.Hypot(dx, dy)
	if dist < 1 {
		return
	}
	for d := 0.0; d <= dist; d += step {
		t := d / dist
		ebitenutil.DrawRect(screen, x0+dx*t-1.5, y0+dy*t-1.5, 3, 3, handleColor)
	}
}

func drawHandle(screen *ebiten.Image, x, y, h float64) {
	ebitenutil.DrawRect(screen, x-handleW/2, y, handleW, h, handleColor)
}

// DrawIndicator paints the playback position line spanning a row band.
func DrawIndicator(screen *ebiten.Image, x, top, bottom float64) {
	if bottom <= top {
		return
	}
	ebitenutil.DrawRect(screen, x-indicatorW/2, top, indicatorW, bottom-top, indicatorColor)
}
