// Package selection turns pointer gestures into logical note selections:
// discrete note picks, pixel drag ranges with adjustable handles, and
// note-anchored ranges that decompose across wrapped rows. Hit-testing
// pointer events against note bounds is the caller's job; this package
// only consumes the resulting coordinates and refs.
package selection

import (
	gamelog "github.com/staveplay/staveplay/internal/log"
	"github.com/staveplay/staveplay/internal/layout"
	"github.com/staveplay/staveplay/internal/score"
)

// Mode controls how SelectNote combines with the existing selection.
type Mode int

const (
	// Replace clears the prior selection and selects exactly this note.
	Replace Mode = iota
	// Toggle adds the note if absent and removes it if present.
	Toggle
)

// Handle names a draggable range boundary.
type Handle int

const (
	HandleStart Handle = iota
	HandleEnd
)

// MinHandleGap is the closest the two range handles may come, in pixels.
const MinHandleGap = 20.0

// RangeKind tags the two range variants so callers handle both explicitly
// instead of probing optional fields.
type RangeKind int

const (
	// RangeCoordinate resolves by raw X overlap within the starting row.
	RangeCoordinate RangeKind = iota
	// RangeNotes is anchored to two notes and may span rows.
	RangeNotes
)

// Range is a pixel-space drag descriptor. StartX <= EndX always holds.
// Start/End are only meaningful when Kind is RangeNotes.
type Range struct {
	Kind      RangeKind
	StartX    float64
	EndX      float64
	StartY    float64
	HasStartY bool
	Start     score.NoteRef
	End       score.NoteRef
}

// RowSegment is one row's share of a decomposed multi-row range.
type RowSegment struct {
	Row    int
	Y      float64
	Height float64
	StartX float64
	EndX   float64
}

// Engine holds the gesture state machine. The flags are orthogonal: a
// discrete selection can coexist with a persisted range descriptor.
type Engine struct {
	logger *gamelog.Logger

	selected  []score.NoteRef
	anchor    score.NoteRef
	hasAnchor bool

	rng       *Range
	pivotX    float64
	dragging  bool
	adjusting bool // a handle drag is in progress
}

func New(logger *gamelog.Logger) *Engine {
	if logger == nil {
		logger = gamelog.Discard()
	}
	return &Engine{logger: logger}
}

// SelectNote applies a discrete pick and makes the note the anchor for
// future range gestures. Toggle is idempotent over pairs of calls.
func (e *Engine) SelectNote(ref score.NoteRef, mode Mode) {
	switch mode {
	case Toggle:
		for i, s := range e.selected {
			if s == ref {
				e.selected = append(e.selected[:i], e.selected[i+1:]...)
				e.anchor = ref
				e.hasAnchor = true
				return
			}
		}
		e.selected = append(e.selected, ref)
	default:
		e.selected = e.selected[:0]
		e.selected = append(e.selected, ref)
	}
	e.anchor = ref
	e.hasAnchor = true
	e.logger.Debugf("[SELECT] note %d:%d selected (mode %d, %d total)", ref.Measure, ref.Note, mode, len(e.selected))
}

// Selected returns a copy of the current selection in insertion order.
// Membership is set-like; order is for display only.
func (e *Engine) Selected() []score.NoteRef {
	out := make([]score.NoteRef, len(e.selected))
	copy(out, e.selected)
	return out
}

func (e *Engine) IsSelected(ref score.NoteRef) bool {
	for _, s := range e.selected {
		if s == ref {
			return true
		}
	}
	return false
}

// SetSelection replaces the selection wholesale, deduplicating refs.
func (e *Engine) SetSelection(refs []score.NoteRef) {
	e.selected = e.selected[:0]
	for _, r := range refs {
		if !e.IsSelected(r) {
			e.selected = append(e.selected, r)
		}
	}
}

// Clear drops both the discrete selection and any range descriptor.
func (e *Engine) Clear() {
	e.selected = e.selected[:0]
	e.rng = nil
	e.dragging = false
	e.adjusting = false
	e.hasAnchor = false
}

// StartRange begins a coordinate-anchored drag with the given pivot.
func (e *Engine) StartRange(x, y float64) {
	e.pivotX = x
	e.rng = &Range{Kind: RangeCoordinate, StartX: x, EndX: x, StartY: y, HasStartY: true}
	e.dragging = true
}

// StartRangeOnNote begins a note-anchored drag: the gesture started on or
// near a known note, so cross-row decomposition becomes available.
func (e *Engine) StartRangeOnNote(x, y float64, ref score.NoteRef) {
	e.pivotX = x
	e.rng = &Range{Kind: RangeNotes, StartX: x, EndX: x, StartY: y, HasStartY: true, Start: ref, End: ref}
	e.dragging = true
}

// UpdateRange extends the drag to x. The stored span is always the
// geometric min/max of pivot and x, so leftward drags keep a non-negative
// width regardless of gesture chronology.
func (e *Engine) UpdateRange(x float64) {
	if e.rng == nil || !e.dragging {
		return
	}
	e.rng.StartX = min(e.pivotX, x)
	e.rng.EndX = max(e.pivotX, x)
}

// UpdateRangeToNote extends the drag to x and re-anchors the far end on a
// note, upgrading a coordinate drag to a note-anchored one.
func (e *Engine) UpdateRangeToNote(x float64, ref score.NoteRef) {
	if e.rng == nil || !e.dragging {
		return
	}
	e.UpdateRange(x)
	if e.rng.Kind == RangeNotes {
		e.rng.End = ref
	}
}

// EndRange exits the dragging state. The range descriptor persists so the
// selection stays visible and handle-adjustable until cleared.
func (e *Engine) EndRange() {
	e.dragging = false
}

// MoveHandle drags one boundary of the persisted range. The moving handle
// is clamped against the other so the pair never crosses or meets:
// StartX < EndX holds after every call.
func (e *Engine) MoveHandle(h Handle, x float64) {
	if e.rng == nil {
		return
	}
	e.adjusting = true
	switch h {
	case HandleStart:
		limit := e.rng.EndX - MinHandleGap
		if x > limit {
			x = limit
		}
		e.rng.StartX = x
	case HandleEnd:
		limit := e.rng.StartX + MinHandleGap
		if x < limit {
			x = limit
		}
		e.rng.EndX = x
	}
	// Handle drags move by raw coordinate; note anchors no longer describe
	// the span, so the range degrades to coordinate resolution.
	e.rng.Kind = RangeCoordinate
}

// EndHandleDrag exits the handle-adjusting state.
func (e *Engine) EndHandleDrag() { e.adjusting = false }

// ActiveRange returns the current range descriptor, if any.
func (e *Engine) ActiveRange() (Range, bool) {
	if e.rng == nil {
		return Range{}, false
	}
	return *e.rng, true
}

func (e *Engine) Dragging() bool        { return e.dragging }
func (e *Engine) AdjustingHandle() bool { return e.adjusting }

// CommitRange resolves the active range against the geometry snapshot and
// replaces the selection with the result.
func (e *Engine) CommitRange(g *layout.Geometry) {
	if e.rng == nil {
		return
	}
	e.SetSelection(NotesInRange(*e.rng, g))
	e.logger.Debugf("[SELECT] range committed: %d notes", len(e.selected))
}
