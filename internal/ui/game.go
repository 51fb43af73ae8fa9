// Package ui is the interactive score viewer: an ebiten game that wires
// the layout, selection, playback and audio packages together behind a
// pointer-driven surface.
package ui

import (
	"fmt"
	"image"
	"image/color"
	"sort"
	"sync/atomic"
	"time"

	"github.com/bep/debounce"
	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/ebitenutil"

	"github.com/staveplay/staveplay/internal/audio"
	"github.com/staveplay/staveplay/internal/layout"
	"github.com/staveplay/staveplay/internal/library"
	gamelog "github.com/staveplay/staveplay/internal/log"
	"github.com/staveplay/staveplay/internal/notation"
	"github.com/staveplay/staveplay/internal/playback"
	"github.com/staveplay/staveplay/internal/score"
	"github.com/staveplay/staveplay/internal/selection"
)

const (
	windowW      = 1100
	windowH      = 720
	minWindowW   = 800
	minWindowH   = 560
	uiSampleRate = 48000

	padPx      = 20
	panelW     = 240
	transportH = 44
	statusH    = 32
	dragSlopPx = 4.0
)

var (
	bgColor      = color.RGBA{240, 240, 245, 255}
	panelColor   = color.RGBA{225, 225, 232, 255}
	borderColor  = color.RGBA{160, 160, 170, 255}
	buttonColor  = color.RGBA{205, 210, 225, 255}
	activeColor  = color.RGBA{70, 130, 220, 255}
	textColor    = color.RGBA{30, 30, 40, 255}
	canvasBg     = color.RGBA{250, 250, 252, 255}
	statusErrCol = color.RGBA{180, 40, 40, 255}
)

var instrumentCycle = []audio.Instrument{
	audio.InstrumentPiano,
	audio.InstrumentOrgan,
	audio.InstrumentStrings,
}

// Game is the viewer's ebiten game loop.
type Game struct {
	logger *gamelog.Logger
	store  *library.Store

	sc   *score.Score
	cfg  layout.Config
	plan layout.Plan
	geo  *layout.Geometry

	sel        *selection.Engine
	engine     *playback.Engine
	synth      *audio.Synth
	device     *audio.Player
	wantDevice bool
	events     <-chan playback.Event

	tempo         int
	loop          bool
	skipBeats     float64
	instrumentIdx int

	scrollY   float64
	canvasImg *ebiten.Image

	pressActive  bool
	pressX       float64
	pressY       float64
	pressRef     score.NoteRef
	pressOnNote  bool
	dragStarted  bool
	adjusting    bool
	activeHandle selection.Handle

	status    string
	statusErr bool

	viewW, viewH int
	relayoutDeb  func(func())
	relayoutFlag atomic.Bool
	libEntries   []library.Entry
	libScroll    int
	currentScore string
}

// Option configures a Game.
type Option func(*Game)

func WithLogger(l *gamelog.Logger) Option {
	return func(g *Game) { g.logger = l }
}

// WithStore attaches a score library shown in the left panel.
func WithStore(s *library.Store) Option {
	return func(g *Game) { g.store = s }
}

func WithInstrument(inst audio.Instrument) Option {
	return func(g *Game) {
		for i, candidate := range instrumentCycle {
			if candidate == inst {
				g.instrumentIdx = i
			}
		}
	}
}

// WithAudioDevice opens the platform audio output. Off by default so
// headless use (and tests) never touch the device.
func WithAudioDevice() Option {
	return func(g *Game) { g.wantDevice = true }
}

// New builds a Game around a loaded score.
func New(sc *score.Score, opts ...Option) (*Game, error) {
	g := &Game{
		logger:      gamelog.Discard(),
		sc:          sc,
		cfg:         layout.DefaultConfig(),
		tempo:       sc.Tempo,
		status:      "Ready",
		viewW:       windowW,
		viewH:       windowH,
		relayoutDeb: debounce.New(150 * time.Millisecond),
	}
	for _, opt := range opts {
		opt(g)
	}
	g.sel = selection.New(g.logger)
	if g.tempo <= 0 {
		g.tempo = 120
	}
	g.synth = audio.NewSynth(uiSampleRate, audio.WithInstrument(instrumentCycle[g.instrumentIdx]))
	g.engine = playback.NewEngine(sc, g.synth, g.logger)
	g.engine.Sched.SetTempo(g.tempo)
	g.events = g.engine.Events

	if g.wantDevice {
		dev, err := audio.NewPlayer(uiSampleRate, g.synth)
		if err != nil {
			return nil, err
		}
		g.device = dev
		g.device.Play()
	}

	if g.store != nil {
		g.libEntries = g.store.List()
	}
	g.rebuildLayout()
	return g, nil
}

// Run opens the window and blocks until it closes.
func (g *Game) Run(title string) error {
	ebiten.SetWindowSize(windowW, windowH)
	ebiten.SetWindowTitle(title)
	ebiten.SetWindowResizingMode(ebiten.WindowResizingModeEnabled)
	return ebiten.RunGame(g)
}

// Close stops playback and releases the audio device.
func (g *Game) Close() {
	g.engine.Close()
	if g.device != nil {
		_ = g.device.Stop()
	}
}

// rebuildLayout recomputes the wrap plan and geometry for the current
// view width. The previous selection survives by identity: committed
// refs stay valid, coordinate ranges are resolved against the new
// geometry on the next commit.
func (g *Game) rebuildLayout() {
	canvasW := g.viewW - 2*padPx
	if g.store != nil {
		canvasW -= panelW + 12
	}
	perRow := int(float64(canvasW-2*int(g.cfg.Padding)) / g.cfg.StaveWidth)
	if perRow < 1 {
		perRow = 1
	}
	g.cfg.MeasuresPerRow = perRow
	g.plan, g.geo = notation.BuildGeometry(g.sc, g.cfg)
	g.canvasImg = nil
}

// LoadScore replaces the current score, clearing selection and playback.
func (g *Game) LoadScore(sc *score.Score, name string) {
	g.engine.Stop()
	g.sel.Clear()
	g.sc = sc
	g.currentScore = name
	g.tempo = sc.Tempo
	if g.tempo <= 0 {
		g.tempo = 120
	}
	old := g.engine
	g.engine = playback.NewEngine(sc, g.synth, g.logger)
	g.engine.Sched.SetTempo(g.tempo)
	g.events = g.engine.Events
	old.Close()
	g.scrollY = 0
	g.rebuildLayout()
	g.setStatus(fmt.Sprintf("Loaded %s (%d measures)", name, len(sc.Measures)))
}

func (g *Game) Update() error {
	if g.relayoutFlag.Swap(false) {
		g.rebuildLayout()
	}
	g.pollEvents()
	g.handleMouse()
	g.handleKeys()
	return nil
}

func (g *Game) Layout(outsideW, outsideH int) (int, int) {
	if outsideW < minWindowW {
		outsideW = minWindowW
	}
	if outsideH < minWindowH {
		outsideH = minWindowH
	}
	if outsideW != g.viewW || outsideH != g.viewH {
		g.viewW = outsideW
		g.viewH = outsideH
		g.relayoutDeb(func() { g.relayoutFlag.Store(true) })
	}
	return outsideW, outsideH
}

func (g *Game) pollEvents() {
	for {
		select {
		case ev, ok := <-g.events:
			if !ok {
				return
			}
			switch ev.Kind {
			case playback.EventPlaybackEnded:
				if !g.statusErr {
					g.setStatus("Playback ended")
				}
			case playback.EventLoopCompleted:
				g.logger.Debugf("[UI] loop completed")
			}
		default:
			return
		}
	}
}

type uiLayout struct {
	panel, canvas, transport, status          image.Rectangle
	play, stop, loopBtn, skipMinus, skipPlus  image.Rectangle
	tempoMinus, tempoPlus, instrument         image.Rectangle
}

func (g *Game) layoutRects() uiLayout {
	w, h := g.viewW, g.viewH

	statusTop := h - padPx - statusH
	transportTop := statusTop - 8 - transportH

	left := padPx
	var panelRect image.Rectangle
	if g.store != nil {
		panelRect = image.Rect(padPx, padPx, padPx+panelW, transportTop-12)
		left = panelRect.Max.X + 12
	}
	canvasRect := image.Rect(left, padPx, w-padPx, transportTop-12)

	x := left
	bw := 88
	next := func(width int) image.Rectangle {
		r := image.Rect(x, transportTop, x+width, transportTop+transportH)
		x += width + 10
		return r
	}
	playRect := next(bw)
	stopRect := next(70)
	loopRect := next(80)
	skipMinusRect := next(36)
	skipPlusRect := next(36)
	tempoMinusRect := next(36)
	tempoPlusRect := next(36)
	instrumentRect := next(110)

	statusRect := image.Rect(padPx, statusTop, w-padPx, statusTop+statusH)

	return uiLayout{
		panel: panelRect, canvas: canvasRect, transport: image.Rect(left, transportTop, w-padPx, transportTop+transportH),
		status: statusRect,
		play:   playRect, stop: stopRect, loopBtn: loopRect,
		skipMinus: skipMinusRect, skipPlus: skipPlusRect,
		tempoMinus: tempoMinusRect, tempoPlus: tempoPlusRect,
		instrument: instrumentRect,
	}
}

func (g *Game) handleMouse() {
	mx, my := cursorPosition()
	l := g.layoutRects()

	if isMouseButtonJustPressed(ebiten.MouseButtonLeft) {
		switch {
		case pointInRect(mx, my, l.play):
			g.togglePlayPause()
			return
		case pointInRect(mx, my, l.stop):
			g.engine.Stop()
			g.setStatus("Stopped")
			return
		case pointInRect(mx, my, l.loopBtn):
			g.toggleLoop()
			return
		case pointInRect(mx, my, l.skipMinus):
			g.adjustSkip(-1)
			return
		case pointInRect(mx, my, l.skipPlus):
			g.adjustSkip(1)
			return
		case pointInRect(mx, my, l.tempoMinus):
			g.adjustTempo(-4)
			return
		case pointInRect(mx, my, l.tempoPlus):
			g.adjustTempo(4)
			return
		case pointInRect(mx, my, l.instrument):
			g.cycleInstrument()
			return
		case g.store != nil && pointInRect(mx, my, l.panel):
			g.clickLibrary(my, l.panel)
			return
		case pointInRect(mx, my, l.canvas):
			g.pressCanvas(mx, my, l.canvas)
			return
		}
	}

	if g.pressActive {
		if isMouseButtonPressed(ebiten.MouseButtonLeft) {
			g.dragCanvas(mx, my, l.canvas)
		} else {
			g.releaseCanvas()
		}
	}

	_, wy := wheel()
	if wy != 0 && pointInRect(mx, my, l.canvas) {
		g.scrollY -= wy * 24
		g.clampScroll(l.canvas)
	}
}

func (g *Game) handleKeys() {
	if isKeyJustPressed(ebiten.KeySpace) {
		g.togglePlayPause()
	}
	if isKeyJustPressed(ebiten.KeyEscape) {
		g.sel.Clear()
	}
}

// canvasCoords translates a screen point into geometry space.
func (g *Game) canvasCoords(mx, my int, canvas image.Rectangle) (float64, float64) {
	return float64(mx - canvas.Min.X), float64(my-canvas.Min.Y) + g.scrollY
}

func (g *Game) pressCanvas(mx, my int, canvas image.Rectangle) {
	x, y := g.canvasCoords(mx, my, canvas)
	g.pressActive = true
	g.pressX, g.pressY = x, y
	g.dragStarted = false
	g.adjusting = false
	g.pressOnNote = false

	if r, ok := g.sel.ActiveRange(); ok && !g.sel.Dragging() {
		segs := selection.Segments(r, g.geo)
		if h, hit := HandleAt(segs, x, y); hit {
			g.adjusting = true
			g.activeHandle = h
			return
		}
	}
	if ref, ok := NoteAt(g.geo, x, y); ok {
		g.pressRef = ref
		g.pressOnNote = true
	}
}

func (g *Game) dragCanvas(mx, my int, canvas image.Rectangle) {
	x, y := g.canvasCoords(mx, my, canvas)

	if g.adjusting {
		g.sel.MoveHandle(g.activeHandle, x)
		return
	}
	if !g.dragStarted {
		dx, dy := x-g.pressX, y-g.pressY
		if dx*dx+dy*dy < dragSlopPx*dragSlopPx {
			return
		}
		g.dragStarted = true
		if g.pressOnNote {
			g.sel.StartRangeOnNote(g.pressX, g.pressY, g.pressRef)
		} else {
			g.sel.StartRange(g.pressX, g.pressY)
		}
	}
	if ref, ok := NoteAt(g.geo, x, y); ok {
		g.sel.UpdateRangeToNote(x, ref)
	} else {
		g.sel.UpdateRange(x)
	}
}

func (g *Game) releaseCanvas() {
	defer func() {
		g.pressActive = false
		g.dragStarted = false
		g.adjusting = false
	}()

	if g.adjusting {
		g.sel.EndHandleDrag()
		g.sel.CommitRange(g.geo)
		g.setStatus(fmt.Sprintf("%d notes selected", len(g.sel.Selected())))
		return
	}
	if g.dragStarted {
		g.sel.EndRange()
		g.sel.CommitRange(g.geo)
		g.setStatus(fmt.Sprintf("%d notes selected", len(g.sel.Selected())))
		return
	}
	// A press without movement is a click.
	if g.pressOnNote {
		mode := selection.Replace
		if isKeyPressed(ebiten.KeyControl) || isKeyPressed(ebiten.KeyShift) {
			mode = selection.Toggle
		}
		g.sel.SelectNote(g.pressRef, mode)
		g.setStatus(fmt.Sprintf("%d notes selected", len(g.sel.Selected())))
		return
	}
	g.sel.Clear()
}

func (g *Game) clampScroll(canvas image.Rectangle) {
	maxScroll := g.plan.CanvasHeight - float64(canvas.Dy())
	if maxScroll < 0 {
		maxScroll = 0
	}
	if g.scrollY < 0 {
		g.scrollY = 0
	}
	if g.scrollY > maxScroll {
		g.scrollY = maxScroll
	}
}

func (g *Game) clickLibrary(my int, panel image.Rectangle) {
	const lineH = 22
	top := panel.Min.Y + 34
	idx := g.libScroll + (my-top)/lineH
	if idx < 0 || idx >= len(g.libEntries) {
		return
	}
	entry := g.libEntries[idx]
	sc, err := g.store.Load(entry.ID)
	if err != nil {
		g.setError(err.Error())
		return
	}
	g.LoadScore(sc, entry.Title)
}

// playRefs is the sequence the transport plays: the committed selection
// in score order when one exists, the whole score otherwise.
func (g *Game) playRefs() []score.NoteRef {
	refs := g.sel.Selected()
	if len(refs) == 0 {
		return g.sc.AllRefs()
	}
	sorted := make([]score.NoteRef, len(refs))
	copy(sorted, refs)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Less(sorted[j]) })
	return sorted
}

// selectionLoopRange converts the committed selection into beat offsets
// for the loop-with-skip discipline.
func (g *Game) selectionLoopRange() *playback.LoopRange {
	refs := g.playRefs()
	if len(refs) == 0 {
		return nil
	}
	start := g.sc.BeatOffsetOf(refs[0])
	last := refs[len(refs)-1]
	end := g.sc.BeatOffsetOf(last)
	if n, ok := g.sc.NoteAt(last); ok {
		end += n.Beats()
	}
	return &playback.LoopRange{StartBeat: start, EndBeat: end, SkipBeats: g.skipBeats}
}

func (g *Game) togglePlayPause() {
	st := g.engine.State()
	switch {
	case st.Playing && !st.Paused:
		g.engine.Pause()
		g.setStatus("Paused")
	case st.Playing && st.Paused:
		g.engine.Resume()
		g.setStatus("Playing")
	default:
		g.applyLoop()
		g.engine.Sched.SetTempo(g.tempo)
		g.engine.Play(g.playRefs())
		g.setStatus("Playing")
	}
}

func (g *Game) applyLoop() {
	if !g.loop {
		g.engine.Sched.SetLoop(false, nil)
		return
	}
	if g.skipBeats > 0 {
		g.engine.Sched.SetLoop(true, g.selectionLoopRange())
		return
	}
	g.engine.Sched.SetLoop(true, nil)
}

func (g *Game) toggleLoop() {
	g.loop = !g.loop
	g.applyLoop()
	if g.loop {
		g.setStatus("Loop on")
	} else {
		g.setStatus("Loop off")
	}
}

func (g *Game) adjustSkip(delta float64) {
	g.skipBeats += delta
	if g.skipBeats < 0 {
		g.skipBeats = 0
	}
	g.applyLoop()
	g.setStatus(fmt.Sprintf("Skip %.0f beats", g.skipBeats))
}

func (g *Game) adjustTempo(delta int) {
	g.tempo += delta
	if g.tempo < 20 {
		g.tempo = 20
	}
	if g.tempo > 400 {
		g.tempo = 400
	}
	g.engine.Sched.SetTempo(g.tempo)
	g.setStatus(fmt.Sprintf("Tempo %d BPM", g.tempo))
}

func (g *Game) cycleInstrument() {
	g.instrumentIdx = (g.instrumentIdx + 1) % len(instrumentCycle)
	g.synth.SetInstrument(instrumentCycle[g.instrumentIdx])
	g.setStatus(fmt.Sprintf("Instrument: %s", instrumentCycle[g.instrumentIdx]))
}

func (g *Game) setStatus(msg string) {
	g.status = msg
	g.statusErr = false
}

func (g *Game) setError(msg string) {
	g.status = msg
	g.statusErr = true
	g.logger.Errorf("[UI] %s", msg)
}

func (g *Game) Draw(screen *ebiten.Image) {
	screen.Fill(bgColor)
	l := g.layoutRects()

	if g.store != nil {
		g.drawLibrary(screen, l.panel)
	}
	g.drawCanvas(screen, l.canvas)
	g.drawTransport(screen, l)
	g.drawStatus(screen, l.status)
}

func (g *Game) drawCanvas(screen *ebiten.Image, canvas image.Rectangle) {
	cw := int(g.plan.CanvasWidth)
	ch := int(g.plan.CanvasHeight)
	if cw < canvas.Dx() {
		cw = canvas.Dx()
	}
	if ch < canvas.Dy() {
		ch = canvas.Dy()
	}
	if g.canvasImg == nil || g.canvasImg.Bounds().Dx() != cw || g.canvasImg.Bounds().Dy() != ch {
		g.canvasImg = ebiten.NewImage(cw, ch)
	}
	g.canvasImg.Fill(canvasBg)

	selected := make(map[score.NoteRef]bool)
	for _, ref := range g.sel.Selected() {
		selected[ref] = true
	}
	notation.DrawScore(g.canvasImg, g.sc, g.geo, g.plan, g.cfg, selected)

	if r, ok := g.sel.ActiveRange(); ok {
		notation.DrawRangeSegments(g.canvasImg, selection.Segments(r, g.geo))
	}

	st := g.engine.State()
	if st.Playing && st.Measure >= 0 && !st.SkipPhase {
		x := playback.IndicatorX(g.geo, st.Measure, st.Note, st.NoteProgress, st.LastNote)
		if top, bottom, ok := playback.IndicatorRowBounds(g.geo, st.Measure); ok {
			notation.DrawIndicator(g.canvasImg, x, top, bottom)
		}
	}

	sub := g.canvasImg.SubImage(image.Rect(0, int(g.scrollY), cw, int(g.scrollY)+canvas.Dy())).(*ebiten.Image)
	op := &ebiten.DrawImageOptions{}
	op.GeoM.Translate(float64(canvas.Min.X), float64(canvas.Min.Y))
	screen.DrawImage(sub, op)
}

func (g *Game) drawTransport(screen *ebiten.Image, l uiLayout) {
	st := g.engine.State()
	playLabel := "Play"
	if st.Playing && !st.Paused {
		playLabel = "Pause"
	} else if st.Paused {
		playLabel = "Resume"
	}
	g.drawButton(screen, l.play, playLabel, buttonColor)
	g.drawButton(screen, l.stop, "Stop", buttonColor)
	loopCol := buttonColor
	if g.loop {
		loopCol = activeColor
	}
	g.drawButton(screen, l.loopBtn, "Loop", loopCol)
	g.drawButton(screen, l.skipMinus, "-", buttonColor)
	g.drawButton(screen, l.skipPlus, "+", buttonColor)
	g.drawButton(screen, l.tempoMinus, "<", buttonColor)
	g.drawButton(screen, l.tempoPlus, ">", buttonColor)
	g.drawButton(screen, l.instrument, string(instrumentCycle[g.instrumentIdx]), buttonColor)

	label := fmt.Sprintf("skip %.0f  tempo %d", g.skipBeats, g.tempo)
	ebitenutil.DebugPrintAt(screen, label, l.instrument.Max.X+12, l.instrument.Min.Y+14)
}

func (g *Game) drawButton(screen *ebiten.Image, rect image.Rectangle, label string, col color.RGBA) {
	ebitenutil.DrawRect(screen, float64(rect.Min.X), float64(rect.Min.Y), float64(rect.Dx()), float64(rect.Dy()), col)
	drawBorder(screen, rect)
	ebitenutil.DebugPrintAt(screen, label, rect.Min.X+8, rect.Min.Y+rect.Dy()/2-8)
}

func (g *Game) drawLibrary(screen *ebiten.Image, panel image.Rectangle) {
	ebitenutil.DrawRect(screen, float64(panel.Min.X), float64(panel.Min.Y), float64(panel.Dx()), float64(panel.Dy()), panelColor)
	drawBorder(screen, panel)
	ebitenutil.DebugPrintAt(screen, "Library", panel.Min.X+8, panel.Min.Y+8)

	const lineH = 22
	top := panel.Min.Y + 34
	maxLines := (panel.Dy() - 40) / lineH
	for i := 0; i < maxLines; i++ {
		idx := g.libScroll + i
		if idx >= len(g.libEntries) {
			break
		}
		e := g.libEntries[idx]
		y := top + i*lineH
		if e.Title == g.currentScore {
			ebitenutil.DrawRect(screen, float64(panel.Min.X+4), float64(y-2), float64(panel.Dx()-8), lineH, activeColor)
		}
		ebitenutil.DebugPrintAt(screen, e.Title, panel.Min.X+8, y)
	}
}

func (g *Game) drawStatus(screen *ebiten.Image, rect image.Rectangle) {
	ebitenutil.DrawRect(screen, float64(rect.Min.X), float64(rect.Min.Y), float64(rect.Dx()), float64(rect.Dy()), panelColor)
	drawBorder(screen, rect)
	msg := g.status
	if g.statusErr {
		msg = "ERROR: " + msg
	}
	ebitenutil.DebugPrintAt(screen, msg, rect.Min.X+8, rect.Min.Y+8)
}

func drawBorder(screen *ebiten.Image, rect image.Rectangle) {
	x, y := float64(rect.Min.X), float64(rect.Min.Y)
	w, h := float64(rect.Dx()), float64(rect.Dy())
	ebitenutil.DrawRect(screen, x, y, w, 1, borderColor)
	ebitenutil.DrawRect(screen, x, y+h-1, w, 1, borderColor)
	ebitenutil.DrawRect(screen, x, y, 1, h, borderColor)
	ebitenutil.DrawRect(screen, x+w-1, y, 1, h, borderColor)
}

func pointInRect(x, y int, r image.Rectangle) bool {
	return x >= r.Min.X && x < r.Max.X && y >= r.Min.Y && y < r.Max.Y
}
