package playback

import (
	"context"
	"time"

	gamelog "github.com/staveplay/staveplay/internal/log"
	"github.com/staveplay/staveplay/internal/score"
)

const tickInterval = 8 * time.Millisecond

// Engine runs a Scheduler on its own goroutine, ticking it at a fixed
// interval and fanning events out over a buffered channel. Events are
// dropped rather than blocking the tick loop.
type Engine struct {
	Sched  *Scheduler
	Events chan Event
	ctx    context.Context
	cancel context.CancelFunc
}

// NewEngine wraps a scheduler and starts the tick loop. Close must be
// called to release the goroutine; leaking it keeps audio firing after
// the UI believes playback stopped.
func NewEngine(sc *score.Score, sink Sink, logger *gamelog.Logger) *Engine {
	sched := NewScheduler(sc, sink, logger)
	ctx, cancel := context.WithCancel(context.Background())
	e := &Engine{
		Sched:  sched,
		Events: make(chan Event, 32),
		ctx:    ctx,
		cancel: cancel,
	}
	sched.OnEvent(func(ev Event) {
		select {
		case e.Events <- ev:
		default:
		}
	})
	go e.run()
	return e
}

func (e *Engine) run() {
	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			e.Sched.Tick()
		case <-e.ctx.Done():
			return
		}
	}
}

func (e *Engine) Play(refs []score.NoteRef) { e.Sched.Play(refs) }
func (e *Engine) Pause()                    { e.Sched.Pause() }
func (e *Engine) Resume()                   { e.Sched.Resume() }
func (e *Engine) Stop()                     { e.Sched.Stop() }
func (e *Engine) State() State              { return e.Sched.State() }

// Close stops playback and terminates the tick goroutine.
func (e *Engine) Close() {
	e.Sched.Stop()
	e.cancel()
}
