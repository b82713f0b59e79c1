package effect

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/hyperhdr-core/hyperhdr/internal/color"
	"github.com/hyperhdr-core/hyperhdr/internal/muxer"
)

// Handle is a running effect instance (spec §4.4 "one cooperative task per
// active effect"). Besides Stop, it exposes Colors so the owning instance
// can pull the full per-LED buffer for the currently visible effect instead
// of the single averaged color the Muxer tracks for presence/priority.
type Handle struct {
	def    Definition
	cancel context.CancelFunc
	done   chan struct{}

	mu   sync.Mutex
	last []color.RGB
}

// Colors returns a copy of the most recent frame the effect produced.
func (h *Handle) Colors() []color.RGB {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]color.RGB, len(h.last))
	copy(out, h.last)
	return out
}

func (h *Handle) setColors(buf []color.RGB) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if cap(h.last) < len(buf) {
		h.last = make([]color.RGB, len(buf))
	}
	h.last = h.last[:len(buf)]
	copy(h.last, buf)
}

// Engine runs effects against one instance's Muxer, generalizing the
// teacher's per-layer goroutine model and reusing the generation-counter
// cancellation pattern from internal/muxer (grounded on the thread-safe LED
// controller's cancelActive/writeAll(gen) idiom: here cancel()+<-done plays
// the role of the generation check, since each Handle owns exactly one
// goroutine rather than one shared buffer guarded by a counter).
type Engine struct {
	mux      *muxer.Muxer
	ledCount int
	log      *slog.Logger
}

// New returns an Engine posting colors into mux at instance scope.
func New(mux *muxer.Muxer, ledCount int, log *slog.Logger) *Engine {
	if log == nil {
		log = slog.Default()
	}
	return &Engine{mux: mux, ledCount: ledCount, log: log}
}

// Start registers def at its priority and launches its tick loop. Stop (or
// def.Timeout elapsing, or anim reporting done) terminates it; in every
// path the Muxer registration is cleared (spec §4.4 "Resources are released
// on termination in all paths").
func (e *Engine) Start(def Definition, anim Animation) *Handle {
	e.mux.RegisterInput(def.Priority, muxer.ComponentEffect, def.Name, color.Black, 0, def.Name)

	ctx, cancel := context.WithCancel(context.Background())
	h := &Handle{def: def, cancel: cancel, done: make(chan struct{})}

	interval := def.UpdateFreq
	if interval <= 0 {
		interval = 100 * time.Millisecond
	}

	go e.run(ctx, h, def, anim, interval)
	return h
}

func (e *Engine) run(ctx context.Context, h *Handle, def Definition, anim Animation, interval time.Duration) {
	defer close(h.done)
	defer e.mux.ClearInput(def.Priority)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	start := time.Now()
	buf := make([]color.RGB, e.ledCount)

	var deadline <-chan time.Time
	if def.Timeout > 0 {
		timer := time.NewTimer(def.Timeout)
		defer timer.Stop()
		deadline = timer.C
	}

	for {
		// Check cancellation before blocking so a Stop() racing with the
		// ticker never lets one more tick through (spec §4.4
		// "Cancellation": "the tick scheduled after cancellation must not
		// execute").
		select {
		case <-ctx.Done():
			return
		default:
		}

		select {
		case <-ctx.Done():
			return
		case <-deadline:
			return
		case <-ticker.C:
			done := anim.Step(buf, time.Since(start))
			h.setColors(buf)
			e.mux.SetInput(def.Priority, averageOf(buf), 0)
			if done {
				return
			}
		}
	}
}

func averageOf(buf []color.RGB) color.RGB {
	if len(buf) == 0 {
		return color.Black
	}
	var r, g, b int
	for _, c := range buf {
		r += int(c.R)
		g += int(c.G)
		b += int(c.B)
	}
	n := len(buf)
	return color.RGB{R: uint8(r / n), G: uint8(g / n), B: uint8(b / n)}
}

// Stop cancels the effect and blocks until its loop has exited, guaranteeing
// no further tick runs once Stop returns.
func (h *Handle) Stop() {
	h.cancel()
	<-h.done
}
