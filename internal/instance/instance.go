package instance

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/hyperhdr-core/hyperhdr/internal/color"
	"github.com/hyperhdr-core/hyperhdr/internal/driver"
	"github.com/hyperhdr-core/hyperhdr/internal/effect"
	"github.com/hyperhdr-core/hyperhdr/internal/forwarder"
	"github.com/hyperhdr-core/hyperhdr/internal/muxer"
	"github.com/hyperhdr-core/hyperhdr/internal/reducer"
	"github.com/hyperhdr-core/hyperhdr/internal/settings"
)

// CapturePriority is the fixed Muxer priority an instance's subscribed
// capture frames register under (spec §6 "INSTCAPTURE: which captures feed
// this instance").
const CapturePriority uint8 = 200

// Config seeds a new Instance (spec §4.6 "createInstance").
type Config struct {
	Index          int
	Name           string
	Layout         reducer.Layout
	Mapping        reducer.Mapping
	LUT            *color.LUT
	Calibration    color.Calibration
	SmoothingCfg   color.SmoothingConfig
	Drv            driver.Driver
	DriverCfg      driver.Config
	UpdateInterval time.Duration
	Log            *slog.Logger
}

// Instance is a pipeline identified by a small integer index, owning one
// Muxer, one Reducer, one color pipeline, one output scheduler, one effect
// engine and its settings snapshot (spec §3 "Instance"), generalizing the
// teacher's PipelineManager from a process-global singleton into one value
// per index.
type Instance struct {
	Index int
	Name  string

	mux        *muxer.Muxer
	reducer    *reducer.Reducer
	lut        *color.LUT
	calib      color.Calibration
	smoothing  *color.Smoothing
	effects    *effect.Engine
	scheduler  *driver.Scheduler
	drv        driver.Driver
	settings   *settings.Bus
	components *ComponentController
	ledCount   int
	interval   time.Duration
	log        *slog.Logger

	colorUpdates     <-chan settings.Update
	smoothingUpdates <-chan settings.Update

	mu            sync.Mutex
	latestFrame   reducer.Frame
	haveFrame     bool
	effectHandles map[uint8]*effect.Handle
	fwd           *forwarder.ImageSink

	cancel context.CancelFunc
	done   chan struct{}
	ready  chan struct{}
}

// New constructs an Instance from cfg without starting its loop.
func New(cfg Config) (*Instance, error) {
	if err := cfg.Layout.Validate(); err != nil {
		return nil, fmt.Errorf("instance: invalid layout: %w", err)
	}
	log := cfg.Log
	if log == nil {
		log = slog.Default()
	}
	log = log.With("instance", cfg.Index, "name", cfg.Name)

	red := reducer.New(cfg.Layout, cfg.Mapping, false)
	if err := cfg.Drv.Init(cfg.DriverCfg); err != nil {
		return nil, fmt.Errorf("instance: driver init: %w", err)
	}
	if err := cfg.Drv.Open(); err != nil {
		return nil, fmt.Errorf("instance: driver open: %w", err)
	}

	interval := cfg.UpdateInterval
	if interval <= 0 {
		interval = 50 * time.Millisecond
	}

	mux := muxer.New()
	sched := driver.NewScheduler(cfg.Drv, interval.Milliseconds(), log)

	in := &Instance{
		Index:         cfg.Index,
		Name:          cfg.Name,
		mux:           mux,
		reducer:       red,
		lut:           cfg.LUT,
		calib:         cfg.Calibration,
		smoothing:     color.NewSmoothing(cfg.SmoothingCfg, cfg.Layout.Size()),
		effects:       effect.New(mux, cfg.Layout.Size(), log),
		scheduler:     sched,
		drv:           cfg.Drv,
		settings:      settings.NewBus(),
		components:    NewComponentController(),
		ledCount:      cfg.Layout.Size(),
		interval:      interval,
		log:           log,
		effectHandles: make(map[uint8]*effect.Handle),
	}
	if in.lut != nil {
		in.lut.Acquire()
	}
	in.colorUpdates = in.settings.Subscribe(settings.COLOR)
	in.smoothingUpdates = in.settings.Subscribe(settings.SMOOTHING)
	return in, nil
}

// SetForwarder attaches the sink that FORWARDER mirrors every tick's final
// colors to (spec §6 "Forwarder"); a nil sink detaches.
func (in *Instance) SetForwarder(sink *forwarder.ImageSink) {
	in.mu.Lock()
	in.fwd = sink
	in.mu.Unlock()
}

// drainSettings applies every pending COLOR/SMOOTHING update without
// blocking (spec §6 "Settings updates ... the affected component re-reads
// only its slice"). It runs at the top of tick, on the instance's single
// cooperative goroutine, so in.calib and in.smoothing never need a mutex of
// their own (spec §5 "Scheduling model").
func (in *Instance) drainSettings() {
	for {
		select {
		case upd := <-in.colorUpdates:
			var cal color.Calibration
			if err := json.Unmarshal(upd.JSON, &cal); err != nil {
				in.log.Warn("discarding malformed COLOR settings update", "err", err)
				continue
			}
			in.calib = cal
		case upd := <-in.smoothingUpdates:
			var cfg color.SmoothingConfig
			if err := json.Unmarshal(upd.JSON, &cfg); err != nil {
				in.log.Warn("discarding malformed SMOOTHING settings update", "err", err)
				continue
			}
			if err := in.smoothing.SetUserConfig(cfg); err != nil {
				in.log.Warn("discarding invalid SMOOTHING settings update", "err", err)
			}
		default:
			return
		}
	}
}

// Muxer exposes the instance's Muxer for external registration (network
// clients, static-color inputs).
func (in *Instance) Muxer() *muxer.Muxer { return in.mux }

// Settings exposes the instance's settings update bus.
func (in *Instance) Settings() *settings.Bus { return in.settings }

// Components exposes the instance's component on/off control surface.
func (in *Instance) Components() *ComponentController { return in.components }

// PushFrame feeds a capture frame into the instance (called by whatever
// subscribes this instance to a capture.Hub); it registers presence in the
// Muxer and stashes the frame for the next tick's reduction.
func (in *Instance) PushFrame(f reducer.Frame, timeoutMs int64) {
	in.mu.Lock()
	in.latestFrame = f
	in.haveFrame = true
	in.mu.Unlock()
	if !in.mux.HasPriority(CapturePriority) {
		in.mux.RegisterInput(CapturePriority, muxer.ComponentCapture, "capture", color.Black, 0, in.Name)
	}
	in.mux.SetInputImage(CapturePriority, &f, timeoutMs)
}

// RegisterInput forwards to the Muxer for non-capture inputs (effects,
// network clients, static colors) at the instance scope.
func (in *Instance) RegisterInput(priority uint8, component muxer.ComponentKind, origin string, staticColor color.RGB, smoothingCfg uint, owner string) {
	in.mux.RegisterInput(priority, component, origin, staticColor, smoothingCfg, owner)
}

// StartEffect launches def against this instance's effect engine, tracking
// the handle so the render loop can pull its per-LED colors while it is the
// visible input.
func (in *Instance) StartEffect(def effect.Definition, anim effect.Animation) *effect.Handle {
	h := in.effects.Start(def, anim)
	in.mu.Lock()
	in.effectHandles[def.Priority] = h
	in.mu.Unlock()
	return h
}

// StopEffect stops a running effect and releases its tracking entry.
func (in *Instance) StopEffect(priority uint8) {
	in.mu.Lock()
	h := in.effectHandles[priority]
	delete(in.effectHandles, priority)
	in.mu.Unlock()
	if h != nil {
		h.Stop()
	}
}

// Start launches the instance's own cooperative task loop (spec §5
// "Scheduling model"): reducer, color pipeline and output scheduler execute
// serially on each tick. Start returns once the loop goroutine is running,
// before its first tick, so a caller can rely on the instance's observable
// state matching "started" (spec §4.6 "Operations ... return only after the
// target instance's observable state matches the request").
func (in *Instance) Start(disableOnStartup bool) {
	ctx, cancel := context.WithCancel(context.Background())
	in.cancel = cancel
	in.done = make(chan struct{})
	in.ready = make(chan struct{})

	if disableOnStartup {
		in.components.SetEnabled(LEDDEVICE, false)
	}

	go in.run(ctx)
	<-in.ready
}

// Stop cancels the instance's loop and blocks until it has fully exited.
func (in *Instance) Stop() {
	if in.cancel == nil {
		return
	}
	in.cancel()
	<-in.done
	if in.lut != nil {
		in.lut.Release()
	}
	if in.drv != nil {
		if err := in.drv.Close(); err != nil {
			in.log.Warn("driver close failed", "err", err)
		}
	}
}

func (in *Instance) run(ctx context.Context) {
	defer close(in.done)

	ticker := time.NewTicker(in.interval)
	defer ticker.Stop()

	lastTick := time.Now()
	close(in.ready)

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			dt := now.Sub(lastTick).Milliseconds()
			lastTick = now
			in.tick(ctx, now, dt)
		}
	}
}

func (in *Instance) tick(ctx context.Context, now time.Time, dt int64) {
	in.drainSettings()

	in.mux.Tick(now)
	priority := in.mux.GetCurrentPriority()
	info, _ := in.mux.GetInputInfo(priority)

	// Stage order is fixed: LUT -> calibration -> smoothing (spec §4.3),
	// built as a color.Pipeline so that order lives in one place instead of
	// a sequence of independently-ordered call sites.
	var stages []color.Stage
	if in.components.Enabled(HDR) {
		stages = append(stages, in.lut.LUTStage())
	}
	if in.components.Enabled(COLOR) {
		stages = append(stages, in.calib.CalibrationStage())
	}
	if in.components.Enabled(SMOOTHING) {
		stages = append(stages, in.smoothing.Stage(now, dt))
	}

	targets := in.resolveTargets(info)
	colors := color.NewPipeline(stages...).Run(targets)

	in.scheduler.SetLatest(colors)
	if in.components.Enabled(LEDDEVICE) {
		in.scheduler.TickOnce(ctx)
		if disabled, cause := in.scheduler.Disabled(); disabled {
			in.components.Disable(LEDDEVICE, &ComponentError{
				Kind:   LEDDEVICE,
				Reason: "driver write failures exceeded threshold",
				Cause:  cause,
			})
			in.log.Error("component auto-disabled", "kind", LEDDEVICE, "err", cause)
		}
	}

	if in.components.Enabled(FORWARDER) {
		in.mu.Lock()
		fwd := in.fwd
		in.mu.Unlock()
		if fwd != nil {
			fwd.Broadcast(reducer.Frame{
				Width:  len(colors),
				Height: 1,
				Pix:    colors,
				Format: color.FormatRGB24,
			})
		}
	}
}

// resolveTargets produces one color per LED for the currently visible
// input: captures go through the reducer, effects pull their own per-LED
// buffer, everything else (static color / network clients / the sentinel)
// fills every LED with the single registered color.
func (in *Instance) resolveTargets(info muxer.InputInfo) []color.RGB {
	switch info.Component {
	case muxer.ComponentCapture:
		in.mu.Lock()
		frame, ok := in.latestFrame, in.haveFrame
		in.mu.Unlock()
		if ok {
			in.reducer.SetBorderDetectionEnabled(in.components.Enabled(BLACKBORDER), reducer.DefaultBorderThreshold)
			return in.reducer.Process(frame)
		}
	case muxer.ComponentEffect:
		in.mu.Lock()
		h := in.effectHandles[info.Priority]
		in.mu.Unlock()
		if h != nil {
			if c := h.Colors(); len(c) == in.ledCount {
				return c
			}
		}
	}
	out := make([]color.RGB, in.ledCount)
	for i := range out {
		out[i] = info.StaticColor
	}
	return out
}
