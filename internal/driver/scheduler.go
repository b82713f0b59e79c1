package driver

import (
	"context"
	"log/slog"
	"time"

	"github.com/hyperhdr-core/hyperhdr/internal/color"
)

// maxBackoff caps the exponential retry backoff (spec §4.5 "Emission rule":
// "backs off exponentially (x2 up to 1s)").
const maxBackoff = time.Second

// maxFailures disables the component after this many consecutive write
// failures (spec §4.5 "after K failures, the component is disabled").
const maxFailures = 5

// Scheduler emits final color vectors to a Driver at a steady cadence
// independent of source frame rate (spec §4.5 "Responsibility").
type Scheduler struct {
	drv          Driver
	updateMs     int64
	enabled      bool
	disabled     bool
	disableCause error
	failures     int
	log          *slog.Logger

	latest []color.RGB
}

// NewScheduler wires a Scheduler to drv, ticking every updateMs milliseconds
// (the system-wide "master clock" of spec §4.5).
func NewScheduler(drv Driver, updateMs int64, log *slog.Logger) *Scheduler {
	if log == nil {
		log = slog.Default()
	}
	return &Scheduler{drv: drv, updateMs: updateMs, enabled: true, log: log}
}

// SetLatest updates the colors the next tick will write; called by the
// pipeline after each smoothing step.
func (s *Scheduler) SetLatest(colors []color.RGB) { s.latest = colors }

// Enabled reports the component's current power/enable state (spec §4.5
// "Power / enable gating").
func (s *Scheduler) Enabled() bool { return s.enabled && !s.disabled }

// Disabled reports whether the component auto-disabled after repeated write
// failures, and the reason (spec §7 "Transient I/O").
func (s *Scheduler) Disabled() (bool, error) { return s.disabled, s.disableCause }

// SetEnabled implements the component enable/disable control surface (spec
// §4.5 "Power / enable gating"): disabling writes one black frame then stops;
// re-enabling resumes from the current pipeline state.
func (s *Scheduler) SetEnabled(enabled bool) {
	if enabled == s.enabled {
		return
	}
	s.enabled = enabled
	if !enabled {
		black := make([]color.RGB, len(s.latest))
		_ = s.drv.Write(black)
	}
}

// Run drives the steady-tick loop until ctx is cancelled. It is meant to run
// on the instance's own goroutine (spec §5 "Each instance runs on its own
// cooperative task loop").
func (s *Scheduler) Run(ctx context.Context) {
	ticker := time.NewTicker(time.Duration(s.updateMs) * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

// TickOnce runs a single emission cycle synchronously, for callers that
// drive their own serialized loop (spec §5 "each instance runs on its own
// cooperative task loop ... execute serially") instead of using Run.
func (s *Scheduler) TickOnce(ctx context.Context) { s.tick(ctx) }

func (s *Scheduler) tick(ctx context.Context) {
	if s.disabled || !s.enabled {
		return
	}
	backoff := 50 * time.Millisecond
	for attempt := 0; ; attempt++ {
		err := s.drv.Write(s.latest)
		if err == nil {
			s.failures = 0
			return
		}
		s.failures++
		s.log.Warn("driver write failed", "attempt", attempt, "failures", s.failures, "err", err)
		if s.failures >= maxFailures {
			s.disabled = true
			s.disableCause = err
			s.log.Error("driver disabled after repeated failures", "err", err)
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}
		backoff *= 2
		if backoff > maxBackoff {
			backoff = maxBackoff
		}
	}
}
