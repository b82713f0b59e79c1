package color

import "time"

// ledState is one LED's smoothing bookkeeping: current emitted color, target,
// spring velocity (for Hybrid* variants) and the accumulated anti-flicker
// drift.
type ledState struct {
	current  RGB
	target   RGB
	velocity Velocity
	drift    float64
	lastEmit time.Time
}

// Smoothing turns a bursty stream of per-frame color vectors into a steady
// output stream, selecting among the SmoothingConfig variants of spec
// §4.3.1. One Smoothing instance is owned per pipeline; effect-owned configs
// are registered under ids >= 1 and released when their effect stops.
type Smoothing struct {
	configs map[uint]SmoothingConfig
	active  uint

	leds         []ledState
	remainingMs  int64
	lastTickTime time.Time
	settleStart  time.Time
}

// NewSmoothing creates a Smoothing manager seeded with the user config at id
// SmoothingUserConfig.
func NewSmoothing(userConfig SmoothingConfig, ledCount int) *Smoothing {
	s := &Smoothing{
		configs: map[uint]SmoothingConfig{SmoothingUserConfig: userConfig},
		leds:    make([]ledState, ledCount),
	}
	return s
}

// AddEffectConfig registers a config owned by an effect under a caller-chosen
// id >= 1 (spec §3 "Smoothing configuration": "indices >=1 are owned by
// effects and released with them").
func (s *Smoothing) AddEffectConfig(id uint, cfg SmoothingConfig) error {
	if id == SmoothingUserConfig {
		return smoothingError("effect config id must be >= 1")
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	s.configs[id] = cfg
	return nil
}

// SetUserConfig replaces the SmoothingUserConfig slot (id 0) in place, for a
// settings.SMOOTHING update (spec §6 "Settings updates ... the affected
// component re-reads only its slice") rather than an effect registration.
func (s *Smoothing) SetUserConfig(cfg SmoothingConfig) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	s.configs[SmoothingUserConfig] = cfg
	return nil
}

// ReleaseConfig removes an effect-owned config. If it was the active config,
// the active config falls back to SmoothingUserConfig.
func (s *Smoothing) ReleaseConfig(id uint) {
	if id == SmoothingUserConfig {
		return
	}
	delete(s.configs, id)
	if s.active == id {
		s.active = SmoothingUserConfig
	}
}

// SelectConfig switches the active configuration id. Per spec §9 Open
// Questions ("the code also hot-switches mid-emission"), the switch is
// applied at the next tick boundary rather than mid-step: callers invoke
// SelectConfig any time, but Tick reads s.active at the start of each tick,
// so a switch mid-frame is visible starting with the very next tick and
// never partway through one.
func (s *Smoothing) SelectConfig(id uint) bool {
	if _, ok := s.configs[id]; !ok {
		return false
	}
	s.active = id
	return true
}

func (s *Smoothing) activeConfig() SmoothingConfig {
	return s.configs[s.active]
}

// UpdateTargets sets new target colors for all LEDs, restarting the settling
// window when at least one target changed (spec §4.3.1 "Contract": input is
// an irregular stream of per-frame color vectors).
func (s *Smoothing) UpdateTargets(targets []RGB, now time.Time) {
	changed := false
	for i := range s.leds {
		if i < len(targets) && s.leds[i].target != targets[i] {
			s.leds[i].target = targets[i]
			changed = true
		}
	}
	if changed {
		s.remainingMs = s.activeConfig().SettlingMs
		s.settleStart = now
	}
}

// GetSuggestedInterval returns the active config's update interval in ms,
// mirroring original_source/include/base/Smoothing.h's GetSuggestedInterval.
func (s *Smoothing) GetSuggestedInterval() int64 {
	return s.activeConfig().UpdateMs
}

// Tick advances all LED states by dt milliseconds using the active
// interpolator, honoring pause (targets keep accumulating via UpdateTargets,
// but emission is suspended) and the anti-flicker guard, and returns the
// colors to emit. When paused, Tick returns the previous output unchanged.
func (s *Smoothing) Tick(now time.Time, dt int64) []RGB {
	cfg := s.activeConfig()
	out := make([]RGB, len(s.leds))

	if cfg.Pause {
		for i := range s.leds {
			out[i] = s.leds[i].current
		}
		return out
	}

	interp := NewInterpolator(cfg.Type)
	// Step against the time remaining as of the start of this tick (spec §8
	// scenario 4's worked example), then decrement for the next tick only
	// after every LED has stepped.
	remaining := s.remainingMs

	for i := range s.leds {
		led := &s.leds[i]
		stepped := interp.Step(led.current, led.target, remaining, dt, cfg, &led.velocity)
		out[i] = s.applyAntiFlicker(led, stepped, now, cfg)
	}

	if remaining > 0 {
		remaining -= dt
		if remaining < 0 {
			remaining = 0
		}
	}
	s.remainingMs = remaining
	return out
}

// applyAntiFlicker rejects output deltas below AntiFlickerThreshold until the
// cumulative drift exceeds AntiFlickerStep or AntiFlickerTimeoutMs elapses
// (spec §4.3.1 "Anti-flicker").
func (s *Smoothing) applyAntiFlicker(led *ledState, stepped RGB, now time.Time, cfg SmoothingConfig) RGB {
	if cfg.AntiFlickerThreshold <= 0 {
		led.current = stepped
		led.lastEmit = now
		return stepped
	}

	delta := channelDelta(led.current, stepped)
	led.drift += delta

	timedOut := cfg.AntiFlickerTimeoutMs > 0 && !led.lastEmit.IsZero() &&
		now.Sub(led.lastEmit).Milliseconds() >= cfg.AntiFlickerTimeoutMs

	if delta < float64(cfg.AntiFlickerThreshold) && led.drift < float64(cfg.AntiFlickerStep) && !timedOut {
		return led.current
	}

	led.current = stepped
	led.drift = 0
	led.lastEmit = now
	return stepped
}

func channelDelta(a, b RGB) float64 {
	abs := func(v int) float64 {
		if v < 0 {
			return float64(-v)
		}
		return float64(v)
	}
	return abs(int(a.R)-int(b.R)) + abs(int(a.G)-int(b.G)) + abs(int(a.B)-int(b.B))
}

// Resume fast-forwards every LED to its latest target, per spec §4.3.1
// "Pause": "on resume it fast-forwards state to the latest target".
func (s *Smoothing) Resume() {
	for i := range s.leds {
		s.leds[i].current = s.leds[i].target
		s.leds[i].velocity = Velocity{}
		s.leds[i].drift = 0
	}
	s.remainingMs = 0
}
