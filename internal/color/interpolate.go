package color

import "math"

// SmoothingType enumerates the temporal filter variants of spec §4.3.1.
type SmoothingType int

const (
	Stepper SmoothingType = iota
	RgbInterpolator
	YuvInterpolator
	HybridInterpolator
	ExponentialInterpolator
	HybridRgbInterpolator
)

// SmoothingUserConfig is the reserved id for the instance's own (non-effect)
// smoothing configuration, per original_source/include/base/Smoothing.h's
// SMOOTHING_USER_CONFIG.
const SmoothingUserConfig = 0

// SmoothingConfig parameterizes one temporal filter instance. Index 0 is
// SmoothingUserConfig; indices >= 1 are owned by effects (spec §3).
type SmoothingConfig struct {
	SettlingMs    int64
	UpdateMs      int64
	Type          SmoothingType
	Factor        float64 // exponential decay factor / time constant source
	Stiffness     float64 // spring stiffness for Hybrid* variants
	Damping       float64 // spring damping for Hybrid* variants
	YLimit        float64 // per-step luminance-change limit (Yuv/Hybrid)
	Pause         bool

	// Anti-flicker guard (spec §4.3.1 "Anti-flicker"), field names taken
	// from original_source/include/base/Smoothing.h's SmoothingConfig.
	AntiFlickerThreshold int32
	AntiFlickerStep      int32
	AntiFlickerTimeoutMs int64
}

// Validate checks the invariants of spec §3(c)/§8:
// update_interval_ms >= 5 and (if settling_time_ms > 0) update_interval_ms <= settling_time_ms.
func (c SmoothingConfig) Validate() error {
	if c.UpdateMs < 5 {
		return errUpdateTooFast
	}
	if c.SettlingMs > 0 && c.UpdateMs > c.SettlingMs {
		return errUpdateExceedsSettle
	}
	return nil
}

var (
	errUpdateTooFast       = smoothingError("update_interval_ms must be >= 5")
	errUpdateExceedsSettle = smoothingError("update_interval_ms must be <= settling_time_ms")
)

type smoothingError string

func (e smoothingError) Error() string { return string(e) }

// Interpolator advances a per-LED color from current toward target over dt.
// Implementations must be stateless with respect to anything but the
// per-LED velocity they are explicitly given, so a pipeline can hold one
// velocity slice per LED alongside whichever interpolator is active.
type Interpolator interface {
	// Step returns the new current color. velocity is read/written in place
	// for spring-based variants; non-spring variants ignore it.
	Step(current, target RGB, remainingMs int64, dt int64, cfg SmoothingConfig, velocity *Velocity) RGB
}

// Velocity holds the per-LED per-channel velocity state used by the
// spring-damper (Hybrid*) variants.
type Velocity struct {
	VY, VU, VV float64 // Yuv-space velocity (HybridInterpolator)
	VR, VG, VB float64 // RGB-space velocity (HybridRgbInterpolator)
}

func clampf(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// NewInterpolator returns the Interpolator for the given SmoothingType.
func NewInterpolator(t SmoothingType) Interpolator {
	switch t {
	case RgbInterpolator:
		return rgbInterpolator{}
	case YuvInterpolator:
		return yuvInterpolator{}
	case HybridInterpolator:
		return hybridInterpolator{}
	case ExponentialInterpolator:
		return exponentialInterpolator{}
	case HybridRgbInterpolator:
		return hybridRgbInterpolator{}
	default:
		return stepper{}
	}
}

// stepper implements a linear ramp toward target, finishing exactly at
// remaining_time == 0 with no overshoot (spec §4.3.1 "Stepper").
type stepper struct{}

func (stepper) Step(current, target RGB, remainingMs, dt int64, _ SmoothingConfig, _ *Velocity) RGB {
	if remainingMs <= 0 {
		return target
	}
	frac := float64(dt) / float64(remainingMs)
	if frac > 1 {
		frac = 1
	}
	step := func(c, t uint8) uint8 {
		delta := float64(int(t) - int(c))
		return clamp8(float64(c) + delta*frac)
	}
	return RGB{R: step(current.R, target.R), G: step(current.G, target.G), B: step(current.B, target.B)}
}

// rgbInterpolator: exponential decay per channel in RGB space (spec §4.3.1
// "RgbInterpolator"). tau is derived from cfg.Factor (larger factor = slower).
type rgbInterpolator struct{}

func decayTau(current, target float64, dtMs int64, tau float64) float64 {
	if tau <= 0 {
		return target
	}
	k := math.Exp(-float64(dtMs) / tau)
	return target - (target-current)*k
}

func (rgbInterpolator) Step(current, target RGB, _ int64, dt int64, cfg SmoothingConfig, _ *Velocity) RGB {
	tau := cfg.Factor
	if tau <= 0 {
		tau = 1
	}
	r := decayTau(float64(current.R), float64(target.R), dt, tau)
	g := decayTau(float64(current.G), float64(target.G), dt, tau)
	b := decayTau(float64(current.B), float64(target.B), dt, tau)
	return RGB{R: clamp8(r), G: clamp8(g), B: clamp8(b)}
}

// exponentialInterpolator is a plain exponential decay in RGB with a fixed
// smoothing factor (spec §4.3.1 "ExponentialInterpolator"): same math as
// rgbInterpolator but tau is a fixed constant rather than being tunable per
// call, matching the production distinction between the two variants.
type exponentialInterpolator struct{}

const fixedExponentialTau = 200 // ms

func (exponentialInterpolator) Step(current, target RGB, _ int64, dt int64, _ SmoothingConfig, _ *Velocity) RGB {
	r := decayTau(float64(current.R), float64(target.R), dt, fixedExponentialTau)
	g := decayTau(float64(current.G), float64(target.G), dt, fixedExponentialTau)
	b := decayTau(float64(current.B), float64(target.B), dt, fixedExponentialTau)
	return RGB{R: clamp8(r), G: clamp8(g), B: clamp8(b)}
}

// yuvInterpolator converts to Y'UV, decays each component exponentially,
// clamps the per-step luminance delta to cfg.YLimit, then converts back
// (spec §4.3.1 "YuvInterpolator").
type yuvInterpolator struct{}

func (yuvInterpolator) Step(current, target RGB, _ int64, dt int64, cfg SmoothingConfig, _ *Velocity) RGB {
	tau := cfg.Factor
	if tau <= 0 {
		tau = 1
	}
	cy := RGBToYUV(current, MatrixBT709)
	ty := RGBToYUV(target, MatrixBT709)

	newY := decayTau(cy.Y, ty.Y, dt, tau)
	if cfg.YLimit > 0 {
		delta := clampf(newY-cy.Y, -cfg.YLimit, cfg.YLimit)
		newY = cy.Y + delta
	}
	newU := decayTau(cy.U, ty.U, dt, tau)
	newV := decayTau(cy.V, ty.V, dt, tau)

	return YUVToRGB(YUV{Y: newY, U: newU, V: newV}, MatrixBT709)
}

// hybridInterpolator is a spring-damper in Y'UV space, capping per-step delta-Y
// (spec §4.3.1 "HybridInterpolator").
type hybridInterpolator struct{}

func springStep(x, target, v, stiffness, damping float64, dt float64) (float64, float64) {
	accel := stiffness*(target-x) - damping*v
	v += accel * dt
	x += v * dt
	return x, v
}

func (hybridInterpolator) Step(current, target RGB, _ int64, dt int64, cfg SmoothingConfig, vel *Velocity) RGB {
	dtSec := float64(dt) / 1000
	cy := RGBToYUV(current, MatrixBT709)
	ty := RGBToYUV(target, MatrixBT709)

	newY, newVY := springStep(cy.Y, ty.Y, vel.VY, cfg.Stiffness, cfg.Damping, dtSec)
	if cfg.YLimit > 0 {
		delta := clampf(newY-cy.Y, -cfg.YLimit, cfg.YLimit)
		newY = cy.Y + delta
	}
	newU, newVU := springStep(cy.U, ty.U, vel.VU, cfg.Stiffness, cfg.Damping, dtSec)
	newV, newVV := springStep(cy.V, ty.V, vel.VV, cfg.Stiffness, cfg.Damping, dtSec)

	vel.VY, vel.VU, vel.VV = newVY, newVU, newVV
	return YUVToRGB(YUV{Y: newY, U: newU, V: newV}, MatrixBT709)
}

// hybridRgbInterpolator is a spring-damper directly in RGB space (spec
// §4.3.1 "HybridRgbInterpolator").
type hybridRgbInterpolator struct{}

func (hybridRgbInterpolator) Step(current, target RGB, _ int64, dt int64, cfg SmoothingConfig, vel *Velocity) RGB {
	dtSec := float64(dt) / 1000
	newR, newVR := springStep(float64(current.R), float64(target.R), vel.VR, cfg.Stiffness, cfg.Damping, dtSec)
	newG, newVG := springStep(float64(current.G), float64(target.G), vel.VG, cfg.Stiffness, cfg.Damping, dtSec)
	newB, newVB := springStep(float64(current.B), float64(target.B), vel.VB, cfg.Stiffness, cfg.Damping, dtSec)
	vel.VR, vel.VG, vel.VB = newVR, newVG, newVB
	return RGB{R: clamp8(newR), G: clamp8(newG), B: clamp8(newB)}
}
