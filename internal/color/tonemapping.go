package color

import "time"

// ToneMappingMode selects which LUT variant is bound to the pipeline
// (spec §4.3 stage 1).
type ToneMappingMode int

const (
	ToneMappingOff ToneMappingMode = iota
	ToneMappingManual
	ToneMappingAutoSDRHDR
)

// ToneMappingThresholds are the running per-frame (Y,U,V) maxima compared
// against configured thresholds to decide SDR/HDR dwell transitions. Field
// names and shape are taken from
// original_source/include/base/AutomaticToneMapping.h.
type ToneMappingThresholds struct {
	Y, U, V uint8
}

// AutomaticToneMapping tracks running YUV maxima across frames and switches
// between an SDR and an HDR LUT after the configured dwell periods elapse, as
// described in spec §4.3 stage 1. The concrete production threshold/dwell
// defaults are not invented here (spec §9 Open Questions): Configure must be
// called with values sourced from a real deployment before auto mode is used.
type AutomaticToneMapping struct {
	enabled          bool
	config           ToneMappingThresholds
	running          ToneMappingThresholds
	enterDwell       time.Duration
	leaveDwell       time.Duration
	modeSDR          bool
	aboveSince       time.Time
	belowSince       time.Time
	aboveThresholdNow bool
}

// NewAutomaticToneMapping returns a detector starting in SDR mode, disabled
// until Configure is called.
func NewAutomaticToneMapping() *AutomaticToneMapping {
	return &AutomaticToneMapping{modeSDR: true}
}

// Configure sets the detector's thresholds and dwell periods. enterDwell is
// the time continuously above threshold required before switching to HDR;
// leaveDwell is the time continuously below threshold required to fall back
// to SDR (spec §4.3: "enter >= N seconds above threshold; leave >= M ms below").
func (a *AutomaticToneMapping) Configure(enabled bool, thresholds ToneMappingThresholds, enterDwell, leaveDwell time.Duration) {
	a.enabled = enabled
	a.config = thresholds
	a.enterDwell = enterDwell
	a.leaveDwell = leaveDwell
	a.running = ToneMappingThresholds{}
}

// Observe folds a frame's Y/U/V maxima into the running state and returns
// whether the detector is currently selecting the HDR table.
func (a *AutomaticToneMapping) Observe(y, u, v uint8, now time.Time) bool {
	if !a.enabled {
		return false
	}
	if y > a.running.Y {
		a.running.Y = y
	}
	if u > a.running.U {
		a.running.U = u
	}
	if v > a.running.V {
		a.running.V = v
	}

	above := a.running.Y > a.config.Y || a.running.U > a.config.U || a.running.V > a.config.V

	if above {
		if !a.aboveThresholdNow {
			a.aboveSince = now
		}
		a.aboveThresholdNow = true
		a.belowSince = time.Time{}
	} else {
		if a.aboveThresholdNow || a.belowSince.IsZero() {
			a.belowSince = now
		}
		a.aboveThresholdNow = false
	}

	if !a.modeSDR {
		// currently HDR: fall back once we've been below threshold for leaveDwell
		if !above && !a.belowSince.IsZero() && now.Sub(a.belowSince) >= a.leaveDwell {
			a.modeSDR = true
		}
	} else {
		// currently SDR: switch up once we've been above threshold for enterDwell
		if above && now.Sub(a.aboveSince) >= a.enterDwell {
			a.modeSDR = false
		}
	}
	return !a.modeSDR
}

// ResetRunning clears the accumulated per-frame maxima; callers invoke this
// once per frame before folding in the new sample, matching the
// "running" reset semantics implied by AutomaticToneMapping.h's checkY/checkU/checkV.
func (a *AutomaticToneMapping) ResetRunning() {
	a.running = ToneMappingThresholds{}
}

// IsHDR reports the detector's current mode.
func (a *AutomaticToneMapping) IsHDR() bool { return !a.modeSDR }
