package color

import "time"

// Stage is one step of the per-tick color pipeline: LUT lookup, calibration,
// or smoothing, each taking the previous stage's per-LED colors and
// producing the next (spec §4.3 "Stage order fixed: LUT -> calibration ->
// smoothing").
type Stage func([]RGB) []RGB

// Pipeline chains Stages in a fixed, caller-ordered sequence, so the LUT ->
// calibration -> smoothing order is enforced by the slice build order
// rather than by separately-maintained call sites.
type Pipeline struct {
	stages []Stage
}

// NewPipeline builds a Pipeline from stages in execution order. A nil stage
// is skipped, so callers can conditionally append without filtering.
func NewPipeline(stages ...Stage) *Pipeline {
	return &Pipeline{stages: stages}
}

// Run executes every stage in order over colors.
func (p *Pipeline) Run(colors []RGB) []RGB {
	for _, stage := range p.stages {
		if stage == nil {
			continue
		}
		colors = stage(colors)
	}
	return colors
}

// LUTStage returns a Stage applying l. A nil LUT is a no-op passthrough, so
// callers can build a Stage unconditionally rather than branching on nil.
func (l *LUT) LUTStage() Stage {
	if l == nil {
		return func(colors []RGB) []RGB { return colors }
	}
	return l.Apply
}

// CalibrationStage returns a Stage applying c uniformly to every LED.
func (c Calibration) CalibrationStage() Stage {
	return func(colors []RGB) []RGB {
		return ApplyAll(colors, nil, c)
	}
}

// Stage returns a Stage that feeds colors into s as the new targets and
// returns one Tick's worth of output, closing over the tick's own now/dt
// (spec §4.3.1 "Contract": per-frame targets in, steady per-tick output
// out).
func (s *Smoothing) Stage(now time.Time, dt int64) Stage {
	return func(colors []RGB) []RGB {
		s.UpdateTargets(colors, now)
		return s.Tick(now, dt)
	}
}
