package reducer

import (
	"time"

	"github.com/hyperhdr-core/hyperhdr/internal/color"
)

// minInterChange is the minimum time between accepted border changes (spec
// §4.2 "Border detection": "a 50-ms minimum inter-change interval").
const minInterChange = 50 * time.Millisecond

// DefaultBorderThreshold is the per-channel darkness threshold a Reducer uses
// when border detection is switched on without an explicit threshold (the
// BLACKBORDER component gate, spec §6 "Component state").
const DefaultBorderThreshold uint8 = 10

// BorderDetector scans frames periodically for black bars and updates
// (hBorder, vBorder) once the measurement stabilizes across consecutive
// frames (spec §4.2 "Border detection"). It is invoked inline from Process
// (via Observe), not from a separate goroutine, so border updates are
// serialized with index rebuilds (SPEC_FULL.md §4.2).
type BorderDetector struct {
	threshold      uint8
	requiredStreak int

	lastMeasure    [2]int
	streak         int
	lastChangeTime time.Time

	HBorder, VBorder int
}

// NewBorderDetector returns a detector requiring 2 consecutive agreeing
// measurements before applying a change (spec §4.2: "requiring two
// consecutive agreeing measurements").
func NewBorderDetector(threshold uint8) *BorderDetector {
	return &BorderDetector{threshold: threshold, requiredStreak: 2}
}

// Observe scans f for black borders and returns (hBorder, vBorder, changed).
func (d *BorderDetector) Observe(f Frame, now time.Time) (int, int, bool) {
	h, v := scanBorder(f, d.threshold)

	if h == d.lastMeasure[0] && v == d.lastMeasure[1] {
		d.streak++
	} else {
		d.lastMeasure = [2]int{h, v}
		d.streak = 1
	}

	if d.streak < d.requiredStreak {
		return d.HBorder, d.VBorder, false
	}
	if !d.lastChangeTime.IsZero() && now.Sub(d.lastChangeTime) < minInterChange {
		return d.HBorder, d.VBorder, false
	}
	if h == d.HBorder && v == d.VBorder {
		return d.HBorder, d.VBorder, false
	}

	d.HBorder, d.VBorder = h, v
	d.lastChangeTime = now
	return h, v, true
}

func isDark(c color.RGB, threshold uint8) bool {
	return c.R < threshold && c.G < threshold && c.B < threshold
}

// scanBorder measures the thickness of a uniformly dark border on each edge.
func scanBorder(f Frame, threshold uint8) (hBorder, vBorder int) {
	if f.Width == 0 || f.Height == 0 {
		return 0, 0
	}
	midY := f.Height / 2
	for x := 0; x < f.Width/2; x++ {
		if !isDark(f.Pix[midY*f.Width+x], threshold) {
			hBorder = x
			break
		}
		hBorder = x + 1
	}
	midX := f.Width / 2
	for y := 0; y < f.Height/2; y++ {
		if !isDark(f.Pix[y*f.Width+midX], threshold) {
			vBorder = y
			break
		}
		vBorder = y + 1
	}
	return hBorder, vBorder
}
