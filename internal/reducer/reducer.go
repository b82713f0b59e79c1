package reducer

import (
	"math"
	"time"

	"github.com/hyperhdr-core/hyperhdr/internal/color"
)

// maxPixelsPerLed bounds accumulator overflow per spec §4.2 "Failure":
// "pixel counts per LED must not exceed 2^24".
const maxPixelsPerLed = 1 << 24

// sparseTarget is the default number of samples kept per LED under sparse
// processing (spec §4.2 "Index pre-computation": "near a target (default ~
// 121 samples)").
const sparseTarget = 121

// defaultWeightLUT is the 256-entry weighting table applied to each
// pixel's luma before summation in advanced mode (spec §4.2 "weighted-mean").
// Built once; a flat table (every entry 256, i.e. 1.0 in Q8) is perceptually neutral and is replaced
// by a real perceptual curve via SetWeightLUT if the caller has one.
var defaultWeightLUT = func() [256]uint16 {
	var t [256]uint16
	for i := range t {
		t[i] = 256 // fixed-point 1.0 in Q8
	}
	return t
}()

// Reducer holds the precomputed per-LED pixel index lists for a given frame
// size, border inset and layout, and turns frames into per-LED colors (spec
// §4.2).
type Reducer struct {
	layout       Layout
	width        int // frame width the indices were computed for
	height       int
	hBorder      int
	vBorder      int
	mapping      Mapping
	sparse       bool
	weightLUT    [256]uint16
	indices      [][]int32 // per-LED absolute pixel indices into the frame
	groups       []int     // per-LED group id (0 = no group)
	lastColors   []color.RGB
	groupMembers map[int][]int

	border        *BorderDetector
	borderEnabled bool
}

// New builds a Reducer for the given layout, mapping mode and sparse flag.
// Index lists are built lazily on the first Process call for a given frame
// size (spec §3 "Reducer state": "Rebuilt whenever frame size, borders, or
// layout changes").
func New(layout Layout, mapping Mapping, sparse bool) *Reducer {
	groups := make(map[int][]int)
	for i, led := range layout.Leds {
		if led.Group != 0 {
			groups[led.Group] = append(groups[led.Group], i)
		}
	}
	return &Reducer{
		layout:       layout,
		mapping:      mapping,
		sparse:       sparse,
		weightLUT:    defaultWeightLUT,
		lastColors:   make([]color.RGB, layout.Size()),
		groupMembers: groups,
	}
}

// SetWeightLUT installs a custom 256-entry Y-weighting table for advanced
// mode (spec §4.2 "apply a 256-entry weighting LUT to each pixel's Y").
func (r *Reducer) SetWeightLUT(lut [256]uint16) { r.weightLUT = lut }

// SetLayout replaces the layout, invalidating precomputed indices.
func (r *Reducer) SetLayout(layout Layout) {
	r.layout = layout
	r.indices = nil
	groups := make(map[int][]int)
	for i, led := range layout.Leds {
		if led.Group != 0 {
			groups[led.Group] = append(groups[led.Group], i)
		}
	}
	r.groupMembers = groups
	r.lastColors = make([]color.RGB, layout.Size())
}

// SetBorderDetectionEnabled turns the inline black-border scan on or off
// (the reducer half of the BLACKBORDER component gate, spec §6 "Component
// state"); threshold seeds a new detector the first time it is enabled and
// is ignored on later calls, since the detector carries its own streak
// state across toggles.
func (r *Reducer) SetBorderDetectionEnabled(enabled bool, threshold uint8) {
	if enabled && r.border == nil {
		r.border = NewBorderDetector(threshold)
	}
	r.borderEnabled = enabled
}

// SetBorders updates the border inset, invalidating precomputed indices
// (spec §4.2 "Border detection").
func (r *Reducer) SetBorders(hBorder, vBorder int) {
	if hBorder == r.hBorder && vBorder == r.vBorder {
		return
	}
	r.hBorder, r.vBorder = hBorder, vBorder
	r.indices = nil
}

func round(v float64) int { return int(math.Floor(v + 0.5)) }

// rebuildIndices precomputes, for each LED, the absolute pixel indices into a
// width x height frame inset by the current borders (spec §4.2 "Index
// pre-computation").
func (r *Reducer) rebuildIndices(width, height int) {
	wPrime := width - 2*r.hBorder
	hPrime := height - 2*r.vBorder
	if wPrime <= 0 {
		wPrime = width
	}
	if hPrime <= 0 {
		hPrime = height
	}

	r.indices = make([][]int32, len(r.layout.Leds))
	for i, led := range r.layout.Leds {
		if led.Disabled {
			r.indices[i] = nil
			continue
		}
		x0 := round(led.X1*float64(wPrime)) + r.hBorder
		x1 := round(led.X2*float64(wPrime)) + r.hBorder
		y0 := round(led.Y1*float64(hPrime)) + r.vBorder
		y1 := round(led.Y2*float64(hPrime)) + r.vBorder

		x0, x1 = clampRange(x0, x1, width)
		y0, y1 = clampRange(y0, y1, height)

		var idx []int32
		if r.sparse {
			idx = sparseIndices(x0, x1, y0, y1, width)
		} else {
			idx = denseIndices(x0, x1, y0, y1, width)
		}
		if len(idx) > maxPixelsPerLed {
			idx = idx[:maxPixelsPerLed]
		}
		r.indices[i] = idx
	}
	r.width, r.height = width, height
}

func clampRange(a, b, max int) (int, int) {
	if a < 0 {
		a = 0
	}
	if b > max {
		b = max
	}
	if b < a {
		b = a
	}
	return a, b
}

func denseIndices(x0, x1, y0, y1, width int) []int32 {
	idx := make([]int32, 0, (x1-x0)*(y1-y0))
	for y := y0; y < y1; y++ {
		base := y * width
		for x := x0; x < x1; x++ {
			idx = append(idx, int32(base+x))
		}
	}
	return idx
}

// sparseIndices keeps every k-th pixel such that the kept count is near
// sparseTarget (spec §4.2).
func sparseIndices(x0, x1, y0, y1, width int) []int32 {
	total := (x1 - x0) * (y1 - y0)
	if total <= 0 {
		return nil
	}
	k := total / sparseTarget
	if k < 1 {
		k = 1
	}
	idx := make([]int32, 0, sparseTarget+1)
	count := 0
	for y := y0; y < y1; y++ {
		base := y * width
		for x := x0; x < x1; x++ {
			if count%k == 0 {
				idx = append(idx, int32(base+x))
			}
			count++
		}
	}
	return idx
}

// Process reduces frame to exactly layout.Size() colors (spec §4.2, §8
// invariant). Empty frames return the last-known colors (spec §4.2
// "Failure"). A frame/layout size mismatch triggers an index rebuild.
func (r *Reducer) Process(f Frame) []color.RGB {
	if err := f.Validate(); err != nil {
		return r.lastColors
	}
	// Invoked inline, not from a separate goroutine, so a border change and
	// the index rebuild it triggers are always serialized with each other
	// (SPEC_FULL.md §4.2 "Border detector cadence").
	if r.borderEnabled && r.border != nil {
		if hB, vB, changed := r.border.Observe(f, time.Now()); changed {
			r.SetBorders(hB, vB)
		}
	}
	if r.indices == nil || r.width != f.Width || r.height != f.Height {
		r.rebuildIndices(f.Width, f.Height)
	}

	out := make([]color.RGB, len(r.layout.Leds))

	switch r.mapping {
	case MappingUnicolor:
		mean := r.meanOf(f, allIndices(f.Width, f.Height))
		for i := range out {
			out[i] = mean
		}
	case MappingAdvanced:
		for i, idx := range r.indices {
			out[i] = r.meanAdvOf(f, idx)
		}
	default:
		for i, idx := range r.indices {
			out[i] = r.meanOf(f, idx)
		}
	}

	r.applyGroups(out)
	r.lastColors = out
	return out
}

func allIndices(width, height int) []int32 {
	n := width * height
	idx := make([]int32, n)
	for i := range idx {
		idx[i] = int32(i)
	}
	return idx
}

func (r *Reducer) meanOf(f Frame, idx []int32) color.RGB {
	if len(idx) == 0 {
		return color.Black
	}
	var sr, sg, sb uint32
	for _, p := range idx {
		c := f.Pix[p]
		sr += uint32(c.R)
		sg += uint32(c.G)
		sb += uint32(c.B)
	}
	n := uint32(len(idx))
	return color.RGB{R: uint8(sr / n), G: uint8(sg / n), B: uint8(sb / n)}
}

// meanAdvOf applies the weighting LUT to each pixel's luma before summation
// (spec §4.2 "weighted-mean (advanced)").
func (r *Reducer) meanAdvOf(f Frame, idx []int32) color.RGB {
	if len(idx) == 0 {
		return color.Black
	}
	var sr, sg, sb uint64
	var sw uint64
	for _, p := range idx {
		c := f.Pix[p]
		y := (uint32(c.R)*299 + uint32(c.G)*587 + uint32(c.B)*114) / 1000
		w := uint64(r.weightLUT[y])
		sr += uint64(c.R) * w
		sg += uint64(c.G) * w
		sb += uint64(c.B) * w
		sw += w
	}
	if sw == 0 {
		return color.Black
	}
	return color.RGB{R: uint8(sr / sw), G: uint8(sg / sw), B: uint8(sb / sw)}
}

// applyGroups averages the already-reduced colors of a group's members and
// writes the result back to every member, enforcing uniform color across
// declared zones (spec §4.2 "Grouped averaging"). Each member counts equally;
// the number of pixels a member sampled does not weight the average.
func (r *Reducer) applyGroups(out []color.RGB) {
	for _, members := range r.groupMembers {
		if len(members) < 2 {
			continue
		}
		var sr, sg, sb, n uint32
		for _, m := range members {
			sr += uint32(out[m].R)
			sg += uint32(out[m].G)
			sb += uint32(out[m].B)
			n++
		}
		merged := color.RGB{R: uint8(sr / n), G: uint8(sg / n), B: uint8(sb / n)}
		for _, m := range members {
			out[m] = merged
		}
	}
}
