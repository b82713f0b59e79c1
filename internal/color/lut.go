package color

import (
	"fmt"
	"os"
)

// PixelFormat tags the origin encoding of a captured frame, as carried on
// reducer.Frame (spec §3 "Frame").
type PixelFormat int

const (
	FormatRGB24 PixelFormat = iota
	FormatYUV420
	FormatNV12
	FormatMJPEG
)

func (f PixelFormat) String() string {
	switch f {
	case FormatYUV420:
		return "yuv420"
	case FormatNV12:
		return "nv12"
	case FormatMJPEG:
		return "mjpeg"
	default:
		return "rgb24"
	}
}

// lutDim is the per-axis resolution of the 3D lookup table (spec §3 "LUT":
// 256^3*3 bytes).
const lutDim = 256

// LUT is a 256^3*3-byte 3D lookup table mapping a source (Y,U,V) or (R,G,B)
// triplet to corrected RGB. Loaded once per pixel format and shared read-only
// across instances (spec §3 "Invariants": LUT file reference-counted).
type LUT struct {
	Format PixelFormat
	table  []byte // lutDim^3 * 3 bytes
	refs   int32
}

// NewLUT allocates an identity LUT (pass-through) for the given format. An
// identity LUT makes "gamma=(1,1,1) and identity calibration" a true
// pass-through per spec §8.
func NewLUT(format PixelFormat) *LUT {
	l := &LUT{Format: format, table: make([]byte, lutDim*lutDim*lutDim*3)}
	for a := 0; a < lutDim; a++ {
		for b := 0; b < lutDim; b++ {
			for c := 0; c < lutDim; c++ {
				idx := (a*lutDim*lutDim + b*lutDim + c) * 3
				l.table[idx+0] = byte(a)
				l.table[idx+1] = byte(b)
				l.table[idx+2] = byte(c)
			}
		}
	}
	return l
}

// LoadLUTFile loads a raw 256^3*3 byte LUT from disk, mirroring
// original_source/include/utils/LutLoader.h's loadLutFile: the first file in
// the candidate list that exists and has the right size wins.
func LoadLUTFile(format PixelFormat, candidates []string) (*LUT, error) {
	want := lutDim * lutDim * lutDim * 3
	var lastErr error
	for _, path := range candidates {
		data, err := os.ReadFile(path)
		if err != nil {
			lastErr = err
			continue
		}
		if len(data) != want {
			lastErr = fmt.Errorf("lut file %s: got %d bytes, want %d", path, len(data), want)
			continue
		}
		return &LUT{Format: format, table: data}, nil
	}
	if lastErr == nil {
		lastErr = fmt.Errorf("no lut candidates given for format %s", format)
	}
	return nil, lastErr
}

// Acquire increments the LUT's reference count; drivers/pipelines call this
// when binding a LUT so Release knows when it's safe to free.
func (l *LUT) Acquire() { l.refs++ }

// Release decrements the reference count. It never frees the Go-managed
// backing array (the GC does that once refs drop and no pipeline holds a
// pointer); refs is kept only for observability/testing.
func (l *LUT) Release() {
	if l.refs > 0 {
		l.refs--
	}
}

// Refs reports the current reference count.
func (l *LUT) Refs() int32 { return l.refs }

// Lookup applies the 3D LUT to a single RGB triplet.
func (l *LUT) Lookup(c RGB) RGB {
	idx := (int(c.R)*lutDim*lutDim + int(c.G)*lutDim + int(c.B)) * 3
	return RGB{R: l.table[idx+0], G: l.table[idx+1], B: l.table[idx+2]}
}

// Apply runs the LUT over a full color slice in place semantics, returning a
// new slice (reducer output must not be mutated further upstream).
func (l *LUT) Apply(colors []RGB) []RGB {
	out := make([]RGB, len(colors))
	for i, c := range colors {
		out[i] = l.Lookup(c)
	}
	return out
}
