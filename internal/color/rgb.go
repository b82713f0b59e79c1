// Package color implements the tone-mapping, calibration and temporal smoothing
// stages of the per-instance color pipeline (spec §4.3).
package color

import "math"

// RGB is the wire color unit carried through the whole pipeline: reducer output,
// LUT output, calibration output and the final driver payload.
type RGB struct {
	R, G, B uint8
}

// Black is the sentinel color held by the muxer's lowest-priority input.
var Black = RGB{}

func clamp8(v float64) uint8 {
	if v <= 0 {
		return 0
	}
	if v >= 255 {
		return 255
	}
	return uint8(v + 0.5)
}

// YUV is a BT.601/BT.709/BT.2020-agnostic luma/chroma triplet; the matrix used to
// produce it is selected by Matrix.
type YUV struct {
	Y, U, V float64
}

// Matrix names one of the three standard RGB<->YUV conversion matrices used by
// HyperHDR-class pipelines (spec §8 "Round-trip laws").
type Matrix int

const (
	MatrixBT601 Matrix = iota
	MatrixBT709
	MatrixBT2020
)

type yuvCoeffs struct{ kr, kb float64 }

func (m Matrix) coeffs() yuvCoeffs {
	switch m {
	case MatrixBT709:
		return yuvCoeffs{kr: 0.2126, kb: 0.0722}
	case MatrixBT2020:
		return yuvCoeffs{kr: 0.2627, kb: 0.0593}
	default:
		return yuvCoeffs{kr: 0.299, kb: 0.114}
	}
}

// RGBToYUV converts an 8-bit RGB triplet to full-range Y'UV using the given matrix.
func RGBToYUV(c RGB, m Matrix) YUV {
	co := m.coeffs()
	kg := 1 - co.kr - co.kb
	r, g, b := float64(c.R), float64(c.G), float64(c.B)
	y := co.kr*r + kg*g + co.kb*b
	u := (b - y) / (2 * (1 - co.kb))
	v := (r - y) / (2 * (1 - co.kr))
	return YUV{Y: y, U: u, V: v}
}

// YUVToRGB is the inverse of RGBToYUV for the same matrix.
func YUVToRGB(y YUV, m Matrix) RGB {
	co := m.coeffs()
	kg := 1 - co.kr - co.kb
	r := y.Y + 2*(1-co.kr)*y.V
	b := y.Y + 2*(1-co.kb)*y.U
	g := (y.Y - co.kr*r - co.kb*b) / kg
	return RGB{R: clamp8(r), G: clamp8(g), B: clamp8(b)}
}

// HSL is hue in [0,360), saturation and lightness in [0,1].
type HSL struct {
	H, S, L float64
}

// RGBToHSL converts an 8-bit RGB triplet to HSL.
func RGBToHSL(c RGB) HSL {
	r := float64(c.R) / 255
	g := float64(c.G) / 255
	b := float64(c.B) / 255
	max := math.Max(r, math.Max(g, b))
	min := math.Min(r, math.Min(g, b))
	l := (max + min) / 2
	if max == min {
		return HSL{0, 0, l}
	}
	d := max - min
	var s float64
	if l > 0.5 {
		s = d / (2 - max - min)
	} else {
		s = d / (max + min)
	}
	var h float64
	switch max {
	case r:
		h = (g - b) / d
		if g < b {
			h += 6
		}
	case g:
		h = (b-r)/d + 2
	default:
		h = (r-g)/d + 4
	}
	h *= 60
	return HSL{H: h, S: s, L: l}
}

func hueToRGB(p, q, t float64) float64 {
	if t < 0 {
		t += 1
	}
	if t > 1 {
		t -= 1
	}
	switch {
	case t < 1.0/6:
		return p + (q-p)*6*t
	case t < 1.0/2:
		return q
	case t < 2.0/3:
		return p + (q-p)*(2.0/3-t)*6
	default:
		return p
	}
}

// HSLToRGB is the inverse of RGBToHSL.
func HSLToRGB(hsl HSL) RGB {
	if hsl.S == 0 {
		v := clamp8(hsl.L * 255)
		return RGB{v, v, v}
	}
	var q float64
	if hsl.L < 0.5 {
		q = hsl.L * (1 + hsl.S)
	} else {
		q = hsl.L + hsl.S - hsl.L*hsl.S
	}
	p := 2*hsl.L - q
	h := hsl.H / 360
	r := hueToRGB(p, q, h+1.0/3)
	g := hueToRGB(p, q, h)
	b := hueToRGB(p, q, h-1.0/3)
	return RGB{R: clamp8(r * 255), G: clamp8(g * 255), B: clamp8(b * 255)}
}
