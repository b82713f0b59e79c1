package color

import "math"

// HSV is hue in [0,360), saturation and value in [0,1]. Kept distinct from HSL:
// the calibration stage works in HSL space (spec §4.3.2) but the round-trip
// property tests (spec §8) are specified against HSV.
type HSV struct {
	H, S, V float64
}

// RGBToHSV converts an 8-bit RGB triplet to HSV.
func RGBToHSV(c RGB) HSV {
	r := float64(c.R) / 255
	g := float64(c.G) / 255
	b := float64(c.B) / 255
	max := math.Max(r, math.Max(g, b))
	min := math.Min(r, math.Min(g, b))
	v := max
	d := max - min
	var s float64
	if max != 0 {
		s = d / max
	}
	if d == 0 {
		return HSV{0, 0, v}
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
	return HSV{H: h, S: s, V: v}
}

// HSVToRGB is the inverse of RGBToHSV.
func HSVToRGB(hsv HSV) RGB {
	if hsv.S == 0 {
		v := clamp8(hsv.V * 255)
		return RGB{v, v, v}
	}
	h := hsv.H / 60
	i := math.Floor(h)
	f := h - i
	p := hsv.V * (1 - hsv.S)
	q := hsv.V * (1 - hsv.S*f)
	t := hsv.V * (1 - hsv.S*(1-f))

	var r, g, b float64
	switch int(i) % 6 {
	case 0:
		r, g, b = hsv.V, t, p
	case 1:
		r, g, b = q, hsv.V, p
	case 2:
		r, g, b = p, hsv.V, t
	case 3:
		r, g, b = p, q, hsv.V
	case 4:
		r, g, b = t, p, hsv.V
	default:
		r, g, b = hsv.V, p, q
	}
	return RGB{R: clamp8(r * 255), G: clamp8(g * 255), B: clamp8(b * 255)}
}
