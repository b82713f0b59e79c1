package color

import "math"

// Calibration holds the per-LED color-correction parameters applied by stage
// 2 of the color pipeline (spec §4.3 "Per-LED calibration").
type Calibration struct {
	GammaR, GammaG, GammaB float64
	// WhiteX, WhiteY are the CIE xy chromaticity of the configured white
	// point (spec §3 "white-point"); zero disables the correction.
	WhiteX, WhiteY float64
	// Red, Green, Blue are the per-channel RGB targets used to derive the
	// RGB->RGB correction matrix (spec §3 "Color-calibration state").
	Red, Green, Blue RGB
	// ColdWhite is the tint blended into the backlight floor in proportion
	// to BacklightColored, standing in for an RGBW fixture's dedicated cold-
	// white channel (spec §3 "compensation ... per sub-type").
	ColdWhite        RGB
	SaturationGain   float64
	LuminanceGain    float64
	// BacklightThreshold lifts dark values to a minimum brightness (spec
	// §4.3 stage 2 "backlight floor").
	BacklightThreshold float64
	Brightness         float64
	// BacklightColored blends the backlight floor towards ColdWhite instead
	// of a flat gray, 0 (default) keeping the floor uncolored.
	BacklightColored float64
}

// DefaultCalibration is the identity calibration: gamma=(1,1,1), neutral
// primaries, unity gains, no backlight floor, full brightness. Combined with
// an identity LUT this makes the pipeline a pass-through (spec §8 "Gamma
// identity" round-trip law).
func DefaultCalibration() Calibration {
	return Calibration{
		GammaR: 1, GammaG: 1, GammaB: 1,
		Red:            RGB{255, 0, 0},
		Green:          RGB{0, 255, 0},
		Blue:           RGB{0, 0, 255},
		SaturationGain: 1,
		LuminanceGain:  1,
		Brightness:     1,
	}
}

func applyGamma(v uint8, gamma float64) uint8 {
	if gamma == 1 {
		return v
	}
	n := float64(v) / 255
	return clamp8(math.Pow(n, gamma) * 255)
}

// matrix applies the separable RGB->RGB correction matrix derived from the
// LED's primary-color targets: each output channel is a weighted sum of the
// gamma-corrected input channel projected onto the configured primary.
func (c Calibration) matrix(r, g, b uint8) RGB {
	rf, gf, bf := float64(r)/255, float64(g)/255, float64(b)/255
	red, green, blue := c.Red, c.Green, c.Blue

	outR := rf*float64(red.R)/255 + gf*float64(green.R)/255 + bf*float64(blue.R)/255
	outG := rf*float64(red.G)/255 + gf*float64(green.G)/255 + bf*float64(blue.G)/255
	outB := rf*float64(red.B)/255 + gf*float64(green.B)/255 + bf*float64(blue.B)/255

	return RGB{R: clamp8(outR * 255), G: clamp8(outG * 255), B: clamp8(outB * 255)}
}

// whitePointGains derives per-channel correction gains from the configured
// CIE xy white point via the standard xyY->linear-sRGB matrix, normalized so
// the green channel carries unity gain (spec §3 "white-point").
func (c Calibration) whitePointGains() (gr, gb float64) {
	if c.WhiteX <= 0 || c.WhiteY <= 0 {
		return 1, 1
	}
	x, y := c.WhiteX, c.WhiteY
	capX := x / y
	capZ := (1 - x - y) / y
	r := 3.2406*capX - 1.5372 - 0.4986*capZ
	g := -0.9689*capX + 1.8758 + 0.0415*capZ
	b := 0.0557*capX - 0.2040 + 1.0570*capZ
	if g <= 0 {
		return 1, 1
	}
	return r / g, b / g
}

// whitePoint rescales R and B to the configured white point, leaving G as
// the normalization reference.
func (c Calibration) whitePoint(in RGB) RGB {
	gr, gb := c.whitePointGains()
	if gr == 1 && gb == 1 {
		return in
	}
	return RGB{R: clamp8(float64(in.R) * gr), G: in.G, B: clamp8(float64(in.B) * gb)}
}

// saturationLuminanceGain applies the saturation/luminance gain stage in HSL
// space (spec §4.3 stage 2).
func (c Calibration) saturationLuminanceGain(in RGB) RGB {
	if c.SaturationGain == 1 && c.LuminanceGain == 1 {
		return in
	}
	hsl := RGBToHSL(in)
	hsl.S = math.Min(1, hsl.S*c.SaturationGain)
	hsl.L = math.Min(1, hsl.L*c.LuminanceGain)
	return HSLToRGB(hsl)
}

// backlightFloor lifts dark values to BacklightThreshold, blending the lift
// towards ColdWhite in proportion to BacklightColored instead of a flat gray
// floor (spec §4.3 stage 2 "backlight floor").
func (c Calibration) backlightFloor(in RGB) RGB {
	if c.BacklightThreshold <= 0 {
		return in
	}
	floor := clamp8(c.BacklightThreshold * 255)
	lift := func(v, tint uint8) uint8 {
		if v >= floor {
			return v
		}
		if c.BacklightColored <= 0 {
			return floor
		}
		return clamp8(float64(floor)*(1-c.BacklightColored) + float64(tint)*c.BacklightColored)
	}
	return RGB{R: lift(in.R, c.ColdWhite.R), G: lift(in.G, c.ColdWhite.G), B: lift(in.B, c.ColdWhite.B)}
}

// brightness scales the final RGB by the configured brightness compensation
// (spec §4.3 stage 2 "brightness compensation").
func (c Calibration) brightness(in RGB) RGB {
	if c.Brightness == 1 {
		return in
	}
	scale := func(v uint8) uint8 { return clamp8(float64(v) * c.Brightness) }
	return RGB{R: scale(in.R), G: scale(in.G), B: scale(in.B)}
}

// Apply runs all calibration sub-stages in order: gamma, RGB matrix, white
// point, saturation/luminance gain, backlight floor, brightness.
func (c Calibration) Apply(in RGB) RGB {
	gammaCorrected := RGB{
		R: applyGamma(in.R, c.GammaR),
		G: applyGamma(in.G, c.GammaG),
		B: applyGamma(in.B, c.GammaB),
	}
	matrixed := c.matrix(gammaCorrected.R, gammaCorrected.G, gammaCorrected.B)
	whiteCorrected := c.whitePoint(matrixed)
	gained := c.saturationLuminanceGain(whiteCorrected)
	lifted := c.backlightFloor(gained)
	return c.brightness(lifted)
}

// ApplyAll runs Apply over a slice of per-LED colors, using overrides[i] for
// every LED i < len(overrides) and fallback for the rest.
func ApplyAll(colors []RGB, overrides []Calibration, fallback Calibration) []RGB {
	out := make([]RGB, len(colors))
	for i, in := range colors {
		cal := fallback
		if i < len(overrides) {
			cal = overrides[i]
		}
		out[i] = cal.Apply(in)
	}
	return out
}
