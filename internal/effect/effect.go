// Package effect implements the clock-driven animation layer (spec §4.4):
// a named factory producing an Animation that feeds colors into a Muxer
// input at its own priority, generalizing the teacher's Lua render-layer
// pipeline (lua_engine.go) into a small capability interface shared by both
// scripted and built-in Go effects.
package effect

import (
	"math"
	"time"

	"github.com/hyperhdr-core/hyperhdr/internal/color"
)

// Definition names an effect and the Muxer registration it should run under
// (spec §4.4 "Effect definition"), replacing the teacher's RenderLayer
// {Name, Code, Type, Priority, BlendMode, TimeoutSeconds, AddedAt}.
type Definition struct {
	Name       string
	Priority   uint8
	Script     string        // non-empty selects the Lua-backed animation
	Settling   time.Duration // carried with the definition; Engine.Start registers no smoothing config from it (the input uses config 0)
	UpdateFreq time.Duration // tick interval; Engine.Start uses 100ms when <= 0
	Timeout    time.Duration // 0 means the effect runs until explicitly stopped
}

// Animation is the capability every effect, scripted or built-in, satisfies
// (spec §4.4 "Animations expose play(canvas) ... and/or hasLedData"). Step
// writes the next frame into buf (len(buf) == led count) and reports whether
// the animation wants to terminate on its own, matching the teacher's
// play() boolean return collapsed into a single method per REDESIGN FLAGS
// ("deep class hierarchies ... collapse to a small capability interface").
type Animation interface {
	Step(buf []color.RGB, elapsed time.Duration) (done bool)
}

// AnimationFunc adapts a plain function to Animation.
type AnimationFunc func(buf []color.RGB, elapsed time.Duration) bool

func (f AnimationFunc) Step(buf []color.RGB, elapsed time.Duration) bool { return f(buf, elapsed) }

// Solid fills every LED with a fixed color until externally cleared
// (grounded on the teacher's ModeBase "lowest layer" use case).
func Solid(c color.RGB) Animation {
	return AnimationFunc(func(buf []color.RGB, _ time.Duration) bool {
		for i := range buf {
			buf[i] = c
		}
		return false
	})
}

// Rainbow sweeps a full hue cycle across the strip every period, named after
// the Animation4Music/Quatro built-in family listed in original_source's
// index of dropped effects.
func Rainbow(period time.Duration) Animation {
	if period <= 0 {
		period = 10 * time.Second
	}
	return AnimationFunc(func(buf []color.RGB, elapsed time.Duration) bool {
		n := len(buf)
		if n == 0 {
			return false
		}
		phase := float64(elapsed%period) / float64(period) * 360
		for i := range buf {
			hue := phase + float64(i)*360/float64(n)
			for hue >= 360 {
				hue -= 360
			}
			buf[i] = color.HSVToRGB(color.HSV{H: hue, S: 1, V: 1})
		}
		return false
	})
}

// Pulse breathes a fixed color's brightness in and out over period.
func Pulse(c color.RGB, period time.Duration) Animation {
	if period <= 0 {
		period = time.Second
	}
	hsv := color.RGBToHSV(c)
	return AnimationFunc(func(buf []color.RGB, elapsed time.Duration) bool {
		phase := float64(elapsed%period) / float64(period) * 2 * math.Pi
		v := hsv.V * (0.5 + 0.5*math.Sin(phase))
		out := color.HSVToRGB(color.HSV{H: hsv.H, S: hsv.S, V: v})
		for i := range buf {
			buf[i] = out
		}
		return false
	})
}
