// Package reducer implements the image->LED reduction stage (spec §4.2):
// turning a captured frame into exactly one color per LED in the layout.
package reducer

import "fmt"

// Led is one entry in the LED layout: a fractional scanning rectangle over
// the frame, an optional group id for grouped averaging, and a disabled
// flag (spec §3 "LED layout").
type Led struct {
	X1, X2, Y1, Y2 float64
	Group          int
	Disabled       bool
}

// Validate checks the rectangle invariants of spec §3: x1<x2, y1<y2, all in [0,1].
func (l Led) Validate() error {
	if !(l.X1 >= 0 && l.X2 <= 1 && l.X1 < l.X2) {
		return fmt.Errorf("invalid horizontal rectangle: x1=%v x2=%v", l.X1, l.X2)
	}
	if !(l.Y1 >= 0 && l.Y2 <= 1 && l.Y1 < l.Y2) {
		return fmt.Errorf("invalid vertical rectangle: y1=%v y2=%v", l.Y1, l.Y2)
	}
	return nil
}

// Layout is the ordered sequence of LEDs around the display (spec §3).
type Layout struct {
	Leds []Led
}

// Size returns the number of LEDs in the layout; the reducer's invariant
// (spec §8) is that it always emits exactly this many colors.
func (l Layout) Size() int { return len(l.Leds) }

// Validate checks every LED's rectangle.
func (l Layout) Validate() error {
	for i, led := range l.Leds {
		if err := led.Validate(); err != nil {
			return fmt.Errorf("led %d: %w", i, err)
		}
	}
	return nil
}
