package reducer

import (
	"fmt"

	"github.com/hyperhdr-core/hyperhdr/internal/color"
)

// Frame is a shared, read-only image handle: width/height packed 24-bit
// pixels plus the origin pixel format tag (spec §3 "Frame"). Copies of a
// Frame share the same Pix backing array between producer and all
// consumers; no consumer may mutate Pix.
type Frame struct {
	Width, Height int
	Pix           []color.RGB
	Format        color.PixelFormat
}

// Validate enforces spec §3(d): width>0 and height>0.
func (f Frame) Validate() error {
	if f.Width <= 0 || f.Height <= 0 {
		return fmt.Errorf("reducer: invalid frame size %dx%d", f.Width, f.Height)
	}
	if len(f.Pix) != f.Width*f.Height {
		return fmt.Errorf("reducer: frame pixel count %d does not match %dx%d", len(f.Pix), f.Width, f.Height)
	}
	return nil
}
