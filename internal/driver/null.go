package driver

import "github.com/hyperhdr-core/hyperhdr/internal/color"

// NullDriver discards every write; used by tests and headless instances
// (SPEC_FULL.md §4.5).
type NullDriver struct {
	baseDriver
	Written [][]color.RGB
	open    bool
}

// NewNullDriver returns a driver that records writes for inspection in tests
// instead of touching hardware.
func NewNullDriver() *NullDriver { return &NullDriver{} }

func (d *NullDriver) Open() error {
	d.open = true
	return nil
}

func (d *NullDriver) Close() error {
	d.open = false
	return nil
}

func (d *NullDriver) Write(colors []color.RGB) error {
	cp := make([]color.RGB, len(colors))
	copy(cp, colors)
	d.Written = append(d.Written, cp)
	return nil
}
