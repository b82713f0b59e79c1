// Package driver implements the LED output scheduler and the hardware driver
// abstraction (spec §4.5), generalizing the teacher's cgo SPI Controller into
// a pluggable Driver interface.
package driver

import (
	"github.com/hyperhdr-core/hyperhdr/internal/color"
)

// Config is the persisted, JSON-decoded driver configuration (spec §6
// "Driver config"). Unknown keys are ignored; missing keys fall back to
// device defaults documented per-driver.
type Config struct {
	Type        string         `json:"type"`
	Output      string         `json:"output"`
	RateHz      int            `json:"rate"`
	ColorOrder  string         `json:"colorOrder"`
	RewriteTime int            `json:"rewriteTime"`
	LatchTime   int            `json:"latchTime"`
	LedCount    int            `json:"ledCount"`
	Extra       map[string]any `json:"-"`
}

// Descriptor describes one discoverable device (spec §4.5 "discover").
type Descriptor struct {
	ID   string
	Name string
}

// Driver is the contract every LED output backend implements (spec §4.5
// "Driver contract"). Write accepts a color vector whose length equals the
// configured LED count; drivers may transform to wire format but must not
// alter ordering.
type Driver interface {
	Init(cfg Config) error
	Open() error
	Close() error
	Write(colors []color.RGB) error
	Identify(params map[string]any) error
	Discover(params map[string]any) ([]Descriptor, error)
}

// baseDriver is embedded by concrete drivers to share config storage.
type baseDriver struct {
	cfg Config
}

func (b *baseDriver) Init(cfg Config) error {
	b.cfg = cfg
	return nil
}

func (b *baseDriver) Identify(map[string]any) error { return nil }

func (b *baseDriver) Discover(map[string]any) ([]Descriptor, error) { return nil, nil }
