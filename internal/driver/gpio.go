package driver

import (
	"fmt"
	"time"

	"periph.io/x/periph/conn/gpio"
	"periph.io/x/periph/conn/gpio/gpioreg"
	"periph.io/x/periph/host"

	"github.com/hyperhdr-core/hyperhdr/internal/color"
)

// GPIODriver bit-bangs a single-wire LED protocol (WS2812-class) over a GPIO
// pin when no SPI bus is available (spec §4.5; SPEC_FULL.md §4.5
// "driver.GPIODriver"). Bit timing is approximated with plain Go scheduling,
// which is sufficient on Raspberry Pi class hardware for short strips but not
// cycle-accurate; production deployments should prefer SPIDriver.
type GPIODriver struct {
	baseDriver
	pin gpio.PinIO
}

// NewGPIODriver returns an unopened GPIO bit-bang LED driver.
func NewGPIODriver() *GPIODriver { return &GPIODriver{} }

func (d *GPIODriver) Open() error {
	if _, err := host.Init(); err != nil {
		return fmt.Errorf("driver/gpio: host init: %w", err)
	}
	pin := gpioreg.ByName(d.cfg.Output)
	if pin == nil {
		return fmt.Errorf("driver/gpio: unknown pin %q", d.cfg.Output)
	}
	if err := pin.Out(gpio.Low); err != nil {
		return fmt.Errorf("driver/gpio: configure %q: %w", d.cfg.Output, err)
	}
	d.pin = pin
	return nil
}

func (d *GPIODriver) Close() error {
	if d.pin == nil {
		return nil
	}
	err := d.pin.Out(gpio.Low)
	d.pin = nil
	return err
}

func (d *GPIODriver) Write(colors []color.RGB) error {
	if d.pin == nil {
		return fmt.Errorf("driver/gpio: write before open")
	}
	for _, c := range colors {
		for _, byteVal := range [3]byte{c.G, c.R, c.B} { // WS2812 wire order
			for bit := 7; bit >= 0; bit-- {
				high := byteVal&(1<<uint(bit)) != 0
				if err := d.pin.Out(gpio.High); err != nil {
					return err
				}
				if high {
					time.Sleep(800 * time.Nanosecond)
				} else {
					time.Sleep(400 * time.Nanosecond)
				}
				if err := d.pin.Out(gpio.Low); err != nil {
					return err
				}
				if high {
					time.Sleep(450 * time.Nanosecond)
				} else {
					time.Sleep(850 * time.Nanosecond)
				}
			}
		}
	}
	return nil
}
