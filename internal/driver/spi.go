package driver

import (
	"fmt"

	"periph.io/x/periph/conn/spi"
	"periph.io/x/periph/conn/spi/spireg"
	"periph.io/x/periph/host"

	"github.com/hyperhdr-core/hyperhdr/internal/color"
)

// SPIDriver drives an APA102/SK9822-class LED strip over periph.io's SPI
// port abstraction, replacing the teacher's cgo WS2812 controller (see
// DESIGN.md "Dropped teacher code"). Framing follows the APA102 start/end
// frame convention used by _examples/google-periph/devices/apa102.
type SPIDriver struct {
	baseDriver
	port spi.PortCloser
	conn spi.Conn
}

// NewSPIDriver returns an unopened SPI LED driver.
func NewSPIDriver() *SPIDriver { return &SPIDriver{} }

func (d *SPIDriver) Open() error {
	if _, err := host.Init(); err != nil {
		return fmt.Errorf("driver/spi: host init: %w", err)
	}
	port, err := spireg.Open(d.cfg.Output)
	if err != nil {
		return fmt.Errorf("driver/spi: open %q: %w", d.cfg.Output, err)
	}
	rate := d.cfg.RateHz
	if rate <= 0 {
		rate = 1_000_000
	}
	conn, err := port.Connect(int64(rate), spi.Mode3, 8)
	if err != nil {
		port.Close()
		return fmt.Errorf("driver/spi: connect: %w", err)
	}
	d.port = port
	d.conn = conn
	return nil
}

func (d *SPIDriver) Close() error {
	if d.port == nil {
		return nil
	}
	err := d.port.Close()
	d.port = nil
	d.conn = nil
	return err
}

// apa102Frame encodes colors as an APA102-style start frame + per-LED
// brightness/BGR payload + end frame. Ordering of colors is preserved
// (spec §4.5 "must not alter ordering"); only the wire bytes are reordered
// per the device's native BGR channel order.
func apa102Frame(colors []color.RGB) []byte {
	n := len(colors)
	// start frame: 4 zero bytes. end frame: at least n/2 bits of 1s, rounded
	// up to whole bytes, per APA102 datasheet guidance.
	endLen := (n + 15) / 16
	buf := make([]byte, 4+n*4+endLen)
	for i, c := range colors {
		off := 4 + i*4
		buf[off+0] = 0xE0 | 0x1F // global brightness, max
		buf[off+1] = c.B
		buf[off+2] = c.G
		buf[off+3] = c.R
	}
	for i := 4 + n*4; i < len(buf); i++ {
		buf[i] = 0xFF
	}
	return buf
}

func (d *SPIDriver) Write(colors []color.RGB) error {
	if d.conn == nil {
		return fmt.Errorf("driver/spi: write before open")
	}
	buf := apa102Frame(colors)
	return d.conn.Tx(buf, nil)
}
