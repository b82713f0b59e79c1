package driver

import (
	"fmt"
	"net"

	"github.com/hyperhdr-core/hyperhdr/internal/color"
)

// UDPDriver sends raw RGB frames to a network-attached LED strip over UDP
// (spec §1 "network ... transports"; SPEC_FULL.md §4.5 "driver.UDPDriver").
// Framing is a minimal length-implicit payload: one byte triplet per LED in
// layout order, matching spec §4.5 "must not alter ordering".
type UDPDriver struct {
	baseDriver
	conn *net.UDPConn
	addr *net.UDPAddr
}

// NewUDPDriver returns an unopened UDP LED driver.
func NewUDPDriver() *UDPDriver { return &UDPDriver{} }

func (d *UDPDriver) Open() error {
	addr, err := net.ResolveUDPAddr("udp", d.cfg.Output)
	if err != nil {
		return fmt.Errorf("driver/udp: resolve %q: %w", d.cfg.Output, err)
	}
	conn, err := net.DialUDP("udp", nil, addr)
	if err != nil {
		return fmt.Errorf("driver/udp: dial %q: %w", d.cfg.Output, err)
	}
	d.addr = addr
	d.conn = conn
	return nil
}

func (d *UDPDriver) Close() error {
	if d.conn == nil {
		return nil
	}
	err := d.conn.Close()
	d.conn = nil
	return err
}

func (d *UDPDriver) Write(colors []color.RGB) error {
	if d.conn == nil {
		return fmt.Errorf("driver/udp: write before open")
	}
	buf := make([]byte, len(colors)*3)
	for i, c := range colors {
		buf[i*3] = c.R
		buf[i*3+1] = c.G
		buf[i*3+2] = c.B
	}
	_, err := d.conn.Write(buf)
	return err
}
