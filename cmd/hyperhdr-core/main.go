// Command hyperhdr-core wires the instance Manager to the admin HTTP
// control surface, replacing the teacher's single-pipeline main.go (which
// opened one cgo SPI controller, started one 60 FPS render loop, and served
// one gin router over it) with a multi-instance equivalent: one NullDriver-
// backed instance 0 by default, started through the Manager's startup-order
// rule (spec §4.6), with every other instance left to be created over the
// API.
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"net"
	"time"

	"github.com/hyperhdr-core/hyperhdr/internal/api"
	"github.com/hyperhdr-core/hyperhdr/internal/color"
	"github.com/hyperhdr-core/hyperhdr/internal/driver"
	"github.com/hyperhdr-core/hyperhdr/internal/forwarder"
	"github.com/hyperhdr-core/hyperhdr/internal/instance"
	"github.com/hyperhdr-core/hyperhdr/internal/logging"
	"github.com/hyperhdr-core/hyperhdr/internal/reducer"
)

func main() {
	apiPort := flag.Int("port", 8090, "admin HTTP API listen port")
	driverType := flag.String("driver", "null", "LED driver for instance 0: null, spi, gpio, udp")
	driverOutput := flag.String("driver-output", "", "driver output target (SPI device path, GPIO pin name, or host:port)")
	ledCount := flag.Int("leds", 60, "number of LEDs in instance 0's default layout")
	jsonLogs := flag.Bool("json-logs", false, "emit structured JSON logs instead of text")
	forwarderPort := flag.Int("forwarder-port", 0, "TCP port to mirror instance 0's final colors on when FORWARDER is enabled (0 disables)")
	flag.Parse()

	log := logging.Init(logging.Options{Level: slog.LevelInfo, JSON: *jsonLogs})

	drv, err := newDriver(*driverType)
	if err != nil {
		log.Error("unsupported driver type", "type", *driverType, "err", err)
		return
	}

	mgr := instance.NewManager(log)
	cfg := instance.Config{
		Index:          0,
		Name:           "default",
		Layout:         evenStrip(*ledCount),
		Mapping:        reducer.MappingMean,
		LUT:            color.NewLUT(color.FormatRGB24),
		Calibration:    color.DefaultCalibration(),
		SmoothingCfg:   color.SmoothingConfig{SettlingMs: 200, UpdateMs: 25, Type: color.RgbInterpolator, Factor: 0.2},
		Drv:            drv,
		DriverCfg:      driver.Config{Type: *driverType, Output: *driverOutput, LedCount: *ledCount},
		UpdateInterval: 25 * time.Millisecond,
		Log:            log,
	}

	in, err := mgr.CreateInstance(cfg)
	if err != nil {
		log.Error("failed to create default instance", "err", err)
		return
	}

	if *forwarderPort > 0 {
		sink := forwarder.NewImageSink(log)
		ln, err := net.Listen("tcp", fmt.Sprintf(":%d", *forwarderPort))
		if err != nil {
			log.Error("failed to start forwarder listener", "err", err)
			return
		}
		go func() {
			if err := sink.Serve(ln); err != nil {
				log.Warn("forwarder listener exited", "err", err)
			}
		}()
		in.SetForwarder(sink)
		log.Info("forwarder listening", "port", *forwarderPort)
	}

	if err := mgr.StartInstance(0, false); err != nil {
		log.Error("failed to start default instance", "err", err)
		return
	}
	log.Info("instance started", "index", 0, "leds", *ledCount, "driver", *driverType)

	srv := api.New(mgr)
	router := srv.Router()

	log.Info("admin API listening", "port", *apiPort)
	if err := router.Run(fmt.Sprintf(":%d", *apiPort)); err != nil {
		log.Error("admin API server exited", "err", err)
	}
}

// newDriver resolves the --driver flag to a concrete driver.Driver (spec
// §4.5 "Driver contract"), generalizing the teacher's hardcoded cgo SPI
// Controller construction.
func newDriver(kind string) (driver.Driver, error) {
	switch kind {
	case "null", "":
		return driver.NewNullDriver(), nil
	case "spi":
		return driver.NewSPIDriver(), nil
	case "gpio":
		return driver.NewGPIODriver(), nil
	case "udp":
		return driver.NewUDPDriver(), nil
	default:
		return nil, fmt.Errorf("unknown driver %q", kind)
	}
}

// evenStrip lays out n LEDs along a single horizontal row of narrow vertical
// slices, a minimal default layout for headless/demo startup. The layout is
// fixed once the instance is created; LEDS settings updates do not replace it.
func evenStrip(n int) reducer.Layout {
	if n <= 0 {
		n = 1
	}
	leds := make([]reducer.Led, n)
	for i := range leds {
		x1 := float64(i) / float64(n)
		x2 := float64(i+1) / float64(n)
		leds[i] = reducer.Led{X1: x1, X2: x2, Y1: 0, Y2: 1}
	}
	return reducer.Layout{Leds: leds}
}
