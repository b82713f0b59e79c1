package instance

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"testing"
	"time"

	"github.com/hyperhdr-core/hyperhdr/internal/color"
	"github.com/hyperhdr-core/hyperhdr/internal/driver"
	"github.com/hyperhdr-core/hyperhdr/internal/effect"
	"github.com/hyperhdr-core/hyperhdr/internal/forwarder"
	"github.com/hyperhdr-core/hyperhdr/internal/muxer"
	"github.com/hyperhdr-core/hyperhdr/internal/reducer"
	"github.com/hyperhdr-core/hyperhdr/internal/settings"
)

// alwaysFailDriver never accepts a write, forcing the scheduler past its
// failure budget so the instance's auto-disable-with-reason path runs.
type alwaysFailDriver struct {
	driver.NullDriver
}

func (d *alwaysFailDriver) Write(colors []color.RGB) error {
	return fmt.Errorf("injected failure")
}

func quadConfig(drv driver.Driver) Config {
	return Config{
		Index: 0,
		Name:  "test",
		Layout: reducer.Layout{Leds: []reducer.Led{
			{X1: 0, X2: 0.5, Y1: 0, Y2: 0.5},
			{X1: 0.5, X2: 1, Y1: 0, Y2: 0.5},
		}},
		Mapping:        reducer.MappingMean,
		Calibration:    color.DefaultCalibration(),
		SmoothingCfg:   color.SmoothingConfig{SettlingMs: 50, UpdateMs: 5, Type: color.Stepper},
		Drv:            drv,
		DriverCfg:      driver.Config{LedCount: 2},
		UpdateInterval: 5 * time.Millisecond,
	}
}

// lifecycleDriver records Open and Close calls on top of NullDriver.
type lifecycleDriver struct {
	driver.NullDriver
	opened, closed bool
}

func (d *lifecycleDriver) Open() error {
	d.opened = true
	return d.NullDriver.Open()
}

func (d *lifecycleDriver) Close() error {
	d.closed = true
	return d.NullDriver.Close()
}

func TestInstanceOpensDriverOnCreateAndClosesOnStop(t *testing.T) {
	drv := &lifecycleDriver{}
	in, err := New(quadConfig(drv))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if !drv.opened {
		t.Fatal("expected New to open the driver")
	}
	in.Start(false)
	in.Stop()
	if !drv.closed {
		t.Fatal("expected Stop to close the driver")
	}
}

func TestInstanceRejectsInvalidLayout(t *testing.T) {
	cfg := quadConfig(driver.NewNullDriver())
	cfg.Layout = reducer.Layout{Leds: []reducer.Led{{X1: 1, X2: 0, Y1: 0, Y2: 1}}}
	if _, err := New(cfg); err == nil {
		t.Fatal("expected an error constructing an instance with an invalid layout")
	}
}

func TestInstanceEmitsExactlyLayoutSizeColors(t *testing.T) {
	drv := driver.NewNullDriver()
	in, err := New(quadConfig(drv))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	in.Start(false)
	defer in.Stop()

	in.Muxer().RegisterInput(100, muxer.ComponentColor, "static", color.RGB{R: 10, G: 20, B: 30}, 0, "test")
	in.Muxer().SetInput(100, color.RGB{R: 10, G: 20, B: 30}, 0)

	time.Sleep(40 * time.Millisecond)

	if len(drv.Written) == 0 {
		t.Fatal("expected at least one frame written to the driver")
	}
	for _, frame := range drv.Written {
		if len(frame) != in.ledCount {
			t.Fatalf("expected %d colors, got %d", in.ledCount, len(frame))
		}
	}
}

func TestInstanceStartStopEffect(t *testing.T) {
	drv := driver.NewNullDriver()
	in, err := New(quadConfig(drv))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	in.Start(false)
	defer in.Stop()

	h := in.StartEffect(effect.Definition{Name: "solid", Priority: 150, UpdateFreq: 5 * time.Millisecond},
		effect.Solid(color.RGB{R: 255}))
	time.Sleep(20 * time.Millisecond)
	if !in.Muxer().HasPriority(150) {
		t.Fatal("expected the effect's priority to be registered while running")
	}
	in.StopEffect(150)
	if in.Muxer().HasPriority(150) {
		t.Fatal("expected the effect's priority to be cleared after StopEffect")
	}
	_ = h
}

func TestInstanceAutoDisablesLEDDeviceWithReasonAfterRepeatedWriteFailures(t *testing.T) {
	drv := &alwaysFailDriver{}
	in, err := New(quadConfig(drv))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	in.Start(false)
	defer in.Stop()

	// The scheduler retries a failing write with exponential backoff
	// (50ms, 100ms, 200ms, 400ms) before giving up at maxFailures, all
	// inside a single tick — allow enough wall-clock for that to play out.
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if !in.Components().Enabled(LEDDEVICE) {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}

	if in.Components().Enabled(LEDDEVICE) {
		t.Fatal("expected LEDDEVICE to auto-disable after repeated driver write failures")
	}
	cerr := in.Components().LastError(LEDDEVICE)
	if cerr == nil {
		t.Fatal("expected a recorded ComponentError")
	}
	if cerr.Kind != LEDDEVICE || cerr.Cause == nil {
		t.Fatalf("unexpected ComponentError: %+v", cerr)
	}

	// An explicit re-enable clears the recorded reason.
	in.Components().SetEnabled(LEDDEVICE, true)
	if in.Components().LastError(LEDDEVICE) != nil {
		t.Fatal("expected LastError to be cleared after an explicit re-enable")
	}
}

// TestInstanceAppliesCalibrationSettingsUpdate confirms a published COLOR
// update actually reaches the next tick's output instead of being dropped.
func TestInstanceAppliesCalibrationSettingsUpdate(t *testing.T) {
	drv := driver.NewNullDriver()
	in, err := New(quadConfig(drv))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	in.Start(false)
	defer in.Stop()

	in.Muxer().RegisterInput(100, muxer.ComponentColor, "static", color.RGB{R: 200, G: 200, B: 200}, 0, "test")
	in.Muxer().SetInput(100, color.RGB{R: 200, G: 200, B: 200}, 0)
	time.Sleep(20 * time.Millisecond)

	cal := color.DefaultCalibration()
	cal.Brightness = 0
	body, err := json.Marshal(cal)
	if err != nil {
		t.Fatalf("marshal calibration: %v", err)
	}
	in.Settings().Publish(settings.Update{Type: settings.COLOR, JSON: body})

	deadline := time.Now().Add(200 * time.Millisecond)
	for time.Now().Before(deadline) {
		if len(drv.Written) > 0 {
			last := drv.Written[len(drv.Written)-1]
			allBlack := true
			for _, c := range last {
				if c != (color.RGB{}) {
					allBlack = false
					break
				}
			}
			if allBlack {
				return
			}
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("expected a COLOR settings update (brightness=0) to drive output to black")
}

// TestInstanceMirrorsOutputToForwarderWhenEnabled confirms FORWARDER gates
// the sink mirror, and that an attached sink actually receives frames.
func TestInstanceMirrorsOutputToForwarderWhenEnabled(t *testing.T) {
	drv := driver.NewNullDriver()
	in, err := New(quadConfig(drv))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	sink := forwarder.NewImageSink(slog.Default())
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln.Close()
	go func() { _ = sink.Serve(ln) }()
	in.SetForwarder(sink)

	in.Start(false)
	defer in.Stop()

	conn, err := net.Dial("tcp", ln.Addr().String())
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	deadline := time.Now().Add(200 * time.Millisecond)
	for time.Now().Before(deadline) && sink.ClientCount() == 0 {
		time.Sleep(5 * time.Millisecond)
	}
	if sink.ClientCount() == 0 {
		t.Fatal("expected the forwarder sink to register the dialed client")
	}

	conn.SetReadDeadline(time.Now().Add(500 * time.Millisecond))
	buf := make([]byte, 4)
	if _, err := conn.Read(buf); err != nil {
		t.Fatalf("expected a mirrored frame once FORWARDER is enabled, got: %v", err)
	}
}
