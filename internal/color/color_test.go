package color

import (
	"testing"
	"time"
)

func within1(a, b uint8) bool {
	d := int(a) - int(b)
	if d < 0 {
		d = -d
	}
	return d <= 1
}

func TestYUVRoundTrip(t *testing.T) {
	matrices := []Matrix{MatrixBT601, MatrixBT709, MatrixBT2020}
	samples := []RGB{
		{0, 0, 0}, {255, 255, 255}, {255, 0, 0}, {0, 255, 0}, {0, 0, 255},
		{128, 64, 200}, {17, 240, 3},
	}
	for _, m := range matrices {
		for _, c := range samples {
			got := YUVToRGB(RGBToYUV(c, m), m)
			if !within1(got.R, c.R) || !within1(got.G, c.G) || !within1(got.B, c.B) {
				t.Errorf("matrix %v: round trip %v -> %v exceeds 1/255", m, c, got)
			}
		}
	}
}

func TestHSVRoundTrip(t *testing.T) {
	samples := []RGB{
		{0, 0, 0}, {255, 255, 255}, {255, 0, 0}, {0, 255, 0}, {0, 0, 255},
		{128, 64, 200}, {17, 240, 3}, {10, 10, 10},
	}
	for _, c := range samples {
		got := HSVToRGB(RGBToHSV(c))
		if !within1(got.R, c.R) || !within1(got.G, c.G) || !within1(got.B, c.B) {
			t.Errorf("round trip %v -> %v exceeds 1/255", c, got)
		}
	}
}

func TestGammaIdentityPassThrough(t *testing.T) {
	cal := DefaultCalibration()
	lut := NewLUT(FormatRGB24)
	samples := []RGB{{10, 20, 30}, {255, 0, 128}, {0, 0, 0}, {255, 255, 255}}
	for _, c := range samples {
		afterLUT := lut.Lookup(c)
		afterCal := cal.Apply(afterLUT)
		if afterCal != c {
			t.Errorf("pass-through pipeline altered %v -> %v", c, afterCal)
		}
	}
}

func TestStepperNoOvershoot(t *testing.T) {
	cfg := SmoothingConfig{SettlingMs: 100, UpdateMs: 20, Type: Stepper}
	s := NewSmoothing(cfg, 1)
	base := time.Unix(0, 0)
	s.UpdateTargets([]RGB{{100, 100, 100}}, base)

	out := s.Tick(base.Add(20*time.Millisecond), 20)
	for _, ch := range []uint8{out[0].R, out[0].G, out[0].B} {
		if ch < 18 || ch > 22 {
			t.Errorf("t=20ms: expected ~20, got %d", ch)
		}
	}

	now := base.Add(20 * time.Millisecond)
	for i := 0; i < 4; i++ {
		now = now.Add(20 * time.Millisecond)
		out = s.Tick(now, 20)
	}
	if out[0] != (RGB{100, 100, 100}) {
		t.Errorf("t=100ms: expected (100,100,100), got %v", out[0])
	}

	out = s.Tick(now.Add(20*time.Millisecond), 20)
	if out[0] != (RGB{100, 100, 100}) {
		t.Errorf("t=120ms: expected no overshoot, got %v", out[0])
	}
}

func TestSmoothingConfigValidate(t *testing.T) {
	tooFast := SmoothingConfig{SettlingMs: 100, UpdateMs: 1}
	if err := tooFast.Validate(); err == nil {
		t.Error("expected error for update interval < 5ms")
	}
	tooSlow := SmoothingConfig{SettlingMs: 50, UpdateMs: 100}
	if err := tooSlow.Validate(); err == nil {
		t.Error("expected error for update interval > settling time")
	}
	ok := SmoothingConfig{SettlingMs: 100, UpdateMs: 20}
	if err := ok.Validate(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestAutomaticToneMappingDwell(t *testing.T) {
	a := NewAutomaticToneMapping()
	a.Configure(true, ToneMappingThresholds{Y: 200}, 1*time.Second, 100*time.Millisecond)

	now := time.Unix(0, 0)
	if a.Observe(50, 0, 0, now) {
		t.Fatal("should start in SDR")
	}
	for i := 0; i < 5; i++ {
		now = now.Add(50 * time.Millisecond)
		if a.Observe(50, 0, 0, now) {
			t.Fatal("should remain SDR while below threshold")
		}
	}

	// now push above threshold continuously for >= enterDwell
	aboveStart := now
	for now.Sub(aboveStart) < 1100*time.Millisecond {
		now = now.Add(50 * time.Millisecond)
		a.Observe(220, 0, 0, now)
	}
	if !a.IsHDR() {
		t.Error("expected HDR after sustained above-threshold dwell")
	}
}

func TestAntiFlickerSuppressesSmallDeltas(t *testing.T) {
	cfg := SmoothingConfig{
		SettlingMs: 1000, UpdateMs: 20, Type: ExponentialInterpolator,
		AntiFlickerThreshold: 10, AntiFlickerStep: 50, AntiFlickerTimeoutMs: 0,
	}
	s := NewSmoothing(cfg, 1)
	base := time.Unix(0, 0)
	s.UpdateTargets([]RGB{{20, 20, 20}}, base)
	out := s.Tick(base.Add(20*time.Millisecond), 20)
	if out[0] != (RGB{0, 0, 0}) {
		t.Errorf("expected small delta suppressed by anti-flicker threshold, got %v", out[0])
	}
}
