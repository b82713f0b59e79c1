package reducer

import (
	"testing"
	"time"

	"github.com/hyperhdr-core/hyperhdr/internal/color"
)

func quadLayout() Layout {
	return Layout{Leds: []Led{
		{X1: 0, X2: 0.5, Y1: 0, Y2: 0.5},   // top-left
		{X1: 0.5, X2: 1, Y1: 0, Y2: 0.5},   // top-right
		{X1: 0, X2: 0.5, Y1: 0.5, Y2: 1},   // bottom-left
		{X1: 0.5, X2: 1, Y1: 0.5, Y2: 1},   // bottom-right
	}}
}

func quadFrame() Frame {
	return Frame{
		Width: 2, Height: 2,
		Pix: []color.RGB{
			{255, 0, 0}, {0, 255, 0},
			{0, 0, 255}, {255, 255, 255},
		},
		Format: color.FormatRGB24,
	}
}

func TestReducerMean(t *testing.T) {
	r := New(quadLayout(), MappingMean, false)
	got := r.Process(quadFrame())
	want := []color.RGB{{255, 0, 0}, {0, 255, 0}, {0, 0, 255}, {255, 255, 255}}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("led %d: got %v want %v", i, got[i], want[i])
		}
	}
}

func TestReducerGroupedAveraging(t *testing.T) {
	layout := quadLayout()
	layout.Leds[0].Group = 1
	layout.Leds[1].Group = 1
	r := New(layout, MappingMean, false)
	got := r.Process(quadFrame())
	want := color.RGB{127, 127, 0}
	if got[0] != want || got[1] != want {
		t.Errorf("grouped leds: got %v / %v, want both %v", got[0], got[1], want)
	}
}

func TestReducerSizeInvariant(t *testing.T) {
	r := New(quadLayout(), MappingMean, false)
	got := r.Process(quadFrame())
	if len(got) != 4 {
		t.Errorf("expected 4 colors, got %d", len(got))
	}
}

func TestReducerIdempotent(t *testing.T) {
	r1 := New(quadLayout(), MappingMean, false)
	r2 := New(quadLayout(), MappingMean, false)
	f := quadFrame()
	out1 := r1.Process(f)
	out2 := r2.Process(f)
	for i := range out1 {
		if out1[i] != out2[i] {
			t.Errorf("non-idempotent at %d: %v vs %v", i, out1[i], out2[i])
		}
	}
}

func TestReducerEmptyFrameKeepsLastColors(t *testing.T) {
	r := New(quadLayout(), MappingMean, false)
	first := r.Process(quadFrame())
	bad := Frame{Width: 0, Height: 0}
	got := r.Process(bad)
	for i := range first {
		if got[i] != first[i] {
			t.Errorf("expected last-known colors on invalid frame, got %v want %v", got[i], first[i])
		}
	}
}

func TestBorderDetectorStabilization(t *testing.T) {
	d := NewBorderDetector(10)
	dark := color.RGB{5, 5, 5}
	bright := color.RGB{200, 200, 200}
	// 4x4 frame with a 1px dark border on left/top half-scan.
	pix := make([]color.RGB, 16)
	for i := range pix {
		pix[i] = bright
	}
	pix[2*4+0] = dark // column 0 at mid row (midY=4/2=2)
	pix[0*4+2] = dark // row 0 at mid col (midX=4/2=2)
	f := Frame{Width: 4, Height: 4, Pix: pix}

	now := time.Unix(0, 0)
	_, _, changed := d.Observe(f, now)
	if changed {
		t.Error("expected no change on first (unconfirmed) measurement")
	}
	now = now.Add(100 * time.Millisecond)
	h, v, changed := d.Observe(f, now)
	if !changed {
		t.Error("expected change after second agreeing measurement")
	}
	if h != 1 || v != 1 {
		t.Errorf("expected border (1,1), got (%d,%d)", h, v)
	}
}
