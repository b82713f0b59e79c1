package effect

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/hyperhdr-core/hyperhdr/internal/color"
	"github.com/hyperhdr-core/hyperhdr/internal/muxer"
)

// countingAnimation counts how many times Step is invoked, for the
// cancellation-is-synchronous test.
type countingAnimation struct {
	ticks int64
}

func (a *countingAnimation) Step(buf []color.RGB, _ time.Duration) bool {
	atomic.AddInt64(&a.ticks, 1)
	for i := range buf {
		buf[i] = color.RGB{R: 1, G: 1, B: 1}
	}
	return false
}

// TestEffectCancellationSynchronousWithNextTick is spec scenario 5: start a
// 10Hz effect, after 350ms call Stop; no tick may fire after Stop returns.
func TestEffectCancellationSynchronousWithNextTick(t *testing.T) {
	mux := muxer.New()
	eng := New(mux, 4, nil)
	anim := &countingAnimation{}
	def := Definition{Name: "test-effect", Priority: 130, UpdateFreq: 100 * time.Millisecond}

	h := eng.Start(def, anim)
	time.Sleep(350 * time.Millisecond)

	h.Stop()
	countAtStop := atomic.LoadInt64(&anim.ticks)

	// Grace period: verify no further tick lands after Stop returned.
	time.Sleep(100 * time.Millisecond)
	countAfterGrace := atomic.LoadInt64(&anim.ticks)

	if countAfterGrace != countAtStop {
		t.Fatalf("tick fired after Stop returned: count went from %d to %d", countAtStop, countAfterGrace)
	}
	if mux.HasPriority(def.Priority) {
		t.Fatal("effect priority should be cleared from the muxer on termination")
	}
}

// TestEffectTimeoutTerminatesAndClearsInput exercises def.Timeout as an
// alternative termination path, still releasing the Muxer registration.
func TestEffectTimeoutTerminatesAndClearsInput(t *testing.T) {
	mux := muxer.New()
	eng := New(mux, 4, nil)
	anim := &countingAnimation{}
	def := Definition{Name: "timeout-effect", Priority: 131, UpdateFreq: 20 * time.Millisecond, Timeout: 60 * time.Millisecond}

	eng.Start(def, anim)
	time.Sleep(200 * time.Millisecond)

	if mux.HasPriority(def.Priority) {
		t.Fatal("expected the effect's input to be cleared after its timeout elapsed")
	}
}

// TestAnimationDoneTerminatesLoop exercises an animation that self-reports
// completion on its first tick.
func TestAnimationDoneTerminatesLoop(t *testing.T) {
	mux := muxer.New()
	eng := New(mux, 4, nil)
	anim := AnimationFunc(func(buf []color.RGB, _ time.Duration) bool {
		for i := range buf {
			buf[i] = color.RGB{R: 9, G: 9, B: 9}
		}
		return true
	})
	def := Definition{Name: "one-shot", Priority: 132, UpdateFreq: 10 * time.Millisecond}

	h := eng.Start(def, anim)
	time.Sleep(100 * time.Millisecond)

	if mux.HasPriority(def.Priority) {
		t.Fatal("expected a self-terminating animation to clear its registration")
	}
	colors := h.Colors()
	if len(colors) != 4 || colors[0] != (color.RGB{R: 9, G: 9, B: 9}) {
		t.Fatalf("expected the final frame to be retained, got %v", colors)
	}
}

func TestSolidAnimationFillsBuffer(t *testing.T) {
	buf := make([]color.RGB, 3)
	anim := Solid(color.RGB{R: 10, G: 20, B: 30})
	done := anim.Step(buf, 0)
	if done {
		t.Fatal("Solid should never self-terminate")
	}
	for i, c := range buf {
		if c != (color.RGB{R: 10, G: 20, B: 30}) {
			t.Fatalf("led %d not filled: %v", i, c)
		}
	}
}

func TestRainbowSweepsDistinctHues(t *testing.T) {
	buf := make([]color.RGB, 8)
	anim := Rainbow(time.Second)
	anim.Step(buf, 0)
	seen := map[color.RGB]bool{}
	for _, c := range buf {
		seen[c] = true
	}
	if len(seen) < 4 {
		t.Fatalf("expected a visible hue sweep across the strip, got %d distinct colors", len(seen))
	}
}

func TestLuaAnimationSetsPixelsFromScript(t *testing.T) {
	script := `
for i = 0, led_count() - 1 do
  set_pixel(i, 1.0, 0.0, 0.0)
end
`
	anim := NewLuaAnimation(script)
	buf := make([]color.RGB, 3)
	anim.Step(buf, 0)
	for i, c := range buf {
		if c.R != 255 || c.G != 0 || c.B != 0 {
			t.Fatalf("led %d: expected pure red from script, got %v", i, c)
		}
	}
}

func TestLuaAnimationOutOfRangeIndexIsIgnored(t *testing.T) {
	script := `set_pixel(999, 1.0, 1.0, 1.0)`
	anim := NewLuaAnimation(script)
	buf := make([]color.RGB, 2)
	anim.Step(buf, 0)
	for i, c := range buf {
		if c != (color.RGB{}) {
			t.Fatalf("led %d: out-of-range set_pixel should be a no-op, got %v", i, c)
		}
	}
}
