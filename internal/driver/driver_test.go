package driver

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/hyperhdr-core/hyperhdr/internal/color"
)

// flakyDriver fails its first N writes, then succeeds, recording the
// wall-clock time of every write attempt.
type flakyDriver struct {
	NullDriver
	failuresLeft int
	attempts     []time.Time
}

func (f *flakyDriver) Write(colors []color.RGB) error {
	f.attempts = append(f.attempts, time.Now())
	if f.failuresLeft > 0 {
		f.failuresLeft--
		return fmt.Errorf("injected failure")
	}
	return f.NullDriver.Write(colors)
}

func TestSchedulerRetriesWithBackoffThenSucceeds(t *testing.T) {
	fd := &flakyDriver{failuresLeft: 3}
	s := NewScheduler(fd, 1000, nil)
	s.SetLatest([]color.RGB{{1, 2, 3}})

	ctx := context.Background()
	s.tick(ctx)

	if len(fd.attempts) != 4 {
		t.Fatalf("expected 4 attempts (3 failures + 1 success), got %d", len(fd.attempts))
	}
	if disabled, _ := s.Disabled(); disabled {
		t.Fatal("scheduler should not disable after recovering within the failure budget")
	}
	if len(fd.Written) != 1 || fd.Written[0][0] != (color.RGB{1, 2, 3}) {
		t.Fatalf("expected the successful write to carry the uncorrupted frame, got %v", fd.Written)
	}

	// gaps should roughly double: ~50ms, ~100ms, ~200ms
	for i := 1; i < len(fd.attempts); i++ {
		gap := fd.attempts[i].Sub(fd.attempts[i-1])
		if gap < 40*time.Millisecond {
			t.Errorf("gap %d too short: %v", i, gap)
		}
	}
}

func TestSchedulerDisablesAfterMaxFailures(t *testing.T) {
	fd := &flakyDriver{failuresLeft: 999}
	s := NewScheduler(fd, 1000, nil)
	s.SetLatest([]color.RGB{{1, 1, 1}})
	s.tick(context.Background())

	disabled, err := s.Disabled()
	if !disabled {
		t.Fatal("expected scheduler to disable after max failures")
	}
	if err == nil {
		t.Fatal("expected a disable cause")
	}
}

func TestSchedulerPowerGating(t *testing.T) {
	nd := NewNullDriver()
	_ = nd.Open()
	s := NewScheduler(nd, 1000, nil)
	s.SetLatest([]color.RGB{{5, 5, 5}})
	s.tick(context.Background())
	if len(nd.Written) != 1 {
		t.Fatalf("expected one write while enabled, got %d", len(nd.Written))
	}

	s.SetEnabled(false)
	if len(nd.Written) != 2 {
		t.Fatalf("expected a black frame written on disable, got %d writes", len(nd.Written))
	}
	for _, c := range nd.Written[1] {
		if c != color.Black {
			t.Fatalf("expected black frame on disable, got %v", c)
		}
	}

	s.tick(context.Background())
	if len(nd.Written) != 2 {
		t.Fatal("expected no further writes while disabled")
	}

	s.SetEnabled(true)
	s.tick(context.Background())
	if len(nd.Written) != 3 {
		t.Fatal("expected resumed writes after re-enable")
	}
}

func TestApa102FramePreservesOrdering(t *testing.T) {
	colors := []color.RGB{{1, 2, 3}, {4, 5, 6}, {7, 8, 9}}
	buf := apa102Frame(colors)
	// start frame is 4 bytes; then 4 bytes per LED (brightness,B,G,R)
	for i, c := range colors {
		off := 4 + i*4
		if buf[off+1] != c.B || buf[off+2] != c.G || buf[off+3] != c.R {
			t.Errorf("led %d: wire bytes do not preserve ordering: %v", i, buf[off:off+4])
		}
	}
}
