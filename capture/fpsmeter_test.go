package capture

import (
	"math"
	"testing"
	"time"
)

// TestFPSMeterEmitsOncePerWindow validates the windowed throughput metric.
//
// Contract:
//   - One value per >=1s window, equal to count/elapsed
//   - Counter and window start reset after emission
//   - Silent while the window has not elapsed
func TestFPSMeterEmitsOncePerWindow(t *testing.T) {
	var m fpsMeter
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	// 29 frames over 966ms: window not yet elapsed, nothing emitted.
	for i := 0; i < 29; i++ {
		now := base.Add(time.Duration(i) * 33 * time.Millisecond)
		if fps, emit := m.tick(now); emit {
			t.Fatalf("premature emission at frame %d: %v", i, fps)
		}
	}

	// Frame 30 lands at 1.0s exactly: 30 frames / 1s = 30fps.
	fps, emit := m.tick(base.Add(time.Second))
	if !emit {
		t.Fatal("no emission after 1s window")
	}
	if math.Abs(fps-30.0) > 0.01 {
		t.Errorf("fps = %v, want 30.0", fps)
	}

	// Window restarted: next frame emits nothing.
	if _, emit := m.tick(base.Add(time.Second + 33*time.Millisecond)); emit {
		t.Error("emission immediately after window reset")
	}
}

// TestFPSMeterElapsedOverOneSecond validates count/elapsed when the
// window overshoots one second (e.g. low frame rates).
func TestFPSMeterElapsedOverOneSecond(t *testing.T) {
	var m fpsMeter
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	m.tick(base)
	m.tick(base.Add(1 * time.Second))
	fps, emit := m.tick(base.Add(2 * time.Second))
	if !emit {
		t.Fatal("no emission after 2s window")
	}
	// 3 frames over the 2s elapsed window.
	if math.Abs(fps-1.5) > 0.01 {
		t.Errorf("fps = %v, want 1.5", fps)
	}
}

// TestFPSMeterSilentWithoutFrames validates that no value is produced when
// no frames arrive: the meter only advances on tick.
func TestFPSMeterSilentWithoutFrames(t *testing.T) {
	var m fpsMeter
	if m.count != 0 || !m.windowStart.IsZero() {
		t.Fatal("meter not initially silent")
	}
	// A reset meter behaves as new.
	m.tick(time.Now())
	m.reset()
	if m.count != 0 || !m.windowStart.IsZero() {
		t.Error("reset did not clear meter state")
	}
}
