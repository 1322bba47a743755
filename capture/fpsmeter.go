package capture

import "time"

// fpsMeter maintains a running frame counter and a window-start timestamp.
// Whenever elapsed time since window start reaches one second, it reports
// count/elapsed and resets both. This yields an instantaneous average, at
// most once per second, and is silent when no frames arrive.
//
// Not safe for concurrent use; tick is called only from the capture
// callback, which is serial.
type fpsMeter struct {
	windowStart time.Time
	count       uint64
}

const fpsWindow = time.Second

// tick records one frame at the given instant. Returns (fps, true) when a
// window has elapsed, (0, false) otherwise.
func (m *fpsMeter) tick(now time.Time) (float64, bool) {
	if m.windowStart.IsZero() {
		m.windowStart = now
	}
	m.count++
	elapsed := now.Sub(m.windowStart)
	if elapsed < fpsWindow {
		return 0, false
	}
	fps := float64(m.count) / elapsed.Seconds()
	m.count = 0
	m.windowStart = now
	return fps, true
}

// reset clears the window, e.g. across a stop/start cycle, so stale
// elapsed time does not skew the first emission.
func (m *fpsMeter) reset() {
	m.windowStart = time.Time{}
	m.count = 0
}
