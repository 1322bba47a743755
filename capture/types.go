package capture

import (
	"errors"
	"fmt"
	"time"

	"github.com/visiona/virtual-backdrop/media"
)

// Config contains configuration for a webcam capture session.
// All dimensions are fixed for the lifetime of the source.
type Config struct {
	// Device is the video device path (e.g. "/dev/video0")
	Device string
	// Width in pixels of the capture preset
	Width int
	// Height in pixels of the capture preset
	Height int
	// FrameRate is the requested capture rate in Hz (0 = device default)
	FrameRate float64
	// Rotation is the fixed display rotation the connection requires,
	// carried out downstream by the renderer
	Rotation media.Rotation
	// Mirrored is the fixed horizontal mirroring of the connection,
	// carried out downstream by the renderer
	Mirrored bool
}

// validate applies fail-fast validation at construction time.
func (c Config) validate() error {
	if c.Device == "" {
		return fmt.Errorf("capture: device path is required")
	}
	if c.Width <= 0 || c.Height <= 0 {
		return fmt.Errorf("capture: invalid resolution %dx%d", c.Width, c.Height)
	}
	if c.FrameRate < 0 || c.FrameRate > 120 {
		return fmt.Errorf("capture: invalid frame rate %.2f (must be 0-120)", c.FrameRate)
	}
	return nil
}

// State is the session lifecycle state.
type State int32

const (
	// StateIdle is the initial state before Configure
	StateIdle State = iota
	// StateConfiguring is transient while the pipeline is being built
	StateConfiguring
	// StateRunning indicates frames are flowing
	StateRunning
	// StateStopped indicates a configured session that is not running
	StateStopped
	// StateFailed is terminal, reachable only from StateConfiguring
	StateFailed
)

// String returns a human-readable string representation of the state.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConfiguring:
		return "configuring"
	case StateRunning:
		return "running"
	case StateStopped:
		return "stopped"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// ErrConfiguration indicates device or session setup failure.
// Fatal for this session instance: capture never starts and the
// session is never retried automatically.
var ErrConfiguration = errors.New("capture: session configuration failed")

// ErrInterrupted indicates the device was claimed by another consumer.
// The session waits for an external interruption-ended signal; no
// automatic recovery is attempted.
var ErrInterrupted = errors.New("capture: session interrupted")

// RuntimeCode classifies session-level faults during operation.
type RuntimeCode int

const (
	// CodeUnknown is an unclassified runtime error; surfaced, no
	// automatic recovery
	CodeUnknown RuntimeCode = iota
	// CodeServicesReset indicates the media backend reset underneath
	// the session; the controller responds with an automatic Restart
	CodeServicesReset
	// CodeInterrupted indicates the device was claimed by another
	// consumer; recoverable once an external interruption-ended
	// signal arrives, no automatic action
	CodeInterrupted
)

// String returns a human-readable string representation of the code.
func (c RuntimeCode) String() string {
	switch c {
	case CodeServicesReset:
		return "services-reset"
	case CodeInterrupted:
		return "interrupted"
	default:
		return "unknown"
	}
}

// SessionError is a runtime session fault surfaced on the Errors channel.
type SessionError struct {
	Code RuntimeCode
	Err  error
}

func (e SessionError) Error() string {
	return fmt.Sprintf("capture: session error [%s]: %v", e.Code, e.Err)
}

func (e SessionError) Unwrap() error { return e.Err }

// Stats contains a snapshot of capture session statistics.
// All counters are updated atomically during operation.
type Stats struct {
	// State is the current session state
	State State
	// FrameCount is the total number of frames captured
	FrameCount uint64
	// FramesDropped counts frames dropped by the delivery gate or
	// the overwrite mailbox
	FramesDropped uint64
	// BytesRead is the total pixel bytes read from the device
	BytesRead uint64
	// FPSReal is the measured average FPS over the session uptime
	FPSReal float64
	// Uptime is the time since the session last started
	Uptime time.Duration
	// Resolution is the capture preset (e.g. "1280x720")
	Resolution string
}

// FPSObserver receives the instantaneous throughput metric, at most once
// per second while frames flow, silent otherwise.
type FPSObserver interface {
	OnFPS(fps float64)
}

// FPSObserverFunc adapts a function to the FPSObserver interface.
type FPSObserverFunc func(fps float64)

// OnFPS implements FPSObserver.
func (f FPSObserverFunc) OnFPS(fps float64) { f(fps) }

// Handler consumes one frame on the delivery goroutine. Calls are
// strictly serial; the frame must be treated as read-only.
type Handler func(*media.Frame)
