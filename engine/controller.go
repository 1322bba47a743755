// Package engine wires the capture, segmentation and render components
// into one controllable pipeline.
package engine

import (
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/visiona/virtual-backdrop/capture"
	"github.com/visiona/virtual-backdrop/media"
	"github.com/visiona/virtual-backdrop/render"
)

// FrameProcessor transforms one captured frame into a displayable one.
// Implemented by segment.Processor.
type FrameProcessor interface {
	Process(*media.Frame) (*media.Frame, error)
}

// ErrorObserver receives session errors the controller cannot recover
// from on its own.
type ErrorObserver func(capture.SessionError)

// Controller owns the frame path from the camera to the render slot.
//
// Frame flow: the capture source delivers frames serially; each frame
// runs through the processor and the result is published to the render
// slot. A processing failure drops that frame only.
//
// Runtime error policy: a services-reset fault triggers an automatic
// capture restart; every other fault is surfaced to the error observer.
//
// Stop disables delivery and stops the capture session; an in-flight
// Process finishes normally.
type Controller struct {
	src  capture.Source
	proc FrameProcessor
	slot *render.Slot

	renderingEnabled atomic.Bool

	mu       sync.Mutex
	errObs   ErrorObserver
	fpsObs   capture.FPSObserver
	restarts atomic.Uint64
	dropped  atomic.Uint64

	wg        sync.WaitGroup
	closeOnce sync.Once
}

// NewController wires the pipeline. All collaborators are required.
func NewController(src capture.Source, proc FrameProcessor, slot *render.Slot) (*Controller, error) {
	if src == nil || proc == nil || slot == nil {
		return nil, fmt.Errorf("engine: controller requires source, processor and slot")
	}
	c := &Controller{src: src, proc: proc, slot: slot}
	c.renderingEnabled.Store(true)

	src.SetHandler(c.handleFrame)
	src.SetFPSObserver(capture.FPSObserverFunc(c.handleFPS))
	return c, nil
}

// SetErrorObserver installs the receiver for unrecoverable session
// errors. Must be called before Configure.
func (c *Controller) SetErrorObserver(obs ErrorObserver) {
	c.mu.Lock()
	c.errObs = obs
	c.mu.Unlock()
}

// SetFPSObserver installs the throughput metric receiver.
func (c *Controller) SetFPSObserver(obs capture.FPSObserver) {
	c.mu.Lock()
	c.fpsObs = obs
	c.mu.Unlock()
}

// Configure prepares the capture session and starts the error monitor.
func (c *Controller) Configure() error {
	if err := c.src.Configure(); err != nil {
		return fmt.Errorf("engine: configure failed: %w", err)
	}
	c.wg.Add(1)
	go c.monitorErrors()
	return nil
}

// Start begins frame flow. Asynchronous and idempotent.
func (c *Controller) Start() {
	slog.Info("engine: starting pipeline")
	c.src.Start()
}

// Stop halts frame flow without releasing resources. An in-flight
// frame finishes processing; the slot keeps the last rendered frame.
func (c *Controller) Stop() {
	slog.Info("engine: stopping pipeline")
	c.src.Stop()
}

// SetRenderingEnabled gates the pipeline before processing: while
// disabled, arriving frames are dropped at the capture delivery gate
// and the processor sees nothing. The renderer keeps showing the last
// published frame.
func (c *Controller) SetRenderingEnabled(enabled bool) {
	c.renderingEnabled.Store(enabled)
	c.src.SetDeliveryEnabled(enabled)
	slog.Info("engine: rendering gate", "enabled", enabled)
}

// RenderingEnabled reports the current gate state.
func (c *Controller) RenderingEnabled() bool {
	return c.renderingEnabled.Load()
}

// handleFrame runs on the capture delivery goroutine, strictly serial.
func (c *Controller) handleFrame(frame *media.Frame) {
	out, err := c.proc.Process(frame)
	if err != nil {
		c.dropped.Add(1)
		slog.Warn("engine: frame dropped",
			"error", err,
			"trace_id", frame.TraceID,
			"seq", frame.Seq,
		)
		return
	}
	c.slot.Publish(out)
}

func (c *Controller) handleFPS(fps float64) {
	c.mu.Lock()
	obs := c.fpsObs
	c.mu.Unlock()
	if obs != nil {
		obs.OnFPS(fps)
	}
}

// monitorErrors applies the runtime recovery policy.
func (c *Controller) monitorErrors() {
	defer c.wg.Done()
	for e := range c.src.Errors() {
		switch e.Code {
		case capture.CodeServicesReset:
			c.restarts.Add(1)
			slog.Warn("engine: media services reset, restarting capture",
				"restarts", c.restarts.Load())
			c.src.Restart()
		default:
			slog.Error("engine: session error surfaced",
				"code", e.Code.String(), "error", e.Err)
			c.mu.Lock()
			obs := c.errObs
			c.mu.Unlock()
			if obs != nil {
				obs(e)
			}
		}
	}
}

// Stats aggregates capture statistics with controller counters.
type Stats struct {
	Capture       capture.Stats
	FramesDropped uint64
	Restarts      uint64
}

// Stats returns a snapshot of pipeline statistics.
func (c *Controller) Stats() Stats {
	return Stats{
		Capture:       c.src.Stats(),
		FramesDropped: c.dropped.Load(),
		Restarts:      c.restarts.Load(),
	}
}

// Close stops the pipeline and releases the capture source. Idempotent.
func (c *Controller) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.src.Stop()
		err = c.src.Close()
		// Errors channel is owned by the source; the monitor exits
		// when the source stops producing. Best effort wait happens
		// inside the source's bounded Close.
		slog.Info("engine: controller closed",
			"frames_dropped", c.dropped.Load(),
			"restarts", c.restarts.Load(),
		)
	})
	return err
}
