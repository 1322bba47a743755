package capture

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/tinyzimmer/go-gst/gst"
	"github.com/tinyzimmer/go-gst/gst/app"

	"github.com/visiona/virtual-backdrop/capture/internal/v4l2"
	"github.com/visiona/virtual-backdrop/mailbox"
	"github.com/visiona/virtual-backdrop/media"
)

// sessionOp is a lifecycle request serialized on the session goroutine.
type sessionOp int

const (
	opStart sessionOp = iota
	opStop
	opRestart
)

// WebcamSource implements Source using a GStreamer v4l2 capture pipeline.
type WebcamSource struct {
	cfg      Config
	handler  Handler
	observer FPSObserver

	// session state (atomic for lock-free Stats reads)
	state           atomic.Int32
	deliveryEnabled atomic.Bool

	// statistics (atomic for thread-safety)
	frameCount    atomic.Uint64
	bytesRead     atomic.Uint64
	framesDropped atomic.Uint64

	mu      sync.RWMutex // protects elements, started
	started time.Time

	elements *v4l2.PipelineElements

	// inbox decouples the appsink streaming thread from the delivery
	// goroutine with drop-newest semantics.
	inbox *mailbox.Box[*media.Frame]
	meter fpsMeter

	ops  chan sessionOp
	errs chan SessionError

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	closeOnce sync.Once
}

// NewWebcamSource creates a new webcam source with fail-fast validation.
//
// Validates configuration at construction time:
//   - Device path must not be empty
//   - Resolution must be positive
//   - Frame rate must be 0 (device default) to 120
//
// Returns an error if validation fails or GStreamer is not available.
func NewWebcamSource(cfg Config) (*WebcamSource, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if err := checkGStreamerAvailable(); err != nil {
		return nil, fmt.Errorf("capture: GStreamer not available: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &WebcamSource{
		cfg:    cfg,
		inbox:  mailbox.New[*media.Frame](),
		ops:    make(chan sessionOp, 8),
		errs:   make(chan SessionError, 4),
		ctx:    ctx,
		cancel: cancel,
	}
	s.state.Store(int32(StateIdle))
	s.deliveryEnabled.Store(true)

	slog.Info("capture: webcam source created",
		"device", cfg.Device,
		"resolution", fmt.Sprintf("%dx%d", cfg.Width, cfg.Height),
		"frame_rate", cfg.FrameRate,
		"rotation", cfg.Rotation.String(),
		"mirrored", cfg.Mirrored,
	)
	return s, nil
}

// SetHandler implements Source. Must be called before Configure.
func (s *WebcamSource) SetHandler(h Handler) {
	s.mu.Lock()
	s.handler = h
	s.mu.Unlock()
}

// SetFPSObserver implements Source.
func (s *WebcamSource) SetFPSObserver(o FPSObserver) {
	s.mu.Lock()
	s.observer = o
	s.mu.Unlock()
}

// Errors implements Source.
func (s *WebcamSource) Errors() <-chan SessionError {
	return s.errs
}

// Configure builds the capture pipeline without starting it.
//
// This method:
//  1. Transitions Idle → Configuring
//  2. Creates the GStreamer pipeline and attaches the appsink callback
//  3. Launches the session, delivery and bus-monitor goroutines
//  4. Transitions Configuring → Stopped
//
// Any failure transitions to the terminal StateFailed and returns an error
// wrapping ErrConfiguration. The session is never retried automatically.
func (s *WebcamSource) Configure() error {
	if State(s.state.Load()) != StateIdle {
		return fmt.Errorf("%w: configure called in state %s",
			ErrConfiguration, State(s.state.Load()))
	}
	s.state.Store(int32(StateConfiguring))

	slog.Info("capture: configuring session", "device", s.cfg.Device)

	elements, err := v4l2.CreatePipeline(v4l2.PipelineConfig{
		Device:    s.cfg.Device,
		Width:     s.cfg.Width,
		Height:    s.cfg.Height,
		FrameRate: s.cfg.FrameRate,
	})
	if err != nil {
		s.state.Store(int32(StateFailed))
		slog.Error("capture: session configuration failed", "error", err)
		return fmt.Errorf("%w: %v", ErrConfiguration, err)
	}

	callbackCtx := &v4l2.CallbackContext{
		Deliver:       s.deliver,
		Enabled:       &s.deliveryEnabled,
		FrameCounter:  &s.frameCount,
		BytesRead:     &s.bytesRead,
		FramesDropped: &s.framesDropped,
		Width:         s.cfg.Width,
		Height:        s.cfg.Height,
	}
	elements.AppSink.SetCallbacks(&app.SinkCallbacks{
		NewSampleFunc: func(sink *app.Sink) gst.FlowReturn {
			return v4l2.OnNewSample(sink, callbackCtx)
		},
	})

	s.mu.Lock()
	s.elements = elements
	s.mu.Unlock()

	s.wg.Add(3)
	go s.sessionLoop()
	go s.deliveryLoop()
	go s.monitorBus()

	s.state.Store(int32(StateStopped))
	slog.Info("capture: session configured")
	return nil
}

// Start implements Source: asynchronous, idempotent.
func (s *WebcamSource) Start() { s.request(opStart) }

// Stop implements Source: asynchronous, idempotent. Does not abort an
// in-flight handler invocation; it only prevents the next delivery.
func (s *WebcamSource) Stop() { s.request(opStop) }

// Restart implements Source: a no-op unless the session is running.
func (s *WebcamSource) Restart() { s.request(opRestart) }

// request queues a lifecycle op on the session goroutine. Dropped when
// the session is not configured or the queue overflows (requests are
// idempotent, so losing a duplicate is harmless).
func (s *WebcamSource) request(op sessionOp) {
	switch State(s.state.Load()) {
	case StateIdle, StateConfiguring, StateFailed:
		slog.Debug("capture: ignoring session request",
			"op", int(op), "state", State(s.state.Load()).String())
		return
	}
	select {
	case s.ops <- op:
	case <-s.ctx.Done():
	default:
		slog.Warn("capture: session request queue full, dropping request")
	}
}

// SetDeliveryEnabled implements Source. Takes effect for the next
// arriving frame; frames arriving while disabled are dropped, not queued.
func (s *WebcamSource) SetDeliveryEnabled(enabled bool) {
	s.deliveryEnabled.Store(enabled)
	slog.Debug("capture: delivery gate", "enabled", enabled)
}

// sessionLoop executes lifecycle requests serially. This is the single
// configuration execution context: no two session transitions overlap.
func (s *WebcamSource) sessionLoop() {
	defer s.wg.Done()
	for {
		select {
		case <-s.ctx.Done():
			return
		case op := <-s.ops:
			switch op {
			case opStart:
				s.doStart()
			case opStop:
				s.doStop()
			case opRestart:
				// No-op unless running.
				if State(s.state.Load()) == StateRunning {
					s.doStop()
					s.doStart()
				}
			}
		}
	}
}

func (s *WebcamSource) doStart() {
	if State(s.state.Load()) != StateStopped {
		return
	}
	s.mu.Lock()
	elements := s.elements
	s.mu.Unlock()
	if elements == nil {
		return
	}
	if err := elements.Pipeline.SetState(gst.StatePlaying); err != nil {
		slog.Error("capture: failed to start pipeline", "error", err)
		s.postError(SessionError{Code: CodeUnknown, Err: err})
		return
	}
	s.mu.Lock()
	s.started = time.Now()
	s.meter.reset()
	s.mu.Unlock()
	s.state.Store(int32(StateRunning))
	slog.Info("capture: session running")
}

func (s *WebcamSource) doStop() {
	if State(s.state.Load()) != StateRunning {
		return
	}
	s.mu.Lock()
	elements := s.elements
	s.mu.Unlock()
	if elements == nil {
		return
	}
	if err := elements.Pipeline.SetState(gst.StateNull); err != nil {
		slog.Error("capture: failed to stop pipeline", "error", err)
	}
	s.state.Store(int32(StateStopped))
	slog.Info("capture: session stopped",
		"frames_captured", s.frameCount.Load(),
	)
}

// deliver forwards one frame from the appsink thread into the delivery
// mailbox (non-blocking, overwrite policy).
func (s *WebcamSource) deliver(f v4l2.Frame) {
	s.inbox.Put(&media.Frame{
		Pix:       f.Pix,
		Width:     f.Width,
		Height:    f.Height,
		Timestamp: f.Timestamp,
		Seq:       f.Seq,
		TraceID:   f.TraceID,
	})
}

// deliveryLoop is the dedicated delivery goroutine: it drains the inbox
// and invokes the handler strictly serially, updating the throughput
// metric per delivered frame.
func (s *WebcamSource) deliveryLoop() {
	defer s.wg.Done()
	for {
		frame, ok := s.inbox.Receive()
		if !ok {
			return
		}

		s.mu.Lock()
		fps, emit := s.meter.tick(frame.Timestamp)
		observer := s.observer
		handler := s.handler
		s.mu.Unlock()

		if emit && observer != nil {
			observer.OnFPS(fps)
		}
		if handler != nil {
			handler(frame)
		}
	}
}

// monitorBus watches the GStreamer pipeline bus and surfaces runtime
// faults on the Errors channel with a recovery classification.
func (s *WebcamSource) monitorBus() {
	defer s.wg.Done()

	s.mu.RLock()
	elements := s.elements
	s.mu.RUnlock()
	if elements == nil || elements.Pipeline == nil {
		return
	}
	bus := elements.Pipeline.GetPipelineBus()

	for {
		select {
		case <-s.ctx.Done():
			return
		default:
		}

		// Poll with a short timeout for responsive shutdown.
		msg := bus.TimedPop(50 * time.Millisecond)
		if msg == nil {
			continue
		}

		switch msg.Type() {
		case gst.MessageEOS:
			slog.Warn("capture: unexpected end of stream")
			s.postError(SessionError{
				Code: CodeServicesReset,
				Err:  fmt.Errorf("end of stream"),
			})

		case gst.MessageError:
			gerr := msg.ParseError()
			class := v4l2.ClassifyError(gerr)
			code := runtimeCodeFor(class)
			slog.Error("capture: pipeline error",
				"error", gerr.Error(),
				"debug", gerr.DebugString(),
				"class", class.String(),
				"frames_captured", s.frameCount.Load(),
			)
			s.postError(SessionError{
				Code: code,
				Err:  fmt.Errorf("pipeline error [%s]: %s", class, gerr.Error()),
			})
		}
	}
}

func runtimeCodeFor(class v4l2.ErrorClass) RuntimeCode {
	switch class {
	case v4l2.ErrClassServicesReset:
		return CodeServicesReset
	case v4l2.ErrClassDeviceBusy:
		return CodeInterrupted
	default:
		return CodeUnknown
	}
}

// postError surfaces a session error without ever blocking the monitor.
func (s *WebcamSource) postError(e SessionError) {
	select {
	case s.errs <- e:
	default:
		slog.Warn("capture: error channel full, dropping session error",
			"code", e.Code.String())
	}
}

// Stats implements Source. Thread-safe snapshot.
func (s *WebcamSource) Stats() Stats {
	s.mu.RLock()
	started := s.started
	s.mu.RUnlock()

	frameCount := s.frameCount.Load()

	var uptime time.Duration
	var fpsReal float64
	if !started.IsZero() {
		uptime = time.Since(started)
		if secs := uptime.Seconds(); secs > 0 {
			fpsReal = float64(frameCount) / secs
		}
	}

	return Stats{
		State:         State(s.state.Load()),
		FrameCount:    frameCount,
		FramesDropped: s.framesDropped.Load() + s.inbox.Drops(),
		BytesRead:     s.bytesRead.Load(),
		FPSReal:       fpsReal,
		Uptime:        uptime,
		Resolution:    fmt.Sprintf("%dx%d", s.cfg.Width, s.cfg.Height),
	}
}

// Close releases the session and all pipeline resources. Idempotent.
//
// This method:
//  1. Cancels the lifecycle context and closes the delivery mailbox
//  2. Waits up to 3 seconds for the goroutines to finish
//  3. Destroys the GStreamer pipeline
func (s *WebcamSource) Close() error {
	var err error
	s.closeOnce.Do(func() {
		slog.Info("capture: closing webcam source")
		s.cancel()
		s.inbox.Close()

		done := make(chan struct{})
		go func() {
			s.wg.Wait()
			close(done)
		}()
		select {
		case <-done:
			slog.Debug("capture: goroutines stopped cleanly")
			// Safe to close only once all producers have exited.
			close(s.errs)
		case <-time.After(3 * time.Second):
			slog.Warn("capture: close timeout exceeded, some goroutines may still be running")
		}

		s.mu.Lock()
		elements := s.elements
		s.elements = nil
		s.mu.Unlock()
		if elements != nil {
			if derr := v4l2.DestroyPipeline(elements); derr != nil {
				slog.Error("capture: failed to destroy pipeline", "error", derr)
				err = derr
			}
		}

		slog.Info("capture: webcam source closed",
			"frames_captured", s.frameCount.Load(),
			"frames_dropped", s.framesDropped.Load()+s.inbox.Drops(),
		)
	})
	return err
}

// checkGStreamerAvailable is a fail-fast validation run at construction.
func checkGStreamerAvailable() error {
	gst.Init(nil)
	elem, err := gst.NewElement("fakesrc")
	if err != nil {
		return fmt.Errorf("GStreamer not available or not properly installed: %w", err)
	}
	elem.SetState(gst.StateNull)
	return nil
}
