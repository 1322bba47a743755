// Package capture provides local camera acquisition using GStreamer.
//
// It owns the device and its session, delivering packed RGBA frames on a
// dedicated serial delivery goroutine, with an at-most-once-per-second
// throughput metric pushed to an observer.
//
// # Quick Start
//
//	cfg := capture.Config{
//	    Device:     "/dev/video0",
//	    Width:      1280,
//	    Height:     720,
//	    Rotation:   media.Rotate90,
//	    Mirrored:   true,
//	}
//
//	src, err := capture.NewWebcamSource(cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	src.SetHandler(func(f *media.Frame) { process(f) })
//	if err := src.Configure(); err != nil {
//	    log.Fatal(err)
//	}
//	src.Start()
//	defer src.Stop()
//
// # Session state machine
//
//	Idle → Configuring → Running ⇄ Stopped
//	              ↓
//	           Failed (terminal)
//
// Configure prepares but does not start the pipeline; a configuration
// failure is terminal for the session instance and is never retried.
// Start, Stop and Restart are asynchronous requests serialized on a single
// session goroutine and are idempotent against the current state; Restart
// is a no-op unless the session is running.
//
// # Delivery
//
// Frames are forwarded through a capacity-1 overwrite mailbox to a single
// delivery goroutine, so the downstream handler sees frames strictly
// serially and a slow handler causes frames to be dropped, never queued.
// SetDeliveryEnabled(false) drops arriving frames before they reach the
// mailbox; re-enabling resumes forwarding without a session restart.
//
// # Dependencies
//
// GStreamer 1.x must be installed on the system (gstreamer1.0-plugins-base,
// gstreamer1.0-plugins-good for v4l2src). Verify with:
//
//	gst-inspect-1.0 v4l2src
package capture
