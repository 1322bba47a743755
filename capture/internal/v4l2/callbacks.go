package v4l2

import (
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/tinyzimmer/go-gst/gst"
	"github.com/tinyzimmer/go-gst/gst/app"
)

// Frame is a minimal frame struct for internal use (avoids an import cycle
// with the parent package, which defines the public frame type).
type Frame struct {
	Seq       uint64
	Timestamp time.Time
	Width     int
	Height    int
	Pix       []byte
	TraceID   string
}

// CallbackContext holds the state needed by GStreamer appsink callbacks.
type CallbackContext struct {
	// Deliver forwards one frame downstream; called on the appsink
	// streaming thread, which GStreamer guarantees to be serial.
	Deliver func(Frame)

	// Enabled gates delivery: while false, arriving frames are
	// counted as dropped and discarded, never buffered.
	Enabled *atomic.Bool

	FrameCounter  *atomic.Uint64
	BytesRead     *atomic.Uint64
	FramesDropped *atomic.Uint64

	Width  int
	Height int
}

// OnNewSample is called by GStreamer when a new frame is available.
//
// This callback:
//  1. Pulls the sample from the appsink
//  2. Maps the buffer and copies pixel data (GStreamer reuses the buffer)
//  3. Applies the delivery gate (drop-newest, no queue)
//  4. Forwards the frame with sequence number and trace id
//
// A single corrupted frame never terminates the stream: failures skip the
// frame and return FlowOK.
func OnNewSample(sink *app.Sink, ctx *CallbackContext) gst.FlowReturn {
	sample := sink.PullSample()
	if sample == nil {
		slog.Warn("v4l2: failed to pull sample from appsink, skipping frame")
		return gst.FlowOK
	}

	buffer := sample.GetBuffer()
	if buffer == nil {
		slog.Warn("v4l2: failed to get buffer from sample, skipping frame")
		return gst.FlowOK
	}

	mapInfo := buffer.Map(gst.MapRead)
	data := mapInfo.Bytes()
	if len(data) == 0 {
		buffer.Unmap()
		slog.Warn("v4l2: empty buffer received")
		return gst.FlowOK
	}

	// Copy frame data out: GStreamer will reuse the buffer.
	pix := make([]byte, len(data))
	copy(pix, data)
	buffer.Unmap()

	seq := ctx.FrameCounter.Add(1)
	ctx.BytesRead.Add(uint64(len(pix)))

	if !ctx.Enabled.Load() {
		ctx.FramesDropped.Add(1)
		return gst.FlowOK
	}

	ctx.Deliver(Frame{
		Seq:       seq,
		Timestamp: time.Now(),
		Width:     ctx.Width,
		Height:    ctx.Height,
		Pix:       pix,
		TraceID:   uuid.New().String(),
	})

	return gst.FlowOK
}
