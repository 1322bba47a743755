package v4l2

import (
	"fmt"

	"github.com/tinyzimmer/go-gst/gst"
	"github.com/tinyzimmer/go-gst/gst/app"
)

// PipelineConfig contains configuration for GStreamer pipeline creation.
type PipelineConfig struct {
	Device    string
	Width     int
	Height    int
	FrameRate float64
}

// PipelineElements holds references to GStreamer pipeline elements needed
// for lifecycle control and cleanup.
type PipelineElements struct {
	Pipeline   *gst.Pipeline
	Source     *gst.Element
	CapsFilter *gst.Element
	AppSink    *app.Sink
}

// CreatePipeline creates and configures a GStreamer pipeline for webcam
// capture.
//
// Pipeline structure:
//
//	v4l2src → videoconvert → videoscale → capsfilter(RGBA WxH) → appsink
//
// The pipeline is configured but NOT started (state remains NULL).
// The appsink keeps only the latest buffer and drops older ones, so frame
// delivery follows a drop-newest policy at the source already.
//
// Returns PipelineElements with references to key elements, or an error if
// pipeline creation fails.
func CreatePipeline(cfg PipelineConfig) (*PipelineElements, error) {
	// Initialize GStreamer (safe to call multiple times)
	gst.Init(nil)

	pipeline, err := gst.NewPipeline("")
	if err != nil {
		return nil, fmt.Errorf("failed to create pipeline: %w", err)
	}

	src, err := gst.NewElement("v4l2src")
	if err != nil {
		return nil, fmt.Errorf("failed to create v4l2src: %w", err)
	}
	src.SetProperty("device", cfg.Device)

	converter, err := gst.NewElement("videoconvert")
	if err != nil {
		return nil, fmt.Errorf("failed to create videoconvert: %w", err)
	}
	converter.SetProperty("n-threads", 0) // auto-detect cores

	scaler, err := gst.NewElement("videoscale")
	if err != nil {
		return nil, fmt.Errorf("failed to create videoscale: %w", err)
	}

	capsfilter, err := gst.NewElement("capsfilter")
	if err != nil {
		return nil, fmt.Errorf("failed to create capsfilter: %w", err)
	}
	caps := gst.NewCapsFromString(buildCaps(cfg.Width, cfg.Height, cfg.FrameRate))
	capsfilter.SetProperty("caps", caps)

	appsink, err := app.NewAppSink()
	if err != nil {
		return nil, fmt.Errorf("failed to create appsink: %w", err)
	}
	appsink.SetProperty("sync", false)    // no clock sync (real-time)
	appsink.SetProperty("max-buffers", 1) // keep only latest frame
	appsink.SetProperty("drop", true)     // drop old frames
	appsink.SetProperty("qos", true)      // upstream pre-decode drops

	pipeline.AddMany(src, converter, scaler, capsfilter, appsink.Element)

	if err := gst.ElementLinkMany(src, converter, scaler, capsfilter, appsink.Element); err != nil {
		return nil, fmt.Errorf("failed to link pipeline elements: %w", err)
	}

	return &PipelineElements{
		Pipeline:   pipeline,
		Source:     src,
		CapsFilter: capsfilter,
		AppSink:    appsink,
	}, nil
}

// DestroyPipeline cleans up GStreamer pipeline resources.
// Safe to call even if the pipeline is already destroyed.
func DestroyPipeline(elements *PipelineElements) error {
	if elements == nil || elements.Pipeline == nil {
		return nil
	}
	if err := elements.Pipeline.SetState(gst.StateNull); err != nil {
		return fmt.Errorf("failed to set pipeline to NULL: %w", err)
	}
	return nil
}

// buildCaps builds a caps string locking the packed RGBA format and the
// fixed capture preset. A zero fps leaves the device default rate.
func buildCaps(width, height int, fps float64) string {
	base := fmt.Sprintf("video/x-raw,format=RGBA,width=%d,height=%d", width, height)
	if fps <= 0 {
		return base
	}
	num, den := 1, 1
	if fps < 1.0 {
		den = int(1.0 / fps)
	} else {
		num = int(fps)
	}
	return fmt.Sprintf("%s,framerate=%d/%d", base, num, den)
}
