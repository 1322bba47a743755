package segment

import (
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/visiona/virtual-backdrop/compose"
	"github.com/visiona/virtual-backdrop/media"
)

// Compositor blends a frame with a background according to a mask.
// Implemented by compose.Kernel.
type Compositor interface {
	Composite(frame *media.Frame, mask *media.Mask, bg *compose.Background) (*media.Frame, error)
}

// BackgroundProvider supplies the current background, nil when unset.
// Implemented by compose.BackgroundStore.
type BackgroundProvider interface {
	Current() *compose.Background
}

// Stats is a snapshot of processor counters.
type Stats struct {
	// FramesIn is the total frames handed to Process
	FramesIn uint64
	// FramesPassedThrough is the frames returned unchanged (no background)
	FramesPassedThrough uint64
	// FramesComposited is the frames that went through the full
	// segmentation and compositing path
	FramesComposited uint64
	// FramesFailed is the frames dropped due to a processing error
	FramesFailed uint64
}

// Processor runs the per-frame segmentation and compositing pipeline.
//
// Process semantics:
//   - No background set: the input frame is returned unchanged, no
//     resize, no model call, no GPU work.
//   - Background set: stretch resize to the model input, synchronous
//     forward pass, GPU composite, composited frame returned.
//   - Any failure: an error is returned and the caller drops the
//     frame; the next frame is processed normally.
//
// At most one Process may be in flight (the delivery context is serial).
type Processor struct {
	segmenter   Segmenter
	compositor  Compositor
	backgrounds BackgroundProvider
	inputSize   int

	framesIn            atomic.Uint64
	framesPassedThrough atomic.Uint64
	framesComposited    atomic.Uint64
	framesFailed        atomic.Uint64
}

// NewProcessor wires the segmentation pipeline. All collaborators are
// required; inputSize must match the segmenter's model input.
func NewProcessor(seg Segmenter, comp Compositor, bg BackgroundProvider, inputSize int) (*Processor, error) {
	if seg == nil || comp == nil || bg == nil {
		return nil, fmt.Errorf("segment: processor requires segmenter, compositor and background provider")
	}
	if inputSize <= 0 {
		return nil, fmt.Errorf("segment: invalid model input size %d", inputSize)
	}
	return &Processor{
		segmenter:   seg,
		compositor:  comp,
		backgrounds: bg,
		inputSize:   inputSize,
	}, nil
}

// Process transforms one frame. See the type doc for semantics.
func (p *Processor) Process(frame *media.Frame) (*media.Frame, error) {
	p.framesIn.Add(1)

	bg := p.backgrounds.Current()
	if bg == nil {
		p.framesPassedThrough.Add(1)
		return frame, nil
	}

	resized, err := stretchResize(frame.Pix, frame.Width, frame.Height, p.inputSize, p.inputSize)
	if err != nil {
		p.framesFailed.Add(1)
		return nil, fmt.Errorf("segment: resize failed: %w", err)
	}

	mask, err := p.segmenter.Segment(resized, p.inputSize, p.inputSize)
	if err != nil {
		p.framesFailed.Add(1)
		return nil, fmt.Errorf("segment: model inference failed: %w", err)
	}

	out, err := p.compositor.Composite(frame, mask, bg)
	if err != nil {
		p.framesFailed.Add(1)
		return nil, fmt.Errorf("segment: compositing failed: %w", err)
	}

	p.framesComposited.Add(1)
	return out, nil
}

// Stats returns a snapshot of the processing counters.
func (p *Processor) Stats() Stats {
	return Stats{
		FramesIn:            p.framesIn.Load(),
		FramesPassedThrough: p.framesPassedThrough.Load(),
		FramesComposited:    p.framesComposited.Load(),
		FramesFailed:        p.framesFailed.Load(),
	}
}

// Close releases the segmenter.
func (p *Processor) Close() error {
	if err := p.segmenter.Close(); err != nil {
		slog.Error("segment: closing segmenter failed", "error", err)
		return err
	}
	return nil
}
