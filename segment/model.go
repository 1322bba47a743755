package segment

import (
	"fmt"
	"image"
	"log/slog"

	"gocv.io/x/gocv"

	"github.com/visiona/virtual-backdrop/media"
)

// Model defaults for DeepLabV3-family networks trained on PASCAL VOC.
const (
	DefaultInputSize  = 513
	DefaultClassCount = 21
)

// Segmenter produces a per-cell class grid from an RGBA buffer already
// resized to the model input resolution.
type Segmenter interface {
	// Segment runs one synchronous forward pass. The returned mask has
	// one class id per input pixel.
	Segment(pix []byte, width, height int) (*media.Mask, error)
	Close() error
}

// ModelConfig configures the DNN segmenter.
type ModelConfig struct {
	// Path to the model file (e.g. a frozen TensorFlow graph or ONNX)
	Path string
	// InputSize is the square input edge the model expects
	InputSize int
	// ClassCount is the number of class score planes the model emits
	ClassCount int
}

func (c ModelConfig) validate() error {
	if c.Path == "" {
		return fmt.Errorf("segment: model path is required")
	}
	if c.InputSize <= 0 {
		return fmt.Errorf("segment: invalid model input size %d", c.InputSize)
	}
	if c.ClassCount <= 0 {
		return fmt.Errorf("segment: invalid class count %d", c.ClassCount)
	}
	return nil
}

// DNNSegmenter wraps an OpenCV DNN segmentation network. Not safe for
// concurrent Segment calls; the processing pipeline invokes it serially.
type DNNSegmenter struct {
	cfg ModelConfig
	net gocv.Net

	// classes is reused across frames: exactly one Segment runs at a
	// time and the compositing step copies the grid into GPU memory
	// before the next frame arrives.
	classes []int32
}

// NewDNNSegmenter loads the model and fails fast if it cannot be read.
func NewDNNSegmenter(cfg ModelConfig) (*DNNSegmenter, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	net := gocv.ReadNet(cfg.Path, "")
	if net.Empty() {
		return nil, fmt.Errorf("segment: failed to load model from %s", cfg.Path)
	}

	slog.Info("segment: model loaded",
		"path", cfg.Path,
		"input_size", cfg.InputSize,
		"classes", cfg.ClassCount,
	)
	return &DNNSegmenter{
		cfg:     cfg,
		net:     net,
		classes: make([]int32, cfg.InputSize*cfg.InputSize),
	}, nil
}

// Segment implements Segmenter: blob conversion, one forward pass, then
// argmax over the class score planes.
func (s *DNNSegmenter) Segment(pix []byte, width, height int) (*media.Mask, error) {
	if width != s.cfg.InputSize || height != s.cfg.InputSize {
		return nil, fmt.Errorf("segment: input %dx%d does not match model input %d",
			width, height, s.cfg.InputSize)
	}

	src, err := gocv.NewMatFromBytes(height, width, gocv.MatTypeCV8UC4, pix)
	if err != nil {
		return nil, fmt.Errorf("segment: wrapping input failed: %w", err)
	}
	defer src.Close()

	// The network expects 3-channel RGB.
	rgb := gocv.NewMat()
	defer rgb.Close()
	gocv.CvtColor(src, &rgb, gocv.ColorRGBAToRGB)

	blob := gocv.BlobFromImage(rgb, 1.0/127.5,
		image.Point{X: width, Y: height},
		gocv.NewScalar(127.5, 127.5, 127.5, 0),
		false, false)
	defer blob.Close()

	s.net.SetInput(blob, "")
	scores := s.net.Forward("")
	defer scores.Close()

	data, err := scores.DataPtrFloat32()
	if err != nil {
		return nil, fmt.Errorf("segment: reading network output failed: %w", err)
	}

	plane := width * height
	if len(data) < s.cfg.ClassCount*plane {
		return nil, fmt.Errorf("segment: network output %d floats, want %d",
			len(data), s.cfg.ClassCount*plane)
	}

	argmaxPlanes(data, s.classes, plane, s.cfg.ClassCount)

	return &media.Mask{
		Classes: s.classes,
		Width:   width,
		Height:  height,
	}, nil
}

// Close releases the network.
func (s *DNNSegmenter) Close() error {
	return s.net.Close()
}

// argmaxPlanes writes into out the index of the highest-scoring class
// plane per cell. data holds classCount planes of planeSize floats.
func argmaxPlanes(data []float32, out []int32, planeSize, classCount int) {
	for i := 0; i < planeSize; i++ {
		best := int32(0)
		bestScore := data[i]
		for c := 1; c < classCount; c++ {
			if v := data[c*planeSize+i]; v > bestScore {
				bestScore = v
				best = int32(c)
			}
		}
		out[i] = best
	}
}
