package compose

import (
	"fmt"
	"image"
	"log/slog"
	"math"
	"sync/atomic"

	"github.com/anthonynsimon/bild/transform"
)

// Background is an immutable prepared background image: packed RGBA at
// exactly the store's target resolution. Generation increases with every
// replacement so consumers can detect a change without comparing pixels.
type Background struct {
	Pix        []byte
	Width      int
	Height     int
	Generation uint64
}

// BackgroundStore holds the current virtual background for a fixed
// target resolution.
//
// Replacement is atomic: readers observe either the complete previous
// background or the complete new one, never a partial write. A failed
// SetBackground retains the previous background unchanged.
type BackgroundStore struct {
	width  int
	height int

	cur atomic.Pointer[Background]
	gen atomic.Uint64
}

// NewBackgroundStore creates a store producing backgrounds at the given
// target resolution.
func NewBackgroundStore(width, height int) (*BackgroundStore, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("compose: invalid target resolution %dx%d", width, height)
	}
	return &BackgroundStore{width: width, height: height}, nil
}

// SetBackground prepares and publishes a new background image.
//
// Preparation:
//  1. Scale factor = max(targetW/imgW, targetH/imgH), so the scaled
//     image covers the target in both dimensions (aspect preserved,
//     overflow on one axis).
//  2. Bilinear resample at that factor.
//  3. Center-crop to exactly the target resolution, packed RGBA.
//
// On any failure the previous background is retained and an error is
// returned.
func (s *BackgroundStore) SetBackground(img image.Image) error {
	if img == nil {
		return fmt.Errorf("compose: nil background image")
	}
	b := img.Bounds()
	iw, ih := b.Dx(), b.Dy()
	if iw <= 0 || ih <= 0 {
		return fmt.Errorf("compose: empty background image %dx%d", iw, ih)
	}

	scale := math.Max(
		float64(s.width)/float64(iw),
		float64(s.height)/float64(ih),
	)
	// Ceil keeps both scaled dimensions at or above the target so the
	// center crop never runs out of pixels.
	rw := int(math.Ceil(float64(iw) * scale))
	rh := int(math.Ceil(float64(ih) * scale))

	resized := transform.Resize(img, rw, rh, transform.Linear)
	pix, err := centerCropRGBA(resized, s.width, s.height)
	if err != nil {
		return fmt.Errorf("compose: background crop failed: %w", err)
	}

	bg := &Background{
		Pix:        pix,
		Width:      s.width,
		Height:     s.height,
		Generation: s.gen.Add(1),
	}
	s.cur.Store(bg)

	slog.Info("compose: background set",
		"source", fmt.Sprintf("%dx%d", iw, ih),
		"scaled", fmt.Sprintf("%dx%d", rw, rh),
		"target", fmt.Sprintf("%dx%d", s.width, s.height),
		"generation", bg.Generation,
	)
	return nil
}

// Clear removes the current background, returning the pipeline to
// identity pass-through.
func (s *BackgroundStore) Clear() {
	s.cur.Store(nil)
	slog.Info("compose: background cleared")
}

// Current returns the current background, or nil when none is set.
func (s *BackgroundStore) Current() *Background {
	return s.cur.Load()
}

// TargetSize returns the fixed target resolution of prepared backgrounds.
func (s *BackgroundStore) TargetSize() (int, int) {
	return s.width, s.height
}

// centerCropRGBA extracts a centered w×h window from src as packed RGBA.
func centerCropRGBA(src *image.RGBA, w, h int) ([]byte, error) {
	sw := src.Bounds().Dx()
	sh := src.Bounds().Dy()
	if sw < w || sh < h {
		return nil, fmt.Errorf("scaled image %dx%d smaller than crop %dx%d", sw, sh, w, h)
	}
	x0 := (sw - w) / 2
	y0 := (sh - h) / 2

	out := make([]byte, w*h*4)
	for y := 0; y < h; y++ {
		srcOff := src.PixOffset(src.Bounds().Min.X+x0, src.Bounds().Min.Y+y0+y)
		copy(out[y*w*4:(y+1)*w*4], src.Pix[srcOff:srcOff+w*4])
	}
	return out, nil
}
