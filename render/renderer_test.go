package render

import (
	"errors"
	"image"
	"testing"
)

// TestUploadFailureFlushesCache verifies the texture upload error path:
// a failed upload skips the draw and flushes the cache, so the very
// next draw of the same frame retries the upload instead of presenting
// a stale texture.
func TestUploadFailureFlushesCache(t *testing.T) {
	frame := frameOf(7)

	r := &Renderer{}
	r.upload = func(*image.RGBA) error { return errors.New("device lost") }

	if r.uploadIfNeeded(frame) {
		t.Fatal("failed upload reported success")
	}
	if got := r.drawsSkipped.Load(); got != 1 {
		t.Errorf("drawsSkipped = %d, want 1", got)
	}

	// The flush must force a retry for the identical frame.
	uploads := 0
	r.upload = func(*image.RGBA) error { uploads++; return nil }
	if !r.uploadIfNeeded(frame) {
		t.Fatal("retried upload reported failure")
	}
	if uploads != 1 {
		t.Fatalf("uploads after flush = %d, want 1", uploads)
	}

	// Once cached, the same frame uploads nothing.
	if !r.uploadIfNeeded(frame) {
		t.Fatal("cached frame reported failure")
	}
	if uploads != 1 {
		t.Errorf("uploads for cached frame = %d, want 1", uploads)
	}
}

// TestUploadImageGeometry verifies the image handed to the upload hook
// wraps the frame's pixel buffer without copying and carries the frame
// bounds and stride.
func TestUploadImageGeometry(t *testing.T) {
	frame := frameOf(3)

	var got *image.RGBA
	r := &Renderer{}
	r.upload = func(img *image.RGBA) error { got = img; return nil }

	if !r.uploadIfNeeded(frame) {
		t.Fatal("upload reported failure")
	}
	if got == nil {
		t.Fatal("upload hook never called")
	}
	if &got.Pix[0] != &frame.Pix[0] {
		t.Error("upload image copies the pixel buffer")
	}
	if got.Stride != frame.Width*4 {
		t.Errorf("stride = %d, want %d", got.Stride, frame.Width*4)
	}
	if want := image.Rect(0, 0, frame.Width, frame.Height); got.Rect != want {
		t.Errorf("bounds = %v, want %v", got.Rect, want)
	}
}
