package render

import (
	"testing"

	"github.com/visiona/virtual-backdrop/media"
)

func frameOf(b byte) *media.Frame {
	return &media.Frame{Pix: []byte{b, b, b, b}, Width: 1, Height: 1}
}

// TestSlotReadDoesNotConsume verifies that reading the slot retains the
// frame: multiple refreshes redraw the same frame until a new one is
// published.
func TestSlotReadDoesNotConsume(t *testing.T) {
	s := NewSlot(false, media.Rotate0)
	f := frameOf(1)
	s.Publish(f)

	for i := 0; i < 3; i++ {
		if got := s.Snapshot().Frame; got != f {
			t.Fatalf("read %d: frame lost after snapshot", i)
		}
	}
}

// TestSlotOverwrite verifies Publish replaces the previous frame.
func TestSlotOverwrite(t *testing.T) {
	s := NewSlot(true, media.Rotate90)
	s.Publish(frameOf(1))
	latest := frameOf(2)
	s.Publish(latest)

	snap := s.Snapshot()
	if snap.Frame != latest {
		t.Error("snapshot did not return the latest frame")
	}
	if !snap.Mirrored || snap.Rotation != media.Rotate90 {
		t.Errorf("orientation = (%v, %s), want (true, 90)", snap.Mirrored, snap.Rotation)
	}
}

// TestSlotClear verifies Clear empties the slot so draws skip.
func TestSlotClear(t *testing.T) {
	s := NewSlot(false, media.Rotate0)
	s.Publish(frameOf(1))
	s.Clear()
	if s.Snapshot().Frame != nil {
		t.Error("frame survived Clear")
	}
}

// TestTextureCacheIdentity verifies upload decisions are keyed by the
// pixel buffer identity, not by content.
func TestTextureCacheIdentity(t *testing.T) {
	var c textureCache
	a := frameOf(1)
	b := frameOf(1) // same content, different buffer

	if !c.needsUpload(a) {
		t.Error("first frame should need upload")
	}
	if c.needsUpload(a) {
		t.Error("same buffer should be cached")
	}
	if !c.needsUpload(b) {
		t.Error("different buffer should need upload even with equal content")
	}

	c.flush()
	if !c.needsUpload(b) {
		t.Error("flush should force the next upload")
	}
}
