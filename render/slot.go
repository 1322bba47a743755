package render

import (
	"sync"

	"github.com/visiona/virtual-backdrop/media"
)

// Snapshot is one consistent view of the slot contents.
type Snapshot struct {
	// Frame is the latest published frame, nil when none yet
	Frame *media.Frame
	// Mirrored requests horizontal flip at draw time
	Mirrored bool
	// Rotation is the display rotation applied at draw time
	Rotation media.Rotation
}

// Slot is the shared hand-off point between the processing pipeline
// (single writer) and the display refresh loop (readers).
//
// Publishing overwrites the previous frame; reading never consumes, so
// the same frame can be drawn across multiple refreshes. The zero Slot
// is empty and usable.
type Slot struct {
	mu   sync.RWMutex
	snap Snapshot
}

// NewSlot returns an empty slot with the given fixed orientation.
func NewSlot(mirrored bool, rotation media.Rotation) *Slot {
	return &Slot{snap: Snapshot{Mirrored: mirrored, Rotation: rotation}}
}

// Publish replaces the slot's frame. The frame must not be mutated
// after publishing; readers retain it across draws.
func (s *Slot) Publish(f *media.Frame) {
	s.mu.Lock()
	s.snap.Frame = f
	s.mu.Unlock()
}

// SetOrientation updates mirroring and rotation for subsequent draws.
func (s *Slot) SetOrientation(mirrored bool, rotation media.Rotation) {
	s.mu.Lock()
	s.snap.Mirrored = mirrored
	s.snap.Rotation = rotation
	s.mu.Unlock()
}

// Clear removes the current frame; draws skip until the next Publish.
func (s *Slot) Clear() {
	s.mu.Lock()
	s.snap.Frame = nil
	s.mu.Unlock()
}

// Snapshot returns a consistent copy of the slot contents.
func (s *Slot) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snap
}
