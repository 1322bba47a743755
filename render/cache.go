package render

import (
	"github.com/visiona/virtual-backdrop/media"
)

// textureCache tracks which frame's pixels are currently in the GPU
// texture, keyed by the identity of the pixel buffer. Frames are
// immutable once published, so pointer identity is a safe content key.
type textureCache struct {
	key *byte
}

// needsUpload reports whether the frame differs from the cached one and
// records it as current.
func (c *textureCache) needsUpload(f *media.Frame) bool {
	if len(f.Pix) == 0 {
		return false
	}
	key := &f.Pix[0]
	if c.key == key {
		return false
	}
	c.key = key
	return true
}

// flush forgets the cached texture, forcing an upload on the next draw.
// Called after a failed conversion so a stale texture is never shown.
func (c *textureCache) flush() {
	c.key = nil
}
