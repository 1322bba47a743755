package render

import (
	"math"

	"github.com/visiona/virtual-backdrop/media"
)

// quadPositions is the fixed triangle-strip quad covering clip space,
// vertex order top-left, bottom-left, top-right, bottom-right.
var quadPositions = [8]float32{
	-1, 1,
	-1, -1,
	1, 1,
	1, -1,
}

// texCoordOrders holds one texture-coordinate ordering per display
// rotation, matching the quad vertex order above. Rotation is applied
// by reassigning which image corner lands on which screen corner, not
// by transforming vertices.
var texCoordOrders = [4][8]float32{
	media.Rotate0: {
		0, 0,
		0, 1,
		1, 0,
		1, 1,
	},
	media.Rotate90: {
		0, 1,
		1, 1,
		0, 0,
		1, 0,
	},
	media.Rotate180: {
		1, 1,
		1, 0,
		0, 1,
		0, 0,
	},
	media.Rotate270: {
		1, 0,
		0, 0,
		1, 1,
		0, 1,
	},
}

// viewTransform caches the quad scale and texture coordinates for the
// current combination of texture size, view bounds, mirroring and
// rotation. update recomputes only when one of those inputs changed.
type viewTransform struct {
	texW, texH   int
	viewW, viewH int
	mirrored     bool
	rotation     media.Rotation
	valid        bool

	// ScaleX, ScaleY scale the unit quad in clip space; the smaller
	// fill axis is exactly 1, the other overflows. ScaleX is negative
	// when mirrored.
	ScaleX, ScaleY float32

	// TexCoords is the per-vertex UV assignment for the current rotation.
	TexCoords [8]float32
}

// update recomputes the transform when an input changed. Returns true
// when a recompute happened, false when the cached values still apply.
func (t *viewTransform) update(texW, texH, viewW, viewH int, mirrored bool, rotation media.Rotation) bool {
	if t.valid &&
		t.texW == texW && t.texH == texH &&
		t.viewW == viewW && t.viewH == viewH &&
		t.mirrored == mirrored && t.rotation == rotation {
		return false
	}
	t.texW, t.texH = texW, texH
	t.viewW, t.viewH = viewW, viewH
	t.mirrored = mirrored
	t.rotation = rotation

	// Effective texture dimensions as seen on screen.
	tw, th := texW, texH
	if rotation.Transposed() {
		tw, th = th, tw
	}

	// Aspect-fill: uniform pixel scale covering the view in both axes,
	// then normalized to clip-space extents.
	k := math.Max(float64(viewW)/float64(tw), float64(viewH)/float64(th))
	t.ScaleX = float32(k * float64(tw) / float64(viewW))
	t.ScaleY = float32(k * float64(th) / float64(viewH))
	if mirrored {
		t.ScaleX = -t.ScaleX
	}

	t.TexCoords = texCoordOrders[rotation]
	t.valid = true
	return true
}
