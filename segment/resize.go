package segment

import (
	"fmt"
	"image"

	"gocv.io/x/gocv"
)

// stretchResize resizes a packed RGBA buffer to dstW×dstH without
// preserving aspect ratio. The model consumes the full square input;
// the distortion is irrelevant because mask lookups downstream use
// normalized coordinates on both sides.
func stretchResize(pix []byte, srcW, srcH, dstW, dstH int) ([]byte, error) {
	if len(pix) != srcW*srcH*4 {
		return nil, fmt.Errorf("segment: pixel buffer %d bytes, want %d for %dx%d",
			len(pix), srcW*srcH*4, srcW, srcH)
	}

	src, err := gocv.NewMatFromBytes(srcH, srcW, gocv.MatTypeCV8UC4, pix)
	if err != nil {
		return nil, fmt.Errorf("segment: wrapping frame failed: %w", err)
	}
	defer src.Close()

	dst := gocv.NewMat()
	defer dst.Close()
	gocv.Resize(src, &dst, image.Point{X: dstW, Y: dstH}, 0, 0, gocv.InterpolationLinear)

	out := dst.ToBytes()
	if len(out) != dstW*dstH*4 {
		return nil, fmt.Errorf("segment: resize produced %d bytes, want %d", len(out), dstW*dstH*4)
	}
	return out, nil
}
