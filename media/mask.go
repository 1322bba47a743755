package media

// Mask is a per-pixel class-id grid produced by a segmentation model.
// Dimensions are fixed by the model's required input and never vary with
// the resolution of the frame that was segmented.
type Mask struct {
	// Classes holds one int32 class id per pixel, row-major,
	// Width*Height entries.
	Classes []int32

	// Width of the mask grid in pixels
	Width int

	// Height of the mask grid in pixels
	Height int
}

// Valid reports whether Classes is consistent with Width and Height.
func (m *Mask) Valid() bool {
	return m.Width > 0 && m.Height > 0 && len(m.Classes) == m.Width*m.Height
}
