package media

// Rotation is a 90-degree-step display rotation applied by the renderer
// through its texture-coordinate mapping. The capture connection reports
// the correction it requires; the renderer carries it out.
type Rotation int

const (
	// Rotate0 leaves the texture orientation unchanged
	Rotate0 Rotation = iota
	// Rotate90 rotates 90 degrees clockwise
	Rotate90
	// Rotate180 rotates 180 degrees
	Rotate180
	// Rotate270 rotates 270 degrees clockwise
	Rotate270
)

// Degrees returns the rotation in degrees.
func (r Rotation) Degrees() int {
	switch r {
	case Rotate90:
		return 90
	case Rotate180:
		return 180
	case Rotate270:
		return 270
	default:
		return 0
	}
}

// Transposed reports whether the rotation swaps the texture axes.
func (r Rotation) Transposed() bool {
	return r == Rotate90 || r == Rotate270
}

// String returns a human-readable string representation of the rotation.
func (r Rotation) String() string {
	switch r {
	case Rotate90:
		return "90"
	case Rotate180:
		return "180"
	case Rotate270:
		return "270"
	default:
		return "0"
	}
}
