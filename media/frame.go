package media

import "time"

// Frame is a single packed-RGBA video frame with an immutability contract
// for zero-copy sharing across the pipeline.
//
// IMMUTABILITY CONTRACT:
//   - Producer: MUST NOT modify Pix after handing the frame downstream
//   - Consumers: MUST NOT modify Pix (read-only access)
//   - Enforcement: documentation-based (runtime checks would add overhead)
//
// Zero-copy chain:
//
//	GStreamer (C) → buffer map copy (1 copy) → Frame.Pix (Go heap)
//	                                                ↓ (0 copies)
//	                                           delivery mailbox
//	                                                ↓ (0 copies)
//	                                           processor / render slot
type Frame struct {
	// Pix contains packed 32-bit RGBA pixel data, row-major,
	// 4*Width*Height bytes. MUST NOT be modified after publication.
	Pix []byte

	// Width of the frame in pixels
	Width int

	// Height of the frame in pixels
	Height int

	// Timestamp is when the frame was captured (source time,
	// not processing time)
	Timestamp time.Time

	// Seq is the monotonic sequence number assigned at capture
	Seq uint64

	// TraceID is a unique identifier for log correlation
	TraceID string
}

// Bytes returns the expected byte length for the frame dimensions.
func (f *Frame) Bytes() int {
	return 4 * f.Width * f.Height
}

// Valid reports whether Pix is consistent with Width and Height.
func (f *Frame) Valid() bool {
	return f.Width > 0 && f.Height > 0 && len(f.Pix) == f.Bytes()
}
