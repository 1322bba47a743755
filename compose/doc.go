// Package compose blends a camera frame with a still background image
// using a person segmentation mask, on the GPU.
//
// Two pieces:
//
//   - BackgroundStore holds the current background, pre-scaled to fill
//     the target resolution and center-cropped, published atomically so
//     a replacement never exposes a half-written image.
//
//   - Kernel is a WebGPU compute pass over the target-resolution pixel
//     grid. Per output pixel it looks up the nearest mask cell at the
//     normalized position; person pixels take the camera pixel at the
//     same normalized position, everything else samples the background
//     bilinearly. Frame, mask and background resolutions are all
//     independent of the output resolution.
//
// The kernel is synchronous: Composite blocks until the GPU pass has
// completed and the result has been read back. At most one Composite
// may be in flight at a time (the processing pipeline is serial).
package compose
