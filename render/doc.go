// Package render draws the latest composited frame to a WebGPU surface.
//
// The renderer never owns a frame stream: producers publish frames into
// a shared Slot, and the display refresh loop calls Draw at its own
// cadence. Reading the slot does not consume it, so the last frame is
// redrawn until a new one arrives, and an empty slot skips the draw.
//
// Geometry is one textured quad. Its scale and texture coordinates are
// recomputed only when the texture size, view bounds, mirroring or
// rotation actually change; every other draw reuses the cached
// transform. Sampling is bilinear with no blending.
package render
