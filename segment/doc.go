// Package segment runs person segmentation over camera frames and
// drives the compositing step.
//
// The pipeline per frame is:
//
//	camera frame (RGBA) → stretch resize to the model input size →
//	DNN forward pass → per-cell class grid → GPU compositing →
//	composited frame at the target resolution
//
// When no background is set, Process is an identity pass-through: the
// input frame is returned unchanged and no model or GPU work happens.
//
// The model is treated as a black box: any network loadable by OpenCV's
// DNN module that takes an RGB input of a fixed square size and emits
// one score plane per class (DeepLabV3 and friends) works.
package segment
