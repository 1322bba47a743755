package v4l2

import (
	"strings"

	"github.com/tinyzimmer/go-gst/gst"
)

// ErrorClass classifies GStreamer session errors for the recovery policy.
type ErrorClass int

const (
	// ErrClassUnknown is an unclassified error: surfaced, no recovery
	ErrClassUnknown ErrorClass = iota
	// ErrClassServicesReset indicates the media backend reset or the
	// stream was torn down underneath the session; a restart recovers
	ErrClassServicesReset
	// ErrClassDeviceBusy indicates the device is claimed by another
	// consumer; recoverable once the other consumer releases it
	ErrClassDeviceBusy
)

// String returns a human-readable string representation of the class.
func (e ErrorClass) String() string {
	switch e {
	case ErrClassServicesReset:
		return "services-reset"
	case ErrClassDeviceBusy:
		return "device-busy"
	default:
		return "unknown"
	}
}

// ClassifyError analyzes a GStreamer bus error and classifies it for the
// session recovery policy.
//
// Classification is based on message heuristics: go-gst's GError does not
// expose the error domain, so we rely on string matching.
func ClassifyError(gerr *gst.GError) ErrorClass {
	if gerr == nil {
		return ErrClassUnknown
	}

	combined := strings.ToLower(gerr.Error() + " " + gerr.DebugString())

	if containsAny(combined,
		"device or resource busy",
		"resource busy",
		"in use",
		"could not open device",
		"device is busy",
	) {
		return ErrClassDeviceBusy
	}

	if containsAny(combined,
		"internal data stream error",
		"streaming stopped",
		"flushing",
		"reset",
		"disconnected",
		"no such device",
	) {
		return ErrClassServicesReset
	}

	return ErrClassUnknown
}

func containsAny(s string, keywords ...string) bool {
	for _, kw := range keywords {
		if strings.Contains(s, kw) {
			return true
		}
	}
	return false
}
