package v4l2

import "testing"

// TestContainsAny exercises the keyword matcher used for bus-error
// classification. ClassifyError itself needs a live *gst.GError, so the
// string heuristics are tested through the matcher.
func TestContainsAny(t *testing.T) {
	tests := []struct {
		name string
		s    string
		kws  []string
		want bool
	}{
		{"busy match", "v4l2: device or resource busy", []string{"resource busy"}, true},
		{"reset match", "gstbasesrc: internal data stream error", []string{"internal data stream error"}, true},
		{"no match", "something else entirely", []string{"flushing", "reset"}, false},
		{"empty keywords", "anything", nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := containsAny(tt.s, tt.kws...); got != tt.want {
				t.Errorf("containsAny(%q, %v) = %v, want %v", tt.s, tt.kws, got, tt.want)
			}
		})
	}
}

// TestBuildCaps validates the caps string for the fixed RGBA preset,
// including fractional frame rates.
func TestBuildCaps(t *testing.T) {
	tests := []struct {
		w, h int
		fps  float64
		want string
	}{
		{1280, 720, 0, "video/x-raw,format=RGBA,width=1280,height=720"},
		{1280, 720, 30, "video/x-raw,format=RGBA,width=1280,height=720,framerate=30/1"},
		{640, 480, 0.5, "video/x-raw,format=RGBA,width=640,height=480,framerate=1/2"},
	}
	for _, tt := range tests {
		if got := buildCaps(tt.w, tt.h, tt.fps); got != tt.want {
			t.Errorf("buildCaps(%d, %d, %v) = %q, want %q", tt.w, tt.h, tt.fps, got, tt.want)
		}
	}
}
