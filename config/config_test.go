package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/visiona/virtual-backdrop/media"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("writing config: %v", err)
	}
	return path
}

// TestLoadAppliesDefaults verifies that a minimal config file picks up
// defaults for everything it omits.
func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, `
model:
  path: /opt/models/deeplabv3.pb
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Camera.Device != "/dev/video0" {
		t.Errorf("device = %q, want default /dev/video0", cfg.Camera.Device)
	}
	if cfg.Camera.Width != 1280 || cfg.Camera.Height != 720 {
		t.Errorf("camera = %dx%d, want 1280x720", cfg.Camera.Width, cfg.Camera.Height)
	}
	if cfg.Model.InputSize != 513 {
		t.Errorf("input size = %d, want 513", cfg.Model.InputSize)
	}
	if cfg.Model.ClassCount != 21 || cfg.Model.PersonClass != 15 {
		t.Errorf("classes = %d/%d, want 21/15", cfg.Model.ClassCount, cfg.Model.PersonClass)
	}
	if cfg.LogLevel != "info" {
		t.Errorf("log level = %q, want info", cfg.LogLevel)
	}
}

// TestLoadOverrides verifies explicit values win over defaults.
func TestLoadOverrides(t *testing.T) {
	path := writeConfig(t, `
camera:
  device: /dev/video2
  width: 640
  height: 480
  frame_rate: 15
  rotation: 90
  mirrored: true
model:
  path: /opt/models/custom.onnx
  input_size: 257
output:
  width: 640
  height: 480
log_level: debug
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Camera.Device != "/dev/video2" || cfg.Camera.Width != 640 {
		t.Errorf("camera overrides not applied: %+v", cfg.Camera)
	}
	if !cfg.Camera.Mirrored || cfg.Camera.RotationValue() != media.Rotate90 {
		t.Errorf("orientation overrides not applied: %+v", cfg.Camera)
	}
	if cfg.Model.InputSize != 257 {
		t.Errorf("input size = %d, want 257", cfg.Model.InputSize)
	}
}

// TestValidateRejectsBadValues exercises fail-fast validation.
func TestValidateRejectsBadValues(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"missing model path", `
camera:
  device: /dev/video0
`},
		{"bad rotation", `
model:
  path: /m.pb
camera:
  rotation: 45
`},
		{"person class out of range", `
model:
  path: /m.pb
  class_count: 21
  person_class: 21
`},
		{"bad log level", `
model:
  path: /m.pb
log_level: loud
`},
		{"zero output", `
model:
  path: /m.pb
output:
  width: 0
`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Load(writeConfig(t, tt.yaml)); err == nil {
				t.Error("expected validation error, got nil")
			}
		})
	}
}
