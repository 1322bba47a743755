// Package config loads and validates the application configuration.
package config

import (
	"fmt"
	"log/slog"

	"github.com/spf13/viper"

	"github.com/visiona/virtual-backdrop/media"
	"github.com/visiona/virtual-backdrop/segment"
)

// Camera configures the capture device.
type Camera struct {
	Device    string  `mapstructure:"device"`
	Width     int     `mapstructure:"width"`
	Height    int     `mapstructure:"height"`
	FrameRate float64 `mapstructure:"frame_rate"`
	Rotation  int     `mapstructure:"rotation"`
	Mirrored  bool    `mapstructure:"mirrored"`
}

// Model configures the segmentation network.
type Model struct {
	Path        string `mapstructure:"path"`
	InputSize   int    `mapstructure:"input_size"`
	ClassCount  int    `mapstructure:"class_count"`
	PersonClass int    `mapstructure:"person_class"`
}

// Output configures the composited output and preview window.
type Output struct {
	Width  int `mapstructure:"width"`
	Height int `mapstructure:"height"`
}

// Config is the full application configuration.
type Config struct {
	Camera Camera `mapstructure:"camera"`
	Model  Model  `mapstructure:"model"`
	Output Output `mapstructure:"output"`
	// BackgroundPath is an optional image loaded at startup; empty
	// starts in pass-through.
	BackgroundPath string `mapstructure:"background_path"`
	// LogLevel is one of debug, info, warn, error.
	LogLevel string `mapstructure:"log_level"`
}

// Load reads the YAML config file at path, applies defaults and
// validates the result.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("config: reading %s failed: %w", path, err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: decoding failed: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	slog.Info("config: loaded",
		"path", path,
		"device", cfg.Camera.Device,
		"camera", fmt.Sprintf("%dx%d", cfg.Camera.Width, cfg.Camera.Height),
		"output", fmt.Sprintf("%dx%d", cfg.Output.Width, cfg.Output.Height),
		"model", cfg.Model.Path,
	)
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("camera.device", "/dev/video0")
	v.SetDefault("camera.width", 1280)
	v.SetDefault("camera.height", 720)
	v.SetDefault("camera.frame_rate", 30.0)
	v.SetDefault("camera.rotation", 0)
	v.SetDefault("camera.mirrored", false)

	v.SetDefault("model.input_size", segment.DefaultInputSize)
	v.SetDefault("model.class_count", segment.DefaultClassCount)
	v.SetDefault("model.person_class", 15)

	v.SetDefault("output.width", 1280)
	v.SetDefault("output.height", 720)

	v.SetDefault("log_level", "info")
}

// Validate applies fail-fast validation to the complete configuration.
func (c *Config) Validate() error {
	if c.Camera.Device == "" {
		return fmt.Errorf("config: camera.device is required")
	}
	if c.Camera.Width <= 0 || c.Camera.Height <= 0 {
		return fmt.Errorf("config: invalid camera resolution %dx%d", c.Camera.Width, c.Camera.Height)
	}
	if c.Camera.FrameRate < 0 || c.Camera.FrameRate > 120 {
		return fmt.Errorf("config: invalid camera frame rate %.2f", c.Camera.FrameRate)
	}
	switch c.Camera.Rotation {
	case 0, 90, 180, 270:
	default:
		return fmt.Errorf("config: invalid camera rotation %d (0, 90, 180 or 270)", c.Camera.Rotation)
	}
	if c.Model.Path == "" {
		return fmt.Errorf("config: model.path is required")
	}
	if c.Model.InputSize <= 0 {
		return fmt.Errorf("config: invalid model input size %d", c.Model.InputSize)
	}
	if c.Model.ClassCount <= 0 {
		return fmt.Errorf("config: invalid model class count %d", c.Model.ClassCount)
	}
	if c.Model.PersonClass < 0 || c.Model.PersonClass >= c.Model.ClassCount {
		return fmt.Errorf("config: person class %d out of range [0, %d)", c.Model.PersonClass, c.Model.ClassCount)
	}
	if c.Output.Width <= 0 || c.Output.Height <= 0 {
		return fmt.Errorf("config: invalid output resolution %dx%d", c.Output.Width, c.Output.Height)
	}
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("config: invalid log level %q", c.LogLevel)
	}
	return nil
}

// RotationValue maps the configured degrees to the media enum.
func (c *Camera) RotationValue() media.Rotation {
	switch c.Rotation {
	case 90:
		return media.Rotate90
	case 180:
		return media.Rotate180
	case 270:
		return media.Rotate270
	default:
		return media.Rotate0
	}
}

// SlogLevel maps the configured log level to a slog.Level.
func (c *Config) SlogLevel() slog.Level {
	switch c.LogLevel {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
