// Package config loads shake detector settings from TOML, YAML or JSON files.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"github.com/taigrr/shakedetect/detector"
	"github.com/taigrr/shakedetect/logging"
)

// StandardGravity converts accelerometer readings in g to m/s².
const StandardGravity = 9.80665

// ErrUnsupportedFormat is returned for files whose extension is not
// .toml, .yaml, .yml or .json.
var ErrUnsupportedFormat = errors.New("unsupported config format")

// Duration is a time.Duration written as a string such as "250ms".
type Duration struct {
	time.Duration
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(b []byte) error {
	v, err := time.ParseDuration(strings.TrimSpace(string(b)))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(n *yaml.Node) error {
	return d.UnmarshalText([]byte(n.Value))
}

// Detector mirrors detector.Config.
type Detector struct {
	Capacity             int      `toml:"capacity" yaml:"capacity" json:"capacity"`
	MinSampleInterval    Duration `toml:"min_sample_interval" yaml:"min_sample_interval" json:"min_sample_interval"`
	VisibleWindow        Duration `toml:"visible_window" yaml:"visible_window" json:"visible_window"`
	MagnitudeThreshold   float64  `toml:"magnitude_threshold" yaml:"magnitude_threshold" json:"magnitude_threshold"`
	OverThresholdPercent float64  `toml:"over_threshold_percent" yaml:"over_threshold_percent" json:"over_threshold_percent"`
	ShakingWindow        Duration `toml:"shaking_window" yaml:"shaking_window" json:"shaking_window"`
	RequiredShakeCount   int      `toml:"required_shake_count" yaml:"required_shake_count" json:"required_shake_count"`
}

// Notify selects what happens when a shake fires.
type Notify struct {
	Sound    string   `toml:"sound" yaml:"sound" json:"sound"`       // mp3 played on shake
	Flash    bool     `toml:"flash" yaml:"flash" json:"flash"`       // flash the keyboard backlight
	Quiet    bool     `toml:"quiet" yaml:"quiet" json:"quiet"`       // no stdout line
	Cooldown Duration `toml:"cooldown" yaml:"cooldown" json:"cooldown"` // minimum gap between notifications
}

// Input describes how raw samples are read and scaled.
type Input struct {
	Scale    float64  `toml:"scale" yaml:"scale" json:"scale"`
	Poll     Duration `toml:"poll" yaml:"poll" json:"poll"`
	MaxBatch int      `toml:"max_batch" yaml:"max_batch" json:"max_batch"`
}

// Log configures the slog handler.
type Log struct {
	Level  string `toml:"level" yaml:"level" json:"level"`
	Format string `toml:"format" yaml:"format" json:"format"`
}

// File is the on-disk configuration.
type File struct {
	Detector Detector `toml:"detector" yaml:"detector" json:"detector"`
	Notify   Notify   `toml:"notify" yaml:"notify" json:"notify"`
	Input    Input    `toml:"input" yaml:"input" json:"input"`
	Log      Log      `toml:"log" yaml:"log" json:"log"`
}

// Default returns the configuration used when no file is given.
func Default() File {
	dc := detector.DefaultConfig()
	return File{
		Detector: Detector{
			Capacity:             dc.Capacity,
			MinSampleInterval:    Duration{dc.MinSampleInterval},
			VisibleWindow:        Duration{dc.VisibleWindow},
			MagnitudeThreshold:   dc.MagnitudeThreshold,
			OverThresholdPercent: dc.OverThresholdPercent,
			ShakingWindow:        Duration{dc.ShakingWindow},
			RequiredShakeCount:   dc.RequiredShakeCount,
		},
		Notify: Notify{
			Cooldown: Duration{500 * time.Millisecond},
		},
		Input: Input{
			Scale:    StandardGravity,
			Poll:     Duration{10 * time.Millisecond},
			MaxBatch: 200,
		},
		Log: Log{
			Level:  "info",
			Format: logging.FormatText,
		},
	}
}

// DetectorConfig converts the detector section.
func (f File) DetectorConfig() detector.Config {
	d := f.Detector
	return detector.Config{
		Capacity:             d.Capacity,
		MinSampleInterval:    d.MinSampleInterval.Duration,
		VisibleWindow:        d.VisibleWindow.Duration,
		MagnitudeThreshold:   d.MagnitudeThreshold,
		OverThresholdPercent: d.OverThresholdPercent,
		ShakingWindow:        d.ShakingWindow.Duration,
		RequiredShakeCount:   d.RequiredShakeCount,
	}
}

// Validate checks every section.
func (f File) Validate() error {
	if err := f.DetectorConfig().Validate(); err != nil {
		return err
	}
	if f.Input.Scale <= 0 || math.IsInf(f.Input.Scale, 0) || math.IsNaN(f.Input.Scale) {
		return fmt.Errorf("input.scale must be positive, got %v", f.Input.Scale)
	}
	if f.Input.Poll.Duration <= 0 {
		return fmt.Errorf("input.poll must be positive, got %s", f.Input.Poll)
	}
	if f.Input.MaxBatch < 1 {
		return fmt.Errorf("input.max_batch must be at least 1, got %d", f.Input.MaxBatch)
	}
	if f.Notify.Cooldown.Duration < 0 {
		return fmt.Errorf("notify.cooldown must be non-negative, got %s", f.Notify.Cooldown)
	}
	if _, err := logging.ParseLevel(f.Log.Level); err != nil {
		return fmt.Errorf("log.level: %w", err)
	}
	switch strings.ToLower(f.Log.Format) {
	case "", logging.FormatText, logging.FormatJSON:
	default:
		return fmt.Errorf("log.format: unknown format %q", f.Log.Format)
	}
	return nil
}

// Load reads path on top of Default and validates the result. Keys missing
// from the file keep their default values.
func Load(path string) (File, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("reading config: %w", err)
	}
	if err := decode(path, data, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing %s: %w", filepath.Base(path), err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("validating %s: %w", filepath.Base(path), err)
	}
	return cfg, nil
}

func decode(path string, data []byte, cfg *File) error {
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".toml":
		_, err := toml.Decode(string(data), cfg)
		return err
	case ".yaml", ".yml":
		return yaml.Unmarshal(data, cfg)
	case ".json":
		return json.Unmarshal(data, cfg)
	default:
		return fmt.Errorf("%w: %q", ErrUnsupportedFormat, ext)
	}
}
