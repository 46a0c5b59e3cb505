package detector

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"
)

// ErrInvalidConfig is wrapped by every configuration error.
var ErrInvalidConfig = errors.New("invalid detector config")

// Defaults.
const (
	DefaultCapacity             = 40
	DefaultMinSampleInterval    = 20 * time.Millisecond
	DefaultVisibleWindow        = 250 * time.Millisecond
	DefaultMagnitudeThreshold   = 25.0
	DefaultOverThresholdPercent = 60.0
	DefaultShakingWindow        = 3 * time.Second
	DefaultRequiredShakeCount   = 1
)

// Config holds the tunables of a single Detector.
type Config struct {
	// Capacity is the number of samples retained in the ring.
	Capacity int
	// MinSampleInterval is the minimum spacing between accepted samples.
	MinSampleInterval time.Duration
	// VisibleWindow selects recent samples for the ratio test and is also the
	// dead zone between two counted shakes.
	VisibleWindow time.Duration
	// MagnitudeThreshold is the minimum vector magnitude counted as a hit.
	MagnitudeThreshold float64
	// OverThresholdPercent is the share (0-100) of recent samples that must be
	// hits. The comparison is strict.
	OverThresholdPercent float64
	// ShakingWindow is how long an in-progress sequence may stall before it
	// is abandoned.
	ShakingWindow time.Duration
	// RequiredShakeCount is the number of shakes needed before firing.
	RequiredShakeCount int
}

// DefaultConfig returns the stock shake parameters.
func DefaultConfig() Config {
	return Config{
		Capacity:             DefaultCapacity,
		MinSampleInterval:    DefaultMinSampleInterval,
		VisibleWindow:        DefaultVisibleWindow,
		MagnitudeThreshold:   DefaultMagnitudeThreshold,
		OverThresholdPercent: DefaultOverThresholdPercent,
		ShakingWindow:        DefaultShakingWindow,
		RequiredShakeCount:   DefaultRequiredShakeCount,
	}
}

// Validate reports the first out-of-range field.
func (c Config) Validate() error {
	switch {
	case c.Capacity < 1:
		return fmt.Errorf("%w: capacity must be at least 1, got %d", ErrInvalidConfig, c.Capacity)
	case c.MinSampleInterval < 0:
		return fmt.Errorf("%w: min sample interval must be non-negative", ErrInvalidConfig)
	case c.VisibleWindow < 0:
		return fmt.Errorf("%w: visible window must be non-negative", ErrInvalidConfig)
	case c.ShakingWindow < 0:
		return fmt.Errorf("%w: shaking window must be non-negative", ErrInvalidConfig)
	case math.IsNaN(c.MagnitudeThreshold) || math.IsInf(c.MagnitudeThreshold, 0):
		return fmt.Errorf("%w: magnitude threshold must be finite", ErrInvalidConfig)
	case math.IsNaN(c.OverThresholdPercent) || c.OverThresholdPercent < 0 || c.OverThresholdPercent > 100:
		return fmt.Errorf("%w: over-threshold percent must be within [0, 100], got %v", ErrInvalidConfig, c.OverThresholdPercent)
	case c.RequiredShakeCount < 1:
		return fmt.Errorf("%w: required shake count must be at least 1, got %d", ErrInvalidConfig, c.RequiredShakeCount)
	}
	return nil
}

// Option names a single configuration field for Configure. The first three
// values match the numeric ids used by existing shake-detector bridges.
type Option int

const (
	OptCapacity             Option = 1
	OptMagnitudeThreshold   Option = 2
	OptOverThresholdPercent Option = 4
	OptMinSampleInterval    Option = 8
	OptVisibleWindow        Option = 16
	OptShakingWindow        Option = 32
	OptRequiredShakeCount   Option = 64
)

var optionNames = map[Option]string{
	OptCapacity:             "capacity",
	OptMagnitudeThreshold:   "magnitudeThreshold",
	OptOverThresholdPercent: "percentOverThresholdForShake",
	OptMinSampleInterval:    "minSampleInterval",
	OptVisibleWindow:        "visibleWindow",
	OptShakingWindow:        "shakingWindow",
	OptRequiredShakeCount:   "requiredShakeCount",
}

var optionAliases = map[string]Option{
	"maxsamples":           OptCapacity,
	"overthresholdpercent": OptOverThresholdPercent,
}

func (o Option) String() string {
	if s, ok := optionNames[o]; ok {
		return s
	}
	return fmt.Sprintf("Option(%d)", int(o))
}

// ParseOption resolves an option by name, case-insensitively.
func ParseOption(name string) (Option, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	for o, s := range optionNames {
		if strings.ToLower(s) == key {
			return o, nil
		}
	}
	if o, ok := optionAliases[key]; ok {
		return o, nil
	}
	return 0, fmt.Errorf("%w: unknown option %q", ErrInvalidConfig, name)
}

// with returns c with opt set to value. Durations are given in nanoseconds.
func (c Config) with(opt Option, value float64) (Config, error) {
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return c, fmt.Errorf("%w: %s must be finite", ErrInvalidConfig, opt)
	}
	switch opt {
	case OptCapacity:
		n, err := integral(opt, value)
		if err != nil {
			return c, err
		}
		c.Capacity = n
	case OptMagnitudeThreshold:
		c.MagnitudeThreshold = value
	case OptOverThresholdPercent:
		c.OverThresholdPercent = value
	case OptMinSampleInterval:
		c.MinSampleInterval = time.Duration(value)
	case OptVisibleWindow:
		c.VisibleWindow = time.Duration(value)
	case OptShakingWindow:
		c.ShakingWindow = time.Duration(value)
	case OptRequiredShakeCount:
		n, err := integral(opt, value)
		if err != nil {
			return c, err
		}
		c.RequiredShakeCount = n
	default:
		return c, fmt.Errorf("%w: unknown option %s", ErrInvalidConfig, opt)
	}
	return c, c.Validate()
}

func integral(opt Option, value float64) (int, error) {
	if value != math.Trunc(value) || value > math.MaxInt32 || value < math.MinInt32 {
		return 0, fmt.Errorf("%w: %s must be an integer, got %v", ErrInvalidConfig, opt, value)
	}
	return int(value), nil
}
