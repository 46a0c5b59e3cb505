//go:build darwin

package notify

import (
	"context"
	"time"

	"github.com/taigrr/shakedetect/keyboard"
)

// FlashSink flashes the built-in keyboard backlight on every shake.
type FlashSink struct {
	light *keyboard.Backlight
	peak  float32
	on    time.Duration
}

// NewFlashSink opens the built-in keyboard backlight.
func NewFlashSink() (*FlashSink, error) {
	light, err := keyboard.Open(1)
	if err != nil {
		return nil, err
	}
	return &FlashSink{light: light, peak: 1, on: 150 * time.Millisecond}, nil
}

// Notify implements Sink.
func (s *FlashSink) Notify(ctx context.Context, _ Event) error {
	return s.light.Flash(ctx, s.peak, s.on)
}
