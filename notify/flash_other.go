//go:build !darwin

package notify

import (
	"context"
	"errors"
)

// ErrFlashUnsupported is returned by NewFlashSink off macOS.
var ErrFlashUnsupported = errors.New("keyboard flash requires macOS")

// FlashSink is unavailable on this platform.
type FlashSink struct{}

// NewFlashSink always fails on this platform.
func NewFlashSink() (*FlashSink, error) {
	return nil, ErrFlashUnsupported
}

// Notify implements Sink.
func (*FlashSink) Notify(context.Context, Event) error {
	return ErrFlashUnsupported
}
