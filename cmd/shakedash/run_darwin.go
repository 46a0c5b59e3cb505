//go:build darwin

package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/taigrr/shakedetect/config"
	"github.com/taigrr/shakedetect/detector"
	"github.com/taigrr/shakedetect/logging"
	"github.com/taigrr/shakedetect/pump"
	"github.com/taigrr/shakedetect/shm"
)

func run(ctx context.Context, file config.File) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	ring, err := shm.OpenRing(shm.NameAccel)
	if err != nil {
		return fmt.Errorf("opening accel shm (is sensord running?): %w", err)
	}
	defer ring.Close()

	det, err := detector.New(file.DetectorConfig())
	if err != nil {
		return err
	}

	var shakes []time.Time
	det.SetListener(detector.ListenerFunc(func() {
		shakes = append(shakes, time.Now())
		if len(shakes) > maxShakes {
			shakes = shakes[len(shakes)-maxShakes:]
		}
	}))

	// The log would scribble over the frame.
	p := pump.New(ring, det, pump.Config{
		Scale:    file.Input.Scale,
		Poll:     5 * time.Millisecond,
		MaxBatch: file.Input.MaxBatch,
	}, logging.Discard())

	tStart := time.Now()
	lastDraw := time.Time{}
	var mags []float64

	// Draw at ~10 FPS from the pump goroutine, which owns the detector.
	p.OnStep = func(int) {
		now := time.Now()
		if now.Sub(lastDraw) < 100*time.Millisecond {
			return
		}
		mags = det.Magnitudes(mags[:0])
		f := frame{
			Elapsed:    now.Sub(tStart),
			Config:     det.Config(),
			Stats:      det.Stats(),
			Magnitudes: mags,
			Shakes:     shakes,
		}
		fmt.Print(clear + render(f))
		lastDraw = now
	}

	fmt.Print(altOn + hideCur)
	defer fmt.Print(showCur + altOff + "\n")

	return p.Run(ctx)
}
