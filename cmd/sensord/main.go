//go:build darwin

// sensord reads the Apple Silicon accelerometer and writes timestamped
// samples to a POSIX shared memory ring for shake and shakedash.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/charmbracelet/fang"
	"github.com/spf13/cobra"

	"github.com/taigrr/shakedetect/logging"
	"github.com/taigrr/shakedetect/sensor"
	"github.com/taigrr/shakedetect/shm"
)

var version = "dev"

func main() {
	var (
		decimation int
		logLevel   string
		logFormat  string
	)

	cmd := &cobra.Command{
		Use:   "sensord",
		Short: "Apple Silicon accelerometer daemon",
		Long: `sensord reads the accelerometer of Apple Silicon MacBooks via IOKit HID
and writes timestamped samples to POSIX shared memory for consumption by
shake, shakedash or other programs.

Requires root privileges (sudo).`,
		Version: version,
		RunE: func(cmd *cobra.Command, args []string) error {
			log, err := logging.New(os.Stderr, logLevel, logFormat)
			if err != nil {
				return err
			}

			if os.Geteuid() != 0 {
				return fmt.Errorf("sensord requires root privileges, run with: sudo sensord")
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			ring, err := shm.CreateRing(shm.NameAccel)
			if err != nil {
				return fmt.Errorf("creating accel shm: %w", err)
			}
			defer ring.Close()
			defer ring.Unlink()

			log.Info("reading accelerometer", "shm", shm.NameAccel, "decimation", decimation)
			err = sensor.Run(ctx, sensor.Config{Ring: ring, Decimation: decimation})
			log.Info("stopped", "samples", ring.Total())
			return err
		},
		SilenceUsage: true,
	}

	cmd.Flags().IntVar(&decimation, "decimation", sensor.DefaultDecimation, "keep one of every N HID reports")
	cmd.Flags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	cmd.Flags().StringVar(&logFormat, "log-format", logging.FormatText, "log format (text, json)")

	if err := fang.Execute(context.Background(), cmd); err != nil {
		os.Exit(1)
	}
}
