//go:build darwin

package main

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/taigrr/shakedetect/config"
	"github.com/taigrr/shakedetect/detector"
	"github.com/taigrr/shakedetect/notify"
	"github.com/taigrr/shakedetect/pump"
	"github.com/taigrr/shakedetect/shm"
)

func addListen(root *cobra.Command, o *options) {
	var (
		sound string
		flash bool
		quiet bool
		watch bool
	)

	cmd := &cobra.Command{
		Use:   "listen",
		Short: "Detect shakes live from sensord",
		Long: `listen reads accelerometer samples from shared memory (created by
sensord) and reports every shake.

Requires:
  - sensord running (with sudo) to provide sensor data`,
		RunE: func(cmd *cobra.Command, args []string) error {
			file, log, err := o.load(cmd)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("sound") {
				file.Notify.Sound = sound
			}
			if cmd.Flags().Changed("flash") {
				file.Notify.Flash = flash
			}
			if cmd.Flags().Changed("quiet") {
				file.Notify.Quiet = quiet
			}
			if watch && o.configPath == "" {
				return fmt.Errorf("--watch needs --config")
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			ring, err := shm.OpenRing(shm.NameAccel)
			if err != nil {
				return fmt.Errorf("opening accel shm (is sensord running?): %w", err)
			}
			defer ring.Close()
			if n := ring.Restarts(); n > 0 {
				log.Warn("sensor worker has restarted", "restarts", n)
			}

			det, err := detector.New(file.DetectorConfig())
			if err != nil {
				return err
			}

			sinks := []notify.Sink{notify.LogSink{Log: log}}
			if !file.Notify.Quiet {
				sinks = append(sinks, notify.WriterSink{W: cmd.OutOrStdout()})
			}
			if file.Notify.Sound != "" {
				s, err := notify.NewSoundSink(file.Notify.Sound)
				if err != nil {
					return err
				}
				sinks = append(sinks, s)
			}
			if file.Notify.Flash {
				s, err := notify.NewFlashSink()
				if err != nil {
					return fmt.Errorf("opening keyboard backlight: %w", err)
				}
				sinks = append(sinks, s)
			}

			disp := notify.NewDispatcher(log, file.Notify.Cooldown.Duration, sinks...)
			det.SetListener(disp)

			p := pump.New(ring, det, pump.Config{
				Scale:    file.Input.Scale,
				Poll:     file.Input.Poll.Duration,
				MaxBatch: file.Input.MaxBatch,
			}, log)

			if watch {
				w := config.NewWatcher(o.configPath, log)
				w.OnChange(func(f config.File) {
					o.override(cmd, &f)
					p.Reconfigure(f.DetectorConfig())
				})
				if err := w.Watch(ctx); err != nil {
					return err
				}
			}

			go disp.Run(ctx)

			log.Info("listening for shakes",
				"threshold", file.Detector.MagnitudeThreshold,
				"percent", file.Detector.OverThresholdPercent,
				"required", file.Detector.RequiredShakeCount)
			if err := p.Run(ctx); err != nil {
				return err
			}
			st := det.Stats()
			log.Info("stopped", "fired", st.Fired, "accepted", st.Accepted, "dropped_notifications", disp.Dropped())
			return nil
		},
	}

	cmd.Flags().StringVar(&sound, "sound", "", "mp3 to play on every shake")
	cmd.Flags().BoolVar(&flash, "flash", false, "flash the keyboard backlight on every shake")
	cmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "do not print a line per shake")
	cmd.Flags().BoolVarP(&watch, "watch", "w", false, "reload detector settings when the config file changes")
	root.AddCommand(cmd)
}
