// shake detects shake gestures in accelerometer samples, either live from
// sensord's shared memory ring or from a CSV recording.
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/charmbracelet/fang"
	"github.com/spf13/cobra"

	"github.com/taigrr/shakedetect/config"
	"github.com/taigrr/shakedetect/detector"
	"github.com/taigrr/shakedetect/logging"
	"github.com/taigrr/shakedetect/replay"
)

var version = "dev"

func main() {
	if err := fang.Execute(context.Background(), newRootCmd()); err != nil {
		os.Exit(1)
	}
}

// options holds the persistent flags shared by every subcommand.
type options struct {
	configPath string
	logLevel   string
	logFormat  string

	capacity      int
	threshold     float64
	percent       float64
	required      int
	visibleWindow time.Duration
	shakingWindow time.Duration
	minInterval   time.Duration
}

func newRootCmd() *cobra.Command {
	o := &options{}
	root := &cobra.Command{
		Use:   "shake",
		Short: "Detect shake gestures from accelerometer samples",
		Long: `shake runs a windowed shake detector over timestamped accelerometer
samples. "shake listen" reads live samples written by sensord, while
"shake replay" runs a CSV recording through the same detector.

Settings come from --config (TOML, YAML or JSON); flags that are set
explicitly override the file.`,
		Version:      version,
		SilenceUsage: true,
	}

	dc := detector.DefaultConfig()
	pf := root.PersistentFlags()
	pf.StringVarP(&o.configPath, "config", "c", "", "config file (.toml, .yaml, .yml or .json)")
	pf.StringVar(&o.logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	pf.StringVar(&o.logFormat, "log-format", logging.FormatText, "log format (text, json)")
	pf.IntVar(&o.capacity, "capacity", dc.Capacity, "samples kept in the detector window")
	pf.Float64Var(&o.threshold, "threshold", dc.MagnitudeThreshold, "magnitude a sample must reach to count as over threshold")
	pf.Float64Var(&o.percent, "percent", dc.OverThresholdPercent, "percent of recent samples that must be over threshold")
	pf.IntVar(&o.required, "required", dc.RequiredShakeCount, "shake instants needed to report a shake")
	pf.DurationVar(&o.visibleWindow, "visible-window", dc.VisibleWindow, "how far back samples count as recent")
	pf.DurationVar(&o.shakingWindow, "shaking-window", dc.ShakingWindow, "quiet time after which a partial sequence is abandoned")
	pf.DurationVar(&o.minInterval, "min-interval", dc.MinSampleInterval, "minimum spacing between accepted samples")

	root.AddCommand(newReplayCmd(o))
	addListen(root, o)
	return root
}

// load reads the config file, applies explicit flags and builds the logger.
func (o *options) load(cmd *cobra.Command) (config.File, *slog.Logger, error) {
	file := config.Default()
	if o.configPath != "" {
		f, err := config.Load(o.configPath)
		if err != nil {
			return file, nil, err
		}
		file = f
	}
	o.override(cmd, &file)
	if err := file.Validate(); err != nil {
		return file, nil, err
	}
	log, err := logging.New(cmd.ErrOrStderr(), file.Log.Level, file.Log.Format)
	if err != nil {
		return file, nil, err
	}
	return file, log, nil
}

// override copies flags the user set onto f.
func (o *options) override(cmd *cobra.Command, f *config.File) {
	changed := cmd.Flags().Changed
	if changed("log-level") {
		f.Log.Level = o.logLevel
	}
	if changed("log-format") {
		f.Log.Format = o.logFormat
	}
	if changed("capacity") {
		f.Detector.Capacity = o.capacity
	}
	if changed("threshold") {
		f.Detector.MagnitudeThreshold = o.threshold
	}
	if changed("percent") {
		f.Detector.OverThresholdPercent = o.percent
	}
	if changed("required") {
		f.Detector.RequiredShakeCount = o.required
	}
	if changed("visible-window") {
		f.Detector.VisibleWindow.Duration = o.visibleWindow
	}
	if changed("shaking-window") {
		f.Detector.ShakingWindow.Duration = o.shakingWindow
	}
	if changed("min-interval") {
		f.Detector.MinSampleInterval.Duration = o.minInterval
	}
}

func newReplayCmd(o *options) *cobra.Command {
	var scale float64
	cmd := &cobra.Command{
		Use:   "replay <file.csv|->",
		Short: "Run a recorded CSV through the detector",
		Long: `replay reads samples as timestamp_ns,x,y,z rows (a header row and
lines starting with # are ignored) and prints every detected shake.
Use - to read from stdin.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			file, log, err := o.load(cmd)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("scale") {
				file.Input.Scale = scale
			}

			var in io.Reader = cmd.InOrStdin()
			if args[0] != "-" {
				f, err := os.Open(args[0])
				if err != nil {
					return fmt.Errorf("opening recording: %w", err)
				}
				defer f.Close()
				in = f
			}

			det, err := detector.New(file.DetectorConfig())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			sum, err := replay.Run(cmd.Context(), in, det, file.Input.Scale, func(ev replay.Event) {
				fmt.Fprintf(out, "shake #%d at line %d (t=%s)\n", ev.Seq, ev.Line,
					time.Duration(ev.TimestampNs))
			})
			if err != nil {
				return err
			}
			log.Debug("replay finished", "samples", sum.Samples, "accepted", sum.Accepted)
			fmt.Fprintf(out, "%d samples, %d accepted, %d shakes\n", sum.Samples, sum.Accepted, sum.Shakes)
			return nil
		},
	}
	cmd.Flags().Float64Var(&scale, "scale", config.StandardGravity, "multiplier from recorded units to threshold units")
	return cmd
}
