// shakedash is a terminal dashboard that runs the shake detector over live
// samples from shared memory (written by sensord) and shows its state.
package main

import (
	"context"
	"os"

	"github.com/charmbracelet/fang"
	"github.com/spf13/cobra"

	"github.com/taigrr/shakedetect/config"
)

var version = "dev"

func main() {
	var configPath string

	cmd := &cobra.Command{
		Use:   "shakedash",
		Short: "Live shake detector dashboard for Apple Silicon",
		Long: `shakedash reads accelerometer samples from shared memory (created by
sensord), runs them through the shake detector and draws a live
terminal dashboard: magnitude history, window ratio against the
threshold, sequence progress and recent shakes.

Run sensord first in another terminal (with sudo).`,
		Version: version,
		RunE: func(cmd *cobra.Command, args []string) error {
			file := config.Default()
			if configPath != "" {
				f, err := config.Load(configPath)
				if err != nil {
					return err
				}
				file = f
			}
			return run(cmd.Context(), file)
		},
		SilenceUsage: true,
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "", "config file (.toml, .yaml, .yml or .json)")

	if err := fang.Execute(context.Background(), cmd); err != nil {
		os.Exit(1)
	}
}
