//go:build !darwin

package main

import (
	"errors"

	"github.com/spf13/cobra"
)

func addListen(root *cobra.Command, _ *options) {
	root.AddCommand(&cobra.Command{
		Use:   "listen",
		Short: "Detect shakes live (macOS only)",
		RunE: func(*cobra.Command, []string) error {
			return errors.New("live listening requires macOS with sensord running")
		},
	})
}
