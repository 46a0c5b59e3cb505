//go:build !darwin

package main

import (
	"context"
	"errors"

	"github.com/taigrr/shakedetect/config"
)

func run(context.Context, config.File) error {
	return errors.New("shakedash requires macOS with sensord running")
}
