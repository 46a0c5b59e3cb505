package main

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taigrr/shakedetect/config"
	"github.com/taigrr/shakedetect/detector"
)

func execute(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd()
	var out, errOut bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetIn(strings.NewReader(stdin))
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func recording(n int, mag float64) string {
	var b strings.Builder
	b.WriteString("timestamp_ns,x,y,z\n")
	for i := range n {
		fmt.Fprintf(&b, "%d,%g,0,0\n", 10_000_000_000+int64(i)*20_000_000, mag)
	}
	return b.String()
}

func TestReplayFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rec.csv")
	require.NoError(t, os.WriteFile(path, []byte(recording(10, 30)), 0o644))

	out, err := execute(t, "", "replay", "--scale", "1", path)
	require.NoError(t, err)
	assert.Contains(t, out, "shake #1 at line")
	assert.Contains(t, out, "10 samples, 10 accepted, 1 shakes")
}

func TestReplayFromStdin(t *testing.T) {
	out, err := execute(t, recording(10, 10), "replay", "--scale", "1", "-")
	require.NoError(t, err)
	assert.NotContains(t, out, "shake #")
	assert.Contains(t, out, "0 shakes")
}

func TestReplayFlagOverridesThreshold(t *testing.T) {
	out, err := execute(t, recording(10, 10), "replay", "--scale", "1", "--threshold", "5", "-")
	require.NoError(t, err)
	assert.Contains(t, out, "1 shakes")
}

func TestReplayDefaultScaleIsGravity(t *testing.T) {
	// 3g is well over 25 m/s².
	out, err := execute(t, recording(10, 3), "replay", "-")
	require.NoError(t, err)
	assert.Contains(t, out, "1 shakes")
}

func TestReplayUsesConfigFile(t *testing.T) {
	dir := t.TempDir()
	cfg := filepath.Join(dir, "shake.toml")
	require.NoError(t, os.WriteFile(cfg, []byte("[detector]\nrequired_shake_count = 2\n"), 0o644))

	out, err := execute(t, recording(10, 30), "--config", cfg, "replay", "--scale", "1", "-")
	require.NoError(t, err)
	assert.Contains(t, out, "0 shakes")
}

func TestReplayErrors(t *testing.T) {
	_, err := execute(t, "", "replay", filepath.Join(t.TempDir(), "missing.csv"))
	assert.Error(t, err)

	_, err = execute(t, "0,1,2\n", "replay", "-")
	assert.Error(t, err)

	_, err = execute(t, "", "--percent", "150", "replay", "-")
	assert.ErrorIs(t, err, detector.ErrInvalidConfig)
}

func TestOverrideOnlyChangedFlags(t *testing.T) {
	root := newRootCmd()
	replayCmd, _, err := root.Find([]string{"replay"})
	require.NoError(t, err)
	require.NoError(t, replayCmd.ParseFlags([]string{"--threshold", "12", "--required", "3"}))

	o := &options{threshold: 12, required: 3, capacity: 99}
	f := config.Default()
	o.override(replayCmd, &f)

	assert.Equal(t, 12.0, f.Detector.MagnitudeThreshold)
	assert.Equal(t, 3, f.Detector.RequiredShakeCount)
	assert.Equal(t, detector.DefaultCapacity, f.Detector.Capacity)
}
