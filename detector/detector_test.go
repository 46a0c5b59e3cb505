package detector

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	ms   = int64(time.Millisecond)
	base = 10 * int64(time.Second)
	high = 30.0
	low  = 10.0
)

func started(t *testing.T, mutate func(*Config)) *Detector {
	t.Helper()
	cfg := DefaultConfig()
	if mutate != nil {
		mutate(&cfg)
	}
	d, err := New(cfg)
	require.NoError(t, err)
	d.Start()
	return d
}

type counter struct{ n int }

func (c *counter) OnShake() { c.n++ }

func TestSustainedShakeFiresOnce(t *testing.T) {
	d := started(t, nil)
	var c counter
	d.SetListener(&c)

	fired := 0
	for i := range 10 {
		if d.OnSample(base+int64(i)*20*ms, high, 0, 0) {
			fired++
		}
	}

	assert.Equal(t, 1, c.n)
	assert.Equal(t, 1, fired)
	assert.Equal(t, uint64(1), d.Stats().Fired)
}

func TestAlternatingMagnitudesNeverFire(t *testing.T) {
	d := started(t, nil)
	var c counter
	d.SetListener(&c)

	for i := range 10 {
		mag := low
		if i%2 == 1 {
			mag = high
		}
		d.OnSample(base+int64(i)*20*ms, mag, 0, 0)
	}

	assert.Equal(t, 0, c.n)
	assert.InDelta(t, 0.5, d.Stats().Ratio, 1e-9)
}

func TestTimestampsFromZero(t *testing.T) {
	d := started(t, nil)

	fired := 0
	for i := range 10 {
		if d.OnSample(int64(i)*20*ms, 0, high, 0) {
			fired++
		}
	}
	assert.Equal(t, 1, fired)
}

func TestRateGate(t *testing.T) {
	d := started(t, func(c *Config) { c.RequiredShakeCount = 99 })

	d.OnSample(base, high, 0, 0)
	before := d.Magnitudes(nil)

	assert.False(t, d.OnSample(base+19*ms, low, 0, 0))
	st := d.Stats()
	assert.Equal(t, uint64(1), st.Accepted)
	assert.Equal(t, uint64(1), st.Dropped)
	assert.Equal(t, before, d.Magnitudes(nil))
	assert.Equal(t, high, st.LastMagnitude)

	d.OnSample(base+20*ms, low, 0, 0)
	assert.Equal(t, uint64(2), d.Stats().Accepted)
	assert.Equal(t, []float64{high, low}, d.Magnitudes(nil))
}

func TestRateGateMeasuresFromLastAccepted(t *testing.T) {
	d := started(t, func(c *Config) { c.RequiredShakeCount = 99 })

	d.OnSample(base, low, 0, 0)
	d.OnSample(base+15*ms, low, 0, 0) // dropped
	d.OnSample(base+25*ms, low, 0, 0) // 25ms after the accepted one
	assert.Equal(t, uint64(2), d.Stats().Accepted)
}

func TestRatioCrossingRegistersInstant(t *testing.T) {
	d := started(t, nil)

	mags := []float64{low, low, low, high, high, high, high, high, high}
	firedAt := -1
	for i, m := range mags {
		if d.OnSample(base+int64(i)*20*ms, m, 0, 0) {
			require.Equal(t, -1, firedAt, "fired twice")
			firedAt = i
		}
	}
	// 5 of 8 recent samples is the first ratio above 60%.
	assert.Equal(t, 7, firedAt)
}

func TestExactPercentDoesNotPass(t *testing.T) {
	d := started(t, func(c *Config) { c.Capacity = 5 })

	for i, m := range []float64{low, low, high, high, high} {
		assert.False(t, d.OnSample(base+int64(i)*20*ms, m, 0, 0), "sample %d", i)
	}
	st := d.Stats()
	assert.Equal(t, 5, st.Recent)
	assert.Equal(t, 3, st.Over)

	// The oldest low sample is overwritten: 4 of 5.
	assert.True(t, d.OnSample(base+100*ms, high, 0, 0))
}

func TestDebounceWithinVisibleWindow(t *testing.T) {
	d := started(t, func(c *Config) { c.RequiredShakeCount = 2 })

	for i := range 6 {
		assert.False(t, d.OnSample(base+int64(i)*20*ms, high, 0, 0))
	}
	assert.Equal(t, 1, d.Stats().ShakeCount)

	// Second burst, 300ms after the last instant.
	assert.True(t, d.OnSample(base+400*ms, high, 0, 0))
	assert.Equal(t, 0, d.Stats().ShakeCount)
}

func TestDebounceBoundary(t *testing.T) {
	d := started(t, func(c *Config) {
		c.RequiredShakeCount = 2
		c.VisibleWindow = 100 * time.Millisecond
	})

	d.OnSample(base, high, 0, 0)
	assert.Equal(t, 1, d.Stats().ShakeCount)

	// Exactly one visible window later counts as a new shake.
	assert.True(t, d.OnSample(base+100*ms, high, 0, 0))
}

func TestMultiShakeSequence(t *testing.T) {
	d := started(t, func(c *Config) { c.RequiredShakeCount = 3 })
	var c counter
	d.SetListener(&c)

	results := make([]bool, 4)
	for i := range results {
		results[i] = d.OnSample(base+int64(i)*300*ms, high, 0, 0)
	}

	assert.Equal(t, []bool{false, false, true, false}, results)
	assert.Equal(t, 1, c.n)
	assert.Equal(t, 1, d.Stats().ShakeCount)
}

func TestShakingWindowExpiry(t *testing.T) {
	d := started(t, func(c *Config) { c.RequiredShakeCount = 2 })

	d.OnSample(base, high, 0, 0)
	assert.Equal(t, 1, d.Stats().ShakeCount)

	d.OnSample(base+3*int64(time.Second)+ms, low, 0, 0)
	assert.Equal(t, 0, d.Stats().ShakeCount)

	assert.False(t, d.OnSample(base+3*int64(time.Second)+400*ms, high, 0, 0))
	assert.Equal(t, 1, d.Stats().ShakeCount)
	assert.Equal(t, uint64(0), d.Stats().Fired)
}

func TestShakingWindowNotYetExpired(t *testing.T) {
	d := started(t, func(c *Config) { c.RequiredShakeCount = 2 })

	d.OnSample(base, high, 0, 0)
	d.OnSample(base+3*int64(time.Second), low, 0, 0) // not strictly past the window
	assert.Equal(t, 1, d.Stats().ShakeCount)

	assert.True(t, d.OnSample(base+3*int64(time.Second)+400*ms, high, 0, 0))
}

func TestBufferWraparound(t *testing.T) {
	d := started(t, func(c *Config) {
		c.Capacity = 3
		c.RequiredShakeCount = 99
	})

	d.OnSample(base, high, 0, 0)
	d.OnSample(base+20*ms, low, 0, 0)
	d.OnSample(base+40*ms, low, 0, 0)
	st := d.Stats()
	assert.Equal(t, 3, st.Recent)
	assert.Equal(t, 1, st.Over)

	// The high sample is still within the visible window but has been
	// overwritten.
	d.OnSample(base+60*ms, low, 0, 0)
	st = d.Stats()
	assert.Equal(t, 3, st.Recent)
	assert.Equal(t, 0, st.Over)
}

func TestOldSamplesLeaveWindow(t *testing.T) {
	d := started(t, func(c *Config) { c.RequiredShakeCount = 99 })

	d.OnSample(base, high, 0, 0)
	d.OnSample(base+250*ms, low, 0, 0)
	st := d.Stats()
	assert.Equal(t, 1, st.Recent)
	assert.Equal(t, 0, st.Over)
}

func TestZeroVisibleWindowNeverShakes(t *testing.T) {
	d := started(t, func(c *Config) { c.VisibleWindow = 0 })

	for i := range 20 {
		assert.False(t, d.OnSample(base+int64(i)*20*ms, high, high, high))
	}
	st := d.Stats()
	assert.Equal(t, 0, st.Recent)
	assert.Equal(t, 0.0, st.Ratio)
}

func TestIdleIgnoresSamples(t *testing.T) {
	d, err := New(DefaultConfig())
	require.NoError(t, err)

	assert.False(t, d.Listening())
	assert.False(t, d.OnSample(base, high, 0, 0))
	assert.Equal(t, uint64(0), d.Stats().Accepted)
}

func TestStopDiscardsRunState(t *testing.T) {
	d := started(t, func(c *Config) { c.RequiredShakeCount = 2 })

	d.OnSample(base, high, 0, 0)
	require.Equal(t, 1, d.Stats().ShakeCount)

	d.Stop()
	assert.False(t, d.Listening())
	assert.False(t, d.OnSample(base+300*ms, high, 0, 0))

	d.Start()
	assert.Empty(t, d.Magnitudes(nil))
	assert.Equal(t, 0, d.Stats().ShakeCount)

	// The count starts over: one shake is not enough.
	assert.False(t, d.OnSample(base+600*ms, high, 0, 0))
	assert.Equal(t, 1, d.Stats().ShakeCount)
}

func TestStartWhileListeningReinitializes(t *testing.T) {
	d := started(t, nil)
	d.OnSample(base, low, 0, 0)
	d.OnSample(base+20*ms, low, 0, 0)

	d.Start()
	assert.True(t, d.Listening())
	assert.Empty(t, d.Magnitudes(nil))

	// The rate gate is re-armed.
	d.OnSample(base+25*ms, low, 0, 0)
	assert.Len(t, d.Magnitudes(nil), 1)
}

func TestConfigureCapacityWhileListening(t *testing.T) {
	d := started(t, func(c *Config) { c.RequiredShakeCount = 99 })
	for i := range 3 {
		d.OnSample(base+int64(i)*20*ms, high, 0, 0)
	}

	require.NoError(t, d.Configure(OptCapacity, 5))
	assert.Equal(t, 5, d.Config().Capacity)
	assert.Equal(t, 5, d.ring.capacity())
	assert.Empty(t, d.Magnitudes(nil))
	assert.True(t, d.Listening())
}

func TestConfigureCapacityWhileIdle(t *testing.T) {
	d, err := New(DefaultConfig())
	require.NoError(t, err)

	require.NoError(t, d.Configure(OptCapacity, 8))
	d.Start()
	assert.Equal(t, 8, d.ring.capacity())
}

func TestConfigureKeepsSamplesForOtherOptions(t *testing.T) {
	d := started(t, func(c *Config) { c.RequiredShakeCount = 99 })
	d.OnSample(base, high, 0, 0)

	require.NoError(t, d.Configure(OptMagnitudeThreshold, 40))
	require.NoError(t, d.Configure(OptVisibleWindow, float64(500*time.Millisecond)))
	assert.Len(t, d.Magnitudes(nil), 1)
	assert.Equal(t, 40.0, d.Config().MagnitudeThreshold)
	assert.Equal(t, 500*time.Millisecond, d.Config().VisibleWindow)
}

func TestConfigureEveryOption(t *testing.T) {
	d, err := New(DefaultConfig())
	require.NoError(t, err)

	require.NoError(t, d.Configure(OptCapacity, 10))
	require.NoError(t, d.Configure(OptMagnitudeThreshold, 12.5))
	require.NoError(t, d.Configure(OptOverThresholdPercent, 75))
	require.NoError(t, d.Configure(OptMinSampleInterval, float64(5*time.Millisecond)))
	require.NoError(t, d.Configure(OptVisibleWindow, float64(time.Second)))
	require.NoError(t, d.Configure(OptShakingWindow, float64(10*time.Second)))
	require.NoError(t, d.Configure(OptRequiredShakeCount, 4))

	assert.Equal(t, Config{
		Capacity:             10,
		MinSampleInterval:    5 * time.Millisecond,
		VisibleWindow:        time.Second,
		MagnitudeThreshold:   12.5,
		OverThresholdPercent: 75,
		ShakingWindow:        10 * time.Second,
		RequiredShakeCount:   4,
	}, d.Config())
}

func TestConfigureRejectsInvalid(t *testing.T) {
	tests := []struct {
		name  string
		opt   Option
		value float64
	}{
		{"unknown option", Option(3), 1},
		{"zero capacity", OptCapacity, 0},
		{"fractional capacity", OptCapacity, 2.5},
		{"percent above 100", OptOverThresholdPercent, 101},
		{"negative percent", OptOverThresholdPercent, -1},
		{"zero required", OptRequiredShakeCount, 0},
		{"negative window", OptVisibleWindow, -1},
		{"negative interval", OptMinSampleInterval, -1},
		{"NaN threshold", OptMagnitudeThreshold, math.NaN()},
		{"infinite threshold", OptMagnitudeThreshold, math.Inf(1)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := started(t, nil)
			before := d.Config()

			err := d.Configure(tt.opt, tt.value)
			require.ErrorIs(t, err, ErrInvalidConfig)
			assert.Equal(t, before, d.Config())
		})
	}
}

func TestApply(t *testing.T) {
	d := started(t, nil)
	d.OnSample(base, low, 0, 0)

	cfg := d.Config()
	cfg.MagnitudeThreshold = 5
	require.NoError(t, d.Apply(cfg))
	assert.Len(t, d.Magnitudes(nil), 1)

	cfg.Capacity = 2
	require.NoError(t, d.Apply(cfg))
	assert.Empty(t, d.Magnitudes(nil))

	cfg.RequiredShakeCount = 0
	assert.ErrorIs(t, d.Apply(cfg), ErrInvalidConfig)
	assert.Equal(t, 1, d.Config().RequiredShakeCount)
}

func TestNewValidates(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Capacity = 0
	_, err := New(cfg)
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestParseOption(t *testing.T) {
	tests := map[string]Option{
		"capacity":                     OptCapacity,
		"maxSamples":                   OptCapacity,
		"MagnitudeThreshold":           OptMagnitudeThreshold,
		"percentOverThresholdForShake": OptOverThresholdPercent,
		"overThresholdPercent":         OptOverThresholdPercent,
		"minSampleInterval":            OptMinSampleInterval,
		"visibleWindow":                OptVisibleWindow,
		" shakingWindow ":              OptShakingWindow,
		"requiredShakeCount":           OptRequiredShakeCount,
	}
	for name, want := range tests {
		got, err := ParseOption(name)
		require.NoError(t, err, name)
		assert.Equal(t, want, got, name)
	}

	_, err := ParseOption("gravity")
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestOptionString(t *testing.T) {
	assert.Equal(t, "capacity", OptCapacity.String())
	assert.Equal(t, "Option(3)", Option(3).String())
}

func TestListenerFunc(t *testing.T) {
	d := started(t, nil)
	calls := 0
	d.SetListener(ListenerFunc(func() { calls++ }))

	assert.True(t, d.OnSample(base, high, 0, 0))
	assert.Equal(t, 1, calls)

	d.SetListener(nil)
	assert.True(t, d.OnSample(base+time.Second.Nanoseconds(), high, 0, 0))
	assert.Equal(t, 1, calls)
}

func TestOnSampleDoesNotAllocate(t *testing.T) {
	d := started(t, nil)
	ts := base
	allocs := testing.AllocsPerRun(200, func() {
		ts += 20 * ms
		d.OnSample(ts, high, 1, 1)
	})
	assert.Zero(t, allocs)
}
