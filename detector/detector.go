// Package detector implements shake detection over a stream of timestamped
// 3-axis accelerometer samples: a fixed ring of recent magnitudes, a windowed
// over-threshold ratio test, and a debounced shake counter.
//
// A Detector has no internal locking. Callers must serialize Start, Stop,
// Configure, Apply and OnSample.
package detector

import "math"

// Listener is notified once per completed shake sequence.
type Listener interface {
	OnShake()
}

// ListenerFunc adapts a plain function to Listener.
type ListenerFunc func()

// OnShake calls f.
func (f ListenerFunc) OnShake() { f() }

// Stats is a snapshot of detector run state.
type Stats struct {
	Listening bool

	Accepted uint64 // samples that passed the rate gate
	Dropped  uint64 // samples rejected by the rate gate

	Recent int     // recent samples in the last ratio test
	Over   int     // recent samples at or above the threshold
	Ratio  float64 // Over/Recent, 0 when Recent is 0

	LastMagnitude float64
	ShakeCount    int    // shakes counted in the current sequence
	Fired         uint64 // completed sequences since New
}

// Detector turns accelerometer samples into shake notifications.
type Detector struct {
	cfg       Config
	listener  Listener
	listening bool

	ring sampleRing

	// Run state, reset by Start and by capacity changes.
	lastAccepted int64
	primed       bool
	lastInstant  int64
	haveInstant  bool
	shakeCount   int

	stats Stats
}

// New creates an idle Detector. Call Start before feeding samples.
func New(cfg Config) (*Detector, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Detector{cfg: cfg}, nil
}

// SetListener sets the listener invoked from OnSample. A nil listener
// disables callbacks; OnSample still reports completions.
func (d *Detector) SetListener(l Listener) {
	d.listener = l
}

// Config returns the current configuration.
func (d *Detector) Config() Config {
	return d.cfg
}

// Listening reports whether samples are being processed.
func (d *Detector) Listening() bool {
	return d.listening
}

// Start (re)initializes the ring and run state and begins listening. Calling
// Start while already listening starts over.
func (d *Detector) Start() {
	d.ring.reset(d.cfg.Capacity)
	d.resetRun()
	d.listening = true
}

// Stop stops listening and discards run state. The ring's storage is kept for
// the next Start.
func (d *Detector) Stop() {
	d.listening = false
	d.resetRun()
	d.ring.pos, d.ring.fill = 0, 0
}

func (d *Detector) resetRun() {
	d.lastAccepted = 0
	d.primed = false
	d.lastInstant = 0
	d.haveInstant = false
	d.shakeCount = 0
	d.stats.Recent, d.stats.Over, d.stats.Ratio = 0, 0, 0
	d.stats.LastMagnitude = 0
	d.stats.ShakeCount = 0
}

// Configure updates one option. Durations are in nanoseconds. Unknown options
// and out-of-range values return an error wrapping ErrInvalidConfig and leave
// the detector unchanged.
func (d *Detector) Configure(opt Option, value float64) error {
	cfg, err := d.cfg.with(opt, value)
	if err != nil {
		return err
	}
	d.set(cfg)
	return nil
}

// Apply replaces the whole configuration.
func (d *Detector) Apply(cfg Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	d.set(cfg)
	return nil
}

func (d *Detector) set(cfg Config) {
	resize := cfg.Capacity != d.cfg.Capacity
	d.cfg = cfg
	if resize && d.listening {
		d.Start()
	}
}

// OnSample processes one raw reading and reports whether it completed a shake
// sequence. Samples are ignored while not listening.
func (d *Detector) OnSample(timestampNs int64, x, y, z float64) bool {
	if !d.listening {
		return false
	}
	if d.primed && timestampNs-d.lastAccepted < int64(d.cfg.MinSampleInterval) {
		d.stats.Dropped++
		return false
	}

	mag := math.Sqrt(x*x + y*y + z*z)
	d.ring.push(timestampNs, mag)
	d.lastAccepted = timestampNs
	d.primed = true
	d.stats.Accepted++
	d.stats.LastMagnitude = mag

	return d.evaluate(timestampNs)
}

func (d *Detector) evaluate(now int64) bool {
	visible := int64(d.cfg.VisibleWindow)
	total, over := d.ring.window(now, visible, d.cfg.MagnitudeThreshold)

	ratio := 0.0
	if total > 0 {
		ratio = float64(over) / float64(total)
	}
	d.stats.Recent, d.stats.Over, d.stats.Ratio = total, over, ratio

	fired := false
	if total > 0 && ratio > d.cfg.OverThresholdPercent/100 {
		if !d.haveInstant || now-d.lastInstant >= visible {
			d.shakeCount++
		}
		d.lastInstant = now
		d.haveInstant = true
		if d.shakeCount >= d.cfg.RequiredShakeCount {
			// lastInstant survives so the rest of this physical shake stays
			// inside the dead zone.
			d.shakeCount = 0
			d.stats.Fired++
			fired = true
			if d.listener != nil {
				d.listener.OnShake()
			}
		}
	}

	if d.haveInstant && now-d.lastInstant > int64(d.cfg.ShakingWindow) {
		d.shakeCount = 0
		d.lastInstant = 0
		d.haveInstant = false
	}

	d.stats.ShakeCount = d.shakeCount
	return fired
}

// Stats returns a snapshot of the run state.
func (d *Detector) Stats() Stats {
	s := d.stats
	s.Listening = d.listening
	return s
}

// Magnitudes appends the retained magnitudes to dst, oldest first.
func (d *Detector) Magnitudes(dst []float64) []float64 {
	return d.ring.appendMagnitudes(dst)
}
