// Package pump moves samples from the shm ring into a shake detector.
//
// The pump goroutine is the only caller of the detector: sample delivery and
// reconfiguration are serialized through it.
package pump

import (
	"context"
	"log/slog"
	"time"

	"github.com/taigrr/shakedetect/detector"
	"github.com/taigrr/shakedetect/shm"
)

// Source yields samples written since lastTotal. *shm.RingBuffer satisfies it.
type Source interface {
	ReadNew(dst []shm.Sample, lastTotal uint64, scale float64) ([]shm.Sample, uint64)
}

// Config controls polling.
type Config struct {
	// Scale multiplies scaled ring values (g) into detector units.
	Scale float64
	// Poll is the ring polling interval.
	Poll time.Duration
	// MaxBatch caps how many of the newest samples are fed per poll.
	MaxBatch int
}

// Pump polls a Source and feeds a Detector.
type Pump struct {
	src Source
	det *detector.Detector
	cfg Config
	log *slog.Logger

	updates chan detector.Config
	buf     []shm.Sample
	total   uint64
	synced  bool

	// OnStep, if set, runs on the pump goroutine after every poll.
	OnStep func(fired int)
}

// New creates a Pump. The detector is started by Run.
func New(src Source, det *detector.Detector, cfg Config, log *slog.Logger) *Pump {
	if cfg.MaxBatch < 1 {
		cfg.MaxBatch = 200
	}
	if cfg.Poll <= 0 {
		cfg.Poll = 10 * time.Millisecond
	}
	if cfg.Scale == 0 {
		cfg.Scale = 1
	}
	return &Pump{
		src:     src,
		det:     det,
		cfg:     cfg,
		log:     log,
		updates: make(chan detector.Config, 1),
		buf:     make([]shm.Sample, 0, cfg.MaxBatch),
	}
}

// Reconfigure queues cfg to be applied on the pump goroutine. A newer
// request replaces one that has not been applied yet.
func (p *Pump) Reconfigure(cfg detector.Config) {
	for {
		select {
		case p.updates <- cfg:
			return
		default:
		}
		select {
		case <-p.updates:
		default:
		}
	}
}

// Step applies pending configuration, reads new samples and feeds them to the
// detector. It returns the number of completed shakes.
func (p *Pump) Step() int {
	select {
	case cfg := <-p.updates:
		if err := p.det.Apply(cfg); err != nil {
			p.log.Warn("rejected detector config", "err", err)
		} else {
			p.log.Info("detector reconfigured",
				"capacity", cfg.Capacity,
				"threshold", cfg.MagnitudeThreshold,
				"percent", cfg.OverThresholdPercent,
				"required", cfg.RequiredShakeCount)
		}
	default:
	}

	var samples []shm.Sample
	samples, p.total = p.src.ReadNew(p.buf[:0], p.total, shm.AccelScale)
	if !p.synced {
		// Samples already in the ring predate this listener.
		p.synced = true
		return 0
	}
	if len(samples) > p.cfg.MaxBatch {
		p.log.Debug("dropping backlog", "pending", len(samples), "kept", p.cfg.MaxBatch)
		samples = samples[len(samples)-p.cfg.MaxBatch:]
	}

	fired := 0
	for _, s := range samples {
		if p.det.OnSample(s.TimestampNs, s.X*p.cfg.Scale, s.Y*p.cfg.Scale, s.Z*p.cfg.Scale) {
			fired++
		}
	}
	if cap(samples) <= 4*p.cfg.MaxBatch {
		p.buf = samples[:0]
	}
	return fired
}

// Run starts the detector and polls until ctx is cancelled, then stops it.
func (p *Pump) Run(ctx context.Context) error {
	p.det.Start()
	defer p.det.Stop()

	ticker := time.NewTicker(p.cfg.Poll)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}

		fired := p.Step()
		if p.OnStep != nil {
			p.OnStep(fired)
		}
	}
}
