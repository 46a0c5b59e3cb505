// Package notify delivers shake notifications to sinks off the sampling path.
package notify

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync/atomic"
	"time"
)

// Event describes one completed shake sequence.
type Event struct {
	Time time.Time
	Seq  uint64
}

// Sink receives shake events. Notify may block; it runs on the dispatcher
// goroutine and should return promptly once ctx is cancelled.
type Sink interface {
	Notify(ctx context.Context, ev Event) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, ev Event) error

// Notify calls f.
func (f SinkFunc) Notify(ctx context.Context, ev Event) error { return f(ctx, ev) }

// Dispatcher queues shakes reported by a detector and fans them out to sinks.
// It implements detector.Listener.
type Dispatcher struct {
	sinks    []Sink
	log      *slog.Logger
	cooldown time.Duration
	events   chan Event
	now      func() time.Time

	seq     atomic.Uint64
	dropped atomic.Uint64

	last time.Time
}

// NewDispatcher creates a Dispatcher. Events closer than cooldown to the last
// delivered one are suppressed.
func NewDispatcher(log *slog.Logger, cooldown time.Duration, sinks ...Sink) *Dispatcher {
	return &Dispatcher{
		sinks:    sinks,
		log:      log,
		cooldown: cooldown,
		events:   make(chan Event, 16),
		now:      time.Now,
	}
}

// OnShake enqueues an event without blocking. When the queue is full the
// event is dropped.
func (d *Dispatcher) OnShake() {
	ev := Event{Time: d.now(), Seq: d.seq.Add(1)}
	select {
	case d.events <- ev:
	default:
		d.dropped.Add(1)
	}
}

// Dropped returns how many events were lost to a full queue.
func (d *Dispatcher) Dropped() uint64 {
	return d.dropped.Load()
}

// Run delivers queued events until ctx is cancelled.
func (d *Dispatcher) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev := <-d.events:
			d.handle(ctx, ev)
		}
	}
}

func (d *Dispatcher) handle(ctx context.Context, ev Event) {
	if !d.last.IsZero() && ev.Time.Sub(d.last) < d.cooldown {
		d.log.Debug("shake suppressed by cooldown", "seq", ev.Seq)
		return
	}
	d.last = ev.Time

	for _, s := range d.sinks {
		if err := s.Notify(ctx, ev); err != nil {
			d.log.Warn("notify failed", "sink", fmt.Sprintf("%T", s), "seq", ev.Seq, "err", err)
		}
	}
}

// LogSink logs each shake.
type LogSink struct {
	Log *slog.Logger
}

// Notify implements Sink.
func (s LogSink) Notify(_ context.Context, ev Event) error {
	s.Log.Info("shake detected", "seq", ev.Seq, "at", ev.Time.Format(time.RFC3339Nano))
	return nil
}

// WriterSink prints one line per shake.
type WriterSink struct {
	W io.Writer
}

// Notify implements Sink.
func (s WriterSink) Notify(_ context.Context, ev Event) error {
	_, err := fmt.Fprintf(s.W, "shake! #%d [%s]\n", ev.Seq, ev.Time.Format("15:04:05.000"))
	return err
}
