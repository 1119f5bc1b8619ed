// Package poller drives the detection loop: a fixed-interval ticker where
// at most one evaluation is ever in flight. Ticks that arrive while an
// evaluation is still running are dropped, not queued, so a slow probe can
// never build a backlog.
package poller

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/veilhq/veil/internal/detector"
	"github.com/veilhq/veil/internal/diaglog"
)

// Poller runs the detector on a fixed interval and hands each verdict to a
// callback. The callback runs on the evaluation goroutine, strictly after
// its evaluation and never concurrently with another.
type Poller struct {
	interval  time.Duration
	det       detector.Detector
	onVerdict func(detector.Verdict)
	log       *diaglog.Logger

	inflight    atomic.Bool
	evaluations atomic.Int64
	dropped     atomic.Int64
}

// New creates a poller. onVerdict may be nil.
func New(interval time.Duration, det detector.Detector, onVerdict func(detector.Verdict), log *diaglog.Logger) *Poller {
	if log == nil {
		log = diaglog.NewNoOp()
	}
	return &Poller{
		interval:  interval,
		det:       det,
		onVerdict: onVerdict,
		log:       log,
	}
}

// Run blocks until ctx is cancelled. The first evaluation fires immediately
// rather than waiting one full interval.
func (p *Poller) Run(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.tick(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.tick(ctx)
		}
	}
}

// tick starts one evaluation unless one is already running.
func (p *Poller) tick(ctx context.Context) {
	if !p.inflight.CompareAndSwap(false, true) {
		p.dropped.Add(1)
		p.log.Log(diaglog.LogEntry{
			Component: diaglog.ComponentPoller,
			Event:     diaglog.EventTickDropped,
		})
		return
	}

	go func() {
		defer p.inflight.Store(false)

		v := p.det.Evaluate(ctx)
		p.evaluations.Add(1)
		if ctx.Err() != nil {
			return // shutting down, do not apply a stale verdict
		}
		if p.onVerdict != nil {
			p.onVerdict(v)
		}
	}()
}

// Evaluations reports completed evaluations.
func (p *Poller) Evaluations() int64 {
	return p.evaluations.Load()
}

// Dropped reports ticks skipped because an evaluation was in flight.
func (p *Poller) Dropped() int64 {
	return p.dropped.Load()
}
