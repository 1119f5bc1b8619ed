package poller

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/veilhq/veil/internal/detector"
)

// slowDetector blocks for a fixed duration per evaluation and counts calls.
type slowDetector struct {
	delay time.Duration
	calls atomic.Int64
}

func (d *slowDetector) Evaluate(ctx context.Context) detector.Verdict {
	d.calls.Add(1)
	select {
	case <-time.After(d.delay):
	case <-ctx.Done():
	}
	return detector.Verdict{EvaluatedAt: time.Now()}
}

func TestRun_dropsTicksWhileBusy(t *testing.T) {
	// Each evaluation spans several ticks; those ticks must be skipped,
	// not queued for later.
	det := &slowDetector{delay: 120 * time.Millisecond}
	p := New(20*time.Millisecond, det, nil, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()
	p.Run(ctx)

	calls := det.calls.Load()
	if calls > 4 {
		t.Errorf("busy poller should evaluate rarely, got %d calls", calls)
	}
	if p.Dropped() == 0 {
		t.Error("ticks during a running evaluation should be counted as dropped")
	}
	// No backlog: evaluations equal started calls, ticks never queue.
	if got := p.Evaluations(); got > calls {
		t.Errorf("evaluations (%d) cannot exceed detector calls (%d)", got, calls)
	}
}

func TestRun_firstEvaluationIsImmediate(t *testing.T) {
	det := &slowDetector{delay: 0}
	p := New(time.Hour, det, nil, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	p.Run(ctx)

	if det.calls.Load() != 1 {
		t.Errorf("exactly one immediate evaluation expected, got %d", det.calls.Load())
	}
}

func TestRun_verdictsAreSequential(t *testing.T) {
	var mu sync.Mutex
	var concurrent, maxConcurrent int

	det := &slowDetector{delay: 5 * time.Millisecond}
	onVerdict := func(detector.Verdict) {
		mu.Lock()
		concurrent++
		if concurrent > maxConcurrent {
			maxConcurrent = concurrent
		}
		mu.Unlock()

		time.Sleep(2 * time.Millisecond)

		mu.Lock()
		concurrent--
		mu.Unlock()
	}

	p := New(3*time.Millisecond, det, onVerdict, nil)
	ctx, cancel := context.WithTimeout(context.Background(), 150*time.Millisecond)
	defer cancel()
	p.Run(ctx)

	if maxConcurrent > 1 {
		t.Errorf("verdict callbacks overlapped, max concurrency %d", maxConcurrent)
	}
}

func TestRun_stopsOnCancel(t *testing.T) {
	det := &slowDetector{delay: 0}
	p := New(10*time.Millisecond, det, nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		p.Run(ctx)
		close(done)
	}()

	time.Sleep(35 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancellation")
	}

	calls := det.calls.Load()
	time.Sleep(50 * time.Millisecond)
	if det.calls.Load() != calls {
		t.Error("no evaluations may start after cancellation")
	}
}

func TestRun_staleVerdictNotAppliedAfterCancel(t *testing.T) {
	var applied atomic.Int64
	det := &slowDetector{delay: 50 * time.Millisecond}
	p := New(time.Hour, det, func(detector.Verdict) { applied.Add(1) }, nil)

	ctx, cancel := context.WithCancel(context.Background())
	go p.Run(ctx)

	time.Sleep(10 * time.Millisecond) // evaluation in flight
	cancel()
	time.Sleep(100 * time.Millisecond)

	if applied.Load() != 0 {
		t.Error("a verdict completing after cancellation must not be applied")
	}
}
