package detector

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/veilhq/veil/internal/config"
	"github.com/veilhq/veil/internal/diaglog"
)

// Chain runs checks in priority order and short-circuits on the first
// positive signal. Cheap, decisive evidence (window titles) is consulted
// before expensive heuristics (per-process CPU sampling).
type Chain struct {
	checks []Check
	probe  PlatformProbe
	budget time.Duration
	log    *diaglog.Logger

	mu       sync.Mutex
	override *bool // non-nil replaces the whole chain; testing only
}

// GrantSource lists applications currently holding a screen-capture
// permission grant. Implemented by the grants package.
type GrantSource interface {
	ScreenCaptureClients(ctx context.Context) ([]string, error)
}

// NewChain builds the standard five-check chain. probe and grants may be nil
// on platforms where the capability is unavailable; the corresponding checks
// are skipped and the chain runs reduced.
func NewChain(cfg *config.DetectionConfig, probe PlatformProbe, grants GrantSource, log *diaglog.Logger) *Chain {
	if log == nil {
		log = diaglog.NewNoOp()
	}
	rules := cfg.EnabledRules()

	var checks []Check
	if probe != nil && probe.Available() {
		checks = append(checks, &windowListCheck{probe: probe, rules: rules})
		checks = append(checks, &automationCheck{probe: probe, rules: rules})
	}
	sampler := newGopsutilSampler()
	checks = append(checks, &daemonCheck{sampler: sampler, daemons: cfg.DaemonNames})
	checks = append(checks, &processScanCheck{
		sampler:      sampler,
		rules:        rules,
		cpuThreshold: cfg.CPUThresholdPercent,
		memThreshold: cfg.MemThresholdPercent,
	})
	if grants != nil {
		checks = append(checks, &grantCheck{source: grants, rules: rules})
	}

	return &Chain{
		checks: checks,
		probe:  probe,
		budget: cfg.CheckBudget(),
		log:    log,
	}
}

// NewChainFromChecks builds a chain over explicit checks. Used by tests and
// by callers that assemble their own probes.
func NewChainFromChecks(budget time.Duration, log *diaglog.Logger, checks ...Check) *Chain {
	if log == nil {
		log = diaglog.NewNoOp()
	}
	return &Chain{checks: checks, budget: budget, log: log}
}

// SetOverride forces all future verdicts to the given value, bypassing every
// check. Intended for sandboxed development where no conferencing app runs.
func (c *Chain) SetOverride(sharing bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.override = &sharing
}

// ClearOverride returns the chain to real detection.
func (c *Chain) ClearOverride() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.override = nil
}

// Override reports the current override value, or nil when detection is live.
func (c *Chain) Override() *bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.override == nil {
		return nil
	}
	v := *c.override
	return &v
}

// ActiveWindow returns best-effort frontmost-window metadata for diagnostics.
// Returns nil when no probe is available or the query fails; callers must not
// treat absence as an error.
func (c *Chain) ActiveWindow(ctx context.Context) *WindowInfo {
	if c.probe == nil || !c.probe.Available() {
		return nil
	}
	win, err := c.probe.FrontmostWindow(ctx)
	if err != nil {
		return nil
	}
	return win
}

// Evaluate runs the chain once. It never returns an error: probe failures
// and timeouts degrade to inconclusive signals so one broken capability
// cannot take detection down with it.
func (c *Chain) Evaluate(ctx context.Context) Verdict {
	v := Verdict{EvaluatedAt: time.Now()}

	if ov := c.Override(); ov != nil {
		v.Sharing = *ov
		v.Source = SourceOverride
		return v
	}

	for _, chk := range c.checks {
		sig := c.runBounded(ctx, chk)
		v.Signals = append(v.Signals, sig)
		if sig.Positive {
			v.Sharing = true
			v.Source = sig.Source
			v.Detail = sig.Detail
			c.log.Log(diaglog.LogEntry{
				Component: diaglog.ComponentDetector,
				Event:     diaglog.EventCheckPositive,
				Reason:    sig.Source,
				Payload:   map[string]interface{}{"detail": sig.Detail},
			})
			break
		}
		if ctx.Err() != nil {
			break
		}
	}
	return v
}

// runBounded executes one probe under the per-check budget. A probe that
// overruns is abandoned for this cycle; its goroutine drains into a buffered
// channel so it cannot leak a send.
func (c *Chain) runBounded(ctx context.Context, chk Check) Signal {
	cctx, cancel := context.WithTimeout(ctx, c.budget)
	defer cancel()

	done := make(chan Signal, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- Signal{Source: chk.Name(), Error: fmt.Sprintf("probe panic: %v", r)}
			}
		}()
		done <- chk.Probe(cctx)
	}()

	select {
	case sig := <-done:
		if sig.Error != "" {
			c.log.Log(diaglog.LogEntry{
				Component: diaglog.ComponentDetector,
				Event:     diaglog.EventCheckError,
				Reason:    chk.Name(),
				Payload:   map[string]interface{}{"error": sig.Error},
			})
		}
		return sig
	case <-cctx.Done():
		c.log.Log(diaglog.LogEntry{
			Component: diaglog.ComponentDetector,
			Event:     diaglog.EventCheckTimeout,
			Reason:    chk.Name(),
		})
		return Signal{Source: chk.Name(), Error: "check budget exceeded"}
	}
}
