package detector

import (
	"context"
	"errors"
	"testing"

	"github.com/veilhq/veil/internal/config"
)

type fakeSampler struct {
	samples []processSample
	err     error
}

func (f *fakeSampler) Samples(ctx context.Context) ([]processSample, error) {
	return f.samples, f.err
}

func scanRules() []config.DetectionRule {
	return []config.DetectionRule{
		{Application: "zoom", ProcessNames: []string{"zoom"}, Enabled: true},
		{Application: "teams", ProcessNames: []string{"Teams"}, Enabled: true},
	}
}

func newScan(samples ...processSample) *processScanCheck {
	return &processScanCheck{
		sampler:      &fakeSampler{samples: samples},
		rules:        scanRules(),
		cpuThreshold: 15.0,
		memThreshold: 2.0,
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// Threshold boundaries (strictly greater-than)
// ─────────────────────────────────────────────────────────────────────────────

func TestProcessScan_aboveBothThresholds(t *testing.T) {
	chk := newScan(processSample{Name: "zoom.us", CPUPercent: 15.1, MemPercent: 2.1})
	sig := chk.Probe(context.Background())
	if !sig.Positive {
		t.Error("15.1% CPU and 2.1% mem should trigger")
	}
}

func TestProcessScan_exactlyOnCPUThreshold(t *testing.T) {
	chk := newScan(processSample{Name: "zoom.us", CPUPercent: 15.0, MemPercent: 5.0})
	if sig := chk.Probe(context.Background()); sig.Positive {
		t.Error("exactly 15.0% CPU must not trigger, comparison is strict")
	}
}

func TestProcessScan_exactlyOnMemThreshold(t *testing.T) {
	chk := newScan(processSample{Name: "zoom.us", CPUPercent: 50.0, MemPercent: 2.0})
	if sig := chk.Probe(context.Background()); sig.Positive {
		t.Error("exactly 2.0% mem must not trigger, comparison is strict")
	}
}

func TestProcessScan_cpuAloneInsufficient(t *testing.T) {
	chk := newScan(processSample{Name: "zoom.us", CPUPercent: 90.0, MemPercent: 0.5})
	if sig := chk.Probe(context.Background()); sig.Positive {
		t.Error("both thresholds must be exceeded together")
	}
}

func TestProcessScan_unknownProcessIgnored(t *testing.T) {
	chk := newScan(processSample{Name: "chrome-renderer", CPUPercent: 95.0, MemPercent: 20.0})
	if sig := chk.Probe(context.Background()); sig.Positive {
		t.Error("processes outside the rule set must not trigger")
	}
}

func TestProcessScan_caseInsensitiveMatch(t *testing.T) {
	chk := newScan(processSample{Name: "Zoom.exe", CPUPercent: 40.0, MemPercent: 4.0})
	sig := chk.Probe(context.Background())
	if !sig.Positive {
		t.Error("process name matching should be case-insensitive")
	}
	if sig.Detail == "" {
		t.Error("positive signal should name the matched process")
	}
}

func TestProcessScan_samplerErrorIsInconclusive(t *testing.T) {
	chk := &processScanCheck{
		sampler:      &fakeSampler{err: errors.New("proc unreadable")},
		rules:        scanRules(),
		cpuThreshold: 15.0,
		memThreshold: 2.0,
	}
	sig := chk.Probe(context.Background())
	if sig.Positive {
		t.Error("sampler failure must not be positive")
	}
	if sig.Error == "" {
		t.Error("sampler failure should be recorded on the signal")
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// Daemon check
// ─────────────────────────────────────────────────────────────────────────────

func newDaemonCheck(samples ...processSample) *daemonCheck {
	return &daemonCheck{
		sampler: &fakeSampler{samples: samples},
		daemons: []string{"screensharingd", "vino-server", "RdpSa.exe"},
	}
}

func TestDaemon_matchesServiceProcess(t *testing.T) {
	chk := newDaemonCheck(
		processSample{Name: "launchd"},
		processSample{Name: "screensharingd"},
	)
	sig := chk.Probe(context.Background())
	if !sig.Positive {
		t.Error("screensharingd present should trigger")
	}
	if sig.Detail != "screensharingd" {
		t.Errorf("detail: got %q, want screensharingd", sig.Detail)
	}
}

func TestDaemon_caseInsensitive(t *testing.T) {
	chk := newDaemonCheck(processSample{Name: "RDPSA.EXE"})
	if sig := chk.Probe(context.Background()); !sig.Positive {
		t.Error("daemon match should be case-insensitive")
	}
}

func TestDaemon_exactNameOnly(t *testing.T) {
	// A substring like "screensharingd-helper" is a different binary.
	chk := newDaemonCheck(processSample{Name: "screensharingd-helper"})
	if sig := chk.Probe(context.Background()); sig.Positive {
		t.Error("daemon names must match exactly")
	}
}

func TestDaemon_noDaemons(t *testing.T) {
	chk := newDaemonCheck(processSample{Name: "bash"}, processSample{Name: "zoom.us"})
	if sig := chk.Probe(context.Background()); sig.Positive {
		t.Error("ordinary processes must not trigger the daemon check")
	}
}
