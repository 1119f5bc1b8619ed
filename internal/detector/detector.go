package detector

import (
	"context"
	"time"
)

// Check sources, in chain priority order.
const (
	SourceWindowList   = "window-list"
	SourceAutomation   = "automation"
	SourceDaemon       = "daemon"
	SourceProcessScan  = "process-scan"
	SourceCaptureGrant = "capture-grants"
	SourceOverride     = "override"
)

// Signal is the outcome of a single check probe.
type Signal struct {
	Source   string `json:"source"`
	Positive bool   `json:"positive"`
	Detail   string `json:"detail,omitempty"` // app or process that matched
	Error    string `json:"error,omitempty"`  // probe failure, treated as inconclusive
}

// Verdict is one full evaluation of the check chain.
type Verdict struct {
	Sharing     bool      `json:"sharing"`
	Source      string    `json:"source,omitempty"` // check that fired, empty when not sharing
	Detail      string    `json:"detail,omitempty"`
	Signals     []Signal  `json:"signals,omitempty"`
	EvaluatedAt time.Time `json:"evaluated_at"`
}

// WindowInfo describes one on-screen window, as much of it as the platform
// exposes without extra permissions.
type WindowInfo struct {
	PID            int32  `json:"pid,omitempty"`
	App            string `json:"app"`
	Title          string `json:"title,omitempty"`
	ExecutablePath string `json:"executable_path,omitempty"`
}

// Check is one sharing-evidence probe. Probe must honor ctx cancellation and
// report failures through Signal.Error rather than panicking; a failed probe
// is inconclusive, never positive.
type Check interface {
	Name() string
	Probe(ctx context.Context) Signal
}

// Detector evaluates whether the screen is currently being shared or
// recorded.
type Detector interface {
	Evaluate(ctx context.Context) Verdict
}
