package testutil

import (
	"context"
	"sync"
	"testing"

	"github.com/veilhq/veil/internal/detector"
)

// TempHome points HOME at a fresh temp dir so config and cache files land in
// an isolated location. Returns the dir.
func TempHome(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("HOME", dir)
	return dir
}

// ScriptedDetector returns a queued sequence of verdicts, repeating the last
// one once the script is exhausted.
type ScriptedDetector struct {
	mu      sync.Mutex
	script  []detector.Verdict
	pos     int
	evalled int
}

// NewScriptedDetector builds a detector that will play back verdicts in order.
func NewScriptedDetector(verdicts ...detector.Verdict) *ScriptedDetector {
	return &ScriptedDetector{script: verdicts}
}

// SharingScript is shorthand for building a verdict sequence from booleans.
func SharingScript(sharing ...bool) *ScriptedDetector {
	verdicts := make([]detector.Verdict, len(sharing))
	for i, s := range sharing {
		verdicts[i] = detector.Verdict{Sharing: s}
		if s {
			verdicts[i].Source = detector.SourceWindowList
		}
	}
	return NewScriptedDetector(verdicts...)
}

// Evaluate implements detector.Detector.
func (d *ScriptedDetector) Evaluate(ctx context.Context) detector.Verdict {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.evalled++
	if len(d.script) == 0 {
		return detector.Verdict{}
	}
	v := d.script[d.pos]
	if d.pos < len(d.script)-1 {
		d.pos++
	}
	return v
}

// Evaluations returns how many times Evaluate has been called.
func (d *ScriptedDetector) Evaluations() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.evalled
}
