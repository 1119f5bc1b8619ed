package integration

import (
	"context"
	"testing"
	"time"

	"github.com/veilhq/veil/internal/conceal"
	"github.com/veilhq/veil/internal/config"
	"github.com/veilhq/veil/internal/detector"
	"github.com/veilhq/veil/internal/ipc"
	"github.com/veilhq/veil/internal/poller"
	"github.com/veilhq/veil/internal/statemachine"
	"github.com/veilhq/veil/testutil"
)

func testConfig() *config.DetectionConfig {
	cfg := config.DefaultDetectionConfig()
	cfg.EngageThreshold = 1
	cfg.ReleaseThreshold = 1
	return cfg
}

// ── Detection to concealment ─────────────────────────────────────────────────

// TestSharingVerdictTriggersConcealment wires statemachine and controller
// together the way veil-core does and drives them with scripted verdicts.
func TestSharingVerdictTriggersConcealment(t *testing.T) {
	cfg := testConfig()
	sm := statemachine.NewStateMachine(cfg)
	backend := conceal.NewMemoryBackend()
	ctrl := conceal.NewController(backend, 0.95, 0.65, nil)

	apply := func(v detector.Verdict) {
		shouldConceal, shouldReveal := sm.ProcessVerdict(v)
		if shouldConceal {
			ctrl.Engage()
			sm.MarkConcealed(v.Source)
		}
		if shouldReveal {
			ctrl.Disengage()
			sm.MarkRevealed()
		}
	}

	apply(detector.Verdict{Sharing: true, Source: detector.SourceWindowList})
	if ctrl.State() != conceal.StateConcealed {
		t.Fatalf("state after sharing verdict: %s", ctrl.State())
	}
	if !sm.IsConcealed() {
		t.Error("state machine should track concealment")
	}

	apply(detector.Verdict{Sharing: false})
	if ctrl.State() != conceal.StateNormal {
		t.Fatalf("state after absence verdict: %s", ctrl.State())
	}
	if got := ctrl.Visual().Opacity; got != 0.95 {
		t.Errorf("opacity after reveal: got %v, want 0.95", got)
	}
}

// TestFallbackTierVisibleInStatus exercises the opacity fallback end to end
// and checks the snapshot the UI would render.
func TestFallbackTierVisibleInStatus(t *testing.T) {
	testutil.TempHome(t)

	backend := conceal.NewMemoryBackend()
	backend.SupportsExclusion = false // force the opacity tier
	ctrl := conceal.NewController(backend, 0.95, 0.65, nil)
	ctrl.Engage()

	if ctrl.Technique() != conceal.TechniqueOpacity {
		t.Fatalf("technique: got %s", ctrl.Technique())
	}
	if got := ctrl.Visual().Opacity; got != 0.65 {
		t.Fatalf("concealed opacity: got %v", got)
	}

	snap := &ipc.StatusSnapshot{
		Mode:        ipc.ModeAuto,
		Concealment: ctrl.State(),
		Technique:   ctrl.Technique(),
		Visual:      ctrl.Visual(),
		Timestamp:   time.Now(),
	}
	testutil.AssertNoError(t, ipc.WriteStatus(snap), "WriteStatus")

	back, err := ipc.ReadStatus()
	testutil.AssertNoError(t, err, "ReadStatus")
	testutil.AssertEqual(t, conceal.StateConcealed, back.Concealment, "concealment round-trip")
	testutil.AssertEqual(t, conceal.TechniqueOpacity, back.Technique, "technique round-trip")
}

// ── Modes ────────────────────────────────────────────────────────────────────

func TestPausedModeIgnoresDetection(t *testing.T) {
	sm := statemachine.NewStateMachine(testConfig())
	sm.SetMode(ipc.ModePaused)

	v := detector.Verdict{Sharing: true, Source: detector.SourceDaemon}
	for i := 0; i < 10; i++ {
		shouldConceal, shouldReveal := sm.ProcessVerdict(v)
		if shouldConceal || shouldReveal {
			t.Fatalf("iteration %d: paused mode must not act", i)
		}
	}
	testutil.AssertFalse(t, sm.IsConcealed(), "concealed after paused detections")
}

func TestManualModeTracksButNeverActs(t *testing.T) {
	sm := statemachine.NewStateMachine(testConfig())
	sm.SetMode(ipc.ModeManual)

	v := detector.Verdict{Sharing: true, Source: detector.SourceDaemon}
	for i := 0; i < 3; i++ {
		if shouldConceal, _ := sm.ProcessVerdict(v); shouldConceal {
			t.Fatal("manual mode must not auto-conceal")
		}
	}
	testutil.AssertTrue(t, sm.DetectionStreak() > 0, "manual mode should still track streaks")

	// The user can still force it.
	testutil.AssertNoError(t, sm.ForceConceal(), "ForceConceal")
	testutil.AssertTrue(t, sm.IsConcealed(), "concealed after ForceConceal")
	testutil.AssertEqual(t, ipc.ModeManual, sm.CurrentMode(), "manual mode preserved by force")
}

// ── Debounce thresholds ──────────────────────────────────────────────────────

func TestEngageThresholdDebounces(t *testing.T) {
	cfg := testConfig()
	cfg.EngageThreshold = 3
	sm := statemachine.NewStateMachine(cfg)

	v := detector.Verdict{Sharing: true, Source: detector.SourceProcessScan}
	for i := 0; i < 3; i++ {
		shouldConceal, _ := sm.ProcessVerdict(v)
		if i < 2 && shouldConceal {
			t.Fatalf("iteration %d: concealed before threshold", i)
		}
		if i == 2 && !shouldConceal {
			t.Fatal("expected conceal at threshold")
		}
	}
}

// ── Poller with chain ────────────────────────────────────────────────────────

// TestPollerDrivesStateMachine runs the real poller against a scripted
// detector and verifies verdicts flow into the state machine sequentially.
func TestPollerDrivesStateMachine(t *testing.T) {
	sm := statemachine.NewStateMachine(testConfig())
	backend := conceal.NewMemoryBackend()
	ctrl := conceal.NewController(backend, 0.95, 0.65, nil)

	det := testutil.SharingScript(false, false, true, true, false)

	p := poller.New(10*time.Millisecond, det, func(v detector.Verdict) {
		shouldConceal, shouldReveal := sm.ProcessVerdict(v)
		if shouldConceal {
			ctrl.Engage()
			sm.MarkConcealed(v.Source)
		}
		if shouldReveal {
			ctrl.Disengage()
			sm.MarkRevealed()
		}
	}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	go p.Run(ctx)

	testutil.AssertEventually(t, func() bool {
		return det.Evaluations() >= 5
	}, 2*time.Second, "script playback")
	cancel()

	engages, releases := ctrl.Transitions()
	if engages != 1 {
		t.Errorf("engages: got %d, want 1", engages)
	}
	if releases != 1 {
		t.Errorf("releases: got %d, want 1", releases)
	}
}

// ── Command file round-trip ──────────────────────────────────────────────────

func TestCommandRoundTrip(t *testing.T) {
	testutil.TempHome(t)

	testutil.AssertNoError(t, ipc.WriteCommand(ipc.CmdAnalyze), "WriteCommand")

	cmd, err := ipc.ReadCommand()
	testutil.AssertNoError(t, err, "ReadCommand")
	testutil.AssertEqual(t, ipc.CmdAnalyze, cmd, "command round-trip")

	// Read-and-clear: a second read returns nothing.
	cmd, err = ipc.ReadCommand()
	testutil.AssertNoError(t, err, "second ReadCommand")
	testutil.AssertEqual(t, ipc.Command(""), cmd, "command file should be cleared")
}

func TestUnknownCommandIgnored(t *testing.T) {
	testutil.TempHome(t)

	testutil.AssertNoError(t, ipc.WriteCommand(ipc.Command("self-destruct")), "WriteCommand")

	cmd, err := ipc.ReadCommand()
	testutil.AssertNoError(t, err, "ReadCommand")
	testutil.AssertEqual(t, ipc.Command(""), cmd, "unknown command should be dropped")
}
