package statemachine

import (
	"testing"
	"time"

	"github.com/veilhq/veil/internal/config"
	"github.com/veilhq/veil/internal/detector"
	"github.com/veilhq/veil/internal/ipc"
)

func testConfig(engage, release int) *config.DetectionConfig {
	return &config.DetectionConfig{
		EngageThreshold:  engage,
		ReleaseThreshold: release,
		PollInterval:     2,
	}
}

func verdict(sharing bool) detector.Verdict {
	v := detector.Verdict{Sharing: sharing, EvaluatedAt: time.Now()}
	if sharing {
		v.Source = detector.SourceDaemon
	}
	return v
}

func TestProcessVerdict_EngageThreshold(t *testing.T) {
	tests := []struct {
		name            string
		engageThreshold int
		sequence        []bool // sequence of sharing verdicts
		wantConcealAt   int    // index where concealment should trigger (-1 if never)
	}{
		{
			name:            "engages at threshold 3",
			engageThreshold: 3,
			sequence:        []bool{false, true, true, true, false},
			wantConcealAt:   3, // 0-indexed: 4th item (3 consecutive detections)
		},
		{
			name:            "engages immediately at threshold 1",
			engageThreshold: 1,
			sequence:        []bool{false, true, false},
			wantConcealAt:   1,
		},
		{
			name:            "interrupted streak resets",
			engageThreshold: 3,
			sequence:        []bool{true, true, false, true, true, true},
			wantConcealAt:   5, // Streak resets at index 2
		},
		{
			name:            "never reaches threshold",
			engageThreshold: 5,
			sequence:        []bool{true, true, false, true, true},
			wantConcealAt:   -1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sm := NewStateMachine(testConfig(tt.engageThreshold, 6))

			for i, sharing := range tt.sequence {
				shouldConceal, shouldReveal := sm.ProcessVerdict(verdict(sharing))

				if shouldConceal {
					if tt.wantConcealAt == -1 {
						t.Errorf("unexpected conceal at index %d", i)
					} else if i != tt.wantConcealAt {
						t.Errorf("concealed at index %d, want %d", i, tt.wantConcealAt)
					}
					sm.MarkConcealed(detector.SourceDaemon)
				}

				if shouldReveal {
					t.Errorf("unexpected reveal at index %d", i)
				}
			}

			if tt.wantConcealAt != -1 && !sm.IsConcealed() {
				t.Error("expected concealment, but state machine is not concealed")
			}
		})
	}
}

func TestProcessVerdict_ReleaseThreshold(t *testing.T) {
	tests := []struct {
		name             string
		releaseThreshold int
		sequence         []bool
		wantRevealAt     int
	}{
		{
			name:             "reveals after threshold absences",
			releaseThreshold: 3,
			sequence:         []bool{false, false, false},
			wantRevealAt:     2,
		},
		{
			name:             "reveals immediately at threshold 1",
			releaseThreshold: 1,
			sequence:         []bool{false},
			wantRevealAt:     0,
		},
		{
			name:             "positive verdict resets absence streak",
			releaseThreshold: 3,
			sequence:         []bool{false, false, true, false, false, false},
			wantRevealAt:     5,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sm := NewStateMachine(testConfig(1, tt.releaseThreshold))
			sm.MarkConcealed(detector.SourceWindowList)

			for i, sharing := range tt.sequence {
				_, shouldReveal := sm.ProcessVerdict(verdict(sharing))
				if shouldReveal {
					if i != tt.wantRevealAt {
						t.Errorf("revealed at index %d, want %d", i, tt.wantRevealAt)
					}
					sm.MarkRevealed()
				}
			}

			if sm.IsConcealed() {
				t.Error("expected reveal, but state machine is still concealed")
			}
		})
	}
}

func TestProcessVerdict_flipOnChangeWithDefaultThresholds(t *testing.T) {
	sm := NewStateMachine(testConfig(1, 1))

	conceal, _ := sm.ProcessVerdict(verdict(true))
	if !conceal {
		t.Fatal("first positive verdict should conceal at threshold 1")
	}
	sm.MarkConcealed(detector.SourceDaemon)

	// Unchanged verdict must not request another transition.
	conceal, reveal := sm.ProcessVerdict(verdict(true))
	if conceal || reveal {
		t.Error("repeated positive verdict should be a no-op while concealed")
	}

	_, reveal = sm.ProcessVerdict(verdict(false))
	if !reveal {
		t.Fatal("first negative verdict should reveal at threshold 1")
	}
	sm.MarkRevealed()

	conceal, reveal = sm.ProcessVerdict(verdict(false))
	if conceal || reveal {
		t.Error("repeated negative verdict should be a no-op while normal")
	}
}

func TestProcessVerdict_pausedModeBypassesDetection(t *testing.T) {
	sm := NewStateMachine(testConfig(1, 1))
	sm.SetMode(ipc.ModePaused)

	conceal, reveal := sm.ProcessVerdict(verdict(true))
	if conceal || reveal {
		t.Error("paused mode must ignore verdicts")
	}
	if sm.DetectionStreak() != 0 {
		t.Error("paused mode should not track streaks")
	}
}

func TestProcessVerdict_manualModeTracksButNeverActs(t *testing.T) {
	sm := NewStateMachine(testConfig(1, 1))
	sm.SetMode(ipc.ModeManual)

	for i := 0; i < 3; i++ {
		conceal, reveal := sm.ProcessVerdict(verdict(true))
		if conceal || reveal {
			t.Fatal("manual mode must never auto-conceal")
		}
	}
	if sm.DetectionStreak() != 3 {
		t.Errorf("manual mode should track streaks for display, got %d", sm.DetectionStreak())
	}
}

func TestForceConceal_switchesToPaused(t *testing.T) {
	sm := NewStateMachine(testConfig(1, 1))

	if err := sm.ForceConceal(); err != nil {
		t.Fatalf("ForceConceal: %v", err)
	}
	if !sm.IsConcealed() {
		t.Error("should be concealed after force")
	}
	if sm.CurrentMode() != ipc.ModePaused {
		t.Errorf("mode should switch to paused to prevent auto-reveal, got %v", sm.CurrentMode())
	}
	if sm.ConcealedBy() != "manual" {
		t.Errorf("concealed-by: got %q, want manual", sm.ConcealedBy())
	}
}

func TestForceConceal_whileConcealed(t *testing.T) {
	sm := NewStateMachine(testConfig(1, 1))
	sm.MarkConcealed(detector.SourceDaemon)

	if err := sm.ForceConceal(); err == nil {
		t.Error("expected error when already concealed")
	}
}

func TestForceConceal_manualModeStaysManual(t *testing.T) {
	sm := NewStateMachine(testConfig(1, 1))
	sm.SetMode(ipc.ModeManual)

	if err := sm.ForceConceal(); err != nil {
		t.Fatalf("ForceConceal: %v", err)
	}
	if sm.CurrentMode() != ipc.ModeManual {
		t.Errorf("manual mode should be preserved, got %v", sm.CurrentMode())
	}
}

func TestForceReveal(t *testing.T) {
	sm := NewStateMachine(testConfig(1, 1))

	if err := sm.ForceReveal(); err == nil {
		t.Error("expected error when not concealed")
	}

	sm.MarkConcealed(detector.SourceDaemon)
	if err := sm.ForceReveal(); err != nil {
		t.Fatalf("ForceReveal: %v", err)
	}
	if sm.IsConcealed() {
		t.Error("should be revealed")
	}
}

func TestToggleMode(t *testing.T) {
	sm := NewStateMachine(testConfig(1, 1))

	if sm.CurrentMode() != ipc.ModeAuto {
		t.Fatalf("initial mode should be auto, got %v", sm.CurrentMode())
	}
	sm.ToggleMode()
	if sm.CurrentMode() != ipc.ModePaused {
		t.Errorf("toggle from auto should give paused, got %v", sm.CurrentMode())
	}
	sm.ToggleMode()
	if sm.CurrentMode() != ipc.ModeAuto {
		t.Errorf("toggle from paused should give auto, got %v", sm.CurrentMode())
	}
}

func TestConcealedDuration(t *testing.T) {
	sm := NewStateMachine(testConfig(1, 1))

	if sm.ConcealedDuration() != 0 {
		t.Error("duration should be zero while normal")
	}
	sm.MarkConcealed(detector.SourceDaemon)
	time.Sleep(10 * time.Millisecond)
	if sm.ConcealedDuration() <= 0 {
		t.Error("duration should grow while concealed")
	}
	sm.MarkRevealed()
	if sm.ConcealedDuration() != 0 {
		t.Error("duration should reset after reveal")
	}
}

func TestMarkConcealed_resetsStreaks(t *testing.T) {
	sm := NewStateMachine(testConfig(3, 3))

	sm.ProcessVerdict(verdict(true))
	sm.ProcessVerdict(verdict(true))
	sm.MarkConcealed(detector.SourceProcessScan)

	if sm.DetectionStreak() != 0 || sm.AbsenceStreak() != 0 {
		t.Error("streaks should reset on concealment")
	}
	if sm.ConcealedBy() != detector.SourceProcessScan {
		t.Errorf("concealed-by: got %q", sm.ConcealedBy())
	}
}

func TestSessionID_freshPerConcealment(t *testing.T) {
	sm := NewStateMachine(testConfig(1, 1))

	initial := sm.SessionID()
	if initial == "" {
		t.Fatal("session id should be set at construction")
	}

	sm.MarkConcealed(detector.SourceDaemon)
	first := sm.SessionID()
	if first == initial {
		t.Error("concealment should generate a new session id")
	}

	sm.MarkRevealed()
	if sm.SessionID() != first {
		t.Error("reveal should keep the episode's session id for correlation")
	}

	sm.MarkConcealed(detector.SourceDaemon)
	if sm.SessionID() == first {
		t.Error("each concealment episode gets its own session id")
	}
}
