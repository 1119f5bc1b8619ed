package statemachine

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/veilhq/veil/internal/config"
	"github.com/veilhq/veil/internal/detector"
	"github.com/veilhq/veil/internal/ipc"
)

// StateMachine debounces sharing verdicts into concealment decisions. With
// both thresholds at 1 (the default) decisions track verdict flips exactly;
// higher thresholds absorb flapping detections.
type StateMachine struct {
	config          *config.DetectionConfig
	currentMode     ipc.OperatingMode
	concealed       bool
	concealedSince  time.Time
	concealedBy     string // detection source that triggered concealment
	detectionStreak int    // Consecutive positive verdicts
	absenceStreak   int    // Consecutive negative verdicts
	sessionID       string // regenerated on each concealment episode
}

// NewStateMachine creates a state machine with given config
func NewStateMachine(cfg *config.DetectionConfig) *StateMachine {
	return &StateMachine{
		config:      cfg,
		currentMode: ipc.ModeAuto, // Start in auto mode
		concealed:   false,
		sessionID:   uuid.NewString(),
	}
}

// ProcessVerdict evaluates a detection verdict and returns the action to take.
// Returns: shouldConceal, shouldReveal
func (sm *StateMachine) ProcessVerdict(v detector.Verdict) (bool, bool) {
	// Paused mode: bypass detection entirely
	if sm.currentMode == ipc.ModePaused {
		return false, false
	}

	// Manual mode: update streaks for UI display but never auto-conceal
	if sm.currentMode == ipc.ModeManual {
		if v.Sharing {
			sm.absenceStreak = 0
			sm.detectionStreak++
		} else {
			sm.detectionStreak = 0
			sm.absenceStreak++
		}
		return false, false
	}

	if v.Sharing {
		sm.absenceStreak = 0
		sm.detectionStreak++

		if !sm.concealed && sm.detectionStreak >= sm.config.EngageThreshold {
			return true, false
		}
		return false, false
	}

	sm.detectionStreak = 0
	sm.absenceStreak++

	if sm.concealed && sm.absenceStreak >= sm.config.ReleaseThreshold {
		return false, true
	}
	return false, false
}

// MarkConcealed updates state to reflect the controller engaging. Each
// concealment episode gets a fresh session ID for log correlation.
func (sm *StateMachine) MarkConcealed(source string) {
	sm.concealed = true
	sm.sessionID = uuid.NewString()
	sm.concealedBy = source
	sm.concealedSince = time.Now()
	sm.detectionStreak = 0
	sm.absenceStreak = 0
}

// MarkRevealed updates state to reflect the controller disengaging.
func (sm *StateMachine) MarkRevealed() {
	sm.concealed = false
	sm.concealedBy = ""
	sm.concealedSince = time.Time{}
	sm.detectionStreak = 0
	sm.absenceStreak = 0
}

// ForceConceal manually conceals (from command interface)
func (sm *StateMachine) ForceConceal() error {
	if sm.concealed {
		return fmt.Errorf("already concealed")
	}
	sm.MarkConcealed("manual")
	// In manual mode keep manual mode, otherwise switch to paused to prevent auto-reveal
	if sm.currentMode != ipc.ModeManual {
		sm.currentMode = ipc.ModePaused
	}
	return nil
}

// ForceReveal manually reveals (from command interface)
func (sm *StateMachine) ForceReveal() error {
	if !sm.concealed {
		return fmt.Errorf("not concealed")
	}
	sm.MarkRevealed()
	return nil
}

// ToggleMode switches between auto and paused modes
func (sm *StateMachine) ToggleMode() {
	if sm.currentMode == ipc.ModeAuto {
		sm.currentMode = ipc.ModePaused
	} else {
		sm.currentMode = ipc.ModeAuto
	}
}

// SetMode explicitly sets the operating mode
func (sm *StateMachine) SetMode(mode ipc.OperatingMode) {
	sm.currentMode = mode
}

// IsConcealed returns current concealment status
func (sm *StateMachine) IsConcealed() bool {
	return sm.concealed
}

// CurrentMode returns current operating mode
func (sm *StateMachine) CurrentMode() ipc.OperatingMode {
	return sm.currentMode
}

// DetectionStreak returns current detection streak count
func (sm *StateMachine) DetectionStreak() int {
	return sm.detectionStreak
}

// AbsenceStreak returns current absence streak count
func (sm *StateMachine) AbsenceStreak() int {
	return sm.absenceStreak
}

// ConcealedDuration returns how long the overlay has been concealed
func (sm *StateMachine) ConcealedDuration() time.Duration {
	if !sm.concealed {
		return 0
	}
	return time.Since(sm.concealedSince)
}

// ConcealedBy returns the detection source that triggered concealment
func (sm *StateMachine) ConcealedBy() string {
	return sm.concealedBy
}

// SessionID identifies the current concealment episode.
func (sm *StateMachine) SessionID() string {
	return sm.sessionID
}
