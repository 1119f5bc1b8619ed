package ipc

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/veilhq/veil/internal/conceal"
	"github.com/veilhq/veil/internal/detector"
)

// OperatingMode represents user control mode for concealment behavior
type OperatingMode string

const (
	ModeAuto   OperatingMode = "auto"   // Detection-driven concealment
	ModeManual OperatingMode = "manual" // User-controlled concealment only
	ModePaused OperatingMode = "paused" // All detection suspended
)

// StatusSnapshot represents the complete daemon state at a point in time
type StatusSnapshot struct {
	Mode            OperatingMode       `json:"mode"`
	Verdict         detector.Verdict    `json:"verdict"`                 // Last detection verdict
	Concealment     conceal.State       `json:"concealment"`             // Controller state
	Technique       conceal.Technique   `json:"technique"`               // Concealment tier in effect
	Visual          conceal.VisualState `json:"visual"`                  // Applied window presentation
	WindowVisible   bool                `json:"window_visible"`          // Overlay shown at all
	DetectionStreak int                 `json:"detection_streak"`        // Consecutive positive verdicts
	AbsenceStreak   int                 `json:"absence_streak"`          // Consecutive negative verdicts
	AssistBusy      bool                `json:"assist_busy"`             // AI request in flight
	AnalysisText    string              `json:"analysis_text,omitempty"` // Latest assist answer, shown on the overlay
	Override        *bool               `json:"override,omitempty"`      // Dev detection override
	LastAction      string              `json:"last_action"`
	LastError       string              `json:"last_error"`
	SessionID       string              `json:"session_id"`
	Timestamp       time.Time           `json:"timestamp"`
}

// WriteStatus persists StatusSnapshot to ~/.cache/veil/status.json using atomic write
func WriteStatus(status *StatusSnapshot) error {
	cacheDir := filepath.Join(os.Getenv("HOME"), ".cache", "veil")
	if err := os.MkdirAll(cacheDir, 0755); err != nil {
		return err
	}

	statusPath := filepath.Join(cacheDir, "status.json")
	return atomicWriteJSON(statusPath, status)
}

// StatusPath returns the status file location, for watchers.
func StatusPath() string {
	return filepath.Join(os.Getenv("HOME"), ".cache", "veil", "status.json")
}

// ReadStatus loads StatusSnapshot from ~/.cache/veil/status.json
func ReadStatus() (*StatusSnapshot, error) {
	data, err := os.ReadFile(StatusPath())
	if err != nil {
		return nil, err
	}

	var status StatusSnapshot
	if err := json.Unmarshal(data, &status); err != nil {
		return nil, err
	}

	return &status, nil
}

// atomicWriteJSON writes data to a file atomically using temp file + rename
func atomicWriteJSON(path string, data interface{}) error {
	// Create temp file in same directory
	dir := filepath.Dir(path)
	tmpFile, err := os.CreateTemp(dir, "status-*.tmp")
	if err != nil {
		return err
	}
	tmpPath := tmpFile.Name()

	// Ensure cleanup on error
	defer func() {
		if tmpFile != nil {
			tmpFile.Close()
			os.Remove(tmpPath)
		}
	}()

	// Write JSON with indentation for readability
	encoder := json.NewEncoder(tmpFile)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(data); err != nil {
		return err
	}

	// Sync to disk before rename
	if err := tmpFile.Sync(); err != nil {
		return err
	}

	// Close file before rename
	if err := tmpFile.Close(); err != nil {
		return err
	}
	tmpFile = nil // Prevent defer cleanup

	// Atomic rename
	return os.Rename(tmpPath, path)
}
