package macui

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"os/exec"
	"strconv"
	"strings"

	"github.com/veilhq/veil/internal/config"
	"github.com/veilhq/veil/internal/hotkey"
)

// SettingsWindow manages the detection and assistant configuration UI
type SettingsWindow struct {
	detection *config.DetectionConfig
	settings  *config.Settings
}

// NewSettingsWindow creates a new settings window
func NewSettingsWindow() *SettingsWindow {
	detection, err := config.LoadDetectionConfig()
	if err != nil {
		log.Printf("Failed to load detection config: %v, using defaults", err)
		detection = config.DefaultDetectionConfig()
	}

	settings, err := config.LoadSettings()
	if err != nil {
		log.Printf("Failed to load settings: %v, using defaults", err)
		settings = config.DefaultSettings()
	}

	return &SettingsWindow{
		detection: detection,
		settings:  settings,
	}
}

// SettingsFields holds the raw text the advanced-settings dialog collected,
// before any parsing or validation.
type SettingsFields struct {
	PollInterval     string
	EngageThreshold  string
	ReleaseThreshold string
	ConcealedOpacity string
	Shortcut         string
	AllowDevUpdates  bool
}

// SettingsValues is the validated form of SettingsFields.
type SettingsValues struct {
	PollInterval     int
	EngageThreshold  int
	ReleaseThreshold int
	ConcealedOpacity float64
	Shortcut         string
	AllowDevUpdates  bool
}

// ParseSettingsFields converts raw dialog input into validated values.
// maxOpacity is the current visible opacity; the concealed opacity may not
// exceed it.
func ParseSettingsFields(f SettingsFields, maxOpacity float64) (SettingsValues, error) {
	var v SettingsValues

	poll, err := strconv.Atoi(strings.TrimSpace(f.PollInterval))
	if err != nil || poll < 1 || poll > 30 {
		return v, fmt.Errorf("invalid poll interval: %q (must be 1-30)", f.PollInterval)
	}

	engage, err := strconv.Atoi(strings.TrimSpace(f.EngageThreshold))
	if err != nil || engage < 1 || engage > 10 {
		return v, fmt.Errorf("invalid engage threshold: %q (must be 1-10)", f.EngageThreshold)
	}

	release, err := strconv.Atoi(strings.TrimSpace(f.ReleaseThreshold))
	if err != nil {
		return v, fmt.Errorf("invalid release threshold: %q", f.ReleaseThreshold)
	}
	if release < engage {
		return v, fmt.Errorf("release_threshold (%d) must be >= engage_threshold (%d)", release, engage)
	}

	concealed, err := strconv.ParseFloat(strings.TrimSpace(f.ConcealedOpacity), 64)
	if err != nil || concealed < 0 || concealed > maxOpacity {
		return v, fmt.Errorf("invalid concealed opacity: %q (must be 0.0-%.2f)", f.ConcealedOpacity, maxOpacity)
	}

	shortcut := strings.TrimSpace(f.Shortcut)
	if _, err := hotkey.Parse(shortcut); err != nil {
		return v, fmt.Errorf("invalid shortcut %q: %v", shortcut, err)
	}

	v.PollInterval = poll
	v.EngageThreshold = engage
	v.ReleaseThreshold = release
	v.ConcealedOpacity = concealed
	v.Shortcut = shortcut
	v.AllowDevUpdates = f.AllowDevUpdates
	return v, nil
}

// Show displays the settings summary using AppleScript UI. The dialog offers
// "Edit Config" (opens the JSON in the default editor) and "Advanced" (a
// step-by-step form).
func (sw *SettingsWindow) Show() error {
	configPath := config.DetectionConfigPath()

	// Ensure config exists so Edit Config has something to open.
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		if err := config.SaveDetectionConfig(sw.detection); err != nil {
			log.Printf("Failed to create config: %v", err)
			return err
		}
	}

	script := fmt.Sprintf(`
tell application "System Events"
	activate

	-- Settings summary
	set settingsDialog to display dialog "VEIL SETTINGS

Sharing detection and overlay behavior.

DETECTION
Watched apps: %s
Poll interval: %d seconds
Engage threshold: %d verdicts
Release threshold: %d verdicts
Allow dev updates: %t

OVERLAY
Shortcut: %s
Opacity: %.2f
Concealed opacity: %.2f

ASSISTANT
Backend: %s
Language: %s

Choose an option:" buttons {"Edit Config", "Advanced", "Close"} default button "Close" with title "Veil Settings" giving up after 3600

	set buttonChoice to button returned of settingsDialog

	if buttonChoice is "Edit Config" then
		return "edit"
	else if buttonChoice is "Advanced" then
		return "advanced"
	else
		return "close"
	end if
end tell
`, escapeAppleScript(strings.Join(sw.enabledApps(), ", ")),
		sw.detection.PollInterval, sw.detection.EngageThreshold,
		sw.detection.ReleaseThreshold, sw.detection.AllowDevUpdates,
		escapeAppleScript(sw.settings.ActivationShortcut),
		sw.settings.Opacity, sw.settings.ConcealedOpacity,
		escapeAppleScript(sw.settings.AssistBackend),
		escapeAppleScript(sw.settings.Language))

	cmd := exec.Command("osascript", "-e", script)
	output, err := cmd.CombinedOutput()
	if err != nil {
		log.Printf("Settings dialog dismissed: %v", err)
		return nil
	}

	choice := strings.TrimSpace(string(output))
	switch choice {
	case "edit":
		// Open config file in editor
		if err := exec.Command("open", "-e", configPath).Run(); err != nil {
			log.Printf("Failed to open config in editor: %v", err)
		}
	case "advanced":
		return sw.showAdvancedSettings()
	}

	return nil
}

// showAdvancedSettings shows a form to edit individual settings
func (sw *SettingsWindow) showAdvancedSettings() error {
	script := fmt.Sprintf(`
tell application "System Events"
	activate

	-- Get Poll Interval
	set pollInterval to text returned of (display dialog "Poll Interval (1-30 seconds):" default answer "%d" with title "Veil Settings")

	-- Get Engage Threshold
	set engageThresh to text returned of (display dialog "Engage Threshold (1-10 verdicts):" default answer "%d" with title "Veil Settings")

	-- Get Release Threshold
	set releaseThresh to text returned of (display dialog "Release Threshold (>= engage, verdicts):" default answer "%d" with title "Veil Settings")

	-- Get Concealed Opacity
	set concealedOpacity to text returned of (display dialog "Concealed Opacity (0.0-1.0, fallback tier):" default answer "%.2f" with title "Veil Settings")

	-- Get Activation Shortcut
	set shortcut to text returned of (display dialog "Activation Shortcut (e.g. ctrl+alt+c):" default answer "%s" with title "Veil Settings")

	-- Get dev updates preference
	set devUpdates to button returned of (display dialog "Allow development/pre-release updates?" buttons {"No", "Yes"} default button "No" with title "Veil Settings")

	set allowDev to "false"
	if devUpdates is "Yes" then
		set allowDev to "true"
	end if

	-- Return all values separated by |
	return pollInterval & "|" & engageThresh & "|" & releaseThresh & "|" & concealedOpacity & "|" & shortcut & "|" & allowDev
end tell
`, sw.detection.PollInterval, sw.detection.EngageThreshold, sw.detection.ReleaseThreshold,
		sw.settings.ConcealedOpacity, escapeAppleScript(sw.settings.ActivationShortcut))

	cmd := exec.Command("osascript", "-e", script)
	output, err := cmd.CombinedOutput()
	if err != nil {
		log.Printf("Advanced settings cancelled: %v", err)
		return nil
	}

	// Parse the response
	result := strings.TrimSpace(string(output))
	parts := strings.Split(result, "|")
	if len(parts) != 6 {
		log.Printf("Invalid response from settings dialog: %s", result)
		return nil
	}

	fields := SettingsFields{
		PollInterval:     parts[0],
		EngageThreshold:  parts[1],
		ReleaseThreshold: parts[2],
		ConcealedOpacity: parts[3],
		Shortcut:         parts[4],
		AllowDevUpdates:  parts[5] == "true",
	}

	values, err := ParseSettingsFields(fields, sw.settings.Opacity)
	if err != nil {
		return err
	}
	return sw.SaveSettings(values)
}

// SaveSettings persists validated values into both configuration files.
func (sw *SettingsWindow) SaveSettings(v SettingsValues) error {
	sw.detection.PollInterval = v.PollInterval
	sw.detection.EngageThreshold = v.EngageThreshold
	sw.detection.ReleaseThreshold = v.ReleaseThreshold
	sw.detection.AllowDevUpdates = v.AllowDevUpdates

	if err := config.SaveDetectionConfig(sw.detection); err != nil {
		return fmt.Errorf("failed to save detection config: %v", err)
	}

	if err := sw.settings.Set(func(s *config.Settings) {
		s.ActivationShortcut = v.Shortcut
		s.ConcealedOpacity = v.ConcealedOpacity
	}); err != nil {
		return fmt.Errorf("failed to save settings: %v", err)
	}

	log.Printf("✓ Settings saved: poll=%ds, thresholds=%d/%d, shortcut=%s, concealed_opacity=%.2f",
		v.PollInterval, v.EngageThreshold, v.ReleaseThreshold, v.Shortcut, v.ConcealedOpacity)

	if err := SendNotification("Veil", "Settings Updated", "Configuration saved successfully"); err != nil {
		log.Printf("Warning: failed to send notification: %v", err)
	}

	return nil
}

// LoadSettingsFromFile reads the detection config from the JSON file
func (sw *SettingsWindow) LoadSettingsFromFile() error {
	data, err := os.ReadFile(config.DetectionConfigPath())
	if err != nil {
		if os.IsNotExist(err) {
			return nil // Will use defaults
		}
		return err
	}

	var cfg config.DetectionConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return fmt.Errorf("invalid JSON in detection config: %v", err)
	}

	sw.detection = &cfg
	return nil
}

// enabledApps lists the applications with an enabled detection rule.
func (sw *SettingsWindow) enabledApps() []string {
	apps := make([]string, 0, len(sw.detection.Rules))
	for _, rule := range sw.detection.Rules {
		if rule.Enabled {
			apps = append(apps, rule.Application)
		}
	}
	return apps
}

// GetCurrentSettings returns the current settings as a formatted string
func (sw *SettingsWindow) GetCurrentSettings() string {
	return fmt.Sprintf(`
Veil Settings:
=======================

Detection:
  Watched apps: %s
  Poll interval: %d seconds
  Engage after: %d verdicts
  Release after: %d verdicts

Overlay:
  Shortcut: %s
  Opacity: %.2f
  Concealed opacity: %.2f

Settings File: %s
`,
		strings.Join(sw.enabledApps(), ", "),
		sw.detection.PollInterval,
		sw.detection.EngageThreshold,
		sw.detection.ReleaseThreshold,
		sw.settings.ActivationShortcut,
		sw.settings.Opacity,
		sw.settings.ConcealedOpacity,
		config.DetectionConfigPath(),
	)
}
