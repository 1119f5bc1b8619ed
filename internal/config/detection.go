package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// DetectionRule describes one application the sharing detector watches.
type DetectionRule struct {
	Application   string   `json:"application"`               // "zoom", "teams", ...
	ProcessNames  []string `json:"process_names"`             // Process name patterns
	WindowHints   []string `json:"window_hints"`              // Window title substrings identifying the app
	SharingHints  []string `json:"sharing_hints"`             // Title substrings that appear only while sharing
	StopShareMenu string   `json:"stop_share_menu,omitempty"` // Menu item queried via scripting, e.g. "Stop Share"
	Enabled       bool     `json:"enabled"`
}

// DetectionConfig holds the full sharing-detection configuration.
type DetectionConfig struct {
	Rules               []DetectionRule `json:"rules"`
	DaemonNames         []string        `json:"daemon_names"`           // OS screen-sharing service processes
	PollInterval        int             `json:"poll_interval_seconds"`  // Detection polling interval
	CheckBudgetMillis   int             `json:"check_budget_ms"`        // Per-check time budget
	CPUThresholdPercent float64         `json:"cpu_threshold_percent"`  // Process-scan heuristic: CPU strictly above
	MemThresholdPercent float64         `json:"mem_threshold_percent"`  // Process-scan heuristic: memory strictly above
	EngageThreshold     int             `json:"engage_threshold"`       // Consecutive positive verdicts to conceal
	ReleaseThreshold    int             `json:"release_threshold"`      // Consecutive negative verdicts to reveal
	AllowDevUpdates     bool            `json:"allow_dev_updates,omitempty"`
}

// DefaultDetectionConfig returns the built-in rule set. The thresholds are
// empirical: a conferencing client that is actively encoding a shared screen
// sits well above 15% CPU and 2% memory on ordinary hardware.
func DefaultDetectionConfig() *DetectionConfig {
	sharing := []string{
		"is being shared",
		"screen sharing",
		"sharing your screen",
		"screen share",
		"stop sharing",
		"presenting",
		"remote control",
	}
	return &DetectionConfig{
		Rules: []DetectionRule{
			{Application: "zoom", ProcessNames: []string{"zoom", "zoom.us", "Zoom.exe", "CptHost.exe"}, WindowHints: []string{"Zoom Meeting", "Zoom Webinar"}, SharingHints: sharing, StopShareMenu: "Stop Share", Enabled: true},
			{Application: "teams", ProcessNames: []string{"Teams", "Teams.exe", "ms-teams", "msteams"}, WindowHints: []string{"Microsoft Teams"}, SharingHints: sharing, Enabled: true},
			{Application: "meet", ProcessNames: []string{"chrome", "Google Chrome", "chrome.exe", "msedge.exe", "firefox", "firefox.exe", "Safari"}, WindowHints: []string{"Meet -", "Google Meet"}, SharingHints: sharing, Enabled: true},
			{Application: "slack", ProcessNames: []string{"Slack", "slack", "slack.exe"}, WindowHints: []string{"Slack |", "Huddle"}, SharingHints: sharing, Enabled: true},
			{Application: "webex", ProcessNames: []string{"Webex", "webex", "CiscoCollabHost.exe", "atmgr.exe"}, WindowHints: []string{"Webex"}, SharingHints: sharing, Enabled: true},
			{Application: "discord", ProcessNames: []string{"Discord", "discord", "Discord.exe"}, WindowHints: []string{"Discord"}, SharingHints: sharing, Enabled: true},
			{Application: "anydesk", ProcessNames: []string{"AnyDesk", "anydesk", "AnyDesk.exe"}, WindowHints: []string{"AnyDesk"}, SharingHints: sharing, Enabled: true},
			{Application: "teamviewer", ProcessNames: []string{"TeamViewer", "teamviewer", "TeamViewer.exe"}, WindowHints: []string{"TeamViewer"}, SharingHints: sharing, Enabled: true},
		},
		DaemonNames: []string{
			"screensharingd", "ScreensharingAgent", // macOS
			"vino-server", "gnome-remote-desktop-daemon", "wayvnc", "x11vnc", // linux
			"RdpSa.exe", "rdpclip.exe", // windows
		},
		PollInterval:        2,
		CheckBudgetMillis:   1000,
		CPUThresholdPercent: 15.0,
		MemThresholdPercent: 2.0,
		EngageThreshold:     1,
		ReleaseThreshold:    1,
	}
}

// PollDuration converts the configured interval to a time.Duration.
func (c *DetectionConfig) PollDuration() time.Duration {
	return time.Duration(c.PollInterval) * time.Second
}

// CheckBudget converts the per-check budget to a time.Duration.
func (c *DetectionConfig) CheckBudget() time.Duration {
	return time.Duration(c.CheckBudgetMillis) * time.Millisecond
}

// DetectionConfigPath returns ~/.config/veil/detection.json.
func DetectionConfigPath() string {
	return filepath.Join(os.Getenv("HOME"), ".config", "veil", "detection.json")
}

// LoadDetectionConfig reads detection configuration from
// ~/.config/veil/detection.json. If the file does not exist the built-in
// defaults are written there and returned.
func LoadDetectionConfig() (*DetectionConfig, error) {
	path := DetectionConfigPath()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg := DefaultDetectionConfig()
			if err := SaveDetectionConfig(cfg); err != nil {
				return nil, fmt.Errorf("failed to write default config: %w", err)
			}
			return cfg, nil
		}
		return nil, err
	}

	var cfg DetectionConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// SaveDetectionConfig writes detection configuration to ~/.config/veil/detection.json.
func SaveDetectionConfig(cfg *DetectionConfig) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	configDir := filepath.Join(os.Getenv("HOME"), ".config", "veil")
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(filepath.Join(configDir, "detection.json"), data, 0644)
}

// RuleByApp returns the first DetectionRule whose Application field matches
// appName, or nil if no such rule exists.
func (c *DetectionConfig) RuleByApp(appName string) *DetectionRule {
	for i := range c.Rules {
		if c.Rules[i].Application == appName {
			return &c.Rules[i]
		}
	}
	return nil
}

// EnabledRules returns the subset of rules with Enabled set.
func (c *DetectionConfig) EnabledRules() []DetectionRule {
	out := make([]DetectionRule, 0, len(c.Rules))
	for _, r := range c.Rules {
		if r.Enabled {
			out = append(out, r)
		}
	}
	return out
}

// Validate checks DetectionConfig for validity.
func (c *DetectionConfig) Validate() error {
	if c.PollInterval < 1 || c.PollInterval > 30 {
		return fmt.Errorf("poll_interval_seconds must be between 1 and 30, got %d", c.PollInterval)
	}

	if c.CheckBudgetMillis < 100 || c.CheckBudgetMillis > 10000 {
		return fmt.Errorf("check_budget_ms must be between 100 and 10000, got %d", c.CheckBudgetMillis)
	}

	if c.CPUThresholdPercent <= 0 || c.CPUThresholdPercent > 100 {
		return fmt.Errorf("cpu_threshold_percent must be in (0, 100], got %g", c.CPUThresholdPercent)
	}

	if c.MemThresholdPercent <= 0 || c.MemThresholdPercent > 100 {
		return fmt.Errorf("mem_threshold_percent must be in (0, 100], got %g", c.MemThresholdPercent)
	}

	if c.EngageThreshold < 1 || c.EngageThreshold > 10 {
		return fmt.Errorf("engage_threshold must be between 1 and 10, got %d", c.EngageThreshold)
	}

	if c.ReleaseThreshold < c.EngageThreshold {
		return fmt.Errorf("release_threshold (%d) must be >= engage_threshold (%d)", c.ReleaseThreshold, c.EngageThreshold)
	}

	hasEnabled := false
	for _, rule := range c.Rules {
		if rule.Enabled {
			hasEnabled = true
			break
		}
	}
	if !hasEnabled {
		return fmt.Errorf("at least one detection rule must be enabled")
	}

	return nil
}
