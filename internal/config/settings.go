package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sync"
)

// WindowGeometry is the persisted overlay position and size.
type WindowGeometry struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Settings holds user preferences for the assistant. All writes go through
// Set so that auto-save stays consistent.
type Settings struct {
	ActivationShortcut string         `json:"activation_shortcut"`
	Opacity            float64        `json:"opacity"`           // Overlay opacity while visible
	ConcealedOpacity   float64        `json:"concealed_opacity"` // Fallback opacity while concealed
	Geometry           WindowGeometry `json:"geometry"`
	Language           string         `json:"language"`
	FontSize           int            `json:"font_size"`
	MaxTokens          int            `json:"max_tokens"`
	Theme              string         `json:"theme"`
	AutoSave           bool           `json:"auto_save"`
	AssistBackend      string         `json:"assist_backend"`           // "openai" or "compat"
	CompatBaseURL      string         `json:"compat_base_url,omitempty"`

	mu   sync.Mutex
	path string
}

// DefaultSettings returns platform-appropriate defaults. The activation
// shortcut differs because ctrl+alt+c collides with common Windows IME
// bindings.
func DefaultSettings() *Settings {
	shortcut := "ctrl+shift+a"
	if runtime.GOOS == "darwin" {
		shortcut = "ctrl+alt+c"
	}
	return &Settings{
		ActivationShortcut: shortcut,
		Opacity:            0.95,
		ConcealedOpacity:   0.65,
		Geometry:           WindowGeometry{X: 100, Y: 100, Width: 800, Height: 600},
		Language:           "Python",
		FontSize:           12,
		MaxTokens:          1500,
		Theme:              "dark",
		AutoSave:           true,
		AssistBackend:      "openai",
	}
}

// SettingsPath returns the on-disk location of the settings file.
func SettingsPath() string {
	return filepath.Join(os.Getenv("HOME"), ".config", "veil", "settings.json")
}

// LoadSettings reads settings from ~/.config/veil/settings.json. A missing
// file is not an error: defaults are written out and returned, so first run
// leaves a file the user can edit.
func LoadSettings() (*Settings, error) {
	path := SettingsPath()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			s := DefaultSettings()
			s.path = path
			if err := s.Save(); err != nil {
				return nil, fmt.Errorf("failed to write default settings: %w", err)
			}
			return s, nil
		}
		return nil, err
	}

	s := DefaultSettings() // unknown fields keep their defaults
	if err := json.Unmarshal(data, s); err != nil {
		return nil, fmt.Errorf("failed to parse settings: %w", err)
	}
	s.path = path

	if err := s.Validate(); err != nil {
		return nil, err
	}

	return s, nil
}

// Save writes the settings to disk with indentation.
func (s *Settings) Save() error {
	if err := s.Validate(); err != nil {
		return err
	}

	path := s.path
	if path == "" {
		path = SettingsPath()
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}

// Set applies a mutation under the settings lock and, when auto-save is
// enabled, persists the result immediately.
func (s *Settings) Set(mutate func(*Settings)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	mutate(s)
	if !s.AutoSave {
		return nil
	}
	return s.Save()
}

// Validate checks Settings for usable values.
func (s *Settings) Validate() error {
	if s.ActivationShortcut == "" {
		return fmt.Errorf("activation_shortcut must not be empty")
	}
	if s.Opacity < 0.1 || s.Opacity > 1.0 {
		return fmt.Errorf("opacity must be between 0.1 and 1.0, got %g", s.Opacity)
	}
	if s.ConcealedOpacity < 0.0 || s.ConcealedOpacity > s.Opacity {
		return fmt.Errorf("concealed_opacity must be between 0 and opacity (%g), got %g", s.Opacity, s.ConcealedOpacity)
	}
	if s.Geometry.Width < 200 || s.Geometry.Height < 150 {
		return fmt.Errorf("window size too small: %dx%d", s.Geometry.Width, s.Geometry.Height)
	}
	if s.MaxTokens < 1 {
		return fmt.Errorf("max_tokens must be positive, got %d", s.MaxTokens)
	}
	switch s.AssistBackend {
	case "openai", "compat":
	default:
		return fmt.Errorf("unknown assist_backend %q", s.AssistBackend)
	}
	if s.AssistBackend == "compat" && s.CompatBaseURL == "" {
		return fmt.Errorf("compat_base_url required when assist_backend is compat")
	}
	return nil
}
