package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"runtime"
	"testing"
)

// ─────────────────────────────────────────────────────────────────────────────
// Defaults
// ─────────────────────────────────────────────────────────────────────────────

func TestDefaultSettings_isValid(t *testing.T) {
	if err := DefaultSettings().Validate(); err != nil {
		t.Errorf("defaults should validate, got: %v", err)
	}
}

func TestDefaultSettings_shortcutPerPlatform(t *testing.T) {
	s := DefaultSettings()
	want := "ctrl+shift+a"
	if runtime.GOOS == "darwin" {
		want = "ctrl+alt+c"
	}
	if s.ActivationShortcut != want {
		t.Errorf("shortcut: got %q, want %q", s.ActivationShortcut, want)
	}
}

func TestDefaultSettings_opacities(t *testing.T) {
	s := DefaultSettings()
	if s.Opacity != 0.95 {
		t.Errorf("Opacity: got %g, want 0.95", s.Opacity)
	}
	if s.ConcealedOpacity != 0.65 {
		t.Errorf("ConcealedOpacity: got %g, want 0.65", s.ConcealedOpacity)
	}
	if !s.AutoSave {
		t.Error("AutoSave should default to true")
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// Load / Save
// ─────────────────────────────────────────────────────────────────────────────

func TestLoadSettings_writesDefaultsWhenMissing(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	s, err := LoadSettings()
	if err != nil {
		t.Fatalf("LoadSettings: %v", err)
	}
	if s.Language != "Python" {
		t.Errorf("Language: got %q, want Python", s.Language)
	}

	if _, err := os.Stat(SettingsPath()); err != nil {
		t.Errorf("settings file should exist after first load: %v", err)
	}
}

func TestLoadSettings_partialFileKeepsDefaults(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	path := SettingsPath()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	// Only language present: everything else should come from defaults.
	if err := os.WriteFile(path, []byte(`{"language":"Go"}`), 0644); err != nil {
		t.Fatal(err)
	}

	s, err := LoadSettings()
	if err != nil {
		t.Fatalf("LoadSettings: %v", err)
	}
	if s.Language != "Go" {
		t.Errorf("Language: got %q, want Go", s.Language)
	}
	if s.Opacity != 0.95 {
		t.Errorf("Opacity should keep default, got %g", s.Opacity)
	}
}

func TestSettings_setAutoSaves(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	s, err := LoadSettings()
	if err != nil {
		t.Fatalf("LoadSettings: %v", err)
	}
	if err := s.Set(func(s *Settings) { s.Geometry.X = 250 }); err != nil {
		t.Fatalf("Set: %v", err)
	}

	data, err := os.ReadFile(SettingsPath())
	if err != nil {
		t.Fatal(err)
	}
	var onDisk Settings
	if err := json.Unmarshal(data, &onDisk); err != nil {
		t.Fatal(err)
	}
	if onDisk.Geometry.X != 250 {
		t.Errorf("Geometry.X on disk: got %d, want 250", onDisk.Geometry.X)
	}
}

func TestSettings_setWithoutAutoSaveDoesNotWrite(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	s, err := LoadSettings()
	if err != nil {
		t.Fatalf("LoadSettings: %v", err)
	}
	s.AutoSave = false
	before, err := os.ReadFile(SettingsPath())
	if err != nil {
		t.Fatal(err)
	}

	if err := s.Set(func(s *Settings) { s.FontSize = 18 }); err != nil {
		t.Fatalf("Set: %v", err)
	}

	after, err := os.ReadFile(SettingsPath())
	if err != nil {
		t.Fatal(err)
	}
	if string(before) != string(after) {
		t.Error("file should be untouched when auto_save is off")
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// Validate
// ─────────────────────────────────────────────────────────────────────────────

func TestSettingsValidate_emptyShortcut(t *testing.T) {
	s := DefaultSettings()
	s.ActivationShortcut = ""
	if err := s.Validate(); err == nil {
		t.Error("expected error for empty shortcut")
	}
}

func TestSettingsValidate_opacityOutOfRange(t *testing.T) {
	s := DefaultSettings()
	s.Opacity = 1.5
	if err := s.Validate(); err == nil {
		t.Error("expected error for opacity=1.5")
	}
}

func TestSettingsValidate_concealedAboveNormal(t *testing.T) {
	s := DefaultSettings()
	s.ConcealedOpacity = 0.99
	if err := s.Validate(); err == nil {
		t.Error("expected error when concealed opacity exceeds normal opacity")
	}
}

func TestSettingsValidate_tinyWindow(t *testing.T) {
	s := DefaultSettings()
	s.Geometry.Width = 10
	if err := s.Validate(); err == nil {
		t.Error("expected error for 10px wide window")
	}
}

func TestSettingsValidate_unknownBackend(t *testing.T) {
	s := DefaultSettings()
	s.AssistBackend = "bard"
	if err := s.Validate(); err == nil {
		t.Error("expected error for unknown backend")
	}
}

func TestSettingsValidate_compatNeedsBaseURL(t *testing.T) {
	s := DefaultSettings()
	s.AssistBackend = "compat"
	if err := s.Validate(); err == nil {
		t.Error("expected error for compat backend without base URL")
	}
	s.CompatBaseURL = "http://localhost:11434/v1"
	if err := s.Validate(); err != nil {
		t.Errorf("compat with base URL should validate, got: %v", err)
	}
}
