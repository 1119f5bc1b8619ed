// Package hotkey parses activation shortcuts like "ctrl+alt+c" and binds
// them as system-wide hotkeys.
package hotkey

import (
	"fmt"
	"runtime"
	"strings"
)

// Modifier is a platform-neutral modifier token. Conversion to the system
// representation happens at bind time.
type Modifier string

const (
	ModCtrl  Modifier = "ctrl"
	ModAlt   Modifier = "alt"
	ModShift Modifier = "shift"
	ModSuper Modifier = "cmd"
)

// Combo is a parsed shortcut: one key plus at least one modifier. Key is a
// normalized token: a single letter or digit, "f1".."f12", or one of
// "space", "enter", "tab", "esc".
type Combo struct {
	Mods []Modifier
	Key  string
}

// String renders the combo back in shortcut syntax.
func (c Combo) String() string {
	parts := make([]string, 0, len(c.Mods)+1)
	for _, m := range c.Mods {
		parts = append(parts, string(m))
	}
	return strings.Join(append(parts, c.Key), "+")
}

// Parse interprets a shortcut description for the current platform.
// Tokens are separated by '+' and case-insensitive. "cmd" maps to the
// command key on Apple hardware and falls back to ctrl everywhere else, so
// a config written on a Mac stays usable.
func Parse(s string) (Combo, error) {
	return parseFor(s, runtime.GOOS)
}

func parseFor(s, goos string) (Combo, error) {
	var combo Combo
	seen := map[Modifier]bool{}

	for _, raw := range strings.Split(s, "+") {
		token := strings.ToLower(strings.TrimSpace(raw))
		if token == "" {
			return Combo{}, fmt.Errorf("empty token in shortcut %q", s)
		}

		if mod, ok := modifierToken(token, goos); ok {
			if !seen[mod] {
				seen[mod] = true
				combo.Mods = append(combo.Mods, mod)
			}
			continue
		}

		key, err := keyToken(token)
		if err != nil {
			return Combo{}, fmt.Errorf("shortcut %q: %w", s, err)
		}
		if combo.Key != "" {
			return Combo{}, fmt.Errorf("shortcut %q has more than one key", s)
		}
		combo.Key = key
	}

	if combo.Key == "" {
		return Combo{}, fmt.Errorf("shortcut %q has no key", s)
	}
	if len(combo.Mods) == 0 {
		return Combo{}, fmt.Errorf("shortcut %q needs at least one modifier", s)
	}
	return combo, nil
}

func modifierToken(token, goos string) (Modifier, bool) {
	switch token {
	case "ctrl", "control":
		return ModCtrl, true
	case "alt", "option", "opt":
		return ModAlt, true
	case "shift":
		return ModShift, true
	case "cmd", "command":
		if goos == "darwin" {
			return ModSuper, true
		}
		return ModCtrl, true // no command key off Apple hardware
	case "super", "win", "meta":
		return ModSuper, true
	}
	return "", false
}

func keyToken(token string) (string, error) {
	switch {
	case len(token) == 1 && (token[0] >= 'a' && token[0] <= 'z' || token[0] >= '0' && token[0] <= '9'):
		return token, nil
	case token == "space", token == "enter", token == "tab", token == "esc":
		return token, nil
	case token == "return":
		return "enter", nil
	case token == "escape":
		return "esc", nil
	}
	if len(token) >= 2 && token[0] == 'f' {
		var n int
		if _, err := fmt.Sscanf(token, "f%d", &n); err == nil && n >= 1 && n <= 12 {
			return fmt.Sprintf("f%d", n), nil
		}
	}
	return "", fmt.Errorf("unknown key %q", token)
}
