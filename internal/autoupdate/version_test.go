package autoupdate

import "testing"

func TestNormalizeVersion(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"0.1.0", "0.1.0"},
		{"0.1.0-dirty", "0.1.0"},
		{"0.1.0-4-ga1b2c3d", "0.1.0"},
		{"0.1.0-4-ga1b2c3d-dirty", "0.1.0"},
		// Real pre-release suffixes survive normalization.
		{"0.2.0-rc1", "0.2.0-rc1"},
		{"1.0.0-beta.1", "1.0.0-beta.1"},
		{"0.1.0-dev", "0.1.0-dev"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := normalizeVersion(tt.input); got != tt.want {
				t.Errorf("normalizeVersion(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestIsNewer(t *testing.T) {
	tests := []struct {
		candidate string
		current   string
		want      bool
	}{
		{"0.2.0", "0.1.0", true},
		{"0.1.0", "0.2.0", false},
		{"1.0.0", "0.9.9", true},
		{"0.1.0", "0.1.0", false},
		{"0.1.1", "0.1.0", true},
		{"0.2.0-rc1", "0.1.0", true},
		// A suffixed patch component compares as its numeric prefix.
		{"0.2.0", "0.2.0-3-ga1b2c3d-dirty", false},
	}

	for _, tt := range tests {
		t.Run(tt.candidate+" vs "+tt.current, func(t *testing.T) {
			if got := isNewer(tt.candidate, tt.current); got != tt.want {
				t.Errorf("isNewer(%q, %q) = %v, want %v", tt.candidate, tt.current, got, tt.want)
			}
		})
	}
}
