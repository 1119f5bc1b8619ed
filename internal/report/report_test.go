package report

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func sampleAnalysis() *Analysis {
	return &Analysis{
		SessionID:  "abc-123",
		CreatedAt:  time.Date(2025, 6, 14, 15, 4, 5, 0, time.UTC),
		Prompt:     "why is this O(n^2)?",
		Language:   "Python",
		Backend:    "openai",
		Model:      "gpt-4o",
		Screenshot: true,
		Elapsed:    2300 * time.Millisecond,
		Text:       "The nested loop over the same slice makes it quadratic.",
	}
}

func tmpPath(t *testing.T, ext string) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "analysis"+ext)
}

func TestWriteText(t *testing.T) {
	path := tmpPath(t, ".txt")
	a := sampleAnalysis()

	if err := WriteText(path, a); err != nil {
		t.Fatalf("WriteText: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	got := string(data)

	if !strings.Contains(got, "Session:  abc-123") {
		t.Errorf("missing session header; got:\n%s", got)
	}
	if !strings.Contains(got, "why is this O(n^2)?") {
		t.Errorf("missing prompt; got:\n%s", got)
	}
	if !strings.Contains(got, "quadratic") {
		t.Errorf("missing answer body; got:\n%s", got)
	}
}

func TestWriteMarkdown(t *testing.T) {
	path := tmpPath(t, ".md")
	a := sampleAnalysis()

	if err := WriteMarkdown(path, a); err != nil {
		t.Fatalf("WriteMarkdown: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	got := string(data)

	if !strings.HasPrefix(got, "# Analysis 2025-06-14 15:04\n") {
		t.Errorf("missing title; got:\n%s", got)
	}
	if !strings.Contains(got, "## Prompt") || !strings.Contains(got, "## Answer") {
		t.Errorf("missing sections; got:\n%s", got)
	}
	if !strings.Contains(got, "- Backend: openai (gpt-4o)") {
		t.Errorf("missing backend line; got:\n%s", got)
	}
}

func TestWriteMarkdown_noPrompt(t *testing.T) {
	path := tmpPath(t, ".md")
	a := sampleAnalysis()
	a.Prompt = ""

	if err := WriteMarkdown(path, a); err != nil {
		t.Fatalf("WriteMarkdown: %v", err)
	}

	data, _ := os.ReadFile(path)
	if strings.Contains(string(data), "## Prompt") {
		t.Error("prompt section should be omitted when prompt is empty")
	}
}

func TestWriteJSON(t *testing.T) {
	path := tmpPath(t, ".json")
	a := sampleAnalysis()

	if err := WriteJSON(path, a); err != nil {
		t.Fatalf("WriteJSON: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}

	var back Analysis
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if back.SessionID != a.SessionID || back.Text != a.Text {
		t.Errorf("round-trip mismatch: %+v", back)
	}
}

func TestWriteAll(t *testing.T) {
	dir := t.TempDir()
	base := filepath.Join(dir, "analysis")
	a := sampleAnalysis()

	if err := WriteAll(base, a, []string{"txt", "md", "json"}); err != nil {
		t.Fatalf("WriteAll: %v", err)
	}

	for _, ext := range []string{".txt", ".md", ".json"} {
		if _, err := os.Stat(base + ext); err != nil {
			t.Errorf("expected %s to exist: %v", ext, err)
		}
	}
}

func TestWriteAll_defaultFormat(t *testing.T) {
	base := filepath.Join(t.TempDir(), "analysis")

	if err := WriteAll(base, sampleAnalysis(), nil); err != nil {
		t.Fatalf("WriteAll: %v", err)
	}
	if _, err := os.Stat(base + ".md"); err != nil {
		t.Errorf("default format should be md: %v", err)
	}
}

func TestWriteAll_unknownFormat(t *testing.T) {
	base := filepath.Join(t.TempDir(), "analysis")

	err := WriteAll(base, sampleAnalysis(), []string{"pdf"})
	if err == nil || !strings.Contains(err.Error(), `unknown format "pdf"`) {
		t.Errorf("expected unknown format error, got %v", err)
	}
}

func TestSanitizeForFilename(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"empty", "", "Analysis"},
		{"plain", "TwoSum", "TwoSum"},
		{"illegal chars", `a/b\c:d*e?f"g<h>i|j`, "a-b-c-d-e-f-g-h-i-j"},
		{"whitespace collapse", "binary  search   tree", "binary-search-tree"},
		{"trim hyphens", "  padded  ", "padded"},
		{"only illegal", "///", "Analysis"},
		{"long input truncated", strings.Repeat("x", 80), strings.Repeat("x", 50)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := SanitizeForFilename(tt.input); got != tt.want {
				t.Errorf("SanitizeForFilename(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestBasePath(t *testing.T) {
	at := time.Date(2025, 6, 14, 15, 4, 0, 0, time.UTC)
	got := BasePath("/out", at, "Two Sum")
	want := filepath.Join("/out", "2025-06-14_1504_Two-Sum")
	if got != want {
		t.Errorf("BasePath = %q, want %q", got, want)
	}
}
