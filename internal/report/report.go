// Package report persists assistant answers to disk so a session survives
// the overlay being closed.
package report

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
	"time"
)

// Analysis is one saved question/answer exchange.
type Analysis struct {
	SessionID  string        `json:"session_id"`
	CreatedAt  time.Time     `json:"created_at"`
	Prompt     string        `json:"prompt,omitempty"`
	Language   string        `json:"language"`
	Backend    string        `json:"backend"`
	Model      string        `json:"model"`
	Screenshot bool          `json:"screenshot"`
	Elapsed    time.Duration `json:"elapsed_ms"`
	Text       string        `json:"text"`
}

// SanitizeForFilename sanitizes a string for safe use in filenames.
func SanitizeForFilename(input string) string {
	if input == "" {
		return "Analysis"
	}

	// Illegal chars: / \ : * ? " < > |
	illegalChars := regexp.MustCompile(`[\/\\:*?"<>|]`)
	sanitized := illegalChars.ReplaceAllString(input, "_")

	// Collapse whitespace/underscore runs to a single hyphen.
	whitespace := regexp.MustCompile(`[\s_]+`)
	sanitized = whitespace.ReplaceAllString(sanitized, "-")

	sanitized = strings.Trim(sanitized, "-")

	if len(sanitized) > 50 {
		sanitized = sanitized[:50]
		sanitized = strings.TrimRight(sanitized, "-")
	}

	if sanitized == "" {
		return "Analysis"
	}
	return sanitized
}

// BasePath builds the extension-less output path for an analysis:
// <dir>/YYYY-MM-DD_HHMM_<topic>.
func BasePath(dir string, createdAt time.Time, topic string) string {
	name := fmt.Sprintf("%s_%s", createdAt.Format("2006-01-02_1504"), SanitizeForFilename(topic))
	return filepath.Join(dir, name)
}
