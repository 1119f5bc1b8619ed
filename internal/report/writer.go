package report

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// WriteText writes a plain text rendering of the analysis. The file is
// written atomically (temp file + rename) to avoid partial writes.
func WriteText(path string, a *Analysis) error {
	var b strings.Builder
	fmt.Fprintf(&b, "Session:  %s\n", a.SessionID)
	fmt.Fprintf(&b, "Date:     %s\n", a.CreatedAt.Format("2006-01-02 15:04:05"))
	fmt.Fprintf(&b, "Language: %s\n", a.Language)
	fmt.Fprintf(&b, "Backend:  %s (%s)\n", a.Backend, a.Model)
	if a.Prompt != "" {
		fmt.Fprintf(&b, "\nPrompt:\n%s\n", a.Prompt)
	}
	fmt.Fprintf(&b, "\n%s\n", a.Text)
	return atomicWrite(path, []byte(b.String()))
}

// WriteMarkdown writes the analysis as a Markdown document with a metadata
// header and the answer body verbatim.
func WriteMarkdown(path string, a *Analysis) error {
	var b strings.Builder
	fmt.Fprintf(&b, "# Analysis %s\n\n", a.CreatedAt.Format("2006-01-02 15:04"))
	fmt.Fprintf(&b, "- Session: `%s`\n", a.SessionID)
	fmt.Fprintf(&b, "- Language: %s\n", a.Language)
	fmt.Fprintf(&b, "- Backend: %s (%s)\n", a.Backend, a.Model)
	fmt.Fprintf(&b, "- Screenshot: %v\n", a.Screenshot)
	if a.Prompt != "" {
		fmt.Fprintf(&b, "\n## Prompt\n\n%s\n", a.Prompt)
	}
	fmt.Fprintf(&b, "\n## Answer\n\n%s\n", a.Text)
	return atomicWrite(path, []byte(b.String()))
}

// WriteJSON writes the analysis as indented JSON, suitable for tooling.
func WriteJSON(path string, a *Analysis) error {
	data, err := json.MarshalIndent(a, "", "  ")
	if err != nil {
		return fmt.Errorf("encode analysis: %w", err)
	}
	return atomicWrite(path, append(data, '\n'))
}

// WriteAll writes the analysis in every requested format. basePath is the
// file path without extension. Supported formats: "txt", "md", "json". If
// formats is nil or empty, defaults to ["md"]. Returns a combined error
// listing all failures.
func WriteAll(basePath string, a *Analysis, formats []string) error {
	if len(formats) == 0 {
		formats = []string{"md"}
	}
	var errs []string
	for _, f := range formats {
		var err error
		switch f {
		case "txt":
			err = WriteText(basePath+".txt", a)
		case "md":
			err = WriteMarkdown(basePath+".md", a)
		case "json":
			err = WriteJSON(basePath+".json", a)
		default:
			errs = append(errs, fmt.Sprintf("unknown format %q", f))
			continue
		}
		if err != nil {
			errs = append(errs, fmt.Sprintf("%s: %v", f, err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("report write errors: %s", strings.Join(errs, "; "))
	}
	return nil
}

// atomicWrite writes data to path atomically using a temp file + rename.
func atomicWrite(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("creating directory %s: %w", dir, err)
	}

	tmpFile, err := os.CreateTemp(dir, "report-*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmpFile.Name()

	// Ensure cleanup on error.
	defer func() {
		if tmpFile != nil {
			tmpFile.Close()
			os.Remove(tmpPath)
		}
	}()

	if _, err := tmpFile.Write(data); err != nil {
		return fmt.Errorf("writing report: %w", err)
	}
	if err := tmpFile.Sync(); err != nil {
		return fmt.Errorf("syncing report: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("closing report: %w", err)
	}
	tmpFile = nil // prevent defer cleanup

	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("renaming report: %w", err)
	}
	return nil
}
