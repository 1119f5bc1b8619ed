// Package validation performs startup environment checks and produces
// user-facing troubleshooting guidance.
package validation

import (
	"fmt"
	"os"
	"os/exec"
	"runtime"
	"strings"

	"github.com/veilhq/veil/internal/config"
)

// ValidationResult contains the result of an environment check
type ValidationResult struct {
	OK       bool
	Message  string
	Issues   []string
	Warnings []string
	Fixes    []string
}

// ValidateCaptureTools checks the platform screenshot command is available.
// A missing command is a warning, not a failure: the native grab still works.
func ValidateCaptureTools() *ValidationResult {
	result := &ValidationResult{OK: true}

	var bins []string
	switch runtime.GOOS {
	case "darwin":
		bins = []string{"screencapture", "osascript"}
	case "linux":
		bins = []string{"gnome-screenshot", "import"}
	default:
		result.Message = fmt.Sprintf("no capture command expected on %s, native grab only", runtime.GOOS)
		return result
	}

	var found []string
	for _, bin := range bins {
		if _, err := exec.LookPath(bin); err == nil {
			found = append(found, bin)
		}
	}

	if len(found) == 0 {
		result.Warnings = append(result.Warnings, fmt.Sprintf("none of %s found on PATH", strings.Join(bins, ", ")))
		result.Fixes = append(result.Fixes, "Screenshots will use the slower in-process grab")
		result.Message = "no screenshot command found"
		return result
	}

	result.Message = fmt.Sprintf("capture tools available: %s", strings.Join(found, ", "))
	return result
}

// ValidateAssistCredentials checks the configured AI backend can be reached
// in principle: openai needs OPENAI_API_KEY, compat needs a base URL.
func ValidateAssistCredentials(s *config.Settings) *ValidationResult {
	result := &ValidationResult{OK: true}

	switch s.AssistBackend {
	case "openai":
		if os.Getenv("OPENAI_API_KEY") == "" {
			result.OK = false
			result.Issues = append(result.Issues, "OPENAI_API_KEY is not set")
			result.Fixes = append(result.Fixes, "Export OPENAI_API_KEY before starting veil-core")
			result.Message = "OpenAI backend selected but no API key present"
			return result
		}
		result.Message = "OpenAI credentials present"
	case "compat":
		if s.CompatBaseURL == "" {
			result.OK = false
			result.Issues = append(result.Issues, "compat backend selected without a base URL")
			result.Fixes = append(result.Fixes, `Set "compat_base_url" in settings.json, e.g. "http://localhost:11434/v1"`)
			result.Message = "compat backend has no base URL"
			return result
		}
		result.Message = fmt.Sprintf("compat backend at %s", s.CompatBaseURL)
	default:
		result.OK = false
		result.Issues = append(result.Issues, fmt.Sprintf("unknown assist backend %q", s.AssistBackend))
		result.Fixes = append(result.Fixes, `Set "assist_backend" to "openai" or "compat"`)
		result.Message = "invalid assist backend"
	}
	return result
}

// ValidateDetectionConfig runs config.Validate and maps failures to fixes.
func ValidateDetectionConfig(cfg *config.DetectionConfig) *ValidationResult {
	result := &ValidationResult{OK: true}

	if err := cfg.Validate(); err != nil {
		result.OK = false
		result.Issues = append(result.Issues, err.Error())
		result.Fixes = append(result.Fixes, fmt.Sprintf("Fix or delete %s to regenerate defaults", config.DetectionConfigPath()))
		result.Message = "detection config is invalid"
		return result
	}

	enabled := 0
	for _, r := range cfg.Rules {
		if r.Enabled {
			enabled++
		}
	}
	result.Message = fmt.Sprintf("detection config OK (%d rules enabled, %ds poll)", enabled, cfg.PollInterval)
	return result
}

// CheckEnvironment performs the full startup health check.
func CheckEnvironment(cfg *config.DetectionConfig, s *config.Settings) *ValidationResult {
	result := &ValidationResult{OK: true}
	var messages []string

	for _, check := range []*ValidationResult{
		ValidateCaptureTools(),
		ValidateAssistCredentials(s),
		ValidateDetectionConfig(cfg),
	} {
		if !check.OK {
			result.OK = false
		}
		result.Issues = append(result.Issues, check.Issues...)
		result.Warnings = append(result.Warnings, check.Warnings...)
		result.Fixes = append(result.Fixes, check.Fixes...)
		messages = append(messages, check.Message)
	}

	result.Message = strings.Join(messages, " | ")
	if result.OK {
		result.Message = "environment check passed: " + result.Message
	} else {
		result.Message = "environment check FAILED: " + result.Message
	}
	return result
}

// SuggestedFixes returns user-friendly troubleshooting for common runtime
// errors.
func SuggestedFixes(errorMsg string) []string {
	var fixes []string

	switch {
	case strings.Contains(errorMsg, "401") || strings.Contains(errorMsg, "invalid_api_key"):
		fixes = append(fixes, "The AI backend rejected the API key (401)")
		fixes = append(fixes, "")
		fixes = append(fixes, "Steps to fix:")
		fixes = append(fixes, "  1. Check OPENAI_API_KEY is set in the environment veil-core runs in")
		fixes = append(fixes, "  2. Verify the key at https://platform.openai.com/api-keys")
		fixes = append(fixes, "  3. Restart veil-core after changing the environment")

	case strings.Contains(errorMsg, "429"):
		fixes = append(fixes, "The AI backend is rate limiting requests (429)")
		fixes = append(fixes, "")
		fixes = append(fixes, "Possible causes:")
		fixes = append(fixes, "  - Quota exhausted on the account")
		fixes = append(fixes, "  - Too many analyze requests in a short window")
		fixes = append(fixes, "")
		fixes = append(fixes, "Wait a minute and try again, or configure a compat backend as fallback")

	case strings.Contains(errorMsg, "screencapture"):
		fixes = append(fixes, "The screenshot command failed")
		fixes = append(fixes, "")
		fixes = append(fixes, "Verify:")
		fixes = append(fixes, "  1. Screen Recording permission is granted in System Settings > Privacy & Security")
		fixes = append(fixes, "  2. veil-core (or the terminal that launched it) appears in the permission list")
		fixes = append(fixes, "  3. Restart veil-core after granting the permission")

	case strings.Contains(errorMsg, "not connected"):
		fixes = append(fixes, "The UI cannot reach veil-core")
		fixes = append(fixes, "")
		fixes = append(fixes, "Verify:")
		fixes = append(fixes, "  1. veil-core is running (check the pid file)")
		fixes = append(fixes, "  2. Nothing else is bound to the bridge port")
		fixes = append(fixes, "  3. Status updates will fall back to status.json while the bridge is down")

	default:
		fixes = append(fixes, fmt.Sprintf("Error: %s", errorMsg))
		fixes = append(fixes, "Run with VEIL_DEBUG=true and check the diagnostic log for details")
	}

	return fixes
}
