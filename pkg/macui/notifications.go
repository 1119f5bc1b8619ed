package macui

import (
	"fmt"
	"log"
	"os"
	"os/exec"
	"path/filepath"
)

// getLogoPath returns the path to the Veil logo
func getLogoPath() string {
	paths := []string{
		filepath.Join(os.Getenv("HOME"), ".local", "share", "veil", "logo.png"),
		filepath.Join(os.Getenv("HOME"), ".local", "share", "veil", "veil.png"),
		"/usr/local/share/veil/logo.png",
	}
	for _, path := range paths {
		if info, err := os.Stat(path); err == nil && !info.IsDir() {
			return path
		}
	}
	// Fallback: default path, created by the install script.
	return filepath.Join(os.Getenv("HOME"), ".local", "share", "veil", "logo.png")
}

// SendNotification sends a native macOS notification using osascript.
func SendNotification(title, subtitle, message string) error {
	script := fmt.Sprintf(`display notification "%s" with title "%s" subtitle "%s"`,
		escapeAppleScript(message),
		escapeAppleScript(title),
		escapeAppleScript(subtitle))

	cmd := exec.Command("osascript", "-e", script)
	output, err := cmd.CombinedOutput()
	if err != nil {
		log.Printf("Error sending notification: %v, output: %s", err, output)
		return err
	}
	return nil
}

// SendErrorNotification shows a dismissable error dialog with guidance.
func SendErrorNotification(appName, errorMsg string) error {
	script := fmt.Sprintf(`
tell app "System Events"
	activate
	display dialog "%s" buttons {"Open Settings", "Dismiss"} default button "Dismiss" with title "%s" with icon caution giving up after 5
end tell
`, escapeAppleScript(errorMsg), appName)

	cmd := exec.Command("osascript", "-e", script)
	output, err := cmd.CombinedOutput()
	if err != nil {
		// Dialog dismissal is not an error.
		log.Printf("Dialog result: %s", output)
	}
	return nil
}

// escapeAppleScript escapes special characters in AppleScript strings
func escapeAppleScript(s string) string {
	result := ""
	for _, ch := range s {
		switch ch {
		case '"':
			result += "\\\""
		case '\\':
			result += "\\\\"
		case '\n':
			result += "\\n"
		case '\r':
			result += "\\r"
		case '\t':
			result += "\\t"
		default:
			result += string(ch)
		}
	}
	return result
}
