//go:build darwin

package detector

import (
	"context"
	"fmt"
	"os/exec"
	"strings"

	"github.com/progrium/darwinkit/macos/appkit"
)

// darwinProbe answers window-system queries using the shared workspace for
// process identity and System Events scripting for window titles and menus.
// Scripting requires the Automation permission; a denial surfaces as a probe
// error and the chain falls through to the process-based checks.
type darwinProbe struct {
	workspace appkit.Workspace
}

// NewPlatformProbe returns the macOS probe.
func NewPlatformProbe() PlatformProbe {
	return &darwinProbe{workspace: appkit.Workspace_SharedWorkspace()}
}

func (p *darwinProbe) Available() bool {
	return p.workspace.Ptr() != nil
}

const windowListScript = `
tell application "System Events"
	set out to ""
	repeat with p in (every process whose visible is true)
		repeat with w in (every window of p)
			set out to out & (name of p) & tab & (name of w) & linefeed
		end repeat
	end repeat
end tell
return out`

func (p *darwinProbe) OnScreenWindows(ctx context.Context) ([]WindowInfo, error) {
	out, err := runOSA(ctx, windowListScript)
	if err != nil {
		return nil, err
	}

	var windows []WindowInfo
	for _, line := range strings.Split(out, "\n") {
		app, title, found := strings.Cut(line, "\t")
		if !found || app == "" {
			continue
		}
		windows = append(windows, WindowInfo{App: app, Title: title})
	}
	return windows, nil
}

func (p *darwinProbe) FrontmostWindow(ctx context.Context) (*WindowInfo, error) {
	frontApp := p.workspace.FrontmostApplication()
	if frontApp.Ptr() == nil {
		return nil, nil
	}
	info := &WindowInfo{
		PID: int32(frontApp.ProcessIdentifier()),
		App: frontApp.LocalizedName(),
	}
	if execURL := frontApp.ExecutableURL(); execURL.Ptr() != nil {
		info.ExecutablePath = execURL.Path()
	}

	// Window title needs scripting; the app name alone is still useful.
	out, err := runOSA(ctx, fmt.Sprintf(`
tell application "System Events"
	tell (first process whose frontmost is true)
		if (count of windows) > 0 then return name of front window
	end tell
end tell
return ""`))
	if err == nil {
		info.Title = out
	}
	return info, nil
}

const menuItemScript = `
ignoring case
	tell application "System Events"
		repeat with p in (every process whose name contains "%s")
			tell p
				repeat with mbi in menu bar items of menu bar 1
					if exists (menu item "%s" of menu 1 of mbi) then return "present"
				end repeat
			end tell
		end repeat
	end tell
end ignoring
return "absent"`

func (p *darwinProbe) MenuItemPresent(ctx context.Context, appName, item string) (bool, error) {
	script := fmt.Sprintf(menuItemScript, sanitizeOSA(appName), sanitizeOSA(item))
	out, err := runOSA(ctx, script)
	if err != nil {
		return false, err
	}
	return strings.Contains(out, "present"), nil
}

// runOSA executes an AppleScript snippet and returns trimmed stdout.
func runOSA(ctx context.Context, script string) (string, error) {
	cmd := exec.CommandContext(ctx, "osascript", "-e", script)
	out, err := cmd.Output()
	if err != nil {
		return "", fmt.Errorf("osascript failed: %w", err)
	}
	return strings.TrimSpace(string(out)), nil
}

// sanitizeOSA strips characters that would escape an AppleScript string
// literal. Inputs come from our own config, this guards typos not attacks.
func sanitizeOSA(s string) string {
	s = strings.ReplaceAll(s, `\`, "")
	return strings.ReplaceAll(s, `"`, "")
}
