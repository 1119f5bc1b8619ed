package detector

import "context"

// PlatformProbe exposes the window-system queries the chain needs. The
// darwin implementation uses the shared workspace plus System Events
// scripting; other platforms return a probe that reports unavailable.
type PlatformProbe interface {
	// Available reports whether the probe can query the window system at
	// all (e.g. a GUI session exists and scripting is permitted).
	Available() bool

	// OnScreenWindows lists visible windows with owner and title.
	OnScreenWindows(ctx context.Context) ([]WindowInfo, error)

	// FrontmostWindow returns the focused window, or nil when unknown.
	FrontmostWindow(ctx context.Context) (*WindowInfo, error)

	// MenuItemPresent reports whether the named application currently
	// exposes the given menu item. Conferencing clients only show items
	// like "Stop Share" while a share is active.
	MenuItemPresent(ctx context.Context, appName, item string) (bool, error)
}
