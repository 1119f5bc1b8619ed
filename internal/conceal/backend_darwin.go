//go:build darwin

package conceal

import (
	"fmt"

	"github.com/progrium/darwinkit/macos/appkit"
)

// WindowSharingNone excludes the window from capture and session sharing
// while leaving it fully visible on the local display.
type darwinBackend struct {
	win appkit.Window
}

// NewWindowBackend wraps an AppKit window.
func NewWindowBackend(win appkit.Window) WindowBackend {
	return &darwinBackend{win: win}
}

func (b *darwinBackend) Name() string { return "appkit" }

func (b *darwinBackend) SetCaptureExcluded(excluded bool) error {
	if b.win.Ptr() == nil {
		return fmt.Errorf("no window attached")
	}
	if excluded {
		b.win.SetSharingType(appkit.WindowSharingNone)
	} else {
		b.win.SetSharingType(appkit.WindowSharingReadOnly)
	}
	return nil
}

func (b *darwinBackend) SetOpacity(opacity float64) error {
	if b.win.Ptr() == nil {
		return fmt.Errorf("no window attached")
	}
	b.win.SetAlphaValue(opacity)
	return nil
}
