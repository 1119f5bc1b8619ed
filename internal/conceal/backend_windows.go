//go:build windows

package conceal

import (
	"fmt"

	"golang.org/x/sys/windows"
)

const (
	wdaNone               = 0x0
	wdaExcludeFromCapture = 0x11 // requires Windows 10 2004+

	gwlExstyle  = -20
	wsExLayered = 0x00080000
	lwaAlpha    = 0x2
)

var (
	user32                       = windows.NewLazySystemDLL("user32.dll")
	procSetWindowDisplayAffinity = user32.NewProc("SetWindowDisplayAffinity")
	procGetWindowLongW           = user32.NewProc("GetWindowLongW")
	procSetWindowLongW           = user32.NewProc("SetWindowLongW")
	procSetLayeredWindowAttrs    = user32.NewProc("SetLayeredWindowAttributes")
)

// win32Backend drives a native HWND. Capture exclusion uses the display
// affinity attribute, the same mechanism password fields use to stay out of
// screen grabs.
type win32Backend struct {
	hwnd windows.HWND
}

// NewWindowBackend wraps a native window handle.
func NewWindowBackend(hwnd windows.HWND) WindowBackend {
	return &win32Backend{hwnd: hwnd}
}

func (b *win32Backend) Name() string { return "win32" }

func (b *win32Backend) SetCaptureExcluded(excluded bool) error {
	if b.hwnd == 0 {
		return fmt.Errorf("no window attached")
	}
	affinity := uintptr(wdaNone)
	if excluded {
		affinity = wdaExcludeFromCapture
	}
	ret, _, err := procSetWindowDisplayAffinity.Call(uintptr(b.hwnd), affinity)
	if ret == 0 {
		// Fails on older builds and on windows without their own DC.
		return fmt.Errorf("SetWindowDisplayAffinity: %w", err)
	}
	return nil
}

func (b *win32Backend) SetOpacity(opacity float64) error {
	if b.hwnd == 0 {
		return fmt.Errorf("no window attached")
	}

	idx := gwlExstyle // negative index, converted through a variable
	style, _, _ := procGetWindowLongW.Call(uintptr(b.hwnd), uintptr(idx))
	if style&wsExLayered == 0 {
		procSetWindowLongW.Call(uintptr(b.hwnd), uintptr(idx), style|wsExLayered)
	}

	alpha := uintptr(opacity * 255)
	if alpha > 255 {
		alpha = 255
	}
	ret, _, err := procSetLayeredWindowAttrs.Call(uintptr(b.hwnd), 0, alpha, lwaAlpha)
	if ret == 0 {
		return fmt.Errorf("SetLayeredWindowAttributes: %w", err)
	}
	return nil
}
