//go:build !darwin

package detector

import (
	"context"
	"fmt"
)

// stubProbe is the non-darwin placeholder. The chain runs reduced to the
// gopsutil-backed checks, which cover every platform.
type stubProbe struct{}

// NewPlatformProbe returns an unavailable probe on platforms without a
// window-system binding.
func NewPlatformProbe() PlatformProbe {
	return &stubProbe{}
}

func (p *stubProbe) Available() bool { return false }

func (p *stubProbe) OnScreenWindows(ctx context.Context) ([]WindowInfo, error) {
	return nil, fmt.Errorf("window enumeration not supported on this platform")
}

func (p *stubProbe) FrontmostWindow(ctx context.Context) (*WindowInfo, error) {
	return nil, fmt.Errorf("frontmost window not supported on this platform")
}

func (p *stubProbe) MenuItemPresent(ctx context.Context, appName, item string) (bool, error) {
	return false, fmt.Errorf("menu scripting not supported on this platform")
}
