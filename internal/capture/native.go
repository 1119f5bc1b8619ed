package capture

import (
	"context"
	"fmt"
	"image/png"
	"os"
	"time"

	"github.com/kbinani/screenshot"
)

// Native grabs the primary display in-process. Used when the platform
// screenshot command is missing or fails.
type Native struct{}

// NewNative returns the in-process capture backend.
func NewNative() *Native {
	return &Native{}
}

func (n *Native) Name() string { return "native" }

// Capture grabs display 0 and encodes it as PNG in the temp dir.
func (n *Native) Capture(ctx context.Context) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	if screenshot.NumActiveDisplays() == 0 {
		return Result{}, fmt.Errorf("no active displays")
	}

	img, err := screenshot.CaptureDisplay(0)
	if err != nil {
		return Result{}, fmt.Errorf("capture display 0: %w", err)
	}

	path := TempPath()
	f, err := os.Create(path)
	if err != nil {
		return Result{}, fmt.Errorf("create screenshot file: %w", err)
	}
	if err := png.Encode(f, img); err != nil {
		f.Close()
		os.Remove(path)
		return Result{}, fmt.Errorf("encode png: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(path)
		return Result{}, err
	}

	info, err := os.Stat(path)
	if err != nil {
		return Result{}, err
	}
	return Result{Path: path, Size: info.Size(), TakenAt: time.Now()}, nil
}

// HealthCheck verifies a display is attached.
func (n *Native) HealthCheck() error {
	if screenshot.NumActiveDisplays() == 0 {
		return fmt.Errorf("no active displays")
	}
	return nil
}
