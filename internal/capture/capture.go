// Package capture abstracts screenshot backends behind a common interface.
// The OS screenshot command is preferred; a native in-process grab is the
// fallback when no command is available.
package capture

import (
	"context"
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/veilhq/veil/internal/diaglog"
)

// Result contains the outcome of a completed capture.
type Result struct {
	Path    string
	Size    int64
	TakenAt time.Time
}

// Capturer is the interface that screenshot backends must implement.
type Capturer interface {
	Name() string
	Capture(ctx context.Context) (Result, error)
	HealthCheck() error
}

// TempPath returns a fresh PNG path under the OS temp dir.
func TempPath() string {
	return filepath.Join(os.TempDir(), fmt.Sprintf("veil-%d.png", time.Now().UnixNano()))
}

// EncodeBase64 reads a PNG file and returns it as a base64 data URL suitable
// for a vision model request.
func EncodeBase64(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read screenshot: %w", err)
	}
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(data), nil
}

// Take captures with the primary backend and falls back to the secondary on
// failure. Each backend is tried once. The caller owns the file at
// Result.Path and should remove it after use.
func Take(ctx context.Context, primary, fallback Capturer, log *diaglog.Logger) (Result, error) {
	res, err := primary.Capture(ctx)
	if err == nil {
		logTaken(log, primary.Name(), res)
		return res, nil
	}
	if fallback == nil {
		return Result{}, fmt.Errorf("capture: %s failed: %w", primary.Name(), err)
	}
	res, fbErr := fallback.Capture(ctx)
	if fbErr != nil {
		return Result{}, fmt.Errorf("capture: %s failed (%v), %s also failed: %w", primary.Name(), err, fallback.Name(), fbErr)
	}
	logTaken(log, fallback.Name(), res)
	return res, nil
}

func logTaken(log *diaglog.Logger, backend string, res Result) {
	if log == nil {
		return
	}
	log.Log(diaglog.LogEntry{
		Component: diaglog.ComponentCapture,
		Event:     diaglog.EventCaptureTaken,
		Reason:    fmt.Sprintf("via %s", backend),
		Payload:   map[string]interface{}{"path": res.Path, "bytes": res.Size},
	})
}
