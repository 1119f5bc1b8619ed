package capture

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"runtime"
	"time"
)

// commandTimeout bounds a single screenshot command run.
const commandTimeout = 10 * time.Second

// OSCommand shells out to the platform screenshot tool. One command, one
// attempt, no interactive flags.
type OSCommand struct {
	goos string
}

// NewOSCommand returns the command backend for the current platform.
func NewOSCommand() *OSCommand {
	return &OSCommand{goos: runtime.GOOS}
}

func (o *OSCommand) Name() string { return "os-command" }

// commandFor maps the platform to its silent full-screen screenshot
// invocation writing a PNG to path.
func (o *OSCommand) commandFor(path string) (string, []string, error) {
	switch o.goos {
	case "darwin":
		// -x suppresses the shutter sound.
		return "screencapture", []string{"-x", path}, nil
	case "linux":
		if _, err := exec.LookPath("gnome-screenshot"); err == nil {
			return "gnome-screenshot", []string{"-f", path}, nil
		}
		if _, err := exec.LookPath("import"); err == nil {
			return "import", []string{"-window", "root", path}, nil
		}
		return "", nil, fmt.Errorf("no screenshot command found (tried gnome-screenshot, import)")
	default:
		return "", nil, fmt.Errorf("no screenshot command for %s", o.goos)
	}
}

// Capture runs the screenshot command and returns the written file.
func (o *OSCommand) Capture(ctx context.Context) (Result, error) {
	path := TempPath()

	bin, args, err := o.commandFor(path)
	if err != nil {
		return Result{}, err
	}

	cctx, cancel := context.WithTimeout(ctx, commandTimeout)
	defer cancel()

	out, err := exec.CommandContext(cctx, bin, args...).CombinedOutput()
	if err != nil {
		os.Remove(path)
		return Result{}, fmt.Errorf("%s: %w (%s)", bin, err, string(out))
	}

	info, err := os.Stat(path)
	if err != nil {
		return Result{}, fmt.Errorf("%s wrote no file: %w", bin, err)
	}
	if info.Size() == 0 {
		os.Remove(path)
		return Result{}, fmt.Errorf("%s wrote an empty file", bin)
	}

	return Result{Path: path, Size: info.Size(), TakenAt: time.Now()}, nil
}

// HealthCheck verifies the screenshot command exists on PATH.
func (o *OSCommand) HealthCheck() error {
	bin, _, err := o.commandFor(os.DevNull)
	if err != nil {
		return err
	}
	if _, err := exec.LookPath(bin); err != nil {
		return fmt.Errorf("%s not found: %w", bin, err)
	}
	return nil
}
