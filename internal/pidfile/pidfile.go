// Package pidfile guards against duplicate daemon instances.
package pidfile

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
)

// PIDFile records the owning process ID on disk. Only the creating process
// may remove it.
type PIDFile struct {
	path string
	pid  int
}

// Acquire creates a PID file at path. If a file already exists and its
// process is still alive, an error is returned; a stale file is replaced.
func Acquire(path string) (*PIDFile, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("create pid directory: %w", err)
	}

	if existing, err := readPID(path); err == nil {
		if processAlive(existing) {
			return nil, fmt.Errorf("another instance is already running (PID %d)", existing)
		}
		if err := os.Remove(path); err != nil {
			return nil, fmt.Errorf("remove stale pid file: %w", err)
		}
	}

	pid := os.Getpid()
	if err := os.WriteFile(path, []byte(fmt.Sprintf("%d\n", pid)), 0644); err != nil {
		return nil, fmt.Errorf("write pid file: %w", err)
	}
	return &PIDFile{path: path, pid: pid}, nil
}

// Path returns the file location.
func (p *PIDFile) Path() string { return p.path }

// PID returns the recorded process ID.
func (p *PIDFile) PID() int { return p.pid }

// Release deletes the PID file if it still belongs to this process. Another
// instance's file is left alone.
func (p *PIDFile) Release() error {
	if p == nil {
		return nil
	}
	pid, err := readPID(p.path)
	if err != nil || pid != p.pid {
		return nil
	}
	return os.Remove(p.path)
}

func readPID(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(strings.TrimSpace(string(data)))
}

// processAlive probes pid with signal 0. EPERM means the process exists but
// belongs to another user.
func processAlive(pid int) bool {
	proc, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	switch err := proc.Signal(syscall.Signal(0)); err {
	case nil, syscall.EPERM:
		return true
	default:
		return false
	}
}

// PathFor returns the standard PID file location for a binary name.
func PathFor(appName string) string {
	return filepath.Join(os.Getenv("HOME"), ".cache", "veil", appName+".pid")
}
