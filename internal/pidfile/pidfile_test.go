package pidfile

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
)

func TestAcquireWritesCurrentPID(t *testing.T) {
	pidPath := filepath.Join(t.TempDir(), "veil-core.pid")

	pf, err := Acquire(pidPath)
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	defer pf.Release()

	data, err := os.ReadFile(pidPath)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		t.Fatalf("invalid PID in file: %q", data)
	}
	if pid != os.Getpid() {
		t.Errorf("PID mismatch: got %d, want %d", pid, os.Getpid())
	}
	if pf.PID() != os.Getpid() || pf.Path() != pidPath {
		t.Errorf("accessors: pid=%d path=%q", pf.PID(), pf.Path())
	}
}

func TestAcquireDuplicateFails(t *testing.T) {
	pidPath := filepath.Join(t.TempDir(), "veil-core.pid")

	pf, err := Acquire(pidPath)
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	defer pf.Release()

	_, err = Acquire(pidPath)
	if err == nil {
		t.Fatal("second Acquire should fail while the process is alive")
	}
	if !strings.Contains(err.Error(), "already running") {
		t.Errorf("expected 'already running' error, got: %v", err)
	}
}

func TestAcquireReplacesStaleFile(t *testing.T) {
	pidPath := filepath.Join(t.TempDir(), "veil-core.pid")

	// A PID that cannot exist on Linux (beyond default pid_max).
	if err := os.WriteFile(pidPath, []byte("4194399\n"), 0644); err != nil {
		t.Fatal(err)
	}

	pf, err := Acquire(pidPath)
	if err != nil {
		t.Fatalf("Acquire over stale file: %v", err)
	}
	defer pf.Release()

	if pf.PID() != os.Getpid() {
		t.Errorf("stale file should be replaced with our PID, got %d", pf.PID())
	}
}

func TestAcquireIgnoresGarbageFile(t *testing.T) {
	pidPath := filepath.Join(t.TempDir(), "veil-core.pid")

	if err := os.WriteFile(pidPath, []byte("not-a-pid\n"), 0644); err != nil {
		t.Fatal(err)
	}

	pf, err := Acquire(pidPath)
	if err != nil {
		t.Fatalf("Acquire over garbage file: %v", err)
	}
	defer pf.Release()
}

func TestReleaseRemovesOwnFile(t *testing.T) {
	pidPath := filepath.Join(t.TempDir(), "veil-core.pid")

	pf, err := Acquire(pidPath)
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	if err := pf.Release(); err != nil {
		t.Fatalf("Release: %v", err)
	}
	if _, err := os.Stat(pidPath); !os.IsNotExist(err) {
		t.Error("pid file should be gone after Release")
	}
}

func TestReleaseLeavesForeignFile(t *testing.T) {
	pidPath := filepath.Join(t.TempDir(), "veil-core.pid")

	pf, err := Acquire(pidPath)
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}

	// Another instance took over the file.
	if err := os.WriteFile(pidPath, []byte("12345\n"), 0644); err != nil {
		t.Fatal(err)
	}

	if err := pf.Release(); err != nil {
		t.Fatalf("Release: %v", err)
	}
	if _, err := os.Stat(pidPath); err != nil {
		t.Error("foreign pid file must not be removed")
	}
}

func TestReleaseNil(t *testing.T) {
	var pf *PIDFile
	if err := pf.Release(); err != nil {
		t.Errorf("Release on nil: %v", err)
	}
}

func TestPathFor(t *testing.T) {
	t.Setenv("HOME", "/home/u")
	want := filepath.Join("/home/u", ".cache", "veil", "veil-core.pid")
	if got := PathFor("veil-core"); got != want {
		t.Errorf("PathFor = %q, want %q", got, want)
	}
}
