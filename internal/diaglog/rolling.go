package diaglog

import (
	"os"
	"sync"
)

// rollingWriter appends NDJSON lines to a single file and starts the file
// over when it would grow past maxSize. Old entries are cheap; the entries
// around a failure are the ones worth keeping, so the overflowing line is
// always written fresh after the restart.
type rollingWriter struct {
	mu      sync.Mutex
	f       *os.File
	path    string
	size    int64
	maxSize int64
}

func newRollingWriter(path string, maxSize int64) (*rollingWriter, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, err
	}
	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	return &rollingWriter{f: f, path: path, size: info.Size(), maxSize: maxSize}, nil
}

// Write appends p, restarting the file first when the cap would be exceeded.
// Every write is synced so a crashing daemon leaves its last entries behind.
func (rw *rollingWriter) Write(p []byte) (int, error) {
	rw.mu.Lock()
	defer rw.mu.Unlock()

	if rw.size+int64(len(p)) > rw.maxSize {
		if err := rw.restart(); err != nil {
			return 0, err
		}
	}

	n, err := rw.f.Write(p)
	rw.size += int64(n)
	if err != nil {
		return n, err
	}
	_ = rw.f.Sync()
	return n, nil
}

// restart truncates the file to zero and rewinds the write offset.
func (rw *rollingWriter) restart() error {
	if err := rw.f.Truncate(0); err != nil {
		return err
	}
	if _, err := rw.f.Seek(0, 0); err != nil {
		return err
	}
	rw.size = 0
	return nil
}

func (rw *rollingWriter) close() error {
	_ = rw.f.Sync()
	return rw.f.Close()
}
