package history

import (
	"os"
	"path/filepath"
	"time"
)

// fileLock is an advisory lock on path + ".lock". It serialises concurrent
// reelsync processes appending to the same history file. Every lock call
// opens its own handle, so one fileLock may be shared by goroutines.
type fileLock struct {
	path string
}

func newFileLock(path string) *fileLock {
	return &fileLock{path: path + ".lock"}
}

// lock polls for an exclusive lock until timeout elapses and returns the
// function that releases it.
func (l *fileLock) lock(timeout time.Duration) (func(), error) {
	if err := os.MkdirAll(filepath.Dir(l.path), 0755); err != nil {
		return nil, &Error{Op: "lock", ID: l.path, Err: err}
	}
	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_RDWR, 0600)
	if err != nil {
		return nil, &Error{Op: "lock", ID: l.path, Err: err}
	}

	deadline := time.Now().Add(timeout)
	for {
		if err := lockFile(f); err == nil {
			return func() {
				unlockFile(f)
				f.Close()
			}, nil
		}
		if time.Now().After(deadline) {
			f.Close()
			return nil, &Error{Op: "lock", ID: l.path, Err: ErrLockTimeout}
		}
		time.Sleep(10 * time.Millisecond)
	}
}
