//go:build !windows

package history

import (
	"os"
	"syscall"
)

// lockFile takes a non-blocking flock(2) exclusive lock.
func lockFile(f *os.File) error {
	return syscall.Flock(int(f.Fd()), syscall.LOCK_EX|syscall.LOCK_NB)
}

func unlockFile(f *os.File) error {
	return syscall.Flock(int(f.Fd()), syscall.LOCK_UN)
}
