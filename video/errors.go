package video

import (
	"errors"
	"fmt"
	"strings"
)

// ErrFFprobeNotInstalled is returned by FFprobe when the binary is missing.
var ErrFFprobeNotInstalled = errors.New("ffprobe is not installed or not in PATH")

// ValidationError lists every policy violation found for a file.
type ValidationError struct {
	Path       string
	Violations []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid video %s: %s", e.Path, strings.Join(e.Violations, "; "))
}

// Transient reports false: a bad file stays bad.
func (e *ValidationError) Transient() bool { return false }
