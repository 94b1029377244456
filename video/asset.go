// Package video validates local video files before any paid API call is made.
package video

import (
	"fmt"
	"time"
)

// SupportedFormat is the only container accepted for upload.
const SupportedFormat = "mp4"

// Asset is a validated local video. It is a value type and is never
// modified after Validate returns it.
type Asset struct {
	// Path is absolute.
	Path     string
	Format   string
	Duration time.Duration
	// Size is in bytes.
	Size   int64
	Width  int
	Height int
	// Warnings are non-fatal observations, such as a landscape aspect ratio.
	Warnings []string
}

// IsVertical reports whether the video is taller than it is wide.
// Unknown dimensions count as vertical.
func (a Asset) IsVertical() bool {
	if a.Width == 0 || a.Height == 0 {
		return true
	}
	return a.Height > a.Width
}

// SizeMB returns the size in mebibytes.
func (a Asset) SizeMB() float64 {
	return float64(a.Size) / (1024 * 1024)
}

func (a Asset) String() string {
	return fmt.Sprintf("%s (%s, %.1fs, %.1f MB, %dx%d)", a.Path, a.Format, a.Duration.Seconds(), a.SizeMB(), a.Width, a.Height)
}
