// Package transcribe turns the audio track of a video into text, either
// from a sidecar subtitle file or through the OpenAI Whisper API.
package transcribe

import (
	"context"
	"errors"
	"fmt"

	"reelsync/internal/retry"
)

// FallbackText replaces an empty transcript so description generation
// always has some input.
const FallbackText = "Video without detectable speech."

// Transcript sources.
const (
	SourceWhisper    = "whisper"
	SourceSidecarTXT = "sidecar-txt"
	SourceSidecarSRT = "sidecar-srt"
	SourceFallback   = "fallback"
)

// Transcript is the spoken content of a video.
type Transcript struct {
	Text     string
	Language string
	Source   string
}

// Empty reports whether the transcript has no usable text.
func (t Transcript) Empty() bool {
	return len(trimSpace(t.Text)) == 0
}

// Transcriber converts a video's audio into a Transcript.
type Transcriber interface {
	Transcribe(ctx context.Context, videoPath string) (Transcript, error)
}

// Sentinel errors.
var (
	ErrNoAudio            = errors.New("video has no audio track")
	ErrFFmpegNotInstalled = errors.New("ffmpeg is not installed or not in PATH")
	ErrMissingAPIKey      = errors.New("OpenAI API key is not configured")
)

// Error is returned by every Transcriber in this package.
type Error struct {
	// Op is "extract-audio", "request", "read-sidecar" or "config".
	Op   string
	Path string
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("transcription %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Transient reports whether retrying may help.
func (e *Error) Transient() bool {
	switch {
	case errors.Is(e.Err, ErrNoAudio),
		errors.Is(e.Err, ErrFFmpegNotInstalled),
		errors.Is(e.Err, ErrMissingAPIKey):
		return false
	}
	return retry.IsTransient(e.Err)
}
