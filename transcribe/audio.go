package transcribe

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"
)

const (
	defaultFFmpegPath    = "ffmpeg"
	defaultFFmpegTimeout = 5 * time.Minute
)

// AudioExtractor writes a video's audio track to a temporary file.
// The returned cleanup removes it and is safe to call more than once.
type AudioExtractor interface {
	ExtractAudio(ctx context.Context, videoPath string) (audioPath string, cleanup func(), err error)
}

// FFmpeg extracts audio by running ffmpeg as a subprocess.
type FFmpeg struct {
	// Path is the ffmpeg executable. Defaults to "ffmpeg".
	Path    string
	Timeout time.Duration
	// TempDir receives the extracted mp3. Empty means os.TempDir().
	TempDir string
}

// NewFFmpeg returns an extractor using ffmpeg from PATH.
func NewFFmpeg() *FFmpeg {
	return &FFmpeg{Path: defaultFFmpegPath, Timeout: defaultFFmpegTimeout}
}

// ExtractAudio encodes the first audio stream as mono 16 kHz mp3, which is
// well under the Whisper upload limit for short videos.
func (f *FFmpeg) ExtractAudio(ctx context.Context, videoPath string) (string, func(), error) {
	tmp, err := os.CreateTemp(f.TempDir, "reelsync-audio-*.mp3")
	if err != nil {
		return "", nil, fmt.Errorf("create temp file: %w", err)
	}
	tmp.Close()
	out := tmp.Name()
	cleanup := func() { os.Remove(out) }

	timeout := f.Timeout
	if timeout == 0 {
		timeout = defaultFFmpegTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	bin := f.Path
	if bin == "" {
		bin = defaultFFmpegPath
	}

	cmd := exec.CommandContext(ctx, bin,
		"-nostdin",
		"-loglevel", "error",
		"-y",
		"-i", videoPath,
		"-vn",
		"-map", "0:a:0",
		"-ac", "1",
		"-ar", "16000",
		"-codec:a", "libmp3lame",
		"-b:a", "64k",
		out,
	)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		cleanup()
		if errors.Is(err, exec.ErrNotFound) {
			return "", nil, ErrFFmpegNotInstalled
		}
		if ctx.Err() != nil {
			return "", nil, fmt.Errorf("ffmpeg: %w", ctx.Err())
		}
		msg := strings.TrimSpace(stderr.String())
		if isNoAudio(msg) {
			return "", nil, ErrNoAudio
		}
		return "", nil, fmt.Errorf("ffmpeg failed: %w: %s", err, msg)
	}

	return out, cleanup, nil
}

// isNoAudio recognises ffmpeg's complaints when "-map 0:a:0" matches nothing.
func isNoAudio(stderr string) bool {
	s := strings.ToLower(stderr)
	return strings.Contains(s, "matches no streams") ||
		strings.Contains(s, "does not contain any stream") ||
		strings.Contains(s, "output file #0 does not contain any stream")
}
