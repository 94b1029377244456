package video

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"
)

const (
	defaultFFprobePath    = "ffprobe"
	defaultFFprobeTimeout = 30 * time.Second
)

// ProbeResult is what a Prober learned about a media file.
type ProbeResult struct {
	// FormatNames are the demuxer names, e.g. [mov mp4 m4a 3gp 3g2 mj2].
	FormatNames []string
	Duration    time.Duration
	Width       int
	Height      int
}

// Prober inspects a local media file.
type Prober interface {
	Probe(ctx context.Context, path string) (ProbeResult, error)
}

// FFprobe implements Prober by running ffprobe as a subprocess.
type FFprobe struct {
	// Path is the ffprobe executable. Defaults to "ffprobe".
	Path string
	// Timeout bounds a single probe. Defaults to 30 seconds.
	Timeout time.Duration
}

// NewFFprobe returns a prober using ffprobe from PATH.
func NewFFprobe() *FFprobe {
	return &FFprobe{Path: defaultFFprobePath, Timeout: defaultFFprobeTimeout}
}

// Probe runs ffprobe with JSON output and parses the container and first
// video stream.
func (f *FFprobe) Probe(ctx context.Context, path string) (ProbeResult, error) {
	timeout := f.Timeout
	if timeout == 0 {
		timeout = defaultFFprobeTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	bin := f.Path
	if bin == "" {
		bin = defaultFFprobePath
	}

	cmd := exec.CommandContext(ctx, bin,
		"-v", "error",
		"-print_format", "json",
		"-show_format",
		"-show_streams",
		path,
	)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if errors.Is(err, exec.ErrNotFound) {
			return ProbeResult{}, ErrFFprobeNotInstalled
		}
		if ctx.Err() != nil {
			return ProbeResult{}, fmt.Errorf("ffprobe: %w", ctx.Err())
		}
		return ProbeResult{}, fmt.Errorf("ffprobe failed: %w: %s", err, strings.TrimSpace(stderr.String()))
	}

	return parseFFprobeOutput(stdout.Bytes())
}

type sideData struct {
	Rotation int `json:"rotation"`
}

type ffprobeOutput struct {
	Streams []struct {
		CodecType string            `json:"codec_type"`
		Width     int               `json:"width"`
		Height    int               `json:"height"`
		Tags      map[string]string `json:"tags"`
		SideData  []sideData        `json:"side_data_list"`
	} `json:"streams"`
	Format struct {
		FormatName string `json:"format_name"`
		Duration   string `json:"duration"`
	} `json:"format"`
}

func parseFFprobeOutput(data []byte) (ProbeResult, error) {
	var out ffprobeOutput
	if err := json.Unmarshal(data, &out); err != nil {
		return ProbeResult{}, fmt.Errorf("parse ffprobe output: %w", err)
	}

	var res ProbeResult
	if out.Format.FormatName != "" {
		res.FormatNames = strings.Split(out.Format.FormatName, ",")
	}

	if out.Format.Duration != "" {
		secs, err := strconv.ParseFloat(out.Format.Duration, 64)
		if err != nil {
			return ProbeResult{}, fmt.Errorf("parse duration %q: %w", out.Format.Duration, err)
		}
		res.Duration = time.Duration(secs * float64(time.Second))
	}

	for _, s := range out.Streams {
		if s.CodecType != "video" {
			continue
		}
		res.Width, res.Height = s.Width, s.Height
		if quarterTurn(s.Tags["rotate"], s.SideData) {
			res.Width, res.Height = res.Height, res.Width
		}
		break
	}

	return res, nil
}

// quarterTurn reports whether the stream is displayed rotated by 90 or 270
// degrees, which phones do for portrait recordings.
func quarterTurn(tag string, side []sideData) bool {
	rot := 0
	if tag != "" {
		rot, _ = strconv.Atoi(tag)
	}
	for _, sd := range side {
		if sd.Rotation != 0 {
			rot = sd.Rotation
		}
	}
	rot = ((rot % 360) + 360) % 360
	return rot == 90 || rot == 270
}
