package video

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"reelsync/internal/logging"

	"go.uber.org/zap"
)

// MinRecommendedDuration is the length below which a warning is emitted.
const MinRecommendedDuration = 3 * time.Second

// Limits is the size and duration policy a video must satisfy.
type Limits struct {
	MaxDuration time.Duration
	// MaxSize is in bytes.
	MaxSize int64
}

// Validator checks a file against Limits. It only reads local state.
type Validator struct {
	prober Prober
	log    *zap.Logger
}

// NewValidator returns a validator using prober for media inspection.
// log may be nil.
func NewValidator(prober Prober, log *zap.Logger) *Validator {
	log = logging.OrNop(log)
	return &Validator{prober: prober, log: log.Named("validator")}
}

// Validate inspects path and returns the resulting Asset. Every check runs;
// all violations are reported together in a *ValidationError.
func (v *Validator) Validate(ctx context.Context, path string, limits Limits) (Asset, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}

	info, err := os.Stat(abs)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Asset{}, &ValidationError{Path: abs, Violations: []string{"file not found"}}
		}
		return Asset{}, &ValidationError{Path: abs, Violations: []string{fmt.Sprintf("file not readable: %v", err)}}
	}
	if info.IsDir() {
		return Asset{}, &ValidationError{Path: abs, Violations: []string{"path is a directory"}}
	}

	asset := Asset{Path: abs, Size: info.Size()}
	var violations []string

	if asset.Size == 0 {
		violations = append(violations, "file is empty")
	}
	if limits.MaxSize > 0 && asset.Size > limits.MaxSize {
		violations = append(violations, fmt.Sprintf("size %.1f MB exceeds maximum %.1f MB",
			asset.SizeMB(), float64(limits.MaxSize)/(1024*1024)))
	}

	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(abs)), ".")

	probe, probeErr := v.probe(ctx, abs)
	if probeErr != nil {
		violations = append(violations, fmt.Sprintf("cannot inspect media: %v", probeErr))
		asset.Format = ext
	} else {
		asset.Format = resolveFormat(ext, probe.FormatNames)
		asset.Duration = probe.Duration
		asset.Width, asset.Height = probe.Width, probe.Height
	}

	if asset.Format != SupportedFormat {
		violations = append(violations, fmt.Sprintf("unsupported format %q (only %s is accepted)", asset.Format, SupportedFormat))
	}
	if probeErr == nil && limits.MaxDuration > 0 && asset.Duration > limits.MaxDuration {
		violations = append(violations, fmt.Sprintf("duration %.1fs exceeds maximum %.0fs",
			asset.Duration.Seconds(), limits.MaxDuration.Seconds()))
	}

	if len(violations) > 0 {
		v.log.Debug("video rejected", zap.String("path", abs), zap.Strings("violations", violations))
		return Asset{}, &ValidationError{Path: abs, Violations: violations}
	}

	asset.Warnings = v.warnings(asset)
	v.log.Info("video validated",
		zap.String("path", abs),
		zap.String("format", asset.Format),
		zap.Duration("duration", asset.Duration),
		zap.Int64("size", asset.Size),
	)
	return asset, nil
}

func (v *Validator) probe(ctx context.Context, path string) (ProbeResult, error) {
	if v.prober == nil {
		return ProbeResult{}, errors.New("no media prober configured")
	}
	return v.prober.Probe(ctx, path)
}

func (v *Validator) warnings(a Asset) []string {
	var out []string
	if !a.IsVertical() {
		msg := fmt.Sprintf("video is not vertical (%dx%d); 9:16 works best for Shorts and Reels", a.Width, a.Height)
		v.log.Warn("video is not vertical", zap.Int("width", a.Width), zap.Int("height", a.Height))
		out = append(out, msg)
	}
	if a.Duration > 0 && a.Duration < MinRecommendedDuration {
		msg := fmt.Sprintf("video is very short (%.1fs); at least 3s is recommended", a.Duration.Seconds())
		v.log.Warn("video is very short", zap.Duration("duration", a.Duration))
		out = append(out, msg)
	}
	return out
}

// resolveFormat picks the container name. ffprobe reports a family of
// names for ISO media ("mov,mp4,m4a,..."), so the extension selects among
// them; an extension outside the family yields the first probed name.
func resolveFormat(ext string, probed []string) string {
	if len(probed) == 0 {
		return ext
	}
	if slices.Contains(probed, ext) {
		return ext
	}
	if ext == "m4v" && slices.Contains(probed, "mp4") {
		return "mp4"
	}
	return probed[0]
}
