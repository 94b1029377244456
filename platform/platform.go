// Package platform defines the upload targets and the Uploader contract that
// every platform client implements.
package platform

import (
	"context"
	"fmt"
	"strings"

	"reelsync/video"
)

// Target identifies a destination platform.
type Target string

const (
	YouTube   Target = "youtube"
	Instagram Target = "instagram"
	TikTok    Target = "tiktok"
)

// All lists every target in canonical order.
var All = []Target{YouTube, Instagram, TikTok}

// Index returns the canonical position of t, or -1 for an unknown target.
func (t Target) Index() int {
	for i, c := range All {
		if c == t {
			return i
		}
	}
	return -1
}

// Valid reports whether t is a known target.
func (t Target) Valid() bool { return t.Index() >= 0 }

// DisplayName returns the human name of the target.
func (t Target) DisplayName() string {
	switch t {
	case YouTube:
		return "YouTube Shorts"
	case Instagram:
		return "Instagram Reels"
	case TikTok:
		return "TikTok"
	}
	return string(t)
}

// ParseTarget accepts a target name in any case.
func ParseTarget(s string) (Target, error) {
	t := Target(strings.ToLower(strings.TrimSpace(s)))
	if !t.Valid() {
		return "", fmt.Errorf("unknown platform %q (valid: youtube, instagram, tiktok)", s)
	}
	return t, nil
}

// Description is the generated text attached to an upload.
type Description struct {
	// Title is only used by YouTube.
	Title string
	Text  string
}

// Result identifies a published video.
type Result struct {
	RemoteID string
	URL      string
}

// Uploader publishes a validated video to one platform.
//
// Upload is at-least-once: if a call times out after the platform accepted
// the video, a retry publishes it again. Implementations make a single
// attempt per call and classify failures with *Error.
type Uploader interface {
	Target() Target
	// IsConfigured checks local configuration only. It never touches the
	// network.
	IsConfigured() bool
	Upload(ctx context.Context, asset video.Asset, desc Description) (Result, error)
}
