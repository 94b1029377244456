package platform

import "strings"

// Text limits, in characters.
const (
	MaxYouTubeTitle       = 100
	MaxYouTubeDescription = 5000
	MaxInstagramCaption   = 2200
	MaxTikTokTitle        = 2200
)

// MaxText returns the description limit for t.
func (t Target) MaxText() int {
	switch t {
	case YouTube:
		return MaxYouTubeDescription
	case Instagram:
		return MaxInstagramCaption
	case TikTok:
		return MaxTikTokTitle
	}
	return 0
}

// Truncate shortens s to at most max characters, ending in "..." when cut.
func Truncate(s string, max int) string {
	r := []rune(s)
	if max <= 0 || len(r) <= max {
		return s
	}
	if max <= 3 {
		return string(r[:max])
	}
	return strings.TrimRightFunc(string(r[:max-3]), isSpace) + "..."
}

func isSpace(r rune) bool {
	return r == ' ' || r == '\n' || r == '\t' || r == '\r'
}
