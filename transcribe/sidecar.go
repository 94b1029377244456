package transcribe

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"unicode"
)

var srtTimestamp = regexp.MustCompile(`^\d{2}:\d{2}:\d{2}[,.]\d{3}\s*-->\s*\d{2}:\d{2}:\d{2}[,.]\d{3}`)

// ReadSidecar looks for <video>.txt, then <video>.srt, next to the video.
// It returns ok=false when neither exists or both are empty.
func ReadSidecar(videoPath string) (Transcript, bool, error) {
	base := strings.TrimSuffix(videoPath, filepath.Ext(videoPath))

	txt, err := readIfExists(base + ".txt")
	if err != nil {
		return Transcript{}, false, &Error{Op: "read-sidecar", Path: base + ".txt", Err: err}
	}
	if text := trimSpace(txt); text != "" {
		return Transcript{Text: text, Source: SourceSidecarTXT}, true, nil
	}

	srt, err := readIfExists(base + ".srt")
	if err != nil {
		return Transcript{}, false, &Error{Op: "read-sidecar", Path: base + ".srt", Err: err}
	}
	if text := ParseSRT(srt); text != "" {
		return Transcript{Text: text, Source: SourceSidecarSRT}, true, nil
	}

	return Transcript{}, false, nil
}

// ParseSRT strips cue numbers and timestamps and joins the remaining
// subtitle lines with single spaces.
func ParseSRT(content string) string {
	var parts []string
	sc := bufio.NewScanner(strings.NewReader(strings.TrimPrefix(content, "\ufeff")))
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || isDigits(line) || srtTimestamp.MatchString(line) {
			continue
		}
		parts = append(parts, line)
	}
	return strings.Join(parts, " ")
}

func readIfExists(path string) (string, error) {
	b, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("read %s: %w", path, err)
	}
	return string(b), nil
}

func isDigits(s string) bool {
	for _, r := range s {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}

func trimSpace(s string) string {
	return strings.TrimSpace(strings.TrimPrefix(s, "\ufeff"))
}
