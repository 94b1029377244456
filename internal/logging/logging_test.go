package logging

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestNew_ConsoleShowsWarningsOnly(t *testing.T) {
	var buf bytes.Buffer
	log, err := New(Options{Console: zapcore.AddSync(&buf)})
	require.NoError(t, err)

	log.Info("validating video")
	log.Warn("video is not vertical")
	log.Sync()

	out := buf.String()
	assert.NotContains(t, out, "validating video")
	assert.Contains(t, out, "video is not vertical")
}

func TestNew_VerboseShowsDebug(t *testing.T) {
	var buf bytes.Buffer
	log, err := New(Options{Console: zapcore.AddSync(&buf), Verbose: true})
	require.NoError(t, err)

	log.Debug("retrying upload", zap.Int("attempt", 2))
	log.Sync()

	assert.Contains(t, buf.String(), "retrying upload")
}

func TestNew_WritesJSONFile(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "logs")
	log, err := New(Options{Dir: dir, Console: zapcore.AddSync(&bytes.Buffer{})})
	require.NoError(t, err)

	log.Info("upload finished", zap.String("target", "youtube"))
	require.NoError(t, log.Sync())

	raw, err := os.ReadFile(filepath.Join(dir, FileName(time.Now())))
	require.NoError(t, err)

	line := strings.TrimSpace(string(raw))
	var entry map[string]any
	require.NoError(t, json.Unmarshal([]byte(line), &entry))
	assert.Equal(t, "upload finished", entry["msg"])
	assert.Equal(t, "youtube", entry["target"])
}

func TestFileName(t *testing.T) {
	day := time.Date(2026, 3, 7, 23, 0, 0, 0, time.UTC)
	assert.Equal(t, "reelsync_2026-03-07.log", FileName(day))
}

func TestOrNop(t *testing.T) {
	assert.NotNil(t, OrNop(nil))
	l := zap.NewExample()
	assert.Same(t, l, OrNop(l))
}
