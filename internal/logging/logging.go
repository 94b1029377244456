// Package logging builds the zap logger shared by every reelsync component.
//
// Records go to two sinks: a JSON file per day under Dir and a console
// encoder on stderr. The console only shows warnings unless Verbose is set.
package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Options configures New.
type Options struct {
	// Dir receives reelsync_YYYY-MM-DD.log files. Empty disables file output.
	Dir string
	// Verbose lowers both sinks to debug level.
	Verbose bool
	// Console overrides stderr, mostly for tests.
	Console zapcore.WriteSyncer
}

// New returns a logger writing to the configured sinks. Callers should
// defer Sync.
func New(opts Options) (*zap.Logger, error) {
	console := opts.Console
	if console == nil {
		console = zapcore.Lock(os.Stderr)
	}

	fileLevel := zapcore.InfoLevel
	consoleLevel := zapcore.WarnLevel
	if opts.Verbose {
		fileLevel = zapcore.DebugLevel
		consoleLevel = zapcore.DebugLevel
	}

	consoleCfg := zap.NewDevelopmentEncoderConfig()
	consoleCfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
	cores := []zapcore.Core{
		zapcore.NewCore(zapcore.NewConsoleEncoder(consoleCfg), console, consoleLevel),
	}

	if opts.Dir != "" {
		w, err := dailyFile(opts.Dir, time.Now())
		if err != nil {
			return nil, err
		}
		fileCfg := zap.NewProductionEncoderConfig()
		fileCfg.EncodeTime = zapcore.ISO8601TimeEncoder
		cores = append(cores, zapcore.NewCore(zapcore.NewJSONEncoder(fileCfg), w, fileLevel))
	}

	return zap.New(zapcore.NewTee(cores...), zap.AddCaller()), nil
}

// Nop returns a logger that discards everything.
func Nop() *zap.Logger { return zap.NewNop() }

// OrNop returns l, or a no-op logger when l is nil.
func OrNop(l *zap.Logger) *zap.Logger {
	if l == nil {
		return zap.NewNop()
	}
	return l
}

// FileName returns the log file name used for day t.
func FileName(t time.Time) string {
	return fmt.Sprintf("reelsync_%s.log", t.Format("2006-01-02"))
}

func dailyFile(dir string, now time.Time) (zapcore.WriteSyncer, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create log directory: %w", err)
	}
	f, err := os.OpenFile(filepath.Join(dir, FileName(now)), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}
	return zapcore.AddSync(f), nil
}
