// Package logging wraps log/slog for the simulator. Logs go to a rotating
// JSON file when a directory is configured and to a text writer otherwise.
package logging

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"
)

const FileName = "synchro.slog"

type Logger struct {
	*slog.Logger
	LogFile string
	Start   time.Time
}

// ParseLevel maps debug, info, warn and error (case-insensitive) to a
// slog.Level. Unknown values default to info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// New returns a logger at the given level. With a non-empty dir, records
// are written as JSON to dir/synchro.slog with size-based rotation;
// otherwise they are written as text to w.
func New(level, dir string, w io.Writer) *Logger {
	opts := &slog.HandlerOptions{Level: ParseLevel(level)}

	l := &Logger{Start: time.Now()}
	if dir != "" {
		lj := &lumberjack.Logger{
			Filename:   filepath.Join(dir, FileName),
			MaxSize:    32, // MB
			MaxBackups: 3,
		}
		if opts.Level == slog.LevelDebug {
			lj.MaxSize = 256
		}
		l.Logger = slog.New(slog.NewJSONHandler(lj, opts))
		l.LogFile = lj.Filename
	} else {
		if w == nil {
			w = io.Discard
		}
		l.Logger = slog.New(slog.NewTextHandler(w, opts))
	}
	return l
}

// Discard returns a logger that drops everything.
func Discard() *Logger {
	return New("error", "", io.Discard)
}

// The wrappers below accept a nil *Logger, in which case nothing is
// logged.

func (l *Logger) Debug(msg string, args ...any) {
	if l != nil && l.Logger.Enabled(context.Background(), slog.LevelDebug) {
		l.Logger.Debug(msg, args...)
	}
}

func (l *Logger) Info(msg string, args ...any) {
	if l != nil && l.Logger.Enabled(context.Background(), slog.LevelInfo) {
		l.Logger.Info(msg, args...)
	}
}

func (l *Logger) Warn(msg string, args ...any) {
	if l != nil {
		l.Logger.Warn(msg, args...)
	}
}

func (l *Logger) Error(msg string, args ...any) {
	if l != nil {
		l.Logger.Error(msg, args...)
	}
}

// With returns a logger carrying the given attributes. A nil receiver
// stays nil.
func (l *Logger) With(args ...any) *Logger {
	if l == nil {
		return nil
	}
	return &Logger{Logger: l.Logger.With(args...), LogFile: l.LogFile, Start: l.Start}
}
