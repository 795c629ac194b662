// Package logger provides the leveled, file-backed log sink used across the
// wrapper. Loggers are constructed explicitly and passed to the components
// that need them; there is no package-level singleton, so tests can supply a
// capturing or disabled logger.
package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// Level controls which messages reach the sink.
type Level int

const (
	LevelOff Level = iota
	LevelError
	LevelWarn
	LevelInfo
	LevelDebug
)

// ParseLevel maps a config/env string to a Level. Unknown values fall back
// to info.
func ParseLevel(s string) Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "off", "none":
		return LevelOff
	case "error":
		return LevelError
	case "warn", "warning":
		return LevelWarn
	case "debug":
		return LevelDebug
	default:
		return LevelInfo
	}
}

// Config describes where and how much to log.
type Config struct {
	// Path is the log file path. Empty means resolve from environment.
	Path string
	// Level is the textual log level (off, error, warn, info, debug).
	Level string
}

// Logger writes timestamped lines to an append-only sink. A logger whose
// sink could not be opened is disabled rather than failing the session.
type Logger struct {
	mu    sync.Mutex
	w     io.Writer
	c     io.Closer
	level Level
}

// ResolvePath picks the log file location. An explicit path wins, then
// ROSLYN_WRAPPER_LOG_PATH, then roslyn-wrapper.log inside ROSLYN_WRAPPER_CWD,
// then the process working directory.
func ResolvePath(explicit string) string {
	if explicit != "" {
		return explicit
	}
	if p := os.Getenv("ROSLYN_WRAPPER_LOG_PATH"); strings.TrimSpace(p) != "" {
		return p
	}
	if cwd := os.Getenv("ROSLYN_WRAPPER_CWD"); strings.TrimSpace(cwd) != "" {
		return filepath.Join(cwd, "roslyn-wrapper.log")
	}
	wd, err := os.Getwd()
	if err != nil {
		wd = os.TempDir()
	}
	return filepath.Join(wd, "roslyn-wrapper.log")
}

// New opens the configured log file for appending, creating parent
// directories as needed. Any failure yields a disabled logger.
func New(cfg Config) *Logger {
	level := ParseLevel(cfg.Level)
	if level == LevelOff {
		return Nop()
	}
	path := ResolvePath(cfg.Path)
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return Nop()
		}
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return Nop()
	}
	l := &Logger{w: f, c: f, level: level}
	l.Info("logger initialized (path: %s)", path)
	return l
}

// NewWithWriter builds a logger over an arbitrary writer. Used by tests.
func NewWithWriter(w io.Writer, level Level) *Logger {
	return &Logger{w: w, level: level}
}

// Nop returns a logger that discards everything.
func Nop() *Logger {
	return &Logger{level: LevelOff}
}

// Enabled reports whether messages at the given level reach the sink.
func (l *Logger) Enabled(level Level) bool {
	return l.w != nil && level <= l.level
}

func (l *Logger) Debug(format string, args ...any) { l.emit(LevelDebug, "debug", format, args...) }
func (l *Logger) Info(format string, args ...any)  { l.emit(LevelInfo, "info", format, args...) }
func (l *Logger) Warn(format string, args ...any)  { l.emit(LevelWarn, "warn", format, args...) }
func (l *Logger) Error(format string, args ...any) { l.emit(LevelError, "error", format, args...) }

func (l *Logger) emit(level Level, tag, format string, args ...any) {
	if !l.Enabled(level) {
		return
	}
	ts := time.Now().Format("2006-01-02T15:04:05.000Z07:00")
	msg := fmt.Sprintf(format, args...)

	l.mu.Lock()
	defer l.mu.Unlock()
	for _, line := range strings.Split(msg, "\n") {
		fmt.Fprintf(l.w, "[%s] [%s] %s\n", ts, tag, line)
	}
}

// Close releases the underlying file, if any.
func (l *Logger) Close() error {
	if l.c != nil {
		return l.c.Close()
	}
	return nil
}
