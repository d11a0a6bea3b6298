// Package logger is the process-wide structured logger, a thin layer over
// log/slog. Until Init runs every call is a no-op, which keeps library code
// and tests quiet.
package logger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// Config describes logger settings.
type Config struct {
	Enabled bool
	Level   string
	Format  string // text (default) or json
	Stdout  bool
	File    string
}

// sinks holds everything the handler is built from.
type sinks struct {
	cfg  Config
	file *os.File
	// redirect takes the place of stdout while a full-screen client owns the
	// terminal.
	redirect io.Writer
}

var (
	mu     sync.RWMutex
	cur    sinks
	active *slog.Logger // nil while disabled or before Init
)

// Init configures the logger. A relative File is resolved against baseDir.
// The handler is installed even when the file cannot be opened; that error
// is returned after stdout logging is live.
func Init(cfg Config, baseDir string) error {
	mu.Lock()
	defer mu.Unlock()

	closeFileLocked()
	cur.cfg = cfg
	if !cfg.Enabled {
		active = nil
		return nil
	}

	var fileErr error
	if cfg.File != "" {
		f, err := openLogFile(expandPath(cfg.File, baseDir))
		if err != nil {
			fileErr = err
		} else {
			cur.file = f
		}
	}
	installLocked()
	return fileErr
}

func openLogFile(path string) (*os.File, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("logger: create log dir: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("logger: open log file: %w", err)
	}
	return f, nil
}

// Intercept sends what would go to stdout to w instead. The log file keeps
// receiving records.
func Intercept(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	cur.redirect = w
	if cur.cfg.Enabled {
		installLocked()
	}
}

// Restore undoes Intercept.
func Restore() {
	mu.Lock()
	defer mu.Unlock()
	cur.redirect = nil
	if cur.cfg.Enabled {
		installLocked()
	}
}

// Close releases the log file opened by Init; logging continues on the
// remaining writers.
func Close() error {
	mu.Lock()
	defer mu.Unlock()
	if cur.file == nil {
		return nil
	}
	err := closeFileLocked()
	if cur.cfg.Enabled {
		installLocked()
	}
	return err
}

func closeFileLocked() error {
	if cur.file == nil {
		return nil
	}
	err := cur.file.Close()
	cur.file = nil
	return err
}

// installLocked builds the handler from cur. Must be called with mu held.
func installLocked() {
	var writers []io.Writer
	switch {
	case cur.redirect != nil:
		writers = append(writers, cur.redirect)
	case cur.cfg.Stdout:
		writers = append(writers, os.Stdout)
	}
	if cur.file != nil {
		writers = append(writers, cur.file)
	}
	if len(writers) == 0 {
		writers = append(writers, os.Stdout)
	}

	out := io.MultiWriter(writers...)
	opts := &slog.HandlerOptions{Level: parseLevel(cur.cfg.Level)}
	if strings.EqualFold(cur.cfg.Format, "json") {
		active = slog.New(slog.NewJSONHandler(out, opts))
	} else {
		active = slog.New(slog.NewTextHandler(out, opts))
	}
}

// Scoped logs with a fixed set of leading attributes.
type Scoped struct {
	attrs []any
}

// With returns a logger that prefixes every record with args, e.g.
// With("component", "relay").
func With(args ...any) Scoped {
	return Scoped{attrs: args}
}

func (s Scoped) Debug(msg string, args ...any) { emit(slog.LevelDebug, msg, s.join(args)) }
func (s Scoped) Info(msg string, args ...any)  { emit(slog.LevelInfo, msg, s.join(args)) }
func (s Scoped) Warn(msg string, args ...any)  { emit(slog.LevelWarn, msg, s.join(args)) }
func (s Scoped) Error(msg string, args ...any) { emit(slog.LevelError, msg, s.join(args)) }

func (s Scoped) join(args []any) []any {
	if len(s.attrs) == 0 {
		return args
	}
	out := make([]any, 0, len(s.attrs)+len(args))
	return append(append(out, s.attrs...), args...)
}

// Debug logs a debug message.
func Debug(msg string, args ...any) { emit(slog.LevelDebug, msg, args) }

// Info logs an info message.
func Info(msg string, args ...any) { emit(slog.LevelInfo, msg, args) }

// Warn logs a warning.
func Warn(msg string, args ...any) { emit(slog.LevelWarn, msg, args) }

// Error logs an error.
func Error(msg string, args ...any) { emit(slog.LevelError, msg, args) }

func emit(level slog.Level, msg string, args []any) {
	mu.RLock()
	l := active
	mu.RUnlock()
	if l == nil {
		return
	}
	l.Log(context.Background(), level, msg, args...)
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
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

func expandPath(path, baseDir string) string {
	if strings.HasPrefix(path, "~") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, path[1:])
		}
	}
	if filepath.IsAbs(path) || baseDir == "" {
		return path
	}
	return filepath.Join(baseDir, path)
}
