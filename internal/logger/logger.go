package logger

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"imagedetect/internal/config"
)

// Logger provides leveled logging (debug/info/warning/error) to per-level files
// and stdout/stderr. Messages are printf-style; structured attributes are
// attached with With.
type Logger struct {
	infoLog    *slog.Logger
	warningLog *slog.Logger
	errorLog   *slog.Logger
	level      *slog.LevelVar
	logDir     string

	closers []io.Closer
	mu      *sync.Mutex
}

// NewLogger creates a Logger writing to LogDirectory and the console.
func NewLogger(cfg *config.Config) (*Logger, error) {
	if err := os.MkdirAll(cfg.LogDirectory, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	level := new(slog.LevelVar)
	if err := level.UnmarshalText([]byte(cfg.LogLevel)); err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", cfg.LogLevel, err)
	}

	l := &Logger{
		level:  level,
		logDir: cfg.LogDirectory,
		mu:     &sync.Mutex{},
	}

	infoFile, err := l.openLogFile("info.log")
	if err != nil {
		return nil, err
	}
	warningFile, err := l.openLogFile("warning.log")
	if err != nil {
		l.Close()
		return nil, err
	}
	errorFile, err := l.openLogFile("error.log")
	if err != nil {
		l.Close()
		return nil, err
	}

	l.setupLoggers(
		io.MultiWriter(os.Stdout, infoFile),
		io.MultiWriter(os.Stdout, warningFile),
		io.MultiWriter(os.Stderr, errorFile),
	)
	return l, nil
}

// New creates a Logger that writes every level to w.
func New(w io.Writer, level slog.Level) *Logger {
	lv := new(slog.LevelVar)
	lv.Set(level)
	l := &Logger{level: lv, mu: &sync.Mutex{}}
	l.setupLoggers(w, w, w)
	return l
}

// NewNop returns a Logger that discards everything.
func NewNop() *Logger {
	return New(io.Discard, slog.LevelError)
}

// setupLoggers initializes the per-level slog loggers.
func (l *Logger) setupLoggers(infoWriter, warningWriter, errorWriter io.Writer) {
	opts := &slog.HandlerOptions{Level: l.level}
	l.infoLog = slog.New(slog.NewTextHandler(infoWriter, opts))
	l.warningLog = slog.New(slog.NewTextHandler(warningWriter, opts))
	l.errorLog = slog.New(slog.NewTextHandler(errorWriter, opts))
}

// openLogFile opens or creates a log file for appending.
func (l *Logger) openLogFile(name string) (*os.File, error) {
	path := filepath.Join(l.logDir, name)
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file %s: %w", path, err)
	}
	l.closers = append(l.closers, file)
	return file, nil
}

// With returns a Logger that adds the given key/value attributes to every entry.
func (l *Logger) With(args ...any) *Logger {
	return &Logger{
		infoLog:    l.infoLog.With(args...),
		warningLog: l.warningLog.With(args...),
		errorLog:   l.errorLog.With(args...),
		level:      l.level,
		logDir:     l.logDir,
		mu:         l.mu,
	}
}

// SetLevel changes the minimum level at runtime.
func (l *Logger) SetLevel(level slog.Level) {
	l.level.Set(level)
}

// Enabled reports whether entries at level would be written.
func (l *Logger) Enabled(level slog.Level) bool {
	return l.infoLog.Enabled(context.Background(), level)
}

// Debug writes a formatted debug-level log entry.
func (l *Logger) Debug(format string, v ...any) {
	if !l.Enabled(slog.LevelDebug) {
		return
	}
	l.infoLog.Debug(fmt.Sprintf(format, v...))
}

// Info writes a formatted info-level log entry.
func (l *Logger) Info(format string, v ...any) {
	l.infoLog.Info(fmt.Sprintf(format, v...))
}

// Warning writes a formatted warning-level log entry.
func (l *Logger) Warning(format string, v ...any) {
	l.warningLog.Warn(fmt.Sprintf(format, v...))
}

// Error writes a formatted error-level log entry.
func (l *Logger) Error(format string, v ...any) {
	l.errorLog.Error(fmt.Sprintf(format, v...))
}

// Close releases the log files. Loggers derived with With share the files and
// must not be used afterwards.
func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	var errs []error
	for _, c := range l.closers {
		errs = append(errs, c.Close())
	}
	l.closers = nil
	return errors.Join(errs...)
}
