// Package log provides a thin, component-scoped wrapper over log/slog.
//
// Callers that don't care about structured logging can ignore this package
// entirely; packages internal to this module obtain a *LazyLogger once per
// component and log through it.
package log

import (
	"io"
	"log/slog"
	"os"
)

var defaultLogger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))

// currentLevel is the level SetOutput rebuilds the default logger at: Info
// until SetLevel chooses another.
var currentLevel = slog.LevelInfo

// SetDefault replaces the package-wide default logger.
func SetDefault(l *slog.Logger) {
	defaultLogger = l
	slog.SetDefault(l)
}

// Default returns the current default logger.
func Default() *slog.Logger {
	return defaultLogger
}

// SetOutput redirects the default logger's output, preserving its level.
func SetOutput(w io.Writer) {
	defaultLogger = slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: currentLevel}))
}

// SetLevel rebuilds the default logger at the given level, writing to stderr.
func SetLevel(level slog.Level) {
	currentLevel = level
	defaultLogger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// LazyLogger re-reads the package-level default logger on every call, so a
// component handle obtained early keeps working after a later SetOutput or
// SetLevel call redirects where logs go.
type LazyLogger struct {
	component string
}

// Logger returns a handle scoped to component. Cheap enough to call at
// package-init time and store in a var.
func Logger(component string) *LazyLogger {
	return &LazyLogger{component: component}
}

func (l *LazyLogger) Debug(msg string, args ...any) { defaultLogger.With("component", l.component).Debug(msg, args...) }
func (l *LazyLogger) Info(msg string, args ...any)  { defaultLogger.With("component", l.component).Info(msg, args...) }
func (l *LazyLogger) Warn(msg string, args ...any)  { defaultLogger.With("component", l.component).Warn(msg, args...) }
func (l *LazyLogger) Error(msg string, args ...any) { defaultLogger.With("component", l.component).Error(msg, args...) }
