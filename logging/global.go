// Package logging wires log/slog for the leaflet API: console text output,
// JSON lines in a weekly rotating file, and package-level helpers.
package logging

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
)

// Options configures the global logger
type Options struct {
	Dir            string
	Level          string
	RetentionWeeks int
	MaxFileSize    int64
}

type LoggingService struct {
	Logger   *slog.Logger
	rotating *RotatingLogger
}

var DefaultLoggingService *LoggingService

// InitLogger initializes the global logger instance and sets it as slog default
func InitLogger(opts Options) {
	logger, rotating := SetupLogger(opts)
	DefaultLoggingService = &LoggingService{
		Logger:   logger,
		rotating: rotating,
	}
	slog.SetDefault(logger)
}

// Close flushes and closes the rotating file, if any
func Close() error {
	if DefaultLoggingService == nil || DefaultLoggingService.rotating == nil {
		return nil
	}
	return DefaultLoggingService.rotating.Close()
}

// ParseLogLevel maps debug/info/warn/error to a slog level, defaulting to info
func ParseLogLevel(level string) slog.Level {
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

func current() *slog.Logger {
	if DefaultLoggingService == nil || DefaultLoggingService.Logger == nil {
		// Fallback to console logger if not initialized
		return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
	}
	return DefaultLoggingService.Logger
}

// Logger returns the global logger, a console logger before InitLogger
func Logger() *slog.Logger {
	return current()
}

// With returns a logger carrying the given attributes on every record
func With(args ...any) *slog.Logger {
	return current().With(args...)
}

// Package-level functions for direct access

func Info(msg string, args ...any) {
	current().Info(msg, args...)
}

func Error(msg string, args ...any) {
	current().Error(msg, args...)
}

func Warn(msg string, args ...any) {
	current().Warn(msg, args...)
}

func Debug(msg string, args ...any) {
	current().Debug(msg, args...)
}

// Fatal logs at error level and exits
func Fatal(msg string, args ...any) {
	current().Error(msg, args...)
	_ = Close()
	os.Exit(1)
}

// SetupLogger builds a logger writing text to stdout and JSON to a rotating file in opts.Dir.
// When the directory cannot be used it falls back to console only.
func SetupLogger(opts Options) (*slog.Logger, *RotatingLogger) {
	level := ParseLogLevel(opts.Level)
	consoleHandler := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level})

	if opts.Dir == "" {
		return slog.New(consoleHandler), nil
	}

	if opts.RetentionWeeks <= 0 {
		opts.RetentionWeeks = 4
	}

	rotating, err := NewRotatingLogger(opts.Dir, opts.RetentionWeeks, opts.MaxFileSize)
	if err != nil {
		logger := slog.New(consoleHandler)
		logger.Error("Failed to initialize rotating logger", "error", err)
		return logger, nil
	}

	fileHandler := slog.NewJSONHandler(rotating, &slog.HandlerOptions{Level: level})

	return slog.New(&multiHandler{handlers: []slog.Handler{consoleHandler, fileHandler}}), rotating
}

func (o Options) String() string {
	return fmt.Sprintf("dir=%s level=%s retention_weeks=%d max_file_size=%d", o.Dir, o.Level, o.RetentionWeeks, o.MaxFileSize)
}
