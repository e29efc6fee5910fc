package logging

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"
)

const redacted = "[REDACTED]"

// sensitiveKeys never reach a log sink with their value.
var sensitiveKeys = map[string]bool{
	"password":      true,
	"token":         true,
	"authorization": true,
	"secret":        true,
	"service_key":   true,
	"servicekey":    true,
	"api_key":       true,
}

func redactAttr(_ []string, a slog.Attr) slog.Attr {
	if sensitiveKeys[strings.ToLower(a.Key)] {
		return slog.String(a.Key, redacted)
	}
	return a
}

// Options controls where and how verbosely the application logs.
type Options struct {
	Dir            string // empty logs to the console only
	RetentionWeeks int
	MaxFileSize    int64
	ConsoleLevel   slog.Level
	FileLevel      slog.Level
	Console        io.Writer // defaults to os.Stdout
}

// SetupLogger logs to the console and to weekly files under dir with the
// default retention and size limit.
func SetupLogger(dir string) (*slog.Logger, *RotatingLogger) {
	return SetupLoggerWithOptions(Options{
		Dir:            dir,
		RetentionWeeks: 4,
		MaxFileSize:    100 * 1024 * 1024,
		ConsoleLevel:   slog.LevelInfo,
		FileLevel:      GetFileLogLevel(),
	})
}

// SetupLoggerWithOptions builds a logger writing text to the console and
// JSON to a RotatingLogger. If the log file cannot be opened the logger
// falls back to the console and the returned RotatingLogger is nil.
func SetupLoggerWithOptions(opts Options) (*slog.Logger, *RotatingLogger) {
	console := opts.Console
	if console == nil {
		console = os.Stdout
	}
	consoleHandler := slog.NewTextHandler(console, &slog.HandlerOptions{
		Level:       opts.ConsoleLevel,
		ReplaceAttr: redactAttr,
	})

	if opts.Dir == "" {
		return slog.New(consoleHandler), nil
	}

	file := NewRotatingLogger(opts.Dir, opts.RetentionWeeks, opts.MaxFileSize)
	if err := file.Open(); err != nil {
		logger := slog.New(consoleHandler)
		logger.Error("Falling back to console logging", "error", err)
		return logger, nil
	}

	if _, err := file.Cleanup(); err != nil {
		slog.New(consoleHandler).Warn("Initial log cleanup failed", "error", err)
	}
	file.startCleanup(24 * time.Hour)

	fileHandler := slog.NewJSONHandler(file, &slog.HandlerOptions{
		Level:       opts.FileLevel,
		ReplaceAttr: redactAttr,
	})

	return slog.New(fanout{consoleHandler, fileHandler}), file
}

// fanout hands each record to every handler enabled for its level. A
// failing handler does not stop the others.
type fanout []slog.Handler

func (f fanout) Enabled(ctx context.Context, level slog.Level) bool {
	for _, h := range f {
		if h.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (f fanout) Handle(ctx context.Context, r slog.Record) error {
	var errs []error
	for _, h := range f {
		if h.Enabled(ctx, r.Level) {
			if err := h.Handle(ctx, r.Clone()); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}

func (f fanout) WithAttrs(attrs []slog.Attr) slog.Handler {
	out := make(fanout, len(f))
	for i, h := range f {
		out[i] = h.WithAttrs(attrs)
	}
	return out
}

func (f fanout) WithGroup(name string) slog.Handler {
	out := make(fanout, len(f))
	for i, h := range f {
		out[i] = h.WithGroup(name)
	}
	return out
}
