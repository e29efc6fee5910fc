package logging

import (
	"log/slog"
	"os"
	"strings"
	"sync"
	"testing"

	"github.com/giygas/mfds-oncology-api/config"
)

type LoggingService struct {
	Logger *slog.Logger
	file   *RotatingLogger
}

// Close flushes and closes the rotating log file, if any.
func (s *LoggingService) Close() error {
	if s == nil || s.file == nil {
		return nil
	}
	return s.file.Close()
}

var (
	DefaultLoggingService *LoggingService
	serviceMu             sync.Mutex
)

// InitLogger initializes the global logger with the default retention and size.
func InitLogger(logDir string) {
	InitLoggerWithRetention(logDir, config.EnvDevelopment, "", 4, 100*1024*1024)
}

// InitLoggerWithRetention initializes the global logger. The console level
// follows the environment unless logLevel overrides it; the file always
// records debug.
func InitLoggerWithRetention(logDir string, env config.Environment, logLevel string, retentionWeeks int, maxFileSize int64) {
	logger, file := SetupLoggerWithOptions(Options{
		Dir:            logDir,
		RetentionWeeks: retentionWeeks,
		MaxFileSize:    maxFileSize,
		ConsoleLevel:   GetConsoleLogLevel(env, logLevel, verboseTestRun()),
		FileLevel:      GetFileLogLevel(),
	})

	serviceMu.Lock()
	previous := DefaultLoggingService
	DefaultLoggingService = &LoggingService{Logger: logger, file: file}
	serviceMu.Unlock()

	if previous != nil {
		_ = previous.Close()
	}
	slog.SetDefault(logger)
}

// Shutdown closes the global logger's file.
func Shutdown() {
	serviceMu.Lock()
	svc := DefaultLoggingService
	DefaultLoggingService = nil
	serviceMu.Unlock()

	_ = svc.Close()
}

// ResetForTest installs a fresh global logger writing to dir and closes it
// when the test ends.
func ResetForTest(t testing.TB, dir string, env config.Environment, logLevel string, retentionWeeks int, maxFileSize int64) {
	t.Helper()
	InitLoggerWithRetention(dir, env, logLevel, retentionWeeks, maxFileSize)
	t.Cleanup(Shutdown)
}

// GetConsoleLogLevel picks the console level. Tests stay quiet at error
// unless run verbosely, where they log at info; LOG_LEVEL is ignored there.
// Elsewhere an explicit level wins, then development logs info and deployed
// environments log warn.
func GetConsoleLogLevel(env config.Environment, logLevel string, verbose bool) slog.Level {
	if env == config.EnvTest {
		if verbose {
			return slog.LevelInfo
		}
		return slog.LevelError
	}
	if logLevel != "" {
		return parseLogLevel(logLevel)
	}
	if env == config.EnvDevelopment {
		return slog.LevelInfo
	}
	return slog.LevelWarn
}

// GetFileLogLevel is the level for the rotating file.
func GetFileLogLevel() slog.Level {
	return slog.LevelDebug
}

// verboseTestRun reports whether the process is a `go test -v` binary.
func verboseTestRun() bool {
	for _, arg := range os.Args[1:] {
		if arg == "-test.v" || arg == "-test.v=true" || arg == "-test.v=test2json" {
			return true
		}
	}
	return false
}

func parseLogLevel(s string) slog.Level {
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

func current() *slog.Logger {
	serviceMu.Lock()
	defer serviceMu.Unlock()
	if DefaultLoggingService == nil {
		return nil
	}
	return DefaultLoggingService.Logger
}

// Package-level functions for direct access

func Info(msg string, args ...any) {
	logger := current()
	if logger == nil {
		// Fallback to console logger if not initialized
		fallback := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		}))
		fallback.Info(msg, args...)
		return
	}
	logger.Info(msg, args...)
}

func Error(msg string, args ...any) {
	logger := current()
	if logger == nil {
		fallback := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelError,
		}))
		fallback.Error(msg, args...)
		return
	}
	logger.Error(msg, args...)
}

func Warn(msg string, args ...any) {
	logger := current()
	if logger == nil {
		fallback := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelWarn,
		}))
		fallback.Warn(msg, args...)
		return
	}
	logger.Warn(msg, args...)
}

func Debug(msg string, args ...any) {
	logger := current()
	if logger == nil {
		fallback := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelDebug,
		}))
		fallback.Debug(msg, args...)
		return
	}
	logger.Debug(msg, args...)
}
