package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"sync"
	"time"
)

const logFilePrefix = "approvals-"

var logFilePattern = regexp.MustCompile(`^approvals-(\d{4}-W\d{2})(?:\.(\d+))?\.log$`)

// RotatingLogger writes to one file per ISO week. A week whose file reaches
// maxFileSize continues in numbered parts: approvals-2025-W10.log,
// approvals-2025-W10.1.log, ...
type RotatingLogger struct {
	dir         string
	retention   time.Duration
	maxFileSize int64
	now         func() time.Time

	mu     sync.Mutex
	file   *os.File
	week   string
	part   int
	size   int64
	closed bool

	stop      chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once
}

// NewRotatingLogger returns a logger writing under dir. Zero retention keeps
// files forever and a zero size limit disables size rotation.
func NewRotatingLogger(dir string, retentionWeeks int, maxFileSize int64) *RotatingLogger {
	return &RotatingLogger{
		dir:         dir,
		retention:   time.Duration(retentionWeeks) * 7 * 24 * time.Hour,
		maxFileSize: maxFileSize,
		now:         time.Now,
		stop:        make(chan struct{}),
	}
}

// weekKey returns the ISO week of t as YYYY-Www.
func weekKey(t time.Time) string {
	year, week := t.ISOWeek()
	return fmt.Sprintf("%d-W%02d", year, week)
}

func logFileName(week string, part int) string {
	if part == 0 {
		return logFilePrefix + week + ".log"
	}
	return fmt.Sprintf("%s%s.%d.log", logFilePrefix, week, part)
}

// parseLogFileName reports the week and part encoded in a log file name.
func parseLogFileName(name string) (week string, part int, ok bool) {
	m := logFilePattern.FindStringSubmatch(name)
	if m == nil {
		return "", 0, false
	}
	if m[2] != "" {
		part, _ = strconv.Atoi(m[2])
	}
	return m[1], part, true
}

// Open creates the directory and opens the file for the current week,
// resuming its newest part.
func (rl *RotatingLogger) Open() error {
	if err := os.MkdirAll(rl.dir, 0755); err != nil {
		return fmt.Errorf("failed to create log directory %s: %w", rl.dir, err)
	}

	rl.mu.Lock()
	defer rl.mu.Unlock()
	return rl.openWeek(weekKey(rl.now()))
}

// openWeek resumes the newest part of week, moving to a fresh part when
// that one is already full. Caller holds mu.
func (rl *RotatingLogger) openWeek(week string) error {
	part := rl.lastPart(week)
	if err := rl.openPart(week, part); err != nil {
		return err
	}
	if rl.full(0) {
		return rl.openPart(week, part+1)
	}
	return nil
}

// openPart swaps the current file for the given part. Caller holds mu.
func (rl *RotatingLogger) openPart(week string, part int) error {
	path := filepath.Join(rl.dir, logFileName(week, part))
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("failed to open log file %s: %w", path, err)
	}
	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return fmt.Errorf("failed to stat log file %s: %w", path, err)
	}

	if rl.file != nil {
		_ = rl.file.Close()
	}
	rl.file, rl.week, rl.part, rl.size = f, week, part, info.Size()
	return nil
}

func (rl *RotatingLogger) lastPart(week string) int {
	entries, err := os.ReadDir(rl.dir)
	if err != nil {
		return 0
	}
	last := 0
	for _, e := range entries {
		if w, part, ok := parseLogFileName(e.Name()); ok && w == week && part > last {
			last = part
		}
	}
	return last
}

// full reports whether writing next more bytes would pass the size limit.
// An empty file always accepts the write.
func (rl *RotatingLogger) full(next int) bool {
	if rl.maxFileSize <= 0 {
		return false
	}
	if next == 0 {
		return rl.size >= rl.maxFileSize
	}
	return rl.size > 0 && rl.size+int64(next) > rl.maxFileSize
}

// Write appends p to the current file, rotating on a new week or when the
// size limit would be crossed.
func (rl *RotatingLogger) Write(p []byte) (int, error) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	if rl.closed {
		return 0, os.ErrClosed
	}

	week := weekKey(rl.now())
	var err error
	switch {
	case rl.file == nil || week != rl.week:
		err = rl.openWeek(week)
	case rl.full(len(p)):
		err = rl.openPart(week, rl.part+1)
	}
	if err != nil {
		return 0, err
	}

	n, err := rl.file.Write(p)
	rl.size += int64(n)
	return n, err
}

// CurrentFile returns the path of the file being written.
func (rl *RotatingLogger) CurrentFile() string {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	if rl.file == nil {
		return ""
	}
	return rl.file.Name()
}

// Cleanup removes log files last modified before the retention window.
// The file being written is never removed.
func (rl *RotatingLogger) Cleanup() (int, error) {
	if rl.retention <= 0 {
		return 0, nil
	}

	entries, err := os.ReadDir(rl.dir)
	if err != nil {
		return 0, fmt.Errorf("failed to read log directory: %w", err)
	}

	current := filepath.Base(rl.CurrentFile())
	cutoff := rl.now().Add(-rl.retention)
	removed := 0

	for _, e := range entries {
		if e.IsDir() || e.Name() == current {
			continue
		}
		if _, _, ok := parseLogFileName(e.Name()); !ok {
			continue
		}
		info, err := e.Info()
		if err != nil || !info.ModTime().Before(cutoff) {
			continue
		}
		if err := os.Remove(filepath.Join(rl.dir, e.Name())); err == nil {
			removed++
		}
	}
	return removed, nil
}

// startCleanup runs Cleanup every interval until Close.
func (rl *RotatingLogger) startCleanup(interval time.Duration) {
	rl.wg.Add(1)
	go func() {
		defer rl.wg.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-rl.stop:
				return
			case <-ticker.C:
				if n, err := rl.Cleanup(); err != nil {
					fmt.Fprintf(os.Stderr, "log cleanup failed: %v\n", err)
				} else if n > 0 {
					// Console only, the file logger is the one being cleaned
					fmt.Fprintf(os.Stderr, "removed %d expired log files\n", n)
				}
			}
		}
	}()
}

// Close stops the cleanup loop and closes the current file. Later writes
// fail with os.ErrClosed.
func (rl *RotatingLogger) Close() error {
	var err error
	rl.closeOnce.Do(func() {
		close(rl.stop)
		rl.wg.Wait()

		rl.mu.Lock()
		defer rl.mu.Unlock()
		rl.closed = true
		if rl.file != nil {
			err = rl.file.Close()
			rl.file = nil
		}
	})
	return err
}
