// Package progress maintains the append-only scan progress log: one
// timestamped line per traversal event, durable across restarts, mirrored
// to the structured logger.
package progress

import (
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"
)

// Log appends timestamped lines to a file. Safe for concurrent use; a nil
// *Log discards file writes and keeps only the slog mirror.
type Log struct {
	mu  sync.Mutex
	f   *os.File
	log *slog.Logger
}

// Open opens (creating if missing) the progress log for appending.
func Open(path string, logger *slog.Logger) (*Log, error) {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open progress log %s: %w", path, err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Log{f: f, log: logger}, nil
}

// Printf records one progress line.
func (l *Log) Printf(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	if l == nil {
		slog.Info(msg)
		return
	}
	l.log.Info(msg)

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.f != nil {
		fmt.Fprintf(l.f, "[%s] %s\n", time.Now().Format(time.RFC3339), msg)
	}
}

// Close flushes and closes the underlying file.
func (l *Log) Close() error {
	if l == nil {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.f == nil {
		return nil
	}
	err := l.f.Close()
	l.f = nil
	return err
}
