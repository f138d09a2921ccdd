package contract

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/huangsam/kernscore/schema"
)

// RunLog is a debug-level log file scoped to a single run.
type RunLog struct {
	*slog.Logger
	Path string
	file *os.File
}

// NewRunLogger creates <outputDir>/logs/<mode>_<tag>_<YYYYmmdd_HHMMSS>.log and
// returns a logger writing to it.
func NewRunLogger(outputDir, versionRange string, mode schema.RunMode) (*RunLog, error) {
	logDir := filepath.Join(outputDir, "logs")
	if err := os.MkdirAll(logDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create log directory %q: %w", logDir, err)
	}
	name := fmt.Sprintf("%s_%s_%s.log", mode, VersionTag(versionRange), time.Now().Format("20060102_150405"))
	path := filepath.Join(logDir, name)
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file %q: %w", path, err)
	}
	handler := slog.NewTextHandler(file, &slog.HandlerOptions{Level: slog.LevelDebug})
	logger := slog.New(handler).With("mode", string(mode), "version_range", versionRange)
	logger.Info("run started", "log_file", path)
	return &RunLog{Logger: logger, Path: path, file: file}, nil
}

// Close flushes and closes the log file.
func (l *RunLog) Close() error {
	if l == nil || l.file == nil {
		return nil
	}
	return l.file.Close()
}

// DiscardLogger returns a logger that drops every record.
func DiscardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
