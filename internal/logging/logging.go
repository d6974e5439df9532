// Package logging sets up structured logging: a slog fan-out to console, log
// file, OpenTelemetry and Graylog, plus a zerolog adapter for components that
// take a key-value logger.
package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// LogFilePath builds the per-run log file path using OS-appropriate separators.
func LogFilePath(logsDir, name string, runStart time.Time) string {
	return filepath.Join(
		logsDir,
		fmt.Sprintf("%s.%s.log", name, runStart.Format("20060102_150405")),
	)
}

// OpenLogFile creates logsDir if needed and opens a fresh per-run log file.
func OpenLogFile(logsDir, name string, runStart time.Time) (*os.File, error) {
	if err := os.MkdirAll(logsDir, 0755); err != nil {
		return nil, fmt.Errorf("create logs dir: %w", err)
	}
	path := LogFilePath(logsDir, name, runStart)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}
	return f, nil
}
