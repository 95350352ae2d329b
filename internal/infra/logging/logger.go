// Package logging provides file-based logging for git-pilot.
// It outputs logs to both a daemon log file (.git/pilot/logs/pilot.log)
// and issue-specific log files (.git/pilot/logs/issue-N.log).
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/runoshun/git-pilot/internal/domain"
)

// Ensure Logger implements domain.Logger interface.
var _ domain.Logger = (*Logger)(nil)

// Logger writes formatted log lines to the pilot log files.
// Fields are ordered to minimize memory padding.
type Logger struct {
	daemonFile *os.File
	issueFiles map[int]*os.File
	pilotDir   string
	mu         sync.Mutex
	level      slog.Level
}

// New creates a new Logger that writes to the pilot log directory.
// If pilotDir is empty, logging is disabled (returns a no-op logger).
func New(pilotDir string, level slog.Level) *Logger {
	return &Logger{
		pilotDir:   pilotDir,
		level:      level,
		issueFiles: make(map[int]*os.File),
	}
}

// ParseLevel parses a log level string into slog.Level.
func ParseLevel(levelStr string) slog.Level {
	switch levelStr {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// ensureLogsDir creates the logs directory if it doesn't exist.
func (l *Logger) ensureLogsDir() error {
	return os.MkdirAll(filepath.Join(l.pilotDir, "logs"), 0o750)
}

// ensureDaemonFile opens or returns the daemon log file.
func (l *Logger) ensureDaemonFile() (*os.File, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.daemonFile != nil {
		return l.daemonFile, nil
	}

	if err := l.ensureLogsDir(); err != nil {
		return nil, fmt.Errorf("create logs directory: %w", err)
	}

	path := domain.GlobalLogPath(l.pilotDir)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o640) //nolint:gosec // Log file readable by owner and group
	if err != nil {
		return nil, fmt.Errorf("open daemon log file: %w", err)
	}
	l.daemonFile = f
	return f, nil
}

// ensureIssueFile opens or returns the issue log file.
func (l *Logger) ensureIssueFile(issue int) (*os.File, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if f, ok := l.issueFiles[issue]; ok {
		return f, nil
	}

	if err := l.ensureLogsDir(); err != nil {
		return nil, fmt.Errorf("create logs directory: %w", err)
	}

	path := domain.IssueLogPath(l.pilotDir, issue)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o640) //nolint:gosec // Log file readable by owner and group
	if err != nil {
		return nil, fmt.Errorf("open issue log file: %w", err)
	}
	l.issueFiles[issue] = f
	return f, nil
}

// Close closes all open log files.
func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	var lastErr error
	if l.daemonFile != nil {
		if err := l.daemonFile.Close(); err != nil {
			lastErr = err
		}
		l.daemonFile = nil
	}
	for id, f := range l.issueFiles {
		if err := f.Close(); err != nil {
			lastErr = err
		}
		delete(l.issueFiles, id)
	}
	return lastErr
}

// formatLog formats a log entry.
// Format: [2025-12-30 09:32:51] [INFO] [issue-1] [stage] message
func formatLog(t time.Time, level slog.Level, issue int, stage, msg string) string {
	issueStr := "daemon"
	if issue > 0 {
		issueStr = fmt.Sprintf("issue-%d", issue)
	}
	return fmt.Sprintf("[%s] [%s] [%s] [%s] %s\n",
		t.Format("2006-01-02 15:04:05"),
		levelToString(level),
		issueStr,
		stage,
		msg,
	)
}

func levelToString(level slog.Level) string {
	switch level {
	case slog.LevelDebug:
		return "DEBUG"
	case slog.LevelInfo:
		return "INFO"
	case slog.LevelWarn:
		return "WARN"
	case slog.LevelError:
		return "ERROR"
	default:
		return "INFO"
	}
}

// log writes a log entry to the appropriate files based on issue.
// If issue is 0, logs only to the daemon log.
// If issue > 0, logs to both the daemon log and the issue's log.
func (l *Logger) log(level slog.Level, issue int, stage, msg string) {
	if l.pilotDir == "" {
		return // Logging disabled
	}

	if level < l.level {
		return // Skip if below minimum level
	}

	entry := formatLog(time.Now(), level, issue, stage, msg)

	if df, err := l.ensureDaemonFile(); err == nil {
		_, _ = io.WriteString(df, entry)
	}

	if issue > 0 {
		if f, err := l.ensureIssueFile(issue); err == nil {
			_, _ = io.WriteString(f, entry)
		}
	}
}

// Info logs an info message.
func (l *Logger) Info(issue int, stage, msg string) {
	l.log(slog.LevelInfo, issue, stage, msg)
}

// Debug logs a debug message.
func (l *Logger) Debug(issue int, stage, msg string) {
	l.log(slog.LevelDebug, issue, stage, msg)
}

// Warn logs a warning message.
func (l *Logger) Warn(issue int, stage, msg string) {
	l.log(slog.LevelWarn, issue, stage, msg)
}

// Error logs an error message.
func (l *Logger) Error(issue int, stage, msg string) {
	l.log(slog.LevelError, issue, stage, msg)
}
