package usecase

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/runoshun/git-pilot/internal/domain"
)

// ShowLogsInput contains the parameters for showing pilot logs.
type ShowLogsInput struct {
	Issue int // Issue number to show logs for, 0 for the daemon log
	Lines int // Number of lines to display from the end (0 = all)
}

// ShowLogsOutput contains the result of showing pilot logs.
type ShowLogsOutput struct {
	LogPath string // Path to the log file
	Content string // Log file content
}

// ShowLogs is the use case for viewing daemon and per-issue logs.
type ShowLogs struct {
	pilotDir string
}

// NewShowLogs creates a new ShowLogs use case.
func NewShowLogs(pilotDir string) *ShowLogs {
	return &ShowLogs{pilotDir: pilotDir}
}

// Execute reads and returns the log content.
func (uc *ShowLogs) Execute(_ context.Context, in ShowLogsInput) (*ShowLogsOutput, error) {
	logPath := domain.GlobalLogPath(uc.pilotDir)
	if in.Issue > 0 {
		logPath = domain.IssueLogPath(uc.pilotDir, in.Issue)
	}

	content, err := os.ReadFile(logPath)
	if err != nil {
		if os.IsNotExist(err) {
			if in.Issue > 0 {
				return nil, fmt.Errorf("issue %d: %w", in.Issue, domain.ErrNoLogs)
			}
			return nil, domain.ErrNoLogs
		}
		return nil, fmt.Errorf("read log file: %w", err)
	}

	// If lines is specified, get only the last N lines
	result := string(content)
	if in.Lines > 0 {
		lines := strings.Split(result, "\n")
		if len(lines) > in.Lines {
			lines = lines[len(lines)-in.Lines:]
		}
		result = strings.Join(lines, "\n")
	}

	return &ShowLogsOutput{
		LogPath: logPath,
		Content: result,
	}, nil
}
