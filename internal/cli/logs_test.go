package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/runoshun/git-pilot/internal/app"
	"github.com/runoshun/git-pilot/internal/domain"
)

func writeLogFile(t *testing.T, pilotDir, name, content string) {
	t.Helper()
	logsDir := filepath.Join(pilotDir, "logs")
	require.NoError(t, os.MkdirAll(logsDir, 0o750))
	require.NoError(t, os.WriteFile(filepath.Join(logsDir, name), []byte(content), 0o600))
}

func TestLogsCommand_ShowsDaemonLog(t *testing.T) {
	pilotDir := t.TempDir()
	writeLogFile(t, pilotDir, "pilot.log", "[2026-02-01 09:00:00] [INFO] [daemon] [cycle] cycle complete")
	container := &app.Container{Paths: app.Paths{PilotDir: pilotDir}}

	cmd := newLogsCommand(container)
	var buf bytes.Buffer
	cmd.SetOut(&buf)
	cmd.SetArgs([]string{})

	require.NoError(t, cmd.Execute())
	assert.Contains(t, buf.String(), "cycle complete")
}

func TestLogsCommand_IssueArg(t *testing.T) {
	pilotDir := t.TempDir()
	writeLogFile(t, pilotDir, "issue-12.log", "[2026-02-01 09:00:00] [INFO] [issue-12] [start] session created")
	container := &app.Container{Paths: app.Paths{PilotDir: pilotDir}}

	cmd := newLogsCommand(container)
	var buf bytes.Buffer
	cmd.SetOut(&buf)
	cmd.SetArgs([]string{"#12"})

	require.NoError(t, cmd.Execute())
	assert.Contains(t, buf.String(), "session created")
}

func TestLogsCommand_MissingLog(t *testing.T) {
	container := &app.Container{Paths: app.Paths{PilotDir: t.TempDir()}}

	cmd := newLogsCommand(container)
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{})

	err := cmd.Execute()
	assert.ErrorIs(t, err, domain.ErrNoLogs)
}

func TestParseIssueNumber(t *testing.T) {
	n, err := parseIssueNumber("#7")
	require.NoError(t, err)
	assert.Equal(t, 7, n)

	n, err = parseIssueNumber("42")
	require.NoError(t, err)
	assert.Equal(t, 42, n)

	_, err = parseIssueNumber("abc")
	assert.Error(t, err)

	_, err = parseIssueNumber("0")
	assert.Error(t, err)
}
