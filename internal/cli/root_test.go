package cli

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRootCommand_Help_ListsCommandGroups(t *testing.T) {
	root := NewRootCommand(nil, "test-version")
	var buf bytes.Buffer
	root.SetOut(&buf)
	root.SetErr(&buf)
	root.SetArgs([]string{"--help"})

	require.NoError(t, root.Execute())

	output := buf.String()
	assert.Contains(t, output, "Setup Commands:")
	assert.Contains(t, output, "Daemon:")
	assert.Contains(t, output, "Inspection:")
	for _, name := range []string{"init", "config", "daemon", "status", "watch", "logs", "health", "cache"} {
		assert.Contains(t, output, name)
	}
}

func TestNewRootCommand_Version(t *testing.T) {
	root := NewRootCommand(nil, "1.2.3")
	var buf bytes.Buffer
	root.SetOut(&buf)
	root.SetArgs([]string{"--version"})

	require.NoError(t, root.Execute())
	assert.Contains(t, buf.String(), "1.2.3")
}
