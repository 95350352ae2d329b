package usecase

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/runoshun/git-pilot/internal/domain"
	"github.com/runoshun/git-pilot/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitRepo_CreatesStateDirectories(t *testing.T) {
	tmpDir := t.TempDir()
	pilotDir := filepath.Join(tmpDir, ".git", "pilot")

	manager := testutil.NewMockConfigManager()
	manager.RepoConfigInfo = domain.ConfigInfo{Path: filepath.Join(pilotDir, "config.toml")}
	uc := NewInitRepo(manager)

	out, err := uc.Execute(context.Background(), InitRepoInput{PilotDir: pilotDir})
	require.NoError(t, err)

	assert.Equal(t, pilotDir, out.PilotDir)
	assert.Equal(t, filepath.Join(pilotDir, "config.toml"), out.ConfigPath)
	assert.False(t, out.AlreadyInitialized)
	assert.True(t, manager.InitRepoCalled)

	info, err := os.Stat(filepath.Join(pilotDir, "logs"))
	require.NoError(t, err)
	assert.True(t, info.IsDir())

	info, err = os.Stat(filepath.Join(pilotDir, "cache"))
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestInitRepo_ExistingConfigIsPreserved(t *testing.T) {
	pilotDir := filepath.Join(t.TempDir(), ".git", "pilot")

	manager := testutil.NewMockConfigManager()
	manager.InitRepoErr = domain.ErrConfigExists
	uc := NewInitRepo(manager)

	out, err := uc.Execute(context.Background(), InitRepoInput{PilotDir: pilotDir})
	require.NoError(t, err)
	assert.True(t, out.AlreadyInitialized)
}

func TestInitRepo_ConfigWriteFailure(t *testing.T) {
	pilotDir := filepath.Join(t.TempDir(), ".git", "pilot")

	manager := testutil.NewMockConfigManager()
	manager.InitRepoErr = errors.New("disk full")
	uc := NewInitRepo(manager)

	_, err := uc.Execute(context.Background(), InitRepoInput{PilotDir: pilotDir})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "write config template")
}
