package usecase

import (
	"context"
	"testing"

	"github.com/runoshun/git-pilot/internal/domain"
	"github.com/runoshun/git-pilot/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestShowConfig_ReturnsBothConfigInfos(t *testing.T) {
	manager := testutil.NewMockConfigManager()
	manager.RepoConfigInfo = domain.ConfigInfo{
		Path:    "/test/.git/pilot/config.toml",
		Content: "[tracker]\nowner = \"acme\"",
		Exists:  true,
	}
	manager.GlobalConfigInfo = domain.ConfigInfo{
		Path:    "/home/test/.config/git-pilot/config.toml",
		Content: "[daemon]\npoll_interval = \"5m\"",
		Exists:  true,
	}

	uc := NewShowConfig(manager)
	out, err := uc.Execute(context.Background(), ShowConfigInput{})

	require.NoError(t, err)
	assert.Equal(t, "/test/.git/pilot/config.toml", out.RepoConfig.Path)
	assert.Contains(t, out.RepoConfig.Content, "acme")
	assert.True(t, out.RepoConfig.Exists)
	assert.Equal(t, "/home/test/.config/git-pilot/config.toml", out.GlobalConfig.Path)
	assert.True(t, out.GlobalConfig.Exists)
}

func TestShowConfig_MissingFiles(t *testing.T) {
	manager := testutil.NewMockConfigManager()

	uc := NewShowConfig(manager)
	out, err := uc.Execute(context.Background(), ShowConfigInput{})

	require.NoError(t, err)
	assert.False(t, out.RepoConfig.Exists)
	assert.False(t, out.GlobalConfig.Exists)
	assert.NotEmpty(t, out.RepoConfig.Path)
}
