package usecase

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/runoshun/git-pilot/internal/domain"
)

// InitRepoInput contains the input parameters for InitRepo.
type InitRepoInput struct {
	PilotDir string // Path to the .git/pilot state directory
}

// InitRepoOutput contains the output from InitRepo.
type InitRepoOutput struct {
	PilotDir           string // Path to the state directory
	ConfigPath         string // Path to the repository config file
	AlreadyInitialized bool   // True if a config file was already present
}

// InitRepo initializes a repository for git-pilot.
type InitRepo struct {
	configManager domain.ConfigManager
}

// NewInitRepo creates a new InitRepo use case.
func NewInitRepo(configManager domain.ConfigManager) *InitRepo {
	return &InitRepo{configManager: configManager}
}

// Execute initializes a repository for git-pilot. It creates the state
// directory under .git/pilot with its logs and cache subdirectories and
// writes the commented config template. Running it twice is safe; an
// existing config file is left untouched.
func (uc *InitRepo) Execute(_ context.Context, in InitRepoInput) (*InitRepoOutput, error) {
	logsDir := filepath.Join(in.PilotDir, "logs")
	if err := os.MkdirAll(logsDir, 0o750); err != nil {
		return nil, fmt.Errorf("create logs directory: %w", err)
	}

	cacheDir := domain.DefaultCacheDir(in.PilotDir)
	if err := os.MkdirAll(cacheDir, 0o750); err != nil {
		return nil, fmt.Errorf("create cache directory: %w", err)
	}

	alreadyInitialized := false
	if err := uc.configManager.InitRepoConfig(); err != nil {
		if !errors.Is(err, domain.ErrConfigExists) {
			return nil, fmt.Errorf("write config template: %w", err)
		}
		alreadyInitialized = true
	}

	return &InitRepoOutput{
		PilotDir:           in.PilotDir,
		ConfigPath:         uc.configManager.GetRepoConfigInfo().Path,
		AlreadyInitialized: alreadyInitialized,
	}, nil
}
