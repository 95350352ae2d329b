package config

import (
	"errors"
	"os"
	"path/filepath"

	"github.com/runoshun/git-pilot/internal/domain"
)

// Manager manages configuration files.
type Manager struct {
	pilotDir      string // Path to .git/pilot directory
	globalConfDir string // Path to global config directory (e.g., ~/.config/git-pilot)
}

// NewManager creates a new Manager.
func NewManager(pilotDir string) *Manager {
	return &Manager{
		pilotDir:      pilotDir,
		globalConfDir: defaultGlobalConfigDir(),
	}
}

// NewManagerWithGlobalDir creates a new Manager with a custom global config directory.
// This is useful for testing.
func NewManagerWithGlobalDir(pilotDir, globalConfDir string) *Manager {
	return &Manager{
		pilotDir:      pilotDir,
		globalConfDir: globalConfDir,
	}
}

// GetRepoConfigInfo returns information about the repository config file.
func (m *Manager) GetRepoConfigInfo() domain.ConfigInfo {
	return getConfigInfo(filepath.Join(m.pilotDir, domain.ConfigFileName))
}

// GetGlobalConfigInfo returns information about the global config file.
func (m *Manager) GetGlobalConfigInfo() domain.ConfigInfo {
	if m.globalConfDir == "" {
		return domain.ConfigInfo{}
	}
	return getConfigInfo(filepath.Join(m.globalConfDir, domain.ConfigFileName))
}

// getConfigInfo reads a config file and returns its info.
func getConfigInfo(path string) domain.ConfigInfo {
	content, err := os.ReadFile(path)
	if err != nil {
		return domain.ConfigInfo{Path: path}
	}
	return domain.ConfigInfo{
		Path:    path,
		Content: string(content),
		Exists:  true,
	}
}

// InitRepoConfig creates the pilot directory and writes the commented
// config template. Returns domain.ErrConfigExists when one is present.
func (m *Manager) InitRepoConfig() error {
	if err := os.MkdirAll(m.pilotDir, 0o700); err != nil {
		return err
	}
	return initConfig(filepath.Join(m.pilotDir, domain.ConfigFileName))
}

// InitGlobalConfig creates a global config file with the default template.
func (m *Manager) InitGlobalConfig() error {
	if m.globalConfDir == "" {
		return errors.New("global config directory not available")
	}
	if err := os.MkdirAll(m.globalConfDir, 0o700); err != nil {
		return err
	}
	return initConfig(filepath.Join(m.globalConfDir, domain.ConfigFileName))
}

// initConfig writes the template unless the file already exists.
func initConfig(path string) error {
	if _, err := os.Stat(path); err == nil {
		return domain.ErrConfigExists
	}
	return os.WriteFile(path, []byte(domain.ConfigTemplate()), 0o600)
}
