// Package config loads the layered TOML configuration.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"github.com/runoshun/git-pilot/internal/domain"
)

// Ensure Loader implements domain.ConfigLoader.
var _ domain.ConfigLoader = (*Loader)(nil)

// Loader loads configuration from TOML files.
type Loader struct {
	pilotDir      string // Path to .git/pilot directory
	globalConfDir string // Path to global config directory (e.g., ~/.config/git-pilot)
}

// NewLoader creates a new Loader.
func NewLoader(pilotDir string) *Loader {
	return &Loader{
		pilotDir:      pilotDir,
		globalConfDir: defaultGlobalConfigDir(),
	}
}

// NewLoaderWithGlobalDir creates a new Loader with a custom global config directory.
// This is useful for testing.
func NewLoaderWithGlobalDir(pilotDir, globalConfDir string) *Loader {
	return &Loader{
		pilotDir:      pilotDir,
		globalConfDir: globalConfDir,
	}
}

// defaultGlobalConfigDir returns the default global config directory.
func defaultGlobalConfigDir() string {
	configHome := os.Getenv("XDG_CONFIG_HOME")
	if configHome == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return ""
		}
		configHome = filepath.Join(home, ".config")
	}
	return domain.GlobalPilotDir(configHome)
}

// Paths returns the config file paths in ascending precedence order. The
// daemon watches these files for hot reload.
func (l *Loader) Paths() []string {
	paths := make([]string, 0, 2)
	if l.globalConfDir != "" {
		paths = append(paths, filepath.Join(l.globalConfDir, domain.ConfigFileName))
	}
	paths = append(paths, filepath.Join(l.pilotDir, domain.ConfigFileName))
	return paths
}

// Load returns the merged configuration (repo + global).
// Repository config takes precedence over global config.
func (l *Loader) Load() (*domain.Config, error) {
	global, err := l.LoadGlobal()
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}

	repo, err := l.LoadRepo()
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}

	// Merge: default <- global <- repo (later takes precedence)
	base := domain.NewDefaultConfig()
	if global != nil {
		base = mergeConfigs(base, global)
	}
	if repo != nil {
		base = mergeConfigs(base, repo)
	}

	if err := base.Validate(); err != nil {
		return nil, err
	}
	return base, nil
}

// LoadGlobal returns only the global configuration.
func (l *Loader) LoadGlobal() (*domain.Config, error) {
	if l.globalConfDir == "" {
		return nil, os.ErrNotExist
	}
	return loadFile(filepath.Join(l.globalConfDir, domain.ConfigFileName))
}

// LoadRepo returns only the repository configuration.
func (l *Loader) LoadRepo() (*domain.Config, error) {
	return loadFile(filepath.Join(l.pilotDir, domain.ConfigFileName))
}

// loadFile parses one TOML file. Unknown keys are collected into Warnings
// instead of failing the load.
func loadFile(path string) (*domain.Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg domain.Config
	dec := toml.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	err = dec.Decode(&cfg)

	var strictErr *toml.StrictMissingError
	switch {
	case errors.As(err, &strictErr):
		for i := range strictErr.Errors {
			key := strings.Join(strictErr.Errors[i].Key(), ".")
			cfg.Warnings = append(cfg.Warnings, fmt.Sprintf("unknown key in %s: %s", filepath.Base(path), key))
		}
	case err != nil:
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return &cfg, nil
}

// mergeConfigs merges two configs, with override taking precedence.
func mergeConfigs(base, override *domain.Config) *domain.Config {
	result := *base
	result.Warnings = append(append([]string{}, base.Warnings...), override.Warnings...)

	mergeDaemon(&result.Daemon, override.Daemon)
	mergeTracker(&result.Tracker, override.Tracker)
	mergeSessions(&result.Sessions, override.Sessions)
	mergeReview(&result.Review, override.Review)
	mergeScan(&result.Scan, override.Scan)
	mergeCache(&result.Cache, override.Cache)
	mergeBreaker(&result.Breaker, override.Breaker)
	if override.Log.Level != "" {
		result.Log.Level = override.Log.Level
	}
	return &result
}

func mergeDaemon(dst *domain.DaemonConfig, src domain.DaemonConfig) {
	if src.PollInterval != "" {
		dst.PollInterval = src.PollInterval
	}
	if src.Schedule != "" {
		dst.Schedule = src.Schedule
	}
	if src.MaxReady != 0 {
		dst.MaxReady = src.MaxReady
	}
	if src.MaxInProgress != 0 {
		dst.MaxInProgress = src.MaxInProgress
	}
	if src.BacklogThrottle != 0 {
		dst.BacklogThrottle = src.BacklogThrottle
	}
	if src.MaxItemRetries != 0 {
		dst.MaxItemRetries = src.MaxItemRetries
	}
	if src.MaxResolutionAttempts != 0 {
		dst.MaxResolutionAttempts = src.MaxResolutionAttempts
	}
}

func mergeTracker(dst *domain.TrackerConfig, src domain.TrackerConfig) {
	if src.Owner != "" {
		dst.Owner = src.Owner
	}
	if src.Repo != "" {
		dst.Repo = src.Repo
	}
	if src.BaseBranch != "" {
		dst.BaseBranch = src.BaseBranch
	}
	if src.TokenEnv != "" {
		dst.TokenEnv = src.TokenEnv
	}
	if src.APIBaseURL != "" {
		dst.APIBaseURL = src.APIBaseURL
	}
	if src.GraphQLURL != "" {
		dst.GraphQLURL = src.GraphQLURL
	}
	if src.ProjectNumber != 0 {
		dst.ProjectNumber = src.ProjectNumber
	}
}

func mergeSessions(dst *domain.SessionsConfig, src domain.SessionsConfig) {
	if src.BaseURL != "" {
		dst.BaseURL = src.BaseURL
	}
	if src.TokenEnv != "" {
		dst.TokenEnv = src.TokenEnv
	}
	if src.EnvironmentID != "" {
		dst.EnvironmentID = src.EnvironmentID
	}
	if src.Agent != "" {
		dst.Agent = src.Agent
	}
	if src.RepoURL != "" {
		dst.RepoURL = src.RepoURL
	}
}

func mergeReview(dst *domain.ReviewConfig, src domain.ReviewConfig) {
	if src.Command != "" {
		dst.Command = src.Command
	}
	if src.Timeout != "" {
		dst.Timeout = src.Timeout
	}
}

func mergeScan(dst *domain.ScanConfig, src domain.ScanConfig) {
	if len(src.Markers) > 0 {
		dst.Markers = src.Markers
	}
	if len(src.Exclude) > 0 {
		dst.Exclude = src.Exclude
	}
	if src.MaxFileBytes != 0 {
		dst.MaxFileBytes = src.MaxFileBytes
	}
}

func mergeCache(dst *domain.CacheConfig, src domain.CacheConfig) {
	if src.Persist != nil {
		dst.Persist = src.Persist
	}
	if src.GitInvalidation != nil {
		dst.GitInvalidation = src.GitInvalidation
	}
	if src.Dir != "" {
		dst.Dir = src.Dir
	}
	if src.TTL != "" {
		dst.TTL = src.TTL
	}
	if src.MaxBytes != 0 {
		dst.MaxBytes = src.MaxBytes
	}
	if src.MaxEntries != 0 {
		dst.MaxEntries = src.MaxEntries
	}
	if src.SampleDepth != 0 {
		dst.SampleDepth = src.SampleDepth
	}
	if src.SampleLimit != 0 {
		dst.SampleLimit = src.SampleLimit
	}
}

func mergeBreaker(dst *domain.BreakerConfig, src domain.BreakerConfig) {
	if src.ResetTimeout != "" {
		dst.ResetTimeout = src.ResetTimeout
	}
	if src.FailureThreshold != 0 {
		dst.FailureThreshold = src.FailureThreshold
	}
	if src.SuccessThreshold != 0 {
		dst.SuccessThreshold = src.SuccessThreshold
	}
}
