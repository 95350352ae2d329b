package domain

import (
	"crypto/sha256"
	_ "embed"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

//go:embed config_template.toml
var configTemplateContent string

// Default configuration values.
const (
	DefaultPollInterval          = 60 * time.Second
	DefaultMaxReady              = 3
	DefaultMaxInProgress         = 2
	DefaultBacklogThrottle       = 10
	DefaultMaxItemRetries        = 3
	DefaultMaxResolutionAttempts = 2
	DefaultCacheTTL              = 24 * time.Hour
	DefaultCacheMaxEntries       = 100
	DefaultCacheMaxBytes         = 50 << 20
	DefaultSampleDepth           = 4
	DefaultSampleLimit           = 200
	DefaultFailureThreshold      = 5
	DefaultSuccessThreshold      = 1
	DefaultResetTimeout          = 60 * time.Second
	DefaultReviewTimeout         = 10 * time.Minute
	DefaultAgent                 = "pilot"
	DefaultBaseBranch            = "main"
	DefaultTrackerTokenEnv       = "GITHUB_TOKEN"
	DefaultSessionTokenEnv       = "PILOT_SESSION_TOKEN"
	DefaultTrackerAPIURL         = "https://api.github.com"
	DefaultTrackerGraphQLURL     = "https://api.github.com/graphql"
)

// Config represents the application configuration.
// Fields are ordered to minimize memory padding.
type Config struct {
	Warnings []string       `toml:"-"`
	Daemon   DaemonConfig   `toml:"daemon"`
	Tracker  TrackerConfig  `toml:"tracker"`
	Sessions SessionsConfig `toml:"sessions"`
	Review   ReviewConfig   `toml:"review"`
	Scan     ScanConfig     `toml:"scan"`
	Cache    CacheConfig    `toml:"cache"`
	Breaker  BreakerConfig  `toml:"breaker"`
	Log      LogConfig      `toml:"log"`
}

// DaemonConfig holds loop settings from the [daemon] section.
type DaemonConfig struct {
	PollInterval          string `toml:"poll_interval,omitempty"`           // duration string, default "60s"
	Schedule              string `toml:"schedule,omitempty"`                // cron expression; overrides poll_interval when set
	MaxReady              int    `toml:"max_ready,omitempty"`               // Ready column capacity
	MaxInProgress         int    `toml:"max_in_progress,omitempty"`         // InProgress column capacity
	BacklogThrottle       int    `toml:"backlog_throttle,omitempty"`        // discovery skipped at or above this backlog size
	MaxItemRetries        int    `toml:"max_item_retries,omitempty"`        // revert-to-backlog bound before the attention label
	MaxResolutionAttempts int    `toml:"max_resolution_attempts,omitempty"` // automated conflict-resolution bound per item
}

// Interval returns the parsed poll interval, falling back to the default.
func (d DaemonConfig) Interval() time.Duration {
	dur, err := time.ParseDuration(d.PollInterval)
	if err != nil || dur <= 0 {
		return DefaultPollInterval
	}
	return dur
}

// TrackerConfig holds issue tracker settings from the [tracker] section.
type TrackerConfig struct {
	Owner         string `toml:"owner"`
	Repo          string `toml:"repo"`
	BaseBranch    string `toml:"base_branch,omitempty"`
	TokenEnv      string `toml:"token_env,omitempty"` // env var holding the API token
	APIBaseURL    string `toml:"api_base_url,omitempty"`
	GraphQLURL    string `toml:"graphql_url,omitempty"`
	ProjectNumber int    `toml:"project_number"`
}

// Token reads the tracker API token from the configured environment variable.
func (t TrackerConfig) Token() string {
	env := t.TokenEnv
	if env == "" {
		env = DefaultTrackerTokenEnv
	}
	return os.Getenv(env)
}

// Base returns the merge base branch, defaulting to main.
func (t TrackerConfig) Base() string {
	if t.BaseBranch == "" {
		return DefaultBaseBranch
	}
	return t.BaseBranch
}

// APIURL returns the REST endpoint base.
func (t TrackerConfig) APIURL() string {
	if t.APIBaseURL == "" {
		return DefaultTrackerAPIURL
	}
	return strings.TrimRight(t.APIBaseURL, "/")
}

// GraphQL returns the GraphQL endpoint.
func (t TrackerConfig) GraphQL() string {
	if t.GraphQLURL == "" {
		return DefaultTrackerGraphQLURL
	}
	return t.GraphQLURL
}

// SessionsConfig holds coding-session backend settings from [sessions].
type SessionsConfig struct {
	BaseURL       string `toml:"base_url"`
	TokenEnv      string `toml:"token_env,omitempty"`
	EnvironmentID string `toml:"environment_id"`     // execution environment; Start skips without it
	Agent         string `toml:"agent,omitempty"`    // names the branch prefix <agent>/issue-<n>
	RepoURL       string `toml:"repo_url,omitempty"` // defaults to https://github.com/<owner>/<repo>
}

// Token reads the session backend token from the configured env variable.
func (s SessionsConfig) Token() string {
	env := s.TokenEnv
	if env == "" {
		env = DefaultSessionTokenEnv
	}
	return os.Getenv(env)
}

// AgentName returns the agent name used in branch prefixes.
func (s SessionsConfig) AgentName() string {
	if s.Agent == "" {
		return DefaultAgent
	}
	return s.Agent
}

// ResolveRepoURL derives the clone URL from the tracker config when unset.
func (s SessionsConfig) ResolveRepoURL(tracker TrackerConfig) string {
	if s.RepoURL != "" {
		return s.RepoURL
	}
	if tracker.Owner == "" || tracker.Repo == "" {
		return ""
	}
	return fmt.Sprintf("https://github.com/%s/%s", tracker.Owner, tracker.Repo)
}

// ReviewConfig holds automated review settings from the [review] section.
type ReviewConfig struct {
	Command string `toml:"command,omitempty"` // reviewer command template; empty skips the review stage
	Timeout string `toml:"timeout,omitempty"`
}

// ReviewTimeout returns the parsed reviewer timeout.
func (r ReviewConfig) ReviewTimeout() time.Duration {
	dur, err := time.ParseDuration(r.Timeout)
	if err != nil || dur <= 0 {
		return DefaultReviewTimeout
	}
	return dur
}

// ScanConfig holds work-discovery settings from the [scan] section.
type ScanConfig struct {
	Markers      []string `toml:"markers,omitempty"` // marker prefixes, default TODO:/FIXME:
	Exclude      []string `toml:"exclude,omitempty"` // path prefixes skipped in addition to the builtin denylist
	MaxFileBytes int64    `toml:"max_file_bytes,omitempty"`
}

// MarkerList returns the configured markers or the defaults.
func (s ScanConfig) MarkerList() []string {
	if len(s.Markers) == 0 {
		return []string{"TODO:", "FIXME:"}
	}
	return s.Markers
}

// FileLimit returns the per-file size cap for scanning.
func (s ScanConfig) FileLimit() int64 {
	if s.MaxFileBytes <= 0 {
		return 1 << 20
	}
	return s.MaxFileBytes
}

// Hash returns a deterministic digest of the scan-relevant settings. It is
// the configHash component of cache keys: changing markers or excludes must
// produce a different key, independent of declaration order.
func (s ScanConfig) Hash() string {
	markers := append([]string(nil), s.MarkerList()...)
	excludes := append([]string(nil), s.Exclude...)
	sort.Strings(markers)
	sort.Strings(excludes)
	h := sha256.New()
	for _, m := range markers {
		h.Write([]byte(m))
		h.Write([]byte{0})
	}
	h.Write([]byte{1})
	for _, e := range excludes {
		h.Write([]byte(e))
		h.Write([]byte{0})
	}
	fmt.Fprintf(h, "|%d", s.FileLimit())
	return hex.EncodeToString(h.Sum(nil))[:16]
}

// CacheConfig holds analysis cache settings from the [cache] section.
// Persist and GitInvalidation default to true; pointers keep "unset"
// distinguishable from an explicit false.
type CacheConfig struct {
	Persist         *bool  `toml:"persist,omitempty"`
	GitInvalidation *bool  `toml:"git_invalidation,omitempty"`
	Dir             string `toml:"dir,omitempty"`
	TTL             string `toml:"ttl,omitempty"`
	MaxBytes        int64  `toml:"max_bytes,omitempty"`
	MaxEntries      int    `toml:"max_entries,omitempty"`
	SampleDepth     int    `toml:"sample_depth,omitempty"`
	SampleLimit     int    `toml:"sample_limit,omitempty"`
}

// PersistEnabled reports whether entries are mirrored to disk.
func (c CacheConfig) PersistEnabled() bool {
	return c.Persist == nil || *c.Persist
}

// GitInvalidationEnabled reports whether commit-based invalidation is used.
func (c CacheConfig) GitInvalidationEnabled() bool {
	return c.GitInvalidation == nil || *c.GitInvalidation
}

// EntryTTL returns the parsed entry time-to-live.
func (c CacheConfig) EntryTTL() time.Duration {
	dur, err := time.ParseDuration(c.TTL)
	if err != nil || dur <= 0 {
		return DefaultCacheTTL
	}
	return dur
}

// EntryLimit returns the maximum number of entries.
func (c CacheConfig) EntryLimit() int {
	if c.MaxEntries <= 0 {
		return DefaultCacheMaxEntries
	}
	return c.MaxEntries
}

// ByteLimit returns the maximum total serialized size.
func (c CacheConfig) ByteLimit() int64 {
	if c.MaxBytes <= 0 {
		return DefaultCacheMaxBytes
	}
	return c.MaxBytes
}

// Depth returns the bounded walk depth for content-hash sampling.
func (c CacheConfig) Depth() int {
	if c.SampleDepth <= 0 {
		return DefaultSampleDepth
	}
	return c.SampleDepth
}

// Samples returns the bounded file count for content-hash sampling.
func (c CacheConfig) Samples() int {
	if c.SampleLimit <= 0 {
		return DefaultSampleLimit
	}
	return c.SampleLimit
}

// BreakerConfig holds circuit breaker settings from the [breaker] section.
type BreakerConfig struct {
	ResetTimeout     string `toml:"reset_timeout,omitempty"`
	FailureThreshold int    `toml:"failure_threshold,omitempty"`
	SuccessThreshold int    `toml:"success_threshold,omitempty"`
}

// Failures returns the consecutive-failure threshold that opens the circuit.
func (b BreakerConfig) Failures() int {
	if b.FailureThreshold <= 0 {
		return DefaultFailureThreshold
	}
	return b.FailureThreshold
}

// Successes returns the consecutive-success threshold that closes the
// circuit from half-open. Default 1: a single trial call decides.
func (b BreakerConfig) Successes() int {
	if b.SuccessThreshold <= 0 {
		return DefaultSuccessThreshold
	}
	return b.SuccessThreshold
}

// Reset returns the open-to-half-open timeout.
func (b BreakerConfig) Reset() time.Duration {
	dur, err := time.ParseDuration(b.ResetTimeout)
	if err != nil || dur <= 0 {
		return DefaultResetTimeout
	}
	return dur
}

// LogConfig holds settings from the [log] section.
type LogConfig struct {
	Level string `toml:"level,omitempty"` // debug, info, warn, error
}

// Validate collects non-fatal problems into Warnings and returns hard errors.
func (c *Config) Validate() error {
	if c.Daemon.PollInterval != "" {
		if _, err := time.ParseDuration(c.Daemon.PollInterval); err != nil {
			c.Warnings = append(c.Warnings, fmt.Sprintf("daemon.poll_interval %q is not a duration, using default", c.Daemon.PollInterval))
		}
	}
	if c.Cache.TTL != "" {
		if _, err := time.ParseDuration(c.Cache.TTL); err != nil {
			c.Warnings = append(c.Warnings, fmt.Sprintf("cache.ttl %q is not a duration, using default", c.Cache.TTL))
		}
	}
	if c.Breaker.ResetTimeout != "" {
		if _, err := time.ParseDuration(c.Breaker.ResetTimeout); err != nil {
			c.Warnings = append(c.Warnings, fmt.Sprintf("breaker.reset_timeout %q is not a duration, using default", c.Breaker.ResetTimeout))
		}
	}
	if c.Daemon.MaxReady < 0 || c.Daemon.MaxInProgress < 0 {
		return fmt.Errorf("daemon capacities cannot be negative")
	}
	return nil
}

// Capacities returns the effective column capacities.
func (c *Config) Capacities() (maxReady, maxInProgress int) {
	maxReady = c.Daemon.MaxReady
	if maxReady == 0 {
		maxReady = DefaultMaxReady
	}
	maxInProgress = c.Daemon.MaxInProgress
	if maxInProgress == 0 {
		maxInProgress = DefaultMaxInProgress
	}
	return maxReady, maxInProgress
}

// Throttle returns the backlog size at which discovery is skipped.
func (c *Config) Throttle() int {
	if c.Daemon.BacklogThrottle <= 0 {
		return DefaultBacklogThrottle
	}
	return c.Daemon.BacklogThrottle
}

// ItemRetries returns the revert-to-backlog bound per item.
func (c *Config) ItemRetries() int {
	if c.Daemon.MaxItemRetries <= 0 {
		return DefaultMaxItemRetries
	}
	return c.Daemon.MaxItemRetries
}

// ResolutionAttempts returns the conflict-resolution bound per item.
func (c *Config) ResolutionAttempts() int {
	if c.Daemon.MaxResolutionAttempts <= 0 {
		return DefaultMaxResolutionAttempts
	}
	return c.Daemon.MaxResolutionAttempts
}

// NewDefaultConfig returns a Config with default values.
func NewDefaultConfig() *Config {
	return &Config{}
}

// ConfigTemplate returns the commented template written by `git pilot init`.
func ConfigTemplate() string {
	return configTemplateContent
}

// ConfigInfo describes one config file location for `pilot config show`.
// Fields are ordered to minimize memory padding.
type ConfigInfo struct {
	Path    string
	Content string
	Exists  bool
}

// Directory and file names for git-pilot.
const (
	PilotDirName   = "pilot"       // Directory name under .git for pilot state
	ConfigFileName = "config.toml" // Config file name
)

// RepoPilotDir returns the pilot state directory for a repository.
func RepoPilotDir(repoRoot string) string {
	return filepath.Join(repoRoot, ".git", PilotDirName)
}

// RepoConfigPath returns the repo config path.
func RepoConfigPath(repoRoot string) string {
	return filepath.Join(RepoPilotDir(repoRoot), ConfigFileName)
}

// GlobalPilotDir returns the global pilot directory path.
// configHome is typically XDG_CONFIG_HOME or ~/.config (resolved by caller).
func GlobalPilotDir(configHome string) string {
	return filepath.Join(configHome, "git-pilot")
}

// GlobalConfigPath returns the global config path.
func GlobalConfigPath(configHome string) string {
	return filepath.Join(GlobalPilotDir(configHome), ConfigFileName)
}
