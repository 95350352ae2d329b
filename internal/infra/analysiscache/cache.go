// Package analysiscache persists repository analysis results across daemon
// cycles and restarts, invalidating them by git commit movement or, when git
// invalidation is disabled, by a sampled content hash of the working tree.
package analysiscache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/runoshun/git-pilot/internal/domain"
)

// entry is the stored record for one cache key, both in memory and on disk.
// Fields are ordered to minimize memory padding.
type entry struct {
	CreatedAt    time.Time            `json:"created_at"`
	LastAccess   time.Time            `json:"last_access"`
	Analysis     *domain.RepoAnalysis `json:"analysis"`
	Key          string               `json:"key"`
	RepoPath     string               `json:"repo_path"`
	Branch       string               `json:"branch,omitempty"`
	Commit       string               `json:"commit,omitempty"`
	ContentHash  string               `json:"content_hash,omitempty"`
	ExcludePaths []string             `json:"exclude_paths,omitempty"`
	AccessCount  int64                `json:"access_count"`
	SizeBytes    int64                `json:"size_bytes"`
}

// Cache implements domain.AnalysisCache. All mutation is serialized by mu;
// persistence happens synchronously inside the mutating call.
type Cache struct {
	entries     map[string]*entry
	src         domain.SourceControl
	clock       domain.Clock
	logger      *slog.Logger
	cfg         domain.CacheConfig
	dir         string
	mu          sync.Mutex
	hits        int64
	misses      int64
	evictions   int64
	expirations int64
	totalBytes  int64
}

// New builds a cache rooted at dir, loading any persisted entries. Expired
// files are deleted during the load; corrupt files are skipped with a warning
// and overwritten by the next Set for their key.
func New(dir string, cfg domain.CacheConfig, src domain.SourceControl, clock domain.Clock, logger *slog.Logger) *Cache {
	c := &Cache{
		entries: make(map[string]*entry),
		src:     src,
		clock:   clock,
		logger:  logger,
		cfg:     cfg,
		dir:     dir,
	}
	if cfg.PersistEnabled() {
		c.loadAll()
	}
	return c
}

// Key derives the cache key. Exclude paths are sorted first so identity does
// not depend on declaration order.
func (c *Cache) Key(repoPath string, excludePaths []string, configHash string) string {
	excludes := append([]string(nil), excludePaths...)
	sort.Strings(excludes)

	h := sha256.New()
	h.Write([]byte(repoPath))
	h.Write([]byte{0})
	for _, e := range excludes {
		h.Write([]byte(e))
		h.Write([]byte{0})
	}
	h.Write([]byte(configHash))
	return hex.EncodeToString(h.Sum(nil))
}

// Get looks up key, applying TTL and invalidation rules. A changed commit
// with a usable file-level diff downgrades the hit to an incremental one:
// the caller re-scans only CacheLookup.ChangedFiles.
func (c *Cache) Get(key, repoPath, currentCommit string) domain.CacheLookup {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return c.miss("not cached")
	}

	now := c.clock.Now()
	if now.Sub(e.CreatedAt) > c.cfg.EntryTTL() {
		c.expirations++
		c.removeLocked(key)
		return c.miss("expired")
	}

	if c.cfg.GitInvalidationEnabled() && e.Commit != "" && currentCommit != "" {
		if e.Commit != currentCommit {
			changed, err := c.src.ChangedFiles(repoPath, e.Commit, currentCommit)
			if err != nil || len(changed) == 0 {
				// History rewritten, commit collected, or an unusable empty
				// diff: nothing to patch incrementally.
				if err != nil {
					c.logger.Debug("cache diff failed", "key", shortKey(key), "error", err)
				}
				c.removeLocked(key)
				return c.miss("git commit changed")
			}
			c.hits++
			c.touchLocked(e, now)
			return domain.CacheLookup{
				Analysis:     e.Analysis,
				ChangedFiles: changed,
				Reason:       "git delta",
				Hit:          true,
			}
		}
	} else {
		current, err := c.sampleContentHash(repoPath)
		if err != nil || current != e.ContentHash {
			c.removeLocked(key)
			return c.miss("content changed")
		}
	}

	c.hits++
	c.touchLocked(e, now)
	return domain.CacheLookup{
		Analysis: e.Analysis,
		Reason:   "fresh",
		Hit:      true,
	}
}

// Set stores a full analysis under key, evicting least-recently-used entries
// until both the entry-count and byte budgets hold.
func (c *Cache) Set(key, repoPath string, analysis *domain.RepoAnalysis, excludePaths []string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.clock.Now()
	e := &entry{
		CreatedAt:    now,
		LastAccess:   now,
		Analysis:     analysis,
		Key:          key,
		RepoPath:     repoPath,
		ExcludePaths: append([]string(nil), excludePaths...),
	}

	if commit, err := c.src.HeadCommit(repoPath); err == nil {
		e.Commit = commit
	}
	if branch, err := c.src.CurrentBranch(repoPath); err == nil {
		e.Branch = branch
	}
	if hash, err := c.sampleContentHash(repoPath); err == nil {
		e.ContentHash = hash
	}

	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal cache entry: %w", err)
	}
	e.SizeBytes = int64(len(data))

	if old, ok := c.entries[key]; ok {
		c.totalBytes -= old.SizeBytes
		delete(c.entries, key)
	}
	c.evictToFitLocked(e.SizeBytes)

	c.entries[key] = e
	c.totalBytes += e.SizeBytes
	c.persistLocked(e)
	return nil
}

// UpdateIncremental patches the per-file sub-entries for changedFiles from
// partial, drops files whose re-scan produced no markers, and refreshes the
// entry's commit, content hash, and TTL baseline.
func (c *Cache) UpdateIncremental(key string, changedFiles []string, partial map[string]domain.FileAnalysis) (*domain.RepoAnalysis, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return nil, domain.ErrCacheEntryNotFound
	}
	if e.Analysis == nil {
		e.Analysis = &domain.RepoAnalysis{}
	}
	if e.Analysis.Files == nil {
		e.Analysis.Files = make(map[string]domain.FileAnalysis)
	}

	for _, f := range changedFiles {
		fa, found := partial[f]
		if !found || len(fa.Markers) == 0 {
			delete(e.Analysis.Files, f)
			continue
		}
		e.Analysis.Files[f] = fa
	}

	now := c.clock.Now()
	e.CreatedAt = now
	e.LastAccess = now
	e.AccessCount++
	if commit, err := c.src.HeadCommit(e.RepoPath); err == nil {
		e.Commit = commit
	}
	if branch, err := c.src.CurrentBranch(e.RepoPath); err == nil {
		e.Branch = branch
	}
	if hash, err := c.sampleContentHash(e.RepoPath); err == nil {
		e.ContentHash = hash
	}

	data, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("marshal cache entry: %w", err)
	}
	c.totalBytes += int64(len(data)) - e.SizeBytes
	e.SizeBytes = int64(len(data))
	c.evictOthersLocked(key)
	c.persistLocked(e)

	return e.Analysis, nil
}

// Invalidate drops every entry belonging to repoPath.
func (c *Cache) Invalidate(repoPath string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for key, e := range c.entries {
		if e.RepoPath == repoPath {
			c.removeLocked(key)
		}
	}
}

// Stats returns a snapshot of the counters.
func (c *Cache) Stats() domain.CacheStats {
	c.mu.Lock()
	defer c.mu.Unlock()

	return domain.CacheStats{
		Hits:        c.hits,
		Misses:      c.misses,
		Evictions:   c.evictions,
		Expirations: c.expirations,
		TotalBytes:  c.totalBytes,
		Entries:     len(c.entries),
	}
}

func (c *Cache) miss(reason string) domain.CacheLookup {
	c.misses++
	return domain.CacheLookup{Reason: reason, RequiresFullAnalysis: true}
}

func (c *Cache) touchLocked(e *entry, now time.Time) {
	e.LastAccess = now
	e.AccessCount++
	c.persistLocked(e)
}

// evictToFitLocked removes LRU entries until incoming bytes fit both budgets.
func (c *Cache) evictToFitLocked(incoming int64) {
	for len(c.entries) > 0 {
		overEntries := len(c.entries)+1 > c.cfg.EntryLimit()
		overBytes := c.totalBytes+incoming > c.cfg.ByteLimit()
		if !overEntries && !overBytes {
			return
		}
		c.evictOldestLocked("")
	}
}

// evictOthersLocked shrinks the cache back under budget after an entry grew,
// never evicting keep itself.
func (c *Cache) evictOthersLocked(keep string) {
	for len(c.entries) > 1 {
		overEntries := len(c.entries) > c.cfg.EntryLimit()
		overBytes := c.totalBytes > c.cfg.ByteLimit()
		if !overEntries && !overBytes {
			return
		}
		c.evictOldestLocked(keep)
	}
}

func (c *Cache) evictOldestLocked(skip string) {
	var oldestKey string
	var oldest time.Time
	for key, e := range c.entries {
		if key == skip {
			continue
		}
		if oldestKey == "" || e.LastAccess.Before(oldest) {
			oldestKey = key
			oldest = e.LastAccess
		}
	}
	if oldestKey == "" {
		return
	}
	c.evictions++
	c.removeLocked(oldestKey)
}

func (c *Cache) removeLocked(key string) {
	if e, ok := c.entries[key]; ok {
		c.totalBytes -= e.SizeBytes
		delete(c.entries, key)
	}
	c.removeFile(key)
}

func shortKey(key string) string {
	if len(key) > 12 {
		return key[:12]
	}
	return key
}

// Ensure Cache implements AnalysisCache.
var _ domain.AnalysisCache = (*Cache)(nil)
