package analysiscache

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"syscall"
)

// One JSON file per key under the cache directory. Writes go through a
// tmp+rename pair under an exclusive flock on cache.lock, so a second pilot
// process against the same repository cannot interleave partial writes.

const lockFileName = "cache.lock"

func (c *Cache) entryPath(key string) string {
	return filepath.Join(c.dir, key+".json")
}

// loadAll reads every persisted entry at construction. Expired files are
// deleted; corrupt files are skipped and replaced by the next Set.
func (c *Cache) loadAll() {
	dirents, err := os.ReadDir(c.dir)
	if err != nil {
		if !os.IsNotExist(err) {
			c.logger.Warn("cache load failed", "dir", c.dir, "error", err)
		}
		return
	}

	lock, err := c.acquireLock(syscall.LOCK_SH)
	if err != nil {
		c.logger.Warn("cache lock failed", "error", err)
		return
	}
	defer releaseLock(lock)

	now := c.clock.Now()
	for _, d := range dirents {
		name := d.Name()
		if d.IsDir() || !strings.HasSuffix(name, ".json") {
			continue
		}
		path := filepath.Join(c.dir, name)

		data, err := os.ReadFile(path)
		if err != nil {
			c.logger.Warn("cache entry unreadable", "file", name, "error", err)
			continue
		}

		var e entry
		if err := json.Unmarshal(data, &e); err != nil || e.Key == "" {
			c.logger.Warn("cache entry corrupt, skipping", "file", name)
			continue
		}

		if now.Sub(e.CreatedAt) > c.cfg.EntryTTL() {
			c.expirations++
			_ = os.Remove(path)
			continue
		}

		e.SizeBytes = int64(len(data))
		c.entries[e.Key] = &e
		c.totalBytes += e.SizeBytes
	}

	if len(c.entries) > 0 {
		c.logger.Debug("cache loaded", "entries", len(c.entries), "bytes", c.totalBytes)
	}
}

// persistLocked mirrors one entry to disk. Callers hold c.mu.
func (c *Cache) persistLocked(e *entry) {
	if !c.cfg.PersistEnabled() {
		return
	}

	if err := os.MkdirAll(c.dir, 0o750); err != nil {
		c.logger.Warn("cache dir create failed", "dir", c.dir, "error", err)
		return
	}

	lock, err := c.acquireLock(syscall.LOCK_EX)
	if err != nil {
		c.logger.Warn("cache lock failed", "error", err)
		return
	}
	defer releaseLock(lock)

	data, err := json.Marshal(e)
	if err != nil {
		c.logger.Warn("cache entry marshal failed", "key", shortKey(e.Key), "error", err)
		return
	}

	path := c.entryPath(e.Key)
	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0o600); err != nil {
		c.logger.Warn("cache write failed", "key", shortKey(e.Key), "error", err)
		return
	}
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		c.logger.Warn("cache rename failed", "key", shortKey(e.Key), "error", err)
	}
}

// removeFile deletes the persisted file for key, if any.
func (c *Cache) removeFile(key string) {
	if !c.cfg.PersistEnabled() {
		return
	}
	if err := os.Remove(c.entryPath(key)); err != nil && !os.IsNotExist(err) {
		c.logger.Warn("cache remove failed", "key", shortKey(key), "error", err)
	}
}

func (c *Cache) acquireLock(lockType int) (*os.File, error) {
	if err := os.MkdirAll(c.dir, 0o750); err != nil {
		return nil, fmt.Errorf("create cache directory: %w", err)
	}

	lock, err := os.OpenFile(filepath.Join(c.dir, lockFileName), os.O_CREATE|os.O_RDWR, 0o600)
	if err != nil {
		return nil, fmt.Errorf("open lock file: %w", err)
	}
	if err := syscall.Flock(int(lock.Fd()), lockType); err != nil {
		_ = lock.Close()
		return nil, fmt.Errorf("acquire lock: %w", err)
	}
	return lock, nil
}

func releaseLock(lock *os.File) {
	_ = syscall.Flock(int(lock.Fd()), syscall.LOCK_UN)
	_ = lock.Close()
}
