package analysiscache

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"
)

// sampleDenylist names directories never visited by the sampling walk:
// dependency and build output churn without meaning the source changed.
var sampleDenylist = map[string]struct{}{
	".git":         {},
	".hg":          {},
	".idea":        {},
	".venv":        {},
	".vscode":      {},
	"__pycache__":  {},
	"build":        {},
	"dist":         {},
	"node_modules": {},
	"target":       {},
	"vendor":       {},
}

// sampleContentHash approximates the working tree's state when commit-based
// invalidation is unavailable: a walk bounded by the configured depth and
// sample count, hashing sorted path:mtime:size tuples. Mtime and size are a
// heuristic, not proof of content equality; the bound keeps Get cheap on
// large trees.
func (c *Cache) sampleContentHash(repoPath string) (string, error) {
	depth := c.cfg.Depth()
	limit := c.cfg.Samples()

	tuples := make([]string, 0, limit)
	err := filepath.WalkDir(repoPath, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == repoPath {
				return err
			}
			return nil // unreadable subtrees are simply not sampled
		}

		rel, relErr := filepath.Rel(repoPath, path)
		if relErr != nil || rel == "." {
			return nil
		}

		if d.IsDir() {
			if _, denied := sampleDenylist[d.Name()]; denied {
				return fs.SkipDir
			}
			if strings.Count(rel, string(filepath.Separator))+1 >= depth {
				return fs.SkipDir
			}
			return nil
		}

		if len(tuples) >= limit {
			return fs.SkipAll
		}
		info, infoErr := d.Info()
		if infoErr != nil {
			return nil
		}
		tuples = append(tuples, fmt.Sprintf("%s:%d:%d", rel, info.ModTime().UnixNano(), info.Size()))
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("sample %s: %w", repoPath, err)
	}

	sort.Strings(tuples)
	h := sha256.New()
	for _, tup := range tuples {
		h.Write([]byte(tup))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
