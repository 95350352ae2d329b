// Package scan finds unresolved work markers (TODO:, FIXME:, ...) in a
// repository tree and turns them into discovery candidates.
package scan

import (
	"bytes"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/runoshun/git-pilot/internal/domain"
)

// maxTitleRunes caps candidate titles; trackers reject or mangle very long
// issue titles.
const maxTitleRunes = 90

// denylist names directories never worth scanning.
var denylist = map[string]bool{
	".git":         true,
	".hg":          true,
	".idea":        true,
	".venv":        true,
	".vscode":      true,
	"__pycache__":  true,
	"build":        true,
	"dist":         true,
	"node_modules": true,
	"target":       true,
	"vendor":       true,
}

// Scanner implements domain.WorkScanner with a bounded filesystem walk.
type Scanner struct {
	logger *slog.Logger
	cfg    domain.ScanConfig
}

// New builds a scanner with the given marker configuration.
func New(cfg domain.ScanConfig, logger *slog.Logger) *Scanner {
	return &Scanner{logger: logger, cfg: cfg}
}

var _ domain.WorkScanner = (*Scanner)(nil)

// Signature digests the settings this scanner was built with.
func (s *Scanner) Signature() string {
	return s.cfg.Hash()
}

// Scan walks the whole tree under repoPath. Excluded prefixes, denylisted
// directories, oversized files, and binary files are skipped.
func (s *Scanner) Scan(repoPath string, excludes []string) (*domain.RepoAnalysis, error) {
	analysis := &domain.RepoAnalysis{Files: make(map[string]domain.FileAnalysis)}

	err := filepath.WalkDir(repoPath, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == repoPath {
				return fmt.Errorf("scan %s: %w", repoPath, err)
			}
			return nil // unreadable subtree, skip
		}
		rel, relErr := filepath.Rel(repoPath, path)
		if relErr != nil || rel == "." {
			return nil
		}
		rel = filepath.ToSlash(rel)

		if d.IsDir() {
			if denylist[d.Name()] || excluded(rel, excludes) {
				return filepath.SkipDir
			}
			return nil
		}
		if excluded(rel, excludes) {
			return nil
		}

		info, err := d.Info()
		if err != nil || info.Size() > s.cfg.FileLimit() {
			return nil
		}

		fa, ok := s.scanFile(path, rel)
		if !ok {
			return nil
		}
		analysis.ScannedFiles++
		if len(fa.Markers) > 0 {
			analysis.Files[rel] = fa
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Debug("scan complete",
		"repo", repoPath,
		"scanned_files", analysis.ScannedFiles,
		"markers", analysis.MarkerCount())
	return analysis, nil
}

// ScanFiles re-analyzes only the given repo-relative paths. Every requested
// file gets a map entry; files that are gone, unreadable, oversized, or
// binary map to an empty analysis so their cached sub-entries get dropped.
func (s *Scanner) ScanFiles(repoPath string, files []string) (map[string]domain.FileAnalysis, error) {
	out := make(map[string]domain.FileAnalysis, len(files))
	for _, rel := range files {
		rel = filepath.ToSlash(rel)
		out[rel] = domain.FileAnalysis{}

		path := filepath.Join(repoPath, filepath.FromSlash(rel))
		info, err := os.Stat(path)
		if err != nil || info.IsDir() || info.Size() > s.cfg.FileLimit() {
			continue
		}
		if fa, ok := s.scanFile(path, rel); ok {
			out[rel] = fa
		}
	}
	return out, nil
}

// scanFile reads one file and collects its marker candidates. ok is false
// when the file could not be treated as scannable text.
func (s *Scanner) scanFile(path, rel string) (domain.FileAnalysis, bool) {
	data, err := os.ReadFile(path)
	if err != nil {
		return domain.FileAnalysis{}, false
	}
	if isBinary(data) {
		return domain.FileAnalysis{}, false
	}

	var fa domain.FileAnalysis
	for i, line := range strings.Split(string(data), "\n") {
		marker, idx := s.firstMarker(line)
		if idx < 0 {
			continue
		}
		fa.Markers = append(fa.Markers, domain.Candidate{
			Title: markerTitle(line, marker, idx),
			Body:  fmt.Sprintf("Unresolved marker at `%s:%d`:\n\n    %s\n", rel, i+1, strings.TrimSpace(line)),
			File:  rel,
			Line:  i + 1,
		})
	}
	return fa, true
}

// firstMarker returns the earliest configured marker occurring in line, or
// idx -1. One candidate per line.
func (s *Scanner) firstMarker(line string) (string, int) {
	best, bestIdx := "", -1
	for _, m := range s.cfg.MarkerList() {
		if idx := strings.Index(line, m); idx >= 0 && (bestIdx < 0 || idx < bestIdx) {
			best, bestIdx = m, idx
		}
	}
	return best, bestIdx
}

// markerTitle turns "// TODO: handle retries */" into "TODO: handle retries".
func markerTitle(line, marker string, idx int) string {
	rest := strings.TrimSpace(line[idx+len(marker):])
	rest = strings.TrimSuffix(rest, "*/")
	rest = strings.TrimSuffix(rest, "-->")
	rest = strings.TrimSpace(rest)

	base := strings.TrimSuffix(marker, ":")
	if rest == "" {
		return base
	}
	return truncate(base+": "+rest, maxTitleRunes)
}

func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return string(runes[:n-3]) + "..."
}

// excluded reports whether rel matches one of the configured path prefixes.
func excluded(rel string, excludes []string) bool {
	for _, ex := range excludes {
		ex = strings.TrimSuffix(filepath.ToSlash(ex), "/")
		if ex == "" {
			continue
		}
		if rel == ex || strings.HasPrefix(rel, ex+"/") {
			return true
		}
	}
	return false
}

// isBinary sniffs for a NUL byte in the leading block, the same heuristic
// git uses.
func isBinary(data []byte) bool {
	head := data
	if len(head) > 512 {
		head = head[:512]
	}
	return bytes.IndexByte(head, 0) >= 0
}
