package domain

import "sort"

// Candidate is one unit of discovered work: an unresolved marker in source.
// Fields are ordered to minimize memory padding.
type Candidate struct {
	Title string `json:"title"`
	Body  string `json:"body,omitempty"`
	File  string `json:"file"`
	Line  int    `json:"line"`
}

// FileAnalysis is the per-file sub-cache of a repository analysis.
type FileAnalysis struct {
	Markers []Candidate `json:"markers,omitempty"`
}

// RepoAnalysis is the payload of an expensive repository scan, cached by the
// analysis cache between daemon cycles.
type RepoAnalysis struct {
	Files        map[string]FileAnalysis `json:"files"`
	ScannedFiles int                     `json:"scanned_files"`
}

// Candidates flattens the per-file markers, ordered by file then line so the
// derived backlog is deterministic across cycles.
func (a *RepoAnalysis) Candidates() []Candidate {
	if a == nil {
		return nil
	}
	files := make([]string, 0, len(a.Files))
	for f := range a.Files {
		files = append(files, f)
	}
	sort.Strings(files)
	var out []Candidate
	for _, f := range files {
		markers := append([]Candidate(nil), a.Files[f].Markers...)
		sort.Slice(markers, func(i, j int) bool { return markers[i].Line < markers[j].Line })
		out = append(out, markers...)
	}
	return out
}

// MarkerCount returns the total number of unresolved markers.
func (a *RepoAnalysis) MarkerCount() int {
	if a == nil {
		return 0
	}
	n := 0
	for _, fa := range a.Files {
		n += len(fa.Markers)
	}
	return n
}

// CacheLookup is the result of a cache Get.
// A hit with ChangedFiles set means the caller should recompute only those
// files (RequiresFullAnalysis is false) and patch via UpdateIncremental; a
// miss means a full analysis followed by Set.
// Fields are ordered to minimize memory padding.
type CacheLookup struct {
	Analysis             *RepoAnalysis
	ChangedFiles         []string
	Reason               string
	Hit                  bool
	RequiresFullAnalysis bool
}

// CacheStats is a point-in-time snapshot of cache counters.
// Fields are ordered to minimize memory padding.
type CacheStats struct {
	Hits        int64
	Misses      int64
	Evictions   int64
	Expirations int64
	TotalBytes  int64
	Entries     int
}

// HitRate returns hits / (hits + misses), or 0 before any lookup.
func (s CacheStats) HitRate() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}
	return float64(s.Hits) / float64(total)
}
