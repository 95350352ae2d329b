package analysiscache

import (
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/runoshun/git-pilot/internal/domain"
	"github.com/runoshun/git-pilot/internal/testutil"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func boolPtr(b bool) *bool { return &b }

// analysisOf builds a payload with one marker per given file.
func analysisOf(files ...string) *domain.RepoAnalysis {
	a := &domain.RepoAnalysis{
		Files:        make(map[string]domain.FileAnalysis, len(files)),
		ScannedFiles: len(files),
	}
	for i, f := range files {
		a.Files[f] = domain.FileAnalysis{
			Markers: []domain.Candidate{{Title: "TODO: fix " + f, File: f, Line: i + 1}},
		}
	}
	return a
}

func TestCache_MissWhenNotCached(t *testing.T) {
	src := &testutil.MockSourceControl{Head: "c1"}
	clock := &testutil.MockClock{NowTime: time.Now()}
	c := New(t.TempDir(), domain.CacheConfig{}, src, clock, discardLogger())

	got := c.Get("nope", "/repo", "c1")

	if got.Hit {
		t.Fatal("Get() hit on empty cache")
	}
	if got.Reason != "not cached" {
		t.Errorf("Reason = %q, want %q", got.Reason, "not cached")
	}
	if !got.RequiresFullAnalysis {
		t.Error("RequiresFullAnalysis = false, want true")
	}
	if stats := c.Stats(); stats.Misses != 1 {
		t.Errorf("Misses = %d, want 1", stats.Misses)
	}
}

func TestCache_SetThenFreshHit(t *testing.T) {
	src := &testutil.MockSourceControl{Head: "c1", Branch: "main"}
	clock := &testutil.MockClock{NowTime: time.Now()}
	c := New(t.TempDir(), domain.CacheConfig{}, src, clock, discardLogger())

	key := c.Key("/repo", nil, "cfg")
	if err := c.Set(key, "/repo", analysisOf("a.go"), nil); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	got := c.Get(key, "/repo", "c1")
	if !got.Hit {
		t.Fatalf("Get() miss, reason %q", got.Reason)
	}
	if got.Reason != "fresh" {
		t.Errorf("Reason = %q, want %q", got.Reason, "fresh")
	}
	if got.RequiresFullAnalysis {
		t.Error("RequiresFullAnalysis = true on a hit")
	}
	if len(got.ChangedFiles) != 0 {
		t.Errorf("ChangedFiles = %v, want none", got.ChangedFiles)
	}
	if got.Analysis.MarkerCount() != 1 {
		t.Errorf("MarkerCount = %d, want 1", got.Analysis.MarkerCount())
	}

	stats := c.Stats()
	if stats.Hits != 1 || stats.Entries != 1 {
		t.Errorf("stats = %+v, want 1 hit and 1 entry", stats)
	}
	if stats.TotalBytes <= 0 {
		t.Errorf("TotalBytes = %d, want > 0", stats.TotalBytes)
	}
}

func TestCache_TTLExpiry(t *testing.T) {
	src := &testutil.MockSourceControl{Head: "c1"}
	clock := &testutil.MockClock{NowTime: time.Now()}
	c := New(t.TempDir(), domain.CacheConfig{TTL: "1h"}, src, clock, discardLogger())

	key := c.Key("/repo", nil, "cfg")
	if err := c.Set(key, "/repo", analysisOf("a.go"), nil); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	clock.NowTime = clock.NowTime.Add(2 * time.Hour)
	got := c.Get(key, "/repo", "c1")

	if got.Hit {
		t.Fatal("Get() hit on an expired entry")
	}
	if got.Reason != "expired" {
		t.Errorf("Reason = %q, want %q", got.Reason, "expired")
	}

	stats := c.Stats()
	if stats.Expirations != 1 {
		t.Errorf("Expirations = %d, want 1", stats.Expirations)
	}
	if stats.Entries != 0 {
		t.Errorf("Entries = %d, want 0", stats.Entries)
	}
}

func TestCache_GitDeltaHit(t *testing.T) {
	src := &testutil.MockSourceControl{Head: "c1"}
	clock := &testutil.MockClock{NowTime: time.Now()}
	c := New(t.TempDir(), domain.CacheConfig{}, src, clock, discardLogger())

	key := c.Key("/repo", nil, "cfg")
	if err := c.Set(key, "/repo", analysisOf("a.go", "b.go"), nil); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	// HEAD moved and the diff names what changed.
	src.Changed = []string{"a.go", "new.go"}
	got := c.Get(key, "/repo", "c2")

	if !got.Hit {
		t.Fatalf("Get() miss, reason %q", got.Reason)
	}
	if got.Reason != "git delta" {
		t.Errorf("Reason = %q, want %q", got.Reason, "git delta")
	}
	if got.RequiresFullAnalysis {
		t.Error("RequiresFullAnalysis = true on an incremental hit")
	}
	if len(got.ChangedFiles) != 2 || got.ChangedFiles[0] != "a.go" || got.ChangedFiles[1] != "new.go" {
		t.Errorf("ChangedFiles = %v, want [a.go new.go]", got.ChangedFiles)
	}
	if got.Analysis.MarkerCount() != 2 {
		t.Errorf("stale payload MarkerCount = %d, want 2", got.Analysis.MarkerCount())
	}
	if src.ChangedCalls != 1 {
		t.Errorf("ChangedFiles calls = %d, want 1", src.ChangedCalls)
	}
}

func TestCache_DiffFailureIsFullMiss(t *testing.T) {
	src := &testutil.MockSourceControl{Head: "c1"}
	clock := &testutil.MockClock{NowTime: time.Now()}
	c := New(t.TempDir(), domain.CacheConfig{}, src, clock, discardLogger())

	key := c.Key("/repo", nil, "cfg")
	if err := c.Set(key, "/repo", analysisOf("a.go"), nil); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	src.ChangedErr = errors.New("object not found")
	got := c.Get(key, "/repo", "c2")

	if got.Hit {
		t.Fatal("Get() hit despite unusable diff")
	}
	if got.Reason != "git commit changed" {
		t.Errorf("Reason = %q, want %q", got.Reason, "git commit changed")
	}
	if !got.RequiresFullAnalysis {
		t.Error("RequiresFullAnalysis = false, want true")
	}
	if stats := c.Stats(); stats.Entries != 0 {
		t.Errorf("Entries = %d, want 0 after invalidation", stats.Entries)
	}
}

func TestCache_EmptyDiffIsFullMiss(t *testing.T) {
	src := &testutil.MockSourceControl{Head: "c1"}
	clock := &testutil.MockClock{NowTime: time.Now()}
	c := New(t.TempDir(), domain.CacheConfig{}, src, clock, discardLogger())

	key := c.Key("/repo", nil, "cfg")
	if err := c.Set(key, "/repo", analysisOf("a.go"), nil); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	// Commits differ but the diff is empty; treat as unusable.
	src.Changed = nil
	got := c.Get(key, "/repo", "c2")

	if got.Hit {
		t.Fatal("Get() hit despite empty diff")
	}
	if got.Reason != "git commit changed" {
		t.Errorf("Reason = %q, want %q", got.Reason, "git commit changed")
	}
}

func TestCache_ContentHashInvalidation(t *testing.T) {
	repo := t.TempDir()
	if err := os.WriteFile(filepath.Join(repo, "a.txt"), []byte("one"), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg := domain.CacheConfig{GitInvalidation: boolPtr(false)}
	src := &testutil.MockSourceControl{}
	clock := &testutil.MockClock{NowTime: time.Now()}
	c := New(t.TempDir(), cfg, src, clock, discardLogger())

	key := c.Key(repo, nil, "cfg")
	if err := c.Set(key, repo, analysisOf("a.txt"), nil); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	// Unchanged tree still hits.
	if got := c.Get(key, repo, ""); !got.Hit || got.Reason != "fresh" {
		t.Fatalf("Get() = %+v, want fresh hit", got)
	}

	// Grow a file; the size tuple changes the sampled hash.
	if err := os.WriteFile(filepath.Join(repo, "a.txt"), []byte("one plus a lot more"), 0o600); err != nil {
		t.Fatal(err)
	}

	got := c.Get(key, repo, "")
	if got.Hit {
		t.Fatal("Get() hit after the tree changed")
	}
	if got.Reason != "content changed" {
		t.Errorf("Reason = %q, want %q", got.Reason, "content changed")
	}
}

func TestCache_LRUEvictionByEntryLimit(t *testing.T) {
	src := &testutil.MockSourceControl{Head: "c1"}
	clock := &testutil.MockClock{NowTime: time.Now()}
	c := New(t.TempDir(), domain.CacheConfig{MaxEntries: 2}, src, clock, discardLogger())

	k1 := c.Key("/repo", nil, "one")
	k2 := c.Key("/repo", nil, "two")
	k3 := c.Key("/repo", nil, "three")

	if err := c.Set(k1, "/repo", analysisOf("a.go"), nil); err != nil {
		t.Fatal(err)
	}
	clock.NowTime = clock.NowTime.Add(time.Minute)
	if err := c.Set(k2, "/repo", analysisOf("b.go"), nil); err != nil {
		t.Fatal(err)
	}

	// Reading k1 makes k2 the least recently used.
	clock.NowTime = clock.NowTime.Add(time.Minute)
	if got := c.Get(k1, "/repo", "c1"); !got.Hit {
		t.Fatalf("Get(k1) miss, reason %q", got.Reason)
	}

	clock.NowTime = clock.NowTime.Add(time.Minute)
	if err := c.Set(k3, "/repo", analysisOf("c.go"), nil); err != nil {
		t.Fatal(err)
	}

	stats := c.Stats()
	if stats.Entries != 2 {
		t.Fatalf("Entries = %d, want 2", stats.Entries)
	}
	if stats.Evictions != 1 {
		t.Errorf("Evictions = %d, want 1", stats.Evictions)
	}
	if got := c.Get(k2, "/repo", "c1"); got.Hit {
		t.Error("Get(k2) hit, want evicted")
	}
	if got := c.Get(k1, "/repo", "c1"); !got.Hit {
		t.Error("Get(k1) miss, want survivor")
	}
}

func TestCache_ByteBudgetEviction(t *testing.T) {
	src := &testutil.MockSourceControl{Head: "c1"}
	clock := &testutil.MockClock{NowTime: time.Now()}
	// Budget below a single entry: every Set displaces the previous one but
	// the incoming entry is still stored.
	c := New(t.TempDir(), domain.CacheConfig{MaxBytes: 1}, src, clock, discardLogger())

	k1 := c.Key("/repo", nil, "one")
	k2 := c.Key("/repo", nil, "two")

	if err := c.Set(k1, "/repo", analysisOf("a.go"), nil); err != nil {
		t.Fatal(err)
	}
	clock.NowTime = clock.NowTime.Add(time.Minute)
	if err := c.Set(k2, "/repo", analysisOf("b.go"), nil); err != nil {
		t.Fatal(err)
	}

	stats := c.Stats()
	if stats.Entries != 1 {
		t.Fatalf("Entries = %d, want 1", stats.Entries)
	}
	if stats.Evictions != 1 {
		t.Errorf("Evictions = %d, want 1", stats.Evictions)
	}
	if got := c.Get(k2, "/repo", "c1"); !got.Hit {
		t.Errorf("Get(k2) miss, want the latest entry kept")
	}
}

func TestCache_UpdateIncremental(t *testing.T) {
	src := &testutil.MockSourceControl{Head: "c1"}
	clock := &testutil.MockClock{NowTime: time.Now()}
	c := New(t.TempDir(), domain.CacheConfig{TTL: "1h"}, src, clock, discardLogger())

	key := c.Key("/repo", nil, "cfg")
	if err := c.Set(key, "/repo", analysisOf("a.go", "b.go", "c.go"), nil); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	clock.NowTime = clock.NowTime.Add(50 * time.Minute)
	src.Head = "c2"

	partial := map[string]domain.FileAnalysis{
		"a.go": {Markers: []domain.Candidate{
			{Title: "TODO: first", File: "a.go", Line: 3},
			{Title: "TODO: second", File: "a.go", Line: 9},
		}},
		"b.go": {}, // markers resolved
		"d.go": {Markers: []domain.Candidate{{Title: "FIXME: new", File: "d.go", Line: 1}}},
	}
	merged, err := c.UpdateIncremental(key, []string{"a.go", "b.go", "d.go"}, partial)
	if err != nil {
		t.Fatalf("UpdateIncremental() error = %v", err)
	}

	if len(merged.Files["a.go"].Markers) != 2 {
		t.Errorf("a.go markers = %d, want 2", len(merged.Files["a.go"].Markers))
	}
	if _, ok := merged.Files["b.go"]; ok {
		t.Error("b.go sub-entry survived, want dropped")
	}
	if len(merged.Files["c.go"].Markers) != 1 {
		t.Errorf("c.go markers = %d, want untouched 1", len(merged.Files["c.go"].Markers))
	}
	if len(merged.Files["d.go"].Markers) != 1 {
		t.Errorf("d.go markers = %d, want 1", len(merged.Files["d.go"].Markers))
	}
	if merged.MarkerCount() != 4 {
		t.Errorf("MarkerCount = %d, want 4", merged.MarkerCount())
	}

	// The patch resets the TTL baseline and commit: 40 minutes later the
	// entry is still fresh against the new head.
	clock.NowTime = clock.NowTime.Add(40 * time.Minute)
	got := c.Get(key, "/repo", "c2")
	if !got.Hit || got.Reason != "fresh" {
		t.Fatalf("Get() after patch = %+v, want fresh hit", got)
	}
}

func TestCache_UpdateIncrementalNotFound(t *testing.T) {
	src := &testutil.MockSourceControl{Head: "c1"}
	clock := &testutil.MockClock{NowTime: time.Now()}
	c := New(t.TempDir(), domain.CacheConfig{}, src, clock, discardLogger())

	_, err := c.UpdateIncremental("missing", []string{"a.go"}, nil)
	if !errors.Is(err, domain.ErrCacheEntryNotFound) {
		t.Errorf("error = %v, want ErrCacheEntryNotFound", err)
	}
}

func TestCache_PersistAndReload(t *testing.T) {
	dir := t.TempDir()
	src := &testutil.MockSourceControl{Head: "c1"}
	clock := &testutil.MockClock{NowTime: time.Now()}

	c := New(dir, domain.CacheConfig{}, src, clock, discardLogger())
	key := c.Key("/repo", []string{"vendor"}, "cfg")
	if err := c.Set(key, "/repo", analysisOf("a.go", "b.go"), []string{"vendor"}); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	// A new instance over the same directory sees the entry.
	reloaded := New(dir, domain.CacheConfig{}, src, clock, discardLogger())
	if stats := reloaded.Stats(); stats.Entries != 1 {
		t.Fatalf("Entries after reload = %d, want 1", stats.Entries)
	}

	got := reloaded.Get(key, "/repo", "c1")
	if !got.Hit || got.Reason != "fresh" {
		t.Fatalf("Get() after reload = %+v, want fresh hit", got)
	}
	if got.Analysis.MarkerCount() != 2 {
		t.Errorf("MarkerCount after reload = %d, want 2", got.Analysis.MarkerCount())
	}
}

func TestCache_ReloadSkipsCorruptFiles(t *testing.T) {
	dir := t.TempDir()
	src := &testutil.MockSourceControl{Head: "c1"}
	clock := &testutil.MockClock{NowTime: time.Now()}

	c := New(dir, domain.CacheConfig{}, src, clock, discardLogger())
	key := c.Key("/repo", nil, "cfg")
	if err := c.Set(key, "/repo", analysisOf("a.go"), nil); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "deadbeef.json"), []byte("{not json"), 0o600); err != nil {
		t.Fatal(err)
	}

	reloaded := New(dir, domain.CacheConfig{}, src, clock, discardLogger())
	if stats := reloaded.Stats(); stats.Entries != 1 {
		t.Errorf("Entries = %d, want 1 (corrupt file skipped)", stats.Entries)
	}
}

func TestCache_ReloadDropsExpired(t *testing.T) {
	dir := t.TempDir()
	src := &testutil.MockSourceControl{Head: "c1"}
	clock := &testutil.MockClock{NowTime: time.Now()}

	c := New(dir, domain.CacheConfig{TTL: "1h"}, src, clock, discardLogger())
	key := c.Key("/repo", nil, "cfg")
	if err := c.Set(key, "/repo", analysisOf("a.go"), nil); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	clock.NowTime = clock.NowTime.Add(2 * time.Hour)
	reloaded := New(dir, domain.CacheConfig{TTL: "1h"}, src, clock, discardLogger())

	stats := reloaded.Stats()
	if stats.Entries != 0 {
		t.Errorf("Entries = %d, want 0", stats.Entries)
	}
	if stats.Expirations != 1 {
		t.Errorf("Expirations = %d, want 1", stats.Expirations)
	}
	if _, err := os.Stat(reloaded.entryPath(key)); !os.IsNotExist(err) {
		t.Errorf("expired entry file still on disk (stat err = %v)", err)
	}
}

func TestCache_RecencySurvivesReload(t *testing.T) {
	dir := t.TempDir()
	src := &testutil.MockSourceControl{Head: "c1"}
	clock := &testutil.MockClock{NowTime: time.Now()}
	cfg := domain.CacheConfig{MaxEntries: 2}

	c := New(dir, cfg, src, clock, discardLogger())
	k1 := c.Key("/repo", nil, "one")
	k2 := c.Key("/repo", nil, "two")
	k3 := c.Key("/repo", nil, "three")

	if err := c.Set(k1, "/repo", analysisOf("a.go"), nil); err != nil {
		t.Fatal(err)
	}
	clock.NowTime = clock.NowTime.Add(time.Minute)
	if err := c.Set(k2, "/repo", analysisOf("b.go"), nil); err != nil {
		t.Fatal(err)
	}

	// The hit bump below is persisted, so k2 stays the LRU entry even after
	// a restart.
	clock.NowTime = clock.NowTime.Add(time.Minute)
	if got := c.Get(k1, "/repo", "c1"); !got.Hit {
		t.Fatalf("Get(k1) miss, reason %q", got.Reason)
	}

	reloaded := New(dir, cfg, src, clock, discardLogger())
	clock.NowTime = clock.NowTime.Add(time.Minute)
	if err := reloaded.Set(k3, "/repo", analysisOf("c.go"), nil); err != nil {
		t.Fatal(err)
	}

	if got := reloaded.Get(k1, "/repo", "c1"); !got.Hit {
		t.Error("Get(k1) miss, want survivor after reload")
	}
	if got := reloaded.Get(k2, "/repo", "c1"); got.Hit {
		t.Error("Get(k2) hit, want evicted after reload")
	}
}

func TestCache_PersistDisabled(t *testing.T) {
	dir := t.TempDir()
	src := &testutil.MockSourceControl{Head: "c1"}
	clock := &testutil.MockClock{NowTime: time.Now()}
	cfg := domain.CacheConfig{Persist: boolPtr(false)}

	c := New(dir, cfg, src, clock, discardLogger())
	key := c.Key("/repo", nil, "cfg")
	if err := c.Set(key, "/repo", analysisOf("a.go"), nil); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	files, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(files) != 0 {
		t.Errorf("cache dir has %d files, want 0", len(files))
	}

	reloaded := New(dir, cfg, src, clock, discardLogger())
	if stats := reloaded.Stats(); stats.Entries != 0 {
		t.Errorf("Entries after reload = %d, want 0", stats.Entries)
	}
}

func TestCache_Invalidate(t *testing.T) {
	src := &testutil.MockSourceControl{Head: "c1"}
	clock := &testutil.MockClock{NowTime: time.Now()}
	c := New(t.TempDir(), domain.CacheConfig{}, src, clock, discardLogger())

	ka := c.Key("/repo-a", nil, "cfg")
	kb := c.Key("/repo-b", nil, "cfg")
	if err := c.Set(ka, "/repo-a", analysisOf("a.go"), nil); err != nil {
		t.Fatal(err)
	}
	if err := c.Set(kb, "/repo-b", analysisOf("b.go"), nil); err != nil {
		t.Fatal(err)
	}

	c.Invalidate("/repo-a")

	if got := c.Get(ka, "/repo-a", "c1"); got.Hit {
		t.Error("Get(repo-a) hit after Invalidate")
	}
	if got := c.Get(kb, "/repo-b", "c1"); !got.Hit {
		t.Error("Get(repo-b) miss, want untouched")
	}
	if _, err := os.Stat(c.entryPath(ka)); !os.IsNotExist(err) {
		t.Errorf("invalidated entry file still on disk (stat err = %v)", err)
	}
}

func TestCache_KeyIgnoresExcludeOrder(t *testing.T) {
	src := &testutil.MockSourceControl{}
	clock := &testutil.MockClock{NowTime: time.Now()}
	c := New(t.TempDir(), domain.CacheConfig{}, src, clock, discardLogger())

	a := c.Key("/repo", []string{"vendor", "node_modules"}, "cfg")
	b := c.Key("/repo", []string{"node_modules", "vendor"}, "cfg")
	if a != b {
		t.Errorf("Key order-sensitive: %q != %q", a, b)
	}

	if c.Key("/repo", nil, "cfg") == c.Key("/other", nil, "cfg") {
		t.Error("Key ignores repo path")
	}
	if c.Key("/repo", nil, "one") == c.Key("/repo", nil, "two") {
		t.Error("Key ignores config hash")
	}
}
