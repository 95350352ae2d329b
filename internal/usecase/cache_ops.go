package usecase

import (
	"context"

	"github.com/runoshun/git-pilot/internal/domain"
)

// ShowCacheStatsInput contains the input for the ShowCacheStats use case.
type ShowCacheStatsInput struct{}

// ShowCacheStatsOutput contains the output of the ShowCacheStats use case.
type ShowCacheStatsOutput struct {
	Stats domain.CacheStats // Point-in-time cache counters
}

// ShowCacheStats reports analysis cache counters.
type ShowCacheStats struct {
	cache domain.AnalysisCache
}

// NewShowCacheStats creates a new ShowCacheStats use case.
func NewShowCacheStats(cache domain.AnalysisCache) *ShowCacheStats {
	return &ShowCacheStats{cache: cache}
}

// Execute returns the current cache counters.
func (uc *ShowCacheStats) Execute(_ context.Context, _ ShowCacheStatsInput) (*ShowCacheStatsOutput, error) {
	return &ShowCacheStatsOutput{Stats: uc.cache.Stats()}, nil
}

// ClearCacheInput contains the input for the ClearCache use case.
type ClearCacheInput struct {
	RepoPath string // Repository whose entries should be dropped
}

// ClearCacheOutput contains the output of the ClearCache use case.
type ClearCacheOutput struct {
	RepoPath string // Repository the entries were dropped for
}

// ClearCache drops every cached analysis for a repository.
type ClearCache struct {
	cache  domain.AnalysisCache
	logger domain.Logger
}

// NewClearCache creates a new ClearCache use case.
func NewClearCache(cache domain.AnalysisCache, logger domain.Logger) *ClearCache {
	return &ClearCache{
		cache:  cache,
		logger: logger,
	}
}

// Execute invalidates all cache entries for the repository. The next
// discovery pass falls back to a full scan.
func (uc *ClearCache) Execute(_ context.Context, in ClearCacheInput) (*ClearCacheOutput, error) {
	uc.cache.Invalidate(in.RepoPath)
	uc.logger.Info(0, "cache", "analysis cache cleared")
	return &ClearCacheOutput{RepoPath: in.RepoPath}, nil
}
