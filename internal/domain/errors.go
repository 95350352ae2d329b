package domain

import "errors"

// Domain errors.
var (
	ErrNotGitRepository    = errors.New("not a git repository (or any of the parent directories)")
	ErrIssueNotFound       = errors.New("issue not found")
	ErrPRNotFound          = errors.New("pull request not found")
	ErrSessionNotFound     = errors.New("session not found")
	ErrNoTrackerToken      = errors.New("tracker token not configured")
	ErrNoSessionToken      = errors.New("session backend token not configured")
	ErrNoEnvironment       = errors.New("no execution environment configured")
	ErrNoReviewer          = errors.New("no reviewer command configured")
	ErrServiceUnavailable  = errors.New("service unavailable (circuit open)")
	ErrCacheEntryNotFound  = errors.New("cache entry not found")
	ErrStatusFieldNotFound = errors.New("status field not found in project")
	ErrConfigExists        = errors.New("config file already exists")
	ErrNoLogs              = errors.New("no log entries recorded yet")
)
