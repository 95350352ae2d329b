package domain

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strconv"
)

// AttentionLabel marks items that exhausted automated retries and need a
// human decision. Promote skips labeled items until the label is removed.
const AttentionLabel = "pilot-attention"

// BranchPrefix returns the branch prefix handed to a fresh session.
// Format: <agent>/issue-<n>. The backend cuts the actual branch under it.
func BranchPrefix(agent string, issue int) string {
	return fmt.Sprintf("%s/issue-%d", agent, issue)
}

// IssueLogPath returns the path to an issue's log file.
func IssueLogPath(pilotDir string, issue int) string {
	return filepath.Join(pilotDir, "logs", fmt.Sprintf("issue-%d.log", issue))
}

// GlobalLogPath returns the path to the daemon log file.
func GlobalLogPath(pilotDir string) string {
	return filepath.Join(pilotDir, "logs", "pilot.log")
}

// DefaultCacheDir returns the analysis cache directory.
func DefaultCacheDir(pilotDir string) string {
	return filepath.Join(pilotDir, "cache")
}

// branchIssuePattern matches pilot branch names: <agent>/issue-<n> with an
// optional backend-appended slug.
var branchIssuePattern = regexp.MustCompile(`^[\w.-]+/issue-(\d+)(?:-[\w.-]+)?$`)

// ParseBranchIssue extracts the issue number from a branch following the
// pilot naming convention. Returns 0 and false for foreign branches.
func ParseBranchIssue(branch string) (int, bool) {
	matches := branchIssuePattern.FindStringSubmatch(branch)
	if matches == nil {
		return 0, false
	}
	n, err := strconv.Atoi(matches[1])
	if err != nil {
		return 0, false
	}
	return n, true
}
