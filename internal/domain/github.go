package domain

// Issue represents a tracked issue.
// Fields are ordered to minimize memory padding.
type Issue struct {
	Title  string
	Body   string
	Labels []string
	Number int
}

// PullRequest represents a pull request as the tracker reports it.
// Mergeable is a tri-state: nil means the tracker has not finished computing
// mergeability yet (it does so asynchronously), and callers must defer.
// Fields are ordered to minimize memory padding.
type PullRequest struct {
	Mergeable  *bool
	Title      string
	HeadBranch string
	BaseBranch string
	URL        string
	State      string
	Number     int
}

// CreatePROptions describes a pull request to open.
// Fields are ordered to minimize memory padding.
type CreatePROptions struct {
	Title string
	Body  string
	Head  string
	Base  string
	Issue int // referenced issue, closed by the merge
}

// ChecksState is the combined status of a ref's required checks.
type ChecksState string

const (
	ChecksPassing ChecksState = "passing"
	ChecksFailing ChecksState = "failing"
	ChecksPending ChecksState = "pending"
)
