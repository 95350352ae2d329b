// Package git reads repository state through go-git: HEAD, current branch,
// and file-level diffs between commits for cache invalidation.
package git

import (
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"sync"

	gogit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"

	"github.com/runoshun/git-pilot/internal/domain"
)

// Client implements domain.SourceControl. Repository handles are opened on
// first use and cached per path; go-git re-reads refs and objects from disk,
// so a cached handle observes later commits.
type Client struct {
	mu    sync.Mutex
	repos map[string]*gogit.Repository
}

// NewClient creates an empty client.
func NewClient() *Client {
	return &Client{repos: make(map[string]*gogit.Repository)}
}

// Ensure Client implements SourceControl.
var _ domain.SourceControl = (*Client)(nil)

// RepoRoot returns the absolute working-tree root containing dir, walking up
// to find .git. Returns ErrNotGitRepository outside a repository.
func RepoRoot(dir string) (string, error) {
	repo, err := openPath(dir)
	if err != nil {
		return "", err
	}
	wt, err := repo.Worktree()
	if err != nil {
		return "", fmt.Errorf("resolve worktree: %w", err)
	}
	return wt.Filesystem.Root(), nil
}

func openPath(dir string) (*gogit.Repository, error) {
	repo, err := gogit.PlainOpenWithOptions(dir, &gogit.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		if errors.Is(err, gogit.ErrRepositoryNotExists) {
			return nil, domain.ErrNotGitRepository
		}
		return nil, fmt.Errorf("open git repository: %w", err)
	}
	return repo, nil
}

func (c *Client) open(repoPath string) (*gogit.Repository, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	key := filepath.Clean(repoPath)
	if repo, ok := c.repos[key]; ok {
		return repo, nil
	}
	repo, err := openPath(repoPath)
	if err != nil {
		return nil, err
	}
	c.repos[key] = repo
	return repo, nil
}

// HeadCommit returns the current HEAD commit hash of the repository at
// repoPath.
func (c *Client) HeadCommit(repoPath string) (string, error) {
	repo, err := c.open(repoPath)
	if err != nil {
		return "", err
	}
	head, err := repo.Head()
	if err != nil {
		return "", fmt.Errorf("get HEAD: %w", err)
	}
	return head.Hash().String(), nil
}

// CurrentBranch returns the short branch name, or "" on a detached HEAD.
func (c *Client) CurrentBranch(repoPath string) (string, error) {
	repo, err := c.open(repoPath)
	if err != nil {
		return "", err
	}
	head, err := repo.Head()
	if err != nil {
		return "", fmt.Errorf("get HEAD: %w", err)
	}
	if !head.Name().IsBranch() {
		return "", nil
	}
	return head.Name().Short(), nil
}

// ChangedFiles returns the paths touched between two commits, sorted and
// de-duplicated. Renames contribute both sides. Unknown commits (rewritten
// or garbage-collected history) return an error so callers can fall back to
// a full re-analysis.
func (c *Client) ChangedFiles(repoPath, fromCommit, toCommit string) ([]string, error) {
	repo, err := c.open(repoPath)
	if err != nil {
		return nil, err
	}

	fromTree, err := commitTree(repo, fromCommit)
	if err != nil {
		return nil, err
	}
	toTree, err := commitTree(repo, toCommit)
	if err != nil {
		return nil, err
	}

	changes, err := object.DiffTree(fromTree, toTree)
	if err != nil {
		return nil, fmt.Errorf("diff %s..%s: %w", short(fromCommit), short(toCommit), err)
	}

	seen := make(map[string]struct{}, len(changes))
	for _, ch := range changes {
		if name := ch.From.Name; name != "" {
			seen[name] = struct{}{}
		}
		if name := ch.To.Name; name != "" {
			seen[name] = struct{}{}
		}
	}

	files := make([]string, 0, len(seen))
	for f := range seen {
		files = append(files, f)
	}
	sort.Strings(files)
	return files, nil
}

func commitTree(repo *gogit.Repository, sha string) (*object.Tree, error) {
	commit, err := repo.CommitObject(plumbing.NewHash(sha))
	if err != nil {
		return nil, fmt.Errorf("resolve commit %s: %w", short(sha), err)
	}
	tree, err := commit.Tree()
	if err != nil {
		return nil, fmt.Errorf("read tree of %s: %w", short(sha), err)
	}
	return tree, nil
}

func short(sha string) string {
	if len(sha) > 8 {
		return sha[:8]
	}
	return sha
}
