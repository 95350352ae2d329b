package tracker

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/runoshun/git-pilot/internal/domain"
)

// prPayload is the REST shape of a pull request. mergeable is null while
// GitHub is still computing mergeability; the tri-state survives into the
// domain type.
type prPayload struct {
	Mergeable *bool  `json:"mergeable"`
	Title     string `json:"title"`
	State     string `json:"state"`
	HTMLURL   string `json:"html_url"`
	Head      struct {
		Ref string `json:"ref"`
	} `json:"head"`
	Base struct {
		Ref string `json:"ref"`
	} `json:"base"`
	Number int `json:"number"`
}

func (p prPayload) toDomain() *domain.PullRequest {
	return &domain.PullRequest{
		Mergeable:  p.Mergeable,
		Title:      p.Title,
		HeadBranch: p.Head.Ref,
		BaseBranch: p.Base.Ref,
		URL:        p.HTMLURL,
		State:      p.State,
		Number:     p.Number,
	}
}

// FindPRByBranch returns the open PR whose head is the branch, or
// domain.ErrPRNotFound.
func (c *Client) FindPRByBranch(ctx context.Context, head string) (*domain.PullRequest, error) {
	var payloads []prPayload
	path := c.repoPath("/pulls?state=open&head=%s", url.QueryEscape(c.cfg.Owner+":"+head))
	if err := c.rest(ctx, http.MethodGet, path, nil, &payloads); err != nil {
		return nil, fmt.Errorf("find pr for %s: %w", head, err)
	}
	if len(payloads) == 0 {
		return nil, domain.ErrPRNotFound
	}
	return payloads[0].toDomain(), nil
}

// CreatePR opens a pull request. A referenced issue is linked with a
// closing keyword so the merge closes it.
func (c *Client) CreatePR(ctx context.Context, opts domain.CreatePROptions) (*domain.PullRequest, error) {
	body := opts.Body
	if opts.Issue > 0 {
		if body != "" {
			body += "\n\n"
		}
		body += fmt.Sprintf("Closes #%d", opts.Issue)
	}

	payload := map[string]string{
		"title": opts.Title,
		"body":  body,
		"head":  opts.Head,
		"base":  opts.Base,
	}
	var created prPayload
	if err := c.rest(ctx, http.MethodPost, c.repoPath("/pulls"), payload, &created); err != nil {
		return nil, fmt.Errorf("create pr for %s: %w", opts.Head, err)
	}
	return created.toDomain(), nil
}

// GetPR fetches a pull request, including its current mergeability.
func (c *Client) GetPR(ctx context.Context, number int) (*domain.PullRequest, error) {
	var payload prPayload
	if err := c.rest(ctx, http.MethodGet, c.repoPath("/pulls/%d", number), nil, &payload); err != nil {
		if hasStatus(err, http.StatusNotFound) {
			return nil, domain.ErrPRNotFound
		}
		return nil, fmt.Errorf("get pr #%d: %w", number, err)
	}
	return payload.toDomain(), nil
}

// MergePR performs a squash merge. GitHub answers 405 when the PR is not
// mergeable and 409 when the head moved; both surface as errors for the
// conflict workflow to classify.
func (c *Client) MergePR(ctx context.Context, number int, commitTitle string) error {
	payload := map[string]string{
		"commit_title": commitTitle,
		"merge_method": "squash",
	}
	if err := c.rest(ctx, http.MethodPut, c.repoPath("/pulls/%d/merge", number), payload, nil); err != nil {
		return fmt.Errorf("merge pr #%d: %w", number, err)
	}
	return nil
}

// SubmitReview posts an approving or change-requesting review.
func (c *Client) SubmitReview(ctx context.Context, pr int, approved bool, body string) error {
	event := "REQUEST_CHANGES"
	if approved {
		event = "APPROVE"
	}
	payload := map[string]string{"event": event, "body": body}
	if err := c.rest(ctx, http.MethodPost, c.repoPath("/pulls/%d/reviews", pr), payload, nil); err != nil {
		return fmt.Errorf("review pr #%d: %w", pr, err)
	}
	return nil
}

// DeleteBranch removes the remote branch. An already-deleted ref (404 or
// 422) is the desired end state. Branch names pass through raw: the refs
// route expects literal slashes in nested names like pilot/issue-7.
func (c *Client) DeleteBranch(ctx context.Context, branch string) error {
	path := c.repoPath("/git/refs/heads/%s", branch)
	err := c.rest(ctx, http.MethodDelete, path, nil, nil)
	if err != nil && !hasStatus(err, http.StatusNotFound) && !hasStatus(err, http.StatusUnprocessableEntity) {
		return fmt.Errorf("delete branch %s: %w", branch, err)
	}
	return nil
}

// CombinedChecks returns the combined status of the ref's checks. A ref with
// no checks configured counts as passing, not pending, so repositories
// without CI still flow through review.
func (c *Client) CombinedChecks(ctx context.Context, ref string) (domain.ChecksState, error) {
	var payload struct {
		State      string `json:"state"`
		TotalCount int    `json:"total_count"`
	}
	path := c.repoPath("/commits/%s/status", ref)
	if err := c.rest(ctx, http.MethodGet, path, nil, &payload); err != nil {
		return "", fmt.Errorf("checks of %s: %w", ref, err)
	}

	if payload.TotalCount == 0 {
		return domain.ChecksPassing, nil
	}
	switch payload.State {
	case "success":
		return domain.ChecksPassing, nil
	case "pending":
		return domain.ChecksPending, nil
	default: // failure, error
		return domain.ChecksFailing, nil
	}
}
