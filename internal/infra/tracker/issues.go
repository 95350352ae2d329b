package tracker

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/runoshun/git-pilot/internal/domain"
)

// issuePayload is the REST shape of an issue.
type issuePayload struct {
	Title  string `json:"title"`
	State  string `json:"state"`
	NodeID string `json:"node_id"`
	Labels []struct {
		Name string `json:"name"`
	} `json:"labels"`
	Number int `json:"number"`
}

type commentPayload struct {
	CreatedAt time.Time `json:"created_at"`
	Body      string    `json:"body"`
	ID        int64     `json:"id"`
}

func (c *Client) repoPath(format string, args ...any) string {
	return fmt.Sprintf("/repos/%s/%s", c.cfg.Owner, c.cfg.Repo) + fmt.Sprintf(format, args...)
}

// CreateIssue opens the issue, puts it on the project board, and moves it to
// the Backlog column.
func (c *Client) CreateIssue(ctx context.Context, title, body string) (*domain.Task, error) {
	var created issuePayload
	payload := map[string]string{"title": title, "body": body}
	if err := c.rest(ctx, http.MethodPost, c.repoPath("/issues"), payload, &created); err != nil {
		return nil, fmt.Errorf("create issue: %w", err)
	}

	if err := c.placeOnBoard(ctx, created.Number, created.NodeID); err != nil {
		return nil, fmt.Errorf("create issue #%d: %w", created.Number, err)
	}
	if err := c.SetItemStatus(ctx, created.Number, domain.StatusBacklog); err != nil {
		return nil, err
	}

	return &domain.Task{
		Title:  created.Title,
		Status: domain.StatusBacklog,
		Issue:  created.Number,
	}, nil
}

// placeOnBoard adds a freshly created issue to the project, caching its item
// id for the follow-up status move.
func (c *Client) placeOnBoard(ctx context.Context, issue int, nodeID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.ensureProjectLocked(ctx); err != nil {
		return err
	}

	var out struct {
		AddProjectV2ItemByID struct {
			Item struct {
				ID string `json:"id"`
			} `json:"item"`
		} `json:"addProjectV2ItemById"`
	}
	vars := map[string]any{"project": c.projectID, "content": nodeID}
	if err := c.graphql(ctx, mutateAddItem, vars, &out); err != nil {
		return err
	}
	if out.AddProjectV2ItemByID.Item.ID == "" {
		return fmt.Errorf("project add returned no item id")
	}
	c.itemIDs[issue] = out.AddProjectV2ItemByID.Item.ID
	return nil
}

// CloseIssue closes the issue, attaching a final comment when non-empty.
func (c *Client) CloseIssue(ctx context.Context, issue int, comment string) error {
	if comment != "" {
		if err := c.AddComment(ctx, issue, comment); err != nil {
			return err
		}
	}
	payload := map[string]string{"state": "closed"}
	if err := c.rest(ctx, http.MethodPatch, c.repoPath("/issues/%d", issue), payload, nil); err != nil {
		return fmt.Errorf("close issue #%d: %w", issue, err)
	}
	return nil
}

// AddComment appends a comment to the issue.
func (c *Client) AddComment(ctx context.Context, issue int, body string) error {
	payload := map[string]string{"body": body}
	if err := c.rest(ctx, http.MethodPost, c.repoPath("/issues/%d/comments", issue), payload, nil); err != nil {
		return fmt.Errorf("comment on #%d: %w", issue, err)
	}
	return nil
}

// ListComments returns the issue's comments in chronological order.
func (c *Client) ListComments(ctx context.Context, issue int) ([]domain.Comment, error) {
	var payloads []commentPayload
	path := c.repoPath("/issues/%d/comments?per_page=100", issue)
	if err := c.rest(ctx, http.MethodGet, path, nil, &payloads); err != nil {
		return nil, fmt.Errorf("list comments of #%d: %w", issue, err)
	}

	comments := make([]domain.Comment, 0, len(payloads))
	for _, p := range payloads {
		comments = append(comments, domain.Comment{
			CreatedAt: p.CreatedAt,
			Body:      p.Body,
			ID:        p.ID,
		})
	}
	return comments, nil
}

// AddLabel attaches a label to the issue, creating it repo-side on first use.
func (c *Client) AddLabel(ctx context.Context, issue int, label string) error {
	payload := map[string][]string{"labels": {label}}
	if err := c.rest(ctx, http.MethodPost, c.repoPath("/issues/%d/labels", issue), payload, nil); err != nil {
		return fmt.Errorf("label #%d: %w", issue, err)
	}
	return nil
}

// RemoveLabel detaches a label. A 404 means the label is already gone, which
// is the desired end state.
func (c *Client) RemoveLabel(ctx context.Context, issue int, label string) error {
	path := c.repoPath("/issues/%d/labels/%s", issue, url.PathEscape(label))
	err := c.rest(ctx, http.MethodDelete, path, nil, nil)
	if err != nil && !hasStatus(err, http.StatusNotFound) {
		return fmt.Errorf("unlabel #%d: %w", issue, err)
	}
	return nil
}
