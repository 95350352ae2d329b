package tracker

import (
	"context"
	"fmt"
	"strings"

	"github.com/runoshun/git-pilot/internal/domain"
)

// queryProject resolves the project id and the Status single-select field
// with its option ids. repositoryOwner covers both user and org projects.
const queryProject = `
query($owner: String!, $number: Int!) {
  repositoryOwner(login: $owner) {
    ... on ProjectV2Owner {
      projectV2(number: $number) {
        id
        field(name: "Status") {
          ... on ProjectV2SingleSelectField {
            id
            options { id name }
          }
        }
      }
    }
  }
}`

const queryItems = `
query($owner: String!, $number: Int!, $cursor: String) {
  repositoryOwner(login: $owner) {
    ... on ProjectV2Owner {
      projectV2(number: $number) {
        items(first: 100, after: $cursor) {
          pageInfo { hasNextPage endCursor }
          nodes {
            id
            fieldValueByName(name: "Status") {
              ... on ProjectV2ItemFieldSingleSelectValue { name }
            }
            content {
              ... on Issue {
                number
                title
                state
                labels(first: 20) { nodes { name } }
              }
            }
          }
        }
      }
    }
  }
}`

const mutateItemStatus = `
mutation($project: ID!, $item: ID!, $field: ID!, $option: String!) {
  updateProjectV2ItemFieldValue(input: {
    projectId: $project, itemId: $item, fieldId: $field,
    value: { singleSelectOptionId: $option }
  }) { clientMutationId }
}`

const mutateAddItem = `
mutation($project: ID!, $content: ID!) {
  addProjectV2ItemById(input: { projectId: $project, contentId: $content }) {
    item { id }
  }
}`

// Resolve eagerly resolves the project, Status field, and option ids. The
// same resolution runs lazily before any board operation, so calling it at
// startup only front-loads the failure.
func (c *Client) Resolve(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ensureProjectLocked(ctx)
}

func (c *Client) ensureProjectLocked(ctx context.Context) error {
	if c.resolved {
		return nil
	}

	var out struct {
		RepositoryOwner struct {
			ProjectV2 struct {
				ID    string `json:"id"`
				Field struct {
					ID      string `json:"id"`
					Options []struct {
						ID   string `json:"id"`
						Name string `json:"name"`
					} `json:"options"`
				} `json:"field"`
			} `json:"projectV2"`
		} `json:"repositoryOwner"`
	}
	vars := map[string]any{"owner": c.cfg.Owner, "number": c.cfg.ProjectNumber}
	if err := c.graphql(ctx, queryProject, vars, &out); err != nil {
		return fmt.Errorf("resolve project %d: %w", c.cfg.ProjectNumber, err)
	}

	project := out.RepositoryOwner.ProjectV2
	if project.ID == "" {
		return fmt.Errorf("resolve project %d: not found for owner %s", c.cfg.ProjectNumber, c.cfg.Owner)
	}
	if project.Field.ID == "" {
		return domain.ErrStatusFieldNotFound
	}

	options := make(map[domain.Status]string, len(project.Field.Options))
	for _, opt := range project.Field.Options {
		if st, ok := columnStatus(opt.Name); ok {
			options[st] = opt.ID
		}
	}

	c.projectID = project.ID
	c.statusFieldID = project.Field.ID
	c.statusOptions = options
	c.resolved = true

	c.logger.Debug("project resolved",
		"project", c.cfg.ProjectNumber,
		"columns", len(options))
	return nil
}

// ListItems returns the open issues on the board with their columns and
// labels, caching each item's project id for later status moves. Items that
// are not open issues, or sit in an unmapped column, are skipped.
func (c *Client) ListItems(ctx context.Context) ([]*domain.Task, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.ensureProjectLocked(ctx); err != nil {
		return nil, err
	}

	var tasks []*domain.Task
	var cursor *string
	for {
		var out itemsPage
		vars := map[string]any{"owner": c.cfg.Owner, "number": c.cfg.ProjectNumber, "cursor": cursor}
		if err := c.graphql(ctx, queryItems, vars, &out); err != nil {
			return nil, fmt.Errorf("list board items: %w", err)
		}

		items := out.RepositoryOwner.ProjectV2.Items
		for _, node := range items.Nodes {
			if node.Content.Number == 0 || !strings.EqualFold(node.Content.State, "open") {
				continue
			}
			status, ok := columnStatus(node.FieldValueByName.Name)
			if !ok {
				continue
			}

			c.itemIDs[node.Content.Number] = node.ID
			labels := make([]string, 0, len(node.Content.Labels.Nodes))
			for _, l := range node.Content.Labels.Nodes {
				labels = append(labels, l.Name)
			}
			tasks = append(tasks, &domain.Task{
				Title:  node.Content.Title,
				Status: status,
				Labels: labels,
				Issue:  node.Content.Number,
			})
		}

		if !items.PageInfo.HasNextPage {
			return tasks, nil
		}
		cursor = &items.PageInfo.EndCursor
	}
}

// itemsPage is the decoded shape of one queryItems response.
type itemsPage struct {
	RepositoryOwner struct {
		ProjectV2 struct {
			Items struct {
				PageInfo struct {
					HasNextPage bool   `json:"hasNextPage"`
					EndCursor   string `json:"endCursor"`
				} `json:"pageInfo"`
				Nodes []struct {
					ID               string `json:"id"`
					FieldValueByName struct {
						Name string `json:"name"`
					} `json:"fieldValueByName"`
					Content struct {
						Number int    `json:"number"`
						Title  string `json:"title"`
						State  string `json:"state"`
						Labels struct {
							Nodes []struct {
								Name string `json:"name"`
							} `json:"nodes"`
						} `json:"labels"`
					} `json:"content"`
				} `json:"nodes"`
			} `json:"items"`
		} `json:"projectV2"`
	} `json:"repositoryOwner"`
}

// SetItemStatus moves the issue's project item to the column mapped to
// status. The remote update is idempotent: setting the current column again
// is a no-op on the board.
func (c *Client) SetItemStatus(ctx context.Context, issue int, status domain.Status) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.ensureProjectLocked(ctx); err != nil {
		return err
	}

	optionID, ok := c.statusOptions[status]
	if !ok {
		return fmt.Errorf("set status of #%d: project has no column for %s", issue, status)
	}
	itemID, err := c.itemIDLocked(ctx, issue)
	if err != nil {
		return fmt.Errorf("set status of #%d: %w", issue, err)
	}

	vars := map[string]any{
		"project": c.projectID,
		"item":    itemID,
		"field":   c.statusFieldID,
		"option":  optionID,
	}
	if err := c.graphql(ctx, mutateItemStatus, vars, nil); err != nil {
		return fmt.Errorf("set status of #%d: %w", issue, err)
	}
	return nil
}

// itemIDLocked returns the cached project item id for the issue, adding the
// issue to the project when it is not on the board yet. Adding an existing
// item returns its current id, so the call is safe to repeat.
func (c *Client) itemIDLocked(ctx context.Context, issue int) (string, error) {
	if id, ok := c.itemIDs[issue]; ok {
		return id, nil
	}

	var payload struct {
		NodeID string `json:"node_id"`
	}
	path := fmt.Sprintf("/repos/%s/%s/issues/%d", c.cfg.Owner, c.cfg.Repo, issue)
	if err := c.rest(ctx, "GET", path, nil, &payload); err != nil {
		return "", err
	}

	var out struct {
		AddProjectV2ItemByID struct {
			Item struct {
				ID string `json:"id"`
			} `json:"item"`
		} `json:"addProjectV2ItemById"`
	}
	vars := map[string]any{"project": c.projectID, "content": payload.NodeID}
	if err := c.graphql(ctx, mutateAddItem, vars, &out); err != nil {
		return "", err
	}
	if out.AddProjectV2ItemByID.Item.ID == "" {
		return "", fmt.Errorf("issue #%d could not be added to the project", issue)
	}

	c.itemIDs[issue] = out.AddProjectV2ItemByID.Item.ID
	return c.itemIDs[issue], nil
}

// columnStatus maps a board column name to a status, tolerating the usual
// naming variants ("In Progress", "in-progress", "In_Progress").
func columnStatus(name string) (domain.Status, bool) {
	want := normalizeColumn(name)
	for _, st := range domain.AllStatuses() {
		if normalizeColumn(string(st)) == want {
			return st, true
		}
	}
	return "", false
}

var columnNormalizer = strings.NewReplacer(" ", "", "_", "", "-", "")

func normalizeColumn(s string) string {
	return columnNormalizer.Replace(strings.ToLower(s))
}
