package tracker

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/runoshun/git-pilot/internal/domain"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newTestClient points a client at the fake server for both REST and
// GraphQL endpoints.
func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	t.Setenv("TEST_TRACKER_TOKEN", "tok-123")

	cfg := domain.TrackerConfig{
		Owner:         "acme",
		Repo:          "rocket",
		TokenEnv:      "TEST_TRACKER_TOKEN",
		APIBaseURL:    srv.URL,
		GraphQLURL:    srv.URL + "/graphql",
		ProjectNumber: 7,
	}
	return NewClient(cfg, discardLogger())
}

func ghJSON(t *testing.T, w http.ResponseWriter, code int, v any) {
	t.Helper()
	w.Header().Set("X-RateLimit-Remaining", "4999")
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if v != nil {
		if err := json.NewEncoder(w).Encode(v); err != nil {
			t.Fatalf("encoding test response: %v", err)
		}
	}
}

// graphqlRequest decodes the body of a GraphQL call.
func graphqlRequest(t *testing.T, r *http.Request) (string, map[string]any) {
	t.Helper()
	var req struct {
		Query     string         `json:"query"`
		Variables map[string]any `json:"variables"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		t.Fatalf("decoding graphql request: %v", err)
	}
	return req.Query, req.Variables
}

// projectData is the canned resolution response: project P_1 with a Status
// field carrying all five columns.
func projectData() map[string]any {
	return map[string]any{
		"data": map[string]any{
			"repositoryOwner": map[string]any{
				"projectV2": map[string]any{
					"id": "P_1",
					"field": map[string]any{
						"id": "F_1",
						"options": []map[string]any{
							{"id": "opt-backlog", "name": "Backlog"},
							{"id": "opt-ready", "name": "Ready"},
							{"id": "opt-wip", "name": "In Progress"},
							{"id": "opt-review", "name": "In Review"},
							{"id": "opt-done", "name": "Done"},
						},
					},
				},
			},
		},
	}
}

func itemNode(id string, number int, title, state, column string, labels ...string) map[string]any {
	labelNodes := make([]map[string]any, 0, len(labels))
	for _, l := range labels {
		labelNodes = append(labelNodes, map[string]any{"name": l})
	}
	return map[string]any{
		"id":               id,
		"fieldValueByName": map[string]any{"name": column},
		"content": map[string]any{
			"number": number,
			"title":  title,
			"state":  state,
			"labels": map[string]any{"nodes": labelNodes},
		},
	}
}

func itemsData(nodes ...map[string]any) map[string]any {
	return map[string]any{
		"data": map[string]any{
			"repositoryOwner": map[string]any{
				"projectV2": map[string]any{
					"items": map[string]any{
						"pageInfo": map[string]any{"hasNextPage": false, "endCursor": ""},
						"nodes":    nodes,
					},
				},
			},
		},
	}
}

func TestClient_ListItems(t *testing.T) {
	var sawAuth string
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/graphql" {
			t.Errorf("unexpected REST call %s %s", r.Method, r.URL.Path)
			ghJSON(t, w, http.StatusNotFound, nil)
			return
		}
		sawAuth = r.Header.Get("Authorization")

		query, _ := graphqlRequest(t, r)
		switch {
		case strings.Contains(query, "items(first"):
			ghJSON(t, w, http.StatusOK, itemsData(
				itemNode("ITEM_1", 1, "Fix login", "OPEN", "Backlog", "bug"),
				itemNode("ITEM_2", 2, "Closed thing", "CLOSED", "Backlog"),
				itemNode("ITEM_3", 3, "Ship it", "OPEN", "In Progress"),
				itemNode("ITEM_4", 4, "Weird column", "OPEN", "Blocked"),
				itemNode("ITEM_5", 0, "", "", ""), // draft, no issue content
			))
		default:
			ghJSON(t, w, http.StatusOK, projectData())
		}
	})

	c := newTestClient(t, handler)
	tasks, err := c.ListItems(context.Background())
	if err != nil {
		t.Fatalf("ListItems() error = %v", err)
	}

	if len(tasks) != 2 {
		t.Fatalf("ListItems() returned %d tasks, want 2: %+v", len(tasks), tasks)
	}
	if tasks[0].Issue != 1 || tasks[0].Status != domain.StatusBacklog || !tasks[0].HasLabel("bug") {
		t.Errorf("first task = %+v, want issue 1 backlog with bug label", tasks[0])
	}
	if tasks[1].Issue != 3 || tasks[1].Status != domain.StatusInProgress {
		t.Errorf("second task = %+v, want issue 3 in_progress", tasks[1])
	}
	if sawAuth != "Bearer tok-123" {
		t.Errorf("Authorization = %q, want bearer token", sawAuth)
	}
	if got := c.RateLimitRemaining(); got != 4999 {
		t.Errorf("RateLimitRemaining() = %d, want 4999", got)
	}
}

func TestClient_RateLimitUnknownBeforeFirstCall(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		ghJSON(t, w, http.StatusOK, nil)
	}))
	if got := c.RateLimitRemaining(); got != -1 {
		t.Errorf("RateLimitRemaining() = %d, want -1", got)
	}
}

func TestClient_SetItemStatus(t *testing.T) {
	var mutationVars map[string]any
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		query, vars := graphqlRequest(t, r)
		switch {
		case strings.Contains(query, "updateProjectV2ItemFieldValue"):
			mutationVars = vars
			ghJSON(t, w, http.StatusOK, map[string]any{"data": map[string]any{}})
		case strings.Contains(query, "items(first"):
			ghJSON(t, w, http.StatusOK, itemsData(itemNode("ITEM_1", 1, "Fix login", "OPEN", "Backlog")))
		default:
			ghJSON(t, w, http.StatusOK, projectData())
		}
	})

	c := newTestClient(t, handler)
	if _, err := c.ListItems(context.Background()); err != nil {
		t.Fatalf("ListItems() error = %v", err)
	}
	if err := c.SetItemStatus(context.Background(), 1, domain.StatusReady); err != nil {
		t.Fatalf("SetItemStatus() error = %v", err)
	}

	want := map[string]any{"project": "P_1", "item": "ITEM_1", "field": "F_1", "option": "opt-ready"}
	for k, v := range want {
		if mutationVars[k] != v {
			t.Errorf("mutation variable %s = %v, want %v", k, mutationVars[k], v)
		}
	}
}

func TestClient_SetItemStatusAddsUnlistedIssue(t *testing.T) {
	var added bool
	var updated bool
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/repos/acme/rocket/issues/9" {
			ghJSON(t, w, http.StatusOK, map[string]any{"number": 9, "node_id": "I_9"})
			return
		}
		query, vars := graphqlRequest(t, r)
		switch {
		case strings.Contains(query, "addProjectV2ItemById"):
			added = true
			if vars["content"] != "I_9" {
				t.Errorf("add content = %v, want I_9", vars["content"])
			}
			ghJSON(t, w, http.StatusOK, map[string]any{
				"data": map[string]any{
					"addProjectV2ItemById": map[string]any{"item": map[string]any{"id": "ITEM_9"}},
				},
			})
		case strings.Contains(query, "updateProjectV2ItemFieldValue"):
			updated = true
			if vars["item"] != "ITEM_9" {
				t.Errorf("update item = %v, want ITEM_9", vars["item"])
			}
			ghJSON(t, w, http.StatusOK, map[string]any{"data": map[string]any{}})
		default:
			ghJSON(t, w, http.StatusOK, projectData())
		}
	})

	c := newTestClient(t, handler)
	if err := c.SetItemStatus(context.Background(), 9, domain.StatusBacklog); err != nil {
		t.Fatalf("SetItemStatus() error = %v", err)
	}
	if !added || !updated {
		t.Errorf("added = %v, updated = %v, want both", added, updated)
	}
}

func TestClient_SetItemStatusUnknownColumn(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Project with only a Backlog column.
		ghJSON(t, w, http.StatusOK, map[string]any{
			"data": map[string]any{
				"repositoryOwner": map[string]any{
					"projectV2": map[string]any{
						"id": "P_1",
						"field": map[string]any{
							"id":      "F_1",
							"options": []map[string]any{{"id": "opt-backlog", "name": "Backlog"}},
						},
					},
				},
			},
		})
	})

	c := newTestClient(t, handler)
	err := c.SetItemStatus(context.Background(), 1, domain.StatusReady)
	if err == nil || !strings.Contains(err.Error(), "no column") {
		t.Errorf("SetItemStatus() error = %v, want missing-column error", err)
	}
}

func TestClient_ResolveMissingStatusField(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ghJSON(t, w, http.StatusOK, map[string]any{
			"data": map[string]any{
				"repositoryOwner": map[string]any{
					"projectV2": map[string]any{"id": "P_1", "field": map[string]any{}},
				},
			},
		})
	})

	c := newTestClient(t, handler)
	if err := c.Resolve(context.Background()); !errors.Is(err, domain.ErrStatusFieldNotFound) {
		t.Errorf("Resolve() error = %v, want ErrStatusFieldNotFound", err)
	}
}

func TestClient_CreateIssue(t *testing.T) {
	var createdBody map[string]string
	var statusOption any
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/repos/acme/rocket/issues" && r.Method == http.MethodPost {
			if err := json.NewDecoder(r.Body).Decode(&createdBody); err != nil {
				t.Fatal(err)
			}
			ghJSON(t, w, http.StatusCreated, map[string]any{
				"number": 42, "title": createdBody["title"], "node_id": "I_42",
			})
			return
		}
		query, vars := graphqlRequest(t, r)
		switch {
		case strings.Contains(query, "addProjectV2ItemById"):
			ghJSON(t, w, http.StatusOK, map[string]any{
				"data": map[string]any{
					"addProjectV2ItemById": map[string]any{"item": map[string]any{"id": "ITEM_42"}},
				},
			})
		case strings.Contains(query, "updateProjectV2ItemFieldValue"):
			statusOption = vars["option"]
			ghJSON(t, w, http.StatusOK, map[string]any{"data": map[string]any{}})
		default:
			ghJSON(t, w, http.StatusOK, projectData())
		}
	})

	c := newTestClient(t, handler)
	task, err := c.CreateIssue(context.Background(), "TODO: fix retries", "details")
	if err != nil {
		t.Fatalf("CreateIssue() error = %v", err)
	}

	if task.Issue != 42 || task.Status != domain.StatusBacklog {
		t.Errorf("task = %+v, want issue 42 in backlog", task)
	}
	if createdBody["title"] != "TODO: fix retries" || createdBody["body"] != "details" {
		t.Errorf("create payload = %v", createdBody)
	}
	if statusOption != "opt-backlog" {
		t.Errorf("status option = %v, want opt-backlog", statusOption)
	}
}

func TestClient_CloseIssue(t *testing.T) {
	var calls []string
	var patched map[string]string
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls = append(calls, r.Method+" "+r.URL.Path)
		if r.Method == http.MethodPatch {
			if err := json.NewDecoder(r.Body).Decode(&patched); err != nil {
				t.Fatal(err)
			}
		}
		ghJSON(t, w, http.StatusOK, map[string]any{})
	})

	c := newTestClient(t, handler)
	if err := c.CloseIssue(context.Background(), 5, "done here"); err != nil {
		t.Fatalf("CloseIssue() error = %v", err)
	}

	want := []string{
		"POST /repos/acme/rocket/issues/5/comments",
		"PATCH /repos/acme/rocket/issues/5",
	}
	if len(calls) != 2 || calls[0] != want[0] || calls[1] != want[1] {
		t.Errorf("calls = %v, want %v", calls, want)
	}
	if patched["state"] != "closed" {
		t.Errorf("patch payload = %v, want state closed", patched)
	}
}

func TestClient_ListComments(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ghJSON(t, w, http.StatusOK, []map[string]any{
			{"id": 11, "body": "first", "created_at": "2026-01-02T10:00:00Z"},
			{"id": 12, "body": "second", "created_at": "2026-01-02T11:00:00Z"},
		})
	})

	c := newTestClient(t, handler)
	comments, err := c.ListComments(context.Background(), 5)
	if err != nil {
		t.Fatalf("ListComments() error = %v", err)
	}

	if len(comments) != 2 {
		t.Fatalf("got %d comments, want 2", len(comments))
	}
	if comments[0].ID != 11 || comments[0].Body != "first" || comments[0].CreatedAt.IsZero() {
		t.Errorf("first comment = %+v", comments[0])
	}
}

func TestClient_RemoveLabelToleratesMissing(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ghJSON(t, w, http.StatusNotFound, map[string]any{"message": "Label does not exist"})
	})

	c := newTestClient(t, handler)
	if err := c.RemoveLabel(context.Background(), 5, "pilot:attention"); err != nil {
		t.Errorf("RemoveLabel() error = %v, want nil on 404", err)
	}
}

func TestClient_FindPRByBranch(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("head"); got != "acme:pilot/issue-7" {
			t.Errorf("head query = %q, want acme:pilot/issue-7", got)
		}
		ghJSON(t, w, http.StatusOK, []map[string]any{{
			"number": 11, "title": "Fix retries", "state": "open",
			"html_url": "https://example.test/pr/11",
			"head":     map[string]any{"ref": "pilot/issue-7"},
			"base":     map[string]any{"ref": "main"},
		}})
	})

	c := newTestClient(t, handler)
	pr, err := c.FindPRByBranch(context.Background(), "pilot/issue-7")
	if err != nil {
		t.Fatalf("FindPRByBranch() error = %v", err)
	}
	if pr.Number != 11 || pr.HeadBranch != "pilot/issue-7" || pr.BaseBranch != "main" {
		t.Errorf("pr = %+v", pr)
	}
}

func TestClient_FindPRByBranchNotFound(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ghJSON(t, w, http.StatusOK, []map[string]any{})
	})

	c := newTestClient(t, handler)
	if _, err := c.FindPRByBranch(context.Background(), "gone"); !errors.Is(err, domain.ErrPRNotFound) {
		t.Errorf("error = %v, want ErrPRNotFound", err)
	}
}

func TestClient_CreatePRLinksIssue(t *testing.T) {
	var payload map[string]string
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Fatal(err)
		}
		ghJSON(t, w, http.StatusCreated, map[string]any{
			"number": 11, "title": payload["title"], "state": "open",
			"head": map[string]any{"ref": payload["head"]},
			"base": map[string]any{"ref": payload["base"]},
		})
	})

	c := newTestClient(t, handler)
	pr, err := c.CreatePR(context.Background(), domain.CreatePROptions{
		Title: "Fix retries",
		Body:  "Automated change.",
		Head:  "pilot/issue-7",
		Base:  "main",
		Issue: 7,
	})
	if err != nil {
		t.Fatalf("CreatePR() error = %v", err)
	}

	if pr.Number != 11 {
		t.Errorf("pr number = %d, want 11", pr.Number)
	}
	if !strings.Contains(payload["body"], "Closes #7") {
		t.Errorf("pr body %q does not close the issue", payload["body"])
	}
}

func TestClient_GetPRMergeableTriState(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ghJSON(t, w, http.StatusOK, map[string]any{
			"number": 11, "state": "open", "mergeable": nil,
			"head": map[string]any{"ref": "pilot/issue-7"},
			"base": map[string]any{"ref": "main"},
		})
	})

	c := newTestClient(t, handler)
	pr, err := c.GetPR(context.Background(), 11)
	if err != nil {
		t.Fatalf("GetPR() error = %v", err)
	}
	if pr.Mergeable != nil {
		t.Errorf("Mergeable = %v, want nil while still computing", *pr.Mergeable)
	}
}

func TestClient_GetPRNotFound(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ghJSON(t, w, http.StatusNotFound, map[string]any{"message": "Not Found"})
	})

	c := newTestClient(t, handler)
	if _, err := c.GetPR(context.Background(), 999); !errors.Is(err, domain.ErrPRNotFound) {
		t.Errorf("error = %v, want ErrPRNotFound", err)
	}
}

func TestClient_MergePR(t *testing.T) {
	var payload map[string]string
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPut || !strings.HasSuffix(r.URL.Path, "/pulls/11/merge") {
			t.Errorf("unexpected call %s %s", r.Method, r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Fatal(err)
		}
		ghJSON(t, w, http.StatusOK, map[string]any{"merged": true})
	})

	c := newTestClient(t, handler)
	if err := c.MergePR(context.Background(), 11, "Fix retries (#7)"); err != nil {
		t.Fatalf("MergePR() error = %v", err)
	}
	if payload["merge_method"] != "squash" || payload["commit_title"] != "Fix retries (#7)" {
		t.Errorf("merge payload = %v", payload)
	}
}

func TestClient_MergePRConflict(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ghJSON(t, w, http.StatusMethodNotAllowed, map[string]any{"message": "Pull Request is not mergeable"})
	})

	c := newTestClient(t, handler)
	err := c.MergePR(context.Background(), 11, "title")
	if err == nil || !strings.Contains(err.Error(), "not mergeable") {
		t.Errorf("MergePR() error = %v, want not-mergeable message", err)
	}
}

func TestClient_SubmitReview(t *testing.T) {
	var payload map[string]string
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Fatal(err)
		}
		ghJSON(t, w, http.StatusOK, map[string]any{})
	})

	c := newTestClient(t, handler)
	if err := c.SubmitReview(context.Background(), 11, false, "needs work"); err != nil {
		t.Fatalf("SubmitReview() error = %v", err)
	}
	if payload["event"] != "REQUEST_CHANGES" || payload["body"] != "needs work" {
		t.Errorf("review payload = %v", payload)
	}

	if err := c.SubmitReview(context.Background(), 11, true, "lgtm"); err != nil {
		t.Fatalf("SubmitReview() error = %v", err)
	}
	if payload["event"] != "APPROVE" {
		t.Errorf("approve payload = %v", payload)
	}
}

func TestClient_DeleteBranchToleratesGone(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/git/refs/heads/pilot/issue-7") {
			t.Errorf("path = %s, want raw nested branch ref", r.URL.Path)
		}
		ghJSON(t, w, http.StatusUnprocessableEntity, map[string]any{"message": "Reference does not exist"})
	})

	c := newTestClient(t, handler)
	if err := c.DeleteBranch(context.Background(), "pilot/issue-7"); err != nil {
		t.Errorf("DeleteBranch() error = %v, want nil on 422", err)
	}
}

func TestClient_CombinedChecks(t *testing.T) {
	tests := []struct {
		name  string
		state string
		total int
		want  domain.ChecksState
	}{
		{"success", "success", 3, domain.ChecksPassing},
		{"pending", "pending", 2, domain.ChecksPending},
		{"failure", "failure", 1, domain.ChecksFailing},
		{"no checks configured", "pending", 0, domain.ChecksPassing},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				ghJSON(t, w, http.StatusOK, map[string]any{"state": tt.state, "total_count": tt.total})
			})
			c := newTestClient(t, handler)
			got, err := c.CombinedChecks(context.Background(), "pilot/issue-7")
			if err != nil {
				t.Fatalf("CombinedChecks() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("CombinedChecks() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestColumnStatus(t *testing.T) {
	tests := []struct {
		name string
		want domain.Status
		ok   bool
	}{
		{"Backlog", domain.StatusBacklog, true},
		{"In Progress", domain.StatusInProgress, true},
		{"in-progress", domain.StatusInProgress, true},
		{"IN_REVIEW", domain.StatusInReview, true},
		{"Done", domain.StatusDone, true},
		{"Blocked", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		got, ok := columnStatus(tt.name)
		if got != tt.want || ok != tt.ok {
			t.Errorf("columnStatus(%q) = %q, %v, want %q, %v", tt.name, got, ok, tt.want, tt.ok)
		}
	}
}

func TestClient_APIErrorMessage(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ghJSON(t, w, http.StatusForbidden, map[string]any{"message": "API rate limit exceeded"})
	})

	c := newTestClient(t, handler)
	err := c.AddComment(context.Background(), 5, "hi")
	if err == nil || !strings.Contains(err.Error(), "API rate limit exceeded") {
		t.Errorf("error = %v, want rate limit message surfaced", err)
	}
}
