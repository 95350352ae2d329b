package session

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

func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	t.Setenv("TEST_SESSION_TOKEN", "sess-tok")

	cfg := domain.SessionsConfig{
		BaseURL:       srv.URL,
		TokenEnv:      "TEST_SESSION_TOKEN",
		EnvironmentID: "env-1",
	}
	return NewClient(cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestClient_CreateSession(t *testing.T) {
	var payload map[string]any
	var auth string
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/v1/sessions" {
			t.Errorf("unexpected call %s %s", r.Method, r.URL.Path)
		}
		auth = r.Header.Get("Authorization")
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Fatal(err)
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id": "sess-9", "web_url": "https://backend.test/s/9", "status": "running",
		})
	})

	c := newTestClient(t, handler)
	s, err := c.CreateSession(context.Background(), domain.CreateSessionRequest{
		Prompt:        "do the thing",
		RepoURL:       "https://github.com/acme/rocket",
		BranchPrefix:  "pilot/issue-7",
		EnvironmentID: "env-1",
	})
	if err != nil {
		t.Fatalf("CreateSession() error = %v", err)
	}

	if s.ID != "sess-9" || s.WebURL != "https://backend.test/s/9" || s.Status != domain.SessionRunning {
		t.Errorf("session = %+v", s)
	}
	if auth != "Bearer sess-tok" {
		t.Errorf("Authorization = %q, want bearer token", auth)
	}
	if payload["branch_prefix"] != "pilot/issue-7" || payload["environment_id"] != "env-1" {
		t.Errorf("payload = %v", payload)
	}
	// Fresh work sends a prefix, not a branch.
	if _, ok := payload["branch"]; ok {
		t.Errorf("payload carries branch %v alongside branch_prefix", payload["branch"])
	}
}

func TestClient_CreateSessionScopedToBranch(t *testing.T) {
	var payload map[string]any
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Fatal(err)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"id": "sess-10", "status": "running"})
	})

	c := newTestClient(t, handler)
	_, err := c.CreateSession(context.Background(), domain.CreateSessionRequest{
		Prompt:        "rework it",
		RepoURL:       "https://github.com/acme/rocket",
		Branch:        "pilot/issue-7",
		EnvironmentID: "env-1",
	})
	if err != nil {
		t.Fatalf("CreateSession() error = %v", err)
	}

	if payload["branch"] != "pilot/issue-7" {
		t.Errorf("payload branch = %v, want pilot/issue-7", payload["branch"])
	}
	if _, ok := payload["branch_prefix"]; ok {
		t.Errorf("payload carries branch_prefix %v alongside branch", payload["branch_prefix"])
	}
}

func TestClient_GetSession(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/sessions/sess-9" {
			t.Errorf("path = %s", r.URL.Path)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id": "sess-9", "status": "completed",
			"outcome": map[string]any{"branch": "pilot/issue-7-abc", "pr_url": ""},
		})
	})

	c := newTestClient(t, handler)
	s, err := c.GetSession(context.Background(), "sess-9")
	if err != nil {
		t.Fatalf("GetSession() error = %v", err)
	}

	if s.Status != domain.SessionCompleted {
		t.Errorf("Status = %q, want completed", s.Status)
	}
	if s.Outcome == nil || s.Outcome.Branch != "pilot/issue-7-abc" {
		t.Errorf("Outcome = %+v, want branch pilot/issue-7-abc", s.Outcome)
	}
}

func TestClient_GetSessionNotFound(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	c := newTestClient(t, handler)
	if _, err := c.GetSession(context.Background(), "gone"); !errors.Is(err, domain.ErrSessionNotFound) {
		t.Errorf("error = %v, want ErrSessionNotFound", err)
	}
}

func TestClient_GetEvents(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/sessions/sess-9/events" {
			t.Errorf("path = %s", r.URL.Path)
		}
		_ = json.NewEncoder(w).Encode([]map[string]any{
			{"kind": "command", "command": "git push origin HEAD:pilot/issue-7-abc"},
			{"kind": "message", "text": "Pushed the changes."},
			{"kind": "error", "text": "lint failed"},
		})
	})

	c := newTestClient(t, handler)
	events, err := c.GetEvents(context.Background(), "sess-9")
	if err != nil {
		t.Fatalf("GetEvents() error = %v", err)
	}

	if len(events) != 3 {
		t.Fatalf("got %d events, want 3", len(events))
	}
	if events[0].Kind != domain.EventCommand || events[0].Command == "" {
		t.Errorf("first event = %+v", events[0])
	}
	if events[2].Kind != domain.EventError || events[2].Text != "lint failed" {
		t.Errorf("third event = %+v", events[2])
	}
	if !domain.HasErrorEvent(events) {
		t.Error("HasErrorEvent() = false, want true")
	}
}

func TestNormalizeStatus(t *testing.T) {
	tests := []struct {
		in   string
		want domain.SessionStatus
	}{
		{"running", domain.SessionRunning},
		{"completed", domain.SessionCompleted},
		{"Idle", domain.SessionIdle},
		{"FAILED", domain.SessionFailed},
		{"queued", domain.SessionRunning},
		{"", domain.SessionRunning},
	}
	for _, tt := range tests {
		if got := normalizeStatus(tt.in); got != tt.want {
			t.Errorf("normalizeStatus(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestClient_ErrorMessageSurfaced(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(map[string]any{"error": "environment env-1 not found"})
	})

	c := newTestClient(t, handler)
	_, err := c.CreateSession(context.Background(), domain.CreateSessionRequest{Prompt: "x"})
	if err == nil || !strings.Contains(err.Error(), "environment env-1 not found") {
		t.Errorf("error = %v, want backend message surfaced", err)
	}
}
