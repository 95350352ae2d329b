// Package session implements the domain.SessionBackend port over the
// coding-agent backend's HTTP JSON API.
package session

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/runoshun/git-pilot/internal/domain"
)

const requestTimeout = 60 * time.Second

// Client talks to one session backend.
type Client struct {
	http   *http.Client
	logger *slog.Logger
	cfg    domain.SessionsConfig
}

// NewClient builds a session backend client.
func NewClient(cfg domain.SessionsConfig, logger *slog.Logger) *Client {
	return &Client{
		http:   &http.Client{Timeout: requestTimeout},
		logger: logger,
		cfg:    cfg,
	}
}

var _ domain.SessionBackend = (*Client)(nil)

// createPayload is the wire shape of a session launch. Exactly one of
// branch_prefix and branch is set.
type createPayload struct {
	Prompt        string `json:"prompt"`
	RepoURL       string `json:"repo_url"`
	BranchPrefix  string `json:"branch_prefix,omitempty"`
	Branch        string `json:"branch,omitempty"`
	EnvironmentID string `json:"environment_id"`
}

type sessionPayload struct {
	Outcome *struct {
		Branch string `json:"branch"`
		PRURL  string `json:"pr_url"`
	} `json:"outcome"`
	ID     string `json:"id"`
	WebURL string `json:"web_url"`
	Status string `json:"status"`
}

func (p sessionPayload) toDomain() *domain.Session {
	s := &domain.Session{
		ID:     p.ID,
		WebURL: p.WebURL,
		Status: normalizeStatus(p.Status),
	}
	if p.Outcome != nil {
		s.Outcome = &domain.SessionOutcome{Branch: p.Outcome.Branch, PRURL: p.Outcome.PRURL}
	}
	return s
}

type eventPayload struct {
	Kind    string `json:"kind"`
	Command string `json:"command,omitempty"`
	Text    string `json:"text,omitempty"`
}

// CreateSession starts a session and returns its id and web URL.
func (c *Client) CreateSession(ctx context.Context, req domain.CreateSessionRequest) (*domain.Session, error) {
	payload := createPayload{
		Prompt:        req.Prompt,
		RepoURL:       req.RepoURL,
		BranchPrefix:  req.BranchPrefix,
		Branch:        req.Branch,
		EnvironmentID: req.EnvironmentID,
	}
	var out sessionPayload
	if err := c.do(ctx, http.MethodPost, "/v1/sessions", payload, &out); err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}

	c.logger.Debug("session created", "id", out.ID, "url", out.WebURL)
	return out.toDomain(), nil
}

// GetSession fetches a session's current status and outcome metadata.
func (c *Client) GetSession(ctx context.Context, id string) (*domain.Session, error) {
	var out sessionPayload
	if err := c.do(ctx, http.MethodGet, "/v1/sessions/"+id, nil, &out); err != nil {
		return nil, fmt.Errorf("get session %s: %w", id, err)
	}
	return out.toDomain(), nil
}

// GetEvents returns the session's ordered event stream.
func (c *Client) GetEvents(ctx context.Context, id string) ([]domain.SessionEvent, error) {
	var payloads []eventPayload
	if err := c.do(ctx, http.MethodGet, "/v1/sessions/"+id+"/events", nil, &payloads); err != nil {
		return nil, fmt.Errorf("get events of %s: %w", id, err)
	}

	events := make([]domain.SessionEvent, 0, len(payloads))
	for _, p := range payloads {
		events = append(events, domain.SessionEvent{
			Kind:    domain.SessionEventKind(p.Kind),
			Command: p.Command,
			Text:    p.Text,
		})
	}
	return events, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var rdr io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode: %w", err)
		}
		rdr = bytes.NewReader(data)
	}

	url := strings.TrimRight(c.cfg.BaseURL, "/") + path
	req, err := http.NewRequestWithContext(ctx, method, url, rdr)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "git-pilot")
	if tok := c.cfg.Token(); tok != "" {
		req.Header.Set("Authorization", "Bearer "+tok)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusNotFound {
		return domain.ErrSessionNotFound
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return apiError(resp)
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode: %w", err)
		}
	}
	return nil
}

func apiError(resp *http.Response) error {
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	var e struct {
		Error string `json:"error"`
	}
	_ = json.Unmarshal(data, &e)
	if e.Error != "" {
		return fmt.Errorf("session backend: %s: %s", resp.Status, e.Error)
	}
	return fmt.Errorf("session backend: %s", resp.Status)
}

// normalizeStatus maps backend status strings to the domain lifecycle.
// Unknown statuses (queued, provisioning, ...) behave like running: the
// poller leaves the item alone and checks again next cycle.
func normalizeStatus(s string) domain.SessionStatus {
	switch domain.SessionStatus(strings.ToLower(s)) {
	case domain.SessionCompleted:
		return domain.SessionCompleted
	case domain.SessionIdle:
		return domain.SessionIdle
	case domain.SessionFailed:
		return domain.SessionFailed
	default:
		return domain.SessionRunning
	}
}
