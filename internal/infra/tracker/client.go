// Package tracker implements the domain.Tracker port against the GitHub
// REST and GraphQL APIs. Issues, comments, labels, pull requests, and check
// statuses go through REST; the project board (column reads and moves) is
// GraphQL-only, keyed by project/field/option ids resolved once and cached
// on the client.
package tracker

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/runoshun/git-pilot/internal/domain"
)

const (
	userAgent      = "git-pilot"
	acceptJSON     = "application/vnd.github.v3+json"
	requestTimeout = 30 * time.Second
)

// Client talks to one repository and one project board.
// Fields are ordered to minimize memory padding.
type Client struct {
	http          *http.Client
	logger        *slog.Logger
	statusOptions map[domain.Status]string // status -> single-select option id
	itemIDs       map[int]string           // issue number -> project item id
	projectID     string
	statusFieldID string
	cfg           domain.TrackerConfig
	mu            sync.Mutex
	rateLimit     atomic.Int64
	resolved      bool
}

// NewClient builds a client. Project ids are resolved lazily on the first
// board operation (or eagerly via Resolve).
func NewClient(cfg domain.TrackerConfig, logger *slog.Logger) *Client {
	c := &Client{
		http:    &http.Client{Timeout: requestTimeout},
		logger:  logger,
		itemIDs: make(map[int]string),
		cfg:     cfg,
	}
	c.rateLimit.Store(-1)
	return c
}

var _ domain.Tracker = (*Client)(nil)

// RateLimitRemaining reports the API budget seen on the last response, or
// -1 before any call.
func (c *Client) RateLimitRemaining() int {
	return int(c.rateLimit.Load())
}

// rest performs one REST call against the API base. A non-nil out is
// JSON-decoded from the response body.
func (c *Client) rest(ctx context.Context, method, path string, body, out any) error {
	var rdr io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("%s %s: encode: %w", method, path, err)
		}
		rdr = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.cfg.APIURL()+path, rdr)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	c.setHeaders(req, body != nil)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer func() { _ = resp.Body.Close() }()
	c.captureRateLimit(resp)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return newAPIError(method, path, resp)
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("%s %s: decode: %w", method, path, err)
		}
	}
	return nil
}

// graphql performs one GraphQL call. out receives the "data" object.
func (c *Client) graphql(ctx context.Context, query string, variables map[string]any, out any) error {
	payload := map[string]any{"query": query}
	if len(variables) > 0 {
		payload["variables"] = variables
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("graphql: encode: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.GraphQL(), bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("graphql: %w", err)
	}
	c.setHeaders(req, true)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("graphql: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()
	c.captureRateLimit(resp)

	if resp.StatusCode != http.StatusOK {
		return newAPIError(http.MethodPost, "/graphql", resp)
	}

	var envelope struct {
		Data   json.RawMessage `json:"data"`
		Errors []struct {
			Message string `json:"message"`
		} `json:"errors"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return fmt.Errorf("graphql: decode: %w", err)
	}
	if len(envelope.Errors) > 0 {
		return fmt.Errorf("graphql: %s", envelope.Errors[0].Message)
	}
	if out != nil {
		if err := json.Unmarshal(envelope.Data, out); err != nil {
			return fmt.Errorf("graphql: decode data: %w", err)
		}
	}
	return nil
}

func (c *Client) setHeaders(req *http.Request, hasBody bool) {
	req.Header.Set("Accept", acceptJSON)
	req.Header.Set("User-Agent", userAgent)
	if tok := c.cfg.Token(); tok != "" {
		req.Header.Set("Authorization", "Bearer "+tok)
	}
	if hasBody {
		req.Header.Set("Content-Type", "application/json")
	}
}

func (c *Client) captureRateLimit(resp *http.Response) {
	v := resp.Header.Get("X-RateLimit-Remaining")
	if v == "" {
		return
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return
	}
	c.rateLimit.Store(int64(n))
}

// apiError carries the HTTP status code so callers can tolerate specific
// responses (a 404 on label removal is already the desired state).
// Fields are ordered to minimize memory padding.
type apiError struct {
	Method  string
	Path    string
	Status  string
	Message string
	Code    int
}

func newAPIError(method, path string, resp *http.Response) *apiError {
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	var gh struct {
		Message string `json:"message"`
	}
	_ = json.Unmarshal(data, &gh)
	return &apiError{
		Method:  method,
		Path:    path,
		Status:  resp.Status,
		Message: gh.Message,
		Code:    resp.StatusCode,
	}
}

func (e *apiError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("github: %s %s: %s: %s", e.Method, e.Path, e.Status, e.Message)
	}
	return fmt.Sprintf("github: %s %s: %s", e.Method, e.Path, e.Status)
}

// hasStatus reports whether err is an API error with the given HTTP code.
func hasStatus(err error, code int) bool {
	var ae *apiError
	return errors.As(err, &ae) && ae.Code == code
}
