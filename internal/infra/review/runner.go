// Package review runs the configured reviewer command against a pull
// request's working tree and parses the JSON verdict it prints on stdout.
package review

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
	"text/template"

	"github.com/runoshun/git-pilot/internal/domain"
)

// Runner implements domain.CodeReviewer by shelling out to a user-configured
// command, the same way coding agents are usually wired into CI.
type Runner struct {
	logger *slog.Logger
	cfg    domain.ReviewConfig
}

// NewRunner builds a reviewer for the configured command template.
func NewRunner(cfg domain.ReviewConfig, logger *slog.Logger) *Runner {
	return &Runner{logger: logger, cfg: cfg}
}

var _ domain.CodeReviewer = (*Runner)(nil)

// CommandData is the template context available to the reviewer command,
// e.g. `my-reviewer --branch {{.Branch}} --base {{.Base}} --pr {{.PR}}`.
type CommandData struct {
	Branch string
	Base   string
	Title  string
	PR     int
}

// verdict is the JSON shape the reviewer prints on stdout.
type verdict struct {
	Summary  string `json:"summary"`
	Findings []struct {
		File       string `json:"file"`
		Message    string `json:"message"`
		Suggestion string `json:"suggestion"`
		Severity   string `json:"severity"`
		Line       int    `json:"line"`
	} `json:"findings"`
	Approved bool `json:"approved"`
}

// Configured reports whether a reviewer command is set. The review stage is
// skipped entirely when it is not.
func (r *Runner) Configured() bool {
	return strings.TrimSpace(r.cfg.Command) != ""
}

// Review renders the command, runs it in the repository, and parses its
// verdict. A non-zero exit is an error (distinct from a rejecting verdict).
func (r *Runner) Review(ctx context.Context, req domain.ReviewRequest) (*domain.ReviewResult, error) {
	command, err := renderCommand(r.cfg.Command, CommandData{
		Branch: req.Branch,
		Base:   req.Base,
		Title:  req.Title,
		PR:     req.PR,
	})
	if err != nil {
		return nil, fmt.Errorf("render reviewer command: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, r.cfg.ReviewTimeout())
	defer cancel()

	cmd := exec.CommandContext(ctx, "sh", "-c", command)
	cmd.Dir = req.RepoPath
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	r.logger.Debug("running reviewer", "pr", req.PR, "command", command)
	out, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("reviewer command: %w: %s", err, strings.TrimSpace(stderr.String()))
	}

	return parseVerdict(out)
}

func renderCommand(tmpl string, data CommandData) (string, error) {
	t, err := template.New("reviewer").Parse(tmpl)
	if err != nil {
		return "", err
	}
	var b strings.Builder
	if err := t.Execute(&b, data); err != nil {
		return "", err
	}
	return b.String(), nil
}

// parseVerdict decodes the last JSON object on stdout. Reviewers commonly
// log progress lines first, so scanning starts at the final '{'.
func parseVerdict(out []byte) (*domain.ReviewResult, error) {
	trimmed := bytes.TrimSpace(out)
	start := bytes.LastIndexByte(trimmed, '{')
	for start >= 0 {
		var v verdict
		if err := json.Unmarshal(trimmed[start:], &v); err == nil {
			return v.toResult(), nil
		}
		start = bytes.LastIndexByte(trimmed[:start], '{')
	}
	return nil, fmt.Errorf("reviewer output is not a JSON verdict: %q", truncateOutput(trimmed))
}

func (v verdict) toResult() *domain.ReviewResult {
	res := &domain.ReviewResult{
		Summary:  v.Summary,
		Approved: v.Approved,
	}
	for _, f := range v.Findings {
		res.Findings = append(res.Findings, domain.Finding{
			File:       f.File,
			Message:    f.Message,
			Suggestion: f.Suggestion,
			Severity:   normalizeSeverity(f.Severity),
			Line:       f.Line,
		})
	}
	return res
}

func normalizeSeverity(s string) domain.Severity {
	switch domain.Severity(strings.ToLower(s)) {
	case domain.SeverityError:
		return domain.SeverityError
	case domain.SeverityWarning:
		return domain.SeverityWarning
	default:
		return domain.SeverityInfo
	}
}

func truncateOutput(out []byte) string {
	const max = 200
	if len(out) <= max {
		return string(out)
	}
	return string(out[:max]) + "..."
}
