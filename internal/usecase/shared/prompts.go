package shared

import (
	"fmt"
	"strings"
	"text/template"
)

// PromptData carries the fields the session prompt templates reference.
// Fields are ordered to minimize memory padding.
type PromptData struct {
	Title  string // Issue title
	Branch string // Existing branch (rework, conflict resolution)
	Base   string // Merge base branch
	Issue  int    // Issue number
	PR     int    // Pull request number, 0 when none exists yet
}

const workPromptText = `You are working on issue #{{.Issue}}: {{.Title}}

Implement the change the issue describes. Keep the change focused on the
issue; do not refactor unrelated code. Commit your work and push the branch
you were given. Do not open a pull request, one is opened for you after the
session finishes.`

const reworkPromptText = `You are continuing work on issue #{{.Issue}}: {{.Title}}

A reviewer requested changes on branch {{.Branch}}{{if gt .PR 0}} (PR #{{.PR}}){{end}}.
Read the latest review-findings comment on the issue, address every finding,
then commit and push to the same branch {{.Branch}}. Do not create a new
branch.`

const conflictPromptText = `Branch {{.Branch}}{{if gt .PR 0}} of pull request #{{.PR}}{{end}} has merge conflicts with {{.Base}}.

Fetch the latest {{.Base}}, merge it into {{.Branch}}, resolve every
conflict, and push {{.Branch}} again. Push the same branch, never a new one.
Do not change anything beyond what conflict resolution requires.`

var (
	workTmpl     = template.Must(template.New("work").Parse(workPromptText))
	reworkTmpl   = template.Must(template.New("rework").Parse(reworkPromptText))
	conflictTmpl = template.Must(template.New("conflict").Parse(conflictPromptText))
)

// WorkPrompt renders the prompt for a fresh session on a new branch prefix.
func WorkPrompt(d PromptData) (string, error) {
	return renderPrompt(workTmpl, d)
}

// ReworkPrompt renders the prompt for a session continuing on an existing
// branch after a rejected review.
func ReworkPrompt(d PromptData) (string, error) {
	return renderPrompt(reworkTmpl, d)
}

// ConflictPrompt renders the prompt for an automated conflict-resolution
// session. The session must push the same branch the PR already points at.
func ConflictPrompt(d PromptData) (string, error) {
	return renderPrompt(conflictTmpl, d)
}

func renderPrompt(t *template.Template, d PromptData) (string, error) {
	var b strings.Builder
	if err := t.Execute(&b, d); err != nil {
		return "", fmt.Errorf("render %s prompt: %w", t.Name(), err)
	}
	return b.String(), nil
}
