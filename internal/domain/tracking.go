package domain

import (
	"fmt"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// NoteKind classifies what a tracking note points at.
type NoteKind string

const (
	NoteWork               NoteKind = "work"                // fresh session on a new branch prefix
	NoteRework             NoteKind = "rework"              // session scoped to an existing branch
	NoteConflictResolution NoteKind = "conflict_resolution" // automated merge-conflict session
)

// Tracking comment envelope markers. The YAML payload between them is the
// durable session/branch/PR pointer for an issue; there is no local database.
const (
	trackingOpen  = "<!-- pilot:tracking"
	trackingClose = "-->"
)

// TrackingNote is the structured payload of a tracking comment.
// Fields are ordered to minimize memory padding.
type TrackingNote struct {
	UpdatedAt          time.Time `yaml:"updated_at"`
	Kind               NoteKind  `yaml:"kind"`
	SessionID          string    `yaml:"session_id,omitempty"`
	Branch             string    `yaml:"branch,omitempty"`
	WebURL             string    `yaml:"web_url,omitempty"`
	LastError          string    `yaml:"last_error,omitempty"`
	PR                 int       `yaml:"pr,omitempty"`
	ErrorCount         int       `yaml:"error_count,omitempty"`
	ResolutionAttempts int       `yaml:"resolution_attempts,omitempty"`
}

// IsRework reports whether the note points at an existing branch that a new
// session should continue on instead of cutting a fresh one.
func (n *TrackingNote) IsRework() bool {
	return n.Branch != ""
}

// Summary returns the single human-visible line placed above the envelope.
func (n *TrackingNote) Summary() string {
	var b strings.Builder
	b.WriteString(string(n.Kind))
	if n.SessionID != "" {
		fmt.Fprintf(&b, " session `%s`", n.SessionID)
	}
	if n.Branch != "" {
		fmt.Fprintf(&b, " on `%s`", n.Branch)
	}
	if n.PR > 0 {
		fmt.Fprintf(&b, " (PR #%d)", n.PR)
	}
	if n.WebURL != "" {
		fmt.Fprintf(&b, " %s", n.WebURL)
	}
	return b.String()
}

// FormatTrackingComment renders the note as a comment body: one readable
// summary line followed by the machine-readable envelope.
func FormatTrackingComment(n *TrackingNote) (string, error) {
	payload, err := yaml.Marshal(n)
	if err != nil {
		return "", fmt.Errorf("marshal tracking note: %w", err)
	}
	var b strings.Builder
	b.WriteString(n.Summary())
	b.WriteString("\n\n")
	b.WriteString(trackingOpen)
	b.WriteString("\n")
	b.Write(payload)
	b.WriteString(trackingClose)
	b.WriteString("\n")
	return b.String(), nil
}

// ParseTrackingComment extracts a tracking note from a comment body.
// Returns false for bodies without a well-formed envelope.
func ParseTrackingComment(body string) (*TrackingNote, bool) {
	start := strings.Index(body, trackingOpen)
	if start < 0 {
		return nil, false
	}
	rest := body[start+len(trackingOpen):]
	end := strings.Index(rest, trackingClose)
	if end < 0 {
		return nil, false
	}
	var n TrackingNote
	if err := yaml.Unmarshal([]byte(rest[:end]), &n); err != nil {
		return nil, false
	}
	if n.Kind == "" {
		return nil, false
	}
	return &n, true
}

// LatestTrackingNote returns the most recent tracking note among the given
// comments, or nil when no comment carries one. Comments are expected in
// chronological order, as the tracker returns them.
func LatestTrackingNote(comments []Comment) *TrackingNote {
	for i := len(comments) - 1; i >= 0; i-- {
		if n, ok := ParseTrackingComment(comments[i].Body); ok {
			return n
		}
	}
	return nil
}
