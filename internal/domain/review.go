package domain

import (
	"fmt"
	"strings"
)

// Severity ranks a review finding.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
	SeverityInfo    Severity = "info"
)

// Finding is one item reported by the automated review.
// Fields are ordered to minimize memory padding.
type Finding struct {
	File       string
	Message    string
	Suggestion string
	Severity   Severity
	Line       int
}

// Location renders the file:line anchor, omitting the line when unknown.
func (f Finding) Location() string {
	if f.Line > 0 {
		return fmt.Sprintf("%s:%d", f.File, f.Line)
	}
	return f.File
}

// ReviewResult is the verdict of an automated review run.
// Fields are ordered to minimize memory padding.
type ReviewResult struct {
	Summary  string
	Findings []Finding
	Approved bool
}

// severityOrder fixes the grouping order in formatted output.
var severityOrder = []Severity{SeverityError, SeverityWarning, SeverityInfo}

// severityHeading maps severities to section headings.
var severityHeading = map[Severity]string{
	SeverityError:   "Errors",
	SeverityWarning: "Warnings",
	SeverityInfo:    "Info",
}

// FormatFindings renders findings grouped by severity, each with its
// file:line anchor and optional suggestion. The result becomes the comment
// body attached to a rejected item so the rework prompt can reference it.
func FormatFindings(findings []Finding) string {
	var b strings.Builder
	b.WriteString("## Review findings\n")
	for _, sev := range severityOrder {
		var group []Finding
		for _, f := range findings {
			if f.Severity == sev {
				group = append(group, f)
			}
		}
		if len(group) == 0 {
			continue
		}
		fmt.Fprintf(&b, "\n### %s\n", severityHeading[sev])
		for _, f := range group {
			fmt.Fprintf(&b, "- `%s` %s\n", f.Location(), f.Message)
			if f.Suggestion != "" {
				fmt.Fprintf(&b, "  - suggestion: %s\n", f.Suggestion)
			}
		}
	}
	return b.String()
}
