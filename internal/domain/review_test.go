package domain

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFinding_Location(t *testing.T) {
	assert.Equal(t, "internal/server.go:42", Finding{File: "internal/server.go", Line: 42}.Location())
	assert.Equal(t, "internal/server.go", Finding{File: "internal/server.go"}.Location())
}

func TestFormatFindings_GroupsBySeverity(t *testing.T) {
	findings := []Finding{
		{File: "a.go", Line: 3, Message: "nit", Severity: SeverityInfo},
		{File: "b.go", Line: 7, Message: "nil deref", Severity: SeverityError, Suggestion: "check before use"},
		{File: "c.go", Line: 1, Message: "unused var", Severity: SeverityWarning},
		{File: "d.go", Line: 9, Message: "missing error check", Severity: SeverityError},
	}

	out := FormatFindings(findings)

	assert.True(t, strings.HasPrefix(out, "## Review findings\n"))

	// Sections appear in severity order.
	errIdx := strings.Index(out, "### Errors")
	warnIdx := strings.Index(out, "### Warnings")
	infoIdx := strings.Index(out, "### Info")
	assert.Greater(t, errIdx, 0)
	assert.Greater(t, warnIdx, errIdx)
	assert.Greater(t, infoIdx, warnIdx)

	assert.Contains(t, out, "- `b.go:7` nil deref\n  - suggestion: check before use\n")
	assert.Contains(t, out, "- `d.go:9` missing error check\n")
	assert.Contains(t, out, "- `c.go:1` unused var\n")
	assert.Contains(t, out, "- `a.go:3` nit\n")
}

func TestFormatFindings_SkipsEmptySections(t *testing.T) {
	out := FormatFindings([]Finding{
		{File: "x.go", Line: 2, Message: "only a warning", Severity: SeverityWarning},
	})

	assert.NotContains(t, out, "### Errors")
	assert.Contains(t, out, "### Warnings")
	assert.NotContains(t, out, "### Info")
}

func TestFormatFindings_NoFindings(t *testing.T) {
	assert.Equal(t, "## Review findings\n", FormatFindings(nil))
}
