package domain

import (
	"regexp"
	"strings"
)

// pushPattern matches git push invocations and captures the pushed branch.
// Flags may appear between "push" and the remote; an optional HEAD: prefix
// covers refspec pushes.
var pushPattern = regexp.MustCompile(`git\s+push\s+(?:--?[\w-]+(?:=\S+)?\s+)*[\w./-]+\s+(?:HEAD:)?['"` + "`" + `]?([A-Za-z0-9][\w./-]*)`)

// mentionPatterns match branch-mention phrasing in assistant text, in
// decreasing specificity. Quoting with backticks or quotes is optional.
var mentionPatterns = []*regexp.Regexp{
	regexp.MustCompile("(?i)pushed(?:\\s+\\S+){0,3}?\\s+to\\s+(?:the\\s+)?(?:branch\\s+)?[`'\"]([A-Za-z0-9][\\w./-]*)[`'\"]"),
	regexp.MustCompile("(?i)pushed(?:\\s+\\S+){0,3}?\\s+to\\s+(?:the\\s+)?branch\\s+([A-Za-z0-9][\\w./-]*)"),
	regexp.MustCompile("(?i)branch\\s+[`'\"]?([A-Za-z0-9][\\w./-]*)[`'\"]?\\s+(?:has\\s+been|was)\\s+pushed"),
	regexp.MustCompile("(?i)(?:created|pushed)\\s+(?:a\\s+|the\\s+)?branch\\s+[`'\"]?([A-Za-z0-9][\\w./-]*)[`'\"]?"),
}

// InferBranch determines the branch a finished session produced, trying in
// priority order: structured outcome metadata, git push commands in the
// event stream, branch-mention phrasing in assistant text. The first
// structural match wins. An exhausted chain returns ok=false rather than a
// best guess; a wrong branch silently attributes a PR to the wrong issue.
func InferBranch(outcome *SessionOutcome, events []SessionEvent) (string, bool) {
	if outcome != nil && isLikelyBranch(outcome.Branch) {
		return outcome.Branch, true
	}
	if b, ok := branchFromPushCommands(events); ok {
		return b, true
	}
	return branchFromMentions(events)
}

// branchFromPushCommands scans command events for git push argument patterns.
func branchFromPushCommands(events []SessionEvent) (string, bool) {
	for _, e := range events {
		if e.Kind != EventCommand || e.Command == "" {
			continue
		}
		m := pushPattern.FindStringSubmatch(e.Command)
		if m == nil {
			continue
		}
		if isLikelyBranch(m[1]) {
			return m[1], true
		}
	}
	return "", false
}

// branchFromMentions scans assistant-visible text for branch phrasing.
func branchFromMentions(events []SessionEvent) (string, bool) {
	for _, e := range events {
		if e.Kind != EventMessage || e.Text == "" {
			continue
		}
		for _, p := range mentionPatterns {
			m := p.FindStringSubmatch(e.Text)
			if m == nil {
				continue
			}
			if isLikelyBranch(m[1]) {
				return m[1], true
			}
		}
	}
	return "", false
}

// isLikelyBranch rejects captures that are structurally not branch names.
func isLikelyBranch(name string) bool {
	if name == "" || name == "HEAD" || name == "origin" {
		return false
	}
	if strings.HasPrefix(name, "-") || strings.HasSuffix(name, ".") {
		return false
	}
	return true
}
