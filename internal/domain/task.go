// Package domain contains core business entities and interfaces.
package domain

import (
	"sort"
	"strings"
	"time"
)

// Task represents one tracked issue on the board.
// Fields are ordered to minimize memory padding.
type Task struct {
	Title      string   // Issue title (required)
	Branch     string   // Working branch (empty until a session pushes one)
	SessionID  string   // Remote session id (empty if none recorded)
	LastError  string   // Most recent per-item failure text
	Status     Status   // Board column
	Labels     []string // Issue labels
	Issue      int      // Issue number (stable id)
	PR         int      // Pull request number (0 = not created)
	ErrorCount int      // Revert-to-backlog count, carried in the tracking note
}

// HasLabel reports whether the task carries the given label.
func (t *Task) HasLabel(label string) bool {
	for _, l := range t.Labels {
		if l == label {
			return true
		}
	}
	return false
}

// Comment represents a note attached to an issue.
// Fields are ordered to minimize memory padding.
type Comment struct {
	CreatedAt time.Time // Creation time
	Body      string    // Comment text
	ID        int64     // Remote comment id
}

// Board is the per-cycle snapshot of all open items grouped by column.
// It is taken once from the tracker at cycle start; stages apply their own
// successful transitions back onto it so later stages never act on a view
// that is stale with respect to this cycle's mutations.
type Board struct {
	columns map[Status][]*Task
	TakenAt time.Time
}

// NewBoard groups the given tasks into a snapshot.
func NewBoard(tasks []*Task, takenAt time.Time) *Board {
	b := &Board{
		columns: make(map[Status][]*Task, len(AllStatuses())),
		TakenAt: takenAt,
	}
	for _, t := range tasks {
		if !t.Status.IsValid() {
			continue
		}
		b.columns[t.Status] = append(b.columns[t.Status], t)
	}
	for _, items := range b.columns {
		sortByIssue(items)
	}
	return b
}

// Count returns the number of items in the given column.
func (b *Board) Count(status Status) int {
	return len(b.columns[status])
}

// Items returns the column's items in ascending issue-number order.
// Ascending issue number is the deterministic proxy for "oldest created".
func (b *Board) Items(status Status) []*Task {
	items := b.columns[status]
	out := make([]*Task, len(items))
	copy(out, items)
	return out
}

// Find returns the task with the given issue number, or nil.
func (b *Board) Find(issue int) *Task {
	for _, items := range b.columns {
		for _, t := range items {
			if t.Issue == issue {
				return t
			}
		}
	}
	return nil
}

// HasOpenTitle reports whether any open item already carries the title,
// compared case-insensitively. Done items do not block re-discovery.
func (b *Board) HasOpenTitle(title string) bool {
	want := strings.ToLower(strings.TrimSpace(title))
	for status, items := range b.columns {
		if !status.IsOpen() {
			continue
		}
		for _, t := range items {
			if strings.ToLower(strings.TrimSpace(t.Title)) == want {
				return true
			}
		}
	}
	return false
}

// Add inserts a newly created task into its column.
func (b *Board) Add(t *Task) {
	if t == nil || !t.Status.IsValid() {
		return
	}
	b.columns[t.Status] = append(b.columns[t.Status], t)
	sortByIssue(b.columns[t.Status])
}

// Apply records a successful remote transition on the snapshot, moving the
// task between columns. Invalid transitions are rejected so the snapshot can
// never drift into a state the remote board would not accept.
func (b *Board) Apply(issue int, to Status) bool {
	for status, items := range b.columns {
		for i, t := range items {
			if t.Issue != issue {
				continue
			}
			if status != to && !status.CanTransitionTo(to) {
				return false
			}
			b.columns[status] = append(items[:i], items[i+1:]...)
			t.Status = to
			b.columns[to] = append(b.columns[to], t)
			sortByIssue(b.columns[to])
			return true
		}
	}
	return false
}

func sortByIssue(items []*Task) {
	sort.Slice(items, func(i, j int) bool { return items[i].Issue < items[j].Issue })
}
