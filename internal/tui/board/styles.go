package board

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/runoshun/git-pilot/internal/domain"
)

// Colors defines the color palette for the board view.
var Colors = struct {
	// Base colors
	Primary lipgloss.Color
	Text    lipgloss.Color
	Muted   lipgloss.Color
	Error   lipgloss.Color

	// Column colors
	Backlog    lipgloss.Color
	Ready      lipgloss.Color
	InProgress lipgloss.Color
	InReview   lipgloss.Color
	Done       lipgloss.Color
}{
	Primary: lipgloss.Color("#6C5CE7"), // Purple
	Text:    lipgloss.Color("#DFE6E9"), // Light gray
	Muted:   lipgloss.Color("#636E72"), // Gray
	Error:   lipgloss.Color("#D63031"), // Red

	Backlog:    lipgloss.Color("#636E72"), // Gray
	Ready:      lipgloss.Color("#74B9FF"), // Light blue
	InProgress: lipgloss.Color("#FDCB6E"), // Yellow
	InReview:   lipgloss.Color("#A29BFE"), // Lavender
	Done:       lipgloss.Color("#00B894"), // Green
}

// Styles contains the lipgloss styles for the board view.
type Styles struct {
	// App
	App lipgloss.Style

	// Header
	Title lipgloss.Style
	Taken lipgloss.Style

	// Columns
	Column lipgloss.Style
	Item   lipgloss.Style
	Issue  lipgloss.Style
	Failed lipgloss.Style
	PR     lipgloss.Style
	Empty  lipgloss.Style

	// Error
	ErrorMsg lipgloss.Style

	headers map[domain.Status]lipgloss.Style
}

// ColumnHeader returns the header style for the given board column.
func (s Styles) ColumnHeader(status domain.Status) lipgloss.Style {
	if st, ok := s.headers[status]; ok {
		return st
	}
	return lipgloss.NewStyle().Bold(true)
}

// DefaultStyles returns the default styles for the board view.
func DefaultStyles() Styles {
	return Styles{
		App: lipgloss.NewStyle().
			Padding(1, 2),

		Title: lipgloss.NewStyle().
			Bold(true).
			Foreground(Colors.Primary),

		Taken: lipgloss.NewStyle().
			Foreground(Colors.Muted),

		Column: lipgloss.NewStyle().
			PaddingRight(2),

		Item: lipgloss.NewStyle().
			Foreground(Colors.Text),

		Issue: lipgloss.NewStyle().
			Foreground(Colors.Muted),

		Failed: lipgloss.NewStyle().
			Foreground(Colors.Error),

		PR: lipgloss.NewStyle().
			Foreground(Colors.Muted).
			Italic(true),

		Empty: lipgloss.NewStyle().
			Foreground(Colors.Muted).
			Faint(true),

		ErrorMsg: lipgloss.NewStyle().
			Foreground(Colors.Error).
			Bold(true),

		headers: map[domain.Status]lipgloss.Style{
			domain.StatusBacklog:    lipgloss.NewStyle().Bold(true).Foreground(Colors.Backlog),
			domain.StatusReady:      lipgloss.NewStyle().Bold(true).Foreground(Colors.Ready),
			domain.StatusInProgress: lipgloss.NewStyle().Bold(true).Foreground(Colors.InProgress),
			domain.StatusInReview:   lipgloss.NewStyle().Bold(true).Foreground(Colors.InReview),
			domain.StatusDone:       lipgloss.NewStyle().Bold(true).Foreground(Colors.Done),
		},
	}
}
