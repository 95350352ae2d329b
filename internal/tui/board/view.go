package board

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"

	"github.com/runoshun/git-pilot/internal/domain"
)

const minColumnWidth = 16

// View renders the board view.
func (m *Model) View() string {
	if m.width == 0 {
		return "Loading..."
	}

	var b strings.Builder
	b.WriteString(m.viewHeader())
	b.WriteString("\n\n")

	if m.err != nil {
		b.WriteString(m.styles.ErrorMsg.Render("Error: "+m.err.Error()) + "\n\n")
	}

	if m.board == nil {
		if m.err == nil {
			b.WriteString(m.styles.Taken.Render("loading board..."))
			b.WriteString("\n")
		}
	} else {
		b.WriteString(Render(m.board, m.styles, m.width-4))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(m.help.View(m.keys))
	return m.styles.App.Render(b.String())
}

func (m *Model) viewHeader() string {
	title := m.styles.Title.Render("git-pilot board")
	switch {
	case m.loading:
		return title + "  " + m.styles.Taken.Render("refreshing...")
	case m.board != nil:
		return title + "  " + m.styles.Taken.Render("as of "+m.board.TakenAt.Format("15:04:05"))
	}
	return title
}

// Render draws the snapshot as one column per pipeline stage. It is shared
// by the live watch view and the one-shot status command.
func Render(b *domain.Board, styles Styles, width int) string {
	statuses := domain.AllStatuses()
	colWidth := width/len(statuses) - 2
	if colWidth < minColumnWidth {
		colWidth = minColumnWidth
	}

	cols := make([]string, 0, len(statuses))
	for _, status := range statuses {
		cols = append(cols, renderColumn(b, status, styles, colWidth))
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, cols...)
}

func renderColumn(b *domain.Board, status domain.Status, styles Styles, width int) string {
	var sb strings.Builder
	sb.WriteString(styles.ColumnHeader(status).Render(fmt.Sprintf("%s (%d)", status.Display(), b.Count(status))))
	sb.WriteString("\n")

	items := b.Items(status)
	if len(items) == 0 {
		sb.WriteString(styles.Empty.Render("none"))
	}
	for i, task := range items {
		if i > 0 {
			sb.WriteString("\n")
		}
		sb.WriteString(renderItem(task, styles, width))
	}
	return styles.Column.Width(width + 2).Render(sb.String())
}

func renderItem(t *domain.Task, styles Styles, width int) string {
	prefix := fmt.Sprintf("#%d ", t.Issue)
	var suffix string
	if t.PR > 0 {
		suffix = fmt.Sprintf(" PR#%d", t.PR)
	}

	titleWidth := width - runewidth.StringWidth(prefix) - runewidth.StringWidth(suffix)
	if titleWidth < 4 {
		titleWidth = 4
	}
	title := t.Title
	if runewidth.StringWidth(title) > titleWidth {
		title = runewidth.Truncate(title, titleWidth, "...")
	}

	// Items that failed during the last cycle get an error-colored number.
	issueStyle := styles.Issue
	if t.LastError != "" {
		issueStyle = styles.Failed
	}

	line := issueStyle.Render(prefix) + styles.Item.Render(title)
	if suffix != "" {
		line += styles.PR.Render(suffix)
	}
	return line
}
